package adapthttp

import (
	"net/http"

	"tasktimer/internal/app"
	"tasktimer/internal/domain"
)

// recordView is a TimeRecord as the UI renders it.
type recordView struct {
	domain.TimeRecord
	DurationFormatted string `json:"durationFormatted"`
}

func newRecordView(r domain.TimeRecord) recordView {
	return recordView{TimeRecord: r, DurationFormatted: domain.FormatDuration(r.DurationInSeconds)}
}

func (s *Server) handleRecords(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.handleListRecords(w, r)
	case http.MethodPost:
		s.handleSaveRecord(w, r)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleSaveRecord(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Description       string  `json:"description"`
		DurationInSeconds float64 `json:"durationInSeconds"`
	}
	if err := parseJSON(r, &body); err != nil {
		s.log.DebugContext(r.Context(), "save record: bad body", "error", err)
		writeResult(w, app.Fail[*recordView](domain.KindValidation, "Invalid request body"))
		return
	}

	res := s.records.Save(r.Context(), body.Description, body.DurationInSeconds)
	if !res.Success {
		writeResult(w, app.Fail[*recordView](res.Code, res.Error))
		return
	}
	v := newRecordView(*res.Data)
	writeResult(w, app.Ok(&v))
}

func (s *Server) handleListRecords(w http.ResponseWriter, r *http.Request) {
	res := s.records.List(r.Context())
	if !res.Success {
		writeResult(w, app.Fail[[]recordView](res.Code, res.Error))
		return
	}
	views := make([]recordView, 0, len(res.Data))
	for _, rec := range res.Data {
		views = append(views, newRecordView(rec))
	}
	writeResult(w, app.Ok(views))
}
