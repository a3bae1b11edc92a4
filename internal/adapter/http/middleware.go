package adapthttp

import (
	"log/slog"
	"net/http"
	"time"

	"tasktimer/internal/app"
)

// sessionMiddleware attaches the request's session to the context and writes
// the cookie back when a service issued or cleared the token.
func (s *Server) sessionMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rs := &app.RequestSession{UserAgent: r.UserAgent()}
		if c, err := r.Cookie(sessionCookie); err == nil {
			rs.Token = c.Value
		}

		sw := &sessionWriter{ResponseWriter: w, rs: rs, srv: s}
		next.ServeHTTP(sw, r.WithContext(app.WithSession(r.Context(), rs)))
		// Nothing was written; headers are still open.
		sw.flushCookie()
	})
}

type sessionWriter struct {
	http.ResponseWriter
	rs      *app.RequestSession
	srv     *Server
	flushed bool
}

func (w *sessionWriter) flushCookie() {
	if w.flushed {
		return
	}
	w.flushed = true
	if !w.rs.Changed() {
		return
	}
	c := &http.Cookie{
		Name:     sessionCookie,
		Value:    w.rs.Token,
		Path:     "/",
		HttpOnly: true,
		Secure:   w.srv.secureCookie,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(w.srv.cookieTTL.Seconds()),
	}
	if w.rs.Token == "" {
		c.MaxAge = -1
	}
	http.SetCookie(w.ResponseWriter, c)
}

func (w *sessionWriter) WriteHeader(code int) {
	w.flushCookie()
	w.ResponseWriter.WriteHeader(code)
}

func (w *sessionWriter) Write(b []byte) (int, error) {
	w.flushCookie()
	return w.ResponseWriter.Write(b)
}

func (w *sessionWriter) Unwrap() http.ResponseWriter { return w.ResponseWriter }

// loggingMiddleware logs method, path, status and duration of every request.
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		level := slog.LevelInfo
		if rec.status >= http.StatusInternalServerError {
			level = slog.LevelError
		}
		s.log.LogAttrs(r.Context(), level, "http request",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", rec.status),
			slog.Duration("duration", time.Since(start)),
		)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Unwrap() http.ResponseWriter { return r.ResponseWriter }
