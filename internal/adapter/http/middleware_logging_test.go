package adapthttp

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"tasktimer/internal/app"
)

func TestLoggingMiddleware(t *testing.T) {
	var buf bytes.Buffer
	s := &Server{log: slog.New(slog.NewTextHandler(&buf, nil))}
	nextHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte("OK"))
	})

	handler := s.loggingMiddleware(nextHandler)

	req := httptest.NewRequest("GET", "/test-path", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusTeapot {
		t.Errorf("Expected status %d, got %d", http.StatusTeapot, w.Code)
	}

	logOutput := buf.String()
	for _, want := range []string{"method=GET", "path=/test-path", "status=418", "duration="} {
		if !strings.Contains(logOutput, want) {
			t.Errorf("Log output missing %q. Got: %s", want, logOutput)
		}
	}
}

func TestSessionMiddleware_WritesCookieWhenChanged(t *testing.T) {
	s := &Server{cookieTTL: time.Hour, secureCookie: true}
	handler := s.sessionMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rs := app.SessionFromContext(r.Context())
		if rs == nil || rs.Token != "old" || rs.UserAgent != "agent" {
			t.Errorf("unexpected request session %+v", rs)
		}
		rs.Set("new-token")
		// Handler writes nothing; the middleware still sets the cookie.
	}))

	req := httptest.NewRequest("POST", "/records", nil)
	req.Header.Set("User-Agent", "agent")
	req.AddCookie(&http.Cookie{Name: sessionCookie, Value: "old"})
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	cookies := w.Result().Cookies()
	if len(cookies) != 1 {
		t.Fatalf("expected one cookie, got %d", len(cookies))
	}
	c := cookies[0]
	if c.Value != "new-token" || !c.HttpOnly || !c.Secure || c.MaxAge != 3600 {
		t.Fatalf("unexpected cookie %+v", c)
	}
}

func TestSessionMiddleware_NoCookieWhenUnchanged(t *testing.T) {
	s := &Server{cookieTTL: time.Hour}
	handler := s.sessionMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest("GET", "/health", nil))

	if n := len(w.Result().Cookies()); n != 0 {
		t.Fatalf("expected no cookies, got %d", n)
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		res  app.Result[int]
		want int
	}{
		{app.Ok(1), http.StatusOK},
		{app.Fail[int]("VALIDATION_ERROR", "x"), http.StatusBadRequest},
		{app.Fail[int]("AUTHENTICATION_ERROR", "x"), http.StatusUnauthorized},
		{app.Fail[int]("STORAGE_ERROR", "x"), http.StatusInternalServerError},
		{app.Fail[int]("UNKNOWN_ERROR", "x"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := statusFor(tt.res); got != tt.want {
			t.Errorf("statusFor(%s) = %d, want %d", tt.res.Code, got, tt.want)
		}
	}
}
