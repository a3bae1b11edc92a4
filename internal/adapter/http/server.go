// Package adapthttp implements the HTTP adapter for the application.
package adapthttp

import (
	"log/slog"
	"net/http"
	"time"

	"tasktimer/internal/app"
)

const sessionCookie = "session"

// Server is the driving HTTP adapter that routes requests to application
// services.
type Server struct {
	records *app.TimeRecordService
	auth    *app.AuthService
	oidc    *OIDCConfig
	webDir  string
	log     *slog.Logger

	secureCookie bool
	cookieTTL    time.Duration
}

// Option configures a Server.
type Option func(*Server)

// WithOIDC enables the SSO endpoints.
func WithOIDC(o *OIDCConfig) Option {
	return func(s *Server) { s.oidc = o }
}

// WithLogger sets the request and error logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.log = l }
}

// WithSessionCookie sets the Secure flag and lifetime of the session cookie.
func WithSessionCookie(secure bool, ttl time.Duration) Option {
	return func(s *Server) {
		s.secureCookie = secure
		s.cookieTTL = ttl
	}
}

// New creates a Server wired to the given application services.
func New(records *app.TimeRecordService, auth *app.AuthService, webDir string, opts ...Option) *Server {
	s := &Server{
		records:   records,
		auth:      auth,
		oidc:      &OIDCConfig{},
		webDir:    webDir,
		log:       slog.Default(),
		cookieTTL: 30 * 24 * time.Hour,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the root http.Handler for the application.
func (s *Server) Handler() http.Handler {
	api := http.NewServeMux()
	api.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	})

	api.HandleFunc("/records", s.handleRecords)

	api.HandleFunc("/auth/me", s.handleMe)
	api.HandleFunc("/auth/anonymous", s.handleAnonymous)
	api.HandleFunc("/auth/signout", s.handleSignOut)
	api.HandleFunc("/auth/claim", s.handleClaim)
	api.HandleFunc("/auth/login", s.handleLogin)
	api.HandleFunc("/auth/config", s.handleConfig)
	api.HandleFunc("/auth/sso/login", s.handleSSOLogin)
	api.HandleFunc("/auth/sso/callback", s.handleSSOCallback)

	root := http.NewServeMux()
	root.Handle("/api/", http.StripPrefix("/api", s.sessionMiddleware(api)))
	root.Handle("/", spaFromDisk(s.webDir))

	return s.loggingMiddleware(withNoCache(root))
}
