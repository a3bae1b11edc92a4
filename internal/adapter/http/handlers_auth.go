package adapthttp

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"log/slog"
	"net/http"

	"tasktimer/internal/app"
	"tasktimer/internal/domain"
)

const stateCookie = "oauth_state"

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// authFailure maps an AuthService error onto a failed Result.
func (s *Server) authFailure(r *http.Request, op string, err error) app.Result[*domain.User] {
	switch {
	case errors.Is(err, app.ErrInvalidCredentials),
		errors.Is(err, app.ErrNoIdentity):
		return app.Fail[*domain.User](domain.KindAuthentication, err.Error())
	case errors.Is(err, app.ErrInvalidEmail),
		errors.Is(err, app.ErrWeakPassword),
		errors.Is(err, app.ErrNotAnonymous):
		return app.Fail[*domain.User](domain.KindValidation, err.Error())
	case errors.Is(err, domain.ErrEmailTaken):
		return app.Fail[*domain.User](domain.KindValidation, "Email is already in use")
	}
	s.log.ErrorContext(r.Context(), op, slog.Any("error", err))
	return app.Fail[*domain.User](domain.KindAuthentication, "Authentication failed. Please try again.")
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	user, err := s.auth.CurrentIdentity(r.Context())
	if err != nil {
		writeResult(w, s.authFailure(r, "current identity", err))
		return
	}
	writeResult(w, app.Ok(user))
}

func (s *Server) handleAnonymous(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	user, err := s.auth.EnsureIdentity(r.Context())
	if err != nil {
		writeResult(w, s.authFailure(r, "ensure identity", err))
		return
	}
	writeResult(w, app.Ok(user))
}

func (s *Server) handleSignOut(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if err := s.auth.SignOut(r.Context()); err != nil {
		writeResult(w, s.authFailure(r, "sign out", err))
		return
	}
	writeResult(w, app.Ok[*domain.User](nil))
}

func (s *Server) handleClaim(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req credentials
	if err := parseJSON(r, &req); err != nil {
		writeResult(w, app.Fail[*domain.User](domain.KindValidation, "Invalid request body"))
		return
	}
	user, err := s.auth.Claim(r.Context(), req.Email, req.Password)
	if err != nil {
		writeResult(w, s.authFailure(r, "claim identity", err))
		return
	}
	writeResult(w, app.Ok(user))
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req credentials
	if err := parseJSON(r, &req); err != nil {
		writeResult(w, app.Fail[*domain.User](domain.KindValidation, "Invalid request body"))
		return
	}
	user, err := s.auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeResult(w, s.authFailure(r, "login", err))
		return
	}
	writeResult(w, app.Ok(user))
}

func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"sso_enabled": s.oidc.Enabled,
	})
}

func (s *Server) handleSSOLogin(w http.ResponseWriter, r *http.Request) {
	if !s.oidc.Enabled {
		http.Error(w, "sso disabled", http.StatusNotFound)
		return
	}
	state := generateState()
	http.SetCookie(w, &http.Cookie{
		Name:     stateCookie,
		Value:    state,
		Path:     "/",
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode, // Lax required for cross-site redirect returns
		MaxAge:   300,
	})
	http.Redirect(w, r, s.oidc.OAuth2Config.AuthCodeURL(state), http.StatusFound)
}

func (s *Server) handleSSOCallback(w http.ResponseWriter, r *http.Request) {
	if !s.oidc.Enabled {
		http.Error(w, "sso disabled", http.StatusNotFound)
		return
	}

	state, err := r.Cookie(stateCookie)
	if err != nil || state.Value == "" || r.URL.Query().Get("state") != state.Value {
		http.Error(w, "invalid state", http.StatusBadRequest)
		return
	}
	http.SetCookie(w, &http.Cookie{Name: stateCookie, MaxAge: -1, Path: "/"})

	token, err := s.oidc.OAuth2Config.Exchange(r.Context(), r.URL.Query().Get("code"))
	if err != nil {
		s.log.ErrorContext(r.Context(), "sso exchange", slog.Any("error", err))
		http.Error(w, "failed to exchange token", http.StatusInternalServerError)
		return
	}

	rawIDToken, ok := token.Extra("id_token").(string)
	if !ok {
		http.Error(w, "no id_token", http.StatusInternalServerError)
		return
	}

	idToken, err := s.oidc.Verifier.Verify(r.Context(), rawIDToken)
	if err != nil {
		s.log.ErrorContext(r.Context(), "sso verify", slog.Any("error", err))
		http.Error(w, "failed to verify token", http.StatusInternalServerError)
		return
	}

	var claims struct {
		Email         string `json:"email"`
		EmailVerified *bool  `json:"email_verified"`
	}
	if err = idToken.Claims(&claims); err != nil {
		http.Error(w, "failed to parse claims", http.StatusInternalServerError)
		return
	}
	if claims.Email == "" || (claims.EmailVerified != nil && !*claims.EmailVerified) {
		http.Error(w, "verified email required", http.StatusForbidden)
		return
	}

	if _, err := s.auth.LoginWithEmail(r.Context(), claims.Email); err != nil {
		s.log.ErrorContext(r.Context(), "sso login", slog.Any("error", err))
		http.Error(w, "login failed", http.StatusInternalServerError)
		return
	}

	http.Redirect(w, r, "/", http.StatusFound)
}

func generateState() string {
	b := make([]byte, 16)
	_, _ = rand.Read(b)
	return base64.URLEncoding.EncodeToString(b)
}
