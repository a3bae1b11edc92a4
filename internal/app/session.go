package app

import "context"

type sessionKey struct{}

// RequestSession carries the session token of the current request. The
// driving adapter attaches one per request; AuthService replaces or clears the
// token and the adapter writes the cookie back when Changed reports true.
type RequestSession struct {
	Token     string
	UserAgent string
	changed   bool
}

// Set replaces the token with a newly issued one.
func (s *RequestSession) Set(token string) {
	s.Token = token
	s.changed = true
}

// Clear drops the token.
func (s *RequestSession) Clear() {
	if s.Token == "" && !s.changed {
		return
	}
	s.Token = ""
	s.changed = true
}

// Changed reports whether the token was issued or cleared during the request.
func (s *RequestSession) Changed() bool {
	return s.changed
}

// WithSession returns a context carrying s.
func WithSession(ctx context.Context, s *RequestSession) context.Context {
	return context.WithValue(ctx, sessionKey{}, s)
}

// SessionFromContext returns the session attached to ctx, or nil.
func SessionFromContext(ctx context.Context) *RequestSession {
	s, _ := ctx.Value(sessionKey{}).(*RequestSession)
	return s
}
