// Package app holds the application services and business logic.
package app

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"log/slog"
	"strings"
	"time"

	"tasktimer/internal/domain"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const minPasswordLength = 8

var (
	// ErrInvalidCredentials indicates that the provided email or password was incorrect.
	ErrInvalidCredentials = errors.New("invalid email or password")
	// ErrNoIdentity indicates that the request carries no valid session.
	ErrNoIdentity = errors.New("no authenticated user")
	// ErrNotAnonymous indicates that the current identity has already been claimed.
	ErrNotAnonymous = errors.New("identity is not anonymous")
	// ErrInvalidEmail indicates a malformed email address.
	ErrInvalidEmail = errors.New("email must be a valid address")
	// ErrWeakPassword indicates a password shorter than the minimum length.
	ErrWeakPassword = errors.New("password must be at least 8 characters")
)

var emailValidate = validator.New()

// IdentityProvider is the authentication collaborator consulted by the time
// record use cases. CurrentIdentity returns nil, nil when the request has no
// identity.
type IdentityProvider interface {
	CurrentIdentity(ctx context.Context) (*domain.User, error)
	CreateAnonymousIdentity(ctx context.Context) (*domain.User, error)
	SignOut(ctx context.Context) error
}

// AuthService handles anonymous identities, account claiming and session
// management. The session token travels on the request context (see
// WithSession).
type AuthService struct {
	users    domain.UserRepository
	sessions domain.SessionRepository
	ttl      time.Duration
	now      func() time.Time
	log      *slog.Logger
}

var _ IdentityProvider = (*AuthService)(nil)

// NewAuthService creates a new authentication service. Sessions live for ttl.
func NewAuthService(users domain.UserRepository, sessions domain.SessionRepository, ttl time.Duration, log *slog.Logger) *AuthService {
	if ttl <= 0 {
		ttl = 30 * 24 * time.Hour
	}
	if log == nil {
		log = slog.Default()
	}
	return &AuthService{
		users:    users,
		sessions: sessions,
		ttl:      ttl,
		now:      time.Now,
		log:      log,
	}
}

// WithClock overrides the time source.
func (s *AuthService) WithClock(now func() time.Time) *AuthService {
	s.now = now
	return s
}

// CurrentIdentity resolves the user behind the request's session. A missing,
// unknown or expired session is not an error.
func (s *AuthService) CurrentIdentity(ctx context.Context) (*domain.User, error) {
	rs := SessionFromContext(ctx)
	if rs == nil || rs.Token == "" {
		return nil, nil
	}

	session, err := s.sessions.GetByToken(ctx, rs.Token)
	if err != nil {
		return nil, err
	}
	if session == nil {
		rs.Clear()
		return nil, nil
	}

	if s.now().After(session.ExpiresAt) || session.UserAgent != rs.UserAgent {
		_ = s.sessions.Delete(ctx, rs.Token)
		rs.Clear()
		return nil, nil
	}

	user, err := s.users.GetUserByID(ctx, session.UserID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		rs.Clear()
	}
	return user, nil
}

// CreateAnonymousIdentity creates an anonymous user and starts a session for
// it on the current request.
func (s *AuthService) CreateAnonymousIdentity(ctx context.Context) (*domain.User, error) {
	u := domain.User{
		ID:          uuid.NewString(),
		IsAnonymous: true,
		CreatedAt:   s.now().UTC(),
	}
	if err := s.users.CreateUser(ctx, u); err != nil {
		return nil, err
	}
	if err := s.startSession(ctx, u.ID); err != nil {
		return nil, err
	}
	s.log.InfoContext(ctx, "anonymous identity created", slog.String("user_id", u.ID))
	return &u, nil
}

// EnsureIdentity returns the current identity, creating an anonymous one if
// the request has none.
func (s *AuthService) EnsureIdentity(ctx context.Context) (*domain.User, error) {
	user, err := s.CurrentIdentity(ctx)
	if err != nil {
		return nil, err
	}
	if user != nil {
		return user, nil
	}
	return s.CreateAnonymousIdentity(ctx)
}

// SignOut invalidates the current session.
func (s *AuthService) SignOut(ctx context.Context) error {
	rs := SessionFromContext(ctx)
	if rs == nil || rs.Token == "" {
		return nil
	}
	if err := s.sessions.Delete(ctx, rs.Token); err != nil {
		return err
	}
	rs.Clear()
	return nil
}

// Claim converts the current anonymous identity into a permanent one with an
// email and password. Records keep their owner id.
func (s *AuthService) Claim(ctx context.Context, email, password string) (*domain.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if err := emailValidate.Var(email, "required,email"); err != nil {
		return nil, ErrInvalidEmail
	}
	if len(password) < minPasswordLength {
		return nil, ErrWeakPassword
	}

	user, err := s.CurrentIdentity(ctx)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrNoIdentity
	}
	if !user.IsAnonymous {
		return nil, ErrNotAnonymous
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	return s.users.PromoteUser(ctx, user.ID, email, string(hash))
}

// Login authenticates a claimed identity and starts a new session.
func (s *AuthService) Login(ctx context.Context, email, password string) (*domain.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	user, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if user == nil || user.PasswordHash == "" {
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	s.dropCurrentSession(ctx)
	if err := s.startSession(ctx, user.ID); err != nil {
		return nil, err
	}
	return user, nil
}

// LoginWithEmail signs in an identity already verified by an external
// provider (SSO). An anonymous current identity is linked to the email when
// the email is unused; otherwise the existing owner of the email is used, or a
// new permanent identity is created.
func (s *AuthService) LoginWithEmail(ctx context.Context, email string) (*domain.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return nil, ErrInvalidEmail
	}

	existing, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		return nil, err
	}

	if existing == nil {
		current, err := s.CurrentIdentity(ctx)
		if err != nil {
			return nil, err
		}
		if current != nil && current.IsAnonymous {
			linked, err := s.users.PromoteUser(ctx, current.ID, email, "")
			if err == nil {
				return linked, nil
			}
			if !errors.Is(err, domain.ErrEmailTaken) {
				return nil, err
			}
			// Lost a race with another sign-in for the same email.
			existing, err = s.users.GetUserByEmail(ctx, email)
			if err != nil {
				return nil, err
			}
		}
	}

	if existing == nil {
		u := domain.User{ID: uuid.NewString(), Email: email, CreatedAt: s.now().UTC()}
		if err := s.users.CreateUser(ctx, u); err != nil {
			return nil, err
		}
		existing = &u
	}

	s.dropCurrentSession(ctx)
	if err := s.startSession(ctx, existing.ID); err != nil {
		return nil, err
	}
	return existing, nil
}

// PurgeExpiredSessions deletes every expired session.
func (s *AuthService) PurgeExpiredSessions(ctx context.Context) error {
	return s.sessions.DeleteExpired(ctx, s.now())
}

func (s *AuthService) startSession(ctx context.Context, userID string) error {
	rs := SessionFromContext(ctx)
	if rs == nil {
		return errors.New("no request session on context")
	}
	token, err := generateToken()
	if err != nil {
		return err
	}
	now := s.now()
	if err := s.sessions.Create(ctx, domain.Session{
		Token:     token,
		UserID:    userID,
		UserAgent: rs.UserAgent,
		ExpiresAt: now.Add(s.ttl),
		CreatedAt: now.UTC(),
	}); err != nil {
		return err
	}
	rs.Set(token)
	return nil
}

func (s *AuthService) dropCurrentSession(ctx context.Context) {
	rs := SessionFromContext(ctx)
	if rs == nil || rs.Token == "" {
		return
	}
	_ = s.sessions.Delete(ctx, rs.Token)
}

func generateToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(b), nil
}
