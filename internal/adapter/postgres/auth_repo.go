package postgres

import (
	"context"
	"database/sql"
	"time"

	"tasktimer/internal/domain"

	"github.com/lib/pq"
	"github.com/pkg/errors"
)

var _ domain.UserRepository = (*DB)(nil)
var _ domain.SessionRepository = (*SessionRepo)(nil)

const userColumns = "id, is_anonymous, email, password_hash, created_at"

// CreateUser inserts a new user.
func (d *DB) CreateUser(ctx context.Context, u domain.User) error {
	_, err := d.sql.ExecContext(ctx,
		"INSERT INTO users ("+userColumns+") VALUES ($1, $2, $3, $4, $5)",
		u.ID, u.IsAnonymous, nullString(u.Email), u.PasswordHash, u.CreatedAt.UTC(),
	)
	if isUniqueViolation(err) {
		return domain.ErrEmailTaken
	}
	return errors.Wrap(err, "insert users")
}

// GetUserByID retrieves a user by ID.
func (d *DB) GetUserByID(ctx context.Context, id string) (*domain.User, error) {
	return d.getUser(ctx, "SELECT "+userColumns+" FROM users WHERE id = $1", id)
}

// GetUserByEmail retrieves a user by email.
func (d *DB) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	return d.getUser(ctx, "SELECT "+userColumns+" FROM users WHERE email = $1", email)
}

// PromoteUser attaches an email and password hash to an anonymous user.
func (d *DB) PromoteUser(ctx context.Context, id, email, passwordHash string) (*domain.User, error) {
	u, err := d.getUser(ctx,
		"UPDATE users SET email = $2, password_hash = $3, is_anonymous = FALSE WHERE id = $1 RETURNING "+userColumns,
		id, email, passwordHash,
	)
	if isUniqueViolation(errors.Cause(err)) {
		return nil, domain.ErrEmailTaken
	}
	return u, err
}

func (d *DB) getUser(ctx context.Context, query string, args ...any) (*domain.User, error) {
	var (
		u     domain.User
		email sql.NullString
	)
	err := d.sql.QueryRowContext(ctx, query, args...).
		Scan(&u.ID, &u.IsAnonymous, &email, &u.PasswordHash, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "query users")
	}
	u.Email = email.String
	return &u, nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

// SessionRepo implements session repository operations on DB.
type SessionRepo struct {
	db *DB
}

// NewSessionRepo wraps a DB as a SessionRepository.
func NewSessionRepo(db *DB) *SessionRepo {
	return &SessionRepo{db: db}
}

// Create creates a new session.
func (r *SessionRepo) Create(ctx context.Context, s domain.Session) error {
	_, err := r.db.sql.ExecContext(ctx,
		"INSERT INTO sessions (token, user_id, user_agent, expires_at, created_at) VALUES ($1, $2, $3, $4, $5)",
		s.Token, s.UserID, s.UserAgent, s.ExpiresAt.UTC(), s.CreatedAt.UTC(),
	)
	return errors.Wrap(err, "insert sessions")
}

// GetByToken retrieves a session by token.
func (r *SessionRepo) GetByToken(ctx context.Context, token string) (*domain.Session, error) {
	var s domain.Session
	err := r.db.sql.QueryRowContext(ctx,
		"SELECT token, user_id, user_agent, expires_at, created_at FROM sessions WHERE token = $1",
		token,
	).Scan(&s.Token, &s.UserID, &s.UserAgent, &s.ExpiresAt, &s.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "query sessions")
	}
	return &s, nil
}

// Delete deletes a session by token.
func (r *SessionRepo) Delete(ctx context.Context, token string) error {
	_, err := r.db.sql.ExecContext(ctx, "DELETE FROM sessions WHERE token = $1", token)
	return errors.Wrap(err, "delete sessions")
}

// DeleteExpired deletes all sessions that expired before now.
func (r *SessionRepo) DeleteExpired(ctx context.Context, now time.Time) error {
	_, err := r.db.sql.ExecContext(ctx, "DELETE FROM sessions WHERE expires_at < $1", now.UTC())
	return errors.Wrap(err, "delete expired sessions")
}
