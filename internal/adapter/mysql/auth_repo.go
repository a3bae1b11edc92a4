package mysql

import (
	"context"
	"database/sql"
	"time"

	"tasktimer/internal/domain"

	"github.com/pkg/errors"
)

var _ domain.UserRepository = (*DB)(nil)
var _ domain.SessionRepository = (*SessionRepo)(nil)

const userColumns = "id, is_anonymous, email, password_hash, created_at"

// CreateUser inserts a new user.
func (d *DB) CreateUser(ctx context.Context, u domain.User) error {
	_, err := d.sql.ExecContext(ctx,
		"INSERT INTO users ("+userColumns+") VALUES (?, ?, ?, ?, ?)",
		u.ID, u.IsAnonymous, nullString(u.Email), u.PasswordHash, u.CreatedAt.UTC(),
	)
	if isDuplicateKey(err) {
		return domain.ErrEmailTaken
	}
	return errors.Wrap(err, "insert users")
}

// GetUserByID retrieves a user by ID.
func (d *DB) GetUserByID(ctx context.Context, id string) (*domain.User, error) {
	return d.getUser(ctx, "SELECT "+userColumns+" FROM users WHERE id = ?", id)
}

// GetUserByEmail retrieves a user by email.
func (d *DB) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	return d.getUser(ctx, "SELECT "+userColumns+" FROM users WHERE email = ?", email)
}

// PromoteUser attaches an email and password hash to a user inside one
// transaction so the read back sees the update.
func (d *DB) PromoteUser(ctx context.Context, id, email, passwordHash string) (*domain.User, error) {
	tx, err := d.sql.BeginTx(ctx, nil)
	if err != nil {
		return nil, errors.Wrap(err, "begin promote")
	}
	defer tx.Rollback() //nolint:errcheck

	// RowsAffected is 0 both for a missing user and an unchanged row, so
	// the select below decides.
	_, err = tx.ExecContext(ctx,
		"UPDATE users SET email = ?, password_hash = ?, is_anonymous = FALSE WHERE id = ?",
		email, passwordHash, id,
	)
	if isDuplicateKey(err) {
		return nil, domain.ErrEmailTaken
	}
	if err != nil {
		return nil, errors.Wrap(err, "update users")
	}
	u, err := scanUser(tx.QueryRowContext(ctx, "SELECT "+userColumns+" FROM users WHERE id = ?", id))
	if err != nil || u == nil {
		return u, err
	}
	return u, errors.Wrap(tx.Commit(), "commit promote")
}

func (d *DB) getUser(ctx context.Context, query string, args ...any) (*domain.User, error) {
	return scanUser(d.sql.QueryRowContext(ctx, query, args...))
}

func scanUser(row *sql.Row) (*domain.User, error) {
	var (
		u     domain.User
		email sql.NullString
	)
	err := row.Scan(&u.ID, &u.IsAnonymous, &email, &u.PasswordHash, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "query users")
	}
	u.Email = email.String
	u.CreatedAt = u.CreatedAt.UTC()
	return &u, nil
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
		"INSERT INTO sessions (token, user_id, user_agent, expires_at, created_at) VALUES (?, ?, ?, ?, ?)",
		s.Token, s.UserID, s.UserAgent, s.ExpiresAt.UTC(), s.CreatedAt.UTC(),
	)
	return errors.Wrap(err, "insert sessions")
}

// GetByToken retrieves a session by token.
func (r *SessionRepo) GetByToken(ctx context.Context, token string) (*domain.Session, error) {
	var s domain.Session
	err := r.db.sql.QueryRowContext(ctx,
		"SELECT token, user_id, user_agent, expires_at, created_at FROM sessions WHERE token = ?",
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
	_, err := r.db.sql.ExecContext(ctx, "DELETE FROM sessions WHERE token = ?", token)
	return errors.Wrap(err, "delete sessions")
}

// DeleteExpired deletes all sessions that expired before now.
func (r *SessionRepo) DeleteExpired(ctx context.Context, now time.Time) error {
	_, err := r.db.sql.ExecContext(ctx, "DELETE FROM sessions WHERE expires_at < ?", now.UTC())
	return errors.Wrap(err, "delete expired sessions")
}
