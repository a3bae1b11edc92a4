// Package memory implements an in-memory repository for development and testing.
package memory

import (
	"context"
	"slices"
	"sync"
	"time"

	"tasktimer/internal/domain"
)

// DB implements an in-memory database storage. Nothing survives a restart.
type DB struct {
	mu       sync.Mutex
	records  []domain.TimeRecord
	users    []*domain.User
	sessions map[string]domain.Session
}

// New creates a new in-memory database.
func New() *DB {
	return &DB{
		sessions: make(map[string]domain.Session),
	}
}

// Ensure interfaces are met.
var _ domain.TimeRecordRepository = (*DB)(nil)
var _ domain.UserRepository = (*DB)(nil)
var _ domain.SessionRepository = (*SessionRepo)(nil)

// --- TimeRecordRepository ---

// Save appends a time record.
func (db *DB) Save(ctx context.Context, rec domain.TimeRecord) (domain.TimeRecord, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	db.records = append(db.records, rec)
	return rec, nil
}

// List returns a copy of the records owned by ownerID (all records when
// ownerID is empty), most recent first. Records with equal timestamps are
// returned newest-saved first.
func (db *DB) List(ctx context.Context, ownerID string) ([]domain.TimeRecord, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	result := make([]domain.TimeRecord, 0, len(db.records))
	for i := len(db.records) - 1; i >= 0; i-- {
		r := db.records[i]
		if ownerID != "" && r.UserID != ownerID {
			continue
		}
		result = append(result, r)
	}

	slices.SortStableFunc(result, func(a, b domain.TimeRecord) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	return result, nil
}

// Len returns the number of stored time records.
func (db *DB) Len() int {
	db.mu.Lock()
	defer db.mu.Unlock()
	return len(db.records)
}

// --- UserRepository ---

// CreateUser stores a new user.
func (db *DB) CreateUser(ctx context.Context, u domain.User) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if u.Email != "" && db.findByEmail(u.Email) != nil {
		return domain.ErrEmailTaken
	}
	stored := u
	db.users = append(db.users, &stored)
	return nil
}

// GetUserByID retrieves a user by ID.
func (db *DB) GetUserByID(ctx context.Context, id string) (*domain.User, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	for _, u := range db.users {
		if u.ID == id {
			cp := *u
			return &cp, nil
		}
	}
	return nil, nil
}

// GetUserByEmail retrieves a user by email.
func (db *DB) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	if u := db.findByEmail(email); u != nil {
		cp := *u
		return &cp, nil
	}
	return nil, nil
}

// PromoteUser attaches an email (and optional password hash) to an anonymous
// user.
func (db *DB) PromoteUser(ctx context.Context, id, email, passwordHash string) (*domain.User, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	if other := db.findByEmail(email); other != nil && other.ID != id {
		return nil, domain.ErrEmailTaken
	}
	for _, u := range db.users {
		if u.ID == id {
			u.Email = email
			u.PasswordHash = passwordHash
			u.IsAnonymous = false
			cp := *u
			return &cp, nil
		}
	}
	return nil, nil
}

func (db *DB) findByEmail(email string) *domain.User {
	if email == "" {
		return nil
	}
	for _, u := range db.users {
		if u.Email == email {
			return u
		}
	}
	return nil
}

// --- SessionRepository ---

// SessionRepo implements session persistence.
type SessionRepo struct {
	db *DB
}

// NewSessionRepo creates a new session repository.
func (db *DB) NewSessionRepo() *SessionRepo {
	return &SessionRepo{db: db}
}

// Create creates a new session.
func (r *SessionRepo) Create(ctx context.Context, s domain.Session) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	r.db.sessions[s.Token] = s
	return nil
}

// GetByToken retrieves a session by token.
func (r *SessionRepo) GetByToken(ctx context.Context, token string) (*domain.Session, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	if s, ok := r.db.sessions[token]; ok {
		return &s, nil
	}
	return nil, nil
}

// Delete deletes a session.
func (r *SessionRepo) Delete(ctx context.Context, token string) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	delete(r.db.sessions, token)
	return nil
}

// DeleteExpired deletes all sessions that expired before now.
func (r *SessionRepo) DeleteExpired(ctx context.Context, now time.Time) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for k, v := range r.db.sessions {
		if now.After(v.ExpiresAt) {
			delete(r.db.sessions, k)
		}
	}
	return nil
}

// Close is a no-op; it lets DB satisfy the same lifecycle as the SQL adapters.
func (db *DB) Close() error {
	return nil
}
