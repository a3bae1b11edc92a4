package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"tasktimer/internal/domain"
)

const (
	msgAuthFailed      = "Authentication failed. Please try again."
	msgAnonymousFailed = "Failed to create anonymous user for saving records."
	msgUnknown         = "Unknown error occurred"
)

// TimeRecordService encapsulates the save and list time record use cases.
type TimeRecordService struct {
	repo       domain.TimeRecordRepository
	identity   IdentityProvider
	factory    domain.RecordFactory
	userScoped bool
	log        *slog.Logger
}

// TimeRecordOption configures a TimeRecordService.
type TimeRecordOption func(*TimeRecordService)

// WithFactory replaces the record factory, e.g. to inject a clock.
func WithFactory(f domain.RecordFactory) TimeRecordOption {
	return func(s *TimeRecordService) { s.factory = f }
}

// WithUserScope controls whether records are owned by and listed for the
// resolved identity. Defaults to true.
func WithUserScope(scoped bool) TimeRecordOption {
	return func(s *TimeRecordService) { s.userScoped = scoped }
}

// WithLogger sets the logger used for failures.
func WithLogger(l *slog.Logger) TimeRecordOption {
	return func(s *TimeRecordService) { s.log = l }
}

// NewTimeRecordService creates a TimeRecordService backed by the given
// repository and identity provider.
func NewTimeRecordService(repo domain.TimeRecordRepository, identity IdentityProvider, opts ...TimeRecordOption) *TimeRecordService {
	s := &TimeRecordService{
		repo:       repo,
		identity:   identity,
		userScoped: true,
		log:        slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Save resolves the caller's identity, validates the input and persists a new
// time record. It never returns a Go error; failures are carried by the Result.
func (s *TimeRecordService) Save(ctx context.Context, description string, durationInSeconds float64) (res Result[*domain.TimeRecord]) {
	defer recoverResult(ctx, s.log, "save", &res)

	user, fail := s.resolveIdentity(ctx)
	if fail != nil {
		return Fail[*domain.TimeRecord](fail.Kind, fail.Message)
	}

	in, err := domain.NewTimeRecordInput{Description: description, DurationInSeconds: durationInSeconds}.Validate()
	if err != nil {
		return failure[*domain.TimeRecord](ctx, s.log, "save", err)
	}

	var owner string
	if s.userScoped {
		owner = user.ID
	}
	rec, err := s.factory.Create(in, owner)
	if err != nil {
		return failure[*domain.TimeRecord](ctx, s.log, "save", err)
	}

	stored, err := s.repo.Save(ctx, rec)
	if err != nil {
		return failure[*domain.TimeRecord](ctx, s.log, "save", err)
	}
	s.log.InfoContext(ctx, "time record saved",
		slog.String("id", stored.ID),
		slog.String("user_id", stored.UserID),
		slog.Int64("duration_s", stored.DurationInSeconds),
	)
	return Ok(&stored)
}

// List resolves the caller's identity and returns their records, most recent
// first. An empty store yields an empty, successful result.
func (s *TimeRecordService) List(ctx context.Context) (res Result[[]domain.TimeRecord]) {
	defer recoverResult(ctx, s.log, "list", &res)

	user, fail := s.resolveIdentity(ctx)
	if fail != nil {
		return Fail[[]domain.TimeRecord](fail.Kind, fail.Message)
	}

	var owner string
	if s.userScoped {
		owner = user.ID
	}
	records, err := s.repo.List(ctx, owner)
	if err != nil {
		return failure[[]domain.TimeRecord](ctx, s.log, "list", err)
	}
	if records == nil {
		records = []domain.TimeRecord{}
	}
	return Ok(records)
}

// resolveIdentity returns the current identity, creating an anonymous one when
// the request has none.
func (s *TimeRecordService) resolveIdentity(ctx context.Context) (*domain.User, *domain.Error) {
	user, err := s.identity.CurrentIdentity(ctx)
	if err != nil {
		s.log.WarnContext(ctx, "resolve identity", slog.Any("error", err))
		return nil, domain.NewAuthenticationError(msgAuthFailed, err)
	}
	if user != nil {
		return user, nil
	}

	user, err = s.identity.CreateAnonymousIdentity(ctx)
	if err != nil || user == nil {
		s.log.WarnContext(ctx, "create anonymous identity", slog.Any("error", err))
		return nil, domain.NewAuthenticationError(msgAnonymousFailed, err)
	}
	return user, nil
}

// failure maps err onto a failed Result. Validation messages are returned
// verbatim; storage causes are logged but not exposed.
func failure[T any](ctx context.Context, log *slog.Logger, op string, err error) Result[T] {
	var de *domain.Error
	if !errors.As(err, &de) {
		log.ErrorContext(ctx, op+" time record", slog.Any("error", err))
		return Fail[T](domain.KindUnknown, msgUnknown)
	}
	if de.Kind != domain.KindValidation {
		log.ErrorContext(ctx, op+" time record", slog.Any("error", err))
	}
	return Fail[T](de.Kind, de.Message)
}

func recoverResult[T any](ctx context.Context, log *slog.Logger, op string, res *Result[T]) {
	r := recover()
	if r == nil {
		return
	}
	log.ErrorContext(ctx, op+" time record panicked", slog.String("panic", fmt.Sprint(r)))
	*res = Fail[T](domain.KindUnknown, msgUnknown)
}
