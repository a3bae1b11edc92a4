package app_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"tasktimer/internal/adapter/memory"
	"tasktimer/internal/app"
	"tasktimer/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockRecordRepo struct {
	saveFn func(ctx context.Context, rec domain.TimeRecord) (domain.TimeRecord, error)
	listFn func(ctx context.Context, ownerID string) ([]domain.TimeRecord, error)
}

func (m *mockRecordRepo) Save(ctx context.Context, rec domain.TimeRecord) (domain.TimeRecord, error) {
	if m.saveFn != nil {
		return m.saveFn(ctx, rec)
	}
	return rec, nil
}

func (m *mockRecordRepo) List(ctx context.Context, ownerID string) ([]domain.TimeRecord, error) {
	if m.listFn != nil {
		return m.listFn(ctx, ownerID)
	}
	return nil, nil
}

type fakeIdentity struct {
	current    *domain.User
	currentErr error
	createErr  error
	created    int
}

func (f *fakeIdentity) CurrentIdentity(context.Context) (*domain.User, error) {
	return f.current, f.currentErr
}

func (f *fakeIdentity) CreateAnonymousIdentity(context.Context) (*domain.User, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.created++
	f.current = &domain.User{ID: "anon-1", IsAnonymous: true}
	return f.current, nil
}

func (f *fakeIdentity) SignOut(context.Context) error {
	f.current = nil
	return nil
}

// tickingFactory returns a factory whose clock advances one second per record.
func tickingFactory() domain.RecordFactory {
	t0 := time.Date(2026, 2, 8, 9, 0, 0, 0, time.UTC)
	n := 0
	return domain.RecordFactory{Now: func() time.Time {
		n++
		return t0.Add(time.Duration(n) * time.Second)
	}}
}

func newMemoryService(t *testing.T, id app.IdentityProvider, opts ...app.TimeRecordOption) (*app.TimeRecordService, *memory.DB) {
	t.Helper()
	db := memory.New()
	opts = append([]app.TimeRecordOption{app.WithFactory(tickingFactory())}, opts...)
	return app.NewTimeRecordService(db, id, opts...), db
}

func TestSaveThenList_Scenario(t *testing.T) {
	ctx := context.Background()
	svc, _ := newMemoryService(t, &fakeIdentity{current: &domain.User{ID: "u1"}})

	res := svc.Save(ctx, "Client meeting", 125)
	require.True(t, res.Success, res.Error)

	list := svc.List(ctx)
	require.True(t, list.Success, list.Error)
	require.Len(t, list.Data, 1)
	assert.Equal(t, int64(125), list.Data[0].DurationInSeconds)
	assert.Equal(t, "u1", list.Data[0].UserID)

	res = svc.Save(ctx, "Write report", 40)
	require.True(t, res.Success, res.Error)

	list = svc.List(ctx)
	require.True(t, list.Success)
	require.Len(t, list.Data, 2)
	assert.Equal(t, "Write report", list.Data[0].Description)
	assert.Equal(t, "Client meeting", list.Data[1].Description)
}

func TestSave_ReturnsStoredRecord(t *testing.T) {
	svc, _ := newMemoryService(t, &fakeIdentity{current: &domain.User{ID: "u1"}})
	res := svc.Save(context.Background(), "  Deep work  ", 59.5)
	require.True(t, res.Success)
	require.NotNil(t, res.Data)
	assert.NotEmpty(t, res.Data.ID)
	assert.Equal(t, "Deep work", res.Data.Description)
	assert.Equal(t, int64(60), res.Data.DurationInSeconds)
}

func TestSave_ValidationFailuresDoNotPersist(t *testing.T) {
	tests := []struct {
		name        string
		description string
		duration    float64
		wantMsg     string
	}{
		{"empty description", "", 10, "Description is required"},
		{"whitespace description", "   ", 10, "Description is required"},
		{"zero duration", "Task", 0, "Duration must be greater than 0"},
		{"negative duration", "Task", -1, "Duration must be greater than 0"},
		{"both", "", -1, "Description is required, Duration must be greater than 0"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			svc, db := newMemoryService(t, &fakeIdentity{current: &domain.User{ID: "u1"}})
			res := svc.Save(context.Background(), tc.description, tc.duration)
			assert.False(t, res.Success)
			assert.Equal(t, domain.KindValidation, res.Code)
			assert.Equal(t, tc.wantMsg, res.Error)
			assert.Equal(t, 0, db.Len())
		})
	}
}

func TestList_EmptyStoreSucceeds(t *testing.T) {
	svc, _ := newMemoryService(t, &fakeIdentity{current: &domain.User{ID: "u1"}})
	res := svc.List(context.Background())
	require.True(t, res.Success)
	assert.NotNil(t, res.Data)
	assert.Empty(t, res.Data)

	b, err := json.Marshal(res)
	require.NoError(t, err)
	assert.JSONEq(t, `{"success":true,"data":[]}`, string(b))
}

func TestList_ScopedToOwner(t *testing.T) {
	ctx := context.Background()
	id := &fakeIdentity{current: &domain.User{ID: "u1"}}
	svc, _ := newMemoryService(t, id)

	require.True(t, svc.Save(ctx, "mine", 10).Success)
	id.current = &domain.User{ID: "u2"}
	require.True(t, svc.Save(ctx, "theirs", 10).Success)

	res := svc.List(ctx)
	require.True(t, res.Success)
	require.Len(t, res.Data, 1)
	assert.Equal(t, "theirs", res.Data[0].Description)
}

func TestList_UnscopedSeesEveryRecord(t *testing.T) {
	ctx := context.Background()
	id := &fakeIdentity{current: &domain.User{ID: "u1"}}
	svc, _ := newMemoryService(t, id, app.WithUserScope(false))

	require.True(t, svc.Save(ctx, "a", 10).Success)
	id.current = &domain.User{ID: "u2"}
	require.True(t, svc.Save(ctx, "b", 10).Success)

	res := svc.List(ctx)
	require.True(t, res.Success)
	require.Len(t, res.Data, 2)
	assert.Empty(t, res.Data[0].UserID)
}

func TestSave_CreatesAnonymousIdentityWhenMissing(t *testing.T) {
	id := &fakeIdentity{}
	svc, _ := newMemoryService(t, id)

	res := svc.Save(context.Background(), "Task", 5)
	require.True(t, res.Success, res.Error)
	assert.Equal(t, 1, id.created)
	assert.Equal(t, "anon-1", res.Data.UserID)
}

func TestList_CreatesAnonymousIdentityWhenMissing(t *testing.T) {
	id := &fakeIdentity{}
	svc, _ := newMemoryService(t, id)

	res := svc.List(context.Background())
	require.True(t, res.Success, res.Error)
	assert.Empty(t, res.Data)
	assert.Equal(t, 1, id.created)
}

func TestSave_AuthenticationFailures(t *testing.T) {
	t.Run("resolve fails", func(t *testing.T) {
		svc, db := newMemoryService(t, &fakeIdentity{currentErr: errors.New("session store down")})
		res := svc.Save(context.Background(), "Task", 5)
		assert.False(t, res.Success)
		assert.Equal(t, domain.KindAuthentication, res.Code)
		assert.Equal(t, "Authentication failed. Please try again.", res.Error)
		assert.Equal(t, 0, db.Len())
	})
	t.Run("anonymous creation fails", func(t *testing.T) {
		svc, db := newMemoryService(t, &fakeIdentity{createErr: errors.New("rate limited")})
		res := svc.Save(context.Background(), "Task", 5)
		assert.False(t, res.Success)
		assert.Equal(t, domain.KindAuthentication, res.Code)
		assert.Equal(t, "Failed to create anonymous user for saving records.", res.Error)
		assert.Equal(t, 0, db.Len())
	})
	t.Run("list resolve fails", func(t *testing.T) {
		svc, _ := newMemoryService(t, &fakeIdentity{currentErr: errors.New("boom")})
		res := svc.List(context.Background())
		assert.False(t, res.Success)
		assert.Equal(t, domain.KindAuthentication, res.Code)
	})
}

func TestSave_StorageFailureIsReported(t *testing.T) {
	repo := &mockRecordRepo{
		saveFn: func(context.Context, domain.TimeRecord) (domain.TimeRecord, error) {
			return domain.TimeRecord{}, domain.NewStorageError("Failed to save time record", errors.New("pq: connection refused"))
		},
	}
	svc := app.NewTimeRecordService(repo, &fakeIdentity{current: &domain.User{ID: "u1"}})

	res := svc.Save(context.Background(), "Task", 5)
	assert.False(t, res.Success)
	assert.Equal(t, domain.KindStorage, res.Code)
	assert.Equal(t, "Failed to save time record", res.Error)
	assert.NotContains(t, res.Error, "pq:")
}

func TestList_StorageFailureIsReported(t *testing.T) {
	repo := &mockRecordRepo{
		listFn: func(context.Context, string) ([]domain.TimeRecord, error) {
			return nil, domain.NewStorageError("Failed to fetch time records", errors.New("timeout"))
		},
	}
	svc := app.NewTimeRecordService(repo, &fakeIdentity{current: &domain.User{ID: "u1"}})

	res := svc.List(context.Background())
	assert.False(t, res.Success)
	assert.Equal(t, domain.KindStorage, res.Code)
	assert.Equal(t, "Failed to fetch time records", res.Error)
}

func TestSave_UnexpectedErrorsBecomeUnknown(t *testing.T) {
	repo := &mockRecordRepo{
		saveFn: func(context.Context, domain.TimeRecord) (domain.TimeRecord, error) {
			return domain.TimeRecord{}, errors.New("something odd")
		},
	}
	svc := app.NewTimeRecordService(repo, &fakeIdentity{current: &domain.User{ID: "u1"}})

	res := svc.Save(context.Background(), "Task", 5)
	assert.False(t, res.Success)
	assert.Equal(t, domain.KindUnknown, res.Code)
}

func TestUseCases_RecoverPanics(t *testing.T) {
	repo := &mockRecordRepo{
		saveFn: func(context.Context, domain.TimeRecord) (domain.TimeRecord, error) { panic("driver bug") },
		listFn: func(context.Context, string) ([]domain.TimeRecord, error) { panic("driver bug") },
	}
	svc := app.NewTimeRecordService(repo, &fakeIdentity{current: &domain.User{ID: "u1"}})

	save := svc.Save(context.Background(), "Task", 5)
	assert.False(t, save.Success)
	assert.Equal(t, domain.KindUnknown, save.Code)

	list := svc.List(context.Background())
	assert.False(t, list.Success)
	assert.Equal(t, domain.KindUnknown, list.Code)
}

func TestSave_PassesOwnerToRepository(t *testing.T) {
	var saved domain.TimeRecord
	repo := &mockRecordRepo{
		saveFn: func(_ context.Context, rec domain.TimeRecord) (domain.TimeRecord, error) {
			saved = rec
			return rec, nil
		},
	}
	svc := app.NewTimeRecordService(repo, &fakeIdentity{current: &domain.User{ID: "owner-7"}})
	require.True(t, svc.Save(context.Background(), "Task", 5).Success)
	assert.Equal(t, "owner-7", saved.UserID)
}

func TestResult_FailureJSON(t *testing.T) {
	b, err := json.Marshal(app.Fail[[]domain.TimeRecord](domain.KindValidation, "Description is required"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"success":false,"error":"Description is required","code":"VALIDATION_ERROR"}`, string(b))
}
