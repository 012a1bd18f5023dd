package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/account-service/internal/domain"
	"github.com/spec-kit/account-service/internal/events"
)

type memoryAuditRepo struct {
	mu      sync.Mutex
	entries []domain.AuditLog
	err     error
}

func (r *memoryAuditRepo) Create(_ context.Context, entry *domain.AuditLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.entries = append(r.entries, *entry)
	return nil
}

func (r *memoryAuditRepo) ListByTarget(_ context.Context, targetID string, _ int) ([]*domain.AuditLog, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.AuditLog
	for i := range r.entries {
		if r.entries[i].TargetID == targetID {
			e := r.entries[i]
			out = append(out, &e)
		}
	}
	return out, nil
}

func (r *memoryAuditRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

func TestAuditService_PersistsEvents(t *testing.T) {
	t.Parallel()

	dispatcher := events.NewInMemoryDispatcher(zap.NewNop())
	repo := &memoryAuditRepo{}
	svc := NewAuditService(dispatcher, repo, zap.NewNop(), 8)
	svc.RegisterHandlers()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		svc.Run(ctx)
		close(done)
	}()

	require.NoError(t, dispatcher.Publish(context.Background(), events.Event{
		Type:     events.EventAdminPasswordReset,
		Actor:    events.Actor{UserID: "root", Role: domain.RoleSuperAdmin},
		TargetID: "u1",
		Meta:     events.RequestMeta{IPAddress: "10.0.0.1", UserAgent: "test"},
		Status:   domain.AuditFailure,
		Payload:  events.AdminPasswordResetPayload("locked", "user not found"),
	}))
	require.NoError(t, dispatcher.Publish(context.Background(), events.Event{
		Type:     events.EventUserLoggedIn,
		Actor:    events.Actor{UserID: "u1", Role: domain.RoleUser},
		TargetID: "u1",
	}))

	assert.Eventually(t, func() bool { return repo.count() == 2 }, time.Second, 5*time.Millisecond)
	cancel()
	<-done

	history, err := svc.History(context.Background(), "u1", 10)
	require.NoError(t, err)
	require.Len(t, history, 2)

	reset := history[0]
	assert.Equal(t, domain.OperationAdmin, reset.OperationType)
	assert.Equal(t, domain.AuditFailure, reset.Status)
	assert.Equal(t, "admin_password_reset", reset.Action)
	assert.Equal(t, "10.0.0.1", reset.IPAddress)
	assert.Equal(t, "user not found", reset.Details["error"])

	login := history[1]
	assert.Equal(t, domain.OperationUser, login.OperationType)
	assert.Equal(t, domain.AuditSuccess, login.Status)
}

func TestAuditService_DrainsAndWritesAfterStop(t *testing.T) {
	t.Parallel()

	dispatcher := events.NewInMemoryDispatcher(nil)
	repo := &memoryAuditRepo{}
	svc := NewAuditService(dispatcher, repo, zap.NewNop(), 8)
	svc.RegisterHandlers()

	require.NoError(t, dispatcher.Publish(context.Background(), events.Event{Type: events.EventPasswordChanged, TargetID: "u1"}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	svc.Run(ctx)
	assert.Equal(t, 1, repo.count())

	// after shutdown entries are written inline
	require.NoError(t, dispatcher.Publish(context.Background(), events.Event{Type: events.EventProfileUpdated, TargetID: "u1"}))
	assert.Equal(t, 2, repo.count())
}

func TestAuditService_WriteFailureIsSwallowed(t *testing.T) {
	t.Parallel()

	dispatcher := events.NewInMemoryDispatcher(nil)
	svc := NewAuditService(dispatcher, &memoryAuditRepo{err: errors.New("db down")}, zap.NewNop(), 1)
	svc.RegisterHandlers()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	svc.Run(ctx)

	assert.NoError(t, dispatcher.Publish(context.Background(), events.Event{Type: events.EventUserRegistered}))
}

func TestAuditService_WithoutRepository(t *testing.T) {
	t.Parallel()

	svc := NewAuditService(nil, nil, zap.NewNop(), 0)
	history, err := svc.History(context.Background(), "u1", 10)
	require.NoError(t, err)
	assert.Empty(t, history)
}
