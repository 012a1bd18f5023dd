package service

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/account-service/internal/domain"
	"github.com/spec-kit/account-service/internal/events"
	"github.com/spec-kit/account-service/internal/repository"
)

const (
	defaultAuditQueueSize = 256
	auditWriteTimeout     = 5 * time.Second
)

// AuditService turns account events into audit log entries. Entries are
// queued by the dispatcher and written by Run, off the request path.
type AuditService struct {
	dispatcher events.Dispatcher
	repo       repository.AuditRepository
	logger     *zap.Logger
	queue      chan domain.AuditLog

	mu     sync.RWMutex
	closed bool
}

// NewAuditService creates the service. repo may be nil, in which case
// entries are only logged.
func NewAuditService(dispatcher events.Dispatcher, repo repository.AuditRepository, logger *zap.Logger, queueSize int) *AuditService {
	if queueSize <= 0 {
		queueSize = defaultAuditQueueSize
	}
	return &AuditService{
		dispatcher: dispatcher,
		repo:       repo,
		logger:     logger,
		queue:      make(chan domain.AuditLog, queueSize),
	}
}

// RegisterHandlers subscribes to every account event.
func (a *AuditService) RegisterHandlers() {
	if a.dispatcher == nil {
		return
	}
	for _, t := range events.AllEventTypes {
		a.dispatcher.Subscribe(t, a.handleEvent)
	}
}

func (a *AuditService) handleEvent(_ context.Context, event events.Event) error {
	entry := auditEntryFromEvent(event)

	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.closed {
		a.write(context.Background(), entry)
		return nil
	}

	select {
	case a.queue <- entry:
	default:
		a.logger.Warn("audit queue full; dropping entry",
			zap.String("action", entry.Action),
			zap.String("operator_id", entry.OperatorID))
	}
	return nil
}

// Run writes queued entries until ctx is cancelled, then drains the queue.
func (a *AuditService) Run(ctx context.Context) {
	for {
		select {
		case entry := <-a.queue:
			a.write(ctx, entry)
		case <-ctx.Done():
			a.drain()
			return
		}
	}
}

func (a *AuditService) drain() {
	a.mu.Lock()
	a.closed = true
	a.mu.Unlock()

	for {
		select {
		case entry := <-a.queue:
			a.write(context.Background(), entry)
		default:
			return
		}
	}
}

// History returns the most recent entries targeting a user.
func (a *AuditService) History(ctx context.Context, targetID string, limit int) ([]*domain.AuditLog, error) {
	if a.repo == nil {
		return []*domain.AuditLog{}, nil
	}
	return a.repo.ListByTarget(ctx, targetID, limit)
}

func (a *AuditService) write(ctx context.Context, entry domain.AuditLog) {
	fields := []zap.Field{
		zap.String("action", entry.Action),
		zap.String("operation_type", string(entry.OperationType)),
		zap.String("operator_id", entry.OperatorID),
		zap.String("target_id", entry.TargetID),
		zap.String("status", string(entry.Status)),
	}
	if a.repo == nil {
		a.logger.Info("audit", fields...)
		return
	}

	// the request context may already be gone
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), auditWriteTimeout)
	defer cancel()
	if err := a.repo.Create(writeCtx, &entry); err != nil {
		a.logger.Error("audit write failed", append(fields, zap.Error(err))...)
	}
}

func auditEntryFromEvent(event events.Event) domain.AuditLog {
	opType := domain.OperationUser
	if event.Type == events.EventAdminPasswordReset {
		opType = domain.OperationAdmin
	}
	status := event.Status
	if status == "" {
		status = domain.AuditSuccess
	}
	return domain.AuditLog{
		ID:            event.ID,
		OperationType: opType,
		OperatorID:    event.Actor.UserID,
		OperatorRole:  event.Actor.Role,
		TargetID:      event.TargetID,
		TargetType:    "user",
		Action:        string(event.Type),
		IPAddress:     event.Meta.IPAddress,
		UserAgent:     event.Meta.UserAgent,
		Details:       event.Payload,
		Status:        status,
		CreatedAt:     event.Timestamp,
	}
}
