package worker

import (
	"context"
	"sync"

	"github.com/spec-kit/account-service/internal/service"
)

// AuditWorker owns the goroutine persisting audit entries.
type AuditWorker struct {
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// StartAuditWorker registers audit handlers and starts the writer.
func StartAuditWorker(ctx context.Context, auditService *service.AuditService) *AuditWorker {
	w := &AuditWorker{}
	if auditService == nil {
		return w
	}
	auditService.RegisterHandlers()

	ctx, w.cancel = context.WithCancel(ctx)
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		auditService.Run(ctx)
	}()
	return w
}

// Stop cancels the writer and waits for queued entries to flush.
func (w *AuditWorker) Stop() {
	if w == nil || w.cancel == nil {
		return
	}
	w.cancel()
	w.wg.Wait()
}
