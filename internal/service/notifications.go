package service

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/boddenberg/grambank-ledger-go/internal/domain"
	"github.com/boddenberg/grambank-ledger-go/internal/infra/observability"
	"github.com/boddenberg/grambank-ledger-go/internal/infra/resilience"
	"github.com/boddenberg/grambank-ledger-go/internal/port"
)

// Dispatcher sends notifications as detached tasks. A send never affects the
// caller: it outlives request cancellation, is bounded by a timeout and by
// the bulkhead, and its outcome is only logged and counted.
type Dispatcher struct {
	notifier port.Notifier
	bulkhead *resilience.Bulkhead
	timeout  time.Duration
	metrics  *observability.Metrics
	logger   *zap.Logger

	wg sync.WaitGroup
}

// NewDispatcher creates a dispatcher allowing maxConcurrency in-flight sends.
func NewDispatcher(notifier port.Notifier, maxConcurrency int, timeout time.Duration, metrics *observability.Metrics, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{
		notifier: notifier,
		bulkhead: resilience.NewBulkhead(maxConcurrency),
		timeout:  timeout,
		metrics:  metrics,
		logger:   logger,
	}
}

// Dispatch schedules body for delivery to acc and returns immediately. Messages
// to accounts without a phone number are dropped.
func (d *Dispatcher) Dispatch(ctx context.Context, kind domain.NotificationKind, acc *domain.Account, body string) {
	if acc == nil || acc.PhoneNumber == "" {
		d.metrics.IncrNotification(kind, "dropped")
		return
	}
	n := &domain.Notification{
		ID:        uuid.NewString(),
		Kind:      kind,
		AccountID: acc.ID,
		To:        formatPhone(acc.PhoneNumber),
		Body:      body,
		CreatedAt: time.Now(),
	}

	detached := context.WithoutCancel(ctx)
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.deliver(detached, n)
	}()
}

func (d *Dispatcher) deliver(ctx context.Context, n *domain.Notification) {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	if err := d.bulkhead.Acquire(ctx); err != nil {
		d.metrics.IncrNotification(n.Kind, "dropped")
		d.logger.Warn("notification dropped, bulkhead full",
			zap.String("notification_id", n.ID),
			zap.String("kind", string(n.Kind)),
		)
		return
	}
	defer d.bulkhead.Release()

	if err := d.notifier.Send(ctx, n); err != nil {
		d.metrics.IncrNotification(n.Kind, "failed")
		d.logger.Warn("notification failed",
			zap.String("notification_id", n.ID),
			zap.String("kind", string(n.Kind)),
			zap.String("account_id", n.AccountID),
			zap.Error(err),
		)
		return
	}
	d.metrics.IncrNotification(n.Kind, "sent")
}

// Wait blocks until every dispatched notification finished or ctx is done.
func (d *Dispatcher) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
