package service

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"github.com/boddenberg/grambank-ledger-go/internal/domain"
	"github.com/boddenberg/grambank-ledger-go/internal/infra/observability"
	"github.com/boddenberg/grambank-ledger-go/internal/port"
)

var reconcileTracer = otel.Tracer("service/reconcile")

// Reconciler scans the audit trail for debit legs whose internal receiver
// never got the paired credit leg. It reports; it never moves money.
type Reconciler struct {
	txns     port.TransactionStore
	window   time.Duration
	interval time.Duration
	metrics  *observability.Metrics
	logger   *zap.Logger
	now      func() time.Time
}

// NewReconciler creates a reconciler looking back window on each pass.
func NewReconciler(txns port.TransactionStore, window, interval time.Duration, metrics *observability.Metrics, logger *zap.Logger) *Reconciler {
	return &Reconciler{txns: txns, window: window, interval: interval, metrics: metrics, logger: logger, now: time.Now}
}

// Run performs one pass over records created since the given instant.
func (r *Reconciler) Run(ctx context.Context, since time.Time) (*domain.ReconciliationReport, error) {
	ctx, span := reconcileTracer.Start(ctx, "Reconciler.Run")
	defer span.End()

	unpaired, scanned, err := r.txns.ListUnpairedDebits(ctx, since)
	if err != nil {
		return nil, fmt.Errorf("list unpaired debits: %w", err)
	}
	if unpaired == nil {
		unpaired = []domain.UnpairedDebit{}
	}

	r.metrics.SetReconcileUnpaired(len(unpaired))
	for _, u := range unpaired {
		r.logger.Warn("unpaired debit leg",
			zap.String("txn_id", u.TxnID),
			zap.String("account_id", u.AccountID),
			zap.String("receiver_id", u.ReceiverAccountID),
			zap.Float64("amount", u.Amount),
			zap.Time("created_at", u.CreatedAt),
		)
	}

	return &domain.ReconciliationReport{
		Since:     since,
		Scanned:   scanned,
		Unpaired:  unpaired,
		CheckedAt: r.now(),
	}, nil
}

// RunWindow performs one pass over the configured look-back window.
func (r *Reconciler) RunWindow(ctx context.Context) (*domain.ReconciliationReport, error) {
	return r.Run(ctx, r.now().Add(-r.window))
}

// Start runs a pass every interval until ctx is cancelled.
func (r *Reconciler) Start(ctx context.Context) {
	r.logger.Info("reconciler started", zap.Duration("interval", r.interval), zap.Duration("window", r.window))

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("reconciler stopped")
			return
		case <-ticker.C:
			report, err := r.RunWindow(ctx)
			if err != nil {
				r.logger.Error("reconciliation pass failed", zap.Error(err))
				continue
			}
			if len(report.Unpaired) > 0 {
				r.logger.Warn("reconciliation found unpaired debits",
					zap.Int("unpaired", len(report.Unpaired)),
					zap.Int("scanned", report.Scanned),
				)
			}
		}
	}
}
