package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/boddenberg/grambank-ledger-go/internal/domain"
	"github.com/boddenberg/grambank-ledger-go/internal/infra/observability"
	"github.com/boddenberg/grambank-ledger-go/internal/port"
)

var adminTracer = otel.Tracer("service/admin")

const adminAlertsLimit = 500

// AdminService backs the fraud desk.
type AdminService struct {
	accounts  port.AccountStore
	txns      port.TransactionStore
	blacklist port.BlacklistRegistry
	metrics   *observability.Metrics
	logger    *zap.Logger
}

// NewAdminService creates the fraud desk service.
func NewAdminService(accounts port.AccountStore, txns port.TransactionStore, blacklist port.BlacklistRegistry, metrics *observability.Metrics, logger *zap.Logger) *AdminService {
	return &AdminService{accounts: accounts, txns: txns, blacklist: blacklist, metrics: metrics, logger: logger}
}

// Stats aggregates the dashboard counters concurrently.
func (s *AdminService) Stats(ctx context.Context) (*domain.FraudStats, error) {
	ctx, span := adminTracer.Start(ctx, "AdminService.Stats")
	defer span.End()

	var stats domain.FraudStats
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() (err error) {
		stats.SuspiciousTransactions, err = s.txns.CountFraudTransactions(gctx)
		return err
	})
	g.Go(func() (err error) {
		stats.FlaggedUsers, err = s.txns.CountFlaggedAccounts(gctx)
		return err
	})
	g.Go(func() (err error) {
		stats.HighRisk, err = s.blacklist.CountBlacklisted(gctx)
		return err
	})
	g.Go(func() (err error) {
		stats.FrozenAccounts, err = s.accounts.CountAccountsByStatus(gctx, domain.AccountFrozen)
		return err
	})

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("fraud stats: %w", err)
	}
	return &stats, nil
}

// Alerts returns fraud-flagged records across all accounts, newest first.
func (s *AdminService) Alerts(ctx context.Context) ([]domain.TransactionRecord, error) {
	ctx, span := adminTracer.Start(ctx, "AdminService.Alerts")
	defer span.End()

	return s.txns.ListFraudTransactions(ctx, adminAlertsLimit)
}

// Freeze marks an account FROZEN.
func (s *AdminService) Freeze(ctx context.Context, userID string) (*domain.Account, error) {
	return s.setStatus(ctx, userID, domain.AccountFrozen)
}

// Unfreeze marks an account ACTIVE.
func (s *AdminService) Unfreeze(ctx context.Context, userID string) (*domain.Account, error) {
	return s.setStatus(ctx, userID, domain.AccountActive)
}

func (s *AdminService) setStatus(ctx context.Context, userID string, status domain.AccountStatus) (*domain.Account, error) {
	ctx, span := adminTracer.Start(ctx, "AdminService.SetStatus")
	defer span.End()
	span.SetAttributes(attribute.String("account.id", userID), attribute.String("status", string(status)))

	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, &domain.ErrValidation{Field: "userId", Message: "userId required"}
	}

	acc, err := s.accounts.SetAccountStatus(ctx, userID, status)
	if err != nil {
		var nf *domain.ErrNotFound
		if errors.As(err, &nf) {
			return nil, &domain.ErrNotFound{Resource: "user", ID: userID, Message: "User not found"}
		}
		return nil, fmt.Errorf("set account status: %w", err)
	}
	s.logger.Info("account status changed",
		zap.String("account_id", userID),
		zap.String("status", string(status)),
	)
	return acc, nil
}

// Metrics returns the cumulative ledger counters.
func (s *AdminService) Metrics() *domain.LedgerMetrics {
	return s.metrics.Snapshot()
}
