// Package ledger applies single-account balance mutations with optimistic
// concurrency control and builds the immutable records of each transfer leg.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/boddenberg/grambank-ledger-go/internal/domain"
	"github.com/boddenberg/grambank-ledger-go/internal/infra/observability"
	"github.com/boddenberg/grambank-ledger-go/internal/infra/resilience"
	"github.com/boddenberg/grambank-ledger-go/internal/port"
)

var ledgerTracer = otel.Tracer("ledger")

var errBalanceMoved = errors.New("balance changed since read")

// Config bounds the compare-and-swap retry loop.
type Config struct {
	MaxAttempts   int
	Backoff       time.Duration
	EnforceFrozen bool
}

// Mutation describes one committed balance change.
type Mutation struct {
	Account       *domain.Account
	BalanceBefore float64
	BalanceAfter  float64
	Attempts      int
}

// Ledger mutates account balances one document at a time.
type Ledger struct {
	accounts port.AccountStore
	cfg      Config
	metrics  *observability.Metrics
	logger   *zap.Logger
}

// New creates a Ledger over the given account store.
func New(accounts port.AccountStore, cfg Config, metrics *observability.Metrics, logger *zap.Logger) *Ledger {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	return &Ledger{accounts: accounts, cfg: cfg, metrics: metrics, logger: logger}
}

// Debit subtracts amount from the account. It re-reads and retries when a
// concurrent writer moved the balance, and never lets the balance go
// negative.
func (l *Ledger) Debit(ctx context.Context, accountID string, amount float64) (*Mutation, error) {
	ctx, span := ledgerTracer.Start(ctx, "Ledger.Debit")
	defer span.End()
	span.SetAttributes(attribute.String("account.id", accountID), attribute.Float64("amount", amount))

	return l.mutate(ctx, accountID, func(acc *domain.Account) (float64, error) {
		if l.cfg.EnforceFrozen && acc.IsFrozen() {
			return 0, &domain.ErrAccountFrozen{AccountID: acc.ID}
		}
		if err := CheckSufficientFunds(acc, amount); err != nil {
			return 0, err
		}
		return Sub(acc.Balance, amount), nil
	})
}

// Credit adds amount to the account.
func (l *Ledger) Credit(ctx context.Context, accountID string, amount float64) (*Mutation, error) {
	ctx, span := ledgerTracer.Start(ctx, "Ledger.Credit")
	defer span.End()
	span.SetAttributes(attribute.String("account.id", accountID), attribute.Float64("amount", amount))

	return l.mutate(ctx, accountID, func(acc *domain.Account) (float64, error) {
		return Add(acc.Balance, amount), nil
	})
}

func (l *Ledger) mutate(ctx context.Context, accountID string, next func(*domain.Account) (float64, error)) (*Mutation, error) {
	start := time.Now()
	defer func() { l.metrics.RecordRequestDuration("ledger_mutation", time.Since(start)) }()

	var m Mutation
	retryCfg := resilience.Config{MaxRetries: l.cfg.MaxAttempts - 1, InitialBackoff: l.cfg.Backoff}

	err := resilience.RetryWithBackoff(ctx, retryCfg, func() error {
		m.Attempts++

		acc, err := l.accounts.GetAccount(ctx, accountID)
		if err != nil {
			return resilience.Permanent(err)
		}
		after, err := next(acc)
		if err != nil {
			return resilience.Permanent(err)
		}

		swapped, err := l.accounts.CompareAndSwapBalance(ctx, accountID, acc.Balance, after)
		if err != nil {
			return resilience.Permanent(fmt.Errorf("compare-and-swap balance: %w", err))
		}
		if !swapped {
			l.metrics.IncrCASConflict()
			l.logger.Debug("balance moved under us, retrying",
				zap.String("account_id", accountID),
				zap.Int("attempt", m.Attempts),
			)
			return errBalanceMoved
		}

		m.BalanceBefore = acc.Balance
		m.BalanceAfter = after
		acc.Balance = after
		acc.TransactionsCount++
		m.Account = acc
		return nil
	})
	if errors.Is(err, errBalanceMoved) {
		return nil, &domain.ErrPersistenceConflict{AccountID: accountID, Attempts: m.Attempts}
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}
