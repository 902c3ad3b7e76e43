// Package port defines the interfaces (ports) for the ledger's collaborators.
// Following hexagonal architecture, these ports decouple the domain/service
// layer from concrete persistence, lookup and delivery implementations.
package port

import (
	"context"
	"time"

	"github.com/boddenberg/grambank-ledger-go/internal/domain"
)

// Cache provides generic caching with TTL.
type Cache[T any] interface {
	Get(key string) (T, bool)
	Set(key string, value T)
	Delete(key string)
}

// AccountStore reads accounts and applies single-document balance updates.
// The backing store is assumed to offer per-document atomic writes only.
type AccountStore interface {
	// GetAccount returns *domain.ErrNotFound when the id is unknown.
	GetAccount(ctx context.Context, id string) (*domain.Account, error)
	GetAccountByNumber(ctx context.Context, accountNumber string) (*domain.Account, error)
	GetAccountByUPI(ctx context.Context, upiID string) (*domain.Account, error)

	// CompareAndSwapBalance writes next only if the stored balance still
	// equals expected, incrementing the transaction counter in the same
	// write. It reports false (and no error) when the balance moved.
	CompareAndSwapBalance(ctx context.Context, id string, expected, next float64) (bool, error)

	SetAccountStatus(ctx context.Context, id string, status domain.AccountStatus) (*domain.Account, error)
	CountAccountsByStatus(ctx context.Context, status domain.AccountStatus) (int, error)
}

// TransactionStore is the append-only audit trail.
type TransactionStore interface {
	InsertTransaction(ctx context.Context, rec *domain.TransactionRecord) error
	InsertTransactions(ctx context.Context, recs []domain.TransactionRecord) error

	// ListTransactions returns the account's records newest first.
	// A limit <= 0 means no limit.
	ListTransactions(ctx context.Context, accountID string, fraudOnly bool, limit int) ([]domain.TransactionRecord, error)
	ListFraudTransactions(ctx context.Context, limit int) ([]domain.TransactionRecord, error)
	CountFraudTransactions(ctx context.Context) (int, error)
	CountFlaggedAccounts(ctx context.Context) (int, error)

	// ListUnpairedDebits returns debit legs created at or after since whose
	// receiver is internal but which have no "-CREDIT" leg, plus the number
	// of candidate debit legs scanned.
	ListUnpairedDebits(ctx context.Context, since time.Time) ([]domain.UnpairedDebit, int, error)
}

// BlacklistRegistry answers whether a destination has been reported.
type BlacklistRegistry interface {
	// FindBlacklisted returns nil, nil when the account is not reported.
	FindBlacklisted(ctx context.Context, accountNumber string) (*domain.BlacklistEntry, error)
	// AddBlacklisted reports false when the account was already listed.
	AddBlacklisted(ctx context.Context, entry *domain.BlacklistEntry) (bool, error)
	ListBlacklisted(ctx context.Context) ([]domain.BlacklistEntry, error)
	CountBlacklisted(ctx context.Context) (int, error)
}

// OTPStore keeps at most one live code per account.
type OTPStore interface {
	SaveOTP(ctx context.Context, rec *domain.OTPRecord) error
	// LatestOTP returns *domain.ErrNotFound when no code is stored.
	LatestOTP(ctx context.Context, accountID string) (*domain.OTPRecord, error)
	// ConsumeOTP deletes the stored code atomically and reports whether
	// there was one to delete.
	ConsumeOTP(ctx context.Context, accountID string) (bool, error)
}

// Authorizer validates a transfer authorization proof for an account.
type Authorizer interface {
	Authorize(ctx context.Context, accountID, proof string) error
}

// Notifier delivers a single message. Callers treat it as best-effort.
type Notifier interface {
	Send(ctx context.Context, n *domain.Notification) error
}

// HealthChecker is implemented by backends that can report readiness.
type HealthChecker interface {
	Ping(ctx context.Context) error
}
