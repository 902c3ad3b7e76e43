package service

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/boddenberg/grambank-ledger-go/internal/domain"
	"github.com/boddenberg/grambank-ledger-go/internal/ledger"
	"github.com/boddenberg/grambank-ledger-go/internal/port"
)

var historyTracer = otel.Tracer("service/history")

const (
	historyLimit = 200
	recentLimit  = 5
	seedBatch    = 10
)

// HistoryService serves read models over the audit trail.
type HistoryService struct {
	accounts port.AccountStore
	txns     port.TransactionStore
	logger   *zap.Logger
	now      func() time.Time
}

// NewHistoryService creates a history service.
func NewHistoryService(accounts port.AccountStore, txns port.TransactionStore, logger *zap.Logger) *HistoryService {
	return &HistoryService{accounts: accounts, txns: txns, logger: logger, now: time.Now}
}

// History returns the account's most recent records, newest first.
func (s *HistoryService) History(ctx context.Context, accountID string) ([]domain.TransactionRecord, error) {
	ctx, span := historyTracer.Start(ctx, "HistoryService.History")
	defer span.End()
	span.SetAttributes(attribute.String("account.id", accountID))

	return s.txns.ListTransactions(ctx, accountID, false, historyLimit)
}

// Alerts returns the account's fraud-flagged records, newest first.
func (s *HistoryService) Alerts(ctx context.Context, accountID string) ([]domain.TransactionRecord, error) {
	ctx, span := historyTracer.Start(ctx, "HistoryService.Alerts")
	defer span.End()
	span.SetAttributes(attribute.String("account.id", accountID))

	return s.txns.ListTransactions(ctx, accountID, true, historyLimit)
}

// Balance returns the account summary with its latest records.
func (s *HistoryService) Balance(ctx context.Context, accountID string) (*domain.BalanceSummary, error) {
	ctx, span := historyTracer.Start(ctx, "HistoryService.Balance")
	defer span.End()

	acc, err := s.accounts.GetAccount(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("get account: %w", err)
	}
	recent, err := s.txns.ListTransactions(ctx, accountID, false, recentLimit)
	if err != nil {
		return nil, fmt.Errorf("list recent transactions: %w", err)
	}

	items := make([]domain.RecentTxnItem, 0, len(recent))
	for _, r := range recent {
		items = append(items, domain.RecentTxnItem{
			TxnID:     r.TxnID,
			Amount:    r.Amount,
			Type:      r.Type,
			CreatedAt: r.CreatedAt,
		})
	}
	return &domain.BalanceSummary{
		Name:          acc.Name,
		AccountNumber: acc.AccountNumber,
		Balance:       acc.Balance,
		UPIID:         acc.UPIID,
		Recent:        items,
	}, nil
}

// SeedFraud writes a batch of synthetic flagged records cycling through the
// large-amount, location and device rules. Flagged transfers never move
// money, so every record keeps balance_after == balance_before and the
// account balance is untouched.
func (s *HistoryService) SeedFraud(ctx context.Context, accountID string) (int, float64, error) {
	ctx, span := historyTracer.Start(ctx, "HistoryService.SeedFraud")
	defer span.End()

	acc, err := s.accounts.GetAccount(ctx, accountID)
	if err != nil {
		return 0, 0, fmt.Errorf("get account: %w", err)
	}

	balance := acc.Balance
	if balance <= 0 {
		balance = 5000
	}

	now := s.now()
	txnsLast24h := 20
	avgAmount := 2000.0
	recs := make([]domain.TransactionRecord, 0, seedBatch)

	for i := 0; i < seedBatch; i++ {
		var amount, locationKm float64
		foreign := 0
		var reason string

		switch i % 3 {
		case 0:
			amount = float64(int(balance * (0.85 + rand.Float64()*0.1)))
			locationKm = float64(rand.Intn(5))
			reason = domain.ReasonLargeTxn
		case 1:
			amount = float64(500 + rand.Intn(1500))
			locationKm = float64(150 + rand.Intn(500))
			reason = domain.ReasonLocationJump
		default:
			amount = float64(300 + rand.Intn(2000))
			locationKm = float64(rand.Intn(30))
			foreign = 1
			reason = domain.ReasonForeignDevice
		}
		if amount > balance {
			amount = float64(int(balance * 0.9))
		}

		loc := locationKm
		r := reason
		recs = append(recs, domain.TransactionRecord{
			TxnID:           fmt.Sprintf("%s-%d", ledger.NewTxnID(ledger.PrefixSeed), i),
			AccountID:       acc.ID,
			Type:            domain.TxnDebit,
			ToAccount:       fmt.Sprintf("BEN%d", rand.Intn(10000)),
			IFSC:            "SEED0000",
			BeneficiaryName: "Seed Beneficiary",
			Amount:          amount,
			BalanceBefore:   acc.Balance,
			BalanceAfter:    acc.Balance,
			Hour:            now.Hour(),
			Day:             int(now.Weekday()),
			TxnsLast24h:     &txnsLast24h,
			AvgAmount7d:     &avgAmount,
			LocationDeltaKm: &loc,
			IsForeignDevice: foreign,
			IsFraud:         true,
			FraudReason:     &r,
			TxnBlocked:      true,
			CreatedAt:       now,
		})
	}

	if err := s.txns.InsertTransactions(ctx, recs); err != nil {
		return 0, 0, fmt.Errorf("insert seed records: %w", err)
	}
	s.logger.Info("seeded synthetic fraud records",
		zap.String("account_id", acc.ID),
		zap.Int("count", len(recs)),
	)
	return len(recs), acc.Balance, nil
}
