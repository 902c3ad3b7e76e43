package ledger_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/boddenberg/grambank-ledger-go/internal/domain"
	"github.com/boddenberg/grambank-ledger-go/internal/infra/memory"
	"github.com/boddenberg/grambank-ledger-go/internal/infra/observability"
	"github.com/boddenberg/grambank-ledger-go/internal/ledger"
	"github.com/boddenberg/grambank-ledger-go/internal/port"
)

// --- Mock account store that loses the CAS a fixed number of times ---

type contendedStore struct {
	*memory.Store
	mu       sync.Mutex
	failures int
	casCalls int
	storeErr error
}

func (c *contendedStore) CompareAndSwapBalance(ctx context.Context, id string, expected, next float64) (bool, error) {
	c.mu.Lock()
	c.casCalls++
	if c.storeErr != nil {
		c.mu.Unlock()
		return false, c.storeErr
	}
	if c.failures > 0 {
		c.failures--
		c.mu.Unlock()
		return false, nil
	}
	c.mu.Unlock()
	return c.Store.CompareAndSwapBalance(ctx, id, expected, next)
}

func newStore(balance float64) *memory.Store {
	s := memory.New()
	s.PutAccount(domain.Account{ID: "sender", AccountNumber: "21301000000001", Balance: balance})
	s.PutAccount(domain.Account{ID: "receiver", AccountNumber: "21301000000002", Balance: 100})
	return s
}

func newLedger(store port.AccountStore, cfg ledger.Config) *ledger.Ledger {
	return ledger.New(store, cfg, observability.NewMetrics(), zap.NewNop())
}

func TestDebit_RoundsToTwoDecimals(t *testing.T) {
	store := newStore(1000.10)
	l := newLedger(store, ledger.Config{MaxAttempts: 3})

	m, err := l.Debit(context.Background(), "sender", 0.2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.BalanceBefore != 1000.10 || m.BalanceAfter != 999.90 {
		t.Errorf("expected 1000.10 -> 999.90, got %v -> %v", m.BalanceBefore, m.BalanceAfter)
	}

	acc, _ := store.GetAccount(context.Background(), "sender")
	if acc.Balance != 999.90 {
		t.Errorf("stored balance = %v, want 999.90", acc.Balance)
	}
	if acc.TransactionsCount != 1 {
		t.Errorf("transactions count = %d, want 1", acc.TransactionsCount)
	}
}

func TestCredit_AddsAmount(t *testing.T) {
	store := newStore(1000)
	l := newLedger(store, ledger.Config{MaxAttempts: 3})

	m, err := l.Credit(context.Background(), "receiver", 0.1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.BalanceAfter != 100.10 {
		t.Errorf("expected 100.10, got %v", m.BalanceAfter)
	}
}

func TestDebit_InsufficientFundsIsNotRetried(t *testing.T) {
	store := &contendedStore{Store: newStore(50)}
	l := newLedger(store, ledger.Config{MaxAttempts: 5, Backoff: time.Millisecond})

	_, err := l.Debit(context.Background(), "sender", 100)
	var insufficient *domain.ErrInsufficientFunds
	if !errors.As(err, &insufficient) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}
	if store.casCalls != 0 {
		t.Errorf("expected no CAS attempts, got %d", store.casCalls)
	}
}

func TestDebit_RetriesLostCompareAndSwap(t *testing.T) {
	store := &contendedStore{Store: newStore(1000), failures: 2}
	l := newLedger(store, ledger.Config{MaxAttempts: 5, Backoff: time.Millisecond})

	m, err := l.Debit(context.Background(), "sender", 100)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.Attempts != 3 {
		t.Errorf("expected 3 attempts, got %d", m.Attempts)
	}
	if m.BalanceAfter != 900 {
		t.Errorf("expected 900, got %v", m.BalanceAfter)
	}
}

func TestDebit_ConflictExhaustion(t *testing.T) {
	store := &contendedStore{Store: newStore(1000), failures: 100}
	l := newLedger(store, ledger.Config{MaxAttempts: 3, Backoff: time.Millisecond})

	_, err := l.Debit(context.Background(), "sender", 100)
	var conflict *domain.ErrPersistenceConflict
	if !errors.As(err, &conflict) {
		t.Fatalf("expected ErrPersistenceConflict, got %v", err)
	}
	if conflict.Attempts != 3 {
		t.Errorf("expected 3 attempts, got %d", conflict.Attempts)
	}

	acc, _ := store.GetAccount(context.Background(), "sender")
	if acc.Balance != 1000 {
		t.Errorf("balance must be untouched, got %v", acc.Balance)
	}
}

func TestDebit_StoreErrorIsNotRetried(t *testing.T) {
	store := &contendedStore{Store: newStore(1000), storeErr: errors.New("connection reset")}
	l := newLedger(store, ledger.Config{MaxAttempts: 5, Backoff: time.Millisecond})

	_, err := l.Debit(context.Background(), "sender", 100)
	if err == nil {
		t.Fatal("expected error")
	}
	if store.casCalls != 1 {
		t.Errorf("expected 1 CAS call, got %d", store.casCalls)
	}
}

func TestDebit_UnknownAccount(t *testing.T) {
	l := newLedger(newStore(1000), ledger.Config{MaxAttempts: 3})

	_, err := l.Debit(context.Background(), "ghost", 1)
	var nf *domain.ErrNotFound
	if !errors.As(err, &nf) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestDebit_FrozenAccount(t *testing.T) {
	ctx := context.Background()

	t.Run("gap reproduced when enforcement is off", func(t *testing.T) {
		store := newStore(1000)
		_, _ = store.SetAccountStatus(ctx, "sender", domain.AccountFrozen)
		l := newLedger(store, ledger.Config{MaxAttempts: 1})

		if _, err := l.Debit(ctx, "sender", 10); err != nil {
			t.Fatalf("expected debit to succeed, got %v", err)
		}
	})

	t.Run("rejected when enforcement is on", func(t *testing.T) {
		store := newStore(1000)
		_, _ = store.SetAccountStatus(ctx, "sender", domain.AccountFrozen)
		l := newLedger(store, ledger.Config{MaxAttempts: 1, EnforceFrozen: true})

		_, err := l.Debit(ctx, "sender", 10)
		var frozen *domain.ErrAccountFrozen
		if !errors.As(err, &frozen) {
			t.Fatalf("expected ErrAccountFrozen, got %v", err)
		}
	})
}

func TestDebit_ConcurrentDebitsNeverOverdraw(t *testing.T) {
	store := newStore(1000)
	l := newLedger(store, ledger.Config{MaxAttempts: 10, Backoff: time.Millisecond})

	const workers = 8
	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded := 0

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := l.Debit(context.Background(), "sender", 600)
			if err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
				return
			}
			var insufficient *domain.ErrInsufficientFunds
			var conflict *domain.ErrPersistenceConflict
			if !errors.As(err, &insufficient) && !errors.As(err, &conflict) {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if succeeded != 1 {
		t.Fatalf("expected exactly one debit to succeed, got %d", succeeded)
	}
	acc, _ := store.GetAccount(context.Background(), "sender")
	if acc.Balance != 400 {
		t.Errorf("expected balance 400, got %v", acc.Balance)
	}
}

func TestCheckSufficientFunds(t *testing.T) {
	acc := &domain.Account{Balance: 100}

	if err := ledger.CheckSufficientFunds(acc, 100); err != nil {
		t.Errorf("exact balance should be sufficient, got %v", err)
	}
	if err := ledger.CheckSufficientFunds(acc, 100.01); err == nil {
		t.Error("expected insufficient funds")
	}
}
