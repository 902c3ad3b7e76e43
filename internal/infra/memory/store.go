// Package memory is an in-process implementation of the ledger's stores.
// It backs local development and tests; every write is atomic per document,
// mirroring what the document database offers.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/boddenberg/grambank-ledger-go/internal/domain"
)

// Store implements port.AccountStore, port.TransactionStore,
// port.BlacklistRegistry and port.OTPStore.
type Store struct {
	mu sync.RWMutex

	accounts map[string]*domain.Account
	byNumber map[string]string
	byUPI    map[string]string

	txns   []domain.TransactionRecord
	txnIDs map[string]struct{}

	blacklist map[string]domain.BlacklistEntry
	otps      map[string]domain.OTPRecord
}

// New returns an empty store.
func New() *Store {
	return &Store{
		accounts:  make(map[string]*domain.Account),
		byNumber:  make(map[string]string),
		byUPI:     make(map[string]string),
		txnIDs:    make(map[string]struct{}),
		blacklist: make(map[string]domain.BlacklistEntry),
		otps:      make(map[string]domain.OTPRecord),
	}
}

// PutAccount inserts or replaces an account. It stands in for the identity
// collaborator that owns account provisioning.
func (s *Store) PutAccount(acc domain.Account) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if acc.Status == "" {
		acc.Status = domain.AccountActive
	}
	if acc.CreatedAt.IsZero() {
		acc.CreatedAt = time.Now()
	}
	s.accounts[acc.ID] = &acc
	if acc.AccountNumber != "" {
		s.byNumber[acc.AccountNumber] = acc.ID
	}
	if acc.UPIID != "" {
		s.byUPI[acc.UPIID] = acc.ID
	}
}

// Ping always succeeds.
func (s *Store) Ping(context.Context) error { return nil }

// ============================================================
// Accounts
// ============================================================

func (s *Store) GetAccount(_ context.Context, id string) (*domain.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.accountCopy(id, id)
}

func (s *Store) GetAccountByNumber(_ context.Context, accountNumber string) (*domain.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.accountCopy(s.byNumber[accountNumber], accountNumber)
}

func (s *Store) GetAccountByUPI(_ context.Context, upiID string) (*domain.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.accountCopy(s.byUPI[upiID], upiID)
}

func (s *Store) accountCopy(id, key string) (*domain.Account, error) {
	acc, ok := s.accounts[id]
	if !ok {
		return nil, &domain.ErrNotFound{Resource: "account", ID: key}
	}
	cp := *acc
	return &cp, nil
}

func (s *Store) CompareAndSwapBalance(_ context.Context, id string, expected, next float64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	acc, ok := s.accounts[id]
	if !ok {
		return false, &domain.ErrNotFound{Resource: "account", ID: id}
	}
	if acc.Balance != expected {
		return false, nil
	}
	acc.Balance = next
	acc.TransactionsCount++
	return true, nil
}

func (s *Store) SetAccountStatus(_ context.Context, id string, status domain.AccountStatus) (*domain.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	acc, ok := s.accounts[id]
	if !ok {
		return nil, &domain.ErrNotFound{Resource: "account", ID: id}
	}
	acc.Status = status
	cp := *acc
	return &cp, nil
}

func (s *Store) CountAccountsByStatus(_ context.Context, status domain.AccountStatus) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for _, acc := range s.accounts {
		if acc.Status == status {
			n++
		}
	}
	return n, nil
}

// ============================================================
// Transactions
// ============================================================

func (s *Store) InsertTransaction(_ context.Context, rec *domain.TransactionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.insertLocked(*rec)
}

func (s *Store) InsertTransactions(_ context.Context, recs []domain.TransactionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, r := range recs {
		if _, dup := s.txnIDs[r.TxnID]; dup {
			return fmt.Errorf("insert transactions: duplicate txn_id %s", r.TxnID)
		}
	}
	for _, r := range recs {
		_ = s.insertLocked(r)
	}
	return nil
}

func (s *Store) insertLocked(rec domain.TransactionRecord) error {
	if _, dup := s.txnIDs[rec.TxnID]; dup {
		return fmt.Errorf("insert transaction: duplicate txn_id %s", rec.TxnID)
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	s.txnIDs[rec.TxnID] = struct{}{}
	s.txns = append(s.txns, rec)
	return nil
}

func (s *Store) ListTransactions(_ context.Context, accountID string, fraudOnly bool, limit int) ([]domain.TransactionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.newestFirst(limit, func(r *domain.TransactionRecord) bool {
		return r.AccountID == accountID && (!fraudOnly || r.IsFraud)
	}), nil
}

func (s *Store) ListFraudTransactions(_ context.Context, limit int) ([]domain.TransactionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.newestFirst(limit, func(r *domain.TransactionRecord) bool { return r.IsFraud }), nil
}

// newestFirst walks the log backwards so equal timestamps keep reverse
// insertion order.
func (s *Store) newestFirst(limit int, keep func(*domain.TransactionRecord) bool) []domain.TransactionRecord {
	out := make([]domain.TransactionRecord, 0)
	for i := len(s.txns) - 1; i >= 0; i-- {
		if keep(&s.txns[i]) {
			out = append(out, s.txns[i])
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func (s *Store) CountFraudTransactions(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for i := range s.txns {
		if s.txns[i].IsFraud {
			n++
		}
	}
	return n, nil
}

func (s *Store) CountFlaggedAccounts(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[string]struct{})
	for i := range s.txns {
		if s.txns[i].IsFraud {
			seen[s.txns[i].AccountID] = struct{}{}
		}
	}
	return len(seen), nil
}

func (s *Store) ListUnpairedDebits(_ context.Context, since time.Time) ([]domain.UnpairedDebit, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.UnpairedDebit
	scanned := 0
	for i := range s.txns {
		r := &s.txns[i]
		if r.Type != domain.TxnDebit || r.ReceiverAccountID == "" || r.CreatedAt.Before(since) {
			continue
		}
		scanned++
		if _, ok := s.txnIDs[r.TxnID+domain.CreditSuffix]; ok {
			continue
		}
		out = append(out, domain.UnpairedDebit{
			TxnID:             r.TxnID,
			AccountID:         r.AccountID,
			ReceiverAccountID: r.ReceiverAccountID,
			Amount:            r.Amount,
			CreatedAt:         r.CreatedAt,
		})
	}
	return out, scanned, nil
}

// ============================================================
// Blacklist
// ============================================================

func (s *Store) FindBlacklisted(_ context.Context, accountNumber string) (*domain.BlacklistEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.blacklist[accountNumber]
	if !ok {
		return nil, nil
	}
	return &e, nil
}

func (s *Store) AddBlacklisted(_ context.Context, entry *domain.BlacklistEntry) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.blacklist[entry.AccountNumber]; ok {
		return false, nil
	}
	e := *entry
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	s.blacklist[e.AccountNumber] = e
	return true, nil
}

func (s *Store) ListBlacklisted(_ context.Context) ([]domain.BlacklistEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.BlacklistEntry, 0, len(s.blacklist))
	for _, e := range s.blacklist {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].AccountNumber < out[j].AccountNumber
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (s *Store) CountBlacklisted(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.blacklist), nil
}

// ============================================================
// OTP
// ============================================================

func (s *Store) SaveOTP(_ context.Context, rec *domain.OTPRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.otps[rec.AccountID] = *rec
	return nil
}

func (s *Store) LatestOTP(_ context.Context, accountID string) (*domain.OTPRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.otps[accountID]
	if !ok {
		return nil, &domain.ErrNotFound{Resource: "otp", ID: accountID}
	}
	return &rec, nil
}

func (s *Store) ConsumeOTP(_ context.Context, accountID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.otps[accountID]
	delete(s.otps, accountID)
	return ok, nil
}
