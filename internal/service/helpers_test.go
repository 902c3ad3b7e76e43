package service_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/boddenberg/grambank-ledger-go/internal/domain"
	"github.com/boddenberg/grambank-ledger-go/internal/infra/cache"
	"github.com/boddenberg/grambank-ledger-go/internal/infra/memory"
	"github.com/boddenberg/grambank-ledger-go/internal/infra/observability"
	"github.com/boddenberg/grambank-ledger-go/internal/ledger"
	"github.com/boddenberg/grambank-ledger-go/internal/port"
	"github.com/boddenberg/grambank-ledger-go/internal/service"
)

// --- Mocks ---

type recordingNotifier struct {
	mu   sync.Mutex
	sent []domain.Notification
	err  error
}

func (n *recordingNotifier) Send(_ context.Context, msg *domain.Notification) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.sent = append(n.sent, *msg)
	return nil
}

func (n *recordingNotifier) Sent() []domain.Notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]domain.Notification(nil), n.sent...)
}

type mockAuthorizer struct {
	err   error
	calls int
}

func (m *mockAuthorizer) Authorize(_ context.Context, _, _ string) error {
	m.calls++
	return m.err
}

type failingRegistry struct {
	port.BlacklistRegistry
	err error
}

func (f *failingRegistry) FindBlacklisted(context.Context, string) (*domain.BlacklistEntry, error) {
	return nil, f.err
}

// creditFailingStore rejects every balance write on one account.
type creditFailingStore struct {
	*memory.Store
	failFor string
}

func (c *creditFailingStore) CompareAndSwapBalance(ctx context.Context, id string, expected, next float64) (bool, error) {
	if id == c.failFor {
		return false, errors.New("write timeout")
	}
	return c.Store.CompareAndSwapBalance(ctx, id, expected, next)
}

// cancellingStore cancels the request context as soon as the sender's
// debit commits, simulating a client that disconnects between the legs.
type cancellingStore struct {
	*memory.Store
	sender string
	cancel context.CancelFunc
}

func (c *cancellingStore) CompareAndSwapBalance(ctx context.Context, id string, expected, next float64) (bool, error) {
	ok, err := c.Store.CompareAndSwapBalance(ctx, id, expected, next)
	if ok && id == c.sender {
		c.cancel()
	}
	return ok, err
}

// ctxTxnStore fails writes on a cancelled context, as a network-backed
// store would.
type ctxTxnStore struct {
	*memory.Store
}

func (c ctxTxnStore) InsertTransaction(ctx context.Context, rec *domain.TransactionRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return c.Store.InsertTransaction(ctx, rec)
}

// --- Harness ---

type harness struct {
	store      *memory.Store
	auth       *mockAuthorizer
	notifier   *recordingNotifier
	dispatcher *service.Dispatcher
	metrics    *observability.Metrics
	blacklist  *service.BlacklistChecker
	svc        *service.TransferService
}

type harnessOpts struct {
	wrapAccounts      func(*memory.Store) port.AccountStore
	registry          port.BlacklistRegistry
	authorizer        func(*harness) port.Authorizer
	checkUPIBlacklist bool
}

func newHarness(t *testing.T, opts harnessOpts) *harness {
	t.Helper()

	store := memory.New()
	store.SeedDemo()
	store.SeedBlacklist()

	h := &harness{
		store:    store,
		auth:     &mockAuthorizer{},
		notifier: &recordingNotifier{},
		metrics:  observability.NewMetrics(),
	}
	logger := zap.NewNop()

	h.dispatcher = service.NewDispatcher(h.notifier, 4, time.Second, h.metrics, logger)

	var accounts port.AccountStore = store
	if opts.wrapAccounts != nil {
		accounts = opts.wrapAccounts(store)
	}
	var registry port.BlacklistRegistry = store
	if opts.registry != nil {
		registry = opts.registry
	}
	var authorizer port.Authorizer = h.auth
	if opts.authorizer != nil {
		authorizer = opts.authorizer(h)
	}

	bcache := cache.New[domain.BlacklistEntry](time.Minute)
	t.Cleanup(bcache.Close)

	h.blacklist = service.NewBlacklistChecker(registry, bcache, time.Second, h.metrics, logger)
	l := ledger.New(accounts, ledger.Config{MaxAttempts: 3, Backoff: time.Millisecond}, h.metrics, logger)
	h.svc = service.NewTransferService(accounts, ctxTxnStore{store}, authorizer, h.blacklist, l, h.dispatcher,
		service.TransferConfig{
			AuthTimeout:       time.Second,
			LookupTimeout:     time.Second,
			CheckUPIBlacklist: opts.checkUPIBlacklist,
		},
		h.metrics, logger)
	return h
}

func (h *harness) balance(t *testing.T, id string) float64 {
	t.Helper()
	acc, err := h.store.GetAccount(context.Background(), id)
	if err != nil {
		t.Fatalf("get account %s: %v", id, err)
	}
	return acc.Balance
}

func (h *harness) records(t *testing.T, id string) []domain.TransactionRecord {
	t.Helper()
	recs, err := h.store.ListTransactions(context.Background(), id, false, 0)
	if err != nil {
		t.Fatalf("list transactions %s: %v", id, err)
	}
	return recs
}

func (h *harness) drain(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := h.dispatcher.Wait(ctx); err != nil {
		t.Fatalf("notifications did not drain: %v", err)
	}
}

var (
	asha  = memory.DemoAccounts[0]
	ravi  = memory.DemoAccounts[1]
	meena = memory.DemoAccounts[2]
)

func accountTransfer(to string, amount float64) *domain.TransferRequest {
	return &domain.TransferRequest{
		Kind:            domain.TransferAccount,
		SenderID:        asha.ID,
		ToAccount:       to,
		IFSC:            "GRAM0000001",
		BeneficiaryName: "Beneficiary",
		Amount:          amount,
		OTP:             "1234",
	}
}

func upiTransfer(to string, amount float64) *domain.TransferRequest {
	return &domain.TransferRequest{
		Kind:     domain.TransferUPI,
		SenderID: asha.ID,
		ToUPI:    to,
		Amount:   amount,
		OTP:      "1234",
	}
}

func f64(v float64) *float64 { return &v }
func intp(v int) *int        { return &v }
