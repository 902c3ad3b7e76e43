package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/boddenberg/grambank-ledger-go/internal/domain"
	"github.com/boddenberg/grambank-ledger-go/internal/handler"
	"github.com/boddenberg/grambank-ledger-go/internal/infra/cache"
	"github.com/boddenberg/grambank-ledger-go/internal/infra/memory"
	"github.com/boddenberg/grambank-ledger-go/internal/infra/observability"
	"github.com/boddenberg/grambank-ledger-go/internal/ledger"
	"github.com/boddenberg/grambank-ledger-go/internal/port"
	"github.com/boddenberg/grambank-ledger-go/internal/service"
)

// --- Mocks ---

type nopNotifier struct{}

func (nopNotifier) Send(context.Context, *domain.Notification) error { return nil }

type downChecker struct{}

func (downChecker) Ping(context.Context) error { return errors.New("connection refused") }

// --- Fixture ---

const testSecret = "handler-test-secret"

type fixture struct {
	router http.Handler
	store  *memory.Store
	tokens *service.TokenService
}

func newFixture(t *testing.T, opts handler.Options) *fixture {
	t.Helper()
	logger := zap.NewNop()
	metrics := observability.NewMetrics()

	store := memory.New()
	store.SeedDemo()
	store.SeedBlacklist()

	bcache := cache.New[domain.BlacklistEntry](time.Minute)
	t.Cleanup(bcache.Close)

	dispatcher := service.NewDispatcher(nopNotifier{}, 4, time.Second, metrics, logger)
	otp := service.NewOTPService(store, store, dispatcher, 5*time.Minute, true, logger)
	blacklist := service.NewBlacklistChecker(store, bcache, time.Second, metrics, logger)
	l := ledger.New(store, ledger.Config{MaxAttempts: 3, Backoff: time.Millisecond}, metrics, logger)
	tokens := service.NewTokenService(testSecret, time.Hour)

	svc := handler.Services{
		Transfers: service.NewTransferService(store, store, otp, blacklist, l, dispatcher,
			service.TransferConfig{AuthTimeout: time.Second, LookupTimeout: time.Second}, metrics, logger),
		OTP:        otp,
		History:    service.NewHistoryService(store, store, logger),
		Blacklist:  blacklist,
		Admin:      service.NewAdminService(store, store, store, metrics, logger),
		Reconciler: service.NewReconciler(store, time.Hour, time.Minute, metrics, logger),
		Tokens:     tokens,
	}
	return &fixture{router: handler.NewRouter(svc, opts, metrics, logger), store: store, tokens: tokens}
}

func (f *fixture) token(t *testing.T, accountID, role string) string {
	t.Helper()
	tok, err := f.tokens.IssueAccessToken(accountID, role)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	return tok
}

func (f *fixture) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func (f *fixture) otp(t *testing.T, token string) string {
	t.Helper()
	rec := f.do(t, http.MethodPost, "/api/txns/send-otp", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("send-otp: %d %s", rec.Code, rec.Body.String())
	}
	var issued domain.OTPIssued
	if err := json.NewDecoder(rec.Body).Decode(&issued); err != nil {
		t.Fatal(err)
	}
	return issued.OTP
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&out); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return out
}

var (
	asha = memory.DemoAccounts[0]
	ravi = memory.DemoAccounts[1]
)

// --- Operational endpoints ---

func TestOperationalEndpoints(t *testing.T) {
	router := handler.NewRouter(handler.Services{}, handler.Options{}, observability.NewMetrics(), zap.NewNop())

	for _, path := range []string{"/healthz", "/readyz", "/metrics", "/ping"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Errorf("%s: expected 200, got %d", path, rec.Code)
		}
	}
}

func TestReadyz_DegradedBackend(t *testing.T) {
	router := handler.NewRouter(handler.Services{},
		handler.Options{Health: map[string]port.HealthChecker{"postgres": downChecker{}}},
		observability.NewMetrics(), zap.NewNop())

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	var status domain.HealthStatus
	if err := json.NewDecoder(rec.Body).Decode(&status); err != nil {
		t.Fatal(err)
	}
	if status.Status != "degraded" || len(status.Services) != 2 {
		t.Errorf("unexpected health %+v", status)
	}
}

// --- Auth ---

func TestAPI_RequiresBearerToken(t *testing.T) {
	f := newFixture(t, handler.Options{})

	if rec := f.do(t, http.MethodGet, "/api/txns/history", "", nil); rec.Code != http.StatusUnauthorized {
		t.Errorf("missing token: expected 401, got %d", rec.Code)
	}
	if rec := f.do(t, http.MethodGet, "/api/txns/history", "garbage", nil); rec.Code != http.StatusUnauthorized {
		t.Errorf("bad token: expected 401, got %d", rec.Code)
	}
}

// --- Transfers ---

func TestSend_Settled(t *testing.T) {
	f := newFixture(t, handler.Options{})
	tok := f.token(t, asha.ID, domain.RoleUser)

	rec := f.do(t, http.MethodPost, "/api/txns/send", tok, map[string]any{
		"to_account":       ravi.AccountNumber,
		"ifsc":             "GRAM0000001",
		"beneficiary_name": "Ravi",
		"amount":           "250.50",
		"otp":              f.otp(t, tok),
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d %s", rec.Code, rec.Body.String())
	}
	body := decode(t, rec)
	if body["message"] != domain.MsgSettled || body["is_fraud"] != false {
		t.Errorf("unexpected body %v", body)
	}
	if id, _ := body["txn_id"].(string); !strings.HasPrefix(id, "TXN-") {
		t.Errorf("unexpected txn id %v", body["txn_id"])
	}
	if body["balance_after"] != 14749.5 {
		t.Errorf("unexpected balance_after %v", body["balance_after"])
	}
}

func TestSend_ErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		body   map[string]any
		otp    bool
		status int
		errMsg string
	}{
		{"missing details", map[string]any{"to_account": ravi.AccountNumber, "amount": 10}, true, http.StatusBadRequest, domain.MsgMissingDetails},
		{"non numeric amount", map[string]any{"to_account": ravi.AccountNumber, "ifsc": "X", "amount": "abc"}, true, http.StatusBadRequest, domain.MsgInvalidAmount},
		{"three decimals", map[string]any{"to_account": ravi.AccountNumber, "ifsc": "X", "amount": 10.555}, true, http.StatusBadRequest, domain.MsgInvalidAmount},
		{"overflowing amount", map[string]any{"to_account": ravi.AccountNumber, "ifsc": "X", "amount": "1e400"}, true, http.StatusBadRequest, domain.MsgInvalidAmount},
		{"negative amount", map[string]any{"to_account": ravi.AccountNumber, "ifsc": "X", "amount": -1}, true, http.StatusBadRequest, domain.MsgInvalidAmount},
		{"insufficient", map[string]any{"to_account": ravi.AccountNumber, "ifsc": "X", "amount": 20000}, true, http.StatusBadRequest, domain.MsgInsufficient},
		{"missing otp", map[string]any{"to_account": ravi.AccountNumber, "ifsc": "X", "amount": 10}, false, http.StatusUnauthorized, domain.MsgOTPRequired},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, handler.Options{})
			tok := f.token(t, asha.ID, domain.RoleUser)
			if tt.otp {
				tt.body["otp"] = f.otp(t, tok)
			}

			rec := f.do(t, http.MethodPost, "/api/txns/send", tok, tt.body)
			if rec.Code != tt.status {
				t.Fatalf("expected %d, got %d %s", tt.status, rec.Code, rec.Body.String())
			}
			if got := decode(t, rec)["error"]; got != tt.errMsg {
				t.Errorf("error = %v, want %q", got, tt.errMsg)
			}
		})
	}
}

func TestSend_BlockedIsNotAnError(t *testing.T) {
	f := newFixture(t, handler.Options{})
	tok := f.token(t, asha.ID, domain.RoleUser)

	rec := f.do(t, http.MethodPost, "/api/txns/send", tok, map[string]any{
		"to_account": "1234567890", "ifsc": "X", "amount": 100, "otp": f.otp(t, tok),
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body := decode(t, rec)
	if body["message"] != domain.MsgBlocked || body["is_fraud"] != true || body["txn_blocked"] != true {
		t.Errorf("unexpected body %v", body)
	}
	if _, ok := body["txn_id"]; ok {
		t.Error("blocked response must not carry a txn id")
	}
}

func TestUPISend(t *testing.T) {
	f := newFixture(t, handler.Options{})
	tok := f.token(t, asha.ID, domain.RoleUser)

	rec := f.do(t, http.MethodPost, "/api/txns/upi/send", tok, map[string]any{
		"upiId": "ghost@grambank", "amount": 10, "otp": f.otp(t, tok),
	})
	if rec.Code != http.StatusNotFound || decode(t, rec)["error"] != domain.MsgReceiverUPI {
		t.Errorf("expected receiver not found, got %d", rec.Code)
	}

	rec = f.do(t, http.MethodPost, "/api/txns/upi/send", tok, map[string]any{"amount": 10})
	if rec.Code != http.StatusBadRequest || decode(t, rec)["error"] != domain.MsgUPIRequired {
		t.Errorf("expected upi required, got %d", rec.Code)
	}

	rec = f.do(t, http.MethodPost, "/api/txns/upi/send", tok, map[string]any{
		"upiId": memory.UPIFor(ravi.AccountNumber), "amount": 10, "otp": f.otp(t, tok),
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d %s", rec.Code, rec.Body.String())
	}
	body := decode(t, rec)
	if body["message"] != domain.MsgUPISettled || body["receiver"] != memory.UPIFor(ravi.AccountNumber) {
		t.Errorf("unexpected body %v", body)
	}
}

// --- Read models ---

func TestHistoryAndBalance(t *testing.T) {
	f := newFixture(t, handler.Options{})
	tok := f.token(t, asha.ID, domain.RoleUser)

	rec := f.do(t, http.MethodGet, "/api/txns/history", tok, nil)
	if rec.Code != http.StatusOK || strings.TrimSpace(rec.Body.String()) != "[]" {
		t.Errorf("expected empty list, got %d %s", rec.Code, rec.Body.String())
	}

	rec = f.do(t, http.MethodGet, "/api/txns/balance", tok, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var summary domain.BalanceSummary
	if err := json.NewDecoder(rec.Body).Decode(&summary); err != nil {
		t.Fatal(err)
	}
	if summary.Balance != memory.InitialBalance || summary.Name != asha.Name {
		t.Errorf("unexpected summary %+v", summary)
	}
}

func TestReport(t *testing.T) {
	f := newFixture(t, handler.Options{})
	tok := f.token(t, asha.ID, domain.RoleUser)

	rec := f.do(t, http.MethodPost, "/api/txns/report", tok, map[string]any{"accountNumber": "7770001"})
	if rec.Code != http.StatusOK || decode(t, rec)["message"] != domain.MsgReported {
		t.Errorf("expected reported, got %d", rec.Code)
	}
	rec = f.do(t, http.MethodPost, "/api/txns/report", tok, map[string]any{"accountNumber": "7770001"})
	if rec.Code != http.StatusOK || decode(t, rec)["message"] != domain.MsgAlreadyReported {
		t.Errorf("expected already reported, got %d", rec.Code)
	}
	rec = f.do(t, http.MethodPost, "/api/txns/report", tok, map[string]any{})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}

func TestSeedFraud_DevToolsOnly(t *testing.T) {
	off := newFixture(t, handler.Options{})
	if rec := off.do(t, http.MethodPost, "/api/txns/seed-fraud", off.token(t, asha.ID, domain.RoleUser), nil); rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 without dev tools, got %d", rec.Code)
	}

	on := newFixture(t, handler.Options{DevTools: true})
	tok := on.token(t, asha.ID, domain.RoleUser)
	rec := on.do(t, http.MethodPost, "/api/txns/seed-fraud", tok, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body := decode(t, rec)
	if body["message"] != "Seeded 10 suspicious transactions" || body["currentBalance"] != float64(memory.InitialBalance) {
		t.Errorf("unexpected body %v", body)
	}

	rec = on.do(t, http.MethodGet, "/api/txns/alerts", tok, nil)
	var alerts []domain.TransactionRecord
	if err := json.NewDecoder(rec.Body).Decode(&alerts); err != nil {
		t.Fatal(err)
	}
	if len(alerts) != 10 {
		t.Errorf("expected 10 alerts, got %d", len(alerts))
	}
}

// --- Fraud desk ---

func TestFraudDesk_AdminOnly(t *testing.T) {
	f := newFixture(t, handler.Options{})

	rec := f.do(t, http.MethodGet, "/api/fraud/stats", f.token(t, asha.ID, domain.RoleUser), nil)
	if rec.Code != http.StatusForbidden {
		t.Errorf("expected 403 for user role, got %d", rec.Code)
	}

	admin := f.token(t, "ops-1", domain.RoleAdmin)
	rec = f.do(t, http.MethodGet, "/api/fraud/stats", admin, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var stats domain.FraudStats
	if err := json.NewDecoder(rec.Body).Decode(&stats); err != nil {
		t.Fatal(err)
	}
	if stats.HighRisk != 10 {
		t.Errorf("expected 10 high-risk accounts, got %d", stats.HighRisk)
	}

	for _, path := range []string{"/api/fraud/alerts", "/api/fraud/accounts", "/api/fraud/reconciliation", "/api/fraud/metrics"} {
		if rec := f.do(t, http.MethodGet, path, admin, nil); rec.Code != http.StatusOK {
			t.Errorf("%s: expected 200, got %d", path, rec.Code)
		}
	}
	if rec := f.do(t, http.MethodGet, "/api/fraud/reconciliation?since=yesterday", admin, nil); rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for bad since, got %d", rec.Code)
	}
}

func TestFraudDesk_FreezeUser(t *testing.T) {
	f := newFixture(t, handler.Options{})
	admin := f.token(t, "ops-1", domain.RoleAdmin)

	rec := f.do(t, http.MethodPost, "/api/fraud/freeze-user", admin, map[string]any{"userId": ravi.ID})
	if rec.Code != http.StatusOK || decode(t, rec)["message"] != "User frozen successfully" {
		t.Fatalf("expected frozen, got %d", rec.Code)
	}
	acc, _ := f.store.GetAccount(context.Background(), ravi.ID)
	if acc.Status != domain.AccountFrozen {
		t.Errorf("status = %s, want FROZEN", acc.Status)
	}

	rec = f.do(t, http.MethodPost, "/api/fraud/unfreeze-user", admin, map[string]any{"userId": ravi.ID})
	if rec.Code != http.StatusOK || decode(t, rec)["message"] != "User unfrozen successfully" {
		t.Errorf("expected unfrozen, got %d", rec.Code)
	}

	rec = f.do(t, http.MethodPost, "/api/fraud/freeze-user", admin, map[string]any{"userId": "acc-ghost"})
	if rec.Code != http.StatusNotFound || decode(t, rec)["error"] != "User not found" {
		t.Errorf("expected user not found, got %d", rec.Code)
	}
}
