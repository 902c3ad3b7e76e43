package handler

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"github.com/boddenberg/grambank-ledger-go/internal/domain"
	"github.com/boddenberg/grambank-ledger-go/internal/infra/observability"
	"github.com/boddenberg/grambank-ledger-go/internal/port"
	"github.com/boddenberg/grambank-ledger-go/internal/service"
)

var tracer = otel.Tracer("handler")

const healthCheckTimeout = 2 * time.Second

// Services groups the use cases exposed over HTTP.
type Services struct {
	Transfers  *service.TransferService
	OTP        *service.OTPService
	History    *service.HistoryService
	Blacklist  *service.BlacklistChecker
	Admin      *service.AdminService
	Reconciler *service.Reconciler
	Tokens     *service.TokenService
}

// Options toggles optional routes and readiness probes.
type Options struct {
	DevTools bool
	// Health maps a backend name to its readiness probe.
	Health map[string]port.HealthChecker
}

// NewRouter creates the HTTP router with all routes and middleware.
func NewRouter(svc Services, opts Options, metrics *observability.Metrics, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()

	// --- Middleware ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(observability.ZapLoggerMiddleware(logger))
	r.Use(observability.TracingMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Heartbeat("/ping"))

	// --- Operational endpoints ---
	r.Get("/healthz", healthzHandler(opts.Health))
	r.Get("/readyz", readyzHandler(opts.Health))
	r.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))

	if svc.Tokens == nil {
		return r
	}

	r.Route("/api", func(r chi.Router) {
		r.Use(JWTAuthMiddleware(svc.Tokens, logger))

		// =============================================
		// Transfers and read models
		// =============================================
		r.Route("/txns", func(r chi.Router) {
			r.Post("/send-otp", sendOTPHandler(svc.OTP, logger))
			r.Post("/send", sendHandler(svc.Transfers, logger))
			r.Post("/upi/send", upiSendHandler(svc.Transfers, logger))
			r.Get("/history", historyHandler(svc.History, logger))
			r.Get("/alerts", alertsHandler(svc.History, logger))
			r.Get("/balance", balanceHandler(svc.History, logger))
			r.Post("/report", reportHandler(svc.Blacklist, logger))
			if opts.DevTools {
				r.Post("/seed-fraud", seedFraudHandler(svc.History, logger))
			}
		})

		// =============================================
		// Fraud desk
		// =============================================
		r.Route("/fraud", func(r chi.Router) {
			r.Use(AdminOnly(logger))
			r.Get("/stats", fraudStatsHandler(svc.Admin, logger))
			r.Get("/alerts", fraudAlertsHandler(svc.Admin, logger))
			r.Get("/accounts", fraudAccountsHandler(svc.Blacklist, logger))
			r.Post("/freeze-user", freezeHandler(svc.Admin, true, logger))
			r.Post("/unfreeze-user", freezeHandler(svc.Admin, false, logger))
			r.Get("/reconciliation", reconciliationHandler(svc.Reconciler, logger))
			r.Get("/metrics", ledgerMetricsHandler(svc.Admin))
		})
	})

	return r
}

// ============================================================
// Health
// ============================================================

func checkBackends(ctx context.Context, checkers map[string]port.HealthChecker) domain.HealthStatus {
	names := make([]string, 0, len(checkers))
	for name := range checkers {
		names = append(names, name)
	}
	sort.Strings(names)

	status := domain.HealthStatus{Status: "healthy", Services: []domain.ServiceHealth{
		{Name: "ledger-api", Status: "healthy", LastChecked: time.Now().Format(time.RFC3339)},
	}}
	for _, name := range names {
		pingCtx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
		start := time.Now()
		err := checkers[name].Ping(pingCtx)
		cancel()

		sh := domain.ServiceHealth{
			Name:        name,
			Status:      "healthy",
			LatencyMs:   time.Since(start).Milliseconds(),
			LastChecked: time.Now().Format(time.RFC3339),
		}
		if err != nil {
			sh.Status = "degraded"
			sh.Error = err.Error()
			status.Status = "degraded"
		}
		status.Services = append(status.Services, sh)
	}
	return status
}

func healthzHandler(checkers map[string]port.HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, checkBackends(r.Context(), checkers))
	}
}

func readyzHandler(checkers map[string]port.HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := checkBackends(r.Context(), checkers)
		if status.Status != "healthy" {
			writeJSON(w, http.StatusServiceUnavailable, status)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}
