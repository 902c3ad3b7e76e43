package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	dto "github.com/prometheus/client_model/go"

	"github.com/boddenberg/grambank-ledger-go/internal/domain"
)

// Metrics holds all Prometheus metrics for the ledger.
type Metrics struct {
	// Registry is the Prometheus registry that owns these metrics.
	// Exposed so the /metrics endpoint can use it.
	Registry *prometheus.Registry

	requestDuration   *prometheus.HistogramVec
	transfers         *prometheus.CounterVec
	casConflicts      prometheus.Counter
	creditLegsSkipped prometheus.Counter
	unpairedDebits    prometheus.Counter
	blacklistLookups  *prometheus.CounterVec
	cacheHits         *prometheus.CounterVec
	cacheMisses       *prometheus.CounterVec
	notifications     *prometheus.CounterVec
	externalErrors    *prometheus.CounterVec
	reconcileUnpaired prometheus.Gauge
}

// NewMetrics creates a dedicated Prometheus registry and registers all
// application metrics in it. Using a private registry avoids "duplicate
// collector" panics when NewMetrics is called more than once (e.g. in tests).
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,

		requestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ledger_operation_duration_seconds",
				Help:    "Duration of ledger operations.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		transfers: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ledger_transfers_total",
				Help: "Transfers by kind and terminal outcome.",
			},
			[]string{"kind", "outcome"},
		),
		casConflicts: factory.NewCounter(prometheus.CounterOpts{
			Name: "ledger_cas_conflicts_total",
			Help: "Balance compare-and-swap attempts that lost to a concurrent writer.",
		}),
		creditLegsSkipped: factory.NewCounter(prometheus.CounterOpts{
			Name: "ledger_credit_leg_skipped_total",
			Help: "Settled account transfers whose receiver did not resolve to an internal account.",
		}),
		unpairedDebits: factory.NewCounter(prometheus.CounterOpts{
			Name: "ledger_unpaired_debits_total",
			Help: "Committed debit legs whose credit leg failed.",
		}),
		blacklistLookups: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ledger_blacklist_lookups_total",
				Help: "Blacklist lookups by result.",
			},
			[]string{"result"},
		),
		cacheHits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ledger_cache_hits_total",
				Help: "Total cache hits.",
			},
			[]string{"cache"},
		),
		cacheMisses: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ledger_cache_misses_total",
				Help: "Total cache misses.",
			},
			[]string{"cache"},
		),
		notifications: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ledger_notifications_total",
				Help: "Notifications by kind and delivery status.",
			},
			[]string{"kind", "status"},
		),
		externalErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ledger_external_errors_total",
				Help: "Total errors from external services.",
			},
			[]string{"service"},
		),
		reconcileUnpaired: factory.NewGauge(prometheus.GaugeOpts{
			Name: "ledger_reconcile_unpaired_debits",
			Help: "Unpaired debit legs found by the last reconciliation pass.",
		}),
	}
}

// RecordRequestDuration records the duration of an operation.
func (m *Metrics) RecordRequestDuration(operation string, d time.Duration) {
	m.requestDuration.WithLabelValues(operation).Observe(d.Seconds())
}

// IncrTransfer counts a transfer outcome. Rejected requests use outcome
// "REJECTED".
func (m *Metrics) IncrTransfer(kind domain.TransferKind, outcome string) {
	m.transfers.WithLabelValues(string(kind), outcome).Inc()
}

// IncrCASConflict counts a lost compare-and-swap.
func (m *Metrics) IncrCASConflict() {
	m.casConflicts.Inc()
}

// IncrCreditLegSkipped counts a settled transfer without a credit leg.
func (m *Metrics) IncrCreditLegSkipped() {
	m.creditLegsSkipped.Inc()
}

// IncrUnpairedDebit counts a committed debit whose credit failed.
func (m *Metrics) IncrUnpairedDebit() {
	m.unpairedDebits.Inc()
}

// IncrBlacklistLookup counts a lookup result: hit, miss or error.
func (m *Metrics) IncrBlacklistLookup(result string) {
	m.blacklistLookups.WithLabelValues(result).Inc()
}

// IncrCacheHit increments the cache hit counter.
func (m *Metrics) IncrCacheHit(cache string) {
	m.cacheHits.WithLabelValues(cache).Inc()
}

// IncrCacheMiss increments the cache miss counter.
func (m *Metrics) IncrCacheMiss(cache string) {
	m.cacheMisses.WithLabelValues(cache).Inc()
}

// IncrNotification counts a delivery attempt: sent, failed or dropped.
func (m *Metrics) IncrNotification(kind domain.NotificationKind, status string) {
	m.notifications.WithLabelValues(string(kind), status).Inc()
}

// IncrExternalError increments the external error counter.
func (m *Metrics) IncrExternalError(service string) {
	m.externalErrors.WithLabelValues(service).Inc()
}

// SetReconcileUnpaired publishes the result of the last reconciliation pass.
func (m *Metrics) SetReconcileUnpaired(n int) {
	m.reconcileUnpaired.Set(float64(n))
}

// Snapshot returns the cumulative ledger counters for GET /api/fraud/metrics.
func (m *Metrics) Snapshot() *domain.LedgerMetrics {
	var settled, blocked, flagged, rejected float64
	for _, kind := range []domain.TransferKind{domain.TransferAccount, domain.TransferUPI} {
		settled += getCounterValue(m.transfers, string(kind), string(domain.OutcomeSettled))
		blocked += getCounterValue(m.transfers, string(kind), string(domain.OutcomeBlocked))
		flagged += getCounterValue(m.transfers, string(kind), string(domain.OutcomeFlagged))
		rejected += getCounterValue(m.transfers, string(kind), "REJECTED")
	}

	var sent, failed float64
	for _, kind := range []domain.NotificationKind{
		domain.NotifyDebit, domain.NotifyCredit, domain.NotifyFraudAlert, domain.NotifyOTP,
	} {
		sent += getCounterValue(m.notifications, string(kind), "sent")
		failed += getCounterValue(m.notifications, string(kind), "failed")
	}

	fraudRate := float64(0)
	if total := settled + blocked + flagged; total > 0 {
		fraudRate = (blocked + flagged) / total
	}

	return &domain.LedgerMetrics{
		TransfersSettled:   int64(settled),
		TransfersBlocked:   int64(blocked),
		TransfersFlagged:   int64(flagged),
		TransfersRejected:  int64(rejected),
		FraudRate:          fraudRate,
		CASConflicts:       int64(readCounter(m.casConflicts)),
		CreditLegsSkipped:  int64(readCounter(m.creditLegsSkipped)),
		UnpairedDebits:     int64(readCounter(m.unpairedDebits)),
		BlacklistCacheHits: int64(getCounterValue(m.cacheHits, "blacklist")),
		NotificationsSent:  int64(sent),
		NotificationsFail:  int64(failed),
		Period:             "all_time",
	}
}

// getCounterValue extracts the current float64 value from a CounterVec for the given labels.
func getCounterValue(cv *prometheus.CounterVec, labels ...string) float64 {
	return readCounter(cv.WithLabelValues(labels...))
}

func readCounter(c prometheus.Counter) float64 {
	m := &dto.Metric{}
	if err := c.Write(m); err != nil {
		return 0
	}
	if m.Counter != nil && m.Counter.Value != nil {
		return *m.Counter.Value
	}
	return 0
}
