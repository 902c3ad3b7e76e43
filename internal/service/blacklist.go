package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/boddenberg/grambank-ledger-go/internal/domain"
	"github.com/boddenberg/grambank-ledger-go/internal/infra/observability"
	"github.com/boddenberg/grambank-ledger-go/internal/port"
)

var blacklistTracer = otel.Tracer("service/blacklist")

const blacklistCacheName = "blacklist"

// BlacklistChecker answers whether a destination account has been reported.
// Only positive answers are cached, so a fresh report takes effect on the
// next lookup.
type BlacklistChecker struct {
	registry port.BlacklistRegistry
	cache    port.Cache[domain.BlacklistEntry]
	timeout  time.Duration
	metrics  *observability.Metrics
	logger   *zap.Logger
}

// NewBlacklistChecker creates a checker. Each registry lookup is bounded by
// timeout.
func NewBlacklistChecker(registry port.BlacklistRegistry, cache port.Cache[domain.BlacklistEntry], timeout time.Duration, metrics *observability.Metrics, logger *zap.Logger) *BlacklistChecker {
	return &BlacklistChecker{registry: registry, cache: cache, timeout: timeout, metrics: metrics, logger: logger}
}

// IsBlacklisted returns the entry for accountNumber, or nil when it is not
// reported. Registry errors and timeouts return *domain.ErrDependencyUnavailable
// so callers fail closed.
func (b *BlacklistChecker) IsBlacklisted(ctx context.Context, accountNumber string) (*domain.BlacklistEntry, error) {
	ctx, span := blacklistTracer.Start(ctx, "BlacklistChecker.IsBlacklisted")
	defer span.End()

	if e, ok := b.cache.Get(accountNumber); ok {
		b.metrics.IncrCacheHit(blacklistCacheName)
		b.metrics.IncrBlacklistLookup("hit")
		span.SetAttributes(attribute.Bool("blacklist.hit", true), attribute.Bool("cache.hit", true))
		return &e, nil
	}
	b.metrics.IncrCacheMiss(blacklistCacheName)

	lookupCtx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	entry, err := b.registry.FindBlacklisted(lookupCtx, accountNumber)
	if err != nil {
		b.metrics.IncrBlacklistLookup("error")
		b.metrics.IncrExternalError(blacklistCacheName)
		span.RecordError(err)
		return nil, &domain.ErrDependencyUnavailable{Service: "blacklist", Err: err}
	}
	if entry == nil {
		b.metrics.IncrBlacklistLookup("miss")
		span.SetAttributes(attribute.Bool("blacklist.hit", false))
		return nil, nil
	}

	b.metrics.IncrBlacklistLookup("hit")
	span.SetAttributes(attribute.Bool("blacklist.hit", true))
	b.cache.Set(accountNumber, *entry)
	return entry, nil
}

// Report adds a destination to the registry on behalf of reporterID and
// returns the client message.
func (b *BlacklistChecker) Report(ctx context.Context, reporterID string, req *domain.ReportRequest) (string, error) {
	ctx, span := blacklistTracer.Start(ctx, "BlacklistChecker.Report")
	defer span.End()

	accountNumber := strings.TrimSpace(req.AccountNumber)
	if accountNumber == "" {
		return "", &domain.ErrValidation{Field: "accountNumber", Message: "Account number required"}
	}
	reason := strings.TrimSpace(req.Reason)
	if reason == "" {
		reason = domain.DefaultReportReason
	}

	added, err := b.registry.AddBlacklisted(ctx, &domain.BlacklistEntry{
		AccountNumber: accountNumber,
		IFSC:          strings.TrimSpace(req.IFSC),
		Reason:        reason,
		ReportedBy:    reporterID,
		CreatedAt:     time.Now(),
	})
	if err != nil {
		return "", fmt.Errorf("add blacklist entry: %w", err)
	}
	if !added {
		return domain.MsgAlreadyReported, nil
	}

	b.logger.Info("destination reported",
		zap.String("account_number", maskAccount(accountNumber)),
		zap.String("reported_by", reporterID),
	)
	return domain.MsgReported, nil
}

// List returns every reported destination, newest first.
func (b *BlacklistChecker) List(ctx context.Context) ([]domain.BlacklistEntry, error) {
	ctx, span := blacklistTracer.Start(ctx, "BlacklistChecker.List")
	defer span.End()

	return b.registry.ListBlacklisted(ctx)
}
