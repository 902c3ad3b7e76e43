package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/boddenberg/grambank-ledger-go/internal/config"
	"github.com/boddenberg/grambank-ledger-go/internal/domain"
	"github.com/boddenberg/grambank-ledger-go/internal/handler"
	"github.com/boddenberg/grambank-ledger-go/internal/infra/cache"
	"github.com/boddenberg/grambank-ledger-go/internal/infra/memory"
	"github.com/boddenberg/grambank-ledger-go/internal/infra/notify"
	"github.com/boddenberg/grambank-ledger-go/internal/infra/observability"
	"github.com/boddenberg/grambank-ledger-go/internal/infra/postgres"
	"github.com/boddenberg/grambank-ledger-go/internal/infra/redis"
	"github.com/boddenberg/grambank-ledger-go/internal/infra/resilience"
	"github.com/boddenberg/grambank-ledger-go/internal/ledger"
	"github.com/boddenberg/grambank-ledger-go/internal/port"
	"github.com/boddenberg/grambank-ledger-go/internal/service"
)

// stores groups the persistence ports served by one backend.
type stores struct {
	accounts  port.AccountStore
	txns      port.TransactionStore
	blacklist port.BlacklistRegistry
	health    port.HealthChecker
	close     func()
}

func main() {
	// --- Config ---
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	// --- Logger ---
	logger := observability.NewLogger(cfg.LogLevel)
	defer logger.Sync()

	logger.Info("configuration loaded",
		zap.Int("port", cfg.Port),
		zap.String("log_level", cfg.LogLevel),
		zap.String("store_backend", cfg.StoreBackend),
		zap.String("otp_backend", cfg.OTPBackend),
		zap.String("notify_backend", cfg.NotifyBackend),
		zap.Int("ledger_max_attempts", cfg.LedgerMaxAttempts),
		zap.Duration("blacklist_cache_ttl", cfg.BlacklistCacheTTL),
		zap.Bool("enforce_frozen_accounts", cfg.EnforceFrozenAccounts),
		zap.Bool("check_upi_blacklist", cfg.CheckUPIBlacklist),
		zap.Bool("dev_tools", cfg.DevTools),
	)

	// --- Tracing ---
	shutdown, err := observability.InitTracer(cfg.OTLPEndpoint, observability.ServiceName)
	if err != nil {
		logger.Fatal("failed to init tracer", zap.Error(err))
	}
	defer shutdown(context.Background())

	// --- Metrics ---
	metrics := observability.NewMetrics()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// --- Persistence ---
	st, err := openStores(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("failed to open store", zap.Error(err))
	}
	defer st.close()

	health := map[string]port.HealthChecker{cfg.StoreBackend: st.health}

	var otpStore port.OTPStore
	switch cfg.OTPBackend {
	case "redis":
		client, err := redis.NewClient(ctx, redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPass, DB: cfg.RedisDB})
		if err != nil {
			logger.Fatal("failed to connect to redis", zap.Error(err))
		}
		defer client.Close()
		rs := redis.NewOTPStore(client)
		otpStore = rs
		health["redis"] = rs
	default:
		otpStore = memory.New()
	}

	// --- Notifications ---
	var notifier port.Notifier
	switch cfg.NotifyBackend {
	case "sms":
		resilienceCfg := resilience.Config{
			MaxRetries:     cfg.MaxRetries,
			InitialBackoff: cfg.InitialBackoff,
		}
		httpClient := &http.Client{Timeout: cfg.HTTPTimeout}
		cb := resilience.NewCircuitBreaker("sms-gateway")
		notifier = notify.NewSMSClient(httpClient, cfg.SMSGatewayURL, cfg.SMSAPIKey, cb, resilienceCfg)
	case "kafka":
		producer, err := notify.NewKafkaProducer(cfg.KafkaBrokers)
		if err != nil {
			logger.Fatal("failed to create kafka producer", zap.Error(err))
		}
		publisher := notify.NewKafkaPublisher(producer, cfg.KafkaNotifyTopic)
		defer publisher.Close()
		notifier = publisher
	default:
		notifier = notify.NewLogNotifier(logger)
	}
	dispatcher := service.NewDispatcher(notifier, cfg.NotifyMaxConcurrency, cfg.NotifyTimeout, metrics, logger)

	// --- Cache ---
	blacklistCache := cache.New[domain.BlacklistEntry](cfg.BlacklistCacheTTL)
	defer blacklistCache.Close()

	// --- Services ---
	otpSvc := service.NewOTPService(otpStore, st.accounts, dispatcher, cfg.OTPTTL, cfg.ExposeOTP, logger)
	blacklist := service.NewBlacklistChecker(st.blacklist, blacklistCache, cfg.LookupTimeout, metrics, logger)
	l := ledger.New(st.accounts, ledger.Config{
		MaxAttempts:   cfg.LedgerMaxAttempts,
		Backoff:       cfg.LedgerBackoff,
		EnforceFrozen: cfg.EnforceFrozenAccounts,
	}, metrics, logger)
	transfers := service.NewTransferService(st.accounts, st.txns, otpSvc, blacklist, l, dispatcher,
		service.TransferConfig{
			AuthTimeout:       cfg.AuthTimeout,
			LookupTimeout:     cfg.LookupTimeout,
			SettleTimeout:     cfg.SettleTimeout,
			CheckUPIBlacklist: cfg.CheckUPIBlacklist,
		}, metrics, logger)
	reconciler := service.NewReconciler(st.txns, cfg.ReconcileWindow, cfg.ReconcileInterval, metrics, logger)
	tokens := service.NewTokenService(cfg.JWTSecret, cfg.JWTAccessTTL)

	if cfg.ReconcileInterval > 0 {
		go reconciler.Start(ctx)
	}
	if cfg.DevTools {
		logDevTokens(tokens, logger)
	}

	// --- Router ---
	router := handler.NewRouter(handler.Services{
		Transfers:  transfers,
		OTP:        otpSvc,
		History:    service.NewHistoryService(st.accounts, st.txns, logger),
		Blacklist:  blacklist,
		Admin:      service.NewAdminService(st.accounts, st.txns, st.blacklist, metrics, logger),
		Reconciler: reconciler,
		Tokens:     tokens,
	}, handler.Options{DevTools: cfg.DevTools, Health: health}, metrics, logger)

	// --- Server ---
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// --- Graceful shutdown ---
	go func() {
		logger.Info("server starting", zap.Int("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()

	logger.Info("server shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced shutdown", zap.Error(err))
	}
	if err := dispatcher.Wait(shutdownCtx); err != nil {
		logger.Warn("notifications still in flight at shutdown", zap.Error(err))
	}

	logger.Info("server stopped")
}

func openStores(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*stores, error) {
	switch cfg.StoreBackend {
	case "postgres":
		pg, err := postgres.NewStore(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		if err := pg.Migrate(ctx); err != nil {
			pg.Close()
			return nil, err
		}
		if cfg.DevTools {
			seedDemoAccounts(ctx, pg, logger)
		}
		logger.Info("using postgres store")
		return &stores{accounts: pg, txns: pg, blacklist: pg, health: pg, close: pg.Close}, nil
	default:
		mem := memory.New()
		mem.SeedBlacklist()
		mem.SeedDemo()
		logger.Info("using in-memory store", zap.Int("demo_accounts", len(memory.DemoAccounts)))
		return &stores{accounts: mem, txns: mem, blacklist: mem, health: mem, close: func() {}}, nil
	}
}

// seedDemoAccounts provisions the demo accounts in postgres once; accounts
// that already exist keep their balance.
func seedDemoAccounts(ctx context.Context, pg *postgres.Store, logger *zap.Logger) {
	for _, acc := range memory.DemoAccounts {
		acc.Balance = memory.InitialBalance
		acc.UPIID = memory.UPIFor(acc.AccountNumber)
		created, err := pg.InsertAccount(ctx, &acc)
		if err != nil {
			logger.Warn("failed to seed demo account", zap.String("account_id", acc.ID), zap.Error(err))
			continue
		}
		if created {
			logger.Info("seeded demo account", zap.String("account_id", acc.ID))
		}
	}
}

// logDevTokens prints bearer tokens for the demo accounts. Accounts and
// logins belong to the identity service; this only exists for local runs.
func logDevTokens(tokens *service.TokenService, logger *zap.Logger) {
	for i, acc := range memory.DemoAccounts {
		role := domain.RoleUser
		if i == 0 {
			role = domain.RoleAdmin
		}
		tok, err := tokens.IssueAccessToken(acc.ID, role)
		if err != nil {
			logger.Warn("failed to issue dev token", zap.Error(err))
			continue
		}
		logger.Info("dev token", zap.String("account_id", acc.ID), zap.String("role", role), zap.String("token", tok))
	}
}
