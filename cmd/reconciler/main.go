// Command reconciler scans the transaction trail for debit legs whose
// internal receiver never got the matching credit leg.
//
// With RECONCILE_INTERVAL=0 it runs one pass over RECONCILE_WINDOW and
// exits non-zero when unpaired debits were found. Otherwise it loops until
// interrupted.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/boddenberg/grambank-ledger-go/internal/config"
	"github.com/boddenberg/grambank-ledger-go/internal/infra/observability"
	"github.com/boddenberg/grambank-ledger-go/internal/infra/postgres"
	"github.com/boddenberg/grambank-ledger-go/internal/service"
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	logger := observability.NewLogger(cfg.LogLevel)
	defer logger.Sync()

	if cfg.StoreBackend != "postgres" {
		logger.Error("reconciler needs STORE_BACKEND=postgres", zap.String("store_backend", cfg.StoreBackend))
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pg, err := postgres.NewStore(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to open store", zap.Error(err))
		return 1
	}
	defer pg.Close()

	metrics := observability.NewMetrics()
	reconciler := service.NewReconciler(pg, cfg.ReconcileWindow, cfg.ReconcileInterval, metrics, logger)

	if cfg.ReconcileInterval > 0 {
		reconciler.Start(ctx)
		return 0
	}

	report, err := reconciler.RunWindow(ctx)
	if err != nil {
		logger.Error("reconciliation failed", zap.Error(err))
		return 1
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(report)

	if len(report.Unpaired) > 0 {
		return 2
	}
	return 0
}
