package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/boddenberg/grambank-ledger-go/internal/domain"
	"github.com/boddenberg/grambank-ledger-go/internal/service"
)

// ============================================================
// Fraud desk: /api/fraud (admin only)
// ============================================================

func fraudStatsHandler(admin *service.AdminService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /api/fraud/stats")
		defer span.End()

		stats, err := admin.Stats(ctx)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, stats)
	}
}

func fraudAlertsHandler(admin *service.AdminService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /api/fraud/alerts")
		defer span.End()

		recs, err := admin.Alerts(ctx)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, nonNil(recs))
	}
}

func fraudAccountsHandler(blacklist *service.BlacklistChecker, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /api/fraud/accounts")
		defer span.End()

		entries, err := blacklist.List(ctx)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, nonNil(entries))
	}
}

func freezeHandler(admin *service.AdminService, freeze bool, logger *zap.Logger) http.HandlerFunc {
	op, msg := admin.Unfreeze, "User unfrozen successfully"
	if freeze {
		op, msg = admin.Freeze, "User frozen successfully"
	}
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), r.Method+" "+r.URL.Path)
		defer span.End()

		var req domain.FreezeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		if _, err := op(ctx, req.UserID); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, domain.SuccessResponse{Message: msg})
	}
}

func reconciliationHandler(reconciler *service.Reconciler, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /api/fraud/reconciliation")
		defer span.End()

		var (
			report *domain.ReconciliationReport
			err    error
		)
		if raw := r.URL.Query().Get("since"); raw != "" {
			since, perr := time.Parse(time.RFC3339, raw)
			if perr != nil {
				writeError(w, http.StatusBadRequest, "since must be an RFC3339 timestamp")
				return
			}
			report, err = reconciler.Run(ctx, since)
		} else {
			report, err = reconciler.RunWindow(ctx)
		}
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, report)
	}
}

func ledgerMetricsHandler(admin *service.AdminService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, admin.Metrics())
	}
}
