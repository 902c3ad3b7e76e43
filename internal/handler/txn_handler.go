package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/boddenberg/grambank-ledger-go/internal/domain"
	"github.com/boddenberg/grambank-ledger-go/internal/ledger"
	"github.com/boddenberg/grambank-ledger-go/internal/service"
)

// ============================================================
// Transfers: /api/txns
// ============================================================

type telemetryBody struct {
	LocationDeltaKm *float64 `json:"location_delta_km"`
	IsForeignDevice *int     `json:"is_foreign_device"`
	TxnsLast24h     *int     `json:"txns_last_24h"`
	AvgAmount7d     *float64 `json:"avg_amount_7d"`
}

func (t telemetryBody) toDomain() domain.Telemetry {
	return domain.Telemetry{
		LocationDeltaKm: t.LocationDeltaKm,
		IsForeignDevice: t.IsForeignDevice,
		TxnsLast24h:     t.TxnsLast24h,
		AvgAmount7d:     t.AvgAmount7d,
	}
}

type sendBody struct {
	ToAccount       string          `json:"to_account"`
	IFSC            string          `json:"ifsc"`
	BeneficiaryName string          `json:"beneficiary_name"`
	Amount          json.RawMessage `json:"amount"`
	OTP             string          `json:"otp"`
	telemetryBody
}

type upiSendBody struct {
	UPIID  string          `json:"upiId"`
	Amount json.RawMessage `json:"amount"`
	OTP    string          `json:"otp"`
	telemetryBody
}

func sendOTPHandler(otp *service.OTPService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /api/txns/send-otp")
		defer span.End()

		issued, err := otp.Issue(ctx, AccountIDFromContext(ctx))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, issued)
	}
}

func sendHandler(transfers *service.TransferService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /api/txns/send")
		defer span.End()

		var body sendBody
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		raw := rawAmount(body.Amount)
		if strings.TrimSpace(body.ToAccount) == "" || strings.TrimSpace(body.IFSC) == "" || raw == "" {
			writeError(w, http.StatusBadRequest, domain.MsgMissingDetails)
			return
		}
		amount, err := ledger.ParseAmount(raw)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		accountID := AccountIDFromContext(ctx)
		span.SetAttributes(attribute.String("account.id", accountID))

		res, err := transfers.Send(ctx, &domain.TransferRequest{
			Kind:            domain.TransferAccount,
			SenderID:        accountID,
			ToAccount:       strings.TrimSpace(body.ToAccount),
			IFSC:            strings.TrimSpace(body.IFSC),
			BeneficiaryName: strings.TrimSpace(body.BeneficiaryName),
			Amount:          amount,
			OTP:             strings.TrimSpace(body.OTP),
			Telemetry:       body.toDomain(),
		})
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}

func upiSendHandler(transfers *service.TransferService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /api/txns/upi/send")
		defer span.End()

		var body upiSendBody
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		raw := rawAmount(body.Amount)
		if strings.TrimSpace(body.UPIID) == "" || raw == "" {
			writeError(w, http.StatusBadRequest, domain.MsgUPIRequired)
			return
		}
		amount, err := ledger.ParseAmount(raw)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		accountID := AccountIDFromContext(ctx)
		span.SetAttributes(attribute.String("account.id", accountID))

		res, err := transfers.Send(ctx, &domain.TransferRequest{
			Kind:      domain.TransferUPI,
			SenderID:  accountID,
			ToUPI:     strings.TrimSpace(body.UPIID),
			Amount:    amount,
			OTP:       strings.TrimSpace(body.OTP),
			Telemetry: body.toDomain(),
		})
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}

// ============================================================
// Read models
// ============================================================

func historyHandler(history *service.HistoryService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /api/txns/history")
		defer span.End()

		recs, err := history.History(ctx, AccountIDFromContext(ctx))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, nonNil(recs))
	}
}

func alertsHandler(history *service.HistoryService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /api/txns/alerts")
		defer span.End()

		recs, err := history.Alerts(ctx, AccountIDFromContext(ctx))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, nonNil(recs))
	}
}

func balanceHandler(history *service.HistoryService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /api/txns/balance")
		defer span.End()

		summary, err := history.Balance(ctx, AccountIDFromContext(ctx))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, summary)
	}
}

func reportHandler(blacklist *service.BlacklistChecker, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /api/txns/report")
		defer span.End()

		var req domain.ReportRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		msg, err := blacklist.Report(ctx, AccountIDFromContext(ctx), &req)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, domain.SuccessResponse{Message: msg})
	}
}

func seedFraudHandler(history *service.HistoryService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /api/txns/seed-fraud")
		defer span.End()

		n, balance, err := history.SeedFraud(ctx, AccountIDFromContext(ctx))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, domain.SeedResult{
			Message:        fmt.Sprintf("Seeded %d suspicious transactions", n),
			CurrentBalance: balance,
		})
	}
}

// nonNil keeps empty lists encoded as [] rather than null.
func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
