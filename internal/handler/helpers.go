package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/boddenberg/grambank-ledger-go/internal/domain"
)

// ============================================================
// Shared helper functions
// ============================================================

type errorResponse struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// rawAmount accepts an amount sent either as a JSON number or as a string
// and returns its literal text. null and absent both yield "".
func rawAmount(raw json.RawMessage) string {
	text := strings.TrimSpace(string(raw))
	if text == "" || text == "null" {
		return ""
	}
	if strings.HasPrefix(text, `"`) {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return text
		}
		return strings.TrimSpace(s)
	}
	return text
}

// handleServiceError maps domain errors to HTTP responses. Unexpected errors
// are logged in full and reported to the client as "Server error".
func handleServiceError(w http.ResponseWriter, err error, logger *zap.Logger) {
	var notFound *domain.ErrNotFound
	var validation *domain.ErrValidation
	var unauthorized *domain.ErrUnauthorized
	var insufficientFunds *domain.ErrInsufficientFunds
	var frozen *domain.ErrAccountFrozen
	var forbidden *domain.ErrForbidden
	var unavailable *domain.ErrDependencyUnavailable
	var conflict *domain.ErrPersistenceConflict

	switch {
	case errors.As(err, &validation):
		logger.Debug("validation error", zap.String("field", validation.Field), zap.String("error", err.Error()))
		writeError(w, http.StatusBadRequest, validation.Message)
	case errors.As(err, &unauthorized):
		logger.Warn("unauthorized", zap.String("error", err.Error()))
		writeError(w, http.StatusUnauthorized, unauthorized.Error())
	case errors.As(err, &insufficientFunds):
		logger.Info("insufficient funds",
			zap.Float64("available", insufficientFunds.Available),
			zap.Float64("required", insufficientFunds.Required),
		)
		writeError(w, http.StatusBadRequest, domain.MsgInsufficient)
	case errors.As(err, &notFound):
		logger.Debug("not found", zap.String("error", err.Error()))
		writeError(w, http.StatusNotFound, notFound.Error())
	case errors.As(err, &frozen):
		logger.Warn("account frozen", zap.String("account_id", frozen.AccountID))
		writeError(w, http.StatusForbidden, "Account is frozen")
	case errors.As(err, &forbidden):
		logger.Warn("forbidden access", zap.String("error", err.Error()))
		writeError(w, http.StatusForbidden, "Forbidden")
	case errors.As(err, &unavailable):
		logger.Error("dependency unavailable", zap.String("service", unavailable.Service), zap.Error(err))
		writeError(w, http.StatusServiceUnavailable, "Service temporarily unavailable")
	case errors.As(err, &conflict):
		logger.Error("balance update conflict",
			zap.String("account_id", conflict.AccountID),
			zap.Int("attempts", conflict.Attempts),
		)
		writeError(w, http.StatusInternalServerError, domain.MsgServerError)
	default:
		logger.Error("unhandled error", zap.Error(err))
		writeError(w, http.StatusInternalServerError, domain.MsgServerError)
	}
}
