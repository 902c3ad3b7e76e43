package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/boddenberg/grambank-ledger-go/internal/domain"
	"github.com/boddenberg/grambank-ledger-go/internal/port"
)

var otpTracer = otel.Tracer("service/otp")

const otpCost = bcrypt.DefaultCost

// OTPService issues and verifies four-digit transfer authorization codes.
// It implements port.Authorizer.
type OTPService struct {
	store    port.OTPStore
	accounts port.AccountStore
	notify   *Dispatcher
	ttl      time.Duration
	expose   bool
	logger   *zap.Logger
	now      func() time.Time
}

// NewOTPService creates an OTP service. With expose set, the plain code is
// echoed in the issue response for environments without SMS delivery.
func NewOTPService(store port.OTPStore, accounts port.AccountStore, notify *Dispatcher, ttl time.Duration, expose bool, logger *zap.Logger) *OTPService {
	return &OTPService{
		store:    store,
		accounts: accounts,
		notify:   notify,
		ttl:      ttl,
		expose:   expose,
		logger:   logger,
		now:      time.Now,
	}
}

// Issue generates a fresh code for accountID, replacing any previous one,
// and sends it to the account's phone.
func (s *OTPService) Issue(ctx context.Context, accountID string) (*domain.OTPIssued, error) {
	ctx, span := otpTracer.Start(ctx, "OTPService.Issue")
	defer span.End()
	span.SetAttributes(attribute.String("account.id", accountID))

	acc, err := s.accounts.GetAccount(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("get account: %w", err)
	}
	if acc.PhoneNumber == "" {
		return nil, &domain.ErrValidation{Field: "phone", Message: "No phone number available to send OTP"}
	}

	code, err := generateCode()
	if err != nil {
		return nil, fmt.Errorf("generate otp: %w", err)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(code), otpCost)
	if err != nil {
		return nil, fmt.Errorf("hash otp: %w", err)
	}

	now := s.now()
	if err := s.store.SaveOTP(ctx, &domain.OTPRecord{
		AccountID: accountID,
		CodeHash:  string(hash),
		ExpiresAt: now.Add(s.ttl),
		CreatedAt: now,
	}); err != nil {
		return nil, fmt.Errorf("save otp: %w", err)
	}

	s.notify.Dispatch(ctx, domain.NotifyOTP, acc, otpMessage(code, int(s.ttl.Minutes())))

	resp := &domain.OTPIssued{Message: "OTP sent successfully"}
	if s.expose {
		resp.OTP = code
	}
	return resp, nil
}

// Authorize verifies proof against the latest code for accountID. A code
// authorizes at most one transfer.
func (s *OTPService) Authorize(ctx context.Context, accountID, proof string) error {
	ctx, span := otpTracer.Start(ctx, "OTPService.Authorize")
	defer span.End()

	if proof == "" {
		return &domain.ErrUnauthorized{Message: domain.MsgOTPRequired}
	}

	rec, err := s.store.LatestOTP(ctx, accountID)
	if err != nil {
		var nf *domain.ErrNotFound
		if errors.As(err, &nf) {
			return &domain.ErrUnauthorized{Message: domain.MsgInvalidOTP}
		}
		return fmt.Errorf("load otp: %w", err)
	}

	if rec.Expired(s.now()) {
		_, _ = s.store.ConsumeOTP(ctx, accountID)
		return &domain.ErrUnauthorized{Message: domain.MsgInvalidOTP}
	}
	if err := bcrypt.CompareHashAndPassword([]byte(rec.CodeHash), []byte(proof)); err != nil {
		s.logger.Warn("otp mismatch", zap.String("account_id", accountID))
		return &domain.ErrUnauthorized{Message: domain.MsgInvalidOTP}
	}

	// Only the caller that deletes the code is authorized.
	consumed, err := s.store.ConsumeOTP(ctx, accountID)
	if err != nil {
		return fmt.Errorf("consume otp: %w", err)
	}
	if !consumed {
		return &domain.ErrUnauthorized{Message: domain.MsgInvalidOTP}
	}
	return nil
}

// generateCode returns a uniformly random code in [1000, 9999].
func generateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(9000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%d", n.Int64()+1000), nil
}
