package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/boddenberg/grambank-ledger-go/internal/domain"
	"github.com/boddenberg/grambank-ledger-go/internal/fraud"
	"github.com/boddenberg/grambank-ledger-go/internal/infra/observability"
	"github.com/boddenberg/grambank-ledger-go/internal/ledger"
	"github.com/boddenberg/grambank-ledger-go/internal/port"
)

var transferTracer = otel.Tracer("service/transfer")

const outcomeRejected = "REJECTED"

// TransferConfig holds the orchestrator's collaborator deadlines and flags.
type TransferConfig struct {
	AuthTimeout       time.Duration
	LookupTimeout     time.Duration
	CheckUPIBlacklist bool

	// SettleTimeout bounds the work that follows a committed debit. That
	// work is detached from the request and outlives a client disconnect.
	SettleTimeout time.Duration
}

const defaultSettleTimeout = 10 * time.Second

// TransferService drives a transfer from authorization to one of its
// terminal outcomes: blocked, flagged or settled.
type TransferService struct {
	accounts  port.AccountStore
	txns      port.TransactionStore
	auth      port.Authorizer
	blacklist *BlacklistChecker
	ledger    *ledger.Ledger
	notify    *Dispatcher
	cfg       TransferConfig
	metrics   *observability.Metrics
	logger    *zap.Logger
	now       func() time.Time
}

// NewTransferService wires the orchestrator's collaborators.
func NewTransferService(
	accounts port.AccountStore,
	txns port.TransactionStore,
	auth port.Authorizer,
	blacklist *BlacklistChecker,
	l *ledger.Ledger,
	notify *Dispatcher,
	cfg TransferConfig,
	metrics *observability.Metrics,
	logger *zap.Logger,
) *TransferService {
	return &TransferService{
		accounts:  accounts,
		txns:      txns,
		auth:      auth,
		blacklist: blacklist,
		ledger:    l,
		notify:    notify,
		cfg:       cfg,
		metrics:   metrics,
		logger:    logger,
		now:       time.Now,
	}
}

// Send executes one transfer request.
func (s *TransferService) Send(ctx context.Context, req *domain.TransferRequest) (*domain.TransferResult, error) {
	ctx, span := transferTracer.Start(ctx, "TransferService.Send")
	defer span.End()
	span.SetAttributes(
		attribute.String("transfer.kind", string(req.Kind)),
		attribute.String("account.id", req.SenderID),
		attribute.Float64("amount", req.Amount),
	)

	start := time.Now()
	defer func() { s.metrics.RecordRequestDuration("transfer_"+strings.ToLower(string(req.Kind)), time.Since(start)) }()

	res, err := s.send(ctx, span, req)
	if err != nil {
		s.metrics.IncrTransfer(req.Kind, outcomeRejected)
		span.RecordError(err)
		return nil, err
	}
	s.metrics.IncrTransfer(req.Kind, string(res.Outcome))
	span.SetAttributes(attribute.String("transfer.outcome", string(res.Outcome)))
	return res, nil
}

func (s *TransferService) send(ctx context.Context, span trace.Span, req *domain.TransferRequest) (*domain.TransferResult, error) {
	if err := validateTransfer(req); err != nil {
		return nil, err
	}

	// START -> AUTHORIZED
	if err := s.authorize(ctx, req); err != nil {
		return nil, err
	}
	span.AddEvent("AUTHORIZED")

	sender, err := s.accounts.GetAccount(ctx, req.SenderID)
	if err != nil {
		return nil, fmt.Errorf("get sender: %w", err)
	}

	var receiver *domain.Account
	if req.Kind == domain.TransferUPI {
		receiver, err = s.accounts.GetAccountByUPI(ctx, req.ToUPI)
		if err != nil {
			var nf *domain.ErrNotFound
			if errors.As(err, &nf) {
				return nil, &domain.ErrNotFound{Resource: "upi", ID: req.ToUPI, Message: domain.MsgReceiverUPI}
			}
			return nil, fmt.Errorf("resolve receiver upi: %w", err)
		}
	}

	draft := ledger.NewDraft(req, sender, s.now())

	// AUTHORIZED -> BLACKLIST_CHECKED
	if destination := s.blacklistKey(req, receiver); destination != "" {
		entry, err := s.blacklist.IsBlacklisted(ctx, destination)
		if err != nil {
			s.logger.Error("blacklist lookup failed, refusing transfer",
				zap.String("account_id", sender.ID),
				zap.Error(err),
			)
			return nil, err
		}
		if entry != nil {
			return s.block(ctx, draft, destination)
		}
	}
	span.AddEvent("BLACKLIST_CHECKED")

	// BLACKLIST_CHECKED -> FUNDS_CHECKED
	if err := ledger.CheckSufficientFunds(sender, req.Amount); err != nil {
		return nil, err
	}
	span.AddEvent("FUNDS_CHECKED")

	// FUNDS_CHECKED -> FRAUD_EVALUATED
	verdict := fraud.Evaluate(fraud.FromTelemetry(req.Amount, sender.Balance, req.Telemetry))
	span.AddEvent("FRAUD_EVALUATED")
	if verdict.IsFraud {
		return s.flag(ctx, draft, verdict)
	}

	if req.Kind == domain.TransferAccount {
		receiver, err = s.resolveAccountReceiver(ctx, req.ToAccount)
		if err != nil {
			return nil, err
		}
	}
	return s.settle(ctx, draft, receiver)
}

func (s *TransferService) authorize(ctx context.Context, req *domain.TransferRequest) error {
	authCtx, cancel := context.WithTimeout(ctx, s.cfg.AuthTimeout)
	defer cancel()

	err := s.auth.Authorize(authCtx, req.SenderID, req.OTP)
	if err == nil {
		return nil
	}
	var unauthorized *domain.ErrUnauthorized
	if errors.As(err, &unauthorized) {
		return err
	}
	s.logger.Error("authorization check failed, refusing transfer",
		zap.String("account_id", req.SenderID),
		zap.Bool("timeout", errors.Is(err, context.DeadlineExceeded)),
		zap.Error(err),
	)
	return &domain.ErrUnauthorized{Message: domain.MsgInvalidOTP}
}

// blacklistKey returns the identifier checked against the registry, or ""
// when the transfer kind skips the check.
func (s *TransferService) blacklistKey(req *domain.TransferRequest, receiver *domain.Account) string {
	if req.Kind == domain.TransferAccount {
		return req.ToAccount
	}
	if s.cfg.CheckUPIBlacklist && receiver != nil {
		return receiver.AccountNumber
	}
	return ""
}

// resolveAccountReceiver returns nil when the destination is not an account
// of this bank.
func (s *TransferService) resolveAccountReceiver(ctx context.Context, accountNumber string) (*domain.Account, error) {
	lookupCtx, cancel := context.WithTimeout(ctx, s.cfg.LookupTimeout)
	defer cancel()

	receiver, err := s.accounts.GetAccountByNumber(lookupCtx, accountNumber)
	if err != nil {
		var nf *domain.ErrNotFound
		if errors.As(err, &nf) {
			return nil, nil
		}
		return nil, fmt.Errorf("resolve receiver account: %w", err)
	}
	return receiver, nil
}

func (s *TransferService) block(ctx context.Context, d *ledger.Draft, destination string) (*domain.TransferResult, error) {
	rec := d.Blocked()
	if err := s.txns.InsertTransaction(ctx, &rec); err != nil {
		return nil, fmt.Errorf("insert blocked record: %w", err)
	}

	s.logger.Warn("transfer blocked, destination reported",
		zap.String("txn_id", rec.TxnID),
		zap.String("account_id", d.Sender.ID),
		zap.String("destination", maskAccount(destination)),
	)
	s.notify.Dispatch(ctx, domain.NotifyFraudAlert, d.Sender, blockedMessage(destination))

	return &domain.TransferResult{
		Outcome:       domain.OutcomeBlocked,
		Message:       domain.MsgBlocked,
		IsFraud:       true,
		TxnBlocked:    true,
		FraudReason:   domain.ReasonReportedByUsers,
		BalanceBefore: rec.BalanceBefore,
		BalanceAfter:  rec.BalanceAfter,
	}, nil
}

func (s *TransferService) flag(ctx context.Context, d *ledger.Draft, v domain.FraudVerdict) (*domain.TransferResult, error) {
	rec := d.Flagged(v)
	if err := s.txns.InsertTransaction(ctx, &rec); err != nil {
		return nil, fmt.Errorf("insert flagged record: %w", err)
	}

	destination := d.Request.ToAccount
	msg := domain.MsgFlagged
	if d.Request.Kind == domain.TransferUPI {
		destination = d.Request.ToUPI
		msg = domain.MsgUPIFlagged
	}

	s.logger.Warn("transfer flagged",
		zap.String("txn_id", rec.TxnID),
		zap.String("account_id", d.Sender.ID),
		zap.String("reason", v.Reason),
	)
	s.notify.Dispatch(ctx, domain.NotifyFraudAlert, d.Sender,
		flaggedMessage(v.Reason, d.Request.Amount, destination, d.Sender.Balance))

	return &domain.TransferResult{
		Outcome:       domain.OutcomeFlagged,
		Message:       msg,
		IsFraud:       true,
		TxnBlocked:    true,
		FraudReason:   v.Reason,
		BalanceBefore: rec.BalanceBefore,
		BalanceAfter:  rec.BalanceAfter,
	}, nil
}

// settle debits the sender, records the debit leg, then credits the
// receiver when one resolved. The two legs are separate single-document
// writes; a failure between them leaves an unpaired debit in the audit trail
// for reconciliation.
func (s *TransferService) settle(ctx context.Context, d *ledger.Draft, receiver *domain.Account) (*domain.TransferResult, error) {
	req := d.Request

	debit, err := s.ledger.Debit(ctx, d.Sender.ID, req.Amount)
	if err != nil {
		return nil, err
	}

	// Money has left the sender: the debit record and the credit leg run
	// to completion even if the caller goes away.
	settleTimeout := s.cfg.SettleTimeout
	if settleTimeout <= 0 {
		settleTimeout = defaultSettleTimeout
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), settleTimeout)
	defer cancel()

	debitRec := d.Debit(debit, receiver)
	if err := s.txns.InsertTransaction(ctx, &debitRec); err != nil {
		s.logger.Error("debit committed but its record was not written",
			zap.String("txn_id", debitRec.TxnID),
			zap.String("account_id", d.Sender.ID),
			zap.Float64("amount", req.Amount),
			zap.Float64("balance_before", debit.BalanceBefore),
			zap.Float64("balance_after", debit.BalanceAfter),
			zap.Error(err),
		)
		return nil, fmt.Errorf("insert debit record: %w", err)
	}

	if receiver != nil {
		s.creditReceiver(ctx, d, receiver)
	} else {
		s.metrics.IncrCreditLegSkipped()
		s.logger.Warn("receiver not found, credit leg skipped",
			zap.String("txn_id", debitRec.TxnID),
			zap.String("account_id", d.Sender.ID),
			zap.String("to_account", maskAccount(req.ToAccount)),
			zap.Float64("amount", req.Amount),
		)
	}

	res := &domain.TransferResult{
		Outcome:       domain.OutcomeSettled,
		Message:       domain.MsgSettled,
		TxnID:         debitRec.TxnID,
		BalanceBefore: debit.BalanceBefore,
		BalanceAfter:  debit.BalanceAfter,
	}
	if req.Kind == domain.TransferUPI {
		res.Message = domain.MsgUPISettled
		res.Receiver = receiver.UPIID
		s.notify.Dispatch(ctx, domain.NotifyDebit, debit.Account,
			upiDebitMessage(req.ToUPI, req.Amount, debit.BalanceAfter))
	} else {
		s.notify.Dispatch(ctx, domain.NotifyDebit, debit.Account,
			debitMessage(d.Sender.AccountNumber, req.BeneficiaryName, req.ToAccount, req.Amount, debit.BalanceAfter))
	}

	s.logger.Info("transfer settled",
		zap.String("txn_id", debitRec.TxnID),
		zap.String("kind", string(req.Kind)),
		zap.String("account_id", d.Sender.ID),
		zap.Bool("credited", receiver != nil),
		zap.Float64("amount", req.Amount),
	)
	return res, nil
}

func (s *TransferService) creditReceiver(ctx context.Context, d *ledger.Draft, receiver *domain.Account) {
	req := d.Request
	fields := []zap.Field{
		zap.String("txn_id", d.ID),
		zap.String("account_id", d.Sender.ID),
		zap.String("receiver_id", receiver.ID),
		zap.Float64("amount", req.Amount),
	}

	credit, err := s.ledger.Credit(ctx, receiver.ID, req.Amount)
	if err != nil {
		s.metrics.IncrUnpairedDebit()
		s.logger.Error("credit leg failed after debit committed", append(fields, zap.Error(err))...)
		return
	}

	creditRec := d.Credit(credit, receiver)
	if err := s.txns.InsertTransaction(ctx, &creditRec); err != nil {
		s.metrics.IncrUnpairedDebit()
		s.logger.Error("credit committed but its record was not written",
			append(fields, zap.Float64("receiver_balance_after", credit.BalanceAfter), zap.Error(err))...)
		return
	}

	body := creditMessage(receiver.AccountNumber, d.Sender.AccountNumber, req.Amount, credit.BalanceAfter)
	if req.Kind == domain.TransferUPI {
		body = upiCreditMessage(d.Sender.AccountNumber, req.Amount, credit.BalanceAfter)
	}
	s.notify.Dispatch(ctx, domain.NotifyCredit, credit.Account, body)
}

func validateTransfer(req *domain.TransferRequest) error {
	switch req.Kind {
	case domain.TransferAccount:
		if req.ToAccount == "" || req.IFSC == "" {
			return &domain.ErrValidation{Field: "to_account", Message: domain.MsgMissingDetails}
		}
	case domain.TransferUPI:
		if req.ToUPI == "" {
			return &domain.ErrValidation{Field: "upiId", Message: domain.MsgUPIRequired}
		}
	default:
		return &domain.ErrValidation{Field: "kind", Message: "Unknown transfer kind"}
	}
	if req.SenderID == "" {
		return &domain.ErrUnauthorized{}
	}
	if math.IsNaN(req.Amount) || math.IsInf(req.Amount, 0) || req.Amount <= 0 ||
		req.Amount > ledger.MaxAmount.InexactFloat64() || req.Amount != ledger.Round2(req.Amount) {
		return &domain.ErrValidation{Field: "amount", Message: domain.MsgInvalidAmount}
	}
	return nil
}
