package ledger

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/boddenberg/grambank-ledger-go/internal/domain"
)

// Transaction id prefixes.
const (
	PrefixAccount = "TXN"
	PrefixUPI     = "UPI"
	PrefixSeed    = "SEED"
)

// NewTxnID returns "<prefix>-<unix nanos>-<8 hex chars>". The random suffix
// keeps ids unique when two transfers land in the same nanosecond.
func NewTxnID(prefix string) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return fmt.Sprintf("%s-%d-%s", prefix, time.Now().UnixNano(), suffix)
}

// Draft carries what every leg of one transfer shares: the base id, the
// request, the sender as read at the start and the evaluation instant.
type Draft struct {
	ID      string
	Request *domain.TransferRequest
	Sender  *domain.Account
	At      time.Time
}

// NewDraft allocates the base id for a transfer.
func NewDraft(req *domain.TransferRequest, sender *domain.Account, at time.Time) *Draft {
	prefix := PrefixAccount
	if req.Kind == domain.TransferUPI {
		prefix = PrefixUPI
	}
	return &Draft{ID: NewTxnID(prefix), Request: req, Sender: sender, At: at}
}

// Blocked builds the single sender-side record of a transfer stopped by the
// blacklist. The balance is untouched.
func (d *Draft) Blocked() domain.TransactionRecord {
	rec := d.senderLeg(d.Sender.Balance, d.Sender.Balance)
	rec.IsFraud = true
	rec.TxnBlocked = true
	rec.FraudReason = strPtr(domain.ReasonReportedByUsers)
	return rec
}

// Flagged builds the single sender-side record of a transfer stopped by a
// fraud rule. The balance is untouched.
func (d *Draft) Flagged(v domain.FraudVerdict) domain.TransactionRecord {
	rec := d.senderLeg(d.Sender.Balance, d.Sender.Balance)
	rec.IsFraud = true
	rec.TxnBlocked = true
	rec.FraudReason = strPtr(v.Reason)
	return rec
}

// Debit builds the sender leg of a settled transfer. receiver is nil when
// the destination did not resolve to an internal account.
func (d *Draft) Debit(m *Mutation, receiver *domain.Account) domain.TransactionRecord {
	rec := d.senderLeg(m.BalanceBefore, m.BalanceAfter)
	if receiver != nil {
		rec.ReceiverAccountID = receiver.ID
	}
	return rec
}

// Credit builds the receiver leg of a settled transfer, linked to the debit
// leg by the "-CREDIT" suffix.
func (d *Draft) Credit(m *Mutation, receiver *domain.Account) domain.TransactionRecord {
	rec := domain.TransactionRecord{
		TxnID:         d.ID + domain.CreditSuffix,
		AccountID:     receiver.ID,
		Type:          domain.TxnCredit,
		FromAccount:   d.Sender.AccountNumber,
		Amount:        d.Request.Amount,
		BalanceBefore: m.BalanceBefore,
		BalanceAfter:  m.BalanceAfter,
		Hour:          d.At.Hour(),
		Day:           int(d.At.Weekday()),
		CreatedAt:     d.At,
	}
	if d.Request.Kind == domain.TransferUPI {
		rec.ToUPI = receiver.UPIID
	} else {
		rec.ToAccount = receiver.AccountNumber
	}
	return rec
}

func (d *Draft) senderLeg(before, after float64) domain.TransactionRecord {
	req := d.Request
	rec := domain.TransactionRecord{
		TxnID:           d.ID,
		AccountID:       d.Sender.ID,
		Type:            domain.TxnDebit,
		Amount:          req.Amount,
		BalanceBefore:   before,
		BalanceAfter:    after,
		Hour:            d.At.Hour(),
		Day:             int(d.At.Weekday()),
		TxnsLast24h:     req.Telemetry.TxnsLast24h,
		AvgAmount7d:     req.Telemetry.AvgAmount7d,
		LocationDeltaKm: req.Telemetry.LocationDeltaKm,
		CreatedAt:       d.At,
	}
	if req.Telemetry.IsForeignDevice != nil {
		rec.IsForeignDevice = *req.Telemetry.IsForeignDevice
	}
	if req.Kind == domain.TransferUPI {
		rec.ToUPI = req.ToUPI
	} else {
		rec.ToAccount = req.ToAccount
		rec.IFSC = req.IFSC
		rec.BeneficiaryName = req.BeneficiaryName
	}
	return rec
}

func strPtr(s string) *string { return &s }
