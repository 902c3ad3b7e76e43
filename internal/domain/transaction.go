package domain

import "time"

// ============================================================
// Transaction records (audit trail)
// ============================================================

// TxnType is the direction of a leg.
type TxnType string

const (
	TxnDebit  TxnType = "DEBIT"
	TxnCredit TxnType = "CREDIT"
)

// CreditSuffix links the receiver leg to its debit leg.
const CreditSuffix = "-CREDIT"

// TransactionRecord is one leg of a transfer outcome. It is written once and
// never updated or deleted.
type TransactionRecord struct {
	TxnID     string  `json:"txn_id"`
	AccountID string  `json:"user_id"`
	Type      TxnType `json:"type"`

	// Counterparty
	ToAccount       string `json:"to_account,omitempty"`
	ToUPI           string `json:"to_upi,omitempty"`
	FromAccount     string `json:"from_account,omitempty"`
	IFSC            string `json:"ifsc,omitempty"`
	BeneficiaryName string `json:"beneficiary_name,omitempty"`

	// ReceiverAccountID is set on a debit leg whose receiver resolved to an
	// internal account; reconciliation expects a matching credit leg.
	ReceiverAccountID string `json:"receiver_account_id,omitempty"`

	// Money
	Amount        float64 `json:"amount"`
	BalanceBefore float64 `json:"balance_before"`
	BalanceAfter  float64 `json:"balance_after"`

	// Telemetry snapshot
	Hour            int      `json:"hour"`
	Day             int      `json:"day"`
	TxnsLast24h     *int     `json:"txns_last_24h,omitempty"`
	AvgAmount7d     *float64 `json:"avg_amount_7d,omitempty"`
	LocationDeltaKm *float64 `json:"location_delta_km,omitempty"`
	IsForeignDevice int      `json:"is_foreign_device"`

	// Fraud
	IsFraud     bool    `json:"is_fraud"`
	FraudReason *string `json:"fraud_reason"`
	TxnBlocked  bool    `json:"txn_blocked"`

	CreatedAt time.Time `json:"createdAt"`
}

// BaseID returns the shared identifier of a transfer's legs.
func (r *TransactionRecord) BaseID() string {
	if r.Type == TxnCredit && len(r.TxnID) > len(CreditSuffix) && r.TxnID[len(r.TxnID)-len(CreditSuffix):] == CreditSuffix {
		return r.TxnID[:len(r.TxnID)-len(CreditSuffix)]
	}
	return r.TxnID
}

// ============================================================
// Fraud verdict
// ============================================================

// Fraud reasons, in rule evaluation order.
const (
	ReasonLargeTxn        = "Large txn relative to balance"
	ReasonLocationJump    = "Location jump"
	ReasonForeignDevice   = "Foreign device"
	ReasonTooManyTxns     = "Too many txns in 24h"
	ReasonReportedByUsers = "Account reported by users"
)

// FraudVerdict is the transient output of the rule evaluator.
type FraudVerdict struct {
	IsFraud bool
	Reason  string
}

// ============================================================
// Reconciliation
// ============================================================

// UnpairedDebit is a debit leg whose internal receiver has no credit leg.
type UnpairedDebit struct {
	TxnID             string    `json:"txn_id"`
	AccountID         string    `json:"user_id"`
	ReceiverAccountID string    `json:"receiver_account_id"`
	Amount            float64   `json:"amount"`
	CreatedAt         time.Time `json:"createdAt"`
}

// ReconciliationReport summarises one reconciliation pass.
type ReconciliationReport struct {
	Since     time.Time       `json:"since"`
	Scanned   int             `json:"scanned"`
	Unpaired  []UnpairedDebit `json:"unpaired"`
	CheckedAt time.Time       `json:"checkedAt"`
}
