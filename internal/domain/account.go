package domain

import "time"

// ============================================================
// Accounts
// ============================================================

// AccountStatus is the lifecycle state of an account.
type AccountStatus string

const (
	AccountActive AccountStatus = "ACTIVE"
	AccountFrozen AccountStatus = "FROZEN"
)

// Account is owned by the identity collaborator; the ledger only reads it
// and mutates Balance and TransactionsCount.
type Account struct {
	ID                string        `json:"id"`
	Name              string        `json:"name"`
	AccountNumber     string        `json:"accountNumber"`
	UPIID             string        `json:"upiId"`
	PhoneNumber       string        `json:"phoneNumber"`
	Balance           float64       `json:"balance"`
	TransactionsCount int           `json:"transactionsCount"`
	Status            AccountStatus `json:"status"`
	CreatedAt         time.Time     `json:"createdAt"`
}

// IsFrozen reports whether the account has been frozen by an operator.
func (a *Account) IsFrozen() bool {
	return a.Status == AccountFrozen
}

// BalanceSummary is returned by GET /api/txns/balance.
type BalanceSummary struct {
	Name          string          `json:"name"`
	AccountNumber string          `json:"accountNumber"`
	Balance       float64         `json:"balance"`
	UPIID         string          `json:"upiId"`
	Recent        []RecentTxnItem `json:"recent"`
}

// RecentTxnItem is a compact view of a TransactionRecord.
type RecentTxnItem struct {
	TxnID     string    `json:"txn_id"`
	Amount    float64   `json:"amount"`
	Type      TxnType   `json:"type"`
	CreatedAt time.Time `json:"createdAt"`
}
