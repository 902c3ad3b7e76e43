package domain

// FraudStats is returned by GET /api/fraud/stats.
type FraudStats struct {
	HighRisk               int `json:"highRisk"`
	FlaggedUsers           int `json:"flaggedUsers"`
	SuspiciousTransactions int `json:"suspiciousTransactions"`
	FrozenAccounts         int `json:"frozenAccounts"`
}

// FreezeRequest is the body of the freeze/unfreeze admin endpoints.
type FreezeRequest struct {
	UserID string `json:"userId"`
}

// LedgerMetrics is a point-in-time snapshot of the ledger counters.
type LedgerMetrics struct {
	TransfersSettled   int64   `json:"transfersSettled"`
	TransfersBlocked   int64   `json:"transfersBlocked"`
	TransfersFlagged   int64   `json:"transfersFlagged"`
	TransfersRejected  int64   `json:"transfersRejected"`
	FraudRate          float64 `json:"fraudRate"`
	CASConflicts       int64   `json:"casConflicts"`
	CreditLegsSkipped  int64   `json:"creditLegsSkipped"`
	UnpairedDebits     int64   `json:"unpairedDebits"`
	BlacklistCacheHits int64   `json:"blacklistCacheHits"`
	NotificationsSent  int64   `json:"notificationsSent"`
	NotificationsFail  int64   `json:"notificationsFailed"`
	Period             string  `json:"period"`
}

// Roles carried in the JWT "role" claim.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)
