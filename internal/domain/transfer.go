package domain

// ============================================================
// Transfers
// ============================================================

// TransferKind distinguishes account-number transfers from UPI transfers.
type TransferKind string

const (
	TransferAccount TransferKind = "ACCOUNT"
	TransferUPI     TransferKind = "UPI"
)

// TransferOutcome is the terminal state of a transfer.
type TransferOutcome string

const (
	OutcomeSettled TransferOutcome = "SETTLED"
	OutcomeBlocked TransferOutcome = "BLOCKED_FRAUD"
	OutcomeFlagged TransferOutcome = "FLAGGED_FRAUD"
)

// Telemetry carries the optional client-side risk signals. Absent fields
// never trigger their rule.
type Telemetry struct {
	LocationDeltaKm *float64 `json:"location_delta_km,omitempty"`
	IsForeignDevice *int     `json:"is_foreign_device,omitempty"`
	TxnsLast24h     *int     `json:"txns_last_24h,omitempty"`
	AvgAmount7d     *float64 `json:"avg_amount_7d,omitempty"`
}

// TransferRequest is the validated input of the orchestrator.
type TransferRequest struct {
	Kind            TransferKind
	SenderID        string
	ToAccount       string
	IFSC            string
	BeneficiaryName string
	ToUPI           string
	Amount          float64
	OTP             string
	Telemetry       Telemetry
}

// TransferResult is the orchestrator outcome as returned to the client.
type TransferResult struct {
	Outcome       TransferOutcome `json:"-"`
	Message       string          `json:"message"`
	IsFraud       bool            `json:"is_fraud"`
	TxnBlocked    bool            `json:"txn_blocked,omitempty"`
	FraudReason   string          `json:"fraud_reason,omitempty"`
	TxnID         string          `json:"txn_id,omitempty"`
	Receiver      string          `json:"receiver,omitempty"`
	BalanceBefore float64         `json:"balance_before"`
	BalanceAfter  float64         `json:"balance_after"`
}

// Outcome messages returned to the client.
const (
	MsgBlocked         = "Fraudulent account detected"
	MsgFlagged         = "Transaction flagged as suspicious"
	MsgUPIFlagged      = "UPI transaction flagged"
	MsgSettled         = "Transaction successful"
	MsgUPISettled      = "UPI Transaction Successful"
	MsgInsufficient    = "Insufficient balance"
	MsgMissingDetails  = "Missing transaction details"
	MsgInvalidAmount   = "Invalid amount"
	MsgUPIRequired     = "UPI ID & Amount required"
	MsgOTPRequired     = "OTP required"
	MsgReceiverUPI     = "Receiver UPI not found"
	MsgInvalidOTP      = "Invalid or expired OTP"
	MsgServerError     = "Server error"
	MsgReported        = "Fraudulent account reported successfully"
	MsgAlreadyReported = "Account already reported"
)
