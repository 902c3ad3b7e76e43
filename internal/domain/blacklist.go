package domain

import "time"

// BlacklistEntry is a destination account reported as fraudulent.
// The registry is keyed on the literal account number.
type BlacklistEntry struct {
	AccountNumber string    `json:"accountNumber"`
	IFSC          string    `json:"ifsc,omitempty"`
	Reason        string    `json:"reason"`
	ReportedBy    string    `json:"reportedBy,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
}

// ReportRequest is the body of POST /api/txns/report.
type ReportRequest struct {
	AccountNumber string `json:"accountNumber"`
	IFSC          string `json:"ifsc,omitempty"`
	Reason        string `json:"reason,omitempty"`
}

// DefaultReportReason is stored when a reporter gives none.
const DefaultReportReason = "User reported fraudulent activity"
