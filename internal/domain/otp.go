package domain

import "time"

// OTPRecord is the stored form of a one-time transfer authorization code.
// Only the bcrypt hash of the code is kept.
type OTPRecord struct {
	AccountID string    `json:"accountId"`
	CodeHash  string    `json:"codeHash"`
	ExpiresAt time.Time `json:"expiresAt"`
	CreatedAt time.Time `json:"createdAt"`
}

// Expired reports whether the code is past its expiry at now.
func (o *OTPRecord) Expired(now time.Time) bool {
	return !now.Before(o.ExpiresAt)
}

// OTPIssued is the response of POST /api/txns/send-otp. Code is only
// populated when the server runs with OTP exposure enabled.
type OTPIssued struct {
	Message string `json:"message"`
	OTP     string `json:"otp,omitempty"`
}
