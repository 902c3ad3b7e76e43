package domain

import "time"

// NotificationKind classifies an outbound SMS.
type NotificationKind string

const (
	NotifyDebit      NotificationKind = "DEBIT"
	NotifyCredit     NotificationKind = "CREDIT"
	NotifyFraudAlert NotificationKind = "FRAUD_ALERT"
	NotifyOTP        NotificationKind = "OTP"
)

// Notification is a fire-and-forget message to an account holder.
type Notification struct {
	ID        string           `json:"id"`
	Kind      NotificationKind `json:"kind"`
	AccountID string           `json:"accountId"`
	To        string           `json:"to"`
	Body      string           `json:"body"`
	CreatedAt time.Time        `json:"createdAt"`
}
