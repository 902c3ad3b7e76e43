package service

import (
	"fmt"
	"regexp"
	"strings"
)

var tenDigits = regexp.MustCompile(`^\d{10}$`)

// maskAccount keeps the last four characters of an account identifier.
func maskAccount(acc string) string {
	if acc == "" {
		return "****"
	}
	if len(acc) <= 4 {
		return "****" + acc
	}
	return "****" + acc[len(acc)-4:]
}

// formatPhone normalises a phone number to E.164, assuming India for bare
// ten-digit numbers.
func formatPhone(phone string) string {
	phone = strings.TrimSpace(phone)
	if phone == "" || strings.HasPrefix(phone, "+") {
		return phone
	}
	if tenDigits.MatchString(phone) {
		return "+91" + phone
	}
	return phone
}

func rupees(v float64) string {
	return fmt.Sprintf("₹%.2f", v)
}

func otpMessage(code string, ttlMinutes int) string {
	return fmt.Sprintf("Your GramBank transaction OTP is %s. It will expire in %d minutes.", code, ttlMinutes)
}

func blockedMessage(toAccount string) string {
	return fmt.Sprintf("Alert: A transfer to account %s has been blocked for safety. If this was not you, contact GramBank immediately.",
		maskAccount(toAccount))
}

func flaggedMessage(reason string, amount float64, destination string, balance float64) string {
	return fmt.Sprintf("GramBank Alert: A %s transaction of %s to %s was flagged and blocked. Available balance: %s.",
		reason, rupees(amount), maskAccount(destination), rupees(balance))
}

func debitMessage(fromAccount, beneficiary, toAccount string, amount, balance float64) string {
	if beneficiary == "" {
		beneficiary = maskAccount(toAccount)
	}
	return fmt.Sprintf("GramBank: Your A/c %s debited %s to %s A/c %s. Avl bal %s. - GramBank",
		maskAccount(fromAccount), rupees(amount), beneficiary, maskAccount(toAccount), rupees(balance))
}

func creditMessage(toAccount, fromAccount string, amount, balance float64) string {
	return fmt.Sprintf("GramBank: Your A/c %s credited %s from %s. Avl bal %s.",
		maskAccount(toAccount), rupees(amount), maskAccount(fromAccount), rupees(balance))
}

func upiDebitMessage(upiID string, amount, balance float64) string {
	return fmt.Sprintf("GramBank: %s debited via UPI to %s. Avl bal %s.", rupees(amount), upiID, rupees(balance))
}

func upiCreditMessage(fromAccount string, amount, balance float64) string {
	return fmt.Sprintf("GramBank: %s credited to your account via UPI from %s. Avl bal %s.",
		rupees(amount), maskAccount(fromAccount), rupees(balance))
}
