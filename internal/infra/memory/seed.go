package memory

import (
	"time"

	"github.com/boddenberg/grambank-ledger-go/internal/domain"
)

// InitialBalance is credited to every newly provisioned account.
const InitialBalance = 15000

// reportedAccounts is the static registry shipped with the bank.
var reportedAccounts = []struct{ account, reason string }{
	{"1234567890", "Account reported for phishing scams"},
	{"9876543210", "Linked to unauthorized UPI requests"},
	{"4561237890", "Suspicious international activity"},
	{"9988776655", "Confirmed mule account"},
	{"1122334455", "High volume of fake transactions"},
	{"2211334455", "Reported by multiple users"},
	{"4411223344", "Stolen credentials linked"},
	{"6677889900", "Impersonation of bank personnel"},
	{"3322110099", "Fraudulent investment scheme"},
	{"1234432112", "Used in smishing attempts"},
}

// DemoAccounts are provisioned by SeedDemo.
var DemoAccounts = []domain.Account{
	{ID: "acc-asha", Name: "Asha Verma", AccountNumber: "21301000000001", PhoneNumber: "9876500001"},
	{ID: "acc-ravi", Name: "Ravi Kumar", AccountNumber: "21301000000002", PhoneNumber: "9876500002"},
	{ID: "acc-meena", Name: "Meena Iyer", AccountNumber: "21301000000003", PhoneNumber: "9876500003"},
}

// UPIFor returns the UPI handle derived from an account number.
func UPIFor(accountNumber string) string {
	return accountNumber + "@grambank"
}

// SeedBlacklist loads the static reported-accounts registry.
func (s *Store) SeedBlacklist() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	for _, r := range reportedAccounts {
		s.blacklist[r.account] = domain.BlacklistEntry{
			AccountNumber: r.account,
			Reason:        r.reason,
			CreatedAt:     now,
		}
	}
}

// SeedDemo provisions the demo accounts with the initial balance.
func (s *Store) SeedDemo() {
	for _, acc := range DemoAccounts {
		acc.Balance = InitialBalance
		acc.UPIID = UPIFor(acc.AccountNumber)
		s.PutAccount(acc)
	}
}
