package domain

import "fmt"

// Error types for consistent error handling across the ledger.

// ErrNotFound indicates a resource was not found. Message, when set, is the
// client-facing text.
type ErrNotFound struct {
	Resource string
	ID       string
	Message  string
}

func (e *ErrNotFound) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

// ErrValidation indicates a malformed or missing request field.
// Message is safe to return to the client as-is.
type ErrValidation struct {
	Field   string
	Message string
}

func (e *ErrValidation) Error() string {
	return e.Message
}

// ErrUnauthorized indicates a missing, invalid or expired authorization proof.
type ErrUnauthorized struct {
	Message string
}

func (e *ErrUnauthorized) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return "unauthorized"
}

// ErrForbidden indicates the principal lacks permission for the operation.
type ErrForbidden struct {
	Action string
}

func (e *ErrForbidden) Error() string {
	return fmt.Sprintf("forbidden: %s", e.Action)
}

// ErrInsufficientFunds indicates not enough balance for the operation.
type ErrInsufficientFunds struct {
	Available float64
	Required  float64
}

func (e *ErrInsufficientFunds) Error() string {
	return fmt.Sprintf("insufficient funds: available=%.2f required=%.2f", e.Available, e.Required)
}

// ErrAccountFrozen indicates a debit was attempted on a FROZEN account.
type ErrAccountFrozen struct {
	AccountID string
}

func (e *ErrAccountFrozen) Error() string {
	return fmt.Sprintf("account %s is frozen", e.AccountID)
}

// ErrPersistenceConflict indicates the compare-and-swap on a balance kept
// losing against concurrent writers until the retry budget ran out.
type ErrPersistenceConflict struct {
	AccountID string
	Attempts  int
}

func (e *ErrPersistenceConflict) Error() string {
	return fmt.Sprintf("balance update conflict on account %s after %d attempts", e.AccountID, e.Attempts)
}

// ErrDependencyUnavailable indicates a lookup collaborator (blacklist registry,
// authorization store) failed or timed out.
type ErrDependencyUnavailable struct {
	Service string
	Err     error
}

func (e *ErrDependencyUnavailable) Error() string {
	return fmt.Sprintf("dependency unavailable [%s]: %v", e.Service, e.Err)
}

func (e *ErrDependencyUnavailable) Unwrap() error {
	return e.Err
}

// ErrExternalService indicates a failure in an outbound call (SMS gateway, broker).
type ErrExternalService struct {
	Service string
	Err     error
}

func (e *ErrExternalService) Error() string {
	return fmt.Sprintf("external service error [%s]: %v", e.Service, e.Err)
}

func (e *ErrExternalService) Unwrap() error {
	return e.Err
}
