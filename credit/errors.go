/*
errors.go - Centralized error types for the credit engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  Callers match with errors.Is / errors.As; the API layer maps these
  to HTTP status codes.

ERROR CATEGORIES:
  1. Lookup errors      - unknown account / entry / schedule
  2. Validation errors  - business rule violations, caller-correctable
  3. Concurrency errors - per-account serialization could not be obtained

PROPAGATION POLICY:
  Validation errors are returned synchronously and never retried.
  ErrConcurrencyConflict is retried internally by the Service a bounded
  number of times (safe because no partial state is ever committed), then
  surfaced as a transient failure.
*/
package credit

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrAccountNotFound is returned when the referenced account doesn't exist.
	ErrAccountNotFound = errors.New("account not found")

	// ErrAccountInactive is returned when a charge is attempted on a
	// deactivated account. Payments and adjustments are still allowed.
	ErrAccountInactive = errors.New("account is inactive")

	// ErrInvalidAmount is returned for a non-positive payment or charge
	// amount, or a negative credit limit.
	ErrInvalidAmount = errors.New("invalid amount")

	// ErrOverpayment is returned when a payment exceeds the current balance.
	// Pre-paying future charges is rejected, mirroring the point-of-sale
	// clamp of payment amount to the amount owed.
	ErrOverpayment = errors.New("payment exceeds current balance")

	// ErrEntryNotFound is returned when the referenced ledger entry doesn't exist.
	ErrEntryNotFound = errors.New("ledger entry not found")

	// ErrScheduleNotFound is returned when the referenced schedule doesn't exist.
	ErrScheduleNotFound = errors.New("payment schedule not found")

	// ErrConcurrencyConflict is returned when the per-account lock cannot be
	// acquired within the configured timeout. Safe to retry: no partial
	// state is committed.
	ErrConcurrencyConflict = errors.New("concurrent operation on account")

	// ErrInvalidTerms is returned for malformed installment terms.
	ErrInvalidTerms = errors.New("invalid installment terms")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// OverpaymentError reports how far a payment exceeded the balance.
type OverpaymentError struct {
	AccountID AccountID
	Balance   decimal.Decimal
	Requested decimal.Decimal
}

func (e *OverpaymentError) Error() string {
	return fmt.Sprintf("overpayment rejected: balance %s, requested %s",
		e.Balance.String(), e.Requested.String())
}

func (e *OverpaymentError) Unwrap() error {
	return ErrOverpayment
}

// InvalidAmountError reports a sign or zero-value violation for an entry type.
type InvalidAmountError struct {
	Type   EntryType
	Amount decimal.Decimal
	Reason string
}

func (e *InvalidAmountError) Error() string {
	return fmt.Sprintf("invalid amount %s for %s: %s", e.Amount.String(), e.Type, e.Reason)
}

func (e *InvalidAmountError) Unwrap() error {
	return ErrInvalidAmount
}
