/*
Package credit provides the customer credit account ledger and
payment-schedule engine.

PURPOSE:
  This package contains the domain types and algorithms for tracking
  customer credit: an append-only ledger of balance movements, installment
  schedules settled by payment allocation, and a derived health
  classification used by callers for display and decisioning.

KEY CONCEPTS IN THIS FILE (types.go):
  - CreditAccount: limit + active flag; balance is always derived
  - LedgerEntry: an immutable, signed movement against an account
  - PaymentSchedule: a due-dated installment, settled by allocation
  - Entry/Account/Schedule IDs: type-safe identifiers

DESIGN PRINCIPLES:
  1. Immutability: ledger entries are never modified, only offset
  2. Precision: uses decimal.Decimal to avoid floating-point errors
  3. Derivation: balance, available credit, and schedule status are
     computed from stored facts, never stored as independent state
  4. Type safety: strong typing for IDs prevents mixing account,
     entry, and schedule identifiers

SEE ALSO:
  - ledger.go: Append-only entry log and balance queries
  - schedule.go: Schedule tracker and installment term generation
  - allocator.go: Payment allocation across open schedules
  - health.go: Balance-vs-limit health classification
  - service.go: The facade external callers use
*/
package credit

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type AccountID string
type EntryID string
type ScheduleID string

// =============================================================================
// ENTRY TYPE - Closed enum of ledger movement kinds
// =============================================================================

// EntryType classifies a ledger movement. The sign convention is fixed per
// type and enforced at the validation boundary:
//
//	SALE_ON_CREDIT    positive (increases debt)
//	CREDIT_PAYMENT    negative (reduces debt)
//	REFUND_TO_CREDIT  negative (reduces debt)
//	ADJUSTMENT        either sign (manual correction)
type EntryType string

const (
	EntrySale       EntryType = "SALE_ON_CREDIT"
	EntryPayment    EntryType = "CREDIT_PAYMENT"
	EntryAdjustment EntryType = "ADJUSTMENT"
	EntryRefund     EntryType = "REFUND_TO_CREDIT"
)

// Valid reports whether t is one of the known entry types.
func (t EntryType) Valid() bool {
	switch t {
	case EntrySale, EntryPayment, EntryAdjustment, EntryRefund:
		return true
	}
	return false
}

// =============================================================================
// CREDIT ACCOUNT
// =============================================================================

// CreditAccount is the stored account record. Balance and available credit
// are NEVER stored here; they are derived from the ledger on read.
//
// Lifecycle: created when a customer is granted credit, deactivated (not
// deleted) when the privilege is revoked. A deactivated account refuses new
// charges but still accepts payments so existing debt can be paid down.
type CreditAccount struct {
	ID          AccountID
	CustomerID  string
	CreditLimit decimal.Decimal // non-negative
	IsActive    bool
	CreatedAt   time.Time
}

// AccountView is an account together with its derived fields, as returned
// to callers. Available may be negative when the account is over limit.
type AccountView struct {
	Account   CreditAccount
	Balance   decimal.Decimal
	Available decimal.Decimal
	Health    HealthTier
}

// =============================================================================
// LEDGER ENTRY - Immutable movement against an account's balance
// =============================================================================

// LedgerEntry is one signed, dated movement against an account. Once written
// it is immutable; corrections are new offsetting entries.
//
// Invariant: BalanceAfter is the running balance immediately after this
// entry, so for consecutive entries e[n-1], e[n]:
//
//	e[n].BalanceAfter == e[n-1].BalanceAfter + e[n].Amount
type LedgerEntry struct {
	ID           EntryID
	AccountID    AccountID
	Type         EntryType
	Amount       decimal.Decimal // positive increases debt, negative decreases it
	BalanceAfter decimal.Decimal // snapshot, computed at append time
	Reference    string          // receipt / PO number, free text
	CreatedAt    time.Time       // monotonic per account
}

// =============================================================================
// PAYMENT SCHEDULE - Due-dated installment settled by allocation
// =============================================================================

// ScheduleStatus is a pure function of (AmountPaid, AmountDue, DueDate, now).
// It is never stored; see PaymentSchedule.StatusAt.
type ScheduleStatus string

const (
	SchedulePending ScheduleStatus = "PENDING"
	SchedulePartial ScheduleStatus = "PARTIAL"
	SchedulePaid    ScheduleStatus = "PAID"
	ScheduleOverdue ScheduleStatus = "OVERDUE"
)

// PaymentSchedule is a fixed-amount, due-dated obligation tracked separately
// from the running balance. AmountPaid only ever grows, and only via the
// payment allocator. Schedules are never deleted; a PAID schedule is a
// permanent historical record.
type PaymentSchedule struct {
	ID         ScheduleID
	AccountID  AccountID
	DueDate    time.Time
	AmountDue  decimal.Decimal // fixed at creation
	AmountPaid decimal.Decimal // 0 <= AmountPaid <= AmountDue, monotonic
	CreatedAt  time.Time
}

// Remaining returns the unpaid portion of the schedule.
func (s PaymentSchedule) Remaining() decimal.Decimal {
	return s.AmountDue.Sub(s.AmountPaid)
}

// StatusAt derives the schedule status at the given instant.
//
// PAID if paid >= due; else OVERDUE if now is past the due date; else
// PARTIAL if anything has been paid; else PENDING. Recomputing is
// idempotent - there is no hidden state.
func (s PaymentSchedule) StatusAt(now time.Time) ScheduleStatus {
	return DeriveStatus(s.AmountPaid, s.AmountDue, s.DueDate, now)
}

// DeriveStatus is the status rule as a standalone pure function.
func DeriveStatus(paid, due decimal.Decimal, dueDate, now time.Time) ScheduleStatus {
	switch {
	case paid.GreaterThanOrEqual(due):
		return SchedulePaid
	case now.After(dueDate):
		return ScheduleOverdue
	case paid.IsPositive():
		return SchedulePartial
	default:
		return SchedulePending
	}
}

// =============================================================================
// ORDERING - Ledger list direction
// =============================================================================

type Ordering string

const (
	OrderAsc  Ordering = "asc"
	OrderDesc Ordering = "desc" // default: most recent first, the UI ordering
)

// MustDecimal parses s as a decimal, returning zero on failure.
// Intended for literals in tests and seed data.
func MustDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}
