/*
ledger.go - Append-only entry log and authoritative balance

PURPOSE:
  The Ledger is the immutable source of truth for every balance change.
  Every sale on credit, payment, adjustment, and refund is recorded here.
  Balance is always the running sum of entries - there is no separate
  "balance" column that can drift.

CRITICAL INVARIANTS:
  1. APPEND-ONLY: no update, no delete. EVER.
  2. SNAPSHOT CHAIN: BalanceAfter[n] = BalanceAfter[n-1] + Amount[n]
  3. SIGN DISCIPLINE: each entry type has a fixed sign (see types.go);
     violations are rejected before anything is written
  4. ALL-OR-NOTHING: a failed append leaves no partial entry

CORRECTIONS:
  A mistake is never edited. An ADJUSTMENT entry with the opposite sign
  offsets it, and both remain in the ledger.

CONCURRENCY:
  Append reads the prior balance and writes the new snapshot. It is NOT
  safe under concurrent appends to the same account by itself - the
  Service serializes per account before calling in (see service.go).
*/
package credit

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// =============================================================================
// LEDGER - Append-only entry log over a Store
// =============================================================================

// Ledger records entries and answers balance queries. The zero ordering for
// List is OrderDesc (most recent first).
type Ledger struct {
	store Store
}

func NewLedger(store Store) *Ledger {
	return &Ledger{store: store}
}

// Append validates and records a new entry for the account, computing the
// BalanceAfter snapshot from the account's prior entries. The entry id and
// timestamp are issued here so every caller gets the same guarantees.
//
// Fails with ErrAccountNotFound for unknown accounts and ErrInvalidAmount
// (wrapped in InvalidAmountError) for sign violations.
func (l *Ledger) Append(ctx context.Context, accountID AccountID, entryType EntryType, amount decimal.Decimal, reference string, now time.Time) (LedgerEntry, error) {
	if _, err := l.store.GetAccount(ctx, accountID); err != nil {
		return LedgerEntry{}, err
	}
	if err := validateEntryAmount(entryType, amount); err != nil {
		return LedgerEntry{}, err
	}

	balance, err := l.CurrentBalance(ctx, accountID)
	if err != nil {
		return LedgerEntry{}, err
	}

	entry := LedgerEntry{
		ID:           EntryID(uuid.NewString()),
		AccountID:    accountID,
		Type:         entryType,
		Amount:       amount,
		BalanceAfter: balance.Add(amount),
		Reference:    reference,
		CreatedAt:    now,
	}
	if err := l.store.AppendEntry(ctx, entry); err != nil {
		return LedgerEntry{}, err
	}
	return entry, nil
}

// CurrentBalance is the BalanceAfter of the most recent entry, or zero for
// an empty ledger. By the snapshot-chain invariant this equals the sum of
// all entry amounts.
func (l *Ledger) CurrentBalance(ctx context.Context, accountID AccountID) (decimal.Decimal, error) {
	last, err := l.store.LastEntry(ctx, accountID)
	if errors.Is(err, ErrEntryNotFound) {
		return decimal.Zero, nil
	}
	if err != nil {
		return decimal.Decimal{}, err
	}
	return last.BalanceAfter, nil
}

// List returns a page of entries plus the total count.
func (l *Ledger) List(ctx context.Context, accountID AccountID, page, pageSize int, ord Ordering) ([]LedgerEntry, int, error) {
	if _, err := l.store.GetAccount(ctx, accountID); err != nil {
		return nil, 0, err
	}
	if ord == "" {
		ord = OrderDesc
	}
	return l.store.ListEntries(ctx, accountID, page, pageSize, ord)
}

// =============================================================================
// SIGN VALIDATION - the closed-enum switch at the write boundary
// =============================================================================

func validateEntryAmount(t EntryType, amount decimal.Decimal) error {
	if amount.IsZero() {
		return &InvalidAmountError{Type: t, Amount: amount, Reason: "amount must be non-zero"}
	}
	switch t {
	case EntrySale:
		if !amount.IsPositive() {
			return &InvalidAmountError{Type: t, Amount: amount, Reason: "sales increase debt, amount must be positive"}
		}
	case EntryPayment, EntryRefund:
		if !amount.IsNegative() {
			return &InvalidAmountError{Type: t, Amount: amount, Reason: "payments and refunds reduce debt, amount must be negative"}
		}
	case EntryAdjustment:
		// either sign
	default:
		return &InvalidAmountError{Type: t, Amount: amount, Reason: "unknown entry type"}
	}
	return nil
}
