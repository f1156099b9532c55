/*
allocator.go - Payment allocation across open schedules

PURPOSE:
  The single write path for customer payments. A payment first lands in the
  ledger as a CREDIT_PAYMENT entry, then its funds are applied to the
  account's open schedules, oldest due date first.

ALGORITHM:
  1. Reject non-positive amounts (ErrInvalidAmount) and amounts above the
     current balance (OverpaymentError). Paying ahead of future charges is
     not allowed; the point of sale clamps payment to the amount owed.
  2. Append a CREDIT_PAYMENT entry with amount = -payment.
  3. Walk open schedules (status != PAID) in due-date order, tie-broken by
     id. Apply min(remaining payment, schedule remaining) to each until the
     payment is exhausted or every schedule is settled.
  4. Any remainder after all schedules are PAID stays as account credit,
     reflected only in the ledger - it is not assigned to any schedule.

ATOMICITY:
  The allocator runs against a single Store view. The Service invokes it
  inside TxStore.WithTx under the per-account lock, so the entry append and
  every schedule update commit together or not at all.
*/
package credit

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// AllocationResult is what a recorded payment produced: the ledger entry
// and every schedule whose AmountPaid changed, with statuses derived at
// allocation time.
type AllocationResult struct {
	Entry     LedgerEntry
	Schedules []PaymentSchedule
}

// allocatePayment records a payment against the given store view.
// Callers must hold the account's lock and run inside a transaction.
func allocatePayment(ctx context.Context, store Store, accountID AccountID, amount decimal.Decimal, reference string, now time.Time) (AllocationResult, error) {
	if !amount.IsPositive() {
		return AllocationResult{}, &InvalidAmountError{Type: EntryPayment, Amount: amount, Reason: "payment must be positive"}
	}

	ledger := NewLedger(store)
	balance, err := ledger.CurrentBalance(ctx, accountID)
	if err != nil {
		return AllocationResult{}, err
	}
	if amount.GreaterThan(balance) {
		return AllocationResult{}, &OverpaymentError{AccountID: accountID, Balance: balance, Requested: amount}
	}

	entry, err := ledger.Append(ctx, accountID, EntryPayment, amount.Neg(), reference, now)
	if err != nil {
		return AllocationResult{}, err
	}

	open, err := NewScheduleTracker(store).ListOpen(ctx, accountID, now)
	if err != nil {
		return AllocationResult{}, err
	}

	remaining := amount
	var touched []PaymentSchedule
	for _, s := range open {
		if !remaining.IsPositive() {
			break
		}
		applied := decimal.Min(remaining, s.Remaining())
		if !applied.IsPositive() {
			continue
		}
		s.AmountPaid = s.AmountPaid.Add(applied)
		if err := store.SetSchedulePaid(ctx, s.ID, s.AmountPaid); err != nil {
			return AllocationResult{}, err
		}
		remaining = remaining.Sub(applied)
		touched = append(touched, s)
	}

	// Anything left in `remaining` is retained account credit: already in
	// the ledger via the entry above, deliberately not assigned to any
	// schedule.
	return AllocationResult{Entry: entry, Schedules: touched}, nil
}
