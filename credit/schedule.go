/*
schedule.go - Schedule tracker and installment term generation

PURPOSE:
  Read surface over payment schedules, plus generation of installment rows
  when a charge is made on terms. Mutation of AmountPaid is only reachable
  through the payment allocator.

ORDERING:
  ListOpen returns schedules by due date ascending, tie-broken by schedule
  id. The allocator consumes schedules in exactly this order - oldest
  obligation first, deterministically.

INSTALLMENT SPLIT:
  A charge of X over n installments produces n schedules of X/n truncated
  to cents, with the final installment absorbing the rounding remainder so
  the amounts sum to X exactly. No money is created or lost by splitting.
*/
package credit

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// =============================================================================
// SCHEDULE TRACKER
// =============================================================================

// ScheduleTracker is the read/filter surface over an account's schedules.
type ScheduleTracker struct {
	store Store
}

func NewScheduleTracker(store Store) *ScheduleTracker {
	return &ScheduleTracker{store: store}
}

// ListOpen returns the account's unsettled schedules (status != PAID at now)
// ordered by due date ascending, then id. This ordering is shared with the
// allocator and must never diverge from it.
func (t *ScheduleTracker) ListOpen(ctx context.Context, accountID AccountID, now time.Time) ([]PaymentSchedule, error) {
	all, err := t.store.ListSchedules(ctx, accountID)
	if err != nil {
		return nil, err
	}
	open := all[:0:0]
	for _, s := range all {
		if s.StatusAt(now) != SchedulePaid {
			open = append(open, s)
		}
	}
	SortSchedules(open)
	return open, nil
}

// List returns the account's schedules, optionally filtered to a status.
// An empty status means no filter.
func (t *ScheduleTracker) List(ctx context.Context, accountID AccountID, status ScheduleStatus, now time.Time) ([]PaymentSchedule, error) {
	all, err := t.store.ListSchedules(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if status == "" {
		SortSchedules(all)
		return all, nil
	}
	matched := all[:0:0]
	for _, s := range all {
		if s.StatusAt(now) == status {
			matched = append(matched, s)
		}
	}
	SortSchedules(matched)
	return matched, nil
}

// SortSchedules orders schedules by due date ascending, tie-broken by id.
// Store implementations return this order already; sorting here keeps the
// allocation contract independent of any one implementation.
func SortSchedules(schedules []PaymentSchedule) {
	sort.SliceStable(schedules, func(i, j int) bool {
		if !schedules[i].DueDate.Equal(schedules[j].DueDate) {
			return schedules[i].DueDate.Before(schedules[j].DueDate)
		}
		return schedules[i].ID < schedules[j].ID
	})
}

// =============================================================================
// INSTALLMENT TERMS
// =============================================================================

// InstallmentTerms describe how a charge is split into schedules.
// Every is the interval between due dates; zero means monthly.
type InstallmentTerms struct {
	Count    int
	FirstDue time.Time
	Every    time.Duration
}

// Validate checks the terms are usable for schedule generation.
func (t InstallmentTerms) Validate() error {
	if t.Count < 1 {
		return ErrInvalidTerms
	}
	if t.FirstDue.IsZero() {
		return ErrInvalidTerms
	}
	return nil
}

// BuildSchedules splits total across t.Count schedules. Amounts are
// truncated to cents; the last installment takes the remainder so the sum
// equals total exactly.
func BuildSchedules(accountID AccountID, total decimal.Decimal, t InstallmentTerms, now time.Time) ([]PaymentSchedule, error) {
	if err := t.Validate(); err != nil {
		return nil, err
	}
	if !total.IsPositive() {
		return nil, ErrInvalidTerms
	}

	per := total.Div(decimal.NewFromInt(int64(t.Count))).Truncate(2)
	schedules := make([]PaymentSchedule, t.Count)
	due := t.FirstDue
	allocated := decimal.Zero
	for i := range schedules {
		amount := per
		if i == t.Count-1 {
			amount = total.Sub(allocated)
		}
		schedules[i] = PaymentSchedule{
			ID:         ScheduleID(uuid.NewString()),
			AccountID:  accountID,
			DueDate:    due,
			AmountDue:  amount,
			AmountPaid: decimal.Zero,
			CreatedAt:  now,
		}
		allocated = allocated.Add(amount)
		if t.Every > 0 {
			due = due.Add(t.Every)
		} else {
			due = due.AddDate(0, 1, 0)
		}
	}
	return schedules, nil
}
