package credit_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/atlaspos/credit-engine/credit"
)

// =============================================================================
// STATUS DERIVATION
// =============================================================================

func TestDeriveStatus(t *testing.T) {
	due := time.Date(2025, time.June, 15, 0, 0, 0, 0, time.UTC)
	before := due.AddDate(0, 0, -1)
	after := due.AddDate(0, 0, 1)

	tests := []struct {
		name string
		paid string
		now  time.Time
		want credit.ScheduleStatus
	}{
		{"nothing paid before due", "0", before, credit.SchedulePending},
		{"partially paid before due", "40", before, credit.SchedulePartial},
		{"fully paid before due", "100", before, credit.SchedulePaid},
		{"overpaid counts as paid", "120", before, credit.SchedulePaid},
		{"nothing paid past due", "0", after, credit.ScheduleOverdue},
		{"partially paid past due", "40", after, credit.ScheduleOverdue},
		{"fully paid past due stays paid", "100", after, credit.SchedulePaid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := credit.DeriveStatus(dec(tt.paid), dec("100"), due, tt.now)
			if got != tt.want {
				t.Errorf("DeriveStatus = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestDeriveStatus_Idempotent(t *testing.T) {
	// Pure function: recomputing twice with the same inputs yields the
	// same result. No hidden state.
	due := time.Date(2025, time.June, 15, 0, 0, 0, 0, time.UTC)
	now := due.AddDate(0, 0, 3)

	first := credit.DeriveStatus(dec("30"), dec("100"), due, now)
	second := credit.DeriveStatus(dec("30"), dec("100"), due, now)
	if first != second {
		t.Errorf("status derivation not idempotent: %s then %s", first, second)
	}
}

// =============================================================================
// INSTALLMENT SPLIT
// =============================================================================

func TestBuildSchedules_SumEqualsTotal(t *testing.T) {
	first := time.Date(2025, time.April, 1, 0, 0, 0, 0, time.UTC)

	// 100 / 3 does not divide evenly; the last installment absorbs the
	// remainder.
	schedules, err := credit.BuildSchedules("acct-1", dec("100"), credit.InstallmentTerms{
		Count:    3,
		FirstDue: first,
	}, time.Now())
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if len(schedules) != 3 {
		t.Fatalf("got %d schedules, want 3", len(schedules))
	}

	sum := dec("0")
	for _, s := range schedules {
		sum = sum.Add(s.AmountDue)
	}
	if !sum.Equal(dec("100")) {
		t.Errorf("installments sum to %s, want 100", sum)
	}
	if !schedules[0].AmountDue.Equal(dec("33.33")) {
		t.Errorf("first installment = %s, want 33.33", schedules[0].AmountDue)
	}
	if !schedules[2].AmountDue.Equal(dec("33.34")) {
		t.Errorf("last installment = %s, want 33.34", schedules[2].AmountDue)
	}
}

func TestBuildSchedules_MonthlyDueDates(t *testing.T) {
	first := time.Date(2025, time.April, 1, 0, 0, 0, 0, time.UTC)
	schedules, err := credit.BuildSchedules("acct-1", dec("300"), credit.InstallmentTerms{
		Count:    3,
		FirstDue: first,
	}, time.Now())
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	for i, s := range schedules {
		want := first.AddDate(0, i, 0)
		if !s.DueDate.Equal(want) {
			t.Errorf("installment %d due %s, want %s", i, s.DueDate, want)
		}
	}
}

func TestBuildSchedules_InvalidTerms(t *testing.T) {
	now := time.Now()
	first := now.AddDate(0, 1, 0)

	cases := []struct {
		name  string
		total string
		terms credit.InstallmentTerms
	}{
		{"zero count", "100", credit.InstallmentTerms{Count: 0, FirstDue: first}},
		{"zero first due", "100", credit.InstallmentTerms{Count: 3}},
		{"non-positive total", "0", credit.InstallmentTerms{Count: 3, FirstDue: first}},
	}
	for _, tt := range cases {
		t.Run(tt.name, func(t *testing.T) {
			_, err := credit.BuildSchedules("acct-1", dec(tt.total), tt.terms, now)
			if !errors.Is(err, credit.ErrInvalidTerms) {
				t.Errorf("err = %v, want ErrInvalidTerms", err)
			}
		})
	}
}

// =============================================================================
// TRACKER ORDERING
// =============================================================================

func TestScheduleTracker_ListOpen_OrderAndFilter(t *testing.T) {
	m := newTestStore(t, "acct-1")
	ctx := context.Background()
	now := time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC)

	mk := func(id string, dueDay int, due, paid string) credit.PaymentSchedule {
		return credit.PaymentSchedule{
			ID:        credit.ScheduleID(id),
			AccountID: "acct-1",
			DueDate:   time.Date(2025, time.June, dueDay, 0, 0, 0, 0, time.UTC),
			AmountDue: dec(due), AmountPaid: dec(paid),
			CreatedAt: now,
		}
	}

	// Inserted out of due-date order; "s-paid" must be filtered out.
	err := m.CreateSchedules(ctx, []credit.PaymentSchedule{
		mk("s-late", 20, "200", "0"),
		mk("s-paid", 5, "100", "100"),
		mk("s-b", 10, "50", "0"),
		mk("s-a", 10, "50", "0"), // same due date as s-b: id breaks the tie
		mk("s-early", 8, "100", "25"),
	})
	if err != nil {
		t.Fatalf("create schedules: %v", err)
	}

	open, err := credit.NewScheduleTracker(m).ListOpen(ctx, "acct-1", now)
	if err != nil {
		t.Fatalf("list open: %v", err)
	}

	wantOrder := []credit.ScheduleID{"s-early", "s-a", "s-b", "s-late"}
	if len(open) != len(wantOrder) {
		t.Fatalf("got %d open schedules, want %d", len(open), len(wantOrder))
	}
	for i, id := range wantOrder {
		if open[i].ID != id {
			t.Errorf("position %d: got %s, want %s", i, open[i].ID, id)
		}
	}
}

func TestScheduleTracker_List_StatusFilter(t *testing.T) {
	m := newTestStore(t, "acct-1")
	ctx := context.Background()
	now := time.Date(2025, time.June, 12, 0, 0, 0, 0, time.UTC)

	err := m.CreateSchedules(ctx, []credit.PaymentSchedule{
		{ID: "s-overdue", AccountID: "acct-1", DueDate: now.AddDate(0, 0, -5), AmountDue: dec("100"), AmountPaid: dec("0")},
		{ID: "s-pending", AccountID: "acct-1", DueDate: now.AddDate(0, 0, 5), AmountDue: dec("100"), AmountPaid: dec("0")},
	})
	if err != nil {
		t.Fatalf("create schedules: %v", err)
	}

	tracker := credit.NewScheduleTracker(m)

	overdue, err := tracker.List(ctx, "acct-1", credit.ScheduleOverdue, now)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(overdue) != 1 || overdue[0].ID != "s-overdue" {
		t.Errorf("overdue filter returned %v", overdue)
	}

	all, err := tracker.List(ctx, "acct-1", "", now)
	if err != nil {
		t.Fatalf("list all: %v", err)
	}
	if len(all) != 2 {
		t.Errorf("unfiltered list returned %d schedules, want 2", len(all))
	}
}

func TestRemaining(t *testing.T) {
	s := credit.PaymentSchedule{AmountDue: dec("100"), AmountPaid: dec("33.33")}
	if !s.Remaining().Equal(dec("66.67")) {
		t.Errorf("remaining = %s, want 66.67", s.Remaining())
	}
}
