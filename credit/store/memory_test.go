package store_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/atlaspos/credit-engine/credit"
	"github.com/atlaspos/credit-engine/credit/store"
)

func newAccount(id string) credit.CreditAccount {
	return credit.CreditAccount{
		ID:          credit.AccountID(id),
		CustomerID:  "cust-1",
		CreditLimit: credit.MustDecimal("1000"),
		IsActive:    true,
		CreatedAt:   time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestMemory_WithTx_RollsBackAllWrites(t *testing.T) {
	m := store.NewMemory()
	ctx := context.Background()
	if err := m.CreateAccount(ctx, newAccount("acct-1")); err != nil {
		t.Fatal(err)
	}

	at := time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC)
	boom := errors.New("boom")
	err := m.WithTx(ctx, func(tx credit.Store) error {
		entry := credit.LedgerEntry{
			ID:           "e1",
			AccountID:    "acct-1",
			Type:         credit.EntrySale,
			Amount:       credit.MustDecimal("100"),
			BalanceAfter: credit.MustDecimal("100"),
			CreatedAt:    at,
		}
		if err := tx.AppendEntry(ctx, entry); err != nil {
			return err
		}
		schedules := []credit.PaymentSchedule{
			{ID: "s1", AccountID: "acct-1", DueDate: at.AddDate(0, 1, 0), AmountDue: credit.MustDecimal("100"), AmountPaid: credit.MustDecimal("0"), CreatedAt: at},
		}
		if err := tx.CreateSchedules(ctx, schedules); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("WithTx error = %v, want boom", err)
	}

	if _, err := m.LastEntry(ctx, "acct-1"); !errors.Is(err, credit.ErrEntryNotFound) {
		t.Errorf("LastEntry after rollback = %v, want ErrEntryNotFound", err)
	}
	if _, err := m.GetEntry(ctx, "e1"); !errors.Is(err, credit.ErrEntryNotFound) {
		t.Errorf("GetEntry after rollback = %v, want ErrEntryNotFound", err)
	}
	got, err := m.ListSchedules(ctx, "acct-1")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Errorf("schedules after rollback = %d, want 0", len(got))
	}
}

func TestMemory_WithTx_CommitsOnNil(t *testing.T) {
	m := store.NewMemory()
	ctx := context.Background()
	if err := m.CreateAccount(ctx, newAccount("acct-1")); err != nil {
		t.Fatal(err)
	}

	at := time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC)
	err := m.WithTx(ctx, func(tx credit.Store) error {
		return tx.AppendEntry(ctx, credit.LedgerEntry{
			ID:           "e1",
			AccountID:    "acct-1",
			Type:         credit.EntrySale,
			Amount:       credit.MustDecimal("100"),
			BalanceAfter: credit.MustDecimal("100"),
			CreatedAt:    at,
		})
	})
	if err != nil {
		t.Fatal(err)
	}

	last, err := m.LastEntry(ctx, "acct-1")
	if err != nil {
		t.Fatal(err)
	}
	if last.ID != "e1" {
		t.Errorf("last entry = %s, want e1", last.ID)
	}
}

func TestMemory_SetSchedulePaid_RejectsDecrease(t *testing.T) {
	m := store.NewMemory()
	ctx := context.Background()
	if err := m.CreateAccount(ctx, newAccount("acct-1")); err != nil {
		t.Fatal(err)
	}

	at := time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC)
	err := m.CreateSchedules(ctx, []credit.PaymentSchedule{
		{ID: "s1", AccountID: "acct-1", DueDate: at, AmountDue: credit.MustDecimal("100"), AmountPaid: credit.MustDecimal("0"), CreatedAt: at},
	})
	if err != nil {
		t.Fatal(err)
	}

	if err := m.SetSchedulePaid(ctx, "s1", credit.MustDecimal("60")); err != nil {
		t.Fatal(err)
	}
	if err := m.SetSchedulePaid(ctx, "s1", credit.MustDecimal("10")); err == nil {
		t.Error("expected error when shrinking amount_paid")
	}

	got, err := m.ListSchedules(ctx, "acct-1")
	if err != nil {
		t.Fatal(err)
	}
	if !got[0].AmountPaid.Equal(credit.MustDecimal("60")) {
		t.Errorf("amount_paid = %s, want 60", got[0].AmountPaid)
	}
}

func TestMemory_ReadsReturnCopies(t *testing.T) {
	m := store.NewMemory()
	ctx := context.Background()
	if err := m.CreateAccount(ctx, newAccount("acct-1")); err != nil {
		t.Fatal(err)
	}
	at := time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC)
	if err := m.AppendEntry(ctx, credit.LedgerEntry{
		ID: "e1", AccountID: "acct-1", Type: credit.EntrySale,
		Amount: credit.MustDecimal("100"), BalanceAfter: credit.MustDecimal("100"), CreatedAt: at,
	}); err != nil {
		t.Fatal(err)
	}

	page, _, err := m.ListEntries(ctx, "acct-1", 1, 10, credit.OrderAsc)
	if err != nil {
		t.Fatal(err)
	}
	page[0].Reference = "mutated"

	again, _, err := m.ListEntries(ctx, "acct-1", 1, 10, credit.OrderAsc)
	if err != nil {
		t.Fatal(err)
	}
	if again[0].Reference == "mutated" {
		t.Error("caller mutation leaked into the store")
	}
}
