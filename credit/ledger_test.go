package credit_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/atlaspos/credit-engine/credit"
	"github.com/atlaspos/credit-engine/credit/store"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func newTestStore(t *testing.T, accountID credit.AccountID) *store.Memory {
	t.Helper()
	m := store.NewMemory()
	err := m.CreateAccount(context.Background(), credit.CreditAccount{
		ID:          accountID,
		CustomerID:  "cust-1",
		CreditLimit: dec("1000"),
		IsActive:    true,
		CreatedAt:   time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("create account: %v", err)
	}
	return m
}

func dec(s string) decimal.Decimal {
	return credit.MustDecimal(s)
}

func at(day int) time.Time {
	return time.Date(2025, time.March, day, 12, 0, 0, 0, time.UTC)
}

// =============================================================================
// APPEND + SNAPSHOT CHAIN
// =============================================================================

func TestLedger_Append_SnapshotChain(t *testing.T) {
	m := newTestStore(t, "acct-1")
	ledger := credit.NewLedger(m)
	ctx := context.Background()

	amounts := []struct {
		entryType credit.EntryType
		amount    string
	}{
		{credit.EntrySale, "600"},
		{credit.EntrySale, "300"},
		{credit.EntryPayment, "-200"},
		{credit.EntryAdjustment, "-50"},
	}

	for i, a := range amounts {
		if _, err := ledger.Append(ctx, "acct-1", a.entryType, dec(a.amount), "", at(i+1)); err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
	}

	entries, _, err := ledger.List(ctx, "acct-1", 1, 100, credit.OrderAsc)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(entries) != 4 {
		t.Fatalf("got %d entries, want 4", len(entries))
	}

	// Sequential snapshot invariant: balance_after[n] = balance_after[n-1] + amount[n]
	prev := decimal.Zero
	for i, e := range entries {
		want := prev.Add(e.Amount)
		if !e.BalanceAfter.Equal(want) {
			t.Errorf("entry %d: balance_after = %s, want %s", i, e.BalanceAfter, want)
		}
		prev = e.BalanceAfter
	}

	balance, err := ledger.CurrentBalance(ctx, "acct-1")
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if !balance.Equal(dec("650")) {
		t.Errorf("balance = %s, want 650", balance)
	}
}

func TestLedger_BalanceReconstruction(t *testing.T) {
	// Balance always equals the sum of entry amounts, order-independent.
	m := newTestStore(t, "acct-1")
	ledger := credit.NewLedger(m)
	ctx := context.Background()

	ledger.Append(ctx, "acct-1", credit.EntrySale, dec("100.50"), "", at(1))
	ledger.Append(ctx, "acct-1", credit.EntrySale, dec("49.50"), "", at(2))
	ledger.Append(ctx, "acct-1", credit.EntryPayment, dec("-30"), "", at(3))
	ledger.Append(ctx, "acct-1", credit.EntryRefund, dec("-20.25"), "", at(4))

	entries, _, _ := ledger.List(ctx, "acct-1", 1, 0, credit.OrderDesc)
	sum := decimal.Zero
	for _, e := range entries {
		sum = sum.Add(e.Amount)
	}

	balance, _ := ledger.CurrentBalance(ctx, "acct-1")
	if !balance.Equal(sum) {
		t.Errorf("balance %s != sum of amounts %s", balance, sum)
	}
}

func TestLedger_CurrentBalance_EmptyLedger(t *testing.T) {
	m := newTestStore(t, "acct-1")
	ledger := credit.NewLedger(m)

	balance, err := ledger.CurrentBalance(context.Background(), "acct-1")
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if !balance.IsZero() {
		t.Errorf("empty ledger balance = %s, want 0", balance)
	}
}

func TestLedger_Append_UnknownAccount(t *testing.T) {
	m := store.NewMemory()
	ledger := credit.NewLedger(m)

	_, err := ledger.Append(context.Background(), "ghost", credit.EntrySale, dec("10"), "", at(1))
	if !errors.Is(err, credit.ErrAccountNotFound) {
		t.Errorf("err = %v, want ErrAccountNotFound", err)
	}
}

// =============================================================================
// SIGN DISCIPLINE
// =============================================================================

func TestLedger_Append_SignValidation(t *testing.T) {
	tests := []struct {
		name      string
		entryType credit.EntryType
		amount    string
		wantErr   bool
	}{
		{"sale positive ok", credit.EntrySale, "100", false},
		{"sale negative rejected", credit.EntrySale, "-100", true},
		{"sale zero rejected", credit.EntrySale, "0", true},
		{"payment negative ok", credit.EntryPayment, "-100", false},
		{"payment positive rejected", credit.EntryPayment, "100", true},
		{"refund negative ok", credit.EntryRefund, "-10", false},
		{"refund positive rejected", credit.EntryRefund, "10", true},
		{"adjustment positive ok", credit.EntryAdjustment, "5", false},
		{"adjustment negative ok", credit.EntryAdjustment, "-5", false},
		{"adjustment zero rejected", credit.EntryAdjustment, "0", true},
		{"unknown type rejected", credit.EntryType("BOGUS"), "10", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newTestStore(t, "acct-1")
			ledger := credit.NewLedger(m)
			// A payment or refund needs existing debt for the snapshot to
			// stay meaningful; the ledger itself does not enforce that, so
			// a lone negative entry is fine here.
			_, err := ledger.Append(context.Background(), "acct-1", tt.entryType, dec(tt.amount), "", at(1))
			if tt.wantErr && !errors.Is(err, credit.ErrInvalidAmount) {
				t.Errorf("err = %v, want ErrInvalidAmount", err)
			}
			if !tt.wantErr && err != nil {
				t.Errorf("unexpected err: %v", err)
			}
		})
	}
}

// =============================================================================
// LISTING
// =============================================================================

func TestLedger_List_DefaultDescending(t *testing.T) {
	m := newTestStore(t, "acct-1")
	ledger := credit.NewLedger(m)
	ctx := context.Background()

	first, _ := ledger.Append(ctx, "acct-1", credit.EntrySale, dec("1"), "", at(1))
	second, _ := ledger.Append(ctx, "acct-1", credit.EntrySale, dec("2"), "", at(2))

	entries, total, err := ledger.List(ctx, "acct-1", 1, 10, "")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if total != 2 {
		t.Errorf("total = %d, want 2", total)
	}
	if entries[0].ID != second.ID || entries[1].ID != first.ID {
		t.Error("default ordering is not most-recent-first")
	}
}

func TestLedger_List_Pagination(t *testing.T) {
	m := newTestStore(t, "acct-1")
	ledger := credit.NewLedger(m)
	ctx := context.Background()

	for i := 1; i <= 5; i++ {
		if _, err := ledger.Append(ctx, "acct-1", credit.EntrySale, dec("1"), "", at(i)); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	page2, total, err := ledger.List(ctx, "acct-1", 2, 2, credit.OrderAsc)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if total != 5 {
		t.Errorf("total = %d, want 5", total)
	}
	if len(page2) != 2 {
		t.Errorf("page size = %d, want 2", len(page2))
	}
	if !page2[0].BalanceAfter.Equal(dec("3")) {
		t.Errorf("page 2 starts at balance_after %s, want 3", page2[0].BalanceAfter)
	}
}
