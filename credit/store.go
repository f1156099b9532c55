/*
store.go - Persistence interfaces for accounts, ledger entries, and schedules

PURPOSE:
  Defines the interface between the domain logic and the database.
  Different implementations can use SQLite or in-memory storage.

APPEND-ONLY CONTRACT:
  The ledger portion of the Store is append-only:
  - AppendEntry(): the ONLY ledger write
  - NO update or delete of ledger entries exists, ever
  Corrections are made via offsetting entries.

SCHEDULE MUTATION CONTRACT:
  Schedules are created alongside charges and never deleted. The only
  mutation is SetSchedulePaid, which may only increase AmountPaid, and is
  only reachable through the payment allocator.

ATOMICITY:
  TxStore.WithTx gives all-or-nothing semantics across an entry append and
  the schedule updates it funds. A failed payment leaves no partial state.

IMPLEMENTATIONS:
  - store/sqlite:        production SQLite
  - credit/store.Memory: in-memory for testing

SEE ALSO:
  - ledger.go: higher-level ledger built on Store
  - service.go: wraps every write in WithTx under a per-account lock
*/
package credit

import (
	"context"

	"github.com/shopspring/decimal"
)

// =============================================================================
// STORE - Persistence interface
// =============================================================================

// Store handles persistence of accounts, ledger entries, and schedules.
// IMPORTANT: ledger entries are append-only. No update, no delete. Ever.
type Store interface {
	// --- Accounts ---

	// CreateAccount persists a new account record.
	CreateAccount(ctx context.Context, acct CreditAccount) error

	// GetAccount returns the account or ErrAccountNotFound.
	GetAccount(ctx context.Context, id AccountID) (CreditAccount, error)

	// ListAccounts returns a page of accounts plus the total count.
	ListAccounts(ctx context.Context, page, pageSize int) ([]CreditAccount, int, error)

	// UpdateAccount persists changes to IsActive / CreditLimit.
	// These are the only mutable account fields.
	UpdateAccount(ctx context.Context, acct CreditAccount) error

	// --- Ledger (append-only) ---

	// AppendEntry persists a ledger entry. This is the ONLY ledger write.
	AppendEntry(ctx context.Context, e LedgerEntry) error

	// LastEntry returns the most recent entry for the account, or
	// ErrEntryNotFound if the ledger is empty.
	LastEntry(ctx context.Context, accountID AccountID) (LedgerEntry, error)

	// GetEntry returns a single entry by id, or ErrEntryNotFound.
	GetEntry(ctx context.Context, id EntryID) (LedgerEntry, error)

	// ListEntries returns a page of entries for the account in the given
	// time ordering, plus the total count.
	ListEntries(ctx context.Context, accountID AccountID, page, pageSize int, ord Ordering) ([]LedgerEntry, int, error)

	// --- Schedules ---

	// CreateSchedules persists a batch of schedules atomically.
	CreateSchedules(ctx context.Context, schedules []PaymentSchedule) error

	// ListSchedules returns ALL schedules for the account ordered by
	// due date ascending, then id ascending. This ordering is load-bearing
	// for allocation and must match ScheduleTracker.ListOpen.
	ListSchedules(ctx context.Context, accountID AccountID) ([]PaymentSchedule, error)

	// SetSchedulePaid updates AmountPaid for a schedule. The new value must
	// not be less than the current one; the allocator is the only caller.
	SetSchedulePaid(ctx context.Context, id ScheduleID, paid decimal.Decimal) error
}

// =============================================================================
// TRANSACTIONAL STORE - Atomic multi-write operations
// =============================================================================

// TxStore wraps Store with transaction support. Payment recording appends
// an entry and updates schedules in one transaction.
type TxStore interface {
	Store

	// WithTx executes fn within a transaction.
	// If fn returns an error, nothing is committed.
	WithTx(ctx context.Context, fn func(Store) error) error
}
