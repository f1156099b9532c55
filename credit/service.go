/*
service.go - The account service facade

PURPOSE:
  The only path external callers use. Owns per-account serialization,
  validates business rules, wraps every write in a store transaction, and
  retries transient lock conflicts a bounded number of times.

REQUEST FLOW (writes):
  1. Acquire the account's lock (timeout -> ErrConcurrencyConflict)
  2. Open a store transaction
  3. Validate + mutate (append entry, allocate, create schedules)
  4. Commit; release the lock
  Retries happen at step 1 only. Validation errors are never retried.

READS:
  Get / ListLedger / ListSchedules take no lock. Store implementations
  guarantee a read never observes a partially-written entry.
*/
package credit

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// =============================================================================
// SERVICE
// =============================================================================

const (
	defaultLockTimeout = 5 * time.Second
	defaultMaxRetries  = 3
	defaultRetryDelay  = 25 * time.Millisecond
)

// Service is the credit engine facade.
type Service struct {
	store      TxStore
	locks      *lockTable
	maxRetries int
	retryDelay time.Duration
	now        func() time.Time
	log        *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides the time source (tests).
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithLogger sets the structured logger.
func WithLogger(log *slog.Logger) Option {
	return func(s *Service) { s.log = log }
}

// WithLockTimeout sets how long a write waits for the account lock.
func WithLockTimeout(d time.Duration) Option {
	return func(s *Service) { s.locks = newLockTable(d) }
}

// WithMaxRetries bounds internal retries on lock conflicts.
func WithMaxRetries(n int) Option {
	return func(s *Service) { s.maxRetries = n }
}

func NewService(store TxStore, opts ...Option) *Service {
	s := &Service{
		store:      store,
		locks:      newLockTable(defaultLockTimeout),
		maxRetries: defaultMaxRetries,
		retryDelay: defaultRetryDelay,
		now:        time.Now,
		log:        slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// =============================================================================
// ACCOUNT LIFECYCLE
// =============================================================================

// CreateAccount grants credit to a customer. The limit must be non-negative;
// the account starts active with an empty ledger.
func (s *Service) CreateAccount(ctx context.Context, customerID string, limit decimal.Decimal) (CreditAccount, error) {
	if limit.IsNegative() {
		return CreditAccount{}, &InvalidAmountError{Type: EntryAdjustment, Amount: limit, Reason: "credit limit must be non-negative"}
	}
	acct := CreditAccount{
		ID:          AccountID(uuid.NewString()),
		CustomerID:  customerID,
		CreditLimit: limit,
		IsActive:    true,
		CreatedAt:   s.now().UTC(),
	}
	if err := s.store.CreateAccount(ctx, acct); err != nil {
		return CreditAccount{}, err
	}
	s.log.InfoContext(ctx, "account created",
		"account_id", acct.ID, "customer_id", customerID, "limit", limit.String())
	return acct, nil
}

// GetAccount returns the account with derived balance, available credit,
// and health tier. Inactive accounts are always readable.
func (s *Service) GetAccount(ctx context.Context, id AccountID) (AccountView, error) {
	acct, err := s.store.GetAccount(ctx, id)
	if err != nil {
		return AccountView{}, err
	}
	return s.view(ctx, acct)
}

// ListAccounts returns a page of account views plus the total count.
func (s *Service) ListAccounts(ctx context.Context, page, pageSize int) ([]AccountView, int, error) {
	accounts, total, err := s.store.ListAccounts(ctx, page, pageSize)
	if err != nil {
		return nil, 0, err
	}
	views := make([]AccountView, len(accounts))
	for i, acct := range accounts {
		v, err := s.view(ctx, acct)
		if err != nil {
			return nil, 0, err
		}
		views[i] = v
	}
	return views, total, nil
}

func (s *Service) view(ctx context.Context, acct CreditAccount) (AccountView, error) {
	balance, err := NewLedger(s.store).CurrentBalance(ctx, acct.ID)
	if err != nil {
		return AccountView{}, err
	}
	return AccountView{
		Account:   acct,
		Balance:   balance,
		Available: acct.CreditLimit.Sub(balance),
		Health:    Classify(balance, acct.CreditLimit),
	}, nil
}

// SetActive toggles the account's active flag. Deactivation revokes the
// charge privilege; it never deletes anything and leaves the balance as is.
func (s *Service) SetActive(ctx context.Context, id AccountID, active bool) (CreditAccount, error) {
	var updated CreditAccount
	err := s.withAccountLock(ctx, id, func(store Store) error {
		acct, err := store.GetAccount(ctx, id)
		if err != nil {
			return err
		}
		acct.IsActive = active
		if err := store.UpdateAccount(ctx, acct); err != nil {
			return err
		}
		updated = acct
		return nil
	})
	if err != nil {
		return CreditAccount{}, err
	}
	s.log.InfoContext(ctx, "account active flag changed", "account_id", id, "active", active)
	return updated, nil
}

// SetCreditLimit changes the account's limit. The limit must be
// non-negative; a limit below the current balance is allowed and simply
// classifies the account OVER_LIMIT.
func (s *Service) SetCreditLimit(ctx context.Context, id AccountID, limit decimal.Decimal) (CreditAccount, error) {
	if limit.IsNegative() {
		return CreditAccount{}, &InvalidAmountError{Type: EntryAdjustment, Amount: limit, Reason: "credit limit must be non-negative"}
	}
	var updated CreditAccount
	err := s.withAccountLock(ctx, id, func(store Store) error {
		acct, err := store.GetAccount(ctx, id)
		if err != nil {
			return err
		}
		acct.CreditLimit = limit
		if err := store.UpdateAccount(ctx, acct); err != nil {
			return err
		}
		updated = acct
		return nil
	})
	if err != nil {
		return CreditAccount{}, err
	}
	return updated, nil
}

// =============================================================================
// READS
// =============================================================================

// ListLedger returns a page of the account's entries, most recent first by
// default.
func (s *Service) ListLedger(ctx context.Context, id AccountID, page, pageSize int, ord Ordering) ([]LedgerEntry, int, error) {
	return NewLedger(s.store).List(ctx, id, page, pageSize, ord)
}

// GetEntry returns a single ledger entry. The receipt generator resolves
// CREDIT_PAYMENT entry ids through this.
func (s *Service) GetEntry(ctx context.Context, id EntryID) (LedgerEntry, error) {
	return s.store.GetEntry(ctx, id)
}

// ListSchedules returns the account's schedules, optionally filtered by
// derived status. Empty status means all.
func (s *Service) ListSchedules(ctx context.Context, id AccountID, status ScheduleStatus) ([]PaymentSchedule, error) {
	if _, err := s.store.GetAccount(ctx, id); err != nil {
		return nil, err
	}
	return NewScheduleTracker(s.store).List(ctx, id, status, s.now().UTC())
}

// =============================================================================
// WRITES
// =============================================================================

// RecordPayment records a customer payment and allocates it across open
// schedules, oldest due date first. Payments are accepted on inactive
// accounts so existing debt can be paid down.
//
// Fails with ErrInvalidAmount for non-positive amounts and ErrOverpayment
// when the amount exceeds the current balance.
func (s *Service) RecordPayment(ctx context.Context, id AccountID, amount decimal.Decimal, reference string) (AllocationResult, error) {
	var result AllocationResult
	err := s.withAccountLock(ctx, id, func(store Store) error {
		if _, err := store.GetAccount(ctx, id); err != nil {
			return err
		}
		var err error
		result, err = allocatePayment(ctx, store, id, amount, reference, s.now().UTC())
		return err
	})
	if err != nil {
		return AllocationResult{}, err
	}
	s.log.InfoContext(ctx, "payment recorded",
		"account_id", id, "entry_id", result.Entry.ID,
		"amount", amount.String(), "schedules_touched", len(result.Schedules))
	return result, nil
}

// RecordCharge records a sale on credit. Requires an active account and a
// positive amount. When terms are supplied, the charge is split into
// installment schedules created in the same transaction as the entry.
func (s *Service) RecordCharge(ctx context.Context, id AccountID, amount decimal.Decimal, reference string, terms *InstallmentTerms) (LedgerEntry, []PaymentSchedule, error) {
	var (
		entry     LedgerEntry
		schedules []PaymentSchedule
	)
	err := s.withAccountLock(ctx, id, func(store Store) error {
		acct, err := store.GetAccount(ctx, id)
		if err != nil {
			return err
		}
		if !acct.IsActive {
			return ErrAccountInactive
		}
		now := s.now().UTC()
		entry, err = NewLedger(store).Append(ctx, id, EntrySale, amount, reference, now)
		if err != nil {
			return err
		}
		if terms != nil {
			schedules, err = BuildSchedules(id, amount, *terms, now)
			if err != nil {
				return err
			}
			if err := store.CreateSchedules(ctx, schedules); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return LedgerEntry{}, nil, err
	}
	s.log.InfoContext(ctx, "charge recorded",
		"account_id", id, "entry_id", entry.ID,
		"amount", amount.String(), "installments", len(schedules))
	return entry, schedules, nil
}

// RecordAdjustment records a manual correction of either sign. Permitted
// regardless of the active flag. Adjustments are ledger-only: they never
// allocate to schedules.
func (s *Service) RecordAdjustment(ctx context.Context, id AccountID, amount decimal.Decimal, reference string) (LedgerEntry, error) {
	return s.appendOnly(ctx, id, EntryAdjustment, amount, reference)
}

// RecordRefund credits a refund back to the account, reducing debt. The
// amount is given positive and stored negative. Permitted on inactive
// accounts.
func (s *Service) RecordRefund(ctx context.Context, id AccountID, amount decimal.Decimal, reference string) (LedgerEntry, error) {
	if !amount.IsPositive() {
		return LedgerEntry{}, &InvalidAmountError{Type: EntryRefund, Amount: amount, Reason: "refund must be positive"}
	}
	return s.appendOnly(ctx, id, EntryRefund, amount.Neg(), reference)
}

func (s *Service) appendOnly(ctx context.Context, id AccountID, entryType EntryType, amount decimal.Decimal, reference string) (LedgerEntry, error) {
	var entry LedgerEntry
	err := s.withAccountLock(ctx, id, func(store Store) error {
		var err error
		entry, err = NewLedger(store).Append(ctx, id, entryType, amount, reference, s.now().UTC())
		return err
	})
	if err != nil {
		return LedgerEntry{}, err
	}
	s.log.InfoContext(ctx, "entry recorded",
		"account_id", id, "entry_id", entry.ID, "type", entryType, "amount", amount.String())
	return entry, nil
}

// =============================================================================
// SERIALIZATION + RETRY
// =============================================================================

// withAccountLock runs fn inside a store transaction while holding the
// account's lock. Lock timeouts are retried up to maxRetries; business
// errors pass through untouched. No lock is held across calls.
func (s *Service) withAccountLock(ctx context.Context, id AccountID, fn func(Store) error) error {
	var err error
	for attempt := 0; attempt <= s.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(s.retryDelay):
			case <-ctx.Done():
				return ctx.Err()
			}
			s.log.WarnContext(ctx, "retrying after lock conflict",
				"account_id", id, "attempt", attempt)
		}

		var release func()
		release, err = s.locks.Acquire(ctx, id)
		if errors.Is(err, ErrConcurrencyConflict) {
			continue
		}
		if err != nil {
			return err
		}

		err = s.store.WithTx(ctx, fn)
		release()
		if !errors.Is(err, ErrConcurrencyConflict) {
			return err
		}
	}
	return err
}
