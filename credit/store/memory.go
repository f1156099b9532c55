// Package store provides an in-memory credit.TxStore implementation,
// used by tests and local development. Production uses store/sqlite.
package store

import (
	"context"
	"sort"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/atlaspos/credit-engine/credit"
)

// =============================================================================
// MEMORY STORE
// =============================================================================

// Memory implements credit.TxStore with maps guarded by a RWMutex.
// Ledger slices are append-only; readers always receive copies.
type Memory struct {
	mu        sync.RWMutex
	accounts  map[credit.AccountID]credit.CreditAccount
	order     []credit.AccountID // creation order, for stable listing
	entries   map[credit.AccountID][]credit.LedgerEntry
	entryByID map[credit.EntryID]credit.LedgerEntry
	schedules map[credit.AccountID][]credit.PaymentSchedule
	schedLoc  map[credit.ScheduleID]schedLoc
}

type schedLoc struct {
	account credit.AccountID
	index   int
}

func NewMemory() *Memory {
	return &Memory{
		accounts:  make(map[credit.AccountID]credit.CreditAccount),
		entries:   make(map[credit.AccountID][]credit.LedgerEntry),
		entryByID: make(map[credit.EntryID]credit.LedgerEntry),
		schedules: make(map[credit.AccountID][]credit.PaymentSchedule),
		schedLoc:  make(map[credit.ScheduleID]schedLoc),
	}
}

// --- Accounts ---

func (m *Memory) CreateAccount(_ context.Context, acct credit.CreditAccount) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.createAccountLocked(acct)
}

func (m *Memory) createAccountLocked(acct credit.CreditAccount) error {
	if _, ok := m.accounts[acct.ID]; !ok {
		m.order = append(m.order, acct.ID)
	}
	m.accounts[acct.ID] = acct
	return nil
}

func (m *Memory) GetAccount(_ context.Context, id credit.AccountID) (credit.CreditAccount, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.getAccountLocked(id)
}

func (m *Memory) getAccountLocked(id credit.AccountID) (credit.CreditAccount, error) {
	acct, ok := m.accounts[id]
	if !ok {
		return credit.CreditAccount{}, credit.ErrAccountNotFound
	}
	return acct, nil
}

func (m *Memory) ListAccounts(_ context.Context, page, pageSize int) ([]credit.CreditAccount, int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	total := len(m.order)
	start, end := pageBounds(total, page, pageSize)
	result := make([]credit.CreditAccount, 0, end-start)
	for _, id := range m.order[start:end] {
		result = append(result, m.accounts[id])
	}
	return result, total, nil
}

func (m *Memory) UpdateAccount(_ context.Context, acct credit.CreditAccount) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.updateAccountLocked(acct)
}

func (m *Memory) updateAccountLocked(acct credit.CreditAccount) error {
	if _, ok := m.accounts[acct.ID]; !ok {
		return credit.ErrAccountNotFound
	}
	m.accounts[acct.ID] = acct
	return nil
}

// --- Ledger (append-only) ---

func (m *Memory) AppendEntry(_ context.Context, e credit.LedgerEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.appendEntryLocked(e)
}

func (m *Memory) appendEntryLocked(e credit.LedgerEntry) error {
	m.entries[e.AccountID] = append(m.entries[e.AccountID], e)
	m.entryByID[e.ID] = e
	return nil
}

func (m *Memory) LastEntry(_ context.Context, accountID credit.AccountID) (credit.LedgerEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastEntryLocked(accountID)
}

func (m *Memory) lastEntryLocked(accountID credit.AccountID) (credit.LedgerEntry, error) {
	entries := m.entries[accountID]
	if len(entries) == 0 {
		return credit.LedgerEntry{}, credit.ErrEntryNotFound
	}
	return entries[len(entries)-1], nil
}

func (m *Memory) GetEntry(_ context.Context, id credit.EntryID) (credit.LedgerEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.getEntryLocked(id)
}

func (m *Memory) getEntryLocked(id credit.EntryID) (credit.LedgerEntry, error) {
	e, ok := m.entryByID[id]
	if !ok {
		return credit.LedgerEntry{}, credit.ErrEntryNotFound
	}
	return e, nil
}

func (m *Memory) ListEntries(_ context.Context, accountID credit.AccountID, page, pageSize int, ord credit.Ordering) ([]credit.LedgerEntry, int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.listEntriesLocked(accountID, page, pageSize, ord)
}

func (m *Memory) listEntriesLocked(accountID credit.AccountID, page, pageSize int, ord credit.Ordering) ([]credit.LedgerEntry, int, error) {
	src := m.entries[accountID]
	total := len(src)

	ordered := make([]credit.LedgerEntry, total)
	if ord == credit.OrderAsc {
		copy(ordered, src)
	} else {
		for i, e := range src {
			ordered[total-1-i] = e
		}
	}

	start, end := pageBounds(total, page, pageSize)
	return ordered[start:end], total, nil
}

// --- Schedules ---

func (m *Memory) CreateSchedules(_ context.Context, schedules []credit.PaymentSchedule) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.createSchedulesLocked(schedules)
}

func (m *Memory) createSchedulesLocked(schedules []credit.PaymentSchedule) error {
	for _, s := range schedules {
		m.schedLoc[s.ID] = schedLoc{account: s.AccountID, index: len(m.schedules[s.AccountID])}
		m.schedules[s.AccountID] = append(m.schedules[s.AccountID], s)
	}
	return nil
}

func (m *Memory) ListSchedules(_ context.Context, accountID credit.AccountID) ([]credit.PaymentSchedule, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.listSchedulesLocked(accountID)
}

func (m *Memory) listSchedulesLocked(accountID credit.AccountID) ([]credit.PaymentSchedule, error) {
	src := m.schedules[accountID]
	result := make([]credit.PaymentSchedule, len(src))
	copy(result, src)
	sort.SliceStable(result, func(i, j int) bool {
		if !result[i].DueDate.Equal(result[j].DueDate) {
			return result[i].DueDate.Before(result[j].DueDate)
		}
		return result[i].ID < result[j].ID
	})
	return result, nil
}

func (m *Memory) SetSchedulePaid(_ context.Context, id credit.ScheduleID, paid decimal.Decimal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.setSchedulePaidLocked(id, paid)
}

func (m *Memory) setSchedulePaidLocked(id credit.ScheduleID, paid decimal.Decimal) error {
	loc, ok := m.schedLoc[id]
	if !ok {
		return credit.ErrScheduleNotFound
	}
	s := &m.schedules[loc.account][loc.index]
	if paid.LessThan(s.AmountPaid) {
		return credit.ErrInvalidAmount
	}
	s.AmountPaid = paid
	return nil
}

func pageBounds(total, page, pageSize int) (int, int) {
	if pageSize <= 0 {
		return 0, total
	}
	if page < 1 {
		page = 1
	}
	start := (page - 1) * pageSize
	if start > total {
		start = total
	}
	end := start + pageSize
	if end > total {
		end = total
	}
	return start, end
}

// =============================================================================
// TRANSACTION SUPPORT - snapshot + rollback
// =============================================================================

// WithTx simulates a transaction by snapshotting state and restoring it if
// fn fails. The write lock is held for the duration, so a reader never
// observes a half-applied payment.
func (m *Memory) WithTx(_ context.Context, fn func(credit.Store) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	snap := m.snapshot()
	if err := fn(&txView{parent: m}); err != nil {
		m.restore(snap)
		return err
	}
	return nil
}

type memorySnapshot struct {
	accounts  map[credit.AccountID]credit.CreditAccount
	order     []credit.AccountID
	entries   map[credit.AccountID][]credit.LedgerEntry
	entryByID map[credit.EntryID]credit.LedgerEntry
	schedules map[credit.AccountID][]credit.PaymentSchedule
	schedLoc  map[credit.ScheduleID]schedLoc
}

func (m *Memory) snapshot() memorySnapshot {
	snap := memorySnapshot{
		accounts:  make(map[credit.AccountID]credit.CreditAccount, len(m.accounts)),
		order:     append([]credit.AccountID(nil), m.order...),
		entries:   make(map[credit.AccountID][]credit.LedgerEntry, len(m.entries)),
		entryByID: make(map[credit.EntryID]credit.LedgerEntry, len(m.entryByID)),
		schedules: make(map[credit.AccountID][]credit.PaymentSchedule, len(m.schedules)),
		schedLoc:  make(map[credit.ScheduleID]schedLoc, len(m.schedLoc)),
	}
	for k, v := range m.accounts {
		snap.accounts[k] = v
	}
	for k, v := range m.entries {
		snap.entries[k] = append([]credit.LedgerEntry(nil), v...)
	}
	for k, v := range m.entryByID {
		snap.entryByID[k] = v
	}
	for k, v := range m.schedules {
		snap.schedules[k] = append([]credit.PaymentSchedule(nil), v...)
	}
	for k, v := range m.schedLoc {
		snap.schedLoc[k] = v
	}
	return snap
}

func (m *Memory) restore(snap memorySnapshot) {
	m.accounts = snap.accounts
	m.order = snap.order
	m.entries = snap.entries
	m.entryByID = snap.entryByID
	m.schedules = snap.schedules
	m.schedLoc = snap.schedLoc
}

// txView routes Store calls to the parent's locked methods. Valid only
// while WithTx holds the parent's write lock.
type txView struct {
	parent *Memory
}

func (tv *txView) CreateAccount(_ context.Context, acct credit.CreditAccount) error {
	return tv.parent.createAccountLocked(acct)
}

func (tv *txView) GetAccount(_ context.Context, id credit.AccountID) (credit.CreditAccount, error) {
	return tv.parent.getAccountLocked(id)
}

func (tv *txView) ListAccounts(_ context.Context, page, pageSize int) ([]credit.CreditAccount, int, error) {
	total := len(tv.parent.order)
	start, end := pageBounds(total, page, pageSize)
	result := make([]credit.CreditAccount, 0, end-start)
	for _, id := range tv.parent.order[start:end] {
		result = append(result, tv.parent.accounts[id])
	}
	return result, total, nil
}

func (tv *txView) UpdateAccount(_ context.Context, acct credit.CreditAccount) error {
	return tv.parent.updateAccountLocked(acct)
}

func (tv *txView) AppendEntry(_ context.Context, e credit.LedgerEntry) error {
	return tv.parent.appendEntryLocked(e)
}

func (tv *txView) LastEntry(_ context.Context, accountID credit.AccountID) (credit.LedgerEntry, error) {
	return tv.parent.lastEntryLocked(accountID)
}

func (tv *txView) GetEntry(_ context.Context, id credit.EntryID) (credit.LedgerEntry, error) {
	return tv.parent.getEntryLocked(id)
}

func (tv *txView) ListEntries(_ context.Context, accountID credit.AccountID, page, pageSize int, ord credit.Ordering) ([]credit.LedgerEntry, int, error) {
	return tv.parent.listEntriesLocked(accountID, page, pageSize, ord)
}

func (tv *txView) CreateSchedules(_ context.Context, schedules []credit.PaymentSchedule) error {
	return tv.parent.createSchedulesLocked(schedules)
}

func (tv *txView) ListSchedules(_ context.Context, accountID credit.AccountID) ([]credit.PaymentSchedule, error) {
	return tv.parent.listSchedulesLocked(accountID)
}

func (tv *txView) SetSchedulePaid(_ context.Context, id credit.ScheduleID, paid decimal.Decimal) error {
	return tv.parent.setSchedulePaidLocked(id, paid)
}
