/*
Package sqlite provides the SQLite-backed implementation of credit.TxStore.

PURPOSE:
  Durable persistence for accounts, the append-only ledger, and payment
  schedules. The same patterns apply to PostgreSQL - only minor SQL
  dialect differences.

APPEND-ONLY ENFORCEMENT:
  - No UPDATE or DELETE statements touch ledger_entries
  - Corrections happen via offsetting entries only
  - payment_schedules only ever has amount_paid increased

MONEY:
  Amounts are stored as TEXT decimal strings and parsed with
  shopspring/decimal. Never floats: REAL columns would reintroduce the
  precision loss the decimal type exists to prevent.

KEY TABLES:
  accounts:          account records (limit, active flag)
  ledger_entries:    immutable ledger of balance movements
  payment_schedules: installment obligations

CONCURRENCY:
  Uses sync.RWMutex alongside SQLite WAL mode: multiple readers, a single
  writer, reads never observe a half-committed payment. WithTx holds the
  write lock for the duration of the database transaction.

USAGE:
  store, err := sqlite.New("./data/credit.db")
  if err != nil { ... }
  defer store.Close()
  svc := credit.NewService(store)

SEE ALSO:
  - credit/store.go: interface definitions
  - credit/store/memory.go: in-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/atlaspos/credit-engine/credit"
)

// Store implements credit.TxStore using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a SQLite store at the given path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS accounts (
		id TEXT PRIMARY KEY,
		customer_id TEXT NOT NULL,
		credit_limit TEXT NOT NULL,
		is_active INTEGER NOT NULL DEFAULT 1,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_accounts_customer
		ON accounts(customer_id);

	-- Append-only ledger. No UPDATE, no DELETE; corrections are
	-- offsetting entries.
	CREATE TABLE IF NOT EXISTS ledger_entries (
		id TEXT PRIMARY KEY,
		account_id TEXT NOT NULL REFERENCES accounts(id),
		entry_type TEXT NOT NULL,
		amount TEXT NOT NULL,
		balance_after TEXT NOT NULL,
		reference TEXT,
		created_at TEXT NOT NULL,
		seq INTEGER NOT NULL
	);

	-- Hot path: balance lookup = newest entry per account.
	CREATE INDEX IF NOT EXISTS idx_entries_account_seq
		ON ledger_entries(account_id, seq DESC);

	CREATE TABLE IF NOT EXISTS payment_schedules (
		id TEXT PRIMARY KEY,
		account_id TEXT NOT NULL REFERENCES accounts(id),
		due_date TEXT NOT NULL,
		amount_due TEXT NOT NULL,
		amount_paid TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_schedules_account_due
		ON payment_schedules(account_id, due_date, id);
	`
	_, err := s.db.Exec(schema)
	return err
}

// dbtx is satisfied by both *sql.DB and *sql.Tx so the same helpers serve
// direct calls and transactional calls.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// =============================================================================
// ACCOUNTS
// =============================================================================

func (s *Store) CreateAccount(ctx context.Context, acct credit.CreditAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return createAccount(ctx, s.db, acct)
}

func createAccount(ctx context.Context, db dbtx, acct credit.CreditAccount) error {
	_, err := db.ExecContext(ctx,
		`INSERT INTO accounts (id, customer_id, credit_limit, is_active, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		string(acct.ID), acct.CustomerID, acct.CreditLimit.String(),
		boolToInt(acct.IsActive), acct.CreatedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("create account: %w", err)
	}
	return nil
}

func (s *Store) GetAccount(ctx context.Context, id credit.AccountID) (credit.CreditAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getAccount(ctx, s.db, id)
}

func getAccount(ctx context.Context, db dbtx, id credit.AccountID) (credit.CreditAccount, error) {
	row := db.QueryRowContext(ctx,
		`SELECT id, customer_id, credit_limit, is_active, created_at
		 FROM accounts WHERE id = ?`, string(id))
	acct, err := scanAccount(row)
	if errors.Is(err, sql.ErrNoRows) {
		return credit.CreditAccount{}, credit.ErrAccountNotFound
	}
	return acct, err
}

func (s *Store) ListAccounts(ctx context.Context, page, pageSize int) ([]credit.CreditAccount, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM accounts`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count accounts: %w", err)
	}

	limit, offset := pageClause(page, pageSize)
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, customer_id, credit_limit, is_active, created_at
		 FROM accounts ORDER BY created_at, id LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list accounts: %w", err)
	}
	defer rows.Close()

	var accounts []credit.CreditAccount
	for rows.Next() {
		acct, err := scanAccount(rows)
		if err != nil {
			return nil, 0, err
		}
		accounts = append(accounts, acct)
	}
	return accounts, total, rows.Err()
}

func (s *Store) UpdateAccount(ctx context.Context, acct credit.CreditAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return updateAccount(ctx, s.db, acct)
}

func updateAccount(ctx context.Context, db dbtx, acct credit.CreditAccount) error {
	res, err := db.ExecContext(ctx,
		`UPDATE accounts SET credit_limit = ?, is_active = ? WHERE id = ?`,
		acct.CreditLimit.String(), boolToInt(acct.IsActive), string(acct.ID))
	if err != nil {
		return fmt.Errorf("update account: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return credit.ErrAccountNotFound
	}
	return nil
}

// =============================================================================
// LEDGER (append-only)
// =============================================================================

func (s *Store) AppendEntry(ctx context.Context, e credit.LedgerEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return appendEntry(ctx, s.db, e)
}

func appendEntry(ctx context.Context, db dbtx, e credit.LedgerEntry) error {
	// seq gives a total per-account order even when two entries share a
	// timestamp.
	_, err := db.ExecContext(ctx,
		`INSERT INTO ledger_entries
		   (id, account_id, entry_type, amount, balance_after, reference, created_at, seq)
		 VALUES (?, ?, ?, ?, ?, ?, ?,
		   (SELECT COALESCE(MAX(seq), 0) + 1 FROM ledger_entries WHERE account_id = ?))`,
		string(e.ID), string(e.AccountID), string(e.Type),
		e.Amount.String(), e.BalanceAfter.String(), e.Reference,
		e.CreatedAt.UTC().Format(time.RFC3339Nano), string(e.AccountID))
	if err != nil {
		return fmt.Errorf("append entry: %w", err)
	}
	return nil
}

func (s *Store) LastEntry(ctx context.Context, accountID credit.AccountID) (credit.LedgerEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return lastEntry(ctx, s.db, accountID)
}

func lastEntry(ctx context.Context, db dbtx, accountID credit.AccountID) (credit.LedgerEntry, error) {
	row := db.QueryRowContext(ctx,
		`SELECT id, account_id, entry_type, amount, balance_after, reference, created_at
		 FROM ledger_entries WHERE account_id = ? ORDER BY seq DESC LIMIT 1`,
		string(accountID))
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return credit.LedgerEntry{}, credit.ErrEntryNotFound
	}
	return e, err
}

func (s *Store) GetEntry(ctx context.Context, id credit.EntryID) (credit.LedgerEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getEntry(ctx, s.db, id)
}

func getEntry(ctx context.Context, db dbtx, id credit.EntryID) (credit.LedgerEntry, error) {
	row := db.QueryRowContext(ctx,
		`SELECT id, account_id, entry_type, amount, balance_after, reference, created_at
		 FROM ledger_entries WHERE id = ?`, string(id))
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return credit.LedgerEntry{}, credit.ErrEntryNotFound
	}
	return e, err
}

func (s *Store) ListEntries(ctx context.Context, accountID credit.AccountID, page, pageSize int, ord credit.Ordering) ([]credit.LedgerEntry, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return listEntries(ctx, s.db, accountID, page, pageSize, ord)
}

func listEntries(ctx context.Context, db dbtx, accountID credit.AccountID, page, pageSize int, ord credit.Ordering) ([]credit.LedgerEntry, int, error) {
	var total int
	err := db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM ledger_entries WHERE account_id = ?`, string(accountID)).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("count entries: %w", err)
	}

	direction := "DESC"
	if ord == credit.OrderAsc {
		direction = "ASC"
	}
	limit, offset := pageClause(page, pageSize)
	rows, err := db.QueryContext(ctx,
		`SELECT id, account_id, entry_type, amount, balance_after, reference, created_at
		 FROM ledger_entries WHERE account_id = ? ORDER BY seq `+direction+` LIMIT ? OFFSET ?`,
		string(accountID), limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list entries: %w", err)
	}
	defer rows.Close()

	var entries []credit.LedgerEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, 0, err
		}
		entries = append(entries, e)
	}
	return entries, total, rows.Err()
}

// =============================================================================
// SCHEDULES
// =============================================================================

func (s *Store) CreateSchedules(ctx context.Context, schedules []credit.PaymentSchedule) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return createSchedules(ctx, s.db, schedules)
}

func createSchedules(ctx context.Context, db dbtx, schedules []credit.PaymentSchedule) error {
	for _, sch := range schedules {
		_, err := db.ExecContext(ctx,
			`INSERT INTO payment_schedules
			   (id, account_id, due_date, amount_due, amount_paid, created_at)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			string(sch.ID), string(sch.AccountID),
			sch.DueDate.UTC().Format(time.RFC3339Nano),
			sch.AmountDue.String(), sch.AmountPaid.String(),
			sch.CreatedAt.UTC().Format(time.RFC3339Nano))
		if err != nil {
			return fmt.Errorf("create schedule: %w", err)
		}
	}
	return nil
}

func (s *Store) ListSchedules(ctx context.Context, accountID credit.AccountID) ([]credit.PaymentSchedule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return listSchedules(ctx, s.db, accountID)
}

func listSchedules(ctx context.Context, db dbtx, accountID credit.AccountID) ([]credit.PaymentSchedule, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT id, account_id, due_date, amount_due, amount_paid, created_at
		 FROM payment_schedules WHERE account_id = ? ORDER BY due_date, id`,
		string(accountID))
	if err != nil {
		return nil, fmt.Errorf("list schedules: %w", err)
	}
	defer rows.Close()

	var schedules []credit.PaymentSchedule
	for rows.Next() {
		sch, err := scanSchedule(rows)
		if err != nil {
			return nil, err
		}
		schedules = append(schedules, sch)
	}
	return schedules, rows.Err()
}

func (s *Store) SetSchedulePaid(ctx context.Context, id credit.ScheduleID, paid decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return setSchedulePaid(ctx, s.db, id, paid)
}

func setSchedulePaid(ctx context.Context, db dbtx, id credit.ScheduleID, paid decimal.Decimal) error {
	// amount_paid is monotonic: the guard is in SQL so no code path can
	// shrink it.
	res, err := db.ExecContext(ctx,
		`UPDATE payment_schedules SET amount_paid = ?
		 WHERE id = ? AND CAST(amount_paid AS REAL) <= CAST(? AS REAL)`,
		paid.String(), string(id), paid.String())
	if err != nil {
		return fmt.Errorf("set schedule paid: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return credit.ErrScheduleNotFound
	}
	return nil
}

// =============================================================================
// TRANSACTIONAL STORE (credit.TxStore)
// =============================================================================

// WithTx executes fn within a database transaction. The write lock is held
// for the duration, matching SQLite's single-writer model.
func (s *Store) WithTx(ctx context.Context, fn func(credit.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&txStore{tx: sqlTx}); err != nil {
		return err
	}
	return sqlTx.Commit()
}

type txStore struct {
	tx *sql.Tx
}

func (ts *txStore) CreateAccount(ctx context.Context, acct credit.CreditAccount) error {
	return createAccount(ctx, ts.tx, acct)
}

func (ts *txStore) GetAccount(ctx context.Context, id credit.AccountID) (credit.CreditAccount, error) {
	return getAccount(ctx, ts.tx, id)
}

func (ts *txStore) ListAccounts(ctx context.Context, page, pageSize int) ([]credit.CreditAccount, int, error) {
	return nil, 0, errors.New("ListAccounts not supported inside a transaction")
}

func (ts *txStore) UpdateAccount(ctx context.Context, acct credit.CreditAccount) error {
	return updateAccount(ctx, ts.tx, acct)
}

func (ts *txStore) AppendEntry(ctx context.Context, e credit.LedgerEntry) error {
	return appendEntry(ctx, ts.tx, e)
}

func (ts *txStore) LastEntry(ctx context.Context, accountID credit.AccountID) (credit.LedgerEntry, error) {
	return lastEntry(ctx, ts.tx, accountID)
}

func (ts *txStore) GetEntry(ctx context.Context, id credit.EntryID) (credit.LedgerEntry, error) {
	return getEntry(ctx, ts.tx, id)
}

func (ts *txStore) ListEntries(ctx context.Context, accountID credit.AccountID, page, pageSize int, ord credit.Ordering) ([]credit.LedgerEntry, int, error) {
	return listEntries(ctx, ts.tx, accountID, page, pageSize, ord)
}

func (ts *txStore) CreateSchedules(ctx context.Context, schedules []credit.PaymentSchedule) error {
	return createSchedules(ctx, ts.tx, schedules)
}

func (ts *txStore) ListSchedules(ctx context.Context, accountID credit.AccountID) ([]credit.PaymentSchedule, error) {
	return listSchedules(ctx, ts.tx, accountID)
}

func (ts *txStore) SetSchedulePaid(ctx context.Context, id credit.ScheduleID, paid decimal.Decimal) error {
	return setSchedulePaid(ctx, ts.tx, id, paid)
}

// =============================================================================
// SCANNING
// =============================================================================

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner) (credit.CreditAccount, error) {
	var (
		acct      credit.CreditAccount
		id        string
		limit     string
		active    int
		createdAt string
	)
	if err := row.Scan(&id, &acct.CustomerID, &limit, &active, &createdAt); err != nil {
		return credit.CreditAccount{}, err
	}
	acct.ID = credit.AccountID(id)
	acct.IsActive = active != 0

	var err error
	if acct.CreditLimit, err = decimal.NewFromString(limit); err != nil {
		return credit.CreditAccount{}, fmt.Errorf("parse credit_limit: %w", err)
	}
	if acct.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return credit.CreditAccount{}, fmt.Errorf("parse created_at: %w", err)
	}
	return acct, nil
}

func scanEntry(row rowScanner) (credit.LedgerEntry, error) {
	var (
		e            credit.LedgerEntry
		id           string
		accountID    string
		entryType    string
		amount       string
		balanceAfter string
		reference    sql.NullString
		createdAt    string
	)
	if err := row.Scan(&id, &accountID, &entryType, &amount, &balanceAfter, &reference, &createdAt); err != nil {
		return credit.LedgerEntry{}, err
	}
	e.ID = credit.EntryID(id)
	e.AccountID = credit.AccountID(accountID)
	e.Type = credit.EntryType(entryType)
	e.Reference = reference.String

	var err error
	if e.Amount, err = decimal.NewFromString(amount); err != nil {
		return credit.LedgerEntry{}, fmt.Errorf("parse amount: %w", err)
	}
	if e.BalanceAfter, err = decimal.NewFromString(balanceAfter); err != nil {
		return credit.LedgerEntry{}, fmt.Errorf("parse balance_after: %w", err)
	}
	if e.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return credit.LedgerEntry{}, fmt.Errorf("parse created_at: %w", err)
	}
	return e, nil
}

func scanSchedule(row rowScanner) (credit.PaymentSchedule, error) {
	var (
		sch        credit.PaymentSchedule
		id         string
		accountID  string
		dueDate    string
		amountDue  string
		amountPaid string
		createdAt  string
	)
	if err := row.Scan(&id, &accountID, &dueDate, &amountDue, &amountPaid, &createdAt); err != nil {
		return credit.PaymentSchedule{}, err
	}
	sch.ID = credit.ScheduleID(id)
	sch.AccountID = credit.AccountID(accountID)

	var err error
	if sch.DueDate, err = time.Parse(time.RFC3339Nano, dueDate); err != nil {
		return credit.PaymentSchedule{}, fmt.Errorf("parse due_date: %w", err)
	}
	if sch.AmountDue, err = decimal.NewFromString(amountDue); err != nil {
		return credit.PaymentSchedule{}, fmt.Errorf("parse amount_due: %w", err)
	}
	if sch.AmountPaid, err = decimal.NewFromString(amountPaid); err != nil {
		return credit.PaymentSchedule{}, fmt.Errorf("parse amount_paid: %w", err)
	}
	if sch.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return credit.PaymentSchedule{}, fmt.Errorf("parse created_at: %w", err)
	}
	return sch, nil
}

func pageClause(page, pageSize int) (limit, offset int) {
	if pageSize <= 0 {
		return -1, 0 // SQLite: LIMIT -1 means no limit
	}
	if page < 1 {
		page = 1
	}
	return pageSize, (page - 1) * pageSize
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
