/*
Package sqlite provides the SQLite-backed implementation of ledger.TxStore.

PURPOSE:
  Persists accounts, tasks, ledger entries, withdrawals, referrals, and
  daily logins. In production, the same patterns apply to PostgreSQL -
  only minor SQL dialect differences.

APPEND-ONLY ENFORCEMENT:
  The transactions table (ledger entries) has exactly one write path:
  INSERT. There are no UPDATE or DELETE statements against it anywhere
  in this package. Corrections happen via new offsetting entries.

KEY TABLES:
  users:         Accounts with cached balance and counters
  tasks:         Task definitions
  transactions:  Immutable ledger of all balance changes
  withdrawals:   Payout requests and their lifecycle state
  referrals:     Referrer-to-referred links
  daily_logins:  One row per (account, day); the UNIQUE index enforces
                 the at-most-one-bonus-per-day invariant

AMOUNTS:
  Monetary columns are TEXT holding canonical decimal strings. Sums are
  computed in Go with shopspring/decimal so no precision is lost to
  floating point.

CONCURRENCY:
  A store-level mutex serializes write transactions (SQLite allows a
  single writer at a time anyway). Services additionally hold per-account
  stripe locks across their read-compute-write sequences. The database
  is opened in WAL mode so readers don't block.

USAGE:
  store, err := sqlite.New("./data/rewards.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

MIGRATION:
  Schema is auto-migrated on New(). For production, use a proper
  migration tool (golang-migrate, goose) with versioned migrations.

SEE ALSO:
  - ledger/store.go: Interface definitions
  - ledger/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/kaamkaro/rewards-engine/ledger"
)

// Store implements ledger.TxStore using SQLite.
type Store struct {
	queries
	db *sql.DB
	mu sync.Mutex
}

var _ ledger.TxStore = (*Store)(nil)

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// A single connection keeps :memory: databases coherent and matches
	// SQLite's single-writer model.
	db.SetMaxOpenConns(1)

	store := &Store{queries: queries{q: db}, db: db}
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

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS users (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		email TEXT UNIQUE NOT NULL,
		password_hash TEXT NOT NULL,
		name TEXT NOT NULL DEFAULT '',
		phone TEXT NOT NULL DEFAULT '',
		balance TEXT NOT NULL DEFAULT '0',
		total_earned TEXT NOT NULL DEFAULT '0',
		tasks_done INTEGER NOT NULL DEFAULT 0,
		referral_code TEXT UNIQUE NOT NULL,
		referrals_count INTEGER NOT NULL DEFAULT 0,
		referral_earnings TEXT NOT NULL DEFAULT '0',
		is_admin INTEGER NOT NULL DEFAULT 0,
		status TEXT NOT NULL DEFAULT 'active',
		last_login TEXT,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS tasks (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		title TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		reward TEXT NOT NULL,
		type TEXT NOT NULL DEFAULT 'general',
		duration INTEGER NOT NULL DEFAULT 60,
		status TEXT NOT NULL DEFAULT 'active',
		category TEXT NOT NULL DEFAULT 'general',
		daily_limit INTEGER NOT NULL DEFAULT 1,
		total_completions INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL
	);

	-- Transactions (append-only ledger)
	CREATE TABLE IF NOT EXISTS transactions (
		id TEXT PRIMARY KEY,
		user_id INTEGER NOT NULL,
		task_id INTEGER,
		task_title TEXT NOT NULL DEFAULT '',
		amount TEXT NOT NULL,
		kind TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		balance_after TEXT NOT NULL,
		withdrawal_id INTEGER,
		created_at TEXT NOT NULL,
		FOREIGN KEY (user_id) REFERENCES users (id)
	);

	CREATE INDEX IF NOT EXISTS idx_transactions_user
		ON transactions(user_id, created_at DESC);
	CREATE INDEX IF NOT EXISTS idx_transactions_user_task_kind
		ON transactions(user_id, task_id, kind);

	CREATE TABLE IF NOT EXISTS withdrawals (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id INTEGER NOT NULL,
		user_email TEXT NOT NULL DEFAULT '',
		user_name TEXT NOT NULL DEFAULT '',
		amount TEXT NOT NULL,
		destination TEXT NOT NULL,
		method TEXT NOT NULL DEFAULT 'upi',
		status TEXT NOT NULL DEFAULT 'pending',
		transaction_id TEXT UNIQUE NOT NULL,
		rejection_reason TEXT NOT NULL DEFAULT '',
		notes TEXT NOT NULL DEFAULT '',
		requested_at TEXT NOT NULL,
		processed_at TEXT,
		FOREIGN KEY (user_id) REFERENCES users (id)
	);

	CREATE INDEX IF NOT EXISTS idx_withdrawals_user
		ON withdrawals(user_id, requested_at DESC);
	CREATE INDEX IF NOT EXISTS idx_withdrawals_status
		ON withdrawals(status);

	CREATE TABLE IF NOT EXISTS referrals (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		referrer_id INTEGER NOT NULL,
		referred_id INTEGER NOT NULL,
		referral_code TEXT NOT NULL,
		earned_amount TEXT NOT NULL DEFAULT '0',
		status TEXT NOT NULL DEFAULT 'active',
		created_at TEXT NOT NULL,
		FOREIGN KEY (referrer_id) REFERENCES users (id),
		FOREIGN KEY (referred_id) REFERENCES users (id)
	);

	CREATE INDEX IF NOT EXISTS idx_referrals_referrer
		ON referrals(referrer_id);

	-- UNIQUE(user_id, login_date) is the daily-bonus idempotency guard.
	CREATE TABLE IF NOT EXISTS daily_logins (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id INTEGER NOT NULL,
		login_date TEXT NOT NULL,
		streak_count INTEGER NOT NULL DEFAULT 1,
		bonus_amount TEXT NOT NULL DEFAULT '0',
		created_at TEXT NOT NULL,
		UNIQUE(user_id, login_date),
		FOREIGN KEY (user_id) REFERENCES users (id)
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

// WithTx executes fn within a database transaction. If fn returns an
// error the transaction is rolled back and nothing is applied.
func (s *Store) WithTx(ctx context.Context, fn func(ledger.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin: %v", ledger.ErrStorage, err)
	}
	defer tx.Rollback()

	if err := fn(&queries{q: tx}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit: %v", ledger.ErrStorage, err)
	}
	return nil
}

// querier is satisfied by both *sql.DB and *sql.Tx, so the same query
// methods serve direct calls and transactional views.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type queries struct {
	q querier
}

var _ ledger.Store = (*queries)(nil)

// =============================================================================
// ACCOUNTS
// =============================================================================

const accountColumns = `id, email, password_hash, name, phone, balance, total_earned,
	tasks_done, referral_code, referrals_count, referral_earnings, is_admin,
	status, last_login, created_at`

func (s *queries) CreateAccount(ctx context.Context, a *ledger.Account) error {
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	res, err := s.q.ExecContext(ctx, `
		INSERT INTO users (email, password_hash, name, phone, balance, total_earned,
			tasks_done, referral_code, referrals_count, referral_earnings, is_admin,
			status, last_login, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.Email, a.PasswordHash, a.Name, a.Phone,
		a.Balance.String(), a.TotalEarned.String(), a.TasksDone,
		a.ReferralCode, a.ReferralsCount, a.ReferralEarnings.String(),
		boolToInt(a.IsAdmin), string(a.Status), nullTime(a.LastLoginAt),
		a.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ledger.ErrDuplicateAccount
		}
		return fmt.Errorf("%w: insert user: %v", ledger.ErrStorage, err)
	}
	a.ID, err = res.LastInsertId()
	if err != nil {
		return fmt.Errorf("%w: user id: %v", ledger.ErrStorage, err)
	}
	return nil
}

func (s *queries) Account(ctx context.Context, id int64) (*ledger.Account, error) {
	return s.accountWhere(ctx, "id = ?", id)
}

func (s *queries) AccountByEmail(ctx context.Context, email string) (*ledger.Account, error) {
	return s.accountWhere(ctx, "email = ?", email)
}

func (s *queries) AccountByReferralCode(ctx context.Context, code string) (*ledger.Account, error) {
	return s.accountWhere(ctx, "referral_code = ?", code)
}

func (s *queries) accountWhere(ctx context.Context, where string, arg any) (*ledger.Account, error) {
	row := s.q.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM users WHERE `+where, arg)
	a, err := scanAccount(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: select user: %v", ledger.ErrStorage, err)
	}
	return a, nil
}

func (s *queries) SaveAccount(ctx context.Context, a *ledger.Account) error {
	res, err := s.q.ExecContext(ctx, `
		UPDATE users SET email = ?, password_hash = ?, name = ?, phone = ?,
			balance = ?, total_earned = ?, tasks_done = ?,
			referrals_count = ?, referral_earnings = ?, is_admin = ?,
			status = ?, last_login = ?
		WHERE id = ?`,
		a.Email, a.PasswordHash, a.Name, a.Phone,
		a.Balance.String(), a.TotalEarned.String(), a.TasksDone,
		a.ReferralsCount, a.ReferralEarnings.String(), boolToInt(a.IsAdmin),
		string(a.Status), nullTime(a.LastLoginAt), a.ID,
	)
	if err != nil {
		return fmt.Errorf("%w: update user: %v", ledger.ErrStorage, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ledger.ErrAccountNotFound
	}
	return nil
}

func (s *queries) ListAccounts(ctx context.Context) ([]ledger.Account, error) {
	rows, err := s.q.QueryContext(ctx,
		`SELECT `+accountColumns+` FROM users ORDER BY id DESC`)
	if err != nil {
		return nil, fmt.Errorf("%w: list users: %v", ledger.ErrStorage, err)
	}
	defer rows.Close()

	var out []ledger.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: scan user: %v", ledger.ErrStorage, err)
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

func scanAccount(row interface{ Scan(...any) error }) (*ledger.Account, error) {
	var (
		a                          ledger.Account
		balance, earned, refEarned string
		isAdmin                    int
		status, createdAt          string
		lastLogin                  sql.NullString
	)
	err := row.Scan(&a.ID, &a.Email, &a.PasswordHash, &a.Name, &a.Phone,
		&balance, &earned, &a.TasksDone, &a.ReferralCode, &a.ReferralsCount,
		&refEarned, &isAdmin, &status, &lastLogin, &createdAt)
	if err != nil {
		return nil, err
	}
	if a.Balance, err = decimal.NewFromString(balance); err != nil {
		return nil, err
	}
	if a.TotalEarned, err = decimal.NewFromString(earned); err != nil {
		return nil, err
	}
	if a.ReferralEarnings, err = decimal.NewFromString(refEarned); err != nil {
		return nil, err
	}
	a.IsAdmin = isAdmin != 0
	a.Status = ledger.AccountStatus(status)
	a.LastLoginAt = parseNullTime(lastLogin)
	a.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	return &a, nil
}

// =============================================================================
// TASKS
// =============================================================================

const taskColumns = `id, title, description, reward, type, duration, status,
	category, daily_limit, total_completions, created_at`

func (s *queries) CreateTask(ctx context.Context, t *ledger.Task) error {
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}
	res, err := s.q.ExecContext(ctx, `
		INSERT INTO tasks (title, description, reward, type, duration, status,
			category, daily_limit, total_completions, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.Title, t.Description, t.Reward.String(), t.Type, t.Duration,
		string(t.Status), t.Category, t.DailyLimit, t.TotalCompletions,
		t.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("%w: insert task: %v", ledger.ErrStorage, err)
	}
	t.ID, err = res.LastInsertId()
	if err != nil {
		return fmt.Errorf("%w: task id: %v", ledger.ErrStorage, err)
	}
	return nil
}

func (s *queries) Task(ctx context.Context, id int64) (*ledger.Task, error) {
	row := s.q.QueryRowContext(ctx,
		`SELECT `+taskColumns+` FROM tasks WHERE id = ?`, id)
	t, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: select task: %v", ledger.ErrStorage, err)
	}
	return t, nil
}

func (s *queries) SaveTask(ctx context.Context, t *ledger.Task) error {
	res, err := s.q.ExecContext(ctx, `
		UPDATE tasks SET title = ?, description = ?, reward = ?, type = ?,
			duration = ?, status = ?, category = ?, daily_limit = ?,
			total_completions = ?
		WHERE id = ?`,
		t.Title, t.Description, t.Reward.String(), t.Type, t.Duration,
		string(t.Status), t.Category, t.DailyLimit, t.TotalCompletions, t.ID,
	)
	if err != nil {
		return fmt.Errorf("%w: update task: %v", ledger.ErrStorage, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ledger.ErrTaskNotFound
	}
	return nil
}

func (s *queries) ListTasks(ctx context.Context, activeOnly bool) ([]ledger.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks`
	var args []any
	if activeOnly {
		query += ` WHERE status = ?`
		args = append(args, string(ledger.TaskActive))
	}
	query += ` ORDER BY CAST(reward AS REAL) DESC`

	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: list tasks: %v", ledger.ErrStorage, err)
	}
	defer rows.Close()

	var out []ledger.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: scan task: %v", ledger.ErrStorage, err)
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}

func scanTask(row interface{ Scan(...any) error }) (*ledger.Task, error) {
	var (
		t                 ledger.Task
		reward            string
		status, createdAt string
	)
	err := row.Scan(&t.ID, &t.Title, &t.Description, &reward, &t.Type,
		&t.Duration, &status, &t.Category, &t.DailyLimit,
		&t.TotalCompletions, &createdAt)
	if err != nil {
		return nil, err
	}
	if t.Reward, err = decimal.NewFromString(reward); err != nil {
		return nil, err
	}
	t.Status = ledger.TaskStatus(status)
	t.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	return &t, nil
}

// =============================================================================
// LEDGER ENTRIES (append-only)
// =============================================================================

const entryColumns = `id, user_id, task_id, task_title, amount, kind,
	description, balance_after, withdrawal_id, created_at`

func (s *queries) AppendEntry(ctx context.Context, e *ledger.Entry) error {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO transactions (id, user_id, task_id, task_title, amount,
			kind, description, balance_after, withdrawal_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.AccountID, nullInt(e.TaskID), e.TaskTitle, e.Amount.String(),
		string(e.Kind), e.Description, e.BalanceAfter.String(),
		nullInt(e.WithdrawalID), e.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("%w: insert entry: %v", ledger.ErrStorage, err)
	}
	return nil
}

func (s *queries) Entries(ctx context.Context, accountID int64, limit int) ([]ledger.Entry, error) {
	query := `SELECT ` + entryColumns + ` FROM transactions
		WHERE user_id = ? ORDER BY created_at DESC`
	args := []any{accountID}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: list entries: %v", ledger.ErrStorage, err)
	}
	defer rows.Close()

	var out []ledger.Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: scan entry: %v", ledger.ErrStorage, err)
		}
		out = append(out, *e)
	}
	return out, rows.Err()
}

// SumEntries computes the signed sum in Go with decimal arithmetic;
// SQLite's SUM would coerce the TEXT amounts to floats.
func (s *queries) SumEntries(ctx context.Context, accountID int64) (decimal.Decimal, error) {
	rows, err := s.q.QueryContext(ctx,
		`SELECT amount FROM transactions WHERE user_id = ?`, accountID)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: sum entries: %v", ledger.ErrStorage, err)
	}
	defer rows.Close()

	sum := decimal.Zero
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return decimal.Zero, fmt.Errorf("%w: scan amount: %v", ledger.ErrStorage, err)
		}
		d, err := decimal.NewFromString(raw)
		if err != nil {
			return decimal.Zero, fmt.Errorf("%w: parse amount: %v", ledger.ErrStorage, err)
		}
		sum = sum.Add(d)
	}
	return sum, rows.Err()
}

func (s *queries) CountTaskCompletions(ctx context.Context, accountID, taskID int64, day ledger.Day) (int, error) {
	var count int
	err := s.q.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM transactions
		WHERE user_id = ? AND task_id = ? AND kind = ? AND DATE(created_at) = ?`,
		accountID, taskID, string(ledger.KindTaskCompletion), day.String(),
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("%w: count completions: %v", ledger.ErrStorage, err)
	}
	return count, nil
}

func scanEntry(row interface{ Scan(...any) error }) (*ledger.Entry, error) {
	var (
		e                    ledger.Entry
		taskID, withdrawalID sql.NullInt64
		amount, balanceAfter string
		kind, createdAt      string
	)
	err := row.Scan(&e.ID, &e.AccountID, &taskID, &e.TaskTitle, &amount,
		&kind, &e.Description, &balanceAfter, &withdrawalID, &createdAt)
	if err != nil {
		return nil, err
	}
	if e.Amount, err = decimal.NewFromString(amount); err != nil {
		return nil, err
	}
	if e.BalanceAfter, err = decimal.NewFromString(balanceAfter); err != nil {
		return nil, err
	}
	e.Kind = ledger.EntryKind(kind)
	if taskID.Valid {
		e.TaskID = &taskID.Int64
	}
	if withdrawalID.Valid {
		e.WithdrawalID = &withdrawalID.Int64
	}
	e.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	return &e, nil
}

// =============================================================================
// WITHDRAWALS
// =============================================================================

const withdrawalColumns = `id, user_id, user_email, user_name, amount,
	destination, method, status, transaction_id, rejection_reason, notes,
	requested_at, processed_at`

func (s *queries) CreateWithdrawal(ctx context.Context, w *ledger.Withdrawal) error {
	if w.RequestedAt.IsZero() {
		w.RequestedAt = time.Now().UTC()
	}
	res, err := s.q.ExecContext(ctx, `
		INSERT INTO withdrawals (user_id, user_email, user_name, amount,
			destination, method, status, transaction_id, rejection_reason,
			notes, requested_at, processed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		w.AccountID, w.AccountEmail, w.AccountName, w.Amount.String(),
		w.Destination, w.Method, string(w.Status), w.TransactionID,
		w.RejectionReason, w.Notes, w.RequestedAt.Format(time.RFC3339Nano),
		nullTime(w.ProcessedAt),
	)
	if err != nil {
		return fmt.Errorf("%w: insert withdrawal: %v", ledger.ErrStorage, err)
	}
	w.ID, err = res.LastInsertId()
	if err != nil {
		return fmt.Errorf("%w: withdrawal id: %v", ledger.ErrStorage, err)
	}
	return nil
}

func (s *queries) Withdrawal(ctx context.Context, id int64) (*ledger.Withdrawal, error) {
	row := s.q.QueryRowContext(ctx,
		`SELECT `+withdrawalColumns+` FROM withdrawals WHERE id = ?`, id)
	w, err := scanWithdrawal(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: select withdrawal: %v", ledger.ErrStorage, err)
	}
	return w, nil
}

func (s *queries) SaveWithdrawal(ctx context.Context, w *ledger.Withdrawal) error {
	res, err := s.q.ExecContext(ctx, `
		UPDATE withdrawals SET status = ?, rejection_reason = ?, notes = ?,
			processed_at = ?
		WHERE id = ?`,
		string(w.Status), w.RejectionReason, w.Notes,
		nullTime(w.ProcessedAt), w.ID,
	)
	if err != nil {
		return fmt.Errorf("%w: update withdrawal: %v", ledger.ErrStorage, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ledger.ErrWithdrawalNotFound
	}
	return nil
}

func (s *queries) ListWithdrawals(ctx context.Context, status ledger.WithdrawalStatus) ([]ledger.Withdrawal, error) {
	query := `SELECT ` + withdrawalColumns + ` FROM withdrawals`
	var args []any
	if status != "" {
		query += ` WHERE status = ?`
		args = append(args, string(status))
	}
	query += ` ORDER BY requested_at DESC`
	return s.withdrawalList(ctx, query, args...)
}

func (s *queries) WithdrawalsByAccount(ctx context.Context, accountID int64, limit int) ([]ledger.Withdrawal, error) {
	query := `SELECT ` + withdrawalColumns + ` FROM withdrawals
		WHERE user_id = ? ORDER BY requested_at DESC`
	args := []any{accountID}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	return s.withdrawalList(ctx, query, args...)
}

func (s *queries) withdrawalList(ctx context.Context, query string, args ...any) ([]ledger.Withdrawal, error) {
	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: list withdrawals: %v", ledger.ErrStorage, err)
	}
	defer rows.Close()

	var out []ledger.Withdrawal
	for rows.Next() {
		w, err := scanWithdrawal(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: scan withdrawal: %v", ledger.ErrStorage, err)
		}
		out = append(out, *w)
	}
	return out, rows.Err()
}

// DailyWithdrawalTotal sums the day's pending and approved requests.
// Rejected requests were refunded and do not count against the cap.
func (s *queries) DailyWithdrawalTotal(ctx context.Context, accountID int64, day ledger.Day) (decimal.Decimal, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT amount FROM withdrawals
		WHERE user_id = ? AND DATE(requested_at) = ? AND status IN (?, ?)`,
		accountID, day.String(),
		string(ledger.WithdrawalPending), string(ledger.WithdrawalApproved),
	)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: daily withdrawal total: %v", ledger.ErrStorage, err)
	}
	defer rows.Close()

	total := decimal.Zero
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return decimal.Zero, fmt.Errorf("%w: scan amount: %v", ledger.ErrStorage, err)
		}
		d, err := decimal.NewFromString(raw)
		if err != nil {
			return decimal.Zero, fmt.Errorf("%w: parse amount: %v", ledger.ErrStorage, err)
		}
		total = total.Add(d)
	}
	return total, rows.Err()
}

func scanWithdrawal(row interface{ Scan(...any) error }) (*ledger.Withdrawal, error) {
	var (
		w           ledger.Withdrawal
		amount      string
		status      string
		requestedAt string
		processedAt sql.NullString
	)
	err := row.Scan(&w.ID, &w.AccountID, &w.AccountEmail, &w.AccountName,
		&amount, &w.Destination, &w.Method, &status, &w.TransactionID,
		&w.RejectionReason, &w.Notes, &requestedAt, &processedAt)
	if err != nil {
		return nil, err
	}
	if w.Amount, err = decimal.NewFromString(amount); err != nil {
		return nil, err
	}
	w.Status = ledger.WithdrawalStatus(status)
	w.RequestedAt, _ = time.Parse(time.RFC3339Nano, requestedAt)
	w.ProcessedAt = parseNullTime(processedAt)
	return &w, nil
}

// =============================================================================
// REFERRALS
// =============================================================================

func (s *queries) CreateReferral(ctx context.Context, r *ledger.Referral) error {
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	res, err := s.q.ExecContext(ctx, `
		INSERT INTO referrals (referrer_id, referred_id, referral_code,
			earned_amount, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		r.ReferrerID, r.ReferredID, r.Code, r.EarnedAmount.String(),
		r.Status, r.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("%w: insert referral: %v", ledger.ErrStorage, err)
	}
	r.ID, err = res.LastInsertId()
	if err != nil {
		return fmt.Errorf("%w: referral id: %v", ledger.ErrStorage, err)
	}
	return nil
}

func (s *queries) ReferralsByReferrer(ctx context.Context, accountID int64) ([]ledger.Referral, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT id, referrer_id, referred_id, referral_code, earned_amount,
			status, created_at
		FROM referrals WHERE referrer_id = ? ORDER BY created_at DESC`,
		accountID,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: list referrals: %v", ledger.ErrStorage, err)
	}
	defer rows.Close()

	var out []ledger.Referral
	for rows.Next() {
		var (
			r         ledger.Referral
			earned    string
			createdAt string
		)
		if err := rows.Scan(&r.ID, &r.ReferrerID, &r.ReferredID, &r.Code,
			&earned, &r.Status, &createdAt); err != nil {
			return nil, fmt.Errorf("%w: scan referral: %v", ledger.ErrStorage, err)
		}
		if r.EarnedAmount, err = decimal.NewFromString(earned); err != nil {
			return nil, fmt.Errorf("%w: parse earned: %v", ledger.ErrStorage, err)
		}
		r.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
		out = append(out, r)
	}
	return out, rows.Err()
}

// =============================================================================
// DAILY LOGINS
// =============================================================================

const dailyLoginColumns = `id, user_id, login_date, streak_count, bonus_amount, created_at`

func (s *queries) DailyLogin(ctx context.Context, accountID int64, day ledger.Day) (*ledger.DailyLogin, error) {
	row := s.q.QueryRowContext(ctx, `
		SELECT `+dailyLoginColumns+` FROM daily_logins
		WHERE user_id = ? AND login_date = ?`,
		accountID, day.String(),
	)
	dl, err := scanDailyLogin(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: select daily login: %v", ledger.ErrStorage, err)
	}
	return dl, nil
}

func (s *queries) CreateDailyLogin(ctx context.Context, dl *ledger.DailyLogin) error {
	if dl.CreatedAt.IsZero() {
		dl.CreatedAt = time.Now().UTC()
	}
	res, err := s.q.ExecContext(ctx, `
		INSERT INTO daily_logins (user_id, login_date, streak_count,
			bonus_amount, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		dl.AccountID, dl.Day.String(), dl.Streak, dl.Bonus.String(),
		dl.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("%w: insert daily login: %v", ledger.ErrStorage, err)
	}
	dl.ID, err = res.LastInsertId()
	if err != nil {
		return fmt.Errorf("%w: daily login id: %v", ledger.ErrStorage, err)
	}
	return nil
}

func (s *queries) LatestDailyLogin(ctx context.Context, accountID int64) (*ledger.DailyLogin, error) {
	row := s.q.QueryRowContext(ctx, `
		SELECT `+dailyLoginColumns+` FROM daily_logins
		WHERE user_id = ? ORDER BY login_date DESC LIMIT 1`,
		accountID,
	)
	dl, err := scanDailyLogin(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: latest daily login: %v", ledger.ErrStorage, err)
	}
	return dl, nil
}

func scanDailyLogin(row interface{ Scan(...any) error }) (*ledger.DailyLogin, error) {
	var (
		dl         ledger.DailyLogin
		day, bonus string
		createdAt  string
	)
	err := row.Scan(&dl.ID, &dl.AccountID, &day, &dl.Streak, &bonus, &createdAt)
	if err != nil {
		return nil, err
	}
	if dl.Day, err = ledger.ParseDay(day); err != nil {
		return nil, err
	}
	if dl.Bonus, err = decimal.NewFromString(bonus); err != nil {
		return nil, err
	}
	dl.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	return &dl, nil
}

// =============================================================================
// HELPERS
// =============================================================================

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullInt(p *int64) any {
	if p == nil {
		return nil
	}
	return *p
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseNullTime(s sql.NullString) *time.Time {
	if !s.Valid {
		return nil
	}
	t, err := time.Parse(time.RFC3339Nano, s.String)
	if err != nil {
		return nil
	}
	return &t
}

func isUniqueViolation(err error) bool {
	var se sqlite3.Error
	if errors.As(err, &se) {
		return se.ExtendedCode == sqlite3.ErrConstraintUnique
	}
	return false
}
