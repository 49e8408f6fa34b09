/*
store.go - Persistence interfaces for the ledger and its satellite rows

PURPOSE:
  Defines the contract between the engine and the database. One Store
  covers every row kind the ledger reconciles against (accounts, tasks,
  entries, withdrawals, referrals, daily logins) so that a single
  transaction can group writes across all of them.

APPEND-ONLY CONTRACT:
  Entries have exactly one write operation, AppendEntry. There is no
  update or delete. Withdrawal rejection adds an offsetting refund entry;
  it never rewrites the original debit.

TRANSACTIONS:
  TxStore.WithTx runs fn against a transactional Store view. Every
  externally-triggered operation (registration, login, task completion,
  withdrawal request/approve/reject) executes inside exactly one WithTx:
  read state, compute, write balance + entry + counters, commit — or roll
  back all of it.

IMPLEMENTATIONS:
  - store/sqlite: Production SQLite
  - ledger/store: In-memory for tests

SEE ALSO:
  - mutator.go: Apply, the single balance write path
  - store/sqlite/sqlite.go: Concrete implementation
*/
package ledger

import (
	"context"

	"github.com/shopspring/decimal"
)

// =============================================================================
// STORE - Row-level persistence
// =============================================================================

// Store exposes row-level reads and writes. Lookups return (nil, nil)
// when the row does not exist; callers decide whether that is an error.
type Store interface {
	// Accounts
	CreateAccount(ctx context.Context, a *Account) error
	Account(ctx context.Context, id int64) (*Account, error)
	AccountByEmail(ctx context.Context, email string) (*Account, error)
	AccountByReferralCode(ctx context.Context, code string) (*Account, error)
	SaveAccount(ctx context.Context, a *Account) error
	ListAccounts(ctx context.Context) ([]Account, error)

	// Tasks
	CreateTask(ctx context.Context, t *Task) error
	Task(ctx context.Context, id int64) (*Task, error)
	SaveTask(ctx context.Context, t *Task) error
	ListTasks(ctx context.Context, activeOnly bool) ([]Task, error)

	// Entries (append-only; no update, no delete)
	AppendEntry(ctx context.Context, e *Entry) error
	Entries(ctx context.Context, accountID int64, limit int) ([]Entry, error)

	// SumEntries is the reconciliation query: the signed sum of all
	// entries for an account, which must equal the account balance.
	SumEntries(ctx context.Context, accountID int64) (decimal.Decimal, error)

	// CountTaskCompletions counts task_completion entries for
	// account+task on the given calendar day. Feeds the daily cap.
	CountTaskCompletions(ctx context.Context, accountID, taskID int64, day Day) (int, error)

	// Withdrawals
	CreateWithdrawal(ctx context.Context, w *Withdrawal) error
	Withdrawal(ctx context.Context, id int64) (*Withdrawal, error)
	SaveWithdrawal(ctx context.Context, w *Withdrawal) error
	ListWithdrawals(ctx context.Context, status WithdrawalStatus) ([]Withdrawal, error)
	WithdrawalsByAccount(ctx context.Context, accountID int64, limit int) ([]Withdrawal, error)

	// DailyWithdrawalTotal sums pending+approved withdrawals requested
	// by the account on the given day. Feeds the daily withdrawal cap.
	DailyWithdrawalTotal(ctx context.Context, accountID int64, day Day) (decimal.Decimal, error)

	// Referrals
	CreateReferral(ctx context.Context, r *Referral) error
	ReferralsByReferrer(ctx context.Context, accountID int64) ([]Referral, error)

	// Daily logins. CreateDailyLogin must fail if a row already exists
	// for (account, day) — that uniqueness is the idempotency guard.
	DailyLogin(ctx context.Context, accountID int64, day Day) (*DailyLogin, error)
	CreateDailyLogin(ctx context.Context, dl *DailyLogin) error
	LatestDailyLogin(ctx context.Context, accountID int64) (*DailyLogin, error)
}

// =============================================================================
// TRANSACTIONAL STORE
// =============================================================================

// TxStore wraps Store with transaction support.
type TxStore interface {
	Store

	// WithTx executes fn within a transaction.
	// If fn returns an error, the transaction is rolled back.
	WithTx(ctx context.Context, fn func(Store) error) error
}
