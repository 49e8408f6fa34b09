/*
Package ledger provides the core reward-ledger engine.

PURPOSE:
  This package contains the durable data model and the Balance Mutator for
  a rewards platform: accounts earn virtual currency through tasks and
  bonuses, and spend it through withdrawals. Every balance change is
  recorded as an immutable Entry, and an account's balance must always
  equal the sum of its entries.

KEY CONCEPTS IN THIS FILE (types.go):
  - Account: identity + current balance + lifetime counters
  - Task: a unit of rewardable work with a per-day completion cap
  - Entry: an immutable ledger record of one balance change
  - Withdrawal: a request to convert balance to an external payout
  - Referral / DailyLogin: derived-state rows feeding the rules engine

DESIGN PRINCIPLES:
  1. Immutability: Entries are never modified, only offset by new entries
  2. Precision: Uses decimal.Decimal to avoid floating-point errors
  3. Reconciliation: balance == sum of signed entry amounts, always
  4. Single write path: only Apply (mutator.go) may change a balance

SEE ALSO:
  - mutator.go: The only code path allowed to change balances
  - store.go: Persistence interfaces
  - errors.go: Sentinel and structured error types
*/
package ledger

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// ACCOUNT - Identity, balance, and lifetime counters
// =============================================================================

type AccountStatus string

const (
	AccountActive    AccountStatus = "active"
	AccountSuspended AccountStatus = "suspended"
)

// Account is a platform user. The balance field is a cache of the ledger:
// it must equal the sum of all signed entry amounts for the account since
// creation. Accounts are never deleted, only suspended.
type Account struct {
	ID           int64
	Email        string // unique, lowercase
	PasswordHash string
	Name         string
	Phone        string

	Balance     decimal.Decimal
	TotalEarned decimal.Decimal
	TasksDone   int

	ReferralCode     string // unique, e.g. "REF3FA2B1"
	ReferralsCount   int
	ReferralEarnings decimal.Decimal

	IsAdmin bool
	Status  AccountStatus

	LastLoginAt *time.Time
	CreatedAt   time.Time
}

// =============================================================================
// TASK - A unit of rewardable work
// =============================================================================

type TaskStatus string

const (
	TaskActive   TaskStatus = "active"
	TaskInactive TaskStatus = "inactive"
)

type Task struct {
	ID          int64
	Title       string
	Description string
	Reward      decimal.Decimal
	Type        string
	Duration    int // seconds
	Status      TaskStatus
	Category    string

	// DailyLimit caps completions per account per calendar day.
	DailyLimit int

	// TotalCompletions counts completions across all accounts.
	TotalCompletions int

	CreatedAt time.Time
}

// =============================================================================
// ENTRY - Immutable, append-only ledger record
// =============================================================================

// EntryKind classifies a ledger entry. The kind determines which account
// counters the mutator touches alongside the balance.
type EntryKind string

const (
	KindSignupBonus       EntryKind = "signup_bonus"
	KindTaskCompletion    EntryKind = "task_completion"
	KindReferralBonus     EntryKind = "referral_bonus"
	KindDailyBonus        EntryKind = "daily_bonus"
	KindWithdrawalRequest EntryKind = "withdrawal_request"
	KindWithdrawalRefund  EntryKind = "withdrawal_refund"
	KindAdjustment        EntryKind = "adjustment"
)

// Entry records one balance-affecting event. Once written, an entry is
// never updated or deleted; corrections are made by appending an
// offsetting entry (see withdrawal rejection).
type Entry struct {
	ID        string // uuid
	AccountID int64

	// Optional task reference for task_completion entries. The title is
	// denormalized so history survives task edits.
	TaskID    *int64
	TaskTitle string

	// Amount is signed: positive credits, negative debits.
	Amount decimal.Decimal
	Kind   EntryKind

	Description string

	// BalanceAfter snapshots the account balance after this entry.
	BalanceAfter decimal.Decimal

	// Optional withdrawal reference for withdrawal-related entries.
	WithdrawalID *int64

	CreatedAt time.Time
}

// =============================================================================
// WITHDRAWAL - Balance -> external payout request
// =============================================================================

type WithdrawalStatus string

const (
	WithdrawalPending  WithdrawalStatus = "pending"
	WithdrawalApproved WithdrawalStatus = "approved"
	WithdrawalRejected WithdrawalStatus = "rejected"
)

// Withdrawal is a request to pay out balance. Funds are debited at
// request time (held, not merely reserved); rejection refunds them via a
// new ledger entry. Once in a terminal state the row is immutable.
type Withdrawal struct {
	ID        int64
	AccountID int64

	// Denormalized for the admin console.
	AccountEmail string
	AccountName  string

	Amount      decimal.Decimal
	Destination string // UPI id or equivalent
	Method      string // "upi", "paytm", ...

	Status WithdrawalStatus

	// TransactionID is the externally-unique payout reference,
	// e.g. "WT20250314A1B2C3D4".
	TransactionID string

	RejectionReason string
	Notes           string

	RequestedAt time.Time
	ProcessedAt *time.Time
}

// Terminal reports whether the withdrawal can no longer transition.
func (w *Withdrawal) Terminal() bool {
	return w.Status == WithdrawalApproved || w.Status == WithdrawalRejected
}

// =============================================================================
// REFERRAL - Edge between referrer and referred account
// =============================================================================

// Referral is created once when a new account registers with a valid
// referral code. EarnedAmount is a fixed snapshot of the bonus granted at
// creation time; it does not accrue afterwards.
type Referral struct {
	ID           int64
	ReferrerID   int64
	ReferredID   int64
	Code         string
	EarnedAmount decimal.Decimal
	Status       string
	CreatedAt    time.Time
}

// =============================================================================
// DAILY LOGIN - One row per account per calendar day
// =============================================================================

// DailyLogin records the login-streak state for one day. The store
// enforces at most one row per (account, day), which is what makes the
// daily bonus idempotent.
type DailyLogin struct {
	ID        int64
	AccountID int64
	Day       Day
	Streak    int
	Bonus     decimal.Decimal
	CreatedAt time.Time
}
