/*
mutator.go - The Balance Mutator: the only write path for balances

PURPOSE:
  Apply takes one ledger event (signed amount + kind + metadata), checks
  that the debit would not go negative, and persists the updated balance
  together with the appended entry. Counter side effects that belong to
  the event kind (tasks done, referral counters, lifetime earnings) are
  written in the same unit.

CRITICAL INVARIANTS:
  1. Every balance change goes through Apply. No exceptions.
  2. Balance update and entry append happen in the same transaction:
     Apply must be called inside TxStore.WithTx so both commit or both
     roll back.
  3. After Apply: account.Balance == sum of all entry amounts, and the
     entry's BalanceAfter snapshot equals the new balance.

COUNTER SIDE EFFECTS BY KIND:
  task_completion: TasksDone+1, TotalEarned+amount
  referral_bonus:  ReferralsCount+1, ReferralEarnings+amount
  all others:      balance only

SEE ALSO:
  - store.go: TxStore.WithTx
  - rewards: Services that feed events into Apply
*/
package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// =============================================================================
// EVENT - One balance-affecting occurrence
// =============================================================================

// Event describes a single signed balance change with its metadata.
type Event struct {
	AccountID   int64
	Amount      decimal.Decimal // signed: positive credits, negative debits
	Kind        EntryKind
	Description string

	// Optional references carried into the entry.
	TaskID       *int64
	TaskTitle    string
	WithdrawalID *int64
}

// =============================================================================
// APPLY - Atomic balance update + entry append
// =============================================================================

// Apply commits an event against the store: it reads the current balance,
// rejects debits that would go negative, persists the new balance plus
// kind-specific counters, and appends the ledger entry with a
// balance-after snapshot.
//
// Apply itself does not open a transaction. Callers MUST invoke it inside
// TxStore.WithTx (together with any other writes of the operation) so the
// whole unit is atomic.
func Apply(ctx context.Context, s Store, ev Event) (*Entry, error) {
	acct, err := s.Account(ctx, ev.AccountID)
	if err != nil {
		return nil, fmt.Errorf("load account: %w", err)
	}
	if acct == nil {
		return nil, ErrAccountNotFound
	}

	newBalance := acct.Balance.Add(ev.Amount)
	if newBalance.IsNegative() {
		return nil, &InsufficientFundsError{
			AccountID: acct.ID,
			Available: acct.Balance,
			Requested: ev.Amount.Neg(),
		}
	}

	acct.Balance = newBalance
	switch ev.Kind {
	case KindTaskCompletion:
		acct.TasksDone++
		acct.TotalEarned = acct.TotalEarned.Add(ev.Amount)
	case KindReferralBonus:
		acct.ReferralsCount++
		acct.ReferralEarnings = acct.ReferralEarnings.Add(ev.Amount)
	}

	if err := s.SaveAccount(ctx, acct); err != nil {
		return nil, fmt.Errorf("save account: %w", err)
	}

	entry := &Entry{
		ID:           uuid.NewString(),
		AccountID:    acct.ID,
		TaskID:       ev.TaskID,
		TaskTitle:    ev.TaskTitle,
		Amount:       ev.Amount,
		Kind:         ev.Kind,
		Description:  ev.Description,
		BalanceAfter: newBalance,
		WithdrawalID: ev.WithdrawalID,
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.AppendEntry(ctx, entry); err != nil {
		return nil, fmt.Errorf("append entry: %w", err)
	}

	return entry, nil
}

// =============================================================================
// RECONCILE - Verify balance against the ledger
// =============================================================================

// Reconcile checks the reconciliation invariant for one account and
// returns a *ReconciliationError if the balance has drifted from the
// entry sum.
func Reconcile(ctx context.Context, s Store, accountID int64) error {
	acct, err := s.Account(ctx, accountID)
	if err != nil {
		return err
	}
	if acct == nil {
		return ErrAccountNotFound
	}

	sum, err := s.SumEntries(ctx, accountID)
	if err != nil {
		return err
	}

	if !acct.Balance.Equal(sum) {
		return &ReconciliationError{
			AccountID: accountID,
			Balance:   acct.Balance,
			EntrySum:  sum,
		}
	}
	return nil
}
