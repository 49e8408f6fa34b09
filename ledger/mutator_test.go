package ledger_test

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kaamkaro/rewards-engine/ledger"
	memstore "github.com/kaamkaro/rewards-engine/ledger/store"
)

func newAccount(t *testing.T, s ledger.Store, email string) *ledger.Account {
	t.Helper()
	acct := &ledger.Account{
		Email:        email,
		PasswordHash: "x",
		Name:         "Test User",
		Status:       ledger.AccountActive,
		ReferralCode: "REF" + email[:3],
	}
	require.NoError(t, s.CreateAccount(context.Background(), acct))
	return acct
}

func TestApply_Credit_UpdatesBalanceAndAppendsEntry(t *testing.T) {
	// GIVEN: A fresh account with zero balance
	ctx := context.Background()
	s := memstore.NewMemory()
	acct := newAccount(t, s, "alice@example.com")

	// WHEN: A 50 credit is applied
	var entry *ledger.Entry
	err := s.WithTx(ctx, func(st ledger.Store) error {
		var err error
		entry, err = ledger.Apply(ctx, st, ledger.Event{
			AccountID:   acct.ID,
			Amount:      decimal.NewFromInt(50),
			Kind:        ledger.KindSignupBonus,
			Description: "Welcome bonus for new registration",
		})
		return err
	})
	require.NoError(t, err)

	// THEN: Balance is 50 and the entry snapshots it
	got, err := s.Account(ctx, acct.ID)
	require.NoError(t, err)
	assert.True(t, got.Balance.Equal(decimal.NewFromInt(50)))
	assert.True(t, entry.BalanceAfter.Equal(decimal.NewFromInt(50)))
	assert.NotEmpty(t, entry.ID)

	entries, err := s.Entries(ctx, acct.ID, 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, ledger.KindSignupBonus, entries[0].Kind)
}

func TestApply_OverDebit_RejectedWithoutStateChange(t *testing.T) {
	// GIVEN: An account holding 30
	ctx := context.Background()
	s := memstore.NewMemory()
	acct := newAccount(t, s, "bob@example.com")
	require.NoError(t, s.WithTx(ctx, func(st ledger.Store) error {
		_, err := ledger.Apply(ctx, st, ledger.Event{
			AccountID: acct.ID,
			Amount:    decimal.NewFromInt(30),
			Kind:      ledger.KindSignupBonus,
		})
		return err
	}))

	// WHEN: A 100 debit is attempted
	err := s.WithTx(ctx, func(st ledger.Store) error {
		_, err := ledger.Apply(ctx, st, ledger.Event{
			AccountID: acct.ID,
			Amount:    decimal.NewFromInt(100).Neg(),
			Kind:      ledger.KindWithdrawalRequest,
		})
		return err
	})

	// THEN: InsufficientFunds with details, and nothing changed
	require.Error(t, err)
	assert.ErrorIs(t, err, ledger.ErrInsufficientFunds)
	var ife *ledger.InsufficientFundsError
	require.ErrorAs(t, err, &ife)
	assert.True(t, ife.Available.Equal(decimal.NewFromInt(30)))
	assert.True(t, ife.Requested.Equal(decimal.NewFromInt(100)))

	got, err := s.Account(ctx, acct.ID)
	require.NoError(t, err)
	assert.True(t, got.Balance.Equal(decimal.NewFromInt(30)))
	entries, _ := s.Entries(ctx, acct.ID, 0)
	assert.Len(t, entries, 1)
}

func TestApply_DebitToExactlyZero_Allowed(t *testing.T) {
	ctx := context.Background()
	s := memstore.NewMemory()
	acct := newAccount(t, s, "carol@example.com")
	require.NoError(t, s.WithTx(ctx, func(st ledger.Store) error {
		_, err := ledger.Apply(ctx, st, ledger.Event{
			AccountID: acct.ID, Amount: decimal.NewFromInt(100), Kind: ledger.KindSignupBonus,
		})
		return err
	}))

	err := s.WithTx(ctx, func(st ledger.Store) error {
		_, err := ledger.Apply(ctx, st, ledger.Event{
			AccountID: acct.ID, Amount: decimal.NewFromInt(100).Neg(), Kind: ledger.KindWithdrawalRequest,
		})
		return err
	})
	require.NoError(t, err)

	got, _ := s.Account(ctx, acct.ID)
	assert.True(t, got.Balance.IsZero())
}

func TestApply_TaskCompletion_UpdatesCounters(t *testing.T) {
	// GIVEN: A fresh account
	ctx := context.Background()
	s := memstore.NewMemory()
	acct := newAccount(t, s, "dave@example.com")
	taskID := int64(7)

	// WHEN: A task reward is applied
	require.NoError(t, s.WithTx(ctx, func(st ledger.Store) error {
		_, err := ledger.Apply(ctx, st, ledger.Event{
			AccountID:   acct.ID,
			Amount:      decimal.NewFromInt(25),
			Kind:        ledger.KindTaskCompletion,
			Description: "Completed: Daily quiz",
			TaskID:      &taskID,
			TaskTitle:   "Daily quiz",
		})
		return err
	}))

	// THEN: TasksDone and TotalEarned moved; referral counters did not
	got, _ := s.Account(ctx, acct.ID)
	assert.Equal(t, 1, got.TasksDone)
	assert.True(t, got.TotalEarned.Equal(decimal.NewFromInt(25)))
	assert.Equal(t, 0, got.ReferralsCount)
	assert.True(t, got.ReferralEarnings.IsZero())
}

func TestApply_ReferralBonus_UpdatesReferralCounters(t *testing.T) {
	ctx := context.Background()
	s := memstore.NewMemory()
	acct := newAccount(t, s, "erin@example.com")

	require.NoError(t, s.WithTx(ctx, func(st ledger.Store) error {
		_, err := ledger.Apply(ctx, st, ledger.Event{
			AccountID: acct.ID,
			Amount:    decimal.NewFromInt(50),
			Kind:      ledger.KindReferralBonus,
		})
		return err
	}))

	got, _ := s.Account(ctx, acct.ID)
	assert.Equal(t, 1, got.ReferralsCount)
	assert.True(t, got.ReferralEarnings.Equal(decimal.NewFromInt(50)))
	assert.Equal(t, 0, got.TasksDone)
	assert.True(t, got.TotalEarned.IsZero(), "referral bonus is not task earnings")
}

func TestApply_UnknownAccount_NotFound(t *testing.T) {
	ctx := context.Background()
	s := memstore.NewMemory()

	err := s.WithTx(ctx, func(st ledger.Store) error {
		_, err := ledger.Apply(ctx, st, ledger.Event{
			AccountID: 999, Amount: decimal.NewFromInt(10), Kind: ledger.KindSignupBonus,
		})
		return err
	})
	assert.ErrorIs(t, err, ledger.ErrAccountNotFound)
}

func TestReconcile_BalanceMatchesEntrySum(t *testing.T) {
	// GIVEN: A series of credits and debits through Apply
	ctx := context.Background()
	s := memstore.NewMemory()
	acct := newAccount(t, s, "frank@example.com")

	amounts := []int64{50, 25, -30, 10}
	for _, a := range amounts {
		kind := ledger.KindAdjustment
		require.NoError(t, s.WithTx(ctx, func(st ledger.Store) error {
			_, err := ledger.Apply(ctx, st, ledger.Event{
				AccountID: acct.ID, Amount: decimal.NewFromInt(a), Kind: kind,
			})
			return err
		}))
	}

	// THEN: The cached balance equals the entry sum
	assert.NoError(t, ledger.Reconcile(ctx, s, acct.ID))

	// WHEN: The balance is tampered with outside Apply
	got, _ := s.Account(ctx, acct.ID)
	got.Balance = got.Balance.Add(decimal.NewFromInt(1))
	require.NoError(t, s.SaveAccount(ctx, got))

	// THEN: Reconcile reports the drift
	err := ledger.Reconcile(ctx, s, acct.ID)
	var re *ledger.ReconciliationError
	require.ErrorAs(t, err, &re)
	assert.True(t, re.Balance.Sub(re.EntrySum).Equal(decimal.NewFromInt(1)))
}
