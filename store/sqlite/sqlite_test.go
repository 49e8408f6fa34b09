package sqlite

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kaamkaro/rewards-engine/ledger"
)

func newStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func seedAccount(t *testing.T, s ledger.Store, email, code string) *ledger.Account {
	t.Helper()
	acct := &ledger.Account{
		Email:        email,
		PasswordHash: "hash",
		Name:         "Test",
		Status:       ledger.AccountActive,
		ReferralCode: code,
		CreatedAt:    time.Now().UTC(),
	}
	require.NoError(t, s.CreateAccount(context.Background(), acct))
	return acct
}

// =============================================================================
// ACCOUNTS
// =============================================================================

func TestAccount_RoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	now := time.Now().UTC()
	acct := &ledger.Account{
		Email:            "alice@example.com",
		PasswordHash:     "bcrypt-hash",
		Name:             "Alice",
		Phone:            "9999999999",
		Balance:          decimal.RequireFromString("123.45"),
		TotalEarned:      decimal.RequireFromString("200.00"),
		TasksDone:        3,
		ReferralCode:     "REFABC12",
		ReferralsCount:   2,
		ReferralEarnings: decimal.NewFromInt(100),
		IsAdmin:          true,
		Status:           ledger.AccountActive,
		LastLoginAt:      &now,
		CreatedAt:        now,
	}
	require.NoError(t, s.CreateAccount(ctx, acct))
	require.NotZero(t, acct.ID)

	got, err := s.Account(ctx, acct.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "alice@example.com", got.Email)
	assert.True(t, got.Balance.Equal(decimal.RequireFromString("123.45")))
	assert.Equal(t, 3, got.TasksDone)
	assert.True(t, got.IsAdmin)
	require.NotNil(t, got.LastLoginAt)

	byEmail, err := s.AccountByEmail(ctx, "alice@example.com")
	require.NoError(t, err)
	require.NotNil(t, byEmail)
	assert.Equal(t, acct.ID, byEmail.ID)

	byCode, err := s.AccountByReferralCode(ctx, "REFABC12")
	require.NoError(t, err)
	require.NotNil(t, byCode)
	assert.Equal(t, acct.ID, byCode.ID)
}

func TestAccount_Missing_ReturnsNilNil(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	got, err := s.Account(ctx, 42)
	assert.NoError(t, err)
	assert.Nil(t, got)

	byEmail, err := s.AccountByEmail(ctx, "nobody@example.com")
	assert.NoError(t, err)
	assert.Nil(t, byEmail)
}

func TestCreateAccount_DuplicateEmail_Rejected(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	seedAccount(t, s, "alice@example.com", "REFAAA11")

	dup := &ledger.Account{
		Email:        "alice@example.com",
		PasswordHash: "hash",
		Status:       ledger.AccountActive,
		ReferralCode: "REFBBB22",
		CreatedAt:    time.Now().UTC(),
	}
	err := s.CreateAccount(ctx, dup)
	assert.ErrorIs(t, err, ledger.ErrDuplicateAccount)
}

// =============================================================================
// LEDGER ENTRIES
// =============================================================================

func TestEntries_NewestFirstAndSum(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	acct := seedAccount(t, s, "alice@example.com", "REFAAA11")

	base := time.Now().UTC().Add(-time.Hour)
	amounts := []string{"50", "25.5", "-30"}
	for i, a := range amounts {
		require.NoError(t, s.AppendEntry(ctx, &ledger.Entry{
			ID:           "e" + a,
			AccountID:    acct.ID,
			Amount:       decimal.RequireFromString(a),
			Kind:         ledger.KindAdjustment,
			BalanceAfter: decimal.Zero,
			CreatedAt:    base.Add(time.Duration(i) * time.Minute),
		}))
	}

	entries, err := s.Entries(ctx, acct.ID, 0)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.True(t, entries[0].Amount.Equal(decimal.RequireFromString("-30")), "newest first")

	limited, err := s.Entries(ctx, acct.ID, 2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)

	sum, err := s.SumEntries(ctx, acct.ID)
	require.NoError(t, err)
	assert.True(t, sum.Equal(decimal.RequireFromString("45.5")), "decimal sum, no float drift")
}

func TestCountTaskCompletions_FiltersByDay(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	acct := seedAccount(t, s, "alice@example.com", "REFAAA11")
	taskID := int64(1)

	today := time.Now().UTC()
	yesterday := today.Add(-24 * time.Hour)
	for i, ts := range []time.Time{today, today, yesterday} {
		require.NoError(t, s.AppendEntry(ctx, &ledger.Entry{
			ID:           string(rune('a' + i)),
			AccountID:    acct.ID,
			TaskID:       &taskID,
			Amount:       decimal.NewFromInt(10),
			Kind:         ledger.KindTaskCompletion,
			BalanceAfter: decimal.Zero,
			CreatedAt:    ts,
		}))
	}

	count, err := s.CountTaskCompletions(ctx, acct.ID, taskID, ledger.Today())
	require.NoError(t, err)
	assert.Equal(t, 2, count, "yesterday's completion excluded")

	count, err = s.CountTaskCompletions(ctx, acct.ID, 999, ledger.Today())
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

func TestWithTx_RollbackOnError(t *testing.T) {
	// GIVEN: An account
	ctx := context.Background()
	s := newStore(t)
	acct := seedAccount(t, s, "alice@example.com", "REFAAA11")

	// WHEN: A transaction writes an entry then fails
	boom := errors.New("boom")
	err := s.WithTx(ctx, func(st ledger.Store) error {
		if err := st.AppendEntry(ctx, &ledger.Entry{
			ID:           "doomed",
			AccountID:    acct.ID,
			Amount:       decimal.NewFromInt(50),
			Kind:         ledger.KindAdjustment,
			BalanceAfter: decimal.NewFromInt(50),
			CreatedAt:    time.Now().UTC(),
		}); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	// THEN: Nothing was applied
	entries, err := s.Entries(ctx, acct.ID, 0)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestWithTx_CommitOnSuccess(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	acct := seedAccount(t, s, "alice@example.com", "REFAAA11")

	err := s.WithTx(ctx, func(st ledger.Store) error {
		_, err := ledger.Apply(ctx, st, ledger.Event{
			AccountID: acct.ID,
			Amount:    decimal.NewFromInt(50),
			Kind:      ledger.KindSignupBonus,
		})
		return err
	})
	require.NoError(t, err)

	got, err := s.Account(ctx, acct.ID)
	require.NoError(t, err)
	assert.True(t, got.Balance.Equal(decimal.NewFromInt(50)))
	assert.NoError(t, ledger.Reconcile(ctx, s, acct.ID))
}

// =============================================================================
// WITHDRAWALS
// =============================================================================

func TestDailyWithdrawalTotal_CountsPendingAndApprovedOnly(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	acct := seedAccount(t, s, "alice@example.com", "REFAAA11")

	now := time.Now().UTC()
	seed := []struct {
		txid   string
		amount int64
		status ledger.WithdrawalStatus
		at     time.Time
	}{
		{"WT1", 1000, ledger.WithdrawalPending, now},
		{"WT2", 2000, ledger.WithdrawalApproved, now},
		{"WT3", 500, ledger.WithdrawalRejected, now},
		{"WT4", 3000, ledger.WithdrawalPending, now.Add(-24 * time.Hour)},
	}
	for _, c := range seed {
		require.NoError(t, s.CreateWithdrawal(ctx, &ledger.Withdrawal{
			AccountID:     acct.ID,
			Amount:        decimal.NewFromInt(c.amount),
			Destination:   "payee@upi",
			Method:        "upi",
			Status:        c.status,
			TransactionID: c.txid,
			RequestedAt:   c.at,
		}))
	}

	total, err := s.DailyWithdrawalTotal(ctx, acct.ID, ledger.Today())
	require.NoError(t, err)
	assert.True(t, total.Equal(decimal.NewFromInt(3000)),
		"rejected and prior-day requests excluded, got %s", total)
}

func TestListWithdrawals_StatusFilter(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	acct := seedAccount(t, s, "alice@example.com", "REFAAA11")

	for i, status := range []ledger.WithdrawalStatus{
		ledger.WithdrawalPending, ledger.WithdrawalApproved, ledger.WithdrawalPending,
	} {
		require.NoError(t, s.CreateWithdrawal(ctx, &ledger.Withdrawal{
			AccountID:     acct.ID,
			Amount:        decimal.NewFromInt(100),
			Destination:   "payee@upi",
			Method:        "upi",
			Status:        status,
			TransactionID: string(rune('A' + i)),
			RequestedAt:   time.Now().UTC(),
		}))
	}

	pending, err := s.ListWithdrawals(ctx, ledger.WithdrawalPending)
	require.NoError(t, err)
	assert.Len(t, pending, 2)

	all, err := s.ListWithdrawals(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

// =============================================================================
// DAILY LOGINS
// =============================================================================

func TestDailyLogin_UniquePerDay(t *testing.T) {
	// GIVEN: Today's login row exists
	ctx := context.Background()
	s := newStore(t)
	acct := seedAccount(t, s, "alice@example.com", "REFAAA11")

	today := ledger.Today()
	require.NoError(t, s.CreateDailyLogin(ctx, &ledger.DailyLogin{
		AccountID: acct.ID,
		Day:       today,
		Streak:    1,
		Bonus:     decimal.NewFromInt(10),
	}))

	// WHEN: A second row for the same day is inserted
	err := s.CreateDailyLogin(ctx, &ledger.DailyLogin{
		AccountID: acct.ID,
		Day:       today,
		Streak:    2,
		Bonus:     decimal.NewFromInt(20),
	})

	// THEN: The unique index rejects it
	require.Error(t, err)

	got, err := s.DailyLogin(ctx, acct.ID, today)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 1, got.Streak)

	// AND: LatestDailyLogin finds the most recent day
	require.NoError(t, s.CreateDailyLogin(ctx, &ledger.DailyLogin{
		AccountID: acct.ID,
		Day:       today.Next(),
		Streak:    2,
		Bonus:     decimal.NewFromInt(20),
	}))
	latest, err := s.LatestDailyLogin(ctx, acct.ID)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, 2, latest.Streak)
}
