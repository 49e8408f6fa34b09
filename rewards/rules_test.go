package rewards

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/kaamkaro/rewards-engine/ledger"
)

func TestNextStreak(t *testing.T) {
	// No record yesterday resets to 1
	assert.Equal(t, 1, NextStreak(nil))

	// A record yesterday continues the run
	assert.Equal(t, 4, NextStreak(&ledger.DailyLogin{Streak: 3}))
	assert.Equal(t, 2, NextStreak(&ledger.DailyLogin{Streak: 1}))
}

func TestDailyLoginBonus_ScalesThenCaps(t *testing.T) {
	r := DefaultRules()

	cases := []struct {
		streak int
		want   int64
	}{
		{1, 10},
		{2, 20},
		{7, 70},
		{8, 70},  // capped
		{30, 70}, // still capped
	}
	for _, c := range cases {
		got := r.DailyLoginBonus(c.streak)
		assert.True(t, got.Equal(decimal.NewFromInt(c.want)),
			"streak %d: want %d, got %s", c.streak, c.want, got)
	}
}

func TestEvaluateTaskCompletion_ActiveUnderLimit_GrantsReward(t *testing.T) {
	task := &ledger.Task{
		ID:         1,
		Status:     ledger.TaskActive,
		Reward:     decimal.NewFromInt(25),
		DailyLimit: 3,
	}

	reward, err := EvaluateTaskCompletion(task, 2)
	assert.NoError(t, err)
	assert.True(t, reward.Equal(decimal.NewFromInt(25)))
}

func TestEvaluateTaskCompletion_Inactive_Unavailable(t *testing.T) {
	task := &ledger.Task{
		ID:         1,
		Status:     ledger.TaskInactive,
		Reward:     decimal.NewFromInt(25),
		DailyLimit: 3,
	}

	_, err := EvaluateTaskCompletion(task, 0)
	assert.ErrorIs(t, err, ledger.ErrTaskUnavailable)
}

func TestEvaluateTaskCompletion_AtLimit_Rejected(t *testing.T) {
	task := &ledger.Task{
		ID:         9,
		Status:     ledger.TaskActive,
		Reward:     decimal.NewFromInt(25),
		DailyLimit: 2,
	}

	_, err := EvaluateTaskCompletion(task, 2)
	assert.ErrorIs(t, err, ledger.ErrDailyLimitReached)

	var dle *ledger.DailyLimitError
	assert.ErrorAs(t, err, &dle)
	assert.Equal(t, int64(9), dle.TaskID)
	assert.Equal(t, 2, dle.Limit)
}
