/*
Package rewards implements the reward rules engine and the user-facing
services built on it.

PURPOSE:
  The rules engine is pure: given current state (task, streak, counters)
  it computes a reward amount or an eligibility error, with no side
  effects. Services (service.go) read state, ask the rules engine for an
  outcome, and commit it through the ledger mutator inside one
  transaction.

RULES (reference values, all configurable):
  Signup bonus:   50, granted atomically with account creation
  Referral bonus: 50 to the referrer when a new account registers with a
                  valid code; an unknown code grants nothing and is not
                  an error
  Daily bonus:    min(streak*10, 70); streak continues from yesterday's
                  record or resets to 1; at most one grant per day
  Task reward:    task.Reward, if the task is active and the account has
                  not hit task.DailyLimit completions today

SEE ALSO:
  - service.go: Registration, login, task completion orchestration
  - ledger/mutator.go: Where computed outcomes get committed
*/
package rewards

import (
	"github.com/shopspring/decimal"

	"github.com/kaamkaro/rewards-engine/ledger"
)

// =============================================================================
// RULES - Tunable reward parameters
// =============================================================================

type Rules struct {
	SignupBonus   decimal.Decimal
	ReferralBonus decimal.Decimal

	// Daily login bonus: DailyBonusUnit per streak day, capped.
	DailyBonusUnit decimal.Decimal
	DailyBonusCap  decimal.Decimal
}

// DefaultRules returns the platform's reference values.
func DefaultRules() Rules {
	return Rules{
		SignupBonus:    decimal.NewFromInt(50),
		ReferralBonus:  decimal.NewFromInt(50),
		DailyBonusUnit: decimal.NewFromInt(10),
		DailyBonusCap:  decimal.NewFromInt(70),
	}
}

// =============================================================================
// PURE RULE FUNCTIONS
// =============================================================================

// NextStreak computes today's streak from yesterday's record: one more
// than yesterday if the account logged in yesterday, otherwise back to 1.
func NextStreak(yesterday *ledger.DailyLogin) int {
	if yesterday == nil {
		return 1
	}
	return yesterday.Streak + 1
}

// DailyLoginBonus computes the bonus for a given streak:
// min(streak * unit, cap).
func (r Rules) DailyLoginBonus(streak int) decimal.Decimal {
	bonus := r.DailyBonusUnit.Mul(decimal.NewFromInt(int64(streak)))
	if bonus.GreaterThan(r.DailyBonusCap) {
		return r.DailyBonusCap
	}
	return bonus
}

// EvaluateTaskCompletion decides whether an account may complete the task
// once more today, and if so what the reward is.
func EvaluateTaskCompletion(task *ledger.Task, completionsToday int) (decimal.Decimal, error) {
	if task.Status != ledger.TaskActive {
		return decimal.Zero, ledger.ErrTaskUnavailable
	}
	if completionsToday >= task.DailyLimit {
		return decimal.Zero, &ledger.DailyLimitError{TaskID: task.ID, Limit: task.DailyLimit}
	}
	return task.Reward, nil
}
