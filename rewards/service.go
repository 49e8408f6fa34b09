/*
service.go - Registration, login, and task-completion orchestration

PURPOSE:
  Each externally-triggered operation runs as one atomic unit: take the
  account's stripe lock, open a store transaction, read current state,
  ask the rules engine for an outcome, and commit balance + entry +
  counters together through ledger.Apply. A failure anywhere rolls back
  the whole unit.

OPERATION FLOW:

  Register:   validate input -> create account -> signup bonus entry
              -> (valid referral code?) referral row + referrer bonus
              All in ONE transaction: a failure leaves neither the
              account nor any entry behind.

  Login:      verify password -> (no record for today?) compute streak
              from yesterday -> daily login row + bonus entry.
              A second login the same day returns the existing record
              and grants nothing.

  CompleteTask: active check + daily-limit check -> reward entry +
              task/account counters.

SEE ALSO:
  - rules.go: The pure outcome computation
  - admin.go: Administrative task/account operations
  - withdrawal: The withdrawal state machine (same pattern)
*/
package rewards

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/kaamkaro/rewards-engine/ledger"
)

// =============================================================================
// SERVICE
// =============================================================================

type Service struct {
	Store ledger.TxStore
	Rules Rules
	Locks *ledger.AccountLocks
}

func NewService(store ledger.TxStore, rules Rules, locks *ledger.AccountLocks) *Service {
	return &Service{Store: store, Rules: rules, Locks: locks}
}

// =============================================================================
// REGISTRATION
// =============================================================================

type RegisterInput struct {
	Email        string
	Password     string
	Name         string
	Phone        string
	ReferralCode string // optional, case-insensitive
}

// Register creates a new account with its signup bonus and, when the
// supplied referral code resolves to an active account, credits the
// referrer — all in one transaction. An unknown or inactive referral
// code grants nothing and is not an error.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*ledger.Account, error) {
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if email == "" || !strings.Contains(email, "@") {
		return nil, &ledger.ValidationError{Field: "email", Message: "valid email required"}
	}
	if len(in.Password) < 6 {
		return nil, &ledger.ValidationError{Field: "password", Message: "must be at least 6 characters"}
	}

	name := strings.TrimSpace(in.Name)
	if name == "" {
		name = defaultName(email)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	code := strings.ToUpper(strings.TrimSpace(in.ReferralCode))

	// Resolve the referrer outside the write transaction so we know
	// which stripe to lock. The code is re-checked inside the
	// transaction before any credit.
	var referrerID int64
	if code != "" {
		referrer, err := s.Store.AccountByReferralCode(ctx, code)
		if err != nil {
			return nil, fmt.Errorf("resolve referral code: %w", err)
		}
		if referrer != nil && referrer.Status == ledger.AccountActive {
			referrerID = referrer.ID
		}
	}
	if referrerID != 0 {
		unlock := s.Locks.Lock(referrerID)
		defer unlock()
	}

	acct := &ledger.Account{
		Email:        email,
		PasswordHash: string(hash),
		Name:         name,
		Phone:        strings.TrimSpace(in.Phone),
		Status:       ledger.AccountActive,
		ReferralCode: newReferralCode(),
		CreatedAt:    time.Now().UTC(),
	}

	err = s.Store.WithTx(ctx, func(st ledger.Store) error {
		existing, err := st.AccountByEmail(ctx, email)
		if err != nil {
			return err
		}
		if existing != nil {
			return ledger.ErrDuplicateAccount
		}

		if err := st.CreateAccount(ctx, acct); err != nil {
			return err
		}

		entry, err := ledger.Apply(ctx, st, ledger.Event{
			AccountID:   acct.ID,
			Amount:      s.Rules.SignupBonus,
			Kind:        ledger.KindSignupBonus,
			Description: "Welcome bonus for new registration",
		})
		if err != nil {
			return err
		}
		acct.Balance = entry.BalanceAfter

		if referrerID == 0 {
			return nil
		}
		referrer, err := st.AccountByReferralCode(ctx, code)
		if err != nil {
			return err
		}
		if referrer == nil || referrer.Status != ledger.AccountActive {
			return nil // code disappeared between lookup and commit; grant nothing
		}

		if err := st.CreateReferral(ctx, &ledger.Referral{
			ReferrerID:   referrer.ID,
			ReferredID:   acct.ID,
			Code:         code,
			EarnedAmount: s.Rules.ReferralBonus,
			Status:       "active",
			CreatedAt:    time.Now().UTC(),
		}); err != nil {
			return err
		}

		_, err = ledger.Apply(ctx, st, ledger.Event{
			AccountID:   referrer.ID,
			Amount:      s.Rules.ReferralBonus,
			Kind:        ledger.KindReferralBonus,
			Description: "Referral bonus from " + email,
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	return acct, nil
}

// newReferralCode generates a short shareable code, e.g. "REF3FA2B1".
// Uniqueness is enforced by the store's unique index.
func newReferralCode() string {
	return "REF" + strings.ToUpper(uuid.NewString()[:6])
}

// defaultName derives a display name from the email local part.
func defaultName(email string) string {
	local := strings.SplitN(email, "@", 2)[0]
	if local == "" {
		return "User"
	}
	return strings.ToUpper(local[:1]) + local[1:]
}

// =============================================================================
// LOGIN + DAILY BONUS
// =============================================================================

// Login verifies credentials and grants the daily login bonus if today's
// record does not exist yet. The returned DailyLogin is today's record
// either way, so a second call the same day reports the same streak and
// amount without granting again.
func (s *Service) Login(ctx context.Context, email, password string) (*ledger.Account, *ledger.DailyLogin, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return nil, nil, &ledger.ValidationError{Field: "email", Message: "email and password required"}
	}

	acct, err := s.Store.AccountByEmail(ctx, email)
	if err != nil {
		return nil, nil, err
	}
	if acct == nil {
		return nil, nil, ledger.ErrAccountNotFound
	}
	if bcrypt.CompareHashAndPassword([]byte(acct.PasswordHash), []byte(password)) != nil {
		return nil, nil, ledger.ErrInvalidCredentials
	}

	unlock := s.Locks.Lock(acct.ID)
	defer unlock()

	var record *ledger.DailyLogin
	err = s.Store.WithTx(ctx, func(st ledger.Store) error {
		today := ledger.Today()

		existing, err := st.DailyLogin(ctx, acct.ID, today)
		if err != nil {
			return err
		}
		if existing != nil {
			record = existing
			return s.touchLastLogin(ctx, st, acct.ID)
		}

		yesterday, err := st.DailyLogin(ctx, acct.ID, today.Prev())
		if err != nil {
			return err
		}
		streak := NextStreak(yesterday)
		bonus := s.Rules.DailyLoginBonus(streak)

		record = &ledger.DailyLogin{
			AccountID: acct.ID,
			Day:       today,
			Streak:    streak,
			Bonus:     bonus,
			CreatedAt: time.Now().UTC(),
		}
		if err := st.CreateDailyLogin(ctx, record); err != nil {
			return err
		}

		if _, err := ledger.Apply(ctx, st, ledger.Event{
			AccountID:   acct.ID,
			Amount:      bonus,
			Kind:        ledger.KindDailyBonus,
			Description: fmt.Sprintf("Daily login bonus (Day %d)", streak),
		}); err != nil {
			return err
		}

		return s.touchLastLogin(ctx, st, acct.ID)
	})
	if err != nil {
		return nil, nil, err
	}

	// Re-read so the caller sees the post-bonus balance.
	acct, err = s.Store.Account(ctx, acct.ID)
	if err != nil {
		return nil, nil, err
	}
	return acct, record, nil
}

func (s *Service) touchLastLogin(ctx context.Context, st ledger.Store, accountID int64) error {
	a, err := st.Account(ctx, accountID)
	if err != nil {
		return err
	}
	if a == nil {
		return ledger.ErrAccountNotFound
	}
	now := time.Now().UTC()
	a.LastLoginAt = &now
	return st.SaveAccount(ctx, a)
}

// =============================================================================
// TASK COMPLETION
// =============================================================================

// CompleteTask credits the task reward if the task is active and the
// account has not exhausted its daily cap. The reward entry, the account
// counters, and the task's global completion counter commit together.
func (s *Service) CompleteTask(ctx context.Context, accountID, taskID int64) (*ledger.Entry, error) {
	unlock := s.Locks.Lock(accountID)
	defer unlock()

	var entry *ledger.Entry
	err := s.Store.WithTx(ctx, func(st ledger.Store) error {
		acct, err := st.Account(ctx, accountID)
		if err != nil {
			return err
		}
		if acct == nil {
			return ledger.ErrAccountNotFound
		}

		task, err := st.Task(ctx, taskID)
		if err != nil {
			return err
		}
		if task == nil {
			return ledger.ErrTaskNotFound
		}

		completionsToday, err := st.CountTaskCompletions(ctx, accountID, taskID, ledger.Today())
		if err != nil {
			return err
		}

		reward, err := EvaluateTaskCompletion(task, completionsToday)
		if err != nil {
			return err
		}

		entry, err = ledger.Apply(ctx, st, ledger.Event{
			AccountID:   accountID,
			Amount:      reward,
			Kind:        ledger.KindTaskCompletion,
			Description: "Completed: " + task.Title,
			TaskID:      &task.ID,
			TaskTitle:   task.Title,
		})
		if err != nil {
			return err
		}

		task.TotalCompletions++
		return st.SaveTask(ctx, task)
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// =============================================================================
// PROFILE / REFERRAL PROJECTIONS (read-only)
// =============================================================================

// Profile bundles the account with its recent history for the profile
// endpoint. Purely a read; never mutates state.
type Profile struct {
	Account     *ledger.Account
	Entries     []ledger.Entry
	Withdrawals []ledger.Withdrawal
	Referrals   []ledger.Referral
	Streak      int
}

func (s *Service) Profile(ctx context.Context, accountID int64) (*Profile, error) {
	acct, err := s.Store.Account(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if acct == nil {
		return nil, ledger.ErrAccountNotFound
	}

	entries, err := s.Store.Entries(ctx, accountID, 20)
	if err != nil {
		return nil, err
	}
	withdrawals, err := s.Store.WithdrawalsByAccount(ctx, accountID, 10)
	if err != nil {
		return nil, err
	}
	referrals, err := s.Store.ReferralsByReferrer(ctx, accountID)
	if err != nil {
		return nil, err
	}

	streak := 0
	if latest, err := s.Store.LatestDailyLogin(ctx, accountID); err != nil {
		return nil, err
	} else if latest != nil {
		streak = latest.Streak
	}

	return &Profile{
		Account:     acct,
		Entries:     entries,
		Withdrawals: withdrawals,
		Referrals:   referrals,
		Streak:      streak,
	}, nil
}
