/*
admin.go - Administrative account and task operations

PURPOSE:
  Moderation surface for the admin console. Updates use explicit typed
  patch structs enumerating exactly which fields may change — never a
  dynamic field list. An admin balance change is NOT a raw overwrite: it
  is applied as an adjustment entry through the mutator, so the
  reconciliation invariant keeps holding after manual corrections.

SEE ALSO:
  - service.go: User-facing operations
  - ledger/mutator.go: Where the adjustment delta is committed
*/
package rewards

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/kaamkaro/rewards-engine/ledger"
)

// =============================================================================
// ACCOUNT PATCH
// =============================================================================

// AccountPatch enumerates the account fields an administrator may change.
// Nil fields are left untouched.
type AccountPatch struct {
	Balance *decimal.Decimal
	Status  *ledger.AccountStatus
	IsAdmin *bool
}

// UpdateAccount applies the patch. A balance change is converted into a
// signed adjustment entry (target - current) so the ledger still sums to
// the balance; setting a negative target fails with InsufficientFunds.
func (s *Service) UpdateAccount(ctx context.Context, accountID int64, p AccountPatch) (*ledger.Account, error) {
	if p.Status != nil && *p.Status != ledger.AccountActive && *p.Status != ledger.AccountSuspended {
		return nil, &ledger.ValidationError{Field: "status", Message: "must be active or suspended"}
	}

	unlock := s.Locks.Lock(accountID)
	defer unlock()

	var updated *ledger.Account
	err := s.Store.WithTx(ctx, func(st ledger.Store) error {
		acct, err := st.Account(ctx, accountID)
		if err != nil {
			return err
		}
		if acct == nil {
			return ledger.ErrAccountNotFound
		}

		if p.Balance != nil {
			delta := p.Balance.Sub(acct.Balance)
			if !delta.IsZero() {
				if _, err := ledger.Apply(ctx, st, ledger.Event{
					AccountID:   accountID,
					Amount:      delta,
					Kind:        ledger.KindAdjustment,
					Description: "Admin balance adjustment",
				}); err != nil {
					return err
				}
				// Apply saved the account; reload before patching the rest.
				acct, err = st.Account(ctx, accountID)
				if err != nil {
					return err
				}
			}
		}

		if p.Status != nil {
			acct.Status = *p.Status
		}
		if p.IsAdmin != nil {
			acct.IsAdmin = *p.IsAdmin
		}
		if err := st.SaveAccount(ctx, acct); err != nil {
			return err
		}
		updated = acct
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// =============================================================================
// TASK CREATE / PATCH
// =============================================================================

type CreateTaskInput struct {
	Title       string
	Description string
	Reward      decimal.Decimal
	Type        string
	Duration    int
	Status      ledger.TaskStatus
	Category    string
	DailyLimit  int
}

func (s *Service) CreateTask(ctx context.Context, in CreateTaskInput) (*ledger.Task, error) {
	if strings.TrimSpace(in.Title) == "" {
		return nil, &ledger.ValidationError{Field: "title", Message: "required"}
	}
	if !in.Reward.IsPositive() {
		return nil, &ledger.ValidationError{Field: "reward", Message: "must be positive"}
	}
	if in.DailyLimit <= 0 {
		in.DailyLimit = 1
	}
	if in.Status == "" {
		in.Status = ledger.TaskActive
	}
	if in.Type == "" {
		in.Type = "general"
	}
	if in.Category == "" {
		in.Category = "general"
	}
	if in.Duration <= 0 {
		in.Duration = 60
	}

	task := &ledger.Task{
		Title:       strings.TrimSpace(in.Title),
		Description: in.Description,
		Reward:      in.Reward,
		Type:        in.Type,
		Duration:    in.Duration,
		Status:      in.Status,
		Category:    in.Category,
		DailyLimit:  in.DailyLimit,
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.Store.CreateTask(ctx, task); err != nil {
		return nil, err
	}
	return task, nil
}

// TaskPatch enumerates the task fields an administrator may change.
// Reward and limit edits are administrative corrections; historical
// entries keep their original amounts and titles.
type TaskPatch struct {
	Title       *string
	Description *string
	Reward      *decimal.Decimal
	Type        *string
	Duration    *int
	Status      *ledger.TaskStatus
	Category    *string
	DailyLimit  *int
}

func (s *Service) UpdateTask(ctx context.Context, taskID int64, p TaskPatch) (*ledger.Task, error) {
	if p.Reward != nil && !p.Reward.IsPositive() {
		return nil, &ledger.ValidationError{Field: "reward", Message: "must be positive"}
	}
	if p.DailyLimit != nil && *p.DailyLimit <= 0 {
		return nil, &ledger.ValidationError{Field: "daily_limit", Message: "must be at least 1"}
	}
	if p.Status != nil && *p.Status != ledger.TaskActive && *p.Status != ledger.TaskInactive {
		return nil, &ledger.ValidationError{Field: "status", Message: "must be active or inactive"}
	}

	var updated *ledger.Task
	err := s.Store.WithTx(ctx, func(st ledger.Store) error {
		task, err := st.Task(ctx, taskID)
		if err != nil {
			return err
		}
		if task == nil {
			return ledger.ErrTaskNotFound
		}

		if p.Title != nil {
			task.Title = strings.TrimSpace(*p.Title)
		}
		if p.Description != nil {
			task.Description = *p.Description
		}
		if p.Reward != nil {
			task.Reward = *p.Reward
		}
		if p.Type != nil {
			task.Type = *p.Type
		}
		if p.Duration != nil {
			task.Duration = *p.Duration
		}
		if p.Status != nil {
			task.Status = *p.Status
		}
		if p.Category != nil {
			task.Category = *p.Category
		}
		if p.DailyLimit != nil {
			task.DailyLimit = *p.DailyLimit
		}

		if err := st.SaveTask(ctx, task); err != nil {
			return err
		}
		updated = task
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}
