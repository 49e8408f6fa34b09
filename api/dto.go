/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - *Response: Complex response wrappers

AMOUNTS:
  Monetary values are rendered as decimal strings ("150.00"), never
  floats. Request amounts use decimal.Decimal directly, which accepts
  both JSON numbers and strings.

VALIDATION:
  Validation is done in handlers and services, not in DTOs. DTOs are
  pure data carriers.

SEE ALSO:
  - handlers.go: Uses these types
  - admin.go: Admin-only request/response types
*/
package api

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/kaamkaro/rewards-engine/ledger"
)

// =============================================================================
// ERROR RESPONSE
// =============================================================================

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// =============================================================================
// AUTH
// =============================================================================

type RegisterRequest struct {
	Email        string `json:"email"`
	Password     string `json:"password"`
	Name         string `json:"name"`
	Phone        string `json:"phone"`
	ReferralCode string `json:"referral_code"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AuthResponse carries the session token with the account snapshot. On
// login it also reports today's daily bonus grant.
type AuthResponse struct {
	Token      string         `json:"token"`
	User       AccountDTO     `json:"user"`
	DailyBonus *DailyBonusDTO `json:"daily_bonus,omitempty"`
}

// DailyBonusDTO reports the outcome of the login-day bonus check.
type DailyBonusDTO struct {
	Streak int    `json:"streak"`
	Bonus  string `json:"bonus"`
	Day    string `json:"day"`
}

// =============================================================================
// ACCOUNTS
// =============================================================================

type AccountDTO struct {
	ID               int64  `json:"id"`
	Email            string `json:"email"`
	Name             string `json:"name"`
	Phone            string `json:"phone,omitempty"`
	Balance          string `json:"balance"`
	TotalEarned      string `json:"total_earned"`
	TasksDone        int    `json:"tasks_done"`
	ReferralCode     string `json:"referral_code"`
	ReferralsCount   int    `json:"referrals_count"`
	ReferralEarnings string `json:"referral_earnings"`
	IsAdmin          bool   `json:"is_admin"`
	Status           string `json:"status"`
	LastLoginAt      string `json:"last_login,omitempty"`
	CreatedAt        string `json:"created_at"`
}

func toAccountDTO(a *ledger.Account) AccountDTO {
	dto := AccountDTO{
		ID:               a.ID,
		Email:            a.Email,
		Name:             a.Name,
		Phone:            a.Phone,
		Balance:          a.Balance.String(),
		TotalEarned:      a.TotalEarned.String(),
		TasksDone:        a.TasksDone,
		ReferralCode:     a.ReferralCode,
		ReferralsCount:   a.ReferralsCount,
		ReferralEarnings: a.ReferralEarnings.String(),
		IsAdmin:          a.IsAdmin,
		Status:           string(a.Status),
		CreatedAt:        a.CreatedAt.Format(time.RFC3339),
	}
	if a.LastLoginAt != nil {
		dto.LastLoginAt = a.LastLoginAt.Format(time.RFC3339)
	}
	return dto
}

// =============================================================================
// TASKS
// =============================================================================

type TaskDTO struct {
	ID               int64  `json:"id"`
	Title            string `json:"title"`
	Description      string `json:"description,omitempty"`
	Reward           string `json:"reward"`
	Type             string `json:"type"`
	Duration         int    `json:"duration"`
	Status           string `json:"status"`
	Category         string `json:"category"`
	DailyLimit       int    `json:"daily_limit"`
	TotalCompletions int    `json:"total_completions"`
	CreatedAt        string `json:"created_at,omitempty"`
}

func toTaskDTO(t *ledger.Task) TaskDTO {
	return TaskDTO{
		ID:               t.ID,
		Title:            t.Title,
		Description:      t.Description,
		Reward:           t.Reward.String(),
		Type:             t.Type,
		Duration:         t.Duration,
		Status:           string(t.Status),
		Category:         t.Category,
		DailyLimit:       t.DailyLimit,
		TotalCompletions: t.TotalCompletions,
		CreatedAt:        t.CreatedAt.Format(time.RFC3339),
	}
}

// =============================================================================
// LEDGER ENTRIES
// =============================================================================

type EntryDTO struct {
	ID           string `json:"id"`
	Amount       string `json:"amount"`
	Kind         string `json:"kind"`
	Description  string `json:"description"`
	BalanceAfter string `json:"balance_after"`
	TaskID       *int64 `json:"task_id,omitempty"`
	TaskTitle    string `json:"task_title,omitempty"`
	WithdrawalID *int64 `json:"withdrawal_id,omitempty"`
	CreatedAt    string `json:"created_at"`
}

func toEntryDTO(e *ledger.Entry) EntryDTO {
	return EntryDTO{
		ID:           e.ID,
		Amount:       e.Amount.String(),
		Kind:         string(e.Kind),
		Description:  e.Description,
		BalanceAfter: e.BalanceAfter.String(),
		TaskID:       e.TaskID,
		TaskTitle:    e.TaskTitle,
		WithdrawalID: e.WithdrawalID,
		CreatedAt:    e.CreatedAt.Format(time.RFC3339),
	}
}

// =============================================================================
// WITHDRAWALS
// =============================================================================

type WithdrawRequest struct {
	Amount      decimal.Decimal `json:"amount"`
	Destination string          `json:"destination"`
	Method      string          `json:"method"`
}

type WithdrawalDTO struct {
	ID              int64  `json:"id"`
	AccountID       int64  `json:"account_id"`
	AccountEmail    string `json:"account_email,omitempty"`
	AccountName     string `json:"account_name,omitempty"`
	Amount          string `json:"amount"`
	Destination     string `json:"destination"`
	Method          string `json:"method"`
	Status          string `json:"status"`
	TransactionID   string `json:"transaction_id"`
	RejectionReason string `json:"rejection_reason,omitempty"`
	Notes           string `json:"notes,omitempty"`
	RequestedAt     string `json:"requested_at"`
	ProcessedAt     string `json:"processed_at,omitempty"`
}

func toWithdrawalDTO(w *ledger.Withdrawal) WithdrawalDTO {
	dto := WithdrawalDTO{
		ID:              w.ID,
		AccountID:       w.AccountID,
		AccountEmail:    w.AccountEmail,
		AccountName:     w.AccountName,
		Amount:          w.Amount.String(),
		Destination:     w.Destination,
		Method:          w.Method,
		Status:          string(w.Status),
		TransactionID:   w.TransactionID,
		RejectionReason: w.RejectionReason,
		Notes:           w.Notes,
		RequestedAt:     w.RequestedAt.Format(time.RFC3339),
	}
	if w.ProcessedAt != nil {
		dto.ProcessedAt = w.ProcessedAt.Format(time.RFC3339)
	}
	return dto
}

// =============================================================================
// REFERRALS
// =============================================================================

type ReferralDTO struct {
	ID           int64  `json:"id"`
	ReferredID   int64  `json:"referred_id"`
	Code         string `json:"code"`
	EarnedAmount string `json:"earned_amount"`
	Status       string `json:"status"`
	CreatedAt    string `json:"created_at"`
}

func toReferralDTO(r *ledger.Referral) ReferralDTO {
	return ReferralDTO{
		ID:           r.ID,
		ReferredID:   r.ReferredID,
		Code:         r.Code,
		EarnedAmount: r.EarnedAmount.String(),
		Status:       r.Status,
		CreatedAt:    r.CreatedAt.Format(time.RFC3339),
	}
}

// ReferralStatsDTO summarizes the account's referral activity.
type ReferralStatsDTO struct {
	ReferralCode   string        `json:"referral_code"`
	ReferralsCount int           `json:"referrals_count"`
	TotalEarnings  string        `json:"total_earnings"`
	Referrals      []ReferralDTO `json:"referrals"`
}

// =============================================================================
// PROFILE
// =============================================================================

type ProfileResponse struct {
	User         AccountDTO      `json:"user"`
	Streak       int             `json:"streak"`
	Transactions []EntryDTO      `json:"transactions"`
	Withdrawals  []WithdrawalDTO `json:"withdrawals"`
	Referrals    []ReferralDTO   `json:"referrals"`
}
