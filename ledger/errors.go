/*
errors.go - Centralized error types for the ledger engine

PURPOSE:
  All business error kinds in one place. The transport layer maps these
  one-to-one to HTTP statuses; domain packages wrap them with context.

ERROR CATEGORIES:
  1. Validation errors - malformed input, no state change
  2. Eligibility errors - task inactive, daily limit reached
  3. Balance errors - debit would go negative
  4. Lifecycle errors - withdrawal no longer pending, duplicate account
  5. Storage errors - atomic write failed, rolled back fully

USAGE:
  Check with errors.Is / errors.As:

    if errors.Is(err, ledger.ErrInsufficientFunds) { ... }

    var ve *ledger.ValidationError
    if errors.As(err, &ve) { ... }

SEE ALSO:
  - mutator.go: Returns InsufficientFundsError
  - api: Maps these to HTTP statuses
*/
package ledger

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrValidation is the base for malformed or missing input.
	ErrValidation = errors.New("validation failed")

	// ErrAccountNotFound is returned when a referenced account doesn't exist.
	ErrAccountNotFound = errors.New("account not found")

	// ErrTaskNotFound is returned when a referenced task doesn't exist.
	ErrTaskNotFound = errors.New("task not found")

	// ErrWithdrawalNotFound is returned when a referenced withdrawal doesn't exist.
	ErrWithdrawalNotFound = errors.New("withdrawal not found")

	// ErrTaskUnavailable is returned when completing a task that is not active.
	ErrTaskUnavailable = errors.New("task is not available")

	// ErrDailyLimitReached is returned when an account has exhausted a
	// task's per-day completion cap.
	ErrDailyLimitReached = errors.New("daily limit reached for this task")

	// ErrInsufficientFunds is returned when a debit would take the
	// balance negative. No state change occurs.
	ErrInsufficientFunds = errors.New("insufficient balance")

	// ErrAlreadyProcessed is returned when approving or rejecting a
	// withdrawal that is no longer pending.
	ErrAlreadyProcessed = errors.New("withdrawal already processed")

	// ErrDuplicateAccount is returned when the email is already registered.
	ErrDuplicateAccount = errors.New("email already registered")

	// ErrInvalidCredentials is returned on a failed password check.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrDailyCapExceeded is returned when a withdrawal would push the
	// day's pending+approved total past the daily cap.
	ErrDailyCapExceeded = errors.New("daily withdrawal limit exceeded")

	// ErrStorage wraps persistence failures. The enclosing transaction
	// is rolled back fully; nothing is partially applied.
	ErrStorage = errors.New("storage failure")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// ValidationError reports a specific invalid field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// InsufficientFundsError provides details about a balance shortage.
type InsufficientFundsError struct {
	AccountID int64
	Available decimal.Decimal
	Requested decimal.Decimal
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("insufficient balance: available %s, requested %s",
		e.Available, e.Requested)
}

func (e *InsufficientFundsError) Unwrap() error { return ErrInsufficientFunds }

// DailyLimitError reports an exhausted per-day task cap.
type DailyLimitError struct {
	TaskID int64
	Limit  int
}

func (e *DailyLimitError) Error() string {
	return fmt.Sprintf("daily limit reached for task %d (max: %d)", e.TaskID, e.Limit)
}

func (e *DailyLimitError) Unwrap() error { return ErrDailyLimitReached }

// ReconciliationError reports a balance that does not match the ledger.
// This is always a bug or data corruption, never a business outcome.
type ReconciliationError struct {
	AccountID int64
	Balance   decimal.Decimal
	EntrySum  decimal.Decimal
}

func (e *ReconciliationError) Error() string {
	return fmt.Sprintf("account %d out of balance: balance %s, entry sum %s",
		e.AccountID, e.Balance, e.EntrySum)
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsNotFound returns true if the error indicates a missing row.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrAccountNotFound) ||
		errors.Is(err, ErrTaskNotFound) ||
		errors.Is(err, ErrWithdrawalNotFound)
}

// IsConflict returns true for state conflicts reported with 409.
func IsConflict(err error) bool {
	return errors.Is(err, ErrAlreadyProcessed) ||
		errors.Is(err, ErrDuplicateAccount)
}

// IsClientError returns true if the error is the caller's fault and the
// request can not succeed by retrying unchanged.
func IsClientError(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrTaskUnavailable) ||
		errors.Is(err, ErrDailyLimitReached) ||
		errors.Is(err, ErrInsufficientFunds) ||
		errors.Is(err, ErrDailyCapExceeded) ||
		IsConflict(err)
}
