/*
Package withdrawal implements the withdrawal state machine.

PURPOSE:
  Manages the lifecycle of payout requests:

      pending ──▶ approved   (terminal)
         │
         └─────▶ rejected   (terminal)

  Funds are DEBITED AT REQUEST TIME — the balance is reduced immediately
  via the ledger mutator (kind withdrawal_request), not merely reserved.
  Approval therefore changes no balance; rejection refunds the full
  amount with a NEW offsetting entry (kind withdrawal_refund). The
  original debit entry is never rewritten.

TRANSITION RULES:
  - A withdrawal leaves pending exactly once. A second approve or reject
    fails with ErrAlreadyProcessed.
  - Request validation: amount within [Min, Max], destination format
    valid for the method, balance sufficient, and the day's
    pending+approved total plus this amount within DailyCap.

SEE ALSO:
  - ledger/mutator.go: Debit and refund entries
  - rewards/service.go: The same lock + transaction pattern
*/
package withdrawal

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/kaamkaro/rewards-engine/ledger"
)

// =============================================================================
// LIMITS - Tunable withdrawal parameters
// =============================================================================

type Limits struct {
	Min      decimal.Decimal
	Max      decimal.Decimal
	DailyCap decimal.Decimal // pending+approved total per account per day
}

// DefaultLimits returns the platform's reference values.
func DefaultLimits() Limits {
	return Limits{
		Min:      decimal.NewFromInt(100),
		Max:      decimal.NewFromInt(10000),
		DailyCap: decimal.NewFromInt(5000),
	}
}

// =============================================================================
// SERVICE
// =============================================================================

type Service struct {
	Store  ledger.TxStore
	Limits Limits
	Locks  *ledger.AccountLocks
}

func NewService(store ledger.TxStore, limits Limits, locks *ledger.AccountLocks) *Service {
	return &Service{Store: store, Limits: limits, Locks: locks}
}

// =============================================================================
// REQUEST (external -> pending)
// =============================================================================

// Request validates and creates a pending withdrawal, debiting the
// account immediately. The returned withdrawal carries the generated
// externally-unique transaction id.
func (s *Service) Request(ctx context.Context, accountID int64, amount decimal.Decimal, destination, method string) (*ledger.Withdrawal, error) {
	destination = strings.TrimSpace(destination)
	if method == "" {
		method = "upi"
	}

	if destination == "" {
		return nil, &ledger.ValidationError{Field: "destination", Message: "required"}
	}
	if amount.LessThan(s.Limits.Min) {
		return nil, &ledger.ValidationError{
			Field:   "amount",
			Message: fmt.Sprintf("minimum withdrawal amount is %s", s.Limits.Min),
		}
	}
	if amount.GreaterThan(s.Limits.Max) {
		return nil, &ledger.ValidationError{
			Field:   "amount",
			Message: fmt.Sprintf("maximum withdrawal amount is %s", s.Limits.Max),
		}
	}
	if method == "upi" && !strings.Contains(destination, "@") {
		return nil, &ledger.ValidationError{Field: "destination", Message: "invalid UPI ID format"}
	}

	unlock := s.Locks.Lock(accountID)
	defer unlock()

	var w *ledger.Withdrawal
	err := s.Store.WithTx(ctx, func(st ledger.Store) error {
		acct, err := st.Account(ctx, accountID)
		if err != nil {
			return err
		}
		if acct == nil {
			return ledger.ErrAccountNotFound
		}

		today, err := st.DailyWithdrawalTotal(ctx, accountID, ledger.Today())
		if err != nil {
			return err
		}
		if today.Add(amount).GreaterThan(s.Limits.DailyCap) {
			return ledger.ErrDailyCapExceeded
		}

		w = &ledger.Withdrawal{
			AccountID:     accountID,
			AccountEmail:  acct.Email,
			AccountName:   acct.Name,
			Amount:        amount,
			Destination:   destination,
			Method:        method,
			Status:        ledger.WithdrawalPending,
			TransactionID: NewTransactionID(),
			RequestedAt:   time.Now().UTC(),
		}
		if err := st.CreateWithdrawal(ctx, w); err != nil {
			return err
		}

		// Debit now. Apply rejects the request with InsufficientFunds
		// if the balance cannot cover it.
		_, err = ledger.Apply(ctx, st, ledger.Event{
			AccountID:    accountID,
			Amount:       amount.Neg(),
			Kind:         ledger.KindWithdrawalRequest,
			Description:  fmt.Sprintf("Withdrawal request to %s (%s)", destination, strings.ToUpper(method)),
			WithdrawalID: &w.ID,
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	return w, nil
}

// NewTransactionID generates an externally-unique payout reference,
// e.g. "WT20250314A1B2C3D4".
func NewTransactionID() string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
	return "WT" + time.Now().UTC().Format("20060102") + suffix
}

// =============================================================================
// APPROVE (pending -> approved)
// =============================================================================

// Approve marks a pending withdrawal as paid out. No balance change:
// the funds were already debited at request time.
func (s *Service) Approve(ctx context.Context, withdrawalID int64, notes string) (*ledger.Withdrawal, error) {
	var w *ledger.Withdrawal
	err := s.Store.WithTx(ctx, func(st ledger.Store) error {
		var err error
		w, err = st.Withdrawal(ctx, withdrawalID)
		if err != nil {
			return err
		}
		if w == nil {
			return ledger.ErrWithdrawalNotFound
		}
		if w.Status != ledger.WithdrawalPending {
			return ledger.ErrAlreadyProcessed
		}

		now := time.Now().UTC()
		w.Status = ledger.WithdrawalApproved
		w.ProcessedAt = &now
		w.Notes = notes
		return st.SaveWithdrawal(ctx, w)
	})
	if err != nil {
		return nil, err
	}
	return w, nil
}

// =============================================================================
// REJECT (pending -> rejected)
// =============================================================================

// Reject refunds the full amount with a new offsetting ledger entry and
// records the rejection reason. The original debit entry is untouched:
// after rejection the account's history shows both the request and the
// refund, and the balance equals what it was before the request.
func (s *Service) Reject(ctx context.Context, withdrawalID int64, reason string) (*ledger.Withdrawal, error) {
	if strings.TrimSpace(reason) == "" {
		reason = "No reason provided"
	}

	// Resolve the account up front so the refund runs under its stripe.
	w, err := s.Store.Withdrawal(ctx, withdrawalID)
	if err != nil {
		return nil, err
	}
	if w == nil {
		return nil, ledger.ErrWithdrawalNotFound
	}

	unlock := s.Locks.Lock(w.AccountID)
	defer unlock()

	err = s.Store.WithTx(ctx, func(st ledger.Store) error {
		var err error
		w, err = st.Withdrawal(ctx, withdrawalID)
		if err != nil {
			return err
		}
		if w == nil {
			return ledger.ErrWithdrawalNotFound
		}
		if w.Status != ledger.WithdrawalPending {
			return ledger.ErrAlreadyProcessed
		}

		if _, err := ledger.Apply(ctx, st, ledger.Event{
			AccountID:    w.AccountID,
			Amount:       w.Amount,
			Kind:         ledger.KindWithdrawalRefund,
			Description:  fmt.Sprintf("Withdrawal #%d refunded: %s", w.ID, reason),
			WithdrawalID: &w.ID,
		}); err != nil {
			return err
		}

		now := time.Now().UTC()
		w.Status = ledger.WithdrawalRejected
		w.RejectionReason = reason
		w.ProcessedAt = &now
		return st.SaveWithdrawal(ctx, w)
	})
	if err != nil {
		return nil, err
	}
	return w, nil
}

// =============================================================================
// READ-ONLY VIEWS
// =============================================================================

// Stats aggregates withdrawal counts and amounts for the admin console.
type Stats struct {
	Total          int
	Pending        int
	Approved       int
	Rejected       int
	TotalAmount    decimal.Decimal
	PendingAmount  decimal.Decimal
	ApprovedAmount decimal.Decimal
}

func (s *Service) ComputeStats(ctx context.Context) (*Stats, error) {
	all, err := s.Store.ListWithdrawals(ctx, "")
	if err != nil {
		return nil, err
	}

	stats := &Stats{
		TotalAmount:    decimal.Zero,
		PendingAmount:  decimal.Zero,
		ApprovedAmount: decimal.Zero,
	}
	for _, w := range all {
		stats.Total++
		stats.TotalAmount = stats.TotalAmount.Add(w.Amount)
		switch w.Status {
		case ledger.WithdrawalPending:
			stats.Pending++
			stats.PendingAmount = stats.PendingAmount.Add(w.Amount)
		case ledger.WithdrawalApproved:
			stats.Approved++
			stats.ApprovedAmount = stats.ApprovedAmount.Add(w.Amount)
		case ledger.WithdrawalRejected:
			stats.Rejected++
		}
	}
	return stats, nil
}
