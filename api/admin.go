/*
admin.go - Admin console handlers

PURPOSE:
  Moderation and operations surface, mounted under /api/admin behind the
  RequireAdmin middleware. Account and task edits go through the typed
  patch structs in the rewards package; withdrawal decisions go through
  the withdrawal state machine. Nothing here writes balances directly.

ENDPOINTS:
  GET    /api/admin/dashboard              Platform totals
  GET    /api/admin/users                  List accounts
  GET    /api/admin/users/{id}             Account details
  PUT    /api/admin/users/{id}             Patch account (balance/status/admin)
  GET    /api/admin/users/{id}/reconcile   Verify balance == entry sum
  GET    /api/admin/tasks                  List all tasks (incl. inactive)
  POST   /api/admin/tasks                  Create task
  PUT    /api/admin/tasks/{id}             Patch task
  GET    /api/admin/withdrawals            List withdrawals (?status=)
  GET    /api/admin/withdrawals/stats      Aggregate counts and amounts
  POST   /api/admin/withdrawals/{id}/approve
  POST   /api/admin/withdrawals/{id}/reject

SEE ALSO:
  - rewards/admin.go: The patch semantics
  - withdrawal: Approve/Reject transitions
*/
package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/kaamkaro/rewards-engine/ledger"
	"github.com/kaamkaro/rewards-engine/rewards"
)

// =============================================================================
// ADMIN REQUEST TYPES
// =============================================================================

// UpdateUserRequest patches an account. Absent fields are unchanged.
type UpdateUserRequest struct {
	Balance *decimal.Decimal `json:"balance,omitempty"`
	Status  *string          `json:"status,omitempty"`
	IsAdmin *bool            `json:"is_admin,omitempty"`
}

type CreateTaskRequest struct {
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Reward      decimal.Decimal `json:"reward"`
	Type        string          `json:"type"`
	Duration    int             `json:"duration"`
	Status      string          `json:"status"`
	Category    string          `json:"category"`
	DailyLimit  int             `json:"daily_limit"`
}

// UpdateTaskRequest patches a task. Absent fields are unchanged.
type UpdateTaskRequest struct {
	Title       *string          `json:"title,omitempty"`
	Description *string          `json:"description,omitempty"`
	Reward      *decimal.Decimal `json:"reward,omitempty"`
	Type        *string          `json:"type,omitempty"`
	Duration    *int             `json:"duration,omitempty"`
	Status      *string          `json:"status,omitempty"`
	Category    *string          `json:"category,omitempty"`
	DailyLimit  *int             `json:"daily_limit,omitempty"`
}

type DecisionRequest struct {
	Notes  string `json:"notes"`
	Reason string `json:"reason"`
}

// DashboardDTO is the admin landing-page summary.
type DashboardDTO struct {
	TotalUsers          int    `json:"total_users"`
	ActiveUsers         int    `json:"active_users"`
	TotalTasks          int    `json:"total_tasks"`
	PendingWithdrawals  int    `json:"pending_withdrawals"`
	TotalBalance        string `json:"total_balance"`
	TotalEarned         string `json:"total_earned"`
	PendingPayoutAmount string `json:"pending_payout_amount"`
}

type WithdrawalStatsDTO struct {
	Total          int    `json:"total"`
	Pending        int    `json:"pending"`
	Approved       int    `json:"approved"`
	Rejected       int    `json:"rejected"`
	TotalAmount    string `json:"total_amount"`
	PendingAmount  string `json:"pending_amount"`
	ApprovedAmount string `json:"approved_amount"`
}

// =============================================================================
// DASHBOARD
// =============================================================================

// Dashboard returns platform-wide totals.
// GET /api/admin/dashboard
func (h *Handler) Dashboard(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	accounts, err := h.Store.ListAccounts(ctx)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list accounts", err)
		return
	}
	tasks, err := h.Store.ListTasks(ctx, false)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list tasks", err)
		return
	}
	pending, err := h.Store.ListWithdrawals(ctx, ledger.WithdrawalPending)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list withdrawals", err)
		return
	}

	dto := DashboardDTO{
		TotalUsers:         len(accounts),
		TotalTasks:         len(tasks),
		PendingWithdrawals: len(pending),
	}
	totalBalance, totalEarned := decimal.Zero, decimal.Zero
	for _, a := range accounts {
		if a.Status == ledger.AccountActive {
			dto.ActiveUsers++
		}
		totalBalance = totalBalance.Add(a.Balance)
		totalEarned = totalEarned.Add(a.TotalEarned)
	}
	pendingAmount := decimal.Zero
	for _, p := range pending {
		pendingAmount = pendingAmount.Add(p.Amount)
	}
	dto.TotalBalance = totalBalance.String()
	dto.TotalEarned = totalEarned.String()
	dto.PendingPayoutAmount = pendingAmount.String()

	writeJSON(w, http.StatusOK, dto)
}

// =============================================================================
// USER MANAGEMENT
// =============================================================================

// ListUsers returns all accounts, newest first.
// GET /api/admin/users
func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	accounts, err := h.Store.ListAccounts(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list accounts", err)
		return
	}

	dtos := make([]AccountDTO, len(accounts))
	for i := range accounts {
		dtos[i] = toAccountDTO(&accounts[i])
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetUser returns a single account.
// GET /api/admin/users/{id}
func (h *Handler) GetUser(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	acct, err := h.Store.Account(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get account", err)
		return
	}
	if acct == nil {
		writeError(w, http.StatusNotFound, "Account not found", nil)
		return
	}
	writeJSON(w, http.StatusOK, toAccountDTO(acct))
}

// UpdateUser patches an account. A balance change is recorded as an
// adjustment entry, not a raw overwrite.
// PUT /api/admin/users/{id}
func (h *Handler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	var req UpdateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	patch := rewards.AccountPatch{
		Balance: req.Balance,
		IsAdmin: req.IsAdmin,
	}
	if req.Status != nil {
		st := ledger.AccountStatus(*req.Status)
		patch.Status = &st
	}

	acct, err := h.Rewards.UpdateAccount(r.Context(), id, patch)
	if err != nil {
		writeDomainError(w, "Failed to update account", err)
		return
	}
	writeJSON(w, http.StatusOK, toAccountDTO(acct))
}

// ReconcileUser verifies the cached balance equals the entry sum.
// GET /api/admin/users/{id}/reconcile
func (h *Handler) ReconcileUser(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	if err := ledger.Reconcile(r.Context(), h.Store, id); err != nil {
		var re *ledger.ReconciliationError
		if errors.As(err, &re) {
			writeJSON(w, http.StatusOK, map[string]any{
				"reconciled": false,
				"balance":    re.Balance.String(),
				"entry_sum":  re.EntrySum.String(),
			})
			return
		}
		writeDomainError(w, "Reconciliation failed", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"reconciled": true})
}

// =============================================================================
// TASK MANAGEMENT
// =============================================================================

// ListAllTasks returns every task including inactive ones.
// GET /api/admin/tasks
func (h *Handler) ListAllTasks(w http.ResponseWriter, r *http.Request) {
	tasks, err := h.Store.ListTasks(r.Context(), false)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list tasks", err)
		return
	}

	dtos := make([]TaskDTO, len(tasks))
	for i := range tasks {
		dtos[i] = toTaskDTO(&tasks[i])
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateTask creates a task.
// POST /api/admin/tasks
func (h *Handler) CreateTask(w http.ResponseWriter, r *http.Request) {
	var req CreateTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	task, err := h.Rewards.CreateTask(r.Context(), rewards.CreateTaskInput{
		Title:       req.Title,
		Description: req.Description,
		Reward:      req.Reward,
		Type:        req.Type,
		Duration:    req.Duration,
		Status:      ledger.TaskStatus(req.Status),
		Category:    req.Category,
		DailyLimit:  req.DailyLimit,
	})
	if err != nil {
		writeDomainError(w, "Failed to create task", err)
		return
	}
	writeJSON(w, http.StatusCreated, toTaskDTO(task))
}

// UpdateTask patches a task.
// PUT /api/admin/tasks/{id}
func (h *Handler) UpdateTask(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	var req UpdateTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	patch := rewards.TaskPatch{
		Title:       req.Title,
		Description: req.Description,
		Reward:      req.Reward,
		Type:        req.Type,
		Duration:    req.Duration,
		Category:    req.Category,
		DailyLimit:  req.DailyLimit,
	}
	if req.Status != nil {
		st := ledger.TaskStatus(*req.Status)
		patch.Status = &st
	}

	task, err := h.Rewards.UpdateTask(r.Context(), id, patch)
	if err != nil {
		writeDomainError(w, "Failed to update task", err)
		return
	}
	writeJSON(w, http.StatusOK, toTaskDTO(task))
}

// =============================================================================
// WITHDRAWAL MANAGEMENT
// =============================================================================

// ListWithdrawals returns withdrawals, optionally filtered by status.
// GET /api/admin/withdrawals?status=pending
func (h *Handler) ListWithdrawals(w http.ResponseWriter, r *http.Request) {
	status := ledger.WithdrawalStatus(r.URL.Query().Get("status"))

	withdrawals, err := h.Store.ListWithdrawals(r.Context(), status)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list withdrawals", err)
		return
	}

	dtos := make([]WithdrawalDTO, len(withdrawals))
	for i := range withdrawals {
		dtos[i] = toWithdrawalDTO(&withdrawals[i])
	}
	writeJSON(w, http.StatusOK, dtos)
}

// WithdrawalStats returns aggregate counts and amounts.
// GET /api/admin/withdrawals/stats
func (h *Handler) WithdrawalStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.Withdrawals.ComputeStats(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to compute stats", err)
		return
	}

	writeJSON(w, http.StatusOK, WithdrawalStatsDTO{
		Total:          stats.Total,
		Pending:        stats.Pending,
		Approved:       stats.Approved,
		Rejected:       stats.Rejected,
		TotalAmount:    stats.TotalAmount.String(),
		PendingAmount:  stats.PendingAmount.String(),
		ApprovedAmount: stats.ApprovedAmount.String(),
	})
}

// ApproveWithdrawal marks a pending withdrawal as paid out.
// POST /api/admin/withdrawals/{id}/approve
func (h *Handler) ApproveWithdrawal(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	var req DecisionRequest
	if r.Body != nil {
		json.NewDecoder(r.Body).Decode(&req) // empty body is fine
	}

	wd, err := h.Withdrawals.Approve(r.Context(), id, req.Notes)
	if err != nil {
		writeDomainError(w, "Failed to approve withdrawal", err)
		return
	}
	writeJSON(w, http.StatusOK, toWithdrawalDTO(wd))
}

// RejectWithdrawal rejects a pending withdrawal and refunds the amount.
// POST /api/admin/withdrawals/{id}/reject
func (h *Handler) RejectWithdrawal(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	var req DecisionRequest
	if r.Body != nil {
		json.NewDecoder(r.Body).Decode(&req) // empty body is fine
	}

	wd, err := h.Withdrawals.Reject(r.Context(), id, req.Reason)
	if err != nil {
		writeDomainError(w, "Failed to reject withdrawal", err)
		return
	}
	writeJSON(w, http.StatusOK, toWithdrawalDTO(wd))
}
