/*
handlers.go - HTTP API handlers for the rewards platform

PURPOSE:
  Exposes the rewards engine via REST API. Handles HTTP
  request/response, JSON serialization, and delegates to domain logic.

ENDPOINTS:
  Auth:
    POST   /api/auth/register          Create account (+signup bonus)
    POST   /api/auth/login             Login (+daily bonus if first today)

  Tasks:
    GET    /api/tasks                  List active tasks
    GET    /api/tasks/{id}             Task details
    POST   /api/tasks/{id}/complete    Complete a task

  Account:
    GET    /api/profile                Account + recent history
    GET    /api/transactions           Full ledger history
    GET    /api/referrals              Referral stats
    POST   /api/withdrawals            Request a withdrawal
    GET    /api/withdrawals            Own withdrawal history

  Health:
    GET    /api/health                 Liveness probe + platform stats

REQUEST FLOW:
  1. Parse HTTP request
  2. Validate input
  3. Call domain logic (rewards service, withdrawal service)
  4. Serialize response
  5. Handle errors

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, eligibility failures, insufficient funds
  - 401: Missing or invalid token
  - 404: Resource not found
  - 409: Conflict (duplicate account, already processed, daily cap)
  - 500: Internal errors

SEE ALSO:
  - dto.go: Request/response data structures
  - admin.go: Admin-only handlers
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/kaamkaro/rewards-engine/ledger"
	"github.com/kaamkaro/rewards-engine/rewards"
	"github.com/kaamkaro/rewards-engine/withdrawal"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store       ledger.TxStore
	Rewards     *rewards.Service
	Withdrawals *withdrawal.Service
	Tokens      *TokenIssuer
}

// NewHandler creates a new handler with the given dependencies.
func NewHandler(store ledger.TxStore, rw *rewards.Service, wd *withdrawal.Service, tokens *TokenIssuer) *Handler {
	return &Handler{
		Store:       store,
		Rewards:     rw,
		Withdrawals: wd,
		Tokens:      tokens,
	}
}

// =============================================================================
// AUTH HANDLERS
// =============================================================================

// Register creates an account and returns a session token.
// POST /api/auth/register
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	acct, err := h.Rewards.Register(r.Context(), rewards.RegisterInput{
		Email:        req.Email,
		Password:     req.Password,
		Name:         req.Name,
		Phone:        req.Phone,
		ReferralCode: req.ReferralCode,
	})
	if err != nil {
		writeDomainError(w, "Registration failed", err)
		return
	}

	token, err := h.Tokens.Generate(acct.ID, acct.IsAdmin)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to issue token", err)
		return
	}

	writeJSON(w, http.StatusCreated, AuthResponse{
		Token: token,
		User:  toAccountDTO(acct),
	})
}

// Login verifies credentials, grants the daily bonus on the first login
// of the day, and returns a session token.
// POST /api/auth/login
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	acct, daily, err := h.Rewards.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		// Unknown email and wrong password both read as 401; a 404 here
		// would reveal which emails are registered.
		if errors.Is(err, ledger.ErrAccountNotFound) || errors.Is(err, ledger.ErrInvalidCredentials) {
			writeError(w, http.StatusUnauthorized, "Invalid email or password", nil)
			return
		}
		writeDomainError(w, "Login failed", err)
		return
	}

	token, err := h.Tokens.Generate(acct.ID, acct.IsAdmin)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to issue token", err)
		return
	}

	resp := AuthResponse{
		Token: token,
		User:  toAccountDTO(acct),
	}
	if daily != nil {
		resp.DailyBonus = &DailyBonusDTO{
			Streak: daily.Streak,
			Bonus:  daily.Bonus.String(),
			Day:    daily.Day.String(),
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// =============================================================================
// TASK HANDLERS
// =============================================================================

// ListTasks returns active tasks, highest reward first.
// GET /api/tasks
func (h *Handler) ListTasks(w http.ResponseWriter, r *http.Request) {
	tasks, err := h.Store.ListTasks(r.Context(), true)
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

// GetTask returns a single task.
// GET /api/tasks/{id}
func (h *Handler) GetTask(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	task, err := h.Store.Task(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get task", err)
		return
	}
	if task == nil {
		writeError(w, http.StatusNotFound, "Task not found", nil)
		return
	}
	writeJSON(w, http.StatusOK, toTaskDTO(task))
}

// CompleteTask credits the reward for one completion.
// POST /api/tasks/{id}/complete
func (h *Handler) CompleteTask(w http.ResponseWriter, r *http.Request) {
	taskID, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	entry, err := h.Rewards.CompleteTask(r.Context(), authedAccountID(r.Context()), taskID)
	if err != nil {
		writeDomainError(w, "Task completion failed", err)
		return
	}
	writeJSON(w, http.StatusOK, toEntryDTO(entry))
}

// =============================================================================
// ACCOUNT HANDLERS
// =============================================================================

// Profile returns the account with recent history.
// GET /api/profile
func (h *Handler) Profile(w http.ResponseWriter, r *http.Request) {
	p, err := h.Rewards.Profile(r.Context(), authedAccountID(r.Context()))
	if err != nil {
		writeDomainError(w, "Failed to load profile", err)
		return
	}

	resp := ProfileResponse{
		User:         toAccountDTO(p.Account),
		Streak:       p.Streak,
		Transactions: make([]EntryDTO, len(p.Entries)),
		Withdrawals:  make([]WithdrawalDTO, len(p.Withdrawals)),
		Referrals:    make([]ReferralDTO, len(p.Referrals)),
	}
	for i := range p.Entries {
		resp.Transactions[i] = toEntryDTO(&p.Entries[i])
	}
	for i := range p.Withdrawals {
		resp.Withdrawals[i] = toWithdrawalDTO(&p.Withdrawals[i])
	}
	for i := range p.Referrals {
		resp.Referrals[i] = toReferralDTO(&p.Referrals[i])
	}
	writeJSON(w, http.StatusOK, resp)
}

// Transactions returns the account's ledger history, newest first.
// GET /api/transactions?limit=N
func (h *Handler) Transactions(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}

	entries, err := h.Store.Entries(r.Context(), authedAccountID(r.Context()), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list transactions", err)
		return
	}

	dtos := make([]EntryDTO, len(entries))
	for i := range entries {
		dtos[i] = toEntryDTO(&entries[i])
	}
	writeJSON(w, http.StatusOK, dtos)
}

// ReferralStats returns the account's referral code and earnings.
// GET /api/referrals
func (h *Handler) ReferralStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	accountID := authedAccountID(ctx)

	acct, err := h.Store.Account(ctx, accountID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get account", err)
		return
	}
	if acct == nil {
		writeError(w, http.StatusNotFound, "Account not found", nil)
		return
	}

	referrals, err := h.Store.ReferralsByReferrer(ctx, accountID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list referrals", err)
		return
	}

	dtos := make([]ReferralDTO, len(referrals))
	for i := range referrals {
		dtos[i] = toReferralDTO(&referrals[i])
	}
	writeJSON(w, http.StatusOK, ReferralStatsDTO{
		ReferralCode:   acct.ReferralCode,
		ReferralsCount: acct.ReferralsCount,
		TotalEarnings:  acct.ReferralEarnings.String(),
		Referrals:      dtos,
	})
}

// =============================================================================
// WITHDRAWAL HANDLERS
// =============================================================================

// RequestWithdrawal creates a pending withdrawal and debits the balance.
// POST /api/withdrawals
func (h *Handler) RequestWithdrawal(w http.ResponseWriter, r *http.Request) {
	var req WithdrawRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	wd, err := h.Withdrawals.Request(r.Context(), authedAccountID(r.Context()),
		req.Amount, req.Destination, req.Method)
	if err != nil {
		writeDomainError(w, "Withdrawal request failed", err)
		return
	}
	writeJSON(w, http.StatusCreated, toWithdrawalDTO(wd))
}

// MyWithdrawals returns the account's withdrawal history.
// GET /api/withdrawals
func (h *Handler) MyWithdrawals(w http.ResponseWriter, r *http.Request) {
	withdrawals, err := h.Store.WithdrawalsByAccount(r.Context(), authedAccountID(r.Context()), 0)
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

// =============================================================================
// HEALTH
// =============================================================================

// Health is a liveness probe with platform-wide stats.
// GET /api/health
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	accounts, err := h.Store.ListAccounts(ctx)
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, "Storage unavailable", err)
		return
	}
	tasks, err := h.Store.ListTasks(ctx, true)
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, "Storage unavailable", err)
		return
	}
	stats, err := h.Withdrawals.ComputeStats(ctx)
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, "Storage unavailable", err)
		return
	}

	totalBalance := decimal.Zero
	for _, a := range accounts {
		totalBalance = totalBalance.Add(a.Balance)
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"stats": map[string]any{
			"total_users":          len(accounts),
			"active_tasks":         len(tasks),
			"total_balance":        totalBalance.String(),
			"approved_withdrawals": stats.ApprovedAmount.String(),
			"pending_withdrawals":  stats.PendingAmount.String(),
		},
	})
}

// =============================================================================
// HELPERS
// =============================================================================

func pathID(w http.ResponseWriter, r *http.Request, param string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, param), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid id", err)
		return 0, false
	}
	return id, true
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeDomainError maps domain errors to HTTP status codes.
func writeDomainError(w http.ResponseWriter, message string, err error) {
	switch {
	case errors.Is(err, ledger.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, message, err)
	case ledger.IsNotFound(err):
		writeError(w, http.StatusNotFound, message, err)
	case ledger.IsConflict(err):
		writeError(w, http.StatusConflict, message, err)
	case ledger.IsClientError(err):
		writeError(w, http.StatusBadRequest, message, err)
	default:
		writeError(w, http.StatusInternalServerError, message, err)
	}
}
