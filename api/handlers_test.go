package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kaamkaro/rewards-engine/api"
	"github.com/kaamkaro/rewards-engine/ledger"
	memstore "github.com/kaamkaro/rewards-engine/ledger/store"
	"github.com/kaamkaro/rewards-engine/rewards"
	"github.com/kaamkaro/rewards-engine/withdrawal"
)

type testEnv struct {
	store  ledger.TxStore
	router http.Handler
}

func newEnv(t *testing.T) *testEnv {
	t.Helper()
	s := memstore.NewMemory()
	locks := ledger.NewAccountLocks()
	rewardSvc := rewards.NewService(s, rewards.DefaultRules(), locks)
	withdrawalSvc := withdrawal.NewService(s, withdrawal.DefaultLimits(), locks)
	tokens := api.NewTokenIssuer("test-secret", time.Hour)
	h := api.NewHandler(s, rewardSvc, withdrawalSvc, tokens)
	return &testEnv{
		store:  s,
		router: api.NewRouter(h, []string{"*"}),
	}
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), "body: %s", rec.Body.String())
	return out
}

func (e *testEnv) register(t *testing.T, email string) (api.AuthResponse, string) {
	t.Helper()
	rec := e.do(t, http.MethodPost, "/api/auth/register", "", map[string]string{
		"email":    email,
		"password": "secret123",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	resp := decode[api.AuthResponse](t, rec)
	return resp, resp.Token
}

func (e *testEnv) adminToken(t *testing.T) string {
	t.Helper()
	resp, _ := e.register(t, "admin@example.com")

	acct, err := e.store.Account(context.Background(), resp.User.ID)
	require.NoError(t, err)
	acct.IsAdmin = true
	require.NoError(t, e.store.SaveAccount(context.Background(), acct))

	// Re-login so the token carries the admin claim.
	rec := e.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{
		"email":    "admin@example.com",
		"password": "secret123",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	return decode[api.AuthResponse](t, rec).Token
}

func (e *testEnv) createTask(t *testing.T, adminToken string, reward int64, limit int) api.TaskDTO {
	t.Helper()
	rec := e.do(t, http.MethodPost, "/api/admin/tasks", adminToken, map[string]any{
		"title":       "Daily quiz",
		"reward":      reward,
		"daily_limit": limit,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[api.TaskDTO](t, rec)
}

// =============================================================================
// AUTH FLOW
// =============================================================================

func TestRegister_ReturnsTokenAndSignupBonus(t *testing.T) {
	env := newEnv(t)

	resp, token := env.register(t, "alice@example.com")

	assert.NotEmpty(t, token)
	assert.Equal(t, "alice@example.com", resp.User.Email)
	assert.Equal(t, "50", resp.User.Balance)
	assert.NotEmpty(t, resp.User.ReferralCode)
	assert.Nil(t, resp.DailyBonus)
}

func TestRegister_DuplicateEmail_Conflict(t *testing.T) {
	env := newEnv(t)
	env.register(t, "alice@example.com")

	rec := env.do(t, http.MethodPost, "/api/auth/register", "", map[string]string{
		"email":    "alice@example.com",
		"password": "secret123",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestRegister_InvalidInput_BadRequest(t *testing.T) {
	env := newEnv(t)

	rec := env.do(t, http.MethodPost, "/api/auth/register", "", map[string]string{
		"email":    "alice@example.com",
		"password": "short",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLogin_GrantsDailyBonusOnce(t *testing.T) {
	env := newEnv(t)
	env.register(t, "alice@example.com")

	rec := env.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{
		"email":    "alice@example.com",
		"password": "secret123",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	first := decode[api.AuthResponse](t, rec)
	require.NotNil(t, first.DailyBonus)
	assert.Equal(t, 1, first.DailyBonus.Streak)
	assert.Equal(t, "10", first.DailyBonus.Bonus)
	assert.Equal(t, "60", first.User.Balance)

	// Second login the same day reports the same grant, balance unchanged.
	rec = env.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{
		"email":    "alice@example.com",
		"password": "secret123",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	second := decode[api.AuthResponse](t, rec)
	assert.Equal(t, "60", second.User.Balance)
}

func TestLogin_BadCredentials_Unauthorized(t *testing.T) {
	env := newEnv(t)
	env.register(t, "alice@example.com")

	for _, body := range []map[string]string{
		{"email": "alice@example.com", "password": "wrong"},
		{"email": "ghost@example.com", "password": "secret123"},
	} {
		rec := env.do(t, http.MethodPost, "/api/auth/login", "", body)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	}
}

func TestProtectedRoute_RequiresToken(t *testing.T) {
	env := newEnv(t)

	rec := env.do(t, http.MethodGet, "/api/profile", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/profile", "not-a-jwt", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

// =============================================================================
// TASK FLOW
// =============================================================================

func TestTaskFlow_ListCompleteAndLimit(t *testing.T) {
	// GIVEN: A task with daily limit 1 and a registered user
	env := newEnv(t)
	admin := env.adminToken(t)
	task := env.createTask(t, admin, 25, 1)
	_, token := env.register(t, "alice@example.com")

	// Task listing is public.
	rec := env.do(t, http.MethodGet, "/api/tasks", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	tasks := decode[[]api.TaskDTO](t, rec)
	require.Len(t, tasks, 1)
	assert.Equal(t, "25", tasks[0].Reward)

	// WHEN: The user completes it
	rec = env.do(t, http.MethodPost, "/api/tasks/"+idString(task.ID)+"/complete", token, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	entry := decode[api.EntryDTO](t, rec)
	assert.Equal(t, "25", entry.Amount)
	assert.Equal(t, "75", entry.BalanceAfter)

	// THEN: A second completion today is rejected
	rec = env.do(t, http.MethodPost, "/api/tasks/"+idString(task.ID)+"/complete", token, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCompleteTask_Unknown_NotFound(t *testing.T) {
	env := newEnv(t)
	_, token := env.register(t, "alice@example.com")

	rec := env.do(t, http.MethodPost, "/api/tasks/999/complete", token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

// =============================================================================
// WITHDRAWAL FLOW
// =============================================================================

func TestWithdrawalFlow_RequestRejectRefund(t *testing.T) {
	// GIVEN: A funded user (signup bonus + admin adjustment to 500)
	env := newEnv(t)
	admin := env.adminToken(t)
	resp, token := env.register(t, "alice@example.com")

	rec := env.do(t, http.MethodPut, "/api/admin/users/"+idString(resp.User.ID), admin,
		map[string]any{"balance": "500"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	// WHEN: They request a 200 withdrawal
	rec = env.do(t, http.MethodPost, "/api/withdrawals", token, map[string]any{
		"amount":      200,
		"destination": "alice@upi",
		"method":      "upi",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	wd := decode[api.WithdrawalDTO](t, rec)
	assert.Equal(t, "pending", wd.Status)

	// AND: An admin rejects it
	rec = env.do(t, http.MethodPost, "/api/admin/withdrawals/"+idString(wd.ID)+"/reject", admin,
		map[string]string{"reason": "test"})
	require.Equal(t, http.StatusOK, rec.Code)
	rejected := decode[api.WithdrawalDTO](t, rec)
	assert.Equal(t, "rejected", rejected.Status)

	// THEN: The balance is back to 500 and the profile shows both entries
	rec = env.do(t, http.MethodGet, "/api/profile", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	profile := decode[api.ProfileResponse](t, rec)
	assert.Equal(t, "500", profile.User.Balance)

	// Rejecting again conflicts.
	rec = env.do(t, http.MethodPost, "/api/admin/withdrawals/"+idString(wd.ID)+"/reject", admin,
		map[string]string{"reason": "again"})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestWithdrawal_InsufficientFunds_BadRequest(t *testing.T) {
	env := newEnv(t)
	_, token := env.register(t, "alice@example.com") // balance 50

	rec := env.do(t, http.MethodPost, "/api/withdrawals", token, map[string]any{
		"amount":      200,
		"destination": "alice@upi",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// =============================================================================
// ADMIN SURFACE
// =============================================================================

func TestAdminRoutes_RequireAdminToken(t *testing.T) {
	env := newEnv(t)
	_, token := env.register(t, "alice@example.com")

	rec := env.do(t, http.MethodGet, "/api/admin/users", token, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/admin/users", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAdmin_Dashboard_Reconcile(t *testing.T) {
	env := newEnv(t)
	admin := env.adminToken(t)
	resp, _ := env.register(t, "alice@example.com")

	rec := env.do(t, http.MethodGet, "/api/admin/dashboard", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	dash := decode[api.DashboardDTO](t, rec)
	assert.Equal(t, 2, dash.TotalUsers)

	rec = env.do(t, http.MethodGet, "/api/admin/users/"+idString(resp.User.ID)+"/reconcile", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	out := decode[map[string]any](t, rec)
	assert.Equal(t, true, out["reconciled"])
}

func TestHealth_Public(t *testing.T) {
	env := newEnv(t)

	rec := env.do(t, http.MethodGet, "/api/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

// =============================================================================
// HELPERS
// =============================================================================

func idString(id int64) string {
	return strconv.FormatInt(id, 10)
}
