// Package store provides an in-memory ledger.TxStore for tests and dev.
package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/kaamkaro/rewards-engine/ledger"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu   sync.RWMutex
	txMu sync.Mutex // serializes WithTx, mirroring SQLite's single writer

	accounts    map[int64]ledger.Account
	tasks       map[int64]ledger.Task
	entries     map[int64][]ledger.Entry // by account
	withdrawals map[int64]ledger.Withdrawal
	referrals   []ledger.Referral
	logins      map[loginKey]ledger.DailyLogin

	nextAccountID    int64
	nextTaskID       int64
	nextWithdrawalID int64
	nextReferralID   int64
	nextLoginID      int64
}

type loginKey struct {
	AccountID int64
	Day       string
}

func NewMemory() *Memory {
	return &Memory{
		accounts:    make(map[int64]ledger.Account),
		tasks:       make(map[int64]ledger.Task),
		entries:     make(map[int64][]ledger.Entry),
		withdrawals: make(map[int64]ledger.Withdrawal),
		logins:      make(map[loginKey]ledger.DailyLogin),
	}
}

// Interface checks
var _ ledger.TxStore = (*Memory)(nil)

// -----------------------------------------------------------------------------
// Accounts
// -----------------------------------------------------------------------------

func (m *Memory) CreateAccount(_ context.Context, a *ledger.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, existing := range m.accounts {
		if existing.Email == a.Email {
			return ledger.ErrDuplicateAccount
		}
	}
	m.nextAccountID++
	a.ID = m.nextAccountID
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	m.accounts[a.ID] = *a
	return nil
}

func (m *Memory) Account(_ context.Context, id int64) (*ledger.Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	a, ok := m.accounts[id]
	if !ok {
		return nil, nil
	}
	return &a, nil
}

func (m *Memory) AccountByEmail(_ context.Context, email string) (*ledger.Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, a := range m.accounts {
		if a.Email == email {
			a := a
			return &a, nil
		}
	}
	return nil, nil
}

func (m *Memory) AccountByReferralCode(_ context.Context, code string) (*ledger.Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, a := range m.accounts {
		if strings.EqualFold(a.ReferralCode, code) {
			a := a
			return &a, nil
		}
	}
	return nil, nil
}

func (m *Memory) SaveAccount(_ context.Context, a *ledger.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.accounts[a.ID]; !ok {
		return ledger.ErrAccountNotFound
	}
	m.accounts[a.ID] = *a
	return nil
}

func (m *Memory) ListAccounts(_ context.Context) ([]ledger.Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]ledger.Account, 0, len(m.accounts))
	for _, a := range m.accounts {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// -----------------------------------------------------------------------------
// Tasks
// -----------------------------------------------------------------------------

func (m *Memory) CreateTask(_ context.Context, t *ledger.Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextTaskID++
	t.ID = m.nextTaskID
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}
	m.tasks[t.ID] = *t
	return nil
}

func (m *Memory) Task(_ context.Context, id int64) (*ledger.Task, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	t, ok := m.tasks[id]
	if !ok {
		return nil, nil
	}
	return &t, nil
}

func (m *Memory) SaveTask(_ context.Context, t *ledger.Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.tasks[t.ID]; !ok {
		return ledger.ErrTaskNotFound
	}
	m.tasks[t.ID] = *t
	return nil
}

func (m *Memory) ListTasks(_ context.Context, activeOnly bool) ([]ledger.Task, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []ledger.Task
	for _, t := range m.tasks {
		if activeOnly && t.Status != ledger.TaskActive {
			continue
		}
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Reward.GreaterThan(out[j].Reward) })
	return out, nil
}

// -----------------------------------------------------------------------------
// Entries (append-only)
// -----------------------------------------------------------------------------

func (m *Memory) AppendEntry(_ context.Context, e *ledger.Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	m.entries[e.AccountID] = append(m.entries[e.AccountID], *e)
	return nil
}

func (m *Memory) Entries(_ context.Context, accountID int64, limit int) ([]ledger.Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	all := m.entries[accountID]
	out := make([]ledger.Entry, len(all))
	copy(out, all)
	// Newest first, matching the SQL stores.
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *Memory) SumEntries(_ context.Context, accountID int64) (decimal.Decimal, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	sum := decimal.Zero
	for _, e := range m.entries[accountID] {
		sum = sum.Add(e.Amount)
	}
	return sum, nil
}

func (m *Memory) CountTaskCompletions(_ context.Context, accountID, taskID int64, day ledger.Day) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	count := 0
	for _, e := range m.entries[accountID] {
		if e.Kind != ledger.KindTaskCompletion || e.TaskID == nil || *e.TaskID != taskID {
			continue
		}
		if ledger.DayOf(e.CreatedAt).Equal(day) {
			count++
		}
	}
	return count, nil
}

// -----------------------------------------------------------------------------
// Withdrawals
// -----------------------------------------------------------------------------

func (m *Memory) CreateWithdrawal(_ context.Context, w *ledger.Withdrawal) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextWithdrawalID++
	w.ID = m.nextWithdrawalID
	if w.RequestedAt.IsZero() {
		w.RequestedAt = time.Now().UTC()
	}
	m.withdrawals[w.ID] = *w
	return nil
}

func (m *Memory) Withdrawal(_ context.Context, id int64) (*ledger.Withdrawal, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	w, ok := m.withdrawals[id]
	if !ok {
		return nil, nil
	}
	return &w, nil
}

func (m *Memory) SaveWithdrawal(_ context.Context, w *ledger.Withdrawal) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.withdrawals[w.ID]; !ok {
		return ledger.ErrWithdrawalNotFound
	}
	m.withdrawals[w.ID] = *w
	return nil
}

func (m *Memory) ListWithdrawals(_ context.Context, status ledger.WithdrawalStatus) ([]ledger.Withdrawal, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []ledger.Withdrawal
	for _, w := range m.withdrawals {
		if status != "" && w.Status != status {
			continue
		}
		out = append(out, w)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RequestedAt.After(out[j].RequestedAt) })
	return out, nil
}

func (m *Memory) WithdrawalsByAccount(_ context.Context, accountID int64, limit int) ([]ledger.Withdrawal, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []ledger.Withdrawal
	for _, w := range m.withdrawals {
		if w.AccountID == accountID {
			out = append(out, w)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RequestedAt.After(out[j].RequestedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *Memory) DailyWithdrawalTotal(_ context.Context, accountID int64, day ledger.Day) (decimal.Decimal, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	total := decimal.Zero
	for _, w := range m.withdrawals {
		if w.AccountID != accountID {
			continue
		}
		if w.Status != ledger.WithdrawalPending && w.Status != ledger.WithdrawalApproved {
			continue
		}
		if ledger.DayOf(w.RequestedAt).Equal(day) {
			total = total.Add(w.Amount)
		}
	}
	return total, nil
}

// -----------------------------------------------------------------------------
// Referrals
// -----------------------------------------------------------------------------

func (m *Memory) CreateReferral(_ context.Context, r *ledger.Referral) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextReferralID++
	r.ID = m.nextReferralID
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	m.referrals = append(m.referrals, *r)
	return nil
}

func (m *Memory) ReferralsByReferrer(_ context.Context, accountID int64) ([]ledger.Referral, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []ledger.Referral
	for _, r := range m.referrals {
		if r.ReferrerID == accountID {
			out = append(out, r)
		}
	}
	return out, nil
}

// -----------------------------------------------------------------------------
// Daily logins
// -----------------------------------------------------------------------------

func (m *Memory) DailyLogin(_ context.Context, accountID int64, day ledger.Day) (*ledger.DailyLogin, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	dl, ok := m.logins[loginKey{AccountID: accountID, Day: day.String()}]
	if !ok {
		return nil, nil
	}
	return &dl, nil
}

func (m *Memory) CreateDailyLogin(_ context.Context, dl *ledger.DailyLogin) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	k := loginKey{AccountID: dl.AccountID, Day: dl.Day.String()}
	if _, exists := m.logins[k]; exists {
		return ledger.ErrStorage
	}
	m.nextLoginID++
	dl.ID = m.nextLoginID
	if dl.CreatedAt.IsZero() {
		dl.CreatedAt = time.Now().UTC()
	}
	m.logins[k] = *dl
	return nil
}

func (m *Memory) LatestDailyLogin(_ context.Context, accountID int64) (*ledger.DailyLogin, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var latest *ledger.DailyLogin
	for k, dl := range m.logins {
		if k.AccountID != accountID {
			continue
		}
		if latest == nil || dl.Day.After(latest.Day) {
			dl := dl
			latest = &dl
		}
	}
	return latest, nil
}

// =============================================================================
// TRANSACTIONS - Snapshot + restore
// =============================================================================

// WithTx executes fn against the store. For the memory implementation the
// transaction is simulated with a snapshot taken up front and restored if
// fn fails.
func (m *Memory) WithTx(_ context.Context, fn func(ledger.Store) error) error {
	m.txMu.Lock()
	defer m.txMu.Unlock()

	snap := m.snapshot()

	if err := fn(&txView{parent: m}); err != nil {
		m.restore(snap)
		return err
	}
	return nil
}

// txView gives fn the same store; writes go directly to the parent and
// are undone by restore on error. Memory's own mutex makes each row op
// atomic, mirroring how the SQL store's WithTx hands out a tx-bound view.
type txView struct {
	parent *Memory
}

var _ ledger.Store = (*txView)(nil)

func (v *txView) CreateAccount(ctx context.Context, a *ledger.Account) error {
	return v.parent.CreateAccount(ctx, a)
}
func (v *txView) Account(ctx context.Context, id int64) (*ledger.Account, error) {
	return v.parent.Account(ctx, id)
}
func (v *txView) AccountByEmail(ctx context.Context, email string) (*ledger.Account, error) {
	return v.parent.AccountByEmail(ctx, email)
}
func (v *txView) AccountByReferralCode(ctx context.Context, code string) (*ledger.Account, error) {
	return v.parent.AccountByReferralCode(ctx, code)
}
func (v *txView) SaveAccount(ctx context.Context, a *ledger.Account) error {
	return v.parent.SaveAccount(ctx, a)
}
func (v *txView) ListAccounts(ctx context.Context) ([]ledger.Account, error) {
	return v.parent.ListAccounts(ctx)
}
func (v *txView) CreateTask(ctx context.Context, t *ledger.Task) error {
	return v.parent.CreateTask(ctx, t)
}
func (v *txView) Task(ctx context.Context, id int64) (*ledger.Task, error) {
	return v.parent.Task(ctx, id)
}
func (v *txView) SaveTask(ctx context.Context, t *ledger.Task) error {
	return v.parent.SaveTask(ctx, t)
}
func (v *txView) ListTasks(ctx context.Context, activeOnly bool) ([]ledger.Task, error) {
	return v.parent.ListTasks(ctx, activeOnly)
}
func (v *txView) AppendEntry(ctx context.Context, e *ledger.Entry) error {
	return v.parent.AppendEntry(ctx, e)
}
func (v *txView) Entries(ctx context.Context, accountID int64, limit int) ([]ledger.Entry, error) {
	return v.parent.Entries(ctx, accountID, limit)
}
func (v *txView) SumEntries(ctx context.Context, accountID int64) (decimal.Decimal, error) {
	return v.parent.SumEntries(ctx, accountID)
}
func (v *txView) CountTaskCompletions(ctx context.Context, accountID, taskID int64, day ledger.Day) (int, error) {
	return v.parent.CountTaskCompletions(ctx, accountID, taskID, day)
}
func (v *txView) CreateWithdrawal(ctx context.Context, w *ledger.Withdrawal) error {
	return v.parent.CreateWithdrawal(ctx, w)
}
func (v *txView) Withdrawal(ctx context.Context, id int64) (*ledger.Withdrawal, error) {
	return v.parent.Withdrawal(ctx, id)
}
func (v *txView) SaveWithdrawal(ctx context.Context, w *ledger.Withdrawal) error {
	return v.parent.SaveWithdrawal(ctx, w)
}
func (v *txView) ListWithdrawals(ctx context.Context, status ledger.WithdrawalStatus) ([]ledger.Withdrawal, error) {
	return v.parent.ListWithdrawals(ctx, status)
}
func (v *txView) WithdrawalsByAccount(ctx context.Context, accountID int64, limit int) ([]ledger.Withdrawal, error) {
	return v.parent.WithdrawalsByAccount(ctx, accountID, limit)
}
func (v *txView) DailyWithdrawalTotal(ctx context.Context, accountID int64, day ledger.Day) (decimal.Decimal, error) {
	return v.parent.DailyWithdrawalTotal(ctx, accountID, day)
}
func (v *txView) CreateReferral(ctx context.Context, r *ledger.Referral) error {
	return v.parent.CreateReferral(ctx, r)
}
func (v *txView) ReferralsByReferrer(ctx context.Context, accountID int64) ([]ledger.Referral, error) {
	return v.parent.ReferralsByReferrer(ctx, accountID)
}
func (v *txView) DailyLogin(ctx context.Context, accountID int64, day ledger.Day) (*ledger.DailyLogin, error) {
	return v.parent.DailyLogin(ctx, accountID, day)
}
func (v *txView) CreateDailyLogin(ctx context.Context, dl *ledger.DailyLogin) error {
	return v.parent.CreateDailyLogin(ctx, dl)
}
func (v *txView) LatestDailyLogin(ctx context.Context, accountID int64) (*ledger.DailyLogin, error) {
	return v.parent.LatestDailyLogin(ctx, accountID)
}

type memorySnapshot struct {
	accounts    map[int64]ledger.Account
	tasks       map[int64]ledger.Task
	entries     map[int64][]ledger.Entry
	withdrawals map[int64]ledger.Withdrawal
	referrals   []ledger.Referral
	logins      map[loginKey]ledger.DailyLogin

	nextAccountID    int64
	nextTaskID       int64
	nextWithdrawalID int64
	nextReferralID   int64
	nextLoginID      int64
}

func (m *Memory) snapshot() memorySnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s := memorySnapshot{
		accounts:         make(map[int64]ledger.Account, len(m.accounts)),
		tasks:            make(map[int64]ledger.Task, len(m.tasks)),
		entries:          make(map[int64][]ledger.Entry, len(m.entries)),
		withdrawals:      make(map[int64]ledger.Withdrawal, len(m.withdrawals)),
		referrals:        append([]ledger.Referral(nil), m.referrals...),
		logins:           make(map[loginKey]ledger.DailyLogin, len(m.logins)),
		nextAccountID:    m.nextAccountID,
		nextTaskID:       m.nextTaskID,
		nextWithdrawalID: m.nextWithdrawalID,
		nextReferralID:   m.nextReferralID,
		nextLoginID:      m.nextLoginID,
	}
	for k, v := range m.accounts {
		s.accounts[k] = v
	}
	for k, v := range m.tasks {
		s.tasks[k] = v
	}
	for k, v := range m.entries {
		s.entries[k] = append([]ledger.Entry(nil), v...)
	}
	for k, v := range m.withdrawals {
		s.withdrawals[k] = v
	}
	for k, v := range m.logins {
		s.logins[k] = v
	}
	return s
}

func (m *Memory) restore(s memorySnapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.accounts = s.accounts
	m.tasks = s.tasks
	m.entries = s.entries
	m.withdrawals = s.withdrawals
	m.referrals = s.referrals
	m.logins = s.logins
	m.nextAccountID = s.nextAccountID
	m.nextTaskID = s.nextTaskID
	m.nextWithdrawalID = s.nextWithdrawalID
	m.nextReferralID = s.nextReferralID
	m.nextLoginID = s.nextLoginID
}
