package ledger

import (
	"sync"
)

// =============================================================================
// ACCOUNT LOCKS - Per-account serialization of mutations
// =============================================================================

// AccountLocks serializes read-compute-write sequences per account so two
// concurrent operations on the same account cannot both read the same
// stale balance. Locks are striped: distinct accounts may share a stripe,
// which trades a little contention for a fixed footprint.
//
// Services hold the lock across the whole WithTx of a mutating operation.
type AccountLocks struct {
	stripes [lockStripes]sync.Mutex
}

const lockStripes = 64

func NewAccountLocks() *AccountLocks {
	return &AccountLocks{}
}

// Lock acquires the stripe for the account and returns its unlock func.
func (l *AccountLocks) Lock(accountID int64) func() {
	m := &l.stripes[uint64(accountID)%lockStripes]
	m.Lock()
	return m.Unlock
}
