// Package lock provides group-level locking. All mutations of a single
// group's event state (status transitions, point updates, payout
// emission) must run under that group's lock; operations on different
// groups proceed independently.
package lock

import (
	"context"
	"sync"
)

// groupMutex wraps a mutex with reference counting for cleanup.
type groupMutex struct {
	mu       sync.Mutex
	refCount int
}

// GroupLock provides per-group locking so concurrent message handling
// cannot lose scores or double-finalize an event.
type GroupLock struct {
	locks sync.Map // map[int64]*groupMutex
	pool  sync.Pool
}

// NewGroupLock creates a new GroupLock instance.
func NewGroupLock() *GroupLock {
	return &GroupLock{
		pool: sync.Pool{
			New: func() any {
				return &groupMutex{}
			},
		},
	}
}

// getLock retrieves or creates a mutex for the given group ID.
func (gl *GroupLock) getLock(groupID int64) *groupMutex {
	if v, ok := gl.locks.Load(groupID); ok {
		return v.(*groupMutex)
	}

	newLock := gl.pool.Get().(*groupMutex)
	newLock.refCount = 0

	// LoadOrStore handles the race where two goroutines create the
	// lock for the same group at once.
	actual, loaded := gl.locks.LoadOrStore(groupID, newLock)
	if loaded {
		gl.pool.Put(newLock)
	}
	return actual.(*groupMutex)
}

// Lock acquires the lock for a group.
func (gl *GroupLock) Lock(groupID int64) {
	lock := gl.getLock(groupID)
	lock.mu.Lock()
	lock.refCount++
}

// Unlock releases the lock for a group.
func (gl *GroupLock) Unlock(groupID int64) {
	if v, ok := gl.locks.Load(groupID); ok {
		lock := v.(*groupMutex)
		lock.refCount--
		lock.mu.Unlock()
	}
}

// TryLock attempts to acquire the lock without blocking.
// Returns true if the lock was acquired, false otherwise.
func (gl *GroupLock) TryLock(groupID int64) bool {
	lock := gl.getLock(groupID)
	if lock.mu.TryLock() {
		lock.refCount++
		return true
	}
	return false
}

// WithLock executes a function while holding the group's lock.
func (gl *GroupLock) WithLock(groupID int64, fn func() error) error {
	gl.Lock(groupID)
	defer gl.Unlock(groupID)
	return fn()
}

// WithLockContext executes a function while holding the group's lock,
// returning early if the context is already cancelled once the lock is
// held. Callers tearing down a group can cancel in-flight work without
// corrupting the ledger.
func (gl *GroupLock) WithLockContext(ctx context.Context, groupID int64, fn func() error) error {
	gl.Lock(groupID)
	defer gl.Unlock(groupID)

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return fn()
	}
}
