package hub

import (
	"errors"
	"fmt"
	"time"

	"peoplepulse/realtime-hub/internal/hub/domain"
)

// ErrNotLocked is returned when releasing a record that holds no lock.
var ErrNotLocked = errors.New("record is not locked")

// AlreadyLockedError reports lock contention together with the current
// holder's identity, so the losing client can render "being edited by X".
type AlreadyLockedError struct {
	Holder domain.ActionLock
}

func (e *AlreadyLockedError) Error() string {
	return fmt.Sprintf("record %s is locked by %s", e.Holder.RecordID, e.Holder.HolderUserID)
}

// LockTable holds advisory edit locks keyed by record ID, at most one lock per
// record at any instant. Locks live until explicit release, holder disconnect,
// or (when a TTL is configured) lazy expiry on the next acquire attempt.
//
// Serialization is provided by the Hub's mutex; the table itself has none.
type LockTable struct {
	locks map[string]domain.ActionLock
	// ttl of zero means locks never expire (editor "checkout" semantics).
	ttl  time.Duration
	nowF func() time.Time
}

// NewLockTable returns an empty lock table. ttl <= 0 disables expiry.
func NewLockTable(ttl time.Duration) *LockTable {
	return &LockTable{
		locks: make(map[string]domain.ActionLock),
		ttl:   ttl,
		nowF:  time.Now,
	}
}

// Acquire takes the lock for recordID on behalf of userID. A second request
// for an already-locked record fails with *AlreadyLockedError carrying the
// existing holder. An expired lock is treated as absent.
func (lt *LockTable) Acquire(recordID, userID, displayName string) (domain.ActionLock, error) {
	now := lt.nowF().UTC()
	if existing, ok := lt.locks[recordID]; ok {
		if !lt.expired(existing, now) {
			return domain.ActionLock{}, &AlreadyLockedError{Holder: existing}
		}
		delete(lt.locks, recordID)
	}
	lock := domain.ActionLock{
		RecordID:          recordID,
		HolderUserID:      userID,
		HolderDisplayName: displayName,
		AcquiredAt:        now,
	}
	lt.locks[recordID] = lock
	return lock, nil
}

// Release removes the lock for recordID, returning ErrNotLocked when absent.
// Holders are not verified: release is advisory just like acquire.
func (lt *LockTable) Release(recordID string) (domain.ActionLock, error) {
	lock, ok := lt.locks[recordID]
	if !ok {
		return domain.ActionLock{}, ErrNotLocked
	}
	delete(lt.locks, recordID)
	return lock, nil
}

// ReleaseAllFor removes every lock held by userID and returns them, so the
// caller can broadcast the corresponding unlock events. Called on disconnect
// cleanup; it prevents a crashed client from leaving records locked forever.
func (lt *LockTable) ReleaseAllFor(userID string) []domain.ActionLock {
	var released []domain.ActionLock
	for recordID, lock := range lt.locks {
		if lock.HolderUserID == userID {
			released = append(released, lock)
			delete(lt.locks, recordID)
		}
	}
	return released
}

// Holder returns the current lock for recordID, if any and not expired.
func (lt *LockTable) Holder(recordID string) (domain.ActionLock, bool) {
	lock, ok := lt.locks[recordID]
	if !ok || lt.expired(lock, lt.nowF().UTC()) {
		return domain.ActionLock{}, false
	}
	return lock, true
}

// Len returns the number of held locks, including not-yet-reaped expired ones.
func (lt *LockTable) Len() int {
	return len(lt.locks)
}

func (lt *LockTable) expired(lock domain.ActionLock, now time.Time) bool {
	return lt.ttl > 0 && now.Sub(lock.AcquiredAt) >= lt.ttl
}
