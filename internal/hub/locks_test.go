package hub

import (
	"errors"
	"testing"
	"time"
)

func TestLockTable_Acquire(t *testing.T) {
	lt := NewLockTable(0)

	lock, err := lt.Acquire("record-1", "user-1", "Ana")
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if lock.RecordID != "record-1" {
		t.Errorf("RecordID = %q, want %q", lock.RecordID, "record-1")
	}
	if lock.HolderUserID != "user-1" {
		t.Errorf("HolderUserID = %q, want %q", lock.HolderUserID, "user-1")
	}
	if lock.AcquiredAt.IsZero() {
		t.Error("AcquiredAt should be set")
	}
	if lt.Len() != 1 {
		t.Errorf("Len = %d, want 1", lt.Len())
	}
}

func TestLockTable_Acquire_Contention(t *testing.T) {
	lt := NewLockTable(0)
	if _, err := lt.Acquire("record-1", "user-1", "Ana"); err != nil {
		t.Fatalf("first Acquire: %v", err)
	}

	_, err := lt.Acquire("record-1", "user-2", "Bruno")
	var lockedErr *AlreadyLockedError
	if !errors.As(err, &lockedErr) {
		t.Fatalf("err = %v, want *AlreadyLockedError", err)
	}
	if lockedErr.Holder.HolderUserID != "user-1" {
		t.Errorf("Holder = %q, want %q", lockedErr.Holder.HolderUserID, "user-1")
	}

	// The first holder keeps the lock.
	holder, ok := lt.Holder("record-1")
	if !ok || holder.HolderUserID != "user-1" {
		t.Errorf("Holder = %+v, ok=%v, want user-1", holder, ok)
	}
}

func TestLockTable_Acquire_SameUserTwice(t *testing.T) {
	lt := NewLockTable(0)
	if _, err := lt.Acquire("record-1", "user-1", "Ana"); err != nil {
		t.Fatalf("first Acquire: %v", err)
	}

	// A lock binds the record, not the user: even the holder must release
	// before re-acquiring.
	_, err := lt.Acquire("record-1", "user-1", "Ana")
	var lockedErr *AlreadyLockedError
	if !errors.As(err, &lockedErr) {
		t.Fatalf("err = %v, want *AlreadyLockedError", err)
	}
}

func TestLockTable_Release(t *testing.T) {
	lt := NewLockTable(0)
	if _, err := lt.Acquire("record-1", "user-1", "Ana"); err != nil {
		t.Fatalf("Acquire: %v", err)
	}

	released, err := lt.Release("record-1")
	if err != nil {
		t.Fatalf("Release: %v", err)
	}
	if released.HolderUserID != "user-1" {
		t.Errorf("released holder = %q, want %q", released.HolderUserID, "user-1")
	}
	if lt.Len() != 0 {
		t.Errorf("Len = %d, want 0", lt.Len())
	}
}

func TestLockTable_Release_NotLocked(t *testing.T) {
	lt := NewLockTable(0)

	_, err := lt.Release("record-1")
	if !errors.Is(err, ErrNotLocked) {
		t.Errorf("err = %v, want ErrNotLocked", err)
	}
}

func TestLockTable_ReleaseAllFor(t *testing.T) {
	lt := NewLockTable(0)
	mustAcquire(t, lt, "record-1", "user-1")
	mustAcquire(t, lt, "record-2", "user-1")
	mustAcquire(t, lt, "record-3", "user-2")

	released := lt.ReleaseAllFor("user-1")
	if len(released) != 2 {
		t.Fatalf("released %d locks, want 2", len(released))
	}
	if lt.Len() != 1 {
		t.Errorf("Len = %d, want 1", lt.Len())
	}
	if _, ok := lt.Holder("record-3"); !ok {
		t.Error("user-2's lock must survive")
	}
}

func TestLockTable_ReleaseAllFor_NoLocks(t *testing.T) {
	lt := NewLockTable(0)

	if released := lt.ReleaseAllFor("user-1"); len(released) != 0 {
		t.Errorf("released %d locks, want 0", len(released))
	}
}

func TestLockTable_TTL_ExpiresOnAcquire(t *testing.T) {
	lt := NewLockTable(30 * time.Minute)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	lt.nowF = func() time.Time { return now }

	mustAcquire(t, lt, "record-1", "user-1")

	// Before the TTL elapses the lock still contends.
	now = now.Add(29 * time.Minute)
	if _, err := lt.Acquire("record-1", "user-2", "Bruno"); err == nil {
		t.Fatal("Acquire should fail before TTL elapses")
	}

	// After the TTL the stale lock is reaped and the acquire succeeds.
	now = now.Add(2 * time.Minute)
	lock, err := lt.Acquire("record-1", "user-2", "Bruno")
	if err != nil {
		t.Fatalf("Acquire after TTL: %v", err)
	}
	if lock.HolderUserID != "user-2" {
		t.Errorf("HolderUserID = %q, want %q", lock.HolderUserID, "user-2")
	}
}

func TestLockTable_TTL_HolderHidesExpired(t *testing.T) {
	lt := NewLockTable(time.Minute)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	lt.nowF = func() time.Time { return now }

	mustAcquire(t, lt, "record-1", "user-1")
	now = now.Add(2 * time.Minute)

	if _, ok := lt.Holder("record-1"); ok {
		t.Error("Holder should not report an expired lock")
	}
}

func TestLockTable_ZeroTTL_NeverExpires(t *testing.T) {
	lt := NewLockTable(0)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	lt.nowF = func() time.Time { return now }

	mustAcquire(t, lt, "record-1", "user-1")
	now = now.Add(240 * time.Hour)

	if _, ok := lt.Holder("record-1"); !ok {
		t.Error("lock with zero TTL must never expire")
	}
}

func mustAcquire(t *testing.T, lt *LockTable, recordID, userID string) {
	t.Helper()
	if _, err := lt.Acquire(recordID, userID, userID); err != nil {
		t.Fatalf("Acquire(%s, %s): %v", recordID, userID, err)
	}
}
