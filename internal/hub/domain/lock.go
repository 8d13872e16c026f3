package domain

import "time"

// ActionLock is an advisory hold on a domain record during editing. It is a
// courtesy signal to other clients, not an enforcement against writes.
type ActionLock struct {
	RecordID          string
	HolderUserID      string
	HolderDisplayName string
	AcquiredAt        time.Time
}
