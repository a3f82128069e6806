// Package lock implements the sequence lock manager: the advisory,
// heartbeat-based per-sequence lock protocol. The pure decision logic here
// (acquire/heartbeat/release against a domain.Sequence value) is separated
// from the row-lock transaction that guarantees no concurrent mutator
// observes a half-applied batch — that part lives in internal/repos,
// using a SELECT ... FOR UPDATE claim/heartbeat pattern.
package lock

import (
	"time"

	"github.com/clipstream/timeline-core/internal/coreerr"
	"github.com/clipstream/timeline-core/internal/domain"
)

// AcquireResult reports the outcome of an Acquire call.
type AcquireResult struct {
	Granted  bool
	LockedBy string
	LockedAt time.Time
}

// Acquire grants the lock if the sequence is unlocked, its existing lock
// has expired (now - locked_at > 2min), or the requester already holds it
// (a refresh). Otherwise it returns the current holder without error —
// acquiring a lock someone else holds is not itself an error condition.
func Acquire(seq domain.Sequence, requesterID string, now time.Time) AcquireResult {
	if seq.LockedBy == nil || !seq.LockValid(now) {
		return AcquireResult{Granted: true, LockedBy: requesterID, LockedAt: now}
	}
	if *seq.LockedBy == requesterID {
		return AcquireResult{Granted: true, LockedBy: requesterID, LockedAt: now}
	}
	return AcquireResult{Granted: false, LockedBy: *seq.LockedBy, LockedAt: *seq.LockedAt}
}

// Heartbeat refreshes locked_at; only the current holder may call it.
func Heartbeat(seq domain.Sequence, requesterID string, now time.Time) (time.Time, *coreerr.Error) {
	if seq.LockedBy == nil || !seq.LockValid(now) {
		return time.Time{}, coreerr.New(coreerr.CodeForbidden, "sequence is not currently locked by this caller").WithField("sequence_id")
	}
	if *seq.LockedBy != requesterID {
		return time.Time{}, coreerr.New(coreerr.CodeForbidden, "caller does not hold the lock").WithField("sequence_id")
	}
	return now, nil
}

// Release clears the lock; only the current holder may call it.
func Release(seq domain.Sequence, requesterID string, now time.Time) *coreerr.Error {
	if seq.LockedBy == nil || !seq.LockValid(now) {
		return nil // already effectively unlocked
	}
	if *seq.LockedBy != requesterID {
		return coreerr.New(coreerr.CodeForbidden, "caller does not hold the lock").WithField("sequence_id")
	}
	return nil
}

// BypassesLockCheck reports whether a caller is exempt from lock-holder
// verification on writes against the default sequence — API-key
// (programmatic) callers do not participate in the cooperative locking
// protocol.
func BypassesLockCheck(isAPIKey, isDefaultSequence bool) bool {
	return isAPIKey && isDefaultSequence
}

// CheckWriteAuthorized enforces the lock-holder policy for a mutating
// request: API-key callers bypass it on the default sequence; everyone
// else must either hold a valid lock or find the sequence unlocked.
func CheckWriteAuthorized(seq domain.Sequence, requesterID string, isAPIKey, isDefaultSequence bool, now time.Time) *coreerr.Error {
	if BypassesLockCheck(isAPIKey, isDefaultSequence) {
		return nil
	}
	if seq.LockedBy == nil || !seq.LockValid(now) {
		return nil
	}
	if *seq.LockedBy != requesterID {
		return coreerr.New(coreerr.CodeForbidden, "sequence is locked by another user").WithField("sequence_id")
	}
	return nil
}
