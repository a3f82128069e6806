package lock

import (
	"testing"
	"time"

	"github.com/clipstream/timeline-core/internal/domain"
	"github.com/clipstream/timeline-core/internal/pointers"
)

// S3 — Lock expiry.
func TestAcquireExpiredLockGranted(t *testing.T) {
	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	seq := domain.Sequence{LockedBy: pointers.String("user-u"), LockedAt: pointers.Ptr(t0)}
	res := Acquire(seq, "user-v", t0.Add(125*time.Second))
	if !res.Granted {
		t.Fatalf("Acquire expired lock: want granted=true got=false")
	}
	if res.LockedBy != "user-v" {
		t.Fatalf("Acquire expired lock holder: want=user-v got=%s", res.LockedBy)
	}
}

func TestAcquireHeldByOtherWithinWindowNotGranted(t *testing.T) {
	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	seq := domain.Sequence{LockedBy: pointers.String("user-u"), LockedAt: pointers.Ptr(t0)}
	res := Acquire(seq, "user-v", t0.Add(30*time.Second))
	if res.Granted {
		t.Fatalf("Acquire held-by-other: want granted=false got=true")
	}
	if res.LockedBy != "user-u" {
		t.Fatalf("Acquire held-by-other holder: want=user-u got=%s", res.LockedBy)
	}
}

func TestAcquireSameHolderRefreshes(t *testing.T) {
	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	seq := domain.Sequence{LockedBy: pointers.String("user-u"), LockedAt: pointers.Ptr(t0)}
	res := Acquire(seq, "user-u", t0.Add(10*time.Second))
	if !res.Granted {
		t.Fatalf("Acquire same holder: want granted=true got=false")
	}
}

func TestHeartbeatByNonHolderForbidden(t *testing.T) {
	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	seq := domain.Sequence{LockedBy: pointers.String("user-u"), LockedAt: pointers.Ptr(t0)}
	_, err := Heartbeat(seq, "user-v", t0.Add(10*time.Second))
	if err == nil {
		t.Fatalf("Heartbeat by non-holder: want FORBIDDEN got nil")
	}
}

// S3 continued: heartbeat from the original holder after V has taken over.
func TestHeartbeatAfterExpiryAndTakeoverForbidden(t *testing.T) {
	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	seq := domain.Sequence{LockedBy: pointers.String("user-v"), LockedAt: pointers.Ptr(t0.Add(125 * time.Second))}
	_, err := Heartbeat(seq, "user-u", t0.Add(130*time.Second))
	if err == nil {
		t.Fatalf("Heartbeat after takeover: want FORBIDDEN got nil")
	}
}

func TestReleaseByNonHolderForbidden(t *testing.T) {
	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	seq := domain.Sequence{LockedBy: pointers.String("user-u"), LockedAt: pointers.Ptr(t0)}
	err := Release(seq, "user-v", t0.Add(10*time.Second))
	if err == nil {
		t.Fatalf("Release by non-holder: want FORBIDDEN got nil")
	}
}

func TestCheckWriteAuthorizedAPIKeyBypassesOnDefaultSequence(t *testing.T) {
	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	seq := domain.Sequence{LockedBy: pointers.String("user-u"), LockedAt: pointers.Ptr(t0)}
	err := CheckWriteAuthorized(seq, "api-caller", true, true, t0.Add(10*time.Second))
	if err != nil {
		t.Fatalf("CheckWriteAuthorized API key bypass: want nil got=%v", err)
	}
}

func TestCheckWriteAuthorizedAPIKeyDoesNotBypassNonDefaultSequence(t *testing.T) {
	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	seq := domain.Sequence{LockedBy: pointers.String("user-u"), LockedAt: pointers.Ptr(t0)}
	err := CheckWriteAuthorized(seq, "api-caller", true, false, t0.Add(10*time.Second))
	if err == nil {
		t.Fatalf("CheckWriteAuthorized API key on non-default sequence: want FORBIDDEN got nil")
	}
}
