// Package batch implements versioned, atomic batch apply: a
// version-checked, all-or-nothing sequence of dispatch operations applied
// against an uncommitted scratch copy of the timeline, with
// idempotency-key dedup.
package batch

import (
	"github.com/clipstream/timeline-core/internal/coreerr"
	"github.com/clipstream/timeline-core/internal/dispatch"
	"github.com/clipstream/timeline-core/internal/domain"
)

// Request is a version-checked batch of operations.
type Request struct {
	ExpectedVersion int
	Items           []dispatch.Operation
	IdempotencyKey  string
}

// Result is what a successful Apply returns; it is what gets persisted as
// the new Sequence state and serialized into the response envelope.
type Result struct {
	NewVersion         int
	Timeline           domain.Timeline
	OperationType      string // "batch", or the single op's type if len(Items)==1
	ChangeDetails      []dispatch.ChangeDetail
	RollbackData       any
	RollbackAvailable  bool
	AffectedClips      []string
	AffectedLayers     []string
	AffectedAudioClips []string
}

// itemRollback pairs one applied operation with its own rollback data, so a
// batch's combined rollback can invert every item in reverse order.
type itemRollback struct {
	OpType       string `json:"op_type"`
	RollbackData any    `json:"rollback_data"`
}

// Apply applies req against current under the already-held sequence lock
// and row lock; it does not itself acquire locks or persist anything — the
// caller (service layer) is responsible for both, so this stays pure and
// independently testable.
func Apply(current domain.Sequence, req Request) (*Result, *coreerr.Error) {
	if current.Version != req.ExpectedVersion {
		return nil, coreerr.New(coreerr.CodeConcurrentModification, "sequence version does not match").
			WithDetails(map[string]any{"server_version": current.Version})
	}
	if len(req.Items) == 0 {
		return nil, coreerr.New(coreerr.CodeMissingRequiredField, "batch must contain at least one operation").WithField("items")
	}

	scratch := current.TimelineData.Clone()
	var changes []dispatch.ChangeDetail
	var rollbacks []itemRollback
	var affectedClips, affectedLayers, affectedAudioClips []string
	allRollbackAvailable := true

	for i, op := range req.Items {
		res, opErr := dispatch.Apply(&scratch, op)
		if opErr != nil {
			// All-or-nothing: the scratch copy is discarded (it was never
			// written back to current), so the original timeline is
			// untouched. The failure is reported with its index in the batch.
			failure := *opErr
			if failure.Details == nil {
				failure.Details = map[string]any{}
			}
			failure.Details["index"] = i
			return nil, &failure
		}
		changes = append(changes, res.ChangeDetails...)
		rollbacks = append(rollbacks, itemRollback{OpType: op.Type, RollbackData: res.RollbackData})
		if !res.RollbackAvailable {
			allRollbackAvailable = false
		}
		affectedClips = append(affectedClips, res.AffectedClips...)
		affectedLayers = append(affectedLayers, res.AffectedLayers...)
		affectedAudioClips = append(affectedAudioClips, res.AffectedAudioClips...)
	}

	opType := "batch"
	if len(req.Items) == 1 {
		opType = req.Items[0].Type
	}

	var rollbackData any
	if allRollbackAvailable {
		rollbackData = rollbacks
	}

	return &Result{
		NewVersion:         current.Version + 1,
		Timeline:           scratch,
		OperationType:      opType,
		ChangeDetails:      changes,
		RollbackData:       rollbackData,
		RollbackAvailable:  allRollbackAvailable,
		AffectedClips:      dedup(affectedClips),
		AffectedLayers:     dedup(affectedLayers),
		AffectedAudioClips: dedup(affectedAudioClips),
	}, nil
}

func dedup(ids []string) []string {
	if len(ids) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}
