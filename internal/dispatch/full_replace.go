package dispatch

import (
	"github.com/clipstream/timeline-core/internal/coreerr"
	"github.com/clipstream/timeline-core/internal/domain"
)

// applyFullReplace bulk-overwrites the entire timeline structure. It is not
// in the rollback-supported set — reverting a full_replace would require
// snapshotting the whole tree, which the dispatcher leaves to the caller
// (batch apply already holds the pre-mutation timeline for that purpose).
func applyFullReplace(t *domain.Timeline, op Operation) (*ApplyResult, *coreerr.Error) {
	if op.Timeline == nil {
		return nil, errMissingField("timeline")
	}
	*t = op.Timeline.Clone()
	return &ApplyResult{
		ChangeDetails: []ChangeDetail{{EntityType: "timeline", EntityID: "full_replace"}},
		Detail:        *t,
	}, nil
}
