package dispatch

import (
	"github.com/clipstream/timeline-core/internal/coreerr"
	"github.com/clipstream/timeline-core/internal/domain"
	"github.com/clipstream/timeline-core/internal/timeline"
)

type markerAddRollback struct {
	MarkerID string `json:"marker_id"`
}

func applyMarkerAdd(t *domain.Timeline, op Operation) (*ApplyResult, *coreerr.Error) {
	if op.Marker == nil {
		return nil, errMissingField("marker")
	}
	m := *op.Marker
	t.Markers = append(t.Markers, m)
	return &ApplyResult{
		ChangeDetails: []ChangeDetail{{EntityType: "marker", EntityID: m.ID, After: m}},
		RollbackData:  markerAddRollback{MarkerID: m.ID},
		Detail:        m,
	}, nil
}

type markerUpdateRollback struct {
	MarkerID       string        `json:"marker_id"`
	OriginalMarker domain.Marker `json:"original_marker"`
}

func applyMarkerUpdate(t *domain.Timeline, op Operation) (*ApplyResult, *coreerr.Error) {
	if op.MarkerID == "" {
		return nil, errMissingField("marker_id")
	}
	if op.MarkerPatch == nil {
		return nil, errMissingField("marker_patch")
	}
	marker, idx, ok := timeline.FindMarker(t, op.MarkerID)
	if !ok {
		return nil, coreerr.New(coreerr.CodeMarkerNotFound, "marker not found").WithField("marker_id")
	}
	p := op.MarkerPatch
	original := *marker
	updated := *marker
	if p.Name != nil {
		updated.Name = *p.Name
	}
	if p.TimeMs != nil {
		updated.TimeMs = *p.TimeMs
	}
	if p.Color != nil {
		updated.Color = p.Color
	}
	t.Markers[idx] = updated
	return &ApplyResult{
		ChangeDetails: []ChangeDetail{{EntityType: "marker", EntityID: updated.ID, Before: original, After: updated}},
		RollbackData:  markerUpdateRollback{MarkerID: updated.ID, OriginalMarker: original},
		Detail:        updated,
	}, nil
}

type markerDeleteRollback struct {
	Marker domain.Marker `json:"marker"`
}

func applyMarkerDelete(t *domain.Timeline, op Operation) (*ApplyResult, *coreerr.Error) {
	if op.MarkerID == "" {
		return nil, errMissingField("marker_id")
	}
	marker, idx, ok := timeline.FindMarker(t, op.MarkerID)
	if !ok {
		return nil, coreerr.New(coreerr.CodeMarkerNotFound, "marker not found").WithField("marker_id")
	}
	deleted := *marker
	t.Markers = append(t.Markers[:idx], t.Markers[idx+1:]...)
	return &ApplyResult{
		ChangeDetails: []ChangeDetail{{EntityType: "marker", EntityID: deleted.ID, Before: deleted}},
		RollbackData:  markerDeleteRollback{Marker: deleted},
		Detail:        map[string]string{"deleted_id": deleted.ID},
	}, nil
}
