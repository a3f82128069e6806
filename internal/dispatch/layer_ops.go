package dispatch

import (
	"github.com/clipstream/timeline-core/internal/coreerr"
	"github.com/clipstream/timeline-core/internal/domain"
	"github.com/clipstream/timeline-core/internal/timeline"
)

type layerAddRollback struct {
	LayerID string `json:"layer_id"`
}

func applyLayerAdd(t *domain.Timeline, op Operation) (*ApplyResult, *coreerr.Error) {
	if op.Layer == nil {
		return nil, errMissingField("layer")
	}
	l := *op.Layer
	if op.InsertAt != nil && *op.InsertAt >= 0 && *op.InsertAt <= len(t.Layers) {
		t.Layers = append(t.Layers, domain.Layer{})
		copy(t.Layers[*op.InsertAt+1:], t.Layers[*op.InsertAt:])
		t.Layers[*op.InsertAt] = l
	} else {
		t.Layers = append(t.Layers, l)
	}
	return &ApplyResult{
		ChangeDetails:  []ChangeDetail{{EntityType: "layer", EntityID: l.ID, After: l}},
		RollbackData:   layerAddRollback{LayerID: l.ID},
		AffectedLayers: []string{l.ID},
		Detail:         l,
	}, nil
}

func applyLayerDelete(t *domain.Timeline, op Operation) (*ApplyResult, *coreerr.Error) {
	if op.LayerID == "" {
		return nil, errMissingField("layer_id")
	}
	_, idx, ok := timeline.FindLayer(t, op.LayerID)
	if !ok {
		return nil, coreerr.New(coreerr.CodeLayerNotFound, "layer not found").WithField("layer_id")
	}
	deleted := t.Layers[idx]
	t.Layers = append(t.Layers[:idx], t.Layers[idx+1:]...)
	return &ApplyResult{
		ChangeDetails:  []ChangeDetail{{EntityType: "layer", EntityID: deleted.ID, Before: deleted}},
		AffectedLayers: []string{deleted.ID},
		Detail:         map[string]string{"deleted_id": deleted.ID},
	}, nil
}

// applyLayerReorder reorders layers per an explicit id list: unknown ids in
// the list are rejected up front; ids not mentioned are appended afterward
// in their original relative order.
func applyLayerReorder(t *domain.Timeline, op Operation) (*ApplyResult, *coreerr.Error) {
	if len(op.Order) == 0 {
		return nil, errMissingField("order")
	}
	byID := make(map[string]domain.Layer, len(t.Layers))
	for _, l := range t.Layers {
		byID[l.ID] = l
	}
	seen := make(map[string]bool, len(op.Order))
	reordered := make([]domain.Layer, 0, len(t.Layers))
	for _, id := range op.Order {
		l, ok := byID[id]
		if !ok {
			return nil, coreerr.New(coreerr.CodeLayerNotFound, "unknown layer id in order").WithField("order")
		}
		reordered = append(reordered, l)
		seen[id] = true
	}
	for _, l := range t.Layers {
		if !seen[l.ID] {
			reordered = append(reordered, l)
		}
	}
	t.Layers = reordered
	return &ApplyResult{
		ChangeDetails: []ChangeDetail{{EntityType: "timeline", EntityID: "layers", After: op.Order}},
		Detail:        map[string]any{"order": op.Order},
	}, nil
}

func applyLayerUpdate(t *domain.Timeline, op Operation) (*ApplyResult, *coreerr.Error) {
	if op.LayerID == "" {
		return nil, errMissingField("layer_id")
	}
	if op.LayerPatch == nil {
		return nil, errMissingField("layer_patch")
	}
	layer, idx, ok := timeline.FindLayer(t, op.LayerID)
	if !ok {
		return nil, coreerr.New(coreerr.CodeLayerNotFound, "layer not found").WithField("layer_id")
	}
	original := *layer
	p := op.LayerPatch
	updated := *layer
	if p.Name != nil {
		updated.Name = *p.Name
	}
	if p.Visible != nil {
		updated.Visible = *p.Visible
	}
	if p.Locked != nil {
		updated.Locked = *p.Locked
	}
	t.Layers[idx] = updated
	return &ApplyResult{
		ChangeDetails:  []ChangeDetail{{EntityType: "layer", EntityID: updated.ID, Before: original, After: updated}},
		AffectedLayers: []string{updated.ID},
		Detail:         updated,
	}, nil
}
