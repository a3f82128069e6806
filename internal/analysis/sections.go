package analysis

import (
	"sort"

	"github.com/clipstream/timeline-core/internal/domain"
)

const (
	sectionGapThresholdMs = 500
	sectionMergeWindowMs  = 500
)

// Section is one delimited region of the timeline.
type Section struct {
	StartMs int    `json:"start_ms"`
	EndMs   int    `json:"end_ms"`
	Name    string `json:"name,omitempty"`
}

type boundary struct {
	ms   int
	name string
}

// primaryContentLayer picks the first "content" layer, falling back to the
// first layer with any clips — the analysis engine has no richer notion of
// "primary" than layer type and presence of content.
func primaryContentLayer(t domain.Timeline) *domain.Layer {
	for i := range t.Layers {
		if t.Layers[i].Type == domain.LayerContent {
			return &t.Layers[i]
		}
	}
	for i := range t.Layers {
		if len(t.Layers[i].Clips) > 0 {
			return &t.Layers[i]
		}
	}
	return nil
}

func backgroundLayer(t domain.Timeline) *domain.Layer {
	for i := range t.Layers {
		if t.Layers[i].Type == domain.LayerBackground {
			return &t.Layers[i]
		}
	}
	return nil
}

// Sections delimits the timeline by gaps > 500ms in the primary content
// layer, marker positions, and background-layer clip changes, merging
// boundaries within 500ms of each other.
func Sections(t domain.Timeline) []Section {
	var boundaries []boundary

	if content := primaryContentLayer(t); content != nil {
		spans := sortedClipSpans(content.Clips)
		cursor := 0
		for _, s := range spans {
			if s.StartMs-cursor > sectionGapThresholdMs {
				boundaries = append(boundaries, boundary{ms: s.StartMs})
			}
			if s.EndMs > cursor {
				cursor = s.EndMs
			}
		}
	}

	for _, m := range t.Markers {
		boundaries = append(boundaries, boundary{ms: m.TimeMs, name: m.Name})
	}

	if bg := backgroundLayer(t); bg != nil {
		sorted := append([]domain.Clip(nil), bg.Clips...)
		sort.Slice(sorted, func(i, j int) bool { return sorted[i].StartMs < sorted[j].StartMs })
		for i, c := range sorted {
			if i > 0 {
				boundaries = append(boundaries, boundary{ms: c.StartMs})
			}
		}
	}

	boundaries = append(boundaries, boundary{ms: 0})
	sort.Slice(boundaries, func(i, j int) bool { return boundaries[i].ms < boundaries[j].ms })

	merged := []boundary{boundaries[0]}
	for _, b := range boundaries[1:] {
		last := &merged[len(merged)-1]
		if b.ms-last.ms <= sectionMergeWindowMs {
			// Markers preserve their name through a merge.
			if b.name != "" {
				last.name = b.name
			}
			continue
		}
		merged = append(merged, b)
	}

	var sections []Section
	for i, b := range merged {
		end := t.DurationMs
		if i < len(merged)-1 {
			end = merged[i+1].ms
		}
		sections = append(sections, Section{StartMs: b.ms, EndMs: end, Name: b.name})
	}
	return sections
}
