package timeline

import (
	"sort"

	"github.com/clipstream/timeline-core/internal/domain"
)

// Interval is a half-open [StartMs, EndMs) coverage span.
type Interval struct {
	StartMs int `json:"start_ms"`
	EndMs   int `json:"end_ms"`
}

// MergeIntervals merges overlapping or touching intervals, returning them
// sorted by start time. Used by coverage queries and the analysis engine's
// gap/audio-coverage computations.
func MergeIntervals(spans []Interval) []Interval {
	if len(spans) == 0 {
		return nil
	}
	sorted := append([]Interval(nil), spans...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].StartMs < sorted[j].StartMs })

	merged := []Interval{sorted[0]}
	for _, s := range sorted[1:] {
		last := &merged[len(merged)-1]
		if s.StartMs <= last.EndMs {
			if s.EndMs > last.EndMs {
				last.EndMs = s.EndMs
			}
			continue
		}
		merged = append(merged, s)
	}
	return merged
}

// ClipCoverage returns the merged coverage intervals for a slice of clips.
func ClipCoverage(clips []domain.Clip) []Interval {
	spans := make([]Interval, len(clips))
	for i, c := range clips {
		spans[i] = Interval{StartMs: c.StartMs, EndMs: c.EndMs()}
	}
	return MergeIntervals(spans)
}

// AudioClipCoverage returns the merged coverage intervals for a slice of
// audio clips.
func AudioClipCoverage(clips []domain.AudioClip) []Interval {
	spans := make([]Interval, len(clips))
	for i, c := range clips {
		spans[i] = Interval{StartMs: c.StartMs, EndMs: c.EndMs()}
	}
	return MergeIntervals(spans)
}

// Overlaps reports whether [startMs, startMs+durationMs) intersects any
// existing clip on the layer other than the one named excludeID (used when
// validating a move of an existing clip against its siblings).
func Overlaps(layer *domain.Layer, startMs, durationMs int, excludeID string) (conflictID string, ok bool) {
	endMs := startMs + durationMs
	for _, c := range layer.Clips {
		if c.ID == excludeID {
			continue
		}
		if startMs < c.EndMs() && c.StartMs < endMs {
			return c.ID, true
		}
	}
	return "", false
}

// AudioOverlaps is the audio-track analogue of Overlaps.
func AudioOverlaps(track *domain.AudioTrack, startMs, durationMs int, excludeID string) (conflictID string, ok bool) {
	endMs := startMs + durationMs
	for _, c := range track.Clips {
		if c.ID == excludeID {
			continue
		}
		if startMs < c.EndMs() && c.StartMs < endMs {
			return c.ID, true
		}
	}
	return "", false
}

// RecomputeDuration sets Timeline.DurationMs to the maximum end time across
// every clip and audio clip, to be called after every mutation.
func RecomputeDuration(t *domain.Timeline) {
	max := 0
	for _, l := range t.Layers {
		for _, c := range l.Clips {
			if e := c.EndMs(); e > max {
				max = e
			}
		}
	}
	for _, tr := range t.AudioTracks {
		for _, c := range tr.Clips {
			if e := c.EndMs(); e > max {
				max = e
			}
		}
	}
	t.DurationMs = max
}
