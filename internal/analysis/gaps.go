// Package analysis implements the timeline analysis engine: pure
// read-side computations over a domain.Timeline — gaps, pacing, audio
// coverage/balance, section detection, a weighted quality score, and the
// suggestion generator that turns findings into executable operations.
package analysis

import (
	"sort"

	"github.com/clipstream/timeline-core/internal/domain"
	"github.com/clipstream/timeline-core/internal/timeline"
)

// significantGapMs is the threshold for an interior gap worth reporting.
const significantGapMs = 100

// Gap is one uncovered interval on a layer or audio track.
type Gap struct {
	ContainerID string `json:"container_id"`
	StartMs     int    `json:"start_ms"`
	EndMs       int    `json:"end_ms"`
	DurationMs  int    `json:"duration_ms"`
}

// GapReport is the per-container gap list plus the rollup totals.
type GapReport struct {
	Gaps          []Gap `json:"gaps"`
	TotalCount    int   `json:"total_count"`
	TotalDuration int   `json:"total_duration_ms"`
}

func sortedClipSpans(clips []domain.Clip) []timeline.Interval {
	spans := make([]timeline.Interval, len(clips))
	for i, c := range clips {
		spans[i] = timeline.Interval{StartMs: c.StartMs, EndMs: c.EndMs()}
	}
	sort.Slice(spans, func(i, j int) bool { return spans[i].StartMs < spans[j].StartMs })
	return spans
}

// gapsWithin computes, for a single container's merged coverage, the
// leading gap from 0, every interior gap over significantGapMs, and the
// trailing gap to projectDurationMs.
func gapsWithin(containerID string, merged []timeline.Interval, projectDurationMs int) []Gap {
	var gaps []Gap
	cursor := 0
	for _, iv := range merged {
		if iv.StartMs > cursor {
			gaps = append(gaps, Gap{ContainerID: containerID, StartMs: cursor, EndMs: iv.StartMs, DurationMs: iv.StartMs - cursor})
		}
		if iv.EndMs > cursor {
			cursor = iv.EndMs
		}
	}
	if projectDurationMs > cursor {
		gaps = append(gaps, Gap{ContainerID: containerID, StartMs: cursor, EndMs: projectDurationMs, DurationMs: projectDurationMs - cursor})
	}
	// Leading/trailing gaps are reported regardless of size; interior gaps
	// only when they exceed the threshold. The loop above can't tell which
	// gap is "interior" after the fact, so filter here: the first emitted
	// gap starting at 0 and the last one ending at projectDurationMs are
	// always kept, everything else needs to clear significantGapMs.
	var out []Gap
	for i, g := range gaps {
		isLeading := g.StartMs == 0
		isTrailing := g.EndMs == projectDurationMs && i == len(gaps)-1
		if isLeading || isTrailing || g.DurationMs > significantGapMs {
			out = append(out, g)
		}
	}
	return out
}

// Gaps computes the full per-layer and per-track gap report.
func Gaps(t domain.Timeline) GapReport {
	var report GapReport
	for _, l := range t.Layers {
		merged := timeline.MergeIntervals(sortedClipSpans(l.Clips))
		report.Gaps = append(report.Gaps, gapsWithin(l.ID, merged, t.DurationMs)...)
	}
	for _, tr := range t.AudioTracks {
		spans := make([]timeline.Interval, len(tr.Clips))
		for i, c := range tr.Clips {
			spans[i] = timeline.Interval{StartMs: c.StartMs, EndMs: c.EndMs()}
		}
		merged := timeline.MergeIntervals(spans)
		report.Gaps = append(report.Gaps, gapsWithin(tr.ID, merged, t.DurationMs)...)
	}
	for _, g := range report.Gaps {
		report.TotalCount++
		report.TotalDuration += g.DurationMs
	}
	return report
}
