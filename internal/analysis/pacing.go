package analysis

import "github.com/clipstream/timeline-core/internal/domain"

const (
	fastClipThresholdMs = 2000
	slowClipThresholdMs = 15000
)

// Pacing summarizes clip-length distribution across all layers.
type Pacing struct {
	AvgClipDurationMs int           `json:"avg_clip_duration_ms"`
	ShortestClip      *ClipRef      `json:"shortest_clip,omitempty"`
	LongestClip       *ClipRef      `json:"longest_clip,omitempty"`
	TooFast           bool          `json:"too_fast"`
	TooSlow           bool          `json:"too_slow"`
}

// ClipRef names a clip and the layer it lives on.
type ClipRef struct {
	ClipID     string `json:"clip_id"`
	LayerID    string `json:"layer_id"`
	DurationMs int    `json:"duration_ms"`
}

// Pace computes the pacing report: too_fast when more than half of clips
// run shorter than 2s, too_slow when more than 30% run longer than 15s.
func Pace(t domain.Timeline) Pacing {
	var p Pacing
	total, fastCount, slowCount := 0, 0, 0
	sum := 0
	for _, l := range t.Layers {
		for _, c := range l.Clips {
			total++
			sum += c.DurationMs
			ref := ClipRef{ClipID: c.ID, LayerID: l.ID, DurationMs: c.DurationMs}
			if p.ShortestClip == nil || c.DurationMs < p.ShortestClip.DurationMs {
				p.ShortestClip = &ref
			}
			if p.LongestClip == nil || c.DurationMs > p.LongestClip.DurationMs {
				p.LongestClip = &ref
			}
			if c.DurationMs < fastClipThresholdMs {
				fastCount++
			}
			if c.DurationMs > slowClipThresholdMs {
				slowCount++
			}
		}
	}
	if total == 0 {
		return p
	}
	p.AvgClipDurationMs = sum / total
	p.TooFast = float64(fastCount)/float64(total) > 0.5
	p.TooSlow = float64(slowCount)/float64(total) > 0.3
	return p
}
