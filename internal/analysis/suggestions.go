package analysis

import (
	"github.com/google/uuid"

	"github.com/clipstream/timeline-core/internal/domain"
	"github.com/clipstream/timeline-core/internal/routes"
)

type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// SuggestedOperation is an executable fix the caller can issue verbatim.
type SuggestedOperation struct {
	Description string            `json:"description"`
	Endpoint    string            `json:"endpoint"`
	Method      string            `json:"method"`
	Body        map[string]any    `json:"body,omitempty"`
	Headers     map[string]string `json:"headers"`
}

// Suggestion is the fixed shape every finding is reported as.
type Suggestion struct {
	Priority           Priority             `json:"priority"`
	Category           string               `json:"category"`
	Message            string               `json:"message"`
	SuggestedOperation *SuggestedOperation  `json:"suggested_operation"`
}

func idempotencyHeader() map[string]string {
	return map[string]string{"Idempotency-Key": uuid.NewString()}
}

func mutatingOp(description, endpoint, method string, body map[string]any, projectID string) *SuggestedOperation {
	return &SuggestedOperation{
		Description: description,
		Endpoint:    routes.Expand(endpoint, map[string]string{"project_id": projectID}),
		Method:      method,
		Body:        body,
		Headers:     idempotencyHeader(),
	}
}

// Suggest turns the analysis findings into the fixed-shape suggestion list,
// mapping categories to routes and assigning priority per its rules.
// projectID may be empty, in which case the {project_id} placeholder is
// left in the endpoint template.
func Suggest(projectID string, t domain.Timeline, gaps GapReport, pacing Pacing, audio AudioBalanceReport, quality QualityReport) []Suggestion {
	var out []Suggestion

	for _, g := range gaps.Gaps {
		isAudio := false
		for _, tr := range t.AudioTracks {
			if tr.ID == g.ContainerID {
				isAudio = true
				break
			}
		}

		var priority Priority
		switch {
		case g.DurationMs >= 20000:
			priority = PriorityHigh
		case g.DurationMs >= 10000:
			priority = PriorityMedium
		default:
			priority = PriorityLow
		}

		if isAudio {
			out = append(out, Suggestion{
				Priority: priority, Category: "gap_audio",
				Message:            "audio gap detected on " + g.ContainerID,
				SuggestedOperation: mutatingOp("add an audio clip to fill this gap", routes.AudioClipsCreate, "POST", map[string]any{"audio_track_id": g.ContainerID, "start_ms": g.StartMs}, projectID),
			})
		} else {
			out = append(out, Suggestion{
				Priority: priority, Category: "gap_visual",
				Message:            "visual gap detected on " + g.ContainerID,
				SuggestedOperation: mutatingOp("add a clip to fill this gap", routes.ClipsCreate, "POST", map[string]any{"layer_id": g.ContainerID, "start_ms": g.StartMs}, projectID),
			})
		}
	}

	bgPct := backgroundCoveragePct(t)
	if bgPct < 90 {
		priority := PriorityMedium
		if bgPct < 50 {
			priority = PriorityHigh
		}
		out = append(out, Suggestion{
			Priority: priority, Category: "missing_background",
			Message:            "background coverage is below 90%",
			SuggestedOperation: mutatingOp("add a background clip", routes.ClipsCreate, "POST", map[string]any{"layer_type": "background"}, projectID),
		})
	}

	if audio.Coverage.NarrationCoveragePct < 80 {
		priority := PriorityHigh
		out = append(out, Suggestion{
			Priority: priority, Category: "low_narration",
			Message:            "narration coverage is below 80%",
			SuggestedOperation: mutatingOp("add a narration clip", routes.AudioClipsCreate, "POST", map[string]any{"track_type": "narration"}, projectID),
		})
	}

	for _, s := range audio.Coverage.SilentIntervals {
		priority := PriorityLow
		if s.DurationMs >= 20000 {
			priority = PriorityHigh
		} else if s.DurationMs >= 10000 {
			priority = PriorityMedium
		}
		out = append(out, Suggestion{
			Priority: priority, Category: "silence",
			Message:            "silent interval detected",
			SuggestedOperation: mutatingOp("add audio to fill the silent interval", routes.AudioClipsCreate, "POST", map[string]any{"start_ms": s.StartMs}, projectID),
		})
	}

	if pacing.TooSlow && pacing.LongestClip != nil {
		longest := pacing.LongestClip
		splitAt := longest.DurationMs / 2
		for _, l := range t.Layers {
			for _, c := range l.Clips {
				if c.ID == longest.ClipID {
					splitAt = c.StartMs + c.DurationMs/2
				}
			}
		}
		splitEndpoint := routes.Expand(routes.ClipSplit, map[string]string{"clip_id": longest.ClipID})
		out = append(out, Suggestion{
			Priority: PriorityLow, Category: "pacing_too_slow",
			Message: "some clips run long enough to slow pacing",
			SuggestedOperation: mutatingOp("split the longest clip", splitEndpoint, "POST",
				map[string]any{"split_at_ms": splitAt}, projectID),
		})
	}

	if pacing.TooFast {
		// Informational only — no executable fix.
		out = append(out, Suggestion{
			Priority: PriorityLow, Category: "pacing_too_fast",
			Message:            "many clips are shorter than 2s; pacing may feel rushed",
			SuggestedOperation: nil,
		})
	}

	return out
}
