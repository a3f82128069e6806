package analysis

import "github.com/clipstream/timeline-core/internal/domain"

// CategoryScore is one of the four weighted quality-score categories.
type CategoryScore struct {
	Name   string `json:"name"`
	Score  int    `json:"score"`
	Weight int    `json:"weight"`
	Detail string `json:"detail"`
}

type QualityReport struct {
	Total      int             `json:"total"`
	Categories []CategoryScore `json:"categories"`
}

func backgroundCoveragePct(t domain.Timeline) float64 {
	bg := backgroundLayer(t)
	if bg == nil {
		return 0
	}
	spans := sortedClipSpans(bg.Clips)
	cursor := 0
	covered := 0
	for _, s := range spans {
		start := s.StartMs
		if start < cursor {
			start = cursor
		}
		if s.EndMs > start {
			covered += s.EndMs - start
		}
		if s.EndMs > cursor {
			cursor = s.EndMs
		}
	}
	return pct(covered, t.DurationMs)
}

// Quality computes the four 0-25 weighted categories and their sum.
func Quality(t domain.Timeline) QualityReport {
	var r QualityReport

	bgPct := backgroundCoveragePct(t)
	bgScore := int(25 * bgPct / 100)
	if bgScore > 25 {
		bgScore = 25
	}
	r.Categories = append(r.Categories, CategoryScore{
		Name: "background_coverage", Score: bgScore, Weight: 25,
		Detail: "background layer covers the full project duration when this is 25",
	})

	audio := AudioCoverage(t)
	var narrationScore int
	if audio.NarrationCoveragePct >= 80 {
		narrationScore = 25
	} else {
		narrationScore = int(25 * audio.NarrationCoveragePct / 80)
	}
	r.Categories = append(r.Categories, CategoryScore{
		Name: "narration_coverage", Score: narrationScore, Weight: 25,
		Detail: "full marks at 80% or greater narration coverage",
	})

	gaps := Gaps(t)
	gapScore := 25
	if gaps.TotalCount > 0 {
		gapScore = 0
	}
	r.Categories = append(r.Categories, CategoryScore{
		Name: "gap_free", Score: gapScore, Weight: 25,
		Detail: "full marks when there are zero significant gaps",
	})

	pacing := Pace(t)
	pacingScore := 25
	if pacing.TooFast || pacing.TooSlow {
		pacingScore = 0
	}
	r.Categories = append(r.Categories, CategoryScore{
		Name: "pacing", Score: pacingScore, Weight: 25,
		Detail: "full marks when no pacing issues are flagged",
	})

	for _, c := range r.Categories {
		r.Total += c.Score
	}
	return r
}
