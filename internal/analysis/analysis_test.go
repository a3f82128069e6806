package analysis

import (
	"testing"

	"github.com/clipstream/timeline-core/internal/domain"
)

func timelineWithGap() domain.Timeline {
	return domain.Timeline{
		Layers: []domain.Layer{
			{ID: "L1", Type: domain.LayerContent, Clips: []domain.Clip{
				{ID: "c1", StartMs: 0, DurationMs: 1000},
				{ID: "c2", StartMs: 2000, DurationMs: 1000}, // 1000ms interior gap
			}},
		},
		DurationMs: 5000, // 2000ms trailing gap
	}
}

func TestGapsReportsInteriorAndTrailing(t *testing.T) {
	report := Gaps(timelineWithGap())
	if report.TotalCount != 2 {
		t.Fatalf("Gaps total count: want=2 got=%d (%+v)", report.TotalCount, report.Gaps)
	}
	if report.TotalDuration != 3000 {
		t.Fatalf("Gaps total duration: want=3000 got=%d", report.TotalDuration)
	}
}

func TestGapsIgnoresSmallInteriorGaps(t *testing.T) {
	tl := domain.Timeline{
		Layers: []domain.Layer{
			{ID: "L1", Clips: []domain.Clip{
				{ID: "c1", StartMs: 0, DurationMs: 1000},
				{ID: "c2", StartMs: 1050, DurationMs: 1000}, // 50ms gap, below threshold
			}},
		},
		DurationMs: 2050,
	}
	report := Gaps(tl)
	if report.TotalCount != 0 {
		t.Fatalf("Gaps small interior gap: want=0 got=%d (%+v)", report.TotalCount, report.Gaps)
	}
}

func TestPaceFlagsTooFast(t *testing.T) {
	tl := domain.Timeline{Layers: []domain.Layer{
		{ID: "L1", Clips: []domain.Clip{
			{ID: "c1", StartMs: 0, DurationMs: 500},
			{ID: "c2", StartMs: 500, DurationMs: 500},
			{ID: "c3", StartMs: 1000, DurationMs: 10000},
		}},
	}}
	p := Pace(tl)
	if !p.TooFast {
		t.Fatalf("Pace too_fast: want=true got=false (2/3 clips under 2s)")
	}
	if p.TooSlow {
		t.Fatalf("Pace too_slow: want=false got=true")
	}
}

func TestAudioCoverageComputesPercentagesAndSilence(t *testing.T) {
	tl := domain.Timeline{
		AudioTracks: []domain.AudioTrack{
			{ID: "T1", Type: domain.AudioNarration, Clips: []domain.AudioClip{
				{ID: "a1", StartMs: 0, DurationMs: 4000},
			}},
		},
		DurationMs: 5000,
	}
	report := AudioCoverage(tl)
	if report.NarrationCoveragePct != 80 {
		t.Fatalf("AudioCoverage narration pct: want=80 got=%f", report.NarrationCoveragePct)
	}
	if len(report.SilentIntervals) != 1 || report.SilentIntervals[0].DurationMs != 1000 {
		t.Fatalf("AudioCoverage silent intervals: want 1 of 1000ms got=%+v", report.SilentIntervals)
	}
}

func TestAudioBalanceFlagsVolumeInconsistencyAndScores(t *testing.T) {
	tl := domain.Timeline{
		AudioTracks: []domain.AudioTrack{
			{ID: "T1", Type: domain.AudioNarration, Clips: []domain.AudioClip{
				{ID: "a1", StartMs: 0, DurationMs: 5000, Volume: 0.9},
				{ID: "a2", StartMs: 5000, DurationMs: 5000, Volume: 0.4},
			}},
		},
		DurationMs: 10000,
	}
	report := AudioBalance(tl)
	if len(report.Tracks) != 1 || !report.Tracks[0].Inconsistent {
		t.Fatalf("AudioBalance volume inconsistency: want flagged got=%+v", report.Tracks)
	}
	if report.AudioScore.VolumePts != 0 {
		t.Fatalf("AudioBalance volume score: want=0 got=%d", report.AudioScore.VolumePts)
	}
}

func TestAudioBalanceCrossTrackIssueWithoutDucking(t *testing.T) {
	tl := domain.Timeline{
		AudioTracks: []domain.AudioTrack{
			{ID: "T1", Type: domain.AudioNarration, Clips: []domain.AudioClip{{ID: "a1", StartMs: 0, DurationMs: 5000, Volume: 0.8}}},
			{ID: "T2", Type: domain.AudioBGM, Clips: []domain.AudioClip{{ID: "a2", StartMs: 0, DurationMs: 5000, Volume: 0.5}}},
		},
		DurationMs: 5000,
	}
	report := AudioBalance(tl)
	if !report.CrossTrackIssue {
		t.Fatalf("AudioBalance cross_track_issue: want=true got=false")
	}
	if report.AudioScore.DuckingPts != 0 {
		t.Fatalf("AudioBalance ducking score: want=0 got=%d", report.AudioScore.DuckingPts)
	}
}

func TestSectionsDelimitedByGapAndMarker(t *testing.T) {
	tl := domain.Timeline{
		Layers: []domain.Layer{
			{ID: "L1", Type: domain.LayerContent, Clips: []domain.Clip{
				{ID: "c1", StartMs: 0, DurationMs: 1000},
				{ID: "c2", StartMs: 3000, DurationMs: 1000}, // 2000ms gap > threshold
			}},
		},
		Markers:    []domain.Marker{{ID: "m1", TimeMs: 3000, Name: "Intro"}},
		DurationMs: 4000,
	}
	sections := Sections(tl)
	if len(sections) < 2 {
		t.Fatalf("Sections: want at least 2 sections got=%d (%+v)", len(sections), sections)
	}
	found := false
	for _, s := range sections {
		if s.Name == "Intro" {
			found = true
		}
	}
	if !found {
		t.Fatalf("Sections: want marker name 'Intro' to propagate, got=%+v", sections)
	}
}

func TestQualityScoresWithinBounds(t *testing.T) {
	q := Quality(timelineWithGap())
	if q.Total < 0 || q.Total > 100 {
		t.Fatalf("Quality total: want within [0,100] got=%d", q.Total)
	}
	if len(q.Categories) != 4 {
		t.Fatalf("Quality categories: want=4 got=%d", len(q.Categories))
	}
}

func TestSuggestProducesFixedShapeWithIdempotencyKey(t *testing.T) {
	tl := timelineWithGap()
	gaps := Gaps(tl)
	pacing := Pace(tl)
	audio := AudioBalance(tl)
	quality := Quality(tl)
	suggestions := Suggest("proj-1", tl, gaps, pacing, audio, quality)
	if len(suggestions) == 0 {
		t.Fatalf("Suggest: want at least one suggestion for a gappy timeline")
	}
	for _, s := range suggestions {
		if s.SuggestedOperation == nil {
			continue
		}
		if s.SuggestedOperation.Headers["Idempotency-Key"] == "" {
			t.Fatalf("Suggest: mutating suggestion missing Idempotency-Key header: %+v", s)
		}
		if s.SuggestedOperation.Endpoint == "" {
			t.Fatalf("Suggest: suggestion missing endpoint: %+v", s)
		}
	}
}

func TestSuggestPacingTooFastIsInformationalOnly(t *testing.T) {
	tl := domain.Timeline{Layers: []domain.Layer{
		{ID: "L1", Clips: []domain.Clip{
			{ID: "c1", StartMs: 0, DurationMs: 500},
			{ID: "c2", StartMs: 500, DurationMs: 500},
		}},
	}, DurationMs: 1000}
	pacing := Pace(tl)
	suggestions := Suggest("", tl, Gaps(tl), pacing, AudioBalance(tl), Quality(tl))
	var foundInformational bool
	for _, s := range suggestions {
		if s.Category == "pacing_too_fast" {
			foundInformational = true
			if s.SuggestedOperation != nil {
				t.Fatalf("Suggest pacing_too_fast: want nil suggested_operation got=%+v", s.SuggestedOperation)
			}
		}
	}
	if !foundInformational {
		t.Fatalf("Suggest: want a pacing_too_fast suggestion for this timeline")
	}
}
