package analysis

import (
	"github.com/clipstream/timeline-core/internal/domain"
	"github.com/clipstream/timeline-core/internal/timeline"
)

const volumeInconsistencyThreshold = 0.3

// TrackCoverage is the per-track entry of AudioCoverage.
type TrackCoverage struct {
	TrackID      string  `json:"track_id"`
	ClipCount    int     `json:"clip_count"`
	CoverageMs   int     `json:"coverage_ms"`
	CoveragePct  float64 `json:"coverage_pct"`
}

// SilentInterval is a stretch with no clip on any non-muted audio track.
type SilentInterval struct {
	StartMs    int `json:"start_ms"`
	EndMs      int `json:"end_ms"`
	DurationMs int `json:"duration_ms"`
}

type AudioCoverageReport struct {
	Tracks               []TrackCoverage  `json:"tracks"`
	NarrationCoveragePct float64          `json:"narration_coverage_pct"`
	BGMCoveragePct       float64          `json:"bgm_coverage_pct"`
	SilentIntervals      []SilentInterval `json:"silent_intervals"`
}

func coverageMs(intervals []timeline.Interval) int {
	total := 0
	for _, iv := range intervals {
		total += iv.EndMs - iv.StartMs
	}
	return total
}

func pct(part, whole int) float64 {
	if whole == 0 {
		return 0
	}
	return float64(part) / float64(whole) * 100
}

// AudioCoverage computes per-track coverage, overall narration/BGM
// coverage percentages, and silent intervals (no clip on any unmuted
// track) longer than significantGapMs.
func AudioCoverage(t domain.Timeline) AudioCoverageReport {
	var report AudioCoverageReport
	var allUnmutedSpans []timeline.Interval
	var narrationSpans, bgmSpans []timeline.Interval

	for _, tr := range t.AudioTracks {
		merged := timeline.AudioClipCoverage(tr.Clips)
		cov := coverageMs(merged)
		report.Tracks = append(report.Tracks, TrackCoverage{
			TrackID: tr.ID, ClipCount: len(tr.Clips), CoverageMs: cov, CoveragePct: pct(cov, t.DurationMs),
		})
		if !tr.Muted {
			allUnmutedSpans = append(allUnmutedSpans, merged...)
		}
		switch tr.Type {
		case domain.AudioNarration:
			narrationSpans = append(narrationSpans, merged...)
		case domain.AudioBGM:
			bgmSpans = append(bgmSpans, merged...)
		}
	}

	report.NarrationCoveragePct = pct(coverageMs(timeline.MergeIntervals(narrationSpans)), t.DurationMs)
	report.BGMCoveragePct = pct(coverageMs(timeline.MergeIntervals(bgmSpans)), t.DurationMs)

	merged := timeline.MergeIntervals(allUnmutedSpans)
	cursor := 0
	for _, iv := range merged {
		if iv.StartMs > cursor {
			dur := iv.StartMs - cursor
			if dur > significantGapMs {
				report.SilentIntervals = append(report.SilentIntervals, SilentInterval{StartMs: cursor, EndMs: iv.StartMs, DurationMs: dur})
			}
		}
		if iv.EndMs > cursor {
			cursor = iv.EndMs
		}
	}
	if t.DurationMs > cursor && t.DurationMs-cursor > significantGapMs {
		report.SilentIntervals = append(report.SilentIntervals, SilentInterval{StartMs: cursor, EndMs: t.DurationMs, DurationMs: t.DurationMs - cursor})
	}
	return report
}

// TrackVolumeStats is one track's volume spread, used by AudioBalance.
type TrackVolumeStats struct {
	TrackID     string  `json:"track_id"`
	AvgVolume   float64 `json:"avg_volume"`
	MinVolume   float64 `json:"min_volume"`
	MaxVolume   float64 `json:"max_volume"`
	Inconsistent bool   `json:"volume_inconsistent"`
}

// AudioScoreBreakdown is the 0-100 audio_score split into its four
// weighted components.
type AudioScoreBreakdown struct {
	NarrationPts int `json:"narration_pts"`
	BGMPts       int `json:"bgm_pts"`
	VolumePts    int `json:"volume_pts"`
	DuckingPts   int `json:"ducking_pts"`
	Total        int `json:"total"`
}

type AudioBalanceReport struct {
	Coverage            AudioCoverageReport `json:"coverage"`
	Tracks              []TrackVolumeStats  `json:"tracks"`
	CrossTrackIssue     bool                `json:"cross_track_issue"`
	AudioScore          AudioScoreBreakdown `json:"audio_score"`
}

// AudioBalance extends AudioCoverage with per-track volume spread, the
// narration/BGM-overlap-without-ducking finding, and the weighted
// audio_score.
func AudioBalance(t domain.Timeline) AudioBalanceReport {
	coverage := AudioCoverage(t)
	var report AudioBalanceReport
	report.Coverage = coverage

	var narrationTrack, bgmTrack *domain.AudioTrack
	for i := range t.AudioTracks {
		tr := &t.AudioTracks[i]
		if len(tr.Clips) == 0 {
			continue
		}
		minV, maxV, sum := tr.Clips[0].Volume, tr.Clips[0].Volume, 0.0
		for _, c := range tr.Clips {
			sum += c.Volume
			if c.Volume < minV {
				minV = c.Volume
			}
			if c.Volume > maxV {
				maxV = c.Volume
			}
		}
		inconsistent := (maxV - minV) > volumeInconsistencyThreshold
		report.Tracks = append(report.Tracks, TrackVolumeStats{
			TrackID: tr.ID, AvgVolume: sum / float64(len(tr.Clips)), MinVolume: minV, MaxVolume: maxV,
			Inconsistent: inconsistent,
		})
		switch tr.Type {
		case domain.AudioNarration:
			narrationTrack = tr
		case domain.AudioBGM:
			bgmTrack = tr
		}
	}

	duckingEnabled := false
	if narrationTrack != nil && bgmTrack != nil {
		narrationSpans := timeline.AudioClipCoverage(narrationTrack.Clips)
		bgmSpans := timeline.AudioClipCoverage(bgmTrack.Clips)
		overlaps := false
		for _, n := range narrationSpans {
			for _, b := range bgmSpans {
				if n.StartMs < b.EndMs && b.StartMs < n.EndMs {
					overlaps = true
				}
			}
		}
		duckingEnabled = bgmTrack.Ducking != nil && bgmTrack.Ducking.Enabled
		report.CrossTrackIssue = overlaps && !duckingEnabled
	}

	report.AudioScore = scoreAudio(coverage, report.Tracks, duckingEnabled, report.CrossTrackIssue)
	return report
}

func scoreAudio(coverage AudioCoverageReport, tracks []TrackVolumeStats, duckingEnabled, crossTrackIssue bool) AudioScoreBreakdown {
	var b AudioScoreBreakdown

	// Narration coverage: full 30 at >= 80% coverage, scaled below that.
	if coverage.NarrationCoveragePct >= 80 {
		b.NarrationPts = 30
	} else {
		b.NarrationPts = int(30 * coverage.NarrationCoveragePct / 80)
	}

	// BGM presence: full 20 whenever any BGM coverage exists at all.
	if coverage.BGMCoveragePct > 0 {
		b.BGMPts = 20
	}

	// Volume consistency: full 25 unless any track flags inconsistency.
	b.VolumePts = 25
	for _, tr := range tracks {
		if tr.Inconsistent {
			b.VolumePts = 0
			break
		}
	}

	// Ducking: full 25 when enabled and no unducked narration/BGM overlap.
	if duckingEnabled && !crossTrackIssue {
		b.DuckingPts = 25
	}

	b.Total = b.NarrationPts + b.BGMPts + b.VolumePts + b.DuckingPts
	return b
}
