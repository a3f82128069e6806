// Package read implements the hierarchical read API: three disclosure
// levels sized for an AI context window — L1 project overview, L2 timeline
// structure/at-time/asset catalog, L3 clip detail — plus the shared
// interval-coverage helper they build on.
package read

import (
	"context"
	"sort"
	"time"

	"github.com/clipstream/timeline-core/internal/assetcatalog"
	"github.com/clipstream/timeline-core/internal/coreerr"
	"github.com/clipstream/timeline-core/internal/domain"
	"github.com/clipstream/timeline-core/internal/timeline"
)

// ProjectOverview is L1 (~300 tokens): just enough to decide whether to
// drill into L2/L3.
type ProjectOverview struct {
	ProjectID         string    `json:"project_id"`
	Name              string    `json:"name"`
	DurationMs        int       `json:"duration_ms"`
	Width             int       `json:"width"`
	Height            int       `json:"height"`
	FPS               float64   `json:"fps"`
	Status            string    `json:"status"`
	LayerCount        int       `json:"layer_count"`
	AudioTrackCount   int       `json:"audio_track_count"`
	TotalVideoClips   int       `json:"total_video_clips"`
	TotalAudioClips   int       `json:"total_audio_clips"`
	TotalAssetsUsed   int       `json:"total_assets_used"`
	LastModified      time.Time `json:"last_modified"`
}

// status is derived: a timeline with at least one clip (visual or audio)
// is "ready"; an empty timeline is "empty". There is no richer status
// machine in the data model, so this is the only distinction the overview
// can make without guessing.
func status(t domain.Timeline) string {
	for _, l := range t.Layers {
		if len(l.Clips) > 0 {
			return "ready"
		}
	}
	for _, tr := range t.AudioTracks {
		if len(tr.Clips) > 0 {
			return "ready"
		}
	}
	return "empty"
}

func Overview(p domain.Project) ProjectOverview {
	t := p.TimelineData
	videoClips, audioClips := 0, 0
	assetSet := map[string]struct{}{}
	for _, l := range t.Layers {
		videoClips += len(l.Clips)
		for _, c := range l.Clips {
			if c.AssetID != nil {
				assetSet[*c.AssetID] = struct{}{}
			}
		}
	}
	for _, tr := range t.AudioTracks {
		audioClips += len(tr.Clips)
		for _, c := range tr.Clips {
			assetSet[c.AssetID] = struct{}{}
		}
	}
	return ProjectOverview{
		ProjectID:       p.ID,
		Name:            p.Name,
		DurationMs:      t.DurationMs,
		Width:           p.Width,
		Height:          p.Height,
		FPS:             p.FPS,
		Status:          status(t),
		LayerCount:      len(t.Layers),
		AudioTrackCount: len(t.AudioTracks),
		TotalVideoClips: videoClips,
		TotalAudioClips: audioClips,
		TotalAssetsUsed: len(assetSet),
		LastModified:    p.UpdatedAt,
	}
}

// Span is a merged coverage interval, shared by layers and tracks in L2's
// timeline structure shape.
type Span struct {
	StartMs int `json:"start_ms"`
	EndMs   int `json:"end_ms"`
}

// LayerSummary is one entry of L2's timeline structure response.
type LayerSummary struct {
	ID           string         `json:"id"`
	Name         string         `json:"name"`
	Type         string         `json:"type"`
	ClipCount    int            `json:"clip_count"`
	TimeCoverage []Span         `json:"time_coverage"`
	Visible      bool           `json:"visible"`
	Locked       bool           `json:"locked"`
}

// TrackSummary is one entry of L2's timeline structure response for audio.
type TrackSummary struct {
	ID             string  `json:"id"`
	Name           string  `json:"name"`
	Type           string  `json:"type"`
	ClipCount      int     `json:"clip_count"`
	TimeCoverage   []Span  `json:"time_coverage"`
	Muted          bool    `json:"muted"`
	Volume         float64 `json:"volume"`
	DuckingEnabled bool    `json:"ducking_enabled"`
}

type Structure struct {
	Layers      []LayerSummary `json:"layers"`
	AudioTracks []TrackSummary `json:"audio_tracks"`
}

func toSpans(intervals []timeline.Interval) []Span {
	out := make([]Span, len(intervals))
	for i, iv := range intervals {
		out[i] = Span{StartMs: iv.StartMs, EndMs: iv.EndMs}
	}
	return out
}

func TimelineStructure(t domain.Timeline) Structure {
	var s Structure
	for _, l := range t.Layers {
		s.Layers = append(s.Layers, LayerSummary{
			ID: l.ID, Name: l.Name, Type: string(l.Type), ClipCount: len(l.Clips),
			TimeCoverage: toSpans(timeline.ClipCoverage(l.Clips)), Visible: l.Visible, Locked: l.Locked,
		})
	}
	for _, tr := range t.AudioTracks {
		duckingEnabled := tr.Ducking != nil && tr.Ducking.Enabled
		s.AudioTracks = append(s.AudioTracks, TrackSummary{
			ID: tr.ID, Name: tr.Name, Type: string(tr.Type), ClipCount: len(tr.Clips),
			TimeCoverage: toSpans(timeline.AudioClipCoverage(tr.Clips)), Muted: tr.Muted, Volume: tr.Volume,
			DuckingEnabled: duckingEnabled,
		})
	}
	return s
}

// ActiveEntry is one clip or audio clip active at the queried instant.
type ActiveEntry struct {
	ID              string  `json:"id"`
	Type            string  `json:"type"` // "clip" | "audio_clip"
	ContainerID     string  `json:"layer_or_track_id"`
	ContainerName   string  `json:"layer_or_track_name"`
	StartMs         int     `json:"start_ms"`
	EndMs           int     `json:"end_ms"`
	ProgressPercent float64 `json:"progress_percent"`
}

type AtTimeResult struct {
	Active      []ActiveEntry `json:"active"`
	NextEventMs *int          `json:"next_event_ms,omitempty"`
}

// AtTime reports everything active at t and the next clip boundary after
// it (L2 timeline-at-time(t)).
func AtTime(t domain.Timeline, atMs int) AtTimeResult {
	var res AtTimeResult
	nextEvent := -1
	considerBoundary := func(ms int) {
		if ms > atMs && (nextEvent == -1 || ms < nextEvent) {
			nextEvent = ms
		}
	}

	for _, l := range t.Layers {
		for _, c := range l.Clips {
			end := c.EndMs()
			considerBoundary(c.StartMs)
			considerBoundary(end)
			if atMs >= c.StartMs && atMs < end {
				progress := 0.0
				if c.DurationMs > 0 {
					progress = float64(atMs-c.StartMs) / float64(c.DurationMs) * 100
				}
				res.Active = append(res.Active, ActiveEntry{
					ID: c.ID, Type: "clip", ContainerID: l.ID, ContainerName: l.Name,
					StartMs: c.StartMs, EndMs: end, ProgressPercent: progress,
				})
			}
		}
	}
	for _, tr := range t.AudioTracks {
		for _, c := range tr.Clips {
			end := c.EndMs()
			considerBoundary(c.StartMs)
			considerBoundary(end)
			if atMs >= c.StartMs && atMs < end {
				progress := 0.0
				if c.DurationMs > 0 {
					progress = float64(atMs-c.StartMs) / float64(c.DurationMs) * 100
				}
				res.Active = append(res.Active, ActiveEntry{
					ID: c.ID, Type: "audio_clip", ContainerID: tr.ID, ContainerName: tr.Name,
					StartMs: c.StartMs, EndMs: end, ProgressPercent: progress,
				})
			}
		}
	}
	if nextEvent != -1 {
		res.NextEventMs = &nextEvent
	}
	return res
}

// AssetEntry is one row of L2's asset catalog.
type AssetEntry struct {
	ID         string                 `json:"id"`
	Name       string                 `json:"name"`
	Type       assetcatalog.AssetType `json:"type"`
	Subtype    string                 `json:"subtype,omitempty"`
	DurationMs int                    `json:"duration_ms"`
	Width      int                    `json:"width,omitempty"`
	Height     int                    `json:"height,omitempty"`
	UsageCount int                    `json:"usage_count"`
}

// AssetCatalogView resolves every asset_id referenced by t against cat and
// counts references; assets with no catalog entry are skipped rather than
// surfaced with zero-value metadata.
func AssetCatalogView(ctx context.Context, t domain.Timeline, cat assetcatalog.Catalog) ([]AssetEntry, error) {
	usage := map[string]int{}
	order := []string{}
	record := func(id string) {
		if _, seen := usage[id]; !seen {
			order = append(order, id)
		}
		usage[id]++
	}
	for _, l := range t.Layers {
		for _, c := range l.Clips {
			if c.AssetID != nil {
				record(*c.AssetID)
			}
		}
	}
	for _, tr := range t.AudioTracks {
		for _, c := range tr.Clips {
			record(c.AssetID)
		}
	}

	var out []AssetEntry
	for _, id := range order {
		meta, ok, err := cat.Lookup(ctx, id)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		out = append(out, AssetEntry{
			ID: meta.ID, Name: meta.Name, Type: meta.Type, Subtype: meta.Subtype,
			DurationMs: meta.DurationMs, Width: meta.Width, Height: meta.Height,
			UsageCount: usage[id],
		})
	}
	return out, nil
}

// Neighbor is a previous/next clip reference in L3's clip detail shape.
type Neighbor struct {
	ID      string `json:"id"`
	StartMs int    `json:"start_ms"`
	EndMs   int    `json:"end_ms"`
	GapMs   int    `json:"gap_ms"`
}

// ClipDetail is L3 (~400 tokens): everything about one clip plus its
// same-layer neighbors.
type ClipDetail struct {
	ID            string            `json:"id"`
	LayerID       string            `json:"layer_id"`
	AssetID       *string           `json:"asset_id,omitempty"`
	StartMs       int               `json:"start_ms"`
	DurationMs    int               `json:"duration_ms"`
	EndMs         int               `json:"end_ms"`
	InPointMs     int               `json:"in_point_ms"`
	OutPointMs    *int              `json:"out_point_ms,omitempty"`
	Transform     domain.Transform  `json:"transform"`
	Effects       domain.Effects    `json:"effects"`
	TransitionIn  *domain.Transition `json:"transition_in,omitempty"`
	TransitionOut *domain.Transition `json:"transition_out,omitempty"`
	TextContent   *string           `json:"text_content,omitempty"`
	GroupID       *string           `json:"group_id,omitempty"`
	PreviousClip  *Neighbor         `json:"previous_clip,omitempty"`
	NextClip      *Neighbor         `json:"next_clip,omitempty"`
}

// ClipDetailByID resolves searchID via the same prefix-match rule reads use
// elsewhere and builds its L3 view, including same-layer neighbors sorted
// by start_ms.
func ClipDetailByID(t *domain.Timeline, searchID string) (*ClipDetail, *coreerr.Error) {
	clip, layerIdx, _, ok := timeline.FindClip(t, searchID)
	if !ok {
		return nil, coreerr.New(coreerr.CodeClipNotFound, "clip not found").WithField("clip_id")
	}
	layer := t.Layers[layerIdx]
	sorted := append([]domain.Clip(nil), layer.Clips...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].StartMs < sorted[j].StartMs })

	var prev, next *Neighbor
	for i, c := range sorted {
		if c.ID != clip.ID {
			continue
		}
		if i > 0 {
			p := sorted[i-1]
			gap := clip.StartMs - p.EndMs()
			if gap < 0 {
				gap = 0
			}
			prev = &Neighbor{ID: p.ID, StartMs: p.StartMs, EndMs: p.EndMs(), GapMs: gap}
		}
		if i < len(sorted)-1 {
			n := sorted[i+1]
			gap := n.StartMs - clip.EndMs()
			if gap < 0 {
				gap = 0
			}
			next = &Neighbor{ID: n.ID, StartMs: n.StartMs, EndMs: n.EndMs(), GapMs: gap}
		}
		break
	}

	return &ClipDetail{
		ID: clip.ID, LayerID: layer.ID, AssetID: clip.AssetID, StartMs: clip.StartMs,
		DurationMs: clip.DurationMs, EndMs: clip.EndMs(), InPointMs: clip.InPointMs,
		OutPointMs: clip.OutPointMs, Transform: clip.Transform, Effects: clip.Effects,
		TransitionIn: clip.TransitionIn, TransitionOut: clip.TransitionOut,
		TextContent: clip.TextContent, GroupID: clip.GroupID,
		PreviousClip: prev, NextClip: next,
	}, nil
}
