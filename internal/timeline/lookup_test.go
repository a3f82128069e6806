package timeline

import (
	"testing"

	"github.com/clipstream/timeline-core/internal/domain"
)

func sampleTimeline() *domain.Timeline {
	return &domain.Timeline{
		Layers: []domain.Layer{
			{
				ID:   "layer-bg",
				Type: domain.LayerBackground,
				Clips: []domain.Clip{
					{ID: "clip-abc123", StartMs: 0, DurationMs: 1000},
					{ID: "clip-abc999", StartMs: 1000, DurationMs: 500},
				},
			},
		},
		AudioTracks: []domain.AudioTrack{
			{
				ID: "track-narr",
				Clips: []domain.AudioClip{
					{ID: "aclip-1", StartMs: 0, DurationMs: 2000},
				},
			},
		},
		Markers: []domain.Marker{
			{ID: "marker-1", TimeMs: 500},
		},
	}
}

func TestFindClipExactMatchWinsOverPrefix(t *testing.T) {
	tl := sampleTimeline()
	// "clip-abc123" is itself a valid prefix of nothing else, but searching
	// for the full id must return that exact clip even though a shorter
	// prefix ("clip-abc") would match two candidates.
	c, _, _, ok := FindClip(tl, "clip-abc123")
	if !ok {
		t.Fatalf("FindClip: want found got not found")
	}
	if c.ID != "clip-abc123" {
		t.Fatalf("FindClip id: want=clip-abc123 got=%s", c.ID)
	}
}

func TestFindClipPrefixMatchFirstInIterationOrder(t *testing.T) {
	tl := sampleTimeline()
	c, _, _, ok := FindClip(tl, "clip-abc")
	if !ok {
		t.Fatalf("FindClip: want found got not found")
	}
	if c.ID != "clip-abc123" {
		t.Fatalf("FindClip prefix result: want=clip-abc123 got=%s", c.ID)
	}
}

func TestFindClipNotFound(t *testing.T) {
	tl := sampleTimeline()
	_, _, _, ok := FindClip(tl, "nonexistent")
	if ok {
		t.Fatalf("FindClip: want not found got found")
	}
}

func TestFindLayerExact(t *testing.T) {
	tl := sampleTimeline()
	l, _, ok := FindLayer(tl, "layer-bg")
	if !ok || l.ID != "layer-bg" {
		t.Fatalf("FindLayer: want=layer-bg got ok=%v", ok)
	}
}

func TestFindAudioClip(t *testing.T) {
	tl := sampleTimeline()
	c, ti, ci, ok := FindAudioClip(tl, "aclip-1")
	if !ok {
		t.Fatalf("FindAudioClip: want found got not found")
	}
	if c.ID != "aclip-1" || ti != 0 || ci != 0 {
		t.Fatalf("FindAudioClip: want id=aclip-1 ti=0 ci=0 got id=%s ti=%d ci=%d", c.ID, ti, ci)
	}
}

func TestFindMarker(t *testing.T) {
	tl := sampleTimeline()
	m, _, ok := FindMarker(tl, "marker-1")
	if !ok || m.TimeMs != 500 {
		t.Fatalf("FindMarker: want time_ms=500 got ok=%v m=%+v", ok, m)
	}
}
