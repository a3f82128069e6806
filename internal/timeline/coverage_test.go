package timeline

import (
	"reflect"
	"testing"

	"github.com/clipstream/timeline-core/internal/domain"
)

func TestMergeIntervalsOverlapping(t *testing.T) {
	got := MergeIntervals([]Interval{
		{StartMs: 0, EndMs: 1000},
		{StartMs: 500, EndMs: 1500},
		{StartMs: 2000, EndMs: 3000},
	})
	want := []Interval{{StartMs: 0, EndMs: 1500}, {StartMs: 2000, EndMs: 3000}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("MergeIntervals: want=%+v got=%+v", want, got)
	}
}

func TestMergeIntervalsTouching(t *testing.T) {
	got := MergeIntervals([]Interval{
		{StartMs: 0, EndMs: 1000},
		{StartMs: 1000, EndMs: 2000},
	})
	want := []Interval{{StartMs: 0, EndMs: 2000}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("MergeIntervals touching: want=%+v got=%+v", want, got)
	}
}

func TestMergeIntervalsEmpty(t *testing.T) {
	if got := MergeIntervals(nil); got != nil {
		t.Fatalf("MergeIntervals empty: want=nil got=%+v", got)
	}
}

func TestOverlapsDetectsConflict(t *testing.T) {
	layer := &domain.Layer{Clips: []domain.Clip{
		{ID: "c1", StartMs: 0, DurationMs: 1000},
	}}
	conflictID, ok := Overlaps(layer, 500, 1000, "")
	if !ok || conflictID != "c1" {
		t.Fatalf("Overlaps: want conflict with c1 got ok=%v id=%s", ok, conflictID)
	}
}

func TestOverlapsExcludesSelf(t *testing.T) {
	layer := &domain.Layer{Clips: []domain.Clip{
		{ID: "c1", StartMs: 0, DurationMs: 1000},
	}}
	_, ok := Overlaps(layer, 0, 1000, "c1")
	if ok {
		t.Fatalf("Overlaps: want no conflict when excluding self, got conflict")
	}
}

func TestOverlapsAdjacentClipsDoNotConflict(t *testing.T) {
	layer := &domain.Layer{Clips: []domain.Clip{
		{ID: "c1", StartMs: 0, DurationMs: 1000},
	}}
	_, ok := Overlaps(layer, 1000, 500, "")
	if ok {
		t.Fatalf("Overlaps: want adjacent clips not to conflict, got conflict")
	}
}

func TestRecomputeDurationMaxAcrossClipsAndAudio(t *testing.T) {
	tl := &domain.Timeline{
		Layers: []domain.Layer{
			{Clips: []domain.Clip{{StartMs: 0, DurationMs: 1000}}},
		},
		AudioTracks: []domain.AudioTrack{
			{Clips: []domain.AudioClip{{StartMs: 500, DurationMs: 2000}}},
		},
	}
	RecomputeDuration(tl)
	if tl.DurationMs != 2500 {
		t.Fatalf("RecomputeDuration: want=2500 got=%d", tl.DurationMs)
	}
}

func TestRecomputeDurationEmptyTimeline(t *testing.T) {
	tl := &domain.Timeline{}
	RecomputeDuration(tl)
	if tl.DurationMs != 0 {
		t.Fatalf("RecomputeDuration empty: want=0 got=%d", tl.DurationMs)
	}
}
