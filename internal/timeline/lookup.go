// Package timeline implements pure in-memory operations over a
// domain.Timeline tree — id lookup with prefix matching, coverage interval
// merging, and duration_ms recomputation. It holds no lock of its own;
// callers are expected to already hold the sequence lock before mutating
// the tree this package reads.
package timeline

import "github.com/clipstream/timeline-core/internal/domain"

// matches reports whether searchID resolves to storedID: an exact match, or
// storedID beginning with searchID (prefix match).
func matches(storedID, searchID string) bool {
	if storedID == searchID {
		return true
	}
	return len(storedID) > len(searchID) && storedID[:len(searchID)] == searchID
}

// FindClip locates a clip by id, returning the clip, its index, and the
// containing layer's index. An exact id match always wins over a prefix
// match, even if the prefix match is encountered first in iteration order;
// among multiple prefix candidates, the first in iteration order wins.
func FindClip(t *domain.Timeline, searchID string) (clip *domain.Clip, layerIdx, clipIdx int, ok bool) {
	var prefixLayer, prefixClip int
	havePrefix := false
	for li := range t.Layers {
		for ci := range t.Layers[li].Clips {
			c := &t.Layers[li].Clips[ci]
			if c.ID == searchID {
				return c, li, ci, true
			}
			if !havePrefix && matches(c.ID, searchID) {
				prefixLayer, prefixClip = li, ci
				havePrefix = true
			}
		}
	}
	if havePrefix {
		return &t.Layers[prefixLayer].Clips[prefixClip], prefixLayer, prefixClip, true
	}
	return nil, 0, 0, false
}

func FindLayer(t *domain.Timeline, searchID string) (layer *domain.Layer, idx int, ok bool) {
	var prefixIdx int
	havePrefix := false
	for i := range t.Layers {
		if t.Layers[i].ID == searchID {
			return &t.Layers[i], i, true
		}
		if !havePrefix && matches(t.Layers[i].ID, searchID) {
			prefixIdx = i
			havePrefix = true
		}
	}
	if havePrefix {
		return &t.Layers[prefixIdx], prefixIdx, true
	}
	return nil, 0, false
}

func FindAudioTrack(t *domain.Timeline, searchID string) (track *domain.AudioTrack, idx int, ok bool) {
	var prefixIdx int
	havePrefix := false
	for i := range t.AudioTracks {
		if t.AudioTracks[i].ID == searchID {
			return &t.AudioTracks[i], i, true
		}
		if !havePrefix && matches(t.AudioTracks[i].ID, searchID) {
			prefixIdx = i
			havePrefix = true
		}
	}
	if havePrefix {
		return &t.AudioTracks[prefixIdx], prefixIdx, true
	}
	return nil, 0, false
}

// FindAudioClip locates an audio clip by id, returning the clip and the
// indices of its containing track and itself within that track.
func FindAudioClip(t *domain.Timeline, searchID string) (clip *domain.AudioClip, trackIdx, clipIdx int, ok bool) {
	var prefixTrack, prefixClip int
	havePrefix := false
	for ti := range t.AudioTracks {
		for ci := range t.AudioTracks[ti].Clips {
			c := &t.AudioTracks[ti].Clips[ci]
			if c.ID == searchID {
				return c, ti, ci, true
			}
			if !havePrefix && matches(c.ID, searchID) {
				prefixTrack, prefixClip = ti, ci
				havePrefix = true
			}
		}
	}
	if havePrefix {
		return &t.AudioTracks[prefixTrack].Clips[prefixClip], prefixTrack, prefixClip, true
	}
	return nil, 0, 0, false
}

func FindMarker(t *domain.Timeline, searchID string) (marker *domain.Marker, idx int, ok bool) {
	var prefixIdx int
	havePrefix := false
	for i := range t.Markers {
		if t.Markers[i].ID == searchID {
			return &t.Markers[i], i, true
		}
		if !havePrefix && matches(t.Markers[i].ID, searchID) {
			prefixIdx = i
			havePrefix = true
		}
	}
	if havePrefix {
		return &t.Markers[prefixIdx], prefixIdx, true
	}
	return nil, 0, false
}
