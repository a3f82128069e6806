package dispatch

import (
	"github.com/clipstream/timeline-core/internal/coreerr"
	"github.com/clipstream/timeline-core/internal/domain"
	"github.com/clipstream/timeline-core/internal/timeline"
)

type audioClipAddRollback struct {
	AudioClipID  string `json:"audio_clip_id"`
	AudioTrackID string `json:"audio_track_id"`
}

func applyAudioClipAdd(t *domain.Timeline, op Operation) (*ApplyResult, *coreerr.Error) {
	if op.AudioClip == nil {
		return nil, errMissingField("audio_clip")
	}
	if op.AudioTrackID == "" {
		return nil, errMissingField("audio_track_id")
	}
	track, _, ok := timeline.FindAudioTrack(t, op.AudioTrackID)
	if !ok {
		return nil, coreerr.New(coreerr.CodeAudioTrackNotFound, "audio track not found").WithField("audio_track_id")
	}
	c := *op.AudioClip
	if conflictID, overlap := timeline.AudioOverlaps(track, c.StartMs, c.DurationMs, ""); overlap {
		return nil, coreerr.New(coreerr.CodeClipOverlap, "audio clip overlaps clip "+conflictID).WithField("start_ms")
	}
	track.Clips = append(track.Clips, c)
	return &ApplyResult{
		ChangeDetails:      []ChangeDetail{{EntityType: "audio_clip", EntityID: c.ID, After: c}},
		RollbackData:       audioClipAddRollback{AudioClipID: c.ID, AudioTrackID: track.ID},
		AffectedAudioClips: []string{c.ID},
		Detail:             c,
	}, nil
}

type audioClipMoveRollback struct {
	AudioClipID      string `json:"audio_clip_id"`
	OriginalStartMs  int    `json:"original_start_ms"`
	OriginalTrackID  string `json:"original_track_id"`
	NewStartMs       int    `json:"new_start_ms"`
	NewTrackID       string `json:"new_track_id"`
}

func applyAudioClipMove(t *domain.Timeline, op Operation) (*ApplyResult, *coreerr.Error) {
	if op.AudioClipID == "" {
		return nil, errMissingField("audio_clip_id")
	}
	if op.NewStartMs == nil {
		return nil, errMissingField("new_start_ms")
	}
	clip, trackIdx, clipIdx, ok := timeline.FindAudioClip(t, op.AudioClipID)
	if !ok {
		return nil, coreerr.New(coreerr.CodeAudioClipNotFound, "audio clip not found").WithField("audio_clip_id")
	}
	originalStart := clip.StartMs
	originalTrack := &t.AudioTracks[trackIdx]

	targetTrack := originalTrack
	targetIdx := trackIdx
	if op.NewAudioTrackID != nil {
		tt, idx, ok := timeline.FindAudioTrack(t, *op.NewAudioTrackID)
		if !ok {
			return nil, coreerr.New(coreerr.CodeAudioTrackNotFound, "target audio track not found").WithField("new_audio_track_id")
		}
		targetTrack = tt
		targetIdx = idx
	}

	if conflictID, overlap := timeline.AudioOverlaps(targetTrack, *op.NewStartMs, clip.DurationMs, clip.ID); overlap {
		return nil, coreerr.New(coreerr.CodeClipOverlap, "audio clip overlaps clip "+conflictID).WithField("new_start_ms")
	}

	moved := *clip
	moved.StartMs = *op.NewStartMs
	if targetIdx == trackIdx {
		t.AudioTracks[trackIdx].Clips[clipIdx] = moved
	} else {
		t.AudioTracks[trackIdx].Clips = append(t.AudioTracks[trackIdx].Clips[:clipIdx], t.AudioTracks[trackIdx].Clips[clipIdx+1:]...)
		t.AudioTracks[targetIdx].Clips = append(t.AudioTracks[targetIdx].Clips, moved)
	}

	return &ApplyResult{
		ChangeDetails: []ChangeDetail{
			{EntityType: "audio_clip", EntityID: moved.ID, Field: "start_ms", Before: originalStart, After: moved.StartMs},
		},
		RollbackData: audioClipMoveRollback{
			AudioClipID:     moved.ID,
			OriginalStartMs: originalStart,
			OriginalTrackID: originalTrack.ID,
			NewStartMs:      moved.StartMs,
			NewTrackID:      targetTrack.ID,
		},
		AffectedAudioClips: []string{moved.ID},
		Detail:             moved,
	}, nil
}

type audioClipDeleteRollback struct {
	AudioClip    domain.AudioClip `json:"audio_clip"`
	AudioTrackID string           `json:"audio_track_id"`
}

func applyAudioClipDelete(t *domain.Timeline, op Operation) (*ApplyResult, *coreerr.Error) {
	if op.AudioClipID == "" {
		return nil, errMissingField("audio_clip_id")
	}
	clip, trackIdx, clipIdx, ok := timeline.FindAudioClip(t, op.AudioClipID)
	if !ok {
		return nil, coreerr.New(coreerr.CodeAudioClipNotFound, "audio clip not found").WithField("audio_clip_id")
	}
	deleted := *clip
	track := &t.AudioTracks[trackIdx]
	track.Clips = append(track.Clips[:clipIdx], track.Clips[clipIdx+1:]...)
	return &ApplyResult{
		ChangeDetails:      []ChangeDetail{{EntityType: "audio_clip", EntityID: deleted.ID, Before: deleted}},
		RollbackData:       audioClipDeleteRollback{AudioClip: deleted, AudioTrackID: track.ID},
		AffectedAudioClips: []string{deleted.ID},
		Detail:             map[string]string{"deleted_id": deleted.ID},
	}, nil
}

func applyAudioClipUpdate(t *domain.Timeline, op Operation) (*ApplyResult, *coreerr.Error) {
	if op.AudioClipID == "" {
		return nil, errMissingField("audio_clip_id")
	}
	if op.AudioClipPatch == nil {
		return nil, errMissingField("audio_clip_patch")
	}
	clip, trackIdx, clipIdx, ok := timeline.FindAudioClip(t, op.AudioClipID)
	if !ok {
		return nil, coreerr.New(coreerr.CodeAudioClipNotFound, "audio clip not found").WithField("audio_clip_id")
	}
	p := op.AudioClipPatch
	original := *clip
	updated := *clip
	if p.StartMs != nil {
		updated.StartMs = *p.StartMs
	}
	if p.DurationMs != nil {
		if *p.DurationMs <= 0 {
			return nil, coreerr.New(coreerr.CodeInvalidTimeRange, "duration_ms must be > 0").WithField("duration_ms")
		}
		updated.DurationMs = *p.DurationMs
	}
	if p.InPointMs != nil {
		updated.InPointMs = *p.InPointMs
	}
	if p.OutPointMs != nil {
		updated.OutPointMs = p.OutPointMs
	}
	if p.Volume != nil {
		updated.Volume = *p.Volume
	}
	if p.FadeInMs != nil {
		updated.FadeInMs = *p.FadeInMs
	}
	if p.FadeOutMs != nil {
		updated.FadeOutMs = *p.FadeOutMs
	}
	if p.ReplaceVolumeKeyframes {
		updated.VolumeKeyframes = p.VolumeKeyframes
	}
	if p.AssetID != nil {
		updated.AssetID = *p.AssetID
	}
	if p.GroupID != nil {
		updated.GroupID = p.GroupID
	}
	t.AudioTracks[trackIdx].Clips[clipIdx] = updated
	return &ApplyResult{
		ChangeDetails:      []ChangeDetail{{EntityType: "audio_clip", EntityID: updated.ID, Before: original, After: updated}},
		AffectedAudioClips: []string{updated.ID},
		Detail:             updated,
	}, nil
}

func applyAudioTrackAdd(t *domain.Timeline, op Operation) (*ApplyResult, *coreerr.Error) {
	if op.AudioTrack == nil {
		return nil, errMissingField("audio_track")
	}
	track := *op.AudioTrack
	t.AudioTracks = append(t.AudioTracks, track)
	return &ApplyResult{
		ChangeDetails: []ChangeDetail{{EntityType: "audio_track", EntityID: track.ID, After: track}},
		Detail:        track,
	}, nil
}

func applyAudioTrackDelete(t *domain.Timeline, op Operation) (*ApplyResult, *coreerr.Error) {
	if op.AudioTrackID == "" {
		return nil, errMissingField("audio_track_id")
	}
	_, idx, ok := timeline.FindAudioTrack(t, op.AudioTrackID)
	if !ok {
		return nil, coreerr.New(coreerr.CodeAudioTrackNotFound, "audio track not found").WithField("audio_track_id")
	}
	deleted := t.AudioTracks[idx]
	t.AudioTracks = append(t.AudioTracks[:idx], t.AudioTracks[idx+1:]...)
	return &ApplyResult{
		ChangeDetails: []ChangeDetail{{EntityType: "audio_track", EntityID: deleted.ID, Before: deleted}},
		Detail:        map[string]string{"deleted_id": deleted.ID},
	}, nil
}

func applyAudioTrackUpdate(t *domain.Timeline, op Operation) (*ApplyResult, *coreerr.Error) {
	if op.AudioTrackID == "" {
		return nil, errMissingField("audio_track_id")
	}
	if op.AudioTrackPatch == nil {
		return nil, errMissingField("audio_track_patch")
	}
	track, idx, ok := timeline.FindAudioTrack(t, op.AudioTrackID)
	if !ok {
		return nil, coreerr.New(coreerr.CodeAudioTrackNotFound, "audio track not found").WithField("audio_track_id")
	}
	p := op.AudioTrackPatch
	original := *track
	updated := *track
	if p.Name != nil {
		updated.Name = *p.Name
	}
	if p.Volume != nil {
		updated.Volume = *p.Volume
	}
	if p.Muted != nil {
		updated.Muted = *p.Muted
	}
	if p.Ducking != nil {
		updated.Ducking = p.Ducking
	}
	t.AudioTracks[idx] = updated
	return &ApplyResult{
		ChangeDetails: []ChangeDetail{{EntityType: "audio_track", EntityID: updated.ID, Before: original, After: updated}},
		Detail:        updated,
	}, nil
}

func applyAudioTrackReorder(t *domain.Timeline, op Operation) (*ApplyResult, *coreerr.Error) {
	if len(op.Order) == 0 {
		return nil, errMissingField("order")
	}
	byID := make(map[string]domain.AudioTrack, len(t.AudioTracks))
	for _, tr := range t.AudioTracks {
		byID[tr.ID] = tr
	}
	seen := make(map[string]bool, len(op.Order))
	reordered := make([]domain.AudioTrack, 0, len(t.AudioTracks))
	for _, id := range op.Order {
		tr, ok := byID[id]
		if !ok {
			return nil, coreerr.New(coreerr.CodeAudioTrackNotFound, "unknown audio track id in order").WithField("order")
		}
		reordered = append(reordered, tr)
		seen[id] = true
	}
	for _, tr := range t.AudioTracks {
		if !seen[tr.ID] {
			reordered = append(reordered, tr)
		}
	}
	t.AudioTracks = reordered
	return &ApplyResult{
		ChangeDetails: []ChangeDetail{{EntityType: "timeline", EntityID: "audio_tracks", After: op.Order}},
		Detail:        map[string]any{"order": op.Order},
	}, nil
}
