// Package app wires every core and ambient-stack component into one
// process: repos, services, handlers, middleware, and router assembled
// behind a single App value that cmd/server/main.go drives.
package app

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/clipstream/timeline-core/internal/batch"
	"github.com/clipstream/timeline-core/internal/coreerr"
	"github.com/clipstream/timeline-core/internal/ctxutil"
	"github.com/clipstream/timeline-core/internal/dispatch"
	"github.com/clipstream/timeline-core/internal/domain"
	"github.com/clipstream/timeline-core/internal/effects"
	"github.com/clipstream/timeline-core/internal/events"
	"github.com/clipstream/timeline-core/internal/history"
	"github.com/clipstream/timeline-core/internal/lock"
	"github.com/clipstream/timeline-core/internal/logger"
	"github.com/clipstream/timeline-core/internal/repos"
	"github.com/clipstream/timeline-core/internal/validate"
)

// TimelineService is the service layer: it composes the pure core
// packages (validation, dispatch, batch, history, analysis) with the
// repos that persist them, so handlers stay thin.
type TimelineService struct {
	log        *logger.Logger
	projects   repos.ProjectRepo
	sequences  repos.SequenceRepo
	operations repos.OperationRecordRepo
	idemp      batch.IdempotencyStore
	publisher  events.Publisher
	effects    *effects.Table
}

func NewTimelineService(
	log *logger.Logger,
	projects repos.ProjectRepo,
	sequences repos.SequenceRepo,
	operations repos.OperationRecordRepo,
	idemp batch.IdempotencyStore,
	publisher events.Publisher,
	effectsTable *effects.Table,
) *TimelineService {
	return &TimelineService{
		log:        log.With("service", "TimelineService"),
		projects:   projects,
		sequences:  sequences,
		operations: operations,
		idemp:      idemp,
		publisher:  publisher,
		effects:    effectsTable,
	}
}

// Principal is the caller identity resolved by the auth middleware;
// ctxutil carries no HTTP-layer dependency of its own, so the service
// takes its Principal type directly instead of duplicating the shape.
type Principal = ctxutil.Principal

// ApplyBatchRequest is everything a mutating call (single op or true
// batch) needs beyond the operations themselves.
type ApplyBatchRequest struct {
	ProjectID       string
	SequenceID      string
	ExpectedVersion int
	Items           []dispatch.Operation
	IdempotencyKey  string
	Source          domain.OperationSource
	Requester       Principal
	// DryRun mirrors the request envelope's options.validate_only/dry_run
	// key: the batch is applied against a scratch copy of the current
	// timeline and the would-be result returned, but nothing is persisted,
	// no history record is written, and no event is published.
	DryRun bool
}

// ApplyBatchResponse is what a successful mutating call returns to the
// handler for serialization into the response envelope.
type ApplyBatchResponse struct {
	OperationID       string
	NewVersion        int
	Timeline          domain.Timeline
	RollbackAvailable bool
	Idempotent        bool // true if served from the idempotency cache
}

// ApplyBatch is the single entry point for every mutating route: it checks
// idempotency, enforces the lock-holder policy,
// applies the batch against a scratch timeline under the sequence's row
// lock, persists the result, appends the history record, and publishes
// the fire-and-forget event: validate, mutate under lock, record, notify.
func (s *TimelineService) ApplyBatch(ctx context.Context, req ApplyBatchRequest) (*ApplyBatchResponse, *coreerr.Error) {
	requestHash := hashRequest(req.ExpectedVersion, req.Items)
	if req.IdempotencyKey != "" && s.idemp != nil {
		if cached, found, err := s.idemp.Lookup(ctx, req.ProjectID, req.IdempotencyKey); err == nil && found {
			if cached.RequestHash != requestHash {
				return nil, coreerr.New(coreerr.CodeIdempotencyConflict, "the idempotency key was already used with a different payload; use a new key").WithField("idempotency_key")
			}
			resp, _ := cached.ResponseBody.(map[string]any)
			return &ApplyBatchResponse{OperationID: cached.OperationID, Idempotent: true, Timeline: decodeCachedTimeline(resp)}, nil
		}
	}

	seq, err := s.sequences.GetByID(ctx, req.SequenceID)
	if err != nil {
		return nil, coreerr.New(coreerr.CodeDatabaseError, err.Error())
	}
	if seq == nil {
		return nil, coreerr.New(coreerr.CodeSequenceNotFound, "sequence not found").WithField("sequence_id")
	}

	now := time.Now()
	if cerr := lock.CheckWriteAuthorized(*seq, req.Requester.UserID, req.Requester.IsAPIKey, seq.IsDefault, now); cerr != nil {
		return nil, cerr
	}

	if req.DryRun {
		scratch := seq.TimelineData.Clone()
		result, applyErr := batch.Apply(domain.Sequence{Version: seq.Version, TimelineData: scratch}, batch.Request{
			ExpectedVersion: req.ExpectedVersion,
			Items:           req.Items,
			IdempotencyKey:  req.IdempotencyKey,
		})
		if applyErr != nil {
			return nil, applyErr
		}
		return &ApplyBatchResponse{NewVersion: result.NewVersion, Timeline: result.Timeline, RollbackAvailable: result.RollbackAvailable}, nil
	}

	var result *batch.Result
	var applyErr *coreerr.Error
	txErr := s.sequences.WithLock(ctx, req.SequenceID, func(current domain.Sequence) (domain.Sequence, error) {
		result, applyErr = batch.Apply(current, batch.Request{
			ExpectedVersion: req.ExpectedVersion,
			Items:           req.Items,
			IdempotencyKey:  req.IdempotencyKey,
		})
		if applyErr != nil {
			return domain.Sequence{}, applyErr
		}
		current.Version = result.NewVersion
		current.TimelineData = result.Timeline
		return current, nil
	})
	if applyErr != nil {
		return nil, applyErr
	}
	if txErr != nil {
		return nil, coreerr.New(coreerr.CodeDatabaseError, txErr.Error())
	}

	opID := uuid.NewString()
	rec := domain.OperationRecord{
		ID:                 opID,
		ProjectID:          req.ProjectID,
		SequenceID:         req.SequenceID,
		OperationType:      result.OperationType,
		Source:             req.Source,
		AffectedClips:      result.AffectedClips,
		AffectedLayers:     result.AffectedLayers,
		AffectedAudioClips: result.AffectedAudioClips,
		Diff:               result.ChangeDetails,
		RollbackData:       result.RollbackData,
		RollbackAvailable:  result.RollbackAvailable,
		Success:            true,
		IdempotencyKey:     req.IdempotencyKey,
		UserID:             req.Requester.UserID,
		ProjectVersion:     result.NewVersion,
		CreatedAt:          now,
	}
	if err := s.operations.Create(ctx, rec); err != nil {
		s.log.Error("failed to persist operation record", "error", err, "operation_id", opID)
	}

	if req.IdempotencyKey != "" && s.idemp != nil {
		_ = s.idemp.Store(ctx, req.ProjectID, req.IdempotencyKey, batch.StoredResponse{
			OperationID:  opID,
			RequestHash:  requestHash,
			ResponseBody: map[string]any{"timeline": result.Timeline, "version": result.NewVersion},
		})
	}

	if s.publisher != nil {
		s.publisher.Publish(ctx, events.TimelineUpdated{
			ProjectID:  req.ProjectID,
			SequenceID: req.SequenceID,
			Source:     req.Source,
			Version:    result.NewVersion,
			UserID:     req.Requester.UserID,
			UserName:   req.Requester.UserName,
			OccurredAt: now,
		})
	}

	return &ApplyBatchResponse{
		OperationID:       opID,
		NewVersion:        result.NewVersion,
		Timeline:          result.Timeline,
		RollbackAvailable: result.RollbackAvailable,
	}, nil
}

// hashRequest fingerprints the part of an ApplyBatchRequest that must match
// on an idempotency-key replay: the expected version and the operations
// themselves. A key reused with a different payload hashes differently and
// is rejected as IDEMPOTENCY_CONFLICT rather than served from cache.
func hashRequest(expectedVersion int, items []dispatch.Operation) string {
	raw, err := json.Marshal(struct {
		ExpectedVersion int                  `json:"expected_version"`
		Items           []dispatch.Operation `json:"items"`
	}{expectedVersion, items})
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}

func decodeCachedTimeline(body map[string]any) domain.Timeline {
	// Cached responses round-trip through JSON persistence, so
	// body["timeline"] comes back as a generic map, not a domain.Timeline
	// value — re-marshal/unmarshal through the typed struct rather than
	// type-asserting directly.
	var tl domain.Timeline
	if body == nil {
		return tl
	}
	raw, err := json.Marshal(body["timeline"])
	if err != nil {
		return tl
	}
	_ = json.Unmarshal(raw, &tl)
	return tl
}

// AcquireLock grants the sequence lock if unlocked, expired,
// or already held by the requester.
func (s *TimelineService) AcquireLock(ctx context.Context, sequenceID, requesterID string) (lock.AcquireResult, *coreerr.Error) {
	var out lock.AcquireResult
	now := time.Now()
	txErr := s.sequences.WithLock(ctx, sequenceID, func(seq domain.Sequence) (domain.Sequence, error) {
		out = lock.Acquire(seq, requesterID, now)
		if out.Granted {
			seq.LockedBy = &out.LockedBy
			seq.LockedAt = &out.LockedAt
		}
		return seq, nil
	})
	if txErr != nil {
		return lock.AcquireResult{}, coreerr.New(coreerr.CodeDatabaseError, txErr.Error())
	}
	return out, nil
}

// HeartbeatLock refreshes locked_at for the current holder.
func (s *TimelineService) HeartbeatLock(ctx context.Context, sequenceID, requesterID string) *coreerr.Error {
	var outErr *coreerr.Error
	txErr := s.sequences.WithLock(ctx, sequenceID, func(seq domain.Sequence) (domain.Sequence, error) {
		refreshed, cerr := lock.Heartbeat(seq, requesterID, time.Now())
		if cerr != nil {
			outErr = cerr
			return domain.Sequence{}, cerr
		}
		seq.LockedAt = &refreshed
		return seq, nil
	})
	if outErr != nil {
		return outErr
	}
	if txErr != nil {
		return coreerr.New(coreerr.CodeDatabaseError, txErr.Error())
	}
	return nil
}

// ReleaseLock clears the lock held by requesterID.
func (s *TimelineService) ReleaseLock(ctx context.Context, sequenceID, requesterID string) *coreerr.Error {
	var outErr *coreerr.Error
	txErr := s.sequences.WithLock(ctx, sequenceID, func(seq domain.Sequence) (domain.Sequence, error) {
		if cerr := lock.Release(seq, requesterID, time.Now()); cerr != nil {
			outErr = cerr
			return domain.Sequence{}, cerr
		}
		seq.LockedBy = nil
		seq.LockedAt = nil
		return seq, nil
	})
	if outErr != nil {
		return outErr
	}
	if txErr != nil {
		return coreerr.New(coreerr.CodeDatabaseError, txErr.Error())
	}
	return nil
}

// EffectsTable exposes the loaded capability table for the /capabilities
// route and for sanitizing clip effects/transform payloads at decode time.
func (s *TimelineService) EffectsTable() *effects.Table {
	return s.effects
}

// ValidateProposal is the entry point for a validate_only/dry_run request
// whose single op is a clip add/move/transform/delete: it runs the pure
// Validate against the sequence's current timeline and returns the
// would_affect projection without touching storage. Requests that don't
// reduce to a single clip Proposal fall back to ApplyBatch's DryRun path,
// which exercises dispatch/batch directly instead.
func (s *TimelineService) ValidateProposal(ctx context.Context, sequenceID string, p validate.Proposal) (validate.Result, *coreerr.Error) {
	seq, err := s.sequences.GetByID(ctx, sequenceID)
	if err != nil {
		return validate.Result{}, coreerr.New(coreerr.CodeDatabaseError, err.Error())
	}
	if seq == nil {
		return validate.Result{}, coreerr.New(coreerr.CodeSequenceNotFound, "sequence not found").WithField("sequence_id")
	}
	t := seq.TimelineData.Clone()
	res := validate.Validate(&t, p)
	return res, nil
}

// CreateProject persists a new project plus its default sequence (every
// project has exactly one is_default=true sequence at creation).
func (s *TimelineService) CreateProject(ctx context.Context, p domain.Project, defaultSeq domain.Sequence) *coreerr.Error {
	if err := s.projects.Create(ctx, p); err != nil {
		return coreerr.New(coreerr.CodeDatabaseError, err.Error())
	}
	if err := s.sequences.Create(ctx, defaultSeq); err != nil {
		return coreerr.New(coreerr.CodeDatabaseError, err.Error())
	}
	return nil
}

// GetProject is a thin passthrough used by read-side handlers.
func (s *TimelineService) GetProject(ctx context.Context, id string) (*domain.Project, *coreerr.Error) {
	p, err := s.projects.GetByID(ctx, id)
	if err != nil {
		return nil, coreerr.New(coreerr.CodeDatabaseError, err.Error())
	}
	if p == nil {
		return nil, coreerr.New(coreerr.CodeProjectNotFound, "project not found").WithField("project_id")
	}
	return p, nil
}

// GetSequence is a thin passthrough used by read-side handlers.
func (s *TimelineService) GetSequence(ctx context.Context, id string) (*domain.Sequence, *coreerr.Error) {
	seq, err := s.sequences.GetByID(ctx, id)
	if err != nil {
		return nil, coreerr.New(coreerr.CodeDatabaseError, err.Error())
	}
	if seq == nil {
		return nil, coreerr.New(coreerr.CodeSequenceNotFound, "sequence not found").WithField("sequence_id")
	}
	return seq, nil
}

// GetDefaultSequence resolves a project's default sequence (most read/
// write routes operate on it when no sequence_id is given).
func (s *TimelineService) GetDefaultSequence(ctx context.Context, projectID string) (*domain.Sequence, *coreerr.Error) {
	seq, err := s.sequences.GetDefaultForProject(ctx, projectID)
	if err != nil {
		return nil, coreerr.New(coreerr.CodeDatabaseError, err.Error())
	}
	if seq == nil {
		return nil, coreerr.New(coreerr.CodeSequenceNotFound, "project has no default sequence").WithField("project_id")
	}
	return seq, nil
}

// GetOperation fetches a history record by id for GET/rollback routes.
func (s *TimelineService) GetOperation(ctx context.Context, id string) (*domain.OperationRecord, *coreerr.Error) {
	rec, err := s.operations.GetByID(ctx, id)
	if err != nil {
		return nil, coreerr.New(coreerr.CodeDatabaseError, err.Error())
	}
	if rec == nil {
		return nil, coreerr.New(coreerr.CodeOperationNotFound, "operation not found").WithField("operation_id")
	}
	return rec, nil
}

// ListHistory returns operations for a sequence matching filter, most
// recent first.
func (s *TimelineService) ListHistory(ctx context.Context, sequenceID string, filter repos.HistoryFilter) ([]domain.OperationRecord, *coreerr.Error) {
	recs, err := s.operations.ListBySequence(ctx, sequenceID, filter)
	if err != nil {
		return nil, coreerr.New(coreerr.CodeDatabaseError, err.Error())
	}
	return recs, nil
}

// Rollback inverts a previously-applied, still-eligible operation:
// preconditions are checked, the inverse is computed against the sequence's
// current timeline under its row lock, the original record is flipped to
// rolled_back, and a new rollback_<type> history record is appended.
func (s *TimelineService) Rollback(ctx context.Context, sequenceID, operationID, requesterID string) (*ApplyBatchResponse, *coreerr.Error) {
	rec, cerr := s.GetOperation(ctx, operationID)
	if cerr != nil {
		return nil, cerr
	}
	if cerr := history.CheckRollbackPreconditions(rec); cerr != nil {
		return nil, cerr
	}

	var outcome *history.RollbackOutcome
	var newVersion int
	var newTimeline domain.Timeline
	var applyErr *coreerr.Error
	now := time.Now()
	txErr := s.sequences.WithLock(ctx, sequenceID, func(seq domain.Sequence) (domain.Sequence, error) {
		scratch := seq.TimelineData.Clone()
		outcome, applyErr = history.Apply(&scratch, rec)
		if applyErr != nil {
			return domain.Sequence{}, applyErr
		}
		seq.Version++
		seq.TimelineData = scratch
		newVersion = seq.Version
		newTimeline = scratch
		return seq, nil
	})
	if applyErr != nil {
		return nil, applyErr
	}
	if txErr != nil {
		return nil, coreerr.New(coreerr.CodeDatabaseError, txErr.Error())
	}

	if err := s.operations.MarkRolledBack(ctx, operationID, requesterID, now); err != nil {
		s.log.Error("failed to mark operation rolled back", "error", err, "operation_id", operationID)
	}

	newID := uuid.NewString()
	newRec := history.NewRollbackRecord(newID, rec, requesterID, now, newVersion)
	newRec.Diff = outcome.ChangeDetails
	if err := s.operations.Create(ctx, newRec); err != nil {
		s.log.Error("failed to persist rollback record", "error", err, "operation_id", newID)
	}

	if s.publisher != nil {
		s.publisher.Publish(ctx, events.TimelineUpdated{
			ProjectID:  rec.ProjectID,
			SequenceID: sequenceID,
			Source:     domain.SourceAPIV1,
			Version:    newVersion,
			UserID:     requesterID,
			OccurredAt: now,
		})
	}

	return &ApplyBatchResponse{OperationID: newID, NewVersion: newVersion, Timeline: newTimeline}, nil
}
