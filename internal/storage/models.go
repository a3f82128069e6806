package storage

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"

	"github.com/clipstream/timeline-core/internal/domain"
)

// ProjectRow is the Postgres row for domain.Project. timeline_data is the
// Timeline tree as jsonb — the in-memory domain type is the unmarshaled
// form; commits replace the column whole (copy-on-write, no partial
// jsonb patching).
type ProjectRow struct {
	ID           string `gorm:"type:uuid;primaryKey"`
	Name         string
	Width        int
	Height       int
	FPS          float64
	DurationMs   int
	Version      int
	TimelineData datatypes.JSON `gorm:"type:jsonb"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (ProjectRow) TableName() string { return "projects" }

func ProjectToRow(p domain.Project) (ProjectRow, error) {
	raw, err := json.Marshal(p.TimelineData)
	if err != nil {
		return ProjectRow{}, err
	}
	return ProjectRow{
		ID: p.ID, Name: p.Name, Width: p.Width, Height: p.Height, FPS: p.FPS,
		DurationMs: p.DurationMs, Version: p.Version,
		TimelineData: datatypes.JSON(raw),
		CreatedAt:    p.CreatedAt, UpdatedAt: p.UpdatedAt,
	}, nil
}

func RowToProject(r ProjectRow) (domain.Project, error) {
	var t domain.Timeline
	if len(r.TimelineData) > 0 {
		if err := json.Unmarshal(r.TimelineData, &t); err != nil {
			return domain.Project{}, err
		}
	}
	return domain.Project{
		ID: r.ID, Name: r.Name, Width: r.Width, Height: r.Height, FPS: r.FPS,
		DurationMs: r.DurationMs, Version: r.Version, TimelineData: t,
		CreatedAt: r.CreatedAt, UpdatedAt: r.UpdatedAt,
	}, nil
}

// SequenceRow is the Postgres row for domain.Sequence.
type SequenceRow struct {
	ID           string `gorm:"type:uuid;primaryKey"`
	ProjectID    string `gorm:"type:uuid;index"`
	Name         string
	IsDefault    bool
	Version      int
	TimelineData datatypes.JSON `gorm:"type:jsonb"`
	LockedBy     *string
	LockedAt     *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (SequenceRow) TableName() string { return "sequences" }

func SequenceToRow(s domain.Sequence) (SequenceRow, error) {
	raw, err := json.Marshal(s.TimelineData)
	if err != nil {
		return SequenceRow{}, err
	}
	return SequenceRow{
		ID: s.ID, ProjectID: s.ProjectID, Name: s.Name, IsDefault: s.IsDefault,
		Version: s.Version, TimelineData: datatypes.JSON(raw),
		LockedBy: s.LockedBy, LockedAt: s.LockedAt,
		CreatedAt: s.CreatedAt, UpdatedAt: s.UpdatedAt,
	}, nil
}

func RowToSequence(r SequenceRow) (domain.Sequence, error) {
	var t domain.Timeline
	if len(r.TimelineData) > 0 {
		if err := json.Unmarshal(r.TimelineData, &t); err != nil {
			return domain.Sequence{}, err
		}
	}
	return domain.Sequence{
		ID: r.ID, ProjectID: r.ProjectID, Name: r.Name, IsDefault: r.IsDefault,
		Version: r.Version, TimelineData: t,
		LockedBy: r.LockedBy, LockedAt: r.LockedAt,
		CreatedAt: r.CreatedAt, UpdatedAt: r.UpdatedAt,
	}, nil
}

// OperationRecordRow is the Postgres row for domain.OperationRecord. diff,
// rollback_data, and the affected_* slices are all jsonb — none of them
// are queried by value, only read back whole for rollback and history
// listing.
type OperationRecordRow struct {
	ID                 string `gorm:"type:uuid;primaryKey"`
	ProjectID          string `gorm:"type:uuid;index"`
	SequenceID         string `gorm:"type:uuid;index"`
	OperationType      string
	Source             string
	AffectedClips      datatypes.JSON `gorm:"type:jsonb"`
	AffectedLayers     datatypes.JSON `gorm:"type:jsonb"`
	AffectedAudioClips datatypes.JSON `gorm:"type:jsonb"`
	Diff               datatypes.JSON `gorm:"type:jsonb"`
	RequestSummary     string
	ResultSummary      string
	RollbackData       datatypes.JSON `gorm:"type:jsonb"`
	RollbackAvailable  bool
	RolledBack         bool
	RolledBackAt       *time.Time
	RolledBackBy       *string
	Success            bool
	ErrorCode          string
	ErrorMessage       string
	IdempotencyKey     string `gorm:"index"`
	UserID             string
	ProjectVersion     int
	CreatedAt          time.Time `gorm:"index"`
}

func (OperationRecordRow) TableName() string { return "operation_records" }

func OperationRecordToRow(o domain.OperationRecord) (OperationRecordRow, error) {
	affectedClips, err := json.Marshal(o.AffectedClips)
	if err != nil {
		return OperationRecordRow{}, err
	}
	affectedLayers, err := json.Marshal(o.AffectedLayers)
	if err != nil {
		return OperationRecordRow{}, err
	}
	affectedAudioClips, err := json.Marshal(o.AffectedAudioClips)
	if err != nil {
		return OperationRecordRow{}, err
	}
	diff, err := json.Marshal(o.Diff)
	if err != nil {
		return OperationRecordRow{}, err
	}
	rollbackData, err := json.Marshal(o.RollbackData)
	if err != nil {
		return OperationRecordRow{}, err
	}
	return OperationRecordRow{
		ID: o.ID, ProjectID: o.ProjectID, SequenceID: o.SequenceID,
		OperationType: o.OperationType, Source: string(o.Source),
		AffectedClips: datatypes.JSON(affectedClips), AffectedLayers: datatypes.JSON(affectedLayers),
		AffectedAudioClips: datatypes.JSON(affectedAudioClips),
		Diff:               datatypes.JSON(diff),
		RequestSummary:     o.RequestSummary, ResultSummary: o.ResultSummary,
		RollbackData: datatypes.JSON(rollbackData), RollbackAvailable: o.RollbackAvailable,
		RolledBack: o.RolledBack, RolledBackAt: o.RolledBackAt, RolledBackBy: o.RolledBackBy,
		Success: o.Success, ErrorCode: o.ErrorCode, ErrorMessage: o.ErrorMessage,
		IdempotencyKey: o.IdempotencyKey, UserID: o.UserID, ProjectVersion: o.ProjectVersion,
		CreatedAt: o.CreatedAt,
	}, nil
}

func RowToOperationRecord(r OperationRecordRow) (domain.OperationRecord, error) {
	out := domain.OperationRecord{
		ID: r.ID, ProjectID: r.ProjectID, SequenceID: r.SequenceID,
		OperationType: r.OperationType, Source: domain.OperationSource(r.Source),
		RequestSummary: r.RequestSummary, ResultSummary: r.ResultSummary,
		RollbackAvailable: r.RollbackAvailable,
		RolledBack:        r.RolledBack, RolledBackAt: r.RolledBackAt, RolledBackBy: r.RolledBackBy,
		Success: r.Success, ErrorCode: r.ErrorCode, ErrorMessage: r.ErrorMessage,
		IdempotencyKey: r.IdempotencyKey, UserID: r.UserID, ProjectVersion: r.ProjectVersion,
		CreatedAt: r.CreatedAt,
	}
	if len(r.AffectedClips) > 0 {
		if err := json.Unmarshal(r.AffectedClips, &out.AffectedClips); err != nil {
			return domain.OperationRecord{}, err
		}
	}
	if len(r.AffectedLayers) > 0 {
		if err := json.Unmarshal(r.AffectedLayers, &out.AffectedLayers); err != nil {
			return domain.OperationRecord{}, err
		}
	}
	if len(r.AffectedAudioClips) > 0 {
		if err := json.Unmarshal(r.AffectedAudioClips, &out.AffectedAudioClips); err != nil {
			return domain.OperationRecord{}, err
		}
	}
	if len(r.Diff) > 0 {
		if err := json.Unmarshal(r.Diff, &out.Diff); err != nil {
			return domain.OperationRecord{}, err
		}
	}
	if len(r.RollbackData) > 0 {
		if err := json.Unmarshal(r.RollbackData, &out.RollbackData); err != nil {
			return domain.OperationRecord{}, err
		}
	}
	return out, nil
}

// IdempotencyRecordRow backs batch.IdempotencyStore: one row per
// (project, idempotency key) pair, recording the operation id it
// resolved to so a retried request short-circuits to the same result.
// Key holds the composite project_id:key, and SequenceID holds the
// project id.
type IdempotencyRecordRow struct {
	Key            string `gorm:"primaryKey"`
	SequenceID     string `gorm:"type:uuid;index"`
	OperationID    string `gorm:"type:uuid"`
	RequestHash    string
	ResponseBody   datatypes.JSON `gorm:"type:jsonb"`
	CreatedAt      time.Time
	ExpiresAt      time.Time `gorm:"index"`
}

func (IdempotencyRecordRow) TableName() string { return "idempotency_records" }

// APIKeyRow persists hashed API keys for auth.APIKeyStore.
type APIKeyRow struct {
	Prefix    string `gorm:"primaryKey"`
	HashedKey string
	Revoked   bool
	CreatedAt time.Time
}

func (APIKeyRow) TableName() string { return "api_keys" }
