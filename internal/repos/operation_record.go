package repos

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/clipstream/timeline-core/internal/domain"
	"github.com/clipstream/timeline-core/internal/logger"
	"github.com/clipstream/timeline-core/internal/storage"
)

// HistoryFilter narrows ListBySequence beyond the sequence id. Zero values
// mean "no filter" for that field.
type HistoryFilter struct {
	SinceVersion  *int
	ClipID        string
	OperationType string
	Source        string
	Limit         int
	Offset        int
}

type OperationRecordRepo interface {
	GetByID(ctx context.Context, id string) (*domain.OperationRecord, error)
	Create(ctx context.Context, rec domain.OperationRecord) error
	// MarkRolledBack flips rolled_back/rolled_back_at/rolled_back_by on
	// the original record being rolled back — distinct from
	// Create, which persists the new rollback_<type> record itself.
	MarkRolledBack(ctx context.Context, id, rolledBackBy string, rolledBackAt time.Time) error
	ListBySequence(ctx context.Context, sequenceID string, filter HistoryFilter) ([]domain.OperationRecord, error)
}

type operationRecordRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewOperationRecordRepo(db *gorm.DB, log *logger.Logger) OperationRecordRepo {
	return &operationRecordRepo{db: db, log: log.With("repo", "OperationRecordRepo")}
}

func (r *operationRecordRepo) GetByID(ctx context.Context, id string) (*domain.OperationRecord, error) {
	var row storage.OperationRecordRow
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	rec, err := storage.RowToOperationRecord(row)
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (r *operationRecordRepo) Create(ctx context.Context, rec domain.OperationRecord) error {
	row, err := storage.OperationRecordToRow(rec)
	if err != nil {
		return err
	}
	return r.db.WithContext(ctx).Create(&row).Error
}

func (r *operationRecordRepo) MarkRolledBack(ctx context.Context, id, rolledBackBy string, rolledBackAt time.Time) error {
	return r.db.WithContext(ctx).
		Model(&storage.OperationRecordRow{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"rolled_back":    true,
			"rolled_back_at": rolledBackAt,
			"rolled_back_by": rolledBackBy,
		}).Error
}

// ListBySequence applies every plain-column filter (since_version,
// operation_type, source) as a WHERE clause. clip_id targets a jsonb array
// column, so it isn't pushed to SQL — matching rows are fetched in
// created_at DESC order and filtered in Go, with limit/offset applied
// after that filter instead of in the query.
func (r *operationRecordRepo) ListBySequence(ctx context.Context, sequenceID string, filter HistoryFilter) ([]domain.OperationRecord, error) {
	q := r.db.WithContext(ctx).Where("sequence_id = ?", sequenceID).Order("created_at DESC")
	if filter.SinceVersion != nil {
		q = q.Where("project_version > ?", *filter.SinceVersion)
	}
	if filter.OperationType != "" {
		q = q.Where("operation_type = ?", filter.OperationType)
	}
	if filter.Source != "" {
		q = q.Where("source = ?", filter.Source)
	}
	if filter.ClipID == "" {
		if filter.Offset > 0 {
			q = q.Offset(filter.Offset)
		}
		if filter.Limit > 0 {
			q = q.Limit(filter.Limit)
		}
	}

	var rows []storage.OperationRecordRow
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}

	out := make([]domain.OperationRecord, 0, len(rows))
	for _, row := range rows {
		rec, err := storage.RowToOperationRecord(row)
		if err != nil {
			return nil, err
		}
		if filter.ClipID != "" && !affectsClip(rec, filter.ClipID) {
			continue
		}
		out = append(out, rec)
	}

	if filter.ClipID != "" {
		if filter.Offset > 0 {
			if filter.Offset >= len(out) {
				return nil, nil
			}
			out = out[filter.Offset:]
		}
		if filter.Limit > 0 && len(out) > filter.Limit {
			out = out[:filter.Limit]
		}
	}
	return out, nil
}

func affectsClip(rec domain.OperationRecord, clipID string) bool {
	for _, id := range rec.AffectedClips {
		if id == clipID {
			return true
		}
	}
	return false
}
