package repos

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/clipstream/timeline-core/internal/domain"
	"github.com/clipstream/timeline-core/internal/logger"
	"github.com/clipstream/timeline-core/internal/storage"
)

type SequenceRepo interface {
	GetByID(ctx context.Context, id string) (*domain.Sequence, error)
	GetDefaultForProject(ctx context.Context, projectID string) (*domain.Sequence, error)
	Create(ctx context.Context, s domain.Sequence) error
	// WithLock claims the sequence row for the duration of fn via
	// SELECT ... FOR UPDATE, so no two batch commits (or lock
	// acquire/release calls) against the same sequence interleave. fn
	// returns the sequence to persist; returning an error aborts the
	// transaction and leaves the row untouched.
	WithLock(ctx context.Context, sequenceID string, fn func(seq domain.Sequence) (domain.Sequence, error)) error
}

type sequenceRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewSequenceRepo(db *gorm.DB, log *logger.Logger) SequenceRepo {
	return &sequenceRepo{db: db, log: log.With("repo", "SequenceRepo")}
}

func (r *sequenceRepo) GetByID(ctx context.Context, id string) (*domain.Sequence, error) {
	var row storage.SequenceRow
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	s, err := storage.RowToSequence(row)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *sequenceRepo) GetDefaultForProject(ctx context.Context, projectID string) (*domain.Sequence, error) {
	var row storage.SequenceRow
	err := r.db.WithContext(ctx).
		Where("project_id = ? AND is_default = ?", projectID, true).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	s, err := storage.RowToSequence(row)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *sequenceRepo) Create(ctx context.Context, s domain.Sequence) error {
	row, err := storage.SequenceToRow(s)
	if err != nil {
		return err
	}
	return r.db.WithContext(ctx).Create(&row).Error
}

// WithLock intentionally does not use SKIP LOCKED — a job queue claim
// should move on to the next runnable row when one is already held, but a
// sequence write must serialize behind whoever holds the row lock rather
// than skip it, so concurrent mutators of the same sequence block instead
// of racing.
func (r *sequenceRepo) WithLock(ctx context.Context, sequenceID string, fn func(seq domain.Sequence) (domain.Sequence, error)) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row storage.SequenceRow
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", sequenceID).
			First(&row).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("sequence %s not found", sequenceID)
		}
		if err != nil {
			return err
		}
		seq, err := storage.RowToSequence(row)
		if err != nil {
			return err
		}
		updated, err := fn(seq)
		if err != nil {
			return err
		}
		newRow, err := storage.SequenceToRow(updated)
		if err != nil {
			return err
		}
		return tx.Model(&storage.SequenceRow{}).
			Where("id = ?", sequenceID).
			Updates(map[string]any{
				"name":          newRow.Name,
				"is_default":    newRow.IsDefault,
				"version":       newRow.Version,
				"timeline_data": newRow.TimelineData,
				"locked_by":     newRow.LockedBy,
				"locked_at":     newRow.LockedAt,
				"updated_at":    newRow.UpdatedAt,
			}).Error
	})
}
