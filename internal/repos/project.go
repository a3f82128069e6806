// Package repos is the GORM-backed persistence layer over internal/storage's
// row models: one repo per aggregate, plus the row-lock transaction that
// backs the sequence lock manager's commit path. Grounded on the
// teacher's internal/repos/job_run.go — same tx-wrapped clause.Locking claim
// pattern, minus SKIP LOCKED (see sequence.go's WithLock).
package repos

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/clipstream/timeline-core/internal/domain"
	"github.com/clipstream/timeline-core/internal/logger"
	"github.com/clipstream/timeline-core/internal/storage"
)

type ProjectRepo interface {
	GetByID(ctx context.Context, id string) (*domain.Project, error)
	Create(ctx context.Context, p domain.Project) error
	// Update replaces the row whole (copy-on-write commit) only if
	// the row's current version still matches expectedVersion — the
	// optimistic-concurrency guard for project-scoped writes.
	Update(ctx context.Context, p domain.Project, expectedVersion int) error
}

type projectRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewProjectRepo(db *gorm.DB, log *logger.Logger) ProjectRepo {
	return &projectRepo{db: db, log: log.With("repo", "ProjectRepo")}
}

func (r *projectRepo) GetByID(ctx context.Context, id string) (*domain.Project, error) {
	var row storage.ProjectRow
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	p, err := storage.RowToProject(row)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *projectRepo) Create(ctx context.Context, p domain.Project) error {
	row, err := storage.ProjectToRow(p)
	if err != nil {
		return err
	}
	return r.db.WithContext(ctx).Create(&row).Error
}

func (r *projectRepo) Update(ctx context.Context, p domain.Project, expectedVersion int) error {
	row, err := storage.ProjectToRow(p)
	if err != nil {
		return err
	}
	result := r.db.WithContext(ctx).
		Model(&storage.ProjectRow{}).
		Where("id = ? AND version = ?", p.ID, expectedVersion).
		Updates(map[string]any{
			"name":          row.Name,
			"width":         row.Width,
			"height":        row.Height,
			"fps":           row.FPS,
			"duration_ms":   row.DurationMs,
			"version":       row.Version,
			"timeline_data": row.TimelineData,
			"updated_at":    row.UpdatedAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("project %s: version conflict (expected %d)", p.ID, expectedVersion)
	}
	return nil
}
