package repos

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/clipstream/timeline-core/internal/batch"
	"github.com/clipstream/timeline-core/internal/logger"
	"github.com/clipstream/timeline-core/internal/storage"
)

// GormIdempotencyStore is the project-scoped, Postgres-backed
// batch.IdempotencyStore referenced (but not implemented) by
// internal/batch. Each row gets an expires_at from the TTL; Lookup
// ignores expired rows and Store overwrites them, and nothing deletes them.
type GormIdempotencyStore struct {
	db  *gorm.DB
	log *logger.Logger
	ttl time.Duration
}

func NewGormIdempotencyStore(db *gorm.DB, log *logger.Logger, ttl time.Duration) *GormIdempotencyStore {
	return &GormIdempotencyStore{db: db, log: log.With("repo", "IdempotencyStore"), ttl: ttl}
}

func compositeIdempotencyKey(projectID, key string) string {
	return projectID + ":" + key
}

func (s *GormIdempotencyStore) Lookup(ctx context.Context, projectID, key string) (*batch.StoredResponse, bool, error) {
	var row storage.IdempotencyRecordRow
	err := s.db.WithContext(ctx).
		Where("key = ? AND expires_at > ?", compositeIdempotencyKey(projectID, key), time.Now()).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var body any
	if len(row.ResponseBody) > 0 {
		if err := json.Unmarshal(row.ResponseBody, &body); err != nil {
			return nil, false, err
		}
	}
	return &batch.StoredResponse{OperationID: row.OperationID, RequestHash: row.RequestHash, ResponseBody: body}, true, nil
}

func (s *GormIdempotencyStore) Store(ctx context.Context, projectID, key string, resp batch.StoredResponse) error {
	body, err := json.Marshal(resp.ResponseBody)
	if err != nil {
		return err
	}
	row := storage.IdempotencyRecordRow{
		Key:          compositeIdempotencyKey(projectID, key),
		SequenceID:   projectID,
		OperationID:  resp.OperationID,
		RequestHash:  resp.RequestHash,
		ResponseBody: body,
		CreatedAt:    time.Now(),
		ExpiresAt:    time.Now().Add(s.ttl),
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"operation_id", "request_hash", "response_body", "expires_at"}),
	}).Create(&row).Error
}
