package repos

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/clipstream/timeline-core/internal/auth"
	"github.com/clipstream/timeline-core/internal/logger"
	"github.com/clipstream/timeline-core/internal/storage"
)

// GormAPIKeyStore implements auth.APIKeyStore over the api_keys table.
type GormAPIKeyStore struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewGormAPIKeyStore(db *gorm.DB, log *logger.Logger) *GormAPIKeyStore {
	return &GormAPIKeyStore{db: db, log: log.With("repo", "APIKeyStore")}
}

func (s *GormAPIKeyStore) Lookup(ctx context.Context, prefix string) (*auth.APIKeyRecord, error) {
	var row storage.APIKeyRow
	err := s.db.WithContext(ctx).Where("prefix = ?", prefix).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &auth.APIKeyRecord{Prefix: row.Prefix, HashedKey: row.HashedKey, Revoked: row.Revoked}, nil
}
