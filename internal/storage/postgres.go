// Package storage is the Postgres persistence layer: connection
// bootstrap, GORM row models, and AutoMigrate, using the familiar
// gorm.Open/AutoMigrate/uuid-ossp shape adapted to this domain's row set
// (Project, Sequence, OperationRecord, IdempotencyRecord, APIKey) with
// jsonb columns for the nested timeline tree and operation diff/rollback
// payloads.
package storage

import (
	"fmt"
	stdlog "log"
	"os"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"

	"github.com/clipstream/timeline-core/internal/logger"
)

type Service struct {
	db  *gorm.DB
	log *logger.Logger
}

type DSNConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
}

func (c DSNConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
		c.User, c.Password, c.Host, c.Port, c.Name)
}

func NewService(lg *logger.Logger, cfg DSNConfig) (*Service, error) {
	serviceLog := lg.With("service", "PostgresService")

	gormLog := gormLogger.New(
		stdlog.New(os.Stdout, "\r\n", stdlog.LstdFlags),
		gormLogger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  gormLogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)

	serviceLog.Info("connecting to postgres")
	db, err := gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
		Logger: gormLog,
	})
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}

	if err := db.Exec(`CREATE EXTENSION IF NOT EXISTS "uuid-ossp";`).Error; err != nil {
		return nil, fmt.Errorf("enable uuid-ossp extension: %w", err)
	}

	return &Service{db: db, log: serviceLog}, nil
}

func (s *Service) AutoMigrateAll() error {
	s.log.Info("auto migrating postgres tables")
	return s.db.AutoMigrate(
		&ProjectRow{},
		&SequenceRow{},
		&OperationRecordRow{},
		&IdempotencyRecordRow{},
		&APIKeyRow{},
	)
}

func (s *Service) DB() *gorm.DB {
	return s.db
}
