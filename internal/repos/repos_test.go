package repos

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/clipstream/timeline-core/internal/batch"
	"github.com/clipstream/timeline-core/internal/domain"
	"github.com/clipstream/timeline-core/internal/logger"
	"github.com/clipstream/timeline-core/internal/storage"
)

func testDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(
		&storage.ProjectRow{}, &storage.SequenceRow{}, &storage.OperationRecordRow{},
		&storage.IdempotencyRecordRow{}, &storage.APIKeyRow{},
	); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New("test")
	if err != nil {
		t.Fatalf("logger.New: %v", err)
	}
	return log
}

func TestProjectRepoCreateGetUpdate(t *testing.T) {
	db := testDB(t)
	log := testLogger(t)
	repo := NewProjectRepo(db, log)
	ctx := context.Background()

	id := uuid.NewString()
	p := domain.Project{ID: id, Name: "demo", Width: 1920, Height: 1080, FPS: 30, Version: 1, CreatedAt: time.Now(), UpdatedAt: time.Now()}
	if err := repo.Create(ctx, p); err != nil {
		t.Fatalf("Create: %v", err)
	}

	got, err := repo.GetByID(ctx, id)
	if err != nil || got == nil {
		t.Fatalf("GetByID: want project, got %v err=%v", got, err)
	}
	if got.Name != "demo" {
		t.Fatalf("GetByID: want name=demo got=%s", got.Name)
	}

	got.Name = "renamed"
	got.Version = 2
	if err := repo.Update(ctx, *got, 1); err != nil {
		t.Fatalf("Update: %v", err)
	}

	reloaded, _ := repo.GetByID(ctx, id)
	if reloaded.Name != "renamed" || reloaded.Version != 2 {
		t.Fatalf("Update: want name=renamed version=2, got %+v", reloaded)
	}

	if err := repo.Update(ctx, *reloaded, 1); err == nil {
		t.Fatalf("Update: want version-conflict error when expectedVersion is stale")
	}
}

func TestSequenceRepoWithLockSerializesMutation(t *testing.T) {
	db := testDB(t)
	log := testLogger(t)
	repo := NewSequenceRepo(db, log)
	ctx := context.Background()

	id := uuid.NewString()
	seq := domain.Sequence{ID: id, ProjectID: uuid.NewString(), Name: "main", IsDefault: true, Version: 1, CreatedAt: time.Now(), UpdatedAt: time.Now()}
	if err := repo.Create(ctx, seq); err != nil {
		t.Fatalf("Create: %v", err)
	}

	err := repo.WithLock(ctx, id, func(s domain.Sequence) (domain.Sequence, error) {
		s.Version++
		s.Name = "renamed"
		return s, nil
	})
	if err != nil {
		t.Fatalf("WithLock: %v", err)
	}

	got, _ := repo.GetByID(ctx, id)
	if got.Name != "renamed" || got.Version != 2 {
		t.Fatalf("WithLock: want name=renamed version=2, got %+v", got)
	}
}

func TestGormIdempotencyStoreRoundTrip(t *testing.T) {
	db := testDB(t)
	log := testLogger(t)
	store := NewGormIdempotencyStore(db, log, time.Hour)
	ctx := context.Background()

	_, found, err := store.Lookup(ctx, "proj-1", "key-1")
	if err != nil || found {
		t.Fatalf("Lookup before Store: want not found, got found=%v err=%v", found, err)
	}

	if err := store.Store(ctx, "proj-1", "key-1", batch.StoredResponse{OperationID: "op-1", ResponseBody: map[string]any{"ok": true}}); err != nil {
		t.Fatalf("Store: %v", err)
	}

	resp, found, err := store.Lookup(ctx, "proj-1", "key-1")
	if err != nil || !found || resp.OperationID != "op-1" {
		t.Fatalf("Lookup after Store: want op-1, got resp=%+v found=%v err=%v", resp, found, err)
	}
}

func TestGormAPIKeyStoreLookup(t *testing.T) {
	db := testDB(t)
	log := testLogger(t)
	if err := db.Create(&storage.APIKeyRow{Prefix: "k1", HashedKey: "deadbeef"}).Error; err != nil {
		t.Fatalf("seed api key: %v", err)
	}
	store := NewGormAPIKeyStore(db, log)

	rec, err := store.Lookup(context.Background(), "k1")
	if err != nil || rec == nil || rec.HashedKey != "deadbeef" {
		t.Fatalf("Lookup: want hashed key deadbeef, got %+v err=%v", rec, err)
	}

	missing, err := store.Lookup(context.Background(), "unknown")
	if err != nil || missing != nil {
		t.Fatalf("Lookup unknown prefix: want nil, got %+v err=%v", missing, err)
	}
}

func TestOperationRecordRepoCreateAndRollback(t *testing.T) {
	db := testDB(t)
	log := testLogger(t)
	repo := NewOperationRecordRepo(db, log)
	ctx := context.Background()

	id := uuid.NewString()
	rec := domain.OperationRecord{
		ID: id, ProjectID: uuid.NewString(), SequenceID: uuid.NewString(),
		OperationType: "clip.add", Source: domain.SourceAPIV1, Success: true,
		RollbackAvailable: true, CreatedAt: time.Now(),
	}
	if err := repo.Create(ctx, rec); err != nil {
		t.Fatalf("Create: %v", err)
	}

	if err := repo.MarkRolledBack(ctx, id, "user-1", time.Now()); err != nil {
		t.Fatalf("MarkRolledBack: %v", err)
	}

	got, err := repo.GetByID(ctx, id)
	if err != nil || got == nil || !got.RolledBack {
		t.Fatalf("GetByID after rollback: want rolled_back=true, got %+v err=%v", got, err)
	}
}
