package app

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/clipstream/timeline-core/internal/assetcatalog"
	"github.com/clipstream/timeline-core/internal/auth"
	"github.com/clipstream/timeline-core/internal/batch"
	"github.com/clipstream/timeline-core/internal/domain"
	"github.com/clipstream/timeline-core/internal/effects"
	"github.com/clipstream/timeline-core/internal/events"
	"github.com/clipstream/timeline-core/internal/handlers"
	"github.com/clipstream/timeline-core/internal/logger"
	"github.com/clipstream/timeline-core/internal/middleware"
	"github.com/clipstream/timeline-core/internal/repos"
	"github.com/clipstream/timeline-core/internal/server"
	"github.com/clipstream/timeline-core/internal/storage"
)

type noopPublisher struct{}

func (noopPublisher) Publish(context.Context, events.TimelineUpdated) {}

// testApp wires the real router end to end against an in-memory sqlite
// database, the way internal/repos' own tests exercise GORM repos — this
// is the same stack app.New assembles, minus Postgres/Redis/Temporal.
func testApp(t *testing.T) (http.Handler, *auth.Provider) {
	t.Helper()

	log, err := logger.New("test")
	if err != nil {
		t.Fatalf("logger.New: %v", err)
	}

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

	effectsTable, err := effects.LoadFromEnv(log)
	if err != nil {
		t.Fatalf("effects.LoadFromEnv: %v", err)
	}

	projects := repos.NewProjectRepo(db, log)
	sequences := repos.NewSequenceRepo(db, log)
	operations := repos.NewOperationRecordRepo(db, log)
	idemp := repos.NewGormIdempotencyStore(db, log, time.Hour)

	service := NewTimelineService(log, projects, sequences, operations, idemp, noopPublisher{}, effectsTable)

	authProvider := auth.NewProvider("test-secret", "pepper", emptyKeyStore{})
	authMiddleware := middleware.NewAuth(log, authProvider)
	catalog := assetcatalog.NewMemoryCatalog(nil)

	router := server.NewRouter(server.RouterConfig{
		Log:                 log,
		ProjectHandler:      handlers.NewProjectHandler(log, service),
		TimelineHandler:     handlers.NewTimelineHandler(log, service),
		LockHandler:         handlers.NewLockHandler(log, service),
		HistoryHandler:      handlers.NewHistoryHandler(log, service),
		ReadHandler:         handlers.NewReadHandler(log, service, catalog),
		AnalysisHandler:     handlers.NewAnalysisHandler(log, service),
		CapabilitiesHandler: handlers.NewCapabilitiesHandler(log, service),
		Auth:                authMiddleware,
	})
	return router, authProvider
}

type emptyKeyStore struct{}

func (emptyKeyStore) Lookup(context.Context, string) (*auth.APIKeyRecord, error) { return nil, nil }

func doJSON(t *testing.T, h http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var r *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		r = bytes.NewReader(b)
	} else {
		r = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

// TestTimelineHTTPLifecycle exercises the route table end to end: create a
// project, add a layer and a clip, read it back through the hierarchical
// read API, and confirm history recorded the mutations.
func TestTimelineHTTPLifecycle(t *testing.T) {
	router, authProvider := testApp(t)
	token, err := authProvider.IssueBearerToken("user-1", "Ada", time.Hour)
	if err != nil {
		t.Fatalf("IssueBearerToken: %v", err)
	}

	rec := doJSON(t, router, http.MethodPost, "/projects", token, map[string]any{
		"name": "demo", "width": 1920, "height": 1080, "fps": 30,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create project: status=%d body=%s", rec.Code, rec.Body.String())
	}
	var created struct {
		Data struct {
			Project           domain.Project `json:"project"`
			DefaultSequenceID string         `json:"default_sequence_id"`
		} `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode create project response: %v", err)
	}
	projectID := created.Data.Project.ID
	if projectID == "" {
		t.Fatalf("expected a project id")
	}

	rec = doJSON(t, router, http.MethodPost, "/projects/"+projectID+"/layers", token, map[string]any{
		"layer": map[string]any{"name": "V1", "type": "video", "visible": true},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("create layer: status=%d body=%s", rec.Code, rec.Body.String())
	}
	var layerResp struct {
		Data struct {
			Timeline domain.Timeline `json:"timeline"`
		} `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &layerResp); err != nil {
		t.Fatalf("decode create layer response: %v", err)
	}
	if len(layerResp.Data.Timeline.Layers) != 1 {
		t.Fatalf("expected 1 layer, got=%d", len(layerResp.Data.Timeline.Layers))
	}
	layerID := layerResp.Data.Timeline.Layers[0].ID

	rec = doJSON(t, router, http.MethodPost, "/projects/"+projectID+"/clips", token, map[string]any{
		"layer_id": layerID,
		"clip":     map[string]any{"start_ms": 0, "duration_ms": 5000, "in_point_ms": 0},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("create clip: status=%d body=%s", rec.Code, rec.Body.String())
	}
	var clipResp struct {
		Meta struct {
			OperationID       string `json:"operation_id"`
			RollbackAvailable bool   `json:"rollback_available"`
		} `json:"meta"`
		Data struct {
			Timeline domain.Timeline `json:"timeline"`
		} `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &clipResp); err != nil {
		t.Fatalf("decode create clip response: %v", err)
	}
	if clipResp.Meta.OperationID == "" {
		t.Fatalf("expected an operation id on the mutation response")
	}
	if len(clipResp.Data.Timeline.Layers[0].Clips) != 1 {
		t.Fatalf("expected 1 clip on the layer")
	}
	clipID := clipResp.Data.Timeline.Layers[0].Clips[0].ID

	rec = doJSON(t, router, http.MethodGet, "/projects/"+projectID+"/clips/"+clipID, token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get clip: status=%d body=%s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, router, http.MethodGet, "/projects/"+projectID+"/overview", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("overview: status=%d body=%s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, router, http.MethodGet, "/projects/"+projectID+"/history", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("history: status=%d body=%s", rec.Code, rec.Body.String())
	}
	var historyResp struct {
		Data []domain.OperationRecord `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &historyResp); err != nil {
		t.Fatalf("decode history response: %v", err)
	}
	if len(historyResp.Data) != 2 {
		t.Fatalf("expected 2 history records (the layer add and the clip add), got=%d", len(historyResp.Data))
	}
}

func TestHealthzAndCapabilitiesAreUnauthenticated(t *testing.T) {
	router, _ := testApp(t)

	rec := doJSON(t, router, http.MethodGet, "/healthz", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("healthz: status=%d", rec.Code)
	}

	rec = doJSON(t, router, http.MethodGet, "/capabilities", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("capabilities: status=%d body=%s", rec.Code, rec.Body.String())
	}
}

func TestProjectRoutesRequireAuth(t *testing.T) {
	router, _ := testApp(t)

	rec := doJSON(t, router, http.MethodPost, "/projects", "", map[string]any{
		"name": "demo", "width": 1920, "height": 1080, "fps": 30,
	})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("unauthenticated create project: status=%d", rec.Code)
	}
}

func TestValidateOnlyDoesNotPersistClip(t *testing.T) {
	router, authProvider := testApp(t)
	token, err := authProvider.IssueBearerToken("user-1", "Ada", time.Hour)
	if err != nil {
		t.Fatalf("IssueBearerToken: %v", err)
	}

	rec := doJSON(t, router, http.MethodPost, "/projects", token, map[string]any{
		"name": "demo", "width": 1920, "height": 1080, "fps": 30,
	})
	var created struct {
		Data struct {
			Project domain.Project `json:"project"`
		} `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode create project response: %v", err)
	}
	projectID := created.Data.Project.ID

	rec = doJSON(t, router, http.MethodPost, "/projects/"+projectID+"/layers", token, map[string]any{
		"layer": map[string]any{"name": "V1", "type": "video", "visible": true},
	})
	var layerResp struct {
		Data struct {
			Timeline domain.Timeline `json:"timeline"`
		} `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &layerResp); err != nil {
		t.Fatalf("decode create layer response: %v", err)
	}
	layerID := layerResp.Data.Timeline.Layers[0].ID

	rec = doJSON(t, router, http.MethodPost, "/projects/"+projectID+"/clips", token, map[string]any{
		"layer_id": layerID,
		"clip":     map[string]any{"start_ms": 0, "duration_ms": 5000, "in_point_ms": 0},
		"options":  map[string]any{"validate_only": true},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("validate_only create clip: status=%d body=%s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, router, http.MethodGet, "/projects/"+projectID+"/overview", token, nil)
	var overview struct {
		Data struct {
			TotalVideoClips int `json:"total_video_clips"`
		} `json:"data"`
	}
	_ = json.Unmarshal(rec.Body.Bytes(), &overview)
	if overview.Data.TotalVideoClips != 0 {
		t.Fatalf("expected validate_only to persist nothing, total_video_clips=%d", overview.Data.TotalVideoClips)
	}
}

var _ batch.IdempotencyStore = (*repos.GormIdempotencyStore)(nil)
