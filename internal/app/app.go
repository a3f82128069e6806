package app

import (
	"context"
	"fmt"
	"os"

	"github.com/gin-gonic/gin"
	goredis "github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/clipstream/timeline-core/internal/asyncjob"
	"github.com/clipstream/timeline-core/internal/assetcatalog"
	"github.com/clipstream/timeline-core/internal/auth"
	"github.com/clipstream/timeline-core/internal/config"
	"github.com/clipstream/timeline-core/internal/effects"
	"github.com/clipstream/timeline-core/internal/events"
	"github.com/clipstream/timeline-core/internal/handlers"
	"github.com/clipstream/timeline-core/internal/logger"
	"github.com/clipstream/timeline-core/internal/middleware"
	"github.com/clipstream/timeline-core/internal/observability"
	"github.com/clipstream/timeline-core/internal/repos"
	"github.com/clipstream/timeline-core/internal/server"
	"github.com/clipstream/timeline-core/internal/storage"
)

// App composes every ambient and domain component into one process:
// logger, db, repos, services, handlers, middleware, and router assembled
// once behind a single value cmd/server/main.go drives.
type App struct {
	Log          *logger.Logger
	DB           *gorm.DB
	Router       *gin.Engine
	Cfg          config.Config
	Service      *TimelineService
	AsyncJobs    *asyncjob.Client
	otelShutdown func(context.Context) error
	cancel       context.CancelFunc
}

func New() (*App, error) {
	logMode := os.Getenv("LOG_MODE")
	if logMode == "" {
		logMode = "development"
	}
	log, err := logger.New(logMode)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	log.Info("loading configuration")
	cfg := config.Load(log)

	otelShutdown := observability.Init(context.Background(), log, observability.Config{
		ServiceName: cfg.OtelServiceName,
		Environment: logMode,
		Exporter:    cfg.OtelExporter,
		Endpoint:    cfg.OtelEndpoint,
	})

	pg, err := storage.NewService(log, storage.DSNConfig{
		Host:     cfg.PostgresHost,
		Port:     cfg.PostgresPort,
		User:     cfg.PostgresUser,
		Password: cfg.PostgresPassword,
		Name:     cfg.PostgresName,
	})
	if err != nil {
		log.Sync()
		return nil, fmt.Errorf("init postgres: %w", err)
	}
	if err := pg.AutoMigrateAll(); err != nil {
		log.Sync()
		return nil, fmt.Errorf("postgres automigrate: %w", err)
	}
	db := pg.DB()

	effectsTable, err := effects.LoadFromEnv(log)
	if err != nil {
		log.Sync()
		return nil, fmt.Errorf("load effects capability table: %w", err)
	}

	rdb := goredis.NewClient(&goredis.Options{Addr: cfg.RedisAddr})
	publisher := events.NewRedisPublisher(log, rdb)

	apiKeyStore := repos.NewGormAPIKeyStore(db, log)
	authProvider := auth.NewProvider(cfg.JWTSecretKey, cfg.APIKeyPepper, apiKeyStore)

	asyncJobs, err := asyncjob.NewClient(log, asyncjob.Config{
		Address:   cfg.TemporalAddress,
		Namespace: cfg.TemporalNamespace,
		TaskQueue: cfg.TemporalTaskQueue,
	})
	if err != nil {
		log.Sync()
		return nil, fmt.Errorf("init async job client: %w", err)
	}

	// The blob store backs asset delivery/upload; the asset catalog it
	// would back needs duration/dimension metadata the blob store's Attrs
	// doesn't carry, so the catalog runs in-memory until a metadata-bearing
	// adapter exists (see DESIGN.md).
	catalog := assetcatalog.NewMemoryCatalog(nil)

	projects := repos.NewProjectRepo(db, log)
	sequences := repos.NewSequenceRepo(db, log)
	operations := repos.NewOperationRecordRepo(db, log)
	idemp := repos.NewGormIdempotencyStore(db, log, cfg.IdempotencyTTL)

	service := NewTimelineService(log, projects, sequences, operations, idemp, publisher, effectsTable)

	projectHandler := handlers.NewProjectHandler(log, service)
	timelineHandler := handlers.NewTimelineHandler(log, service)
	lockHandler := handlers.NewLockHandler(log, service)
	historyHandler := handlers.NewHistoryHandler(log, service)
	readHandler := handlers.NewReadHandler(log, service, catalog)
	analysisHandler := handlers.NewAnalysisHandler(log, service)
	capabilitiesHandler := handlers.NewCapabilitiesHandler(log, service)
	authMiddleware := middleware.NewAuth(log, authProvider)

	router := server.NewRouter(server.RouterConfig{
		Log:                 log,
		OtelServiceName:     cfg.OtelServiceName,
		ProjectHandler:      projectHandler,
		TimelineHandler:     timelineHandler,
		LockHandler:         lockHandler,
		HistoryHandler:      historyHandler,
		ReadHandler:         readHandler,
		AnalysisHandler:     analysisHandler,
		CapabilitiesHandler: capabilitiesHandler,
		Auth:                authMiddleware,
	})

	return &App{
		Log:          log,
		DB:           db,
		Router:       router,
		Cfg:          cfg,
		Service:      service,
		AsyncJobs:    asyncJobs,
		otelShutdown: otelShutdown,
	}, nil
}

func (a *App) Start() {
	if a == nil || a.cancel != nil {
		return
	}
	_, cancel := context.WithCancel(context.Background())
	a.cancel = cancel
}

func (a *App) Run(addr string) error {
	if a == nil || a.Router == nil {
		return fmt.Errorf("app not initialized")
	}
	return a.Router.Run(addr)
}

func (a *App) Close() {
	if a == nil {
		return
	}
	if a.cancel != nil {
		a.cancel()
		a.cancel = nil
	}
	if a.otelShutdown != nil {
		_ = a.otelShutdown(context.Background())
	}
	if a.Log != nil {
		a.Log.Sync()
	}
}
