package main

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/noah-isme/seatwatch/internal/models"
	"github.com/noah-isme/seatwatch/internal/portal"
	"github.com/noah-isme/seatwatch/internal/push"
	"github.com/noah-isme/seatwatch/internal/repository"
	"github.com/noah-isme/seatwatch/internal/service"
	"github.com/noah-isme/seatwatch/pkg/cache"
	"github.com/noah-isme/seatwatch/pkg/config"
	"github.com/noah-isme/seatwatch/pkg/database"
)

type catalogStore interface {
	FindByKey(ctx context.Context, key models.SectionKey) (*models.CourseSection, error)
	InsertIfAbsent(ctx context.Context, section *models.CourseSection) (bool, error)
	UpdateFields(ctx context.Context, key models.SectionKey, patch models.SectionPatch) error
	ResolveSubscribers(ctx context.Context, key models.SectionKey) ([]string, error)
	List(ctx context.Context, filter models.SectionFilter) ([]models.CourseSection, int, error)
	Ping(ctx context.Context) error
	WriteSerialized() bool
}

// app holds the wired dependency graph shared by every subcommand.
type app struct {
	cfg     *config.Config
	logger  *zap.Logger
	db      *sqlx.DB
	redis   *redis.Client
	store   catalogStore
	cycles  *repository.CacheRepository
	metrics *service.MetricsService

	scheduler *service.SchedulerService
}

func newApp(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*app, error) {
	a := &app{cfg: cfg, logger: logger, metrics: service.NewMetricsService()}

	switch cfg.Database.Backend {
	case config.BackendMemory:
		logger.Warn("using in-memory catalog, state is lost on exit")
		a.store = repository.NewMemorySectionRepository()
	default:
		db, err := database.NewPostgres(ctx, cfg.Database, logger)
		if err != nil {
			return nil, fmt.Errorf("connect database: %w", err)
		}
		a.db = db
		if cfg.Database.AutoMigrate {
			if err := migrateUp(db, logger); err != nil {
				_ = db.Close()
				return nil, err
			}
		}
		a.store = repository.NewSectionRepository(db)
	}

	redisClient, err := cache.NewRedis(ctx, cfg.Redis)
	if err != nil {
		logger.Warn("redis unavailable, cycle reports kept in process", zap.Error(err))
	}
	a.redis = redisClient
	a.cycles = repository.NewCacheRepository(redisClient, logger)

	pageExtractor := portal.NewHTMLTableExtractor(cfg.Portal.PageRowSel, portal.DefaultColumns, logger)
	catalogExtractor := portal.NewHTMLTableExtractor(cfg.Portal.CatalogRowSel, portal.DefaultColumns, logger)
	portalClient := portal.NewClient(cfg.Portal, pageExtractor, catalogExtractor, logger)

	if cfg.Push.Endpoint == "" {
		logger.Warn("push endpoint not configured, notifications will fail")
	}
	deliverer := push.NewClient(cfg.Push)

	a.scheduler = service.NewSchedulerService(service.SchedulerDeps{
		Catalog: portalClient,
		Sync:    service.NewSyncService(a.store, cfg.Monitor.OldStudentMode, logger),
		Fetcher: service.NewFetcherService(portalClient, a.metrics, logger),
		Reconciler: service.NewReconcilerService(a.store, service.ReconcilerConfig{
			OldStudentMode: cfg.Monitor.OldStudentMode,
			Workers:        cfg.Monitor.Workers,
		}, a.metrics, logger),
		Dispatcher: service.NewDispatcherService(a.store, deliverer, cfg.Monitor.DispatchWorkers, a.metrics, logger),
		Recorder:   a.cycles,
		Metrics:    a.metrics,
		Logger:     logger,
	}, service.SchedulerConfig{
		Interval:    cfg.Monitor.Interval(),
		ResyncEvery: cfg.Monitor.ResyncEvery,
		MaxPage:     cfg.Monitor.MaxPage,
		Workers:     cfg.Monitor.Workers,
	})

	return a, nil
}

func (a *app) Close() {
	if a.cycles != nil {
		if err := a.cycles.Close(); err != nil {
			a.logger.Warn("failed to close redis", zap.Error(err))
		}
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.logger.Warn("failed to close database", zap.Error(err))
		}
	}
}

func migrateUp(db *sqlx.DB, logger *zap.Logger) error {
	migrator, err := database.NewMigrator(db)
	if err != nil {
		return err
	}
	if err := migrator.Up(); err != nil {
		return err
	}
	version, dirty, err := migrator.Version()
	if err != nil {
		return fmt.Errorf("read migration version: %w", err)
	}
	logger.Info("migrations applied", zap.Uint("version", version), zap.Bool("dirty", dirty))
	return nil
}
