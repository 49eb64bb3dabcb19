package service

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/seatwatch/internal/models"
)

// MaxInterval bounds the sleep between cycles.
const MaxInterval = 20 * time.Minute

type catalogSource interface {
	FetchFullCatalog(ctx context.Context) ([]models.CatalogRow, error)
}

type cycleRecorder interface {
	SaveCycleReport(ctx context.Context, report models.CycleReport) error
}

// SchedulerConfig controls cadence and per-cycle fan-out.
type SchedulerConfig struct {
	Interval    time.Duration
	ResyncEvery int
	MaxPage     int
	Workers     int
}

// SchedulerStatus is a point-in-time view of the loop.
type SchedulerStatus struct {
	Running         bool                  `json:"running"`
	Cycle           int                   `json:"cycle"`
	State           models.SchedulerState `json:"state"`
	ResyncRequested bool                  `json:"resync_requested"`
	Interval        string                `json:"interval"`
	ResyncEvery     int                   `json:"resync_every"`
}

// SchedulerService drives the Resyncing/Polling cycle.
type SchedulerService struct {
	catalog    catalogSource
	syncer     *SyncService
	fetcher    *FetcherService
	reconciler *ReconcilerService
	dispatcher *DispatcherService
	recorder   cycleRecorder
	metrics    *MetricsService
	logger     *zap.Logger
	cfg        SchedulerConfig

	sleep func(ctx context.Context, d time.Duration) error
	now   func() time.Time

	resyncRequested atomic.Bool
	running         atomic.Bool

	mu    sync.RWMutex
	cycle int
	state models.SchedulerState
}

// SchedulerDeps groups the collaborators of the scheduler.
type SchedulerDeps struct {
	Catalog    catalogSource
	Sync       *SyncService
	Fetcher    *FetcherService
	Reconciler *ReconcilerService
	Dispatcher *DispatcherService
	Recorder   cycleRecorder
	Metrics    *MetricsService
	Logger     *zap.Logger
}

// NewSchedulerService constructs SchedulerService.
func NewSchedulerService(deps SchedulerDeps, cfg SchedulerConfig) *SchedulerService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ResyncEvery <= 0 {
		cfg.ResyncEvery = 1
	}
	if cfg.MaxPage <= 0 {
		cfg.MaxPage = 1
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	cfg.Interval = ClampInterval(cfg.Interval)
	return &SchedulerService{
		catalog:    deps.Catalog,
		syncer:     deps.Sync,
		fetcher:    deps.Fetcher,
		reconciler: deps.Reconciler,
		dispatcher: deps.Dispatcher,
		recorder:   deps.Recorder,
		metrics:    deps.Metrics,
		logger:     logger,
		cfg:        cfg,
		sleep:      sleepContext,
		now:        time.Now,
		state:      models.StatePolling,
	}
}

// ClampInterval keeps d within [0, MaxInterval].
func ClampInterval(d time.Duration) time.Duration {
	if d < 0 {
		return 0
	}
	if d > MaxInterval {
		return MaxInterval
	}
	return d
}

// ShouldResync reports whether cycle n starts with a catalog resync.
func (s *SchedulerService) ShouldResync(n int) bool {
	return n%s.cfg.ResyncEvery == 0
}

// RequestResync forces a resync at the start of the next cycle.
func (s *SchedulerService) RequestResync() {
	s.resyncRequested.Store(true)
}

// Status returns the current loop state.
func (s *SchedulerService) Status() SchedulerStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return SchedulerStatus{
		Running:         s.running.Load(),
		Cycle:           s.cycle,
		State:           s.state,
		ResyncRequested: s.resyncRequested.Load(),
		Interval:        s.cfg.Interval.String(),
		ResyncEvery:     s.cfg.ResyncEvery,
	}
}

// Run executes cycles until ctx is cancelled. It only returns ctx.Err().
func (s *SchedulerService) Run(ctx context.Context) error {
	s.running.Store(true)
	defer s.running.Store(false)

	s.logger.Info("scheduler started",
		zap.Duration("interval", s.cfg.Interval),
		zap.Int("resync_every", s.cfg.ResyncEvery),
		zap.Int("max_page", s.cfg.MaxPage),
		zap.Int("workers", s.cfg.Workers),
	)
	for n := 0; ; n++ {
		if err := ctx.Err(); err != nil {
			s.logger.Info("scheduler stopped", zap.Int("cycles", n))
			return err
		}
		s.RunCycle(ctx, n)
		if err := s.sleep(ctx, s.cfg.Interval); err != nil {
			s.logger.Info("scheduler stopped", zap.Int("cycles", n+1))
			return err
		}
	}
}

// RunCycle performs one cycle: an optional resync followed by a poll.
func (s *SchedulerService) RunCycle(ctx context.Context, n int) models.CycleReport {
	ctx = WithCycle(ctx, n)
	log := loggerFor(ctx, s.logger)

	report := models.CycleReport{
		ID:        uuid.NewString(),
		Cycle:     n,
		State:     models.StatePolling,
		StartedAt: s.now(),
	}

	forced := s.resyncRequested.Swap(false)
	if s.ShouldResync(n) || forced {
		s.setState(n, models.StateResyncing)
		report.State = models.StateResyncing
		report.Resynced = s.resync(ctx, &report)
	}

	s.setState(n, models.StatePolling)
	fetched := s.fetcher.FetchAll(ctx, s.cfg.MaxPage, s.cfg.Workers)
	report.PagesRequested = fetched.PagesRequested
	report.PagesFailed = len(fetched.FailedPages)
	report.Snapshots = len(fetched.Snapshots)

	reconciled := s.reconciler.Reconcile(ctx, fetched.Snapshots)
	report.Opened = reconciled.Opened
	report.Filled = reconciled.Filled
	report.Unchanged = reconciled.Unchanged
	report.Skipped = reconciled.Skipped
	report.Invalid = reconciled.Invalid
	report.Failed = reconciled.Failed

	report.NotificationsDelivered = s.dispatcher.DispatchAll(ctx, reconciled.Tasks)
	report.FinishedAt = s.now()

	s.metrics.ObserveCycle(report)
	if s.recorder != nil {
		if err := s.recorder.SaveCycleReport(ctx, report); err != nil {
			log.Warn("failed to store cycle report", zap.Error(err))
		}
	}

	log.Info("cycle finished",
		zap.String("state", string(report.State)),
		zap.Int("pages_failed", report.PagesFailed),
		zap.Int("snapshots", report.Snapshots),
		zap.Int("opened", report.Opened),
		zap.Int("filled", report.Filled),
		zap.Int("failed", report.Failed),
		zap.Int("delivered", report.NotificationsDelivered),
		zap.Duration("duration", report.Duration()),
	)
	return report
}

// Resync fetches the full catalog and inserts new sections. It is exposed for
// the one-shot sync command.
func (s *SchedulerService) Resync(ctx context.Context) (SyncResult, error) {
	rows, err := s.catalog.FetchFullCatalog(ctx)
	if err != nil {
		return SyncResult{}, err
	}
	return s.syncer.Sync(ctx, rows), nil
}

func (s *SchedulerService) resync(ctx context.Context, report *models.CycleReport) bool {
	log := loggerFor(ctx, s.logger)
	result, err := s.Resync(ctx)
	if err != nil {
		log.Error("catalog resync failed, continuing with poll", zap.Error(err))
		return false
	}
	report.SectionsInserted = result.Inserted
	log.Info("catalog resynced",
		zap.Int("inserted", result.Inserted),
		zap.Int("existing", result.Existing),
		zap.Int("invalid", result.Invalid),
		zap.Int("failed", result.Failed),
	)
	return true
}

func (s *SchedulerService) setState(n int, state models.SchedulerState) {
	s.mu.Lock()
	s.cycle = n
	s.state = state
	s.mu.Unlock()
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
