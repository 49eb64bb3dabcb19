package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/seatwatch/internal/models"
	"github.com/noah-isme/seatwatch/pkg/jobs"
)

type pageSource interface {
	FetchEnrollmentPage(ctx context.Context, page int) ([]models.EnrollmentSnapshot, error)
}

// FetchResult aggregates one sweep over the enrollment pages.
type FetchResult struct {
	Snapshots      []models.EnrollmentSnapshot
	PagesRequested int
	FailedPages    []int
}

// FetcherService pulls every enrollment page with bounded parallelism.
type FetcherService struct {
	source  pageSource
	metrics *MetricsService
	logger  *zap.Logger
}

// NewFetcherService constructs FetcherService.
func NewFetcherService(source pageSource, metrics *MetricsService, logger *zap.Logger) *FetcherService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FetcherService{source: source, metrics: metrics, logger: logger}
}

// FetchAll requests pages 1..maxPage on a pool of workers goroutines. A page
// that fails contributes nothing and is left for the next cycle.
func (s *FetcherService) FetchAll(ctx context.Context, maxPage, workers int) FetchResult {
	result := FetchResult{PagesRequested: maxPage}
	if maxPage <= 0 {
		return result
	}

	batch := make([]jobs.Job, 0, maxPage)
	for page := 1; page <= maxPage; page++ {
		batch = append(batch, jobs.Job{ID: fmt.Sprintf("page-%d", page), Type: "enrollment_page", Payload: page})
	}

	log := loggerFor(ctx, s.logger)
	pool := jobs.NewPool[[]models.EnrollmentSnapshot]("page-fetch", s.fetchPage, jobs.PoolConfig{Workers: workers, Logger: log})
	for _, r := range pool.Run(ctx, batch) {
		page := r.Job.Payload.(int)
		if r.Err != nil {
			result.FailedPages = append(result.FailedPages, page)
			log.Warn("page fetch failed", zap.Int("page", page), zap.Error(r.Err))
			continue
		}
		result.Snapshots = append(result.Snapshots, r.Value...)
	}
	sort.Ints(result.FailedPages)

	log.Debug("pages fetched",
		zap.Int("pages", maxPage),
		zap.Int("failed", len(result.FailedPages)),
		zap.Int("snapshots", len(result.Snapshots)),
	)
	return result
}

func (s *FetcherService) fetchPage(ctx context.Context, job jobs.Job) ([]models.EnrollmentSnapshot, error) {
	page := job.Payload.(int)
	started := time.Now()
	s.metrics.FetchStarted()
	snapshots, err := s.source.FetchEnrollmentPage(ctx, page)
	s.metrics.FetchFinished(time.Since(started), err)
	return snapshots, err
}
