package service

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/noah-isme/seatwatch/internal/capacity"
	"github.com/noah-isme/seatwatch/internal/models"
	appErrors "github.com/noah-isme/seatwatch/pkg/errors"
	"github.com/noah-isme/seatwatch/pkg/jobs"
)

type sectionStore interface {
	FindByKey(ctx context.Context, key models.SectionKey) (*models.CourseSection, error)
	UpdateFields(ctx context.Context, key models.SectionKey, patch models.SectionPatch) error
	WriteSerialized() bool
}

// ReconcilerConfig tunes reconciliation.
type ReconcilerConfig struct {
	OldStudentMode bool
	Workers        int
	// SerializeWrites forces one UpdateFields call at a time even when the
	// store accepts concurrent writes.
	SerializeWrites bool
}

// ReconcileResult summarises one reconciliation pass.
type ReconcileResult struct {
	Tasks     []models.NotificationTask
	Opened    int
	Filled    int
	Unchanged int
	Skipped   int
	Invalid   int
	Failed    int
}

type reconcileOutcome struct {
	transition models.Transition
	skipped    bool
	invalid    bool
	task       *models.NotificationTask
}

// ReconcilerService matches snapshots to stored sections and applies the
// transition policy.
type ReconcilerService struct {
	store   sectionStore
	cfg     ReconcilerConfig
	metrics *MetricsService
	logger  *zap.Logger

	writeMu sync.Mutex
}

// NewReconcilerService constructs ReconcilerService.
func NewReconcilerService(store sectionStore, cfg ReconcilerConfig, metrics *MetricsService, logger *zap.Logger) *ReconcilerService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	return &ReconcilerService{store: store, cfg: cfg, metrics: metrics, logger: logger}
}

// DecideTransition applies the three-way policy, in order: a full section
// with room is Opened, a non-full section without room is Filled, anything
// else is Unchanged.
func DecideTransition(storedFull bool, enrolled, effectiveCapacity int) models.Transition {
	switch {
	case enrolled < effectiveCapacity && storedFull:
		return models.TransitionOpened
	case enrolled >= effectiveCapacity && !storedFull:
		return models.TransitionFilled
	default:
		return models.TransitionUnchanged
	}
}

// Reconcile processes every snapshot independently. One section failing
// never blocks the others.
func (s *ReconcilerService) Reconcile(ctx context.Context, snapshots []models.EnrollmentSnapshot) ReconcileResult {
	var result ReconcileResult
	unique := dedupeSnapshots(snapshots)
	if len(unique) == 0 {
		return result
	}

	batch := make([]jobs.Job, 0, len(unique))
	for _, snap := range unique {
		batch = append(batch, jobs.Job{ID: snap.SectionKey.String(), Type: "reconcile", Payload: snap})
	}

	log := loggerFor(ctx, s.logger)
	pool := jobs.NewPool[reconcileOutcome]("reconcile", s.reconcileOne, jobs.PoolConfig{Workers: s.cfg.Workers, Logger: log})
	for _, r := range pool.Run(ctx, batch) {
		if r.Err != nil {
			result.Failed++
			snap := r.Job.Payload.(models.EnrollmentSnapshot)
			log.Error("section reconcile failed",
				zap.String("course_code", snap.CourseCode),
				zap.String("section_number", snap.SectionNumber),
				zap.Error(r.Err),
			)
			continue
		}
		out := r.Value
		switch {
		case out.skipped:
			result.Skipped++
		case out.invalid:
			result.Invalid++
		default:
			s.metrics.ObserveTransition(out.transition)
			switch out.transition {
			case models.TransitionOpened:
				result.Opened++
			case models.TransitionFilled:
				result.Filled++
			default:
				result.Unchanged++
			}
			if out.task != nil {
				result.Tasks = append(result.Tasks, *out.task)
			}
		}
	}
	return result
}

func (s *ReconcilerService) reconcileOne(ctx context.Context, job jobs.Job) (reconcileOutcome, error) {
	snap := job.Payload.(models.EnrollmentSnapshot)
	log := loggerFor(ctx, s.logger).With(
		zap.String("course_code", snap.CourseCode),
		zap.String("section_number", snap.SectionNumber),
	)

	stored, err := s.store.FindByKey(ctx, snap.SectionKey)
	if err != nil {
		if errors.Is(err, appErrors.ErrNotFound) {
			log.Debug("section not in catalog yet")
			return reconcileOutcome{skipped: true}, nil
		}
		return reconcileOutcome{}, appErrors.WrapAs(appErrors.ErrRepository, err, "failed to load section")
	}

	limit, err := capacity.Effective(snap.CapacityText, s.cfg.OldStudentMode)
	if err != nil {
		log.Error("snapshot has invalid capacity", zap.String("capacity_text", snap.CapacityText), zap.Error(err))
		return reconcileOutcome{invalid: true}, nil
	}
	if snap.CapacityText != stored.CapacityText {
		previous, prevErr := capacity.Effective(stored.CapacityText, s.cfg.OldStudentMode)
		if prevErr != nil || previous != limit {
			log.Info("effective capacity changed",
				zap.String("previous", stored.CapacityText),
				zap.String("current", snap.CapacityText),
				zap.Int("capacity", limit),
			)
		}
	}

	transition := DecideTransition(stored.IsFull, snap.EnrolledCount, limit)
	enrolled := snap.EnrolledCount
	capacityText := snap.CapacityText
	patch := models.SectionPatch{EnrolledCount: &enrolled, CapacityText: &capacityText}
	switch transition {
	case models.TransitionOpened:
		full := false
		patch.IsFull = &full
	case models.TransitionFilled:
		full := true
		patch.IsFull = &full
	}

	if err := s.update(ctx, snap.SectionKey, patch); err != nil {
		return reconcileOutcome{}, appErrors.WrapAs(appErrors.ErrRepository, err, "failed to update section")
	}

	out := reconcileOutcome{transition: transition}
	if transition == models.TransitionOpened {
		log.Info("seat opened", zap.Int("enrolled", enrolled), zap.Int("capacity", limit))
		out.task = &models.NotificationTask{
			Section:       snap.SectionKey,
			Title:         stored.Title,
			EnrolledCount: enrolled,
			Capacity:      limit,
		}
	}
	return out, nil
}

// update funnels writes through one mutex when the store has a
// single-threaded write path.
func (s *ReconcilerService) update(ctx context.Context, key models.SectionKey, patch models.SectionPatch) error {
	if s.cfg.SerializeWrites || s.store.WriteSerialized() {
		s.writeMu.Lock()
		defer s.writeMu.Unlock()
	}
	return s.store.UpdateFields(ctx, key, patch)
}

// dedupeSnapshots keeps the last snapshot per key so each section is read
// and written once per cycle.
func dedupeSnapshots(snapshots []models.EnrollmentSnapshot) []models.EnrollmentSnapshot {
	index := make(map[models.SectionKey]int, len(snapshots))
	unique := make([]models.EnrollmentSnapshot, 0, len(snapshots))
	for _, snap := range snapshots {
		if i, ok := index[snap.SectionKey]; ok {
			unique[i] = snap
			continue
		}
		index[snap.SectionKey] = len(unique)
		unique = append(unique, snap)
	}
	return unique
}
