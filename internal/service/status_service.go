package service

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/noah-isme/seatwatch/internal/models"
	appErrors "github.com/noah-isme/seatwatch/pkg/errors"
)

type cycleReader interface {
	LastCycleReport(ctx context.Context) (*models.CycleReport, error)
}

type schedulerControl interface {
	Status() SchedulerStatus
	RequestResync()
}

// MonitorStatus combines the live scheduler state with the last finished cycle.
type MonitorStatus struct {
	Scheduler SchedulerStatus     `json:"scheduler"`
	LastCycle *models.CycleReport `json:"last_cycle,omitempty"`
}

// StatusService answers status queries and admin resync requests.
type StatusService struct {
	cycles    cycleReader
	scheduler schedulerControl
	logger    *zap.Logger
}

// NewStatusService constructs StatusService.
func NewStatusService(cycles cycleReader, scheduler schedulerControl, logger *zap.Logger) *StatusService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StatusService{cycles: cycles, scheduler: scheduler, logger: logger}
}

// Status returns the scheduler view. A missing cycle report is not an error.
func (s *StatusService) Status(ctx context.Context) (*MonitorStatus, error) {
	status := &MonitorStatus{}
	if s.scheduler != nil {
		status.Scheduler = s.scheduler.Status()
	}
	report, err := s.cycles.LastCycleReport(ctx)
	switch {
	case err == nil:
		status.LastCycle = report
	case errors.Is(err, appErrors.ErrCacheMiss):
	default:
		s.logger.Warn("failed to read last cycle report", zap.Error(err))
		return nil, appErrors.WrapAs(appErrors.ErrInternal, err, "failed to read cycle status")
	}
	return status, nil
}

// RequestResync schedules a catalog resync at the start of the next cycle.
func (s *StatusService) RequestResync(ctx context.Context, requestedBy string) error {
	if s.scheduler == nil {
		return appErrors.Clone(appErrors.ErrInternal, "scheduler is not running in this process")
	}
	s.scheduler.RequestResync()
	s.logger.Info("catalog resync requested", zap.String("requested_by", requestedBy))
	return nil
}
