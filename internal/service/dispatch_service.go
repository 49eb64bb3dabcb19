package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/noah-isme/seatwatch/internal/models"
	"github.com/noah-isme/seatwatch/pkg/jobs"
)

const notificationTitle = "Seat available"

type subscriberResolver interface {
	ResolveSubscribers(ctx context.Context, key models.SectionKey) ([]string, error)
}

// Deliverer sends one push notification to one device token.
type Deliverer interface {
	Deliver(ctx context.Context, token, title, body string) error
}

// DispatcherService fans a notification task out to every subscriber of the
// reopened section.
type DispatcherService struct {
	resolver  subscriberResolver
	deliverer Deliverer
	workers   int
	metrics   *MetricsService
	logger    *zap.Logger
}

// NewDispatcherService constructs DispatcherService.
func NewDispatcherService(resolver subscriberResolver, deliverer Deliverer, workers int, metrics *MetricsService, logger *zap.Logger) *DispatcherService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if workers <= 0 {
		workers = 1
	}
	return &DispatcherService{resolver: resolver, deliverer: deliverer, workers: workers, metrics: metrics, logger: logger}
}

// NotificationBody renders the message shown to subscribers.
func NotificationBody(task models.NotificationTask) string {
	return fmt.Sprintf("%s %s has an open seat (%d/%d)", task.Section, task.Title, task.EnrolledCount, task.Capacity)
}

// Dispatch delivers task to each subscriber and returns how many deliveries
// succeeded. A failing token is logged and does not stop the rest.
func (s *DispatcherService) Dispatch(ctx context.Context, task models.NotificationTask) int {
	log := loggerFor(ctx, s.logger).With(zap.String("section", task.Section.String()))

	tokens, err := s.resolver.ResolveSubscribers(ctx, task.Section)
	if err != nil {
		log.Error("failed to resolve subscribers", zap.Error(err))
		return 0
	}
	if len(tokens) == 0 {
		log.Debug("no subscribers for reopened section")
		return 0
	}

	body := NotificationBody(task)
	delivered := 0
	for _, token := range tokens {
		if err := s.deliverer.Deliver(ctx, token, notificationTitle, body); err != nil {
			s.metrics.ObserveDelivery(false)
			log.Warn("notification delivery failed", zap.String("token", maskToken(token)), zap.Error(err))
			continue
		}
		s.metrics.ObserveDelivery(true)
		delivered++
	}
	log.Info("notifications dispatched", zap.Int("subscribers", len(tokens)), zap.Int("delivered", delivered))
	return delivered
}

// DispatchAll runs every task on a bounded pool and waits for all of them
// before returning the total delivered count.
func (s *DispatcherService) DispatchAll(ctx context.Context, tasks []models.NotificationTask) int {
	if len(tasks) == 0 {
		return 0
	}
	batch := make([]jobs.Job, 0, len(tasks))
	for _, task := range tasks {
		batch = append(batch, jobs.Job{ID: task.Section.String(), Type: "dispatch", Payload: task})
	}

	pool := jobs.NewPool[int]("dispatch", func(ctx context.Context, job jobs.Job) (int, error) {
		return s.Dispatch(ctx, job.Payload.(models.NotificationTask)), nil
	}, jobs.PoolConfig{Workers: s.workers, Logger: loggerFor(ctx, s.logger)})

	total := 0
	for _, r := range pool.Run(ctx, batch) {
		total += r.Value
	}
	return total
}

func maskToken(token string) string {
	if len(token) <= 8 {
		return "****"
	}
	return token[:4] + "****" + token[len(token)-4:]
}
