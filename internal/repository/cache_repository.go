package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/noah-isme/seatwatch/internal/models"
	appErrors "github.com/noah-isme/seatwatch/pkg/errors"
)

const (
	lastCycleKey = "seatwatch:cycle:last"
	cycleTTL     = 24 * time.Hour
)

// CacheRepository keeps the most recent cycle report in Redis so the ops API
// can serve it from any replica. Without a client it falls back to process
// memory.
type CacheRepository struct {
	client *redis.Client
	logger *zap.Logger

	mu    sync.RWMutex
	local *models.CycleReport
}

// NewCacheRepository constructs a cache repository. client may be nil.
func NewCacheRepository(client *redis.Client, logger *zap.Logger) *CacheRepository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CacheRepository{client: client, logger: logger}
}

// SaveCycleReport stores report as the latest cycle.
func (r *CacheRepository) SaveCycleReport(ctx context.Context, report models.CycleReport) error {
	r.mu.Lock()
	copied := report
	r.local = &copied
	r.mu.Unlock()

	if r.client == nil {
		return nil
	}
	payload, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("marshal cycle report: %w", err)
	}
	if err := r.client.Set(ctx, lastCycleKey, payload, cycleTTL).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", lastCycleKey, err)
	}
	return nil
}

// LastCycleReport returns the latest report or appErrors.ErrCacheMiss.
func (r *CacheRepository) LastCycleReport(ctx context.Context) (*models.CycleReport, error) {
	if r.client != nil {
		raw, err := r.client.Get(ctx, lastCycleKey).Bytes()
		switch {
		case err == nil:
			var report models.CycleReport
			if err := json.Unmarshal(raw, &report); err != nil {
				return nil, fmt.Errorf("unmarshal cache value for %s: %w", lastCycleKey, err)
			}
			return &report, nil
		case errors.Is(err, redis.Nil):
		default:
			r.logger.Warn("redis get failed, using local cycle report", zap.String("key", lastCycleKey), zap.Error(err))
		}
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.local == nil {
		return nil, appErrors.ErrCacheMiss
	}
	copied := *r.local
	return &copied, nil
}

// Ping checks Redis connectivity when configured.
func (r *CacheRepository) Ping(ctx context.Context) error {
	if r.client == nil {
		return nil
	}
	return r.client.Ping(ctx).Err()
}

// Close releases the underlying Redis connection if present.
func (r *CacheRepository) Close() error {
	if r.client == nil {
		return nil
	}
	return r.client.Close()
}
