package repository

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"hallbook/internal/domain"

	"github.com/rs/zerolog"
)

const recoveryInterval = time.Minute

// FailoverIntakeLimiter uses the primary limiter until it errors, then the
// fallback. The primary is retried once per recoveryInterval.
type FailoverIntakeLimiter struct {
	primary  domain.IntakeLimiter
	fallback domain.IntakeLimiter
	logger   *zerolog.Logger
	isDown   atomic.Bool

	mu        sync.Mutex
	lastCheck time.Time
}

func NewFailoverIntakeLimiter(primary, fallback domain.IntakeLimiter, logger *zerolog.Logger) *FailoverIntakeLimiter {
	return &FailoverIntakeLimiter{
		primary:  primary,
		fallback: fallback,
		logger:   logger,
	}
}

func (r *FailoverIntakeLimiter) Allow(ctx context.Context, userID int64, limit int, window time.Duration) (bool, error) {
	if !r.isDown.Load() || r.shouldRetry() {
		allowed, err := r.primary.Allow(ctx, userID, limit, window)
		if err == nil {
			if r.isDown.Swap(false) {
				r.logger.Info().Msg("Primary intake limiter recovered")
			}
			return allowed, nil
		}
		if !r.isDown.Swap(true) {
			r.logger.Error().Err(err).Msg("Primary intake limiter failed, falling back to memory")
		}
		r.markChecked()
	}

	return r.fallback.Allow(ctx, userID, limit, window)
}

func (r *FailoverIntakeLimiter) shouldRetry() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return time.Since(r.lastCheck) > recoveryInterval
}

func (r *FailoverIntakeLimiter) markChecked() {
	r.mu.Lock()
	r.lastCheck = time.Now()
	r.mu.Unlock()
}
