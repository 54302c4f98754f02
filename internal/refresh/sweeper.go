package refresh

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Sweeper periodically deletes expired refresh tokens. Expiry is otherwise
// only checked lazily at validation time, so dead rows accumulate without it.
type Sweeper struct {
	service  *Service
	interval time.Duration
	logger   *zap.Logger
}

// NewSweeper builds a sweeper; intervals below one minute are raised to it.
func NewSweeper(service *Service, interval time.Duration, logger *zap.Logger) *Sweeper {
	if interval < time.Minute {
		interval = time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sweeper{service: service, interval: interval, logger: logger}
}

// Run blocks until ctx is done, sweeping once per interval.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context) {
	sweepCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	count, err := s.service.DeleteExpiredBefore(sweepCtx, time.Now().UTC())
	if err != nil {
		s.logger.Warn("refresh token sweep failed", zap.Error(err))
		return
	}
	if count > 0 {
		s.logger.Info("swept expired refresh tokens", zap.Int64("count", count))
	}
}
