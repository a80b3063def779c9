package ratelimit

import (
	"context"
	"log/slog"
	"time"
)

// Sweeper periodically sweeps a limiter to bound its memory.
type Sweeper struct {
	limiter  *Limiter
	interval time.Duration
	logger   *slog.Logger
}

func NewSweeper(limiter *Limiter, interval time.Duration, logger *slog.Logger) *Sweeper {
	return &Sweeper{
		limiter:  limiter,
		interval: interval,
		logger:   logger,
	}
}

// Run sweeps on a fixed interval until the context is canceled.
func (s *Sweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.limiter.Sweep()
			s.logger.Debug("rate limiter sweep completed")
		}
	}
}
