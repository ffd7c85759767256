package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"portfolio_aggregator/internal/app/port"
)

// Sweepable is a cache that can drop its expired entries in bulk.
type Sweepable interface {
	Sweep(ctx context.Context) (int64, error)
}

// Sweeper periodically purges expired cache entries on a cron schedule.
type Sweeper struct {
	cron    *cron.Cron
	target  Sweepable
	logger  port.Logger
	timeout time.Duration
}

// NewSweeper registers the sweep job. schedule accepts standard cron specs and descriptors like "@every 15m".
func NewSweeper(target Sweepable, schedule string, logger port.Logger) (*Sweeper, error) {
	s := &Sweeper{
		cron:    cron.New(),
		target:  target,
		logger:  logger,
		timeout: time.Minute,
	}
	if _, err := s.cron.AddFunc(schedule, s.run); err != nil {
		return nil, fmt.Errorf("invalid sweep schedule %q: %w", schedule, err)
	}
	return s, nil
}

// Start runs the scheduler in its own goroutine.
func (s *Sweeper) Start() {
	s.cron.Start()
	s.logger.Info("Планировщик очистки кэша запущен")
}

// Stop waits for a running sweep to finish or ctx to expire.
func (s *Sweeper) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
	}
	s.logger.Info("Планировщик очистки кэша остановлен")
}

// RunOnce performs a single sweep.
func (s *Sweeper) RunOnce(ctx context.Context) (int64, error) {
	return s.target.Sweep(ctx)
}

func (s *Sweeper) run() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	removed, err := s.RunOnce(ctx)
	if err != nil {
		s.logger.Error("Ошибка очистки кэша", "error", err)
		return
	}
	if removed > 0 {
		s.logger.Debug("Удалены просроченные записи кэша", "count", removed)
	}
}
