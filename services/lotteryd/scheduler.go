package lotteryd

import (
	"context"
	"log/slog"
	"time"

	"blocklotto/observability"
)

// Scheduler drives the rotation trigger. It polls the service on a fixed
// cadence and executes upkeep whenever the engine reports it due.
type Scheduler struct {
	service  *Service
	interval time.Duration
	logger   *slog.Logger
	metrics  *observability.UpkeepMetrics
}

// NewScheduler constructs a scheduler polling at the supplied interval.
func NewScheduler(service *Service, interval time.Duration, logger *slog.Logger) *Scheduler {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		service:  service,
		interval: interval,
		logger:   logger,
		metrics:  observability.Upkeep(),
	}
}

// Run blocks until the context is cancelled, executing upkeep passes.
func (s *Scheduler) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.tick()
		}
	}
}

func (s *Scheduler) tick() {
	start := time.Now()
	result, due, err := s.service.RunUpkeep()
	if !due && err == nil {
		return
	}
	sealed, idle := 0, 0
	if result != nil {
		sealed = len(result.RoundsClosed)
		idle = len(result.Skipped)
	}
	s.metrics.ObserveRun(time.Since(start), sealed, idle, err)
	if err != nil {
		s.logger.Error("upkeep failed", "error", err)
	}
}
