package usecase

import (
	"context"
	"log/slog"
	"time"

	"github.com/dhimarketer/dhivehinoosV2-sub000/internal/ports"
)

// Scheduler wires the cron-like driver with the engine's batch entry point.
type Scheduler struct {
	driver ports.Scheduler
	engine *Engine
	logger *slog.Logger
}

// NewScheduler returns a helper to start/stop recurring batch runs.
func NewScheduler(driver ports.Scheduler, engine *Engine, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Scheduler{driver: driver, engine: engine, logger: logger}
}

// Start registers the batch run with the provided driver.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.driver == nil || s.engine == nil {
		return nil
	}

	job := func(trigger time.Time) {
		res, err := s.engine.ProcessDueItems(ctx, ProcessOptions{})
		if err != nil {
			s.logger.Error("batch run failed", "trigger", trigger, "error", err)
			return
		}
		for _, msg := range res.Errors {
			s.logger.Warn("batch item error", "trigger", trigger, "error", msg)
		}
	}

	return s.driver.Start(ctx, job)
}

// Stop gracefully tears down the underlying driver.
func (s *Scheduler) Stop(ctx context.Context) error {
	if s.driver == nil {
		return nil
	}

	return s.driver.Stop(ctx)
}
