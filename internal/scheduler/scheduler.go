package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/i474232898/look-pyrenees/internal/pipeline"
)

// DefaultCron runs the pipeline once a day, after the morning acquisitions
// over the Pyrenees have been published.
const DefaultCron = "0 6 * * *"

// Runner is the part of pipeline.Runner used by the scheduler.
type Runner interface {
	Run(ctx context.Context, zones []string) (pipeline.Report, error)
}

// Scheduler periodically runs the pipeline for the configured zones.
type Scheduler struct {
	scheduler *gocron.Scheduler
	runner    Runner
	zones     []string
	cron      string
	log       *slog.Logger
}

// New creates a new Scheduler.
func New(zones []string, cron string, runner Runner, log *slog.Logger) *Scheduler {
	s := gocron.NewScheduler(time.UTC)
	// A run still in progress makes the next tick wait instead of overlapping.
	s.SingletonModeAll()
	if cron == "" {
		cron = DefaultCron
	}
	if log == nil {
		log = slog.Default()
	}
	return &Scheduler{
		scheduler: s,
		runner:    runner,
		zones:     zones,
		cron:      cron,
		log:       log,
	}
}

// Start schedules the periodic job and starts the underlying scheduler.
func (s *Scheduler) Start() error {
	if len(s.zones) == 0 {
		s.log.Warn("scheduler: no zones configured; nothing to schedule")
		return nil
	}

	job, err := s.scheduler.Cron(s.cron).Do(s.RunOnce)
	if err != nil {
		return err
	}

	s.scheduler.StartAsync()
	s.log.Info("scheduler: started", "cron", s.cron, "next", job.NextRun())
	return nil
}

// RunOnce runs the pipeline once, skipping when another run is in progress.
func (s *Scheduler) RunOnce() {
	s.log.Info("scheduler: running pipeline", "zones", s.zones)

	rep, err := s.runner.Run(context.Background(), s.zones)
	if errors.Is(err, pipeline.ErrBusy) {
		s.log.Warn("scheduler: previous run still in progress; skipping")
		return
	}
	if err != nil {
		s.log.Error("scheduler: run failed", "error", err)
		return
	}
	s.log.Info("scheduler: completed pipeline run",
		"run_id", rep.RunID,
		"artifacts", len(rep.Artifacts()),
		"failed", rep.Failed())
}

// Stop stops the scheduler and cancels any future jobs.
func (s *Scheduler) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}
