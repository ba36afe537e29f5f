package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/mamadbah2/pantry/internal/config"
)

// Sweeper runs the periodic low-stock pass.
type Sweeper interface {
	Sweep(ctx context.Context) (int, error)
}

// SummarySender sends the weekly inventory summaries.
type SummarySender interface {
	SendWeeklySummaries(ctx context.Context) error
}

// Scheduler manages scheduled tasks.
type Scheduler struct {
	cron     *cron.Cron
	sweeper  Sweeper
	reporter SummarySender
	cfg      config.TrackingConfig
	timeout  time.Duration
	logger   *zap.Logger
}

// NewScheduler creates a new scheduler running in the configured timezone.
func NewScheduler(cfg config.TrackingConfig, sweeper Sweeper, reporter SummarySender, logger *zap.Logger) (*Scheduler, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %s: %w", cfg.Timezone, err)
	}

	return &Scheduler{
		cron:     cron.New(cron.WithLocation(loc)),
		sweeper:  sweeper,
		reporter: reporter,
		cfg:      cfg,
		timeout:  2 * time.Minute,
		logger:   logger,
	}, nil
}

// Start registers the jobs and starts the cron loop.
func (s *Scheduler) Start() error {
	s.logger.Info("starting scheduler",
		zap.String("sweep", s.cfg.SweepCronSchedule),
		zap.String("summary", s.cfg.SummaryCronSchedule))

	if _, err := s.cron.AddFunc(s.cfg.SweepCronSchedule, s.runSweep); err != nil {
		return fmt.Errorf("schedule low stock sweep: %w", err)
	}
	if s.reporter != nil {
		if _, err := s.cron.AddFunc(s.cfg.SummaryCronSchedule, s.sendWeeklySummaries); err != nil {
			return fmt.Errorf("schedule weekly summary: %w", err)
		}
	}

	s.cron.Start()
	return nil
}

// Stop stops the scheduler and waits for running jobs.
func (s *Scheduler) Stop() {
	s.logger.Info("stopping scheduler")
	<-s.cron.Stop().Done()
}

// Entries returns the number of registered jobs.
func (s *Scheduler) Entries() int {
	return len(s.cron.Entries())
}

func (s *Scheduler) runSweep() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	signals, err := s.sweeper.Sweep(ctx)
	if err != nil {
		s.logger.Error("low stock sweep failed", zap.Error(err), zap.Int("signals", signals))
		return
	}
	s.logger.Info("low stock sweep completed", zap.Int("signals", signals))
}

func (s *Scheduler) sendWeeklySummaries() {
	s.logger.Info("sending weekly summaries")
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	if err := s.reporter.SendWeeklySummaries(ctx); err != nil {
		s.logger.Error("failed to send weekly summaries", zap.Error(err))
		return
	}
	s.logger.Info("weekly summaries sent successfully")
}
