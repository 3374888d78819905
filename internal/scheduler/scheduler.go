package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	domrepo "NFTAppraiser/internal/domain/repository"
	"NFTAppraiser/internal/services/performance"
	"NFTAppraiser/internal/usecase"
	"NFTAppraiser/pkg/config"
	"NFTAppraiser/pkg/logger"
)

// Scheduler runs the periodic lifecycle tasks: the retraining sweep over all
// tracked models and the tracker snapshot to the performance store.
type Scheduler struct {
	cron     *cron.Cron
	manager  *usecase.RetrainingManager
	tracker  *performance.Tracker
	store    domrepo.PerformanceStore
	cfg      config.LifecycleConfig
	snapTick time.Duration
	log      *logger.Logger
	ctx      context.Context
}

func New(ctx context.Context, manager *usecase.RetrainingManager, tracker *performance.Tracker, store domrepo.PerformanceStore, cfg config.LifecycleConfig, snapTick time.Duration, log *logger.Logger) *Scheduler {
	return &Scheduler{
		cron:     cron.New(cron.WithSeconds()),
		manager:  manager,
		tracker:  tracker,
		store:    store,
		cfg:      cfg,
		snapTick: snapTick,
		log:      log,
		ctx:      ctx,
	}
}

// Register adds the retraining sweep and snapshot tasks.
func (s *Scheduler) Register() error {
	sweep := s.cfg.SweepCron
	if sweep == "" {
		sweep = "0 0 * * * *"
	}
	if _, err := s.cron.AddFunc(sweep, s.retrainingSweep); err != nil {
		return fmt.Errorf("register retraining sweep: %w", err)
	}

	tick := s.snapTick
	if tick <= 0 {
		tick = 5 * time.Minute
	}
	if _, err := s.cron.AddFunc(fmt.Sprintf("@every %s", tick), s.snapshot); err != nil {
		return fmt.Errorf("register snapshot task: %w", err)
	}
	return nil
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.Info("scheduler started")
}

// Stop stops the cron scheduler, waiting for in-flight tasks.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.log.Info("scheduler stopped")
}

// RunSweepNow executes the retraining sweep immediately.
func (s *Scheduler) RunSweepNow() { s.retrainingSweep() }

func (s *Scheduler) retrainingSweep() {
	ctx, cancel := context.WithTimeout(s.ctx, time.Minute)
	defer cancel()

	triggers := s.manager.EvaluateAll(ctx)
	s.log.Info("retraining sweep complete", logger.Int("triggers", len(triggers)))
}

func (s *Scheduler) snapshot() {
	ctx, cancel := context.WithTimeout(s.ctx, 30*time.Second)
	defer cancel()

	records := s.tracker.Snapshot()
	if err := s.store.Save(ctx, records); err != nil {
		s.log.Error("tracker snapshot failed", logger.Error(err))
		return
	}
	s.log.Debug("tracker snapshot saved", logger.Int("records", len(records)))
}
