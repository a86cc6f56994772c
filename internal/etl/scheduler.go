package etl

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/mr1hm/go-disaster-warehouse/internal/config"
	"github.com/mr1hm/go-disaster-warehouse/internal/dedup"
	"github.com/mr1hm/go-disaster-warehouse/internal/logging"
	"github.com/mr1hm/go-disaster-warehouse/internal/models"
)

// Scheduler drives periodic ETL batches and dedup passes. Manual runs from
// the API share the same mutex as the loops, so two batches never overlap.
type Scheduler struct {
	pipeline *Pipeline
	deduper  *dedup.Deduper
	log      *slog.Logger

	etlInterval   time.Duration
	dedupInterval time.Duration

	mu sync.Mutex
	wg sync.WaitGroup
}

func NewScheduler(pipeline *Pipeline, deduper *dedup.Deduper, etlCfg config.ETLConfig, dedupCfg config.DedupConfig) *Scheduler {
	return &Scheduler{
		pipeline:      pipeline,
		deduper:       deduper,
		log:           logging.Component("scheduler"),
		etlInterval:   etlCfg.RunInterval,
		dedupInterval: dedupCfg.RunInterval,
	}
}

func (s *Scheduler) Start(ctx context.Context) {
	s.wg.Add(2)
	go s.runLoop(ctx, "etl", s.etlInterval, func(ctx context.Context) error {
		_, err := s.RunETL(ctx)
		return err
	})
	go s.runLoop(ctx, "dedup", s.dedupInterval, func(ctx context.Context) error {
		_, err := s.RunDedup(ctx)
		return err
	})
}

func (s *Scheduler) runLoop(ctx context.Context, job string, interval time.Duration, run func(context.Context) error) {
	defer s.wg.Done()
	s.log.Info("starting loop", "job", job, "interval", interval)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	// Initial run
	if err := run(ctx); err != nil && ctx.Err() == nil {
		s.log.Error("job failed", "job", job, "error", err)
	}

	for {
		select {
		case <-ctx.Done():
			s.log.Info("loop shutting down", "job", job)
			return
		case <-ticker.C:
			if err := run(ctx); err != nil && ctx.Err() == nil {
				s.log.Error("job failed", "job", job, "error", err)
			}
		}
	}
}

func (s *Scheduler) Stop() {
	s.wg.Wait()
	s.log.Info("scheduler stopped")
}

// RunETL executes one batch now, serialized against the periodic loops.
func (s *Scheduler) RunETL(ctx context.Context) (*models.RunSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pipeline.Run(ctx)
}

// RunDedup executes one dedup pass now, serialized against the periodic
// loops.
func (s *Scheduler) RunDedup(ctx context.Context) (*models.DedupSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deduper.Run(ctx)
}
