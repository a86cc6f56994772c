package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mr1hm/go-disaster-warehouse/internal/config"
	"github.com/mr1hm/go-disaster-warehouse/internal/logging"
	"github.com/mr1hm/go-disaster-warehouse/internal/models"
	"github.com/mr1hm/go-disaster-warehouse/internal/repository"
	"github.com/mr1hm/go-disaster-warehouse/internal/worker"
)

// Stats counts the fate of fetched records across all pollers since start.
type Stats struct {
	Created    int64
	Duplicates int64
	Failed     int64
}

// Manager owns one poller per enabled source and a worker pool that performs
// the idempotent staging inserts.
type Manager struct {
	cfg  *config.Config
	repo repository.StagingRepository
	pool *worker.Pool
	log  *slog.Logger
	wg   sync.WaitGroup

	usgs  *USGSAgent
	emdat *EMDATAgent
	web   *WebPacketAgent

	created    atomic.Int64
	duplicates atomic.Int64
	failed     atomic.Int64
}

func NewManager(cfg *config.Config, repo repository.StagingRepository) *Manager {
	m := &Manager{
		cfg:  cfg,
		repo: repo,
		log:  logging.Component("ingest"),
		usgs: NewUSGSAgent(cfg.Sources.USGSURL, cfg.Sources.USGSMinMagnitude),
	}
	if cfg.Sources.EMDATSource != "" {
		m.emdat = NewEMDATAgent(cfg.Sources.EMDATSource)
	}
	if cfg.Sources.WebFeedURL != "" {
		m.web = NewWebPacketAgent(cfg.Sources.WebFeedURL)
	}
	return m
}

func (m *Manager) Start(ctx context.Context) {
	process := func(ctx context.Context, ev *models.StagingEvent) error {
		inserted, err := m.repo.InsertStagingEvent(ctx, ev)
		if err != nil {
			m.failed.Add(1)
			return fmt.Errorf("error staging %s/%s: %w", ev.SourceName, ev.SourceEventID, err)
		}
		if !inserted {
			m.duplicates.Add(1)
			return nil
		}
		m.created.Add(1)
		m.log.Debug("staged record", "source", ev.SourceName, "source_event_id", ev.SourceEventID)
		return nil
	}

	m.pool = worker.NewPool(m.cfg.Worker, process)
	m.pool.Start(ctx)

	// Start a poller per enabled source
	if m.cfg.Sources.USGSEnabled {
		m.wg.Add(1)
		go m.runPoller(ctx, "usgs", m.cfg.Sources.USGSPollInterval)
	}
	if m.cfg.Sources.EMDATEnabled && m.emdat != nil {
		m.wg.Add(1)
		go m.runPoller(ctx, "emdat", m.cfg.Sources.EMDATPollInterval)
	}
	if m.cfg.Sources.WebFeedEnabled && m.web != nil {
		m.wg.Add(1)
		go m.runPoller(ctx, "web", m.cfg.Sources.WebFeedPollInterval)
	}
}

func (m *Manager) runPoller(ctx context.Context, source string, interval time.Duration) {
	defer m.wg.Done()
	m.log.Info("starting poller", "source", source, "interval", interval)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	// Initial poll
	m.poll(ctx, source)

	for {
		select {
		case <-ctx.Done():
			m.log.Info("poller shutting down", "source", source)
			return
		case <-ticker.C:
			m.poll(ctx, source)
		}
	}
}

func (m *Manager) poll(ctx context.Context, source string) {
	m.log.Debug("polling", "source", source)

	var (
		events []*models.StagingEvent
		err    error
	)

	switch source {
	case "usgs":
		end := time.Now().UTC()
		start := end.Add(-m.cfg.Sources.USGSLookback)
		events, err = m.usgs.Fetch(ctx, start, end)
	case "emdat":
		events, err = m.emdat.Fetch(ctx)
	case "web":
		events, err = m.web.Fetch(ctx)
	}
	if err != nil {
		if ctx.Err() == nil {
			m.log.Error("poll failed", "source", source, "error", err)
		}
		return
	}

	for _, ev := range events {
		m.pool.Submit(ev)
	}

	m.log.Debug("poll complete", "source", source, "count", len(events))
}

func (m *Manager) Stop() {
	m.wg.Wait()
	m.pool.Stop()

	stats := m.Stats()
	m.log.Info("ingest manager stopped",
		"created", stats.Created,
		"duplicates", stats.Duplicates,
		"failed", stats.Failed)
}

func (m *Manager) Stats() Stats {
	return Stats{
		Created:    m.created.Load(),
		Duplicates: m.duplicates.Load(),
		Failed:     m.failed.Load(),
	}
}
