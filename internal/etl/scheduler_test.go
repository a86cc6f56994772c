package etl

import (
	"context"
	"testing"
	"time"

	"github.com/mr1hm/go-disaster-warehouse/internal/config"
	"github.com/mr1hm/go-disaster-warehouse/internal/dedup"
	"github.com/mr1hm/go-disaster-warehouse/internal/models"
	"github.com/mr1hm/go-disaster-warehouse/internal/repository"
)

func setupScheduler(t *testing.T, store *repository.Store, interval time.Duration) *Scheduler {
	pipeline := NewPipeline(store, store, kochiTransformer(), nil, config.ETLConfig{BatchSize: 10})
	deduper := dedup.NewDeduper(store, config.DedupConfig{
		Window:         48 * time.Hour,
		DistanceMeters: 100_000,
	})
	return NewScheduler(pipeline, deduper,
		config.ETLConfig{BatchSize: 10, RunInterval: interval},
		config.DedupConfig{Window: 48 * time.Hour, DistanceMeters: 100_000, RunInterval: interval})
}

func TestScheduler_RunsOnStartAndStopsCleanly(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	eventTime := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	staged := &models.StagingEvent{
		SourceName:    "TEST",
		SourceEventID: "sched-1",
		EventTime:     &eventTime,
		DisasterType:  "Earthquake",
	}
	if _, err := store.InsertStagingEvent(ctx, staged); err != nil {
		t.Fatalf("InsertStagingEvent failed: %v", err)
	}

	sched := setupScheduler(t, store, time.Hour)
	runCtx, cancel := context.WithCancel(ctx)
	sched.Start(runCtx)

	// The initial run should drain staging without waiting for a tick.
	deadline := time.Now().Add(2 * time.Second)
	for {
		pending, err := store.CountPending(ctx)
		if err != nil {
			t.Fatalf("CountPending failed: %v", err)
		}
		if pending == 0 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("staging not drained, %d rows still pending", pending)
		}
		time.Sleep(5 * time.Millisecond)
	}

	cancel()
	sched.Stop()

	events, err := store.ListMasterEvents(ctx, repository.Filter{})
	if err != nil {
		t.Fatalf("ListMasterEvents failed: %v", err)
	}
	if len(events) != 1 {
		t.Errorf("expected 1 master event after scheduled run, got %d", len(events))
	}
}

func TestScheduler_ManualRuns(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	eventTime := time.Date(2024, 5, 2, 8, 0, 0, 0, time.UTC)
	for _, id := range []string{"m-1", "m-2"} {
		ev := &models.StagingEvent{
			SourceName:    "TEST",
			SourceEventID: id,
			EventTime:     &eventTime,
			DisasterType:  "Flood",
			Latitude:      f64p(10.0),
			Longitude:     f64p(76.0),
		}
		if _, err := store.InsertStagingEvent(ctx, ev); err != nil {
			t.Fatalf("InsertStagingEvent failed: %v", err)
		}
	}

	// Manual runs work without Start: no loops, nothing to stop.
	sched := setupScheduler(t, store, time.Hour)

	runSummary, err := sched.RunETL(ctx)
	if err != nil {
		t.Fatalf("RunETL failed: %v", err)
	}
	if runSummary.Succeeded != 2 {
		t.Errorf("expected 2 loaded records, got %d", runSummary.Succeeded)
	}

	dedupSummary, err := sched.RunDedup(ctx)
	if err != nil {
		t.Fatalf("RunDedup failed: %v", err)
	}
	if dedupSummary.Scanned != 2 || dedupSummary.Clusters != 1 {
		t.Errorf("expected 2 facts in 1 cluster, got scanned=%d clusters=%d",
			dedupSummary.Scanned, dedupSummary.Clusters)
	}

	events, err := store.ListMasterEvents(ctx, repository.Filter{})
	if err != nil {
		t.Fatalf("ListMasterEvents failed: %v", err)
	}
	if len(events) != 1 {
		t.Errorf("expected duplicates collapsed to 1 master, got %d", len(events))
	}
}
