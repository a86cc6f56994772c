package dedup

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/mr1hm/go-disaster-warehouse/internal/config"
	"github.com/mr1hm/go-disaster-warehouse/internal/logging"
	"github.com/mr1hm/go-disaster-warehouse/internal/models"
	"github.com/mr1hm/go-disaster-warehouse/internal/repository"
)

const earthRadiusMeters = 6_371_000.0

// Deduper collapses fact rows that describe the same physical disaster
// reported through different sources: one row per cluster keeps
// is_master_event, the rest are demoted but retained.
type Deduper struct {
	repo           repository.DedupRepository
	log            *slog.Logger
	window         time.Duration
	distanceMeters float64
}

func NewDeduper(repo repository.DedupRepository, cfg config.DedupConfig) *Deduper {
	return &Deduper{
		repo:           repo,
		log:            logging.Component("dedup"),
		window:         cfg.Window,
		distanceMeters: cfg.DistanceMeters,
	}
}

// Run re-evaluates every fact and rewrites master flags per cluster. Flags
// are recomputed from scratch each pass, so a row demoted by an earlier pass
// becomes master again if its cluster no longer holds together.
func (d *Deduper) Run(ctx context.Context) (*models.DedupSummary, error) {
	started := time.Now()

	facts, err := d.repo.ListFactsForDedup(ctx)
	if err != nil {
		return nil, fmt.Errorf("error listing facts: %w", err)
	}

	clusters := d.cluster(facts)

	summary := &models.DedupSummary{Scanned: len(facts)}
	for _, members := range clusters {
		if len(members) > 1 {
			summary.Clusters++
		}

		master := pickMaster(members)
		duplicates := make([]int64, 0, len(members)-1)
		for _, m := range members {
			switch {
			case m.EventID == master.EventID:
				if !m.IsMasterEvent {
					summary.Promoted++
				}
			default:
				duplicates = append(duplicates, m.EventID)
				if m.IsMasterEvent {
					summary.Demoted++
				}
			}
		}

		if err := d.repo.ApplyMasterFlags(ctx, master.EventID, duplicates); err != nil {
			return nil, fmt.Errorf("error applying master flags: %w", err)
		}
	}

	summary.Duration = time.Since(started)
	d.log.Info("dedup pass complete",
		"scanned", summary.Scanned,
		"clusters", summary.Clusters,
		"demoted", summary.Demoted,
		"promoted", summary.Promoted,
		"duration", summary.Duration)
	return summary, nil
}

// cluster groups facts by anchor: each fact joins the first cluster whose
// anchor (earliest member) shares its disaster group and sits within the time
// and distance windows, else starts its own. Facts without coordinates never
// join and never accept members. Input must be ordered by event time.
func (d *Deduper) cluster(facts []models.DedupCandidate) [][]models.DedupCandidate {
	var clusters [][]models.DedupCandidate

	for _, f := range facts {
		placed := false
		if f.Latitude != nil && f.Longitude != nil {
			for i := range clusters {
				anchor := clusters[i][0]
				if anchor.DisasterGroup != f.DisasterGroup {
					continue
				}
				if anchor.Latitude == nil || anchor.Longitude == nil {
					continue
				}
				if f.EventTime.Sub(anchor.EventTime) > d.window {
					continue
				}
				if haversineMeters(*anchor.Latitude, *anchor.Longitude, *f.Latitude, *f.Longitude) > d.distanceMeters {
					continue
				}
				clusters[i] = append(clusters[i], f)
				placed = true
				break
			}
		}
		if !placed {
			clusters = append(clusters, []models.DedupCandidate{f})
		}
	}

	return clusters
}

// pickMaster prefers the most complete member. Ties fall to the earliest
// event time then lowest id, which is the input order, so first-seen wins.
func pickMaster(members []models.DedupCandidate) models.DedupCandidate {
	master := members[0]
	for _, m := range members[1:] {
		if completeness(m) > completeness(master) {
			master = m
		}
	}
	return master
}

func completeness(c models.DedupCandidate) int {
	n := 0
	if c.EconomicLossUSD != nil {
		n++
	}
	if c.FatalitiesTotal != nil {
		n++
	}
	if c.MagnitudeID != nil {
		n++
	}
	return n
}

func haversineMeters(lat1, lon1, lat2, lon2 float64) float64 {
	const degToRad = math.Pi / 180

	dLat := (lat2 - lat1) * degToRad
	dLon := (lon2 - lon1) * degToRad

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1*degToRad)*math.Cos(lat2*degToRad)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusMeters * math.Asin(math.Sqrt(a))
}
