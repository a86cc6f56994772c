package etl

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/mr1hm/go-disaster-warehouse/internal/config"
	"github.com/mr1hm/go-disaster-warehouse/internal/logging"
	"github.com/mr1hm/go-disaster-warehouse/internal/models"
	"github.com/mr1hm/go-disaster-warehouse/internal/repository"
	"github.com/mr1hm/go-disaster-warehouse/internal/transform"
)

// Notifier receives a notice for every committed fact. *bus.Bus satisfies
// this.
type Notifier interface {
	Publish(n models.FactNotice)
}

// Pipeline moves claimed staging rows through transform and load. One Run is
// one batch; records fail individually and never abort the batch.
type Pipeline struct {
	staging   repository.StagingRepository
	warehouse repository.WarehouseRepository
	tr        *transform.Transformer
	notifier  Notifier
	log       *slog.Logger
	batchSize int
}

func NewPipeline(staging repository.StagingRepository, warehouse repository.WarehouseRepository, tr *transform.Transformer, notifier Notifier, cfg config.ETLConfig) *Pipeline {
	return &Pipeline{
		staging:   staging,
		warehouse: warehouse,
		tr:        tr,
		notifier:  notifier,
		log:       logging.Component("etl"),
		batchSize: cfg.BatchSize,
	}
}

// Run claims one batch and processes it sequentially. The returned summary
// counts every claimed record as either succeeded or failed, except records
// skipped because the context was cancelled; those stay claimed until the
// stale-claim TTL releases them.
func (p *Pipeline) Run(ctx context.Context) (*models.RunSummary, error) {
	runID := uuid.NewString()
	started := time.Now()
	log := p.log.With("run_id", runID)

	batch, err := p.staging.ClaimPending(ctx, runID, p.batchSize)
	if err != nil {
		return nil, fmt.Errorf("error claiming batch: %w", err)
	}

	summary := &models.RunSummary{RunID: runID, Claimed: len(batch), StartedAt: started.UTC()}
	for i := range batch {
		if ctx.Err() != nil {
			log.Info("run cancelled between records", "remaining", len(batch)-i)
			break
		}

		stage, err := p.processRecord(ctx, runID, &batch[i])
		if err != nil {
			if ctx.Err() != nil {
				// Cancellation mid-record is an abort, not a poison record.
				log.Info("run cancelled mid-record", "staging_id", batch[i].StagingID)
				break
			}
			summary.Failed++
			p.failRecord(ctx, runID, stage, &batch[i], err)
			continue
		}
		summary.Succeeded++
	}

	summary.Duration = time.Since(started)
	log.Info("etl run complete",
		"claimed", summary.Claimed,
		"succeeded", summary.Succeeded,
		"failed", summary.Failed,
		"duration", summary.Duration)
	return summary, nil
}

// processRecord runs the per-record transform+load. The returned stage names
// where the failure happened for the dead-letter row.
func (p *Pipeline) processRecord(ctx context.Context, runID string, ev *models.StagingEvent) (string, error) {
	log := p.log.With("run_id", runID, "staging_id", ev.StagingID)

	var loss *int64
	if ev.EconomicLoss != nil {
		var err error
		if loss, err = transform.ParseEconomicLoss(*ev.EconomicLoss); err != nil {
			log.Debug("economic loss unparsable", "error", err)
		}
	}

	lat, lon := ev.Latitude, ev.Longitude
	var countryISO3 *string
	if ev.LocationText != nil {
		if lat == nil || lon == nil {
			if coords := p.tr.GeocodeLocation(ctx, *ev.LocationText); coords != nil {
				lat, lon = &coords.Latitude, &coords.Longitude
			}
		}
		countryISO3 = p.tr.CountryISO3(ctx, *ev.LocationText)
	}

	group, disasterType, subtype := transform.ClassifyDisasterType(ev.DisasterType)

	magValue, magUnit := ev.MagnitudeValue, ev.MagnitudeUnit
	if magValue != nil && magUnit == nil {
		magValue, magUnit = transform.NormalizeMagnitudeUnit(magValue, ev.DisasterType)
	}

	stage := "load"
	var fact *models.EventFact
	err := p.warehouse.InTx(ctx, func(tx repository.WarehouseTx) error {
		stage = "resolve_event_type"
		typeID, err := tx.ResolveEventType(ctx, group, disasterType, subtype)
		if err != nil {
			return err
		}

		stage = "resolve_location"
		locID, err := tx.ResolveLocation(ctx, lat, lon, ev.LocationText, countryISO3)
		if err != nil {
			return err
		}

		stage = "insert_magnitude"
		var magID *int64
		if magValue != nil {
			id, err := tx.InsertMagnitude(ctx, magValue, magUnit)
			if err != nil {
				return err
			}
			magID = &id
		}

		stage = "insert_source_audit"
		auditID, err := tx.InsertSourceAudit(ctx, &models.SourceAudit{
			StagingID:     ev.StagingID,
			SourceName:    ev.SourceName,
			SourceEventID: ev.SourceEventID,
			RawPayload:    ev.RawJSON,
			Status:        "processed",
		})
		if err != nil {
			return err
		}

		stage = "insert_fact"
		fact = &models.EventFact{
			EventTime:       ev.EventTime,
			LocationID:      locID,
			EventTypeID:     typeID,
			MagnitudeID:     magID,
			FatalitiesTotal: ev.Fatalities,
			EconomicLossUSD: loss,
			AffectedTotal:   ev.Affected,
			IsMasterEvent:   true,
		}
		factID, err := tx.InsertEventFact(ctx, fact)
		if err != nil {
			return err
		}

		stage = "link_source"
		if err := tx.LinkFactToSource(ctx, factID, auditID); err != nil {
			return err
		}

		stage = "mark_processed"
		return tx.MarkStagingProcessed(ctx, ev.StagingID)
	})
	if err != nil {
		return stage, err
	}

	if p.notifier != nil {
		notice := models.FactNotice{
			EventID:       fact.EventID,
			EventTime:     *fact.EventTime,
			DisasterGroup: group,
			DisasterType:  disasterType,
			SourceName:    ev.SourceName,
		}
		if ev.LocationText != nil {
			notice.LocationText = *ev.LocationText
		}
		p.notifier.Publish(notice)
	}

	return "", nil
}

// failRecord finalizes a poison record: still marked processed so it is never
// retried, with the reason persisted to the dead-letter table.
func (p *Pipeline) failRecord(ctx context.Context, runID, stage string, ev *models.StagingEvent, cause error) {
	p.log.Error("record failed",
		"run_id", runID,
		"staging_id", ev.StagingID,
		"stage", stage,
		"error", cause)

	if err := p.staging.MarkProcessed(ctx, ev.StagingID); err != nil {
		p.log.Error("error marking failed record processed", "staging_id", ev.StagingID, "error", err)
	}

	err := p.warehouse.InsertETLError(ctx, &models.ETLError{
		StagingID: ev.StagingID,
		RunID:     runID,
		Stage:     stage,
		Message:   cause.Error(),
	})
	if err != nil {
		p.log.Error("error writing dead-letter row", "staging_id", ev.StagingID, "error", err)
	}
}
