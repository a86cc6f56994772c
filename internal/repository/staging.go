package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/mr1hm/go-disaster-warehouse/internal/models"
)

// staleClaimTTL is how long a claim stamp protects a row. A pipeline that
// crashed mid-run releases its rows implicitly once the stamp ages out.
const staleClaimTTL = time.Hour

func (s *Store) InsertStagingEvent(ctx context.Context, ev *models.StagingEvent) (bool, error) {
	if err := ev.Validate(); err != nil {
		return false, err
	}

	ingested := ev.IngestedAt
	if ingested.IsZero() {
		ingested = time.Now().UTC()
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO staging_events (
			source_name, source_event_id, event_time, location_text,
			latitude, longitude, disaster_type, magnitude_value, magnitude_unit,
			fatalities, economic_loss, affected, raw_json, processed, ingested_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 0, ?)
		ON CONFLICT(source_name, source_event_id) DO NOTHING
	`, ev.SourceName, ev.SourceEventID, nullTime(ev.EventTime), nullString(ev.LocationText),
		nullFloat(ev.Latitude), nullFloat(ev.Longitude), ev.DisasterType,
		nullFloat(ev.MagnitudeValue), nullString(ev.MagnitudeUnit),
		nullInt(ev.Fatalities), nullString(ev.EconomicLoss), nullInt(ev.Affected),
		nullBytes(ev.RawJSON), fmtTime(ingested))
	if err != nil {
		return false, fmt.Errorf("error inserting staging event: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("error reading rows affected: %w", err)
	}
	if n == 0 {
		// Already staged; idempotent re-ingestion is a no-op.
		return false, nil
	}

	if id, err := res.LastInsertId(); err == nil {
		ev.StagingID = id
	}
	ev.IngestedAt = ingested
	return true, nil
}

func (s *Store) ClaimPending(ctx context.Context, runID string, limit int) ([]models.StagingEvent, error) {
	if limit <= 0 {
		return nil, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("error beginning transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	staleCutoff := now.Add(-staleClaimTTL)

	// Stamp first, then read back what this run stamped: two racing runs can
	// never return the same row.
	_, err = tx.ExecContext(ctx, `
		UPDATE staging_events
		SET claimed_by = ?, claimed_at = ?
		WHERE staging_id IN (
			SELECT staging_id FROM staging_events
			WHERE processed = 0 AND (claimed_by IS NULL OR claimed_at < ?)
			ORDER BY ingested_at, staging_id
			LIMIT ?
		)
	`, runID, fmtTime(now), fmtTime(staleCutoff), limit)
	if err != nil {
		return nil, fmt.Errorf("error claiming staging events: %w", err)
	}

	rows, err := tx.QueryContext(ctx, `
		SELECT staging_id, source_name, source_event_id, event_time, location_text,
		       latitude, longitude, disaster_type, magnitude_value, magnitude_unit,
		       fatalities, economic_loss, affected, raw_json, processed,
		       claimed_by, claimed_at, ingested_at
		FROM staging_events
		WHERE claimed_by = ? AND processed = 0
		ORDER BY ingested_at, staging_id
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("error querying claimed events: %w", err)
	}
	defer rows.Close()

	var events []models.StagingEvent
	for rows.Next() {
		ev, err := scanStagingEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, *ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating claimed events: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("error committing claim: %w", err)
	}

	return events, nil
}

func (s *Store) MarkProcessed(ctx context.Context, stagingID int64) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE staging_events SET processed = 1 WHERE staging_id = ?
	`, stagingID)
	if err != nil {
		return fmt.Errorf("error marking staging event processed: %w", err)
	}
	return nil
}

func (s *Store) CountPending(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM staging_events WHERE processed = 0
	`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("error counting pending staging events: %w", err)
	}
	return count, nil
}

func scanStagingEvent(rows *sql.Rows) (*models.StagingEvent, error) {
	ev := &models.StagingEvent{}
	var (
		eventTime, locationText, magnitudeUnit sql.NullString
		economicLoss, claimedBy, claimedAt     sql.NullString
		latitude, longitude, magnitudeValue    sql.NullFloat64
		fatalities, affected                   sql.NullInt64
		raw                                    []byte
		processed                              int
		ingestedAt                             string
	)

	err := rows.Scan(
		&ev.StagingID, &ev.SourceName, &ev.SourceEventID, &eventTime, &locationText,
		&latitude, &longitude, &ev.DisasterType, &magnitudeValue, &magnitudeUnit,
		&fatalities, &economicLoss, &affected, &raw, &processed,
		&claimedBy, &claimedAt, &ingestedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("error scanning staging event: %w", err)
	}

	if ev.EventTime, err = timePtr(eventTime); err != nil {
		return nil, err
	}
	if ev.ClaimedAt, err = timePtr(claimedAt); err != nil {
		return nil, err
	}
	ev.RawJSON = raw
	ev.LocationText = stringPtr(locationText)
	ev.Latitude = floatPtr(latitude)
	ev.Longitude = floatPtr(longitude)
	ev.MagnitudeValue = floatPtr(magnitudeValue)
	ev.MagnitudeUnit = stringPtr(magnitudeUnit)
	ev.Fatalities = intPtr(fatalities)
	ev.EconomicLoss = stringPtr(economicLoss)
	ev.Affected = intPtr(affected)
	ev.ClaimedBy = stringPtr(claimedBy)
	ev.Processed = processed != 0

	if ev.IngestedAt, err = parseStoredTime(ingestedAt); err != nil {
		return nil, err
	}

	return ev, nil
}
