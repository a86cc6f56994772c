package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/mr1hm/go-disaster-warehouse/internal/models"
)

func (w *warehouseTx) InsertSourceAudit(ctx context.Context, a *models.SourceAudit) (int64, error) {
	processedAt := a.ProcessedAt
	if processedAt.IsZero() {
		processedAt = time.Now().UTC()
	}

	res, err := w.tx.ExecContext(ctx, `
		INSERT INTO source_audit (staging_id, source_name, source_event_id, raw_payload, status, processed_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, a.StagingID, a.SourceName, a.SourceEventID, nullBytes(a.RawPayload), a.Status, fmtTime(processedAt))
	if err != nil {
		return 0, fmt.Errorf("error inserting source audit: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("error reading source audit id: %w", err)
	}
	a.SourceRecordID = id
	return id, nil
}

func (w *warehouseTx) InsertEventFact(ctx context.Context, f *models.EventFact) (int64, error) {
	createdAt := f.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	// event_time is NOT NULL: a record without one fails here and the
	// pipeline routes it to the dead-letter table.
	res, err := w.tx.ExecContext(ctx, `
		INSERT INTO event_fact (
			event_time, event_time_end, location_id, event_type_id, magnitude_id,
			fatalities_total, economic_loss_usd, affected_total, is_master_event, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, nullTime(f.EventTime), nullTime(f.EventTimeEnd), f.LocationID, f.EventTypeID,
		nullInt(f.MagnitudeID), nullInt(f.FatalitiesTotal), nullInt(f.EconomicLossUSD),
		nullInt(f.AffectedTotal), boolInt(f.IsMasterEvent), fmtTime(createdAt))
	if err != nil {
		return 0, fmt.Errorf("error inserting event fact: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("error reading event fact id: %w", err)
	}
	f.EventID = id
	return id, nil
}

func (w *warehouseTx) LinkFactToSource(ctx context.Context, eventID, sourceRecordID int64) error {
	_, err := w.tx.ExecContext(ctx, `
		INSERT INTO event_source_junction (event_id, source_record_id) VALUES (?, ?)
	`, eventID, sourceRecordID)
	if err != nil {
		return fmt.Errorf("error linking fact to source: %w", err)
	}
	return nil
}

func (w *warehouseTx) MarkStagingProcessed(ctx context.Context, stagingID int64) error {
	_, err := w.tx.ExecContext(ctx, `
		UPDATE staging_events SET processed = 1 WHERE staging_id = ?
	`, stagingID)
	if err != nil {
		return fmt.Errorf("error marking staging event processed: %w", err)
	}
	return nil
}

// InsertETLError writes a dead-letter row. Runs outside the per-record
// transaction so the reason survives that transaction's rollback.
func (s *Store) InsertETLError(ctx context.Context, e *models.ETLError) error {
	createdAt := e.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO etl_errors (staging_id, run_id, stage, message, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, e.StagingID, e.RunID, e.Stage, e.Message, fmtTime(createdAt))
	if err != nil {
		return fmt.Errorf("error inserting etl error: %w", err)
	}
	return nil
}

func (s *Store) ListETLErrors(ctx context.Context, limit int) ([]models.ETLError, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT error_id, staging_id, run_id, stage, message, created_at
		FROM etl_errors
		ORDER BY error_id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("error querying etl errors: %w", err)
	}
	defer rows.Close()

	var errs []models.ETLError
	for rows.Next() {
		var e models.ETLError
		var createdAt string
		if err := rows.Scan(&e.ErrorID, &e.StagingID, &e.RunID, &e.Stage, &e.Message, &createdAt); err != nil {
			return nil, fmt.Errorf("error scanning etl error: %w", err)
		}
		if e.CreatedAt, err = parseStoredTime(createdAt); err != nil {
			return nil, err
		}
		errs = append(errs, e)
	}

	return errs, rows.Err()
}

func (s *Store) ListFactsForDedup(ctx context.Context) ([]models.DedupCandidate, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT f.event_id, f.event_time, t.disaster_group, l.latitude, l.longitude,
		       f.fatalities_total, f.economic_loss_usd, f.magnitude_id, f.is_master_event
		FROM event_fact f
		JOIN event_type_dim t ON t.event_type_id = f.event_type_id
		JOIN location_dim l ON l.location_id = f.location_id
		ORDER BY f.event_time, f.event_id
	`)
	if err != nil {
		return nil, fmt.Errorf("error querying facts for dedup: %w", err)
	}
	defer rows.Close()

	var candidates []models.DedupCandidate
	for rows.Next() {
		var (
			c          models.DedupCandidate
			eventTime  string
			lat, lon   sql.NullFloat64
			fatalities sql.NullInt64
			loss       sql.NullInt64
			magnitude  sql.NullInt64
			master     int
		)
		err := rows.Scan(&c.EventID, &eventTime, &c.DisasterGroup, &lat, &lon,
			&fatalities, &loss, &magnitude, &master)
		if err != nil {
			return nil, fmt.Errorf("error scanning dedup candidate: %w", err)
		}

		if c.EventTime, err = parseStoredTime(eventTime); err != nil {
			return nil, err
		}
		c.Latitude = floatPtr(lat)
		c.Longitude = floatPtr(lon)
		c.FatalitiesTotal = intPtr(fatalities)
		c.EconomicLossUSD = intPtr(loss)
		c.MagnitudeID = intPtr(magnitude)
		c.IsMasterEvent = master != 0
		candidates = append(candidates, c)
	}

	return candidates, rows.Err()
}

func (s *Store) ApplyMasterFlags(ctx context.Context, masterID int64, duplicateIDs []int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("error beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		UPDATE event_fact SET is_master_event = 1 WHERE event_id = ?
	`, masterID); err != nil {
		return fmt.Errorf("error promoting master event: %w", err)
	}

	if len(duplicateIDs) > 0 {
		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(duplicateIDs)), ",")
		args := make([]any, len(duplicateIDs))
		for i, id := range duplicateIDs {
			args[i] = id
		}

		query := fmt.Sprintf(`UPDATE event_fact SET is_master_event = 0 WHERE event_id IN (%s)`, placeholders)
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("error demoting duplicate events: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("error committing master flags: %w", err)
	}
	return nil
}
