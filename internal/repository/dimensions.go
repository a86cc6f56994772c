package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// ResolveEventType returns the id for a (group, type, subtype) triple,
// creating the row on first encounter. No subtype is stored as '' so the
// natural key stays a single unique index.
func (w *warehouseTx) ResolveEventType(ctx context.Context, group, disasterType string, subtype *string) (int64, error) {
	sub := ""
	if subtype != nil {
		sub = *subtype
	}

	var id int64
	err := w.tx.QueryRowContext(ctx, `
		SELECT event_type_id FROM event_type_dim
		WHERE disaster_group = ? AND disaster_type = ? AND disaster_subtype = ?
	`, group, disasterType, sub).Scan(&id)
	if err == nil {
		return id, nil
	}
	if err != sql.ErrNoRows {
		return 0, fmt.Errorf("error looking up event type: %w", err)
	}

	// Insert-or-ignore then re-read: a racing pipeline may have won the
	// insert, in which case we take its row.
	_, err = w.tx.ExecContext(ctx, `
		INSERT INTO event_type_dim (disaster_group, disaster_type, disaster_subtype)
		VALUES (?, ?, ?)
		ON CONFLICT(disaster_group, disaster_type, disaster_subtype) DO NOTHING
	`, group, disasterType, sub)
	if err != nil {
		return 0, fmt.Errorf("error inserting event type: %w", err)
	}

	err = w.tx.QueryRowContext(ctx, `
		SELECT event_type_id FROM event_type_dim
		WHERE disaster_group = ? AND disaster_type = ? AND disaster_subtype = ?
	`, group, disasterType, sub).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("error reading event type after insert: %w", err)
	}
	return id, nil
}

// ResolveLocation returns the id for a place, creating the row on first
// encounter. Identity is the derived location key: exact rounded coordinates
// when present, else normalized text, else the shared sentinel row. A
// coordinate-keyed miss falls back to matching normalized text so a
// coordinate-bearing report reuses an earlier text-only row for the same
// place.
func (w *warehouseTx) ResolveLocation(ctx context.Context, lat, lon *float64, name, countryISO3 *string) (int64, error) {
	key := locationKey(lat, lon, name)

	var id int64
	err := w.tx.QueryRowContext(ctx, `
		SELECT location_id FROM location_dim WHERE location_key = ?
	`, key).Scan(&id)
	if err == nil {
		return id, nil
	}
	if err != sql.ErrNoRows {
		return 0, fmt.Errorf("error looking up location: %w", err)
	}

	if lat != nil && lon != nil && name != nil {
		if norm := normalizeLocationName(*name); norm != "" {
			err = w.tx.QueryRowContext(ctx, `
				SELECT location_id FROM location_dim
				WHERE normalized_name = ?
				ORDER BY location_id
				LIMIT 1
			`, norm).Scan(&id)
			if err == nil {
				return id, nil
			}
			if err != sql.ErrNoRows {
				return 0, fmt.Errorf("error looking up location by name: %w", err)
			}
		}
	}

	var normalized any
	if name != nil {
		if norm := normalizeLocationName(*name); norm != "" {
			normalized = norm
		}
	}

	_, err = w.tx.ExecContext(ctx, `
		INSERT INTO location_dim (location_key, location_name, normalized_name, latitude, longitude, country_iso3)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(location_key) DO NOTHING
	`, key, nullString(name), normalized, nullFloat(lat), nullFloat(lon), nullString(countryISO3))
	if err != nil {
		return 0, fmt.Errorf("error inserting location: %w", err)
	}

	err = w.tx.QueryRowContext(ctx, `
		SELECT location_id FROM location_dim WHERE location_key = ?
	`, key).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("error reading location after insert: %w", err)
	}
	return id, nil
}

// InsertMagnitude always creates a new row: two sources reporting the same
// value are two observations, not one.
func (w *warehouseTx) InsertMagnitude(ctx context.Context, value *float64, unit *string) (int64, error) {
	res, err := w.tx.ExecContext(ctx, `
		INSERT INTO magnitude_dim (primary_value, primary_unit) VALUES (?, ?)
	`, nullFloat(value), nullString(unit))
	if err != nil {
		return 0, fmt.Errorf("error inserting magnitude: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("error reading magnitude id: %w", err)
	}
	return id, nil
}

// locationKey derives the identity string for a place. Coordinates are
// rounded to 4 decimal places (~11 m) so float jitter does not split rows.
func locationKey(lat, lon *float64, name *string) string {
	if lat != nil && lon != nil {
		return fmt.Sprintf("geo:%.4f,%.4f", *lat, *lon)
	}
	if name != nil {
		if norm := normalizeLocationName(*name); norm != "" {
			return "text:" + norm
		}
	}
	return "none"
}

func normalizeLocationName(name string) string {
	return strings.Join(strings.Fields(strings.ToLower(name)), " ")
}
