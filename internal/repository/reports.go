package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/mr1hm/go-disaster-warehouse/internal/models"
)

func (s *Store) ListMasterEvents(ctx context.Context, f Filter) ([]models.MasterEvent, error) {
	query := `
		SELECT event_id, event_time, disaster_group, disaster_type, disaster_subtype,
		       location_name, country_code, latitude, longitude,
		       fatalities_total, economic_loss_usd, affected_total
		FROM v_master_events
		WHERE 1=1`
	args := []any{}

	if f.Start != nil {
		query += " AND event_time >= ?"
		args = append(args, fmtTime(*f.Start))
	}
	if f.End != nil {
		query += " AND event_time <= ?"
		args = append(args, fmtTime(*f.End))
	}
	if f.Group != nil {
		query += " AND disaster_group = ?"
		args = append(args, *f.Group)
	}
	if f.Country != nil {
		query += " AND country_code = ?"
		args = append(args, *f.Country)
	}

	query += " ORDER BY event_time DESC, event_id DESC"
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("error querying master events: %w", err)
	}
	defer rows.Close()

	var events []models.MasterEvent
	for rows.Next() {
		var (
			ev           models.MasterEvent
			eventTime    string
			subtype      sql.NullString
			locationName sql.NullString
			countryCode  sql.NullString
			lat, lon     sql.NullFloat64
			fatalities   sql.NullInt64
			loss         sql.NullInt64
			affected     sql.NullInt64
		)
		err := rows.Scan(&ev.EventID, &eventTime, &ev.DisasterGroup, &ev.DisasterType, &subtype,
			&locationName, &countryCode, &lat, &lon, &fatalities, &loss, &affected)
		if err != nil {
			return nil, fmt.Errorf("error scanning master event: %w", err)
		}

		if ev.EventTime, err = parseStoredTime(eventTime); err != nil {
			return nil, err
		}
		ev.DisasterSubtype = stringPtr(subtype)
		ev.LocationName = stringPtr(locationName)
		ev.CountryCode = stringPtr(countryCode)
		ev.Latitude = floatPtr(lat)
		ev.Longitude = floatPtr(lon)
		ev.FatalitiesTotal = intPtr(fatalities)
		ev.EconomicLossUSD = intPtr(loss)
		ev.AffectedTotal = intPtr(affected)
		events = append(events, ev)
	}

	return events, rows.Err()
}

func (s *Store) MonthlyStats(ctx context.Context, f Filter) ([]models.MonthlyStat, error) {
	query := `
		SELECT strftime('%Y-%m', event_time) AS month,
		       disaster_group,
		       COUNT(*) AS event_count,
		       COALESCE(SUM(fatalities_total), 0),
		       COALESCE(SUM(economic_loss_usd), 0),
		       COALESCE(SUM(affected_total), 0)
		FROM v_master_events
		WHERE 1=1`
	args := []any{}

	if f.Start != nil {
		query += " AND event_time >= ?"
		args = append(args, fmtTime(*f.Start))
	}
	if f.End != nil {
		query += " AND event_time <= ?"
		args = append(args, fmtTime(*f.End))
	}
	if f.Group != nil {
		query += " AND disaster_group = ?"
		args = append(args, *f.Group)
	}

	query += " GROUP BY month, disaster_group ORDER BY month, disaster_group"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("error querying monthly stats: %w", err)
	}
	defer rows.Close()

	var stats []models.MonthlyStat
	for rows.Next() {
		var st models.MonthlyStat
		err := rows.Scan(&st.Month, &st.DisasterGroup, &st.EventCount,
			&st.TotalFatalities, &st.TotalEconomicLoss, &st.TotalAffected)
		if err != nil {
			return nil, fmt.Errorf("error scanning monthly stat: %w", err)
		}
		stats = append(stats, st)
	}

	return stats, rows.Err()
}

func (s *Store) Totals(ctx context.Context) (*models.WarehouseTotals, error) {
	t := &models.WarehouseTotals{}
	err := s.db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM event_fact WHERE is_master_event = 1),
			(SELECT COUNT(*) FROM event_fact),
			(SELECT COALESCE(SUM(fatalities_total), 0) FROM event_fact WHERE is_master_event = 1),
			(SELECT COALESCE(SUM(economic_loss_usd), 0) FROM event_fact WHERE is_master_event = 1),
			(SELECT COALESCE(SUM(affected_total), 0) FROM event_fact WHERE is_master_event = 1),
			(SELECT COUNT(DISTINCT l.country_iso3)
			 FROM event_fact f
			 JOIN location_dim l ON l.location_id = f.location_id
			 WHERE f.is_master_event = 1 AND l.country_iso3 IS NOT NULL)
	`).Scan(&t.MasterEvents, &t.TotalFacts, &t.TotalFatalities,
		&t.TotalEconomicLoss, &t.TotalAffected, &t.CountriesAffected)
	if err != nil {
		return nil, fmt.Errorf("error querying totals: %w", err)
	}
	return t, nil
}
