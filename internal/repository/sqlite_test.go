package repository

import (
	"context"
	"testing"
	"time"

	"github.com/mr1hm/go-disaster-warehouse/internal/models"
)

func setupTestStore(t *testing.T) *Store {
	store, err := NewStore(":memory:")
	if err != nil {
		t.Fatalf("failed to create test store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func strp(s string) *string   { return &s }
func f64p(f float64) *float64 { return &f }
func i64p(i int64) *int64     { return &i }

func stagingFixture(id string, ingested time.Time) *models.StagingEvent {
	eventTime := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	return &models.StagingEvent{
		SourceName:    "TEST",
		SourceEventID: id,
		EventTime:     &eventTime,
		LocationText:  strp("Kochi, India"),
		DisasterType:  "Earthquake",
		IngestedAt:    ingested,
	}
}

func TestStore_InsertStagingEvent_Idempotent(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	ev := stagingFixture("eq1", time.Now().UTC())
	created, err := store.InsertStagingEvent(ctx, ev)
	if err != nil {
		t.Fatalf("InsertStagingEvent failed: %v", err)
	}
	if !created {
		t.Error("expected created=true on first insert")
	}
	if ev.StagingID == 0 {
		t.Error("expected staging id to be set")
	}

	// Same (source_name, source_event_id) again is a no-op.
	created, err = store.InsertStagingEvent(ctx, stagingFixture("eq1", time.Now().UTC()))
	if err != nil {
		t.Fatalf("InsertStagingEvent failed: %v", err)
	}
	if created {
		t.Error("expected created=false on duplicate insert")
	}

	pending, err := store.CountPending(ctx)
	if err != nil {
		t.Fatalf("CountPending failed: %v", err)
	}
	if pending != 1 {
		t.Errorf("expected 1 pending row, got %d", pending)
	}
}

func TestStore_InsertStagingEvent_Validation(t *testing.T) {
	store := setupTestStore(t)

	_, err := store.InsertStagingEvent(context.Background(), &models.StagingEvent{SourceEventID: "x"})
	if err == nil {
		t.Error("expected error for missing source name")
	}

	_, err = store.InsertStagingEvent(context.Background(), &models.StagingEvent{SourceName: "TEST"})
	if err == nil {
		t.Error("expected error for missing source event id")
	}
}

func TestStore_ClaimPending(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	for i, id := range []string{"a", "b", "c"} {
		if _, err := store.InsertStagingEvent(ctx, stagingFixture(id, base.Add(time.Duration(i)*time.Minute))); err != nil {
			t.Fatalf("InsertStagingEvent failed: %v", err)
		}
	}

	// First run claims the two oldest.
	claimed, err := store.ClaimPending(ctx, "run-1", 2)
	if err != nil {
		t.Fatalf("ClaimPending failed: %v", err)
	}
	if len(claimed) != 2 {
		t.Fatalf("expected 2 claimed rows, got %d", len(claimed))
	}
	if claimed[0].SourceEventID != "a" || claimed[1].SourceEventID != "b" {
		t.Errorf("expected oldest-first order a, b, got %s, %s", claimed[0].SourceEventID, claimed[1].SourceEventID)
	}
	if claimed[0].ClaimedBy == nil || *claimed[0].ClaimedBy != "run-1" {
		t.Errorf("expected claim stamp run-1, got %v", claimed[0].ClaimedBy)
	}

	// A second run only sees what the first left behind.
	claimed, err = store.ClaimPending(ctx, "run-2", 10)
	if err != nil {
		t.Fatalf("ClaimPending failed: %v", err)
	}
	if len(claimed) != 1 {
		t.Fatalf("expected 1 claimed row for second run, got %d", len(claimed))
	}
	if claimed[0].SourceEventID != "c" {
		t.Errorf("expected remaining row c, got %s", claimed[0].SourceEventID)
	}

	// Everything is claimed now.
	claimed, err = store.ClaimPending(ctx, "run-3", 10)
	if err != nil {
		t.Fatalf("ClaimPending failed: %v", err)
	}
	if len(claimed) != 0 {
		t.Errorf("expected no claimable rows, got %d", len(claimed))
	}
}

func TestStore_ClaimPending_StaleReclaim(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	if _, err := store.InsertStagingEvent(ctx, stagingFixture("stale", time.Now().UTC())); err != nil {
		t.Fatalf("InsertStagingEvent failed: %v", err)
	}
	if _, err := store.ClaimPending(ctx, "crashed-run", 1); err != nil {
		t.Fatalf("ClaimPending failed: %v", err)
	}

	// Age the claim past the TTL as if the claiming run died.
	aged := fmtTime(time.Now().UTC().Add(-2 * staleClaimTTL))
	if _, err := store.db.ExecContext(ctx, `UPDATE staging_events SET claimed_at = ?`, aged); err != nil {
		t.Fatalf("failed to age claim: %v", err)
	}

	claimed, err := store.ClaimPending(ctx, "recovery-run", 10)
	if err != nil {
		t.Fatalf("ClaimPending failed: %v", err)
	}
	if len(claimed) != 1 {
		t.Fatalf("expected stale row to be reclaimable, got %d rows", len(claimed))
	}
	if claimed[0].ClaimedBy == nil || *claimed[0].ClaimedBy != "recovery-run" {
		t.Errorf("expected claim stamp recovery-run, got %v", claimed[0].ClaimedBy)
	}
}

func TestStore_MarkProcessed(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	ev := stagingFixture("done", time.Now().UTC())
	if _, err := store.InsertStagingEvent(ctx, ev); err != nil {
		t.Fatalf("InsertStagingEvent failed: %v", err)
	}

	if err := store.MarkProcessed(ctx, ev.StagingID); err != nil {
		t.Fatalf("MarkProcessed failed: %v", err)
	}

	pending, err := store.CountPending(ctx)
	if err != nil {
		t.Fatalf("CountPending failed: %v", err)
	}
	if pending != 0 {
		t.Errorf("expected 0 pending after mark, got %d", pending)
	}

	claimed, err := store.ClaimPending(ctx, "run", 10)
	if err != nil {
		t.Fatalf("ClaimPending failed: %v", err)
	}
	if len(claimed) != 0 {
		t.Errorf("processed rows must not be claimable, got %d", len(claimed))
	}
}

func TestWarehouseTx_ResolveEventType(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	var first, second, noSubtype int64
	err := store.InTx(ctx, func(tx WarehouseTx) error {
		var err error
		if first, err = tx.ResolveEventType(ctx, "Geophysical", "Earthquake", strp("Ground Shaking")); err != nil {
			return err
		}
		if second, err = tx.ResolveEventType(ctx, "Geophysical", "Earthquake", strp("Ground Shaking")); err != nil {
			return err
		}
		noSubtype, err = tx.ResolveEventType(ctx, "Climatological", "Drought", nil)
		return err
	})
	if err != nil {
		t.Fatalf("InTx failed: %v", err)
	}

	if first != second {
		t.Errorf("expected same id for same triple, got %d and %d", first, second)
	}
	if noSubtype == first {
		t.Error("expected distinct id for distinct triple")
	}

	// Nil subtype and an explicit subtype are different triples.
	var withSub int64
	err = store.InTx(ctx, func(tx WarehouseTx) error {
		var err error
		withSub, err = tx.ResolveEventType(ctx, "Climatological", "Drought", strp("Dry Spell"))
		return err
	})
	if err != nil {
		t.Fatalf("InTx failed: %v", err)
	}
	if withSub == noSubtype {
		t.Error("expected nil-subtype and subtyped triples to get distinct ids")
	}
}

func TestWarehouseTx_ResolveEventType_Concurrent(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	ids := make(chan int64, 2)
	errs := make(chan error, 2)
	for i := 0; i < 2; i++ {
		go func() {
			err := store.InTx(ctx, func(tx WarehouseTx) error {
				id, err := tx.ResolveEventType(ctx, "Hydrological", "Flood", strp("Flash Flood"))
				if err != nil {
					return err
				}
				ids <- id
				return nil
			})
			errs <- err
		}()
	}

	for i := 0; i < 2; i++ {
		if err := <-errs; err != nil {
			t.Fatalf("concurrent resolve failed: %v", err)
		}
	}
	a, b := <-ids, <-ids
	if a != b {
		t.Errorf("expected concurrent resolves to agree on one id, got %d and %d", a, b)
	}
}

func TestWarehouseTx_InsertMagnitude_NeverDeduplicated(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	var first, second int64
	err := store.InTx(ctx, func(tx WarehouseTx) error {
		var err error
		if first, err = tx.InsertMagnitude(ctx, f64p(6.1), strp("Richter")); err != nil {
			return err
		}
		second, err = tx.InsertMagnitude(ctx, f64p(6.1), strp("Richter"))
		return err
	})
	if err != nil {
		t.Fatalf("InTx failed: %v", err)
	}

	if first == second {
		t.Errorf("expected two observations to get distinct ids, got %d twice", first)
	}
}

func TestWarehouseTx_ResolveLocation(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	var byCoords, byCoordsAgain, byText, byTextVariant, sentinel, sentinelAgain int64
	err := store.InTx(ctx, func(tx WarehouseTx) error {
		var err error
		if byCoords, err = tx.ResolveLocation(ctx, f64p(9.93121), f64p(76.26731), strp("Kochi, India"), strp("IND")); err != nil {
			return err
		}
		// Jitter within the 4-decimal rounding maps to the same key.
		if byCoordsAgain, err = tx.ResolveLocation(ctx, f64p(9.93119), f64p(76.26729), strp("Kochi, India"), strp("IND")); err != nil {
			return err
		}
		if byText, err = tx.ResolveLocation(ctx, nil, nil, strp("Chennai, India"), strp("IND")); err != nil {
			return err
		}
		if byTextVariant, err = tx.ResolveLocation(ctx, nil, nil, strp("  chennai,   INDIA "), strp("IND")); err != nil {
			return err
		}
		if sentinel, err = tx.ResolveLocation(ctx, nil, nil, nil, nil); err != nil {
			return err
		}
		sentinelAgain, err = tx.ResolveLocation(ctx, nil, nil, nil, nil)
		return err
	})
	if err != nil {
		t.Fatalf("InTx failed: %v", err)
	}

	if byCoords != byCoordsAgain {
		t.Errorf("expected rounded coordinates to share one row, got %d and %d", byCoords, byCoordsAgain)
	}
	if byText != byTextVariant {
		t.Errorf("expected normalized text to share one row, got %d and %d", byText, byTextVariant)
	}
	if sentinel != sentinelAgain {
		t.Errorf("expected one sentinel row, got %d and %d", sentinel, sentinelAgain)
	}
	if byCoords == byText || byCoords == sentinel {
		t.Error("expected distinct rows for distinct places")
	}
}

func TestWarehouseTx_ResolveLocation_TextThenCoordinates(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	// A text-only report creates the row; a later coordinate-bearing report
	// for the same name reuses it instead of splitting the dimension.
	var textOnly, withCoords int64
	err := store.InTx(ctx, func(tx WarehouseTx) error {
		var err error
		if textOnly, err = tx.ResolveLocation(ctx, nil, nil, strp("Kochi, India"), nil); err != nil {
			return err
		}
		withCoords, err = tx.ResolveLocation(ctx, f64p(9.9312), f64p(76.2673), strp("Kochi, India"), strp("IND"))
		return err
	})
	if err != nil {
		t.Fatalf("InTx failed: %v", err)
	}

	if textOnly != withCoords {
		t.Errorf("expected coordinate report to reuse text row, got %d and %d", textOnly, withCoords)
	}
}

func TestWarehouseTx_FactFlow(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	staged := stagingFixture("flow", time.Now().UTC())
	if _, err := store.InsertStagingEvent(ctx, staged); err != nil {
		t.Fatalf("InsertStagingEvent failed: %v", err)
	}

	eventTime := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	var eventID int64
	err := store.InTx(ctx, func(tx WarehouseTx) error {
		typeID, err := tx.ResolveEventType(ctx, "Geophysical", "Earthquake", strp("Ground Shaking"))
		if err != nil {
			return err
		}
		locID, err := tx.ResolveLocation(ctx, f64p(9.9312), f64p(76.2673), strp("Kochi, India"), strp("IND"))
		if err != nil {
			return err
		}
		magID, err := tx.InsertMagnitude(ctx, f64p(6.1), strp("Richter"))
		if err != nil {
			return err
		}

		audit := &models.SourceAudit{
			StagingID:     staged.StagingID,
			SourceName:    staged.SourceName,
			SourceEventID: staged.SourceEventID,
			Status:        "processed",
		}
		auditID, err := tx.InsertSourceAudit(ctx, audit)
		if err != nil {
			return err
		}

		fact := &models.EventFact{
			EventTime:       &eventTime,
			LocationID:      locID,
			EventTypeID:     typeID,
			MagnitudeID:     &magID,
			FatalitiesTotal: i64p(12),
			EconomicLossUSD: i64p(3_100_000),
			IsMasterEvent:   true,
		}
		if eventID, err = tx.InsertEventFact(ctx, fact); err != nil {
			return err
		}
		if err := tx.LinkFactToSource(ctx, eventID, auditID); err != nil {
			return err
		}
		return tx.MarkStagingProcessed(ctx, staged.StagingID)
	})
	if err != nil {
		t.Fatalf("InTx failed: %v", err)
	}

	events, err := store.ListMasterEvents(ctx, Filter{})
	if err != nil {
		t.Fatalf("ListMasterEvents failed: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected 1 master event, got %d", len(events))
	}
	got := events[0]
	if got.EventID != eventID {
		t.Errorf("expected event id %d, got %d", eventID, got.EventID)
	}
	if got.EconomicLossUSD == nil || *got.EconomicLossUSD != 3_100_000 {
		t.Errorf("expected loss 3100000, got %v", got.EconomicLossUSD)
	}
	if got.DisasterSubtype == nil || *got.DisasterSubtype != "Ground Shaking" {
		t.Errorf("expected subtype Ground Shaking, got %v", got.DisasterSubtype)
	}
	if got.CountryCode == nil || *got.CountryCode != "IND" {
		t.Errorf("expected country IND, got %v", got.CountryCode)
	}

	pending, err := store.CountPending(ctx)
	if err != nil {
		t.Fatalf("CountPending failed: %v", err)
	}
	if pending != 0 {
		t.Errorf("expected staging row processed, %d still pending", pending)
	}
}

func TestStore_InTx_RollsBackOnError(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	wantErr := context.DeadlineExceeded
	err := store.InTx(ctx, func(tx WarehouseTx) error {
		if _, err := tx.ResolveEventType(ctx, "Geophysical", "Earthquake", nil); err != nil {
			return err
		}
		return wantErr
	})
	if err != wantErr {
		t.Fatalf("expected fn error back, got %v", err)
	}

	// The dimension created inside the failed transaction must be gone.
	var count int64
	if err := store.db.QueryRow(`SELECT COUNT(*) FROM event_type_dim`).Scan(&count); err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if count != 0 {
		t.Errorf("expected rollback to remove dimension row, found %d", count)
	}
}

func TestWarehouseTx_LinkFactToSource_UniqueSource(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	staged := stagingFixture("uniq", time.Now().UTC())
	if _, err := store.InsertStagingEvent(ctx, staged); err != nil {
		t.Fatalf("InsertStagingEvent failed: %v", err)
	}

	eventTime := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	err := store.InTx(ctx, func(tx WarehouseTx) error {
		typeID, err := tx.ResolveEventType(ctx, "Geophysical", "Earthquake", nil)
		if err != nil {
			return err
		}
		locID, err := tx.ResolveLocation(ctx, nil, nil, nil, nil)
		if err != nil {
			return err
		}

		auditID, err := tx.InsertSourceAudit(ctx, &models.SourceAudit{
			StagingID: staged.StagingID, SourceName: "TEST", SourceEventID: "uniq", Status: "processed",
		})
		if err != nil {
			return err
		}

		first := &models.EventFact{EventTime: &eventTime, LocationID: locID, EventTypeID: typeID, IsMasterEvent: true}
		firstID, err := tx.InsertEventFact(ctx, first)
		if err != nil {
			return err
		}
		second := &models.EventFact{EventTime: &eventTime, LocationID: locID, EventTypeID: typeID, IsMasterEvent: true}
		secondID, err := tx.InsertEventFact(ctx, second)
		if err != nil {
			return err
		}

		if err := tx.LinkFactToSource(ctx, firstID, auditID); err != nil {
			return err
		}
		// One source audit maps to exactly one event.
		if err := tx.LinkFactToSource(ctx, secondID, auditID); err == nil {
			t.Error("expected unique violation linking one source to a second event")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("InTx failed: %v", err)
	}
}

func TestStore_ETLErrors(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		err := store.InsertETLError(ctx, &models.ETLError{
			StagingID: int64(i + 1),
			RunID:     "run-1",
			Stage:     "load_fact",
			Message:   "NOT NULL constraint failed: event_fact.event_time",
		})
		if err != nil {
			t.Fatalf("InsertETLError failed: %v", err)
		}
	}

	errs, err := store.ListETLErrors(ctx, 2)
	if err != nil {
		t.Fatalf("ListETLErrors failed: %v", err)
	}
	if len(errs) != 2 {
		t.Fatalf("expected 2 rows with limit, got %d", len(errs))
	}
	// Newest first.
	if errs[0].StagingID != 3 {
		t.Errorf("expected newest row first, got staging id %d", errs[0].StagingID)
	}
	if errs[0].Stage != "load_fact" || errs[0].RunID != "run-1" {
		t.Errorf("unexpected row contents: %+v", errs[0])
	}
}

func TestStore_DedupQueries(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	eventTime := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	var ids []int64
	err := store.InTx(ctx, func(tx WarehouseTx) error {
		typeID, err := tx.ResolveEventType(ctx, "Geophysical", "Earthquake", nil)
		if err != nil {
			return err
		}
		locID, err := tx.ResolveLocation(ctx, f64p(9.9312), f64p(76.2673), strp("Kochi, India"), strp("IND"))
		if err != nil {
			return err
		}
		for i := 0; i < 3; i++ {
			ts := eventTime.Add(time.Duration(i) * time.Hour)
			fact := &models.EventFact{EventTime: &ts, LocationID: locID, EventTypeID: typeID, IsMasterEvent: true}
			id, err := tx.InsertEventFact(ctx, fact)
			if err != nil {
				return err
			}
			ids = append(ids, id)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("InTx failed: %v", err)
	}

	candidates, err := store.ListFactsForDedup(ctx)
	if err != nil {
		t.Fatalf("ListFactsForDedup failed: %v", err)
	}
	if len(candidates) != 3 {
		t.Fatalf("expected 3 candidates, got %d", len(candidates))
	}
	if candidates[0].EventID != ids[0] {
		t.Errorf("expected event-time order, got id %d first", candidates[0].EventID)
	}
	if candidates[0].Latitude == nil || *candidates[0].Latitude != 9.9312 {
		t.Errorf("expected joined latitude, got %v", candidates[0].Latitude)
	}

	if err := store.ApplyMasterFlags(ctx, ids[0], []int64{ids[1], ids[2]}); err != nil {
		t.Fatalf("ApplyMasterFlags failed: %v", err)
	}

	candidates, err = store.ListFactsForDedup(ctx)
	if err != nil {
		t.Fatalf("ListFactsForDedup failed: %v", err)
	}
	masters := 0
	for _, c := range candidates {
		if c.IsMasterEvent {
			masters++
			if c.EventID != ids[0] {
				t.Errorf("expected %d to be master, got %d", ids[0], c.EventID)
			}
		}
	}
	if masters != 1 {
		t.Errorf("expected exactly 1 master, got %d", masters)
	}

	// Rewriting flags is idempotent and can promote a previously demoted row.
	if err := store.ApplyMasterFlags(ctx, ids[1], []int64{ids[0], ids[2]}); err != nil {
		t.Fatalf("ApplyMasterFlags failed: %v", err)
	}
	totals, err := store.Totals(ctx)
	if err != nil {
		t.Fatalf("Totals failed: %v", err)
	}
	if totals.MasterEvents != 1 || totals.TotalFacts != 3 {
		t.Errorf("expected 1 master of 3 facts, got %d of %d", totals.MasterEvents, totals.TotalFacts)
	}
}

func TestStore_Reports(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	type seed struct {
		when       time.Time
		group      string
		dtype      string
		country    string
		fatalities int64
	}
	seeds := []seed{
		{time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC), "Geophysical", "Earthquake", "IND", 12},
		{time.Date(2024, 3, 5, 8, 0, 0, 0, time.UTC), "Geophysical", "Earthquake", "JPN", 3},
		{time.Date(2024, 4, 2, 0, 0, 0, 0, time.UTC), "Hydrological", "Flood", "IND", 40},
	}

	err := store.InTx(ctx, func(tx WarehouseTx) error {
		for i, sd := range seeds {
			typeID, err := tx.ResolveEventType(ctx, sd.group, sd.dtype, nil)
			if err != nil {
				return err
			}
			name := sd.country + "-place"
			lat := 10.0 + float64(i)
			locID, err := tx.ResolveLocation(ctx, &lat, f64p(76.0), &name, &sd.country)
			if err != nil {
				return err
			}
			when := sd.when
			fact := &models.EventFact{
				EventTime:       &when,
				LocationID:      locID,
				EventTypeID:     typeID,
				FatalitiesTotal: i64p(sd.fatalities),
				IsMasterEvent:   true,
			}
			if _, err := tx.InsertEventFact(ctx, fact); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("InTx failed: %v", err)
	}

	// Newest first, no filter.
	events, err := store.ListMasterEvents(ctx, Filter{})
	if err != nil {
		t.Fatalf("ListMasterEvents failed: %v", err)
	}
	if len(events) != 3 {
		t.Fatalf("expected 3 events, got %d", len(events))
	}
	if events[0].DisasterType != "Flood" {
		t.Errorf("expected newest event first, got %s", events[0].DisasterType)
	}

	// Country filter.
	events, err = store.ListMasterEvents(ctx, Filter{Country: strp("IND")})
	if err != nil {
		t.Fatalf("ListMasterEvents failed: %v", err)
	}
	if len(events) != 2 {
		t.Errorf("expected 2 events for IND, got %d", len(events))
	}

	// Time window.
	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 3, 31, 23, 59, 59, 0, time.UTC)
	events, err = store.ListMasterEvents(ctx, Filter{Start: &start, End: &end})
	if err != nil {
		t.Fatalf("ListMasterEvents failed: %v", err)
	}
	if len(events) != 2 {
		t.Errorf("expected 2 events in March, got %d", len(events))
	}

	// Limit.
	events, err = store.ListMasterEvents(ctx, Filter{Limit: 1})
	if err != nil {
		t.Fatalf("ListMasterEvents failed: %v", err)
	}
	if len(events) != 1 {
		t.Errorf("expected 1 event with limit, got %d", len(events))
	}

	stats, err := store.MonthlyStats(ctx, Filter{})
	if err != nil {
		t.Fatalf("MonthlyStats failed: %v", err)
	}
	if len(stats) != 2 {
		t.Fatalf("expected 2 rollup rows, got %d", len(stats))
	}
	if stats[0].Month != "2024-03" || stats[0].DisasterGroup != "Geophysical" {
		t.Errorf("unexpected first rollup row: %+v", stats[0])
	}
	if stats[0].EventCount != 2 || stats[0].TotalFatalities != 15 {
		t.Errorf("expected 2 events with 15 fatalities, got %d with %d", stats[0].EventCount, stats[0].TotalFatalities)
	}

	totals, err := store.Totals(ctx)
	if err != nil {
		t.Fatalf("Totals failed: %v", err)
	}
	if totals.MasterEvents != 3 {
		t.Errorf("expected 3 master events, got %d", totals.MasterEvents)
	}
	if totals.TotalFatalities != 55 {
		t.Errorf("expected 55 fatalities, got %d", totals.TotalFatalities)
	}
	if totals.CountriesAffected != 2 {
		t.Errorf("expected 2 countries, got %d", totals.CountriesAffected)
	}
}
