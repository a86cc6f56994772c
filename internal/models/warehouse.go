package models

import (
	"encoding/json"
	"time"
)

// EventType is the (group, type, subtype) taxonomy dimension. Subtype is nil
// for types without one (Drought, Wildfire). Rows are created lazily on first
// encounter and never updated.
type EventType struct {
	EventTypeID     int64
	DisasterGroup   string
	DisasterType    string
	DisasterSubtype *string
}

// Location is the place dimension. LocationKey is the derived identity the
// store deduplicates on: exact coordinates when present, else normalized text.
type Location struct {
	LocationID     int64
	LocationKey    string
	LocationName   *string
	NormalizedName *string
	Latitude       *float64
	Longitude      *float64
	CountryISO3    *string
}

// Magnitude is deliberately not deduplicated: every observation is its own
// row, so two sources reporting the same 6.1 Richter remain two observations.
type Magnitude struct {
	MagnitudeID  int64
	PrimaryValue *float64
	PrimaryUnit  *string
}

// SourceAudit preserves provenance for every staging row that reached
// transformation, raw payload included.
type SourceAudit struct {
	SourceRecordID int64
	StagingID      int64
	SourceName     string
	SourceEventID  string
	RawPayload     json.RawMessage
	Status         string
	ProcessedAt    time.Time
}

// EventFact is one resolved disaster occurrence. EventTime is required by the
// schema; a staging record without one fails at load and lands in the
// dead-letter table. IsMasterEvent starts true and is only ever flipped by the
// dedup pass.
type EventFact struct {
	EventID         int64
	EventTime       *time.Time
	EventTimeEnd    *time.Time
	LocationID      int64
	EventTypeID     int64
	MagnitudeID     *int64
	FatalitiesTotal *int64
	EconomicLossUSD *int64
	AffectedTotal   *int64
	IsMasterEvent   bool
	CreatedAt       time.Time
}

// DedupCandidate is the slice of a fact the dedup pass clusters on.
type DedupCandidate struct {
	EventID         int64
	EventTime       time.Time
	DisasterGroup   string
	Latitude        *float64
	Longitude       *float64
	FatalitiesTotal *int64
	EconomicLossUSD *int64
	MagnitudeID     *int64
	IsMasterEvent   bool
}

// MasterEvent is a row of the reporting view: fact joined with its dimensions,
// master events only.
type MasterEvent struct {
	EventID         int64      `json:"event_id"`
	EventTime       time.Time  `json:"event_time"`
	DisasterGroup   string     `json:"disaster_group"`
	DisasterType    string     `json:"disaster_type"`
	DisasterSubtype *string    `json:"disaster_subtype,omitempty"`
	LocationName    *string    `json:"location_name,omitempty"`
	CountryCode     *string    `json:"country_code,omitempty"`
	Latitude        *float64   `json:"latitude,omitempty"`
	Longitude       *float64   `json:"longitude,omitempty"`
	FatalitiesTotal *int64     `json:"fatalities_total,omitempty"`
	EconomicLossUSD *int64     `json:"economic_loss_usd,omitempty"`
	AffectedTotal   *int64     `json:"affected_total,omitempty"`
}

// MonthlyStat is one time-bucketed rollup row (month formatted YYYY-MM).
type MonthlyStat struct {
	Month             string `json:"month"`
	DisasterGroup     string `json:"disaster_group"`
	EventCount        int64  `json:"event_count"`
	TotalFatalities   int64  `json:"total_fatalities"`
	TotalEconomicLoss int64  `json:"total_economic_loss"`
	TotalAffected     int64  `json:"total_affected"`
}

// WarehouseTotals are the KPI aggregates over master events.
type WarehouseTotals struct {
	MasterEvents      int64 `json:"master_events"`
	TotalFacts        int64 `json:"total_facts"`
	TotalFatalities   int64 `json:"total_fatalities"`
	TotalEconomicLoss int64 `json:"total_economic_loss"`
	TotalAffected     int64 `json:"total_affected"`
	CountriesAffected int64 `json:"countries_affected"`
}
