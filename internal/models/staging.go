package models

import (
	"encoding/json"
	"errors"
	"strings"
	"time"
)

// StagingEvent is one raw, source-tagged observation handed to the warehouse
// by an acquisition agent. All fields except the source identity are optional;
// agents leave what they do not know as nil and the ETL pipeline degrades
// gracefully. Data fields are immutable after insert; only Processed and the
// claim bookkeeping change, and only through the pipeline.
type StagingEvent struct {
	StagingID      int64
	SourceName     string
	SourceEventID  string // source's native id, unique per source only
	EventTime      *time.Time
	LocationText   *string
	Latitude       *float64
	Longitude      *float64
	DisasterType   string // free text, source-specific vocabulary
	MagnitudeValue *float64
	MagnitudeUnit  *string
	Fatalities     *int64
	EconomicLoss   *string // e.g. "5.20M", parsed during transform
	Affected       *int64
	RawJSON        json.RawMessage
	Processed      bool
	ClaimedBy      *string
	ClaimedAt      *time.Time
	IngestedAt     time.Time
}

// Validate enforces the agent input contract before a record crosses into the
// staging store.
func (e *StagingEvent) Validate() error {
	if strings.TrimSpace(e.SourceName) == "" {
		return errors.New("staging event missing source_name")
	}
	if strings.TrimSpace(e.SourceEventID) == "" {
		return errors.New("staging event missing source_event_id")
	}
	return nil
}
