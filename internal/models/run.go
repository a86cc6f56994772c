package models

import "time"

// RunSummary is the outcome of one ETL batch run.
type RunSummary struct {
	RunID     string        `json:"run_id"`
	Claimed   int           `json:"claimed"`
	Succeeded int           `json:"succeeded"`
	Failed    int           `json:"failed"`
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration_ns"`
}

// DedupSummary is the outcome of one deduplication pass.
type DedupSummary struct {
	Scanned  int           `json:"scanned"`
	Clusters int           `json:"clusters"`
	Demoted  int           `json:"demoted"`
	Promoted int           `json:"promoted"`
	Duration time.Duration `json:"duration_ns"`
}

// ETLError is a dead-letter row: a record-level failure persisted with enough
// context to audit why a staging row produced no fact.
type ETLError struct {
	ErrorID   int64     `json:"error_id"`
	StagingID int64     `json:"staging_id"`
	RunID     string    `json:"run_id"`
	Stage     string    `json:"stage"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}

// FactNotice is the lightweight event pushed to stream subscribers when a new
// fact commits.
type FactNotice struct {
	EventID       int64     `json:"event_id"`
	EventTime     time.Time `json:"event_time"`
	DisasterGroup string    `json:"disaster_group"`
	DisasterType  string    `json:"disaster_type"`
	LocationText  string    `json:"location_text,omitempty"`
	SourceName    string    `json:"source_name"`
}
