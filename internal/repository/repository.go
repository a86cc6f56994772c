package repository

import (
	"context"
	"time"

	"github.com/mr1hm/go-disaster-warehouse/internal/models"
)

type Filter struct {
	Limit   int
	Start   *time.Time
	End     *time.Time
	Group   *string // disaster_group
	Country *string // ISO 3166-1 alpha-3
}

type StagingRepository interface {
	// InsertStagingEvent stores a raw source record. Returns false when a row
	// with the same (source_name, source_event_id) already exists.
	InsertStagingEvent(ctx context.Context, ev *models.StagingEvent) (bool, error)
	// ClaimPending atomically stamps up to limit unprocessed rows with the run
	// id and returns them, oldest first. Rows claimed by a run that never
	// finished become claimable again after the stale-claim TTL.
	ClaimPending(ctx context.Context, runID string, limit int) ([]models.StagingEvent, error)
	MarkProcessed(ctx context.Context, stagingID int64) error
	CountPending(ctx context.Context) (int64, error)
}

// WarehouseTx is the per-record load surface. All writes made through one
// WarehouseTx commit or roll back together.
type WarehouseTx interface {
	ResolveEventType(ctx context.Context, group, disasterType string, subtype *string) (int64, error)
	ResolveLocation(ctx context.Context, lat, lon *float64, name, countryISO3 *string) (int64, error)
	InsertMagnitude(ctx context.Context, value *float64, unit *string) (int64, error)
	InsertSourceAudit(ctx context.Context, a *models.SourceAudit) (int64, error)
	InsertEventFact(ctx context.Context, f *models.EventFact) (int64, error)
	LinkFactToSource(ctx context.Context, eventID, sourceRecordID int64) error
	MarkStagingProcessed(ctx context.Context, stagingID int64) error
}

type WarehouseRepository interface {
	InTx(ctx context.Context, fn func(WarehouseTx) error) error
	InsertETLError(ctx context.Context, e *models.ETLError) error
	ListETLErrors(ctx context.Context, limit int) ([]models.ETLError, error)
}

type DedupRepository interface {
	// ListFactsForDedup returns every fact joined with its group and
	// coordinates, ordered by event time then id.
	ListFactsForDedup(ctx context.Context) ([]models.DedupCandidate, error)
	// ApplyMasterFlags marks one fact master and the given duplicates
	// non-master in a single transaction.
	ApplyMasterFlags(ctx context.Context, masterID int64, duplicateIDs []int64) error
}

type ReportingRepository interface {
	ListMasterEvents(ctx context.Context, f Filter) ([]models.MasterEvent, error)
	MonthlyStats(ctx context.Context, f Filter) ([]models.MonthlyStat, error)
	Totals(ctx context.Context) (*models.WarehouseTotals, error)
}
