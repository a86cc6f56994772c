package ingest

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/mr1hm/go-disaster-warehouse/internal/logging"
	"github.com/mr1hm/go-disaster-warehouse/internal/models"
)

// EMDATAgent reads an EM-DAT country-profiles CSV export. The export holds
// per country/year/type aggregates rather than individual events, so each row
// becomes one year-granularity staging record pinned to mid-year.
type EMDATAgent struct {
	source     string
	httpClient *http.Client
	log        *slog.Logger
}

func NewEMDATAgent(source string) *EMDATAgent {
	return &EMDATAgent{
		source: source,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
		log: logging.Component("emdat"),
	}
}

func (a *EMDATAgent) Fetch(ctx context.Context) ([]*models.StagingEvent, error) {
	rc, err := openSource(ctx, a.httpClient, a.source)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	return a.parse(rc)
}

func (a *EMDATAgent) parse(r io.Reader) ([]*models.StagingEvent, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1 // column count varies between exports

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("error reading csv header: %w", err)
	}
	cols := headerIndex(header)

	var events []*models.StagingEvent
	for line := 2; ; line++ {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("error reading csv line %d: %w", line, err)
		}

		if ev, ok := a.parseRow(cols, header, row); ok {
			events = append(events, ev)
		}
	}

	return events, nil
}

func (a *EMDATAgent) parseRow(cols columns, header, row []string) (*models.StagingEvent, bool) {
	yearText := cols.cell(row, "Year")

	// HXL annotation rows tag every column with "#..." markers. The subgroup
	// header is misspelled "Disaster Subroup" in the public export.
	subgroup := cols.cell(row, "Disaster Subgroup", "Disaster Subroup")
	if strings.HasPrefix(yearText, "#") || strings.HasPrefix(subgroup, "#") {
		return nil, false
	}

	year, err := strconv.Atoi(yearText)
	if err != nil {
		a.log.Debug("skipping row with invalid year", "year", yearText)
		return nil, false
	}

	country := cols.cell(row, "Country")
	if country == "" {
		return nil, false
	}
	iso := cols.cell(row, "ISO")

	locationText := country
	if iso != "" {
		locationText = fmt.Sprintf("%s (%s)", country, iso)
	}

	// Year granularity only, so pin to mid-year.
	eventTime := time.Date(year, time.June, 15, 0, 0, 0, 0, time.UTC)

	disasterType := cols.cell(row, "Disaster Type")
	typeText := disasterType
	if subtype := cols.cell(row, "Disaster Subtype"); subtype != "" && typeText != "" {
		typeText = fmt.Sprintf("%s - %s", disasterType, subtype)
	}
	if typeText == "" {
		typeText = "Unknown"
	}

	var loss *string
	if text := cols.cell(row, "Total Damage (USD, adjusted)", "Total Damage (USD, original)"); text != "" {
		if damage, err := strconv.ParseFloat(text, 64); err == nil {
			s := formatDamage(damage)
			loss = &s
		}
	}

	isoCode := iso
	if isoCode == "" {
		isoCode = "UNK"
	}
	typeCode := "UNK"
	if disasterType != "" {
		typeCode = strings.ToUpper(disasterType)
		if len(typeCode) > 3 {
			typeCode = typeCode[:3]
		}
	}

	return &models.StagingEvent{
		SourceName:    "EMDAT",
		SourceEventID: fmt.Sprintf("EMDAT-%s-%d-%s", isoCode, year, typeCode),
		EventTime:     &eventTime,
		LocationText:  &locationText,
		DisasterType:  typeText,
		Fatalities:    parseCount(cols.cell(row, "Total Deaths")),
		Affected:      parseCount(cols.cell(row, "Total Affected")),
		EconomicLoss:  loss,
		RawJSON:       rawRow(header, row),
	}, true
}

type columns map[string]int

func headerIndex(header []string) columns {
	cols := make(columns, len(header))
	for i, name := range header {
		cols[strings.ToLower(strings.TrimSpace(name))] = i
	}
	return cols
}

// cell returns the first matching column's value. Alternate names cover
// naming drift between export revisions.
func (c columns) cell(row []string, names ...string) string {
	for _, name := range names {
		if i, ok := c[strings.ToLower(name)]; ok && i < len(row) {
			return strings.TrimSpace(row[i])
		}
	}
	return ""
}

// parseCount reads an integer count that exports sometimes serialize as a
// float ("120.0").
func parseCount(s string) *int64 {
	if s == "" {
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	n := int64(f)
	return &n
}

// formatDamage renders a USD amount in the pipeline's loss notation.
func formatDamage(v float64) string {
	switch {
	case v >= 1_000_000_000:
		return fmt.Sprintf("%.2fB", v/1_000_000_000)
	case v >= 1_000_000:
		return fmt.Sprintf("%.2fM", v/1_000_000)
	case v >= 1_000:
		return fmt.Sprintf("%.2fK", v/1_000)
	default:
		return fmt.Sprintf("%.2f", v)
	}
}

func rawRow(header, row []string) json.RawMessage {
	m := make(map[string]string, len(header))
	for i, name := range header {
		if i < len(row) {
			m[strings.TrimSpace(name)] = row[i]
		}
	}
	raw, err := json.Marshal(m)
	if err != nil {
		return nil
	}
	return raw
}
