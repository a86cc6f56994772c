package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/mr1hm/go-disaster-warehouse/internal/logging"
	"github.com/mr1hm/go-disaster-warehouse/internal/models"
	"github.com/mr1hm/go-disaster-warehouse/internal/retry"
)

// FDSN accepts times without a zone suffix and treats them as UTC.
const fdsnTimeLayout = "2006-01-02T15:04:05"

// USGSAgent pulls earthquakes from the FDSN event service and, when the
// feature links a PAGER product, enriches the record with estimated
// fatalities and economic loss.
type USGSAgent struct {
	baseURL      string
	minMagnitude float64
	httpClient   *http.Client
	policy       retry.Policy
	log          *slog.Logger
}

func NewUSGSAgent(baseURL string, minMagnitude float64) *USGSAgent {
	return &USGSAgent{
		baseURL:      strings.TrimRight(baseURL, "/"),
		minMagnitude: minMagnitude,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		policy: retry.DefaultPolicy(),
		log:    logging.Component("usgs"),
	}
}

type usgsFeed struct {
	Features []json.RawMessage `json:"features"`
}

type usgsFeature struct {
	ID         string `json:"id"`
	Properties struct {
		Mag    *float64 `json:"mag"`
		Place  string   `json:"place"`
		Time   *int64   `json:"time"` // epoch milliseconds
		Detail string   `json:"detail"`
	} `json:"properties"`
	Geometry struct {
		Coordinates []float64 `json:"coordinates"` // [lon, lat, depth]
	} `json:"geometry"`
}

type usgsDetail struct {
	Properties struct {
		Products struct {
			Losspager []struct {
				Contents map[string]struct {
					URL string `json:"url"`
				} `json:"contents"`
			} `json:"losspager"`
		} `json:"products"`
	} `json:"properties"`
}

type pagerLosses struct {
	Fatalities struct {
		Estimated *int64 `json:"estimated"`
	} `json:"fatalities"`
	Economic struct {
		Estimated *float64 `json:"estimated"` // USD millions
	} `json:"economic"`
}

// Fetch queries the event service for the window and maps each feature to a
// staging record.
func (a *USGSAgent) Fetch(ctx context.Context, start, end time.Time) ([]*models.StagingEvent, error) {
	params := url.Values{}
	params.Set("format", "geojson")
	params.Set("starttime", start.UTC().Format(fdsnTimeLayout))
	params.Set("endtime", end.UTC().Format(fdsnTimeLayout))
	params.Set("minmagnitude", strconv.FormatFloat(a.minMagnitude, 'f', -1, 64))
	params.Set("orderby", "time")

	var feed usgsFeed
	if err := a.getJSON(ctx, fmt.Sprintf("%s/query?%s", a.baseURL, params.Encode()), &feed); err != nil {
		return nil, fmt.Errorf("error fetching event feed: %w", err)
	}

	events := make([]*models.StagingEvent, 0, len(feed.Features))
	for _, raw := range feed.Features {
		var f usgsFeature
		if err := json.Unmarshal(raw, &f); err != nil {
			a.log.Warn("skipping malformed feature", "error", err)
			continue
		}

		ev := &models.StagingEvent{
			SourceName:    "USGS",
			SourceEventID: f.ID,
			DisasterType:  "Earthquake",
			RawJSON:       raw,
		}
		if f.Properties.Time != nil {
			t := time.UnixMilli(*f.Properties.Time).UTC()
			ev.EventTime = &t
		}
		if f.Properties.Place != "" {
			place := f.Properties.Place
			ev.LocationText = &place
		}
		if len(f.Geometry.Coordinates) >= 2 {
			lon, lat := f.Geometry.Coordinates[0], f.Geometry.Coordinates[1]
			ev.Longitude = &lon
			ev.Latitude = &lat
		}
		if f.Properties.Mag != nil {
			mag := *f.Properties.Mag
			unit := "Richter"
			ev.MagnitudeValue = &mag
			ev.MagnitudeUnit = &unit
		}
		if f.Properties.Detail != "" {
			ev.Fatalities, ev.EconomicLoss = a.fetchPagerLosses(ctx, f.Properties.Detail)
		}

		events = append(events, ev)
	}

	return events, nil
}

// fetchPagerLosses follows the detail document to the PAGER losses product.
// Loss estimates are a bonus: any failure along the chain degrades to nil
// fields rather than failing the feature.
func (a *USGSAgent) fetchPagerLosses(ctx context.Context, detailURL string) (*int64, *string) {
	var detail usgsDetail
	if err := a.getJSON(ctx, detailURL, &detail); err != nil {
		a.log.Debug("pager detail fetch failed", "url", detailURL, "error", err)
		return nil, nil
	}

	pagers := detail.Properties.Products.Losspager
	if len(pagers) == 0 {
		return nil, nil
	}
	content, ok := pagers[0].Contents["json/losses.json"]
	if !ok || content.URL == "" {
		return nil, nil
	}

	var losses pagerLosses
	if err := a.getJSON(ctx, content.URL, &losses); err != nil {
		a.log.Debug("pager losses fetch failed", "url", content.URL, "error", err)
		return nil, nil
	}

	var loss *string
	if est := losses.Economic.Estimated; est != nil && *est > 0 {
		s := strconv.FormatFloat(*est, 'f', -1, 64) + "M"
		loss = &s
	}
	return losses.Fatalities.Estimated, loss
}

func (a *USGSAgent) getJSON(ctx context.Context, rawURL string, out any) error {
	_, err := retry.Do(ctx, a.policy, "usgs fetch", func(ctx context.Context) (struct{}, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return struct{}{}, fmt.Errorf("error creating request: %w", err)
		}

		resp, err := a.httpClient.Do(req)
		if err != nil {
			return struct{}{}, fmt.Errorf("error while doing request: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return struct{}{}, &retry.StatusError{Code: resp.StatusCode}
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return struct{}{}, fmt.Errorf("error decoding resp.Body: %w", err)
		}
		return struct{}{}, nil
	})
	return err
}
