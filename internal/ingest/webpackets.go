package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/mr1hm/go-disaster-warehouse/internal/logging"
	"github.com/mr1hm/go-disaster-warehouse/internal/models"
)

// WebPacketAgent consumes discrete event packets produced by the external
// crawling workflow: a JSON array served from a feed URL or dropped as a
// file. Only packets of type discrete_disaster_event become staging records.
type WebPacketAgent struct {
	source     string
	httpClient *http.Client
	log        *slog.Logger
}

func NewWebPacketAgent(source string) *WebPacketAgent {
	return &WebPacketAgent{
		source: source,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		log: logging.Component("webpackets"),
	}
}

type webPacket struct {
	PacketID   string `json:"packet_id"`
	PacketType string `json:"packet_type"`
	Event      struct {
		EventType string `json:"event_type"`
	} `json:"event"`
	Temporal struct {
		StartDate string `json:"start_date"`
	} `json:"temporal"`
	Spatial struct {
		PrimaryLocation   string   `json:"primary_location"`
		AffectedLocations []string `json:"affected_locations"`
	} `json:"spatial"`
	Impact struct {
		Deaths    int64 `json:"deaths"`
		Injured   int64 `json:"injured"`
		Displaced int64 `json:"displaced"`
	} `json:"impact"`
}

func (a *WebPacketAgent) Fetch(ctx context.Context) ([]*models.StagingEvent, error) {
	rc, err := openSource(ctx, a.httpClient, a.source)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("error reading packet feed: %w", err)
	}

	return a.parse(data)
}

func (a *WebPacketAgent) parse(data []byte) ([]*models.StagingEvent, error) {
	var raws []json.RawMessage
	if err := json.Unmarshal(data, &raws); err != nil {
		return nil, fmt.Errorf("error decoding packet feed: %w", err)
	}

	events := make([]*models.StagingEvent, 0, len(raws))
	for i, raw := range raws {
		var p webPacket
		if err := json.Unmarshal(raw, &p); err != nil {
			a.log.Warn("skipping malformed packet", "index", i, "error", err)
			continue
		}
		if p.PacketType != "discrete_disaster_event" {
			a.log.Debug("skipping packet", "index", i, "packet_type", p.PacketType)
			continue
		}

		eventTime := parsePacketDate(p.Temporal.StartDate)
		if eventTime == nil {
			a.log.Warn("skipping packet without usable start date",
				"packet_id", p.PacketID,
				"start_date", p.Temporal.StartDate)
			continue
		}

		location := p.Spatial.PrimaryLocation
		if location == "" {
			if len(p.Spatial.AffectedLocations) > 0 {
				location = p.Spatial.AffectedLocations[0]
			} else {
				location = "Unknown"
			}
		}

		// Zero counts mean "not reported", not "none": store nil.
		var fatalities *int64
		if p.Impact.Deaths > 0 {
			deaths := p.Impact.Deaths
			fatalities = &deaths
		}
		var affected *int64
		if total := p.Impact.Injured + p.Impact.Displaced; total > 0 {
			affected = &total
		}

		events = append(events, &models.StagingEvent{
			SourceName:    "WEB",
			SourceEventID: p.PacketID,
			EventTime:     eventTime,
			LocationText:  &location,
			DisasterType:  normalizeWebDisasterType(p.Event.EventType),
			Fatalities:    fatalities,
			Affected:      affected,
			RawJSON:       raw,
		})
	}

	return events, nil
}

// parsePacketDate resolves the crawler's start_date formats: plain
// YYYY-MM-DD, or RELATIVE:today / RELATIVE:yesterday against the current
// clock at midnight. Unknown relative markers resolve to now; anything else
// is unusable.
func parsePacketDate(s string) *time.Time {
	if s == "" {
		return nil
	}

	if rel, ok := strings.CutPrefix(s, "RELATIVE:"); ok {
		now := time.Now().UTC()
		midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
		switch strings.ToLower(rel) {
		case "today":
			return &midnight
		case "yesterday":
			y := midnight.AddDate(0, 0, -1)
			return &y
		default:
			return &now
		}
	}

	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return nil
	}
	return &t
}

var webTypeVariants = map[string]string{
	"flood":            "Flood",
	"floods":           "Flood",
	"flooding":         "Flood",
	"earthquake":       "Earthquake",
	"quake":            "Earthquake",
	"cyclone":          "Cyclone",
	"tropical cyclone": "Tropical Cyclone",
	"hurricane":        "Tropical Cyclone",
	"typhoon":          "Tropical Cyclone",
	"storm":            "Storm",
	"drought":          "Drought",
	"landslide":        "Landslide",
	"mudslide":         "Landslide",
	"tsunami":          "Tsunami",
}

// normalizeWebDisasterType maps the crawler's free-text event types onto the
// vocabulary the classifier expects, title-casing anything unrecognized.
func normalizeWebDisasterType(raw string) string {
	if raw == "" {
		return "Unknown"
	}
	if name, ok := webTypeVariants[strings.ToLower(raw)]; ok {
		return name
	}
	return titleCase(raw)
}

func titleCase(s string) string {
	words := strings.Fields(strings.ToLower(s))
	for i, w := range words {
		r, size := utf8.DecodeRuneInString(w)
		words[i] = string(unicode.ToTitle(r)) + w[size:]
	}
	return strings.Join(words, " ")
}
