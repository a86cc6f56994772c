package transform

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/mr1hm/go-disaster-warehouse/internal/geocode"
	"github.com/mr1hm/go-disaster-warehouse/internal/logging"
)

// Geocoder resolves free-text location names. *geocode.Client satisfies this;
// tests swap in a fake.
type Geocoder interface {
	Lookup(ctx context.Context, query string) (*geocode.Result, error)
}

// Coordinates is a resolved lat/lon pair.
type Coordinates struct {
	Latitude  float64
	Longitude float64
}

// Transformer enriches staged records with geocoded coordinates and country
// codes. Geocoding failures degrade to nil fields rather than failing the
// record: coordinates are enrichment, not required data.
type Transformer struct {
	geo Geocoder
	log *slog.Logger

	// One record asks for coordinates and country back to back, so remember
	// the last lookup instead of hitting the geocoder twice.
	mu        sync.Mutex
	lastQuery string
	lastRes   *geocode.Result
	lastErr   error
}

func NewTransformer(geo Geocoder) *Transformer {
	return &Transformer{
		geo: geo,
		log: logging.Component("transform"),
	}
}

// GeocodeLocation resolves location text to coordinates, or nil when the text
// is empty, unknown to the geocoder, or the lookup fails.
func (t *Transformer) GeocodeLocation(ctx context.Context, text string) *Coordinates {
	res := t.lookup(ctx, text)
	if res == nil {
		return nil
	}
	return &Coordinates{Latitude: res.Latitude, Longitude: res.Longitude}
}

// CountryISO3 resolves location text to an ISO 3166-1 alpha-3 country code,
// or nil when the lookup fails or the geocoder returns no usable code.
func (t *Transformer) CountryISO3(ctx context.Context, text string) *string {
	res := t.lookup(ctx, text)
	if res == nil || res.CountryCode == "" {
		return nil
	}

	iso3, ok := CountryISO3FromISO2(res.CountryCode)
	if !ok {
		t.log.Warn("unmapped country code from geocoder", "code", res.CountryCode, "query", text)
		return nil
	}
	return &iso3
}

func (t *Transformer) lookup(ctx context.Context, text string) *geocode.Result {
	if text == "" || t.geo == nil {
		return nil
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if text != t.lastQuery {
		t.lastQuery = text
		t.lastRes, t.lastErr = t.geo.Lookup(ctx, text)
	}

	if t.lastErr != nil {
		if !errors.Is(t.lastErr, geocode.ErrNotFound) {
			t.log.Warn("geocode lookup failed", "query", text, "error", t.lastErr)
		}
		return nil
	}
	return t.lastRes
}
