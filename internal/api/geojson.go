package api

import (
	"github.com/mr1hm/go-disaster-warehouse/internal/models"
)

type FeatureCollection struct {
	Type     string    `json:"type"`
	Features []Feature `json:"features"`
}
type Feature struct {
	Type       string         `json:"type"`
	Geometry   Geometry       `json:"geometry"`
	Properties map[string]any `json:"properties"`
}
type Geometry struct {
	Type        string    `json:"type"`
	Coordinates []float64 `json:"coordinates"`
}

// toGeoJSON renders master events as a FeatureCollection. Events without
// resolved coordinates have no point to plot and are left out.
func toGeoJSON(events []models.MasterEvent) FeatureCollection {
	features := make([]Feature, 0, len(events))

	for _, ev := range events {
		if ev.Latitude == nil || ev.Longitude == nil {
			continue
		}

		props := map[string]any{
			"event_id":       ev.EventID,
			"event_time":     ev.EventTime,
			"disaster_group": ev.DisasterGroup,
			"disaster_type":  ev.DisasterType,
		}
		if ev.DisasterSubtype != nil {
			props["disaster_subtype"] = *ev.DisasterSubtype
		}
		if ev.LocationName != nil {
			props["location_name"] = *ev.LocationName
		}
		if ev.CountryCode != nil {
			props["country_code"] = *ev.CountryCode
		}
		if ev.FatalitiesTotal != nil {
			props["fatalities_total"] = *ev.FatalitiesTotal
		}
		if ev.EconomicLossUSD != nil {
			props["economic_loss_usd"] = *ev.EconomicLossUSD
		}
		if ev.AffectedTotal != nil {
			props["affected_total"] = *ev.AffectedTotal
		}

		features = append(features, Feature{
			Type: "Feature",
			Geometry: Geometry{
				Type:        "Point",
				Coordinates: []float64{*ev.Longitude, *ev.Latitude},
			},
			Properties: props,
		})
	}

	return FeatureCollection{
		Type:     "FeatureCollection",
		Features: features,
	}
}
