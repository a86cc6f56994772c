package transform

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ParseEconomicLoss converts a loss string like "5.20M" or "1.5B" to whole
// USD. Empty, "None", and "nan" mean the source had no figure: (nil, nil).
// Anything else that fails to parse returns nil plus the reason so the caller
// can log it. Suffixes are case-insensitive and surrounding whitespace is
// ignored.
func ParseEconomicLoss(raw string) (*int64, error) {
	s := strings.TrimSpace(raw)
	if s == "" || strings.EqualFold(s, "none") || strings.EqualFold(s, "nan") {
		return nil, nil
	}

	multiplier := 1.0
	upper := strings.ToUpper(s)
	switch {
	case strings.HasSuffix(upper, "K"):
		multiplier = 1_000
		upper = upper[:len(upper)-1]
	case strings.HasSuffix(upper, "M"):
		multiplier = 1_000_000
		upper = upper[:len(upper)-1]
	case strings.HasSuffix(upper, "B"):
		multiplier = 1_000_000_000
		upper = upper[:len(upper)-1]
	}

	value, err := strconv.ParseFloat(strings.TrimSpace(upper), 64)
	if err != nil {
		return nil, fmt.Errorf("economic loss %q: %w", raw, err)
	}

	usd := int64(math.Round(value * multiplier))
	return &usd, nil
}

type subtypeRule struct {
	keyword string
	subtype string
}

type typeRule struct {
	keywords []string
	group    string
	dtype    string
	subtype  string // empty means no subtype
	refine   []subtypeRule
}

// Rule order is load-bearing: tsunami must resolve before the flood rule ever
// sees the text, and the tropical-cyclone keywords must win over generic
// "storm".
var typeRules = []typeRule{
	{keywords: []string{"earthquake", "seismic", "tremor"}, group: "Geophysical", dtype: "Earthquake", subtype: "Ground Shaking"},
	{keywords: []string{"tsunami"}, group: "Geophysical", dtype: "Earthquake", subtype: "Tsunami"},
	{keywords: []string{"volcano", "volcanic", "eruption"}, group: "Geophysical", dtype: "Volcano", subtype: "Volcanic Activity"},
	{keywords: []string{"landslide", "mudslide"}, group: "Geophysical", dtype: "Mass Movement", subtype: "Landslide"},
	{keywords: []string{"cyclone", "hurricane", "typhoon"}, group: "Meteorological", dtype: "Storm", subtype: "Tropical Cyclone"},
	{keywords: []string{"tornado", "twister"}, group: "Meteorological", dtype: "Storm", subtype: "Tornado"},
	{keywords: []string{"storm", "thunderstorm"}, group: "Meteorological", dtype: "Storm", subtype: "Severe Storm"},
	{keywords: []string{"flood", "flooding"}, group: "Hydrological", dtype: "Flood", subtype: "Riverine Flood",
		refine: []subtypeRule{
			{keyword: "flash", subtype: "Flash Flood"},
			{keyword: "coastal", subtype: "Coastal Flood"},
		}},
	{keywords: []string{"drought", "dry"}, group: "Climatological", dtype: "Drought"},
	{keywords: []string{"wildfire", "fire", "forest fire"}, group: "Climatological", dtype: "Wildfire"},
	{keywords: []string{"heat wave", "extreme heat"}, group: "Meteorological", dtype: "Extreme Temperature", subtype: "Heat Wave"},
	{keywords: []string{"cold wave", "extreme cold", "freeze"}, group: "Meteorological", dtype: "Extreme Temperature", subtype: "Cold Wave"},
}

// ClassifyDisasterType maps free-text source vocabulary onto the fixed
// group/type/subtype taxonomy. Case-insensitive substring match over the
// ordered rule list, first match wins. Unmatched text keeps its original
// wording as the type under the Unknown group.
func ClassifyDisasterType(text string) (string, string, *string) {
	if text == "" {
		return "Unknown", "Unknown", nil
	}

	lower := strings.ToLower(text)
	for _, rule := range typeRules {
		if !containsAny(lower, rule.keywords) {
			continue
		}

		subtype := rule.subtype
		for _, r := range rule.refine {
			if strings.Contains(lower, r.keyword) {
				subtype = r.subtype
				break
			}
		}
		if subtype == "" {
			return rule.group, rule.dtype, nil
		}
		return rule.group, rule.dtype, &subtype
	}

	return "Unknown", text, nil
}

// NormalizeMagnitudeUnit assigns a unit purely from disaster-type keywords,
// never from the value itself. A nil value stays (nil, nil).
func NormalizeMagnitudeUnit(value *float64, disasterType string) (*float64, *string) {
	if value == nil {
		return nil, nil
	}

	lower := strings.ToLower(disasterType)
	var unit string
	switch {
	case strings.Contains(lower, "earthquake"):
		unit = "Richter"
	case strings.Contains(lower, "storm"), strings.Contains(lower, "wind"):
		unit = "km/h"
	case strings.Contains(lower, "flood"):
		unit = "m"
	default:
		unit = "unknown"
	}

	return value, &unit
}

func containsAny(text string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}
