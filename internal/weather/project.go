package weather

import (
	"log"
	"math"
)

// Offsets maps a forecast label (e.g. "1d") to an index into the provider's
// forecast list. The provider samples every 3 hours, so index 8 is +24h and
// index 32 is +4d. Static configuration, not derived from the data.
type Offsets map[string]int

// DefaultOffsets matches the provider's 3-hour sampling cadence.
func DefaultOffsets() Offsets {
	return Offsets{"3h": 0, "1d": 8, "4d": 32}
}

// ForecastEntry is the small record projected from one forecast sample.
type ForecastEntry struct {
	DT   int64   `json:"dt"`
	Temp float64 `json:"temp"`
	Desc string  `json:"desc"`
	Wind float64 `json:"wind"`
}

// ProjectedForecast maps forecast labels to their projected entries. Labels
// whose sample could not be projected are absent; entries present are always
// fully populated.
type ProjectedForecast map[string]ForecastEntry

// ProjectForecast extracts, for each configured offset, the sample at that
// index and projects timestamp, temperature, description and wind speed into
// a ForecastEntry. An out-of-range index or a missing required field skips
// that label with a warning; the remaining labels are unaffected. A missing
// wind speed projects as 0 so the entry stays complete. Temperatures and
// wind speeds are rounded to one decimal.
func ProjectForecast(samples []any, offsets Offsets) ProjectedForecast {
	projected := make(ProjectedForecast)

	for label, idx := range offsets {
		if idx < 0 || idx >= len(samples) {
			log.Printf("weather: forecast slot %q not available (index %d, %d samples)", label, idx, len(samples))
			continue
		}

		sample, ok := samples[idx].(map[string]any)
		if !ok {
			log.Printf("weather: forecast slot %q has malformed sample at index %d", label, idx)
			continue
		}

		dt, ok := lookupNumber(sample, "dt")
		if !ok {
			log.Printf("weather: forecast slot %q sample has no dt", label)
			continue
		}

		temp, ok := lookupNumber(lookupMap(sample, "main"), "temp")
		if !ok {
			log.Printf("weather: forecast slot %q sample has no main/temp (dt=%d)", label, int64(dt))
			continue
		}

		desc, ok := firstDescription(sample)
		if !ok {
			log.Printf("weather: forecast slot %q sample has no weather description (dt=%d)", label, int64(dt))
			continue
		}

		// Wind is optional in provider payloads; default to 0 so the
		// projected entry is never partial.
		wind, _ := lookupNumber(lookupMap(sample, "wind"), "speed")

		projected[label] = ForecastEntry{
			DT:   int64(dt),
			Temp: Round1(temp),
			Desc: desc,
			Wind: Round1(wind),
		}
	}

	return projected
}

// Round1 rounds to one decimal place, halves away from zero.
func Round1(v float64) float64 {
	return math.Round(v*10) / 10
}

func lookupMap(doc map[string]any, key string) map[string]any {
	if doc == nil {
		return nil
	}
	m, _ := doc[key].(map[string]any)
	return m
}

func lookupNumber(doc map[string]any, key string) (float64, bool) {
	if doc == nil {
		return 0, false
	}
	n, ok := doc[key].(float64)
	return n, ok
}

func lookupString(doc map[string]any, key string) (string, bool) {
	if doc == nil {
		return "", false
	}
	s, ok := doc[key].(string)
	return s, ok
}

func firstDescription(sample map[string]any) (string, bool) {
	items, ok := sample["weather"].([]any)
	if !ok || len(items) == 0 {
		return "", false
	}
	entry, ok := items[0].(map[string]any)
	if !ok {
		return "", false
	}
	return lookupString(entry, "description")
}
