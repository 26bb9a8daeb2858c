package weather

// Enrichment selects how much of the current conditions is copied into the
// single-document payload.
type Enrichment string

const (
	// EnrichmentBasic keeps the payload small for constrained displays:
	// sunrise/sunset, temperature and description.
	EnrichmentBasic Enrichment = "basic"
	// EnrichmentFull adds humidity, pressure, feels-like and wind speed.
	EnrichmentFull Enrichment = "full"
)

// Meta describes one publication for consumers that want to know how fresh
// the document is.
type Meta struct {
	FetchedAt   int64  `json:"fetched_at"`
	PublishedAt int64  `json:"published_at"`
	Location    string `json:"location"`
}

// BuildDocument composes the single-topic JSON payload from a normalized
// current-conditions document and a projected forecast. Fields absent from
// the source are simply left out of the payload; the overall shape
// (current/forecast/timezone/meta) is always present.
func BuildDocument(current map[string]any, forecast ProjectedForecast, level Enrichment, meta Meta) map[string]any {
	if forecast == nil {
		// Consumers rely on the key being an object even when no slot
		// projected.
		forecast = ProjectedForecast{}
	}

	cur := make(map[string]any)

	if sys := lookupMap(current, "sys"); sys != nil {
		entry := make(map[string]any)
		if sunrise, ok := lookupNumber(sys, "sunrise"); ok {
			entry["sunrise"] = int64(sunrise)
		}
		if sunset, ok := lookupNumber(sys, "sunset"); ok {
			entry["sunset"] = int64(sunset)
		}
		if len(entry) > 0 {
			cur["sys"] = entry
		}
	}

	if main := lookupMap(current, "main"); main != nil {
		entry := make(map[string]any)
		if temp, ok := lookupNumber(main, "temp"); ok {
			entry["temp"] = Round1(temp)
		}
		if level == EnrichmentFull {
			if feels, ok := lookupNumber(main, "feels_like"); ok {
				entry["feels_like"] = Round1(feels)
			}
			if humidity, ok := lookupNumber(main, "humidity"); ok {
				entry["humidity"] = humidity
			}
			if pressure, ok := lookupNumber(main, "pressure"); ok {
				entry["pressure"] = pressure
			}
		}
		if len(entry) > 0 {
			cur["main"] = entry
		}
	}

	if desc, ok := firstDescription(current); ok {
		cur["weather"] = []any{map[string]any{"description": desc}}
	}

	if level == EnrichmentFull {
		if speed, ok := lookupNumber(lookupMap(current, "wind"), "speed"); ok {
			cur["wind"] = map[string]any{"speed": Round1(speed)}
		}
	}

	doc := map[string]any{
		"current":  cur,
		"forecast": forecast,
		"meta":     meta,
	}
	if tz, ok := lookupNumber(current, "timezone"); ok {
		doc["timezone"] = int64(tz)
	}

	return doc
}

// ObservationTime extracts the provider's observation timestamp from a
// current-conditions document. Returns false when the field is missing or
// not numeric.
func ObservationTime(current map[string]any) (int64, bool) {
	dt, ok := lookupNumber(current, "dt")
	if !ok {
		return 0, false
	}
	return int64(dt), true
}
