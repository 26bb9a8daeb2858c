package weather

// precipCategories are the precipitation substructures the provider omits
// entirely when there is nothing to report. Downstream consumers expect a
// stable schema, so missing entries are filled with zeros.
var precipCategories = []string{"rain", "snow"}

var precipWindows = []string{"1h", "3h"}

// NormalizePrecipitation guarantees that each precipitation category carries
// a substructure with "1h" and "3h" keys, defaulting absent values to 0.
// Existing values, including explicit zeros, are never overwritten. The
// document is mutated in place and returned for convenience.
func NormalizePrecipitation(doc map[string]any) map[string]any {
	if doc == nil {
		return doc
	}

	for _, category := range precipCategories {
		sub, ok := doc[category].(map[string]any)
		if !ok {
			if existing, present := doc[category]; present && existing != nil {
				// Not a mapping; leave the provider's value untouched.
				continue
			}
			sub = make(map[string]any)
			doc[category] = sub
		}
		for _, window := range precipWindows {
			if v, present := sub[window]; !present || v == nil {
				sub[window] = float64(0)
			}
		}
	}

	return doc
}
