package bridge

import (
	"fmt"
	"sort"
	"strconv"

	"owm2mqtt/internal/mqtt"
	"owm2mqtt/internal/weather"
)

// flatMessages turns a flat topic map into retained messages, one per key,
// sorted lexicographically so batches and publish logs are deterministic.
func flatMessages(prefix string, flat map[string]any) []mqtt.Message {
	keys := make([]string, 0, len(flat))
	for k := range flat {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	msgs := make([]mqtt.Message, 0, len(keys))
	for _, k := range keys {
		msgs = append(msgs, mqtt.Message{
			Topic:   prefix + "/" + k,
			Payload: formatScalar(flat[k]),
			Retain:  true,
		})
	}
	return msgs
}

// forecastFlat lays projected forecast entries out as flat paths under
// forecast/<label>/, ready to merge with the flattened current document.
func forecastFlat(projected weather.ProjectedForecast) map[string]any {
	flat := make(map[string]any, len(projected)*4)
	for label, entry := range projected {
		base := "forecast/" + label + "/"
		flat[base+"dt"] = entry.DT
		flat[base+"temp"] = entry.Temp
		flat[base+"desc"] = entry.Desc
		flat[base+"wind"] = entry.Wind
	}
	return flat
}

// formatScalar renders a flattened JSON scalar as a message payload.
// Floats use the shortest exact decimal form (no exponent, so unix
// timestamps survive intact), nil becomes the empty string.
func formatScalar(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(s)
	case int64:
		return strconv.FormatInt(s, 10)
	default:
		return fmt.Sprintf("%v", s)
	}
}
