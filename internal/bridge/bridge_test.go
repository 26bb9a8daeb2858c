package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"owm2mqtt/internal/mqtt"
	"owm2mqtt/internal/store"
	"owm2mqtt/internal/weather"
)

type fakeFetcher struct {
	current     map[string]any
	currentErr  error
	forecast    map[string]any
	forecastErr error

	currentCalls  int
	forecastCalls int
}

func (f *fakeFetcher) CurrentWeather(ctx context.Context) (map[string]any, error) {
	f.currentCalls++
	if f.currentErr != nil {
		return nil, f.currentErr
	}
	return f.current, nil
}

func (f *fakeFetcher) Forecast(ctx context.Context) (map[string]any, error) {
	f.forecastCalls++
	if f.forecastErr != nil {
		return nil, f.forecastErr
	}
	return f.forecast, nil
}

type fakePublisher struct {
	batches [][]mqtt.Message
	err     error
}

func (p *fakePublisher) PublishBatch(ctx context.Context, msgs []mqtt.Message) error {
	if p.err != nil {
		return p.err
	}
	p.batches = append(p.batches, msgs)
	return nil
}

func (p *fakePublisher) PublishSingle(ctx context.Context, msg mqtt.Message) error {
	return p.PublishBatch(ctx, []mqtt.Message{msg})
}

func currentDoc(dt int64) map[string]any {
	return map[string]any{
		"dt":       float64(dt),
		"timezone": float64(3600),
		"name":     "Paris",
		"main":     map[string]any{"temp": 14.27},
		"weather":  []any{map[string]any{"description": "couvert"}},
		"sys": map[string]any{
			"sunrise": float64(1699999000),
			"sunset":  float64(1700033000),
		},
	}
}

func forecastDoc(n int) map[string]any {
	samples := make([]any, 0, n)
	for i := 0; i < n; i++ {
		samples = append(samples, map[string]any{
			"dt":      float64(2000 + i*10800),
			"main":    map[string]any{"temp": 10.0 + float64(i)},
			"weather": []any{map[string]any{"description": "pluie"}},
			"wind":    map[string]any{"speed": 2.5},
		})
	}
	return map[string]any{"list": samples}
}

func newTestBridge(f Fetcher, p Publisher, opts Options) *Bridge {
	return New(f, p, store.NewMemoryStore(10, time.Hour), opts)
}

func TestRunCycleFlatPublishesBatch(t *testing.T) {
	fetcher := &fakeFetcher{current: currentDoc(1000), forecast: forecastDoc(10)}
	pub := &fakePublisher{}
	b := newTestBridge(fetcher, pub, Options{
		TopicPrefix:     "openweather",
		Mode:            ModeFlat,
		PublishForecast: true,
	})

	b.RunCycle(context.Background())

	if len(pub.batches) != 1 {
		t.Fatalf("expected one batch, got %d", len(pub.batches))
	}

	batch := pub.batches[0]
	topics := make(map[string]string, len(batch))
	for _, m := range batch {
		if !m.Retain {
			t.Fatalf("expected retained message, got %v", m)
		}
		if !strings.HasPrefix(m.Topic, "openweather/") {
			t.Fatalf("topic %q lacks prefix", m.Topic)
		}
		topics[m.Topic] = m.Payload
	}

	if topics["openweather/dt"] != "1000" {
		t.Fatalf("expected dt topic, got %v", topics)
	}
	// Normalizer ran before flattening.
	if topics["openweather/rain/1h"] != "0" || topics["openweather/snow/3h"] != "0" {
		t.Fatalf("expected normalized precipitation topics, got %v", topics)
	}
	// Forecast slots 3h and 1d fit a 10-sample series, 4d does not.
	if topics["openweather/forecast/1d/desc"] != "pluie" {
		t.Fatalf("expected 1d forecast topics, got %v", topics)
	}
	if _, ok := topics["openweather/forecast/4d/desc"]; ok {
		t.Fatalf("expected 4d slot omitted, got %v", topics)
	}

	rec, err := b.history.Last()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Outcome != store.OutcomePublished || rec.Messages != len(batch) || rec.ObservationDT != 1000 {
		t.Fatalf("unexpected cycle record: %+v", rec)
	}
}

func TestRunCycleStaleSkipsPublishAndForecast(t *testing.T) {
	fetcher := &fakeFetcher{current: currentDoc(1000), forecast: forecastDoc(10)}
	pub := &fakePublisher{}
	b := newTestBridge(fetcher, pub, Options{
		TopicPrefix:     "openweather",
		Mode:            ModeFlat,
		PublishForecast: true,
	})

	b.RunCycle(context.Background())
	fetcher.current = currentDoc(1000) // same observation again
	b.RunCycle(context.Background())

	if len(pub.batches) != 1 {
		t.Fatalf("expected stale cycle to publish nothing, got %d batches", len(pub.batches))
	}
	if fetcher.forecastCalls != 1 {
		t.Fatalf("expected stale cycle to skip the forecast fetch, got %d calls", fetcher.forecastCalls)
	}

	rec, _ := b.history.Last()
	if rec.Outcome != store.OutcomeStale {
		t.Fatalf("expected stale outcome, got %+v", rec)
	}
	if b.LastObservation() != 1000 {
		t.Fatalf("expected gate at 1000, got %d", b.LastObservation())
	}
}

func TestRunCycleForecastFailureStillPublishesCurrent(t *testing.T) {
	fetcher := &fakeFetcher{
		current:     currentDoc(1000),
		forecastErr: errors.New("network timeout"),
	}
	pub := &fakePublisher{}
	b := newTestBridge(fetcher, pub, Options{
		TopicPrefix:     "openweather",
		Mode:            ModeFlat,
		PublishForecast: true,
	})

	b.RunCycle(context.Background())

	if len(pub.batches) != 1 {
		t.Fatalf("expected current conditions published despite forecast failure, got %d batches", len(pub.batches))
	}
	for _, m := range pub.batches[0] {
		if strings.Contains(m.Topic, "/forecast/") {
			t.Fatalf("expected no forecast topics, got %q", m.Topic)
		}
	}

	// The loop keeps going: a later cycle with a newer observation works.
	fetcher.current = currentDoc(1300)
	fetcher.forecastErr = nil
	fetcher.forecast = forecastDoc(10)
	b.RunCycle(context.Background())

	if len(pub.batches) != 2 {
		t.Fatalf("expected next cycle to publish normally, got %d batches", len(pub.batches))
	}
}

func TestRunCycleFetchErrorRecorded(t *testing.T) {
	fetcher := &fakeFetcher{currentErr: errors.New("HTTP 502")}
	pub := &fakePublisher{}
	b := newTestBridge(fetcher, pub, Options{TopicPrefix: "openweather"})

	b.RunCycle(context.Background())

	if len(pub.batches) != 0 {
		t.Fatalf("expected no publication on fetch error")
	}
	rec, _ := b.history.Last()
	if rec.Outcome != store.OutcomeFetchError || rec.Err == "" {
		t.Fatalf("expected fetch_error record with cause, got %+v", rec)
	}
	if b.LastObservation() != 0 {
		t.Fatalf("expected gate untouched, got %d", b.LastObservation())
	}
}

func TestRunCyclePublishErrorRecorded(t *testing.T) {
	fetcher := &fakeFetcher{current: currentDoc(1000)}
	pub := &fakePublisher{err: errors.New("connection refused")}
	b := newTestBridge(fetcher, pub, Options{TopicPrefix: "openweather", PublishForecast: false})

	b.RunCycle(context.Background())

	rec, _ := b.history.Last()
	if rec.Outcome != store.OutcomePublishFail {
		t.Fatalf("expected publish_error record, got %+v", rec)
	}
}

func TestRunCycleJSONMode(t *testing.T) {
	fetcher := &fakeFetcher{current: currentDoc(1000), forecast: forecastDoc(10)}
	pub := &fakePublisher{}
	b := newTestBridge(fetcher, pub, Options{
		TopicPrefix:     "home/lcdmeteo",
		Mode:            ModeJSON,
		Enrichment:      weather.EnrichmentBasic,
		PublishForecast: true,
	})

	b.RunCycle(context.Background())

	if len(pub.batches) != 1 || len(pub.batches[0]) != 1 {
		t.Fatalf("expected exactly one message in json mode, got %v", pub.batches)
	}

	msg := pub.batches[0][0]
	if msg.Topic != "home/lcdmeteo" || !msg.Retain {
		t.Fatalf("unexpected message envelope: %+v", msg)
	}

	var doc map[string]any
	if err := json.Unmarshal([]byte(msg.Payload), &doc); err != nil {
		t.Fatalf("payload is not valid JSON: %v", err)
	}

	cur := doc["current"].(map[string]any)
	if cur["main"].(map[string]any)["temp"] != 14.3 {
		t.Fatalf("expected rounded temp in payload, got %v", cur)
	}

	forecast := doc["forecast"].(map[string]any)
	if _, ok := forecast["1d"]; !ok {
		t.Fatalf("expected 1d forecast slot, got %v", forecast)
	}
	if _, ok := forecast["4d"]; ok {
		t.Fatalf("expected 4d slot omitted, got %v", forecast)
	}

	meta := doc["meta"].(map[string]any)
	if meta["location"] != "Paris" {
		t.Fatalf("expected location from provider name, got %v", meta)
	}
	if doc["timezone"] != float64(3600) {
		t.Fatalf("expected timezone 3600, got %v", doc["timezone"])
	}
}
