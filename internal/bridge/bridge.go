package bridge

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"owm2mqtt/internal/mqtt"
	"owm2mqtt/internal/store"
	"owm2mqtt/internal/weather"
)

// Mode selects the published topic shape.
type Mode string

const (
	// ModeFlat publishes one retained message per flattened field.
	ModeFlat Mode = "flat"
	// ModeJSON publishes one retained JSON document at the topic prefix.
	ModeJSON Mode = "json"
)

// Fetcher is the upstream weather provider.
type Fetcher interface {
	CurrentWeather(ctx context.Context) (map[string]any, error)
	Forecast(ctx context.Context) (map[string]any, error)
}

// Publisher delivers one cycle's messages to the bus as a single batch.
type Publisher interface {
	PublishBatch(ctx context.Context, msgs []mqtt.Message) error
	PublishSingle(ctx context.Context, msg mqtt.Message) error
}

// Options configures the pipeline.
type Options struct {
	TopicPrefix     string
	Mode            Mode
	Enrichment      weather.Enrichment
	PublishForecast bool
	Offsets         weather.Offsets

	// Location is the display name put into the document meta; when empty
	// the provider's own "name" field is used.
	Location string
}

// Bridge runs the fetch → normalize → gate → project → publish pipeline.
// One cycle at a time; the scheduler guarantees cycles never overlap, and
// the mutex exists only because the status API reads gate state while the
// loop runs.
type Bridge struct {
	fetcher   Fetcher
	publisher Publisher
	history   *store.MemoryStore
	opts      Options

	mu   sync.Mutex
	gate Gate
}

func New(fetcher Fetcher, publisher Publisher, history *store.MemoryStore, opts Options) *Bridge {
	if opts.Offsets == nil {
		opts.Offsets = weather.DefaultOffsets()
	}
	if opts.Mode == "" {
		opts.Mode = ModeFlat
	}
	if opts.Enrichment == "" {
		opts.Enrichment = weather.EnrichmentBasic
	}
	return &Bridge{
		fetcher:   fetcher,
		publisher: publisher,
		history:   history,
		opts:      opts,
	}
}

// LastObservation returns the newest observation timestamp published, 0 if
// none yet.
func (b *Bridge) LastObservation() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.gate.Last()
}

// RunCycle executes one full pass. Every failure is contained here: the
// cycle is logged, recorded in the history store, and the caller's loop
// keeps running regardless of outcome.
func (b *Bridge) RunCycle(ctx context.Context) {
	start := time.Now()
	rec := store.CycleRecord{Time: start, Mode: string(b.opts.Mode)}
	defer func() {
		rec.Duration = time.Since(start)
		b.history.Add(rec)
	}()

	log.Printf("bridge: fetching current weather")
	current, err := b.fetcher.CurrentWeather(ctx)
	if err != nil {
		log.Printf("bridge: current weather fetch failed: %v", err)
		rec.Outcome = store.OutcomeFetchError
		rec.Err = err.Error()
		return
	}

	weather.NormalizePrecipitation(current)

	dt, ok := weather.ObservationTime(current)
	if !ok {
		log.Printf("bridge: current weather document has no usable dt, skipping cycle")
		rec.Outcome = store.OutcomeFetchError
		rec.Err = "missing observation timestamp"
		return
	}
	rec.ObservationDT = dt

	b.mu.Lock()
	fresh := b.gate.Observe(dt)
	b.mu.Unlock()
	if !fresh {
		log.Printf("bridge: no new weather data (dt=%d)", dt)
		rec.Outcome = store.OutcomeStale
		return
	}

	// The forecast is fetched only once the gate has passed, and its
	// failure never blocks publishing current conditions.
	var projected weather.ProjectedForecast
	if b.opts.PublishForecast {
		log.Printf("bridge: fetching forecast")
		series, ferr := b.fetcher.Forecast(ctx)
		if ferr != nil {
			log.Printf("bridge: forecast fetch failed, publishing current conditions only: %v", ferr)
		} else if samples, sok := series["list"].([]any); sok {
			projected = weather.ProjectForecast(samples, b.opts.Offsets)
		}
	}

	msgs, err := b.buildMessages(current, projected, start)
	if err != nil {
		log.Printf("bridge: building messages failed: %v", err)
		rec.Outcome = store.OutcomePublishFail
		rec.Err = err.Error()
		return
	}

	if b.opts.Mode == ModeJSON && len(msgs) == 1 {
		err = b.publisher.PublishSingle(ctx, msgs[0])
	} else {
		err = b.publisher.PublishBatch(ctx, msgs)
	}
	if err != nil {
		log.Printf("bridge: publish failed: %v", err)
		rec.Outcome = store.OutcomePublishFail
		rec.Err = err.Error()
		return
	}

	rec.Outcome = store.OutcomePublished
	rec.Messages = len(msgs)
	log.Printf("bridge: published %d retained message(s) (dt=%d)", len(msgs), dt)
}

func (b *Bridge) buildMessages(current map[string]any, projected weather.ProjectedForecast, fetchedAt time.Time) ([]mqtt.Message, error) {
	switch b.opts.Mode {
	case ModeJSON:
		doc := weather.BuildDocument(current, projected, b.opts.Enrichment, weather.Meta{
			FetchedAt:   fetchedAt.Unix(),
			PublishedAt: time.Now().Unix(),
			Location:    b.locationName(current),
		})
		payload, err := json.Marshal(doc)
		if err != nil {
			return nil, err
		}
		return []mqtt.Message{{
			Topic:   b.opts.TopicPrefix,
			Payload: string(payload),
			Retain:  true,
		}}, nil

	default:
		flat := weather.Flatten(current)
		for path, value := range forecastFlat(projected) {
			flat[path] = value
		}
		msgs := flatMessages(b.opts.TopicPrefix, flat)
		for _, m := range msgs {
			log.Printf("%-45s -> %s", m.Topic, m.Payload)
		}
		return msgs, nil
	}
}

func (b *Bridge) locationName(current map[string]any) string {
	if b.opts.Location != "" {
		return b.opts.Location
	}
	if name, ok := current["name"].(string); ok {
		return name
	}
	return ""
}
