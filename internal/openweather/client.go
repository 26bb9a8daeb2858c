package openweather

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/sony/gobreaker"
)

const (
	defaultWeatherURL  = "https://api.openweathermap.org/data/2.5/weather"
	defaultForecastURL = "https://api.openweathermap.org/data/2.5/forecast"
)

var (
	errRateLimited = errors.New("rate limited")
	errServerError = errors.New("server error")
	errUnexpected  = errors.New("unexpected status code")

	// ErrInvalidPayload marks a 2xx response whose body is missing the
	// field that identifies it as usable data ("dt" for current
	// conditions, "list" for the forecast series).
	ErrInvalidPayload = errors.New("invalid payload")
)

// Client fetches current conditions and the forecast series for a single
// configured city. Each endpoint sits behind its own circuit breaker so a
// broken forecast endpoint cannot starve current-weather fetches. There are
// no in-client retries: the poll loop's next cycle is the retry mechanism.
type Client struct {
	httpClient *http.Client

	weatherURL  string
	forecastURL string

	appID  string
	cityID string
	units  string
	lang   string

	weatherCircuit  *gobreaker.CircuitBreaker
	forecastCircuit *gobreaker.CircuitBreaker
}

// NewClient creates a provider client sharing the given HTTP client, whose
// timeout is the only bound on a stuck fetch.
func NewClient(httpClient *http.Client, appID, cityID, units, lang string) *Client {
	breaker := func(name string) *gobreaker.CircuitBreaker {
		return gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        name,
			MaxRequests: 5,
			Interval:    1 * time.Minute,
			Timeout:     2 * time.Minute,
		})
	}

	return &Client{
		httpClient:      httpClient,
		weatherURL:      defaultWeatherURL,
		forecastURL:     defaultForecastURL,
		appID:           appID,
		cityID:          cityID,
		units:           units,
		lang:            lang,
		weatherCircuit:  breaker("openweather-current"),
		forecastCircuit: breaker("openweather-forecast"),
	}
}

// CurrentWeather fetches the current-conditions document. The response must
// carry a "dt" observation timestamp to count as data.
func (c *Client) CurrentWeather(ctx context.Context) (map[string]any, error) {
	doc, err := c.fetch(ctx, c.weatherURL, c.weatherCircuit)
	if err != nil {
		return nil, fmt.Errorf("current weather: %w", err)
	}
	if _, ok := doc["dt"]; !ok {
		return nil, fmt.Errorf("current weather: %w: missing dt", ErrInvalidPayload)
	}
	return doc, nil
}

// Forecast fetches the forecast series document. The response must carry a
// "list" of samples to count as data.
func (c *Client) Forecast(ctx context.Context) (map[string]any, error) {
	doc, err := c.fetch(ctx, c.forecastURL, c.forecastCircuit)
	if err != nil {
		return nil, fmt.Errorf("forecast: %w", err)
	}
	if _, ok := doc["list"]; !ok {
		return nil, fmt.Errorf("forecast: %w: missing list", ErrInvalidPayload)
	}
	return doc, nil
}

func (c *Client) fetch(ctx context.Context, baseURL string, cb *gobreaker.CircuitBreaker) (map[string]any, error) {
	values := url.Values{}
	values.Set("id", c.cityID)
	values.Set("appid", c.appID)
	values.Set("units", c.units)
	values.Set("lang", c.lang)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s?%s", baseURL, values.Encode()), nil)
	if err != nil {
		return nil, err
	}

	result, err := cb.Execute(func() (interface{}, error) {
		resp, execErr := c.httpClient.Do(req)
		if execErr != nil {
			return nil, execErr
		}
		defer resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusTooManyRequests:
			return nil, errRateLimited
		case resp.StatusCode >= 500:
			return nil, fmt.Errorf("%w: %d", errServerError, resp.StatusCode)
		case resp.StatusCode < 200 || resp.StatusCode >= 300:
			return nil, fmt.Errorf("%w: %d", errUnexpected, resp.StatusCode)
		}

		var doc map[string]any
		if decodeErr := json.NewDecoder(resp.Body).Decode(&doc); decodeErr != nil {
			return nil, fmt.Errorf("decode body: %w", decodeErr)
		}
		return doc, nil
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("circuit breaker open: %w", err)
		}
		return nil, err
	}

	doc, ok := result.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("unexpected result type from circuit breaker")
	}
	return doc, nil
}
