package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"

	"owm2mqtt/internal/weather"
)

var validate = validator.New()

// Config holds the full runtime configuration of the bridge.
type Config struct {
	// OpenWeather credentials and location.
	OpenWeatherAppID  string
	OpenWeatherCityID string
	Units             string
	Lang              string

	// MQTT broker and credentials.
	MQTTHost     string
	MQTTPort     int `validate:"min=1,max=65535"`
	MQTTTopic    string
	MQTTClientID string
	MQTTUsername string
	MQTTPassword string

	// Pipeline shape.
	PublishMode     string `validate:"oneof=flat json"`
	Enrichment      string `validate:"oneof=basic full"`
	PublishForecast bool
	ForecastOffsets weather.Offsets

	// Timing.
	UpdateInterval time.Duration
	HTTPTimeout    time.Duration

	// Status API.
	Port string

	// Cycle history retention.
	StoreMaxHistory int
	StoreMaxAge     time.Duration
}

// Load reads configuration from the environment (optionally a .env file),
// applies defaults, and fails fast on anything missing or malformed. No
// network I/O happens before this returns.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Printf("config: no .env file loaded: %v", err)
	}

	cfg := &Config{
		OpenWeatherAppID:  os.Getenv("OPENWEATHER_APP_ID"),
		OpenWeatherCityID: os.Getenv("OPENWEATHER_CITY_ID"),
		Units:             getenvDefault("OPENWEATHER_UNITS", "metric"),
		Lang:              getenvDefault("OPENWEATHER_LANG", "fr"),

		MQTTHost:     getenvDefault("MQTT_SERVICE_HOST", "localhost"),
		MQTTPort:     getenvInt("MQTT_SERVICE_PORT", 1883),
		MQTTTopic:    getenvDefault("MQTT_SERVICE_TOPIC", "openweather"),
		MQTTClientID: getenvDefault("MQTT_CLIENT_ID", "openweather-mqtt-bridge"),
		MQTTUsername: os.Getenv("MQTT_USERNAME"),
		MQTTPassword: os.Getenv("MQTT_PASSWORD"),

		PublishMode:     getenvDefault("PUBLISH_MODE", "flat"),
		Enrichment:      getenvDefault("ENRICHMENT", "basic"),
		PublishForecast: getenvBool("PUBLISH_FORECAST", true),

		UpdateInterval: time.Duration(getenvInt("UPDATE_INTERVAL", 300)) * time.Second,

		Port: getenvDefault("PORT", "8080"),

		StoreMaxHistory: getenvInt("STORE_MAX_HISTORY", 96),
	}

	// Required credentials, checked up front so the failure message names
	// the variable rather than a struct field.
	for _, required := range []struct{ name, value string }{
		{"OPENWEATHER_APP_ID", cfg.OpenWeatherAppID},
		{"OPENWEATHER_CITY_ID", cfg.OpenWeatherCityID},
		{"MQTT_USERNAME", cfg.MQTTUsername},
		{"MQTT_PASSWORD", cfg.MQTTPassword},
	} {
		if strings.TrimSpace(required.value) == "" {
			return nil, fmt.Errorf("%s must be set", required.name)
		}
	}

	timeoutStr := getenvDefault("HTTP_TIMEOUT", "10s")
	timeout, err := time.ParseDuration(timeoutStr)
	if err != nil {
		return nil, fmt.Errorf("invalid HTTP_TIMEOUT: %w", err)
	}
	cfg.HTTPTimeout = timeout

	maxAgeStr := getenvDefault("STORE_MAX_AGE", "24h")
	maxAge, err := time.ParseDuration(maxAgeStr)
	if err != nil {
		return nil, fmt.Errorf("invalid STORE_MAX_AGE: %w", err)
	}
	cfg.StoreMaxAge = maxAge

	offsets, err := parseOffsets(getenvDefault("FORECAST_OFFSETS", ""))
	if err != nil {
		return nil, fmt.Errorf("invalid FORECAST_OFFSETS: %w", err)
	}
	cfg.ForecastOffsets = offsets

	if cfg.UpdateInterval <= 0 {
		return nil, fmt.Errorf("UPDATE_INTERVAL must be a positive number of seconds")
	}

	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// parseOffsets parses "label:index" pairs separated by commas, e.g.
// "3h:0,1d:8,4d:32". Empty input yields the default offset table.
func parseOffsets(s string) (weather.Offsets, error) {
	if strings.TrimSpace(s) == "" {
		return weather.DefaultOffsets(), nil
	}

	offsets := make(weather.Offsets)
	for _, pair := range strings.Split(s, ",") {
		label, idxStr, found := strings.Cut(strings.TrimSpace(pair), ":")
		if !found || label == "" {
			return nil, fmt.Errorf("malformed pair %q, want label:index", pair)
		}
		idx, err := strconv.Atoi(idxStr)
		if err != nil || idx < 0 {
			return nil, fmt.Errorf("malformed index in pair %q", pair)
		}
		offsets[label] = idx
	}
	return offsets, nil
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		n, err := strconv.Atoi(v)
		if err == nil {
			return n
		}
	}
	return def
}

func getenvBool(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v == "1" || strings.EqualFold(v, "true")
}
