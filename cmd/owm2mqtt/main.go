package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	httpapi "owm2mqtt/internal/api/http"
	"owm2mqtt/internal/bridge"
	"owm2mqtt/internal/config"
	"owm2mqtt/internal/mqtt"
	"owm2mqtt/internal/openweather"
	"owm2mqtt/internal/scheduler"
	"owm2mqtt/internal/store"
	"owm2mqtt/internal/weather"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	log.Printf("starting openweather-mqtt bridge")
	log.Printf("MQTT broker : %s:%d", cfg.MQTTHost, cfg.MQTTPort)
	log.Printf("MQTT topic  : %s (mode=%s)", cfg.MQTTTopic, cfg.PublishMode)
	log.Printf("poll interval: %s", cfg.UpdateInterval)

	// Shared HTTP client; its timeout is the only bound on a stuck fetch.
	httpClient := &http.Client{
		Timeout: cfg.HTTPTimeout,
	}

	fetcher := openweather.NewClient(httpClient, cfg.OpenWeatherAppID, cfg.OpenWeatherCityID, cfg.Units, cfg.Lang)

	publisher := mqtt.NewPublisher(mqtt.Options{
		Host:     cfg.MQTTHost,
		Port:     cfg.MQTTPort,
		ClientID: cfg.MQTTClientID,
		Username: cfg.MQTTUsername,
		Password: cfg.MQTTPassword,
	})

	history := store.NewMemoryStore(cfg.StoreMaxHistory, cfg.StoreMaxAge)

	b := bridge.New(fetcher, publisher, history, bridge.Options{
		TopicPrefix:     cfg.MQTTTopic,
		Mode:            bridge.Mode(cfg.PublishMode),
		Enrichment:      weather.Enrichment(cfg.Enrichment),
		PublishForecast: cfg.PublishForecast,
		Offsets:         cfg.ForecastOffsets,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sched := scheduler.New(b, cfg.UpdateInterval)
	if err := sched.Start(ctx); err != nil {
		log.Fatalf("failed to start scheduler: %v", err)
	}
	defer sched.Stop()

	app := fiber.New(fiber.Config{
		AppName:               "owm2mqtt",
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          10 * time.Second,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{
				"error":   true,
				"message": err.Error(),
			})
		},
	})

	app.Use(logger.New())
	app.Use(recover.New())

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "ok",
			"service": "owm2mqtt",
		})
	})

	httpapi.RegisterRoutes(app, b, history, httpapi.ServiceInfo{
		Mode:        cfg.PublishMode,
		TopicPrefix: cfg.MQTTTopic,
		Interval:    cfg.UpdateInterval,
	})

	go func() {
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.Printf("fiber server stopped: %v", err)
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Printf("error during shutdown: %v", err)
	}
}
