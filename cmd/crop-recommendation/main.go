package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/i474232898/crop-recommendation/internal/alerts"
	httpapi "github.com/i474232898/crop-recommendation/internal/api/http"
	"github.com/i474232898/crop-recommendation/internal/config"
	"github.com/i474232898/crop-recommendation/internal/crop"
	"github.com/i474232898/crop-recommendation/internal/environment"
	"github.com/i474232898/crop-recommendation/internal/environment/providers"
	"github.com/i474232898/crop-recommendation/internal/scheduler"
	"github.com/i474232898/crop-recommendation/internal/store"
)

func main() {
	// Load configuration (also reads .env).
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	// The catalog must be in place before the listener accepts requests.
	catalog, err := crop.Load(cfg.CatalogPath)
	if err != nil {
		log.Fatalf("failed to load crop catalog: %v", err)
	}
	fertilizers, err := crop.LoadFertilizers(cfg.FertilizerPath)
	if err != nil {
		log.Fatalf("failed to load fertilizer data: %v", err)
	}

	// Shared HTTP client for outbound provider calls.
	httpClient := &http.Client{
		Timeout: cfg.HTTPTimeout,
	}
	opts := providers.Options{Client: httpClient, RatePerSecond: cfg.ProviderRatePerSec}

	// Upstream sources with resilience (backoff + circuit breaker + rate limit).
	// Temperature averages whichever keyed providers are configured.
	var temperature []environment.Source
	weatherAPI := providers.NewWeatherAPIProvider(opts, cfg.WeatherAPIKey)
	if cfg.WeatherAPIKey != "" {
		temperature = append(temperature, weatherAPI)
	}
	if cfg.OpenWeatherAPIKey != "" {
		temperature = append(temperature, providers.NewOpenWeatherProvider(opts, cfg.OpenWeatherAPIKey))
	}
	if len(temperature) == 0 {
		log.Printf("INFO: no temperature provider keys configured; temperature will use fallback %v", cfg.Fallbacks.Temperature)
	}

	sources := environment.Sources{
		Temperature: environment.MeanOf(temperature...),
		Rainfall:    providers.NewOpenMeteoRainfall(opts),
		SoilPH:      providers.NewSoilGridsProvider(opts),
		Altitude:    providers.NewOpenMeteoElevation(opts),
	}
	gateway := environment.NewGateway(sources, cfg.Fallbacks, providers.NewGoogleGeocoder(cfg.GeocoderAPIKey), cfg.GatewayTimeout)

	// In-memory snapshot history with configured retention.
	memStore := store.NewMemoryStore(cfg.StoreMaxHistory, cfg.StoreMaxAge)

	// Core service: gateway + store + catalog.
	service := environment.NewService(gateway, memStore, catalog, cfg.SnapshotMaxAge)

	// Scheduler that keeps watch locations warm.
	sched := scheduler.New(cfg.WatchLocations, cfg.RefreshInterval, service)
	if err := sched.Start(); err != nil {
		log.Fatalf("failed to start scheduler: %v", err)
	}
	defer sched.Stop()

	// Basic app configuration
	app := fiber.New(fiber.Config{
		AppName:               "crop-recommendation",
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          30 * time.Second,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			// Centralized error response
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

	// Global middleware
	app.Use(logger.New())
	app.Use(recover.New())

	// Basic health endpoint
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "ok",
			"service": "crop-recommendation",
			"crops":   catalog.Len(),
		})
	})

	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	// API routes.
	httpapi.RegisterRoutes(app, httpapi.Dependencies{
		Environment: service,
		Alerts:      alerts.NewService(weatherAPI),
		Fertilizers: fertilizers,
	})

	go func() {
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.Printf("fiber server stopped: %v", err)
		}
	}()
	log.Printf("INFO: crop-recommendation listening on :%s with %d crops", cfg.Port, catalog.Len())

	// Wait for termination signal
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Printf("error during shutdown: %v", err)
	}
}
