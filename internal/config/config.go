package config

import (
	"fmt"
	"log"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"

	"github.com/i474232898/crop-recommendation/internal/environment"
)

type AppConfig struct {
	Port string `validate:"required,numeric"`

	// Static datasets.
	CatalogPath    string `validate:"required"`
	FertilizerPath string `validate:"required"`

	WeatherAPIKey     string
	OpenWeatherAPIKey string
	GeocoderAPIKey    string

	// Outbound HTTP.
	HTTPTimeout        time.Duration `validate:"gt=0"`
	GatewayTimeout     time.Duration `validate:"gt=0"`
	ProviderRatePerSec float64       `validate:"gte=0"`

	// Values used when an upstream lookup fails.
	Fallbacks environment.Fallbacks

	// SnapshotMaxAge controls how long a resolved environment is reused.
	SnapshotMaxAge time.Duration `validate:"gte=0"`

	// In-memory store retention.
	StoreMaxHistory int           `validate:"gte=0"` // max number of snapshots per location (0 = unlimited)
	StoreMaxAge     time.Duration `validate:"gte=0"` // max age of snapshots (0 = unlimited)

	// RefreshInterval controls how often watch locations are refreshed.
	RefreshInterval time.Duration `validate:"gte=0"`

	// Locations kept warm by the scheduler.
	WatchLocations []environment.Location `validate:"dive"`
}

var validate = validator.New()

// Load reads configuration from environment with sensible defaults.
func Load() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil {
		log.Printf("INFO: No .env file found or error loading it: %v", err)
	}
	cfg := &AppConfig{}

	cfg.Port = getenvDefault("PORT", "8080")
	cfg.CatalogPath = getenvDefault("CROP_CATALOG_PATH", "Datasets/crop_ecology_data.csv")
	cfg.FertilizerPath = getenvDefault("FERTILIZER_DATA_PATH", "Datasets/Fertilizer_data.csv")

	cfg.WeatherAPIKey = os.Getenv("WEATHERAPI_API_KEY")
	cfg.OpenWeatherAPIKey = os.Getenv("OPENWEATHER_API_KEY")
	cfg.GeocoderAPIKey = os.Getenv("GEOCODER_API_KEY")

	var err error
	durations := []struct {
		key string
		def string
		dst *time.Duration
	}{
		{"HTTP_TIMEOUT", "10s", &cfg.HTTPTimeout},
		{"GATEWAY_TIMEOUT", "8s", &cfg.GatewayTimeout},
		{"SNAPSHOT_MAX_AGE", "1h", &cfg.SnapshotMaxAge},
		{"STORE_MAX_AGE", "24h", &cfg.StoreMaxAge},
		{"REFRESH_INTERVAL", "30m", &cfg.RefreshInterval},
	}
	for _, d := range durations {
		*d.dst, err = time.ParseDuration(getenvDefault(d.key, d.def))
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", d.key, err)
		}
	}

	// Store retention: roughly 2 days at the default refresh interval.
	cfg.StoreMaxHistory, err = getenvInt("STORE_MAX_HISTORY", 96)
	if err != nil {
		return nil, err
	}

	defaults := environment.DefaultFallbacks()
	floats := []struct {
		key string
		def float64
		dst *float64
	}{
		{"PROVIDER_RATE_PER_SEC", 5, &cfg.ProviderRatePerSec},
		{"FALLBACK_TEMPERATURE_C", defaults.Temperature, &cfg.Fallbacks.Temperature},
		{"FALLBACK_RAINFALL_MM", defaults.Rainfall, &cfg.Fallbacks.Rainfall},
		{"FALLBACK_SOIL_PH", defaults.SoilPH, &cfg.Fallbacks.SoilPH},
		{"FALLBACK_ALTITUDE_M", defaults.Altitude, &cfg.Fallbacks.Altitude},
	}
	for _, f := range floats {
		*f.dst, err = getenvFloat(f.key, f.def)
		if err != nil {
			return nil, err
		}
	}

	locs, err := parseLocations(os.Getenv("WATCH_LOCATIONS"))
	if err != nil {
		return nil, err
	}
	cfg.WatchLocations = locs

	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// parseLocations reads "lat:lon;lat:lon".
func parseLocations(s string) ([]environment.Location, error) {
	var locs []environment.Location
	for _, item := range strings.Split(s, ";") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		parts := strings.Split(item, ":")
		if len(parts) != 2 {
			return nil, fmt.Errorf("invalid WATCH_LOCATIONS entry %q: want lat:lon", item)
		}
		lat, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid WATCH_LOCATIONS latitude %q: %w", parts[0], err)
		}
		lon, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid WATCH_LOCATIONS longitude %q: %w", parts[1], err)
		}
		locs = append(locs, environment.Location{Lat: lat, Lon: lon})
	}
	return locs, nil
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func getenvFloat(key string, def float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("invalid %s: %q is not a finite number", key, v)
	}
	return f, nil
}
