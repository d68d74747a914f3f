package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
	"github.com/joho/godotenv"
)

// Filter storage backends.
const (
	StorageFile     = "file"
	StoragePostgres = "postgres"
	StorageMemory   = "memory"
)

const defaultFeedURL = "https://earthquake.usgs.gov/earthquakes/feed/v1.0/summary/all_week.geojson"

// Config holds all service settings, populated from environment variables.
type Config struct {
	FeedURL         string
	FeedTimeout     time.Duration
	RefreshInterval time.Duration

	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// Filter persistence.
	FilterStorage    string
	FilterStorageDir string
	DatabaseURL      string

	// Downstream publishing.
	KafkaEnabled bool
	KafkaBrokers []string
	KafkaTopic   string

	// Mapbox geocoding configuration.
	MapboxToken     string
	MapboxEnabled   bool
	MapboxTimeout   time.Duration
	MapboxCacheSize int
	MapboxCacheTTL  time.Duration

	// Focus handoff retry bounds.
	FocusMaxAttempts int
	FocusRetryDelay  time.Duration
}

// Load reads configuration from environment variables, applying defaults
// where unset. A .env file in the working directory is loaded first if
// present; variables already set in the environment win.
func Load() (*Config, error) {
	_ = godotenv.Load() // ignore missing file

	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		FeedURL:          sharedcfg.EnvOrDefault("FEED_URL", defaultFeedURL),
		HTTPAddr:         sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:         sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:        sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout:  shutdownTimeout,
		FilterStorage:    strings.ToLower(sharedcfg.EnvOrDefault("FILTER_STORAGE", StorageFile)),
		FilterStorageDir: sharedcfg.EnvOrDefault("FILTER_STORAGE_DIR", "data"),
		DatabaseURL:      os.Getenv("DATABASE_URL"),
		KafkaEnabled:     os.Getenv("KAFKA_ENABLED") == "true",
		KafkaBrokers:     sharedcfg.ParseBrokers(sharedcfg.EnvOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaTopic:       sharedcfg.EnvOrDefault("KAFKA_TOPIC", "earthquake-events"),
		MapboxToken:      os.Getenv("MAPBOX_TOKEN"),
		MapboxCacheSize:  parsePositiveInt("MAPBOX_CACHE_SIZE", 1000),
		FocusMaxAttempts: parsePositiveInt("FOCUS_MAX_ATTEMPTS", 10),
	}
	durations := []struct {
		name string
		def  string
		dest *time.Duration
	}{
		{"FEED_TIMEOUT", "15s", &cfg.FeedTimeout},
		{"REFRESH_INTERVAL", "5m", &cfg.RefreshInterval},
		{"MAPBOX_TIMEOUT", "5s", &cfg.MapboxTimeout},
		{"MAPBOX_CACHE_TTL", "24h", &cfg.MapboxCacheTTL},
		{"FOCUS_RETRY_DELAY", "100ms", &cfg.FocusRetryDelay},
	}
	for _, d := range durations {
		if *d.dest, err = parseDuration(d.name, d.def); err != nil {
			return nil, err
		}
	}

	cfg.MapboxEnabled = cfg.MapboxToken != ""
	if v := os.Getenv("MAPBOX_ENABLED"); v != "" {
		cfg.MapboxEnabled = v == "true"
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.FilterStorage {
	case StorageFile:
		if c.FilterStorageDir == "" {
			return errors.New("FILTER_STORAGE_DIR is required for file storage")
		}
	case StoragePostgres:
		if c.DatabaseURL == "" {
			return errors.New("DATABASE_URL is required when FILTER_STORAGE is postgres")
		}
	case StorageMemory:
	default:
		return fmt.Errorf("invalid FILTER_STORAGE %q", c.FilterStorage)
	}
	if c.KafkaEnabled && len(c.KafkaBrokers) == 0 {
		return errors.New("KAFKA_BROKERS is required when KAFKA_ENABLED is true")
	}
	if c.KafkaEnabled && c.KafkaTopic == "" {
		return errors.New("KAFKA_TOPIC is required when KAFKA_ENABLED is true")
	}
	if c.MapboxEnabled && c.MapboxToken == "" {
		return errors.New("MAPBOX_ENABLED is true but MAPBOX_TOKEN is not set")
	}
	return nil
}

func parseDuration(name, def string) (time.Duration, error) {
	raw := sharedcfg.EnvOrDefault(name, def)
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s %q", name, raw)
	}
	return d, nil
}

func parsePositiveInt(name string, def int) int {
	if s := os.Getenv(name); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			return n
		}
	}
	return def
}
