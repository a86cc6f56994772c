package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	Server  ServerConfig
	Worker  WorkerConfig
	Sources SourcesConfig
	ETL     ETLConfig
	Dedup   DedupConfig
	Geocode GeocodeConfig
	DB      DatabaseConfig
	Logging LoggingConfig
}

type ServerConfig struct {
	Host string
	Port int
}

type WorkerConfig struct {
	Count      int
	BufferSize int
}

type SourcesConfig struct {
	USGSEnabled      bool
	USGSURL          string
	USGSPollInterval time.Duration
	USGSMinMagnitude float64
	USGSLookback     time.Duration

	EMDATEnabled      bool
	EMDATSource       string // file path or http(s) URL of the CSV export
	EMDATPollInterval time.Duration

	WebFeedEnabled      bool
	WebFeedURL          string
	WebFeedPollInterval time.Duration
}

type ETLConfig struct {
	BatchSize   int
	RunInterval time.Duration
}

type DedupConfig struct {
	Window         time.Duration
	DistanceMeters float64
	RunInterval    time.Duration
}

type GeocodeConfig struct {
	BaseURL     string
	UserAgent   string
	Timeout     time.Duration
	MaxRetries  int
	RatePerSec  float64
	InitialWait time.Duration
	MaxWait     time.Duration
}

type DatabaseConfig struct {
	Path string
}

type LoggingConfig struct {
	Level string
}

func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Host: getEnv("SERVER_HOST", "localhost"),
			Port: getEnvInt("SERVER_PORT", 8080),
		},
		Worker: WorkerConfig{
			Count:      getEnvInt("WORKER_COUNT", 2),
			BufferSize: getEnvInt("WORKER_BUFFER_SIZE", 50),
		},
		Sources: SourcesConfig{
			USGSEnabled:      getEnvBool("USGS_ENABLED", true),
			USGSURL:          getEnv("USGS_URL", "https://earthquake.usgs.gov/fdsnws/event/1"),
			USGSPollInterval: getEnvDuration("USGS_POLL_INTERVAL", 15*time.Minute),
			USGSMinMagnitude: getEnvFloat("USGS_MIN_MAGNITUDE", 4.0),
			USGSLookback:     getEnvDuration("USGS_LOOKBACK", 7*24*time.Hour),

			EMDATEnabled:      getEnvBool("EMDAT_ENABLED", false),
			EMDATSource:       getEnv("EMDAT_SOURCE", ""),
			EMDATPollInterval: getEnvDuration("EMDAT_POLL_INTERVAL", 24*time.Hour),

			WebFeedEnabled:      getEnvBool("WEB_FEED_ENABLED", false),
			WebFeedURL:          getEnv("WEB_FEED_URL", ""),
			WebFeedPollInterval: getEnvDuration("WEB_FEED_POLL_INTERVAL", 30*time.Minute),
		},
		ETL: ETLConfig{
			BatchSize:   getEnvInt("ETL_BATCH_SIZE", 1000),
			RunInterval: getEnvDuration("ETL_RUN_INTERVAL", 5*time.Minute),
		},
		Dedup: DedupConfig{
			Window:         getEnvDuration("DEDUP_WINDOW", 48*time.Hour),
			DistanceMeters: getEnvFloat("DEDUP_DISTANCE_METERS", 100_000),
			RunInterval:    getEnvDuration("DEDUP_RUN_INTERVAL", time.Hour),
		},
		Geocode: GeocodeConfig{
			BaseURL:     getEnv("GEOCODE_URL", "https://nominatim.openstreetmap.org"),
			UserAgent:   getEnv("GEOCODE_USER_AGENT", "disaster-warehouse/1.0"),
			Timeout:     getEnvDuration("GEOCODE_TIMEOUT", 10*time.Second),
			MaxRetries:  getEnvInt("GEOCODE_MAX_RETRIES", 3),
			RatePerSec:  getEnvFloat("GEOCODE_RATE_PER_SEC", 1),
			InitialWait: getEnvDuration("GEOCODE_INITIAL_WAIT", time.Second),
			MaxWait:     getEnvDuration("GEOCODE_MAX_WAIT", 10*time.Second),
		},
		DB: DatabaseConfig{
			Path: getEnv("DB_PATH", "./data/disaster-warehouse.db"),
		},
		Logging: LoggingConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}

	if c.ETL.BatchSize < 1 {
		return fmt.Errorf("ETL batch size must be positive, got %d", c.ETL.BatchSize)
	}
	if c.Dedup.Window <= 0 {
		return fmt.Errorf("dedup window must be positive, got %v", c.Dedup.Window)
	}
	if c.Dedup.DistanceMeters <= 0 {
		return fmt.Errorf("dedup distance must be positive, got %v", c.Dedup.DistanceMeters)
	}
	if c.Geocode.MaxRetries < 1 {
		return fmt.Errorf("geocode max retries must be at least 1, got %d", c.Geocode.MaxRetries)
	}
	if c.Geocode.RatePerSec <= 0 {
		return fmt.Errorf("geocode rate must be positive, got %v", c.Geocode.RatePerSec)
	}

	if c.Sources.USGSPollInterval < time.Minute {
		return fmt.Errorf("USGS poll interval must be at least 1 minute")
	}
	if c.Sources.EMDATEnabled && c.Sources.EMDATSource == "" {
		return fmt.Errorf("EMDAT_SOURCE required when EM-DAT ingestion is enabled")
	}
	if c.Sources.WebFeedEnabled && c.Sources.WebFeedURL == "" {
		return fmt.Errorf("WEB_FEED_URL required when web feed ingestion is enabled")
	}

	return nil
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return fallback
}
