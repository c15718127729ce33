package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"gopkg.in/yaml.v3"
)

// Snapshot source kinds.
const (
	SnapshotBundled  = "bundled"
	SnapshotPostgres = "postgres"
	SnapshotR2       = "r2"
)

// Config aggregates runtime configuration used across the service.
type Config struct {
	HTTP     HTTPConfig     `yaml:"http"`
	Market   MarketConfig   `yaml:"market"`
	Snapshot SnapshotConfig `yaml:"snapshot"`
	Cache    CacheConfig    `yaml:"cache"`
	Events   EventsConfig   `yaml:"events"`
}

// HTTPConfig controls server level behavior.
type HTTPConfig struct {
	Address         string          `yaml:"address"`
	ReadTimeout     time.Duration   `yaml:"readTimeout"`
	WriteTimeout    time.Duration   `yaml:"writeTimeout"`
	ShutdownTimeout time.Duration   `yaml:"shutdownTimeout"`
	AllowedOrigins  []string        `yaml:"allowedOrigins"`
	RateLimit       RateLimitConfig `yaml:"rateLimit"`
}

// RateLimitConfig drives the request limiting middleware.
type RateLimitConfig struct {
	Enabled           bool `yaml:"enabled"`
	RequestsPerMinute int  `yaml:"requestsPerMinute"`
	Burst             int  `yaml:"burst"`
}

// MarketConfig covers the upstream price API and the lazy loader.
type MarketConfig struct {
	APIBaseURL          string                       `yaml:"apiBaseUrl"`
	APIKey              string                       `yaml:"apiKey"`
	RequestLimit        int                          `yaml:"requestLimit"`
	FetchTimeout        time.Duration                `yaml:"fetchTimeout"`
	MaxRetries          int                          `yaml:"maxRetries"`
	RetryBackoff        time.Duration                `yaml:"retryBackoff"`
	BatchSize           int                          `yaml:"batchSize"`
	BatchDelay          time.Duration                `yaml:"batchDelay"`
	RecordsPerCommodity int                          `yaml:"recordsPerCommodity"`
	SyntheticSeed       int64                        `yaml:"syntheticSeed"`
	Timezone            string                       `yaml:"timezone"`
	Preload             []string                     `yaml:"preload"`
	Labels              map[string]map[string]string `yaml:"labels"`
}

// SnapshotConfig selects where bundled fallback prices come from.
type SnapshotConfig struct {
	Source   string         `yaml:"source"`
	Postgres PostgresConfig `yaml:"postgres"`
	R2       R2Config       `yaml:"r2"`
}

// PostgresConfig contains DSN and pooling settings.
type PostgresConfig struct {
	DSN      string `yaml:"dsn"`
	MaxConns int32  `yaml:"maxConns"`
	MinConns int32  `yaml:"minConns"`
}

// R2Config locates the snapshot object in Cloudflare R2.
type R2Config struct {
	Endpoint  string        `yaml:"endpoint"`
	AccessKey string        `yaml:"accessKey"`
	SecretKey string        `yaml:"secretKey"`
	Bucket    string        `yaml:"bucket"`
	Object    string        `yaml:"object"`
	Region    string        `yaml:"region"`
	Reload    time.Duration `yaml:"reload"`
}

// CacheConfig controls the live fetch cache.
type CacheConfig struct {
	TTL    time.Duration `yaml:"ttl"`
	Valkey ValkeyConfig  `yaml:"valkey"`
}

// ValkeyConfig contains connection information for cache storage.
type ValkeyConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
	Prefix  string `yaml:"prefix"`
}

// EventsConfig controls batch event publishing.
type EventsConfig struct {
	Kafka KafkaConfig `yaml:"kafka"`
}

// KafkaConfig contains broker settings.
type KafkaConfig struct {
	Enabled      bool          `yaml:"enabled"`
	Brokers      []string      `yaml:"brokers"`
	Topic        string        `yaml:"topic"`
	WriteTimeout time.Duration `yaml:"writeTimeout"`
}

// Load reads configuration from a YAML file and environment variables.
func Load() (*Config, error) {
	cfg := defaultConfig()

	if path := os.Getenv("CONFIG_PATH"); path != "" {
		if err := hydrateFromFile(cfg, path); err != nil {
			return nil, err
		}
	} else if _, err := os.Stat("configs/config.yaml"); err == nil {
		if err := hydrateFromFile(cfg, "configs/config.yaml"); err != nil {
			return nil, err
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

func hydrateFromFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	setString(&cfg.HTTP.Address, "HTTP_ADDRESS")
	setList(&cfg.HTTP.AllowedOrigins, "HTTP_ALLOWED_ORIGINS")
	setBool(&cfg.HTTP.RateLimit.Enabled, "HTTP_RATE_LIMIT_ENABLED")
	setInt(&cfg.HTTP.RateLimit.RequestsPerMinute, "HTTP_RATE_LIMIT_RPM")
	setInt(&cfg.HTTP.RateLimit.Burst, "HTTP_RATE_LIMIT_BURST")
	setDuration(&cfg.HTTP.ShutdownTimeout, "HTTP_SHUTDOWN_TIMEOUT")

	setString(&cfg.Market.APIBaseURL, "MARKET_API_BASE_URL")
	setString(&cfg.Market.APIKey, "MARKET_API_KEY")
	setInt(&cfg.Market.RequestLimit, "MARKET_REQUEST_LIMIT")
	setDuration(&cfg.Market.FetchTimeout, "MARKET_FETCH_TIMEOUT")
	setInt(&cfg.Market.MaxRetries, "MARKET_MAX_RETRIES")
	setDuration(&cfg.Market.RetryBackoff, "MARKET_RETRY_BACKOFF")
	setInt(&cfg.Market.BatchSize, "MARKET_BATCH_SIZE")
	setDuration(&cfg.Market.BatchDelay, "MARKET_BATCH_DELAY")
	setInt(&cfg.Market.RecordsPerCommodity, "MARKET_RECORDS_PER_COMMODITY")
	if v := os.Getenv("MARKET_SYNTHETIC_SEED"); v != "" {
		if parsed, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.Market.SyntheticSeed = parsed
		}
	}
	setString(&cfg.Market.Timezone, "MARKET_TIMEZONE")
	setList(&cfg.Market.Preload, "MARKET_PRELOAD")

	setString(&cfg.Snapshot.Source, "SNAPSHOT_SOURCE")
	setString(&cfg.Snapshot.Postgres.DSN, "SNAPSHOT_POSTGRES_DSN")
	if v := os.Getenv("SNAPSHOT_POSTGRES_MAX_CONNS"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			cfg.Snapshot.Postgres.MaxConns = int32(parsed)
		}
	}
	if v := os.Getenv("SNAPSHOT_POSTGRES_MIN_CONNS"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			cfg.Snapshot.Postgres.MinConns = int32(parsed)
		}
	}
	setString(&cfg.Snapshot.R2.Endpoint, "SNAPSHOT_R2_ENDPOINT")
	setString(&cfg.Snapshot.R2.AccessKey, "SNAPSHOT_R2_ACCESS_KEY")
	setString(&cfg.Snapshot.R2.SecretKey, "SNAPSHOT_R2_SECRET_KEY")
	setString(&cfg.Snapshot.R2.Bucket, "SNAPSHOT_R2_BUCKET")
	setString(&cfg.Snapshot.R2.Object, "SNAPSHOT_R2_OBJECT")
	setString(&cfg.Snapshot.R2.Region, "SNAPSHOT_R2_REGION")
	setDuration(&cfg.Snapshot.R2.Reload, "SNAPSHOT_R2_RELOAD")

	setDuration(&cfg.Cache.TTL, "CACHE_TTL")
	setBool(&cfg.Cache.Valkey.Enabled, "CACHE_VALKEY_ENABLED")
	setString(&cfg.Cache.Valkey.Addr, "CACHE_VALKEY_ADDR")
	setString(&cfg.Cache.Valkey.Prefix, "CACHE_VALKEY_PREFIX")

	setBool(&cfg.Events.Kafka.Enabled, "EVENTS_KAFKA_ENABLED")
	setList(&cfg.Events.Kafka.Brokers, "EVENTS_KAFKA_BROKERS")
	setString(&cfg.Events.Kafka.Topic, "EVENTS_KAFKA_TOPIC")
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v == "1" || strings.EqualFold(v, "true")
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			*dst = parsed
		}
	}
}

func setDuration(dst *time.Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if parsed, err := time.ParseDuration(v); err == nil {
			*dst = parsed
		}
	}
}

func setList(dst *[]string, key string) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	*dst = out
}

func defaultConfig() *Config {
	return &Config{
		HTTP: HTTPConfig{
			Address:         ":8080",
			ReadTimeout:     5 * time.Second,
			WriteTimeout:    60 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			AllowedOrigins:  []string{"http://localhost:5173", "http://localhost:3000"},
			RateLimit: RateLimitConfig{
				Enabled:           true,
				RequestsPerMinute: 120,
				Burst:             30,
			},
		},
		Market: MarketConfig{
			APIBaseURL:          "https://api.data.gov.in/resource/9ef84268-d588-465a-a308-a864a43d0070",
			RequestLimit:        50,
			FetchTimeout:        12 * time.Second,
			MaxRetries:          2,
			RetryBackoff:        250 * time.Millisecond,
			BatchSize:           3,
			BatchDelay:          100 * time.Millisecond,
			RecordsPerCommodity: 5,
			SyntheticSeed:       0,
			Timezone:            "Asia/Kolkata",
			Labels: map[string]map[string]string{
				"hi": {
					"vegetables": "सब्ज़ियाँ",
					"grains":     "अनाज",
					"pulses":     "दालें",
					"spices":     "मसाले",
					"fruits":     "फल",
					"oilseeds":   "तिलहन",
					"cashcrops":  "नकदी फसलें",
					"others":     "अन्य",
				},
			},
		},
		Snapshot: SnapshotConfig{
			Source: SnapshotBundled,
			Postgres: PostgresConfig{
				MaxConns: 4,
				MinConns: 0,
			},
			R2: R2Config{
				Object: "snapshots/prices.json",
				Region: "auto",
				Reload: time.Hour,
			},
		},
		Cache: CacheConfig{
			TTL: 30 * time.Minute,
			Valkey: ValkeyConfig{
				Enabled: false,
				Prefix:  "mandi",
			},
		},
		Events: EventsConfig{
			Kafka: KafkaConfig{
				Enabled:      false,
				Topic:        "mandi.batches",
				WriteTimeout: 5 * time.Second,
			},
		},
	}
}

// Validate ensures the configuration is safe to use.
func (c *Config) Validate() error {
	if c.HTTP.Address == "" {
		return errors.New("http.address cannot be empty")
	}
	if c.HTTP.ShutdownTimeout <= 0 {
		return errors.New("http.shutdownTimeout must be positive")
	}
	if c.HTTP.RateLimit.Enabled {
		if c.HTTP.RateLimit.RequestsPerMinute <= 0 {
			return errors.New("http.rateLimit.requestsPerMinute must be positive")
		}
		if c.HTTP.RateLimit.Burst <= 0 {
			return errors.New("http.rateLimit.burst must be positive")
		}
	}
	if strings.TrimSpace(c.Market.APIBaseURL) == "" {
		return errors.New("market.apiBaseUrl cannot be empty")
	}
	if c.Market.MaxRetries < 0 {
		return errors.New("market.maxRetries cannot be negative")
	}
	if c.Market.BatchSize <= 0 {
		return errors.New("market.batchSize must be positive")
	}
	if c.Market.BatchDelay < 0 {
		return errors.New("market.batchDelay cannot be negative")
	}
	if c.Market.RecordsPerCommodity <= 0 {
		return errors.New("market.recordsPerCommodity must be positive")
	}
	if _, err := time.LoadLocation(c.Market.Timezone); err != nil {
		return fmt.Errorf("market.timezone: %w", err)
	}
	switch c.Snapshot.Source {
	case SnapshotBundled:
	case SnapshotPostgres:
		if strings.TrimSpace(c.Snapshot.Postgres.DSN) == "" {
			return errors.New("snapshot.postgres.dsn cannot be empty when source is postgres")
		}
	case SnapshotR2:
		r2 := c.Snapshot.R2
		if r2.Endpoint == "" || r2.Bucket == "" || r2.Object == "" {
			return errors.New("snapshot.r2 endpoint, bucket and object are required when source is r2")
		}
	default:
		return fmt.Errorf("snapshot.source %q is not one of bundled, postgres, r2", c.Snapshot.Source)
	}
	if c.Cache.TTL < 0 {
		return errors.New("cache.ttl cannot be negative")
	}
	if c.Cache.Valkey.Enabled && strings.TrimSpace(c.Cache.Valkey.Addr) == "" {
		return errors.New("cache.valkey.addr cannot be empty when valkey cache is enabled")
	}
	if c.Events.Kafka.Enabled {
		if len(c.Events.Kafka.Brokers) == 0 {
			return errors.New("events.kafka.brokers cannot be empty when kafka is enabled")
		}
		if strings.TrimSpace(c.Events.Kafka.Topic) == "" {
			return errors.New("events.kafka.topic cannot be empty when kafka is enabled")
		}
	}
	return nil
}
