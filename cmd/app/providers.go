package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/valkey-io/valkey-go"

	"github.com/yanqian/agri-market/internal/domain/market"
	"github.com/yanqian/agri-market/internal/infra/config"
	"github.com/yanqian/agri-market/internal/infra/events"
	"github.com/yanqian/agri-market/internal/infra/mandi/datagov"
	"github.com/yanqian/agri-market/internal/infra/pricecache"
	"github.com/yanqian/agri-market/internal/infra/snapshot"
	"github.com/yanqian/agri-market/pkg/metrics"
)

func provideMarketConfig(cfg *config.Config) (market.Config, error) {
	loc, err := time.LoadLocation(cfg.Market.Timezone)
	if err != nil {
		return market.Config{}, fmt.Errorf("load market timezone: %w", err)
	}
	return market.Config{
		Loader: market.LoaderConfig{
			BatchSize:           cfg.Market.BatchSize,
			BatchDelay:          cfg.Market.BatchDelay,
			RecordsPerCommodity: cfg.Market.RecordsPerCommodity,
		},
		Location: loc,
	}, nil
}

func provideRegistry() *market.Registry {
	return market.NewRegistry(market.DefaultCategories())
}

func provideLabels(cfg *config.Config) market.LabelSource {
	return market.StaticLabels(cfg.Market.Labels)
}

func provideMetricsHandler(pipeline *metrics.Pipeline) http.Handler {
	return pipeline.Handler()
}

func provideSynthesizer(cfg *config.Config) *market.Synthesizer {
	seed := cfg.Market.SyntheticSeed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return market.NewSynthesizer(seed)
}

func provideDataGovClient(cfg *config.Config, pipeline *metrics.Pipeline, logger *slog.Logger) *datagov.Client {
	return datagov.NewClient(datagov.Options{
		BaseURL:      cfg.Market.APIBaseURL,
		APIKey:       cfg.Market.APIKey,
		Limit:        cfg.Market.RequestLimit,
		Timeout:      cfg.Market.FetchTimeout,
		MaxRetries:   cfg.Market.MaxRetries,
		RetryBackoff: cfg.Market.RetryBackoff,
	}, pipeline, logger)
}

func provideGateway(cfg *config.Config, client *datagov.Client, logger *slog.Logger) market.Gateway {
	if cfg.Cache.TTL <= 0 {
		logger.Info("live price cache disabled")
		return client
	}
	return pricecache.NewGateway(client, providePriceStore(cfg, logger), cfg.Cache.TTL, logger)
}

func providePriceStore(cfg *config.Config, logger *slog.Logger) pricecache.Store {
	if cfg.Cache.Valkey.Enabled {
		opt, err := buildValkeyOptions(cfg.Cache.Valkey.Addr)
		if err != nil {
			logger.Error("invalid valkey configuration, falling back to memory cache", "error", err)
			return pricecache.NewMemoryStore()
		}
		client, err := valkey.NewClient(opt)
		if err != nil {
			logger.Error("failed to create valkey client, falling back to memory cache", "error", err)
			return pricecache.NewMemoryStore()
		}
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := client.Do(ctx, client.B().Ping().Build()).Error(); err != nil {
			logger.Error("valkey ping failed, falling back to memory cache", "error", err)
			client.Close()
		} else {
			logger.Info("valkey price cache enabled", "addr", cfg.Cache.Valkey.Addr)
			return pricecache.NewValkeyStore(client, cfg.Cache.Valkey.Prefix)
		}
	}
	return pricecache.NewMemoryStore()
}

func buildValkeyOptions(addr string) (valkey.ClientOption, error) {
	if strings.Contains(addr, "://") {
		return valkey.ParseURL(addr)
	}
	return valkey.ClientOption{InitAddress: []string{addr}}, nil
}

// provideSnapshotSource always keeps the bundled catalog as the last resort so
// a misconfigured external source cannot empty the static tier.
func provideSnapshotSource(cfg *config.Config, logger *slog.Logger) (market.SnapshotSource, func(), error) {
	bundled, err := snapshot.Bundled()
	if err != nil {
		return nil, nil, fmt.Errorf("load bundled snapshot: %w", err)
	}
	noop := func() {}

	switch cfg.Snapshot.Source {
	case config.SnapshotPostgres:
		pool, err := openPostgres(cfg.Snapshot.Postgres)
		if err != nil {
			logger.Error("postgres snapshot source unavailable, using bundled snapshot", "error", err)
			return bundled, noop, nil
		}
		logger.Info("postgres snapshot source enabled")
		return snapshot.NewChain(snapshot.NewPostgresSource(pool), bundled, logger), pool.Close, nil
	case config.SnapshotR2:
		r2 := cfg.Snapshot.R2
		source, err := snapshot.NewR2Source(snapshot.R2Options{
			Endpoint:  r2.Endpoint,
			AccessKey: r2.AccessKey,
			SecretKey: r2.SecretKey,
			Bucket:    r2.Bucket,
			Object:    r2.Object,
			Region:    r2.Region,
			Reload:    r2.Reload,
		}, logger)
		if err != nil {
			logger.Error("r2 snapshot source unavailable, using bundled snapshot", "error", err)
			return bundled, noop, nil
		}
		logger.Info("r2 snapshot source enabled", "bucket", r2.Bucket, "object", r2.Object)
		return snapshot.NewChain(source, bundled, logger), noop, nil
	default:
		logger.Info("bundled snapshot source enabled", "records", bundled.Len())
		return bundled, noop, nil
	}
}

func openPostgres(cfg config.PostgresConfig) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(strings.TrimSpace(cfg.DSN))
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolConfig.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolConfig.MinConns = cfg.MinConns
	}
	pool, err := pgxpool.NewWithConfig(context.Background(), poolConfig)
	if err != nil {
		return nil, fmt.Errorf("init postgres pool: %w", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return pool, nil
}

func provideEventPublisher(cfg *config.Config, logger *slog.Logger) (market.EventPublisher, func(), error) {
	if !cfg.Events.Kafka.Enabled {
		return events.NewLogPublisher(logger), func() {}, nil
	}
	pub, err := events.NewKafkaPublisher(events.KafkaConfig{
		Brokers:      cfg.Events.Kafka.Brokers,
		Topic:        cfg.Events.Kafka.Topic,
		WriteTimeout: cfg.Events.Kafka.WriteTimeout,
	}, logger)
	if err != nil {
		return nil, nil, err
	}
	logger.Info("kafka batch events enabled", "topic", cfg.Events.Kafka.Topic)
	cleanup := func() {
		if err := pub.Close(); err != nil {
			logger.Warn("kafka publisher close failed", "error", err)
		}
	}
	return pub, cleanup, nil
}
