package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"

	"supplyledger/internal/idempotency"
	"supplyledger/internal/ledger"
	"supplyledger/internal/ledger/memory"
	"supplyledger/internal/ledger/postgres"
	"supplyledger/internal/platform/config"
	"supplyledger/internal/platform/kafka"
	"supplyledger/internal/platform/redis"
	"supplyledger/internal/relay"
	httptransport "supplyledger/internal/transport/http"
)

// backing holds the stateful dependencies selected by configuration.
type backing struct {
	kind        string
	store       ledger.Store
	idempotency idempotency.Store
	relay       *relay.Relay
	checks      []httptransport.HealthCheck
	closers     []func()
}

func (b *backing) Close() {
	for i := len(b.closers) - 1; i >= 0; i-- {
		b.closers[i]()
	}
}

func openBacking(ctx context.Context, cfg config.Config, log *slog.Logger) (_ *backing, err error) {
	b := &backing{}
	defer func() {
		if err != nil {
			b.Close()
		}
	}()

	if cfg.Database.URL == "" {
		log.Warn("DATABASE_URL not set, ledger state is in memory and lost on restart")
		b.kind = "memory"
		b.store = memory.New(memory.WithTimeout(cfg.Ledger.TxTimeout))
	} else {
		pool, err := openPostgres(ctx, cfg, log)
		if err != nil {
			return nil, err
		}
		b.kind = "postgres"
		b.closers = append(b.closers, pool.Close)
		b.store = postgres.New(pool, postgres.WithTimeout(cfg.Ledger.TxTimeout))
		b.checks = append(b.checks, httptransport.HealthCheck{Name: "postgres", Check: pool.Ping})
	}

	rdb, err := redis.New(ctx, cfg.Redis)
	if err != nil {
		return nil, err
	}
	if rdb == nil {
		b.idempotency = idempotency.NewMemoryStore()
	} else {
		b.closers = append(b.closers, func() { _ = rdb.Close() })
		b.idempotency = idempotency.NewRedisStore(rdb.Client)
		b.checks = append(b.checks, httptransport.HealthCheck{Name: "redis", Check: rdb.Health})
	}

	if cfg.Kafka.Enabled() {
		producer, err := kafka.NewProducer(kafka.Config{
			Brokers:  cfg.Kafka.BrokerList(),
			ClientID: "supplyledger-relay",
		})
		if err != nil {
			return nil, err
		}
		b.closers = append(b.closers, producer.Close)
		if err := kafka.EnsureTopic(ctx, producer.Client(), cfg.Kafka.Topic, cfg.Kafka.Partitions, cfg.Kafka.Replication); err != nil {
			return nil, err
		}
		b.relay = relay.New(b.store, producer, cfg.Kafka.Topic,
			relay.WithLogger(log),
			relay.WithMetrics(relay.NewMetrics(prometheus.DefaultRegisterer)),
			relay.WithInterval(cfg.Kafka.RelayInterval),
			relay.WithBatchSize(cfg.Kafka.RelayBatch),
		)
		b.checks = append(b.checks, httptransport.HealthCheck{Name: "kafka", Check: producer.Ping})
	} else {
		log.Info("KAFKA_BROKERS not set, event relay disabled")
	}
	return b, nil
}

func openPostgres(ctx context.Context, cfg config.Config, log *slog.Logger) (*pgxpool.Pool, error) {
	applied, err := postgres.Migrate(ctx, cfg.Database.URL, log)
	if err != nil {
		return nil, fmt.Errorf("migrate database: %w", err)
	}
	log.Info("database migrations applied", "count", applied)

	pool, err := postgres.Connect(ctx, cfg.Database.URL, cfg.Database.MaxConns)
	if err != nil {
		return nil, err
	}
	return pool, nil
}
