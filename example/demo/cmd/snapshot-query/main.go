package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel"

	"github.com/AntonStoeckl/bitemporal-snapshots-go/bitemporal/oteladapters"
	"github.com/AntonStoeckl/bitemporal-snapshots-go/bitemporal/postgresengine"
	"github.com/AntonStoeckl/bitemporal-snapshots-go/example/shared/shell/config"
)

const serviceName = "bitemporal-snapshot-query"

func main() {
	cfg, err := parseFlags(os.Args[1:], config.PostgresDSN())
	if err != nil {
		log.Fatalf("Invalid arguments: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	options := []postgresengine.Option{postgresengine.WithTableName(cfg.TableName)}

	if cfg.Verbose {
		handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug})
		options = append(options, postgresengine.WithLogger(slog.New(handler)))
	}

	if cfg.ObservabilityEnabled {
		providers, providersErr := config.NewObservabilityProviders(ctx, serviceName)
		if providersErr != nil {
			log.Fatalf("Failed to create observability providers: %v", providersErr)
		}

		defer func() {
			if shutdownErr := providers.Shutdown(); shutdownErr != nil {
				log.Printf("Error during observability shutdown: %v", shutdownErr)
			}
		}()

		options = append(options,
			postgresengine.WithContextualLogger(oteladapters.NewSlogBridgeLogger(serviceName)),
			postgresengine.WithMetrics(oteladapters.NewMetricsCollector(otel.Meter(serviceName))),
			postgresengine.WithTracing(oteladapters.NewTracingCollector(otel.Tracer(serviceName))),
		)
	}

	engine, closeDB, err := newEngine(ctx, cfg, options)
	if err != nil {
		log.Fatalf("Failed to create the engine: %v", err)
	}
	defer closeDB()

	snapshot, err := openSnapshot(ctx, engine, cfg, time.Now)
	if err != nil {
		log.Fatalf("Failed to open the snapshot: %v", err)
	}

	if err = run(ctx, snapshot, cfg, os.Stdout); err != nil {
		log.Fatalf("Failed to read from the snapshot: %v", err)
	}
}

func newEngine(ctx context.Context, cfg Config, options []postgresengine.Option) (postgresengine.Engine, func(), error) {
	switch cfg.Adapter {
	case adapterSQLDB:
		db, err := config.PostgresSQLDB(ctx, cfg.DSN)
		if err != nil {
			return postgresengine.Engine{}, nil, err
		}

		engine, err := postgresengine.NewEngineFromSQLDB(db, options...)

		return engine, func() { _ = db.Close() }, err

	case adapterSQLX:
		db, err := config.PostgresSQLX(ctx, cfg.DSN)
		if err != nil {
			return postgresengine.Engine{}, nil, err
		}

		engine, err := postgresengine.NewEngineFromSQLX(db, options...)

		return engine, func() { _ = db.Close() }, err

	default:
		poolConfig, err := config.PostgresPGXPoolConfig(cfg.DSN)
		if err != nil {
			return postgresengine.Engine{}, nil, err
		}

		pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
		if err != nil {
			return postgresengine.Engine{}, nil, err
		}

		engine, err := postgresengine.NewEngineFromPGXPool(pool, options...)

		return engine, pool.Close, err
	}
}
