package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"time"

	"github.com/AntonStoeckl/bitemporal-snapshots-go/bitemporal"
)

const (
	adapterPGXPool = "pgx.pool"
	adapterSQLDB   = "sql.db"
	adapterSQLX    = "sqlx.db"
)

var (
	errNothingRequested = errors.New("either -query or -entity is required")
	errTooManyRequested = errors.New("-query and -entity are mutually exclusive")
	errUnknownAdapter   = errors.New("unknown adapter")
)

// Config holds what one invocation reads, and where from.
type Config struct {
	Adapter              string
	DSN                  string
	TableName            string
	ValidTime            time.Time
	TransactionTime      time.Time
	Query                string
	EntityID             string
	ObservabilityEnabled bool
	Verbose              bool
}

func parseFlags(args []string, defaultDSN string) (Config, error) {
	flags := flag.NewFlagSet("snapshot-query", flag.ContinueOnError)

	var (
		adapter         = flags.String("adapter", adapterPGXPool, "Database adapter: pgx.pool, sql.db or sqlx.db")
		dsn             = flags.String("dsn", defaultDSN, "PostgreSQL DSN")
		tableName       = flags.String("table", "entity_versions", "Table holding the entity versions")
		validTime       = flags.String("valid-time", "", "Valid time as RFC3339, defaults to now")
		transactionTime = flags.String("tx-time", "", "Transaction time as RFC3339, defaults to the latest transaction")
		query           = flags.String("query", "", "Serialized query to run")
		entityID        = flags.String("entity", "", "Canonical identifier of the entity to resolve, e.g. int:7")
		observability   = flags.Bool("observability-enabled", false, "Export traces and metrics over OTLP")
		verbose         = flags.Bool("verbose", false, "Log the executed SQL")
	)

	if err := flags.Parse(args); err != nil {
		return Config{}, err
	}

	cfg := Config{
		Adapter:              *adapter,
		DSN:                  *dsn,
		TableName:            *tableName,
		Query:                *query,
		EntityID:             *entityID,
		ObservabilityEnabled: *observability,
		Verbose:              *verbose,
	}

	var err error
	if cfg.ValidTime, err = parseInstant(*validTime); err != nil {
		return Config{}, fmt.Errorf("invalid -valid-time: %w", err)
	}

	if cfg.TransactionTime, err = parseInstant(*transactionTime); err != nil {
		return Config{}, fmt.Errorf("invalid -tx-time: %w", err)
	}

	return cfg, cfg.validate()
}

func parseInstant(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}

	return time.Parse(time.RFC3339Nano, value)
}

func (c Config) validate() error {
	switch c.Adapter {
	case adapterPGXPool, adapterSQLDB, adapterSQLX:
	default:
		return fmt.Errorf("%w: %s", errUnknownAdapter, c.Adapter)
	}

	if c.Query == "" && c.EntityID == "" {
		return errNothingRequested
	}

	if c.Query != "" && c.EntityID != "" {
		return errTooManyRequested
	}

	return nil
}

// openSnapshot pins the Snapshot to the coordinates the flags asked for. A missing valid time means now.
func openSnapshot(ctx context.Context, engine bitemporal.Engine, cfg Config, now func() time.Time) (bitemporal.Snapshot, error) {
	switch {
	case !cfg.TransactionTime.IsZero():
		validTime := cfg.ValidTime
		if validTime.IsZero() {
			validTime = now()
		}

		return bitemporal.OpenSnapshotAt(ctx, engine, validTime, cfg.TransactionTime)

	case !cfg.ValidTime.IsZero():
		return bitemporal.OpenSnapshotAtValidTime(ctx, engine, cfg.ValidTime)

	default:
		return bitemporal.OpenSnapshot(ctx, engine)
	}
}

// run answers the request from snapshot and writes one JSON document per line to out.
func run(ctx context.Context, snapshot bitemporal.Snapshot, cfg Config, out io.Writer) error {
	if cfg.Query != "" {
		return runQuery(ctx, snapshot, cfg.Query, out)
	}

	return runEntity(ctx, snapshot, cfg.EntityID, out)
}

func runQuery(ctx context.Context, snapshot bitemporal.Snapshot, serializedQuery string, out io.Writer) error {
	rows, err := snapshot.QueryRaw(ctx, serializedQuery)
	if err != nil {
		return err
	}

	for _, row := range rows {
		if err = writeLine(out, row); err != nil {
			return err
		}
	}

	return nil
}

func runEntity(ctx context.Context, snapshot bitemporal.Snapshot, canonicalID string, out io.Writer) error {
	id, err := bitemporal.ParseIdentifier(canonicalID)
	if err != nil {
		return err
	}

	entity, err := snapshot.Entity(ctx, id)
	if err != nil {
		return err
	}

	doc, found := entity.Get()
	if !found {
		return writeLine(out, nil)
	}

	entityTx, err := snapshot.EntityTx(ctx, id)
	if err != nil {
		return err
	}

	tx, _ := entityTx.Get()

	return writeLine(out, map[string]any{
		"entity": doc.ToMap(),
		"tx":     tx.ToMap(),
	})
}

func writeLine(out io.Writer, value any) error {
	encoded, err := bitemporal.EncodeValue(value)
	if err != nil {
		return err
	}

	_, err = fmt.Fprintf(out, "%s\n", encoded)

	return err
}
