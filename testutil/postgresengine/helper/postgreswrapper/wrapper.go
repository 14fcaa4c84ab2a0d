package postgreswrapper

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/AntonStoeckl/bitemporal-snapshots-go/bitemporal/postgresengine"
	"github.com/AntonStoeckl/bitemporal-snapshots-go/testutil/postgresengine/config"
)

// Engine type constants
const (
	typePGXPool = "pgx.pool"
	typeSQLDB   = "sql.db"
	typeSQLXDB  = "sqlx.db"
)

// TestTableName is the entity versions table the integration tests work on.
const TestTableName = "entity_versions_test"

const connectTimeout = 3 * time.Second

// Wrapper interface to abstract over different engine types
type Wrapper interface {
	GetEngine() postgresengine.Engine
	Exec(ctx context.Context, query string) error
	Close()
}

// PGXPoolWrapper wraps pgxpool-based testing
type PGXPoolWrapper struct {
	pool   *pgxpool.Pool
	engine postgresengine.Engine
}

func (w *PGXPoolWrapper) GetEngine() postgresengine.Engine {
	return w.engine
}

func (w *PGXPoolWrapper) Exec(ctx context.Context, query string) error {
	_, err := w.pool.Exec(ctx, query)
	return err
}

func (w *PGXPoolWrapper) Close() {
	w.pool.Close()
}

// SQLDBWrapper wraps sql.DB-based testing
type SQLDBWrapper struct {
	db     *sql.DB
	engine postgresengine.Engine
}

func (w *SQLDBWrapper) GetEngine() postgresengine.Engine {
	return w.engine
}

func (w *SQLDBWrapper) Exec(ctx context.Context, query string) error {
	_, err := w.db.ExecContext(ctx, query)
	return err
}

func (w *SQLDBWrapper) Close() {
	_ = w.db.Close() // ignore error
}

// SQLXWrapper wraps sqlx.DB-based testing
type SQLXWrapper struct {
	db     *sqlx.DB
	engine postgresengine.Engine
}

func (w *SQLXWrapper) GetEngine() postgresengine.Engine {
	return w.engine
}

func (w *SQLXWrapper) Exec(ctx context.Context, query string) error {
	_, err := w.db.ExecContext(ctx, query)
	return err
}

func (w *SQLXWrapper) Close() {
	_ = w.db.Close() // ignore error
}

// CreateWrapperWithTestConfig creates the wrapper selected by the ADAPTER_TYPE environment variable,
// with an engine on TestTableName. The test is skipped if the test database is unreachable.
func CreateWrapperWithTestConfig(t testing.TB, options ...postgresengine.Option) Wrapper {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()

	options = append([]postgresengine.Option{postgresengine.WithTableName(TestTableName)}, options...)
	engineTypeFromEnv := strings.ToLower(os.Getenv("ADAPTER_TYPE"))

	switch engineTypeFromEnv {
	case typePGXPool, "":
		poolConfig, err := config.PostgresPGXPoolSingleConfig()
		require.NoError(t, err, "error parsing the pgx pool config")

		pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
		require.NoError(t, err, "error creating the pgx pool")

		if pingErr := pool.Ping(ctx); pingErr != nil {
			pool.Close()
			t.Skipf("test database unreachable: %v", pingErr)
		}

		engine, err := postgresengine.NewEngineFromPGXPool(pool, options...)
		require.NoError(t, err, "error creating the engine")

		return &PGXPoolWrapper{pool: pool, engine: engine}

	case typeSQLDB:
		db, err := config.PostgresSQLDBSingleConfig(ctx)
		if err != nil {
			t.Skipf("test database unreachable: %v", err)
		}

		engine, err := postgresengine.NewEngineFromSQLDB(db, options...)
		require.NoError(t, err, "error creating the engine")

		return &SQLDBWrapper{db: db, engine: engine}

	case typeSQLXDB:
		db, err := config.PostgresSQLXSingleConfig(ctx)
		if err != nil {
			t.Skipf("test database unreachable: %v", err)
		}

		engine, err := postgresengine.NewEngineFromSQLX(db, options...)
		require.NoError(t, err, "error creating the engine")

		return &SQLXWrapper{db: db, engine: engine}

	default: // neither one of the known types nor empty
		panic(fmt.Sprintf("unsupported wrapper type from env: %s", engineTypeFromEnv))
	}
}

// ReplicatedPGXPoolWrapper wraps an engine reading from a primary and a replica pool. Fixtures are written to the primary.
type ReplicatedPGXPoolWrapper struct {
	primary *pgxpool.Pool
	replica *pgxpool.Pool
	engine  postgresengine.Engine
}

func (w *ReplicatedPGXPoolWrapper) GetEngine() postgresengine.Engine {
	return w.engine
}

func (w *ReplicatedPGXPoolWrapper) Exec(ctx context.Context, query string) error {
	_, err := w.primary.Exec(ctx, query)
	return err
}

func (w *ReplicatedPGXPoolWrapper) Close() {
	w.primary.Close()
	w.replica.Close()
}

// CreateReplicatedWrapperWithTestConfig creates a wrapper on the replicated test database.
// The test is skipped if the primary or the replica is unreachable.
func CreateReplicatedWrapperWithTestConfig(t testing.TB, options ...postgresengine.Option) Wrapper {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()

	primary := connectPGXPool(ctx, t, config.PostgresPGXPoolPrimaryConfig)
	replica := connectPGXPool(ctx, t, config.PostgresPGXPoolReplicaConfig)
	if primary == nil || replica == nil {
		if primary != nil {
			primary.Close()
		}
		if replica != nil {
			replica.Close()
		}

		t.Skip("replicated test database unreachable")
	}

	options = append([]postgresengine.Option{postgresengine.WithTableName(TestTableName)}, options...)
	engine, err := postgresengine.NewEngineFromPGXPoolWithReplica(primary, replica, options...)
	require.NoError(t, err, "error creating the engine")

	return &ReplicatedPGXPoolWrapper{primary: primary, replica: replica, engine: engine}
}

// connectPGXPool returns nil if the database does not answer a ping.
func connectPGXPool(ctx context.Context, t testing.TB, poolConfig func() (*pgxpool.Config, error)) *pgxpool.Pool {
	t.Helper()

	cfg, err := poolConfig()
	require.NoError(t, err, "error parsing the pgx pool config")

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	require.NoError(t, err, "error creating the pgx pool")

	if pingErr := pool.Ping(ctx); pingErr != nil {
		pool.Close()
		return nil
	}

	return pool
}

// CreateSchema creates TestTableName if it does not exist yet.
func CreateSchema(t testing.TB, wrapper Wrapper) {
	t.Helper()

	ddl := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		entity_id     text        NOT NULL,
		valid_time    timestamptz NOT NULL,
		tx_time       timestamptz NOT NULL,
		tx_id         bigint      NOT NULL,
		content_hash  text        NOT NULL,
		document      jsonb,
		PRIMARY KEY (entity_id, valid_time, tx_id)
	)`, TestTableName)

	err := wrapper.Exec(context.Background(), ddl)
	require.NoError(t, err, "error creating the entity versions table")
}

// CleanUp empties TestTableName, creating it first if needed.
func CleanUp(t testing.TB, wrapper Wrapper) {
	t.Helper()

	CreateSchema(t, wrapper)

	err := wrapper.Exec(context.Background(), "TRUNCATE TABLE "+TestTableName)
	require.NoError(t, err, "error cleaning up the entity versions table")
}
