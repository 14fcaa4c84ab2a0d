package config

import (
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresPGXPoolSingleConfig creates a pgxpool.Config for the test database.
func PostgresPGXPoolSingleConfig() (*pgxpool.Config, error) {
	return pgxPoolConfig(PostgresSingleDSN(), 20, 2)
}

// PostgresPGXPoolPrimaryConfig creates a pgxpool.Config for the primary node of a replicated database.
func PostgresPGXPoolPrimaryConfig() (*pgxpool.Config, error) {
	return pgxPoolConfig(PostgresPrimaryDSN(), 30, 2)
}

// PostgresPGXPoolReplicaConfig creates a pgxpool.Config for the replica node of a replicated database.
func PostgresPGXPoolReplicaConfig() (*pgxpool.Config, error) {
	return pgxPoolConfig(PostgresReplicaDSN(), 30, 2)
}

func pgxPoolConfig(dsn string, maxConnections, minConnections int32) (*pgxpool.Config, error) {
	const defaultMaxConnLifetime = time.Hour
	const defaultMaxConnIdleTime = time.Minute * 5
	const defaultHealthCheckPeriod = time.Minute
	const defaultConnectTimeout = time.Second * 2

	dbConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}

	dbConfig.MaxConns = maxConnections
	dbConfig.MinConns = minConnections
	dbConfig.MaxConnLifetime = defaultMaxConnLifetime
	dbConfig.MaxConnIdleTime = defaultMaxConnIdleTime
	dbConfig.HealthCheckPeriod = defaultHealthCheckPeriod
	dbConfig.ConnConfig.ConnectTimeout = defaultConnectTimeout

	return dbConfig, nil
}
