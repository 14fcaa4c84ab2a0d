package config

import (
	"context"
	"database/sql"
	"time"

	_ "github.com/lib/pq" // postgres driver
)

// PostgresSQLDBSingleConfig opens and pings a configured *sql.DB for the test database.
func PostgresSQLDBSingleConfig(ctx context.Context) (*sql.DB, error) {
	return openSQLDB(ctx, PostgresSingleDSN(), 20, 2)
}

func openSQLDB(ctx context.Context, dsn string, maxOpen, maxIdle int) (*sql.DB, error) {
	const defaultMaxConnLifetime = time.Hour
	const defaultMaxConnIdleTime = time.Minute * 5

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(maxIdle)
	db.SetConnMaxLifetime(defaultMaxConnLifetime)
	db.SetConnMaxIdleTime(defaultMaxConnIdleTime)

	if pingErr := db.PingContext(ctx); pingErr != nil {
		_ = db.Close() // the ping error is the one worth reporting

		return nil, pingErr
	}

	return db, nil
}
