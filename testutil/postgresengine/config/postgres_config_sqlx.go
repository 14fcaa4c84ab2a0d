package config

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // postgres driver
)

// PostgresSQLXSingleConfig opens and pings a configured *sqlx.DB for the test database.
func PostgresSQLXSingleConfig(ctx context.Context) (*sqlx.DB, error) {
	return openSQLX(ctx, PostgresSingleDSN(), 20, 2)
}

func openSQLX(ctx context.Context, dsn string, maxOpen, maxIdle int) (*sqlx.DB, error) {
	const defaultMaxConnLifetime = time.Hour
	const defaultMaxConnIdleTime = time.Minute * 5

	db, err := sqlx.Open("postgres", dsn)
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
