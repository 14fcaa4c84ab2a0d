// Package config provides connection and observability configuration for the example programs.
//
// It contains factory functions for the PostgreSQL drivers the postgresengine supports
// (pgx.Pool, sql.DB, sqlx.DB) and for OpenTelemetry providers exporting over OTLP.
package config
