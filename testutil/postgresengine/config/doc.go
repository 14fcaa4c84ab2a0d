// Package config provides PostgreSQL database configuration for testing the bitemporal postgresengine.
//
// This package contains factory functions for creating database connections
// with every adapter the engine supports (pgx.Pool, sql.DB, sqlx.DB),
// for a single test database as well as for a primary/replica pair.
//
// DSNs default to local docker databases and can be overridden with the environment
// variables TEST_SINGLE_DSN, TEST_PRIMARY_DSN and TEST_REPLICA_DSN.
package config
