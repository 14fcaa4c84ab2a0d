// Package adapters provides the database adapters of the PostgreSQL bitemporal engine.
//
// The engine only reads, so an adapter only needs to run a query and hand back its rows.
// Implementations exist for pgxpool.Pool (optionally with a read replica), sql.DB and sqlx.DB.
package adapters
