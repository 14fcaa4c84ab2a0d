// Package postgresengine provides a PostgreSQL implementation of bitemporal.Engine.
//
// The engine reads a table of entity versions; each row is one version of an entity:
//
//	entity_id     text        canonical Identifier, e.g. "int:42" or ":alice"
//	valid_time    timestamptz the version applies from here on
//	tx_time       timestamptz when the transaction that recorded it completed
//	tx_id         bigint      that transaction's id
//	content_hash  text        fingerprint of the document
//	document      jsonb       the attributes, NULL for a deletion
//
// A view opened at (vt, tt) sees, per entity, the row with the greatest (valid_time, tx_time, tx_id)
// not after the coordinates. Queries compile into a single SQL statement over that set.
//
// Key features:
//   - Multiple database adapter support (PGX, SQL, SQLX)
//   - Read replica routing for contexts marked with bitemporal.WithEventualConsistency
//   - Configurable table name and clock
//   - Optional logging, contextual logging, metrics and tracing
//
// Usage examples:
//
//	db, _ := pgxpool.New(context.Background(), dsn)
//	engine, _ := postgresengine.NewEngineFromPGXPool(
//		db,
//		postgresengine.WithTableName("entity_versions"),
//		postgresengine.WithLogger(slog.Default()),
//	)
//
//	snapshot, _ := bitemporal.OpenSnapshot(ctx, engine)
//	tuples, _ := snapshot.Query(ctx, query)
package postgresengine
