// Package bitemporal provides immutable, point-in-time read views over a bitemporal fact store.
//
// Every fact is indexed by valid time (when it is true in the modeled world) and by transaction time
// (when it was recorded). A Snapshot is pinned to one pair of those coordinates when it is opened
// and never changes afterwards.
//
// Key types:
//   - Snapshot: the pinned view; runs queries and resolves entities
//   - Query: find symbols plus where clauses, built with BuildQuery
//   - ResultTuple: one result row bound to the query's find symbols, in find order
//   - Identifier: the key of an entity across all of its versions
//   - Document, EntityTx: an entity version and the tx metadata describing it
//   - Resolution: Found(value) or NotFound, never nil
//   - Engine, View: the backing store interfaces (see memengine and postgresengine)
//
// Common usage pattern:
//
//	e, name := bitemporal.MustSymbol("?e"), bitemporal.MustSymbol("?name")
//	query, err := bitemporal.BuildQuery().
//		Find(e, name).
//		Where(bitemporal.Triple(bitemporal.Var(e), "name", bitemporal.Var(name))).
//		Finalize()
//
//	snapshot, err := bitemporal.OpenSnapshotAtValidTime(ctx, engine, validTime)
//	tuples, err := snapshot.Query(ctx, query)
//
//	doc, err := snapshot.Entity(ctx, id)
//	if d, ok := doc.Get(); ok {
//		// use d
//	}
package bitemporal
