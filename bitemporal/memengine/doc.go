// Package memengine provides an in-memory implementation of the bitemporal.Engine interface.
//
// It keeps an append-only log of entity versions and evaluates serialized queries itself,
// with the same temporal resolution rule and query semantics as postgresengine.
// It is meant for tests and small embedded data sets: Put and Delete exist to load facts,
// there is no durability and no transaction log beyond the process lifetime.
//
// Usage:
//
//	engine, _ := memengine.NewEngine(memengine.WithClock(clock))
//	_, _ = engine.Put(ctx, doc, validTime)
//
//	snapshot, _ := bitemporal.OpenSnapshotAtValidTime(ctx, engine, validTime)
//	tuples, _ := snapshot.Query(ctx, query)
package memengine
