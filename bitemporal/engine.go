package bitemporal

import (
	"context"
	"time"
)

// Engine is the backing store a Snapshot delegates to. It opens views pinned to temporal coordinates.
//
// Implementations must pin a concrete transaction time when a view is opened, so that writes completed
// afterwards are never visible through it. Implementations shipped with this module:
//   - memengine: in-memory, for tests and small embedded data sets
//   - postgresengine: PostgreSQL
type Engine interface {
	// ViewAt opens a view at the engine's current valid time and its latest completed transaction.
	ViewAt(ctx context.Context) (View, error)

	// ViewAtValidTime opens a view at validTime and the latest transaction completed when the view is opened.
	ViewAtValidTime(ctx context.Context, validTime time.Time) (View, error)

	// ViewAtValidAndTransactionTime opens a view at both coordinates.
	// A transactionTime after the latest completed transaction fails with ErrTransactionTimeInFuture.
	ViewAtValidAndTransactionTime(ctx context.Context, validTime, transactionTime time.Time) (View, error)
}

// View is an opaque, read-only engine handle pinned to one (valid time, transaction time) pair.
// It must be safe for concurrent use.
type View interface {
	ValidTime() time.Time
	TransactionTime() time.Time

	// RawQuery runs a serialized query (see Query.ToSerializedForm) and returns its unprocessed rows.
	RawQuery(ctx context.Context, serializedQuery string) ([][]any, error)

	// RawEntity returns the attributes of the entity version visible in this view, ok is false if there is none.
	RawEntity(ctx context.Context, serializedID string) (attributes map[string]any, ok bool, err error)

	// RawEntityTx returns the raw tx map (see EntityTxFromRaw) of the same version RawEntity resolves to.
	RawEntityTx(ctx context.Context, serializedID string) (entityTx map[string]any, ok bool, err error)
}
