package bitemporal

import (
	"context"
	"time"
)

// Snapshot is an immutable read view of a bitemporal engine, pinned to a valid time and a transaction time.
// It must be obtained from OpenSnapshot, OpenSnapshotAtValidTime or OpenSnapshotAt; the reads of a zero Snapshot
// fail with ErrSnapshotNotOpened.
//
// All operations are read-only and a Snapshot never changes after construction, so concurrent calls with
// the same input observe the same result. Engine errors are returned unmodified: no retry, no logging.
type Snapshot struct {
	view View
}

// OpenSnapshot opens a Snapshot at the engine's current valid time and latest transaction.
func OpenSnapshot(ctx context.Context, engine Engine) (Snapshot, error) {
	if engine == nil {
		return Snapshot{}, ErrNilEngine
	}

	view, err := engine.ViewAt(ctx)
	if err != nil {
		return Snapshot{}, err
	}

	return Snapshot{view: view}, nil
}

// OpenSnapshotAtValidTime opens a Snapshot at validTime and the latest transaction completed now.
func OpenSnapshotAtValidTime(ctx context.Context, engine Engine, validTime time.Time) (Snapshot, error) {
	if engine == nil {
		return Snapshot{}, ErrNilEngine
	}

	view, err := engine.ViewAtValidTime(ctx, validTime)
	if err != nil {
		return Snapshot{}, err
	}

	return Snapshot{view: view}, nil
}

// OpenSnapshotAt opens a Snapshot at validTime and transactionTime.
func OpenSnapshotAt(ctx context.Context, engine Engine, validTime, transactionTime time.Time) (Snapshot, error) {
	if engine == nil {
		return Snapshot{}, ErrNilEngine
	}

	view, err := engine.ViewAtValidAndTransactionTime(ctx, validTime, transactionTime)
	if err != nil {
		return Snapshot{}, err
	}

	return Snapshot{view: view}, nil
}

// ValidTime returns the valid time the Snapshot is pinned to. It is zero for a Snapshot that was not opened.
func (s Snapshot) ValidTime() time.Time {
	if s.view == nil {
		return time.Time{}
	}

	return s.view.ValidTime()
}

// TransactionTime returns the transaction time the Snapshot is pinned to. It is zero for a Snapshot that was not opened.
func (s Snapshot) TransactionTime() time.Time {
	if s.view == nil {
		return time.Time{}
	}

	return s.view.TransactionTime()
}

// Query runs query against the Snapshot and binds each row to query.OutputSymbols(), in that order.
//
// The order of the rows is defined by the engine and not necessarily stable across calls,
// unless the query has an OrderBy. A row whose arity differs from the find symbols fails with ErrTupleArityMismatch.
func (s Snapshot) Query(ctx context.Context, query Query) (ResultTuples, error) {
	if s.view == nil {
		return nil, ErrSnapshotNotOpened
	}

	rows, err := s.view.RawQuery(ctx, query.ToSerializedForm())
	if err != nil {
		return nil, err
	}

	symbols := query.OutputSymbols()
	tuples := make(ResultTuples, 0, len(rows))

	for _, row := range rows {
		tuple, tupleErr := BuildResultTuple(symbols, row)
		if tupleErr != nil {
			return nil, tupleErr
		}

		tuples = append(tuples, tuple)
	}

	return tuples, nil
}

// QueryRaw passes a serialized query straight to the engine and returns its rows unprocessed.
// Unlike Query, nothing is bound to symbols and nothing is checked.
func (s Snapshot) QueryRaw(ctx context.Context, serializedQuery string) ([][]any, error) {
	if s.view == nil {
		return nil, ErrSnapshotNotOpened
	}

	return s.view.RawQuery(ctx, serializedQuery)
}

// Entity resolves id to the Document version visible at the Snapshot's coordinates.
// NotFound means the entity was never asserted, or was deleted, as of those coordinates.
func (s Snapshot) Entity(ctx context.Context, id Identifier) (Resolution[Document], error) {
	if s.view == nil {
		return NotFound[Document](), ErrSnapshotNotOpened
	}

	raw, ok, err := s.view.RawEntity(ctx, id.Canonical())
	if err != nil {
		return NotFound[Document](), err
	}

	if !ok {
		return NotFound[Document](), nil
	}

	return Found(DocumentFromRaw(raw)), nil
}

// EntityTx resolves the tx metadata of the version Entity resolves to. It can be called without calling Entity.
func (s Snapshot) EntityTx(ctx context.Context, id Identifier) (Resolution[EntityTx], error) {
	if s.view == nil {
		return NotFound[EntityTx](), ErrSnapshotNotOpened
	}

	raw, ok, err := s.view.RawEntityTx(ctx, id.Canonical())
	if err != nil {
		return NotFound[EntityTx](), err
	}

	if !ok {
		return NotFound[EntityTx](), nil
	}

	entityTx, err := EntityTxFromRaw(raw)
	if err != nil {
		return NotFound[EntityTx](), err
	}

	return Found(entityTx), nil
}
