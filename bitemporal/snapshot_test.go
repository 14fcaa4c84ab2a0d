package bitemporal_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AntonStoeckl/bitemporal-snapshots-go/bitemporal"
)

// stubView answers every call with canned data and records the serialized query it received.
type stubView struct {
	validTime   time.Time
	txTime      time.Time
	rows        [][]any
	entities    map[string]map[string]any
	entityTxs   map[string]map[string]any
	err         error
	lastQuery   string
	entityCalls int
}

func (v *stubView) ValidTime() time.Time       { return v.validTime }
func (v *stubView) TransactionTime() time.Time { return v.txTime }

func (v *stubView) RawQuery(_ context.Context, serializedQuery string) ([][]any, error) {
	v.lastQuery = serializedQuery
	return v.rows, v.err
}

func (v *stubView) RawEntity(_ context.Context, serializedID string) (map[string]any, bool, error) {
	v.entityCalls++
	if v.err != nil {
		return nil, false, v.err
	}

	attrs, ok := v.entities[serializedID]

	return attrs, ok, nil
}

func (v *stubView) RawEntityTx(_ context.Context, serializedID string) (map[string]any, bool, error) {
	if v.err != nil {
		return nil, false, v.err
	}

	entityTx, ok := v.entityTxs[serializedID]

	return entityTx, ok, nil
}

type stubEngine struct {
	view    *stubView
	openErr error
	opened  []string
}

func (e *stubEngine) ViewAt(_ context.Context) (bitemporal.View, error) {
	e.opened = append(e.opened, "now")
	return e.result()
}

func (e *stubEngine) ViewAtValidTime(_ context.Context, _ time.Time) (bitemporal.View, error) {
	e.opened = append(e.opened, "vt")
	return e.result()
}

func (e *stubEngine) ViewAtValidAndTransactionTime(_ context.Context, _, _ time.Time) (bitemporal.View, error) {
	e.opened = append(e.opened, "vt+tt")
	return e.result()
}

func (e *stubEngine) result() (bitemporal.View, error) {
	if e.openErr != nil {
		return nil, e.openErr
	}

	return e.view, nil
}

func givenNameQuery(t *testing.T) bitemporal.Query {
	t.Helper()

	query, err := bitemporal.BuildQuery().
		Find(symE, symName).
		Where(bitemporal.Triple(bitemporal.Var(symE), "name", bitemporal.Var(symName))).
		Finalize()
	require.NoError(t, err)

	return query
}

func Test_OpenSnapshot_WithNilEngine(t *testing.T) {
	ctx := context.Background()

	_, err1 := bitemporal.OpenSnapshot(ctx, nil)
	_, err2 := bitemporal.OpenSnapshotAtValidTime(ctx, nil, time.Now())
	_, err3 := bitemporal.OpenSnapshotAt(ctx, nil, time.Now(), time.Now())

	assert.ErrorIs(t, err1, bitemporal.ErrNilEngine)
	assert.ErrorIs(t, err2, bitemporal.ErrNilEngine)
	assert.ErrorIs(t, err3, bitemporal.ErrNilEngine)
}

func Test_OpenSnapshot_UsesTheMatchingEngineCall(t *testing.T) {
	ctx := context.Background()
	engine := &stubEngine{view: &stubView{}}

	_, err := bitemporal.OpenSnapshot(ctx, engine)
	require.NoError(t, err)
	_, err = bitemporal.OpenSnapshotAtValidTime(ctx, engine, time.Now())
	require.NoError(t, err)
	_, err = bitemporal.OpenSnapshotAt(ctx, engine, time.Now(), time.Now())
	require.NoError(t, err)

	assert.Equal(t, []string{"now", "vt", "vt+tt"}, engine.opened)
}

func Test_OpenSnapshot_PropagatesEngineErrors(t *testing.T) {
	engineErr := errors.New("connection refused")
	engine := &stubEngine{openErr: engineErr}

	_, err := bitemporal.OpenSnapshotAt(context.Background(), engine, time.Now(), time.Now())

	assert.Same(t, engineErr, err)
}

func Test_Snapshot_ExposesPinnedCoordinates(t *testing.T) {
	vt := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	tt := time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC)
	engine := &stubEngine{view: &stubView{validTime: vt, txTime: tt}}

	snapshot, err := bitemporal.OpenSnapshotAt(context.Background(), engine, vt, tt)

	require.NoError(t, err)
	assert.Equal(t, vt, snapshot.ValidTime())
	assert.Equal(t, tt, snapshot.TransactionTime())
}

func Test_Snapshot_WhenNotOpened(t *testing.T) {
	// arrange
	var snapshot bitemporal.Snapshot
	ctx := context.Background()

	// act
	_, queryErr := snapshot.Query(ctx, givenNameQuery(t))
	_, rawErr := snapshot.QueryRaw(ctx, "{}")
	entity, entityErr := snapshot.Entity(ctx, bitemporal.IntID(1))
	entityTx, entityTxErr := snapshot.EntityTx(ctx, bitemporal.IntID(1))

	// assert
	assert.True(t, snapshot.ValidTime().IsZero())
	assert.True(t, snapshot.TransactionTime().IsZero())
	assert.ErrorIs(t, queryErr, bitemporal.ErrSnapshotNotOpened)
	assert.ErrorIs(t, rawErr, bitemporal.ErrSnapshotNotOpened)
	assert.ErrorIs(t, entityErr, bitemporal.ErrSnapshotNotOpened)
	assert.ErrorIs(t, entityTxErr, bitemporal.ErrSnapshotNotOpened)
	assert.False(t, entity.IsFound())
	assert.False(t, entityTx.IsFound())
}

func Test_Snapshot_Query_BindsRowsInFindOrder(t *testing.T) {
	// arrange
	ctx := context.Background()
	query := givenNameQuery(t)
	view := &stubView{rows: [][]any{{int64(42), "alice"}, {int64(43), "bob"}}}
	snapshot, err := bitemporal.OpenSnapshot(ctx, &stubEngine{view: view})
	require.NoError(t, err)

	// act
	tuples, err := snapshot.Query(ctx, query)

	// assert
	require.NoError(t, err)
	require.Len(t, tuples, 2)
	assert.Equal(t, query.ToSerializedForm(), view.lastQuery)

	e, _ := tuples[0].Get(symE)
	name, _ := tuples[0].Get(symName)
	assert.Equal(t, int64(42), e)
	assert.Equal(t, "alice", name)
	assert.Equal(t, []bitemporal.Symbol{symE, symName}, tuples[1].Symbols())
	assert.Equal(t, []any{int64(43), "bob"}, tuples[1].Values())
}

func Test_Snapshot_Query_WithNoRows_ReturnsEmptyResult(t *testing.T) {
	ctx := context.Background()
	snapshot, err := bitemporal.OpenSnapshot(ctx, &stubEngine{view: &stubView{}})
	require.NoError(t, err)

	tuples, err := snapshot.Query(ctx, givenNameQuery(t))

	assert.NoError(t, err)
	assert.NotNil(t, tuples)
	assert.Empty(t, tuples)
}

func Test_Snapshot_Query_ArityMismatch(t *testing.T) {
	ctx := context.Background()
	view := &stubView{rows: [][]any{{int64(42), "alice"}, {int64(43)}}}
	snapshot, err := bitemporal.OpenSnapshot(ctx, &stubEngine{view: view})
	require.NoError(t, err)

	tuples, err := snapshot.Query(ctx, givenNameQuery(t))

	assert.Nil(t, tuples)
	assert.ErrorIs(t, err, bitemporal.ErrTupleArityMismatch)
	assert.ErrorIs(t, err, bitemporal.ErrMalformedQuery)
}

func Test_Snapshot_PropagatesViewErrors(t *testing.T) {
	ctx := context.Background()
	viewErr := errors.New("query timeout")
	snapshot, err := bitemporal.OpenSnapshot(ctx, &stubEngine{view: &stubView{err: viewErr}})
	require.NoError(t, err)

	_, queryErr := snapshot.Query(ctx, givenNameQuery(t))
	_, rawErr := snapshot.QueryRaw(ctx, "{}")
	entity, entityErr := snapshot.Entity(ctx, bitemporal.IntID(1))
	entityTx, entityTxErr := snapshot.EntityTx(ctx, bitemporal.IntID(1))

	assert.Same(t, viewErr, queryErr)
	assert.Same(t, viewErr, rawErr)
	assert.Same(t, viewErr, entityErr)
	assert.Same(t, viewErr, entityTxErr)
	assert.False(t, entity.IsFound())
	assert.False(t, entityTx.IsFound())
}

func Test_Snapshot_QueryRaw_ReturnsRowsUnprocessed(t *testing.T) {
	ctx := context.Background()
	view := &stubView{rows: [][]any{{"only one"}}}
	snapshot, err := bitemporal.OpenSnapshot(ctx, &stubEngine{view: view})
	require.NoError(t, err)

	rows, err := snapshot.QueryRaw(ctx, "raw query")

	assert.NoError(t, err)
	assert.Equal(t, [][]any{{"only one"}}, rows)
	assert.Equal(t, "raw query", view.lastQuery)
}

func Test_Snapshot_Entity(t *testing.T) {
	// arrange
	ctx := context.Background()
	alice := bitemporal.IntID(1)
	view := &stubView{
		entities: map[string]map[string]any{
			alice.Canonical(): {"db/id": alice, "name": "alice"},
		},
	}
	snapshot, err := bitemporal.OpenSnapshot(ctx, &stubEngine{view: view})
	require.NoError(t, err)

	// act
	found, foundErr := snapshot.Entity(ctx, alice)
	missing, missingErr := snapshot.Entity(ctx, bitemporal.IntID(2))

	// assert
	assert.NoError(t, foundErr)
	doc, ok := found.Get()
	require.True(t, ok)
	name, _ := doc.Get("name")
	assert.Equal(t, "alice", name)

	assert.NoError(t, missingErr, "an unknown entity is not an error")
	assert.False(t, missing.IsFound())
}

func Test_Snapshot_EntityTx(t *testing.T) {
	// arrange
	ctx := context.Background()
	alice := bitemporal.IntID(1)
	vt := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	tt := vt.Add(time.Hour)
	view := &stubView{
		entityTxs: map[string]map[string]any{
			alice.Canonical(): {
				bitemporal.EntityTxIDKey:          alice,
				bitemporal.EntityTxContentHashKey: "hash",
				bitemporal.EntityTxValidTimeKey:   vt,
				bitemporal.EntityTxTxTimeKey:      tt,
				bitemporal.EntityTxTxIDKey:        int64(3),
			},
			"int:2": {bitemporal.EntityTxIDKey: "int:2"},
		},
	}
	snapshot, err := bitemporal.OpenSnapshot(ctx, &stubEngine{view: view})
	require.NoError(t, err)

	// act
	found, foundErr := snapshot.EntityTx(ctx, alice)
	_, malformedErr := snapshot.EntityTx(ctx, bitemporal.IntID(2))
	missing, missingErr := snapshot.EntityTx(ctx, bitemporal.IntID(3))

	// assert
	assert.NoError(t, foundErr)
	entityTx, ok := found.Get()
	require.True(t, ok)
	assert.Equal(t, alice, entityTx.ID())
	assert.Equal(t, vt, entityTx.ValidTime())
	assert.Equal(t, tt, entityTx.TransactionTime())
	assert.Equal(t, int64(3), entityTx.TransactionID())
	assert.Zero(t, view.entityCalls, "EntityTx does not need Entity to be called first")

	assert.ErrorIs(t, malformedErr, bitemporal.ErrMalformedEntityTx)
	assert.NoError(t, missingErr)
	assert.False(t, missing.IsFound())
}
