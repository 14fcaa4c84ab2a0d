package postgresengine_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AntonStoeckl/bitemporal-snapshots-go/bitemporal"
	. "github.com/AntonStoeckl/bitemporal-snapshots-go/testutil/postgresengine/helper" //nolint:revive
	"github.com/AntonStoeckl/bitemporal-snapshots-go/testutil/postgresengine/helper/postgreswrapper"
)

func givenCleanDatabase(t *testing.T) (postgreswrapper.Wrapper, context.Context) {
	t.Helper()

	wrapper := postgreswrapper.CreateWrapperWithTestConfig(t)
	t.Cleanup(wrapper.Close)
	postgreswrapper.CleanUp(t, wrapper)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)

	return wrapper, ctx
}

func Test_Snapshot_Entity_When_NoVersionIsAssertedBeforeTheValidTime(t *testing.T) {
	// setup
	wrapper, ctx := givenCleanDatabase(t)
	engine := wrapper.GetEngine()

	// arrange
	id := GivenUniqueID(t)
	GivenVersionWasRecorded(t, ctx, wrapper, id, FixturePerson("alice", 30), FixtureTime(2), FixtureTime(3), 1)

	// act
	snapshot, err := bitemporal.OpenSnapshotAtValidTime(ctx, engine, FixtureTime(1))
	require.NoError(t, err)
	entity, entityErr := snapshot.Entity(ctx, id)
	entityTx, entityTxErr := snapshot.EntityTx(ctx, id)

	// assert
	assert.NoError(t, entityErr)
	assert.NoError(t, entityTxErr)
	assert.False(t, entity.IsFound())
	assert.False(t, entityTx.IsFound())
}

func Test_Snapshot_Entity_ReturnsTheVersionAssertedBeforeTheValidTime(t *testing.T) {
	// setup
	wrapper, ctx := givenCleanDatabase(t)
	engine := wrapper.GetEngine()

	// arrange
	id := GivenUniqueID(t)
	recorded := GivenVersionWasRecorded(t, ctx, wrapper, id, FixturePerson("alice", 30), FixtureTime(1), FixtureTime(1), 1)

	// act
	snapshot, err := bitemporal.OpenSnapshotAtValidTime(ctx, engine, FixtureTime(2))
	require.NoError(t, err)
	entity, entityErr := snapshot.Entity(ctx, id)
	entityTx, entityTxErr := snapshot.EntityTx(ctx, id)

	// assert
	require.NoError(t, entityErr)
	require.NoError(t, entityTxErr)

	doc, found := entity.Get()
	require.True(t, found)
	assert.Equal(t, recorded.ToMap(), doc.ToMap())

	tx, found := entityTx.Get()
	require.True(t, found)
	assert.True(t, FixtureTime(1).Equal(tx.ValidTime()))
	assert.True(t, FixtureTime(1).Equal(tx.TransactionTime()))
	assert.Equal(t, int64(1), tx.TransactionID())
	assert.Equal(t, id, tx.ID())

	expectedHash, err := recorded.ContentHash()
	require.NoError(t, err)
	assert.Equal(t, expectedHash, tx.ContentHash())
}

func Test_Snapshot_Entity_DiffersBetweenTransactionTimes(t *testing.T) {
	// setup
	wrapper, ctx := givenCleanDatabase(t)
	engine := wrapper.GetEngine()

	// arrange
	id := GivenUniqueID(t)
	GivenVersionWasRecorded(t, ctx, wrapper, id, FixturePerson("alice", 30), FixtureTime(1), FixtureTime(1), 1)
	GivenVersionWasRecorded(t, ctx, wrapper, id, FixturePerson("alice", 31), FixtureTime(1), FixtureTime(5), 2)

	// act
	before, err := bitemporal.OpenSnapshotAt(ctx, engine, FixtureTime(2), FixtureTime(3))
	require.NoError(t, err)
	after, err := bitemporal.OpenSnapshotAt(ctx, engine, FixtureTime(2), FixtureTime(5))
	require.NoError(t, err)

	docBefore, foundBefore := mustResolve(t, ctx, before, id)
	docAfter, foundAfter := mustResolve(t, ctx, after, id)

	// assert
	require.True(t, foundBefore)
	require.True(t, foundAfter)

	ageBefore, _ := docBefore.Get("age")
	ageAfter, _ := docAfter.Get("age")
	assert.Equal(t, int64(30), ageBefore)
	assert.Equal(t, int64(31), ageAfter)
}

func Test_Snapshot_Entity_PicksTheLatestValidTimeNotAfterTheView(t *testing.T) {
	// setup
	wrapper, ctx := givenCleanDatabase(t)
	engine := wrapper.GetEngine()

	// arrange
	id := GivenUniqueID(t)
	GivenVersionWasRecorded(t, ctx, wrapper, id, FixturePerson("alice", 30), FixtureTime(1), FixtureTime(1), 1)
	GivenVersionWasRecorded(t, ctx, wrapper, id, FixturePerson("alice", 40), FixtureTime(10), FixtureTime(2), 2)
	GivenVersionWasRecorded(t, ctx, wrapper, id, FixturePerson("alice", 35), FixtureTime(5), FixtureTime(3), 3)

	// act
	snapshot, err := bitemporal.OpenSnapshotAtValidTime(ctx, engine, FixtureTime(7))
	require.NoError(t, err)
	doc, found := mustResolve(t, ctx, snapshot, id)

	// assert
	require.True(t, found)
	age, _ := doc.Get("age")
	assert.Equal(t, int64(35), age, "the correction recorded last for valid time 5 applies at valid time 7")
}

func Test_Snapshot_Entity_When_EntityWasDeleted(t *testing.T) {
	// setup
	wrapper, ctx := givenCleanDatabase(t)
	engine := wrapper.GetEngine()

	// arrange
	id := GivenUniqueID(t)
	GivenVersionWasRecorded(t, ctx, wrapper, id, FixturePerson("alice", 30), FixtureTime(1), FixtureTime(1), 1)
	GivenEntityWasDeleted(t, ctx, wrapper, id, FixtureTime(3), FixtureTime(2), 2)

	// act
	beforeDeletion, err := bitemporal.OpenSnapshotAtValidTime(ctx, engine, FixtureTime(2))
	require.NoError(t, err)
	afterDeletion, err := bitemporal.OpenSnapshotAtValidTime(ctx, engine, FixtureTime(4))
	require.NoError(t, err)

	_, foundBefore := mustResolve(t, ctx, beforeDeletion, id)
	_, foundAfter := mustResolve(t, ctx, afterDeletion, id)
	entityTx, err := afterDeletion.EntityTx(ctx, id)
	require.NoError(t, err)

	// assert
	assert.True(t, foundBefore)
	assert.False(t, foundAfter)
	assert.False(t, entityTx.IsFound())
}

func Test_Snapshot_IgnoresTransactionsRecordedAfterItWasOpened(t *testing.T) {
	// setup
	wrapper, ctx := givenCleanDatabase(t)
	engine := wrapper.GetEngine()

	// arrange
	id := GivenUniqueID(t)
	GivenVersionWasRecorded(t, ctx, wrapper, id, FixturePerson("alice", 30), FixtureTime(1), FixtureTime(1), 1)

	snapshot, err := bitemporal.OpenSnapshotAtValidTime(ctx, engine, FixtureTime(2))
	require.NoError(t, err)

	// act
	GivenVersionWasRecorded(t, ctx, wrapper, id, FixturePerson("alice", 31), FixtureTime(1), FixtureTime(2), 2)
	doc, found := mustResolve(t, ctx, snapshot, id)

	// assert
	require.True(t, found)
	age, _ := doc.Get("age")
	assert.Equal(t, int64(30), age)
	assert.True(t, FixtureTime(1).Equal(snapshot.TransactionTime()))
}

func Test_OpenSnapshotAt_When_TransactionTimeIsAfterTheLatestTransaction(t *testing.T) {
	// setup
	wrapper, ctx := givenCleanDatabase(t)
	engine := wrapper.GetEngine()

	// arrange
	GivenVersionWasRecorded(t, ctx, wrapper, GivenUniqueID(t), FixturePerson("alice", 30), FixtureTime(1), FixtureTime(1), 1)

	// act
	_, err := bitemporal.OpenSnapshotAt(ctx, engine, FixtureTime(1), FixtureTime(2))

	// assert
	assert.ErrorIs(t, err, bitemporal.ErrTransactionTimeInFuture)
}

func Test_Snapshot_Query_JoinsEntitiesThroughReferences(t *testing.T) {
	// setup
	wrapper, ctx := givenCleanDatabase(t)
	engine := wrapper.GetEngine()

	// arrange
	alice := GivenUniqueID(t)
	bob := GivenUniqueID(t)
	carol := GivenUniqueID(t)
	GivenVersionWasRecorded(t, ctx, wrapper, bob, FixturePerson("bob", 41), FixtureTime(1), FixtureTime(1), 1)
	GivenVersionWasRecorded(t, ctx, wrapper, carol, FixturePerson("carol", 25), FixtureTime(1), FixtureTime(1), 1)
	GivenVersionWasRecorded(t, ctx, wrapper, alice, map[string]any{"name": "alice", "friend": bob}, FixtureTime(1), FixtureTime(1), 1)

	query := givenQuery(t, bitemporal.BuildQuery().
		Find(symE, symName).
		Where(
			bitemporal.Triple(bitemporal.Var(symE), "friend", bitemporal.Var(symFriend)),
			bitemporal.Triple(bitemporal.Var(symFriend), "name", bitemporal.Var(symName)),
		))

	// act
	snapshot, err := bitemporal.OpenSnapshotAtValidTime(ctx, engine, FixtureTime(2))
	require.NoError(t, err)
	tuples, err := snapshot.Query(ctx, query)

	// assert
	require.NoError(t, err)
	require.Len(t, tuples, 1)
	assert.Equal(t, []any{alice, "bob"}, tuples[0].Values())
}

func Test_Snapshot_Query_FiltersOrdersAndPaginates(t *testing.T) {
	// setup
	wrapper, ctx := givenCleanDatabase(t)
	engine := wrapper.GetEngine()

	// arrange
	for i, name := range []string{"alice", "bob", "carol", "dave"} {
		attrs := FixturePerson(name, int64(20+10*i))
		attrs["team"] = "blue"
		GivenVersionWasRecorded(t, ctx, wrapper, GivenUniqueID(t), attrs, FixtureTime(1), FixtureTime(1), 1)
	}
	GivenVersionWasRecorded(t, ctx, wrapper, GivenUniqueID(t), FixturePerson("eve", 99), FixtureTime(1), FixtureTime(1), 1)

	query := givenQuery(t, bitemporal.BuildQuery().
		Find(symName, symAge).
		Where(
			bitemporal.Triple(bitemporal.Var(symE), "team", bitemporal.Const("blue")),
			bitemporal.Triple(bitemporal.Var(symE), "name", bitemporal.Var(symName)),
			bitemporal.Triple(bitemporal.Var(symE), "age", bitemporal.Var(symAge)),
		).
		OrderBy(symAge, bitemporal.Descending).
		Limit(2).
		Offset(1))

	// act
	snapshot, err := bitemporal.OpenSnapshotAtValidTime(ctx, engine, FixtureTime(2))
	require.NoError(t, err)
	tuples, err := snapshot.Query(ctx, query)

	// assert
	require.NoError(t, err)
	require.Len(t, tuples, 2)
	assert.Equal(t, []any{"carol", int64(40)}, tuples[0].Values())
	assert.Equal(t, []any{"bob", int64(30)}, tuples[1].Values())
}

func Test_Snapshot_Query_OrdersStringsIndependentlyOfTheCollation(t *testing.T) {
	// setup
	wrapper, ctx := givenCleanDatabase(t)
	engine := wrapper.GetEngine()

	// arrange
	for _, name := range []string{"bob", "Zed", "alice"} {
		GivenVersionWasRecorded(t, ctx, wrapper, GivenUniqueID(t), FixturePerson(name, 30), FixtureTime(1), FixtureTime(1), 1)
	}

	byName := bitemporal.BuildQuery().
		Find(symName).
		Where(bitemporal.Triple(bitemporal.Var(symE), "name", bitemporal.Var(symName)))
	ordered := givenQuery(t, byName.OrderBy(symName, bitemporal.Ascending))
	limitedToZero := givenQuery(t, byName.Limit(0))

	// act
	snapshot, err := bitemporal.OpenSnapshotAtValidTime(ctx, engine, FixtureTime(2))
	require.NoError(t, err)
	orderedTuples, orderedErr := snapshot.Query(ctx, ordered)
	limitedTuples, limitedErr := snapshot.Query(ctx, limitedToZero)

	// assert
	require.NoError(t, orderedErr)
	require.NoError(t, limitedErr)
	require.Len(t, orderedTuples, 3)
	assert.Equal(t, []any{"Zed"}, orderedTuples[0].Values())
	assert.Equal(t, []any{"alice"}, orderedTuples[1].Values())
	assert.Equal(t, []any{"bob"}, orderedTuples[2].Values())
	assert.Empty(t, limitedTuples)
}

func Test_Snapshot_Query_SeesOnlyVisibleVersions(t *testing.T) {
	// setup
	wrapper, ctx := givenCleanDatabase(t)
	engine := wrapper.GetEngine()

	// arrange
	alice := GivenUniqueID(t)
	bob := GivenUniqueID(t)
	GivenVersionWasRecorded(t, ctx, wrapper, alice, FixturePerson("alice", 30), FixtureTime(1), FixtureTime(1), 1)
	GivenVersionWasRecorded(t, ctx, wrapper, alice, FixturePerson("alicia", 30), FixtureTime(3), FixtureTime(2), 2)
	GivenVersionWasRecorded(t, ctx, wrapper, bob, FixturePerson("bob", 41), FixtureTime(1), FixtureTime(1), 1)
	GivenEntityWasDeleted(t, ctx, wrapper, bob, FixtureTime(2), FixtureTime(2), 2)

	query := givenQuery(t, bitemporal.BuildQuery().
		Find(symName).
		Where(bitemporal.Triple(bitemporal.Var(symE), "name", bitemporal.Var(symName))).
		OrderBy(symName, bitemporal.Ascending))

	// act
	atOne, err := bitemporal.OpenSnapshotAtValidTime(ctx, engine, FixtureTime(1))
	require.NoError(t, err)
	atFour, err := bitemporal.OpenSnapshotAtValidTime(ctx, engine, FixtureTime(4))
	require.NoError(t, err)

	tuplesAtOne, err := atOne.Query(ctx, query)
	require.NoError(t, err)
	tuplesAtFour, err := atFour.Query(ctx, query)
	require.NoError(t, err)

	// assert
	require.Len(t, tuplesAtOne, 2)
	assert.Equal(t, []any{"alice"}, tuplesAtOne[0].Values())
	assert.Equal(t, []any{"bob"}, tuplesAtOne[1].Values())
	require.Len(t, tuplesAtFour, 1)
	assert.Equal(t, []any{"alicia"}, tuplesAtFour[0].Values())
}

func Test_Snapshot_IsSafeForConcurrentReads(t *testing.T) {
	// setup
	wrapper, ctx := givenCleanDatabase(t)
	engine := wrapper.GetEngine()

	// arrange
	id := GivenUniqueID(t)
	GivenVersionWasRecorded(t, ctx, wrapper, id, FixturePerson("alice", 30), FixtureTime(1), FixtureTime(1), 1)

	snapshot, err := bitemporal.OpenSnapshotAtValidTime(ctx, engine, FixtureTime(2))
	require.NoError(t, err)

	first, err := snapshot.EntityTx(ctx, id)
	require.NoError(t, err)

	// act
	const readers = 8
	results := make([]bitemporal.Resolution[bitemporal.EntityTx], readers)
	errs := make([]error, readers)

	var wg sync.WaitGroup
	for i := 0; i < readers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = snapshot.EntityTx(ctx, id)
		}(i)
	}
	wg.Wait()

	// assert
	for i := 0; i < readers; i++ {
		assert.NoError(t, errs[i])
		assert.Equal(t, first.IsFound(), results[i].IsFound())

		expected, _ := first.Get()
		actual, _ := results[i].Get()
		assert.Equal(t, expected.ToMap(), actual.ToMap())
	}
}

func mustResolve(
	t *testing.T,
	ctx context.Context, //nolint:revive
	snapshot bitemporal.Snapshot,
	id bitemporal.Identifier,
) (bitemporal.Document, bool) {

	t.Helper()

	resolution, err := snapshot.Entity(ctx, id)
	require.NoError(t, err)

	return resolution.Get()
}
