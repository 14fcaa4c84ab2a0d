package helper

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres" // dialect registration
	"github.com/stretchr/testify/require"

	"github.com/AntonStoeckl/bitemporal-snapshots-go/bitemporal"
	"github.com/AntonStoeckl/bitemporal-snapshots-go/testutil/postgresengine/helper/postgreswrapper"
)

const tombstoneContentHash = "0000000000000000000000000000000000000000"

// GivenUniqueID generates a unique UUID identifier for testing.
func GivenUniqueID(t testing.TB) bitemporal.Identifier {
	id, err := bitemporal.NewRandomID()
	require.NoError(t, err, "error in arranging test data")

	return id
}

// FixturePerson returns the attributes of a person document.
func FixturePerson(name string, age int64) map[string]any {
	return map[string]any{
		"name": name,
		"age":  age,
	}
}

// FixtureTime returns a point in time the given number of hours after a fixed base time.
func FixtureTime(hours int) time.Time {
	return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).Add(time.Duration(hours) * time.Hour)
}

// GivenVersionWasRecorded inserts one version of the entity, as the transaction (txID, txTime) would have recorded it.
func GivenVersionWasRecorded(
	t testing.TB,
	ctx context.Context, //nolint:revive
	wrapper postgreswrapper.Wrapper,
	id bitemporal.Identifier,
	attributes map[string]any,
	validTime time.Time,
	txTime time.Time,
	txID int64,
) bitemporal.Document {

	t.Helper()

	doc, err := bitemporal.BuildDocument(id, attributes)
	require.NoError(t, err, "error in arranging test data")

	encoded, err := bitemporal.EncodeValue(doc.ToMap())
	require.NoError(t, err, "error in arranging test data")

	contentHash, err := doc.ContentHash()
	require.NoError(t, err, "error in arranging test data")

	insertVersion(t, ctx, wrapper, goqu.Record{
		"entity_id":    id.Canonical(),
		"valid_time":   validTime,
		"tx_time":      txTime,
		"tx_id":        txID,
		"content_hash": contentHash,
		"document":     string(encoded),
	})

	return doc
}

// GivenEntityWasDeleted inserts a deletion of the entity, effective from validTime.
func GivenEntityWasDeleted(
	t testing.TB,
	ctx context.Context, //nolint:revive
	wrapper postgreswrapper.Wrapper,
	id bitemporal.Identifier,
	validTime time.Time,
	txTime time.Time,
	txID int64,
) {

	t.Helper()

	insertVersion(t, ctx, wrapper, goqu.Record{
		"entity_id":    id.Canonical(),
		"valid_time":   validTime,
		"tx_time":      txTime,
		"tx_id":        txID,
		"content_hash": tombstoneContentHash,
		"document":     nil,
	})
}

func insertVersion(t testing.TB, ctx context.Context, wrapper postgreswrapper.Wrapper, record goqu.Record) {
	t.Helper()

	insertStmt, _, err := goqu.Dialect("postgres").
		Insert(postgreswrapper.TestTableName).
		Rows(record).
		ToSQL()
	require.NoError(t, err, "error in arranging test data")

	err = wrapper.Exec(ctx, insertStmt)
	require.NoError(t, err, "error in arranging test data: "+strings.TrimSpace(insertStmt))
}
