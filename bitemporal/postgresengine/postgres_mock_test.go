package postgresengine_test

import (
	"database/sql"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/AntonStoeckl/bitemporal-snapshots-go/bitemporal"
	"github.com/AntonStoeckl/bitemporal-snapshots-go/bitemporal/postgresengine"
)

var (
	symE      = bitemporal.MustSymbol("?e")
	symName   = bitemporal.MustSymbol("?name")
	symAge    = bitemporal.MustSymbol("?age")
	symFriend = bitemporal.MustSymbol("?friend")
)

var versionColumns = []string{"entity_id", "valid_time", "tx_time", "tx_id", "content_hash", "document"}

func givenMockedDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err, "error creating the sql mock")
	t.Cleanup(func() { _ = db.Close() })

	return db, mock
}

func givenMockedEngine(t *testing.T, options ...postgresengine.Option) (postgresengine.Engine, sqlmock.Sqlmock) {
	t.Helper()

	db, mock := givenMockedDB(t)
	engine, err := postgresengine.NewEngineFromSQLDB(db, options...)
	require.NoError(t, err, "error creating the engine")

	return engine, mock
}

// givenMockedView opens a view at (validTime, latest) against a mocked table whose latest transaction is latest.
func givenMockedView(
	t *testing.T,
	validTime time.Time,
	latest time.Time,
	options ...postgresengine.Option,
) (bitemporal.Snapshot, sqlmock.Sqlmock) {

	t.Helper()

	engine, mock := givenMockedEngine(t, options...)
	expectLatestTransaction(mock, latest)

	snapshot, err := bitemporal.OpenSnapshotAtValidTime(t.Context(), engine, validTime)
	require.NoError(t, err, "error opening the snapshot")

	return snapshot, mock
}

func expectLatestTransaction(mock sqlmock.Sqlmock, latest any) {
	mock.ExpectQuery(sqlPattern(`MAX("tx_time") AS "max_tx"`, `FROM "entity_versions"`)).
		WillReturnRows(sqlmock.NewRows([]string{"max_tx"}).AddRow(latest))
}

// sqlPattern matches SQL containing all fragments, in order.
func sqlPattern(fragments ...string) string {
	quoted := make([]string, 0, len(fragments))
	for _, fragment := range fragments {
		quoted = append(quoted, regexp.QuoteMeta(fragment))
	}

	return strings.Join(quoted, ".*")
}

func fixtureTime(hours int) time.Time {
	return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).Add(time.Duration(hours) * time.Hour)
}

func givenQuery(t *testing.T, builder bitemporal.CompletedQueryBuilder) bitemporal.Query {
	t.Helper()

	query, err := builder.Finalize()
	require.NoError(t, err, "error building the query")

	return query
}

func versionRows() *sqlmock.Rows {
	return sqlmock.NewRows(versionColumns)
}
