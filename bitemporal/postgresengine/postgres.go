package postgresengine

import (
	"context"
	"database/sql"
	"errors"
	"time"

	_ "github.com/doug-martin/goqu/v9/dialect/postgres" // driver import
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jmoiron/sqlx"

	"github.com/AntonStoeckl/bitemporal-snapshots-go/bitemporal"
	"github.com/AntonStoeckl/bitemporal-snapshots-go/bitemporal/postgresengine/internal/adapters"
)

const (
	defaultTableName              = "entity_versions"
	logMsgBuildQueryFailed        = "failed to build sql query"
	logMsgParseQueryFailed        = "failed to parse serialized query"
	logMsgDBQueryFailed           = "database query execution failed"
	logMsgCloseRowsFailed         = "failed to close database rows"
	logMsgScanRowFailed           = "failed to scan database row"
	logMsgDecodeDocumentFailed    = "failed to decode jsonb from database row"
	logMsgMalformedIdentifier     = "malformed entity identifier"
	logMsgTransactionTimeInFuture = "requested transaction time is after the latest transaction"
	logMsgViewOpened              = "view opened"
	logMsgQueryCompleted          = "query completed"
	logMsgEntityResolved          = "entity resolved"
	logMsgSQLExecuted             = "executed sql for: "
	logMsgOperation               = "bitemporal operation: "
	logAttrError                  = "error"
	logAttrQuery                  = "query"
	logAttrEntityID               = "entity_id"
	logAttrRowCount               = "row_count"
	logAttrFound                  = "found"
	logAttrDurationMS             = "duration_ms"
	logAttrValidTime              = "valid_time"
	logAttrTxTime                 = "tx_time"
	logAttrLatestTxTime           = "latest_tx_time"
	colEntityID                   = "entity_id"
	colValidTime                  = "valid_time"
	colTxTime                     = "tx_time"
	colTxID                       = "tx_id"
	colContentHash                = "content_hash"
	colDocument                   = "document"
	cteVisible                    = "visible"
	aliasLatest                   = "latest"
	aliasClausePrefix             = "d"
	aliasColumnPrefix             = "c"
	aliasMaxTx                    = "max_tx"
	aliasResult                   = "r"
	dialectPostgres               = "postgres"
)

type (
	sqlQueryString = string
	queryDuration  = time.Duration
)

// Engine is a read-only bitemporal.Engine over a PostgreSQL table of entity versions.
//
// Every row of the table is one version of an entity: the JSONB document (NULL for a deletion),
// the valid time it applies from and the transaction that recorded it.
// Writing that table is not part of this package.
type Engine struct {
	db               adapters.DBAdapter
	tableName        string
	clock            func() time.Time
	logger           bitemporal.Logger
	contextualLogger bitemporal.ContextualLogger
	metricsCollector bitemporal.MetricsCollector
	tracingCollector bitemporal.TracingCollector
}

// NewEngineFromPGXPool creates a new Engine using a pgx Pool with optional configuration.
func NewEngineFromPGXPool(db *pgxpool.Pool, options ...Option) (Engine, error) {
	if db == nil {
		return Engine{}, bitemporal.ErrNilDatabaseConnection
	}

	return newEngine(adapters.NewPGXAdapter(db), options)
}

// NewEngineFromPGXPoolWithReplica creates a new Engine using a primary pgx Pool and a replica pool.
// Reads go to the replica when their context carries bitemporal.WithEventualConsistency.
func NewEngineFromPGXPoolWithReplica(db *pgxpool.Pool, replica *pgxpool.Pool, options ...Option) (Engine, error) {
	if db == nil || replica == nil {
		return Engine{}, bitemporal.ErrNilDatabaseConnection
	}

	return newEngine(adapters.NewPGXAdapterWithReplica(db, replica), options)
}

// NewEngineFromSQLDB creates a new Engine using a sql.DB with optional configuration.
func NewEngineFromSQLDB(db *sql.DB, options ...Option) (Engine, error) {
	if db == nil {
		return Engine{}, bitemporal.ErrNilDatabaseConnection
	}

	return newEngine(adapters.NewSQLAdapter(db), options)
}

// NewEngineFromSQLX creates a new Engine using a sqlx.DB with optional configuration.
func NewEngineFromSQLX(db *sqlx.DB, options ...Option) (Engine, error) {
	if db == nil {
		return Engine{}, bitemporal.ErrNilDatabaseConnection
	}

	return newEngine(adapters.NewSQLXAdapter(db), options)
}

func newEngine(db adapters.DBAdapter, options []Option) (Engine, error) {
	e := Engine{
		db:        db,
		tableName: defaultTableName,
		clock:     time.Now,
	}

	for _, option := range options {
		if err := option(&e); err != nil {
			return Engine{}, err
		}
	}

	return e, nil
}

// ViewAt opens a view at the current time of the engine's clock and the latest recorded transaction.
func (e Engine) ViewAt(ctx context.Context) (bitemporal.View, error) {
	return e.ViewAtValidTime(ctx, e.clock())
}

// ViewAtValidTime opens a view at validTime, pinned to the latest transaction recorded when it is opened.
func (e Engine) ViewAtValidTime(ctx context.Context, validTime time.Time) (bitemporal.View, error) {
	latest, err := e.latestTransactionTime(ctx, validTime)
	if err != nil {
		return nil, err
	}

	return e.newView(ctx, validTime, latest, latest), nil
}

// ViewAtValidAndTransactionTime opens a view at both coordinates.
// It fails with bitemporal.ErrTransactionTimeInFuture if transactionTime is after the latest recorded transaction.
func (e Engine) ViewAtValidAndTransactionTime(
	ctx context.Context,
	validTime time.Time,
	transactionTime time.Time,
) (bitemporal.View, error) {

	latest, err := e.latestTransactionTime(ctx, validTime)
	if err != nil {
		return nil, err
	}

	if transactionTime.After(latest) {
		e.logOperation(ctx, logMsgTransactionTimeInFuture, logAttrTxTime, transactionTime, logAttrLatestTxTime, latest)

		return nil, bitemporal.ErrTransactionTimeInFuture
	}

	return e.newView(ctx, validTime, transactionTime, latest), nil
}

func (e Engine) newView(ctx context.Context, validTime, transactionTime, latest time.Time) view {
	e.logOperation(
		ctx,
		logMsgViewOpened,
		logAttrValidTime, validTime,
		logAttrTxTime, transactionTime,
		logAttrLatestTxTime, latest,
	)

	return view{
		engine:      e,
		validTime:   validTime.Truncate(time.Microsecond),
		txTime:      transactionTime.Truncate(time.Microsecond),
		consistency: bitemporal.GetConsistencyLevel(ctx),
	}
}

// latestTransactionTime reads the time of the latest recorded transaction, zero for an empty table.
func (e Engine) latestTransactionTime(ctx context.Context, validTime time.Time) (time.Time, error) {
	metrics := e.startOperationMetrics(ctx, openViewOperation)
	tracing, ctx := e.startOperationTracing(ctx, openViewOperation, map[string]string{
		spanAttrValidTime: formatTime(validTime),
	})

	sqlQuery, buildErr := e.buildLatestTransactionQuery()
	if buildErr != nil {
		metrics.recordError(buildErr, errorTypeBuildQuery, 0)
		tracing.finishError(buildErr, errorTypeBuildQuery, 0)

		return time.Time{}, buildErr
	}

	rows, duration, queryErr := e.executeQuery(ctx, sqlQuery, openViewOperation)
	if queryErr != nil {
		metrics.recordError(queryErr, errorTypeDatabaseQuery, duration)
		tracing.finishError(queryErr, errorTypeDatabaseQuery, duration)

		return time.Time{}, queryErr
	}
	defer e.closeRows(ctx, rows)

	var latest sql.NullTime
	for rows.Next() {
		if scanErr := rows.Scan(&latest); scanErr != nil {
			e.logError(ctx, logMsgScanRowFailed, scanErr)
			metrics.recordError(scanErr, errorTypeRowScan, duration)
			tracing.finishError(scanErr, errorTypeRowScan, duration)

			return time.Time{}, errors.Join(bitemporal.ErrScanningDBRowFailed, scanErr)
		}
	}

	if rowsErr := rows.Err(); rowsErr != nil {
		e.logError(ctx, logMsgDBQueryFailed, rowsErr, logAttrQuery, sqlQuery)
		metrics.recordError(rowsErr, errorTypeDatabaseQuery, duration)
		tracing.finishError(rowsErr, errorTypeDatabaseQuery, duration)

		return time.Time{}, errors.Join(bitemporal.ErrQueryingFactsFailed, rowsErr)
	}

	var latestTxTime time.Time
	if latest.Valid {
		latestTxTime = latest.Time.UTC()
	}

	metrics.recordSuccess(0, duration)
	tracing.finishSuccess(map[string]string{spanAttrTxTime: formatTime(latestTxTime)}, duration)

	return latestTxTime, nil
}

// executeQuery executes the SQL query and returns rows with timing information.
func (e Engine) executeQuery(ctx context.Context, sqlQuery sqlQueryString, op operation) (
	adapters.DBRows,
	queryDuration,
	error,
) {

	start := time.Now()
	rows, queryErr := e.db.Query(ctx, sqlQuery)
	duration := time.Since(start)
	e.logQueryWithDuration(ctx, sqlQuery, op.name, duration)

	if queryErr != nil {
		e.logError(ctx, logMsgDBQueryFailed, queryErr, logAttrQuery, sqlQuery)

		return nil, duration, errors.Join(bitemporal.ErrQueryingFactsFailed, queryErr)
	}

	return rows, duration, nil
}

// closeRows safely closes database rows and logs any errors.
func (e Engine) closeRows(ctx context.Context, rows adapters.DBRows) {
	if closeErr := rows.Close(); closeErr != nil {
		e.logWarn(ctx, logMsgCloseRowsFailed, logAttrError, closeErr.Error())
	}
}

// Ensure Engine implements bitemporal.Engine.
var _ bitemporal.Engine = Engine{}
