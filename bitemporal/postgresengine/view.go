package postgresengine

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"time"

	"github.com/AntonStoeckl/bitemporal-snapshots-go/bitemporal"
)

// view answers queries and lookups at fixed coordinates. Every call runs its own statement,
// the coordinates in its WHERE clauses keep the answers consistent across calls.
// Coordinates are truncated to microseconds, the resolution of PostgreSQL timestamps.
//
// All statements of a view read from the database it was opened on: the consistency level
// of the context that opened it overrides the one of later calls.
type view struct {
	engine      Engine
	validTime   time.Time
	txTime      time.Time
	consistency bitemporal.ConsistencyLevel
}

// versionRow is one row of the entity versions table.
type versionRow struct {
	entityID    string
	validTime   time.Time
	txTime      time.Time
	txID        int64
	contentHash string
	document    []byte
}

func (v view) ValidTime() time.Time {
	return v.validTime
}

func (v view) TransactionTime() time.Time {
	return v.txTime
}

// RawQuery runs a serialized query against the versions visible at the view's coordinates.
// Each row holds the decoded values of the find symbols in order.
func (v view) RawQuery(ctx context.Context, serializedQuery string) ([][]any, error) {
	e := v.engine
	ctx = v.pinConsistency(ctx)
	metrics := e.startOperationMetrics(ctx, queryOperation)
	tracing, ctx := e.startOperationTracing(ctx, queryOperation, v.spanAttrs())

	query, parseErr := bitemporal.ParseSerializedQuery(serializedQuery)
	if parseErr != nil {
		e.logError(ctx, logMsgParseQueryFailed, parseErr)
		metrics.recordError(parseErr, errorTypeMalformedQuery, 0)
		tracing.finishError(parseErr, errorTypeMalformedQuery, 0)

		return nil, parseErr
	}

	sqlQuery, buildErr := e.buildSelectQuery(query, v.validTime, v.txTime)
	if buildErr != nil {
		e.logError(ctx, logMsgBuildQueryFailed, buildErr)
		metrics.recordError(buildErr, errorTypeBuildQuery, 0)
		tracing.finishError(buildErr, errorTypeBuildQuery, 0)

		return nil, buildErr
	}

	rows, duration, queryErr := e.executeQuery(ctx, sqlQuery, queryOperation)
	if queryErr != nil {
		metrics.recordError(queryErr, errorTypeDatabaseQuery, duration)
		tracing.finishError(queryErr, errorTypeDatabaseQuery, duration)

		return nil, queryErr
	}
	defer e.closeRows(ctx, rows)

	width := len(query.OutputSymbols())
	result := make([][]any, 0)

	for rows.Next() {
		raw := make([][]byte, width)
		dest := make([]any, width)
		for i := range raw {
			dest[i] = &raw[i]
		}

		if scanErr := rows.Scan(dest...); scanErr != nil {
			e.logError(ctx, logMsgScanRowFailed, scanErr)
			metrics.recordError(scanErr, errorTypeRowScan, duration)
			tracing.finishError(scanErr, errorTypeRowScan, duration)

			return nil, errors.Join(bitemporal.ErrScanningDBRowFailed, scanErr)
		}

		row, decodeErr := decodeRow(raw)
		if decodeErr != nil {
			e.logError(ctx, logMsgDecodeDocumentFailed, decodeErr)
			metrics.recordError(decodeErr, errorTypeDecode, duration)
			tracing.finishError(decodeErr, errorTypeDecode, duration)

			return nil, decodeErr
		}

		result = append(result, row)
	}

	if rowsErr := rows.Err(); rowsErr != nil {
		e.logError(ctx, logMsgDBQueryFailed, rowsErr, logAttrQuery, sqlQuery)
		metrics.recordError(rowsErr, errorTypeDatabaseQuery, duration)
		tracing.finishError(rowsErr, errorTypeDatabaseQuery, duration)

		return nil, errors.Join(bitemporal.ErrQueryingFactsFailed, rowsErr)
	}

	e.logOperation(ctx, logMsgQueryCompleted, logAttrRowCount, len(result), logAttrDurationMS, toMilliseconds(duration))
	metrics.recordSuccess(len(result), duration)
	tracing.finishSuccess(map[string]string{spanAttrRowCount: formatRowCount(len(result))}, duration)

	return result, nil
}

// RawEntity returns the document of the entity's version visible at the view's coordinates.
func (v view) RawEntity(ctx context.Context, serializedID string) (map[string]any, bool, error) {
	row, found, err := v.lookupVersion(ctx, serializedID, entityOperation)
	if err != nil || !found {
		return nil, false, err
	}

	attributes, decodeErr := bitemporal.DecodeAttributes(row.document)
	if decodeErr != nil {
		v.engine.logError(ctx, logMsgDecodeDocumentFailed, decodeErr, logAttrEntityID, row.entityID)

		return nil, false, decodeErr
	}

	if _, ok := attributes[bitemporal.DocumentIDAttribute]; !ok {
		id, idErr := bitemporal.ParseIdentifier(row.entityID)
		if idErr != nil {
			return nil, false, errors.Join(bitemporal.ErrDecodingDocumentFailed, idErr)
		}

		attributes[bitemporal.DocumentIDAttribute] = id
	}

	return attributes, true, nil
}

// RawEntityTx returns the transaction metadata of the entity's version visible at the view's coordinates.
func (v view) RawEntityTx(ctx context.Context, serializedID string) (map[string]any, bool, error) {
	row, found, err := v.lookupVersion(ctx, serializedID, entityTxOperation)
	if err != nil || !found {
		return nil, false, err
	}

	return map[string]any{
		bitemporal.EntityTxIDKey:          row.entityID,
		bitemporal.EntityTxContentHashKey: row.contentHash,
		bitemporal.EntityTxValidTimeKey:   row.validTime,
		bitemporal.EntityTxTxTimeKey:      row.txTime,
		bitemporal.EntityTxTxIDKey:        row.txID,
	}, true, nil
}

// lookupVersion reads the version of one entity current at the view's coordinates.
// A deletion is reported like an entity that never existed.
func (v view) lookupVersion(ctx context.Context, serializedID string, op operation) (versionRow, bool, error) {
	e := v.engine
	ctx = v.pinConsistency(ctx)
	metrics := e.startOperationMetrics(ctx, op)
	attrs := v.spanAttrs()
	attrs[spanAttrEntityID] = serializedID
	tracing, ctx := e.startOperationTracing(ctx, op, attrs)

	id, parseErr := bitemporal.ParseIdentifier(serializedID)
	if parseErr != nil {
		e.logError(ctx, logMsgMalformedIdentifier, parseErr, logAttrEntityID, serializedID)
		metrics.recordError(parseErr, errorTypeMalformedIdentifier, 0)
		tracing.finishError(parseErr, errorTypeMalformedIdentifier, 0)

		return versionRow{}, false, parseErr
	}

	sqlQuery, buildErr := e.buildEntityLookupQuery(id, v.validTime, v.txTime)
	if buildErr != nil {
		e.logError(ctx, logMsgBuildQueryFailed, buildErr)
		metrics.recordError(buildErr, errorTypeBuildQuery, 0)
		tracing.finishError(buildErr, errorTypeBuildQuery, 0)

		return versionRow{}, false, buildErr
	}

	rows, duration, queryErr := e.executeQuery(ctx, sqlQuery, op)
	if queryErr != nil {
		metrics.recordError(queryErr, errorTypeDatabaseQuery, duration)
		tracing.finishError(queryErr, errorTypeDatabaseQuery, duration)

		return versionRow{}, false, queryErr
	}
	defer e.closeRows(ctx, rows)

	var row versionRow
	var document []byte
	var contentHash sql.NullString
	found := false

	for rows.Next() {
		if scanErr := rows.Scan(
			&row.entityID,
			&row.validTime,
			&row.txTime,
			&row.txID,
			&contentHash,
			&document,
		); scanErr != nil {
			e.logError(ctx, logMsgScanRowFailed, scanErr)
			metrics.recordError(scanErr, errorTypeRowScan, duration)
			tracing.finishError(scanErr, errorTypeRowScan, duration)

			return versionRow{}, false, errors.Join(bitemporal.ErrScanningDBRowFailed, scanErr)
		}

		found = document != nil
	}

	if rowsErr := rows.Err(); rowsErr != nil {
		e.logError(ctx, logMsgDBQueryFailed, rowsErr, logAttrQuery, sqlQuery)
		metrics.recordError(rowsErr, errorTypeDatabaseQuery, duration)
		tracing.finishError(rowsErr, errorTypeDatabaseQuery, duration)

		return versionRow{}, false, errors.Join(bitemporal.ErrQueryingFactsFailed, rowsErr)
	}

	e.logOperation(ctx, logMsgEntityResolved, logAttrEntityID, serializedID, logAttrFound, found)

	foundCount := 0
	if found {
		foundCount = 1
	}

	metrics.recordSuccess(foundCount, duration)
	tracing.finishSuccess(map[string]string{spanAttrFound: strconv.FormatBool(found)}, duration)

	if !found {
		return versionRow{}, false, nil
	}

	row.validTime = row.validTime.UTC()
	row.txTime = row.txTime.UTC()
	row.contentHash = contentHash.String
	row.document = document

	return row, true, nil
}

func (v view) pinConsistency(ctx context.Context) context.Context {
	if bitemporal.GetConsistencyLevel(ctx) == v.consistency {
		return ctx
	}

	if v.consistency == bitemporal.EventualConsistency {
		return bitemporal.WithEventualConsistency(ctx)
	}

	return bitemporal.WithStrongConsistency(ctx)
}

func (v view) spanAttrs() map[string]string {
	return map[string]string{
		spanAttrValidTime: formatTime(v.validTime),
		spanAttrTxTime:    formatTime(v.txTime),
	}
}

// decodeRow decodes one result row of jsonb columns. SQL NULL becomes nil.
func decodeRow(raw [][]byte) ([]any, error) {
	row := make([]any, len(raw))
	for i, column := range raw {
		if column == nil {
			continue
		}

		value, err := bitemporal.DecodeValue(column)
		if err != nil {
			return nil, err
		}

		row[i] = value
	}

	return row, nil
}

// Ensure view implements bitemporal.View.
var _ bitemporal.View = view{}
