package bitemporal

import (
	"errors"
	"fmt"
)

var ErrNilEngine = errors.New("nil engine supplied")

// ErrSnapshotNotOpened is returned by a zero Snapshot, one that was not obtained from an OpenSnapshot function.
var ErrSnapshotNotOpened = errors.New("snapshot was not opened")

var ErrNilDatabaseConnection = errors.New("nil database connection supplied")
var ErrEmptyTableName = errors.New("empty table name supplied")

// ErrMalformedQuery is returned when a query is rejected, either by the engine (syntax or type error)
// or because result rows do not match the declared find symbols.
var ErrMalformedQuery = errors.New("malformed query")

// ErrTupleArityMismatch is the ErrMalformedQuery case raised while binding a row to the find symbols.
var ErrTupleArityMismatch = fmt.Errorf("%w: result row arity does not match find symbols", ErrMalformedQuery)

var ErrMalformedSymbol = errors.New("malformed symbol")
var ErrUnboundSymbol = fmt.Errorf("%w: symbol is not bound by any where clause", ErrMalformedQuery)
var ErrMalformedIdentifier = errors.New("malformed identifier")
var ErrMalformedEntityTx = errors.New("malformed entity tx")
var ErrTransactionTimeInFuture = errors.New("transaction time is after the latest completed transaction")

var ErrQueryingFactsFailed = errors.New("querying facts failed")
var ErrScanningDBRowFailed = errors.New("scanning db row failed")
var ErrBuildingQueryFailed = errors.New("building query failed")
var ErrDecodingDocumentFailed = errors.New("decoding document failed")
