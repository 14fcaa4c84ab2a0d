package memengine

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/AntonStoeckl/bitemporal-snapshots-go/bitemporal"
)

const (
	logMsgFactAsserted  = "fact asserted"
	logMsgFactRetracted = "fact retracted"
	logMsgViewOpened    = "view opened"
	logAttrEntityID     = "entity_id"
	logAttrTxID         = "tx_id"
	logAttrValidTime    = "valid_time"
	logAttrTxTime       = "tx_time"
)

// version is one entry of the log. A nil attributes map is a tombstone.
type version struct {
	id          bitemporal.Identifier
	validTime   time.Time
	txTime      time.Time
	txID        int64
	attributes  map[string]any
	contentHash string
}

// supersedes tells whether v wins over other when both are visible in a view.
func (v version) supersedes(other version) bool {
	if !v.validTime.Equal(other.validTime) {
		return v.validTime.After(other.validTime)
	}

	if !v.txTime.Equal(other.txTime) {
		return v.txTime.After(other.txTime)
	}

	return v.txID > other.txID
}

// TxReceipt reports the transaction a Put or Delete was recorded in.
type TxReceipt struct {
	TxID   int64
	TxTime time.Time
}

// Engine is an in-memory bitemporal.Engine. It is safe for concurrent use.
type Engine struct {
	mu         sync.RWMutex
	versions   []version
	lastTxID   int64
	lastTxTime time.Time
	clock      func() time.Time
	logger     bitemporal.Logger
}

// Option defines a functional option for configuring Engine.
type Option func(*Engine) error

// WithClock sets the clock used for transaction times and for the default valid time of views.
func WithClock(clock func() time.Time) Option {
	return func(e *Engine) error {
		if clock == nil {
			return errors.New("nil clock supplied")
		}

		e.clock = clock

		return nil
	}
}

// WithLogger sets a logger receiving a debug record per write and per opened view.
func WithLogger(logger bitemporal.Logger) Option {
	return func(e *Engine) error {
		e.logger = logger
		return nil
	}
}

func NewEngine(options ...Option) (*Engine, error) {
	e := &Engine{clock: time.Now}

	for _, option := range options {
		if err := option(e); err != nil {
			return nil, err
		}
	}

	return e, nil
}

// Put records doc as the version of its entity valid from validTime, in a new transaction.
// A zero validTime means "valid from the transaction time".
func (e *Engine) Put(ctx context.Context, doc bitemporal.Document, validTime time.Time) (TxReceipt, error) {
	if err := ctx.Err(); err != nil {
		return TxReceipt{}, err
	}

	id, err := doc.ID()
	if err != nil {
		return TxReceipt{}, err
	}

	// Round-trip through JSON so stored values look exactly like values decoded from postgres.
	encoded, err := bitemporal.EncodeValue(doc.ToMap())
	if err != nil {
		return TxReceipt{}, errors.Join(bitemporal.ErrDecodingDocumentFailed, err)
	}

	attributes, err := bitemporal.DecodeAttributes(encoded)
	if err != nil {
		return TxReceipt{}, err
	}

	contentHash, err := bitemporal.DocumentFromRaw(attributes).ContentHash()
	if err != nil {
		return TxReceipt{}, err
	}

	receipt := e.record(version{id: id, validTime: validTime, attributes: attributes, contentHash: contentHash})
	e.logDebug(logMsgFactAsserted, id, receipt)

	return receipt, nil
}

// Delete records a tombstone for id valid from validTime. A zero validTime means "from the transaction time".
func (e *Engine) Delete(ctx context.Context, id bitemporal.Identifier, validTime time.Time) (TxReceipt, error) {
	if err := ctx.Err(); err != nil {
		return TxReceipt{}, err
	}

	if id.IsZero() {
		return TxReceipt{}, bitemporal.ErrMalformedIdentifier
	}

	receipt := e.record(version{id: id, validTime: validTime, contentHash: tombstoneContentHash})
	e.logDebug(logMsgFactRetracted, id, receipt)

	return receipt, nil
}

// tombstoneContentHash is the fingerprint of the absent document.
const tombstoneContentHash = "0000000000000000000000000000000000000000"

func (e *Engine) record(v version) TxReceipt {
	e.mu.Lock()
	defer e.mu.Unlock()

	txTime := e.clock()
	if !txTime.After(e.lastTxTime) {
		txTime = e.lastTxTime.Add(time.Microsecond)
	}

	e.lastTxID++
	e.lastTxTime = txTime

	v.txID = e.lastTxID
	v.txTime = txTime
	if v.validTime.IsZero() {
		v.validTime = txTime
	}

	e.versions = append(e.versions, v)

	return TxReceipt{TxID: v.txID, TxTime: v.txTime}
}

// LatestTransactionTime returns the time of the latest completed transaction, zero if there is none.
func (e *Engine) LatestTransactionTime() time.Time {
	e.mu.RLock()
	defer e.mu.RUnlock()

	return e.lastTxTime
}

func (e *Engine) ViewAt(ctx context.Context) (bitemporal.View, error) {
	return e.ViewAtValidTime(ctx, e.clock())
}

func (e *Engine) ViewAtValidTime(ctx context.Context, validTime time.Time) (bitemporal.View, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	return e.openView(validTime, e.lastTxTime), nil
}

func (e *Engine) ViewAtValidAndTransactionTime(
	ctx context.Context,
	validTime time.Time,
	transactionTime time.Time,
) (bitemporal.View, error) {

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	if transactionTime.After(e.lastTxTime) {
		return nil, bitemporal.ErrTransactionTimeInFuture
	}

	return e.openView(validTime, transactionTime), nil
}

// openView resolves the current version of every entity once, the view never looks at the log again.
// Callers must hold the read lock.
func (e *Engine) openView(validTime, transactionTime time.Time) *view {
	current := make(map[bitemporal.Identifier]version)

	for _, v := range e.versions {
		if v.txTime.After(transactionTime) {
			break // the log is ordered by tx time
		}

		if v.validTime.After(validTime) {
			continue
		}

		if existing, ok := current[v.id]; !ok || v.supersedes(existing) {
			current[v.id] = v
		}
	}

	for id, v := range current {
		if v.attributes == nil {
			delete(current, id)
		}
	}

	if e.logger != nil {
		e.logger.Debug(logMsgViewOpened, logAttrValidTime, validTime, logAttrTxTime, transactionTime)
	}

	return newView(validTime, transactionTime, current)
}

func (e *Engine) logDebug(msg string, id bitemporal.Identifier, receipt TxReceipt) {
	if e.logger != nil {
		e.logger.Debug(msg, logAttrEntityID, id.Canonical(), logAttrTxID, receipt.TxID, logAttrTxTime, receipt.TxTime)
	}
}

// Ensure Engine implements bitemporal.Engine.
var _ bitemporal.Engine = (*Engine)(nil)
