package bitemporal

import (
	"errors"
	"time"
)

// Raw keys of an entity tx map, as produced by the engines.
const (
	EntityTxIDKey          = "db/id"
	EntityTxContentHashKey = "db/content-hash"
	EntityTxValidTimeKey   = "db/valid-time"
	EntityTxTxTimeKey      = "tx/tx-time"
	EntityTxTxIDKey        = "tx/tx-id"
)

// EntityTx describes when and how the entity version a Snapshot resolves to was asserted.
type EntityTx struct {
	id              Identifier
	contentHash     string
	validTime       time.Time
	transactionTime time.Time
	transactionID   int64
}

// BuildEntityTx is a factory method for EntityTx.
func BuildEntityTx(
	id Identifier,
	contentHash string,
	validTime time.Time,
	transactionTime time.Time,
	transactionID int64,
) (EntityTx, error) {
	if id.IsZero() {
		return EntityTx{}, errors.Join(ErrMalformedEntityTx, errors.New("missing identifier"))
	}

	if contentHash == "" {
		return EntityTx{}, errors.Join(ErrMalformedEntityTx, errors.New("missing content hash"))
	}

	return EntityTx{
		id:              id,
		contentHash:     contentHash,
		validTime:       validTime,
		transactionTime: transactionTime,
		transactionID:   transactionID,
	}, nil
}

// EntityTxFromRaw reads an engine's raw tx map. Keys are used verbatim, missing or mistyped ones fail with ErrMalformedEntityTx.
func EntityTxFromRaw(raw map[string]any) (EntityTx, error) {
	var id Identifier
	switch v := raw[EntityTxIDKey].(type) {
	case Identifier:
		id = v
	case string:
		parsed, err := ParseIdentifier(v)
		if err != nil {
			return EntityTx{}, errors.Join(ErrMalformedEntityTx, err)
		}
		id = parsed
	default:
		return EntityTx{}, errors.Join(ErrMalformedEntityTx, errors.New("missing "+EntityTxIDKey))
	}

	contentHash, ok := raw[EntityTxContentHashKey].(string)
	if !ok {
		return EntityTx{}, errors.Join(ErrMalformedEntityTx, errors.New("missing "+EntityTxContentHashKey))
	}

	validTime, ok := raw[EntityTxValidTimeKey].(time.Time)
	if !ok {
		return EntityTx{}, errors.Join(ErrMalformedEntityTx, errors.New("missing "+EntityTxValidTimeKey))
	}

	txTime, ok := raw[EntityTxTxTimeKey].(time.Time)
	if !ok {
		return EntityTx{}, errors.Join(ErrMalformedEntityTx, errors.New("missing "+EntityTxTxTimeKey))
	}

	var txID int64
	switch v := raw[EntityTxTxIDKey].(type) {
	case int64:
		txID = v
	case int:
		txID = int64(v)
	default:
		return EntityTx{}, errors.Join(ErrMalformedEntityTx, errors.New("missing "+EntityTxTxIDKey))
	}

	return BuildEntityTx(id, contentHash, validTime, txTime, txID)
}

func (e EntityTx) ID() Identifier {
	return e.id
}

func (e EntityTx) ContentHash() string {
	return e.contentHash
}

func (e EntityTx) ValidTime() time.Time {
	return e.validTime
}

func (e EntityTx) TransactionTime() time.Time {
	return e.transactionTime
}

func (e EntityTx) TransactionID() int64 {
	return e.transactionID
}

// ToMap returns the raw form, the inverse of EntityTxFromRaw.
func (e EntityTx) ToMap() map[string]any {
	return map[string]any{
		EntityTxIDKey:          e.id,
		EntityTxContentHashKey: e.contentHash,
		EntityTxValidTimeKey:   e.validTime,
		EntityTxTxTimeKey:      e.transactionTime,
		EntityTxTxIDKey:        e.transactionID,
	}
}
