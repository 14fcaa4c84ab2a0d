package memengine

import (
	"context"
	"slices"
	"strings"
	"time"

	"github.com/AntonStoeckl/bitemporal-snapshots-go/bitemporal"
)

// view holds the versions current at its coordinates, resolved when it was opened. It is never mutated.
type view struct {
	validTime time.Time
	txTime    time.Time
	current   map[bitemporal.Identifier]version
	ordered   []version
}

func newView(validTime, txTime time.Time, current map[bitemporal.Identifier]version) *view {
	ordered := make([]version, 0, len(current))
	for _, v := range current {
		ordered = append(ordered, v)
	}

	slices.SortFunc(ordered, func(a, b version) int {
		return strings.Compare(a.id.Canonical(), b.id.Canonical())
	})

	return &view{validTime: validTime, txTime: txTime, current: current, ordered: ordered}
}

func (v *view) ValidTime() time.Time {
	return v.validTime
}

func (v *view) TransactionTime() time.Time {
	return v.txTime
}

func (v *view) RawQuery(ctx context.Context, serializedQuery string) ([][]any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	query, err := bitemporal.ParseSerializedQuery(serializedQuery)
	if err != nil {
		return nil, err
	}

	return evaluate(ctx, v, query)
}

func (v *view) RawEntity(ctx context.Context, serializedID string) (map[string]any, bool, error) {
	found, ok, err := v.lookup(ctx, serializedID)
	if err != nil || !ok {
		return nil, false, err
	}

	return bitemporal.DocumentFromRaw(found.attributes).ToMap(), true, nil
}

func (v *view) RawEntityTx(ctx context.Context, serializedID string) (map[string]any, bool, error) {
	found, ok, err := v.lookup(ctx, serializedID)
	if err != nil || !ok {
		return nil, false, err
	}

	return map[string]any{
		bitemporal.EntityTxIDKey:          found.id,
		bitemporal.EntityTxContentHashKey: found.contentHash,
		bitemporal.EntityTxValidTimeKey:   found.validTime,
		bitemporal.EntityTxTxTimeKey:      found.txTime,
		bitemporal.EntityTxTxIDKey:        found.txID,
	}, true, nil
}

func (v *view) lookup(ctx context.Context, serializedID string) (version, bool, error) {
	if err := ctx.Err(); err != nil {
		return version{}, false, err
	}

	id, err := bitemporal.ParseIdentifier(serializedID)
	if err != nil {
		return version{}, false, err
	}

	found, ok := v.current[id]

	return found, ok, nil
}

// Ensure view implements bitemporal.View.
var _ bitemporal.View = (*view)(nil)
