package bitemporal

import "context"

// ConsistencyLevel tells an engine where it may read from.
type ConsistencyLevel int

const (
	// StrongConsistency reads from the primary database. A view opened this way sees every
	// transaction completed before it was opened. This is the default.
	StrongConsistency ConsistencyLevel = iota

	// EventualConsistency allows reads from a replica. The latest transaction a view pins may then lag
	// behind the primary. A view keeps reading from the database it was opened on, whatever the level
	// of the contexts it is later called with.
	EventualConsistency
)

// contextKey is a private type to prevent context key collisions.
type contextKey string

// ConsistencyLevelKey is the context key used to store consistency level preferences.
const ConsistencyLevelKey contextKey = "bitemporal.consistency_level"

// WithStrongConsistency returns a context that routes engine reads to the primary database.
//
//	ctx = bitemporal.WithStrongConsistency(ctx)
//	snapshot, err := bitemporal.OpenSnapshot(ctx, engine)
func WithStrongConsistency(ctx context.Context) context.Context {
	return context.WithValue(ctx, ConsistencyLevelKey, StrongConsistency)
}

// WithEventualConsistency returns a context that allows engine reads from a replica database.
//
//	ctx = bitemporal.WithEventualConsistency(ctx)
//	snapshot, err := bitemporal.OpenSnapshot(ctx, engine)
func WithEventualConsistency(ctx context.Context) context.Context {
	return context.WithValue(ctx, ConsistencyLevelKey, EventualConsistency)
}

// GetConsistencyLevel extracts the consistency level from the context, defaulting to StrongConsistency.
func GetConsistencyLevel(ctx context.Context) ConsistencyLevel {
	if level, ok := ctx.Value(ConsistencyLevelKey).(ConsistencyLevel); ok {
		return level
	}

	return StrongConsistency
}

// String provides a string representation of ConsistencyLevel for logging and debugging.
func (c ConsistencyLevel) String() string {
	switch c {
	case StrongConsistency:
		return "strong"
	case EventualConsistency:
		return "eventual"
	default:
		return "unknown"
	}
}
