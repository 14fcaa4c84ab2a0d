package adapters

import "context"

// DBAdapter runs the read-only statements the bitemporal engine renders. Statements carry their
// literals inline, so no arguments are passed.
type DBAdapter interface {
	Query(ctx context.Context, query string) (DBRows, error)
}

// DBRows is a forward-only cursor over the rows of one statement.
// Err reports iteration failures Next hides; Close must be safe to call after Next returned false.
type DBRows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
	Close() error
}
