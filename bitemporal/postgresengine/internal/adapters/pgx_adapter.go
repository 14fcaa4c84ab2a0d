package adapters

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/AntonStoeckl/bitemporal-snapshots-go/bitemporal"
)

// PGXAdapter reads through a pgxpool.Pool, optionally routing eventually consistent reads to a replica.
// Routing is decided per statement from the context it runs with.
type PGXAdapter struct {
	primary *pgxpool.Pool
	replica *pgxpool.Pool
}

func NewPGXAdapter(pool *pgxpool.Pool) *PGXAdapter {
	return &PGXAdapter{primary: pool}
}

func NewPGXAdapterWithReplica(primary *pgxpool.Pool, replica *pgxpool.Pool) *PGXAdapter {
	return &PGXAdapter{primary: primary, replica: replica}
}

func (p *PGXAdapter) Query(ctx context.Context, query string) (DBRows, error) {
	rows, err := p.poolFor(ctx).Query(ctx, query)
	if err != nil {
		return nil, err
	}

	return pgxRows{rows: rows}, nil
}

func (p *PGXAdapter) poolFor(ctx context.Context) *pgxpool.Pool {
	if p.replica != nil && bitemporal.GetConsistencyLevel(ctx) == bitemporal.EventualConsistency {
		return p.replica
	}

	return p.primary
}

// pgxRows adapts pgx.Rows, whose Close cannot fail.
type pgxRows struct {
	rows pgx.Rows
}

func (r pgxRows) Next() bool {
	return r.rows.Next()
}

func (r pgxRows) Scan(dest ...any) error {
	return r.rows.Scan(dest...)
}

func (r pgxRows) Err() error {
	return r.rows.Err()
}

func (r pgxRows) Close() error {
	r.rows.Close()
	return nil
}
