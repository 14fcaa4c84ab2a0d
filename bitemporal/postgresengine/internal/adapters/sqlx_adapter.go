package adapters

import (
	"context"

	"github.com/jmoiron/sqlx"
)

// SQLXAdapter reads through an sqlx pool.
type SQLXAdapter struct {
	db *sqlx.DB
}

func NewSQLXAdapter(db *sqlx.DB) *SQLXAdapter {
	return &SQLXAdapter{db: db}
}

func (s *SQLXAdapter) Query(ctx context.Context, query string) (DBRows, error) {
	rows, err := s.db.QueryxContext(ctx, query)
	if err != nil {
		return nil, err
	}

	return sqlxRows{Rows: rows}, nil
}

type sqlxRows struct {
	*sqlx.Rows
}
