package adapters

import (
	"context"
	"database/sql"
)

// SQLAdapter reads through a database/sql pool, e.g. one opened with the lib/pq driver.
type SQLAdapter struct {
	db *sql.DB
}

func NewSQLAdapter(db *sql.DB) *SQLAdapter {
	return &SQLAdapter{db: db}
}

func (s *SQLAdapter) Query(ctx context.Context, query string) (DBRows, error) {
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}

	return sqlRows{Rows: rows}, nil
}

// sqlRows exposes *sql.Rows as DBRows.
type sqlRows struct {
	*sql.Rows
}
