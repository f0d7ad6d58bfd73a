package sink

import (
	"context"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/moviedata/lakehouse/internal/bronze"
	"github.com/moviedata/lakehouse/internal/db"
)

// PostgresSink loads typed tables into per-dataset tables under a bronze
// schema using the COPY protocol.
type PostgresSink struct {
	pool   db.Pool
	schema string
}

// NewPostgres creates a PostgresSink writing into the given schema
// (default "bronze").
func NewPostgres(pool db.Pool, schema string) *PostgresSink {
	if schema == "" {
		schema = "bronze"
	}
	return &PostgresSink{pool: pool, schema: schema}
}

// EnsureTable creates the schema and table if missing and truncates previous
// contents so re-ingest is idempotent.
func (s *PostgresSink) EnsureTable(ctx context.Context, dataset string, columns []bronze.Column) error {
	if _, err := s.pool.Exec(ctx, fmt.Sprintf("CREATE SCHEMA IF NOT EXISTS %q", s.schema)); err != nil {
		return &SinkError{Dataset: dataset, Err: eris.Wrap(err, "create schema")}
	}

	defs := make([]string, len(columns))
	for i, c := range columns {
		defs[i] = fmt.Sprintf("%q %s", c.Name, columnType(c.Type))
	}
	ddl := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %q.%q (%s)", s.schema, dataset, strings.Join(defs, ", "))
	if _, err := s.pool.Exec(ctx, ddl); err != nil {
		return &SinkError{Dataset: dataset, Err: eris.Wrap(err, "create table")}
	}

	if _, err := s.pool.Exec(ctx, fmt.Sprintf("TRUNCATE %q.%q", s.schema, dataset)); err != nil {
		return &SinkError{Dataset: dataset, Err: eris.Wrap(err, "truncate table")}
	}
	return nil
}

// WriteRows bulk-loads one batch via COPY.
func (s *PostgresSink) WriteRows(ctx context.Context, dataset string, table *bronze.TypedTable) (int64, error) {
	columns := make([]string, len(table.Columns))
	for i, c := range table.Columns {
		columns[i] = c.Name
	}

	n, err := db.CopyFromSchema(ctx, s.pool, s.schema, dataset, columns, table.Rows)
	if err != nil {
		return 0, &SinkError{Dataset: dataset, Err: err}
	}
	return n, nil
}

// Count returns the number of stored rows for the dataset.
func (s *PostgresSink) Count(ctx context.Context, dataset string) (int64, error) {
	var n int64
	query := fmt.Sprintf("SELECT COUNT(*) FROM %q.%q", s.schema, dataset)
	if err := s.pool.QueryRow(ctx, query).Scan(&n); err != nil {
		return 0, &SinkError{Dataset: dataset, Err: eris.Wrap(err, "count")}
	}
	return n, nil
}

// Close is a no-op; the pool's lifecycle belongs to the caller.
func (s *PostgresSink) Close() error { return nil }
