package sink

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/moviedata/lakehouse/internal/bronze"
)

// SQLiteSink writes typed tables into a single SQLite database file. The
// pipeline opens one sink per dataset (the bronze artifact file), which keeps
// dataset tasks free of cross-dataset locking.
type SQLiteSink struct {
	db      *sql.DB
	dataset string
}

// OpenSQLite opens (or creates) the SQLite database at path and configures
// WAL mode.
func OpenSQLite(path, dataset string) (*SQLiteSink, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteSink{db: db, dataset: dataset}, nil
}

func tableName(dataset string) string {
	// dataset ids are catalog-controlled identifiers, not user input
	return "bronze_" + strings.ReplaceAll(dataset, "-", "_")
}

// EnsureTable creates the bronze table and truncates any previous contents.
func (s *SQLiteSink) EnsureTable(ctx context.Context, dataset string, columns []bronze.Column) error {
	defs := make([]string, len(columns))
	for i, c := range columns {
		defs[i] = fmt.Sprintf("%q %s", c.Name, columnType(c.Type))
	}

	table := tableName(dataset)
	ddl := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %q (%s)", table, strings.Join(defs, ", "))
	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return &SinkError{Dataset: dataset, Err: eris.Wrap(err, "create table")}
	}
	if _, err := s.db.ExecContext(ctx, fmt.Sprintf("DELETE FROM %q", table)); err != nil {
		return &SinkError{Dataset: dataset, Err: eris.Wrap(err, "truncate table")}
	}
	return nil
}

// WriteRows inserts one batch inside a transaction.
func (s *SQLiteSink) WriteRows(ctx context.Context, dataset string, table *bronze.TypedTable) (int64, error) {
	if len(table.Rows) == 0 {
		return 0, nil
	}

	placeholders := make([]string, len(table.Columns))
	names := make([]string, len(table.Columns))
	for i, c := range table.Columns {
		placeholders[i] = "?"
		names[i] = fmt.Sprintf("%q", c.Name)
	}
	insert := fmt.Sprintf("INSERT INTO %q (%s) VALUES (%s)",
		tableName(dataset), strings.Join(names, ", "), strings.Join(placeholders, ", "))

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, &SinkError{Dataset: dataset, Err: eris.Wrap(err, "begin tx")}
	}

	stmt, err := tx.PrepareContext(ctx, insert)
	if err != nil {
		_ = tx.Rollback()
		return 0, &SinkError{Dataset: dataset, Err: eris.Wrap(err, "prepare insert")}
	}
	defer stmt.Close() //nolint:errcheck

	var n int64
	for _, row := range table.Rows {
		if _, err := stmt.ExecContext(ctx, row...); err != nil {
			_ = tx.Rollback()
			return 0, &SinkError{Dataset: dataset, Err: eris.Wrapf(err, "insert row %d", n)}
		}
		n++
	}

	if err := tx.Commit(); err != nil {
		return 0, &SinkError{Dataset: dataset, Err: eris.Wrap(err, "commit")}
	}
	return n, nil
}

// Count returns the number of stored rows for the dataset.
func (s *SQLiteSink) Count(ctx context.Context, dataset string) (int64, error) {
	var n int64
	query := fmt.Sprintf("SELECT COUNT(*) FROM %q", tableName(dataset))
	if err := s.db.QueryRowContext(ctx, query).Scan(&n); err != nil {
		return 0, &SinkError{Dataset: dataset, Err: eris.Wrap(err, "count")}
	}
	return n, nil
}

// Close closes the underlying database.
func (s *SQLiteSink) Close() error {
	return s.db.Close()
}
