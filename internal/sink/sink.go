// Package sink persists typed bronze tables. The SQLite sink writes one
// database file per dataset under the bronze stage directory; the Postgres
// sink loads the same batches into a bronze schema via COPY.
package sink

import (
	"context"
	"fmt"

	"github.com/moviedata/lakehouse/internal/bronze"
)

// Sink accepts typed tables for one dataset.
type Sink interface {
	// EnsureTable creates the dataset's table if it does not exist and
	// clears any rows from a previous ingest, so re-runs are idempotent.
	// Columns are the transform's output columns, provenance included.
	EnsureTable(ctx context.Context, dataset string, columns []bronze.Column) error

	// WriteRows appends one typed batch. Returns rows written.
	WriteRows(ctx context.Context, dataset string, table *bronze.TypedTable) (int64, error)

	// Count returns the number of rows currently stored for the dataset.
	Count(ctx context.Context, dataset string) (int64, error)

	Close() error
}

// SinkError wraps a storage failure for one dataset so the orchestrator can
// report it per-dataset without unwinding the run.
type SinkError struct {
	Dataset string
	Err     error
}

func (e *SinkError) Error() string {
	return fmt.Sprintf("sink: dataset %s: %v", e.Dataset, e.Err)
}

func (e *SinkError) Unwrap() error { return e.Err }

// columnType maps bronze column types to SQL column types shared by both
// backends (SQLite is loosely typed; the names below work for both).
func columnType(t bronze.ColumnType) string {
	switch t {
	case bronze.TypeInt64:
		return "BIGINT"
	case bronze.TypeFloat64:
		return "DOUBLE PRECISION"
	case bronze.TypeBool:
		return "BOOLEAN"
	default:
		return "TEXT"
	}
}
