package bronze

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/rotisserie/eris"
)

// Provenance columns appended to every bronze table.
const (
	ProvDatasetCol    = "_dataset"
	ProvSourceFileCol = "_source_file"
	ProvIngestedAtCol = "_ingested_at"
)

// Provenance records where a batch of rows came from.
type Provenance struct {
	Dataset    string
	SourceFile string
	IngestedAt time.Time
}

// RowSource yields raw rows one at a time. Next returns io.EOF after the
// last row. The transform never buffers the whole input; restartability is
// the source's concern.
type RowSource interface {
	Next() ([]string, error)
}

// TypedTable is one batch of typed rows. Columns include the declared schema
// followed by the three provenance columns; Rows hold Go values (string,
// int64, float64, bool, nil for null) in column order.
type TypedTable struct {
	Columns []Column
	Rows    [][]any
}

// SchemaViolation reports a raw value that matched no null marker and failed
// coercion to its column's declared type. The transform never substitutes a
// guessed value for an unparsable field.
type SchemaViolation struct {
	Column   string
	RowIndex int
	RawValue string
}

func (e *SchemaViolation) Error() string {
	return fmt.Sprintf("bronze: column %q row %d: cannot coerce %q", e.Column, e.RowIndex, e.RawValue)
}

// Options tunes a transform run.
type Options struct {
	NullMarkers []string // defaults to DefaultNullMarkers
	BatchSize   int      // rows per emitted TypedTable, default 10000
}

const defaultBatchSize = 10000

// Transform reads raw rows from src, normalizes null markers, coerces each
// field to its declared type, stamps provenance, and emits typed batches in
// input order. Returns the total row count. A coercion failure stops the run
// with a SchemaViolation; emit errors propagate unchanged.
func Transform(ctx context.Context, src RowSource, schema Schema, prov Provenance, opts Options, emit func(*TypedTable) error) (int64, error) {
	markers := opts.NullMarkers
	if markers == nil {
		markers = DefaultNullMarkers()
	}
	batchSize := opts.BatchSize
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	if prov.IngestedAt.IsZero() {
		prov.IngestedAt = time.Now().UTC()
	}

	outCols := OutputColumns(schema)
	ingestedAt := prov.IngestedAt.Format(time.RFC3339)

	batch := make([][]any, 0, batchSize)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		table := &TypedTable{Columns: outCols, Rows: batch}
		if err := emit(table); err != nil {
			return err
		}
		batch = make([][]any, 0, batchSize)
		return nil
	}

	var total int64
	for rowIdx := 0; ; rowIdx++ {
		if err := ctx.Err(); err != nil {
			return total, eris.Wrap(err, "bronze: cancelled")
		}

		raw, err := src.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return total, eris.Wrapf(err, "bronze: read row %d", rowIdx)
		}

		if len(raw) != len(schema.Columns) {
			return total, eris.Errorf("bronze: row %d has %d fields, schema declares %d",
				rowIdx, len(raw), len(schema.Columns))
		}

		typed := make([]any, 0, len(outCols))
		for colIdx, col := range schema.Columns {
			value, err := coerce(raw[colIdx], col, markers, rowIdx)
			if err != nil {
				return total, err
			}
			typed = append(typed, value)
		}
		typed = append(typed, prov.Dataset, prov.SourceFile, ingestedAt)

		batch = append(batch, typed)
		total++

		if len(batch) >= batchSize {
			if err := flush(); err != nil {
				return total, err
			}
		}
	}

	if err := flush(); err != nil {
		return total, err
	}
	return total, nil
}

// TransformAll runs Transform and collects everything into a single table.
// Intended for small inputs and tests; production paths stream batches into
// a sink.
func TransformAll(ctx context.Context, src RowSource, schema Schema, prov Provenance, opts Options) (*TypedTable, error) {
	out := &TypedTable{Columns: OutputColumns(schema)}
	_, err := Transform(ctx, src, schema, prov, opts, func(t *TypedTable) error {
		out.Rows = append(out.Rows, t.Rows...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// OutputColumns returns the schema columns followed by the provenance
// columns, in the order the transform emits them.
func OutputColumns(schema Schema) []Column {
	out := make([]Column, 0, len(schema.Columns)+3)
	out = append(out, schema.Columns...)
	out = append(out,
		Column{Name: ProvDatasetCol, Type: TypeString},
		Column{Name: ProvSourceFileCol, Type: TypeString},
		Column{Name: ProvIngestedAtCol, Type: TypeString},
	)
	return out
}

// coerce rewrites null markers to nil and parses everything else into the
// column's declared type. Marker comparison is a whole-field equality check
// and runs before any parse, so a field that happens to look numeric but is
// declared a marker still becomes null.
func coerce(raw string, col Column, markers []string, rowIdx int) (any, error) {
	for _, m := range markers {
		if raw == m {
			return nil, nil
		}
	}

	switch col.Type {
	case TypeString:
		return raw, nil
	case TypeInt64:
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, &SchemaViolation{Column: col.Name, RowIndex: rowIdx, RawValue: raw}
		}
		return v, nil
	case TypeFloat64:
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, &SchemaViolation{Column: col.Name, RowIndex: rowIdx, RawValue: raw}
		}
		return v, nil
	case TypeBool:
		// IMDb encodes booleans as 0/1.
		switch raw {
		case "0", "false":
			return false, nil
		case "1", "true":
			return true, nil
		default:
			return nil, &SchemaViolation{Column: col.Name, RowIndex: rowIdx, RawValue: raw}
		}
	default:
		return nil, eris.Errorf("bronze: column %q has unknown type %v", col.Name, col.Type)
	}
}
