package sink

import (
	"context"
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moviedata/lakehouse/internal/bronze"
)

func ratingsTable(t *testing.T) *bronze.TypedTable {
	t.Helper()
	src := [][]string{
		{"tt0000001", "5.7", "2178"},
		{"tt0000002", `\N`, "312"},
	}
	schema, ok := bronze.SchemaFor("ratings")
	require.True(t, ok)

	table, err := bronze.TransformAll(context.Background(),
		&stubSource{rows: src}, schema,
		bronze.Provenance{Dataset: "ratings", SourceFile: "title.ratings.tsv", IngestedAt: time.Now().UTC()},
		bronze.Options{})
	require.NoError(t, err)
	return table
}

type stubSource struct {
	rows [][]string
	pos  int
}

func (s *stubSource) Next() ([]string, error) {
	if s.pos >= len(s.rows) {
		return nil, io.EOF
	}
	row := s.rows[s.pos]
	s.pos++
	return row, nil
}

func TestSQLiteSink_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ratings.db")
	s, err := OpenSQLite(path, "ratings")
	require.NoError(t, err)
	defer s.Close()

	ctx := context.Background()
	table := ratingsTable(t)

	require.NoError(t, s.EnsureTable(ctx, "ratings", table.Columns))

	n, err := s.WriteRows(ctx, "ratings", table)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	count, err := s.Count(ctx, "ratings")
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
}

func TestSQLiteSink_EnsureTableTruncates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ratings.db")
	s, err := OpenSQLite(path, "ratings")
	require.NoError(t, err)
	defer s.Close()

	ctx := context.Background()
	table := ratingsTable(t)

	require.NoError(t, s.EnsureTable(ctx, "ratings", table.Columns))
	_, err = s.WriteRows(ctx, "ratings", table)
	require.NoError(t, err)

	// Re-ingest from scratch: rows must not accumulate.
	require.NoError(t, s.EnsureTable(ctx, "ratings", table.Columns))
	_, err = s.WriteRows(ctx, "ratings", table)
	require.NoError(t, err)

	count, err := s.Count(ctx, "ratings")
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
}

func TestSQLiteSink_EmptyBatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ratings.db")
	s, err := OpenSQLite(path, "ratings")
	require.NoError(t, err)
	defer s.Close()

	n, err := s.WriteRows(context.Background(), "ratings", &bronze.TypedTable{})
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)
}

func TestSQLiteSink_CountMissingTable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ratings.db")
	s, err := OpenSQLite(path, "ratings")
	require.NoError(t, err)
	defer s.Close()

	_, err = s.Count(context.Background(), "ratings")
	assert.Error(t, err)
}
