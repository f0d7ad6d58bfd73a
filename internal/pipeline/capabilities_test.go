package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moviedata/lakehouse/internal/bronze"
	"github.com/moviedata/lakehouse/internal/catalog"
	"github.com/moviedata/lakehouse/internal/layout"
	"github.com/moviedata/lakehouse/internal/state"
)

// ratingsFixture lays out a home with an extracted ratings file and returns
// the descriptor and artifact paths.
func ratingsFixture(t *testing.T, rawContent string) (catalog.Descriptor, state.Files) {
	t.Helper()
	home := layout.Home{Parent: t.TempDir(), Base: "data", Category: "imdb"}
	d, err := catalog.New().Lookup("ratings")
	require.NoError(t, err)
	require.NoError(t, layout.CreateDatasetDirs(home, d.ID))

	f := state.FilesFor(home, d)
	require.NoError(t, os.WriteFile(f.Raw, []byte(rawContent), 0o644))
	return d, f
}

func TestTransformCapability_WritesBronzeDatabase(t *testing.T) {
	d, f := ratingsFixture(t, "tconst\taverageRating\tnumVotes\n"+
		"tt0000001\t5.7\t2178\n"+
		"tt0000002\t\\N\t312\n")

	transform := transformCapability(CapabilityConfig{BatchSize: 1})
	rows, err := transform(context.Background(), d, f)
	require.NoError(t, err)
	assert.Equal(t, int64(2), rows)
	assert.FileExists(t, f.Bronze)

	// Only the finished database remains in the bronze dir.
	entries, err := os.ReadDir(filepath.Dir(f.Bronze))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, filepath.Base(f.Bronze), entries[0].Name())
}

func TestTransformCapability_FailureLeavesNoBronzeArtifact(t *testing.T) {
	// The second row fails Int64 coercion, after the first batch has
	// already been flushed to the sink.
	d, f := ratingsFixture(t, "tconst\taverageRating\tnumVotes\n"+
		"tt0000001\t5.7\t2178\n"+
		"tt0000002\t5.1\tnot-a-number\n")

	transform := transformCapability(CapabilityConfig{BatchSize: 1})
	_, err := transform(context.Background(), d, f)

	var violation *bronze.SchemaViolation
	require.ErrorAs(t, err, &violation)
	assert.Equal(t, "numVotes", violation.Column)

	// Neither the final artifact nor the in-flight temp file survives.
	assert.NoFileExists(t, f.Bronze)
	assert.NoFileExists(t, bronzePartialPath(f.Bronze))

	// The dataset must not probe as ingested after a failed transform.
	st := state.Probe(d, f)
	assert.NotEqual(t, state.Ingested, st.Stage)
	assert.NotEqual(t, state.Skip, state.NextAction(st, false))
}

func TestTransformCapability_FailureKeepsPriorBronze(t *testing.T) {
	d, f := ratingsFixture(t, "tconst\taverageRating\tnumVotes\n"+
		"tt0000001\t5.7\t2178\n")

	transform := transformCapability(CapabilityConfig{})
	_, err := transform(context.Background(), d, f)
	require.NoError(t, err)
	good, err := os.ReadFile(f.Bronze)
	require.NoError(t, err)

	// A refreshed raw file with a bad row fails the re-ingest; the last
	// good database stays untouched at the final path.
	require.NoError(t, os.WriteFile(f.Raw, []byte("tconst\taverageRating\tnumVotes\n"+
		"tt0000001\tbad\t2178\n"), 0o644))
	_, err = transform(context.Background(), d, f)
	require.Error(t, err)

	after, err := os.ReadFile(f.Bronze)
	require.NoError(t, err)
	assert.Equal(t, good, after)
}
