package state

import (
	"bytes"
	"compress/gzip"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moviedata/lakehouse/internal/catalog"
	"github.com/moviedata/lakehouse/internal/layout"
)

func testDescriptor() catalog.Descriptor {
	return catalog.Descriptor{
		ID:                "titles",
		SourceURL:         "https://datasets.imdbws.com/title.basics.tsv.gz",
		ArchiveFilename:   "title.basics.tsv.gz",
		ExtractedFilename: "title.basics.tsv",
		MinArchiveSize:    16,
		MinExtractedSize:  16,
		Format:            catalog.FormatTSVGzip,
	}
}

func testFiles(t *testing.T) Files {
	t.Helper()
	dir := t.TempDir()
	return Files{
		Archive: filepath.Join(dir, "title.basics.tsv.gz"),
		Raw:     filepath.Join(dir, "title.basics.tsv"),
		Bronze:  filepath.Join(dir, "titles.db"),
	}
}

func writeGzipFile(t *testing.T, path, content string) {
	t.Helper()
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	_, err := gz.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, gz.Close())
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
}

func TestProbe_Unfetched(t *testing.T) {
	s := Probe(testDescriptor(), testFiles(t))
	assert.Equal(t, State{Stage: Unfetched}, s)
	assert.False(t, s.Valid())
}

func TestProbe_DownloadedValid(t *testing.T) {
	f := testFiles(t)
	writeGzipFile(t, f.Archive, "tconst\ttitleType\ntt0000001\tshort\nmore rows to cross the threshold\n")

	s := Probe(testDescriptor(), f)
	assert.Equal(t, State{Stage: Downloaded}, s)
	assert.True(t, s.Valid())
}

func TestProbe_DownloadedStale_TooSmall(t *testing.T) {
	f := testFiles(t)
	require.NoError(t, os.WriteFile(f.Archive, []byte("tiny"), 0o644))

	s := Probe(testDescriptor(), f)
	assert.Equal(t, State{Stage: Downloaded, Stale: true}, s)
}

func TestProbe_DownloadedStale_CorruptArchive(t *testing.T) {
	f := testFiles(t)
	require.NoError(t, os.WriteFile(f.Archive, bytes.Repeat([]byte("x"), 64), 0o644))

	s := Probe(testDescriptor(), f)
	assert.Equal(t, State{Stage: Downloaded, Stale: true}, s)
}

func TestProbe_ExtractedValid(t *testing.T) {
	f := testFiles(t)
	require.NoError(t, os.WriteFile(f.Raw, bytes.Repeat([]byte("row\n"), 16), 0o644))

	s := Probe(testDescriptor(), f)
	assert.Equal(t, State{Stage: Extracted}, s)
}

func TestProbe_ExtractedStale_FallsBackToArchive(t *testing.T) {
	f := testFiles(t)
	writeGzipFile(t, f.Archive, "tconst\ttitleType\ntt0000001\tshort\nmore rows to cross the threshold\n")
	require.NoError(t, os.WriteFile(f.Raw, []byte("x"), 0o644)) // below threshold

	s := Probe(testDescriptor(), f)
	assert.Equal(t, State{Stage: Extracted, Stale: true}, s)
	assert.Equal(t, Extract, NextAction(s, false))
}

func TestProbe_InvalidRawWithoutArchive(t *testing.T) {
	f := testFiles(t)
	require.NoError(t, os.WriteFile(f.Raw, []byte("x"), 0o644))

	// No archive to re-extract from: the dataset must be re-fetched.
	s := Probe(testDescriptor(), f)
	assert.Equal(t, State{Stage: Unfetched}, s)
}

func TestProbe_IngestedValid(t *testing.T) {
	f := testFiles(t)
	require.NoError(t, os.WriteFile(f.Raw, bytes.Repeat([]byte("row\n"), 16), 0o644))
	require.NoError(t, os.WriteFile(f.Bronze, []byte("sqlite"), 0o644))

	// Bronze written after raw.
	later := time.Now().Add(time.Hour)
	require.NoError(t, os.Chtimes(f.Bronze, later, later))

	s := Probe(testDescriptor(), f)
	assert.Equal(t, State{Stage: Ingested}, s)
}

func TestProbe_IngestedValid_RawCleaned(t *testing.T) {
	f := testFiles(t)
	require.NoError(t, os.WriteFile(f.Bronze, []byte("sqlite"), 0o644))

	s := Probe(testDescriptor(), f)
	assert.Equal(t, State{Stage: Ingested}, s)
}

func TestProbe_IngestedStale_RawNewer(t *testing.T) {
	f := testFiles(t)
	require.NoError(t, os.WriteFile(f.Bronze, []byte("sqlite"), 0o644))
	require.NoError(t, os.WriteFile(f.Raw, bytes.Repeat([]byte("row\n"), 16), 0o644))

	earlier := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(f.Bronze, earlier, earlier))

	s := Probe(testDescriptor(), f)
	assert.Equal(t, State{Stage: Ingested, Stale: true}, s)
	assert.Equal(t, Transform, NextAction(s, false))
}

func TestProbe_EmptyBronze_FallsBack(t *testing.T) {
	f := testFiles(t)
	require.NoError(t, os.WriteFile(f.Bronze, nil, 0o644))
	require.NoError(t, os.WriteFile(f.Raw, bytes.Repeat([]byte("row\n"), 16), 0o644))

	s := Probe(testDescriptor(), f)
	assert.Equal(t, State{Stage: Ingested, Stale: true}, s)
}

func TestProbe_Idempotent(t *testing.T) {
	f := testFiles(t)
	writeGzipFile(t, f.Archive, "tconst\ttitleType\ntt0000001\tshort\nmore rows to cross the threshold\n")

	d := testDescriptor()
	first := Probe(d, f)
	second := Probe(d, f)
	assert.Equal(t, first, second)
}

func TestNextAction_Force(t *testing.T) {
	states := []State{
		{Stage: Unfetched},
		{Stage: Downloaded},
		{Stage: Downloaded, Stale: true},
		{Stage: Extracted},
		{Stage: Extracted, Stale: true},
		{Stage: Ingested},
		{Stage: Ingested, Stale: true},
	}
	for _, s := range states {
		assert.Equal(t, Fetch, NextAction(s, true), "state %s", s)
	}
}

func TestNextAction_NoForce(t *testing.T) {
	tests := []struct {
		state State
		want  Action
	}{
		{State{Stage: Unfetched}, Fetch},
		{State{Stage: Downloaded, Stale: true}, Fetch},
		{State{Stage: Downloaded}, Extract},
		{State{Stage: Extracted, Stale: true}, Extract},
		{State{Stage: Extracted}, Transform},
		{State{Stage: Ingested, Stale: true}, Transform},
		{State{Stage: Ingested}, Skip},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NextAction(tt.state, false), "state %s", tt.state)
	}
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "unfetched", State{Stage: Unfetched}.String())
	assert.Equal(t, "downloaded(valid)", State{Stage: Downloaded}.String())
	assert.Equal(t, "extracted(stale)", State{Stage: Extracted, Stale: true}.String())
	assert.Equal(t, "ingested(valid)", State{Stage: Ingested}.String())
}

func TestFilesFor_DisjointAcrossDatasets(t *testing.T) {
	h := layout.Home{Parent: "/srv", Base: "data", Category: "imdb"}
	a := FilesFor(h, catalog.Descriptor{ID: "titles", ArchiveFilename: "f.tsv.gz", ExtractedFilename: "f.tsv"})
	b := FilesFor(h, catalog.Descriptor{ID: "ratings", ArchiveFilename: "f.tsv.gz", ExtractedFilename: "f.tsv"})

	assert.NotEqual(t, a.Archive, b.Archive)
	assert.NotEqual(t, a.Raw, b.Raw)
	assert.NotEqual(t, a.Bronze, b.Bronze)
}
