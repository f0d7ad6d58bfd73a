package layout

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHomePath(t *testing.T) {
	h := Home{Parent: "/srv", Base: "data", Category: "imdb"}
	assert.Equal(t, filepath.Join("/srv", "data", "imdb"), h.Path())
}

func TestHomePath_OptionalComponents(t *testing.T) {
	assert.Equal(t, "/srv", Home{Parent: "/srv"}.Path())
	assert.Equal(t, filepath.Join("/srv", "imdb"), Home{Parent: "/srv", Category: "imdb"}.Path())
	assert.Equal(t, filepath.Join("/srv", "data"), Home{Parent: "/srv", Base: "data"}.Path())
}

func TestHomeWithParent(t *testing.T) {
	h := Home{Parent: "/a", Base: "data", Category: "imdb"}
	moved := h.WithParent("/b")
	assert.Equal(t, filepath.Join("/b", "data", "imdb"), moved.Path())
	// original unchanged
	assert.Equal(t, filepath.Join("/a", "data", "imdb"), h.Path())
}

func TestPathsFor(t *testing.T) {
	p := PathsFor(Home{Parent: "/srv", Base: "data", Category: "imdb"})
	root := filepath.Join("/srv", "data", "imdb")
	assert.Equal(t, root, p.Home)
	assert.Equal(t, filepath.Join(root, "download"), p.DownloadDir)
	assert.Equal(t, filepath.Join(root, "extract"), p.ExtractDir)
	assert.Equal(t, filepath.Join(root, "bronze"), p.BronzeDir)
	assert.Equal(t, filepath.Join(root, "silver"), p.SilverDir)
}

func TestResolve_NoCollisions(t *testing.T) {
	h := Home{Parent: "/srv", Base: "data", Category: "imdb"}
	ids := []string{"titles", "ratings", "credits", "profiles", "variants", "series", "crews"}

	seen := make(map[string]string)
	for _, s := range Stages() {
		for _, id := range ids {
			path := Resolve(h, id, s)
			if prev, ok := seen[path]; ok {
				t.Fatalf("path collision: %s reused by %s and %s", path, prev, id)
			}
			seen[path] = id
		}
	}
}

func TestResolve_Pure(t *testing.T) {
	h := Home{Parent: "/srv", Base: "data", Category: "imdb"}
	assert.Equal(t, Resolve(h, "titles", StageBronze), Resolve(h, "titles", StageBronze))
}

func TestCreateDirs_Idempotent(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "a", "b")
	require.NoError(t, CreateDirs(dir))
	require.NoError(t, CreateDirs(dir)) // already exists is fine

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestCreateDirs_ContinuesPastFailures(t *testing.T) {
	base := t.TempDir()

	blocked := filepath.Join(base, "blocked")
	// A regular file where a directory is wanted forces MkdirAll to fail.
	require.NoError(t, os.WriteFile(blocked, []byte("x"), 0o644))

	good := filepath.Join(base, "good")
	err := CreateDirs(filepath.Join(blocked, "child"), good)
	require.Error(t, err)

	var pce *PathCreationError
	require.True(t, errors.As(err, &pce))
	assert.Contains(t, pce.Path, "blocked")

	// Sibling was still created.
	info, statErr := os.Stat(good)
	require.NoError(t, statErr)
	assert.True(t, info.IsDir())
}

func TestCreateDatasetDirs(t *testing.T) {
	h := Home{Parent: t.TempDir(), Base: "data", Category: "imdb"}
	require.NoError(t, CreateDatasetDirs(h, "titles"))

	for _, s := range Stages() {
		info, err := os.Stat(Resolve(h, "titles", s))
		require.NoError(t, err, "stage %s", s)
		assert.True(t, info.IsDir())
	}
}
