// Package layout derives the on-disk directory tree for every dataset and
// processing stage. Path derivation is pure; the only side effect anywhere in
// the package is directory creation.
package layout

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/hashicorp/go-multierror"
)

// Stage identifies one step of the refinement pipeline. Each stage owns a
// subdirectory of the home tree.
type Stage int

const (
	StageDownload Stage = iota
	StageExtract
	StageBronze
	StageSilver
)

// String returns the stage's directory name.
func (s Stage) String() string {
	switch s {
	case StageDownload:
		return "download"
	case StageExtract:
		return "extract"
	case StageBronze:
		return "bronze"
	case StageSilver:
		return "silver"
	default:
		return fmt.Sprintf("stage(%d)", int(s))
	}
}

// Stages lists all pipeline stages in order.
func Stages() []Stage {
	return []Stage{StageDownload, StageExtract, StageBronze, StageSilver}
}

// Home describes the root of the dataset tree: parent/base/category,
// e.g. /home/user/Downloads/data/imdb. Base and Category are optional so the
// whole tree can be relocated or flattened by changing one config value.
type Home struct {
	Parent   string
	Base     string
	Category string
}

// DefaultHome places the tree under the user's home directory.
func DefaultHome() Home {
	parent, err := os.UserHomeDir()
	if err != nil {
		parent = "."
	}
	return Home{
		Parent:   filepath.Join(parent, "Downloads"),
		Base:     "data",
		Category: "imdb",
	}
}

// Path joins the home components into a single root directory.
func (h Home) Path() string {
	path := h.Parent
	if h.Base != "" {
		path = filepath.Join(path, h.Base)
	}
	if h.Category != "" {
		path = filepath.Join(path, h.Category)
	}
	return path
}

// WithParent returns a copy of h rooted at a different parent directory.
func (h Home) WithParent(parent string) Home {
	h.Parent = parent
	return h
}

// Paths holds the per-stage directories derived from a Home.
type Paths struct {
	Home        string
	DownloadDir string
	ExtractDir  string
	BronzeDir   string
	SilverDir   string
}

// PathsFor derives all stage directories from a home root.
func PathsFor(h Home) Paths {
	root := h.Path()
	return Paths{
		Home:        root,
		DownloadDir: filepath.Join(root, StageDownload.String()),
		ExtractDir:  filepath.Join(root, StageExtract.String()),
		BronzeDir:   filepath.Join(root, StageBronze.String()),
		SilverDir:   filepath.Join(root, StageSilver.String()),
	}
}

// Dir returns the directory for one stage.
func (p Paths) Dir(s Stage) string {
	switch s {
	case StageDownload:
		return p.DownloadDir
	case StageExtract:
		return p.ExtractDir
	case StageBronze:
		return p.BronzeDir
	case StageSilver:
		return p.SilverDir
	default:
		return filepath.Join(p.Home, s.String())
	}
}

// Resolve returns the directory owned by one dataset at one stage. It is a
// pure function of (home, id, stage); distinct dataset ids always yield
// distinct paths because the id is the final path element.
func Resolve(h Home, datasetID string, s Stage) string {
	return filepath.Join(PathsFor(h).Dir(s), datasetID)
}

// PathCreationError reports a single directory that could not be created.
type PathCreationError struct {
	Path string
	Err  error
}

func (e *PathCreationError) Error() string {
	return fmt.Sprintf("layout: create %s: %v", e.Path, e.Err)
}

func (e *PathCreationError) Unwrap() error { return e.Err }

// CreateDirs creates every listed directory, continuing past failures so one
// unwritable path does not block its siblings. Creating an existing directory
// is not an error. The returned error aggregates one PathCreationError per
// failed path.
func CreateDirs(dirs ...string) error {
	var result *multierror.Error
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			result = multierror.Append(result, &PathCreationError{Path: dir, Err: err})
		}
	}
	return result.ErrorOrNil()
}

// CreateDatasetDirs creates the per-dataset stage directories for one dataset.
func CreateDatasetDirs(h Home, datasetID string) error {
	dirs := make([]string, 0, len(Stages()))
	for _, s := range Stages() {
		dirs = append(dirs, Resolve(h, datasetID, s))
	}
	return CreateDirs(dirs...)
}
