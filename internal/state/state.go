// Package state tracks where a dataset sits in its lifecycle. State is never
// persisted; it is re-derived from the filesystem on every probe so manual
// deletion, partial downloads, and tampering are always detected before the
// next action is chosen.
package state

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/moviedata/lakehouse/internal/catalog"
	"github.com/moviedata/lakehouse/internal/extract"
	"github.com/moviedata/lakehouse/internal/layout"
)

// Stage is the lifecycle position of a dataset.
type Stage int

const (
	Unfetched Stage = iota
	Downloaded
	Extracted
	Ingested
)

func (s Stage) String() string {
	switch s {
	case Unfetched:
		return "unfetched"
	case Downloaded:
		return "downloaded"
	case Extracted:
		return "extracted"
	case Ingested:
		return "ingested"
	default:
		return fmt.Sprintf("stage(%d)", int(s))
	}
}

// State combines a stage with whether its artifact passed validity checks.
// A stale artifact is present on disk but failed a check; for every decision
// it counts the same as absent.
type State struct {
	Stage Stage
	Stale bool
}

func (s State) String() string {
	if s.Stage == Unfetched {
		return s.Stage.String()
	}
	if s.Stale {
		return s.Stage.String() + "(stale)"
	}
	return s.Stage.String() + "(valid)"
}

// Valid reports whether the state's artifact passed its checks.
// Unfetched has no artifact and is never valid.
func (s State) Valid() bool {
	return s.Stage != Unfetched && !s.Stale
}

// Action is what the orchestrator should do next for a dataset.
type Action int

const (
	Skip Action = iota
	Fetch
	Extract
	Transform
)

func (a Action) String() string {
	switch a {
	case Skip:
		return "skip"
	case Fetch:
		return "fetch"
	case Extract:
		return "extract"
	case Transform:
		return "transform"
	default:
		return fmt.Sprintf("action(%d)", int(a))
	}
}

// Files resolves the per-dataset artifact paths a probe inspects.
type Files struct {
	Archive string
	Raw     string
	Bronze  string
}

// FilesFor derives the artifact paths for one dataset from the home layout.
// The bronze artifact is the dataset's SQLite table file; a Postgres sink
// maintains its own marker file at the same path.
func FilesFor(h layout.Home, d catalog.Descriptor) Files {
	return Files{
		Archive: filepath.Join(layout.Resolve(h, d.ID, layout.StageDownload), d.ArchiveFilename),
		Raw:     filepath.Join(layout.Resolve(h, d.ID, layout.StageExtract), d.ExtractedFilename),
		Bronze:  filepath.Join(layout.Resolve(h, d.ID, layout.StageBronze), d.ID+".db"),
	}
}

// Probe re-derives a dataset's state from the filesystem. Per-artifact
// validity checks:
//
//   - bronze: non-empty and at least as new as the raw file (a raw file newer
//     than the bronze output means the download was refreshed and the table
//     is out of date); a missing raw file does not invalidate bronze, since
//     `clean` removes extracted files on purpose
//   - raw: non-empty and at least the descriptor's minimum extracted size
//   - archive: non-empty, at least the minimum archive size, and listing at
//     least one readable entry
//
// The returned state is the highest stage with a valid artifact, bumped one
// stage higher and marked stale when the artifact above it exists but failed
// its check. An invalid artifact never hides a valid one below it, so the
// chosen action always has its input available.
func Probe(d catalog.Descriptor, f Files) State {
	rawInfo, rawErr := os.Stat(f.Raw)
	rawExists := rawErr == nil
	rawValid := rawExists && rawInfo.Size() > 0 && rawInfo.Size() >= d.MinExtractedSize

	bronzeInfo, bronzeErr := os.Stat(f.Bronze)
	bronzeExists := bronzeErr == nil
	bronzeValid := bronzeExists && bronzeInfo.Size() > 0 &&
		(!rawExists || !bronzeInfo.ModTime().Before(rawInfo.ModTime()))

	archiveInfo, archiveErr := os.Stat(f.Archive)
	archiveExists := archiveErr == nil
	archiveValid := false
	if archiveExists && archiveInfo.Size() > 0 && archiveInfo.Size() >= d.MinArchiveSize {
		if n, err := extract.Entries(f.Archive, d.Format); err == nil && n > 0 {
			archiveValid = true
		}
	}

	switch {
	case bronzeValid:
		return State{Stage: Ingested}
	case bronzeExists && rawValid:
		return State{Stage: Ingested, Stale: true}
	case rawValid:
		return State{Stage: Extracted}
	case rawExists && archiveValid:
		return State{Stage: Extracted, Stale: true}
	case archiveValid:
		return State{Stage: Downloaded}
	case archiveExists:
		return State{Stage: Downloaded, Stale: true}
	default:
		return State{Stage: Unfetched}
	}
}

// NextAction maps a probed state to the operation that advances the dataset.
// With force the earliest-stage action is always returned so the whole chain
// is redone. The mapping is total: stale states take the action that rebuilds
// the stale artifact, valid states take the action for the next stage, and a
// valid ingest is a no-op.
func NextAction(s State, force bool) Action {
	if force {
		return Fetch
	}

	switch s.Stage {
	case Unfetched:
		return Fetch
	case Downloaded:
		if s.Stale {
			return Fetch
		}
		return Extract
	case Extracted:
		if s.Stale {
			return Extract
		}
		return Transform
	case Ingested:
		if s.Stale {
			return Transform
		}
		return Skip
	default:
		// Stage is a closed set; treat anything else as needing a full redo.
		return Fetch
	}
}
