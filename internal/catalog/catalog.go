// Package catalog holds the fixed registry of known datasets: the seven IMDb
// dump files, plus any overrides loaded from a catalog file. Descriptors are
// immutable after construction and enumerate in registration order.
package catalog

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
)

// Format tags how a dataset's archive and raw payload are encoded. Extraction
// and transform strategy dispatch on this closed set.
type Format string

const (
	FormatTSVGzip Format = "tsv.gz"
	FormatTSV     Format = "tsv"
	FormatCSVZip  Format = "csv.zip"
	FormatParquet Format = "parquet"
)

// Valid reports whether f is a known format tag.
func (f Format) Valid() bool {
	switch f {
	case FormatTSVGzip, FormatTSV, FormatCSVZip, FormatParquet:
		return true
	}
	return false
}

// Descriptor is the immutable definition of one dataset: identity, source,
// expected artifact names, and size sanity thresholds.
type Descriptor struct {
	ID                string
	Description       string
	SourceURL         string
	ArchiveFilename   string
	ExtractedFilename string
	MinArchiveSize    int64
	MinExtractedSize  int64
	Format            Format
}

// UnknownDatasetError is returned when a lookup names a dataset the catalog
// does not know.
type UnknownDatasetError struct {
	ID string
}

func (e *UnknownDatasetError) Error() string {
	return fmt.Sprintf("catalog: unknown dataset %q", e.ID)
}

// Catalog is an ordered, immutable-after-construction set of descriptors.
type Catalog struct {
	byID  map[string]Descriptor
	order []string
}

// IMDb dump definitions. URLs and descriptions follow datasets.imdbws.com;
// minimum sizes are deliberately far below the real dumps (hundreds of MB)
// and only catch truncated or error-page downloads.
var builtin = []Descriptor{
	{
		ID:          "profiles",
		Description: "People involved in film and TV productions: unique IDs, birth/death years, known titles, primary professions.",
		SourceURL:   "https://datasets.imdbws.com/name.basics.tsv.gz",
	},
	{
		ID:          "credits",
		Description: "Principal cast and crew credits per title, including characters played and main contributor roles.",
		SourceURL:   "https://datasets.imdbws.com/title.principals.tsv.gz",
	},
	{
		ID:          "titles",
		Description: "Core title information for movies, series, episodes, and shorts: types, names, years, runtime, genres.",
		SourceURL:   "https://datasets.imdbws.com/title.basics.tsv.gz",
	},
	{
		ID:          "variants",
		Description: "Alternative and localized title names per region and language, with variation types.",
		SourceURL:   "https://datasets.imdbws.com/title.akas.tsv.gz",
	},
	{
		ID:          "ratings",
		Description: "User ratings and vote counts per title.",
		SourceURL:   "https://datasets.imdbws.com/title.ratings.tsv.gz",
	},
	{
		ID:          "series",
		Description: "Episode-to-series mapping with season and episode numbers.",
		SourceURL:   "https://datasets.imdbws.com/title.episode.tsv.gz",
	},
	{
		ID:          "crews",
		Description: "Directors and writers credited per title.",
		SourceURL:   "https://datasets.imdbws.com/title.crew.tsv.gz",
	},
}

// New builds a catalog containing the built-in IMDb datasets.
func New() *Catalog {
	c := &Catalog{byID: make(map[string]Descriptor)}
	for _, d := range builtin {
		filled, err := fill(d)
		if err != nil {
			// builtin URLs are constants; a failure here is a programming error
			panic(err)
		}
		if err := c.Register(filled); err != nil {
			panic(err)
		}
	}
	return c
}

// fill derives the artifact filenames and defaults a descriptor leaves unset.
func fill(d Descriptor) (Descriptor, error) {
	if d.ArchiveFilename == "" {
		name, err := FilenameFromURL(d.SourceURL)
		if err != nil {
			return d, err
		}
		d.ArchiveFilename = name
	}
	if d.Format == "" {
		switch {
		case strings.HasSuffix(d.ArchiveFilename, ".tsv.gz"):
			d.Format = FormatTSVGzip
		case strings.HasSuffix(d.ArchiveFilename, ".zip"):
			d.Format = FormatCSVZip
		case strings.HasSuffix(d.ArchiveFilename, ".parquet"):
			d.Format = FormatParquet
		default:
			d.Format = FormatTSV
		}
	}
	if d.ExtractedFilename == "" {
		d.ExtractedFilename = strings.TrimSuffix(d.ArchiveFilename, ".gz")
	}
	if d.MinArchiveSize == 0 {
		d.MinArchiveSize = 1 << 20 // 1 MiB
	}
	if d.MinExtractedSize == 0 {
		d.MinExtractedSize = 1 << 20
	}
	return d, nil
}

// Register adds a descriptor. Dataset ids are stable and never reused, so a
// duplicate id is an error rather than an overwrite.
func (c *Catalog) Register(d Descriptor) error {
	if d.ID == "" {
		return eris.New("catalog: descriptor with empty id")
	}
	if _, exists := c.byID[d.ID]; exists {
		return eris.Errorf("catalog: duplicate dataset id %q", d.ID)
	}
	if !d.Format.Valid() {
		return eris.Errorf("catalog: dataset %q has unknown format %q", d.ID, d.Format)
	}
	c.byID[d.ID] = d
	c.order = append(c.order, d.ID)
	return nil
}

// All returns every descriptor in registration order.
func (c *Catalog) All() []Descriptor {
	out := make([]Descriptor, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.byID[id])
	}
	return out
}

// Lookup returns the descriptor for id, or an UnknownDatasetError.
func (c *Catalog) Lookup(id string) (Descriptor, error) {
	d, ok := c.byID[id]
	if !ok {
		return Descriptor{}, &UnknownDatasetError{ID: id}
	}
	return d, nil
}

// Names returns all dataset ids in registration order.
func (c *Catalog) Names() []string {
	out := make([]string, len(c.order))
	copy(out, c.order)
	return out
}

// Len returns the number of registered datasets.
func (c *Catalog) Len() int { return len(c.order) }

// FilenameFromURL extracts the final path segment of a source URL.
func FilenameFromURL(rawURL string) (string, error) {
	trimmed := strings.TrimSuffix(rawURL, "/")
	idx := strings.LastIndex(trimmed, "/")
	if idx < 0 || idx == len(trimmed)-1 {
		return "", eris.Errorf("catalog: no filename in url %q", rawURL)
	}
	name := trimmed[idx+1:]
	if name == "" || strings.Contains(name, "?") {
		name = strings.SplitN(name, "?", 2)[0]
		if name == "" {
			return "", eris.Errorf("catalog: no filename in url %q", rawURL)
		}
	}
	return name, nil
}
