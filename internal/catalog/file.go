package catalog

import (
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// fileDescriptor is the YAML shape of one dataset entry in a catalog file.
type fileDescriptor struct {
	ID                string `yaml:"id"`
	Description       string `yaml:"description"`
	URL               string `yaml:"url"`
	ArchiveFilename   string `yaml:"archive_filename"`
	ExtractedFilename string `yaml:"extracted_filename"`
	MinArchiveSize    int64  `yaml:"min_archive_size"`
	MinExtractedSize  int64  `yaml:"min_extracted_size"`
	Format            string `yaml:"format"`
}

type catalogFile struct {
	Datasets []fileDescriptor `yaml:"datasets"`
}

// LoadFile reads extra dataset definitions from a YAML catalog file and
// registers them on top of the built-in set. Ids must not clash with the
// built-in datasets.
func (c *Catalog) LoadFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return eris.Wrapf(err, "catalog: read %s", path)
	}

	var f catalogFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return eris.Wrapf(err, "catalog: parse %s", path)
	}

	for _, fd := range f.Datasets {
		d, err := fill(Descriptor{
			ID:                fd.ID,
			Description:       fd.Description,
			SourceURL:         fd.URL,
			ArchiveFilename:   fd.ArchiveFilename,
			ExtractedFilename: fd.ExtractedFilename,
			MinArchiveSize:    fd.MinArchiveSize,
			MinExtractedSize:  fd.MinExtractedSize,
			Format:            Format(fd.Format),
		})
		if err != nil {
			return eris.Wrapf(err, "catalog: dataset %q in %s", fd.ID, path)
		}
		if err := c.Register(d); err != nil {
			return err
		}
	}
	return nil
}
