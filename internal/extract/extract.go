// Package extract expands downloaded archives into the extract stage
// directory. Writes go through a temp file and rename so a crashed or
// cancelled extraction never leaves a partial file at the final path.
package extract

import (
	"archive/zip"
	"compress/gzip"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/moviedata/lakehouse/internal/catalog"
)

// Extract expands archivePath into destDir according to the dataset's format
// tag and returns the extracted file paths. Formats without an archive layer
// (plain tsv, parquet) are copied through unchanged.
func Extract(ctx context.Context, archivePath, destDir string, format catalog.Format) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, eris.Wrap(err, "extract: cancelled")
	}

	switch format {
	case catalog.FormatTSVGzip:
		dest := filepath.Join(destDir, strings.TrimSuffix(filepath.Base(archivePath), ".gz"))
		if err := Gunzip(archivePath, dest); err != nil {
			return nil, err
		}
		return []string{dest}, nil
	case catalog.FormatCSVZip:
		return Unzip(archivePath, destDir)
	case catalog.FormatTSV, catalog.FormatParquet:
		dest := filepath.Join(destDir, filepath.Base(archivePath))
		if err := copyFile(archivePath, dest); err != nil {
			return nil, err
		}
		return []string{dest}, nil
	default:
		return nil, eris.Errorf("extract: unknown format %q", format)
	}
}

// Gunzip decompresses a single-member gzip file to destPath.
func Gunzip(srcPath, destPath string) error {
	src, err := os.Open(srcPath)
	if err != nil {
		return eris.Wrap(err, "extract: open archive")
	}
	defer src.Close() //nolint:errcheck

	gz, err := gzip.NewReader(src)
	if err != nil {
		return eris.Wrapf(err, "extract: gzip header in %s", srcPath)
	}
	defer gz.Close() //nolint:errcheck

	return writeAtomic(destPath, gz)
}

// Unzip extracts every file in a ZIP archive to destDir.
// Returns the list of extracted file paths.
func Unzip(zipPath, destDir string) ([]string, error) {
	r, err := zip.OpenReader(zipPath)
	if err != nil {
		return nil, eris.Wrap(err, "extract: open zip")
	}
	defer r.Close() //nolint:errcheck

	var extracted []string
	for _, f := range r.File {
		path, err := unzipEntry(f, destDir)
		if err != nil {
			return extracted, err
		}
		if path != "" {
			extracted = append(extracted, path)
		}
	}
	return extracted, nil
}

// unzipEntry extracts a single zip.File to the destination directory.
// Returns the extracted file path, or empty string for directories.
func unzipEntry(f *zip.File, destDir string) (string, error) {
	// Sanitize against zip slip
	destPath := filepath.Join(destDir, f.Name)
	if !strings.HasPrefix(filepath.Clean(destPath), filepath.Clean(destDir)+string(os.PathSeparator)) {
		return "", eris.Errorf("extract: illegal zip path %q", f.Name)
	}

	if f.FileInfo().IsDir() {
		if err := os.MkdirAll(destPath, 0o755); err != nil {
			return "", eris.Wrap(err, "extract: create directory")
		}
		return "", nil
	}

	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return "", eris.Wrap(err, "extract: create parent directory")
	}

	rc, err := f.Open()
	if err != nil {
		return "", eris.Wrap(err, "extract: open zip entry")
	}
	defer rc.Close() //nolint:errcheck

	if err := writeAtomic(destPath, rc); err != nil {
		return "", err
	}
	return destPath, nil
}

// Entries counts the readable entries in an archive without extracting it.
// Used by validity probing: a valid archive must yield at least one entry.
func Entries(path string, format catalog.Format) (int, error) {
	switch format {
	case catalog.FormatTSVGzip:
		src, err := os.Open(path)
		if err != nil {
			return 0, eris.Wrap(err, "extract: open archive")
		}
		defer src.Close() //nolint:errcheck

		gz, err := gzip.NewReader(src)
		if err != nil {
			return 0, eris.Wrapf(err, "extract: gzip header in %s", path)
		}
		defer gz.Close() //nolint:errcheck

		// A gzip file has exactly one member. Drain it so a body truncated
		// past the header, or a bad CRC trailer, fails here instead of
		// counting as a valid archive.
		if _, err := io.Copy(io.Discard, gz); err != nil {
			return 0, eris.Wrapf(err, "extract: gzip payload in %s", path)
		}
		return 1, nil
	case catalog.FormatCSVZip:
		r, err := zip.OpenReader(path)
		if err != nil {
			return 0, eris.Wrap(err, "extract: open zip")
		}
		defer r.Close() //nolint:errcheck
		n := 0
		for _, f := range r.File {
			if !f.FileInfo().IsDir() {
				n++
			}
		}
		return n, nil
	case catalog.FormatTSV, catalog.FormatParquet:
		// Not an archive; the file itself is the single entry.
		if _, err := os.Stat(path); err != nil {
			return 0, eris.Wrap(err, "extract: stat")
		}
		return 1, nil
	default:
		return 0, eris.Errorf("extract: unknown format %q", format)
	}
}

// writeAtomic streams r into destPath via a temp file in the same directory
// followed by a rename.
func writeAtomic(destPath string, r io.Reader) error {
	tmp, err := os.CreateTemp(filepath.Dir(destPath), "."+filepath.Base(destPath)+".partial-*")
	if err != nil {
		return eris.Wrap(err, "extract: create temp file")
	}
	tmpPath := tmp.Name()

	cleanup := func() {
		_ = tmp.Close()
		if err := os.Remove(tmpPath); err != nil && !os.IsNotExist(err) {
			zap.L().Warn("extract: could not remove temp file",
				zap.String("path", tmpPath), zap.Error(err))
		}
	}

	if _, err := io.Copy(tmp, r); err != nil {
		cleanup()
		return eris.Wrapf(err, "extract: write %s", destPath)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return eris.Wrapf(err, "extract: close %s", tmpPath)
	}
	if err := os.Rename(tmpPath, destPath); err != nil {
		cleanup()
		return eris.Wrapf(err, "extract: rename to %s", destPath)
	}
	return nil
}

func copyFile(srcPath, destPath string) error {
	src, err := os.Open(srcPath)
	if err != nil {
		return eris.Wrap(err, "extract: open source")
	}
	defer src.Close() //nolint:errcheck
	return writeAtomic(destPath, src)
}
