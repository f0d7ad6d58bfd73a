// Package fetcher downloads dataset archives over HTTP and FTP. Downloads to
// disk always land via a temp file and atomic rename, so a failed transfer
// never leaves a partial file at the final path.
package fetcher

import (
	"context"
	"io"
	"net/url"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
)

// Fetcher defines the interface for downloading remote data.
type Fetcher interface {
	// Download fetches the URL and returns the response body.
	Download(ctx context.Context, url string) (io.ReadCloser, error)

	// DownloadToFile fetches the URL and writes it to the given path.
	// Returns bytes written. On failure nothing exists at path.
	DownloadToFile(ctx context.Context, url string, path string) (int64, error)
}

// Dispatcher routes download requests to a scheme-specific fetcher.
type Dispatcher struct {
	http Fetcher
	ftp  Fetcher
}

// NewDispatcher builds a Fetcher that selects HTTP or FTP per URL scheme.
func NewDispatcher(httpOpts HTTPOptions, ftpOpts FTPOptions) *Dispatcher {
	return &Dispatcher{
		http: NewHTTPFetcher(httpOpts),
		ftp:  NewFTPFetcher(ftpOpts),
	}
}

func (d *Dispatcher) pick(rawURL string) (Fetcher, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, eris.Wrapf(err, "fetcher: parse url %q", rawURL)
	}
	switch u.Scheme {
	case "http", "https":
		return d.http, nil
	case "ftp":
		return d.ftp, nil
	default:
		return nil, eris.Errorf("fetcher: unsupported scheme %q in %s", u.Scheme, rawURL)
	}
}

// Download fetches the URL with the scheme-appropriate fetcher.
func (d *Dispatcher) Download(ctx context.Context, rawURL string) (io.ReadCloser, error) {
	f, err := d.pick(rawURL)
	if err != nil {
		return nil, err
	}
	return f.Download(ctx, rawURL)
}

// DownloadToFile fetches the URL to path with the scheme-appropriate fetcher.
func (d *Dispatcher) DownloadToFile(ctx context.Context, rawURL string, path string) (int64, error) {
	f, err := d.pick(rawURL)
	if err != nil {
		return 0, err
	}
	return f.DownloadToFile(ctx, rawURL, path)
}

// writeToFileAtomic streams body into path via a temp file in the same
// directory followed by a rename. Returns bytes written.
func writeToFileAtomic(path string, body io.Reader) (int64, error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".partial-*")
	if err != nil {
		return 0, eris.Wrap(err, "fetcher: create temp file")
	}
	tmpPath := tmp.Name()

	n, err := io.Copy(tmp, body)
	if err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return 0, eris.Wrapf(err, "fetcher: write %s", path)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return 0, eris.Wrapf(err, "fetcher: close %s", tmpPath)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return 0, eris.Wrapf(err, "fetcher: rename to %s", path)
	}
	return n, nil
}
