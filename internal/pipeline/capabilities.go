package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/moviedata/lakehouse/internal/bronze"
	"github.com/moviedata/lakehouse/internal/catalog"
	"github.com/moviedata/lakehouse/internal/db"
	"github.com/moviedata/lakehouse/internal/extract"
	"github.com/moviedata/lakehouse/internal/fetcher"
	"github.com/moviedata/lakehouse/internal/sink"
	"github.com/moviedata/lakehouse/internal/state"
)

// CapabilityConfig wires the concrete stage executors.
type CapabilityConfig struct {
	Dispatcher  *fetcher.Dispatcher
	SinkDriver  string  // "sqlite" (default) or "postgres"
	Pool        db.Pool // required for the postgres driver
	SinkSchema  string  // postgres schema, default "bronze"
	BatchSize   int
	NullMarkers []string
}

// DefaultCapabilities builds the production executors: download via the
// scheme dispatcher, extraction by archive format, and a TSV-to-typed-table
// transform into the configured sink.
func DefaultCapabilities(cfg CapabilityConfig) Capabilities {
	return Capabilities{
		Fetch:     fetchCapability(cfg),
		Extract:   extractCapability(),
		Transform: transformCapability(cfg),
	}
}

func fetchCapability(cfg CapabilityConfig) func(context.Context, catalog.Descriptor, state.Files) error {
	return func(ctx context.Context, d catalog.Descriptor, f state.Files) error {
		n, err := cfg.Dispatcher.DownloadToFile(ctx, d.SourceURL, f.Archive)
		if err != nil {
			return err
		}
		zap.L().Info("downloaded",
			zap.String("dataset", d.ID),
			zap.String("url", d.SourceURL),
			zap.Int64("bytes", n))
		return nil
	}
}

func extractCapability() func(context.Context, catalog.Descriptor, state.Files) error {
	return func(ctx context.Context, d catalog.Descriptor, f state.Files) error {
		_, err := extract.Extract(ctx, f.Archive, filepath.Dir(f.Raw), d.Format)
		return err
	}
}

func transformCapability(cfg CapabilityConfig) func(context.Context, catalog.Descriptor, state.Files) (int64, error) {
	return func(ctx context.Context, d catalog.Descriptor, f state.Files) (int64, error) {
		raw, err := os.Open(f.Raw)
		if err != nil {
			return 0, eris.Wrapf(err, "pipeline: open raw file for %s", d.ID)
		}
		defer raw.Close()

		src, err := bronze.NewTSVSource(raw)
		if err != nil {
			return 0, eris.Wrapf(err, "pipeline: read header for %s", d.ID)
		}
		schema, ok := bronze.SchemaFor(d.ID)
		if ok {
			if err := src.ValidateHeader(schema); err != nil {
				return 0, err
			}
		} else {
			schema = bronze.GenericSchema(src.Header())
		}

		// The SQLite sink writes into the dataset's bronze artifact directly,
		// so it works against a temp path and only a fully ingested database
		// is renamed into place. A half-written file at f.Bronze would probe
		// as ingested on the next run.
		sqlite := cfg.SinkDriver == "" || cfg.SinkDriver == "sqlite"
		sinkPath := f.Bronze
		if sqlite {
			sinkPath = bronzePartialPath(f.Bronze)
		}
		s, err := openSink(cfg, d.ID, sinkPath)
		if err != nil {
			return 0, err
		}

		rows, err := ingestInto(ctx, s, src, schema, d, f, cfg)
		if cerr := s.Close(); err == nil && cerr != nil {
			err = eris.Wrapf(cerr, "pipeline: close sink for %s", d.ID)
		}
		if err != nil {
			if sqlite {
				removePartial(sinkPath)
			}
			return 0, err
		}

		if sqlite {
			if err := os.Rename(sinkPath, f.Bronze); err != nil {
				removePartial(sinkPath)
				return 0, eris.Wrapf(err, "pipeline: rename bronze database for %s", d.ID)
			}
		} else if err := writeIngestMarker(f.Bronze, d.ID, rows); err != nil {
			return 0, err
		}
		return rows, nil
	}
}

func ingestInto(ctx context.Context, s sink.Sink, src bronze.RowSource, schema bronze.Schema, d catalog.Descriptor, f state.Files, cfg CapabilityConfig) (int64, error) {
	if err := s.EnsureTable(ctx, d.ID, bronze.OutputColumns(schema)); err != nil {
		return 0, err
	}
	prov := bronze.Provenance{
		Dataset:    d.ID,
		SourceFile: f.Raw,
		IngestedAt: time.Now().UTC(),
	}
	opts := bronze.Options{NullMarkers: cfg.NullMarkers, BatchSize: cfg.BatchSize}
	return bronze.Transform(ctx, src, schema, prov, opts, func(t *bronze.TypedTable) error {
		_, werr := s.WriteRows(ctx, d.ID, t)
		return werr
	})
}

// bronzePartialPath is where an in-flight SQLite ingest writes. Same
// directory as the final artifact so the rename is atomic.
func bronzePartialPath(dest string) string {
	return filepath.Join(filepath.Dir(dest), "."+filepath.Base(dest)+".partial")
}

func removePartial(path string) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		zap.L().Warn("pipeline: could not remove partial bronze file",
			zap.String("path", path), zap.Error(err))
	}
}

func openSink(cfg CapabilityConfig, dataset, path string) (sink.Sink, error) {
	switch cfg.SinkDriver {
	case "", "sqlite":
		return sink.OpenSQLite(path, dataset)
	case "postgres":
		if cfg.Pool == nil {
			return nil, eris.New("pipeline: postgres sink requires a connection pool")
		}
		return sink.NewPostgres(cfg.Pool, cfg.SinkSchema), nil
	default:
		return nil, eris.Errorf("pipeline: unknown sink driver %q", cfg.SinkDriver)
	}
}

// writeIngestMarker records a completed postgres ingest at the dataset's
// bronze path. Probing works off the filesystem only, so the marker's mtime
// stands in for the table's freshness. Written via temp+rename like every
// other artifact.
func writeIngestMarker(path, dataset string, rows int64) error {
	content := fmt.Sprintf("dataset=%s rows=%d ingested_at=%s\n",
		dataset, rows, time.Now().UTC().Format(time.RFC3339))
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".partial-*")
	if err != nil {
		return eris.Wrapf(err, "pipeline: create ingest marker for %s", dataset)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write([]byte(content)); err != nil {
		_ = tmp.Close()
		removePartial(tmpPath)
		return eris.Wrapf(err, "pipeline: write ingest marker for %s", dataset)
	}
	if err := tmp.Close(); err != nil {
		removePartial(tmpPath)
		return eris.Wrapf(err, "pipeline: close ingest marker for %s", dataset)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		removePartial(tmpPath)
		return eris.Wrapf(err, "pipeline: rename ingest marker for %s", dataset)
	}
	return nil
}
