package main

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/moviedata/lakehouse/internal/catalog"
	"github.com/moviedata/lakehouse/internal/fetcher"
	"github.com/moviedata/lakehouse/internal/layout"
	"github.com/moviedata/lakehouse/internal/pipeline"
	"github.com/moviedata/lakehouse/internal/runlog"
	"github.com/moviedata/lakehouse/internal/state"
)

// buildCatalog loads the built-in datasets plus any catalog file overlay.
func buildCatalog() (*catalog.Catalog, error) {
	c := catalog.New()
	if cfg.Catalog.File != "" {
		if err := c.LoadFile(cfg.Catalog.File); err != nil {
			return nil, eris.Wrapf(err, "load catalog file %s", cfg.Catalog.File)
		}
	}
	return c, nil
}

// buildRunner assembles the orchestrator for commands that act on datasets.
// The returned cleanup closes the run log and any database pool.
func buildRunner(ctx context.Context, target state.Action) (*pipeline.Runner, func(), error) {
	cat, err := buildCatalog()
	if err != nil {
		return nil, nil, err
	}
	home := cfg.HomeLayout()

	dispatcher := fetcher.NewDispatcher(
		fetcher.HTTPOptions{
			UserAgent:  cfg.Fetch.UserAgent,
			Timeout:    cfg.Fetch.Timeout(),
			MaxRetries: cfg.Fetch.MaxRetries,
		},
		fetcher.FTPOptions{Timeout: cfg.Fetch.Timeout()},
	)

	capCfg := pipeline.CapabilityConfig{
		Dispatcher: dispatcher,
		SinkDriver: cfg.Ingest.Driver,
		SinkSchema: cfg.Ingest.Schema,
		BatchSize:  cfg.Ingest.BatchSize,
	}

	var cleanups []func()
	if cfg.Ingest.Driver == "postgres" {
		if cfg.Ingest.DatabaseURL == "" {
			return nil, nil, eris.New("ingest.database_url is required for the postgres driver")
		}
		pool, err := pgxpool.New(ctx, cfg.Ingest.DatabaseURL)
		if err != nil {
			return nil, nil, eris.Wrap(err, "connect to postgres")
		}
		capCfg.Pool = pool
		cleanups = append(cleanups, pool.Close)
	}

	var auditLog *runlog.Log
	if err := layout.CreateDirs(layout.PathsFor(home).Home); err != nil {
		return nil, nil, err
	}
	auditLog, err = runlog.Open(filepath.Join(layout.PathsFor(home).Home, "runs.db"))
	if err != nil {
		// The audit log is advisory; run without it rather than abort.
		zap.L().Warn("run log unavailable", zap.Error(err))
		auditLog = nil
	} else {
		cleanups = append(cleanups, func() { auditLog.Close() })
	}

	r := &pipeline.Runner{
		Home:        home,
		Catalog:     cat,
		Caps:        pipeline.DefaultCapabilities(capCfg),
		Concurrency: cfg.Pipeline.Concurrency,
		Target:      target,
		Log:         auditLog,
	}
	cleanup := func() {
		for i := len(cleanups) - 1; i >= 0; i-- {
			cleanups[i]()
		}
	}
	return r, cleanup, nil
}

// runStage executes a run up to the given target and applies the exit-code
// policy: strict mode fails on any dataset failure, default mode only when
// every dataset failed.
func runStage(ctx context.Context, target state.Action, ids []string) error {
	r, cleanup, err := buildRunner(ctx, target)
	if err != nil {
		return err
	}
	defer cleanup()

	report, err := r.Run(ctx, ids, flagForce)
	if err != nil {
		return err
	}
	fmt.Print(report.Summary())

	strict := flagStrict || cfg.Pipeline.Strict
	if report.TotalFailure() {
		return eris.Errorf("all %d datasets failed", len(report.Outcomes))
	}
	if strict && report.AnyFailure() {
		return eris.Errorf("%d of %d datasets failed", len(report.Failed()), len(report.Outcomes))
	}
	return nil
}
