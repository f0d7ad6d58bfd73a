// Package pipeline orchestrates dataset lifecycles. Each run probes every
// requested dataset, derives the next action from its on-disk state, and
// executes actions until the dataset is up to date or fails. Datasets are
// independent: one failure never stops the others.
package pipeline

import (
	"context"
	"os"

	"github.com/hashicorp/go-multierror"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/moviedata/lakehouse/internal/catalog"
	"github.com/moviedata/lakehouse/internal/layout"
	"github.com/moviedata/lakehouse/internal/runlog"
	"github.com/moviedata/lakehouse/internal/state"
)

// Capabilities supplies the stage executors. Each takes the dataset
// descriptor and its resolved artifact paths; Transform returns the number
// of rows written.
type Capabilities struct {
	Fetch     func(ctx context.Context, d catalog.Descriptor, f state.Files) error
	Extract   func(ctx context.Context, d catalog.Descriptor, f state.Files) error
	Transform func(ctx context.Context, d catalog.Descriptor, f state.Files) (int64, error)
}

// Runner drives datasets through their lifecycle stages.
type Runner struct {
	Home        layout.Home
	Catalog     *catalog.Catalog
	Caps        Capabilities
	Concurrency int            // max datasets in flight, default 3
	Target      state.Action   // last action a run may perform, default Transform
	Log         *runlog.Log    // optional audit log
}

func (r *Runner) log() *zap.Logger {
	return zap.L().With(zap.String("component", "pipeline"))
}

func (r *Runner) target() state.Action {
	if r.Target == state.Skip {
		return state.Transform
	}
	return r.Target
}

// resolve maps dataset ids to descriptors, defaulting to the whole catalog.
// An unknown id fails the run before any work starts.
func (r *Runner) resolve(ids []string) ([]catalog.Descriptor, error) {
	if len(ids) == 0 {
		return r.Catalog.All(), nil
	}
	out := make([]catalog.Descriptor, 0, len(ids))
	for _, id := range ids {
		d, err := r.Catalog.Lookup(id)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, nil
}

// Run processes the named datasets (all of them when ids is empty) and
// returns a per-dataset report. With force set, every stage up to the target
// re-executes regardless of what is already on disk. Cancelling ctx stops
// new actions from starting; datasets that never ran are reported as failed
// with the cancellation error.
func (r *Runner) Run(ctx context.Context, ids []string, force bool) (*Report, error) {
	datasets, err := r.resolve(ids)
	if err != nil {
		return nil, err
	}

	var runID string
	if r.Log != nil {
		runID, err = r.Log.StartRun(ctx, force)
		if err != nil {
			r.log().Warn("run log unavailable", zap.Error(err))
			runID = ""
		}
	}

	outcomes := make([]Outcome, len(datasets))
	limit := r.Concurrency
	if limit <= 0 {
		limit = 3
	}
	var g errgroup.Group
	g.SetLimit(limit)
	for i, d := range datasets {
		if ctx.Err() != nil {
			outcomes[i] = Outcome{Dataset: d.ID, Status: StatusFailed, Err: ctx.Err()}
			continue
		}
		g.Go(func() error {
			outcomes[i] = r.processDataset(ctx, d, force)
			return nil
		})
	}
	g.Wait()

	report := &Report{Outcomes: outcomes}
	r.record(ctx, runID, report)
	return report, nil
}

// record writes the report to the audit log. The log is advisory; failures
// here never affect the run's result.
func (r *Runner) record(ctx context.Context, runID string, report *Report) {
	if r.Log == nil || runID == "" {
		return
	}
	for _, o := range report.Outcomes {
		actions := "-"
		if len(o.Actions) > 0 {
			actions = o.Actions[len(o.Actions)-1]
		}
		errMsg := ""
		if o.Err != nil {
			errMsg = o.Err.Error()
		}
		if err := r.Log.RecordOutcome(ctx, runID, o.Dataset, actions, string(o.Status), o.Rows, errMsg); err != nil {
			r.log().Warn("record outcome", zap.String("dataset", o.Dataset), zap.Error(err))
		}
	}
	if err := r.Log.CompleteRun(ctx, runID); err != nil {
		r.log().Warn("complete run", zap.Error(err))
	}
}

// maxActionsPerDataset bounds the probe loop. A dataset needs at most three
// actions (fetch, extract, transform); a fourth iteration means an action
// completed without advancing the on-disk state.
const maxActionsPerDataset = 4

func (r *Runner) processDataset(ctx context.Context, d catalog.Descriptor, force bool) Outcome {
	log := r.log().With(zap.String("dataset", d.ID))
	out := Outcome{Dataset: d.ID}

	if err := layout.CreateDatasetDirs(r.Home, d.ID); err != nil {
		out.Status = StatusFailed
		out.Err = err
		return out
	}
	f := state.FilesFor(r.Home, d)

	if force {
		// Probing is pointless when everything redoes anyway; execute the
		// full sequence up to the target.
		for _, act := range []state.Action{state.Fetch, state.Extract, state.Transform} {
			if act > r.target() {
				break
			}
			if err := r.perform(ctx, act, d, f, &out); err != nil {
				log.Warn("action failed", zap.Stringer("action", act), zap.Error(err))
				out.Status = StatusFailed
				out.Err = err
				return out
			}
		}
		out.Status = StatusSucceeded
		return out
	}

	var prev state.Action
	for i := 0; i < maxActionsPerDataset; i++ {
		st := state.Probe(d, f)
		act := state.NextAction(st, false)
		log.Debug("probed", zap.Stringer("state", st), zap.Stringer("action", act))
		if act == state.Skip || act > r.target() {
			break
		}
		if act == prev {
			out.Status = StatusFailed
			out.Err = eris.Errorf("pipeline: dataset %s: action %s did not advance state %s", d.ID, act, st)
			return out
		}
		if err := r.perform(ctx, act, d, f, &out); err != nil {
			log.Warn("action failed", zap.Stringer("action", act), zap.Error(err))
			out.Status = StatusFailed
			out.Err = err
			return out
		}
		prev = act
	}

	if len(out.Actions) == 0 {
		out.Status = StatusSkipped
	} else {
		out.Status = StatusSucceeded
	}
	return out
}

func (r *Runner) perform(ctx context.Context, act state.Action, d catalog.Descriptor, f state.Files, out *Outcome) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	log := r.log().With(zap.String("dataset", d.ID), zap.Stringer("action", act))
	log.Info("running")
	var err error
	switch act {
	case state.Fetch:
		err = r.Caps.Fetch(ctx, d, f)
	case state.Extract:
		err = r.Caps.Extract(ctx, d, f)
	case state.Transform:
		var rows int64
		rows, err = r.Caps.Transform(ctx, d, f)
		if err == nil {
			out.Rows = rows
		}
	default:
		err = eris.Errorf("pipeline: no executor for action %s", act)
	}
	if err != nil {
		return eris.Wrapf(err, "pipeline: dataset %s: %s", d.ID, act)
	}
	out.Actions = append(out.Actions, act.String())
	log.Info("done")
	return nil
}

// Inspection is a dataset's probed state plus its artifact paths, for
// reporting without acting.
type Inspection struct {
	Dataset string
	State   state.State
	Next    state.Action
	Files   state.Files
}

// Inspect probes the named datasets (all when ids is empty) without
// performing any action.
func (r *Runner) Inspect(ids []string) ([]Inspection, error) {
	datasets, err := r.resolve(ids)
	if err != nil {
		return nil, err
	}
	out := make([]Inspection, 0, len(datasets))
	for _, d := range datasets {
		f := state.FilesFor(r.Home, d)
		st := state.Probe(d, f)
		out = append(out, Inspection{
			Dataset: d.ID,
			State:   st,
			Next:    state.NextAction(st, false),
			Files:   f,
		})
	}
	return out, nil
}

// Clean removes the extracted files for the named datasets. Archives and
// bronze tables stay; a later extract rebuilds the raw files from the
// archive without another download.
func (r *Runner) Clean(ids []string) error {
	return r.removeStageDirs(ids, layout.StageExtract)
}

// Reset removes every artifact for the named datasets, returning them to
// unfetched.
func (r *Runner) Reset(ids []string) error {
	return r.removeStageDirs(ids, layout.StageDownload, layout.StageExtract, layout.StageBronze, layout.StageSilver)
}

func (r *Runner) removeStageDirs(ids []string, stages ...layout.Stage) error {
	datasets, err := r.resolve(ids)
	if err != nil {
		return err
	}
	var result *multierror.Error
	for _, d := range datasets {
		for _, s := range stages {
			dir := layout.Resolve(r.Home, d.ID, s)
			if err := os.RemoveAll(dir); err != nil {
				result = multierror.Append(result, eris.Wrapf(err, "pipeline: remove %s", dir))
				continue
			}
			r.log().Info("removed", zap.String("dataset", d.ID), zap.Stringer("stage", s))
		}
	}
	return result.ErrorOrNil()
}
