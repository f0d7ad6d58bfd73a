package pipeline

import (
	"fmt"
	"strings"
)

// Status classifies one dataset's outcome in a run.
type Status string

const (
	StatusSucceeded Status = "succeeded"
	StatusSkipped   Status = "skipped"
	StatusFailed    Status = "failed"
)

// Outcome is the result of processing one dataset.
type Outcome struct {
	Dataset string
	Actions []string // actions performed, in order
	Status  Status
	Rows    int64 // rows written by transform, if it ran
	Err     error // set when Status is StatusFailed
}

// Report aggregates per-dataset outcomes for one run. Outcomes appear in
// request order.
type Report struct {
	Outcomes []Outcome
}

// Succeeded returns the outcomes that completed at least one action.
func (r *Report) Succeeded() []Outcome { return r.withStatus(StatusSucceeded) }

// Skipped returns the outcomes that needed no work.
func (r *Report) Skipped() []Outcome { return r.withStatus(StatusSkipped) }

// Failed returns the outcomes that recorded an error.
func (r *Report) Failed() []Outcome { return r.withStatus(StatusFailed) }

func (r *Report) withStatus(s Status) []Outcome {
	var out []Outcome
	for _, o := range r.Outcomes {
		if o.Status == s {
			out = append(out, o)
		}
	}
	return out
}

// TotalFailure reports whether every requested dataset failed. Only then is
// the whole run considered failed; a partial failure stays a best-effort
// success so one unreachable source does not sink the sweep.
func (r *Report) TotalFailure() bool {
	if len(r.Outcomes) == 0 {
		return false
	}
	return len(r.Failed()) == len(r.Outcomes)
}

// AnyFailure reports whether at least one dataset failed. Used by the strict
// exit-code policy.
func (r *Report) AnyFailure() bool {
	return len(r.Failed()) > 0
}

// Summary renders a one-line-per-dataset digest for operator output.
func (r *Report) Summary() string {
	var b strings.Builder
	for _, o := range r.Outcomes {
		actions := "-"
		if len(o.Actions) > 0 {
			actions = strings.Join(o.Actions, ",")
		}
		switch o.Status {
		case StatusFailed:
			fmt.Fprintf(&b, "%-12s %-9s %s: %v\n", o.Dataset, o.Status, actions, o.Err)
		case StatusSucceeded:
			if o.Rows > 0 {
				fmt.Fprintf(&b, "%-12s %-9s %s (%d rows)\n", o.Dataset, o.Status, actions, o.Rows)
			} else {
				fmt.Fprintf(&b, "%-12s %-9s %s\n", o.Dataset, o.Status, actions)
			}
		default:
			fmt.Fprintf(&b, "%-12s %-9s\n", o.Dataset, o.Status)
		}
	}
	return b.String()
}
