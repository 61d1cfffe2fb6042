// Package remediate walks every asset group in a subscription and resets
// the business impact of the ones that differ from the target level.
package remediate

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"

	"github.com/iglennon-qualys/ResetAssetGroups/pkg/assetgroup"
	"github.com/iglennon-qualys/ResetAssetGroups/pkg/logging"
	"github.com/iglennon-qualys/ResetAssetGroups/pkg/qualys"
)

// API is the subset of the Qualys session the runner needs.
type API interface {
	ListAssetGroups(ctx context.Context) (*qualys.ListOutput, error)
	UpdateAssetGroup(ctx context.Context, id string, impact assetgroup.Impact) (*qualys.SimpleReturn, error)
}

// Observer is notified of every per-group outcome.
type Observer interface {
	Observe(ctx context.Context, runID string, o Outcome) error
}

// Action is what happened to one group.
type Action string

const (
	ActionSkipped   Action = "skipped"
	ActionUpdated   Action = "updated"
	ActionSimulated Action = "simulated"
	ActionFailed    Action = "failed"
)

// Outcome records the handling of a single group.
type Outcome struct {
	Group   assetgroup.AssetGroup `json:"group"`
	Target  assetgroup.Impact     `json:"target"`
	Action  Action                `json:"action"`
	Message string                `json:"message,omitempty"`
	Err     error                 `json:"-"`
	At      time.Time             `json:"at"`
}

// Result is the full record of one run.
type Result struct {
	RunID      string            `json:"run_id"`
	StartedAt  time.Time         `json:"started_at"`
	FinishedAt time.Time         `json:"finished_at"`
	Target     assetgroup.Impact `json:"target"`
	Simulate   bool              `json:"simulate"`
	Outcomes   []Outcome         `json:"outcomes"`
}

// Count returns how many outcomes have action a.
func (r *Result) Count(a Action) int {
	if r == nil {
		return 0
	}
	n := 0
	for _, o := range r.Outcomes {
		if o.Action == a {
			n++
		}
	}
	return n
}

// Options configures a Runner.
type Options struct {
	Target   assetgroup.Impact
	Simulate bool
	// ContinueOnError attempts every group and reports the first failure at
	// the end; otherwise the run stops at the first failure.
	ContinueOnError bool
	// Debug prints the fetched group list as JSON.
	Debug     bool
	Out       io.Writer
	Logger    *logging.Logger
	Observers []Observer
}

// Runner executes remediation runs.
type Runner struct {
	api  API
	opts Options
	now  func() time.Time
}

// NewRunner constructs a runner.
func NewRunner(api API, opts Options) *Runner {
	if opts.Target == "" {
		opts.Target = assetgroup.DefaultTarget
	}
	if opts.Out == nil {
		opts.Out = io.Discard
	}
	return &Runner{api: api, opts: opts, now: time.Now}
}

// Run lists every group and updates those that need it. Updates applied
// before a failure stay applied.
func (r *Runner) Run(ctx context.Context) (*Result, error) {
	res := &Result{
		RunID:     uuid.NewString(),
		StartedAt: r.now().UTC(),
		Target:    r.opts.Target,
		Simulate:  r.opts.Simulate,
	}
	log := r.opts.Logger.With("run_id", res.RunID)
	out := r.opts.Out

	fmt.Fprint(out, "Getting Asset Groups ...")
	list, err := r.api.ListAssetGroups(ctx)
	if err != nil {
		fmt.Fprintln(out)
		res.FinishedAt = r.now().UTC()
		log.Errorf("list asset groups: %v", err)
		return res, err
	}
	fmt.Fprintln(out, "Done")

	groups := list.Groups()
	log.Infof("fetched %d asset groups", len(groups))
	if r.opts.Debug {
		if b, err := json.MarshalIndent(groups, "", "  "); err == nil {
			fmt.Fprintln(out, string(b))
		}
	}

	var firstErr error
	for _, g := range groups {
		if err := ctx.Err(); err != nil {
			firstErr = err
			break
		}
		fmt.Fprintf(out, "Updating %s ... ", g.DisplayName())
		o := r.apply(ctx, g)
		switch o.Action {
		case ActionSkipped:
			fmt.Fprintf(out, "Skipped (already set to %q)\n", string(r.opts.Target))
		case ActionSimulated:
			fmt.Fprintf(out, "Would update (currently %q)\n", g.BusinessImpact)
		case ActionUpdated:
			fmt.Fprintln(out, "Done")
		case ActionFailed:
			fmt.Fprintln(out, "Failed")
			log.Errorf("update asset group %s (%s): %v", g.ID, g.Title, o.Err)
		}
		res.Outcomes = append(res.Outcomes, o)
		r.notify(ctx, log, res.RunID, o)

		if o.Action == ActionFailed {
			if firstErr == nil {
				firstErr = o.Err
			}
			if !r.opts.ContinueOnError {
				break
			}
		}
	}
	res.FinishedAt = r.now().UTC()
	log.Infof("run finished: updated=%d simulated=%d skipped=%d failed=%d",
		res.Count(ActionUpdated), res.Count(ActionSimulated), res.Count(ActionSkipped), res.Count(ActionFailed))
	return res, firstErr
}

func (r *Runner) apply(ctx context.Context, g assetgroup.AssetGroup) Outcome {
	o := Outcome{Group: g, Target: r.opts.Target, At: r.now().UTC()}
	switch {
	case !g.NeedsUpdate(r.opts.Target):
		o.Action = ActionSkipped
	case r.opts.Simulate:
		o.Action = ActionSimulated
	default:
		ack, err := r.api.UpdateAssetGroup(ctx, g.ID, r.opts.Target)
		if err != nil {
			o.Action = ActionFailed
			o.Err = err
			o.Message = err.Error()
			return o
		}
		o.Action = ActionUpdated
		o.Message = ack.Text()
	}
	return o
}

func (r *Runner) notify(ctx context.Context, log *logging.Logger, runID string, o Outcome) {
	for _, obs := range r.opts.Observers {
		if err := obs.Observe(ctx, runID, o); err != nil {
			log.Warnf("observer failed for group %s: %v", o.Group.ID, err)
		}
	}
}
