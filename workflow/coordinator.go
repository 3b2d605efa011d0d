// CLAUDE:SUMMARY Coordinator: acquire -> compare -> soft-fail sinks for one policy, session-tracked; CheckBatch pauses between policies.
package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/hazyhaar/polwatch/policydiff"
)

// Step names used for tasks, metrics and failed_step.
const (
	StepAcquire = "acquire"
	StepCompare = "compare"
)

// SnapshotSource yields the stored versions of a policy, oldest first.
type SnapshotSource interface {
	ListSnapshots(ctx context.Context, policyName string) ([]policydiff.Snapshot, error)
}

// Outcome is a sink's verdict on one comparison.
type Outcome struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

// Sink consumes a comparison that found changes. Its Name is its role in
// the report (update, notify, memory).
type Sink interface {
	Name() string
	Apply(ctx context.Context, policyName string, res *policydiff.ComparisonResult) (Outcome, error)
}

// Fanout is a Sink that groups several backends under one role. The
// coordinator runs each backend as its own task, so a retry only reaches the
// backends that have not succeeded yet.
type Fanout interface {
	Sink
	Backends() []Sink
}

// StaticSource is an in-memory SnapshotSource keyed by policy name.
type StaticSource map[string][]policydiff.Snapshot

// ListSnapshots returns a copy of the snapshots of policyName.
func (s StaticSource) ListSnapshots(_ context.Context, policyName string) ([]policydiff.Snapshot, error) {
	return append([]policydiff.Snapshot(nil), s[policyName]...), nil
}

// Status is the terminal outcome of a check.
type Status string

const (
	StatusSuccess        Status = "success"
	StatusNoChanges      Status = "no_changes"
	StatusBaselineStored Status = "baseline_stored"
	StatusFailed         Status = "failed"
)

// DownstreamResult records what one sink did. For a Fanout, OK holds only
// if every backend succeeded, Attempts is the highest backend count and
// Backends lists each one in order.
type DownstreamResult struct {
	Sink     string             `json:"sink"`
	OK       bool               `json:"ok"`
	Error    string             `json:"error,omitempty"`
	Attempts int                `json:"attempts"`
	Backends []DownstreamResult `json:"backends,omitempty"`
}

// Report is the structured result of one check. It is always returned;
// failures are described, never raised.
type Report struct {
	Status     Status             `json:"status"`
	PolicyName string             `json:"policy_name"`
	SessionID  string             `json:"session_id"`
	Comparison *policydiff.Report `json:"comparison,omitempty"`
	Downstream []DownstreamResult `json:"downstream"`
	FailedStep string             `json:"failed_step,omitempty"`
	Attempts   int                `json:"attempts,omitempty"`
	Error      string             `json:"error,omitempty"`

	// Result is the comparison behind Comparison, nil when none ran.
	Result *policydiff.ComparisonResult `json:"-"`
}

// BatchReport.Status values.
const (
	BatchComplete    = "batch_complete"
	BatchInterrupted = "batch_interrupted"
)

// BatchReport collects the reports of CheckBatch.
type BatchReport struct {
	Status        string    `json:"status"`
	TotalPolicies int       `json:"total_policies"`
	Results       []*Report `json:"results"`
	Timestamp     string    `json:"timestamp"`
}

// Coordinator sequences one policy check through the runner.
type Coordinator struct {
	source     SnapshotSource
	runner     *Runner
	sessions   *Sessions
	sinks      []Sink
	comparator *policydiff.Comparator
	compare    func(prev, latest policydiff.Snapshot) *policydiff.ComparisonResult
	pause      time.Duration
	now        func() time.Time
	onReport   func(*Report)
	logger     *slog.Logger
}

// CoordinatorOption configures a Coordinator.
type CoordinatorOption func(*Coordinator)

// WithSinks appends sinks. They run in the order given.
func WithSinks(sinks ...Sink) CoordinatorOption {
	return func(c *Coordinator) { c.sinks = append(c.sinks, sinks...) }
}

// WithComparator sets the comparator used by the compare step.
func WithComparator(cmp *policydiff.Comparator) CoordinatorOption {
	return func(c *Coordinator) { c.comparator = cmp }
}

// WithBatchPause sets the pause between policies in CheckBatch. Default: 1s.
func WithBatchPause(d time.Duration) CoordinatorOption {
	return func(c *Coordinator) { c.pause = d }
}

// WithCoordinatorClock sets the clock stamped on batch reports.
func WithCoordinatorClock(now func() time.Time) CoordinatorOption {
	return func(c *Coordinator) { c.now = now }
}

// WithReportHook calls fn with every finished Report.
func WithReportHook(fn func(*Report)) CoordinatorOption {
	return func(c *Coordinator) { c.onReport = fn }
}

// WithCoordinatorLogger sets the logger. Default: slog.Default().
func WithCoordinatorLogger(l *slog.Logger) CoordinatorOption {
	return func(c *Coordinator) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewCoordinator creates a Coordinator. Nil runner or sessions get defaults.
func NewCoordinator(source SnapshotSource, runner *Runner, sessions *Sessions, opts ...CoordinatorOption) *Coordinator {
	if runner == nil {
		runner = NewRunner()
	}
	if sessions == nil {
		sessions = NewSessions(nil, nil)
	}
	c := &Coordinator{
		source:   source,
		runner:   runner,
		sessions: sessions,
		pause:    time.Second,
		now:      time.Now,
		logger:   slog.Default(),
	}
	for _, o := range opts {
		o(c)
	}
	if c.comparator == nil {
		c.comparator = policydiff.NewComparator(policydiff.WithLogger(c.logger))
	}
	c.compare = c.comparator.CompareSnapshots
	return c
}

// Runner returns the coordinator's runner.
func (c *Coordinator) Runner() *Runner { return c.runner }

// Sessions returns the coordinator's session manager.
func (c *Coordinator) Sessions() *Sessions { return c.sessions }

// Comparator returns the comparator used by the compare step.
func (c *Coordinator) Comparator() *policydiff.Comparator { return c.comparator }

// Check runs one policy check: acquire, compare, then every sink.
func (c *Coordinator) Check(ctx context.Context, policyName string) *Report {
	rep := c.check(ctx, policyName)
	if c.onReport != nil {
		c.onReport(rep)
	}
	return rep
}

func (c *Coordinator) check(ctx context.Context, policyName string) *Report {
	sid := c.sessions.Create(policyName)
	ctx = WithSessionID(ctx, sid)
	rep := &Report{PolicyName: policyName, SessionID: sid, Downstream: []DownstreamResult{}}
	c.logger.Info("workflow: check started", "policy", policyName, "session_id", sid)

	acq := c.runner.Run(ctx, c.runner.NewTask(StepAcquire, policyName), func(ctx context.Context) (any, error) {
		return c.source.ListSnapshots(ctx, policyName)
	})
	if !acq.OK {
		return c.fail(rep, StepAcquire, acq)
	}
	snaps, _ := acq.Value.([]policydiff.Snapshot)
	if len(snaps) < 2 {
		rep.Status = StatusBaselineStored
		c.sessions.End(sid, SessionBaselineStored, map[string]any{"snapshots": len(snaps)})
		c.logger.Info("workflow: baseline stored", "policy", policyName, "snapshots", len(snaps))
		return rep
	}
	prev, latest := snaps[len(snaps)-2], snaps[len(snaps)-1]

	cmp := c.runner.Run(ctx, c.runner.NewTask(StepCompare, policyName), func(context.Context) (any, error) {
		return c.compare(prev, latest), nil
	})
	if !cmp.OK {
		return c.fail(rep, StepCompare, cmp)
	}
	res, ok := cmp.Value.(*policydiff.ComparisonResult)
	if !ok || res == nil {
		cmp.Err = fmt.Errorf("workflow: compare returned %T", cmp.Value)
		return c.fail(rep, StepCompare, cmp)
	}
	serialized := res.Serialize()
	rep.Result, rep.Comparison = res, &serialized

	if !res.HasChanges {
		rep.Status = StatusNoChanges
		c.sessions.End(sid, SessionNoChanges, map[string]any{"summary": res.Summary})
		c.logger.Info("workflow: no meaningful changes", "policy", policyName)
		return rep
	}

	failures := 0
	for _, s := range c.sinks {
		d := c.runSink(ctx, s, policyName, res)
		if !d.OK {
			failures++
		}
		rep.Downstream = append(rep.Downstream, d)
	}

	rep.Status = StatusSuccess
	c.sessions.End(sid, SessionSuccess, map[string]any{
		"changes_detected":    len(res.Changes),
		"critical_changes":    res.Counts.Critical,
		"overall_impact":      string(res.OverallImpact),
		"downstream_failures": failures,
	})
	c.logger.Info("workflow: check complete",
		"policy", policyName, "session_id", sid,
		"changes", len(res.Changes), "overall_impact", res.OverallImpact,
		"downstream_failures", failures)
	return rep
}

func (c *Coordinator) runSink(ctx context.Context, s Sink, policyName string, res *policydiff.ComparisonResult) DownstreamResult {
	f, ok := s.(Fanout)
	if !ok {
		return c.runBackend(ctx, s, policyName, res)
	}
	d := DownstreamResult{Sink: s.Name(), OK: true}
	var errs []string
	for _, b := range f.Backends() {
		bd := c.runBackend(ctx, b, policyName, res)
		d.Backends = append(d.Backends, bd)
		d.Attempts = max(d.Attempts, bd.Attempts)
		if !bd.OK {
			d.OK = false
			errs = append(errs, bd.Error)
		}
	}
	d.Error = strings.Join(errs, "; ")
	return d
}

func (c *Coordinator) runBackend(ctx context.Context, s Sink, policyName string, res *policydiff.ComparisonResult) DownstreamResult {
	name := s.Name()
	out := c.runner.Run(ctx, c.runner.NewTask(name, policyName), func(ctx context.Context) (any, error) {
		o, err := s.Apply(ctx, policyName, res)
		if err != nil {
			return nil, err
		}
		if !o.OK {
			return nil, fmt.Errorf("%w: %s", ErrSinkFailed, o.Error)
		}
		return o, nil
	})

	d := DownstreamResult{Sink: name, OK: out.OK, Attempts: out.Attempts}
	if !out.OK {
		d.Error = out.Err.Error()
		c.logger.Warn("workflow: downstream failed", "policy", policyName, "sink", name, "error", out.Err)
	}
	return d
}

func (c *Coordinator) fail(rep *Report, step string, res StepResult) *Report {
	rep.Status = StatusFailed
	rep.FailedStep = step
	rep.Attempts = res.Attempts
	if res.Err != nil {
		rep.Error = res.Err.Error()
	}
	c.sessions.End(rep.SessionID, SessionFailed, map[string]any{
		"failed_step": step,
		"attempts":    res.Attempts,
		"error":       rep.Error,
	})
	c.logger.Error("workflow: check failed", "policy", rep.PolicyName, "step", step, "attempts", res.Attempts, "error", rep.Error)
	return rep
}

// CheckBatch checks policies one after another. Each check after the first
// starts only once the pause has elapsed since the previous one finished.
// It stops early only when ctx is cancelled.
func (c *Coordinator) CheckBatch(ctx context.Context, policies []string) *BatchReport {
	c.logger.Info("workflow: batch started", "policies", len(policies))

	br := &BatchReport{Status: BatchComplete, TotalPolicies: len(policies), Results: make([]*Report, 0, len(policies))}
	for i, p := range policies {
		var err error
		if i > 0 {
			err = c.pauseBetween(ctx)
		} else {
			err = ctx.Err()
		}
		if err != nil {
			br.Status = BatchInterrupted
			c.logger.Warn("workflow: batch interrupted", "remaining", len(policies)-len(br.Results), "error", err)
			break
		}
		br.Results = append(br.Results, c.Check(ctx, p))
	}
	br.Timestamp = c.now().UTC().Format(time.RFC3339)
	return br
}

func (c *Coordinator) pauseBetween(ctx context.Context) error {
	if c.pause <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(c.pause)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
