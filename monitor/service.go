// CLAUDE:SUMMARY polwatch service: wires store, runner, sessions, coordinator, sinks, scheduler and metrics from Config.
// Package monitor assembles the polwatch components into one service and
// exposes it over HTTP and MCP.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/hazyhaar/polwatch/policydiff"
	"github.com/hazyhaar/polwatch/sink"
	"github.com/hazyhaar/polwatch/store"
	"github.com/hazyhaar/polwatch/watch"
	"github.com/hazyhaar/polwatch/workflow"
)

// Service is a running polwatch instance.
type Service struct {
	cfg      *Config
	store    *store.Store
	ownStore bool
	metrics  *Metrics
	coord    *workflow.Coordinator
	sched    *workflow.Scheduler
	watcher  *watch.Watcher
	logger   *slog.Logger
}

// Option configures a Service.
type Option func(*options)

type options struct {
	store      *store.Store
	stdout     io.Writer
	runnerOpts []workflow.RunnerOption
	extraSinks []workflow.Sink
}

// WithStore uses an already opened store instead of opening cfg.DBPath.
// The caller keeps ownership.
func WithStore(s *store.Store) Option {
	return func(o *options) { o.store = s }
}

// WithStdout sets where stdout sinks write. Default: os.Stdout.
func WithStdout(w io.Writer) Option {
	return func(o *options) { o.stdout = w }
}

// WithRunnerOptions passes extra options to the step runner, after the ones
// derived from cfg.Retry.
func WithRunnerOptions(opts ...workflow.RunnerOption) Option {
	return func(o *options) { o.runnerOpts = append(o.runnerOpts, opts...) }
}

// WithSinks appends sinks after the configured ones.
func WithSinks(sinks ...workflow.Sink) Option {
	return func(o *options) { o.extraSinks = append(o.extraSinks, sinks...) }
}

// New builds a Service from cfg.
func New(cfg *Config, logger *slog.Logger, opts ...Option) (*Service, error) {
	if cfg == nil {
		cfg = &Config{}
	}
	cfg.defaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	var o options
	for _, fn := range opts {
		fn(&o)
	}

	s := &Service{cfg: cfg, store: o.store, metrics: NewMetrics(), logger: logger}
	if s.store == nil {
		st, err := store.Open(cfg.DBPath)
		if err != nil {
			return nil, fmt.Errorf("monitor: open store: %w", err)
		}
		s.store, s.ownStore = st, true
	}

	runner := workflow.NewRunner(append([]workflow.RunnerOption{
		workflow.WithMaxRetries(cfg.Retry.MaxRetries),
		workflow.WithBackoffUnit(cfg.Retry.BackoffUnit),
		workflow.WithObserver(s.metrics),
		workflow.WithRunnerLogger(logger),
	}, o.runnerOpts...)...)

	sinks := append(s.buildSinks(o.stdout), o.extraSinks...)

	s.coord = workflow.NewCoordinator(s.store, runner, workflow.NewSessions(nil, nil),
		workflow.WithSinks(sinks...),
		workflow.WithBatchPause(cfg.BatchPause),
		workflow.WithReportHook(s.metrics.ObserveReport),
		workflow.WithCoordinatorLogger(logger),
	)
	s.sched = workflow.NewScheduler(s.coord, s.policyLister(), cfg.Schedule.Interval, logger)
	s.watcher = watch.New(s.store, s.checkArrivals, watch.Options{
		Interval: cfg.Watch.Interval,
		Debounce: cfg.Watch.Debounce,
		Logger:   logger,
	})

	logger.Info("monitor: service ready", "db", cfg.DBPath, "sinks", len(sinks), "policies", len(cfg.Policies))
	return s, nil
}

// buildSinks groups configured sinks by name, keeping first-seen order. A
// group of one is used as is; larger groups become a Router, whose backends
// the coordinator retries one by one.
func (s *Service) buildSinks(stdout io.Writer) []workflow.Sink {
	var order []string
	groups := make(map[string][]workflow.Sink)
	for _, sc := range s.cfg.Sinks {
		var diff sink.DiffFunc
		if sc.IncludeDiff {
			diff = s.Diff
		}
		var sk workflow.Sink
		switch sc.Type {
		case SinkWebhook:
			sk = sink.NewWebhook(sc.Name, sc.URL,
				sink.WithWebhookDiff(diff),
				sink.WithWebhookRate(sc.RatePerMinute),
				sink.WithWebhookLogger(s.logger))
		case SinkStdout:
			sk = sink.NewStdout(sc.Name, stdout, diff)
		case SinkMemory:
			sk = sink.NewMemory(sc.Name, s.store)
		}
		if _, seen := groups[sc.Name]; !seen {
			order = append(order, sc.Name)
		}
		groups[sc.Name] = append(groups[sc.Name], sk)
	}

	out := make([]workflow.Sink, 0, len(order))
	for _, name := range order {
		g := groups[name]
		if len(g) == 1 {
			out = append(out, g[0])
			continue
		}
		out = append(out, sink.NewRouter(name, s.logger, g...))
	}
	return out
}

func (s *Service) policyLister() workflow.PolicyLister {
	if len(s.cfg.Policies) > 0 {
		return workflow.StaticPolicies(s.cfg.Policies...)
	}
	return s.store.PolicyNames
}

// Close releases the store when the service opened it.
func (s *Service) Close() error {
	if s.ownStore {
		return s.store.Close()
	}
	return nil
}

// Config returns the effective configuration, defaults applied.
func (s *Service) Config() *Config { return s.cfg }

// Store returns the underlying store.
func (s *Service) Store() *store.Store { return s.store }

// Metrics returns the service counters.
func (s *Service) Metrics() *Metrics { return s.metrics }

// Coordinator returns the workflow coordinator.
func (s *Service) Coordinator() *workflow.Coordinator { return s.coord }

// RunScheduler checks the configured policies on the schedule until ctx is
// cancelled.
func (s *Service) RunScheduler(ctx context.Context) {
	s.sched.Run(ctx)
}

// RunWatcher checks policies as new snapshots arrive until ctx is cancelled.
// It returns at once when watching is disabled.
func (s *Service) RunWatcher(ctx context.Context) {
	if !s.cfg.Watch.Enabled {
		return
	}
	s.watcher.Run(ctx)
}

func (s *Service) checkArrivals(ctx context.Context, policies []string) error {
	br := s.coord.CheckBatch(ctx, policies)
	if br.Status == workflow.BatchInterrupted {
		return ctx.Err()
	}
	return nil
}

// AddSnapshot stores a new version of a policy. ErrUnchanged from the store
// is passed through.
func (s *Service) AddSnapshot(ctx context.Context, policyName, sourceURL, content string) (*store.SnapshotRecord, error) {
	if err := checkPolicyName(policyName); err != nil {
		return nil, err
	}
	if strings.TrimSpace(content) == "" {
		return nil, fmt.Errorf("%w: empty content", ErrInvalidInput)
	}
	rec, err := s.store.AddSnapshot(ctx, policyName, sourceURL, content, time.Time{})
	if errors.Is(err, store.ErrUnchanged) {
		s.logger.Info("monitor: snapshot unchanged", "policy", policyName)
		return nil, err
	}
	if err != nil {
		return nil, err
	}
	s.logger.Info("monitor: snapshot stored", "policy", policyName, "id", rec.ID, "hash", rec.ContentHash[:12])
	return rec, nil
}

// Check runs one policy check.
func (s *Service) Check(ctx context.Context, policyName string) (*workflow.Report, error) {
	if err := checkPolicyName(policyName); err != nil {
		return nil, err
	}
	return s.coord.Check(ctx, policyName), nil
}

// CheckBatch checks policies in order. An empty list checks every
// configured (or stored) policy.
func (s *Service) CheckBatch(ctx context.Context, policies []string) (*workflow.BatchReport, error) {
	if len(policies) == 0 {
		var err error
		if policies, err = s.policyLister()(ctx); err != nil {
			return nil, err
		}
	}
	for _, p := range policies {
		if err := checkPolicyName(p); err != nil {
			return nil, err
		}
	}
	return s.coord.CheckBatch(ctx, policies), nil
}

// CompareResponse is a comparison with its optional unified diff.
type CompareResponse struct {
	policydiff.Report
	Diff string `json:"diff,omitempty"`
}

// Compare compares two texts without touching the store.
func (s *Service) Compare(policyName, oldText, newText string, includeDiff bool) (*CompareResponse, error) {
	if err := checkPolicyName(policyName); err != nil {
		return nil, err
	}
	res := s.coord.Comparator().Compare(policyName, oldText, newText)
	resp := &CompareResponse{Report: res.Serialize()}
	if includeDiff && res.HasChanges {
		d, err := policydiff.UnifiedDiff(policyName, oldText, newText)
		if err != nil {
			return nil, err
		}
		resp.Diff = d
	}
	return resp, nil
}

// Diff renders the unified diff between the two newest snapshots of a
// policy, or "" when fewer than two exist.
func (s *Service) Diff(ctx context.Context, policyName string) (string, error) {
	snaps, err := s.store.ListSnapshots(ctx, policyName)
	if err != nil {
		return "", err
	}
	if len(snaps) < 2 {
		return "", nil
	}
	prev, latest := snaps[len(snaps)-2], snaps[len(snaps)-1]
	return policydiff.UnifiedDiff(policyName, prev.Content, latest.Content)
}

// Stats is the service-wide view served by /v1/stats and polwatch_stats.
type Stats struct {
	Workflow       workflow.Stats   `json:"workflow"`
	Comparisons    policydiff.Stats `json:"comparisons"`
	ActiveSessions int              `json:"sessions_active"`
	Watch          watch.Stats      `json:"watch,omitzero"`
}

// Stats snapshots the runner, comparator and session counters.
func (s *Service) Stats() Stats {
	return Stats{
		Workflow:       s.coord.Runner().Stats(),
		Comparisons:    s.coord.Comparator().Stats(),
		ActiveSessions: s.coord.Sessions().ActiveCount(),
		Watch:          s.watcher.Stats(),
	}
}

// Task looks up a task by ID.
func (s *Service) Task(id string) (workflow.Task, bool) {
	return s.coord.Runner().Task(id)
}

// Session looks up a session by ID, active or completed.
func (s *Service) Session(id string) (workflow.Session, bool) {
	return s.coord.Sessions().Lookup(id)
}

func checkPolicyName(name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("%w: empty policy name", ErrInvalidInput)
	}
	return nil
}
