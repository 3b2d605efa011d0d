package sink

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/hazyhaar/polwatch/policydiff"
	"github.com/hazyhaar/polwatch/workflow"
)

// Router fans a comparison out to several sinks under one role. One sink
// failing does not skip the others; the outcome is OK only if all were.
// It is a workflow.Fanout: the coordinator runs each backend as its own
// task and never calls Apply, so a retry does not redeliver to backends
// that already succeeded. Apply serves direct callers.
type Router struct {
	name   string
	sinks  []workflow.Sink
	logger *slog.Logger
}

// NewRouter creates a fan-out router named name.
func NewRouter(name string, logger *slog.Logger, sinks ...workflow.Sink) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{name: name, sinks: sinks, logger: logger}
}

func (r *Router) Name() string { return r.name }

// Backends returns the sinks behind the router, in order.
func (r *Router) Backends() []workflow.Sink { return r.sinks }

// Len returns the number of sinks behind the router.
func (r *Router) Len() int { return len(r.sinks) }

func (r *Router) Apply(ctx context.Context, policyName string, res *policydiff.ComparisonResult) (workflow.Outcome, error) {
	var errs []error
	var rejected []string
	for _, s := range r.sinks {
		out, err := s.Apply(ctx, policyName, res)
		switch {
		case err != nil:
			r.logger.Warn("sink: apply failed", "role", r.name, "sink", s.Name(), "error", err)
			errs = append(errs, err)
		case !out.OK:
			r.logger.Warn("sink: apply rejected", "role", r.name, "sink", s.Name(), "error", out.Error)
			rejected = append(rejected, out.Error)
		}
	}
	if len(errs) > 0 {
		return workflow.Outcome{}, errors.Join(errs...)
	}
	if len(rejected) > 0 {
		return workflow.Outcome{OK: false, Error: strings.Join(rejected, "; ")}, nil
	}
	return ok(), nil
}
