// CLAUDE:SUMMARY In-process callback sink delivering comparisons via Go function calls with zero serialization.
package sink

import (
	"context"

	"github.com/hazyhaar/polwatch/policydiff"
	"github.com/hazyhaar/polwatch/workflow"
)

// ApplyFunc handles one comparison in-process.
type ApplyFunc func(ctx context.Context, policyName string, res *policydiff.ComparisonResult) error

// Callback delivers comparisons via Go function calls. A nil fn accepts
// everything.
type Callback struct {
	name string
	fn   ApplyFunc
}

// NewCallback creates a Callback sink.
func NewCallback(name string, fn ApplyFunc) *Callback {
	return &Callback{name: name, fn: fn}
}

func (c *Callback) Name() string { return c.name }

func (c *Callback) Apply(ctx context.Context, policyName string, res *policydiff.ComparisonResult) (workflow.Outcome, error) {
	if c.fn != nil {
		if err := c.fn(ctx, policyName, res); err != nil {
			return workflow.Outcome{OK: false, Error: err.Error()}, nil
		}
	}
	return ok(), nil
}
