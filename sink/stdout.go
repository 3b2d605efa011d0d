// CLAUDE:SUMMARY Writes comparison events as JSON lines to an io.Writer (defaults to stdout).
package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/hazyhaar/polwatch/policydiff"
	"github.com/hazyhaar/polwatch/workflow"
)

// Stdout writes JSON lines to an io.Writer (default os.Stdout).
type Stdout struct {
	name string
	diff DiffFunc

	mu  sync.Mutex
	enc *json.Encoder
}

// NewStdout creates a Stdout sink. If w is nil, os.Stdout is used. diff
// may be nil.
func NewStdout(name string, w io.Writer, diff DiffFunc) *Stdout {
	if w == nil {
		w = os.Stdout
	}
	return &Stdout{name: name, diff: diff, enc: json.NewEncoder(w)}
}

func (s *Stdout) Name() string { return s.name }

func (s *Stdout) Apply(ctx context.Context, policyName string, res *policydiff.ComparisonResult) (workflow.Outcome, error) {
	env := envelope{Type: "comparison", SessionID: workflow.SessionIDFromContext(ctx), Data: res.Serialize()}
	if s.diff != nil {
		d, err := s.diff(ctx, policyName)
		if err != nil {
			return workflow.Outcome{}, fmt.Errorf("stdout: diff: %w", err)
		}
		env.Diff = d
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enc.Encode(env); err != nil {
		return workflow.Outcome{}, fmt.Errorf("stdout: encode: %w", err)
	}
	return ok(), nil
}
