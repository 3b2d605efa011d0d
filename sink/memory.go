package sink

import (
	"context"

	"github.com/hazyhaar/polwatch/policydiff"
	"github.com/hazyhaar/polwatch/store"
	"github.com/hazyhaar/polwatch/workflow"
)

// Recorder persists comparisons. *store.Store implements it.
type Recorder interface {
	RecordComparison(ctx context.Context, sessionID string, res *policydiff.ComparisonResult) (*store.ComparisonRecord, error)
}

// Memory writes every comparison, with its audit entry, to the history.
type Memory struct {
	name string
	rec  Recorder
}

// NewMemory creates a memory sink. An empty name uses RoleMemory.
func NewMemory(name string, rec Recorder) *Memory {
	if name == "" {
		name = RoleMemory
	}
	return &Memory{name: name, rec: rec}
}

func (m *Memory) Name() string { return m.name }

func (m *Memory) Apply(ctx context.Context, _ string, res *policydiff.ComparisonResult) (workflow.Outcome, error) {
	if _, err := m.rec.RecordComparison(ctx, workflow.SessionIDFromContext(ctx), res); err != nil {
		return workflow.Outcome{}, err
	}
	return ok(), nil
}
