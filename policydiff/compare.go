package policydiff

import (
	"log/slog"
	"sync"
	"time"
)

// Stats summarises a Comparator's history.
type Stats struct {
	TotalComparisons       int     `json:"total_comparisons"`
	ComparisonsWithChanges int     `json:"comparisons_with_changes"`
	TotalChangesDetected   int     `json:"total_changes_detected"`
	TotalCriticalChanges   int     `json:"total_critical_changes"`
	AverageChanges         float64 `json:"average_changes_per_comparison"`
}

// Comparator runs Compare with an injectable clock and remembers every
// result it produced. Safe for concurrent use.
type Comparator struct {
	now    func() time.Time
	logger *slog.Logger
	limit  int

	mu      sync.Mutex
	history []*ComparisonResult
}

// ComparatorOption configures a Comparator.
type ComparatorOption func(*Comparator)

// WithClock sets the clock stamped on ComparedAt. Default: time.Now.
func WithClock(now func() time.Time) ComparatorOption {
	return func(c *Comparator) { c.now = now }
}

// WithLogger sets the logger. Default: slog.Default(). A nil logger is ignored.
func WithLogger(l *slog.Logger) ComparatorOption {
	return func(c *Comparator) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithHistoryLimit keeps only the n most recent results. 0 keeps everything.
func WithHistoryLimit(n int) ComparatorOption {
	return func(c *Comparator) { c.limit = n }
}

// NewComparator creates a Comparator.
func NewComparator(opts ...ComparatorOption) *Comparator {
	c := &Comparator{now: time.Now, logger: slog.Default()}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Compare compares two raw texts and records the result.
func (c *Comparator) Compare(policyName, oldText, newText string) *ComparisonResult {
	res := Compare(policyName, oldText, newText, c.now())
	c.record(res)
	c.logger.Info("policydiff: comparison complete",
		"policy", policyName,
		"total_changes", len(res.Changes),
		"overall_impact", res.OverallImpact)
	return res
}

// CompareSnapshots compares the previous and latest snapshot of a policy.
func (c *Comparator) CompareSnapshots(prev, latest Snapshot) *ComparisonResult {
	return c.Compare(latest.PolicyName, prev.Content, latest.Content)
}

func (c *Comparator) record(res *ComparisonResult) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.history = append(c.history, res)
	if c.limit > 0 && len(c.history) > c.limit {
		c.history = append([]*ComparisonResult(nil), c.history[len(c.history)-c.limit:]...)
	}
}

// History returns past results, oldest first. An empty policyName returns all.
func (c *Comparator) History(policyName string) []*ComparisonResult {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*ComparisonResult, 0, len(c.history))
	for _, r := range c.history {
		if policyName == "" || r.PolicyName == policyName {
			out = append(out, r)
		}
	}
	return out
}

// Stats aggregates the recorded history.
func (c *Comparator) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	var s Stats
	s.TotalComparisons = len(c.history)
	for _, r := range c.history {
		if r.HasChanges {
			s.ComparisonsWithChanges++
		}
		s.TotalChangesDetected += len(r.Changes)
		s.TotalCriticalChanges += r.Counts.Critical
	}
	if s.TotalComparisons > 0 {
		s.AverageChanges = float64(s.TotalChangesDetected) / float64(s.TotalComparisons)
	}
	return s
}
