// CLAUDE:SUMMARY Core policy comparison types: ChangeType, ImpactLevel, ChangeDetail, ComparisonResult, Snapshot, Report.
// Package policydiff decides whether two versions of a policy document differ
// in a meaningful way.
//
// The pipeline is pure and deterministic:
//
//	Normalize -> Paragraphs -> Align (opcodes) -> Classify -> Aggregate
//
// Compare runs all of it. Comparator adds a clock and an in-memory history on
// top for long-running services.
package policydiff

import "time"

// ChangeType is the kind of a single change.
type ChangeType string

const (
	Added    ChangeType = "added"
	Removed  ChangeType = "removed"
	Modified ChangeType = "modified"
)

// Valid reports whether t is one of the three known kinds.
func (t ChangeType) Valid() bool {
	switch t {
	case Added, Removed, Modified:
		return true
	}
	return false
}

func (t ChangeType) String() string { return string(t) }

// ImpactLevel is the severity tag of a change and of a whole comparison.
type ImpactLevel string

const (
	Critical  ImpactLevel = "critical"
	Important ImpactLevel = "important"
	Minor     ImpactLevel = "minor"
)

// Valid reports whether l is one of the three known levels.
func (l ImpactLevel) Valid() bool {
	switch l {
	case Critical, Important, Minor:
		return true
	}
	return false
}

// Rank orders levels: critical 2, important 1, minor 0. Unknown levels rank -1.
func (l ImpactLevel) Rank() int {
	switch l {
	case Critical:
		return 2
	case Important:
		return 1
	case Minor:
		return 0
	}
	return -1
}

func (l ImpactLevel) String() string { return string(l) }

// Snapshot is one captured version of a policy document.
type Snapshot struct {
	PolicyName string    `json:"policy_name"`
	Content    string    `json:"content"`
	CapturedAt time.Time `json:"captured_at"`
}

// ChangeDetail is one classified unit of difference. OriginalText is nil for
// additions, NewText is nil for removals.
type ChangeDetail struct {
	Kind         ChangeType  `json:"type"`
	Description  string      `json:"description"`
	Impact       ImpactLevel `json:"impact"`
	OriginalText *string     `json:"original_text,omitempty"`
	NewText      *string     `json:"new_text,omitempty"`
	Confidence   float64     `json:"confidence"`
}

// ChangeCounts tallies changes per impact level.
type ChangeCounts struct {
	Critical  int `json:"critical"`
	Important int `json:"important"`
	Minor     int `json:"minor"`
}

// Total is the sum of all levels.
func (c ChangeCounts) Total() int { return c.Critical + c.Important + c.Minor }

// Overall derives the document-level verdict from the counts.
func (c ChangeCounts) Overall() ImpactLevel {
	switch {
	case c.Critical > 0:
		return Critical
	case c.Important > 0:
		return Important
	default:
		return Minor
	}
}

// ComparisonResult is the aggregated verdict for one old/new pair.
// HasChanges is always len(Changes) > 0 and OverallImpact is always
// Counts.Overall(); both are set by Aggregate and never touched after.
type ComparisonResult struct {
	PolicyName    string         `json:"policy_name"`
	HasChanges    bool           `json:"has_changes"`
	Counts        ChangeCounts   `json:"change_counts"`
	OverallImpact ImpactLevel    `json:"overall_impact"`
	Summary       string         `json:"summary"`
	Changes       []ChangeDetail `json:"changes"`
	ComparedAt    time.Time      `json:"compared_at"`
}

// Report is the serialized boundary shape handed to sinks and reporting layers.
type Report struct {
	PolicyName       string         `json:"policy_name"`
	HasChanges       bool           `json:"has_changes"`
	TotalChanges     int            `json:"total_changes"`
	CriticalChanges  int            `json:"critical_changes"`
	ImportantChanges int            `json:"important_changes"`
	MinorChanges     int            `json:"minor_changes"`
	OverallImpact    ImpactLevel    `json:"overall_impact"`
	Summary          string         `json:"summary"`
	Changes          []ReportChange `json:"changes"`
	Timestamp        string         `json:"timestamp"`
}

// ReportChange is the serialized form of a ChangeDetail (texts omitted).
type ReportChange struct {
	Type        ChangeType  `json:"type"`
	Description string      `json:"description"`
	Impact      ImpactLevel `json:"impact"`
	Confidence  float64     `json:"confidence"`
}

// Serialize converts r to its boundary shape.
func (r *ComparisonResult) Serialize() Report {
	changes := make([]ReportChange, 0, len(r.Changes))
	for _, c := range r.Changes {
		changes = append(changes, ReportChange{
			Type:        c.Kind,
			Description: c.Description,
			Impact:      c.Impact,
			Confidence:  c.Confidence,
		})
	}
	return Report{
		PolicyName:       r.PolicyName,
		HasChanges:       r.HasChanges,
		TotalChanges:     len(r.Changes),
		CriticalChanges:  r.Counts.Critical,
		ImportantChanges: r.Counts.Important,
		MinorChanges:     r.Counts.Minor,
		OverallImpact:    r.OverallImpact,
		Summary:          r.Summary,
		Changes:          changes,
		Timestamp:        r.ComparedAt.UTC().Format(time.RFC3339),
	}
}
