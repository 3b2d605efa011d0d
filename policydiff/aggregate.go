package policydiff

import (
	"fmt"
	"time"
)

// NoChangesSummary is the summary of a comparison whose normalized texts match.
const NoChangesSummary = "No meaningful changes detected"

// Aggregate rolls changes up into one ComparisonResult. The summary is a
// fixed template over the counts, so it can be rebuilt from the result alone.
func Aggregate(policyName string, changes []ChangeDetail, now time.Time) *ComparisonResult {
	var counts ChangeCounts
	for _, c := range changes {
		switch c.Impact {
		case Critical:
			counts.Critical++
		case Important:
			counts.Important++
		default:
			counts.Minor++
		}
	}

	if changes == nil {
		changes = []ChangeDetail{}
	}
	return &ComparisonResult{
		PolicyName:    policyName,
		HasChanges:    len(changes) > 0,
		Counts:        counts,
		OverallImpact: counts.Overall(),
		Summary:       Summarize(changes, counts),
		Changes:       changes,
		ComparedAt:    now,
	}
}

// Summarize renders the summary line for changes.
func Summarize(changes []ChangeDetail, counts ChangeCounts) string {
	if len(changes) == 0 {
		return NoChangesSummary
	}

	var added, removed, modified int
	for _, c := range changes {
		switch c.Kind {
		case Added:
			added++
		case Removed:
			removed++
		case Modified:
			modified++
		}
	}

	s := fmt.Sprintf("Detected %d changes: %d additions, %d removals, %d modifications",
		len(changes), added, removed, modified)
	if counts.Critical > 0 {
		s += fmt.Sprintf(". CRITICAL: %d changes require immediate attention", counts.Critical)
	}
	if counts.Important > 0 {
		s += fmt.Sprintf(". IMPORTANT: %d changes should be reviewed", counts.Important)
	}
	return s
}

// Compare runs the full pipeline on two raw texts. Texts equal after
// Normalize short-circuit to a zero-change result.
func Compare(policyName, oldText, newText string, now time.Time) *ComparisonResult {
	oldNorm, newNorm := Normalize(oldText), Normalize(newText)
	if oldNorm == newNorm {
		return Aggregate(policyName, nil, now)
	}

	a, b := Paragraphs(oldNorm), Paragraphs(newNorm)
	return Aggregate(policyName, ClassifyAll(Align(a, b), a, b), now)
}

// CompareSnapshots compares two snapshots of the same policy.
func CompareSnapshots(prev, latest Snapshot, now time.Time) *ComparisonResult {
	return Compare(latest.PolicyName, prev.Content, latest.Content, now)
}
