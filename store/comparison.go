package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hazyhaar/polwatch/dbopen"
	"github.com/hazyhaar/polwatch/policydiff"
)

// ActionComparisonRecorded is the audit action written by RecordComparison.
const ActionComparisonRecorded = "comparison_recorded"

// ComparisonRecord is a stored comparison row.
type ComparisonRecord struct {
	ID            string                  `json:"id"`
	PolicyName    string                  `json:"policy_name"`
	SessionID     string                  `json:"session_id,omitempty"`
	HasChanges    bool                    `json:"has_changes"`
	Counts        policydiff.ChangeCounts `json:"change_counts"`
	OverallImpact policydiff.ImpactLevel  `json:"overall_impact"`
	Summary       string                  `json:"summary"`
	Report        policydiff.Report       `json:"report"`
	ComparedAt    time.Time               `json:"compared_at"`
}

// RecordComparison stores res and an audit entry for it in one transaction.
func (s *Store) RecordComparison(ctx context.Context, sessionID string, res *policydiff.ComparisonResult) (*ComparisonRecord, error) {
	rec := &ComparisonRecord{
		ID:            s.ids(),
		PolicyName:    res.PolicyName,
		SessionID:     sessionID,
		HasChanges:    res.HasChanges,
		Counts:        res.Counts,
		OverallImpact: res.OverallImpact,
		Summary:       res.Summary,
		Report:        res.Serialize(),
		ComparedAt:    res.ComparedAt.UTC(),
	}
	counts, err := json.Marshal(rec.Counts)
	if err != nil {
		return nil, fmt.Errorf("store: marshal counts: %w", err)
	}
	report, err := json.Marshal(rec.Report)
	if err != nil {
		return nil, fmt.Errorf("store: marshal report: %w", err)
	}
	details, err := json.Marshal(map[string]any{
		"comparison_id":  rec.ID,
		"total_changes":  len(res.Changes),
		"overall_impact": res.OverallImpact,
	})
	if err != nil {
		return nil, fmt.Errorf("store: marshal audit details: %w", err)
	}

	err = dbopen.RunTx(ctx, s.DB, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO comparisons (id, policy_name, session_id, has_changes, counts,
			overall_impact, summary, report_json, compared_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			rec.ID, rec.PolicyName, rec.SessionID, rec.HasChanges, string(counts),
			string(rec.OverallImpact), rec.Summary, string(report), toMillis(rec.ComparedAt),
		); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx,
			`INSERT INTO audit_log (id, session_id, policy_name, action, details, created_at)
			VALUES (?, ?, ?, ?, ?, ?)`,
			s.ids(), sessionID, rec.PolicyName, ActionComparisonRecorded, string(details), toMillis(s.now()))
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("store: record comparison: %w", err)
	}
	return rec, nil
}

// PolicyHistory returns the stored comparisons of a policy, newest first.
// limit <= 0 returns all of them.
func (s *Store) PolicyHistory(ctx context.Context, policyName string, limit int) ([]*ComparisonRecord, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.DB.QueryContext(ctx,
		`SELECT id, policy_name, session_id, has_changes, counts, overall_impact,
		summary, report_json, compared_at
		FROM comparisons WHERE policy_name = ?
		ORDER BY compared_at DESC, rowid DESC LIMIT ?`, policyName, limit)
	if err != nil {
		return nil, fmt.Errorf("store: policy history: %w", err)
	}
	defer rows.Close()

	var out []*ComparisonRecord
	for rows.Next() {
		r, err := scanComparison(rows)
		if err != nil {
			return nil, fmt.Errorf("store: scan comparison: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// GetComparison returns one comparison by ID, or ErrNotFound.
func (s *Store) GetComparison(ctx context.Context, id string) (*ComparisonRecord, error) {
	row := s.DB.QueryRowContext(ctx,
		`SELECT id, policy_name, session_id, has_changes, counts, overall_impact,
		summary, report_json, compared_at
		FROM comparisons WHERE id = ?`, id)
	r, err := scanComparison(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: get comparison: %w", err)
	}
	return r, nil
}

func scanComparison(sc scanner) (*ComparisonRecord, error) {
	var r ComparisonRecord
	var counts, report, impact string
	var compared int64
	if err := sc.Scan(&r.ID, &r.PolicyName, &r.SessionID, &r.HasChanges, &counts,
		&impact, &r.Summary, &report, &compared); err != nil {
		return nil, err
	}
	r.OverallImpact = policydiff.ImpactLevel(impact)
	r.ComparedAt = fromMillis(compared)
	if err := json.Unmarshal([]byte(counts), &r.Counts); err != nil {
		return nil, fmt.Errorf("counts: %w", err)
	}
	if err := json.Unmarshal([]byte(report), &r.Report); err != nil {
		return nil, fmt.Errorf("report: %w", err)
	}
	return &r, nil
}
