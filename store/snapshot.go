// CLAUDE:SUMMARY Snapshot storage with content-hash dedup; implements workflow.SnapshotSource.
package store

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/hazyhaar/polwatch/dbopen"
	"github.com/hazyhaar/polwatch/policydiff"
)

// SnapshotRecord is a stored snapshot row.
type SnapshotRecord struct {
	ID          string    `json:"id"`
	PolicyName  string    `json:"policy_name"`
	SourceURL   string    `json:"source_url,omitempty"`
	Content     string    `json:"content"`
	ContentHash string    `json:"content_hash"`
	CapturedAt  time.Time `json:"captured_at"`
}

// Snapshot converts the row to the comparison input type.
func (r *SnapshotRecord) Snapshot() policydiff.Snapshot {
	return policydiff.Snapshot{PolicyName: r.PolicyName, Content: r.Content, CapturedAt: r.CapturedAt}
}

// PolicyInfo summarises the snapshots stored for one policy.
type PolicyInfo struct {
	Name           string    `json:"policy_name"`
	Snapshots      int       `json:"snapshots"`
	LastCapturedAt time.Time `json:"last_captured_at"`
}

// ContentHash returns the hex SHA-256 of content.
func ContentHash(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}

// AddSnapshot stores a new version of a policy. A zero capturedAt uses the
// store clock. When content hashes the same as the newest snapshot nothing
// is written and ErrUnchanged is returned.
func (s *Store) AddSnapshot(ctx context.Context, policyName, sourceURL, content string, capturedAt time.Time) (*SnapshotRecord, error) {
	if capturedAt.IsZero() {
		capturedAt = s.now()
	}
	rec := &SnapshotRecord{
		ID:          s.ids(),
		PolicyName:  policyName,
		SourceURL:   sourceURL,
		Content:     content,
		ContentHash: ContentHash(content),
		CapturedAt:  capturedAt.UTC(),
	}

	err := dbopen.RunTx(ctx, s.DB, func(tx *sql.Tx) error {
		var last string
		err := tx.QueryRowContext(ctx,
			`SELECT content_hash FROM snapshots WHERE policy_name = ?
			ORDER BY captured_at DESC, rowid DESC LIMIT 1`, policyName).Scan(&last)
		switch {
		case err == nil && last == rec.ContentHash:
			return ErrUnchanged
		case err != nil && !errors.Is(err, sql.ErrNoRows):
			return err
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO snapshots (id, policy_name, source_url, content, content_hash, captured_at)
			VALUES (?, ?, ?, ?, ?, ?)`,
			rec.ID, rec.PolicyName, rec.SourceURL, rec.Content, rec.ContentHash, toMillis(rec.CapturedAt))
		return err
	})
	if errors.Is(err, ErrUnchanged) {
		return nil, ErrUnchanged
	}
	if err != nil {
		return nil, fmt.Errorf("store: add snapshot: %w", err)
	}
	return rec, nil
}

// ListSnapshots returns every snapshot of a policy, oldest first.
func (s *Store) ListSnapshots(ctx context.Context, policyName string) ([]policydiff.Snapshot, error) {
	recs, err := s.SnapshotRecords(ctx, policyName)
	if err != nil {
		return nil, err
	}
	out := make([]policydiff.Snapshot, len(recs))
	for i, r := range recs {
		out[i] = r.Snapshot()
	}
	return out, nil
}

// SnapshotRecords returns the stored rows of a policy, oldest first.
func (s *Store) SnapshotRecords(ctx context.Context, policyName string) ([]*SnapshotRecord, error) {
	rows, err := s.DB.QueryContext(ctx,
		`SELECT id, policy_name, source_url, content, content_hash, captured_at
		FROM snapshots WHERE policy_name = ? ORDER BY captured_at, rowid`, policyName)
	if err != nil {
		return nil, fmt.Errorf("store: list snapshots: %w", err)
	}
	defer rows.Close()

	var recs []*SnapshotRecord
	for rows.Next() {
		r, err := scanSnapshot(rows)
		if err != nil {
			return nil, fmt.Errorf("store: scan snapshot: %w", err)
		}
		recs = append(recs, r)
	}
	return recs, rows.Err()
}

// LatestSnapshot returns the newest snapshot of a policy, or ErrNotFound.
func (s *Store) LatestSnapshot(ctx context.Context, policyName string) (*SnapshotRecord, error) {
	row := s.DB.QueryRowContext(ctx,
		`SELECT id, policy_name, source_url, content, content_hash, captured_at
		FROM snapshots WHERE policy_name = ? ORDER BY captured_at DESC, rowid DESC LIMIT 1`, policyName)
	r, err := scanSnapshot(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: latest snapshot: %w", err)
	}
	return r, nil
}

// Policies lists every policy with at least one snapshot, by name.
func (s *Store) Policies(ctx context.Context) ([]PolicyInfo, error) {
	rows, err := s.DB.QueryContext(ctx,
		`SELECT policy_name, COUNT(*), MAX(captured_at)
		FROM snapshots GROUP BY policy_name ORDER BY policy_name`)
	if err != nil {
		return nil, fmt.Errorf("store: policies: %w", err)
	}
	defer rows.Close()

	var out []PolicyInfo
	for rows.Next() {
		var p PolicyInfo
		var last int64
		if err := rows.Scan(&p.Name, &p.Snapshots, &last); err != nil {
			return nil, fmt.Errorf("store: scan policy: %w", err)
		}
		p.LastCapturedAt = fromMillis(last)
		out = append(out, p)
	}
	return out, rows.Err()
}

// PolicyNames returns the names from Policies.
func (s *Store) PolicyNames(ctx context.Context) ([]string, error) {
	infos, err := s.Policies(ctx)
	if err != nil {
		return nil, err
	}
	names := make([]string, len(infos))
	for i, p := range infos {
		names[i] = p.Name
	}
	return names, nil
}

// SnapshotsSince returns the policies that received snapshots with a rowid
// above cursor, sorted by name, and the highest rowid seen. next equals
// cursor when nothing arrived.
func (s *Store) SnapshotsSince(ctx context.Context, cursor int64) (policies []string, next int64, err error) {
	rows, err := s.DB.QueryContext(ctx,
		`SELECT policy_name, MAX(rowid) FROM snapshots WHERE rowid > ? GROUP BY policy_name ORDER BY policy_name`, cursor)
	if err != nil {
		return nil, cursor, fmt.Errorf("store: snapshots since: %w", err)
	}
	defer rows.Close()

	next = cursor
	for rows.Next() {
		var name string
		var maxRowID int64
		if err := rows.Scan(&name, &maxRowID); err != nil {
			return nil, cursor, err
		}
		policies = append(policies, name)
		next = max(next, maxRowID)
	}
	if err := rows.Err(); err != nil {
		return nil, cursor, err
	}
	return policies, next, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSnapshot(sc scanner) (*SnapshotRecord, error) {
	var r SnapshotRecord
	var captured int64
	if err := sc.Scan(&r.ID, &r.PolicyName, &r.SourceURL, &r.Content, &r.ContentHash, &captured); err != nil {
		return nil, err
	}
	r.CapturedAt = fromMillis(captured)
	return &r, nil
}
