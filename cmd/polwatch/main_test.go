package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/hazyhaar/polwatch/monitor"
	"github.com/hazyhaar/polwatch/workflow"
)

func runCLI(t *testing.T, args ...string) []byte {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--log-level", "error"}, args...))
	if err := cmd.Execute(); err != nil {
		t.Fatalf("polwatch %v: %v\n%s", args, err, out.String())
	}
	return out.Bytes()
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestCompareCommand(t *testing.T) {
	// WHAT: compare prints the report for two files, named after NEW.
	// WHY: the CLI is the quickest way to inspect a policy change by hand.
	dir := t.TempDir()
	oldPath := writeFile(t, dir, "old.txt", "Intro.\n\nSmoking is allowed.")
	newPath := writeFile(t, dir, "terms.txt", "Intro.\n\nSmoking is prohibited.")

	var resp monitor.CompareResponse
	if err := json.Unmarshal(runCLI(t, "compare", "--diff", oldPath, newPath), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.PolicyName != "terms" {
		t.Errorf("policy = %q, want terms", resp.PolicyName)
	}
	if !resp.HasChanges || resp.OverallImpact != "critical" {
		t.Errorf("has_changes=%v impact=%q", resp.HasChanges, resp.OverallImpact)
	}
	if resp.Diff == "" {
		t.Error("expected a diff with --diff")
	}
}

func TestSnapshotThenCheck(t *testing.T) {
	// WHAT: snapshot stores versions in the db and check compares the newest two.
	// WHY: this is the offline workflow when no server is running.
	dir := t.TempDir()
	db := filepath.Join(dir, "pw.db")
	v1 := writeFile(t, dir, "v1.txt", "a.")
	v2 := writeFile(t, dir, "v2.txt", "a.\n\nb.")

	runCLI(t, "--db", db, "snapshot", "leave", v1)
	var again map[string]any
	if err := json.Unmarshal(runCLI(t, "--db", db, "snapshot", "leave", v1), &again); err != nil {
		t.Fatal(err)
	}
	if again["status"] != "unchanged" {
		t.Errorf("second snapshot status = %v, want unchanged", again["status"])
	}
	runCLI(t, "--db", db, "snapshot", "--source", "https://example.com/leave", "leave", v2)

	var br workflow.BatchReport
	if err := json.Unmarshal(runCLI(t, "--db", db, "check", "leave"), &br); err != nil {
		t.Fatal(err)
	}
	if br.TotalPolicies != 1 || len(br.Results) != 1 {
		t.Fatalf("batch = %+v", br)
	}
	if got := br.Results[0].Status; got != workflow.StatusSuccess {
		t.Errorf("status = %q, want success", got)
	}
}

func TestCompareCommand_MissingFile(t *testing.T) {
	cmd := newRootCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetArgs([]string{"compare", "/nonexistent/a", "/nonexistent/b"})
	if err := cmd.Execute(); err == nil {
		t.Fatal("expected error for missing files")
	}
}
