package policydiff

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

var testMCPImpl = &mcp.Implementation{Name: "policydiff-test", Version: "0.1.0"}

func mcpSession(t *testing.T, c *Comparator) *mcp.ClientSession {
	t.Helper()
	srv := mcp.NewServer(testMCPImpl, nil)
	c.RegisterMCP(srv)

	serverT, clientT := mcp.NewInMemoryTransports()
	ctx := context.Background()
	go func() { _ = srv.Run(ctx, serverT) }()

	client := mcp.NewClient(testMCPImpl, nil)
	session, err := client.Connect(ctx, clientT, nil)
	if err != nil {
		t.Fatalf("client connect: %v", err)
	}
	t.Cleanup(func() { session.Close() })
	return session
}

func mcpCallTool(t *testing.T, session *mcp.ClientSession, name string, args any) string {
	t.Helper()
	result, err := session.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      name,
		Arguments: args,
	})
	if err != nil {
		t.Fatalf("CallTool(%s): %v", name, err)
	}
	if result.IsError {
		t.Fatalf("CallTool(%s) tool error: %+v", name, result.Content)
	}
	tc, ok := result.Content[0].(*mcp.TextContent)
	if !ok {
		t.Fatalf("CallTool(%s): expected TextContent", name)
	}
	return tc.Text
}

func TestMCP_Compare(t *testing.T) {
	c := NewComparator(WithClock(func() time.Time { return fixedNow }))
	session := mcpSession(t, c)

	text := mcpCallTool(t, session, "policydiff_compare", map[string]any{
		"policy_name":  "visitors",
		"old_text":     "Visitors sign in.",
		"new_text":     "Visitors sign in.\nSmoking is prohibited.",
		"include_diff": true,
	})

	var resp struct {
		PolicyName    string `json:"policy_name"`
		HasChanges    bool   `json:"has_changes"`
		OverallImpact string `json:"overall_impact"`
		Timestamp     string `json:"timestamp"`
		Diff          string `json:"diff"`
	}
	if err := json.Unmarshal([]byte(text), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.PolicyName != "visitors" || !resp.HasChanges {
		t.Errorf("unexpected response: %s", text)
	}
	if resp.OverallImpact != "critical" {
		t.Errorf("overall_impact = %q, want critical", resp.OverallImpact)
	}
	if resp.Timestamp != "2026-03-01T09:00:00Z" {
		t.Errorf("timestamp = %q", resp.Timestamp)
	}
	if !strings.Contains(resp.Diff, "+smoking is prohibited.") {
		t.Errorf("diff missing added paragraph:\n%s", resp.Diff)
	}
}

func TestMCP_Stats(t *testing.T) {
	c := NewComparator()
	session := mcpSession(t, c)

	mcpCallTool(t, session, "policydiff_compare", map[string]any{
		"policy_name": "p", "old_text": "a", "new_text": "b",
	})
	text := mcpCallTool(t, session, "policydiff_stats", map[string]any{})

	var s Stats
	if err := json.Unmarshal([]byte(text), &s); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if s.TotalComparisons != 1 || s.ComparisonsWithChanges != 1 {
		t.Errorf("stats = %+v", s)
	}
}
