package monitor

import (
	"context"
	"errors"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/polwatch/kit"
	"github.com/hazyhaar/polwatch/store"
)

type compareReq struct {
	PolicyName  string `json:"policy_name"`
	OldText     string `json:"old_text"`
	NewText     string `json:"new_text"`
	IncludeDiff bool   `json:"include_diff"`
}

type snapshotReq struct {
	PolicyName string `json:"policy_name"`
	Content    string `json:"content"`
	SourceURL  string `json:"source_url"`
}

type checkReq struct {
	PolicyName string   `json:"policy_name"`
	Policies   []string `json:"policies"`
}

// RegisterMCP registers the polwatch tools on an MCP server, plus the
// comparator's own policydiff tools.
func (s *Service) RegisterMCP(srv *mcp.Server) {
	s.coord.Comparator().RegisterMCP(srv)

	kit.RegisterMCPTool(srv, &mcp.Tool{
		Name:        "polwatch_compare",
		Description: "Compare two versions of a policy text and classify every change by type and impact. Nothing is stored.",
		InputSchema: kit.InputSchema(map[string]any{
			"policy_name":  map[string]any{"type": "string", "description": "Policy name"},
			"old_text":     map[string]any{"type": "string", "description": "Previous version"},
			"new_text":     map[string]any{"type": "string", "description": "New version"},
			"include_diff": map[string]any{"type": "boolean", "description": "Attach a unified paragraph diff"},
		}, []string{"policy_name", "old_text", "new_text"}),
	}, func(_ context.Context, req any) (any, error) {
		r := req.(*compareReq)
		return s.Compare(r.PolicyName, r.OldText, r.NewText, r.IncludeDiff)
	}, kit.DecodeJSON[compareReq]())

	kit.RegisterMCPTool(srv, &mcp.Tool{
		Name:        "polwatch_snapshot",
		Description: "Store a new captured version of a policy. Returns status unchanged when it matches the latest one.",
		InputSchema: kit.InputSchema(map[string]any{
			"policy_name": map[string]any{"type": "string", "description": "Policy name"},
			"content":     map[string]any{"type": "string", "description": "Full policy text"},
			"source_url":  map[string]any{"type": "string", "description": "Where the text was captured"},
		}, []string{"policy_name", "content"}),
	}, s.mcpSnapshot, kit.DecodeJSON[snapshotReq]())

	kit.RegisterMCPTool(srv, &mcp.Tool{
		Name:        "polwatch_check",
		Description: "Run a change check on one policy (policy_name) or several in sequence (policies).",
		InputSchema: kit.InputSchema(map[string]any{
			"policy_name": map[string]any{"type": "string", "description": "Single policy to check"},
			"policies":    map[string]any{"type": "array", "items": map[string]any{"type": "string"}, "description": "Policies to check in order"},
		}, nil),
	}, func(ctx context.Context, req any) (any, error) {
		r := req.(*checkReq)
		if r.PolicyName != "" {
			return s.Check(ctx, r.PolicyName)
		}
		return s.CheckBatch(ctx, r.Policies)
	}, kit.DecodeJSON[checkReq]())

	kit.RegisterMCPTool(srv, &mcp.Tool{
		Name:        "polwatch_stats",
		Description: "Workflow, comparison and session statistics for this process.",
		InputSchema: kit.InputSchema(map[string]any{}, nil),
	}, func(context.Context, any) (any, error) {
		return s.Stats(), nil
	}, kit.DecodeJSON[struct{}]())
}

func (s *Service) mcpSnapshot(ctx context.Context, req any) (any, error) {
	r := req.(*snapshotReq)
	rec, err := s.AddSnapshot(ctx, r.PolicyName, r.SourceURL, r.Content)
	if errors.Is(err, store.ErrUnchanged) {
		return map[string]string{"status": "unchanged"}, nil
	}
	if err != nil {
		return nil, err
	}
	return map[string]any{"status": "stored", "id": rec.ID, "content_hash": rec.ContentHash}, nil
}
