package policydiff

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/polwatch/kit"
)

// RegisterMCP registers the comparison tools on an MCP server.
func (c *Comparator) RegisterMCP(srv *mcp.Server) {
	c.registerCompareTool(srv)
	c.registerStatsTool(srv)
}

type compareReq struct {
	PolicyName  string `json:"policy_name"`
	OldText     string `json:"old_text"`
	NewText     string `json:"new_text"`
	IncludeDiff bool   `json:"include_diff"`
}

type compareResp struct {
	Report
	Diff string `json:"diff,omitempty"`
}

func (c *Comparator) registerCompareTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "policydiff_compare",
		Description: "Compare two versions of a policy document and classify every change by type and impact.",
		InputSchema: kit.InputSchema(map[string]any{
			"policy_name":  map[string]any{"type": "string", "description": "Policy name"},
			"old_text":     map[string]any{"type": "string", "description": "Previous version"},
			"new_text":     map[string]any{"type": "string", "description": "New version"},
			"include_diff": map[string]any{"type": "boolean", "description": "Attach a unified paragraph diff"},
		}, []string{"policy_name", "old_text", "new_text"}),
	}

	endpoint := func(ctx context.Context, req any) (any, error) {
		r := req.(*compareReq)
		res := c.Compare(r.PolicyName, r.OldText, r.NewText)
		resp := compareResp{Report: res.Serialize()}
		if r.IncludeDiff && res.HasChanges {
			d, err := UnifiedDiff(r.PolicyName, r.OldText, r.NewText)
			if err != nil {
				return nil, err
			}
			resp.Diff = d
		}
		return resp, nil
	}

	kit.RegisterMCPTool(srv, tool, endpoint, kit.DecodeJSON[compareReq]())
}

func (c *Comparator) registerStatsTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "policydiff_stats",
		Description: "Statistics over all comparisons run by this process.",
		InputSchema: kit.InputSchema(map[string]any{}, nil),
	}

	endpoint := func(ctx context.Context, _ any) (any, error) {
		return c.Stats(), nil
	}

	kit.RegisterMCPTool(srv, tool, endpoint, kit.DecodeJSON[struct{}]())
}
