// Package sink provides the downstream backends a check hands its
// comparison to: webhook, JSON lines, the SQLite history, in-process
// callbacks, and a fan-out router. Each implements workflow.Sink.
package sink

import (
	"github.com/hazyhaar/polwatch/policydiff"
	"github.com/hazyhaar/polwatch/workflow"
)

// Roles used as sink names in check reports.
const (
	RoleUpdate = "update"
	RoleNotify = "notify"
	RoleMemory = "memory"
)

var _ workflow.Sink = (*Webhook)(nil)
var _ workflow.Sink = (*Stdout)(nil)
var _ workflow.Sink = (*Memory)(nil)
var _ workflow.Sink = (*Callback)(nil)
var _ workflow.Fanout = (*Router)(nil)

// envelope is the JSON shape written by Webhook and Stdout.
type envelope struct {
	Type      string            `json:"type"`
	SessionID string            `json:"session_id,omitempty"`
	Data      policydiff.Report `json:"data"`
	Diff      string            `json:"diff,omitempty"`
}

func ok() workflow.Outcome { return workflow.Outcome{OK: true} }
