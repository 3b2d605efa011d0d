package workflow

import (
	"sync"
	"time"

	"github.com/hazyhaar/polwatch/idgen"
)

// Session statuses set by the Coordinator.
const (
	SessionRunning        = "running"
	SessionSuccess        = "success"
	SessionNoChanges      = "no_changes"
	SessionBaselineStored = "baseline_stored"
	SessionFailed         = "failed"
)

// Session is the lifecycle record of one policy check.
type Session struct {
	ID         string         `json:"session_id"`
	PolicyName string         `json:"policy_name"`
	Status     string         `json:"status"`
	StartedAt  time.Time      `json:"started_at"`
	EndedAt    time.Time      `json:"ended_at,omitzero"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// Sessions tracks active and completed sessions. An ended session never
// becomes active again.
type Sessions struct {
	ids idgen.Generator
	now func() time.Time

	mu        sync.Mutex
	active    map[string]*Session
	completed []*Session
}

// NewSessions creates a session manager. A nil gen uses "sess_" + UUIDv7,
// a nil now uses time.Now.
func NewSessions(gen idgen.Generator, now func() time.Time) *Sessions {
	if gen == nil {
		gen = idgen.Prefixed("sess_", idgen.Default)
	}
	if now == nil {
		now = time.Now
	}
	return &Sessions{ids: gen, now: now, active: make(map[string]*Session)}
}

// Create opens a running session for policyName and returns its ID.
func (m *Sessions) Create(policyName string) string {
	s := &Session{
		ID:         m.ids(),
		PolicyName: policyName,
		Status:     SessionRunning,
		StartedAt:  m.now(),
	}
	m.mu.Lock()
	m.active[s.ID] = s
	m.mu.Unlock()
	return s.ID
}

// End closes the session with the given status. Unknown or already ended
// IDs are ignored.
func (m *Sessions) End(id, status string, metadata map[string]any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.active[id]
	if !ok {
		return
	}
	delete(m.active, id)
	s.Status = status
	s.EndedAt = m.now()
	if metadata != nil {
		s.Metadata = metadata
	}
	m.completed = append(m.completed, s)
}

// Get returns a copy of an active session.
func (m *Sessions) Get(id string) (Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.active[id]
	if !ok {
		return Session{}, false
	}
	return *s, true
}

// Lookup returns a copy of a session, active or completed.
func (m *Sessions) Lookup(id string) (Session, bool) {
	if s, ok := m.Get(id); ok {
		return s, true
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.completed {
		if s.ID == id {
			return *s, true
		}
	}
	return Session{}, false
}

// Completed returns copies of ended sessions, oldest first.
func (m *Sessions) Completed() []Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Session, len(m.completed))
	for i, s := range m.completed {
		out[i] = *s
	}
	return out
}

// ActiveCount returns the number of running sessions.
func (m *Sessions) ActiveCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.active)
}
