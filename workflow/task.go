package workflow

import (
	"fmt"
	"slices"
	"time"
)

// TaskStatus is the lifecycle state of a Task.
type TaskStatus string

const (
	TaskPending  TaskStatus = "pending"
	TaskRunning  TaskStatus = "running"
	TaskRetrying TaskStatus = "retrying"
	TaskSuccess  TaskStatus = "success"
	TaskFailed   TaskStatus = "failed"
)

// Terminal reports whether no further transition is possible.
func (s TaskStatus) Terminal() bool {
	return s == TaskSuccess || s == TaskFailed
}

// transitions lists, for each status, the statuses it may move to.
var transitions = map[TaskStatus][]TaskStatus{
	TaskPending:  {TaskRunning},
	TaskRunning:  {TaskSuccess, TaskRetrying, TaskFailed},
	TaskRetrying: {TaskRunning},
}

// CanTransition reports whether from -> to is a legal move.
func CanTransition(from, to TaskStatus) bool {
	return slices.Contains(transitions[from], to)
}

// Task is one retryable unit of workflow execution, e.g. "compare policy X".
type Task struct {
	ID          string     `json:"task_id"`
	Step        string     `json:"step"`
	PolicyName  string     `json:"policy_name"`
	Status      TaskStatus `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   time.Time  `json:"started_at,omitzero"`
	CompletedAt time.Time  `json:"completed_at,omitzero"`
	Error       string     `json:"error,omitempty"`
	RetryCount  int        `json:"retry_count"`
	MaxRetries  int        `json:"max_retries"`
}

// transition moves t to status to, or returns ErrInvalidTransition and
// leaves t untouched.
func (t *Task) transition(to TaskStatus) error {
	if !CanTransition(t.Status, to) {
		return fmt.Errorf("%w: %s -> %s (task %s)", ErrInvalidTransition, t.Status, to, t.ID)
	}
	t.Status = to
	return nil
}
