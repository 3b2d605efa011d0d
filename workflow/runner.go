// CLAUDE:SUMMARY Retryable step runner: guarded task state machine, 2^n backoff, recovered panics, queue/history/stats.
package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/hazyhaar/polwatch/idgen"
)

// StepFunc is one unit of work. A returned error or a panic counts as a
// failed attempt.
type StepFunc func(ctx context.Context) (any, error)

// StepResult is what Run reports. Run never returns an error of its own:
// callers inspect OK.
type StepResult struct {
	TaskID   string
	OK       bool
	Value    any
	Err      error
	Attempts int
}

// Sleeper waits d between attempts.
type Sleeper func(ctx context.Context, d time.Duration)

// Observer is told about every attempt and every finished task.
type Observer interface {
	Attempt(step string)
	Finished(step string, status TaskStatus)
}

// Stats summarises the runner's queue and history.
type Stats struct {
	TotalTasks      int     `json:"total_tasks"`
	SuccessfulTasks int     `json:"successful_tasks"`
	FailedTasks     int     `json:"failed_tasks"`
	SuccessRate     float64 `json:"success_rate"`
	PendingTasks    int     `json:"pending_tasks"`
}

// DefaultMaxRetries gives four attempts in total.
const DefaultMaxRetries = 3

// Runner drives tasks through their retry loop. Safe for concurrent use:
// independent tasks may run in parallel.
type Runner struct {
	maxRetries int
	unit       time.Duration
	sleep      Sleeper
	now        func() time.Time
	ids        idgen.Generator
	observer   Observer
	logger     *slog.Logger

	mu      sync.Mutex
	queue   map[string]*Task
	history []*Task
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithMaxRetries sets how many retries follow the first attempt. Default: 3.
func WithMaxRetries(n int) RunnerOption {
	return func(r *Runner) {
		if n >= 0 {
			r.maxRetries = n
		}
	}
}

// WithBackoffUnit sets the backoff unit; the wait after the n-th failure is
// 2^n units. Default: one second.
func WithBackoffUnit(d time.Duration) RunnerOption {
	return func(r *Runner) {
		if d > 0 {
			r.unit = d
		}
	}
}

// WithSleeper replaces the backoff wait.
func WithSleeper(s Sleeper) RunnerOption {
	return func(r *Runner) { r.sleep = s }
}

// WithRunnerClock sets the clock used for task timestamps.
func WithRunnerClock(now func() time.Time) RunnerOption {
	return func(r *Runner) { r.now = now }
}

// WithTaskIDs sets the task ID generator. Default: "task_" + UUIDv7.
func WithTaskIDs(gen idgen.Generator) RunnerOption {
	return func(r *Runner) { r.ids = gen }
}

// WithObserver registers an Observer, typically a metrics collector.
func WithObserver(o Observer) RunnerOption {
	return func(r *Runner) { r.observer = o }
}

// WithRunnerLogger sets the logger. Default: slog.Default().
func WithRunnerLogger(l *slog.Logger) RunnerOption {
	return func(r *Runner) {
		if l != nil {
			r.logger = l
		}
	}
}

// NewRunner creates a Runner.
func NewRunner(opts ...RunnerOption) *Runner {
	r := &Runner{
		maxRetries: DefaultMaxRetries,
		unit:       time.Second,
		sleep:      timerSleep,
		now:        time.Now,
		ids:        idgen.Prefixed("task_", idgen.Default),
		observer:   nopObserver{},
		logger:     slog.Default(),
		queue:      make(map[string]*Task),
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// NewTask places a pending task for step on the active queue.
func (r *Runner) NewTask(step, policyName string) *Task {
	t := &Task{
		ID:         r.ids(),
		Step:       step,
		PolicyName: policyName,
		Status:     TaskPending,
		CreatedAt:  r.now(),
		MaxRetries: r.maxRetries,
	}
	r.mu.Lock()
	r.queue[t.ID] = t
	r.mu.Unlock()
	return t
}

// Backoff returns the wait that follows the given retry count.
func (r *Runner) Backoff(retryCount int) time.Duration {
	return time.Duration(1<<retryCount) * r.unit
}

// Run executes step for task until it succeeds or MaxRetries retries have
// failed. task must be pending.
func (r *Runner) Run(ctx context.Context, task *Task, step StepFunc) StepResult {
	res := StepResult{TaskID: task.ID}

	r.mu.Lock()
	err := task.transition(TaskRunning)
	if err == nil {
		task.StartedAt = r.now()
	}
	r.mu.Unlock()
	if err != nil {
		res.Err = err
		return res
	}

	var lastErr error
	for {
		r.observer.Attempt(task.Step)
		value, err := invoke(ctx, step)
		if err == nil {
			res.OK, res.Value = true, value
			res.Attempts = r.finish(task, TaskSuccess)
			return res
		}
		lastErr = err

		r.mu.Lock()
		task.RetryCount++
		task.Error = err.Error()
		retryCount, again := task.RetryCount, task.RetryCount <= task.MaxRetries
		if again {
			err = task.transition(TaskRetrying)
		}
		r.mu.Unlock()
		if !again {
			break
		}
		if err != nil {
			res.Err = err
			return res
		}

		wait := r.Backoff(retryCount)
		r.logger.Warn("workflow: task retrying",
			"task_id", task.ID, "step", task.Step, "policy", task.PolicyName,
			"retry", retryCount, "wait", wait, "error", lastErr)
		r.sleep(ctx, wait)

		r.mu.Lock()
		err = task.transition(TaskRunning)
		r.mu.Unlock()
		if err != nil {
			res.Err = err
			return res
		}
	}

	res.Attempts = r.finish(task, TaskFailed)
	res.Err = fmt.Errorf("%s: %w after %d attempts: %w", task.Step, ErrMaxRetries, res.Attempts, lastErr)
	r.logger.Error("workflow: task failed",
		"task_id", task.ID, "step", task.Step, "policy", task.PolicyName,
		"attempts", res.Attempts, "error", lastErr)
	return res
}

// finish moves task to its terminal status and from the queue to the
// history. It returns the number of attempts made.
func (r *Runner) finish(task *Task, status TaskStatus) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	// Only running -> success|failed reaches here; transition cannot fail.
	_ = task.transition(status)
	task.CompletedAt = r.now()

	delete(r.queue, task.ID)
	r.history = append(r.history, task)
	r.observer.Finished(task.Step, status)

	if status == TaskSuccess {
		return task.RetryCount + 1
	}
	return task.RetryCount
}

// Task returns a copy of the task with the given ID, searching the active
// queue then the history.
func (r *Runner) Task(id string) (Task, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if t, ok := r.queue[id]; ok {
		return *t, true
	}
	for _, t := range r.history {
		if t.ID == id {
			return *t, true
		}
	}
	return Task{}, false
}

// History returns copies of all finished tasks, oldest first.
func (r *Runner) History() []Task {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Task, len(r.history))
	for i, t := range r.history {
		out[i] = *t
	}
	return out
}

// Stats aggregates the queue and history. SuccessRate is a percentage.
func (r *Runner) Stats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()

	s := Stats{
		TotalTasks:   len(r.queue) + len(r.history),
		PendingTasks: len(r.queue),
	}
	for _, t := range r.history {
		switch t.Status {
		case TaskSuccess:
			s.SuccessfulTasks++
		case TaskFailed:
			s.FailedTasks++
		}
	}
	if s.TotalTasks > 0 {
		s.SuccessRate = float64(s.SuccessfulTasks) / float64(s.TotalTasks) * 100
	}
	return s
}

func invoke(ctx context.Context, step StepFunc) (value any, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("workflow: step panicked: %v", p)
		}
	}()
	return step(ctx)
}

// timerSleep waits d, returning early when ctx is done.
func timerSleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

type nopObserver struct{}

func (nopObserver) Attempt(string)             {}
func (nopObserver) Finished(string, TaskStatus) {}
