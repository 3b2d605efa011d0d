package workflow

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/hazyhaar/polwatch/idgen"
)

// fakeSleeper records every backoff instead of waiting.
type fakeSleeper struct {
	mu    sync.Mutex
	waits []time.Duration
}

func (f *fakeSleeper) sleep(_ context.Context, d time.Duration) {
	f.mu.Lock()
	f.waits = append(f.waits, d)
	f.mu.Unlock()
}

func (f *fakeSleeper) total() time.Duration {
	f.mu.Lock()
	defer f.mu.Unlock()
	var t time.Duration
	for _, w := range f.waits {
		t += w
	}
	return t
}

func newTestRunner(fs *fakeSleeper, opts ...RunnerOption) *Runner {
	base := []RunnerOption{
		WithSleeper(fs.sleep),
		WithBackoffUnit(time.Second),
		WithTaskIDs(idgen.Sequence("task_")),
	}
	return NewRunner(append(base, opts...)...)
}

func TestRun_RetryBound(t *testing.T) {
	// WHAT: An always-failing step runs exactly four times with 2+4+8 units of backoff.
	// WHY: max_retries counts retries after the first attempt.
	fs := &fakeSleeper{}
	r := newTestRunner(fs)
	task := r.NewTask("compare", "leave")

	calls := 0
	boom := errors.New("boom")
	res := r.Run(context.Background(), task, func(context.Context) (any, error) {
		calls++
		return nil, boom
	})

	if res.OK {
		t.Fatal("expected failure")
	}
	if calls != 4 || res.Attempts != 4 {
		t.Errorf("calls = %d, attempts = %d, want 4", calls, res.Attempts)
	}
	if diff := cmp.Diff([]time.Duration{2 * time.Second, 4 * time.Second, 8 * time.Second}, fs.waits); diff != "" {
		t.Errorf("backoff (-want +got):\n%s", diff)
	}
	if fs.total() != 14*time.Second {
		t.Errorf("total backoff = %v, want 14s", fs.total())
	}
	if !errors.Is(res.Err, ErrMaxRetries) || !errors.Is(res.Err, boom) {
		t.Errorf("err = %v, want ErrMaxRetries wrapping boom", res.Err)
	}

	got, ok := r.Task(task.ID)
	if !ok {
		t.Fatal("task not found")
	}
	if got.Status != TaskFailed || got.RetryCount != 4 || got.Error != "boom" {
		t.Errorf("task = %+v", got)
	}
	if got.CompletedAt.IsZero() || got.StartedAt.IsZero() {
		t.Error("timestamps not stamped")
	}
}

func TestRun_SucceedsAfterRetries(t *testing.T) {
	fs := &fakeSleeper{}
	r := newTestRunner(fs)
	task := r.NewTask("notify", "leave")

	calls := 0
	res := r.Run(context.Background(), task, func(context.Context) (any, error) {
		calls++
		if calls < 3 {
			return nil, errors.New("flaky")
		}
		return "sent", nil
	})

	if !res.OK || res.Value != "sent" {
		t.Fatalf("res = %+v", res)
	}
	if res.Attempts != 3 {
		t.Errorf("attempts = %d, want 3", res.Attempts)
	}
	if diff := cmp.Diff([]time.Duration{2 * time.Second, 4 * time.Second}, fs.waits); diff != "" {
		t.Errorf("backoff (-want +got):\n%s", diff)
	}
	got, _ := r.Task(task.ID)
	if got.Status != TaskSuccess {
		t.Errorf("status = %s, want success", got.Status)
	}
}

func TestRun_ZeroRetries(t *testing.T) {
	fs := &fakeSleeper{}
	r := newTestRunner(fs, WithMaxRetries(0))
	res := r.Run(context.Background(), r.NewTask("s", "p"), func(context.Context) (any, error) {
		return nil, errors.New("no")
	})
	if res.OK || res.Attempts != 1 || len(fs.waits) != 0 {
		t.Errorf("res = %+v, waits = %v", res, fs.waits)
	}
}

func TestRun_PanicRecovered(t *testing.T) {
	// WHAT: A panicking step is a failed attempt, not a crash.
	// WHY: The runner is the boundary past which nothing may escape.
	fs := &fakeSleeper{}
	r := newTestRunner(fs, WithMaxRetries(1))
	res := r.Run(context.Background(), r.NewTask("s", "p"), func(context.Context) (any, error) {
		panic("kaboom")
	})
	if res.OK || res.Attempts != 2 {
		t.Fatalf("res = %+v", res)
	}
	if res.Err == nil || !errors.Is(res.Err, ErrMaxRetries) {
		t.Errorf("err = %v", res.Err)
	}
}

func TestRun_RejectsFinishedTask(t *testing.T) {
	fs := &fakeSleeper{}
	r := newTestRunner(fs)
	task := r.NewTask("s", "p")
	ok := func(context.Context) (any, error) { return nil, nil }
	r.Run(context.Background(), task, ok)

	res := r.Run(context.Background(), task, ok)
	if res.OK || !errors.Is(res.Err, ErrInvalidTransition) {
		t.Errorf("second run = %+v, want ErrInvalidTransition", res)
	}
}

func TestRun_DefaultSleeperHonoursCancel(t *testing.T) {
	// WHAT: A cancelled context cuts the backoff short; attempts continue.
	// WHY: Shutdown must not hang on a long backoff.
	r := NewRunner(WithBackoffUnit(time.Hour), WithMaxRetries(2))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	res := r.Run(ctx, r.NewTask("s", "p"), func(context.Context) (any, error) {
		calls++
		return nil, errors.New("down")
	})
	if res.OK || calls != 3 {
		t.Errorf("calls = %d, res = %+v", calls, res)
	}
}

func TestTransitions(t *testing.T) {
	tests := []struct {
		from, to TaskStatus
		ok       bool
	}{
		{TaskPending, TaskRunning, true},
		{TaskRunning, TaskSuccess, true},
		{TaskRunning, TaskRetrying, true},
		{TaskRunning, TaskFailed, true},
		{TaskRetrying, TaskRunning, true},
		{TaskPending, TaskSuccess, false},
		{TaskRetrying, TaskFailed, false},
		{TaskSuccess, TaskRunning, false},
		{TaskFailed, TaskRetrying, false},
	}
	for _, tt := range tests {
		task := &Task{ID: "t", Status: tt.from}
		err := task.transition(tt.to)
		if (err == nil) != tt.ok {
			t.Errorf("%s -> %s: err = %v, want ok=%v", tt.from, tt.to, err, tt.ok)
		}
		if !tt.ok {
			if !errors.Is(err, ErrInvalidTransition) {
				t.Errorf("%s -> %s: err = %v, want ErrInvalidTransition", tt.from, tt.to, err)
			}
			if task.Status != tt.from {
				t.Errorf("%s -> %s: status changed to %s", tt.from, tt.to, task.Status)
			}
		}
	}
	if !TaskSuccess.Terminal() || !TaskFailed.Terminal() || TaskRetrying.Terminal() {
		t.Error("Terminal mismatch")
	}
}

func TestRunner_Stats(t *testing.T) {
	fs := &fakeSleeper{}
	r := newTestRunner(fs, WithMaxRetries(0))
	ctx := context.Background()

	r.Run(ctx, r.NewTask("a", "p"), func(context.Context) (any, error) { return nil, nil })
	r.Run(ctx, r.NewTask("b", "p"), func(context.Context) (any, error) { return nil, nil })
	r.Run(ctx, r.NewTask("c", "p"), func(context.Context) (any, error) { return nil, errors.New("x") })
	pending := r.NewTask("d", "p")

	want := Stats{TotalTasks: 4, SuccessfulTasks: 2, FailedTasks: 1, SuccessRate: 50, PendingTasks: 1}
	if diff := cmp.Diff(want, r.Stats()); diff != "" {
		t.Errorf("stats (-want +got):\n%s", diff)
	}

	got, ok := r.Task(pending.ID)
	if !ok || got.Status != TaskPending {
		t.Errorf("pending lookup = %+v, %v", got, ok)
	}
	if _, ok := r.Task("nope"); ok {
		t.Error("unknown task found")
	}
	if n := len(r.History()); n != 3 {
		t.Errorf("history = %d, want 3", n)
	}
}

type countingObserver struct {
	mu       sync.Mutex
	attempts map[string]int
	finished map[TaskStatus]int
}

func (o *countingObserver) Attempt(step string) {
	o.mu.Lock()
	o.attempts[step]++
	o.mu.Unlock()
}

func (o *countingObserver) Finished(_ string, s TaskStatus) {
	o.mu.Lock()
	o.finished[s]++
	o.mu.Unlock()
}

func TestRunner_Observer(t *testing.T) {
	obs := &countingObserver{attempts: map[string]int{}, finished: map[TaskStatus]int{}}
	fs := &fakeSleeper{}
	r := newTestRunner(fs, WithObserver(obs))
	r.Run(context.Background(), r.NewTask("acquire", "p"), func(context.Context) (any, error) {
		return nil, errors.New("x")
	})
	if obs.attempts["acquire"] != 4 || obs.finished[TaskFailed] != 1 {
		t.Errorf("observer saw %v / %v", obs.attempts, obs.finished)
	}
}
