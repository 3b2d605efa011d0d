// Package watch polls the snapshot store for newly stored versions and runs a
// check for the policies that received them, after a debounce window.
//
// Typical usage:
//
//	w := watch.New(st, svc.CheckPolicies, watch.Options{Interval: 5*time.Second, Debounce: 2*time.Second})
//	go w.Run(ctx)
package watch

import (
	"context"
	"log/slog"
	"sort"
	"sync/atomic"
	"time"
)

// Source reports which policies received snapshots after cursor, and the
// cursor to resume from. Callers seed the cursor by asking with 0.
type Source interface {
	SnapshotsSince(ctx context.Context, cursor int64) (policies []string, next int64, err error)
}

// CheckFunc checks the given policies. An error keeps them pending so the
// next cycle retries.
type CheckFunc func(ctx context.Context, policies []string) error

// Options tunes the watcher behaviour.
type Options struct {
	// Interval is the polling frequency. Default: 5s.
	Interval time.Duration
	// Debounce is the quiet period after an arrival before the check fires.
	// Further arrivals reset the timer. 0 fires on the polling cycle.
	Debounce time.Duration
	Logger   *slog.Logger
}

func (o *Options) defaults() {
	if o.Interval <= 0 {
		o.Interval = 5 * time.Second
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
}

// Watcher turns snapshot arrivals into checks.
type Watcher struct {
	src   Source
	check CheckFunc
	opts  Options

	cursor atomic.Int64

	polls    atomic.Int64
	arrivals atomic.Int64
	checks   atomic.Int64
	errors   atomic.Int64
}

// Stats are point-in-time counters.
type Stats struct {
	Polls    int64 `json:"polls"`
	Arrivals int64 `json:"arrivals"`
	Checks   int64 `json:"checks"`
	Errors   int64 `json:"errors"`
	Cursor   int64 `json:"cursor"`
}

// New creates a Watcher. Call Run to start the loop.
func New(src Source, check CheckFunc, opts Options) *Watcher {
	opts.defaults()
	return &Watcher{src: src, check: check, opts: opts}
}

// Stats returns the current counters.
func (w *Watcher) Stats() Stats {
	return Stats{
		Polls:    w.polls.Load(),
		Arrivals: w.arrivals.Load(),
		Checks:   w.checks.Load(),
		Errors:   w.errors.Load(),
		Cursor:   w.cursor.Load(),
	}
}

// Run blocks until ctx is cancelled. Snapshots already stored when Run starts
// do not trigger a check.
func (w *Watcher) Run(ctx context.Context) {
	log := w.opts.Logger

	if _, next, err := w.src.SnapshotsSince(ctx, 0); err != nil {
		log.Warn("watch: initial cursor failed", "error", err)
	} else {
		w.cursor.Store(next)
	}

	ticker := time.NewTicker(w.opts.Interval)
	defer ticker.Stop()

	var debounceTimer *time.Timer
	var debounceCh <-chan time.Time
	pending := make(map[string]struct{})

	log.Info("watch: started", "interval", w.opts.Interval, "debounce", w.opts.Debounce)

	for {
		select {
		case <-ctx.Done():
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			log.Info("watch: stopped")
			return

		case <-ticker.C:
			w.polls.Add(1)
			policies, next, err := w.src.SnapshotsSince(ctx, w.cursor.Load())
			if err != nil {
				w.errors.Add(1)
				log.Warn("watch: poll failed", "error", err)
				continue
			}
			w.cursor.Store(next)
			for _, p := range policies {
				pending[p] = struct{}{}
			}
			w.arrivals.Add(int64(len(policies)))

			switch {
			case len(pending) == 0:
			case w.opts.Debounce <= 0:
				w.fire(ctx, pending)
			case len(policies) > 0:
				if debounceTimer != nil {
					debounceTimer.Stop()
				}
				debounceTimer = time.NewTimer(w.opts.Debounce)
				debounceCh = debounceTimer.C
				log.Debug("watch: arrivals, debouncing", "pending", len(pending))
			case debounceCh == nil:
				// A failed check left policies pending and no timer is armed.
				w.fire(ctx, pending)
			}

		case <-debounceCh:
			debounceCh = nil
			w.fire(ctx, pending)
		}
	}
}

// fire checks every pending policy and clears the set on success.
func (w *Watcher) fire(ctx context.Context, pending map[string]struct{}) {
	if len(pending) == 0 {
		return
	}
	policies := make([]string, 0, len(pending))
	for p := range pending {
		policies = append(policies, p)
	}
	sort.Strings(policies)

	w.checks.Add(1)
	start := time.Now()
	if err := w.check(ctx, policies); err != nil {
		w.errors.Add(1)
		w.opts.Logger.Error("watch: check failed", "policies", policies, "error", err)
		return
	}
	clear(pending)
	w.opts.Logger.Info("watch: checked", "policies", policies, "duration", time.Since(start))
}
