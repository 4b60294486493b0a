package runner

import (
	"context"
	"log/slog"
	"sync"
)

// Tracker cancels the previous in-flight run for a branch when a newer
// run for the same branch starts. It is explicit, injected state so the
// runner itself stays free of globals. Cancellation is cooperative:
// superseded instances finish their current step and report Skipped.
type Tracker struct {
	mu     sync.Mutex
	active map[string]*trackedRun
}

type trackedRun struct {
	cancel context.CancelFunc
}

// NewTracker creates an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{active: make(map[string]*trackedRun)}
}

// Start registers a run for branch, cancelling any previous run still
// registered for it, and returns the run's context plus a stop function
// the caller must invoke when the run finishes.
func (t *Tracker) Start(ctx context.Context, branch string) (context.Context, func()) {
	ctx, cancel := context.WithCancel(ctx)
	run := &trackedRun{cancel: cancel}

	t.mu.Lock()
	prev := t.active[branch]
	t.active[branch] = run
	t.mu.Unlock()

	if prev != nil {
		slog.Info("superseding in-flight run", "branch", branch)
		prev.cancel()
	}

	stop := func() {
		cancel()
		t.mu.Lock()
		if t.active[branch] == run {
			delete(t.active, branch)
		}
		t.mu.Unlock()
	}
	return ctx, stop
}
