package telemetry

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// RunFunc is one execution of a polling task
type RunFunc func(ctx context.Context) error

// Task runs a RunFunc once when started and again on every tick until stopped.
// Every run gets its own goroutine and the task context. A failed run is
// logged and the schedule carries on.
type Task struct {
	name     string
	interval time.Duration
	run      RunFunc
	clock    Clock
	log      *slog.Logger
	observe  func(task string, err error)

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	trigger chan struct{}
}

// TaskOption customizes a Task
type TaskOption func(*Task)

// WithClock replaces the wall clock
func WithClock(c Clock) TaskOption {
	return func(t *Task) { t.clock = c }
}

// WithLogger sets the logger of the task
func WithLogger(l *slog.Logger) TaskOption {
	return func(t *Task) { t.log = l }
}

// WithObserver registers a callback invoked after every run
func WithObserver(fn func(task string, err error)) TaskOption {
	return func(t *Task) { t.observe = fn }
}

// NewTask creates a stopped task
func NewTask(name string, interval time.Duration, run RunFunc, opts ...TaskOption) *Task {
	t := &Task{
		name:     name,
		interval: interval,
		run:      run,
		clock:    RealClock(),
		log:      slog.Default(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Name returns the task name
func (t *Task) Name() string { return t.name }

// Running reports whether the task is scheduled
func (t *Task) Running() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.cancel != nil
}

// Start schedules the task. The first run happens right away. Starting a
// running task does nothing.
func (t *Task) Start(parent context.Context) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(parent)
	ticker := t.clock.NewTicker(t.interval)
	done := make(chan struct{})
	trigger := make(chan struct{}, 1)
	t.cancel, t.done, t.trigger = cancel, done, trigger

	go t.loop(ctx, ticker, trigger, done)
	t.log.Info("task_start", "task", t.name, "interval", t.interval)
}

// Stop cancels the schedule and every run in flight, then waits for them
// to return
func (t *Task) Stop() {
	t.mu.Lock()
	cancel, done := t.cancel, t.done
	t.cancel, t.done, t.trigger = nil, nil, nil
	t.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	t.log.Info("task_stop", "task", t.name)
}

// TriggerNow asks a running task for an extra run. It reports false when the
// task is stopped.
func (t *Task) TriggerNow() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.trigger == nil {
		return false
	}
	select {
	case t.trigger <- struct{}{}:
	default:
		// a run is already pending
	}
	return true
}

func (t *Task) loop(ctx context.Context, ticker Ticker, trigger <-chan struct{}, done chan<- struct{}) {
	// runs may overlap: a slow response never delays the next tick
	var runs sync.WaitGroup
	defer close(done)
	defer runs.Wait()
	defer ticker.Stop()

	spawn := func() {
		runs.Add(1)
		go func() {
			defer runs.Done()
			t.execute(ctx)
		}()
	}

	spawn()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C():
			spawn()
		case <-trigger:
			spawn()
		}
	}
}

func (t *Task) execute(ctx context.Context) {
	err := t.run(ctx)
	if ctx.Err() != nil {
		// stopped mid-run
		return
	}
	if err != nil {
		t.log.Warn("task_run_err", "task", t.name, "err", err)
	} else {
		t.log.Debug("task_run_ok", "task", t.name)
	}
	if t.observe != nil {
		t.observe(t.name, err)
	}
}
