package progress

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// DefaultInterval is the tick cadence used when [Options.Interval] is zero.
const DefaultInterval = time.Second

// Value is a single emitted progress update.
type Value struct {
	Count int64 `json:"count"`
}

// Sink receives values from a [Task].
type Sink interface {
	Send(Value) error
	Complete()
	CompleteWithError(error)
}

// State is the lifecycle state of a [Task].
type State int

const (
	Running State = iota
	Completed
	Failed
	Cancelled
)

func (s State) String() string {
	switch s {
	case Running:
		return "running"
	case Completed:
		return "completed"
	case Failed:
		return "failed"
	case Cancelled:
		return "cancelled"
	default:
		return ""
	}
}

// Terminal reports whether s is an end state.
func (s State) Terminal() bool { return s != Running }

// Options configures a [Task].
type Options struct {
	Interval  time.Duration // tick cadence, [DefaultInterval] when zero
	FailEvery int64         // fail on positive multiples of this value, 0 disables
	MaxTicks  int64         // complete after this many sent values, 0 is unlimited
	Counter   Counter       // value source, a fresh [AtomicCounter] when nil
	Sink      Sink
}

// Task is a cancellable emitter bound to one sink.
type Task struct {
	interval  time.Duration
	failEvery int64
	maxTicks  int64
	counter   Counter
	sink      Sink

	ctx     context.Context
	cancel  context.CancelFunc
	started atomic.Bool
	done    chan struct{}
	emitted atomic.Int64

	mu        sync.Mutex
	state     State
	err       error
	startedAt time.Time
	endedAt   time.Time
}

// New creates a task in the [Running] state. Nothing is emitted until [Task.Start].
func New(opts Options) *Task {
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.Counter == nil {
		opts.Counter = NewCounter()
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Task{
		interval:  opts.Interval,
		failEvery: opts.FailEvery,
		maxTicks:  opts.MaxTicks,
		counter:   opts.Counter,
		sink:      opts.Sink,
		ctx:       ctx,
		cancel:    cancel,
		done:      make(chan struct{}),
	}
}

// Start runs the emitter in its own goroutine. Cancelling parent cancels the task.
// Calls after the first are ignored.
func (t *Task) Start(parent context.Context) {
	if !t.started.CompareAndSwap(false, true) {
		return
	}

	t.mu.Lock()
	t.startedAt = time.Now()
	t.mu.Unlock()

	stop := context.AfterFunc(parent, t.Cancel)
	go func() {
		defer stop()
		t.run()
	}()
}

// Cancel requests cooperative cancellation. It is safe to call more than once, before Start,
// and after the task has already ended.
func (t *Task) Cancel() { t.cancel() }

// Done is closed once the emitter goroutine has returned.
func (t *Task) Done() <-chan struct{} { return t.done }

func (t *Task) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Err returns the failure cause for a [Failed] task and nil otherwise.
func (t *Task) Err() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.err
}

// Emitted returns how many values were successfully sent.
func (t *Task) Emitted() int64 { return t.emitted.Load() }

// Duration returns how long the task has been, or was, running.
func (t *Task) Duration() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	switch {
	case t.startedAt.IsZero():
		return 0
	case t.endedAt.IsZero():
		return time.Since(t.startedAt)
	default:
		return t.endedAt.Sub(t.startedAt)
	}
}

func (t *Task) run() {
	defer close(t.done)

	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-t.ctx.Done():
			t.finish(Cancelled, nil)
			return
		case <-ticker.C:
		}

		// a tick and a cancel can be ready together
		if t.ctx.Err() != nil {
			t.finish(Cancelled, nil)
			return
		}

		n := t.counter.Next()
		if t.failEvery > 0 && n > 0 && n%t.failEvery == 0 {
			err := fmt.Errorf("%w: reached %d", ErrSimulatedFailure, n)
			t.finish(Failed, err)
			t.sink.CompleteWithError(err)
			return
		}

		if err := t.sink.Send(Value{Count: n}); err != nil {
			if t.ctx.Err() != nil {
				t.finish(Cancelled, nil)
				return
			}
			t.finish(Failed, err)
			t.sink.CompleteWithError(err)
			return
		}

		if sent := t.emitted.Add(1); t.maxTicks > 0 && sent >= t.maxTicks {
			t.finish(Completed, nil)
			t.sink.Complete()
			return
		}
	}
}

// finish records the terminal state. Only the first call has any effect.
func (t *Task) finish(state State, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state.Terminal() {
		return
	}
	t.state = state
	t.err = err
	t.endedAt = time.Now()
}
