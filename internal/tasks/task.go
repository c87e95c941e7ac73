package tasks

import (
	"context"
	"fmt"
	"sync"

	"github.com/charmbracelet/log"
)

// State is the lifecycle position of a [Task].
type State int

const (
	Created State = iota
	Running
	Chained
	Succeeded
	Failed
)

func (s State) String() string {
	switch s {
	case Created:
		return "created"
	case Running:
		return "running"
	case Chained:
		return "chained"
	case Succeeded:
		return "succeeded"
	case Failed:
		return "failed"
	default:
		return ""
	}
}

// Terminal reports whether no further steps will run.
func (s State) Terminal() bool {
	return s == Succeeded || s == Failed
}

// Step is one unit of work in a [Task].
//
// A step must eventually call exactly one of [Task.Chain], [Task.Continue] or [Task.Error] on the handle it was
// given, either before returning or later from another goroutine. Signalling through a handle from a step that
// already completed panics. The owner handle returned by [Scheduler.NewTask] signals whichever step is running.
type Step func(ctx context.Context, t *Task)

type signal struct {
	next   Step
	err    error
	failed bool
}

// Task is a chain of steps run one after another by a [Scheduler].
//
// Each step receives its own handle onto the shared task.
type Task struct {
	*taskCore
	step uint64 // generation of the step this handle belongs to; 0 for the owner
}

type taskCore struct {
	name   string
	ctx    context.Context
	sched  *Scheduler
	logger *log.Logger

	signals chan signal
	done    chan struct{}

	mu        sync.Mutex
	state     State
	queued    bool
	signaled  bool
	gen       uint64
	steps     []Step
	onSuccess []func()
	onError   []func(error)
	err       error
}

// Name returns the name the task was created with.
func (t *Task) Name() string {
	return t.name
}

// State returns the current state.
func (t *Task) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// OnRun appends a step to the static list.
func (t *Task) OnRun(step Step) *Task {
	if step == nil {
		panic(fmt.Sprintf("tasks: nil step added to %q", t.name))
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state.Terminal() {
		panic(fmt.Sprintf("tasks: OnRun called on %s task %q", t.state, t.name))
	}
	t.steps = append(t.steps, step)
	return t
}

// OnSuccess registers fn to run once the last step chains forward.
//
// Registering on a task that already succeeded runs fn immediately.
func (t *Task) OnSuccess(fn func()) *Task {
	t.mu.Lock()
	if t.state.Terminal() {
		state := t.state
		t.mu.Unlock()
		if state == Succeeded {
			fn()
		}
		return t
	}
	t.onSuccess = append(t.onSuccess, fn)
	t.mu.Unlock()
	return t
}

// OnError registers fn to run once a step fails the task.
//
// Registering on a task that already failed runs fn immediately.
func (t *Task) OnError(fn func(error)) *Task {
	t.mu.Lock()
	if t.state.Terminal() {
		state, err := t.state, t.err
		t.mu.Unlock()
		if state == Failed {
			fn(err)
		}
		return t
	}
	t.onError = append(t.onError, fn)
	t.mu.Unlock()
	return t
}

// Chain completes the running step. The task moves on to the pending continuation, then the next step, then
// success.
func (t *Task) Chain() {
	t.signal("Chain", signal{})
}

// Continue completes the running step and schedules next ahead of the remaining steps.
func (t *Task) Continue(next Step) {
	if next == nil {
		panic(fmt.Sprintf("tasks: nil continuation in %q", t.name))
	}
	t.signal("Continue", signal{next: next})
}

// Error aborts the task with err. No further steps run.
func (t *Task) Error(err error) {
	if err == nil {
		panic(fmt.Sprintf("tasks: nil error in %q", t.name))
	}
	t.signal("Error", signal{err: err, failed: true})
}

// Enqueue submits the task to its scheduler.
func (t *Task) Enqueue() {
	t.mu.Lock()
	if t.state != Created || t.queued {
		state := t.state
		t.mu.Unlock()
		panic(fmt.Sprintf("tasks: Enqueue called on %s task %q", state, t.name))
	}
	t.queued = true
	t.mu.Unlock()

	t.logger.Debug("enqueued")
	t.sched.submit(t)
}

// Wait blocks until the task is terminal and returns the error it failed with.
func (t *Task) Wait() error {
	<-t.done
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.err
}

// Done is closed once the task is terminal and its callbacks have returned.
func (t *Task) Done() <-chan struct{} {
	return t.done
}

func (t *Task) signal(op string, s signal) {
	t.mu.Lock()
	if t.step != 0 && t.step != t.gen {
		t.mu.Unlock()
		panic(fmt.Sprintf("tasks: %s called from a finished step of %q", op, t.name))
	}
	if t.state != Running {
		state := t.state
		t.mu.Unlock()
		panic(fmt.Sprintf("tasks: %s called on %s task %q", op, state, t.name))
	}
	if t.signaled {
		t.mu.Unlock()
		panic(fmt.Sprintf("tasks: %s called twice from one step of %q", op, t.name))
	}
	t.signaled = true
	t.mu.Unlock()

	t.signals <- s
}

// run drives the task to a terminal state on the calling goroutine.
//
// Continuations are taken in a loop so a step that continues itself never grows the stack.
func (t *Task) run() {
	var next Step
	for {
		step := next
		next = nil

		if step == nil {
			t.mu.Lock()
			if len(t.steps) == 0 {
				t.mu.Unlock()
				t.finish(nil)
				return
			}
			step = t.steps[0]
			t.steps = t.steps[1:]
			t.mu.Unlock()
		}

		if err := t.ctx.Err(); err != nil {
			t.finish(err)
			return
		}

		t.transition(Running)
		t.mu.Lock()
		handle := &Task{taskCore: t.taskCore, step: t.gen}
		t.mu.Unlock()
		step(t.ctx, handle)

		sig := <-t.signals
		if sig.failed {
			t.finish(sig.err)
			return
		}

		t.transition(Chained)
		next = sig.next
	}
}

func (t *Task) transition(state State) {
	t.mu.Lock()
	from := t.state
	t.state = state
	if state == Running {
		t.gen++
		t.signaled = false
	}
	t.mu.Unlock()

	t.logger.Debug("transition", "from", from, "to", state)
	t.sched.sendUpdate(Update{Task: t.name, State: state})
}

func (t *Task) finish(err error) {
	state := Succeeded
	if err != nil {
		state = Failed
	}

	t.mu.Lock()
	from := t.state
	t.state = state
	t.err = err
	onSuccess, onError := t.onSuccess, t.onError
	t.onSuccess, t.onError = nil, nil
	t.mu.Unlock()

	if err != nil {
		t.logger.Debug("transition", "from", from, "to", state, "err", err)
	} else {
		t.logger.Debug("transition", "from", from, "to", state)
	}
	t.sched.sendUpdate(Update{Task: t.name, State: state, Err: err})

	if err != nil {
		for _, fn := range onError {
			fn(err)
		}
	} else {
		for _, fn := range onSuccess {
			fn()
		}
	}
	close(t.done)
}
