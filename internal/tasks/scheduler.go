package tasks

import (
	"context"
	"os"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/docsync/internal/shared"
)

// DefaultMaxConcurrent is used when [SchedulerOpts.MaxConcurrent] is not positive.
const DefaultMaxConcurrent = 4

// SchedulerOpts configures a [Scheduler].
type SchedulerOpts struct {
	MaxConcurrent int           // tasks running at once; 1 serializes every task
	Logger        *log.Logger   // defaults to a stderr logger
	Updates       chan<- Update // optional; receives state changes without blocking
}

// Scheduler runs enqueued tasks in submission order with bounded concurrency.
type Scheduler struct {
	max     int
	logger  *log.Logger
	updates chan<- Update

	wg      sync.WaitGroup
	mu      sync.Mutex
	running int
	pending []*Task
}

// NewScheduler creates a scheduler with the given bound.
func NewScheduler(opts SchedulerOpts) *Scheduler {
	if opts.MaxConcurrent <= 0 {
		opts.MaxConcurrent = DefaultMaxConcurrent
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(os.Stderr)
	}

	return &Scheduler{
		max:     opts.MaxConcurrent,
		logger:  shared.WithLogger(opts.Logger, "component", "tasks"),
		updates: opts.Updates,
	}
}

// NewTask constructs a task in [Created]. Steps run with ctx.
func (s *Scheduler) NewTask(ctx context.Context, name string) *Task {
	if ctx == nil {
		ctx = context.Background()
	}
	return &Task{taskCore: &taskCore{
		name:    name,
		ctx:     ctx,
		sched:   s,
		logger:  shared.WithLogger(s.logger, "task", name),
		signals: make(chan signal, 1),
		done:    make(chan struct{}),
		state:   Created,
	}}
}

// Wait blocks until every enqueued task is terminal.
func (s *Scheduler) Wait() {
	s.wg.Wait()
}

func (s *Scheduler) submit(t *Task) {
	s.wg.Add(1)

	s.mu.Lock()
	if s.running < s.max {
		s.running++
		s.mu.Unlock()
		go s.work(t)
		return
	}
	s.pending = append(s.pending, t)
	s.mu.Unlock()
}

// work runs t, then keeps draining the pending queue until it is empty.
func (s *Scheduler) work(t *Task) {
	for t != nil {
		t.run()
		s.wg.Done()

		s.mu.Lock()
		if len(s.pending) == 0 {
			s.running--
			t = nil
		} else {
			t = s.pending[0]
			s.pending = s.pending[1:]
		}
		s.mu.Unlock()
	}
}

// sendUpdate forwards u without blocking; updates are dropped when nobody is reading.
func (s *Scheduler) sendUpdate(u Update) {
	if s.updates == nil {
		return
	}
	select {
	case s.updates <- u:
	default:
	}
}
