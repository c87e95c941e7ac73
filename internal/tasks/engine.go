package tasks

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/docsync/internal/services"
	"github.com/desertthunder/docsync/internal/shared"
)

// DefaultPageSize bounds list results when [EngineOpts.PageSize] is not positive.
const DefaultPageSize = 25

// StoreClient defines the requests the engine makes against the store.
//
// Paths are escaped fragments relative to the database URL.
type StoreClient interface {
	Get(ctx context.Context, path string, query url.Values) (*services.APIResponse, error)
	Post(ctx context.Context, path string, query url.Values, body []byte) (*services.APIResponse, error)
}

// EngineOpts contains the collaborators of a [SyncEngine].
type EngineOpts struct {
	Store        StoreClient
	Scheduler    *Scheduler            // defaults to NewScheduler with default options
	Credentials  *services.Credentials // nil for anonymous access
	PageSize     int
	Connectivity shared.Connectivity // nil disables the offline guard
	Logger       *log.Logger
	Now          func() time.Time
	NewID        func() string
}

// SyncEngine runs the sync operations against one store database.
type SyncEngine struct {
	store    StoreClient
	sched    *Scheduler
	creds    *services.Credentials
	pageSize int
	online   shared.Connectivity
	logger   *log.Logger
	now      func() time.Time
	newID    func() string
}

// NewSyncEngine creates an engine, filling defaults for optional collaborators.
func NewSyncEngine(opts EngineOpts) (*SyncEngine, error) {
	if opts.Store == nil {
		return nil, fmt.Errorf("%w: store client not initialized", shared.ErrServiceUnavailable)
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(os.Stderr)
	}
	if opts.Scheduler == nil {
		opts.Scheduler = NewScheduler(SchedulerOpts{Logger: opts.Logger})
	}
	if opts.PageSize <= 0 {
		opts.PageSize = DefaultPageSize
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.NewID == nil {
		opts.NewID = shared.GenerateID
	}

	return &SyncEngine{
		store:    opts.Store,
		sched:    opts.Scheduler,
		creds:    opts.Credentials,
		pageSize: opts.PageSize,
		online:   opts.Connectivity,
		logger:   shared.WithLogger(opts.Logger, "component", "sync"),
		now:      opts.Now,
		newID:    opts.NewID,
	}, nil
}

// Scheduler returns the scheduler the engine enqueues on.
func (e *SyncEngine) Scheduler() *Scheduler {
	return e.sched
}

// PageSize returns the list page bound.
func (e *SyncEngine) PageSize() int {
	return e.pageSize
}

// fail classifies the outcome of a request, logs it and aborts t.
func (e *SyncEngine) fail(t *Task, resp *services.APIResponse, err error) {
	e.reject(t, classify(resp, err))
}

func (e *SyncEngine) reject(t *Task, syncErr *SyncError) {
	e.logger.Error("store request failed", "task", t.Name(), "code", syncErr.Code, "err", syncErr)
	t.Error(syncErr)
}
