package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
	"github.com/desertthunder/docsync/internal/repositories"
	"github.com/desertthunder/docsync/internal/services"
	"github.com/desertthunder/docsync/internal/shared"
	"github.com/desertthunder/docsync/internal/tasks"
	"github.com/urfave/cli/v3"
)

var (
	okStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#04B575")).Bold(true)
	warnStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFA500"))
	dimStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#626262")).Italic(true)
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
//
// The sync engine and the bookkeeping database are built from the config on first use,
// so commands that need neither (setup, --help) work without a reachable store.
type Runner struct {
	config  *shared.Config
	logger  *log.Logger
	output  io.Writer
	online  *shared.OnlineFlag
	updates chan tasks.Update

	engine   *tasks.SyncEngine
	storeURL string
	db       *sql.DB
	ownsDB   bool
	cursors  *repositories.CursorRepository
	tracked  *repositories.TrackedDocumentRepository
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config *shared.Config
	Engine *tasks.SyncEngine // built from Config when nil
	DB     *sql.DB           // migrated bookkeeping database; opened from Config when nil
	Logger *log.Logger
	Output io.Writer
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Config == nil {
		opts.Config = shared.DefaultConfig()
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}

	r := &Runner{
		config: opts.Config,
		logger: opts.Logger,
		output: opts.Output,
		online: &shared.OnlineFlag{},
		engine: opts.Engine,
	}
	if opts.DB != nil {
		r.useDatabase(opts.DB)
	}
	return r
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, sessionCommand, uploadCommand, changesCommand, downloadCommand, listCommand, deleteCommand, browseCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// Before applies the global flags.
func (r *Runner) Before(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	if path := cmd.String("config"); cmd.IsSet("config") {
		if _, err := os.Stat(path); err == nil {
			config, err := shared.LoadConfig(path)
			if err != nil {
				return ctx, err
			}
			r.config = config
		} else {
			r.logger.Warn("config file not found, using defaults", "path", path)
		}
	}

	level := r.config.Log.Level
	if cmd.IsSet("log-level") {
		level = cmd.String("log-level")
	}
	ll, err := shared.ParseLogLevel(level)
	if err != nil {
		return ctx, err
	}
	shared.SetLogLevel(r.logger, ll)

	if cmd.Bool("offline") {
		r.online.Set(true)
	}
	return ctx, nil
}

// SetLogger replaces the logger; used by the TUI to move logs off the terminal.
func (r *Runner) SetLogger(l *log.Logger) {
	r.logger = l
}

// Close releases the database opened by the runner.
func (r *Runner) Close() error {
	if r.db != nil && r.ownsDB {
		return r.db.Close()
	}
	return nil
}

// syncEngine returns the engine, building the store client and scheduler from the config on first use.
func (r *Runner) syncEngine() (*tasks.SyncEngine, error) {
	if r.engine != nil {
		return r.engine, nil
	}
	if err := r.config.Validate(); err != nil {
		return nil, err
	}

	store, err := services.NewStoreService(services.StoreOpts{
		URL:       r.config.Store.URL,
		Timeout:   r.config.Store.Timeout(),
		RateLimit: r.config.Store.RateLimit,
	})
	if err != nil {
		return nil, err
	}

	sched := tasks.NewScheduler(tasks.SchedulerOpts{
		MaxConcurrent: r.config.Store.MaxConcurrentTasks,
		Logger:        r.logger,
		Updates:       r.updates,
	})

	engine, err := tasks.NewSyncEngine(tasks.EngineOpts{
		Store:        store,
		Scheduler:    sched,
		Credentials:  store.Credentials(),
		PageSize:     r.config.Store.PageSize,
		Connectivity: r.online,
		Logger:       r.logger,
	})
	if err != nil {
		return nil, err
	}

	r.engine = engine
	r.storeURL = store.Root()
	return engine, nil
}

// storeKey identifies the store in the bookkeeping tables.
func (r *Runner) storeKey() (string, error) {
	if r.storeURL != "" {
		return r.storeURL, nil
	}
	root, _, err := services.ParseStoreURL(r.config.Store.URL)
	if err != nil {
		return "", err
	}
	r.storeURL = root.String()
	return r.storeURL, nil
}

// openRepositories opens and migrates the bookkeeping database on first use.
func (r *Runner) openRepositories() error {
	if r.db != nil {
		return nil
	}

	db, err := shared.NewDatabase(r.config.Database.Path)
	if err != nil {
		return err
	}
	shared.ConfigureDatabase(db, r.config.Database)

	if err := shared.RunMigrations(db); err != nil {
		db.Close()
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	r.useDatabase(db)
	r.ownsDB = true
	return nil
}

func (r *Runner) useDatabase(db *sql.DB) {
	r.db = db
	r.cursors = repositories.NewCursorRepository(db)
	r.tracked = repositories.NewTrackedDocumentRepository(db)
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	var output []byte
	var err error

	if pretty {
		output, err = json.MarshalIndent(data, "", "  ")
	} else {
		output, err = json.Marshal(data)
	}

	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if _, err := r.output.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writeBytes(data []byte) error {
	if _, err := r.output.Write(data); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}
