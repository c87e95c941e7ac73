package main

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/docsync/internal/shared"
	"github.com/desertthunder/docsync/internal/tasks"
	"github.com/desertthunder/docsync/internal/ui"
	"github.com/urfave/cli/v3"
)

// Browse launches the interactive document browser.
func (r *Runner) Browse(ctx context.Context, cmd *cli.Command) error {
	// Redirect logs to file to avoid interfering with TUI rendering
	fileLogger, err := shared.NewFileLogger(cmd.String("log-file"))
	if err != nil {
		return fmt.Errorf("failed to create file logger: %w", err)
	}
	fileLogger.SetLevel(r.logger.GetLevel())
	r.SetLogger(fileLogger)

	// The engine must be built after the updates channel exists so the scheduler reports to it.
	r.updates = make(chan tasks.Update, 16)
	engine, err := r.syncEngine()
	if err != nil {
		return err
	}

	model := ui.NewModel(ctx, engine, r.updates, cmd.String("tag"))
	p := tea.NewProgram(model, tea.WithContext(ctx))

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("error running TUI: %w", err)
	}

	return nil
}
