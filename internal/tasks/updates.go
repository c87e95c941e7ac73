package tasks

import "fmt"

// Update is a task state change, sent to [SchedulerOpts.Updates] for display by the CLI or UI layer.
type Update struct {
	Task  string // task name
	State State
	Err   error // set when State is Failed
}

// Message renders the update for a status line.
func (u Update) Message() string {
	switch u.State {
	case Running:
		return fmt.Sprintf("%s...", u.Task)
	case Succeeded:
		return fmt.Sprintf("✓ %s", u.Task)
	case Failed:
		return fmt.Sprintf("✗ %s: %v", u.Task, u.Err)
	default:
		return fmt.Sprintf("%s (%s)", u.Task, u.State)
	}
}
