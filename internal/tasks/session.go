package tasks

import (
	"context"
	"encoding/json"
)

// sessionPath is the server-level session endpoint, resolved next to the database.
const sessionPath = "../_session"

type sessionRequest struct {
	Name     string `json:"name"`
	Password string `json:"password"`
}

// StartSession constructs a task whose first steps establish that the store can be used.
//
// With an injected [shared.Connectivity] the task fails fast while offline. With credentials the task first
// logs in through the session endpoint; the session cookie is kept by the store client. Callers attach their
// own steps with [Task.OnRun] and enqueue the task.
func (e *SyncEngine) StartSession(ctx context.Context, name string) *Task {
	t := e.sched.NewTask(ctx, name)
	if e.online != nil {
		t.OnRun(e.requireOnline)
	}
	if e.creds != nil {
		t.OnRun(e.authenticate)
	}
	return t
}

func (e *SyncEngine) requireOnline(_ context.Context, t *Task) {
	if e.online.Offline() {
		e.logger.Warn("store offline", "task", t.Name())
		t.Error(offlineError())
		return
	}
	t.Chain()
}

func (e *SyncEngine) authenticate(ctx context.Context, t *Task) {
	body, err := json.Marshal(sessionRequest{Name: e.creds.Username, Password: e.creds.Password})
	if err != nil {
		e.fail(t, nil, err)
		return
	}

	resp, err := e.store.Post(ctx, sessionPath, nil, body)
	if err != nil || !accepted(resp) {
		e.fail(t, resp, err)
		return
	}

	e.logger.Debug("session established", "task", t.Name(), "user", e.creds.Username)
	t.Chain()
}
