package ui

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/docsync/internal/models"
	"github.com/desertthunder/docsync/internal/services"
	"github.com/desertthunder/docsync/internal/shared"
	"github.com/desertthunder/docsync/internal/tasks"
	tu "github.com/desertthunder/docsync/internal/testing"
)

func newTestModel(t *testing.T, store *tu.FakeStore, pageSize int) *Model {
	t.Helper()

	srv, err := services.NewStoreService(services.StoreOpts{URL: store.URL()})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	engine, err := tasks.NewSyncEngine(tasks.EngineOpts{
		Store:       srv,
		Credentials: srv.Credentials(),
		PageSize:    pageSize,
		Logger:      shared.NewLogger(io.Discard),
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	m := NewModel(context.Background(), engine, nil, "")
	m.Update(tea.WindowSizeMsg{Width: 100, Height: 40})
	return m
}

func seed(store *tu.FakeStore) {
	for _, doc := range []models.Document{
		{ID: "a", Title: "Alpha", Tags: []string{"work"}, Updated: 3000},
		{ID: "b", Title: "Beta", Updated: 2000},
		{ID: "c", Title: "Gamma", Tags: []string{"work"}, Updated: 1000},
	} {
		doc.SetContent([]byte("body of " + doc.ID))
		store.Put(doc)
	}
}

// run executes cmd and feeds its message back into the model.
func run(t *testing.T, m *Model, cmd tea.Cmd) tea.Cmd {
	t.Helper()
	if cmd == nil {
		t.Fatal("expected a command")
	}
	_, next := m.Update(cmd())
	return next
}

func keyPress(s string) tea.KeyMsg {
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func press(m *Model, s string) tea.Cmd {
	_, cmd := m.Update(keyPress(s))
	return cmd
}

func ids(docs []models.Document) string {
	out := make([]string, len(docs))
	for i, doc := range docs {
		out[i] = doc.ID
	}
	return strings.Join(out, ",")
}

func TestModel(t *testing.T) {
	t.Run("Lists First Page", func(t *testing.T) {
		store := tu.NewFakeStore(t)
		seed(store)
		m := newTestModel(t, store, 10)

		run(t, m, m.listDocuments(m.query))

		if got := ids(m.docs); got != "a,b,c" {
			t.Errorf("expected a,b,c, got %s", got)
		}
		if !strings.Contains(m.View(), "Alpha") {
			t.Errorf("expected list to render titles, got:\n%s", m.View())
		}
	})

	t.Run("Empty Store", func(t *testing.T) {
		m := newTestModel(t, tu.NewFakeStore(t), 10)
		run(t, m, m.listDocuments(m.query))

		if !strings.Contains(m.View(), "No documents") {
			t.Errorf("expected empty message, got:\n%s", m.View())
		}
	})

	t.Run("Paging", func(t *testing.T) {
		store := tu.NewFakeStore(t)
		seed(store)
		m := newTestModel(t, store, 2)
		run(t, m, m.listDocuments(m.query))

		run(t, m, press(m, "n"))
		if got := ids(m.docs); got != "c" {
			t.Errorf("expected older page c, got %s", got)
		}
		if m.query.Before != 1999 {
			t.Errorf("expected before 1999, got %d", m.query.Before)
		}
		if !strings.Contains(m.listTitle(), "page 2") {
			t.Errorf("expected page 2 in title, got %s", m.listTitle())
		}

		if cmd := press(m, "n"); cmd != nil {
			t.Error("expected no command past a short page")
		}
		if m.status != "no older documents" {
			t.Errorf("expected status about last page, got %q", m.status)
		}

		run(t, m, press(m, "p"))
		if got := ids(m.docs); got != "a,b" {
			t.Errorf("expected first page a,b, got %s", got)
		}
		if cmd := press(m, "p"); cmd != nil {
			t.Error("expected no command before the first page")
		}
	})

	t.Run("Tag Filter", func(t *testing.T) {
		store := tu.NewFakeStore(t)
		seed(store)
		m := newTestModel(t, store, 10)
		run(t, m, m.listDocuments(m.query))

		press(m, "t")
		if m.view != TagInputView {
			t.Fatalf("expected TagInputView, got %d", m.view)
		}
		m.tagInput.SetValue(" work ")
		run(t, m, press(m, "enter"))

		if m.view != DocumentListView {
			t.Errorf("expected DocumentListView, got %d", m.view)
		}
		if m.query.Tag != "work" {
			t.Errorf("expected tag work, got %q", m.query.Tag)
		}
		if got := ids(m.docs); got != "a,c" {
			t.Errorf("expected a,c, got %s", got)
		}
		if !strings.Contains(m.listTitle(), "tagged 'work'") {
			t.Errorf("expected tag in title, got %s", m.listTitle())
		}
	})

	t.Run("Open Document", func(t *testing.T) {
		store := tu.NewFakeStore(t)
		seed(store)
		m := newTestModel(t, store, 10)
		run(t, m, m.listDocuments(m.query))

		run(t, m, press(m, "enter"))

		if m.view != ContentView {
			t.Fatalf("expected ContentView, got %d", m.view)
		}
		if m.selected == nil || string(m.selected.Content()) != "body of a" {
			t.Errorf("expected downloaded content, got %+v", m.selected)
		}
		if !strings.Contains(m.View(), "body of a") {
			t.Errorf("expected content in view, got:\n%s", m.View())
		}

		press(m, "esc")
		if m.view != DocumentListView || m.selected != nil {
			t.Errorf("expected to return to the list, got view %d", m.view)
		}
	})

	t.Run("Delete Confirmed", func(t *testing.T) {
		store := tu.NewFakeStore(t)
		seed(store)
		m := newTestModel(t, store, 10)
		run(t, m, m.listDocuments(m.query))

		press(m, "d")
		if m.view != ConfirmDeleteView {
			t.Fatalf("expected ConfirmDeleteView, got %d", m.view)
		}
		if !strings.Contains(m.View(), "Delete 'Alpha'?") {
			t.Errorf("expected confirmation prompt, got:\n%s", m.View())
		}

		refresh := run(t, m, press(m, "y"))
		if _, ok := store.Doc("a"); ok {
			t.Error("expected a to be deleted")
		}
		run(t, m, refresh)
		if got := ids(m.docs); got != "b,c" {
			t.Errorf("expected b,c after refresh, got %s", got)
		}
	})

	t.Run("Delete Declined", func(t *testing.T) {
		store := tu.NewFakeStore(t)
		seed(store)
		m := newTestModel(t, store, 10)
		run(t, m, m.listDocuments(m.query))

		press(m, "d")
		if cmd := press(m, "n"); cmd != nil {
			t.Error("expected no command")
		}
		if m.view != DocumentListView {
			t.Errorf("expected DocumentListView, got %d", m.view)
		}
		if _, ok := store.Doc("a"); !ok {
			t.Error("expected a to be kept")
		}
	})

	t.Run("List Failure", func(t *testing.T) {
		store := tu.NewFakeStore(t)
		store.Fail(http.MethodGet, "/db/_design/by_update/_view/default", http.StatusInternalServerError, "view crashed")
		m := newTestModel(t, store, 10)

		run(t, m, m.listDocuments(m.query))

		var syncErr *tasks.SyncError
		if !errors.As(m.err, &syncErr) || syncErr.Code != http.StatusInternalServerError {
			t.Fatalf("expected SyncError 500, got %v", m.err)
		}
		if !strings.Contains(m.View(), "view crashed") {
			t.Errorf("expected error in view, got:\n%s", m.View())
		}
	})

	t.Run("Task Updates", func(t *testing.T) {
		updates := make(chan tasks.Update, 1)
		m := newTestModel(t, tu.NewFakeStore(t), 10)
		m.updates = updates

		updates <- tasks.Update{Task: "list documents", State: tasks.Failed, Err: errors.New("boom")}
		next := run(t, m, m.waitForUpdate())

		if !m.failed || !strings.Contains(m.View(), "✗ list documents: boom") {
			t.Errorf("expected failed status, got %q", m.status)
		}
		if next == nil {
			t.Error("expected to keep listening for updates")
		}

		close(updates)
		run(t, m, next)
		if m.updates != nil {
			t.Error("expected closed channel to stop listening")
		}
		if m.waitForUpdate() != nil {
			t.Error("expected no command without an updates channel")
		}
	})

	t.Run("Quit", func(t *testing.T) {
		m := newTestModel(t, tu.NewFakeStore(t), 10)
		cmd := press(m, "q")
		if cmd == nil {
			t.Fatal("expected quit command")
		}
		if _, ok := cmd().(tea.QuitMsg); !ok {
			t.Error("expected tea.QuitMsg")
		}
	})
}

func TestDocumentItem(t *testing.T) {
	item := documentItem{doc: models.Document{ID: "n1", Tags: []string{"a", "b"}, Updated: 1700000000000}}

	if item.Title() != "(untitled)" {
		t.Errorf("expected placeholder title, got %s", item.Title())
	}
	if expected := "n1 • a, b • 2023-11-14T22:13:20Z"; item.Description() != expected {
		t.Errorf("expected %q, got %q", expected, item.Description())
	}
	if !strings.Contains(item.FilterValue(), "a b") {
		t.Errorf("expected tags in filter value, got %q", item.FilterValue())
	}
}
