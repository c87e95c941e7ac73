package ui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/docsync/internal/formatter"
	"github.com/desertthunder/docsync/internal/models"
	"github.com/desertthunder/docsync/internal/tasks"
)

// ViewState represents the current view in the TUI.
type ViewState int

const (
	DocumentListView ViewState = iota
	TagInputView
	ContentView
	ConfirmDeleteView
)

// Engine is the subset of [tasks.SyncEngine] the browser drives.
type Engine interface {
	ListDocuments(ctx context.Context, q tasks.ListQuery, done func([]models.Document, error)) *tasks.Task
	DownloadContent(ctx context.Context, docs []models.Document, done func([]models.Document, error)) *tasks.Task
	DeleteDocuments(ctx context.Context, docs []models.Document, done func(error)) *tasks.Task
	PageSize() int
}

// Model represents the TUI application state.
type Model struct {
	ctx      context.Context
	view     ViewState
	engine   Engine
	updates  <-chan tasks.Update
	width    int
	height   int
	docList  list.Model
	docs     []models.Document
	query    tasks.ListQuery
	history  []int64 // Before values of newer pages
	tagInput textinput.Model
	content  viewport.Model
	selected *models.Document
	status   string
	failed   bool
	err      error
	help     help.Model
	keys     keyMap
}

// NewModel creates a browser starting at the newest page for tag ("" for every document).
//
// updates may be nil; when set it should be the channel passed to the engine's scheduler.
func NewModel(ctx context.Context, engine Engine, updates <-chan tasks.Update, tag string) *Model {
	ti := textinput.New()
	ti.Placeholder = "tag (empty for all documents)"
	ti.CharLimit = 64

	docList := list.New(nil, list.NewDefaultDelegate(), 0, 0)
	docList.SetShowHelp(false)

	return &Model{
		ctx:      ctx,
		view:     DocumentListView,
		engine:   engine,
		updates:  updates,
		docList:  docList,
		query:    tasks.ListQuery{Tag: strings.TrimSpace(tag)},
		tagInput: ti,
		content:  viewport.New(0, 0),
		help:     help.New(),
		keys:     newKeyMap(),
	}
}

// Init loads the first page and starts listening for task updates.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.listDocuments(m.query), m.waitForUpdate())
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.docList.SetSize(msg.Width-4, msg.Height-6)
		m.content.Width = msg.Width - 4
		m.content.Height = msg.Height - 6
		return m, nil

	case tea.KeyMsg:
		switch m.view {
		case DocumentListView:
			return m.handleListKeys(msg)
		case TagInputView:
			return m.handleTagKeys(msg)
		case ContentView:
			return m.handleContentKeys(msg)
		case ConfirmDeleteView:
			return m.handleConfirmKeys(msg)
		}

	case Msg:
		return m.handleMsg(msg)
	}

	return m.updateComponents(msg)
}

func (m *Model) handleMsg(msg Msg) (tea.Model, tea.Cmd) {
	switch msg.kind {
	case MsgDocumentsListed:
		data := msg.data.(listedData)
		if data.err != nil {
			m.err = data.err
			return m, nil
		}
		m.err = nil
		m.query = data.query
		m.docs = data.docs
		m.docList.Title = m.listTitle()
		cmd := m.docList.SetItems(documentItems(data.docs))
		m.docList.ResetSelected()
		return m, cmd

	case MsgContentDownloaded:
		data := msg.data.(downloadedData)
		if data.err != nil {
			m.err = data.err
			m.view = DocumentListView
			return m, nil
		}
		m.err = nil
		m.selected = data.doc
		m.content.SetContent(string(formatter.DocumentToMarkdown(*data.doc)))
		m.content.GotoTop()
		m.view = ContentView
		return m, nil

	case MsgDocumentsDeleted:
		m.view = DocumentListView
		m.selected = nil
		if err, _ := msg.data.(error); err != nil {
			m.err = err
			return m, nil
		}
		m.err = nil
		return m, m.listDocuments(m.query)

	case MsgTaskUpdate:
		update := msg.data.(tasks.Update)
		m.status = update.Message()
		m.failed = update.State == tasks.Failed
		return m, m.waitForUpdate()

	case MsgUpdatesClosed:
		m.updates = nil
	}
	return m, nil
}

// View renders the UI based on the current view state.
func (m *Model) View() string {
	var body string
	switch m.view {
	case DocumentListView:
		body = m.renderList()
	case TagInputView:
		body = m.renderTagInput()
	case ContentView:
		body = m.renderContent()
	case ConfirmDeleteView:
		body = m.renderConfirm()
	}

	if m.err != nil {
		body = fmt.Sprintf("%s\n%s", styles.err.Render(fmt.Sprintf("Error: %v", m.err)), body)
	}
	if m.status != "" {
		body = fmt.Sprintf("%s\n%s", body, styles.Status(m.status, m.failed))
	}
	return body
}

func (m *Model) handleListKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.docList.FilterState() == list.Filtering {
		return m.updateComponents(msg)
	}

	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.enter):
		if doc, ok := m.selectedDocument(); ok {
			return m, m.downloadContent(doc)
		}
		return m, nil
	case key.Matches(msg, m.keys.next):
		return m, m.nextPage()
	case key.Matches(msg, m.keys.prev):
		return m, m.prevPage()
	case key.Matches(msg, m.keys.refresh):
		return m, m.listDocuments(m.query)
	case key.Matches(msg, m.keys.tag):
		m.tagInput.SetValue(m.query.Tag)
		m.view = TagInputView
		return m, m.tagInput.Focus()
	case key.Matches(msg, m.keys.del):
		if doc, ok := m.selectedDocument(); ok {
			m.selected = &doc
			m.view = ConfirmDeleteView
		}
		return m, nil
	}

	return m.updateComponents(msg)
}

func (m *Model) handleTagKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		return m, tea.Quit
	case "esc":
		m.tagInput.Blur()
		m.view = DocumentListView
		return m, nil
	case "enter":
		m.tagInput.Blur()
		m.view = DocumentListView
		m.history = nil
		return m, m.listDocuments(tasks.ListQuery{Tag: strings.TrimSpace(m.tagInput.Value())})
	}

	return m.updateComponents(msg)
}

func (m *Model) handleContentKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.back):
		m.view = DocumentListView
		m.selected = nil
		return m, nil
	case key.Matches(msg, m.keys.del):
		m.view = ConfirmDeleteView
		return m, nil
	}

	return m.updateComponents(msg)
}

func (m *Model) handleConfirmKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case msg.String() == "ctrl+c":
		return m, tea.Quit
	case key.Matches(msg, m.keys.yes):
		return m, m.deleteSelected()
	case key.Matches(msg, m.keys.no):
		m.view = DocumentListView
		m.selected = nil
		return m, nil
	}
	return m, nil
}

func (m *Model) updateComponents(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch m.view {
	case DocumentListView:
		m.docList, cmd = m.docList.Update(msg)
	case TagInputView:
		m.tagInput, cmd = m.tagInput.Update(msg)
	case ContentView:
		m.content, cmd = m.content.Update(msg)
	}
	return m, cmd
}

func (m *Model) selectedDocument() (models.Document, bool) {
	item, ok := m.docList.SelectedItem().(documentItem)
	if !ok {
		return models.Document{}, false
	}
	return item.doc, true
}

// nextPage lists documents older than the last one shown. A short page is the last page.
func (m *Model) nextPage() tea.Cmd {
	if len(m.docs) == 0 || len(m.docs) < m.engine.PageSize() {
		m.status = "no older documents"
		m.failed = false
		return nil
	}

	last := m.docs[len(m.docs)-1]
	if last.Updated <= 1 {
		return nil
	}

	m.history = append(m.history, m.query.Before)
	return m.listDocuments(tasks.ListQuery{Tag: m.query.Tag, Before: last.Updated - 1})
}

func (m *Model) prevPage() tea.Cmd {
	if len(m.history) == 0 {
		return nil
	}

	before := m.history[len(m.history)-1]
	m.history = m.history[:len(m.history)-1]
	return m.listDocuments(tasks.ListQuery{Tag: m.query.Tag, Before: before})
}

func (m *Model) listDocuments(q tasks.ListQuery) tea.Cmd {
	return func() tea.Msg {
		var docs []models.Document
		err := m.engine.ListDocuments(m.ctx, q, func(d []models.Document, _ error) { docs = d }).Wait()
		return documentsListedMsg(q, docs, err)
	}
}

func (m *Model) downloadContent(doc models.Document) tea.Cmd {
	return func() tea.Msg {
		var out []models.Document
		err := m.engine.DownloadContent(m.ctx, []models.Document{doc}, func(d []models.Document, _ error) { out = d }).Wait()
		if err != nil {
			return contentDownloadedMsg(nil, err)
		}
		if len(out) != 1 {
			return contentDownloadedMsg(nil, fmt.Errorf("expected one document, got %d", len(out)))
		}
		return contentDownloadedMsg(&out[0], nil)
	}
}

func (m *Model) deleteSelected() tea.Cmd {
	if m.selected == nil {
		m.view = DocumentListView
		return nil
	}
	doc := *m.selected
	return func() tea.Msg {
		return documentsDeletedMsg(m.engine.DeleteDocuments(m.ctx, []models.Document{doc}, nil).Wait())
	}
}

func (m *Model) waitForUpdate() tea.Cmd {
	if m.updates == nil {
		return nil
	}
	updates := m.updates
	return func() tea.Msg {
		update, ok := <-updates
		if !ok {
			return updatesClosedMsg()
		}
		return taskUpdateMsg(update)
	}
}

func (m *Model) listTitle() string {
	title := "Documents"
	if m.query.Tag != "" {
		title = fmt.Sprintf("Documents tagged '%s'", m.query.Tag)
	}
	if page := len(m.history); page > 0 {
		title = fmt.Sprintf("%s (page %d)", title, page+1)
	}
	return title
}

func (m *Model) renderList() string {
	helpKeys := []key.Binding{m.keys.enter, m.keys.next, m.keys.prev, m.keys.tag, m.keys.del, m.keys.refresh, m.keys.quit}
	helpView := m.help.ShortHelpView(helpKeys)
	if len(m.docs) == 0 {
		return fmt.Sprintf("%s\n\n%s\n\n%s", styles.title.Render(m.listTitle()), styles.help.Render("No documents"), helpView)
	}
	return fmt.Sprintf("%s\n\n%s", m.docList.View(), helpView)
}

func (m *Model) renderTagInput() string {
	title := styles.title.Render("Filter by tag")
	helpView := m.help.ShortHelpView([]key.Binding{
		key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "apply")),
		m.keys.back,
	})
	return fmt.Sprintf("%s\n%s\n\n%s", title, m.tagInput.View(), helpView)
}

func (m *Model) renderContent() string {
	helpView := m.help.ShortHelpView([]key.Binding{m.keys.up, m.keys.down, m.keys.del, m.keys.back, m.keys.quit})
	return fmt.Sprintf("%s\n\n%s", m.content.View(), helpView)
}

func (m *Model) renderConfirm() string {
	if m.selected == nil {
		return ""
	}

	title := styles.warn.Render(fmt.Sprintf("Delete '%s'?", formatter.DisplayTitle(*m.selected)))
	info := fmt.Sprintf("\nID: %s\nRevision: %s\n", m.selected.ID, m.selected.Revision)
	if len(m.selected.Tags) > 0 {
		info += fmt.Sprintf("Tags: %s\n", strings.Join(m.selected.Tags, ", "))
	}

	helpView := m.help.ShortHelpView([]key.Binding{m.keys.yes, m.keys.no})
	return fmt.Sprintf("%s\n%s\n%s", title, info, helpView)
}
