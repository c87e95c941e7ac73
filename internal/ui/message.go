package ui

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/docsync/internal/models"
	"github.com/desertthunder/docsync/internal/tasks"
)

// MsgKind enumerates all message types in the application.
type MsgKind int

// Msg represents all possible messages in the TUI (Elm-style message union).
type Msg struct {
	kind MsgKind
	data any
}

var (
	_ tea.Msg = Msg{}
)

const (
	MsgDocumentsListed MsgKind = iota
	MsgContentDownloaded
	MsgDocumentsDeleted
	MsgTaskUpdate
	MsgUpdatesClosed
)

type listedData struct {
	query tasks.ListQuery
	docs  []models.Document
	err   error
}

type downloadedData struct {
	doc *models.Document
	err error
}

// documentsListedMsg is the constructor for [MsgDocumentsListed]
func documentsListedMsg(query tasks.ListQuery, docs []models.Document, err error) Msg {
	return Msg{kind: MsgDocumentsListed, data: listedData{query, docs, err}}
}

// contentDownloadedMsg is the constructor for [MsgContentDownloaded]
func contentDownloadedMsg(doc *models.Document, err error) Msg {
	return Msg{kind: MsgContentDownloaded, data: downloadedData{doc, err}}
}

// documentsDeletedMsg is the constructor for [MsgDocumentsDeleted]
func documentsDeletedMsg(err error) Msg {
	return Msg{kind: MsgDocumentsDeleted, data: err}
}

// taskUpdateMsg is the constructor for [MsgTaskUpdate]
func taskUpdateMsg(update tasks.Update) Msg {
	return Msg{kind: MsgTaskUpdate, data: update}
}

// updatesClosedMsg is the constructor for [MsgUpdatesClosed]
func updatesClosedMsg() Msg {
	return Msg{kind: MsgUpdatesClosed}
}
