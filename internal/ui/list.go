package ui

import (
	"strings"

	"github.com/charmbracelet/bubbles/list"
	"github.com/desertthunder/docsync/internal/formatter"
	"github.com/desertthunder/docsync/internal/models"
)

var _ list.Item = documentItem{}

// documentItem wraps [models.Document] to implement [list.Item].
type documentItem struct {
	doc models.Document
}

func (i documentItem) FilterValue() string { return i.doc.Title + " " + strings.Join(i.doc.Tags, " ") }
func (i documentItem) Title() string       { return formatter.DisplayTitle(i.doc) }
func (i documentItem) Description() string {
	parts := []string{i.doc.ID}
	if len(i.doc.Tags) > 0 {
		parts = append(parts, strings.Join(i.doc.Tags, ", "))
	}
	if updated := formatter.FormatUpdated(i.doc); updated != "" {
		parts = append(parts, updated)
	}
	return strings.Join(parts, " • ")
}

func documentItems(docs []models.Document) []list.Item {
	items := make([]list.Item, len(docs))
	for i, doc := range docs {
		items[i] = documentItem{doc: doc}
	}
	return items
}
