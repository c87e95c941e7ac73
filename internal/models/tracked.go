package models

import (
	"fmt"
	"time"
)

// TrackedDocument is the local record of a document this client uploaded or pulled.
//
// It keeps the last known revision so later updates and deletions can be sent without fetching first.
type TrackedDocument struct {
	ID        string
	Revision  string
	Title     string
	UpdatedAt time.Time
}

// NewTrackedDocument records doc as seen at now.
func NewTrackedDocument(doc Document, now time.Time) TrackedDocument {
	return TrackedDocument{ID: doc.ID, Revision: doc.Revision, Title: doc.Title, UpdatedAt: now}
}

// Validate checks required fields.
func (t TrackedDocument) Validate() error {
	if t.ID == "" {
		return fmt.Errorf("tracked document id is required")
	}
	return nil
}

// Document returns the id and revision pair used for deletions.
func (t TrackedDocument) Document() Document {
	return Document{ID: t.ID, Revision: t.Revision, Title: t.Title}
}
