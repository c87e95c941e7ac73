package models

import (
	"encoding/json"
	"time"
)

const (
	// ContentAttachment is the attachment name that carries a document's body.
	ContentAttachment = "content"
	// ContentType is the content type sent with every body attachment.
	ContentType = "text/plain"
)

// Document is a stored note in the store's JSON shape.
type Document struct {
	ID          string                `json:"_id"`
	Revision    string                `json:"_rev,omitempty"`
	Title       string                `json:"title,omitempty"`
	Tags        []string              `json:"tags,omitempty"`
	Updated     int64                 `json:"updated,omitempty"` // milliseconds since epoch
	Attachments map[string]Attachment `json:"_attachments,omitempty"`
	Deleted     bool                  `json:"deleted,omitempty"`
}

// Attachment is a named binary payload. Data is base64 on the wire; stubs carry only metadata.
type Attachment struct {
	ContentType string `json:"content_type"`
	Data        []byte `json:"data,omitempty"`
	Stub        bool   `json:"stub,omitempty"`
	Length      int64  `json:"length,omitempty"`
	Digest      string `json:"digest,omitempty"`
}

// MarshalJSON always writes data for inline attachments, as "" when the body is empty.
func (a Attachment) MarshalJSON() ([]byte, error) {
	type attachment Attachment
	if a.Stub {
		return json.Marshal(attachment(a))
	}

	data := a.Data
	if data == nil {
		data = []byte{}
	}
	return json.Marshal(struct {
		attachment
		Data []byte `json:"data"`
	}{attachment(a), data})
}

// Tombstone returns the change record for a deleted document.
func Tombstone(id string) Document {
	return Document{ID: id, Deleted: true}
}

// IsTombstone reports whether d only marks a deletion.
func (d Document) IsTombstone() bool {
	return d.Deleted
}

// HasContent reports whether the body attachment is inlined.
func (d Document) HasContent() bool {
	att, ok := d.Attachments[ContentAttachment]
	return ok && att.Data != nil
}

// Content returns the inlined body, or nil.
func (d Document) Content() []byte {
	return d.Attachments[ContentAttachment].Data
}

// SetContent replaces the attachments with a single text/plain body.
func (d *Document) SetContent(content []byte) {
	if content == nil {
		content = []byte{}
	}
	d.Attachments = map[string]Attachment{
		ContentAttachment: {ContentType: ContentType, Data: content},
	}
}

// UpdatedAt converts Updated to a [time.Time]; zero when unset.
func (d Document) UpdatedAt() time.Time {
	if d.Updated == 0 {
		return time.Time{}
	}
	return time.UnixMilli(d.Updated)
}

// Merge copies every field set on other onto d. Attachments are merged by name.
func (d *Document) Merge(other Document) {
	if other.ID != "" {
		d.ID = other.ID
	}
	if other.Revision != "" {
		d.Revision = other.Revision
	}
	if other.Title != "" {
		d.Title = other.Title
	}
	if other.Tags != nil {
		d.Tags = other.Tags
	}
	if other.Updated != 0 {
		d.Updated = other.Updated
	}
	if other.Deleted {
		d.Deleted = true
	}
	if len(other.Attachments) > 0 {
		merged := make(map[string]Attachment, len(d.Attachments)+len(other.Attachments))
		for name, att := range d.Attachments {
			merged[name] = att
		}
		for name, att := range other.Attachments {
			merged[name] = att
		}
		d.Attachments = merged
	}
}
