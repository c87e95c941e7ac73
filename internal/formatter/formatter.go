// package formatter renders document lists to JSON, CSV, Markdown and plain text
package formatter

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/desertthunder/docsync/internal/models"
	"github.com/desertthunder/docsync/internal/shared"
)

// Supported output formats.
const (
	FormatJSON     = "json"
	FormatCSV      = "csv"
	FormatMarkdown = "markdown"
	FormatText     = "txt"
)

// Formats lists every value accepted by [Render].
var Formats = []string{FormatJSON, FormatCSV, FormatMarkdown, FormatText}

// Render converts docs to the named format. An empty format means JSON.
func Render(docs []models.Document, format string) ([]byte, error) {
	switch strings.ToLower(format) {
	case "", FormatJSON:
		return ExportToJSON(docs)
	case FormatCSV:
		return ExportToCSV(docs)
	case FormatMarkdown, "md":
		return ExportToMarkdown(docs, "Documents")
	case FormatText, "text":
		return ExportToText(docs)
	default:
		return nil, fmt.Errorf("%w: unknown format %q (want one of %s)", shared.ErrInvalidArgument, format, strings.Join(Formats, ", "))
	}
}

// ExportToJSON encodes docs as an indented JSON array; nil encodes as [].
func ExportToJSON(docs []models.Document) ([]byte, error) {
	if docs == nil {
		docs = []models.Document{}
	}
	return shared.MarshalJSON(docs, true)
}

// ExportToCSV converts docs to CSV with columns: ID, Revision, Title, Tags, Updated, Deleted, Length
func ExportToCSV(docs []models.Document) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"ID", "Revision", "Title", "Tags", "Updated", "Deleted", "Length"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, doc := range docs {
		record := []string{
			doc.ID,
			doc.Revision,
			doc.Title,
			strings.Join(doc.Tags, ";"),
			FormatUpdated(doc),
			strconv.FormatBool(doc.Deleted),
			strconv.Itoa(len(doc.Content())),
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// ExportToMarkdown renders docs as a numbered Markdown list under heading.
func ExportToMarkdown(docs []models.Document, heading string) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteString(fmt.Sprintf("# %s\n\n", heading))
	buf.WriteString(fmt.Sprintf("**Documents**: %d\n\n", len(docs)))

	for i, doc := range docs {
		if doc.IsTombstone() {
			buf.WriteString(fmt.Sprintf("%d. ~~%s~~ (deleted)\n", i+1, doc.ID))
			continue
		}

		tagPart := ""
		if len(doc.Tags) > 0 {
			tagPart = fmt.Sprintf(" [%s]", strings.Join(doc.Tags, ", "))
		}
		updatedPart := ""
		if updated := FormatUpdated(doc); updated != "" {
			updatedPart = fmt.Sprintf(" - %s", updated)
		}
		buf.WriteString(fmt.Sprintf("%d. **%s** (`%s`)%s%s\n", i+1, DisplayTitle(doc), doc.ID, tagPart, updatedPart))
	}

	return buf.Bytes(), nil
}

// DocumentToMarkdown renders one document with its metadata and body.
func DocumentToMarkdown(doc models.Document) []byte {
	var buf bytes.Buffer

	buf.WriteString(fmt.Sprintf("# %s\n\n", DisplayTitle(doc)))
	buf.WriteString(fmt.Sprintf("**ID**: %s\n", doc.ID))
	if doc.Revision != "" {
		buf.WriteString(fmt.Sprintf("**Revision**: %s\n", doc.Revision))
	}
	if len(doc.Tags) > 0 {
		buf.WriteString(fmt.Sprintf("**Tags**: %s\n", strings.Join(doc.Tags, ", ")))
	}
	if updated := FormatUpdated(doc); updated != "" {
		buf.WriteString(fmt.Sprintf("**Updated**: %s\n", updated))
	}

	if doc.HasContent() {
		buf.WriteString("\n")
		buf.Write(doc.Content())
		if !bytes.HasSuffix(doc.Content(), []byte("\n")) {
			buf.WriteString("\n")
		}
	}

	return buf.Bytes()
}

// ExportToText converts docs to plain text, one line per document
func ExportToText(docs []models.Document) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteString(fmt.Sprintf("Documents: %d\n\n", len(docs)))
	for i, doc := range docs {
		if doc.IsTombstone() {
			buf.WriteString(fmt.Sprintf("%d. %s (deleted)\n", i+1, doc.ID))
			continue
		}
		buf.WriteString(fmt.Sprintf("%d. %s - %s\n", i+1, doc.ID, DisplayTitle(doc)))
	}

	return buf.Bytes(), nil
}

// DisplayTitle returns the title, or a placeholder for untitled documents.
func DisplayTitle(doc models.Document) string {
	if doc.Title == "" {
		return "(untitled)"
	}
	return doc.Title
}

// FormatUpdated renders the update time in UTC, or "" when unset.
func FormatUpdated(doc models.Document) string {
	updated := doc.UpdatedAt()
	if updated.IsZero() {
		return ""
	}
	return updated.UTC().Format(time.RFC3339)
}

// WriteExport renders docs and writes them to path.
//
// Defaults to documents.{format} in the working directory.
func WriteExport(docs []models.Document, format, path string) (string, error) {
	data, err := Render(docs, format)
	if err != nil {
		return "", err
	}

	if path == "" {
		ext := format
		if ext == "" {
			ext = FormatJSON
		}
		path = fmt.Sprintf("documents.%s", ext)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write export file: %w", err)
	}
	return path, nil
}

// WriteContentFiles writes the body of every document that carries one to {dir}/{id}.txt.
//
// Ids are escaped so they stay inside dir. Tombstones and documents without content are skipped.
func WriteContentFiles(docs []models.Document, dir string) ([]string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	files := []string{}
	for _, doc := range docs {
		if doc.IsTombstone() || !doc.HasContent() {
			continue
		}

		path := filepath.Join(dir, ContentFilename(doc.ID))
		if err := os.WriteFile(path, doc.Content(), 0644); err != nil {
			return files, fmt.Errorf("failed to write %s: %w", path, err)
		}
		files = append(files, path)
	}
	return files, nil
}

// ContentFilename maps a document id to a flat, filesystem-safe file name.
func ContentFilename(id string) string {
	var b strings.Builder
	for _, r := range id {
		switch {
		case r == '/' || r == '\\' || r == ':' || r == 0:
			b.WriteRune('_')
		default:
			b.WriteRune(r)
		}
	}

	name := b.String()
	if name == "" || name == "." || name == ".." {
		name = "_" + name
	}
	return name + ".txt"
}
