package formatter

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/desertthunder/docsync/internal/models"
	"github.com/desertthunder/docsync/internal/shared"
	th "github.com/desertthunder/docsync/internal/testing"
)

func sampleDocuments() []models.Document {
	first := models.Document{
		ID:       "n1",
		Revision: "2-abc",
		Title:    "Groceries",
		Tags:     []string{"home", "list"},
		Updated:  1700000000000,
	}
	first.SetContent([]byte("milk\neggs"))

	second := models.Document{ID: "n2", Title: "", Updated: 0}

	return []models.Document{first, second, models.Tombstone("n3")}
}

func TestExporters(t *testing.T) {
	t.Run("ExportToCSV", func(t *testing.T) {
		data, err := ExportToCSV(sampleDocuments())
		if err != nil {
			t.Fatalf("ExportToCSV failed: %v", err)
		}

		output := string(data)
		if !strings.Contains(output, "ID,Revision,Title,Tags,Updated,Deleted,Length") {
			t.Errorf("CSV missing headers, got: %s", output)
		}
		if !strings.Contains(output, "n1,2-abc,Groceries,home;list,2023-11-14T22:13:20Z,false,9") {
			t.Errorf("CSV missing first record, got: %s", output)
		}
		if !strings.Contains(output, "n3,,,,,true,0") {
			t.Errorf("CSV missing tombstone record, got: %s", output)
		}
	})

	t.Run("ExportToMarkdown", func(t *testing.T) {
		data, err := ExportToMarkdown(sampleDocuments(), "Work")
		if err != nil {
			t.Fatalf("ExportToMarkdown failed: %v", err)
		}

		output := string(data)
		expected := []string{
			"# Work",
			"**Documents**: 3",
			"1. **Groceries** (`n1`) [home, list] - 2023-11-14T22:13:20Z",
			"2. **(untitled)** (`n2`)\n",
			"3. ~~n3~~ (deleted)",
		}
		for _, want := range expected {
			if !strings.Contains(output, want) {
				t.Errorf("Markdown missing %q, got:\n%s", want, output)
			}
		}
	})

	t.Run("DocumentToMarkdown", func(t *testing.T) {
		output := string(DocumentToMarkdown(sampleDocuments()[0]))

		expected := []string{"# Groceries", "**ID**: n1", "**Revision**: 2-abc", "**Tags**: home, list", "\nmilk\neggs\n"}
		for _, want := range expected {
			if !strings.Contains(output, want) {
				t.Errorf("Markdown missing %q, got:\n%s", want, output)
			}
		}

		bare := string(DocumentToMarkdown(models.Document{ID: "x"}))
		if strings.Contains(bare, "**Tags**") || strings.Contains(bare, "**Revision**") {
			t.Errorf("expected optional fields to be omitted, got:\n%s", bare)
		}
	})

	t.Run("ExportToText", func(t *testing.T) {
		data, err := ExportToText(sampleDocuments())
		if err != nil {
			t.Fatalf("ExportToText failed: %v", err)
		}

		output := string(data)
		for _, want := range []string{"Documents: 3", "1. n1 - Groceries", "2. n2 - (untitled)", "3. n3 (deleted)"} {
			if !strings.Contains(output, want) {
				t.Errorf("text missing %q, got:\n%s", want, output)
			}
		}
	})

	t.Run("ExportToJSON", func(t *testing.T) {
		data, err := ExportToJSON(sampleDocuments())
		if err != nil {
			t.Fatalf("ExportToJSON failed: %v", err)
		}

		var decoded []models.Document
		if err := json.Unmarshal(data, &decoded); err != nil {
			t.Fatalf("failed to decode JSON: %v", err)
		}
		if len(decoded) != 3 || string(decoded[0].Content()) != "milk\neggs" {
			t.Errorf("expected documents to survive JSON, got %+v", decoded)
		}

		empty, _ := ExportToJSON(nil)
		if string(empty) != "[]" {
			t.Errorf("expected [], got %s", empty)
		}
	})
}

func TestRender(t *testing.T) {
	tests := []struct {
		format string
		prefix string
	}{
		{"", "["},
		{"json", "["},
		{"csv", "ID,"},
		{"markdown", "# Documents"},
		{"md", "# Documents"},
		{"txt", "Documents:"},
		{"TEXT", "Documents:"},
	}

	for _, tt := range tests {
		t.Run("Format "+tt.format, func(t *testing.T) {
			data, err := Render(sampleDocuments(), tt.format)
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if !strings.HasPrefix(string(data), tt.prefix) {
				t.Errorf("expected prefix %q, got %q", tt.prefix, string(data))
			}
		})
	}

	t.Run("Unknown Format", func(t *testing.T) {
		if _, err := Render(nil, "xml"); !errors.Is(err, shared.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, got %v", err)
		}
	})
}

func TestWriters(t *testing.T) {
	t.Run("WriteExport", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "out.csv")

		written, err := WriteExport(sampleDocuments(), "csv", path)
		if err != nil {
			t.Fatalf("WriteExport failed: %v", err)
		}
		if written != path {
			t.Errorf("expected %s, got %s", path, written)
		}
		if !strings.HasPrefix(th.MustReadFile(t, path), "ID,Revision") {
			t.Error("expected CSV file contents")
		}
	})

	t.Run("WriteExport Default Path", func(t *testing.T) {
		t.Chdir(t.TempDir())

		written, err := WriteExport(sampleDocuments(), "", "")
		if err != nil {
			t.Fatalf("WriteExport failed: %v", err)
		}
		if written != "documents.json" {
			t.Errorf("expected documents.json, got %s", written)
		}
	})

	t.Run("WriteExport Invalid Directory", func(t *testing.T) {
		if _, err := WriteExport(nil, "json", "/nonexistent/dir/out.json"); err == nil {
			t.Error("expected error for invalid path")
		}
	})

	t.Run("WriteContentFiles", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "content")
		docs := sampleDocuments()
		nested := models.Document{ID: "notes/a"}
		nested.SetContent([]byte("nested"))
		docs = append(docs, nested)

		files, err := WriteContentFiles(docs, dir)
		if err != nil {
			t.Fatalf("WriteContentFiles failed: %v", err)
		}
		if len(files) != 2 {
			t.Fatalf("expected 2 files, got %v", files)
		}
		if got := th.MustReadFile(t, filepath.Join(dir, "n1.txt")); got != "milk\neggs" {
			t.Errorf("expected n1 content, got %q", got)
		}
		if _, err := os.Stat(filepath.Join(dir, "notes_a.txt")); err != nil {
			t.Errorf("expected escaped file name, got %v", err)
		}
	})
}

func TestContentFilename(t *testing.T) {
	tests := map[string]string{
		"n1":        "n1.txt",
		"notes/a":   "notes_a.txt",
		`c:\x`:      "c__x.txt",
		"..":        "_...txt",
		"":          "_.txt",
		"unicode-é": "unicode-é.txt",
	}

	for id, expected := range tests {
		if got := ContentFilename(id); got != expected {
			t.Errorf("expected %q for %q, got %q", expected, id, got)
		}
	}
}
