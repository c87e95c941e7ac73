package models

import (
	"encoding/json"
	"reflect"
	"strings"
	"testing"
)

func TestNormalizeTags(t *testing.T) {
	long := strings.Repeat("x", MaxTagLength)
	almost := strings.Repeat("y", MaxTagLength-1)

	many := make([]string, 0, 20)
	for i := 0; i < 20; i++ {
		many = append(many, string(rune('a'+i)))
	}

	tc := []struct {
		name string
		in   []string
		want []string
	}{
		{name: "nil stays nil", in: nil, want: nil},
		{name: "order preserved", in: []string{"b", "a"}, want: []string{"b", "a"}},
		{name: "duplicates dropped", in: []string{"a", "b", "a"}, want: []string{"a", "b"}},
		{name: "empty entries dropped", in: []string{"", "a", ""}, want: []string{"a"}},
		{name: "oversized dropped", in: []string{long, almost}, want: []string{almost}},
		{name: "capped at max", in: many, want: many[:MaxTags]},
		{name: "multibyte BMP counted once", in: []string{strings.Repeat("é", MaxTagLength-1)}, want: []string{strings.Repeat("é", MaxTagLength-1)}},
		{name: "astral counted as surrogate pair", in: []string{strings.Repeat("😀", MaxTagLength/2), strings.Repeat("😀", MaxTagLength/2-1)}, want: []string{strings.Repeat("😀", MaxTagLength/2-1)}},
	}

	for _, tt := range tc {
		t.Run(tt.name, func(t *testing.T) {
			got := NormalizeTags(tt.in)
			if tt.want == nil {
				if got != nil {
					t.Errorf("expected nil, got %v", got)
				}
				return
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("NormalizeTags() = %v, want %v", got, tt.want)
			}
		})
	}

	t.Run("Idempotent", func(t *testing.T) {
		once := NormalizeTags(append([]string{"a", "a", long}, many...))
		twice := NormalizeTags(once)
		if !reflect.DeepEqual(once, twice) {
			t.Errorf("expected idempotent result, got %v then %v", once, twice)
		}
	})
}

func TestSplitTags(t *testing.T) {
	if got := SplitTags("a,b,a"); !reflect.DeepEqual(got, []string{"a", "b"}) {
		t.Errorf("expected [a b], got %v", got)
	}
	if got := SplitTags("a,,b,"); !reflect.DeepEqual(got, []string{"a", "b"}) {
		t.Errorf("expected [a b], got %v", got)
	}
	if got := SplitTags(""); got != nil {
		t.Errorf("expected nil for empty input, got %v", got)
	}
	if !reflect.DeepEqual(SplitTags("a,b,a"), NormalizeTags([]string{"a", "b"})) {
		t.Error("string and slice input should normalize identically")
	}
}

func TestDocument(t *testing.T) {
	t.Run("Tombstone Marshals Without Document Fields", func(t *testing.T) {
		data, err := json.Marshal(Tombstone("d2"))
		if err != nil {
			t.Fatalf("marshal failed: %v", err)
		}
		if string(data) != `{"_id":"d2","deleted":true}` {
			t.Errorf("unexpected tombstone json %s", data)
		}
	})

	t.Run("Content Is Base64 On The Wire", func(t *testing.T) {
		doc := Document{ID: "d1", Title: "Note"}
		doc.SetContent([]byte("hello"))

		data, err := json.Marshal(doc)
		if err != nil {
			t.Fatalf("marshal failed: %v", err)
		}
		if !strings.Contains(string(data), `"content":{"content_type":"text/plain","data":"aGVsbG8="}`) {
			t.Errorf("expected base64 attachment, got %s", data)
		}
		if strings.Contains(string(data), "_rev") {
			t.Errorf("expected no revision on create, got %s", data)
		}
	})

	t.Run("Empty Content Keeps Data Field", func(t *testing.T) {
		for name, content := range map[string][]byte{"empty": {}, "nil": nil} {
			doc := Document{ID: "d1"}
			doc.SetContent(content)

			data, err := json.Marshal(doc)
			if err != nil {
				t.Fatalf("marshal failed: %v", err)
			}
			if !strings.Contains(string(data), `"content":{"content_type":"text/plain","data":""}`) {
				t.Errorf("%s: expected empty data field, got %s", name, data)
			}
		}
	})

	t.Run("Stub Marshals Without Data", func(t *testing.T) {
		data, err := json.Marshal(Attachment{ContentType: ContentType, Stub: true, Length: 5})
		if err != nil {
			t.Fatalf("marshal failed: %v", err)
		}
		if string(data) != `{"content_type":"text/plain","stub":true,"length":5}` {
			t.Errorf("unexpected stub json %s", data)
		}
	})

	t.Run("HasContent", func(t *testing.T) {
		var stub Document
		if err := json.Unmarshal([]byte(`{"_id":"d1","_attachments":{"content":{"content_type":"text/plain","stub":true,"length":5}}}`), &stub); err != nil {
			t.Fatalf("unmarshal failed: %v", err)
		}
		if stub.HasContent() {
			t.Error("stub attachment should not count as content")
		}

		var full Document
		if err := json.Unmarshal([]byte(`{"_id":"d1","_attachments":{"content":{"content_type":"text/plain","data":"aGVsbG8="}}}`), &full); err != nil {
			t.Fatalf("unmarshal failed: %v", err)
		}
		if !full.HasContent() || string(full.Content()) != "hello" {
			t.Errorf("expected inline content hello, got %q", full.Content())
		}
	})

	t.Run("Merge", func(t *testing.T) {
		doc := Document{ID: "d1", Title: "old", Tags: []string{"keep"}}
		fetched := Document{ID: "d1", Revision: "2-b", Title: "new", Updated: 42}
		fetched.SetContent([]byte("body"))

		doc.Merge(fetched)

		if doc.Title != "new" || doc.Revision != "2-b" || doc.Updated != 42 {
			t.Errorf("expected fetched fields to win, got %+v", doc)
		}
		if !reflect.DeepEqual(doc.Tags, []string{"keep"}) {
			t.Errorf("expected tags to be kept, got %v", doc.Tags)
		}
		if string(doc.Content()) != "body" {
			t.Errorf("expected merged content, got %q", doc.Content())
		}
	})

	t.Run("UpdatedAt", func(t *testing.T) {
		if !(Document{}).UpdatedAt().IsZero() {
			t.Error("expected zero time when unset")
		}
		if got := (Document{Updated: 1500}).UpdatedAt().UnixMilli(); got != 1500 {
			t.Errorf("expected 1500ms, got %d", got)
		}
	})
}

func TestCursor(t *testing.T) {
	tc := []struct {
		name string
		json string
		want Cursor
	}{
		{name: "number", json: `42`, want: "42"},
		{name: "string", json: `"42-g1AAAA"`, want: "42-g1AAAA"},
		{name: "null", json: `null`, want: ""},
	}

	for _, tt := range tc {
		t.Run(tt.name, func(t *testing.T) {
			var c Cursor
			if err := json.Unmarshal([]byte(tt.json), &c); err != nil {
				t.Fatalf("unmarshal failed: %v", err)
			}
			if c != tt.want {
				t.Errorf("expected %q, got %q", tt.want, c)
			}
		})
	}

	t.Run("Since Defaults To Beginning", func(t *testing.T) {
		if Cursor("").Since() != "0" {
			t.Errorf("expected 0, got %s", Cursor("").Since())
		}
		if Cursor("7").Since() != "7" {
			t.Errorf("expected 7, got %s", Cursor("7").Since())
		}
	})

	t.Run("Rejects Other Types", func(t *testing.T) {
		var c Cursor
		if err := json.Unmarshal([]byte(`true`), &c); err == nil {
			t.Error("expected error for boolean cursor")
		}
	})
}
