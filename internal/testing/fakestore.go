package testing

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sort"
	"strconv"
	"sync"
	"testing"

	"github.com/desertthunder/docsync/internal/models"
)

const (
	sessionCookie = "AuthSession"
	sessionToken  = "fake-session-token"
)

// Middleware wraps an http.Handler and returns a new http.Handler with additional behavior.
type Middleware func(http.Handler) http.Handler

// RecordedRequest is one request received by a [FakeStore].
type RecordedRequest struct {
	Method  string
	Path    string // unescaped
	Query   url.Values
	Body    []byte
	Session string // value of the session cookie, empty when absent
}

// FakeStore is an in-memory document store serving the subset of the CouchDB HTTP API used by the sync engine:
// _session, document save/fetch, _changes with the _doc_ids filter, the by_update and by_tag_and_update views,
// and _bulk_docs deletions.
type FakeStore struct {
	Server *httptest.Server
	DB     string

	username      string
	password      string
	rejectSession bool

	mu       sync.Mutex
	docs     map[string]models.Document
	revs     map[string]int
	seq      int
	changes  map[string]fakeChange
	requests []RecordedRequest
	failures map[string]fakeFailure
}

type fakeChange struct {
	seq     int
	deleted bool
}

type fakeFailure struct {
	status int
	reason string
}

// FakeStoreOption configures a [FakeStore] before its server starts.
type FakeStoreOption func(*FakeStore)

// WithCredentials makes the store require a session established with the given user.
func WithCredentials(username, password string) FakeStoreOption {
	return func(f *FakeStore) {
		f.username = username
		f.password = password
	}
}

// WithRejectedSession makes _session answer 200 with ok:false.
func WithRejectedSession() FakeStoreOption {
	return func(f *FakeStore) { f.rejectSession = true }
}

// NewFakeStore starts a fake store for the duration of the test.
func NewFakeStore(t *testing.T, opts ...FakeStoreOption) *FakeStore {
	t.Helper()

	f := &FakeStore{
		DB:       "db",
		docs:     make(map[string]models.Document),
		revs:     make(map[string]int),
		changes:  make(map[string]fakeChange),
		failures: make(map[string]fakeFailure),
	}
	for _, opt := range opts {
		opt(f)
	}

	f.Server = httptest.NewServer(f.handler())
	t.Cleanup(f.Server.Close)
	return f
}

// URL returns the database URL, embedding the credentials when the store requires them.
func (f *FakeStore) URL() string {
	u, _ := url.Parse(f.Server.URL)
	u.Path = "/" + f.DB
	if f.username != "" {
		u.User = url.UserPassword(f.username, f.password)
	}
	return u.String()
}

// Put stores doc directly, bypassing revision checks, and returns it with its new revision.
func (f *FakeStore) Put(doc models.Document) models.Document {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.commit(doc, false)
}

// Doc returns the stored document.
func (f *FakeStore) Doc(id string) (models.Document, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	doc, ok := f.docs[id]
	return doc, ok && !doc.Deleted
}

// Fail makes every request matching method and unescaped path answer status with reason.
func (f *FakeStore) Fail(method, path string, status int, reason string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures[method+" "+path] = fakeFailure{status: status, reason: reason}
}

// Requests returns a copy of every request received so far.
func (f *FakeStore) Requests() []RecordedRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]RecordedRequest(nil), f.requests...)
}

// Count returns how many requests matched method and unescaped path.
func (f *FakeStore) Count(method, path string) int {
	n := 0
	for _, req := range f.Requests() {
		if req.Method == method && req.Path == path {
			n++
		}
	}
	return n
}

// LastSeq returns the current change sequence.
func (f *FakeStore) LastSeq() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.seq
}

func (f *FakeStore) handler() http.Handler {
	db := "/" + f.DB
	mux := http.NewServeMux()
	mux.HandleFunc("POST /_session", f.handleSession)
	mux.HandleFunc("POST "+db, f.handleSave)
	mux.HandleFunc("POST "+db+"/_changes", f.handleChanges)
	mux.HandleFunc("POST "+db+"/_bulk_docs", f.handleBulkDocs)
	mux.HandleFunc("GET "+db+"/_design/{ddoc}/_view/{view}", f.handleView)
	mux.HandleFunc("GET "+db+"/{id}", f.handleGet)

	return apply(mux, f.record, f.inject, f.requireSession)
}

// apply wraps handler so the first middleware runs first.
func apply(handler http.Handler, middlewares ...Middleware) http.Handler {
	for i := len(middlewares) - 1; i >= 0; i-- {
		handler = middlewares[i](handler)
	}
	return handler
}

func (f *FakeStore) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		r.Body = io.NopCloser(bytes.NewReader(body))

		rec := RecordedRequest{Method: r.Method, Path: r.URL.Path, Query: r.URL.Query(), Body: body}
		if c, err := r.Cookie(sessionCookie); err == nil {
			rec.Session = c.Value
		}

		f.mu.Lock()
		f.requests = append(f.requests, rec)
		f.mu.Unlock()

		next.ServeHTTP(w, r)
	})
}

func (f *FakeStore) inject(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		failure, ok := f.failures[r.Method+" "+r.URL.Path]
		f.mu.Unlock()

		if ok {
			writeJSON(w, failure.status, map[string]string{"error": http.StatusText(failure.status), "reason": failure.reason})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (f *FakeStore) requireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if f.username == "" || r.URL.Path == "/_session" {
			next.ServeHTTP(w, r)
			return
		}
		if c, err := r.Cookie(sessionCookie); err != nil || c.Value != sessionToken {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized", "reason": "You are not authorized to access this db."})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (f *FakeStore) handleSession(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name     string `json:"name"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "bad_request", "reason": err.Error()})
		return
	}

	switch {
	case f.rejectSession:
		writeJSON(w, http.StatusOK, map[string]any{"ok": false})
	case body.Name == f.username && body.Password == f.password:
		http.SetCookie(w, &http.Cookie{Name: sessionCookie, Value: sessionToken, Path: "/"})
		writeJSON(w, http.StatusOK, map[string]any{"ok": true, "name": body.Name})
	default:
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized", "reason": "Name or password is incorrect."})
	}
}

func (f *FakeStore) handleSave(w http.ResponseWriter, r *http.Request) {
	raw, err := io.ReadAll(r.Body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "bad_request", "reason": err.Error()})
		return
	}

	var doc models.Document
	if err := json.Unmarshal(raw, &doc); err != nil || doc.ID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "bad_request", "reason": "invalid document"})
		return
	}
	if name, ok := checkAttachments(raw); !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "bad_request", "reason": "attachment " + name + " has neither data nor stub"})
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	current, exists := f.docs[doc.ID]
	live := exists && !current.Deleted
	if (live && doc.Revision != current.Revision) || (!live && doc.Revision != "") {
		writeJSON(w, http.StatusConflict, map[string]string{"error": "conflict", "reason": "Document update conflict."})
		return
	}

	saved := f.commit(doc, false)
	writeJSON(w, http.StatusCreated, map[string]any{"ok": true, "id": saved.ID, "rev": saved.Revision})
}

func (f *FakeStore) handleChanges(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if q.Get("filter") != "_doc_ids" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "bad_request", "reason": "unsupported filter"})
		return
	}
	since, err := strconv.Atoi(q.Get("since"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "bad_request", "reason": "invalid since"})
		return
	}

	var body struct {
		DocIDs []string `json:"doc_ids"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "bad_request", "reason": err.Error()})
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	type result struct {
		Seq     int              `json:"seq"`
		ID      string           `json:"id"`
		Deleted bool             `json:"deleted,omitempty"`
		Doc     *json.RawMessage `json:"doc,omitempty"`
	}

	results := []result{}
	for _, id := range body.DocIDs {
		change, ok := f.changes[id]
		if !ok || change.seq <= since {
			continue
		}

		res := result{Seq: change.seq, ID: id, Deleted: change.deleted}
		if q.Get("include_docs") == "true" {
			var raw []byte
			if change.deleted {
				raw, _ = json.Marshal(map[string]any{"_id": id, "_rev": f.docs[id].Revision, "_deleted": true})
			} else {
				raw, _ = json.Marshal(present(f.docs[id], q.Get("attachments") == "true"))
			}
			msg := json.RawMessage(raw)
			res.Doc = &msg
		}
		results = append(results, res)
	}
	sort.Slice(results, func(i, j int) bool { return results[i].Seq < results[j].Seq })

	writeJSON(w, http.StatusOK, map[string]any{"results": results, "last_seq": f.seq})
}

func (f *FakeStore) handleGet(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	f.mu.Lock()
	doc, ok := f.docs[id]
	f.mu.Unlock()

	switch {
	case !ok:
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not_found", "reason": "missing"})
	case doc.Deleted:
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not_found", "reason": "deleted"})
	default:
		writeJSON(w, http.StatusOK, present(doc, r.URL.Query().Get("attachments") == "true"))
	}
}

func (f *FakeStore) handleView(w http.ResponseWriter, r *http.Request) {
	ddoc, view := r.PathValue("ddoc"), r.PathValue("view")
	if view != "default" || (ddoc != "by_update" && ddoc != "by_tag_and_update") {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not_found", "reason": "missing_named_view"})
		return
	}

	q := r.URL.Query()
	byTag := ddoc == "by_tag_and_update"

	var tag string
	var upper *int64
	if raw := q.Get("start_key"); raw != "" {
		var err error
		tag, upper, err = parseStartKey(raw, byTag)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "query_parse_error", "reason": err.Error()})
			return
		}
	}

	limit, _ := strconv.Atoi(q.Get("limit"))

	f.mu.Lock()
	var docs []models.Document
	for _, doc := range f.docs {
		if doc.Deleted || (upper != nil && doc.Updated > *upper) {
			continue
		}
		if byTag && !hasTag(doc, tag) {
			continue
		}
		docs = append(docs, doc)
	}
	f.mu.Unlock()

	sort.Slice(docs, func(i, j int) bool {
		if docs[i].Updated != docs[j].Updated {
			return docs[i].Updated > docs[j].Updated
		}
		return docs[i].ID > docs[j].ID
	})
	total := len(docs)
	if limit > 0 && len(docs) > limit {
		docs = docs[:limit]
	}

	rows := make([]map[string]any, 0, len(docs))
	for _, doc := range docs {
		var key any = doc.Updated
		if byTag {
			key = []any{tag, doc.Updated}
		}
		row := map[string]any{"id": doc.ID, "key": key, "value": nil}
		if q.Get("include_docs") == "true" {
			row["doc"] = present(doc, false)
		}
		rows = append(rows, row)
	}

	writeJSON(w, http.StatusOK, map[string]any{"total_rows": total, "offset": 0, "rows": rows})
}

func (f *FakeStore) handleBulkDocs(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Docs []struct {
			ID      string `json:"_id"`
			Rev     string `json:"_rev"`
			Deleted bool   `json:"_deleted"`
		} `json:"docs"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "bad_request", "reason": err.Error()})
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	results := make([]map[string]any, 0, len(body.Docs))
	for _, in := range body.Docs {
		current, ok := f.docs[in.ID]
		switch {
		case !ok || current.Deleted:
			results = append(results, map[string]any{"id": in.ID, "error": "not_found", "reason": "missing"})
		case current.Revision != in.Rev:
			results = append(results, map[string]any{"id": in.ID, "error": "conflict", "reason": "Document update conflict."})
		case in.Deleted:
			saved := f.commit(models.Document{ID: in.ID}, true)
			results = append(results, map[string]any{"ok": true, "id": in.ID, "rev": saved.Revision})
		default:
			results = append(results, map[string]any{"id": in.ID, "error": "bad_request", "reason": "only deletions are supported"})
		}
	}

	writeJSON(w, http.StatusCreated, results)
}

// commit stores doc under a new revision and records the change. Callers hold f.mu.
// checkAttachments reports false with the name of the first attachment that carries neither data nor stub.
func checkAttachments(raw []byte) (string, bool) {
	var body struct {
		Attachments map[string]map[string]json.RawMessage `json:"_attachments"`
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		return "", false
	}
	for name, att := range body.Attachments {
		_, hasData := att["data"]
		_, hasStub := att["stub"]
		if !hasData && !hasStub {
			return name, false
		}
	}
	return "", true
}

func (f *FakeStore) commit(doc models.Document, deleted bool) models.Document {
	f.revs[doc.ID]++
	f.seq++

	doc.Revision = fmt.Sprintf("%d-fake", f.revs[doc.ID])
	doc.Deleted = deleted
	f.docs[doc.ID] = doc
	f.changes[doc.ID] = fakeChange{seq: f.seq, deleted: deleted}
	return doc
}

// present returns doc as the store serves it: attachments inline or as stubs.
func present(doc models.Document, inline bool) models.Document {
	if inline || len(doc.Attachments) == 0 {
		return doc
	}
	stubs := make(map[string]models.Attachment, len(doc.Attachments))
	for name, att := range doc.Attachments {
		stubs[name] = models.Attachment{ContentType: att.ContentType, Stub: true, Length: int64(len(att.Data))}
	}
	doc.Attachments = stubs
	return doc
}

// parseStartKey decodes a descending start key: [tag, updated|[]] for the tag view, updated for the update view.
func parseStartKey(raw string, byTag bool) (string, *int64, error) {
	if !byTag {
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return "", nil, fmt.Errorf("start_key must be a number")
		}
		return "", &n, nil
	}

	var key []json.RawMessage
	if err := json.Unmarshal([]byte(raw), &key); err != nil || len(key) != 2 {
		return "", nil, fmt.Errorf("start_key must be [tag, updated]")
	}
	var tag string
	if err := json.Unmarshal(key[0], &tag); err != nil {
		return "", nil, fmt.Errorf("start_key tag must be a string")
	}
	var n int64
	if err := json.Unmarshal(key[1], &n); err == nil {
		return tag, &n, nil
	}
	return tag, nil, nil
}

func hasTag(doc models.Document, tag string) bool {
	for _, t := range doc.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
