package tasks

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"

	"github.com/desertthunder/docsync/internal/models"
	"github.com/desertthunder/docsync/internal/shared"
)

const (
	changesPath  = "_changes"
	bulkDocsPath = "_bulk_docs"
	updateView   = "_design/by_update/_view/default"
	tagView      = "_design/by_tag_and_update/_view/default"
)

// UploadRequest describes a document to create or update.
//
// An empty ID gets a generated one. An empty Revision creates the document; a set Revision updates it in place.
// Tags are normalized with [models.NormalizeTags]; use [models.SplitTags] for comma separated input.
type UploadRequest struct {
	ID       string
	Title    string
	Content  []byte
	Tags     []string
	Revision string
}

// ListQuery selects a page of documents, newest first.
//
// Before is an update time in milliseconds; when set the page starts at documents updated at or before it.
type ListQuery struct {
	Tag    string
	Before int64
}

type changesRequest struct {
	DocIDs []string `json:"doc_ids"`
}

type changesResponse struct {
	Results []struct {
		ID      string           `json:"id"`
		Deleted bool             `json:"deleted"`
		Doc     *models.Document `json:"doc"`
	} `json:"results"`
	LastSeq models.Cursor `json:"last_seq"`
}

type viewResponse struct {
	Rows []struct {
		ID  string           `json:"id"`
		Doc *models.Document `json:"doc"`
	} `json:"rows"`
}

type bulkDelete struct {
	ID       string `json:"_id"`
	Revision string `json:"_rev"`
	Deleted  bool   `json:"_deleted"`
}

type bulkRequest struct {
	Docs []bulkDelete `json:"docs"`
}

type writeReply struct {
	ID  string `json:"id"`
	Rev string `json:"rev"`
}

// UploadDocument saves one document with its content as the body attachment.
//
// done receives the sent document carrying the store's new revision, or the failure.
func (e *SyncEngine) UploadDocument(ctx context.Context, req UploadRequest, done func(*models.Document, error)) *Task {
	doc := models.Document{
		ID:       req.ID,
		Revision: req.Revision,
		Title:    req.Title,
		Tags:     models.NormalizeTags(req.Tags),
		Updated:  e.now().UnixMilli(),
	}
	if doc.ID == "" {
		doc.ID = e.newID()
	}
	doc.SetContent(req.Content)

	var saved *models.Document
	t := e.StartSession(ctx, "upload "+doc.ID)
	t.OnRun(func(ctx context.Context, t *Task) {
		body, err := json.Marshal(doc)
		if err != nil {
			t.Error(fmt.Errorf("%w: %v", shared.ErrInvalidInput, err))
			return
		}

		resp, err := e.store.Post(ctx, "", nil, body)
		if err != nil || !accepted(resp) {
			e.fail(t, resp, err)
			return
		}

		var reply writeReply
		if err := resp.Decode(&reply); err != nil {
			e.reject(t, &SyncError{Code: resp.StatusCode, Message: resp.Status, Reason: "malformed write response"})
			return
		}

		result := doc
		result.Revision = reply.Rev
		saved = &result
		t.Chain()
	})

	t.OnSuccess(func() { deliver(done, saved, nil) })
	t.OnError(func(err error) { deliver[*models.Document](done, nil, err) })
	t.Enqueue()
	return t
}

// CheckChanges polls the change feed for ids after cursor.
//
// Deleted entries become tombstones and other entries the full document. done receives the store's last_seq as
// the cursor for the next poll.
func (e *SyncEngine) CheckChanges(ctx context.Context, cursor models.Cursor, ids []string, done func([]models.Document, models.Cursor, error)) *Task {
	if ids == nil {
		ids = []string{}
	}

	var (
		changes []models.Document
		next    models.Cursor
	)

	t := e.StartSession(ctx, "check changes")
	t.OnRun(func(ctx context.Context, t *Task) {
		body, err := json.Marshal(changesRequest{DocIDs: ids})
		if err != nil {
			t.Error(fmt.Errorf("%w: %v", shared.ErrInvalidInput, err))
			return
		}

		query := url.Values{
			"filter":       {"_doc_ids"},
			"since":        {cursor.Since()},
			"include_docs": {"true"},
			"attachments":  {"true"},
		}

		resp, err := e.store.Post(ctx, changesPath, query, body)
		if err != nil || !resp.OK() {
			e.fail(t, resp, err)
			return
		}

		var feed changesResponse
		if err := resp.Decode(&feed); err != nil {
			e.reject(t, &SyncError{Code: resp.StatusCode, Message: resp.Status, Reason: "malformed change feed"})
			return
		}

		changes = make([]models.Document, 0, len(feed.Results))
		for _, r := range feed.Results {
			switch {
			case r.Deleted:
				changes = append(changes, models.Tombstone(r.ID))
			case r.Doc != nil:
				doc := *r.Doc
				doc.Deleted = false
				changes = append(changes, doc)
			default:
				changes = append(changes, models.Document{ID: r.ID})
			}
		}
		next = feed.LastSeq

		e.logger.Debug("changes received", "count", len(changes), "last_seq", next)
		t.Chain()
	})

	t.OnSuccess(func() {
		if done != nil {
			done(changes, next, nil)
		}
	})
	t.OnError(func(err error) {
		if done != nil {
			done(nil, "", err)
		}
	})
	t.Enqueue()
	return t
}

// DownloadContent fills in the body of every record that lacks it, one fetch per record, preserving order.
//
// Tombstones and records that already carry content pass through unchanged. docs is not modified.
func (e *SyncEngine) DownloadContent(ctx context.Context, docs []models.Document, done func([]models.Document, error)) *Task {
	out := make([]models.Document, 0, len(docs))
	i := 0

	var fetchNext Step
	fetchNext = func(ctx context.Context, t *Task) {
		if i == len(docs) {
			t.Chain()
			return
		}

		doc := docs[i]
		i++
		if doc.IsTombstone() || doc.HasContent() {
			out = append(out, doc)
			t.Continue(fetchNext)
			return
		}

		resp, err := e.store.Get(ctx, url.PathEscape(doc.ID), url.Values{"attachments": {"true"}})
		if err != nil || !resp.OK() {
			e.fail(t, resp, err)
			return
		}

		var fetched models.Document
		if err := resp.Decode(&fetched); err != nil {
			e.reject(t, &SyncError{Code: resp.StatusCode, Message: resp.Status, Reason: "malformed document"})
			return
		}

		doc.Merge(fetched)
		out = append(out, doc)
		t.Continue(fetchNext)
	}

	// Nothing to fetch means nothing to authenticate for.
	var t *Task
	if len(docs) == 0 {
		t = e.sched.NewTask(ctx, "download content")
	} else {
		t = e.StartSession(ctx, "download content")
	}
	t.OnRun(fetchNext)
	t.OnSuccess(func() { deliver(done, out, nil) })
	t.OnError(func(err error) { deliver[[]models.Document](done, nil, err) })
	t.Enqueue()
	return t
}

// ListDocuments returns one page of documents ordered by update time, newest first, optionally restricted to a tag.
func (e *SyncEngine) ListDocuments(ctx context.Context, q ListQuery, done func([]models.Document, error)) *Task {
	path, query, queryErr := e.listQuery(q)

	var docs []models.Document
	t := e.StartSession(ctx, "list documents")
	t.OnRun(func(ctx context.Context, t *Task) {
		if queryErr != nil {
			t.Error(queryErr)
			return
		}

		resp, err := e.store.Get(ctx, path, query)
		if err != nil || !resp.OK() {
			e.fail(t, resp, err)
			return
		}

		var view viewResponse
		if err := resp.Decode(&view); err != nil {
			e.reject(t, &SyncError{Code: resp.StatusCode, Message: resp.Status, Reason: "malformed view response"})
			return
		}

		docs = make([]models.Document, 0, len(view.Rows))
		for _, row := range view.Rows {
			if row.Doc != nil {
				docs = append(docs, *row.Doc)
			}
		}
		t.Chain()
	})

	t.OnSuccess(func() { deliver(done, docs, nil) })
	t.OnError(func(err error) { deliver[[]models.Document](done, nil, err) })
	t.Enqueue()
	return t
}

func (e *SyncEngine) listQuery(q ListQuery) (string, url.Values, error) {
	query := url.Values{
		"descending":   {"true"},
		"include_docs": {"true"},
		"limit":        {strconv.Itoa(e.pageSize)},
		"reduce":       {"false"},
	}

	if q.Tag == "" {
		if q.Before > 0 {
			query.Set("start_key", strconv.FormatInt(q.Before, 10))
		}
		return updateView, query, nil
	}

	var upper any = []any{}
	if q.Before > 0 {
		upper = q.Before
	}
	start, err := json.Marshal([]any{q.Tag, upper})
	if err != nil {
		return "", nil, fmt.Errorf("%w: start key: %v", shared.ErrInvalidInput, err)
	}
	end, err := json.Marshal([]any{q.Tag})
	if err != nil {
		return "", nil, fmt.Errorf("%w: end key: %v", shared.ErrInvalidInput, err)
	}
	query.Set("start_key", string(start))
	query.Set("end_key", string(end))
	return tagView, query, nil
}

// DeleteDocuments marks every document deleted in one batch request.
//
// done may be nil; failures are logged either way. A per-document rejection in the batch reply fails the task.
func (e *SyncEngine) DeleteDocuments(ctx context.Context, docs []models.Document, done func(error)) *Task {
	batch := bulkRequest{Docs: make([]bulkDelete, 0, len(docs))}
	for _, doc := range docs {
		batch.Docs = append(batch.Docs, bulkDelete{ID: doc.ID, Revision: doc.Revision, Deleted: true})
	}

	t := e.StartSession(ctx, "delete documents")
	t.OnRun(func(ctx context.Context, t *Task) {
		body, err := json.Marshal(batch)
		if err != nil {
			t.Error(fmt.Errorf("%w: %v", shared.ErrInvalidInput, err))
			return
		}

		resp, err := e.store.Post(ctx, bulkDocsPath, nil, body)
		if err != nil || !resp.OK() {
			e.fail(t, resp, err)
			return
		}
		if rejected := bulkRejection(resp); rejected != nil {
			e.reject(t, rejected)
			return
		}

		e.logger.Debug("documents deleted", "count", len(batch.Docs))
		t.Chain()
	})

	if done != nil {
		t.OnSuccess(func() { done(nil) })
		t.OnError(done)
	}
	t.Enqueue()
	return t
}

// deliver calls done unless it is nil.
func deliver[T any](done func(T, error), v T, err error) {
	if done != nil {
		done(v, err)
	}
}
