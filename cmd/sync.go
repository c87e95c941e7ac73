package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/desertthunder/docsync/internal/formatter"
	"github.com/desertthunder/docsync/internal/models"
	"github.com/desertthunder/docsync/internal/services"
	"github.com/desertthunder/docsync/internal/shared"
	"github.com/desertthunder/docsync/internal/tasks"
	"github.com/urfave/cli/v3"
)

// Session logs in with the credentials embedded in the store URL.
func (r *Runner) Session(ctx context.Context, cmd *cli.Command) error {
	engine, err := r.syncEngine()
	if err != nil {
		return err
	}

	t := engine.StartSession(ctx, "session")
	t.Enqueue()
	if err := t.Wait(); err != nil {
		return err
	}

	_, creds, err := services.ParseStoreURL(r.config.Store.URL)
	if err != nil {
		return err
	}
	if creds == nil {
		return r.writePlain("%s\n", dimStyle.Render("no credentials configured; requests are anonymous"))
	}
	return r.writePlain("%s\n", okStyle.Render(fmt.Sprintf("✓ session established for %s", creds.Username)))
}

// Upload creates or updates one document and records its new revision.
func (r *Runner) Upload(ctx context.Context, cmd *cli.Command) error {
	content, err := readContent(cmd.String("file"), cmd.String("content"))
	if err != nil {
		return err
	}

	engine, err := r.syncEngine()
	if err != nil {
		return err
	}
	if err := r.openRepositories(); err != nil {
		return err
	}

	req := tasks.UploadRequest{
		ID:       cmd.String("id"),
		Title:    cmd.String("title"),
		Content:  content,
		Tags:     models.SplitTags(cmd.String("tags")),
		Revision: cmd.String("rev"),
	}
	if req.Revision == "" && req.ID != "" {
		tracked, err := r.tracked.Get(req.ID)
		switch {
		case err == nil:
			req.Revision = tracked.Revision
		case !errors.Is(err, shared.ErrDocumentNotFound):
			return err
		}
	}

	r.logger.Info("uploading document", "id", req.ID, "rev", req.Revision)

	var saved *models.Document
	t := engine.UploadDocument(ctx, req, func(doc *models.Document, _ error) { saved = doc })
	if err := t.Wait(); err != nil {
		return err
	}

	if err := r.tracked.Upsert(models.NewTrackedDocument(*saved, time.Now())); err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(saved, true)
	}
	return r.writePlain("%s\n", okStyle.Render(fmt.Sprintf("✓ saved %s (rev %s)", saved.ID, saved.Revision)))
}

// readContent returns the body from a file, stdin ("-") or the literal flag value.
func readContent(file, literal string) ([]byte, error) {
	switch {
	case file != "" && literal != "":
		return nil, fmt.Errorf("%w: cannot specify both --file and --content", shared.ErrInvalidArgument)
	case file == "-":
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return nil, fmt.Errorf("failed to read stdin: %w", err)
		}
		return data, nil
	case file != "":
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("failed to read content file: %w", err)
		}
		return data, nil
	default:
		return []byte(literal), nil
	}
}

// Changes polls the change feed.
//
// Without --id every tracked document is watched, the bookkeeping table is updated from the result and, unless
// --since overrides it, the feed resumes from and advances the stored cursor.
func (r *Runner) Changes(ctx context.Context, cmd *cli.Command) error {
	engine, err := r.syncEngine()
	if err != nil {
		return err
	}
	if err := r.openRepositories(); err != nil {
		return err
	}
	key, err := r.storeKey()
	if err != nil {
		return err
	}

	if cmd.Bool("reset") {
		if err := r.cursors.Reset(key); err != nil {
			return err
		}
	}

	ids := cmd.StringSlice("id")
	fromTracked := len(ids) == 0
	if fromTracked {
		if ids, err = r.tracked.IDs(); err != nil {
			return err
		}
		if len(ids) == 0 {
			return r.writePlain("%s\n", dimStyle.Render("no tracked documents; upload or download one first, or pass --id"))
		}
	}

	var cursor models.Cursor
	if cmd.IsSet("since") {
		cursor = models.Cursor(cmd.String("since"))
	} else if cursor, err = r.cursors.Get(key); err != nil {
		return err
	}

	var (
		changes []models.Document
		next    models.Cursor
	)
	t := engine.CheckChanges(ctx, cursor, ids, func(docs []models.Document, c models.Cursor, _ error) {
		changes, next = docs, c
	})
	if err := t.Wait(); err != nil {
		return err
	}

	if fromTracked {
		if err := r.tracked.ApplyChanges(changes); err != nil {
			return err
		}
		if !cmd.IsSet("since") {
			if err := r.cursors.Save(key, next); err != nil {
				return err
			}
		}
	}

	r.logger.Info("changes checked", "count", len(changes), "since", cursor, "next", next)

	data, err := formatter.Render(changes, cmd.String("format"))
	if err != nil {
		return err
	}
	return r.writeBytes(data)
}

// Download fetches each id with its content and records it as tracked.
func (r *Runner) Download(ctx context.Context, cmd *cli.Command) error {
	ids := cmd.Args().Slice()
	if len(ids) == 0 {
		return fmt.Errorf("%w: at least one document id", shared.ErrMissingArgument)
	}

	engine, err := r.syncEngine()
	if err != nil {
		return err
	}
	if err := r.openRepositories(); err != nil {
		return err
	}

	records := make([]models.Document, len(ids))
	for i, id := range ids {
		records[i] = models.Document{ID: id}
	}

	var docs []models.Document
	t := engine.DownloadContent(ctx, records, func(d []models.Document, _ error) { docs = d })
	if err := t.Wait(); err != nil {
		return err
	}

	if err := r.tracked.ApplyChanges(docs); err != nil {
		return err
	}

	if dir := cmd.String("dir"); dir != "" {
		files, err := formatter.WriteContentFiles(docs, dir)
		if err != nil {
			return err
		}
		for _, f := range files {
			r.writePlain("%s\n", f)
		}
		return r.writePlain("%s\n", okStyle.Render(fmt.Sprintf("✓ wrote %d files to %s", len(files), dir)))
	}

	format := cmd.String("format")
	if format == formatter.FormatMarkdown || format == "md" {
		var buf bytes.Buffer
		for i, doc := range docs {
			if i > 0 {
				buf.WriteString("\n---\n\n")
			}
			buf.Write(formatter.DocumentToMarkdown(doc))
		}
		return r.writeBytes(buf.Bytes())
	}

	data, err := formatter.Render(docs, format)
	if err != nil {
		return err
	}
	return r.writeBytes(data)
}

// List prints or exports one page of documents.
func (r *Runner) List(ctx context.Context, cmd *cli.Command) error {
	engine, err := r.syncEngine()
	if err != nil {
		return err
	}

	q := tasks.ListQuery{Tag: cmd.String("tag"), Before: cmd.Int64("before")}

	var docs []models.Document
	t := engine.ListDocuments(ctx, q, func(d []models.Document, _ error) { docs = d })
	if err := t.Wait(); err != nil {
		return err
	}

	format := cmd.String("format")
	if path := cmd.String("output"); path != "" {
		written, err := formatter.WriteExport(docs, format, path)
		if err != nil {
			return err
		}
		r.logger.Info("documents exported", "count", len(docs), "path", written)
		return r.writePlain("%s\n", okStyle.Render(fmt.Sprintf("✓ exported %d documents to %s", len(docs), written)))
	}

	data, err := formatter.Render(docs, format)
	if err != nil {
		return err
	}
	if err := r.writeBytes(data); err != nil {
		return err
	}

	if len(docs) == engine.PageSize() {
		last := docs[len(docs)-1]
		r.writePlain("%s\n", dimStyle.Render(fmt.Sprintf("more documents may follow: --before %d", last.Updated-1)))
	}
	return nil
}

// Delete removes documents in one batch, resolving revisions from the tracked table.
func (r *Runner) Delete(ctx context.Context, cmd *cli.Command) error {
	ids := cmd.Args().Slice()
	if len(ids) == 0 {
		return fmt.Errorf("%w: at least one document id", shared.ErrMissingArgument)
	}
	rev := cmd.String("rev")
	if rev != "" && len(ids) > 1 {
		return fmt.Errorf("%w: --rev applies to a single id", shared.ErrInvalidArgument)
	}

	engine, err := r.syncEngine()
	if err != nil {
		return err
	}
	if err := r.openRepositories(); err != nil {
		return err
	}

	docs := make([]models.Document, 0, len(ids))
	for _, id := range ids {
		if rev != "" {
			docs = append(docs, models.Document{ID: id, Revision: rev})
			continue
		}
		tracked, err := r.tracked.Get(id)
		if errors.Is(err, shared.ErrDocumentNotFound) {
			return fmt.Errorf("%w: no known revision for %s; pass --rev", shared.ErrMissingArgument, id)
		}
		if err != nil {
			return err
		}
		docs = append(docs, tracked.Document())
	}

	if err := engine.DeleteDocuments(ctx, docs, nil).Wait(); err != nil {
		return err
	}

	for _, doc := range docs {
		if err := r.tracked.Delete(doc.ID); err != nil && !errors.Is(err, shared.ErrDocumentNotFound) {
			r.logger.Warn("failed to untrack document", "id", doc.ID, "error", err)
		}
	}
	return r.writePlain("%s\n", okStyle.Render(fmt.Sprintf("✓ deleted %d documents", len(docs))))
}
