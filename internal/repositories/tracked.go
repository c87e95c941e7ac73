package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/docsync/internal/models"
	"github.com/desertthunder/docsync/internal/shared"
)

// TrackedDocumentRepository stores the documents this client knows about with their last revision.
type TrackedDocumentRepository struct {
	db  *sql.DB
	now func() time.Time
}

// NewTrackedDocumentRepository creates a new TrackedDocumentRepository with the given database connection
func NewTrackedDocumentRepository(db *sql.DB) *TrackedDocumentRepository {
	return &TrackedDocumentRepository{db: db, now: time.Now}
}

const upsertTracked = `
	INSERT INTO tracked_documents (id, revision, title, updated_at)
	VALUES (?, ?, ?, ?)
	ON CONFLICT (id) DO UPDATE SET
		revision = excluded.revision,
		title = CASE WHEN excluded.title = '' THEN tracked_documents.title ELSE excluded.title END,
		updated_at = excluded.updated_at
`

type execer interface {
	Exec(query string, args ...any) (sql.Result, error)
}

// Upsert inserts doc or refreshes its revision. An empty title keeps the stored one.
func (r *TrackedDocumentRepository) Upsert(doc models.TrackedDocument) error {
	return r.upsert(r.db, doc)
}

func (r *TrackedDocumentRepository) upsert(db execer, doc models.TrackedDocument) error {
	if err := doc.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}
	if doc.UpdatedAt.IsZero() {
		doc.UpdatedAt = r.now()
	}

	if _, err := db.Exec(upsertTracked, doc.ID, doc.Revision, doc.Title, doc.UpdatedAt); err != nil {
		return fmt.Errorf("failed to upsert tracked document: %w", err)
	}
	return nil
}

// Get retrieves a tracked document by id.
func (r *TrackedDocumentRepository) Get(id string) (*models.TrackedDocument, error) {
	var doc models.TrackedDocument
	err := r.db.QueryRow(`SELECT id, revision, title, updated_at FROM tracked_documents WHERE id = ?`, id).
		Scan(&doc.ID, &doc.Revision, &doc.Title, &doc.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s is not tracked", shared.ErrDocumentNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan tracked document: %w", err)
	}
	return &doc, nil
}

// List returns every tracked document, most recently seen first.
func (r *TrackedDocumentRepository) List() ([]models.TrackedDocument, error) {
	rows, err := r.db.Query(`SELECT id, revision, title, updated_at FROM tracked_documents ORDER BY updated_at DESC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query tracked documents: %w", err)
	}
	defer rows.Close()

	var docs []models.TrackedDocument
	for rows.Next() {
		var doc models.TrackedDocument
		if err := rows.Scan(&doc.ID, &doc.Revision, &doc.Title, &doc.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan tracked document: %w", err)
		}
		docs = append(docs, doc)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return docs, nil
}

// IDs returns the ids of every tracked document in id order.
func (r *TrackedDocumentRepository) IDs() ([]string, error) {
	rows, err := r.db.Query(`SELECT id FROM tracked_documents ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query tracked ids: %w", err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan tracked id: %w", err)
		}
		ids = append(ids, id)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return ids, nil
}

// Delete stops tracking id.
func (r *TrackedDocumentRepository) Delete(id string) error {
	result, err := r.db.Exec(`DELETE FROM tracked_documents WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete tracked document: %w", err)
	}
	return mustAffect(result, fmt.Errorf("%w: %s is not tracked", shared.ErrDocumentNotFound, id))
}

// ApplyChanges folds a change-feed batch into the table in one transaction:
// tombstones stop being tracked and documents refresh their revision.
func (r *TrackedDocumentRepository) ApplyChanges(changes []models.Document) error {
	now := r.now()
	return withTx(r.db, func(tx *sql.Tx) error {
		for _, doc := range changes {
			if doc.IsTombstone() {
				if _, err := tx.Exec(`DELETE FROM tracked_documents WHERE id = ?`, doc.ID); err != nil {
					return fmt.Errorf("failed to untrack %s: %w", doc.ID, err)
				}
				continue
			}
			if err := r.upsert(tx, models.NewTrackedDocument(doc, now)); err != nil {
				return err
			}
		}
		return nil
	})
}
