package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/docsync/internal/models"
)

// CursorRepository stores the last change-feed cursor per store URL.
type CursorRepository struct {
	db  *sql.DB
	now func() time.Time
}

// NewCursorRepository creates a new CursorRepository with the given database connection
func NewCursorRepository(db *sql.DB) *CursorRepository {
	return &CursorRepository{db: db, now: time.Now}
}

// Get returns the stored cursor, or the empty cursor when none was saved.
func (r *CursorRepository) Get(storeURL string) (models.Cursor, error) {
	var cursor string
	err := r.db.QueryRow(`SELECT cursor FROM cursors WHERE store_url = ?`, storeURL).Scan(&cursor)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to get cursor: %w", err)
	}
	return models.Cursor(cursor), nil
}

// Save records cursor for storeURL, replacing any previous value.
func (r *CursorRepository) Save(storeURL string, cursor models.Cursor) error {
	query := `
		INSERT INTO cursors (store_url, cursor, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT (store_url) DO UPDATE SET cursor = excluded.cursor, updated_at = excluded.updated_at
	`

	if _, err := r.db.Exec(query, storeURL, string(cursor), r.now()); err != nil {
		return fmt.Errorf("failed to save cursor: %w", err)
	}
	return nil
}

// Reset forgets the cursor so the next poll starts from the beginning.
func (r *CursorRepository) Reset(storeURL string) error {
	if _, err := r.db.Exec(`DELETE FROM cursors WHERE store_url = ?`, storeURL); err != nil {
		return fmt.Errorf("failed to reset cursor: %w", err)
	}
	return nil
}
