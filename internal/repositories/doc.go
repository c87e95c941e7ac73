// Package repositories implements SQLite persistence for the CLI's sync bookkeeping.
//
// The sync engine itself keeps no local state; the docsync binary records what it hands back so later commands
// can resume.
//
// Key Implementations:
//   - [CursorRepository] : last change-feed cursor per store URL
//   - [TrackedDocumentRepository] : ids and last known revisions of uploaded or pulled documents
//
// [TrackedDocumentRepository.ApplyChanges] folds a change batch in a single transaction so a failed write never
// leaves the table half updated.
package repositories
