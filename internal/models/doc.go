// Package models defines the documents exchanged with the remote store.
//
// A [Document] is the wire shape of a stored note: id, revision, title, tags, update time and a single
// attachment named "content" that carries the body. A change-feed record is either a full Document or a
// tombstone built with [Tombstone], which carries only the id and the deleted flag.
//
// Tag lists are normalized by [NormalizeTags] (or [SplitTags] for comma separated input) before they are sent:
// first-seen order, no duplicates, no empty or oversized entries, at most [MaxTags] entries.
//
// [Cursor] is the opaque change-feed position returned by the store.
package models
