// Package services implements the HTTP collaborator for the remote document store.
//
// # Store Service
//
// [StoreService] issues raw JSON requests relative to the configured database URL and returns an
// [APIResponse] for every completed exchange, whatever its status. Classifying non-2xx responses is the
// caller's job (see tasks.SyncError); only transport failures are returned as errors.
//
// # Credentials
//
// The configured URL may embed user:password@. The userinfo is parsed once into [Credentials] and removed
// from every request URL. Authentication happens through the store's session endpoint; the session cookie it
// sets is kept in the client's cookie jar and sent with every later request.
//
// # Paths
//
// Paths are escaped path fragments joined onto the database path and cleaned, so "_changes" targets
// <db>/_changes and "../_session" targets the server-level session endpoint next to the database.
//
// # Rate Limiting
//
// When a positive rate is configured, every request waits on a [rate.Limiter] before it is sent.
package services
