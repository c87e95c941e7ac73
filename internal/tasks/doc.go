// Package tasks runs document sync operations against the store as chains of steps.
//
// # Task Engine
//
// A [Task] is an ordered list of [Step] functions executed by a [Scheduler]. Each step ends by calling exactly one
// of:
//
//  1. [Task.Chain] : the step is done; run the pending continuation, else the next step, else succeed
//  2. [Task.Continue] : the step is done; run the given step next, ahead of the remaining list
//  3. [Task.Error] : abort; no further steps run and the task fails
//
// The signal may come from the step's own goroutine or from one it started. Exactly one of the success or error
// callbacks fires, once. Misuse (signalling outside a running step, twice from one step, or after the task is
// terminal) panics.
//
//	Created → Running → {Chained → Running}* → Succeeded | Failed
//
// The scheduler runs tasks in submission order with a configurable bound on how many run at once; a bound of 1
// serializes every operation. Optional [Update] values report transitions without blocking.
//
// # Sessions
//
// [SyncEngine.StartSession] builds a task whose first steps check connectivity and log in through the store's
// session endpoint when credentials are configured. Operations add their own steps and enqueue it.
//
// # Operations
//
//   - [SyncEngine.UploadDocument] : create or update one document with its body attachment
//   - [SyncEngine.CheckChanges] : poll the change feed for a set of ids from a cursor
//   - [SyncEngine.DownloadContent] : fetch bodies for records that lack them, one request at a time
//   - [SyncEngine.ListDocuments] : one page of the update-time views, optionally by tag
//   - [SyncEngine.DeleteDocuments] : mark documents deleted in one batch
//
// # Errors
//
// Every failed exchange becomes a [SyncError] carrying the HTTP status and the store's reason. It
// is logged at error level and delivered through the operation's callback. SyncError unwraps to the sentinels in
// the shared package so callers can use errors.Is.
package tasks
