package tasks

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/desertthunder/docsync/internal/services"
	"github.com/desertthunder/docsync/internal/shared"
)

// SyncError is the single failure shape delivered to operation callbacks.
//
// Code is the HTTP status, or 0 when no response was received.
type SyncError struct {
	Code    int
	Message string
	Reason  string
	cause   error
}

func (e *SyncError) Error() string {
	detail := e.Reason
	if detail == "" {
		detail = e.Message
	}
	return fmt.Sprintf("Error %d: %s", e.Code, detail)
}

// Unwrap exposes the shared sentinel for the code and the underlying transport error, if any.
func (e *SyncError) Unwrap() []error {
	errs := []error{e.sentinel()}
	if e.cause != nil {
		errs = append(errs, e.cause)
	}
	return errs
}

func (e *SyncError) sentinel() error {
	switch e.Code {
	case http.StatusUnauthorized, http.StatusForbidden:
		return shared.ErrAuthFailed
	case http.StatusNotFound:
		return shared.ErrDocumentNotFound
	case http.StatusConflict:
		return shared.ErrConflict
	default:
		return shared.ErrAPIRequest
	}
}

func offlineError() *SyncError {
	return &SyncError{Code: 0, Message: "offline", cause: shared.ErrOffline}
}

// storeReply is the envelope shared by the store's write and error responses.
type storeReply struct {
	OK     *bool  `json:"ok"`
	Error  string `json:"error"`
	Reason string `json:"reason"`
}

func decodeReply(resp *services.APIResponse) storeReply {
	var reply storeReply
	if resp != nil && resp.IsJSON {
		_ = json.Unmarshal(resp.Body, &reply)
	}
	return reply
}

// accepted reports a 2xx response whose body carries ok: true.
func accepted(resp *services.APIResponse) bool {
	if resp == nil || !resp.OK() {
		return false
	}
	reply := decodeReply(resp)
	return reply.OK != nil && *reply.OK
}

// classify folds a transport error or an unsuccessful response into a [SyncError].
func classify(resp *services.APIResponse, err error) *SyncError {
	if err != nil {
		return &SyncError{Code: 0, Message: err.Error(), cause: err}
	}
	if resp == nil {
		return &SyncError{Code: 0, Message: "no response"}
	}

	reply := decodeReply(resp)
	if !resp.OK() {
		return &SyncError{Code: resp.StatusCode, Message: resp.Status, Reason: reply.Reason}
	}

	reason := reply.Reason
	if reason == "" {
		reason = "rejected"
	}
	return &SyncError{Code: resp.StatusCode, Message: resp.Status, Reason: reason}
}

// bulkRejection returns the first per-document failure in a _bulk_docs reply, or nil.
func bulkRejection(resp *services.APIResponse) *SyncError {
	var results []struct {
		ID     string `json:"id"`
		Error  string `json:"error"`
		Reason string `json:"reason"`
	}
	if err := resp.Decode(&results); err != nil {
		return &SyncError{Code: resp.StatusCode, Message: resp.Status, Reason: "malformed bulk response"}
	}

	for _, r := range results {
		if r.Error == "" {
			continue
		}

		code := resp.StatusCode
		switch r.Error {
		case "conflict":
			code = http.StatusConflict
		case "not_found":
			code = http.StatusNotFound
		case "forbidden":
			code = http.StatusForbidden
		case "unauthorized":
			code = http.StatusUnauthorized
		}

		reason := r.Reason
		if reason == "" {
			reason = r.Error
		}
		return &SyncError{Code: code, Message: http.StatusText(code), Reason: fmt.Sprintf("%s: %s", r.ID, reason)}
	}
	return nil
}
