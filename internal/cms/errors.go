package cms

import (
	"errors"
	"fmt"
)

// Sentinel errors for fatal setup-phase failures.
var (
	// ErrSiteNotFound is returned when the remote reports the "site does not
	// exist" sentinel status, distinct from generic call failures.
	ErrSiteNotFound = errors.New("site not found")

	// ErrNoPages is returned when a site's structure contains zero pages.
	ErrNoPages = errors.New("site has no pages")

	// ErrSessionTimeout is returned when the session-establishment poll
	// exhausts its attempt budget without observing a usable session.
	ErrSessionTimeout = errors.New("session not established, server disconnected; please retry")
)

// SchemaError reports a missing or mistyped field on the page-index content type.
type SchemaError struct {
	ContentType string
	Field       string
	Reason      string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("content type %s: field %s %s", e.ContentType, e.Field, e.Reason)
}

// RemoteError is a failed remote call, carrying enough batch context to
// diagnose without a stack trace.
type RemoteError struct {
	Surface    string // "idc" or "rest"
	Service    string // IdcService name or REST path
	StatusCode string // remote status code or HTTP status
	Message    string
	Batch      string // optional batch identity, e.g. "page data batch 2/4"
	Err        error
}

func (e *RemoteError) Error() string {
	msg := fmt.Sprintf("%s call %s failed: status %s", e.Surface, e.Service, e.StatusCode)
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Batch != "" {
		msg += " (" + e.Batch + ")"
	}
	return msg
}

func (e *RemoteError) Unwrap() error {
	return e.Err
}

// WithBatch returns a copy of the error annotated with batch identity.
func (e *RemoteError) WithBatch(batch string) *RemoteError {
	cp := *e
	cp.Batch = batch
	return &cp
}

// JobError is a publish job that reached the failed state.
type JobError struct {
	JobID   string
	Message string
}

func (e *JobError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("publish job %s failed", e.JobID)
	}
	return fmt.Sprintf("publish job %s failed: %s", e.JobID, e.Message)
}
