package pipeline

import (
	"errors"
	"fmt"

	"github.com/use-agent/slidepdf/fetcher"
)

// ErrorKind identifies which stage ended a run. The values double as the
// error_kind tag of streamed error events.
type ErrorKind string

const (
	KindFetchFailed   ErrorKind = "fetch_failed"
	KindNoImages      ErrorKind = "no_images"
	KindFilteredOut   ErrorKind = "filtered_out"
	KindTrimmedOut    ErrorKind = "trimmed_out"
	KindNoValidImages ErrorKind = "no_valid_images"
	KindPDFFailed     ErrorKind = "pdf_failed"
	KindInternal      ErrorKind = "internal"
)

// Error is a terminal pipeline failure.
type Error struct {
	Kind    ErrorKind
	Message string

	// StatusCode is the article host's status for KindFetchFailed when it
	// answered with an error status; 0 otherwise.
	StatusCode int

	Err error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(kind ErrorKind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

func fetchFailed(err error) *Error {
	var fe *fetcher.FetchError
	if errors.As(err, &fe) && fe.StatusCode > 0 {
		return &Error{
			Kind:       KindFetchFailed,
			Message:    "failed to fetch article",
			StatusCode: fe.StatusCode,
			Err:        err,
		}
	}
	return newError(KindFetchFailed, "failed to reach article host", err)
}

// AsError converts any error into an *Error, wrapping unknown errors as
// KindInternal.
func AsError(err error) *Error {
	var pe *Error
	if errors.As(err, &pe) {
		return pe
	}
	return newError(KindInternal, "internal error", err)
}
