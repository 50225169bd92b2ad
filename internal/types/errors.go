package types

import (
	"errors"
	"fmt"
)

// MaxDiagnosticLength bounds the human-readable message carried by outcomes.
const MaxDiagnosticLength = 200

// ErrorKind classifies failures across resolution, fetching and storage.
type ErrorKind string

const (
	KindChannelNotFound       ErrorKind = "channel_not_found"
	KindUpstreamAPI           ErrorKind = "upstream_api_error"
	KindNoTranscript          ErrorKind = "no_transcript"
	KindRateLimited           ErrorKind = "rate_limited"
	KindDuplicate             ErrorKind = "duplicate"
	KindStorageWrite          ErrorKind = "storage_write_error"
	KindTranscriptFetchFailed ErrorKind = "transcript_fetch_failed"
	KindConfiguration         ErrorKind = "configuration_error"
	KindNotFound              ErrorKind = "not_found"
)

// Error is a classified failure with an optional underlying cause.
type Error struct {
	Kind    ErrorKind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// NewError builds a classified error.
func NewError(kind ErrorKind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// KindOf returns the classification of err, or "" if it carries none.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// MessageOf returns the short message of a classified error, or err.Error() otherwise.
// The result is truncated to MaxDiagnosticLength.
func MessageOf(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return Truncate(e.Message, MaxDiagnosticLength)
	}
	return Truncate(err.Error(), MaxDiagnosticLength)
}

// Truncate shortens s to at most n runes.
func Truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
