// Package errors provides the closed error taxonomy shared by every engine
// and storage implementation in the traceability core.
package errors

import (
	"errors"
	"fmt"
)

// Kind is the closed set of error categories a caller must branch on.
type Kind string

const (
	KindNotFound           Kind = "NotFound"
	KindConflict           Kind = "Conflict"
	KindUnauthorized       Kind = "Unauthorized"
	KindValidation         Kind = "Validation"
	KindBackendUnavailable Kind = "BackendUnavailable"
	KindTimeout            Kind = "Timeout"
	KindAdapter            Kind = "AdapterError"
	KindCorrupt            Kind = "Corrupt"
	KindInternal           Kind = "Internal"
)

// CoreError is a structured error carrying a Kind, a human sentence, and
// optional details for logging. Cross-component calls never leak a
// lower-layer error kind directly; they wrap it into a CoreError at the
// boundary.
type CoreError struct {
	Kind    Kind
	Message string
	Details map[string]interface{}
	Err     error
}

func (e *CoreError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Kind, e.Message)
}

func (e *CoreError) Unwrap() error { return e.Err }

// WithDetail attaches a key/value pair of structured context to the error.
func (e *CoreError) WithDetail(key string, value interface{}) *CoreError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// Retryable reports whether the caller may retry the operation that
// produced this error, per the recovery table in the error handling design.
func (e *CoreError) Retryable() bool {
	return e.Kind == KindBackendUnavailable || e.Kind == KindTimeout
}

func New(kind Kind, message string) *CoreError {
	return &CoreError{Kind: kind, Message: message}
}

func Wrap(kind Kind, message string, err error) *CoreError {
	return &CoreError{Kind: kind, Message: message, Err: err}
}

// Constructors for the common cases, mirroring the call-site ergonomics the
// rest of the core expects (one function per failure shape).

func NotFound(resource, id string) *CoreError {
	return New(KindNotFound, fmt.Sprintf("%s not found", resource)).WithDetail("resource", resource).WithDetail("id", id)
}

func Conflict(message string) *CoreError {
	return New(KindConflict, message)
}

func ConflictingGIDs(gids []string) *CoreError {
	return New(KindConflict, "identifier bundle resolves to conflicting global identifiers").WithDetail("candidates", gids)
}

func Unauthorized(message string) *CoreError {
	return New(KindUnauthorized, message)
}

func Validation(field, reason string) *CoreError {
	return New(KindValidation, reason).WithDetail("field", field)
}

func BackendUnavailable(operation string, err error) *CoreError {
	return Wrap(KindBackendUnavailable, fmt.Sprintf("backend unavailable during %s", operation), err)
}

func Timeout(operation string) *CoreError {
	return New(KindTimeout, fmt.Sprintf("%s timed out", operation)).WithDetail("operation", operation)
}

func AdapterError(operation string, err error) *CoreError {
	return Wrap(KindAdapter, fmt.Sprintf("storage adapter operation %s failed", operation), err)
}

func Corrupt(resource string, err error) *CoreError {
	return Wrap(KindCorrupt, fmt.Sprintf("%s record is corrupt", resource), err)
}

func Internal(message string, err error) *CoreError {
	return Wrap(KindInternal, message, err)
}

// As extracts a *CoreError from an error chain, if present.
func As(err error) (*CoreError, bool) {
	var ce *CoreError
	if errors.As(err, &ce) {
		return ce, true
	}
	return nil, false
}

// Is reports whether err is a CoreError of the given Kind.
func Is(err error, kind Kind) bool {
	ce, ok := As(err)
	return ok && ce.Kind == kind
}
