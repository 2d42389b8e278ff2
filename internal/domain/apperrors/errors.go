// Package apperrors defines the error taxonomy shared by the tracking pipeline.
// Every error carries a machine-readable code that the HTTP layer surfaces to callers.
package apperrors

import (
	"errors"
	"fmt"
)

// Kind classifies an application error.
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindNotFound
	KindConflict
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	default:
		return "internal"
	}
}

// Machine-readable codes.
const (
	CodeMissingIdentity     = "missing_identity"
	CodeMissingEmail        = "missing_email"
	CodeMissingDestination  = "missing_destination"
	CodeInvalidDestination  = "invalid_destination"
	CodeMissingWorkspace    = "missing_workspace"
	CodeMissingEventType    = "missing_event_type"
	CodeInvalidEventType    = "invalid_event_type"
	CodeInvalidStage        = "invalid_stage"
	CodeInvalidPayload      = "invalid_payload"
	CodeMissingLookupKey    = "missing_lookup_key"
	CodeLeadNotFound        = "lead_not_found"
	CodeVisitorNotFound     = "visitor_not_found"
	CodeLandingPageNotFound = "landing_page_not_found"
	CodeDuplicateVisitor    = "duplicate_visitor"
	CodeDuplicateLead       = "duplicate_lead"
	CodeStorageFailure      = "storage_failure"
	CodeRateLimited         = "rate_limited"
	CodeUnauthorized        = "unauthorized"
	CodeInternal            = "internal_error"
)

// Error is the concrete application error.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Validation reports a missing or malformed required input.
func Validation(code, message string) error {
	return &Error{Kind: KindValidation, Code: code, Message: message}
}

// NotFound reports a referenced entity that does not exist in the workspace.
func NotFound(code, message string) error {
	return &Error{Kind: KindNotFound, Code: code, Message: message}
}

// Conflict reports a uniqueness violation.
func Conflict(code, message string, err error) error {
	return &Error{Kind: KindConflict, Code: code, Message: message, Err: err}
}

// Internal wraps a storage or backend failure.
func Internal(message string, err error) error {
	return &Error{Kind: KindInternal, Code: CodeStorageFailure, Message: message, Err: err}
}

// KindOf returns the kind of err, treating unclassified errors as internal.
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

// CodeOf returns the machine-readable code of err.
func CodeOf(err error) string {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return CodeInternal
}

func IsValidation(err error) bool { return err != nil && KindOf(err) == KindValidation }
func IsNotFound(err error) bool   { return err != nil && KindOf(err) == KindNotFound }
func IsConflict(err error) bool   { return err != nil && KindOf(err) == KindConflict }
