package registry

import "fmt"

// Code is a stable, machine-readable error identifier.
type Code string

const (
	CodeEmptyExtension     Code = "EMPTY_EXTENSION"
	CodeExtensionTooLong   Code = "EXTENSION_TOO_LONG"
	CodeInvalidExtension   Code = "INVALID_EXTENSION"
	CodePathTraversal      Code = "PATH_TRAVERSAL_DETECTED"
	CodeDuplicateExtension Code = "DUPLICATE_EXTENSION"
	CodeMaxCustomExceeded  Code = "MAX_CUSTOM_EXCEEDED"
	CodeExtensionNotFound  Code = "EXTENSION_NOT_FOUND"
	CodeCannotDeleteFixed  Code = "CANNOT_DELETE_FIXED"
	CodeCannotToggleCustom Code = "CANNOT_TOGGLE_CUSTOM"

	// Transport-level codes, never produced by the registry itself.
	CodeValidation Code = "VALIDATION_ERROR"
	CodeInternal   Code = "INTERNAL_ERROR"
)

// Error is a domain failure. All of them are caller errors and none are
// retried.
type Error struct {
	Code      Code
	Extension string
}

func newError(code Code, ext string) *Error {
	return &Error{Code: code, Extension: ext}
}

func (e *Error) Error() string {
	msg := Message(English, e.Code)
	if e.Extension == "" {
		return fmt.Sprintf("%s: %s", e.Code, msg)
	}
	return fmt.Sprintf("%s: %s (%q)", e.Code, msg, e.Extension)
}

// Is matches on Code so callers can compare against the sentinels below.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

var (
	ErrEmptyExtension     = &Error{Code: CodeEmptyExtension}
	ErrExtensionTooLong   = &Error{Code: CodeExtensionTooLong}
	ErrInvalidExtension   = &Error{Code: CodeInvalidExtension}
	ErrPathTraversal      = &Error{Code: CodePathTraversal}
	ErrDuplicateExtension = &Error{Code: CodeDuplicateExtension}
	ErrMaxCustomExceeded  = &Error{Code: CodeMaxCustomExceeded}
	ErrExtensionNotFound  = &Error{Code: CodeExtensionNotFound}
	ErrCannotDeleteFixed  = &Error{Code: CodeCannotDeleteFixed}
	ErrCannotToggleCustom = &Error{Code: CodeCannotToggleCustom}
)
