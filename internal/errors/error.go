package errors

import (
	stderrors "errors"
	"fmt"
)

// Category represents the kind of failure.
type Category string

const (
	CategoryConfig    Category = "config"
	CategoryBuild     Category = "build"
	CategoryToolchain Category = "toolchain"
	CategoryCLI       Category = "cli"
)

// BuildError is a structured error with a registered code, a hint and an optional cause.
type BuildError struct {
	// Code is a unique error identifier (e.g., "E103").
	Code string

	// Category groups related codes.
	Category Category

	// Message is a short description of the error.
	Message string

	// Detail is a longer explanation, often the output of a failed tool.
	Detail string

	// Path is the file or directory the error relates to, if any.
	Path string

	// Suggestion is a hint on how to fix the error.
	Suggestion string

	// Wrapped is the underlying error, if any.
	Wrapped error
}

// Error implements the error interface.
func (e *BuildError) Error() string {
	msg := e.Message
	if e.Code != "" {
		msg = fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	if e.Wrapped != nil {
		msg += ": " + e.Wrapped.Error()
	}
	return msg
}

// Unwrap returns the wrapped error for errors.Is/As support.
func (e *BuildError) Unwrap() error {
	return e.Wrapped
}

// Is reports whether target is a BuildError with the same code.
func (e *BuildError) Is(target error) bool {
	t, ok := target.(*BuildError)
	if !ok || t.Code == "" {
		return false
	}
	return t.Code == e.Code
}

// WithDetail adds a detailed explanation to the error.
func (e *BuildError) WithDetail(d string) *BuildError {
	e.Detail = d
	return e
}

// WithPath records the file or directory involved.
func (e *BuildError) WithPath(p string) *BuildError {
	e.Path = p
	return e
}

// WithSuggestion adds a fix suggestion to the error.
func (e *BuildError) WithSuggestion(s string) *BuildError {
	e.Suggestion = s
	return e
}

// Wrap wraps another error.
func (e *BuildError) Wrap(err error) *BuildError {
	e.Wrapped = err
	return e
}

// New creates a BuildError from a registered error code.
func New(code string) *BuildError {
	template, ok := registry[code]
	if !ok {
		return &BuildError{
			Code:    code,
			Message: "Unknown error",
		}
	}
	return &BuildError{
		Code:       code,
		Category:   template.Category,
		Message:    template.Message,
		Detail:     template.Detail,
		Suggestion: template.Suggestion,
	}
}

// FromError wraps a standard error in a BuildError. Errors that already
// carry a BuildError anywhere in their chain are returned as that error.
func FromError(err error, code string) *BuildError {
	if err == nil {
		return nil
	}
	var be *BuildError
	if stderrors.As(err, &be) {
		return be
	}
	return New(code).Wrap(err)
}

// CodeOf returns the code of the first BuildError in err's chain.
func CodeOf(err error) string {
	var be *BuildError
	if stderrors.As(err, &be) {
		return be.Code
	}
	return ""
}

// Is is a convenience re-export of the standard library function.
func Is(err, target error) bool { return stderrors.Is(err, target) }

// As is a convenience re-export of the standard library function.
func As(err error, target any) bool { return stderrors.As(err, target) }
