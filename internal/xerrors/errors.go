// Package xerrors wraps internal, non-response errors with path context.
//
// These are construction-time and loader faults — a malformed schema bundle,
// an unreadable rule file — never the response-shaped validation errors the
// engine emits to callers. The two stay in separate universes: nothing here
// is ever serialized into a validation response.
package xerrors

import (
	"errors"
	"fmt"
)

// PathError wraps an error with the JSON or file path where it occurred.
type PathError struct {
	Path string
	Err  error
}

func (e *PathError) Error() string {
	if e.Path == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("at %s: %v", e.Path, e.Err)
}

func (e *PathError) Unwrap() error {
	return e.Err
}

// WrapPath wraps err with path context. Returns nil if err is nil.
func WrapPath(path string, err error) error {
	if err == nil {
		return nil
	}
	return &PathError{Path: path, Err: err}
}

// WrapPathf wraps a formatted error with path context.
func WrapPathf(path string, format string, args ...any) error {
	return &PathError{Path: path, Err: fmt.Errorf(format, args...)}
}

// Sentinel errors for internal loader/construction failures.
var (
	ErrNilCatalog      = errors.New("schema catalog is nil")
	ErrUnknownType     = errors.New("unknown resource type")
	ErrInvalidJSON     = errors.New("invalid JSON")
	ErrInvalidSpec     = errors.New("invalid specification")
	ErrMissingRequired = errors.New("missing required field in spec")
)

// IsPathError reports whether err is or wraps a *PathError.
func IsPathError(err error) bool {
	var pathErr *PathError
	return errors.As(err, &pathErr)
}

// GetPath extracts the path from a wrapped PathError, or "" if none.
func GetPath(err error) string {
	var pathErr *PathError
	if errors.As(err, &pathErr) {
		return pathErr.Path
	}
	return ""
}
