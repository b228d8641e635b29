// Package apperr defines the error taxonomy shared across the build pipeline.
package apperr

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound       = errors.New("not found")
	ErrAlreadyExists  = errors.New("already exists")
	ErrFileNotCached  = errors.New("file to cache does not exist")
	ErrMissingSetting = errors.New("required setting is missing")
)

// MetadataError reports a source file whose front matter could not be parsed.
// The file is skipped and the build continues.
type MetadataError struct {
	Path   string
	Reason string
}

func (e *MetadataError) Error() string {
	if e.Path == "" {
		return "metadata is invalid: " + e.Reason
	}
	return fmt.Sprintf("%s: metadata is invalid: %s", e.Path, e.Reason)
}

// ProcessError reports a failed external command. It is always fatal.
type ProcessError struct {
	Command string
	Output  string
	Err     error
}

func (e *ProcessError) Error() string {
	return fmt.Sprintf("command %q failed: %v\n%s", e.Command, e.Err, e.Output)
}

func (e *ProcessError) Unwrap() error { return e.Err }

// IsMetadata reports whether err is a recoverable per-document metadata error.
func IsMetadata(err error) bool {
	var me *MetadataError
	return errors.As(err, &me)
}
