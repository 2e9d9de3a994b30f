// Package apperr defines the error taxonomy shared by the HTTP and batch paths.
//
// Validation errors are terminal and never retried here. Storage and publish
// errors are transient collaborator failures: HTTP callers see a 5xx and batch
// consumers report the message as failed so the transport redelivers it.
// "Nothing to complete" is not an error at all and is reported as a boolean.
package apperr

import (
	"errors"
	"strings"
)

// Sentinels for collaborator failures. Wrap them with fmt.Errorf("%w: ...").
var (
	ErrStorageWrite = errors.New("storage write failed")
	ErrStorageRead  = errors.New("storage read failed")
	ErrPublish      = errors.New("publish failed")
)

// ValidationError reports malformed or out-of-range input.
type ValidationError struct {
	Message    string
	Violations []string
}

func (e *ValidationError) Error() string {
	if len(e.Violations) == 0 {
		return e.Message
	}
	return e.Message + ": " + strings.Join(e.Violations, "; ")
}

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsTransient reports whether err is a collaborator failure the transport should retry.
func IsTransient(err error) bool {
	return errors.Is(err, ErrStorageWrite) || errors.Is(err, ErrStorageRead) || errors.Is(err, ErrPublish)
}
