package kb

import (
	"errors"
	"fmt"
)

// SubjectNotFoundError indicates that no subject/environment combination in
// the knowledge base matches the incident.
type SubjectNotFoundError struct {
	Subject     string
	Environment string
}

// NewSubjectNotFoundError creates a new SubjectNotFoundError.
func NewSubjectNotFoundError(subject, environment string) *SubjectNotFoundError {
	return &SubjectNotFoundError{Subject: subject, Environment: environment}
}

// Error returns the error message.
func (e *SubjectNotFoundError) Error() string {
	return fmt.Sprintf("subject %q (env=%s) not found in knowledge base", e.Subject, e.Environment)
}

// MalformedSliceError indicates that a matched subject is missing required
// fields (capability bindings).
type MalformedSliceError struct {
	message string
}

// NewMalformedSliceError creates a new MalformedSliceError.
func NewMalformedSliceError(format string, args ...interface{}) *MalformedSliceError {
	return &MalformedSliceError{message: fmt.Sprintf(format, args...)}
}

// Error returns the error message.
func (e *MalformedSliceError) Error() string {
	return e.message
}

// IsSubjectNotFound checks if an error is a SubjectNotFoundError.
func IsSubjectNotFound(err error) bool {
	var target *SubjectNotFoundError
	return errors.As(err, &target)
}

// IsMalformedSlice checks if an error is a MalformedSliceError.
func IsMalformedSlice(err error) bool {
	var target *MalformedSliceError
	return errors.As(err, &target)
}
