// Copyright 2025 The GeoMDC Authors
// SPDX-License-Identifier: Apache-2.0

package consensus

import (
	"errors"
	"fmt"
)

// ErrorType classifies the errors returned by the pipeline.
type ErrorType int

const (
	// ErrorTypeUnknown unclassified error.
	ErrorTypeUnknown ErrorType = iota
	// ErrorTypeInvalidInput a referenced column is absent or an address
	// field is not textual. The whole batch is rejected.
	ErrorTypeInvalidInput
	// ErrorTypeMissingPrerequisite a stage was requested without the stage
	// it depends on.
	ErrorTypeMissingPrerequisite
)

func (t ErrorType) String() string {
	switch t {
	case ErrorTypeInvalidInput:
		return "invalid input"
	case ErrorTypeMissingPrerequisite:
		return "missing prerequisite"
	default:
		return "unknown"
	}
}

// Error is returned by the pipeline and the table loaders.
type Error struct {
	Type    ErrorType
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.Err)
	}

	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// InvalidInput builds an ErrorTypeInvalidInput error.
func InvalidInput(format string, args ...any) *Error {
	return &Error{Type: ErrorTypeInvalidInput, Message: fmt.Sprintf(format, args...)}
}

// MissingPrerequisite builds an ErrorTypeMissingPrerequisite error.
func MissingPrerequisite(format string, args ...any) *Error {
	return &Error{Type: ErrorTypeMissingPrerequisite, Message: fmt.Sprintf(format, args...)}
}

// IsInvalidInput reports whether err is an invalid input error.
func IsInvalidInput(err error) bool {
	return isType(err, ErrorTypeInvalidInput)
}

// IsMissingPrerequisite reports whether err is a missing prerequisite error.
func IsMissingPrerequisite(err error) bool {
	return isType(err, ErrorTypeMissingPrerequisite)
}

func isType(err error, t ErrorType) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Type == t
	}

	return false
}
