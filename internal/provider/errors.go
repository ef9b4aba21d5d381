package provider

import (
	"errors"
	"fmt"
)

// ErrorCode classifies provider errors per the feed error taxonomy.
type ErrorCode string

// Error codes. Parse and validation errors are local to one unit (line or
// document) and never fatal; connection errors drive the reconnect
// controller.
const (
	CodeParse      ErrorCode = "PARSE_ERROR"
	CodeValidation ErrorCode = "VALIDATION_ERROR"
	CodeConnection ErrorCode = "CONNECTION_ERROR"

	// CodeSubscriber marks a consumer callback failure surfaced by a
	// strict-mode dispatch hub. Never emitted for upstream data problems.
	CodeSubscriber ErrorCode = "SUBSCRIBER_ERROR"
)

// Sentinel kinds for provider lifecycle errors.
var (
	ErrNotConnected = errors.New("provider not connected")
	ErrFinished     = errors.New("replay finished")
)

// Error is the typed error emitted to OnError subscribers.
type Error struct {
	Code    ErrorCode
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap exposes the cause for errors.Is/As.
func (e *Error) Unwrap() error { return e.Cause }

// NewParseError builds a PARSE_ERROR.
func NewParseError(message string, cause error) *Error {
	return &Error{Code: CodeParse, Message: message, Cause: cause}
}

// NewValidationError builds a VALIDATION_ERROR.
func NewValidationError(message string, cause error) *Error {
	return &Error{Code: CodeValidation, Message: message, Cause: cause}
}

// NewConnectionError builds a CONNECTION_ERROR.
func NewConnectionError(message string, cause error) *Error {
	return &Error{Code: CodeConnection, Message: message, Cause: cause}
}
