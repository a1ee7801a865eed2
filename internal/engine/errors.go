package engine

import (
	"errors"
	"fmt"
)

// Error represents an error detected by an Interpreter call.
//
// Per-call errors are local: the interpreter state is unchanged and the
// caller decides what to do next. The interpreter never retries.
type Error struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// Op is the interpreter operation that failed ("step", "choose", ...).
	Op string

	// Index is the cursor at the time of the failure, -1 when exhausted.
	Index int

	// Details contains additional context.
	Details map[string]string
}

// ErrorCode categorizes interpreter errors.
type ErrorCode string

const (
	// ErrCodeState indicates the operation is not valid in the current status.
	ErrCodeState ErrorCode = "STATE_ERROR"

	// ErrCodeEngineSuspended indicates Step was called while suspended on an
	// ext_call. It is also a state error.
	ErrCodeEngineSuspended ErrorCode = "ENGINE_SUSPENDED"

	// ErrCodeScriptExhausted indicates the cursor has run past the last event.
	ErrCodeScriptExhausted ErrorCode = "SCRIPT_EXHAUSTED"

	// ErrCodeIndexOutOfRange indicates a choice index outside the options.
	ErrCodeIndexOutOfRange ErrorCode = "INDEX_OUT_OF_RANGE"

	// ErrCodeResourceLimit indicates the script exceeds the configured budget.
	ErrCodeResourceLimit ErrorCode = "RESOURCE_LIMIT_EXCEEDED"
)

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Op != "" && e.Index >= 0 {
		return fmt.Sprintf("%s: %s (op=%s, index=%d)", e.Code, e.Message, e.Op, e.Index)
	}
	if e.Op != "" {
		return fmt.Sprintf("%s: %s (op=%s)", e.Code, e.Message, e.Op)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func newStateError(op string, index int, format string, args ...any) *Error {
	return &Error{
		Code:    ErrCodeState,
		Message: fmt.Sprintf(format, args...),
		Op:      op,
		Index:   index,
	}
}

func newSuspendedError(op string, index int, command string) *Error {
	return &Error{
		Code:    ErrCodeEngineSuspended,
		Message: "interpreter is suspended on an ext_call; call Resume first",
		Op:      op,
		Index:   index,
		Details: map[string]string{"command": command},
	}
}

func newExhaustedError(op string) *Error {
	return &Error{
		Code:    ErrCodeScriptExhausted,
		Message: "script exhausted",
		Op:      op,
		Index:   -1,
	}
}

func newIndexError(index, option, count int) *Error {
	return &Error{
		Code:    ErrCodeIndexOutOfRange,
		Message: fmt.Sprintf("choice index %d out of range [0, %d)", option, count),
		Op:      opChoose,
		Index:   index,
		Details: map[string]string{
			"option":  fmt.Sprintf("%d", option),
			"options": fmt.Sprintf("%d", count),
		},
	}
}

func newResourceError(size, limit int64) *Error {
	return &Error{
		Code:    ErrCodeResourceLimit,
		Message: fmt.Sprintf("script is %d bytes, limit is %d", size, limit),
		Op:      "load",
		Index:   -1,
		Details: map[string]string{
			"script_bytes":     fmt.Sprintf("%d", size),
			"max_script_bytes": fmt.Sprintf("%d", limit),
		},
	}
}

func hasCode(err error, codes ...ErrorCode) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	for _, c := range codes {
		if e.Code == c {
			return true
		}
	}
	return false
}

// IsStateError returns true for operations invalid in the current status,
// including EngineSuspended.
// Uses errors.As to handle wrapped errors.
func IsStateError(err error) bool {
	return hasCode(err, ErrCodeState, ErrCodeEngineSuspended)
}

// IsEngineSuspended returns true if Step was refused because of suspension.
func IsEngineSuspended(err error) bool {
	return hasCode(err, ErrCodeEngineSuspended)
}

// IsScriptExhausted returns true if the script has no more events.
func IsScriptExhausted(err error) bool {
	return hasCode(err, ErrCodeScriptExhausted)
}

// IsIndexOutOfRange returns true if a choice index was out of bounds.
func IsIndexOutOfRange(err error) bool {
	return hasCode(err, ErrCodeIndexOutOfRange)
}

// IsResourceLimitExceeded returns true if construction hit the script budget.
func IsResourceLimitExceeded(err error) bool {
	return hasCode(err, ErrCodeResourceLimit)
}
