package compiler

import (
	"errors"
	"fmt"
	"strings"

	"cuelang.org/go/cue/token"
)

// Validation error codes (E100-E199)
const (
	// Envelope errors (E100-E101)
	ErrMalformedScript = "E100" // top-level value is not a well-formed script object
	ErrMissingMember   = "E101" // events or labels missing

	// Event decoding errors (E102-E109)
	ErrMalformedEvent   = "E102" // event is not an object or has no string "type"
	ErrUnknownEventType = "E103" // "type" is not a known event kind
	ErrMissingField     = "E104" // required field absent or null
	ErrInvalidFieldType = "E105" // wrong JSON type (no silent coercion)
	ErrUnknownField     = "E106" // field not defined for this event kind
	ErrUnknownCondKind  = "E107" // cond "kind" is not flag or var_cmp

	// Reference and semantic errors (E110-E119)
	ErrInvalidLabel       = "E110" // label name empty or index out of range
	ErrDanglingTarget     = "E111" // branch target names no label
	ErrEmptyChoice        = "E112" // choice without options
	ErrEmptyField         = "E113" // required string is empty
	ErrDuplicateCharacter = "E114" // scene lists the same character twice
	ErrInvalidAudioAction = "E115" // action/channel unresolvable or asset missing
	ErrValueOutOfRange    = "E116" // volume, fade, duration, or scale out of range
	ErrInvalidColor       = "E117" // transition color not a hex color
	ErrInvalidOperator    = "E118" // var_cmp op unknown

	// Structural limits (E199)
	ErrLimitExceeded = "E199"
)

// ValidationError represents a script validation error.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
	Line    int    `json:"line,omitempty"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("[%s] line %d: %s: %s", e.Code, e.Line, e.Field, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// ValidationErrors is every problem found while loading one script.
type ValidationErrors []ValidationError

// Error implements the error interface.
func (v ValidationErrors) Error() string {
	switch len(v) {
	case 0:
		return "validation failed"
	case 1:
		return v[0].Error()
	}
	msgs := make([]string, len(v))
	for i, e := range v {
		msgs[i] = e.Error()
	}
	return fmt.Sprintf("%d validation errors: %s", len(v), strings.Join(msgs, "; "))
}

// SchemaError reports a missing or unsupported script_schema_version.
type SchemaError struct {
	Found    string
	Expected string
	Missing  bool
}

// Error implements the error interface.
func (e *SchemaError) Error() string {
	if e.Missing {
		return fmt.Sprintf("schema error: script_schema_version is required (expected %q)", e.Expected)
	}
	return fmt.Sprintf("schema error: unsupported script_schema_version %q (expected %q)", e.Found, e.Expected)
}

// CompileError is a source-level error with position info (CUE input).
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// IsSchemaError returns true if the error is a SchemaError.
// Uses errors.As to handle wrapped errors.
func IsSchemaError(err error) bool {
	var se *SchemaError
	return errors.As(err, &se)
}

// IsValidationError returns true if the error carries validation errors.
// Uses errors.As to handle wrapped errors.
func IsValidationError(err error) bool {
	var list ValidationErrors
	if errors.As(err, &list) {
		return true
	}
	var single ValidationError
	return errors.As(err, &single)
}

// AsValidationErrors extracts the validation errors carried by err.
func AsValidationErrors(err error) (ValidationErrors, bool) {
	var list ValidationErrors
	if errors.As(err, &list) {
		return list, true
	}
	var single ValidationError
	if errors.As(err, &single) {
		return ValidationErrors{single}, true
	}
	return nil, false
}
