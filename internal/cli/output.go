package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Process exit codes.
const (
	ExitSuccess      = 0
	ExitFailure      = 1 // the command ran and found a problem: invalid script, failed scenario, divergent replay
	ExitCommandError = 2 // the command could not run: bad path, missing database, bad config
)

// ExitError carries the exit code a command wants the process to end with.
type ExitError struct {
	Code    int
	Message string
	Err     error
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode returns the code of the first ExitError in err's chain, or
// ExitFailure when there is none.
func GetExitCode(err error) int {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// CLIResponse is the envelope every --format json command writes.
type CLIResponse struct {
	Status    string    `json:"status"` // "ok" or "error"
	Data      any       `json:"data,omitempty"`
	Error     *CLIError `json:"error,omitempty"`
	SessionID string    `json:"session_id,omitempty"`
}

// CLIError is the error part of a CLIResponse. Code is a loader code
// ("E005"), a validation code ("E103"), or an engine code ("STATE_ERROR").
type CLIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

func okResponse(data any) CLIResponse {
	return CLIResponse{Status: "ok", Data: data}
}

// failed turns r into an error envelope that keeps its data, so a partial
// transcript or a test summary still reaches the caller.
func (r CLIResponse) failed(code, message string) CLIResponse {
	r.Status = "error"
	r.Error = &CLIError{Code: code, Message: message}
	return r
}

// respond writes resp as indented JSON and then returns exit, which is nil
// for a clean result.
func respond(w io.Writer, resp CLIResponse, exit error) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(resp); err != nil {
		return err
	}
	return exit
}

// OutputFormatter writes command results as text or JSON. Diagnostics go to
// ErrWriter so they never interleave with a JSON document on Writer.
type OutputFormatter struct {
	Format    string
	Writer    io.Writer
	ErrWriter io.Writer
	Verbose   bool
}

// Success writes data. Text mode prints it with fmt.
func (f *OutputFormatter) Success(data any) error {
	if f.Format == "json" {
		return respond(f.Writer, okResponse(data), nil)
	}
	fmt.Fprintln(f.Writer, data)
	return nil
}

// Error writes a failure without data.
func (f *OutputFormatter) Error(code, message string, details any) error {
	if f.Format == "json" {
		resp := CLIResponse{}.failed(code, message)
		resp.Error.Details = details
		return respond(f.Writer, resp, nil)
	}

	fmt.Fprintf(f.Writer, "Error [%s]: %s\n", code, message)
	if f.Verbose && details != nil {
		fmt.Fprintf(f.Writer, "Details: %v\n", details)
	}
	return nil
}

// VerboseLog prints a diagnostic line when --verbose is set.
func (f *OutputFormatter) VerboseLog(format string, args ...any) {
	if !f.Verbose {
		return
	}
	fmt.Fprintf(f.GetErrWriter(), format+"\n", args...)
}

// GetErrWriter returns ErrWriter, or Writer when no ErrWriter is set.
func (f *OutputFormatter) GetErrWriter() io.Writer {
	if f.ErrWriter != nil {
		return f.ErrWriter
	}
	return f.Writer
}

var printer = message.NewPrinter(language.English)

// countOf renders n with digit grouping and the matching noun,
// e.g. "1 call" or "12,000 calls".
func countOf(n int, singular, plural string) string {
	if n == 1 {
		return printer.Sprintf("%d %s", n, singular)
	}
	return printer.Sprintf("%d %s", n, plural)
}
