package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/vnengine/internal/compiler"
	"github.com/roach88/vnengine/internal/script"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid    bool                       `json:"valid"`
	ScriptID string                     `json:"script_id,omitempty"`
	Events   int                        `json:"events,omitempty"`
	Labels   int                        `json:"labels,omitempty"`
	Errors   []compiler.ValidationError `json:"errors,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <script>",
		Short: "Validate a script without playing it",
		Long: `Decode and validate a script file (.json, .yaml, .yml, or .cue).

Every problem is reported, not only the first: unknown event kinds and
fields, wrong JSON types, dangling jump targets, empty choices, audio
actions that cannot be resolved, and values outside their range.

Exit codes:
  0 - Script is valid
  1 - Script has validation errors
  2 - Command error (file not found, unsupported format, etc.)`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)
	limits := opts.Settings().CompilerLimits()
	formatter.VerboseLog("Validating %s (max %d events)", path, limits.MaxEvents)

	s, err := LoadScript(path, limits)
	if err != nil {
		var loadErr *LoadError
		if errors.As(err, &loadErr) && len(loadErr.Errors) > 0 {
			return outputValidationErrors(formatter, loadErr.Errors)
		}
		return outputValidateError(formatter, loadErrorCode(err), errorMessage(err), nil)
	}

	scriptID, err := script.ScriptID(s)
	if err != nil {
		return outputValidateError(formatter, ErrCodeGeneric, err.Error(), nil)
	}
	return outputValidateSuccess(formatter, ValidationResult{
		Valid:    true,
		ScriptID: scriptID,
		Events:   s.Len(),
		Labels:   len(s.Labels),
	})
}

// errorMessage strips the code prefix from a LoadError.
func errorMessage(err error) string {
	var loadErr *LoadError
	if errors.As(err, &loadErr) {
		return loadErr.Message
	}
	return err.Error()
}

// outputValidateSuccess outputs successful validation results.
func outputValidateSuccess(formatter *OutputFormatter, result ValidationResult) error {
	if formatter.Format == "json" {
		return formatter.Success(result)
	}

	fmt.Fprintf(formatter.Writer, "✓ Script valid: %s, %s\n",
		countOf(result.Events, "event", "events"),
		countOf(result.Labels, "label", "labels"))
	formatter.VerboseLog("script_id: %s", result.ScriptID)
	return nil
}

// outputValidateError outputs a single load error.
func outputValidateError(formatter *OutputFormatter, code, message string, details any) error {
	_ = formatter.Error(code, message, details)
	// Load errors are command-level errors (exit code 2)
	return NewExitError(ExitCommandError, fmt.Sprintf("%s: %s", code, message))
}

// outputValidationErrors outputs every validation error.
func outputValidationErrors(formatter *OutputFormatter, errs []compiler.ValidationError) error {
	exitErr := NewExitError(ExitFailure, "validation failed with "+countOf(len(errs), "error", "errors"))

	if formatter.Format == "json" {
		resp := okResponse(ValidationResult{Valid: false, Errors: errs})
		return respond(formatter.Writer, resp.failed(errs[0].Code, errs[0].Message), exitErr)
	}

	fmt.Fprintln(formatter.Writer, "✗ Validation failed")
	fmt.Fprintln(formatter.Writer)

	for _, err := range errs {
		if err.Line > 0 {
			fmt.Fprintf(formatter.Writer, "line %d\n", err.Line)
		}
		fmt.Fprintf(formatter.Writer, "  %s: %s: %s\n\n", err.Code, err.Field, err.Message)
	}

	return exitErr
}
