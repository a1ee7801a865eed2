package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/roach88/vnengine/internal/compiler"
	"github.com/roach88/vnengine/internal/script"
)

// Error code constants - unified across all CLI commands. Script
// validation codes (E100-E199) come from the compiler package.
const (
	ErrCodeGeneric     = "E001" // Generic/unknown error
	ErrCodeScanError   = "E002" // Directory scan error
	ErrCodeUnsupported = "E003" // Unsupported script format
	ErrCodeLoadFailed  = "E004" // Source could not be parsed
	ErrCodeNotFound    = "E005" // Path not found
	ErrCodeSchema      = "E006" // Missing or unsupported script_schema_version
	ErrCodeWriteFailed = "E007" // Journal write error
	ErrCodeEngine      = "E008" // Interpreter could not be created
)

// scriptExtensions are the formats compiler.LoadFile understands.
var scriptExtensions = []string{".json", ".yaml", ".yml", ".cue"}

// LoadError represents an error that occurred during script loading.
type LoadError struct {
	Code    string
	Message string

	// Errors holds every validation problem when the script was rejected
	// by the compiler. Empty for other failures.
	Errors compiler.ValidationErrors
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// LoadScript reads and validates one script file under limits. Every
// failure is a *LoadError.
func LoadScript(path string, limits compiler.Limits) (*script.Script, error) {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("script file not found: %s", path)}
	}
	if err != nil {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("error accessing script: %v", err)}
	}
	if info.IsDir() {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("not a file: %s", path)}
	}

	ext := strings.ToLower(filepath.Ext(path))
	if !slices.Contains(scriptExtensions, ext) {
		return nil, &LoadError{
			Code:    ErrCodeUnsupported,
			Message: fmt.Sprintf("unsupported script format %q (want one of %v)", ext, scriptExtensions),
		}
	}

	s, err := compiler.LoadFile(path, compiler.WithLimits(limits))
	if err != nil {
		return nil, convertLoadError(err)
	}
	return s, nil
}

// convertLoadError maps a compiler error to a LoadError.
func convertLoadError(err error) *LoadError {
	if list, ok := compiler.AsValidationErrors(err); ok && len(list) > 0 {
		return &LoadError{
			Code:    list[0].Code,
			Message: "validation failed with " + countOf(len(list), "error", "errors"),
			Errors:  list,
		}
	}
	if compiler.IsSchemaError(err) {
		return &LoadError{Code: ErrCodeSchema, Message: err.Error()}
	}

	var compileErr *compiler.CompileError
	if errors.As(err, &compileErr) {
		line := 0
		if compileErr.Pos.IsValid() {
			line = compileErr.Pos.Line()
		}
		return &LoadError{
			Code:    ErrCodeLoadFailed,
			Message: compileErr.Error(),
			Errors: compiler.ValidationErrors{{
				Field:   compileErr.Field,
				Message: compileErr.Message,
				Code:    ErrCodeLoadFailed,
				Line:    line,
			}},
		}
	}
	return &LoadError{Code: ErrCodeGeneric, Message: err.Error()}
}

// loadErrorCode returns the code carried by err, or ErrCodeGeneric.
func loadErrorCode(err error) string {
	var loadErr *LoadError
	if errors.As(err, &loadErr) {
		return loadErr.Code
	}
	return ErrCodeGeneric
}
