package compiler

import (
	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"

	"github.com/roach88/vnengine/internal/script"
)

// CompileCUE exports a CUE value and parses it as a script.
// Uses CUE SDK's Go API directly (not CLI subprocess).
//
// The value must be concrete. Authors can use CUE definitions and
// comprehensions to build the events list; the exported JSON goes through
// ParseJSON, so the same strict rules apply:
//
//	ctx := cuecontext.New()
//	v := ctx.CompileString(src)
//	s, err := CompileCUE(v.LookupPath(cue.ParsePath("script")))
//
// Validation errors under events[i] carry the line of that CUE field.
func CompileCUE(v cue.Value, opts ...Option) (*script.Script, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return nil, formatCUEError(err)
	}

	data, err := v.MarshalJSON()
	if err != nil {
		return nil, formatCUEError(err)
	}

	s, err := ParseJSON(data, opts...)
	if err != nil {
		if list, ok := AsValidationErrors(err); ok {
			return nil, annotateCUELines(list, v)
		}
		return nil, err
	}
	return s, nil
}

// CompileCUESource compiles CUE source text and parses the whole file as a
// script. filename is used for error positions only.
func CompileCUESource(filename string, src []byte, opts ...Option) (*script.Script, error) {
	ctx := cuecontext.New()
	v := ctx.CompileBytes(src, cue.Filename(filename))
	return CompileCUE(v, opts...)
}

// annotateCUELines sets Line from the CUE value at each error's field path.
func annotateCUELines(errs ValidationErrors, v cue.Value) ValidationErrors {
	out := make(ValidationErrors, len(errs))
	for i, e := range errs {
		if e.Line == 0 && e.Field != "" && e.Field != "$" {
			p := cue.ParsePath(e.Field)
			if p.Err() == nil {
				if fv := v.LookupPath(p); fv.Exists() {
					e.Line = fv.Pos().Line()
				}
			}
		}
		out[i] = e
	}
	return out
}

// formatCUEError converts CUE errors to CompileError with position info.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	// CUE errors may contain multiple errors
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	// Return first error with position info
	firstErr := errs[0]
	positions := errors.Positions(firstErr)
	if len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: firstErr.Error(),
			Pos:     positions[0],
		}
	}

	return err
}
