package compiler

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/roach88/vnengine/internal/script"
)

// LoadFile reads a script from disk, choosing the decoder by extension:
// .json, .yaml/.yml, or .cue.
func LoadFile(path string, opts ...Option) (*script.Script, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read script: %w", err)
	}
	return LoadBytes(path, data, opts...)
}

// LoadBytes decodes data using the format implied by name's extension.
func LoadBytes(name string, data []byte, opts ...Option) (*script.Script, error) {
	switch ext := strings.ToLower(filepath.Ext(name)); ext {
	case ".json":
		return ParseJSON(data, opts...)
	case ".yaml", ".yml":
		return ParseYAML(data, opts...)
	case ".cue":
		return CompileCUESource(name, data, opts...)
	default:
		return nil, fmt.Errorf("unsupported script format %q (want .json, .yaml, .yml, or .cue)", ext)
	}
}
