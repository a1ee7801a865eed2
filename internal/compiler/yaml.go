package compiler

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/roach88/vnengine/internal/script"
)

// ParseYAML decodes a script written in YAML.
//
// The YAML document is converted node by node into JSON and then goes
// through ParseJSON, so the same strict typing applies. Scalar tags are
// preserved: 3.0 stays a float and is rejected where an integer is
// expected. Validation errors under events[i] carry the event's line.
func ParseYAML(data []byte, opts ...Option) (*script.Script, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, ValidationErrors{{
			Field:   "$",
			Message: fmt.Sprintf("invalid YAML: %v", err),
			Code:    ErrMalformedScript,
		}}
	}

	var buf bytes.Buffer
	if err := writeNodeJSON(&buf, &doc); err != nil {
		return nil, ValidationErrors{{
			Field:   "$",
			Message: err.Error(),
			Code:    ErrMalformedScript,
		}}
	}

	s, err := ParseJSON(buf.Bytes(), opts...)
	if err != nil {
		if list, ok := AsValidationErrors(err); ok {
			return nil, annotateLines(list, eventLines(&doc))
		}
		return nil, err
	}
	return s, nil
}

// writeNodeJSON renders a YAML node tree as JSON text.
func writeNodeJSON(buf *bytes.Buffer, n *yaml.Node) error {
	switch n.Kind {
	case yaml.DocumentNode:
		if len(n.Content) == 0 {
			buf.WriteString("null")
			return nil
		}
		return writeNodeJSON(buf, n.Content[0])

	case yaml.AliasNode:
		return writeNodeJSON(buf, n.Alias)

	case yaml.MappingNode:
		buf.WriteByte('{')
		for i := 0; i+1 < len(n.Content); i += 2 {
			key, value := n.Content[i], n.Content[i+1]
			if key.Kind != yaml.ScalarNode {
				return fmt.Errorf("line %d: mapping keys must be scalars", key.Line)
			}
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeJSONString(buf, key.Value); err != nil {
				return err
			}
			buf.WriteByte(':')
			if err := writeNodeJSON(buf, value); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
		return nil

	case yaml.SequenceNode:
		buf.WriteByte('[')
		for i, item := range n.Content {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeNodeJSON(buf, item); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
		return nil

	case yaml.ScalarNode:
		return writeScalarJSON(buf, n)
	}
	return fmt.Errorf("line %d: unsupported YAML node", n.Line)
}

var jsonNumberPattern = regexp.MustCompile(`^-?(0|[1-9][0-9]*)(\.[0-9]+)?([eE][+-]?[0-9]+)?$`)

func writeScalarJSON(buf *bytes.Buffer, n *yaml.Node) error {
	switch n.ShortTag() {
	case "!!null":
		buf.WriteString("null")
	case "!!bool":
		var b bool
		if err := n.Decode(&b); err != nil {
			return fmt.Errorf("line %d: %w", n.Line, err)
		}
		buf.WriteString(strconv.FormatBool(b))
	case "!!int":
		var i int64
		if err := n.Decode(&i); err != nil {
			return fmt.Errorf("line %d: %w", n.Line, err)
		}
		buf.WriteString(strconv.FormatInt(i, 10))
	case "!!float":
		if jsonNumberPattern.MatchString(n.Value) {
			// Keep the literal so 3.0 is still a float downstream.
			buf.WriteString(n.Value)
			return nil
		}
		var f float64
		if err := n.Decode(&f); err != nil {
			return fmt.Errorf("line %d: %w", n.Line, err)
		}
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return fmt.Errorf("line %d: non-finite number %q", n.Line, n.Value)
		}
		s := strconv.FormatFloat(f, 'g', -1, 64)
		if !strings.ContainsAny(s, ".eE") {
			s += ".0"
		}
		buf.WriteString(s)
	default:
		return writeJSONString(buf, n.Value)
	}
	return nil
}

func writeJSONString(buf *bytes.Buffer, s string) error {
	data, err := json.Marshal(s)
	if err != nil {
		return err
	}
	buf.Write(data)
	return nil
}

// eventLines maps each event index to its line in the YAML source.
func eventLines(doc *yaml.Node) map[int]int {
	lines := make(map[int]int)
	root := doc
	if root.Kind == yaml.DocumentNode && len(root.Content) > 0 {
		root = root.Content[0]
	}
	if root.Kind != yaml.MappingNode {
		return lines
	}
	for i := 0; i+1 < len(root.Content); i += 2 {
		if root.Content[i].Value != memberEvents {
			continue
		}
		seq := root.Content[i+1]
		if seq.Kind != yaml.SequenceNode {
			return lines
		}
		for idx, item := range seq.Content {
			lines[idx] = item.Line
		}
	}
	return lines
}

// annotateLines fills Line for errors whose field starts with events[i].
func annotateLines(errs ValidationErrors, lines map[int]int) ValidationErrors {
	if len(lines) == 0 {
		return errs
	}
	out := make(ValidationErrors, len(errs))
	for i, e := range errs {
		if idx, ok := eventIndex(e.Field); ok && e.Line == 0 {
			e.Line = lines[idx]
		}
		out[i] = e
	}
	return out
}

// eventIndex extracts i from a field path of the form "events[i]...".
func eventIndex(field string) (int, bool) {
	rest, ok := strings.CutPrefix(field, memberEvents+"[")
	if !ok {
		return 0, false
	}
	end := strings.IndexByte(rest, ']')
	if end < 0 {
		return 0, false
	}
	idx, err := strconv.Atoi(rest[:end])
	if err != nil {
		return 0, false
	}
	return idx, true
}
