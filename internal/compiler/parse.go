package compiler

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"reflect"
	"slices"
	"strings"

	"github.com/roach88/vnengine/internal/script"
)

// Top-level members of the script wire format.
const (
	memberVersion = "script_schema_version"
	memberEvents  = "events"
	memberLabels  = "labels"
)

// ParseJSON decodes and validates a script in the JSON wire format.
//
// Returns *SchemaError when script_schema_version is missing or unsupported,
// and ValidationErrors listing every structural and reference problem found.
// Values are never coerced: a float where an integer is expected, or a string
// where a boolean is expected, is an error.
func ParseJSON(data []byte, opts ...Option) (*script.Script, error) {
	o := applyOptions(opts)

	s, errs, err := decodeScript(data)
	if err != nil {
		return nil, err
	}
	if s == nil {
		return nil, ValidationErrors(errs)
	}

	errs = append(errs, Validate(s, o.limits)...)
	if len(errs) > 0 {
		return nil, ValidationErrors(errs)
	}
	return s, nil
}

// decodeScript performs the structural decode. A nil script with errors
// means the envelope itself was unusable; a non-nil script may contain nil
// events where an individual event failed to decode.
func decodeScript(data []byte) (*script.Script, []ValidationError, error) {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(data, &top); err != nil || top == nil {
		msg := "script must be a JSON object"
		if err != nil {
			msg = fmt.Sprintf("%s: %v", msg, err)
		}
		return nil, []ValidationError{{Field: "$", Message: msg, Code: ErrMalformedScript}}, nil
	}

	version, err := decodeVersion(top[memberVersion])
	if err != nil {
		return nil, nil, err
	}

	s := &script.Script{SchemaVersion: version}
	var errs []ValidationError

	for _, key := range slices.Sorted(maps.Keys(top)) {
		switch key {
		case memberVersion, memberEvents, memberLabels:
		default:
			errs = append(errs, ValidationError{
				Field:   key,
				Message: "unknown top-level member",
				Code:    ErrUnknownField,
			})
		}
	}

	events, evErrs := decodeEvents(top[memberEvents])
	s.Events = events
	errs = append(errs, evErrs...)

	labels, labelErrs := decodeLabels(top[memberLabels])
	s.Labels = labels
	errs = append(errs, labelErrs...)

	return s, errs, nil
}

func decodeVersion(raw json.RawMessage) (string, error) {
	if raw == nil || isNull(raw) {
		return "", &SchemaError{Expected: script.SchemaVersion, Missing: true}
	}
	var version string
	if err := json.Unmarshal(raw, &version); err != nil {
		return "", &SchemaError{Found: string(raw), Expected: script.SchemaVersion}
	}
	if version != script.SchemaVersion {
		return "", &SchemaError{Found: version, Expected: script.SchemaVersion}
	}
	return version, nil
}

func decodeEvents(raw json.RawMessage) ([]script.Event, []ValidationError) {
	if raw == nil || isNull(raw) {
		return nil, []ValidationError{{
			Field:   memberEvents,
			Message: "events is required",
			Code:    ErrMissingMember,
		}}
	}
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, []ValidationError{{
			Field:   memberEvents,
			Message: "events must be an array",
			Code:    ErrInvalidFieldType,
		}}
	}
	if len(items) == 0 {
		return nil, nil
	}

	var errs []ValidationError
	events := make([]script.Event, len(items))
	for i, item := range items {
		ev, evErrs := decodeEvent(fmt.Sprintf("events[%d]", i), item)
		events[i] = ev
		errs = append(errs, evErrs...)
	}
	return events, errs
}

func decodeLabels(raw json.RawMessage) (map[string]int, []ValidationError) {
	labels := make(map[string]int)
	if raw == nil || isNull(raw) {
		return labels, []ValidationError{{
			Field:   memberLabels,
			Message: "labels is required",
			Code:    ErrMissingMember,
		}}
	}
	var entries map[string]json.RawMessage
	if err := json.Unmarshal(raw, &entries); err != nil {
		return labels, []ValidationError{{
			Field:   memberLabels,
			Message: "labels must be an object",
			Code:    ErrInvalidFieldType,
		}}
	}

	var errs []ValidationError
	for _, name := range slices.Sorted(maps.Keys(entries)) {
		var idx int
		value := entries[name]
		if isNull(value) || json.Unmarshal(value, &idx) != nil {
			errs = append(errs, ValidationError{
				Field:   memberLabels + "." + name,
				Message: fmt.Sprintf("label index must be a non-negative integer, got %s", value),
				Code:    ErrInvalidFieldType,
			})
			continue
		}
		labels[name] = idx
	}
	return labels, errs
}

// eventDecoder decodes one event kind once "type" has been stripped.
type eventDecoder struct {
	required []string
	decode   func(path string, fields map[string]json.RawMessage) (script.Event, []ValidationError)
}

var eventDecoders = map[script.Kind]eventDecoder{
	script.KindDialogue:             {required: []string{"speaker", "text"}, decode: decodeInto[script.Dialogue]},
	script.KindChoice:               {required: []string{"prompt", "options"}, decode: decodeInto[script.Choice]},
	script.KindScene:                {decode: decodeInto[script.Scene]},
	script.KindPatch:                {decode: decodeInto[script.Patch]},
	script.KindJump:                 {required: []string{"target"}, decode: decodeInto[script.Jump]},
	script.KindJumpIf:               {required: []string{"cond", "target"}, decode: decodeJumpIf},
	script.KindSetFlag:              {required: []string{"key", "value"}, decode: decodeInto[script.SetFlag]},
	script.KindSetVar:               {required: []string{"key", "value"}, decode: decodeInto[script.SetVar]},
	script.KindAudioAction:          {required: []string{"action"}, decode: decodeInto[script.AudioAction]},
	script.KindTransition:           {required: []string{"kind", "duration_ms"}, decode: decodeInto[script.Transition]},
	script.KindSetCharacterPosition: {required: []string{"name", "x", "y"}, decode: decodeInto[script.SetCharacterPosition]},
	script.KindExtCall:              {required: []string{"command"}, decode: decodeInto[script.ExtCall]},
}

func decodeEvent(path string, raw json.RawMessage) (script.Event, []ValidationError) {
	fields, kind, errs := splitTagged(path, raw, "type", ErrMalformedEvent)
	if errs != nil {
		return nil, errs
	}
	d, ok := eventDecoders[script.Kind(kind)]
	if !ok {
		return nil, []ValidationError{{
			Field:   path + ".type",
			Message: fmt.Sprintf("unknown event type %q", kind),
			Code:    ErrUnknownEventType,
		}}
	}
	if errs := requireFields(path, fields, d.required); errs != nil {
		return nil, errs
	}
	ev, errs := d.decode(path, fields)
	if errs != nil {
		return nil, errs
	}
	return normalizeEvent(ev), nil
}

// splitTagged decodes an object and removes its string discriminator.
func splitTagged(path string, raw json.RawMessage, tagKey, code string) (map[string]json.RawMessage, string, []ValidationError) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil || fields == nil {
		return nil, "", []ValidationError{{Field: path, Message: "must be a JSON object", Code: code}}
	}
	rawTag, ok := fields[tagKey]
	if !ok || isNull(rawTag) {
		return nil, "", []ValidationError{{
			Field:   path + "." + tagKey,
			Message: tagKey + " is required",
			Code:    code,
		}}
	}
	var tag string
	if err := json.Unmarshal(rawTag, &tag); err != nil {
		return nil, "", []ValidationError{{
			Field:   path + "." + tagKey,
			Message: tagKey + " must be a string",
			Code:    code,
		}}
	}
	delete(fields, tagKey)
	return fields, tag, nil
}

func requireFields(path string, fields map[string]json.RawMessage, names []string) []ValidationError {
	var errs []ValidationError
	for _, name := range names {
		raw, ok := fields[name]
		if !ok || isNull(raw) {
			errs = append(errs, ValidationError{
				Field:   path + "." + name,
				Message: name + " is required",
				Code:    ErrMissingField,
			})
		}
	}
	return errs
}

func decodeInto[T script.Event](path string, fields map[string]json.RawMessage) (script.Event, []ValidationError) {
	var ev T
	if e := exactKeys(path, fields, reflect.TypeFor[T]()); e != nil {
		return nil, []ValidationError{*e}
	}
	if err := strictDecode(fields, &ev); err != nil {
		return nil, []ValidationError{fieldError(path, err)}
	}
	return ev, nil
}

func decodeJumpIf(path string, fields map[string]json.RawMessage) (script.Event, []ValidationError) {
	rest := maps.Clone(fields)
	delete(rest, "cond")

	var errs []ValidationError
	var body struct {
		Target string `json:"target"`
	}
	if e := exactKeys(path, rest, reflect.TypeOf(body)); e != nil {
		errs = append(errs, *e)
	} else if err := strictDecode(rest, &body); err != nil {
		errs = append(errs, fieldError(path, err))
	}
	cond, condErrs := decodeCond(path+".cond", fields["cond"])
	errs = append(errs, condErrs...)
	if errs != nil {
		return nil, errs
	}
	return script.JumpIf{Cond: cond, Target: body.Target}, nil
}

type condDecoder struct {
	required []string
	decode   func(path string, fields map[string]json.RawMessage) (script.Cond, []ValidationError)
}

var condDecoders = map[script.CondKind]condDecoder{
	script.CondFlag:   {required: []string{"key", "is_set"}, decode: decodeCondInto[script.FlagCond]},
	script.CondVarCmp: {required: []string{"key", "op", "value"}, decode: decodeCondInto[script.VarCmp]},
}

func decodeCond(path string, raw json.RawMessage) (script.Cond, []ValidationError) {
	fields, kind, errs := splitTagged(path, raw, "kind", ErrMalformedEvent)
	if errs != nil {
		return nil, errs
	}
	d, ok := condDecoders[script.CondKind(kind)]
	if !ok {
		return nil, []ValidationError{{
			Field:   path + ".kind",
			Message: fmt.Sprintf("unknown condition kind %q", kind),
			Code:    ErrUnknownCondKind,
		}}
	}
	if errs := requireFields(path, fields, d.required); errs != nil {
		return nil, errs
	}
	return d.decode(path, fields)
}

func decodeCondInto[T script.Cond](path string, fields map[string]json.RawMessage) (script.Cond, []ValidationError) {
	var c T
	if e := exactKeys(path, fields, reflect.TypeFor[T]()); e != nil {
		return nil, []ValidationError{*e}
	}
	if err := strictDecode(fields, &c); err != nil {
		return nil, []ValidationError{fieldError(path, err)}
	}
	return c, nil
}

// strictDecode re-encodes fields and decodes them into v, rejecting fields
// v does not declare.
func strictDecode(fields map[string]json.RawMessage, v any) error {
	body, err := json.Marshal(fields)
	if err != nil {
		return err
	}
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// exactKeys rejects any key of fields, at any depth, that is not one of t's
// json names byte for byte. encoding/json folds case when it matches names,
// so "VALUE" would otherwise land in the value field.
func exactKeys(path string, fields map[string]json.RawMessage, t reflect.Type) *ValidationError {
	names := jsonFields(t)
	for _, key := range slices.Sorted(maps.Keys(fields)) {
		ft, ok := names[key]
		if !ok {
			return &ValidationError{
				Field:   path + "." + key,
				Message: fmt.Sprintf("unknown field %q", key),
				Code:    ErrUnknownField,
			}
		}
		if e := exactValue(path+"."+key, fields[key], ft); e != nil {
			return e
		}
	}
	return nil
}

// exactValue descends into objects and arrays. Values of the wrong JSON type
// are left for the decoder to report.
func exactValue(path string, raw json.RawMessage, t reflect.Type) *ValidationError {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	switch t.Kind() {
	case reflect.Struct:
		var fields map[string]json.RawMessage
		if json.Unmarshal(raw, &fields) != nil {
			return nil
		}
		return exactKeys(path, fields, t)
	case reflect.Slice, reflect.Array:
		var items []json.RawMessage
		if json.Unmarshal(raw, &items) != nil {
			return nil
		}
		for i, item := range items {
			if e := exactValue(fmt.Sprintf("%s[%d]", path, i), item, t.Elem()); e != nil {
				return e
			}
		}
	}
	return nil
}

// jsonFields maps the json name of each exported field of struct t to its type.
func jsonFields(t reflect.Type) map[string]reflect.Type {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	names := make(map[string]reflect.Type, t.NumField())
	for i := range t.NumField() {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		switch name {
		case "-":
			continue
		case "":
			name = f.Name
		}
		names[name] = f.Type
	}
	return names
}

// fieldError maps encoding/json decode failures onto validation errors.
func fieldError(path string, err error) ValidationError {
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		field := path
		if typeErr.Field != "" {
			field = path + "." + typeErr.Field
		}
		return ValidationError{
			Field:   field,
			Message: fmt.Sprintf("expected %s, got %s", jsonTypeName(typeErr.Type), typeErr.Value),
			Code:    ErrInvalidFieldType,
		}
	}
	if name, ok := strings.CutPrefix(err.Error(), "json: unknown field "); ok {
		name = strings.Trim(name, `"`)
		return ValidationError{
			Field:   path + "." + name,
			Message: fmt.Sprintf("unknown field %q", name),
			Code:    ErrUnknownField,
		}
	}
	return ValidationError{Field: path, Message: err.Error(), Code: ErrMalformedEvent}
}

// jsonTypeName names the JSON type a Go destination type expects.
func jsonTypeName(t reflect.Type) string {
	if t == nil {
		return "value"
	}
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	switch t.Kind() {
	case reflect.Bool:
		return "boolean"
	case reflect.String:
		return "string"
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return "integer"
	case reflect.Float32, reflect.Float64:
		return "number"
	case reflect.Slice, reflect.Array:
		return "array"
	case reflect.Struct, reflect.Map, reflect.Interface:
		return "object"
	}
	return t.String()
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

// normalizeEvent gives decoded events one canonical in-memory form: empty
// lists become nil and an empty Scene background or music means none.
func normalizeEvent(ev script.Event) script.Event {
	switch e := ev.(type) {
	case script.Scene:
		e.Background = nonEmpty(e.Background)
		e.Music = nonEmpty(e.Music)
		if len(e.Characters) == 0 {
			e.Characters = nil
		}
		return e
	case script.Patch:
		if len(e.Add) == 0 {
			e.Add = nil
		}
		if len(e.Update) == 0 {
			e.Update = nil
		}
		if len(e.Remove) == 0 {
			e.Remove = nil
		}
		return e
	case script.Choice:
		if len(e.Options) == 0 {
			e.Options = nil
		}
		return e
	case script.ExtCall:
		if len(e.Args) == 0 {
			e.Args = nil
		}
		return e
	}
	return ev
}

func nonEmpty(s *string) *string {
	if s == nil || *s == "" {
		return nil
	}
	return s
}
