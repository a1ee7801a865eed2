package compiler

import (
	"fmt"
	"maps"
	"math"
	"regexp"
	"slices"

	"github.com/roach88/vnengine/internal/script"
)

var hexColorPattern = regexp.MustCompile(`^#([0-9A-Fa-f]{3}|[0-9A-Fa-f]{6}|[0-9A-Fa-f]{8})$`)

// CheckVersion reports a SchemaError when s does not carry the supported
// schema version. Scripts built in Go skip the decoder, so New calls this
// before Validate.
func CheckVersion(s *script.Script) error {
	switch {
	case s == nil:
		return nil
	case s.SchemaVersion == "":
		return &SchemaError{Expected: script.SchemaVersion, Missing: true}
	case s.SchemaVersion != script.SchemaVersion:
		return &SchemaError{Found: s.SchemaVersion, Expected: script.SchemaVersion}
	}
	return nil
}

// Validate checks a decoded script against reference and semantic rules.
// Returns all errors found (does not fail-fast). Nil events, left behind by
// a failed decode, are skipped.
func Validate(s *script.Script, limits Limits) []ValidationError {
	if s == nil {
		return []ValidationError{{Field: "$", Message: "script is nil", Code: ErrMalformedScript}}
	}

	c := &checker{limits: limits, labels: s.Labels}

	if s.SchemaVersion != script.SchemaVersion {
		c.add(memberVersion, ErrMalformedScript, "unsupported schema version %q (expected %q)",
			s.SchemaVersion, script.SchemaVersion)
	}

	// E199: event count
	if exceeds(len(s.Events), limits.MaxEvents) {
		c.add(memberEvents, ErrLimitExceeded, "script has %d events, limit is %d",
			len(s.Events), limits.MaxEvents)
	}

	// E110: every label is a valid index
	for _, name := range slices.Sorted(maps.Keys(s.Labels)) {
		field := memberLabels + "." + name
		idx := s.Labels[name]
		if name == "" {
			c.add(field, ErrInvalidLabel, "label name must be non-empty")
		}
		if exceeds(len(name), limits.MaxLabelLength) {
			c.add(field, ErrLimitExceeded, "label name is %d bytes, limit is %d",
				len(name), limits.MaxLabelLength)
		}
		if idx < 0 || idx >= len(s.Events) {
			c.add(field, ErrInvalidLabel, "label %q points at index %d, script has %d events",
				name, idx, len(s.Events))
		}
	}

	for i, ev := range s.Events {
		if ev == nil {
			continue
		}
		c.event(fmt.Sprintf("events[%d]", i), ev)
	}

	return c.errs
}

// checker accumulates validation errors for one script.
type checker struct {
	limits Limits
	labels map[string]int
	errs   []ValidationError
}

func (c *checker) add(field, code, format string, args ...any) {
	c.errs = append(c.errs, ValidationError{
		Field:   field,
		Message: fmt.Sprintf(format, args...),
		Code:    code,
	})
}

func (c *checker) event(path string, ev script.Event) {
	switch e := ev.(type) {
	case script.Dialogue:
		if e.Speaker == "" && !c.limits.AllowEmptySpeaker {
			c.add(path+".speaker", ErrEmptyField, "speaker must be non-empty")
		}
		c.text(path+".speaker", e.Speaker)
		c.text(path+".text", e.Text)

	case script.Choice:
		c.text(path+".prompt", e.Prompt)
		if len(e.Options) == 0 {
			c.add(path+".options", ErrEmptyChoice, "choice must have at least one option")
		}
		for j, opt := range e.Options {
			optPath := fmt.Sprintf("%s.options[%d]", path, j)
			if opt.Text == "" {
				c.add(optPath+".text", ErrEmptyField, "option text must be non-empty")
			}
			c.text(optPath+".text", opt.Text)
			c.target(optPath+".target", opt.Target)
		}

	case script.Scene:
		c.asset(path+".background", e.Background)
		c.asset(path+".music", e.Music)
		c.roster(path+".characters", e.Characters, true)

	case script.Patch:
		c.asset(path+".background", e.Background)
		c.asset(path+".music", e.Music)
		c.roster(path+".add", e.Add, false)
		for j, up := range e.Update {
			upPath := fmt.Sprintf("%s.update[%d]", path, j)
			c.name(upPath+".name", up.Name)
			c.asset(upPath+".expression", up.Expression)
			c.asset(upPath+".position", up.Position)
			c.coord(upPath+".x", up.X)
			c.coord(upPath+".y", up.Y)
			c.scale(upPath+".scale", up.Scale)
		}
		for j, name := range e.Remove {
			c.name(fmt.Sprintf("%s.remove[%d]", path, j), name)
		}

	case script.Jump:
		c.target(path+".target", e.Target)

	case script.JumpIf:
		c.cond(path+".cond", e.Cond)
		c.target(path+".target", e.Target)

	case script.SetFlag:
		c.key(path+".key", e.Key)

	case script.SetVar:
		c.key(path+".key", e.Key)

	case script.AudioAction:
		c.audio(path, e)

	case script.Transition:
		if e.Effect == "" {
			c.add(path+".kind", ErrEmptyField, "transition kind must be non-empty")
		}
		c.text(path+".kind", e.Effect)
		if e.DurationMS < 0 {
			c.add(path+".duration_ms", ErrValueOutOfRange, "duration_ms must be >= 0, got %d", e.DurationMS)
		}
		if e.Color != nil && !hexColorPattern.MatchString(*e.Color) {
			c.add(path+".color", ErrInvalidColor, "color must be #RGB, #RRGGBB or #RRGGBBAA, got %q", *e.Color)
		}

	case script.SetCharacterPosition:
		c.name(path+".name", e.Name)
		c.coord(path+".x", &e.X)
		c.coord(path+".y", &e.Y)
		c.scale(path+".scale", e.Scale)

	case script.ExtCall:
		if e.Command == "" {
			c.add(path+".command", ErrEmptyField, "command must be non-empty")
		}
		c.text(path+".command", e.Command)
		for j, arg := range e.Args {
			c.text(fmt.Sprintf("%s.args[%d]", path, j), arg)
		}

	default:
		c.add(path+".type", ErrUnknownEventType, "unsupported event type %T", ev)
	}
}

func (c *checker) cond(path string, cond script.Cond) {
	switch cd := cond.(type) {
	case script.FlagCond:
		c.key(path+".key", cd.Key)
	case script.VarCmp:
		c.key(path+".key", cd.Key)
		if !cd.Op.Valid() {
			c.add(path+".op", ErrInvalidOperator, "unknown comparison operator %q", string(cd.Op))
		}
	case nil:
		c.add(path, ErrMissingField, "cond is required")
	default:
		c.add(path+".kind", ErrUnknownCondKind, "unsupported condition type %T", cond)
	}
}

func (c *checker) audio(path string, a script.AudioAction) {
	verb, _, ok := a.Resolve()
	if !ok {
		switch {
		case a.Channel != "" && !script.ValidChannel(a.Channel):
			c.add(path+".channel", ErrInvalidAudioAction, "unknown audio channel %q", a.Channel)
		case a.Action == script.ActionStopAll:
			c.add(path+".channel", ErrInvalidAudioAction, "stop_all takes no channel")
		default:
			c.add(path+".action", ErrInvalidAudioAction, "cannot resolve action %q on channel %q", a.Action, a.Channel)
		}
	}
	if verb == script.VerbPlay && (a.Asset == nil || *a.Asset == "") {
		c.add(path+".asset", ErrInvalidAudioAction, "%s requires an asset", a.Action)
	}
	c.asset(path+".asset", a.Asset)
	if a.Volume != nil && (!finite(*a.Volume) || *a.Volume < 0 || *a.Volume > 1) {
		c.add(path+".volume", ErrValueOutOfRange, "volume must be in [0, 1], got %v", *a.Volume)
	}
	c.nonNegative(path+".fade_in", a.FadeIn)
	c.nonNegative(path+".fade_out", a.FadeOut)
}

func (c *checker) roster(path string, list []script.CharacterPlacement, unique bool) {
	if exceeds(len(list), c.limits.MaxCharacters) {
		c.add(path, ErrLimitExceeded, "%d characters, limit is %d", len(list), c.limits.MaxCharacters)
	}
	seen := make(map[string]bool, len(list))
	for j, p := range list {
		pPath := fmt.Sprintf("%s[%d]", path, j)
		c.name(pPath+".name", p.Name)
		if unique && p.Name != "" && seen[p.Name] {
			c.add(pPath+".name", ErrDuplicateCharacter, "duplicate character %q", p.Name)
		}
		seen[p.Name] = true
		c.asset(pPath+".expression", p.Expression)
		c.asset(pPath+".position", p.Position)
		c.coord(pPath+".x", p.X)
		c.coord(pPath+".y", p.Y)
		c.scale(pPath+".scale", p.Scale)
	}
}

// target checks a branch target: non-empty and defined in labels.
func (c *checker) target(field, label string) {
	if label == "" {
		c.add(field, ErrEmptyField, "target must be non-empty")
		return
	}
	if _, ok := c.labels[label]; !ok {
		c.add(field, ErrDanglingTarget, "target %q is not a defined label", label)
	}
}

func (c *checker) key(field, key string) {
	if key == "" {
		c.add(field, ErrEmptyField, "key must be non-empty")
	}
	if exceeds(len(key), c.limits.MaxLabelLength) {
		c.add(field, ErrLimitExceeded, "key is %d bytes, limit is %d", len(key), c.limits.MaxLabelLength)
	}
}

func (c *checker) name(field, name string) {
	if name == "" {
		c.add(field, ErrEmptyField, "character name must be non-empty")
	}
	if exceeds(len(name), c.limits.MaxAssetLength) {
		c.add(field, ErrLimitExceeded, "name is %d bytes, limit is %d", len(name), c.limits.MaxAssetLength)
	}
}

func (c *checker) text(field, s string) {
	if exceeds(len(s), c.limits.MaxTextLength) {
		c.add(field, ErrLimitExceeded, "text is %d bytes, limit is %d", len(s), c.limits.MaxTextLength)
	}
}

func (c *checker) asset(field string, s *string) {
	if s != nil && exceeds(len(*s), c.limits.MaxAssetLength) {
		c.add(field, ErrLimitExceeded, "asset is %d bytes, limit is %d", len(*s), c.limits.MaxAssetLength)
	}
}

func (c *checker) coord(field string, v *float64) {
	if v != nil && !finite(*v) {
		c.add(field, ErrValueOutOfRange, "coordinate must be finite, got %v", *v)
	}
}

func (c *checker) scale(field string, v *float64) {
	if v != nil && (!finite(*v) || *v <= 0) {
		c.add(field, ErrValueOutOfRange, "scale must be finite and > 0, got %v", *v)
	}
}

func (c *checker) nonNegative(field string, v *float64) {
	if v != nil && (!finite(*v) || *v < 0) {
		c.add(field, ErrValueOutOfRange, "must be finite and >= 0, got %v", *v)
	}
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
