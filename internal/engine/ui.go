package engine

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/roach88/vnengine/internal/script"
)

// ViewKind selects how a host presents the current event.
type ViewKind string

const (
	ViewDialogue ViewKind = "dialogue"
	ViewChoice   ViewKind = "choice"
	ViewScene    ViewKind = "scene"
	ViewSystem   ViewKind = "system"
	ViewEnd      ViewKind = "end"
)

// UIView is a presentation-ready summary of one event.
type UIView struct {
	Kind        ViewKind `json:"kind"`
	Speaker     string   `json:"speaker,omitempty"`
	Text        string   `json:"text,omitempty"`
	Prompt      string   `json:"prompt,omitempty"`
	Options     []string `json:"options,omitempty"`
	Description string   `json:"description,omitempty"`
	Message     string   `json:"message,omitempty"`
}

// UIView derives the view for the event at the cursor.
func (in *Interpreter) UIView() UIView {
	if in.st.status == StatusExhausted {
		return UIView{Kind: ViewEnd}
	}
	return ViewFor(in.script, in.script.Events[in.st.cursor], in.st.visual)
}

// ViewFor derives the view of ev against a visual state. Scene and patch
// events are previewed on a copy of visual, so passing the state from
// before or after the event gives the same description.
func ViewFor(s *script.Script, ev script.Event, visual VisualState) UIView {
	switch e := ev.(type) {
	case script.Dialogue:
		return UIView{Kind: ViewDialogue, Speaker: e.Speaker, Text: e.Text}
	case script.Choice:
		opts := make([]string, len(e.Options))
		for i, o := range e.Options {
			opts[i] = o.Text
		}
		return UIView{Kind: ViewChoice, Prompt: e.Prompt, Options: opts}
	case script.Scene:
		v := visual.Clone()
		v.applyScene(e)
		return UIView{Kind: ViewScene, Description: describeScene(v)}
	case script.Patch:
		v := visual.Clone()
		v.applyPatch(e)
		return UIView{Kind: ViewScene, Description: describeScene(v)}
	case script.Jump:
		return systemView("Jump to %s", labelIndex(s, e.Target))
	case script.JumpIf:
		return systemView("JumpIf to %s", labelIndex(s, e.Target))
	case script.SetFlag:
		return systemView("Flag %s = %t", e.Key, e.Value)
	case script.SetVar:
		return systemView("Var %s = %d", e.Key, e.Value)
	case script.AudioAction:
		msg := "Audio " + e.CommandType()
		if e.Asset != nil {
			msg += " " + *e.Asset
		}
		return UIView{Kind: ViewSystem, Message: msg}
	case script.Transition:
		return systemView("Transition %s %dms", e.Effect, e.DurationMS)
	case script.SetCharacterPosition:
		return systemView("Move %s to (%s, %s)", e.Name, formatCoord(e.X), formatCoord(e.Y))
	case script.ExtCall:
		return systemView("ExtCall %s(%s)", e.Command, strings.Join(e.Args, ", "))
	case nil:
		return UIView{Kind: ViewEnd}
	default:
		return systemView("Unknown event %T", ev)
	}
}

func systemView(format string, args ...any) UIView {
	return UIView{Kind: ViewSystem, Message: fmt.Sprintf(format, args...)}
}

func labelIndex(s *script.Script, label string) string {
	if s != nil {
		if idx, ok := s.Resolve(label); ok {
			return strconv.Itoa(idx)
		}
	}
	return label
}

func formatCoord(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}

// describeScene summarizes a visual state, e.g.
// "Background: bg | Music: m | Characters: Ava (smile) @ center".
func describeScene(v VisualState) string {
	var parts []string
	if v.Background != nil {
		parts = append(parts, "Background: "+*v.Background)
	}
	if v.Music != nil {
		parts = append(parts, "Music: "+*v.Music)
	}
	if len(v.Characters) > 0 {
		roster := make([]string, len(v.Characters))
		for i, c := range v.Characters {
			entry := c.Name
			if c.Expression != nil {
				entry += " (" + *c.Expression + ")"
			}
			if c.Position != nil {
				entry += " @ " + *c.Position
			}
			roster[i] = entry
		}
		parts = append(parts, "Characters: "+strings.Join(roster, ", "))
	}
	if len(parts) == 0 {
		return "Scene updated"
	}
	return strings.Join(parts, " | ")
}

// RenderText renders a view as plain text.
func RenderText(v UIView) string {
	switch v.Kind {
	case ViewDialogue:
		if v.Speaker == "" {
			return v.Text
		}
		return v.Speaker + ": " + v.Text
	case ViewChoice:
		var b strings.Builder
		b.WriteString(v.Prompt)
		for i, opt := range v.Options {
			fmt.Fprintf(&b, "\n%d. %s", i+1, opt)
		}
		return b.String()
	case ViewScene:
		return v.Description
	case ViewSystem:
		return v.Message
	case ViewEnd:
		return "[end]"
	}
	return ""
}
