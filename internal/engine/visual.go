package engine

import (
	"encoding/json"
	"slices"

	"github.com/roach88/vnengine/internal/script"
)

// VisualState is the projected scene: background, music, and the roster of
// characters in placement order. Unset values serialize as null.
type VisualState struct {
	Background *string     `json:"background"`
	Music      *string     `json:"music"`
	Characters []Character `json:"characters"`
}

// Character is one placed character. Name is unique within a VisualState.
type Character struct {
	Name       string   `json:"name"`
	Expression *string  `json:"expression"`
	Position   *string  `json:"position"`
	X          *float64 `json:"x"`
	Y          *float64 `json:"y"`
	Scale      *float64 `json:"scale"`
}

// MarshalJSON always emits characters as an array.
func (v VisualState) MarshalJSON() ([]byte, error) {
	type plain VisualState
	p := plain(v)
	if p.Characters == nil {
		p.Characters = []Character{}
	}
	return json.Marshal(p)
}

// Clone returns a deep copy that shares no pointers with v.
func (v VisualState) Clone() VisualState {
	out := VisualState{
		Background: clonePtr(v.Background),
		Music:      clonePtr(v.Music),
	}
	if v.Characters != nil {
		out.Characters = make([]Character, len(v.Characters))
		for i, c := range v.Characters {
			out.Characters[i] = c.clone()
		}
	}
	return out
}

// Character returns the placement with the given name.
func (v VisualState) Character(name string) (Character, bool) {
	if i := v.find(name); i >= 0 {
		return v.Characters[i].clone(), true
	}
	return Character{}, false
}

func (c Character) clone() Character {
	return Character{
		Name:       c.Name,
		Expression: clonePtr(c.Expression),
		Position:   clonePtr(c.Position),
		X:          clonePtr(c.X),
		Y:          clonePtr(c.Y),
		Scale:      clonePtr(c.Scale),
	}
}

// TextureKey identifies the character art: "name/expression", or "name"
// without an expression.
func (c Character) TextureKey() string {
	return textureKey(c.Name, c.Expression)
}

func textureKey(name string, expression *string) string {
	if expression == nil || *expression == "" {
		return name
	}
	return name + "/" + *expression
}

func (v *VisualState) find(name string) int {
	return slices.IndexFunc(v.Characters, func(c Character) bool { return c.Name == name })
}

// applyScene replaces the whole visual state.
func (v *VisualState) applyScene(sc script.Scene) {
	*v = VisualState{
		Background: cloneNonEmpty(sc.Background),
		Music:      cloneNonEmpty(sc.Music),
	}
	for _, p := range sc.Characters {
		v.upsert(fromPlacement(p))
	}
}

// applyPatch merges into the visual state: add, then update, then remove.
// A nil string leaves the field alone and "" clears it.
func (v *VisualState) applyPatch(p script.Patch) {
	if p.Background != nil {
		v.Background = cloneNonEmpty(p.Background)
	}
	if p.Music != nil {
		v.Music = cloneNonEmpty(p.Music)
	}
	for _, add := range p.Add {
		v.upsert(fromPlacement(add))
	}
	for _, up := range p.Update {
		i := v.find(up.Name)
		if i < 0 {
			continue
		}
		c := &v.Characters[i]
		if up.Expression != nil {
			c.Expression = cloneNonEmpty(up.Expression)
		}
		if up.Position != nil {
			c.Position = cloneNonEmpty(up.Position)
		}
		if up.X != nil {
			c.X = clonePtr(up.X)
		}
		if up.Y != nil {
			c.Y = clonePtr(up.Y)
		}
		if up.Scale != nil {
			c.Scale = clonePtr(up.Scale)
		}
	}
	for _, name := range p.Remove {
		if i := v.find(name); i >= 0 {
			v.Characters = slices.Delete(v.Characters, i, i+1)
		}
	}
	if len(v.Characters) == 0 {
		v.Characters = nil
	}
}

// setPosition moves a character, placing it when absent. A nil scale keeps
// the current one.
func (v *VisualState) setPosition(e script.SetCharacterPosition) {
	i := v.find(e.Name)
	if i < 0 {
		v.Characters = append(v.Characters, Character{
			Name:  e.Name,
			X:     ptr(e.X),
			Y:     ptr(e.Y),
			Scale: clonePtr(e.Scale),
		})
		return
	}
	c := &v.Characters[i]
	c.X = ptr(e.X)
	c.Y = ptr(e.Y)
	if e.Scale != nil {
		c.Scale = clonePtr(e.Scale)
	}
}

// upsert inserts a character or overwrites the one with the same name in place.
func (v *VisualState) upsert(c Character) {
	if i := v.find(c.Name); i >= 0 {
		v.Characters[i] = c
		return
	}
	v.Characters = append(v.Characters, c)
}

// textureKeys lists the background and character art the state references.
func (v VisualState) textureKeys() []string {
	keys := make([]string, 0, len(v.Characters)+1)
	if v.Background != nil {
		keys = append(keys, *v.Background)
	}
	for _, c := range v.Characters {
		keys = append(keys, c.TextureKey())
	}
	return keys
}

func fromPlacement(p script.CharacterPlacement) Character {
	return Character{
		Name:       p.Name,
		Expression: cloneNonEmpty(p.Expression),
		Position:   cloneNonEmpty(p.Position),
		X:          clonePtr(p.X),
		Y:          clonePtr(p.Y),
		Scale:      clonePtr(p.Scale),
	}
}

func ptr[T any](v T) *T {
	return &v
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneNonEmpty(s *string) *string {
	if s == nil || *s == "" {
		return nil
	}
	return clonePtr(s)
}

func equalPtr[T comparable](a, b *T) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
