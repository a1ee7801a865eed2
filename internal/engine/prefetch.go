package engine

import (
	"maps"

	"github.com/roach88/vnengine/internal/script"
)

// WithPrefetchDepth sets the lookahead window at construction.
func WithPrefetchDepth(n int) Option {
	return func(in *Interpreter) {
		in.SetPrefetchDepth(n)
	}
}

// SetPrefetchDepth sets how many events PrefetchAssetsHint looks ahead.
// Negative values are treated as 0.
func (in *Interpreter) SetPrefetchDepth(n int) {
	in.prefetchDepth = max(n, 0)
}

// PrefetchDepth returns the lookahead window.
func (in *Interpreter) PrefetchDepth() int {
	return in.prefetchDepth
}

// PrefetchAssetsHint lists assets the next events will need, in discovery
// order without duplicates.
//
// The walk visits up to PrefetchDepth events starting at the cursor along
// the single path execution will take: jumps are followed, jump_if is
// evaluated against a simulated copy of flags and vars that tracks the
// set_flag and set_var events passed, and the walk stops at the first
// choice. Assets behind an uncommitted choice are never returned.
func (in *Interpreter) PrefetchAssetsHint() []string {
	if in.st.status == StatusExhausted || in.prefetchDepth == 0 {
		return nil
	}

	w := prefetchWalk{
		flags: maps.Clone(in.st.flags),
		vars:  maps.Clone(in.st.vars),
		seen:  make(map[string]bool),
	}
	events := in.script.Events
	idx := in.st.cursor

	for visited := 0; visited < in.prefetchDepth && idx >= 0 && idx < len(events); visited++ {
		switch e := events[idx].(type) {
		case script.Choice:
			return w.assets
		case script.Jump:
			target, ok := in.script.Resolve(e.Target)
			if !ok {
				return w.assets
			}
			idx = target
			continue
		case script.JumpIf:
			taken, err := evalCond(e.Cond, w.flags, w.vars)
			if err != nil {
				return w.assets
			}
			if taken {
				target, ok := in.script.Resolve(e.Target)
				if !ok {
					return w.assets
				}
				idx = target
				continue
			}
		case script.SetFlag:
			w.flags[e.Key] = e.Value
		case script.SetVar:
			w.vars[e.Key] = e.Value
		case script.Scene:
			w.add(e.Background)
			w.add(e.Music)
			for _, p := range e.Characters {
				w.addKey(textureKey(p.Name, p.Expression))
			}
		case script.Patch:
			w.add(e.Background)
			w.add(e.Music)
			for _, p := range e.Add {
				w.addKey(textureKey(p.Name, p.Expression))
			}
			for _, up := range e.Update {
				if up.Expression != nil && *up.Expression != "" {
					w.addKey(textureKey(up.Name, up.Expression))
				}
			}
		case script.AudioAction:
			w.add(e.Asset)
		}
		idx++
	}
	return w.assets
}

type prefetchWalk struct {
	flags  map[string]bool
	vars   map[string]int64
	seen   map[string]bool
	assets []string
}

func (w *prefetchWalk) add(asset *string) {
	if asset != nil {
		w.addKey(*asset)
	}
}

func (w *prefetchWalk) addKey(key string) {
	if key == "" || w.seen[key] {
		return
	}
	w.seen[key] = true
	w.assets = append(w.assets, key)
}
