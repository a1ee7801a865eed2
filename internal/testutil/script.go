package testutil

import "github.com/roach88/vnengine/internal/script"

// Script builds a script over events with a "start" label at index 0.
// An empty event list yields a script with no labels.
func Script(events ...script.Event) *script.Script {
	labels := map[string]int{}
	if len(events) > 0 {
		labels[script.StartLabel] = 0
	}
	return ScriptWithLabels(labels, events...)
}

// ScriptWithLabels builds a script with explicit labels.
func ScriptWithLabels(labels map[string]int, events ...script.Event) *script.Script {
	if labels == nil {
		labels = map[string]int{}
	}
	return &script.Script{
		SchemaVersion: script.SchemaVersion,
		Events:        events,
		Labels:        labels,
	}
}

// Str returns a pointer to s.
func Str(s string) *string { return &s }

// F64 returns a pointer to f.
func F64(f float64) *float64 { return &f }

// Bool returns a pointer to b.
func Bool(b bool) *bool { return &b }
