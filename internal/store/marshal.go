package store

import (
	"encoding/json"
	"fmt"

	"github.com/roach88/vnengine/internal/engine"
	"github.com/roach88/vnengine/internal/script"
)

// marshalEvent converts an event to canonical JSON TEXT for storage.
func marshalEvent(ev script.Event) (string, error) {
	data, err := script.CanonicalOf(ev)
	if err != nil {
		return "", fmt.Errorf("marshal event: %w", err)
	}
	return string(data), nil
}

// marshalAudio converts drained audio commands to canonical JSON TEXT.
// A nil slice is stored as [] so replays compare equal.
func marshalAudio(cmds []engine.AudioCommand) (string, error) {
	if cmds == nil {
		cmds = []engine.AudioCommand{}
	}
	data, err := script.CanonicalOf(cmds)
	if err != nil {
		return "", fmt.Errorf("marshal audio: %w", err)
	}
	return string(data), nil
}

// marshalArgs converts ext_call arguments to canonical JSON TEXT.
func marshalArgs(args []string) (string, error) {
	if args == nil {
		args = []string{}
	}
	data, err := script.CanonicalOf(args)
	if err != nil {
		return "", fmt.Errorf("marshal args: %w", err)
	}
	return string(data), nil
}

// unmarshalArgs parses stored ext_call arguments.
func unmarshalArgs(data string) ([]string, error) {
	args := []string{}
	if data == "" || data == "[]" {
		return args, nil
	}
	if err := json.Unmarshal([]byte(data), &args); err != nil {
		return nil, fmt.Errorf("unmarshal args: %w", err)
	}
	return args, nil
}

// unmarshalAudio parses stored audio commands.
func unmarshalAudio(data string) ([]engine.AudioCommand, error) {
	cmds := []engine.AudioCommand{}
	if data == "" || data == "[]" {
		return cmds, nil
	}
	if err := json.Unmarshal([]byte(data), &cmds); err != nil {
		return nil, fmt.Errorf("unmarshal audio: %w", err)
	}
	return cmds, nil
}
