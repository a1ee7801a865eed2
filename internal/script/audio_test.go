package script

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAudioAction_Resolve(t *testing.T) {
	tests := []struct {
		name    string
		action  AudioAction
		verb    string
		channel string
		ok      bool
	}{
		{"qualified play", AudioAction{Action: "play_bgm"}, "play", "bgm", true},
		{"qualified with matching channel", AudioAction{Channel: "sfx", Action: "play_sfx"}, "play", "sfx", true},
		{"qualified with conflicting channel", AudioAction{Channel: "bgm", Action: "play_sfx"}, "", "", false},
		{"bare verb uses channel", AudioAction{Channel: "voice", Action: "stop"}, "stop", "voice", true},
		{"bare verb without channel", AudioAction{Action: "play"}, "", "", false},
		{"stop_all", AudioAction{Action: "stop_all"}, "stop_all", "", true},
		{"stop_all rejects channel", AudioAction{Channel: "bgm", Action: "stop_all"}, "stop_all", "", false},
		{"unknown verb", AudioAction{Action: "pause_bgm"}, "", "", false},
		{"unknown channel", AudioAction{Action: "play_ambient"}, "", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			verb, ch, ok := tt.action.Resolve()
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.verb, verb)
				assert.Equal(t, tt.channel, ch)
			}
		})
	}
}

func TestAudioAction_CommandType(t *testing.T) {
	assert.Equal(t, "play_bgm", AudioAction{Action: "play_bgm"}.CommandType())
	assert.Equal(t, "stop_voice", AudioAction{Channel: "voice", Action: "stop"}.CommandType())
	assert.Equal(t, "stop_all", AudioAction{Action: "stop_all"}.CommandType())
	assert.Equal(t, "", AudioAction{Action: "explode"}.CommandType())
}
