package script

import "strings"

// Audio channels.
const (
	ChannelBGM   = "bgm"
	ChannelSFX   = "sfx"
	ChannelVoice = "voice"
)

// Audio verbs. ActionStopAll silences every channel and takes no channel.
const (
	VerbPlay      = "play"
	VerbStop      = "stop"
	ActionStopAll = "stop_all"
)

// ValidChannel reports whether ch names an audio channel.
func ValidChannel(ch string) bool {
	switch ch {
	case ChannelBGM, ChannelSFX, ChannelVoice:
		return true
	}
	return false
}

// Resolve splits the action into a verb and a channel.
//
// Qualified actions ("play_bgm", "stop_voice") carry their channel; an
// explicit Channel must then agree. Bare verbs ("play", "stop") take the
// channel from Channel. "stop_all" accepts no channel.
func (a AudioAction) Resolve() (verb, channel string, ok bool) {
	if a.Action == ActionStopAll {
		return ActionStopAll, "", a.Channel == ""
	}
	if v, ch, found := strings.Cut(a.Action, "_"); found {
		if (v != VerbPlay && v != VerbStop) || !ValidChannel(ch) {
			return "", "", false
		}
		if a.Channel != "" && a.Channel != ch {
			return "", "", false
		}
		return v, ch, true
	}
	if a.Action != VerbPlay && a.Action != VerbStop {
		return "", "", false
	}
	if !ValidChannel(a.Channel) {
		return "", "", false
	}
	return a.Action, a.Channel, true
}

// CommandType returns the normalized command name, e.g. "play_bgm".
// Returns "" when the action does not resolve.
func (a AudioAction) CommandType() string {
	verb, ch, ok := a.Resolve()
	if !ok {
		return ""
	}
	if verb == ActionStopAll {
		return ActionStopAll
	}
	return verb + "_" + ch
}
