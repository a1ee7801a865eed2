package engine

import "github.com/roach88/vnengine/internal/script"

// AudioCommandType names an audio or transition command.
type AudioCommandType string

const (
	AudioPlayBGM    AudioCommandType = "play_bgm"
	AudioStopBGM    AudioCommandType = "stop_bgm"
	AudioPlaySFX    AudioCommandType = "play_sfx"
	AudioStopSFX    AudioCommandType = "stop_sfx"
	AudioPlayVoice  AudioCommandType = "play_voice"
	AudioStopVoice  AudioCommandType = "stop_voice"
	AudioStopAll    AudioCommandType = "stop_all"
	AudioTransition AudioCommandType = "transition"
)

// AudioCommand is one queued side effect for the host's audio or
// presentation layer. FadeIn and FadeOut are in seconds.
type AudioCommand struct {
	Type       AudioCommandType `json:"type"`
	Channel    string           `json:"channel,omitempty"`
	Asset      *string          `json:"asset,omitempty"`
	Volume     *float64         `json:"volume,omitempty"`
	FadeIn     *float64         `json:"fade_in,omitempty"`
	FadeOut    *float64         `json:"fade_out,omitempty"`
	Loop       *bool            `json:"loop,omitempty"`
	Kind       string           `json:"kind,omitempty"`
	DurationMS *int64           `json:"duration_ms,omitempty"`
	Color      *string          `json:"color,omitempty"`
}

func (c AudioCommand) clone() AudioCommand {
	c.Asset = clonePtr(c.Asset)
	c.Volume = clonePtr(c.Volume)
	c.FadeIn = clonePtr(c.FadeIn)
	c.FadeOut = clonePtr(c.FadeOut)
	c.Loop = clonePtr(c.Loop)
	c.DurationMS = clonePtr(c.DurationMS)
	c.Color = clonePtr(c.Color)
	return c
}

func cloneCommands(cmds []AudioCommand) []AudioCommand {
	out := make([]AudioCommand, len(cmds))
	for i, c := range cmds {
		out[i] = c.clone()
	}
	return out
}

// commandForAction converts an audio_action event. ok is false when the
// action does not resolve to a channel.
func commandForAction(a script.AudioAction) (AudioCommand, bool) {
	typ := a.CommandType()
	if typ == "" {
		return AudioCommand{}, false
	}
	_, channel, _ := a.Resolve()
	return AudioCommand{
		Type:    AudioCommandType(typ),
		Channel: channel,
		Asset:   clonePtr(a.Asset),
		Volume:  clonePtr(a.Volume),
		FadeIn:  clonePtr(a.FadeIn),
		FadeOut: clonePtr(a.FadeOut),
		Loop:    clonePtr(a.Loop),
	}, true
}

func commandForTransition(t script.Transition) AudioCommand {
	return AudioCommand{
		Type:       AudioTransition,
		Kind:       t.Effect,
		DurationMS: ptr(t.DurationMS),
		Color:      clonePtr(t.Color),
	}
}

// musicCue returns the command implied by a music change, if any.
func musicCue(before, after *string) (AudioCommand, bool) {
	switch {
	case after != nil && !equalPtr(before, after):
		return AudioCommand{
			Type:    AudioPlayBGM,
			Channel: script.ChannelBGM,
			Asset:   clonePtr(after),
			Loop:    ptr(true),
		}, true
	case after == nil && before != nil:
		return AudioCommand{Type: AudioStopBGM, Channel: script.ChannelBGM}, true
	}
	return AudioCommand{}, false
}

// AudioController lets the host queue audio commands directly. Queued
// commands drain with the next successful Step, Choose, or Resume.
type AudioController struct {
	in *Interpreter
}

// PlayBGM queues background music.
func (a *AudioController) PlayBGM(asset string, loop bool, fadeIn float64) {
	a.queue(AudioCommand{
		Type:    AudioPlayBGM,
		Channel: script.ChannelBGM,
		Asset:   ptr(asset),
		Loop:    ptr(loop),
		FadeIn:  ptr(fadeIn),
	})
}

// StopBGM stops background music.
func (a *AudioController) StopBGM(fadeOut float64) {
	a.queue(AudioCommand{Type: AudioStopBGM, Channel: script.ChannelBGM, FadeOut: ptr(fadeOut)})
}

// StopAll silences every channel.
func (a *AudioController) StopAll(fadeOut float64) {
	a.queue(AudioCommand{Type: AudioStopAll, FadeOut: ptr(fadeOut)})
}

// PlaySFX queues a one-shot sound effect.
func (a *AudioController) PlaySFX(asset string) {
	a.queue(AudioCommand{Type: AudioPlaySFX, Channel: script.ChannelSFX, Asset: ptr(asset)})
}

// PlayVoice queues a voice line.
func (a *AudioController) PlayVoice(asset string) {
	a.queue(AudioCommand{Type: AudioPlayVoice, Channel: script.ChannelVoice, Asset: ptr(asset)})
}

func (a *AudioController) queue(cmd AudioCommand) {
	a.in.st.audio = append(a.in.st.audio, cmd)
	a.in.logger.Debug("audio queued by host", "type", cmd.Type)
}

// Audio returns the host audio controller.
func (in *Interpreter) Audio() *AudioController {
	return &AudioController{in: in}
}

// PendingAudio returns the commands that the next successful call will drain.
func (in *Interpreter) PendingAudio() []AudioCommand {
	return cloneCommands(in.st.audio)
}
