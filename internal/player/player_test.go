package player

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/vnengine/internal/engine"
	"github.com/roach88/vnengine/internal/script"
	"github.com/roach88/vnengine/internal/testutil"
)

func storyScript() *script.Script {
	return testutil.ScriptWithLabels(map[string]int{"start": 0, "left": 4, "right": 6},
		script.Scene{Background: testutil.Str("hall"), Music: testutil.Str("theme")},
		script.Dialogue{Speaker: "Ava", Text: "Which way?"},
		script.ExtCall{Command: "autosave", Args: []string{"hall"}},
		script.Choice{Prompt: "Go", Options: []script.ChoiceOption{
			{Text: "Left", Target: "left"},
			{Text: "Right", Target: "right"},
		}},
		script.SetFlag{Key: "went_left", Value: true},
		script.Jump{Target: "right"},
		script.Dialogue{Speaker: "Ava", Text: "Here we are."},
	)
}

func ops(tr *Transcript) []string {
	out := make([]string, len(tr.Calls))
	for i, c := range tr.Calls {
		out[i] = c.Op
	}
	return out
}

func TestPlayer_RunToCompletion(t *testing.T) {
	p := New(WithSessionIDGenerator(NewFixedGenerator("s-1")))

	tr, err := p.Run(context.Background(), storyScript(), []int{0})
	require.NoError(t, err)

	assert.Equal(t, "s-1", tr.SessionID)
	assert.Equal(t, script.MustScriptID(storyScript()), tr.ScriptID)
	assert.Equal(t, script.EngineVersion, tr.EngineVersion)
	assert.Equal(t, ExtCallResume, tr.Policy)
	assert.Equal(t, []string{"step", "step", "step", "resume", "step", "choose", "step", "step", "step"}, ops(tr))
	assert.Equal(t, []script.Kind{
		script.KindScene,
		script.KindDialogue,
		script.KindExtCall,
		script.KindExtCall,
		script.KindChoice,
		script.KindChoice,
		script.KindSetFlag,
		script.KindJump,
		script.KindDialogue,
	}, tr.EventKinds())

	for i, c := range tr.Calls {
		assert.Equal(t, int64(i+1), c.Seq)
		assert.Len(t, c.DigestHash, 64)
	}
	assert.Equal(t, "Ava: Which way?", tr.Calls[1].View)
	assert.Equal(t, []ExtCallEntry{{Seq: 3, Command: "autosave", Args: []string{"hall"}}}, tr.ExtCalls)
	assert.Equal(t, engine.StatusExhausted, tr.Final.Status)
	assert.Equal(t, []engine.FlagValue{{Key: "went_left", Value: true}}, tr.Final.Flags)
}

func TestPlayer_RecordPolicyRunsInline(t *testing.T) {
	p := New(WithExtCallPolicy(ExtCallRecord))

	tr, err := p.Run(context.Background(), storyScript(), []int{1})
	require.NoError(t, err)

	assert.NotContains(t, ops(tr), OpResume)
	assert.Equal(t, []ExtCallEntry{{Seq: 3, Command: "autosave", Args: []string{"hall"}}}, tr.ExtCalls)
	assert.Equal(t, engine.StatusRunning, tr.Calls[2].Status)
	assert.Empty(t, tr.Final.Flags)
}

func TestPlayer_PlanExhausted(t *testing.T) {
	p := New()

	tr, err := p.Run(context.Background(), storyScript(), nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrPlanExhausted))
	require.NotNil(t, tr)
	assert.Len(t, tr.Calls, 5)
	assert.Equal(t, engine.StatusAwaitingChoice, tr.Final.Status)
	assert.Equal(t, 3, tr.Final.Position)
}

func TestPlayer_InvalidChoice(t *testing.T) {
	tr, err := New().Run(context.Background(), storyScript(), []int{7})
	require.Error(t, err)
	assert.True(t, engine.IsIndexOutOfRange(err))
	assert.Len(t, tr.Calls, 5)
}

func TestPlayer_QuotaStopsRunawayLoop(t *testing.T) {
	loop := testutil.Script(
		script.Dialogue{Speaker: "Ava", Text: "Again"},
		script.Jump{Target: "start"},
	)

	tr, err := New(WithMaxSteps(25)).Run(context.Background(), loop, nil)
	require.Error(t, err)
	assert.True(t, IsStepsExceededError(err))
	assert.Len(t, tr.Calls, 25)
}

func TestPlayer_ContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	tr, err := New().Run(ctx, storyScript(), []int{0})
	require.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, tr.Calls)
}

func TestPlayer_InvalidScript(t *testing.T) {
	_, err := New().Run(context.Background(), testutil.Script(script.Jump{Target: "nowhere"}), nil)
	require.Error(t, err)
}

func TestPlayer_ReplayReproducesTranscript(t *testing.T) {
	p := New()
	original, err := p.Run(context.Background(), storyScript(), []int{0})
	require.NoError(t, err)

	replayed, err := p.Replay(context.Background(), storyScript(), original.Inputs())
	require.NoError(t, err)

	require.Len(t, replayed.Calls, len(original.Calls))
	for i := range original.Calls {
		assert.Equal(t, original.Calls[i].DigestHash, replayed.Calls[i].DigestHash, "call %d", i)
		assert.Equal(t, original.Calls[i].Result, replayed.Calls[i].Result, "call %d", i)
	}
	assert.Equal(t, original.Final, replayed.Final)
	assert.NotEqual(t, original.SessionID, replayed.SessionID)
}

func TestPlayer_ReplayRejectsInvalidOps(t *testing.T) {
	p := New()

	_, err := p.Replay(context.Background(), storyScript(), []Input{{Op: "jump"}})
	assert.ErrorContains(t, err, `unknown op "jump"`)

	_, err = p.Replay(context.Background(), storyScript(), []Input{{Op: OpChoose}})
	assert.ErrorContains(t, err, "choose requires an option index")

	_, err = p.Replay(context.Background(), storyScript(), []Input{{Op: OpResume}})
	assert.True(t, engine.IsStateError(err))
}

func TestPlayer_SharedClockAndObserver(t *testing.T) {
	clock := testutil.NewDeterministicClock()
	var seen []int64
	p := New(WithClock(clock), WithObserver(func(c Call) { seen = append(seen, c.Seq) }))

	s := testutil.Script(script.Dialogue{Speaker: "A", Text: "one"})
	_, err := p.Run(context.Background(), s, nil)
	require.NoError(t, err)
	_, err = p.Run(context.Background(), s, nil)
	require.NoError(t, err)

	assert.Equal(t, []int64{1, 2}, seen)

	clock.Reset()
	tr, err := p.Run(context.Background(), s, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(1), tr.Calls[0].Seq)
}

func TestPlayer_PrefetchAndAudio(t *testing.T) {
	s := testutil.Script(
		script.Dialogue{Speaker: "A", Text: "soon"},
		script.Scene{Background: testutil.Str("beach"), Music: testutil.Str("waves")},
	)
	p := New(WithEngineOptions(engine.WithPrefetchDepth(4)))

	tr, err := p.Run(context.Background(), s, nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"beach", "waves"}, tr.Calls[0].Prefetch)
	assert.Nil(t, tr.Calls[1].Prefetch)
	require.Len(t, tr.Calls[1].Result.Audio, 1)
	assert.Equal(t, engine.AudioPlayBGM, tr.Calls[1].Result.Audio[0].Type)
	assert.Equal(t, "Background: beach | Music: waves", tr.Calls[1].View)
}

func TestParseExtCallPolicy(t *testing.T) {
	p, err := ParseExtCallPolicy("record")
	require.NoError(t, err)
	assert.Equal(t, ExtCallRecord, p)

	_, err = ParseExtCallPolicy("ignore")
	assert.Error(t, err)
}
