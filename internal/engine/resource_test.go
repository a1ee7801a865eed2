package engine

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/vnengine/internal/script"
	"github.com/roach88/vnengine/internal/testutil"
)

func TestBudgetPolicy_CheckScript(t *testing.T) {
	p := NewBudgetPolicy(ResourceConfig{MaxScriptBytes: 100}, nil)

	assert.NoError(t, p.CheckScript(100))
	err := p.CheckScript(101)
	require.Error(t, err)
	assert.True(t, IsResourceLimitExceeded(err))

	unlimited := NewBudgetPolicy(ResourceConfig{}, nil)
	assert.NoError(t, unlimited.CheckScript(1<<40))
}

func TestBudgetPolicy_TrackTexturesCountsKeysOnce(t *testing.T) {
	p := NewBudgetPolicy(ResourceConfig{MaxTextureMemory: 250}, FixedTextureEstimator(100))

	assert.False(t, p.TrackTextures([]string{"room", "Ava/smile"}))
	assert.False(t, p.TrackTextures([]string{"room", "Ava/smile", ""}))
	assert.Equal(t, int64(200), p.Usage().CurrentTextureBytes)

	assert.True(t, p.TrackTextures([]string{"Ben"}), "crossing the budget reports once")
	assert.False(t, p.TrackTextures([]string{"Cam"}))
	assert.Equal(t, int64(400), p.Usage().CurrentTextureBytes)
	assert.Equal(t, []string{"Ava/smile", "Ben", "Cam", "room"}, p.Keys())
}

func TestBudgetPolicy_DefaultEstimate(t *testing.T) {
	p := NewBudgetPolicy(DefaultResourceConfig(), nil)
	p.TrackTextures([]string{"room"})
	assert.Equal(t, DefaultTextureBytes, p.Usage().CurrentTextureBytes)
}

func TestTextureEstimatorFunc(t *testing.T) {
	est := TextureEstimatorFunc(func(key string) int64 {
		if strings.Contains(key, "/") {
			return 10
		}
		return 1000
	})
	p := NewBudgetPolicy(ResourceConfig{}, est)
	p.TrackTextures([]string{"room", "Ava/smile"})
	assert.Equal(t, int64(1010), p.Usage().CurrentTextureBytes)
}

func TestNew_ScriptOverBudget(t *testing.T) {
	_, err := New(testutil.Script(script.Dialogue{Speaker: "Ava", Text: strings.Repeat("x", 200)}),
		WithResourceConfig(ResourceConfig{MaxScriptBytes: 100}))
	require.Error(t, err)
	assert.True(t, IsResourceLimitExceeded(err))
}

func TestLoad_ChecksRawSizeFirst(t *testing.T) {
	data := []byte(`{"script_schema_version":"1.0","events":[],"labels":{}}` + strings.Repeat(" ", 200))

	_, err := Load(data, WithResourceConfig(ResourceConfig{MaxScriptBytes: 100}))
	require.Error(t, err)
	assert.True(t, IsResourceLimitExceeded(err))

	var e *Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, "100", e.Details["max_script_bytes"])
}

func TestLoad_BudgetCountsSuppliedBytes(t *testing.T) {
	text := strings.Repeat("<&>", 100)
	data := []byte(`{"script_schema_version":"1.0","labels":{"start":0},"events":[{"type":"dialogue","speaker":"Ava","text":"` + text + `"}]}`)

	in, err := Load(data, WithResourceConfig(ResourceConfig{MaxScriptBytes: int64(len(data))}))
	require.NoError(t, err)
	assert.Equal(t, text, in.Script().Events[0].(script.Dialogue).Text)

	_, err = Load(data, WithResourceConfig(ResourceConfig{MaxScriptBytes: int64(len(data) - 1)}))
	assert.True(t, IsResourceLimitExceeded(err))
}

func TestNew_BudgetUsesCanonicalSize(t *testing.T) {
	s := testutil.Script(script.Dialogue{Speaker: "Ava", Text: strings.Repeat("<&>", 100)})
	canonical, err := script.CanonicalOf(s)
	require.NoError(t, err)

	_, err = New(s, WithResourceConfig(ResourceConfig{MaxScriptBytes: int64(len(canonical))}))
	require.NoError(t, err)

	_, err = New(s, WithResourceConfig(ResourceConfig{MaxScriptBytes: int64(len(canonical) - 1)}))
	assert.True(t, IsResourceLimitExceeded(err))
}

func TestInterpreter_TracksTexturesAfterVisualChange(t *testing.T) {
	in := mustNew(t, testutil.Script(
		script.Scene{
			Background: testutil.Str("room"),
			Characters: []script.CharacterPlacement{{Name: "Ava", Expression: testutil.Str("smile")}},
		},
		script.Dialogue{Speaker: "Ava", Text: "Hi"},
		script.Patch{Update: []script.CharacterPatch{{Name: "Ava", Expression: testutil.Str("sad")}}},
	),
		WithTextureEstimator(FixedTextureEstimator(100)),
		WithResourceConfig(ResourceConfig{MaxTextureMemory: 250, MaxScriptBytes: DefaultMaxScriptBytes}),
	)

	assert.Zero(t, in.MemoryUsage().CurrentTextureBytes)
	play(t, in)

	usage := in.MemoryUsage()
	assert.Equal(t, int64(300), usage.CurrentTextureBytes)
	assert.Equal(t, int64(250), usage.MaxTextureMemory)
}

func TestInterpreter_SetResourceConfigKeepsAccounting(t *testing.T) {
	in := mustNew(t, testutil.Script(script.Scene{Background: testutil.Str("room")}),
		WithTextureEstimator(FixedTextureEstimator(64)))
	play(t, in)

	in.SetResourceConfig(ResourceConfig{MaxTextureMemory: 32})

	usage := in.MemoryUsage()
	assert.Equal(t, int64(64), usage.CurrentTextureBytes)
	assert.Equal(t, int64(32), usage.MaxTextureMemory)
	assert.Zero(t, usage.MaxScriptBytes)
}

type countingPolicy struct {
	calls int
	keys  []string
}

func (p *countingPolicy) CheckScript(int64) error { return nil }

func (p *countingPolicy) TrackTextures(keys []string) bool {
	p.calls++
	p.keys = keys
	return false
}

func (p *countingPolicy) Usage() MemoryUsage { return MemoryUsage{} }

func TestInterpreter_CustomPolicy(t *testing.T) {
	policy := &countingPolicy{}
	in := mustNew(t, testutil.Script(
		script.Dialogue{Speaker: "Ava", Text: "Hi"},
		script.SetCharacterPosition{Name: "Ava", X: 0, Y: 0},
	), WithResourcePolicy(policy))
	play(t, in)

	assert.Equal(t, 1, policy.calls)
	assert.Equal(t, []string{"Ava"}, policy.keys)

	// Replacing a custom policy restarts accounting from the current state.
	in.SetResourceConfig(ResourceConfig{MaxTextureMemory: 1})
	assert.Equal(t, DefaultTextureBytes, in.MemoryUsage().CurrentTextureBytes)
}

func TestMemoryUsage_JSON(t *testing.T) {
	data, err := json.Marshal(MemoryUsage{CurrentTextureBytes: 1, MaxTextureMemory: 2, MaxScriptBytes: 3})
	require.NoError(t, err)
	assert.JSONEq(t, `{"current_texture_bytes":1,"max_texture_memory":2,"max_script_bytes":3}`, string(data))
}
