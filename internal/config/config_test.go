package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/vnengine/internal/compiler"
	"github.com/roach88/vnengine/internal/engine"
	"github.com/roach88/vnengine/internal/player"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "vnengine.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, engine.DefaultResourceConfig(), cfg.ResourceConfig())
	assert.Equal(t, compiler.DefaultLimits(), cfg.CompilerLimits())
	assert.Equal(t, engine.DefaultHistoryLimit, cfg.HistoryLimit)
	assert.Equal(t, player.DefaultMaxSteps, cfg.MaxSteps)
	assert.Equal(t, player.ExtCallResume, cfg.Policy())
	assert.Zero(t, cfg.PrefetchDepth)
	assert.Empty(t, cfg.Database)
	assert.NoError(t, validateConfig(cfg))
}

func TestLoadConfig_NoPath(t *testing.T) {
	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadConfig_File(t *testing.T) {
	cfg, err := LoadConfig("testdata/vnengine.yaml")
	require.NoError(t, err)

	assert.Equal(t, int64(268435456), cfg.Resources.MaxTextureMemory)
	assert.Equal(t, engine.DefaultMaxScriptBytes, cfg.Resources.MaxScriptBytes, "unset keys keep defaults")
	assert.Equal(t, 500, cfg.Limits.MaxEvents)
	assert.Equal(t, compiler.DefaultMaxTextLength, cfg.Limits.MaxTextLength)
	assert.True(t, cfg.Limits.AllowEmptySpeaker)
	assert.Equal(t, 8, cfg.PrefetchDepth)
	assert.Equal(t, 50, cfg.HistoryLimit)
	assert.Equal(t, player.ExtCallRecord, cfg.Policy())
	assert.Equal(t, "sessions.db", cfg.Database)
}

func TestLoadConfig_EnvOverridesFile(t *testing.T) {
	t.Setenv("VNENGINE_HISTORY_LIMIT", "7")
	t.Setenv("VNENGINE_RESOURCES_MAX_SCRIPT_BYTES", "2048")
	t.Setenv("VNENGINE_LIMITS_MAX_CHARACTERS", "4")
	t.Setenv("VNENGINE_EXT_CALL_POLICY", "resume")
	t.Setenv("VNENGINE_DATABASE", "/tmp/journal.db")

	cfg, err := LoadConfig("testdata/vnengine.yaml")
	require.NoError(t, err)

	assert.Equal(t, 7, cfg.HistoryLimit)
	assert.Equal(t, int64(2048), cfg.Resources.MaxScriptBytes)
	assert.Equal(t, 4, cfg.Limits.MaxCharacters)
	assert.Equal(t, 500, cfg.Limits.MaxEvents, "file value survives when env is unset")
	assert.Equal(t, player.ExtCallResume, cfg.Policy())
	assert.Equal(t, "/tmp/journal.db", cfg.Database)
}

func TestLoadConfig_EmptyFile(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, ""))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadConfig_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		env     map[string]string
		errMsg  string
	}{
		{
			name:    "unknown key",
			content: "prefetch: 3\n",
			errMsg:  "field prefetch not found",
		},
		{
			name:    "wrong type",
			content: "history_limit: lots\n",
			errMsg:  "parse config",
		},
		{
			name:    "negative value",
			content: "limits:\n  max_events: -1\n",
			errMsg:  "limits.max_events must be >= 0",
		},
		{
			name:    "bad policy",
			content: "ext_call_policy: ignore\n",
			errMsg:  `unknown ext_call policy "ignore"`,
		},
		{
			name:   "bad env value",
			env:    map[string]string{"VNENGINE_MAX_STEPS": "many"},
			errMsg: "parse env",
		},
		{
			name:   "negative env value",
			env:    map[string]string{"VNENGINE_PREFETCH_DEPTH": "-2"},
			errMsg: "prefetch_depth must be >= 0",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := LoadConfig(writeConfig(t, tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read config")
}

func TestValidateConfig_JoinsErrors(t *testing.T) {
	cfg := Default()
	cfg.MaxSteps = -1
	cfg.HistoryLimit = -1

	err := validateConfig(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max_steps must be >= 0")
	assert.Contains(t, err.Error(), "history_limit must be >= 0")
}

func TestEngineOptions(t *testing.T) {
	cfg := Default()
	cfg.PrefetchDepth = 3
	cfg.Resources.MaxScriptBytes = 10

	s, err := compiler.ParseJSON([]byte(`{"script_schema_version":"1.0","labels":{"start":0},"events":[{"type":"dialogue","speaker":"Ava","text":"A long enough line."}]}`))
	require.NoError(t, err)

	_, err = engine.New(s, cfg.EngineOptions()...)
	require.Error(t, err)
	assert.True(t, engine.IsResourceLimitExceeded(err))

	cfg.Resources.MaxScriptBytes = 0
	in, err := engine.New(s, cfg.EngineOptions()...)
	require.NoError(t, err)
	assert.Equal(t, 3, in.PrefetchDepth())
}

func TestPlayerOptions(t *testing.T) {
	cfg := Default()
	cfg.MaxSteps = 2

	s, err := compiler.ParseJSON([]byte(`{"script_schema_version":"1.0","labels":{"start":0},"events":[` +
		`{"type":"set_flag","key":"a","value":true},` +
		`{"type":"set_flag","key":"b","value":true},` +
		`{"type":"set_flag","key":"c","value":true}]}`))
	require.NoError(t, err)

	_, err = player.New(cfg.PlayerOptions()...).Run(t.Context(), s, nil)
	require.Error(t, err)
	assert.True(t, player.IsStepsExceededError(err))
}
