package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/roach88/vnengine/internal/player"
	"github.com/roach88/vnengine/internal/script"
	"github.com/roach88/vnengine/internal/testutil"
)

// createTestStore creates a new store in a temp directory for testing.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// sampleScript branches once and passes an ext_call.
func sampleScript() *script.Script {
	return testutil.ScriptWithLabels(map[string]int{"start": 0, "stay": 3, "leave": 4},
		script.Scene{Background: testutil.Str("porch"), Music: testutil.Str("crickets")},
		script.ExtCall{Command: "autosave", Args: []string{"porch"}},
		script.Choice{Prompt: "Stay?", Options: []script.ChoiceOption{
			{Text: "Stay", Target: "stay"},
			{Text: "Leave", Target: "leave"},
		}},
		script.Dialogue{Speaker: "Ava", Text: "Good."},
		script.SetFlag{Key: "left", Value: true},
	)
}

// recordSample plays sampleScript with the given plan and journals it.
func recordSample(t *testing.T, s *Store, sessionID string, plan ...int) (*player.Transcript, Session) {
	t.Helper()
	p := player.New(player.WithSessionIDGenerator(player.NewFixedGenerator(sessionID)))
	tr, err := p.Run(context.Background(), sampleScript(), plan)
	if err != nil {
		t.Fatalf("Run() failed: %v", err)
	}
	sess, err := s.RecordTranscript(context.Background(), sampleScript(), tr)
	if err != nil {
		t.Fatalf("RecordTranscript() failed: %v", err)
	}
	return tr, sess
}
