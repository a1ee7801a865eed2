package engine

import (
	"slices"

	"github.com/roach88/vnengine/internal/script"
)

// DefaultHistoryLimit bounds the dialogue history ring.
const DefaultHistoryLimit = 200

// DialogueLine is one dialogue event the interpreter has stepped through.
type DialogueLine struct {
	Index   int    `json:"index"`
	Speaker string `json:"speaker"`
	Text    string `json:"text"`
}

// ChoiceRecord is one committed choice.
type ChoiceRecord struct {
	EventIndex  int    `json:"event_index"`
	OptionIndex int    `json:"option_index"`
	OptionText  string `json:"option_text"`
	TargetIndex int    `json:"target_index"`
}

// WithHistoryLimit bounds the dialogue history. Values <= 0 keep the default.
func WithHistoryLimit(n int) Option {
	return func(in *Interpreter) {
		if n > 0 {
			in.historyLimit = n
		}
	}
}

// recordDialogue appends a line, dropping the oldest beyond limit.
func (s *state) recordDialogue(line DialogueLine, limit int) {
	s.dialogue = append(s.dialogue, line)
	if over := len(s.dialogue) - limit; over > 0 {
		s.dialogue = slices.Delete(s.dialogue, 0, over)
	}
}

// DialogueHistory returns the most recent dialogue lines, oldest first.
func (in *Interpreter) DialogueHistory() []DialogueLine {
	return slices.Clone(in.st.dialogue)
}

// ChoiceHistory returns every committed choice in order.
func (in *Interpreter) ChoiceHistory() []ChoiceRecord {
	return slices.Clone(in.st.choices)
}

// IsCurrentDialogueRead reports whether the dialogue at the cursor was
// stepped through before. The current visit is not counted until Step.
func (in *Interpreter) IsCurrentDialogueRead() bool {
	if in.st.status == StatusExhausted {
		return false
	}
	if _, ok := in.script.Events[in.st.cursor].(script.Dialogue); !ok {
		return false
	}
	return in.st.isRead(in.st.cursor)
}

// IsDialogueRead reports whether the event at idx was read as dialogue.
func (in *Interpreter) IsDialogueRead(idx int) bool {
	return in.st.isRead(idx)
}
