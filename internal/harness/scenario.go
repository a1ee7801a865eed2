package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/roach88/vnengine/internal/engine"
	"github.com/roach88/vnengine/internal/script"
)

// Scenario defines a conformance test scenario.
// A scenario drives one script through a fixed list of interpreter calls
// and asserts on the resulting trace and final state.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Script is the path of the script file (.json, .yaml, .yml, or .cue).
	// Relative paths are resolved against the scenario file location.
	Script string `yaml:"script,omitempty"`

	// Inline is a YAML script embedded in the scenario. Exactly one of
	// Script and Inline must be set.
	Inline string `yaml:"inline,omitempty"`

	// Handler is empty (ext_calls suspend) or "record" (a handler is
	// registered and each ext_call is recorded without suspending).
	Handler string `yaml:"handler,omitempty"`

	// SessionID is an optional fixed session ID for the trace snapshot.
	// If empty, defaults to "test-session-default".
	SessionID string `yaml:"session_id,omitempty"`

	// Steps are the interpreter calls, in order.
	Steps []Step `yaml:"steps"`

	// Assertions validate the final trace and state.
	Assertions []Assertion `yaml:"assertions"`
}

// Step operations.
const (
	StepStep            = "step"
	StepChoose          = "choose"
	StepResume          = "resume"
	StepStepUntilChoice = "step_until_choice"
)

// HandlerRecord registers a recording ext_call handler.
const HandlerRecord = "record"

// Step is one scenario instruction, written as a bare string in YAML:
// "step", "choose 1", "resume", or "step_until_choice".
type Step struct {
	Op     string
	Option int
}

// String formats the step the way it is written.
func (s Step) String() string {
	if s.Op == StepChoose {
		return fmt.Sprintf("%s %d", s.Op, s.Option)
	}
	return s.Op
}

// UnmarshalYAML parses the string form of a step.
func (s *Step) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: step must be a string such as \"step\" or \"choose 0\"", node.Line)
	}
	step, err := ParseStep(node.Value)
	if err != nil {
		return fmt.Errorf("line %d: %w", node.Line, err)
	}
	*s = step
	return nil
}

// ParseStep parses "step", "choose N", "resume", or "step_until_choice".
func ParseStep(text string) (Step, error) {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return Step{}, fmt.Errorf("empty step")
	}
	switch fields[0] {
	case StepStep, StepResume, StepStepUntilChoice:
		if len(fields) != 1 {
			return Step{}, fmt.Errorf("step %q takes no argument", fields[0])
		}
		return Step{Op: fields[0]}, nil
	case StepChoose:
		if len(fields) != 2 {
			return Step{}, fmt.Errorf("choose requires exactly one option index")
		}
		n, err := strconv.Atoi(fields[1])
		if err != nil {
			return Step{}, fmt.Errorf("choose option %q is not an integer", fields[1])
		}
		return Step{Op: StepChoose, Option: n}, nil
	default:
		return Step{}, fmt.Errorf("unknown step %q", fields[0])
	}
}

// Assertion validates trace or final state.
type Assertion struct {
	// Type specifies the assertion type:
	// - "event_sequence": event types of the committed calls, in order
	// - "final_visual": subset match on the final visual state
	// - "final_flags": each listed flag has the given value
	// - "final_vars": each listed variable has the given value
	// - "audio_contains": some drained command matches
	// - "status": the final status
	// - "choice_history": option indices of the committed choices
	// - "error_on_step": the given step failed with the given code
	Type string `yaml:"type"`

	// Events is the expected event type sequence (event_sequence).
	Events []string `yaml:"events,omitempty"`

	// Visual is the expected visual subset (final_visual).
	Visual *VisualExpect `yaml:"visual,omitempty"`

	// Flags are expected flag values (final_flags).
	Flags map[string]bool `yaml:"flags,omitempty"`

	// Vars are expected variable values (final_vars).
	Vars map[string]int64 `yaml:"vars,omitempty"`

	// Audio is the command to look for (audio_contains).
	Audio *AudioExpect `yaml:"audio,omitempty"`

	// Status is the expected final status name (status).
	Status string `yaml:"status,omitempty"`

	// Choices are the expected option indices (choice_history).
	Choices []int `yaml:"choices,omitempty"`

	// Step is the zero-based index into Steps (error_on_step).
	Step *int `yaml:"step,omitempty"`

	// Code is the expected engine error code (error_on_step), e.g.
	// "ENGINE_SUSPENDED" or "INDEX_OUT_OF_RANGE".
	Code string `yaml:"code,omitempty"`
}

// VisualExpect is a subset of a visual state. Nil fields are not checked;
// an empty string expects the value to be unset.
type VisualExpect struct {
	Background *string           `yaml:"background,omitempty"`
	Music      *string           `yaml:"music,omitempty"`
	Characters []CharacterExpect `yaml:"characters,omitempty"`
}

// CharacterExpect is a subset of one placed character.
type CharacterExpect struct {
	Name       string   `yaml:"name"`
	Expression *string  `yaml:"expression,omitempty"`
	Position   *string  `yaml:"position,omitempty"`
	X          *float64 `yaml:"x,omitempty"`
	Y          *float64 `yaml:"y,omitempty"`
	Scale      *float64 `yaml:"scale,omitempty"`
}

// AudioExpect matches a drained audio command. Empty fields are not checked.
type AudioExpect struct {
	Type    string `yaml:"type"`
	Asset   string `yaml:"asset,omitempty"`
	Channel string `yaml:"channel,omitempty"`
}

// Assertion type constants.
const (
	AssertEventSequence = "event_sequence"
	AssertFinalVisual   = "final_visual"
	AssertFinalFlags    = "final_flags"
	AssertFinalVars     = "final_vars"
	AssertAudioContains = "audio_contains"
	AssertStatus        = "status"
	AssertChoiceHistory = "choice_history"
	AssertErrorOnStep   = "error_on_step"
)

var errorCodes = map[string]bool{
	string(engine.ErrCodeState):           true,
	string(engine.ErrCodeEngineSuspended): true,
	string(engine.ErrCodeScriptExhausted): true,
	string(engine.ErrCodeIndexOutOfRange): true,
	string(engine.ErrCodeResourceLimit):   true,
}

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
// A relative script path is resolved against the scenario's directory.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	scenario, err := ParseScenario(data)
	if err != nil {
		return nil, err
	}

	if scenario.Script != "" && !filepath.IsAbs(scenario.Script) {
		scenario.Script = filepath.Join(filepath.Dir(path), scenario.Script)
	}
	if scenario.Script != "" {
		if _, err := os.Stat(scenario.Script); os.IsNotExist(err) {
			return nil, fmt.Errorf("invalid scenario: script file not found: %s", scenario.Script)
		}
	}
	return scenario, nil
}

// ParseScenario parses scenario YAML without touching the filesystem.
func ParseScenario(data []byte) (*Scenario, error) {
	// Strict field validation catches typos like "assertion:" vs "assertions:"
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	switch {
	case s.Script == "" && s.Inline == "":
		return fmt.Errorf("one of script or inline is required")
	case s.Script != "" && s.Inline != "":
		return fmt.Errorf("script and inline are mutually exclusive")
	}

	if s.Handler != "" && s.Handler != HandlerRecord {
		return fmt.Errorf("unknown handler %q (expected %q or empty)", s.Handler, HandlerRecord)
	}

	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion, len(s.Steps)); err != nil {
			return err
		}
	}

	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion, steps int) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertEventSequence:
		if len(a.Events) == 0 {
			return fmt.Errorf("assertions[%d]: events list is required for event_sequence", index)
		}
		for _, kind := range a.Events {
			if !slices.Contains(script.Kinds, script.Kind(kind)) {
				return fmt.Errorf("assertions[%d]: unknown event type %q", index, kind)
			}
		}
	case AssertFinalVisual:
		if a.Visual == nil {
			return fmt.Errorf("assertions[%d]: visual is required for final_visual", index)
		}
		for j, c := range a.Visual.Characters {
			if c.Name == "" {
				return fmt.Errorf("assertions[%d]: visual.characters[%d]: name is required", index, j)
			}
		}
	case AssertFinalFlags:
		if len(a.Flags) == 0 {
			return fmt.Errorf("assertions[%d]: flags is required for final_flags", index)
		}
	case AssertFinalVars:
		if len(a.Vars) == 0 {
			return fmt.Errorf("assertions[%d]: vars is required for final_vars", index)
		}
	case AssertAudioContains:
		if a.Audio == nil || a.Audio.Type == "" {
			return fmt.Errorf("assertions[%d]: audio.type is required for audio_contains", index)
		}
	case AssertStatus:
		if _, err := engine.ParseStatus(a.Status); err != nil {
			return fmt.Errorf("assertions[%d]: %w", index, err)
		}
	case AssertChoiceHistory:
		if a.Choices == nil {
			return fmt.Errorf("assertions[%d]: choices is required for choice_history (use [] for none)", index)
		}
	case AssertErrorOnStep:
		if a.Step == nil {
			return fmt.Errorf("assertions[%d]: step is required for error_on_step", index)
		}
		if *a.Step < 0 || *a.Step >= steps {
			return fmt.Errorf("assertions[%d]: step %d out of range [0, %d)", index, *a.Step, steps)
		}
		if !errorCodes[a.Code] {
			return fmt.Errorf("assertions[%d]: unknown error code %q for error_on_step", index, a.Code)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}
