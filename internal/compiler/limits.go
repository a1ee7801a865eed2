package compiler

// Limits bounds the structural size of a script. A zero or negative value
// disables that limit.
type Limits struct {
	MaxEvents      int
	MaxTextLength  int // bytes, applies to speaker, text, prompt, option text, command, args
	MaxLabelLength int // label names, targets, flag and var keys
	MaxAssetLength int // backgrounds, music, expressions, audio assets
	MaxCharacters  int // per Scene roster or Patch add list

	// AllowEmptySpeaker permits narration lines with speaker "".
	AllowEmptySpeaker bool
}

// Default limit values.
const (
	DefaultMaxEvents      = 10000
	DefaultMaxTextLength  = 4096
	DefaultMaxLabelLength = 64
	DefaultMaxAssetLength = 128
	DefaultMaxCharacters  = 32
)

// DefaultLimits returns the limits applied when none are configured.
func DefaultLimits() Limits {
	return Limits{
		MaxEvents:      DefaultMaxEvents,
		MaxTextLength:  DefaultMaxTextLength,
		MaxLabelLength: DefaultMaxLabelLength,
		MaxAssetLength: DefaultMaxAssetLength,
		MaxCharacters:  DefaultMaxCharacters,
	}
}

func exceeds(n, limit int) bool {
	return limit > 0 && n > limit
}

// Option configures ParseJSON, ParseYAML, and the CUE entry points.
type Option func(*options)

type options struct {
	limits Limits
}

func defaultOptions() options {
	return options{limits: DefaultLimits()}
}

// WithLimits replaces the default structural limits.
func WithLimits(l Limits) Option {
	return func(o *options) {
		o.limits = l
	}
}

func applyOptions(opts []Option) options {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
