package engine

import (
	"maps"
	"slices"
)

// Resource defaults.
const (
	DefaultMaxTextureMemory int64 = 512 * 1024 * 1024
	DefaultMaxScriptBytes   int64 = 512 * 1024

	// DefaultTextureBytes sizes one 1920x1080 RGBA texture.
	DefaultTextureBytes int64 = 1920 * 1080 * 4
)

// ResourceConfig sets the advisory budgets. A zero or negative value
// disables that budget.
type ResourceConfig struct {
	MaxTextureMemory int64 `json:"max_texture_memory"`
	MaxScriptBytes   int64 `json:"max_script_bytes"`
}

// DefaultResourceConfig returns the default budgets.
func DefaultResourceConfig() ResourceConfig {
	return ResourceConfig{
		MaxTextureMemory: DefaultMaxTextureMemory,
		MaxScriptBytes:   DefaultMaxScriptBytes,
	}
}

// MemoryUsage reports the texture estimate against the budgets.
type MemoryUsage struct {
	CurrentTextureBytes int64 `json:"current_texture_bytes"`
	MaxTextureMemory    int64 `json:"max_texture_memory"`
	MaxScriptBytes      int64 `json:"max_script_bytes"`
}

// ResourcePolicy governs script size and tracks texture usage.
//
// CheckScript runs at construction and may refuse the script.
// TrackTextures runs after each committed visual change with the texture
// keys the new state references; it returns true when that call pushed the
// estimate over budget. Policies are advisory and never evict.
type ResourcePolicy interface {
	CheckScript(size int64) error
	TrackTextures(keys []string) bool
	Usage() MemoryUsage
}

// TextureEstimator sizes a texture by its key.
type TextureEstimator interface {
	EstimateTextureBytes(key string) int64
}

// FixedTextureEstimator sizes every texture the same.
type FixedTextureEstimator int64

// EstimateTextureBytes implements TextureEstimator.
func (f FixedTextureEstimator) EstimateTextureBytes(string) int64 {
	return int64(f)
}

// TextureEstimatorFunc adapts a function to TextureEstimator.
type TextureEstimatorFunc func(key string) int64

// EstimateTextureBytes implements TextureEstimator.
func (f TextureEstimatorFunc) EstimateTextureBytes(key string) int64 {
	return f(key)
}

// BudgetPolicy is the default ResourcePolicy. It counts each distinct
// texture key once.
type BudgetPolicy struct {
	config    ResourceConfig
	estimator TextureEstimator
	seen      map[string]int64
	current   int64
}

// NewBudgetPolicy creates a policy. A nil estimator uses DefaultTextureBytes.
func NewBudgetPolicy(cfg ResourceConfig, est TextureEstimator) *BudgetPolicy {
	if est == nil {
		est = FixedTextureEstimator(DefaultTextureBytes)
	}
	return &BudgetPolicy{
		config:    cfg,
		estimator: est,
		seen:      make(map[string]int64),
	}
}

// CheckScript implements ResourcePolicy.
func (p *BudgetPolicy) CheckScript(size int64) error {
	if p.config.MaxScriptBytes > 0 && size > p.config.MaxScriptBytes {
		return newResourceError(size, p.config.MaxScriptBytes)
	}
	return nil
}

// TrackTextures implements ResourcePolicy.
func (p *BudgetPolicy) TrackTextures(keys []string) bool {
	before := p.current
	for _, key := range keys {
		if key == "" {
			continue
		}
		if _, ok := p.seen[key]; ok {
			continue
		}
		size := p.estimator.EstimateTextureBytes(key)
		p.seen[key] = size
		p.current += size
	}
	limit := p.config.MaxTextureMemory
	return limit > 0 && before <= limit && p.current > limit
}

// Usage implements ResourcePolicy.
func (p *BudgetPolicy) Usage() MemoryUsage {
	return MemoryUsage{
		CurrentTextureBytes: p.current,
		MaxTextureMemory:    p.config.MaxTextureMemory,
		MaxScriptBytes:      p.config.MaxScriptBytes,
	}
}

// Keys returns the tracked texture keys in sorted order.
func (p *BudgetPolicy) Keys() []string {
	return slices.Sorted(maps.Keys(p.seen))
}

// withConfig returns a policy with new budgets and the same tracked keys.
func (p *BudgetPolicy) withConfig(cfg ResourceConfig) *BudgetPolicy {
	return &BudgetPolicy{
		config:    cfg,
		estimator: p.estimator,
		seen:      maps.Clone(p.seen),
		current:   p.current,
	}
}

// WithResourceConfig sets the budgets of the default BudgetPolicy.
func WithResourceConfig(cfg ResourceConfig) Option {
	return func(in *Interpreter) {
		in.resources = cfg
	}
}

// WithTextureEstimator sets how the default BudgetPolicy sizes textures.
func WithTextureEstimator(est TextureEstimator) Option {
	return func(in *Interpreter) {
		in.estimator = est
	}
}

// WithResourcePolicy replaces the default BudgetPolicy entirely.
func WithResourcePolicy(p ResourcePolicy) Option {
	return func(in *Interpreter) {
		in.policy = p
	}
}

// MemoryUsage reports the current texture estimate and budgets.
func (in *Interpreter) MemoryUsage() MemoryUsage {
	return in.policy.Usage()
}

// SetResourceConfig swaps in a fresh BudgetPolicy with new budgets. Keys
// tracked by a previous BudgetPolicy carry over. A custom policy is replaced
// and accounting restarts from the current visual state.
func (in *Interpreter) SetResourceConfig(cfg ResourceConfig) {
	in.resources = cfg
	if bp, ok := in.policy.(*BudgetPolicy); ok {
		in.policy = bp.withConfig(cfg)
		return
	}
	p := NewBudgetPolicy(cfg, in.estimator)
	p.TrackTextures(in.st.visual.textureKeys())
	in.policy = p
}
