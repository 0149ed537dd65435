// Package config loads prdc settings from prdc.yaml. A missing file is not
// an error; defaults apply.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Thresholds holds the empirical tuning constants of the compiler. The
// shrinkage ratio and structured-field minimum are deliberately configurable
// rather than hard-coded.
type Thresholds struct {
	// ShrinkageRatio is the minimum allowed new/previous RawContent length
	// ratio before a feature edit counts as severe shrinkage.
	ShrinkageRatio float64 `yaml:"shrinkage_ratio"`

	// StructuredFieldMin is how many of the ten fields must carry content
	// before a feature renders from structured fields.
	StructuredFieldMin int `yaml:"structured_field_min"`

	// MainFlowMin and AcceptanceMin are the structural minimums enforced by
	// deterministic padding.
	MainFlowMin   int `yaml:"main_flow_min"`
	AcceptanceMin int `yaml:"acceptance_min"`

	// AcceptanceMinLen is the minimum character length below which an
	// acceptance-criteria section counts as trivial.
	AcceptanceMinLen int `yaml:"acceptance_min_len"`

	// RegenMinContentLen is the minimum plausible length of a regenerated
	// section body; shorter responses count as attempt failures.
	RegenMinContentLen int `yaml:"regen_min_content_len"`
}

// RoleModels holds the default provider:model strings for one tier.
type RoleModels struct {
	Generator string `yaml:"generator"`
	Reviewer  string `yaml:"reviewer"`
}

// ClientConfig holds model-invocation settings.
type ClientConfig struct {
	// Tier selects the default models: development, production, or premium.
	Tier string `yaml:"tier"`

	// PreferredGenerator and PreferredReviewer override the tier defaults.
	PreferredGenerator string `yaml:"preferred_generator"`
	PreferredReviewer  string `yaml:"preferred_reviewer"`

	// Fallback is one explicit fallback model tried after the preferred one.
	Fallback string `yaml:"fallback"`

	// AllowCrossRole lets a role borrow the other role's model as a last
	// resort. Off unless explicitly enabled.
	AllowCrossRole bool `yaml:"allow_cross_role"`

	TimeoutSeconds int     `yaml:"timeout_seconds"`
	MaxTokens      int     `yaml:"max_tokens"`
	Temperature    float64 `yaml:"temperature"`
}

// Timeout returns the per-call timeout as a duration.
func (c ClientConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// Config is the root prdc configuration.
type Config struct {
	Thresholds Thresholds            `yaml:"thresholds"`
	Client     ClientConfig          `yaml:"client"`
	Tiers      map[string]RoleModels `yaml:"tiers"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Thresholds: Thresholds{
			ShrinkageRatio:     0.70,
			StructuredFieldMin: 3,
			MainFlowMin:        4,
			AcceptanceMin:      2,
			AcceptanceMinLen:   20,
			RegenMinContentLen: 40,
		},
		Client: ClientConfig{
			Tier:           "development",
			TimeoutSeconds: 120,
			MaxTokens:      4096,
			Temperature:    0.3,
		},
		Tiers: map[string]RoleModels{
			"development": {
				Generator: "openai:gpt-4o-mini",
				Reviewer:  "openai:gpt-4o-mini",
			},
			"production": {
				Generator: "anthropic:claude-sonnet-4-6",
				Reviewer:  "openai:gpt-4o",
			},
			"premium": {
				Generator: "anthropic:claude-opus-4-1",
				Reviewer:  "anthropic:claude-sonnet-4-6",
			},
		},
	}
}

// Load reads path and overlays it on the defaults. A missing file returns
// the defaults without error.
func Load(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("unmarshal %s: %w", path, err)
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Thresholds.ShrinkageRatio <= 0 || c.Thresholds.ShrinkageRatio > 1 {
		return fmt.Errorf("shrinkage_ratio must be in (0, 1], got %g", c.Thresholds.ShrinkageRatio)
	}
	if c.Thresholds.StructuredFieldMin < 1 || c.Thresholds.StructuredFieldMin > 10 {
		return fmt.Errorf("structured_field_min must be in [1, 10], got %d", c.Thresholds.StructuredFieldMin)
	}
	if _, ok := c.Tiers[c.Client.Tier]; !ok {
		return fmt.Errorf("unknown tier %q", c.Client.Tier)
	}
	return nil
}
