package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	if cfg.Thresholds.ShrinkageRatio != 0.70 {
		t.Errorf("ShrinkageRatio = %g", cfg.Thresholds.ShrinkageRatio)
	}
	if cfg.Thresholds.StructuredFieldMin != 3 {
		t.Errorf("StructuredFieldMin = %d", cfg.Thresholds.StructuredFieldMin)
	}
	if cfg.Client.Tier != "development" {
		t.Errorf("Tier = %q", cfg.Client.Tier)
	}
	if cfg.Client.Timeout() != 120*time.Second {
		t.Errorf("Timeout = %v", cfg.Client.Timeout())
	}
	for _, tier := range []string{"development", "production", "premium"} {
		models, ok := cfg.Tiers[tier]
		if !ok || models.Generator == "" || models.Reviewer == "" {
			t.Errorf("tier %q incomplete: %+v", tier, models)
		}
	}
}

func TestLoad_MissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "no-such.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Thresholds.MainFlowMin != 4 {
		t.Errorf("MainFlowMin = %d, want default 4", cfg.Thresholds.MainFlowMin)
	}
}

func TestLoad_OverlaysOnDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prdc.yaml")
	body := `
thresholds:
  shrinkage_ratio: 0.5
client:
  tier: production
  preferred_generator: anthropic:claude-opus-4-1
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Thresholds.ShrinkageRatio != 0.5 {
		t.Errorf("ShrinkageRatio = %g, want 0.5", cfg.Thresholds.ShrinkageRatio)
	}
	// Values the file does not mention keep their defaults.
	if cfg.Thresholds.StructuredFieldMin != 3 {
		t.Errorf("StructuredFieldMin = %d, want default 3", cfg.Thresholds.StructuredFieldMin)
	}
	if cfg.Client.Tier != "production" {
		t.Errorf("Tier = %q", cfg.Client.Tier)
	}
	if cfg.Client.PreferredGenerator != "anthropic:claude-opus-4-1" {
		t.Errorf("PreferredGenerator = %q", cfg.Client.PreferredGenerator)
	}
	if cfg.Client.MaxTokens != 4096 {
		t.Errorf("MaxTokens = %d, want default 4096", cfg.Client.MaxTokens)
	}
}

func TestLoad_RejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"shrinkage ratio zero", "thresholds:\n  shrinkage_ratio: 0\n"},
		{"shrinkage ratio above one", "thresholds:\n  shrinkage_ratio: 1.5\n"},
		{"structured field min out of range", "thresholds:\n  structured_field_min: 11\n"},
		{"unknown tier", "client:\n  tier: turbo\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "prdc.yaml")
			if err := os.WriteFile(path, []byte(tt.body), 0o644); err != nil {
				t.Fatal(err)
			}
			if _, err := Load(path); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestLoad_MalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prdc.yaml")
	if err := os.WriteFile(path, []byte("client: [not a mapping"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("expected unmarshal error")
	}
}
