package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Mode != "single" {
		t.Errorf("Expected Mode 'single', got '%s'", cfg.Mode)
	}
	if cfg.MaxParallelReviews != 5 {
		t.Errorf("Expected MaxParallelReviews 5, got %d", cfg.MaxParallelReviews)
	}
	if cfg.RateGateIntervalMinutes != 5 {
		t.Errorf("Expected RateGateIntervalMinutes 5, got %d", cfg.RateGateIntervalMinutes)
	}
	if cfg.AttributionTag != "ai-review" {
		t.Errorf("Expected AttributionTag 'ai-review', got '%s'", cfg.AttributionTag)
	}
	if !cfg.AddReviewerVote {
		t.Error("Expected AddReviewerVote true by default")
	}
}

func TestConfigValidate(t *testing.T) {
	known := map[string]bool{"azure-openai": true}

	t.Run("rejects unknown mode", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Mode = "bogus"
		cfg.Providers = []ProviderConfig{{Type: "azure-openai", Enabled: true}}
		if err := cfg.Validate(known); err == nil {
			t.Fatal("expected error for unknown mode")
		}
	})

	t.Run("rejects unknown provider type", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.ActiveProvider = "p1"
		cfg.Providers = []ProviderConfig{{Type: "not-a-real-provider", DisplayName: "p1", Enabled: true}}
		err := cfg.Validate(known)
		if err == nil {
			t.Fatal("expected error for unknown provider type")
		}
	})

	t.Run("rejects no providers", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.ActiveProvider = "p1"
		if err := cfg.Validate(known); err == nil {
			t.Fatal("expected error for no providers")
		}
	})

	t.Run("rejects consensus threshold out of range", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Mode = "consensus"
		cfg.ConsensusThreshold = 3
		cfg.Providers = []ProviderConfig{
			{Type: "azure-openai", DisplayName: "a", Enabled: true},
			{Type: "azure-openai", DisplayName: "b", Enabled: true},
		}
		if err := cfg.Validate(known); err == nil {
			t.Fatal("expected error for threshold exceeding enabled provider count")
		}
	})

	t.Run("accepts valid single-mode config", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.ActiveProvider = "p1"
		cfg.Providers = []ProviderConfig{{Type: "azure-openai", DisplayName: "p1", Enabled: true}}
		if err := cfg.Validate(known); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	})

	t.Run("accepts valid consensus config", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Mode = "consensus"
		cfg.ConsensusThreshold = 2
		cfg.Providers = []ProviderConfig{
			{Type: "azure-openai", DisplayName: "a", Enabled: true},
			{Type: "azure-openai", DisplayName: "b", Enabled: true},
		}
		if err := cfg.Validate(known); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	})
}

func TestDataDir(t *testing.T) {
	t.Run("default uses home directory", func(t *testing.T) {
		origEnv := os.Getenv("PRREVIEWER_DATA_DIR")
		os.Unsetenv("PRREVIEWER_DATA_DIR")
		defer func() {
			if origEnv != "" {
				os.Setenv("PRREVIEWER_DATA_DIR", origEnv)
			}
		}()

		dir := DataDir()
		home, _ := os.UserHomeDir()
		expected := filepath.Join(home, ".prreviewer")
		if dir != expected {
			t.Errorf("Expected %s, got %s", expected, dir)
		}
	})

	t.Run("env var overrides default", func(t *testing.T) {
		origEnv := os.Getenv("PRREVIEWER_DATA_DIR")
		os.Setenv("PRREVIEWER_DATA_DIR", "/custom/data/dir")
		defer func() {
			if origEnv != "" {
				os.Setenv("PRREVIEWER_DATA_DIR", origEnv)
			} else {
				os.Unsetenv("PRREVIEWER_DATA_DIR")
			}
		}()

		dir := DataDir()
		if dir != "/custom/data/dir" {
			t.Errorf("Expected /custom/data/dir, got %s", dir)
		}
	})

	t.Run("GlobalConfigPath uses DataDir", func(t *testing.T) {
		origEnv := os.Getenv("PRREVIEWER_DATA_DIR")
		testDir := filepath.Join(os.TempDir(), "prreviewer-test")
		os.Setenv("PRREVIEWER_DATA_DIR", testDir)
		defer func() {
			if origEnv != "" {
				os.Setenv("PRREVIEWER_DATA_DIR", origEnv)
			} else {
				os.Unsetenv("PRREVIEWER_DATA_DIR")
			}
		}()

		path := GlobalConfigPath()
		expected := filepath.Join(testDir, "config.toml")
		if path != expected {
			t.Errorf("Expected %s, got %s", expected, path)
		}
	})
}

func TestResolveRateGateInterval(t *testing.T) {
	t.Run("default when no config", func(t *testing.T) {
		tmpDir := t.TempDir()
		if got := ResolveRateGateInterval(tmpDir, nil); got != 5 {
			t.Errorf("expected default 5, got %d", got)
		}
	})

	t.Run("global config takes precedence over default", func(t *testing.T) {
		tmpDir := t.TempDir()
		cfg := &Config{RateGateIntervalMinutes: 45}
		if got := ResolveRateGateInterval(tmpDir, cfg); got != 45 {
			t.Errorf("expected 45, got %d", got)
		}
	})

	t.Run("repo config takes precedence over global", func(t *testing.T) {
		tmpDir := newTempRepo(t, `rate_gate_interval_minutes = 15`)
		cfg := &Config{RateGateIntervalMinutes: 45}
		if got := ResolveRateGateInterval(tmpDir, cfg); got != 15 {
			t.Errorf("expected 15 from repo config, got %d", got)
		}
	})

	t.Run("repo config zero falls through to global", func(t *testing.T) {
		tmpDir := newTempRepo(t, `rate_gate_interval_minutes = 0`)
		cfg := &Config{RateGateIntervalMinutes: 45}
		if got := ResolveRateGateInterval(tmpDir, cfg); got != 45 {
			t.Errorf("expected 45 from global, got %d", got)
		}
	})
}

func TestLoadRepoConfigWithGuidelines(t *testing.T) {
	configContent := `
active_provider = "azure-openai-gpt4"
review_guidelines = """
We are not doing database migrations because there are no production databases yet.
Prefer composition over inheritance.
"""
`
	tmpDir := newTempRepo(t, configContent)

	cfg, err := LoadRepoConfig(tmpDir)
	if err != nil {
		t.Fatalf("LoadRepoConfig failed: %v", err)
	}
	if cfg == nil {
		t.Fatal("Expected non-nil config")
	}
	if cfg.ActiveProvider != "azure-openai-gpt4" {
		t.Errorf("Expected ActiveProvider 'azure-openai-gpt4', got '%s'", cfg.ActiveProvider)
	}
	if cfg.ReviewGuidelines == "" {
		t.Error("Expected non-empty guidelines")
	}
}

func TestLoadRepoConfigMissing(t *testing.T) {
	tmpDir := t.TempDir()
	cfg, err := LoadRepoConfig(tmpDir)
	if err != nil {
		t.Fatalf("LoadRepoConfig failed: %v", err)
	}
	if cfg != nil {
		t.Error("Expected nil config when file doesn't exist")
	}
}

func TestSaveAndLoadGlobal(t *testing.T) {
	tmpHome := t.TempDir()
	origEnv := os.Getenv("PRREVIEWER_DATA_DIR")
	os.Setenv("PRREVIEWER_DATA_DIR", tmpHome)
	defer func() {
		if origEnv != "" {
			os.Setenv("PRREVIEWER_DATA_DIR", origEnv)
		} else {
			os.Unsetenv("PRREVIEWER_DATA_DIR")
		}
	}()

	cfg := DefaultConfig()
	cfg.ActiveProvider = "azure-openai-gpt4"
	cfg.MaxParallelReviews = 8

	if err := SaveGlobal(cfg); err != nil {
		t.Fatalf("SaveGlobal failed: %v", err)
	}

	loaded, err := LoadGlobal()
	if err != nil {
		t.Fatalf("LoadGlobal failed: %v", err)
	}

	if loaded.ActiveProvider != "azure-openai-gpt4" {
		t.Errorf("Expected ActiveProvider 'azure-openai-gpt4', got '%s'", loaded.ActiveProvider)
	}
	if loaded.MaxParallelReviews != 8 {
		t.Errorf("Expected MaxParallelReviews 8, got %d", loaded.MaxParallelReviews)
	}
}
