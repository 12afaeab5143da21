// Package config loads and validates the orchestration engine's
// configuration: the provider registry, consensus and rate-gate
// options, and per-repo overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// ProviderConfig describes one configured LLM reviewer entry.
// See spec.md §9 "Provider registry".
type ProviderConfig struct {
	Type                   string `toml:"type"`
	DisplayName            string `toml:"display_name"`
	Endpoint               string `toml:"endpoint"`
	APIKey                 string `toml:"api_key" sensitive:"true"`
	Model                  string `toml:"model"`
	CustomInstructionsPath string `toml:"custom_instructions_path"`
	Enabled                bool   `toml:"enabled"`
}

// Config holds the orchestration engine's configuration.
type Config struct {
	Providers []ProviderConfig `toml:"providers"`

	// Orchestration-level options (spec.md §9).
	Mode               string `toml:"mode"` // "single" or "consensus"
	ActiveProvider     string `toml:"active_provider"`
	ConsensusThreshold int    `toml:"consensus_threshold"`
	MaxParallelReviews int    `toml:"max_parallel_reviews"`

	RateGateIntervalMinutes int    `toml:"rate_gate_interval_minutes"`
	AttributionTag          string `toml:"attribution_tag"`
	AddReviewerVote         bool   `toml:"add_reviewer_vote"`

	// ResolvePriorThreadsOnReReview gates spec.md §4.6.2 step 6
	// (thread-resolution verification), which only runs on ReReview.
	ResolvePriorThreadsOnReReview bool `toml:"resolve_prior_threads_on_re_review"`
}

// RepoConfig holds per-repo overrides, loaded from .prreviewer.toml
// at the root of a checked-out repository.
type RepoConfig struct {
	ActiveProvider          string `toml:"active_provider"`
	ReviewGuidelines        string `toml:"review_guidelines"`
	RateGateIntervalMinutes int    `toml:"rate_gate_interval_minutes"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Mode:                          "single",
		ConsensusThreshold:            1,
		MaxParallelReviews:            5,
		RateGateIntervalMinutes:       5,
		AttributionTag:                "ai-review",
		AddReviewerVote:               true,
		ResolvePriorThreadsOnReReview: true,
	}
}

// Validate rejects configuration that the orchestrator could not act
// on, per spec.md §9: "unknown tags fail construction with a precise
// message."
func (c *Config) Validate(knownProviderTypes map[string]bool) error {
	if c.Mode != "single" && c.Mode != "consensus" {
		return fmt.Errorf("config: unknown mode %q (want %q or %q)", c.Mode, "single", "consensus")
	}
	if len(c.Providers) == 0 {
		return fmt.Errorf("config: no providers configured")
	}
	enabled := 0
	for _, p := range c.Providers {
		if !knownProviderTypes[p.Type] {
			return fmt.Errorf("config: unknown provider type %q for provider %q", p.Type, p.DisplayName)
		}
		if p.Enabled {
			enabled++
		}
	}
	if c.Mode == "consensus" {
		if c.ConsensusThreshold < 1 || c.ConsensusThreshold > enabled {
			return fmt.Errorf(
				"config: consensus_threshold %d out of range [1, %d] enabled providers",
				c.ConsensusThreshold, enabled)
		}
	}
	if c.Mode == "single" && c.ActiveProvider == "" {
		return fmt.Errorf("config: active_provider must be set in single mode")
	}
	if c.MaxParallelReviews < 1 {
		return fmt.Errorf("config: max_parallel_reviews must be >= 1")
	}
	return nil
}

// DataDir returns the engine's data directory. Uses PRREVIEWER_DATA_DIR
// env var if set, otherwise ~/.prreviewer.
func DataDir() string {
	if dir := os.Getenv("PRREVIEWER_DATA_DIR"); dir != "" {
		return dir
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".prreviewer")
}

// GlobalConfigPath returns the path to the global config file.
func GlobalConfigPath() string {
	return filepath.Join(DataDir(), "config.toml")
}

// LoadGlobal loads the global configuration from the default path.
func LoadGlobal() (*Config, error) {
	return LoadGlobalFrom(GlobalConfigPath())
}

// LoadGlobalFrom loads the global configuration from a specific path.
// A missing file is not an error; defaults are returned instead.
func LoadGlobalFrom(path string) (*Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadRepoConfig loads per-repo config from .prreviewer.toml.
func LoadRepoConfig(repoPath string) (*RepoConfig, error) {
	path := filepath.Join(repoPath, ".prreviewer.toml")
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, nil // No repo config
	}

	var cfg RepoConfig
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// ResolveRateGateInterval determines the rate gate interval based on
// config priority: per-repo override, then global config, then default.
func ResolveRateGateInterval(repoPath string, globalCfg *Config) int {
	if repoCfg, err := LoadRepoConfig(repoPath); err == nil && repoCfg != nil && repoCfg.RateGateIntervalMinutes > 0 {
		return repoCfg.RateGateIntervalMinutes
	}
	if globalCfg != nil && globalCfg.RateGateIntervalMinutes > 0 {
		return globalCfg.RateGateIntervalMinutes
	}
	return 5
}

// SaveGlobal saves the global configuration.
func SaveGlobal(cfg *Config) error {
	path := GlobalConfigPath()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(cfg)
}
