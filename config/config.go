// Package config provides configuration loading and management for taxorank.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/c360studio/taxorank/checkpoint"
	"github.com/c360studio/taxorank/engine"
	"github.com/c360studio/taxorank/export"
	"github.com/c360studio/taxorank/model"
	"github.com/c360studio/taxorank/prompts"
	"gopkg.in/yaml.v3"
)

// Config represents the complete taxorank configuration
type Config struct {
	// LogLevel is one of debug, info, warn or error.
	LogLevel   string            `yaml:"log_level"`
	Model      ModelConfig       `yaml:"model"`
	Engine     EngineConfig      `yaml:"engine"`
	Oracle     OracleConfig      `yaml:"oracle"`
	Checkpoint checkpoint.Config `yaml:"checkpoint"`
	Export     ExportConfig      `yaml:"export"`
	Metrics    MetricsConfig     `yaml:"metrics"`
}

// ModelConfig configures the model registry
type ModelConfig struct {
	// RegistryFile is a JSON model registry (empty = built-in profiles)
	RegistryFile string `yaml:"registry_file"`
}

// EngineConfig holds the construction budgets and caps
type EngineConfig struct {
	VerifyRoot          bool    `yaml:"verify_root"`
	DescriptionAmount   int     `yaml:"description_amount"`
	DescriptionWords    int     `yaml:"description_words"`
	DefinitionWords     int     `yaml:"definition_words"`
	SubconceptsAmount   int     `yaml:"subconcepts_amount"`
	ResolveBudget       int     `yaml:"resolve_budget"`
	AttemptBudget       int     `yaml:"attempt_budget"`
	MaxIter             int     `yaml:"max_iter"`
	MaxCandidateLength  int     `yaml:"max_candidate_length"`
	MaxSubconceptLength int     `yaml:"max_subconcept_length"`
	RedundancyRatio     float64 `yaml:"redundancy_ratio"`
	Workers             int     `yaml:"workers"`
	// MaxLevels bounds expansion rounds per build (0 = until exhausted)
	MaxLevels int `yaml:"max_levels"`
}

// OracleConfig configures calls to the model
type OracleConfig struct {
	// Timeout bounds a single oracle call
	Timeout time.Duration `yaml:"timeout"`
	// RateLimit caps requests per second (0 = unlimited)
	RateLimit float64 `yaml:"rate_limit"`
	// Burst is the rate limiter burst size
	Burst int `yaml:"burst"`
}

// ExportConfig configures hierarchy export
type ExportConfig struct {
	// Format is the default export format
	Format string `yaml:"format"`
	// Namespace prefixes class IRIs
	Namespace string `yaml:"namespace"`
}

// MetricsConfig configures the Prometheus endpoint
type MetricsConfig struct {
	// Addr is the listen address for /metrics (empty = disabled)
	Addr string `yaml:"addr"`
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() *Config {
	opts := engine.DefaultOptions()
	settings := prompts.DefaultSettings()
	return &Config{
		LogLevel: "info",
		Engine: EngineConfig{
			VerifyRoot:          opts.VerifyRoot,
			DescriptionAmount:   settings.DescriptionAmount,
			DescriptionWords:    settings.DescriptionWords,
			DefinitionWords:     settings.DefinitionWords,
			SubconceptsAmount:   settings.SubconceptsAmount,
			ResolveBudget:       opts.ResolveBudget,
			AttemptBudget:       opts.AttemptBudget,
			MaxIter:             opts.MaxIter,
			MaxCandidateLength:  opts.MaxCandidateLength,
			MaxSubconceptLength: opts.MaxSubconceptLength,
			RedundancyRatio:     opts.RedundancyRatio,
			Workers:             opts.Workers,
			MaxLevels:           opts.MaxLevels,
		},
		Oracle: OracleConfig{
			Timeout:   2 * time.Minute,
			RateLimit: 0,
			Burst:     1,
		},
		Checkpoint: checkpoint.DefaultConfig(),
		Export: ExportConfig{
			Format:    string(export.FormatRDFXML),
			Namespace: export.DefaultNamespace,
		},
	}
}

// Validate checks that the configuration is valid
func (c *Config) Validate() error {
	if _, err := ParseLogLevel(c.LogLevel); err != nil {
		return err
	}

	e := c.Engine
	positive := map[string]int{
		"engine.description_amount":    e.DescriptionAmount,
		"engine.description_words":     e.DescriptionWords,
		"engine.definition_words":      e.DefinitionWords,
		"engine.subconcepts_amount":    e.SubconceptsAmount,
		"engine.resolve_budget":        e.ResolveBudget,
		"engine.attempt_budget":        e.AttemptBudget,
		"engine.max_iter":              e.MaxIter,
		"engine.max_candidate_length":  e.MaxCandidateLength,
		"engine.max_subconcept_length": e.MaxSubconceptLength,
		"engine.workers":               e.Workers,
	}
	for name, v := range positive {
		if v <= 0 {
			return fmt.Errorf("%s must be positive, got %d", name, v)
		}
	}
	if e.RedundancyRatio <= 0 || e.RedundancyRatio > 1 {
		return fmt.Errorf("engine.redundancy_ratio must be in (0, 1], got %g", e.RedundancyRatio)
	}
	if e.MaxLevels < 0 {
		return fmt.Errorf("engine.max_levels must not be negative")
	}

	if c.Oracle.Timeout <= 0 {
		return fmt.Errorf("oracle.timeout must be positive")
	}
	if c.Oracle.RateLimit < 0 {
		return fmt.Errorf("oracle.rate_limit must not be negative")
	}

	if err := c.Checkpoint.Validate(); err != nil {
		return err
	}
	if _, err := export.ParseFormat(c.Export.Format); err != nil {
		return fmt.Errorf("export.format: %w", err)
	}
	return nil
}

// Options converts the engine section to engine options.
func (e EngineConfig) Options() engine.Options {
	return engine.Options{
		VerifyRoot:          e.VerifyRoot,
		ResolveBudget:       e.ResolveBudget,
		AttemptBudget:       e.AttemptBudget,
		MaxIter:             e.MaxIter,
		MaxCandidateLength:  e.MaxCandidateLength,
		MaxSubconceptLength: e.MaxSubconceptLength,
		RedundancyRatio:     e.RedundancyRatio,
		Workers:             e.Workers,
		MaxLevels:           e.MaxLevels,
	}
}

// Prompts converts the engine section to prompt settings.
func (e EngineConfig) Prompts() prompts.Settings {
	return prompts.Settings{
		DescriptionAmount: e.DescriptionAmount,
		DescriptionWords:  e.DescriptionWords,
		DefinitionWords:   e.DefinitionWords,
		SubconceptsAmount: e.SubconceptsAmount,
	}
}

// Registry loads the configured model registry, or the built-in one.
func (m ModelConfig) Registry() (*model.Registry, error) {
	if m.RegistryFile == "" {
		return model.NewDefaultRegistry(), nil
	}
	return model.LoadFromFile(m.RegistryFile)
}

// ParseLogLevel maps a level name onto a slog level.
func ParseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("log_level must be debug, info, warn or error, got %q", s)
	}
}

// LoadFromFile loads configuration from a YAML file on top of the defaults
func LoadFromFile(path string) (*Config, error) {
	config := DefaultConfig()
	if err := config.apply(path); err != nil {
		return nil, err
	}
	return config, nil
}

// apply overlays the keys present in a YAML file onto c. Keys the file
// leaves out keep their current values.
func (c *Config) apply(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}
	return nil
}

// SaveToFile saves configuration to a YAML file
func (c *Config) SaveToFile(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
