package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"dario.cat/mergo"
	"gopkg.in/yaml.v3"
)

// WorkbenchYAMLConfig represents the complete workbench.yaml file structure
type WorkbenchYAMLConfig struct {
	System  *SystemYAMLConfig  `yaml:"system"`
	Server  *ServerConfig      `yaml:"server"`
	Masking *MaskingYAMLConfig `yaml:"masking"`
}

// SystemYAMLConfig groups system-wide infrastructure settings.
type SystemYAMLConfig struct {
	DataDir          string                `yaml:"data_dir"`
	AllowedWSOrigins []string              `yaml:"allowed_ws_origins"`
	Compaction       *CompactionYAMLConfig `yaml:"compaction"`
}

// CompactionYAMLConfig holds compaction settings from YAML.
type CompactionYAMLConfig struct {
	Enabled    *bool  `yaml:"enabled,omitempty"`
	MinRecords int    `yaml:"min_records,omitempty"`
	Interval   string `yaml:"interval,omitempty"` // Parsed to time.Duration
}

// MaskingYAMLConfig holds secret redaction settings from YAML.
type MaskingYAMLConfig struct {
	Enabled        *bool            `yaml:"enabled,omitempty"`
	CustomPatterns []MaskingPattern `yaml:"custom_patterns,omitempty"`
}

// Initialize loads, validates, and returns ready-to-use configuration.
// This is the primary entry point for configuration loading.
//
// Steps performed:
//  1. Load workbench.yaml from configDir (missing file means defaults)
//  2. Expand environment variables
//  3. Parse YAML into structs
//  4. Resolve defaults for any unset values
//  5. Validate all configuration
//  6. Return Config ready for use
func Initialize(ctx context.Context, configDir string) (*Config, error) {
	log := slog.With("config_dir", configDir)
	log.Info("Initializing configuration")

	cfg, err := load(ctx, configDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	log.Info("Configuration initialized successfully",
		"data_dir", cfg.System.DataDir,
		"listen", fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		"compaction_enabled", cfg.Compaction.Enabled,
		"masking_enabled", cfg.Masking.Enabled,
		"custom_patterns", len(cfg.Masking.CustomPatterns))

	return cfg, nil
}

// load is the internal loader (not exported)
func load(_ context.Context, configDir string) (*Config, error) {
	loader := &configLoader{
		configDir: configDir,
	}

	yamlCfg, err := loader.loadWorkbenchYAML()
	if err != nil {
		if !errors.Is(err, ErrConfigNotFound) {
			return nil, NewLoadError("workbench.yaml", err)
		}
		// A missing file is fine: everything has a built-in default.
		slog.Warn("No workbench.yaml found, using built-in defaults", "config_dir", configDir)
		yamlCfg = &WorkbenchYAMLConfig{}
	}

	// Resolve server config (merge user YAML with built-in defaults)
	// Start with defaults, then merge user config on top to preserve unset defaults
	serverCfg := DefaultServerConfig()
	if yamlCfg.Server != nil {
		if err := mergo.Merge(serverCfg, yamlCfg.Server, mergo.WithOverride); err != nil {
			return nil, fmt.Errorf("failed to merge server config: %w", err)
		}
	}

	return &Config{
		configDir:  configDir,
		System:     resolveSystemConfig(yamlCfg.System),
		Server:     serverCfg,
		Compaction: resolveCompactionConfig(yamlCfg.System),
		Masking:    resolveMaskingConfig(yamlCfg.Masking),
	}, nil
}

// validate performs validation on loaded configuration
func validate(cfg *Config) error {
	if cfg.System.DataDir == "" {
		return NewValidationError("system", "data_dir", "", ErrMissingRequiredField)
	}
	if cfg.Server.Port < 1 || cfg.Server.Port > 65535 {
		return NewValidationError("server", "port", "", ErrInvalidValue)
	}
	if cfg.Server.WSWriteTimeout <= 0 {
		return NewValidationError("server", "ws_write_timeout", "", ErrInvalidValue)
	}
	if cfg.Compaction.MinRecords < 1 {
		return NewValidationError("system", "compaction", "min_records", ErrInvalidValue)
	}
	if cfg.Compaction.Interval <= 0 {
		return NewValidationError("system", "compaction", "interval", ErrInvalidValue)
	}
	for _, p := range cfg.Masking.CustomPatterns {
		if p.Pattern == "" {
			return NewValidationError("masking", p.Name, "pattern", ErrMissingRequiredField)
		}
	}
	return nil
}

type configLoader struct {
	configDir string
}

func (l *configLoader) loadYAML(filename string, target any) error {
	path := filepath.Join(l.configDir, filename)

	// Read file
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrConfigNotFound, path)
		}
		return err
	}

	// Expand environment variables using {{.VAR}} template syntax
	// Note: ExpandEnv passes through original data on parse/execution errors,
	// allowing YAML parser to handle the content (or fail with clearer error message)
	data = ExpandEnv(data)

	// Parse YAML
	if err := yaml.Unmarshal(data, target); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidYAML, err)
	}

	return nil
}

func (l *configLoader) loadWorkbenchYAML() (*WorkbenchYAMLConfig, error) {
	var config WorkbenchYAMLConfig

	if err := l.loadYAML("workbench.yaml", &config); err != nil {
		return nil, err
	}

	return &config, nil
}

// resolveSystemConfig resolves system configuration from YAML, applying defaults.
func resolveSystemConfig(sys *SystemYAMLConfig) *SystemConfig {
	cfg := &SystemConfig{
		DataDir: "./data",
	}

	if sys == nil {
		return cfg
	}

	if sys.DataDir != "" {
		cfg.DataDir = sys.DataDir
	}
	cfg.AllowedWSOrigins = sys.AllowedWSOrigins

	return cfg
}

// resolveCompactionConfig resolves compaction configuration from system YAML, applying defaults.
func resolveCompactionConfig(sys *SystemYAMLConfig) *CompactionConfig {
	cfg := DefaultCompactionConfig()

	if sys == nil || sys.Compaction == nil {
		return cfg
	}

	c := sys.Compaction
	if c.Enabled != nil {
		cfg.Enabled = *c.Enabled
	}
	if c.MinRecords > 0 {
		cfg.MinRecords = c.MinRecords
	}
	if c.Interval != "" {
		if d, err := time.ParseDuration(c.Interval); err == nil {
			cfg.Interval = d
		} else {
			slog.Warn("Invalid interval in compaction config, using default",
				"value", c.Interval,
				"default", cfg.Interval,
				"error", err)
		}
	}

	return cfg
}

// resolveMaskingConfig resolves secret redaction configuration from YAML, applying defaults.
func resolveMaskingConfig(m *MaskingYAMLConfig) *MaskingConfig {
	cfg := &MaskingConfig{
		Enabled: true,
	}

	if m == nil {
		return cfg
	}

	if m.Enabled != nil {
		cfg.Enabled = *m.Enabled
	}
	cfg.CustomPatterns = m.CustomPatterns

	return cfg
}
