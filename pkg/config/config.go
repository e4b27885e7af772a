package config

// Config carries every resolved setting. Initialize (loader.go) builds
// it from workbench.yaml merged over defaults.
type Config struct {
	configDir string

	// System holds data directory and WebSocket origin settings.
	System *SystemConfig

	// Server holds HTTP listener and timeout settings.
	Server *ServerConfig

	// Compaction controls the timeline log compaction loop.
	Compaction *CompactionConfig

	// Masking controls secret redaction of tool arguments and results.
	Masking *MaskingConfig
}

// ConfigDir reports where the configuration was loaded from.
func (c *Config) ConfigDir() string {
	return c.configDir
}
