package config

import "time"

// SystemConfig groups system-wide infrastructure settings.
type SystemConfig struct {
	// DataDir is the root directory for persisted session timelines.
	DataDir string `yaml:"data_dir"`

	// AllowedWSOrigins lists additional origin patterns accepted during
	// the WebSocket upgrade handshake. Localhost origins are always
	// accepted.
	AllowedWSOrigins []string `yaml:"allowed_ws_origins"`
}

// CompactionConfig controls background compaction of timeline logs.
type CompactionConfig struct {
	// Enabled toggles the compaction loop.
	Enabled bool `yaml:"enabled"`

	// MinRecords is the minimum number of log records a session must
	// accumulate before compaction rewrites its log.
	MinRecords int `yaml:"min_records"`

	// Interval is how often the compaction loop runs.
	Interval time.Duration `yaml:"interval"`
}

// DefaultCompactionConfig returns the built-in compaction defaults.
func DefaultCompactionConfig() *CompactionConfig {
	return &CompactionConfig{
		Enabled:    true,
		MinRecords: 512,
		Interval:   1 * time.Hour,
	}
}
