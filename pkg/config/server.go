package config

import "time"

// ServerConfig contains HTTP server and WebSocket transport settings.
type ServerConfig struct {
	// Host is the listen address.
	Host string `yaml:"host"`

	// Port is the listen port.
	Port int `yaml:"port"`

	// WSWriteTimeout caps a single WebSocket frame write; slow clients
	// past this deadline get their frame dropped.
	WSWriteTimeout time.Duration `yaml:"ws_write_timeout"`

	// ShutdownTimeout is the max time to wait for in-flight requests
	// during graceful shutdown.
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// DefaultServerConfig returns the built-in server defaults.
func DefaultServerConfig() *ServerConfig {
	return &ServerConfig{
		Host:            "0.0.0.0",
		Port:            8080,
		WSWriteTimeout:  10 * time.Second,
		ShutdownTimeout: 15 * time.Second,
	}
}
