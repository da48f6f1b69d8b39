// Package config loads parcelboard configuration from defaults, the
// parcelboard.yaml file, PARCELBOARD_ environment variables, and CLI flags,
// in increasing order of precedence.
package config

import "fmt"

// Defaults applied before any other configuration source.
const (
	DefaultPort         = 8900
	DefaultStateFile    = ".parcelboard/layouts.db"
	DefaultTemplatesDir = "templates"
	DefaultMaxDepth     = 8
	DefaultLogLevel     = "info"
)

// Config is the resolved parcelboard configuration.
type Config struct {
	// Port is the API server listen port.
	Port int `koanf:"port"`
	// StatePath is the SQLite layout database path.
	StatePath string `koanf:"state_path"`
	// TemplatesDir holds YAML layout templates seeded as public layouts.
	// Empty disables template loading.
	TemplatesDir string `koanf:"templates_dir"`
	// SessionSecret signs the owner-identity session cookie.
	SessionSecret string `koanf:"session_secret"`
	// MaxDepth caps event propagation chains.
	MaxDepth int `koanf:"max_depth"`
	// LogLevel is one of debug, info, warn, error.
	LogLevel string `koanf:"log_level"`
	// Verbose enables debug logging regardless of LogLevel.
	Verbose bool `koanf:"verbose"`
}

// Validate checks the configuration for values that cannot work.
func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("port out of range: %d", c.Port)
	}
	if c.StatePath == "" {
		return fmt.Errorf("state_path is required")
	}
	if c.MaxDepth < 1 {
		return fmt.Errorf("max_depth must be positive, got %d", c.MaxDepth)
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log_level %q", c.LogLevel)
	}
	return nil
}
