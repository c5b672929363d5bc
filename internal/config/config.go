package config

import (
	"os"
	"path/filepath"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Store   Store   `mapstructure:"store"`
	Fetch   Fetch   `mapstructure:"fetch"`
	Browser Browser `mapstructure:"browser"`
	MCP     MCP     `mapstructure:"mcp"`
}

// Store holds reference store directories.
type Store struct {
	Dir          string `mapstructure:"dir"`
	PermanentDir string `mapstructure:"permanent_dir"`
}

// Fetch holds fetch pipeline configuration.
type Fetch struct {
	UserAgent         string        `mapstructure:"user_agent"`
	Timeout           time.Duration `mapstructure:"timeout"`
	MinScore          int           `mapstructure:"min_score"`
	FallbackThreshold int           `mapstructure:"fallback_threshold"`
}

// Browser holds headless browser configuration for the fallback renderer.
type Browser struct {
	Headless          bool          `mapstructure:"headless"`
	Bin               string        `mapstructure:"bin"`
	WaitStrategy      string        `mapstructure:"wait_strategy"`
	NavigationTimeout time.Duration `mapstructure:"navigation_timeout"`
}

// MCP holds MCP server configuration.
type MCP struct {
	Name    string `mapstructure:"name"`
	Version string `mapstructure:"version"`
}

// Defaults returns a Config with sensible default values.
func Defaults() Config {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	base := filepath.Join(home, ".refstash")

	return Config{
		Store: Store{
			Dir:          filepath.Join(base, "references"),
			PermanentDir: filepath.Join(base, "archive"),
		},
		Fetch: Fetch{
			Timeout:           30 * time.Second,
			MinScore:          60,
			FallbackThreshold: 80,
		},
		Browser: Browser{
			Headless:          true,
			WaitStrategy:      "networkidle",
			NavigationTimeout: 30 * time.Second,
		},
		MCP: MCP{
			Name:    "refstash",
			Version: "1.0.0",
		},
	}
}
