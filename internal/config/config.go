// Package config loads and validates the service configuration.
//
// Configuration is YAML with ${VAR} environment expansion; a .env or
// .env.local file next to the process is loaded first (without overriding
// the real environment) so deployments can keep tool paths out of the
// checked-in file.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the root service configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Toolchain ToolchainConfig `yaml:"toolchain"`
	Workspace WorkspaceConfig `yaml:"workspace"`
	Janitor   JanitorConfig   `yaml:"janitor"`
}

// ServerConfig controls the HTTP listener.
type ServerConfig struct {
	Listen          string        `yaml:"listen"`
	CORSOrigins     []string      `yaml:"cors_origins,omitempty"`
	MaxConnections  int           `yaml:"max_connections,omitempty"`  // 0 = unlimited
	MaxBodyBytes    int64         `yaml:"max_body_bytes,omitempty"`   // 0 = unlimited
	ShutdownTimeout Duration      `yaml:"shutdown_timeout,omitempty"`
}

// ToolchainConfig holds the external compiler paths.
type ToolchainConfig struct {
	Xml2st string `yaml:"xml2st"`
	Iec2c  string `yaml:"iec2c"`
	// Timeout bounds one tool invocation. Zero keeps the documented
	// baseline of unbounded blocking.
	Timeout Duration `yaml:"timeout,omitempty"`
}

// WorkspaceConfig controls where per-request workspaces are created.
type WorkspaceConfig struct {
	BaseDir string `yaml:"base_dir,omitempty"` // empty = system temp dir
}

// JanitorConfig controls the stale-workspace sweeper.
type JanitorConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Interval Duration      `yaml:"interval,omitempty"`
	MaxAge   Duration      `yaml:"max_age,omitempty"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Listen:          ":8000",
			ShutdownTimeout: Duration(10 * time.Second),
		},
		Toolchain: ToolchainConfig{
			Xml2st: "/usr/bin/xml2st",
			Iec2c:  "/usr/bin/iec2c",
		},
		Janitor: JanitorConfig{
			Enabled:  true,
			Interval: Duration(10 * time.Minute),
			MaxAge:   Duration(time.Hour),
		},
	}
}

// Load reads the configuration file at path, applying defaults for anything
// unset. A missing file is an error; use Default() for file-less operation.
func Load(path string) (*Config, error) {
	// Best effort: absence of a .env file is the normal case.
	_ = godotenv.Load(".env", ".env.local")

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration: %w", err)
	}

	cfg := Default()
	expanded := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks invariants that would otherwise surface as confusing
// runtime failures.
func (c *Config) Validate() error {
	if c.Server.Listen == "" {
		return fmt.Errorf("server.listen must not be empty")
	}
	if c.Toolchain.Xml2st == "" {
		return fmt.Errorf("toolchain.xml2st must not be empty")
	}
	if c.Toolchain.Iec2c == "" {
		return fmt.Errorf("toolchain.iec2c must not be empty")
	}
	if c.Server.MaxConnections < 0 {
		return fmt.Errorf("server.max_connections must not be negative")
	}
	if c.Server.MaxBodyBytes < 0 {
		return fmt.Errorf("server.max_body_bytes must not be negative")
	}
	if c.Janitor.Enabled {
		if c.Janitor.Interval <= 0 {
			return fmt.Errorf("janitor.interval must be positive when the janitor is enabled")
		}
		if c.Janitor.MaxAge <= 0 {
			return fmt.Errorf("janitor.max_age must be positive when the janitor is enabled")
		}
	}
	return nil
}

const exampleConfig = `# compilerd configuration
server:
  listen: ":8000"
  # Browser origins allowed to call the compile endpoints.
  cors_origins:
    - "https://autonomy-edge.com"
    - "https://www.autonomy-edge.com"
    - "http://localhost:5173"
    - "http://127.0.0.1:5173"
  # Cap on concurrent connections; 0 disables the cap.
  max_connections: 0
  # Cap on request body size in bytes; 0 disables the cap.
  max_body_bytes: 0
  shutdown_timeout: 10s

toolchain:
  xml2st: /usr/bin/xml2st
  iec2c: /usr/bin/iec2c
  # Per-invocation timeout; 0 lets the tool run unbounded.
  timeout: 0s

workspace:
  # Base directory for per-request workspaces; empty uses the system temp dir.
  base_dir: ""

janitor:
  # Sweeps workspace directories leaked by crashes or killed tools.
  enabled: true
  interval: 10m
  max_age: 1h
`

// WriteExample writes a commented example configuration to path.
func WriteExample(path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("configuration file %s already exists (use --force to overwrite)", path)
		}
	}
	if err := os.WriteFile(path, []byte(exampleConfig), 0o640); err != nil {
		return fmt.Errorf("failed to write example configuration: %w", err)
	}
	return nil
}
