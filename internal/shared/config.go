package shared

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

//go:embed config.example.toml
var exampleConf []byte

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Database DatabaseConfig `toml:"database"`
	Import   ImportConfig   `toml:"import"`
	Report   ReportConfig   `toml:"report"`
	Engine   EngineConfig   `toml:"engine"`
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Path         string `toml:"path"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// ImportConfig locates the legacy CSV export files consumed by the one-time
// bootstrap import.
type ImportConfig struct {
	Dir       string `toml:"dir"`
	UsersFile string `toml:"users_file"`
	TasksFile string `toml:"tasks_file"`
	LogsFile  string `toml:"logs_file"`
	Workers   int    `toml:"workers"`
}

// UsersPath returns the full path to the users export file.
func (c ImportConfig) UsersPath() string {
	return filepath.Join(c.Dir, c.UsersFile)
}

// TasksPath returns the full path to the tasks export file.
func (c ImportConfig) TasksPath() string {
	return filepath.Join(c.Dir, c.TasksFile)
}

// LogsPath returns the full path to the log entries export file.
func (c ImportConfig) LogsPath() string {
	return filepath.Join(c.Dir, c.LogsFile)
}

// ReportConfig controls where and how rejection reports are written.
type ReportConfig struct {
	Dir    string `toml:"dir"`
	Format string `toml:"format"`
}

// EngineConfig contains migration engine settings.
type EngineConfig struct {
	LeaseTTLSeconds int `toml:"lease_ttl_seconds"`
}

// LeaseTTL returns the configured lease duration.
func (c EngineConfig) LeaseTTL() time.Duration {
	return time.Duration(c.LeaseTTLSeconds) * time.Second
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := toml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return &config, nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// SaveConfig serializes the given Config to TOML and writes it to the specified path.
func SaveConfig(config *Config, path string) error {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(config); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	// Check if file already exists
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s: %w", path, ErrInvalidInput)
	}

	// Write the embedded example config to the file
	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
