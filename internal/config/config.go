package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Config holds all application configuration
type Config struct {
	General       GeneralConfig       `toml:"general"`
	Coordinator   CoordinatorConfig   `toml:"coordinator"`
	Notifications NotificationsConfig `toml:"notifications"`
	Web           WebConfig           `toml:"web"`
}

// GeneralConfig holds general settings
type GeneralConfig struct {
	PipelinePath    string `toml:"pipeline_path"`
	WorkDir         string `toml:"work_dir"`
	DatabasePath    string `toml:"database_path"`
	MaxEnvironments int    `toml:"max_environments"`
	Debug           bool   `toml:"debug"`
}

// CoordinatorConfig holds remote-runner coordinator settings
type CoordinatorConfig struct {
	Enabled           bool          `toml:"enabled"`
	Port              int           `toml:"port"`
	HeartbeatInterval time.Duration `toml:"heartbeat_interval"`
	HeartbeatTimeout  time.Duration `toml:"heartbeat_timeout"`
}

// NotificationsConfig holds notification settings
type NotificationsConfig struct {
	SlackWebhook string `toml:"slack_webhook"`
}

// WebConfig holds web API settings
type WebConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// Default returns a Config with sensible defaults
func Default() *Config {
	home, _ := os.UserHomeDir()
	return &Config{
		General: GeneralConfig{
			PipelinePath:    "crossgate.yaml",
			WorkDir:         "",
			DatabasePath:    filepath.Join(home, ".crossgate", "crossgate.db"),
			MaxEnvironments: 4,
		},
		Coordinator: CoordinatorConfig{
			Port:              9077,
			HeartbeatInterval: 30 * time.Second,
			HeartbeatTimeout:  90 * time.Second,
		},
		Web: WebConfig{
			Host: "127.0.0.1",
			Port: 8080,
		},
	}
}

// Load reads configuration from a TOML file, falling back to defaults
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}

	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	cfg.General.PipelinePath = ExpandPath(cfg.General.PipelinePath)
	cfg.General.WorkDir = ExpandPath(cfg.General.WorkDir)
	cfg.General.DatabasePath = ExpandPath(cfg.General.DatabasePath)

	return cfg, nil
}

// ExpandPath expands ~ to the user's home directory
func ExpandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, _ := os.UserHomeDir()
		return filepath.Join(home, path[2:])
	}
	return path
}

// DefaultConfigPath returns the default config file location
func DefaultConfigPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "crossgate", "config.toml")
}
