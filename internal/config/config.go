// Package config loads the server's YAML configuration file, applying
// COVAU_*-prefixed environment variable overrides on top.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/covau-dev/covau/internal/logging"
	"gopkg.in/yaml.v3"
)

// defaultPort is the build-time default server port (spec §6: "Port
// defaults come from build-time constants").
const defaultPort = 47429

// Config holds all application configuration (spec §6).
type Config struct {
	ServerPort     int              `yaml:"server_port"`
	MusicPath      string           `yaml:"music_path"`
	DataPath       string           `yaml:"data_path"`
	CachePath      string           `yaml:"cache_path"`
	RunInBackground bool            `yaml:"run_in_background"`
	Musimanager    *MusimanagerConfig `yaml:"musimanager,omitempty"`
	Logging        LoggingConfig    `yaml:"logging"`
}

// MusimanagerConfig configures the optional legacy-data importer.
type MusimanagerConfig struct {
	Enable        bool   `yaml:"enable"`
	DBPath        string `yaml:"db_path"`
	MusicPath     string `yaml:"music_path"`
	TempMusicPath string `yaml:"temp_music_path"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	home, _ := os.UserHomeDir()
	base := filepath.Join(home, ".local", "share", "covau")
	return &Config{
		ServerPort:      defaultPort,
		MusicPath:       filepath.Join(base, "music"),
		DataPath:        base,
		CachePath:       filepath.Join(base, "cache"),
		RunInBackground: true,
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load reads config from a YAML file (if it exists) and overrides with
// environment variables. Environment variables take precedence.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if err := cfg.loadFromFile(path); err != nil {
			return nil, fmt.Errorf("loading config file: %w", err)
		}
	}

	cfg.loadFromEnv()
	cfg.expandPaths()

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

func (c *Config) loadFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	return yaml.Unmarshal(data, c)
}

func (c *Config) loadFromEnv() {
	if v := os.Getenv("COVAU_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.ServerPort = port
		}
	}
	if v := os.Getenv("COVAU_MUSIC_PATH"); v != "" {
		c.MusicPath = v
	}
	if v := os.Getenv("COVAU_DATA_PATH"); v != "" {
		c.DataPath = v
	}
	if v := os.Getenv("COVAU_CACHE_PATH"); v != "" {
		c.CachePath = v
	}
	if v := os.Getenv("COVAU_RUN_IN_BACKGROUND"); v != "" {
		c.RunInBackground = v == "1" || strings.EqualFold(v, "true")
	}
	if v := os.Getenv("COVAU_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("COVAU_LOG_FORMAT"); v != "" {
		c.Logging.Format = v
	}
}

// expandPaths resolves a leading "~" to the user's home directory, matching
// spec §6's "Paths undergo ~ expansion".
func (c *Config) expandPaths() {
	c.MusicPath = expandHome(c.MusicPath)
	c.DataPath = expandHome(c.DataPath)
	c.CachePath = expandHome(c.CachePath)
	if c.Musimanager != nil {
		c.Musimanager.DBPath = expandHome(c.Musimanager.DBPath)
		c.Musimanager.MusicPath = expandHome(c.Musimanager.MusicPath)
		c.Musimanager.TempMusicPath = expandHome(c.Musimanager.TempMusicPath)
	}
}

func expandHome(p string) string {
	if p == "" || p[0] != '~' {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	if p == "~" {
		return home
	}
	if strings.HasPrefix(p, "~/") {
		return filepath.Join(home, p[2:])
	}
	return p
}

// DBPath is the SQLite database file location, per spec §6's persisted
// layout: "data_path/db/music.db".
func (c *Config) DBPath() string {
	return filepath.Join(c.DataPath, "db", "music.db")
}

// LogPath is the rotating log directory, per spec §6: "data_path/logs/".
func (c *Config) LogPath() string {
	return filepath.Join(c.DataPath, "logs")
}

// LoggingManagerConfig builds the internal/logging Manager configuration
// for this Config's Logging section, rooting the rotating log file under
// LogPath().
func (c *Config) LoggingManagerConfig() logging.Config {
	cfg := logging.DefaultConfig()
	if c.Logging.Level != "" {
		cfg.Level = c.Logging.Level
	}
	if c.Logging.Format != "" {
		cfg.Format = c.Logging.Format
	}
	cfg.FilePath = filepath.Join(c.LogPath(), "covau.log")
	return cfg
}

func (c *Config) validate() error {
	if c.ServerPort < 1 || c.ServerPort > 65535 {
		return fmt.Errorf("invalid server_port: %d", c.ServerPort)
	}
	if c.MusicPath == "" {
		return fmt.Errorf("music_path is required")
	}
	if c.DataPath == "" {
		return fmt.Errorf("data_path is required")
	}
	if c.Musimanager != nil && c.Musimanager.Enable {
		if c.Musimanager.DBPath == "" {
			return fmt.Errorf("musimanager.db_path is required when musimanager is enabled")
		}
		if _, err := os.Stat(c.Musimanager.DBPath); err != nil {
			return fmt.Errorf("musimanager.db_path: %w", err)
		}
	}
	return nil
}

// EnsureDirs creates the persisted-layout directories on first start, per
// spec §6: "Existence is created on first start."
func (c *Config) EnsureDirs() error {
	for _, dir := range []string{c.MusicPath, c.CachePath, c.LogPath(), filepath.Dir(c.DBPath())} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating %s: %w", dir, err)
		}
	}
	return nil
}
