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
	Engine        EngineConfig        `toml:"engine"`
	Notifications NotificationsConfig `toml:"notifications"`
	Web           WebConfig           `toml:"web"`
}

// GeneralConfig holds general settings
type GeneralConfig struct {
	TaskRoot     string `toml:"task_root"`
	ResultsRoot  string `toml:"results_root"`
	LogsRoot     string `toml:"logs_root"`
	HistoryPath  string `toml:"history_path"`
	SchedulePath string `toml:"schedule_path"`
}

// EngineConfig holds container engine settings
type EngineConfig struct {
	Binary         string        `toml:"binary"`
	DefaultRepoDir string        `toml:"default_repo_dir"`
	BuildTimeout   time.Duration `toml:"build_timeout"`
	ExecTimeout    time.Duration `toml:"exec_timeout"`
	TestTimeout    time.Duration `toml:"test_timeout"`
}

// NotificationsConfig holds notification settings
type NotificationsConfig struct {
	Desktop      bool   `toml:"desktop"`
	SlackWebhook string `toml:"slack_webhook"`
}

// WebConfig holds status server settings
type WebConfig struct {
	Port int    `toml:"port"`
	Host string `toml:"host"`
}

// Default returns a Config with sensible defaults
func Default() *Config {
	return &Config{
		General: GeneralConfig{
			TaskRoot:    "tasks",
			ResultsRoot: "trajectories",
			LogsRoot:    "tests",
		},
		Engine: EngineConfig{
			Binary:         "docker",
			DefaultRepoDir: "/app",
			// Zero means no deadline; a hung engine call then blocks the run.
			BuildTimeout: 0,
			ExecTimeout:  0,
			TestTimeout:  0,
		},
		Notifications: NotificationsConfig{
			Desktop: false,
		},
		Web: WebConfig{
			Port: 8080,
			Host: "127.0.0.1",
		},
	}
}

// Load reads configuration from a TOML file, falling back to defaults
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		// Missing file means defaults, which still need the path
		// normalization below.
	case err != nil:
		return nil, err
	default:
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, err
		}
	}

	// Expand paths
	cfg.General.TaskRoot = ExpandPath(cfg.General.TaskRoot)
	cfg.General.ResultsRoot = ExpandPath(cfg.General.ResultsRoot)
	cfg.General.LogsRoot = ExpandPath(cfg.General.LogsRoot)
	cfg.General.HistoryPath = ExpandPath(cfg.General.HistoryPath)
	cfg.General.SchedulePath = ExpandPath(cfg.General.SchedulePath)

	if cfg.General.HistoryPath == "" {
		cfg.General.HistoryPath = filepath.Join(cfg.General.LogsRoot, "history.db")
	}

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
	return filepath.Join(home, ".config", "swe-verify", "config.toml")
}
