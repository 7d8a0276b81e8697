// Package batch schedules recurring verification runs from a TOML
// schedule file.
package batch

import (
	"fmt"
	"os"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// RunConfig is one scheduled verification run.
type RunConfig struct {
	Name        string        `toml:"name"`
	Cron        string        `toml:"cron"`
	OnlyTaskIDs string        `toml:"only_task_ids"`
	Limit       int           `toml:"limit"`
	MaxDuration time.Duration `toml:"max_duration"`
	Notify      bool          `toml:"notify"`
}

// ScheduleConfig holds all scheduled runs.
type ScheduleConfig struct {
	Runs []RunConfig `toml:"run"`
}

// Validate checks if the config is valid
func (c *RunConfig) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("run name is required")
	}
	if c.Cron == "" {
		return fmt.Errorf("cron expression is required")
	}
	if _, err := ParseCron(c.Cron); err != nil {
		return fmt.Errorf("invalid cron expression: %w", err)
	}
	if c.MaxDuration <= 0 {
		c.MaxDuration = 8 * time.Hour // Default
	}
	return nil
}

// LoadScheduleConfig loads the schedule from a TOML file
func LoadScheduleConfig(path string) (*ScheduleConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &ScheduleConfig{}, nil
		}
		return nil, err
	}

	var cfg ScheduleConfig
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	for i := range cfg.Runs {
		if err := cfg.Runs[i].Validate(); err != nil {
			return nil, fmt.Errorf("run %d: %w", i, err)
		}
	}

	return &cfg, nil
}
