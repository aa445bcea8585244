package config

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"cronlite/internal/cronexpr"
)

// Config is the daemon configuration (JSON, or YAML by file extension).
//
// Example (YAML):
//
//	timezone: Asia/Jakarta
//	logging:
//	  level: info
//	  console: true
//	jobs:
//	  - name: backup
//	    cron: "0 3 * * *"
//	    command: /usr/local/bin/backup
//	    args: ["--fast"]
//	    timeout: 30m
type Config struct {
	// Timezone is an IANA name used for every next-fire computation.
	// Empty means UTC. Hot-reloadable.
	Timezone string        `json:"timezone,omitempty"`
	Logging  LoggingConfig `json:"logging"`
	Jobs     []JobConfig   `json:"jobs"`
}

type LoggingConfig struct {
	Level   string       `json:"level"`
	Console bool         `json:"console"`
	File    LoggingFile  `json:"file"`
	Alert   LoggingAlert `json:"alert"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// LoggingAlert mirrors high-severity log lines to stderr, rate limited.
type LoggingAlert struct {
	Enabled    bool   `json:"enabled"`
	MinLevel   string `json:"min_level"`
	RatePerSec int    `json:"rate_per_sec"`
}

// JobConfig describes one command run on a cron schedule.
//
// Until is an optional RFC3339 cutoff. Timeout is a Go duration string bounding
// a single command run; the scheduler itself never interrupts a run.
type JobConfig struct {
	Name    string            `json:"name"`
	Cron    string            `json:"cron"`
	Until   string            `json:"until,omitempty"`
	Command string            `json:"command"`
	Args    []string          `json:"args,omitempty"`
	Dir     string            `json:"dir,omitempty"`
	Env     map[string]string `json:"env,omitempty"`
	Timeout string            `json:"timeout,omitempty"`
}

// UntilTime parses Until; the zero time means no cutoff.
func (j JobConfig) UntilTime() (time.Time, error) {
	s := strings.TrimSpace(j.Until)
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("jobs[%s].until: invalid RFC3339 time %q: %w", j.Name, j.Until, err)
	}
	return t, nil
}

// TimeoutDuration parses Timeout; 0 disables the per-run timeout.
func (j JobConfig) TimeoutDuration() (time.Duration, error) {
	return ParseDurationField("jobs["+j.Name+"].timeout", j.Timeout)
}

// Validate checks everything that would otherwise only fail at registration.
func (c *Config) Validate() error {
	if c == nil {
		return fmt.Errorf("config is nil")
	}
	if _, err := cronexpr.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("timezone: %w", err)
	}
	seen := make(map[string]struct{}, len(c.Jobs))
	for i, j := range c.Jobs {
		name := strings.TrimSpace(j.Name)
		if name == "" {
			return fmt.Errorf("jobs[%d].name: required", i)
		}
		if _, dup := seen[name]; dup {
			return fmt.Errorf("jobs[%d].name: duplicate %q", i, name)
		}
		seen[name] = struct{}{}
		if _, err := cronexpr.Parse(j.Cron); err != nil {
			return fmt.Errorf("jobs[%s].cron: %w", name, err)
		}
		if strings.TrimSpace(j.Command) == "" {
			return fmt.Errorf("jobs[%s].command: required", name)
		}
		if _, err := j.UntilTime(); err != nil {
			return err
		}
		if _, err := j.TimeoutDuration(); err != nil {
			return err
		}
	}
	return nil
}

// String renders the config as indented JSON (for `--print-config` style output).
func (c *Config) String() string {
	b, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return "<invalid config>"
	}
	return string(b)
}
