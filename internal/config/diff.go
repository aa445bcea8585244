package config

import (
	"reflect"
	"strings"

	logx "cronlite/pkg/logx"
)

// Change summarizes what differs between two configs.
type Change struct {
	Sections []string
	Fields   []logx.Field

	TimezoneChanged bool
	LoggingChanged  bool
	// JobsChanged means the job set differs; registrations are fixed for a run,
	// so applying it requires a restart.
	JobsChanged bool
}

func (c Change) Empty() bool { return len(c.Sections) == 0 }

// SummarizeConfigChange compares oldCfg to newCfg for hot-reload decisions and logging.
func SummarizeConfigChange(oldCfg, newCfg *Config) Change {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}
	var ch Change

	if strings.TrimSpace(oldCfg.Timezone) != strings.TrimSpace(newCfg.Timezone) {
		ch.TimezoneChanged = true
		ch.Sections = append(ch.Sections, "timezone")
		ch.Fields = append(ch.Fields, logx.String("timezone", strings.TrimSpace(newCfg.Timezone)))
	}

	if oldCfg.Logging != newCfg.Logging {
		ch.LoggingChanged = true
		ch.Sections = append(ch.Sections, "logging")
		ch.Fields = append(ch.Fields,
			logx.String("logx.level", newCfg.Logging.Level),
			logx.Bool("logx.console", newCfg.Logging.Console),
			logx.Bool("logx.file_enabled", newCfg.Logging.File.Enabled),
			logx.Bool("logx.alert_enabled", newCfg.Logging.Alert.Enabled),
		)
	}

	if !reflect.DeepEqual(oldCfg.Jobs, newCfg.Jobs) {
		ch.JobsChanged = true
		ch.Sections = append(ch.Sections, "jobs")
		ch.Fields = append(ch.Fields,
			logx.Int("jobs.before", len(oldCfg.Jobs)),
			logx.Int("jobs.after", len(newCfg.Jobs)),
		)
	}
	return ch
}
