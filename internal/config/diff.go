package config

import (
	"sort"
	"strings"

	logx "sendsim/pkg/logx"
)

// SummarizeConfigChange returns (1) a compact list of changed sections and
// (2) structured attrs for logging the new values. Watch mode uses the
// section list to decide whether a reload needs a fresh run (simulator
// sections) or just a logging re-apply.
func SummarizeConfigChange(oldCfg, newCfg *Config) ([]string, []logx.Field) {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}

	changed := make([]string, 0, 6)
	attrs := make([]logx.Field, 0, 16)

	if oldCfg.Producer != newCfg.Producer {
		changed = append(changed, "producer")
		attrs = append(attrs,
			logx.Int("producer.num_messages", newCfg.Producer.NumMessages),
		)
	}

	if oldCfg.Sender != newCfg.Sender {
		changed = append(changed, "sender")
		attrs = append(attrs,
			logx.Int("sender.workers", newCfg.Sender.Workers),
			logx.String("sender.avg_send_time", strings.TrimSpace(newCfg.Sender.AvgSendTime)),
			logx.String("sender.send_time_jitter", strings.TrimSpace(newCfg.Sender.SendTimeJitter)),
			logx.Float64("sender.failure_rate", newCfg.Sender.FailureRate),
			logx.Int("sender.rate_per_sec", newCfg.Sender.RatePerSec),
		)
	}

	if oldCfg.Monitor != newCfg.Monitor {
		changed = append(changed, "monitor")
		attrs = append(attrs,
			logx.String("monitor.refresh", strings.TrimSpace(newCfg.Monitor.Refresh)),
		)
	}

	if oldCfg.Journal != newCfg.Journal {
		changed = append(changed, "journal")
		attrs = append(attrs,
			logx.String("journal.driver", strings.TrimSpace(newCfg.Journal.Driver)),
			logx.Bool("journal.path_set", strings.TrimSpace(newCfg.Journal.Path) != ""),
			logx.String("journal.busy_timeout", strings.TrimSpace(newCfg.Journal.BusyTimeout)),
		)
	}

	if oldCfg.Logging != newCfg.Logging {
		changed = append(changed, "logging")
		attrs = append(attrs,
			logx.String("logx.level", newCfg.Logging.Level),
			logx.Bool("logx.console", newCfg.Logging.Console),
			logx.Bool("logx.file_enabled", newCfg.Logging.File.Enabled),
		)
	}

	if strings.TrimSpace(oldCfg.Schedule) != strings.TrimSpace(newCfg.Schedule) {
		changed = append(changed, "schedule")
		attrs = append(attrs,
			logx.String("schedule", strings.TrimSpace(newCfg.Schedule)),
		)
	}

	sort.Strings(changed)
	return changed, attrs
}

// NeedsNewRun reports whether any changed section requires a fresh
// simulation run (as opposed to a live logging re-apply).
func NeedsNewRun(changed []string) bool {
	for _, s := range changed {
		switch s {
		case "producer", "sender", "monitor", "journal", "schedule":
			return true
		}
	}
	return false
}
