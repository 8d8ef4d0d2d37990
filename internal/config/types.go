package config

import (
	"fmt"
	"strings"
)

type Config struct {
	Producer ProducerConfig `json:"producer"`
	Sender   SenderConfig   `json:"sender"`
	Monitor  MonitorConfig  `json:"monitor"`
	Journal  JournalConfig  `json:"journal,omitempty"`
	Logging  LoggingConfig  `json:"logging,omitempty"`

	// Schedule optionally re-runs the simulation on a timer ("soak" mode).
	// Accepts a Go duration ("30m"), an "every:"/"interval:" prefix, an
	// "@every" spec, or a 5-field cron expression. Empty means run once.
	Schedule string `json:"schedule,omitempty"`
}

// ProducerConfig sizes the message pool generated at the start of a run.
type ProducerConfig struct {
	NumMessages int `json:"num_messages"`
}

// SenderConfig controls the sender fleet.
//
// All durations are Go duration strings (e.g. "500ms", "2s").
//
// The per-message delay is sampled uniformly from the inclusive range
// [avg_send_time - send_time_jitter, avg_send_time + send_time_jitter].
// If the jitter exceeds the average, the lower bound clamps to zero (a
// warning is logged once per run).
type SenderConfig struct {
	Workers        int    `json:"workers"`
	AvgSendTime    string `json:"avg_send_time"`
	SendTimeJitter string `json:"send_time_jitter,omitempty"`

	// FailureRate is the probability in [0, 1] that a simulated send is
	// recorded as failed. Failures are terminal; nothing is retried.
	FailureRate float64 `json:"failure_rate"`

	// RatePerSec caps the fleet-wide send rate. 0 disables the cap so the
	// sampled delay stays the only blocking operation per message.
	RatePerSec int `json:"rate_per_sec,omitempty"`
}

// MonitorConfig controls the progress monitor.
type MonitorConfig struct {
	// Refresh is the tick interval between progress snapshots
	// (Go duration string, must be > 0).
	Refresh string `json:"refresh"`
}

// JournalConfig controls where transaction records are persisted.
//
// Example:
//
//	"journal": { "driver": "file", "path": "./sendsim.journal" }
type JournalConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // sqlite lock wait; blank defaults to 5s
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// Default returns the config written by `sendsim -init` and used as the
// baseline for examples. Simulator fields still pass Validate on their own.
func Default() *Config {
	return &Config{
		Producer: ProducerConfig{NumMessages: 1000},
		Sender: SenderConfig{
			Workers:        10,
			AvgSendTime:    "100ms",
			SendTimeJitter: "50ms",
			FailureRate:    0.1,
		},
		Monitor: MonitorConfig{Refresh: "1s"},
		Journal: JournalConfig{Driver: "file", Path: "./sendsim.journal"},
		Logging: LoggingConfig{Level: "info", Console: true, File: LoggingFile{Path: "./sendsim.log"}},
	}
}

// Validate checks every simulator parameter before anything starts.
// A non-nil error here is fatal: the run must not begin with undefined
// parameters.
func (c *Config) Validate() error {
	if c == nil {
		return fmt.Errorf("config is nil")
	}
	if c.Producer.NumMessages < 1 {
		return fmt.Errorf("producer.num_messages must be >= 1")
	}
	if c.Sender.Workers < 1 {
		return fmt.Errorf("sender.workers must be >= 1")
	}
	if _, err := ParseDurationField("sender.avg_send_time", c.Sender.AvgSendTime); err != nil {
		return err
	}
	if _, err := ParseDurationField("sender.send_time_jitter", c.Sender.SendTimeJitter); err != nil {
		return err
	}
	if c.Sender.FailureRate < 0 || c.Sender.FailureRate > 1 {
		return fmt.Errorf("sender.failure_rate must be within [0, 1]")
	}
	if c.Sender.RatePerSec < 0 {
		return fmt.Errorf("sender.rate_per_sec must be >= 0")
	}
	refresh, err := ParseDurationField("monitor.refresh", c.Monitor.Refresh)
	if err != nil {
		return err
	}
	if refresh <= 0 {
		return fmt.Errorf("monitor.refresh must be > 0")
	}
	switch strings.TrimSpace(strings.ToLower(c.Journal.Driver)) {
	case "", "file", "sqlite", "memory":
	default:
		return fmt.Errorf("journal.driver must be one of file, sqlite, memory")
	}
	if _, err := ParseDurationField("journal.busy_timeout", c.Journal.BusyTimeout); err != nil {
		return err
	}
	return nil
}
