// Package schedule re-runs the simulation on a timer ("soak" mode).
package schedule

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	logx "sendsim/pkg/logx"
)

// SpecKind is the normalized form of a schedule string: a cron expression
// or a fixed interval. Nothing richer is needed for re-running one job.
type SpecKind int

const (
	SpecCron SpecKind = iota
	SpecInterval
)

// Spec is a parsed schedule string. Accepted inputs are a bare duration
// ("30m"), a five-field cron expression or descriptor ("*/5 * * * *",
// "@hourly", "@every 55m"), or either form made explicit with a "cron:",
// "every:", or "interval:" prefix.
type Spec struct {
	Kind   SpecKind
	Cron   string
	Every  time.Duration
	Source string // "cron" | "duration"
}

var specParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// ParseSpec parses a schedule string into either a cron expression or an
// interval duration. Cron expressions are validated here, so a bad schedule
// is refused before anything runs.
func ParseSpec(raw string) (Spec, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return Spec{}, fmt.Errorf("schedule required")
	}

	if expr, ok := cutPrefixFold(s, "cron:"); ok {
		if expr == "" {
			return Spec{}, fmt.Errorf("cron schedule required after 'cron:'")
		}
		return cronSpec(expr)
	}
	if v, ok := cutPrefixFold(s, "interval:"); ok {
		return intervalSpec(v)
	}
	if v, ok := cutPrefixFold(s, "every:"); ok {
		return intervalSpec(v)
	}

	// Unprefixed: whitespace or a leading '@' reads as cron ("@every 1h"
	// included); a single token reads as a duration.
	if strings.ContainsAny(s, " \t\n\r") || strings.HasPrefix(s, "@") {
		return cronSpec(s)
	}
	return intervalSpec(s)
}

// cutPrefixFold strips a case-insensitive prefix, trimming what remains.
func cutPrefixFold(s, prefix string) (string, bool) {
	if len(s) < len(prefix) || !strings.EqualFold(s[:len(prefix)], prefix) {
		return "", false
	}
	return strings.TrimSpace(s[len(prefix):]), true
}

func cronSpec(expr string) (Spec, error) {
	if _, err := specParser.Parse(expr); err != nil {
		return Spec{}, fmt.Errorf("invalid cron schedule %q: %w", expr, err)
	}
	return Spec{Kind: SpecCron, Cron: expr, Source: "cron"}, nil
}

func intervalSpec(v string) (Spec, error) {
	if v == "" {
		return Spec{}, fmt.Errorf("interval required")
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return Spec{}, fmt.Errorf(
			"invalid schedule %q (use cron like '*/5 * * * *' or a duration like '30m')", v)
	}
	if d < time.Second {
		return Spec{}, fmt.Errorf("interval must be >= 1s")
	}
	return Spec{Kind: SpecInterval, Every: d, Source: "duration"}, nil
}

// Scheduler fires one job on a fixed schedule. A firing that lands while the
// previous run is still active is skipped, not queued.
type Scheduler struct {
	log  logx.Logger
	spec Spec

	mu sync.Mutex
	c  *cron.Cron

	busy sync.Mutex
}

func New(spec Spec, log logx.Logger) *Scheduler {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Scheduler{log: log, spec: spec}
}

// Start registers fn and begins firing. fn's error is logged, not returned:
// a failed run never stops the schedule.
func (s *Scheduler) Start(ctx context.Context, fn func(context.Context) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.c != nil {
		return fmt.Errorf("scheduler already started")
	}

	expr := s.spec.Cron
	if s.spec.Kind == SpecInterval {
		expr = fmt.Sprintf("@every %s", s.spec.Every.String())
	}

	c := cron.New(cron.WithParser(specParser))
	if _, err := c.AddFunc(expr, func() { s.fire(ctx, fn) }); err != nil {
		return fmt.Errorf("register schedule %q: %w", expr, err)
	}
	c.Start()
	s.c = c

	if entries := c.Entries(); len(entries) > 0 {
		s.log.Info("scheduler started",
			logx.String("schedule", expr),
			logx.Time("next_run", entries[0].Next),
		)
	}
	return nil
}

func (s *Scheduler) fire(ctx context.Context, fn func(context.Context) error) {
	if ctx.Err() != nil {
		return
	}
	if !s.busy.TryLock() {
		s.log.Warn("previous run still active, skipping this firing")
		return
	}
	defer s.busy.Unlock()

	if err := fn(ctx); err != nil {
		s.log.Warn("scheduled run failed", logx.Err(err))
	}
}

// Stop halts firing and waits for any in-flight run to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.c == nil {
		return
	}
	<-s.c.Stop().Done()
	s.c = nil
	s.log.Info("scheduler stopped")
}
