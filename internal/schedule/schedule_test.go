package schedule

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	logx "sendsim/pkg/logx"
)

func TestParseSpecVariants(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name     string
		raw      string
		kind     SpecKind
		source   string
		duration time.Duration
	}{
		{name: "cron", raw: "*/5 * * * *", kind: SpecCron, source: "cron"},
		{name: "prefixed cron", raw: "cron:0 0 * * *", kind: SpecCron, source: "cron"},
		{name: "descriptor", raw: "@hourly", kind: SpecCron, source: "cron"},
		{name: "at every", raw: "@every 55m", kind: SpecCron, source: "cron"},
		{name: "duration", raw: "10m", kind: SpecInterval, source: "duration", duration: 10 * time.Minute},
		{name: "compound duration", raw: "1h30m", kind: SpecInterval, source: "duration", duration: 90 * time.Minute},
		{name: "prefixed interval", raw: "interval:45s", kind: SpecInterval, source: "duration", duration: 45 * time.Second},
		{name: "prefixed every", raw: "every:90s", kind: SpecInterval, source: "duration", duration: 90 * time.Second},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := ParseSpec(tt.raw)
			if err != nil {
				t.Fatalf("ParseSpec(%q) error: %v", tt.raw, err)
			}
			if got.Kind != tt.kind {
				t.Fatalf("Kind = %v, want %v", got.Kind, tt.kind)
			}
			if got.Source != tt.source {
				t.Fatalf("Source = %s, want %s", got.Source, tt.source)
			}
			if tt.kind == SpecInterval && got.Every != tt.duration {
				t.Fatalf("Every = %v, want %v", got.Every, tt.duration)
			}
		})
	}
}

func TestParseSpecInvalid(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		raw  string
	}{
		{name: "empty", raw: ""},
		{name: "whitespace", raw: "   "},
		{name: "gibberish", raw: "not-a-schedule"},
		{name: "below one second", raw: "500ms"},
		{name: "empty cron prefix", raw: "cron:"},
		{name: "empty interval prefix", raw: "interval:"},
		{name: "bad cron field", raw: "61 * * * *"},
		{name: "six fields", raw: "* * * * * *"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if _, err := ParseSpec(tt.raw); err == nil {
				t.Fatalf("ParseSpec(%q) accepted an invalid schedule", tt.raw)
			}
		})
	}
}

func TestFireSkipsOverlap(t *testing.T) {
	t.Parallel()

	s := New(Spec{Kind: SpecInterval, Every: time.Second}, logx.Nop())

	entered := make(chan struct{})
	release := make(chan struct{})
	var runs atomic.Int32

	ctx := context.Background()
	slow := func(context.Context) error {
		runs.Add(1)
		close(entered)
		<-release
		return nil
	}

	firstDone := make(chan struct{})
	go func() {
		s.fire(ctx, slow)
		close(firstDone)
	}()

	select {
	case <-entered:
	case <-time.After(time.Second):
		t.Fatal("first firing never started")
	}

	// Second firing lands while the first is still active; it must be
	// skipped without blocking.
	doneOverlap := make(chan struct{})
	go func() {
		s.fire(ctx, func(context.Context) error {
			runs.Add(1)
			return nil
		})
		close(doneOverlap)
	}()
	select {
	case <-doneOverlap:
	case <-time.After(time.Second):
		t.Fatal("overlapping firing blocked instead of skipping")
	}
	if got := runs.Load(); got != 1 {
		t.Fatalf("runs = %d after overlap, want 1", got)
	}

	close(release)
	select {
	case <-firstDone:
	case <-time.After(time.Second):
		t.Fatal("first firing never finished")
	}

	// With the first run finished the next firing goes through again.
	s.fire(ctx, func(context.Context) error {
		runs.Add(1)
		return nil
	})
	if got := runs.Load(); got != 2 {
		t.Fatalf("runs = %d after release, want 2", got)
	}
}

func TestFireIgnoresCanceledContext(t *testing.T) {
	t.Parallel()

	s := New(Spec{Kind: SpecInterval, Every: time.Second}, logx.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ran := false
	s.fire(ctx, func(context.Context) error {
		ran = true
		return nil
	})
	if ran {
		t.Fatal("fire ran the job on a canceled context")
	}
}

func TestSchedulerFiresAndStops(t *testing.T) {
	t.Parallel()

	spec, err := ParseSpec("1s")
	if err != nil {
		t.Fatalf("ParseSpec: %v", err)
	}
	s := New(spec, logx.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	var fired atomic.Int32
	if err := s.Start(ctx, func(context.Context) error {
		fired.Add(1)
		return errors.New("boom") // errors must not stop the schedule
	}); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := s.Start(ctx, func(context.Context) error { return nil }); err == nil {
		t.Fatal("second Start did not report already started")
	}

	deadline := time.Now().Add(5 * time.Second)
	for fired.Load() < 2 {
		if time.Now().After(deadline) {
			t.Fatalf("only %d firings before deadline, want >= 2", fired.Load())
		}
		time.Sleep(20 * time.Millisecond)
	}

	s.Stop()
	settled := fired.Load()
	time.Sleep(1200 * time.Millisecond)
	if got := fired.Load(); got != settled {
		t.Fatalf("scheduler fired after Stop: %d -> %d", settled, got)
	}
	s.Stop() // idempotent
}

func TestStopWaitsForInFlightRun(t *testing.T) {
	t.Parallel()

	spec, err := ParseSpec("1s")
	if err != nil {
		t.Fatalf("ParseSpec: %v", err)
	}
	s := New(spec, logx.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	entered := make(chan struct{})
	var finished atomic.Bool
	if err := s.Start(ctx, func(context.Context) error {
		close(entered)
		time.Sleep(300 * time.Millisecond)
		finished.Store(true)
		return nil
	}); err != nil {
		t.Fatalf("Start: %v", err)
	}

	select {
	case <-entered:
	case <-time.After(5 * time.Second):
		t.Fatal("job never fired")
	}

	s.Stop()
	if !finished.Load() {
		t.Fatal("Stop returned before the in-flight run finished")
	}
}
