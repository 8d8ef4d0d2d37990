package sim

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"sendsim/internal/config"
	"sendsim/internal/journal"
	"sendsim/internal/monitor"
	logx "sendsim/pkg/logx"
)

func testConfig(total, workers int, failureRate float64) *config.Config {
	cfg := config.Default()
	cfg.Producer.NumMessages = total
	cfg.Sender.Workers = workers
	cfg.Sender.AvgSendTime = "0s"
	cfg.Sender.SendTimeJitter = "0s"
	cfg.Sender.FailureRate = failureRate
	cfg.Monitor.Refresh = "10ms"
	cfg.Journal.Driver = "memory"
	return cfg
}

func runOne(t *testing.T, cfg *config.Config) (*Result, *journal.MemoryStore, *monitor.MemorySink) {
	t.Helper()

	store := journal.NewMemoryStore()
	sink := monitor.NewMemorySink()

	s, err := New(cfg, logx.Nop(), WithStore(store), WithProgressSink(sink))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	t.Cleanup(cancel)

	res, err := s.Run(ctx)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	return res, store, sink
}

func TestRunDeliversEverything(t *testing.T) {
	t.Parallel()

	res, store, sink := runOne(t, testConfig(10, 1, 0))

	if res.RunID == "" {
		t.Fatal("result has no run id")
	}
	if res.Total != 10 {
		t.Fatalf("result total = %d, want 10", res.Total)
	}
	if res.Sent != 10 || res.Failed != 0 {
		t.Fatalf("result sent=%d failed=%d, want 10/0", res.Sent, res.Failed)
	}
	if got := store.Len(); got != 10 {
		t.Fatalf("journal holds %d records, want 10", got)
	}
	for _, rec := range store.Records() {
		if rec.RunID != res.RunID {
			t.Fatalf("record carries run id %q, want %q", rec.RunID, res.RunID)
		}
		if rec.Outcome != journal.OutcomeSent {
			t.Fatalf("record outcome = %q, want %q", rec.Outcome, journal.OutcomeSent)
		}
	}

	var finals int
	for _, p := range sink.Emissions() {
		if p.Final {
			finals++
			if p.Sent != 10 || p.Failed != 0 || p.Remaining != 0 {
				t.Fatalf("final summary = %+v, want 10 sent / 0 failed / 0 remaining", p)
			}
		}
	}
	if finals != 1 {
		t.Fatalf("got %d final summaries, want exactly 1", finals)
	}
}

func TestRunAllAttemptsFail(t *testing.T) {
	t.Parallel()

	res, store, _ := runOne(t, testConfig(100, 10, 1))

	if res.Sent != 0 || res.Failed != 100 {
		t.Fatalf("result sent=%d failed=%d, want 0/100", res.Sent, res.Failed)
	}
	if got := store.Len(); got != 100 {
		t.Fatalf("journal holds %d records, want 100", got)
	}
}

func TestRunRecordsEachMessageOnce(t *testing.T) {
	t.Parallel()

	res, store, _ := runOne(t, testConfig(300, 8, 0.5))

	if res.Total != 300 {
		t.Fatalf("result total = %d, want 300", res.Total)
	}
	if res.Sent+res.Failed != int64(res.Total) {
		t.Fatalf("sent+failed = %d, want %d", res.Sent+res.Failed, res.Total)
	}
	seen := make(map[int64]bool, 300)
	for _, rec := range store.Records() {
		if seen[rec.MessageID] {
			t.Fatalf("message %d recorded twice", rec.MessageID)
		}
		seen[rec.MessageID] = true
	}
	if len(seen) != 300 {
		t.Fatalf("journal covers %d distinct messages, want 300", len(seen))
	}
}

func TestRunTwiceKeepsMessageIDsDistinct(t *testing.T) {
	t.Parallel()

	cfg := testConfig(50, 4, 0)
	store := journal.NewMemoryStore()

	s, err := New(cfg, logx.Nop(), WithStore(store), WithProgressSink(monitor.NewMemorySink()))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	t.Cleanup(cancel)

	first, err := s.Run(ctx)
	if err != nil {
		t.Fatalf("first Run: %v", err)
	}
	second, err := s.Run(ctx)
	if err != nil {
		t.Fatalf("second Run: %v", err)
	}
	if first.RunID == second.RunID {
		t.Fatalf("both runs share run id %q", first.RunID)
	}

	seen := make(map[int64]string, 100)
	for _, rec := range store.Records() {
		if prev, ok := seen[rec.MessageID]; ok {
			t.Fatalf("message %d appears in runs %q and %q", rec.MessageID, prev, rec.RunID)
		}
		seen[rec.MessageID] = rec.RunID
	}
	if len(seen) != 100 {
		t.Fatalf("journal covers %d distinct messages across runs, want 100", len(seen))
	}
}

func TestRunWritesFileJournal(t *testing.T) {
	t.Parallel()

	cfg := testConfig(10, 2, 0)
	cfg.Journal.Driver = "file"
	cfg.Journal.Path = filepath.Join(t.TempDir(), "run.jsonl")

	s, err := New(cfg, logx.Nop(), WithProgressSink(monitor.NewMemorySink()))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	t.Cleanup(cancel)

	if _, err := s.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}

	raw, err := os.ReadFile(cfg.Journal.Path)
	if err != nil {
		t.Fatalf("read journal: %v", err)
	}
	lines := bytes.Split(bytes.TrimSpace(raw), []byte("\n"))
	if len(lines) != 10 {
		t.Fatalf("journal file holds %d lines, want 10", len(lines))
	}
}

func TestRunCanceledReturnsNoResult(t *testing.T) {
	t.Parallel()

	cfg := testConfig(1000, 2, 0)
	cfg.Sender.AvgSendTime = "50ms"
	cfg.Sender.SendTimeJitter = "0s"
	cfg.Monitor.Refresh = "1s"

	sink := monitor.NewMemorySink()
	s, err := New(cfg, logx.Nop(), WithStore(journal.NewMemoryStore()), WithProgressSink(sink))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(30 * time.Millisecond)
		cancel()
	}()

	res, err := s.Run(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Run error = %v, want context.Canceled", err)
	}
	if res != nil {
		t.Fatalf("canceled run returned result %+v", res)
	}
	for _, p := range sink.Emissions() {
		if p.Final {
			t.Fatal("canceled run emitted a final summary")
		}
	}
}

func TestJournalConfigBusyTimeout(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		raw  string
		want time.Duration
	}{
		{name: "blank gets the default", raw: "", want: defaultBusyTimeout},
		{name: "explicit value wins", raw: "250ms", want: 250 * time.Millisecond},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := testConfig(10, 1, 0)
			cfg.Journal.Driver = "sqlite"
			cfg.Journal.BusyTimeout = tt.raw

			s, err := New(cfg, logx.Nop())
			if err != nil {
				t.Fatalf("New: %v", err)
			}
			jcfg, err := s.journalConfig()
			if err != nil {
				t.Fatalf("journalConfig: %v", err)
			}
			if jcfg.BusyTimeout != tt.want {
				t.Fatalf("busy_timeout = %v, want %v", jcfg.BusyTimeout, tt.want)
			}
		})
	}
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(*config.Config)
	}{
		{"zero messages", func(c *config.Config) { c.Producer.NumMessages = 0 }},
		{"negative messages", func(c *config.Config) { c.Producer.NumMessages = -5 }},
		{"zero workers", func(c *config.Config) { c.Sender.Workers = 0 }},
		{"failure rate above one", func(c *config.Config) { c.Sender.FailureRate = 1.5 }},
		{"negative failure rate", func(c *config.Config) { c.Sender.FailureRate = -0.1 }},
		{"negative send time", func(c *config.Config) { c.Sender.AvgSendTime = "-1s" }},
		{"zero refresh", func(c *config.Config) { c.Monitor.Refresh = "0s" }},
		{"unknown journal driver", func(c *config.Config) { c.Journal.Driver = "etcd" }},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := testConfig(10, 1, 0)
			tt.mutate(cfg)
			if _, err := New(cfg, logx.Nop()); err == nil {
				t.Fatal("New accepted an invalid config")
			}
		})
	}
}
