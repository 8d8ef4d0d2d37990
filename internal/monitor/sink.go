package monitor

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	logx "sendsim/pkg/logx"
)

// Progress is one emitted snapshot. Final marks the single closing summary
// of a completed run.
type Progress struct {
	Sent        int64
	Failed      int64
	Remaining   int64
	AvgSendTime time.Duration
	Elapsed     time.Duration
	Final       bool
}

// Sink receives progress snapshots. Implementations decide presentation;
// the monitor guarantees emissions are sequential (never concurrent).
type Sink interface {
	Emit(p Progress)
}

// MultiSink fans out to every sink in order.
type MultiSink []Sink

func (m MultiSink) Emit(p Progress) {
	for _, s := range m {
		if s != nil {
			s.Emit(p)
		}
	}
}

// ConsoleSink renders progress banners to one writer.
type ConsoleSink struct {
	mu sync.Mutex
	w  io.Writer
}

func NewConsoleSink(w io.Writer) *ConsoleSink {
	if w == nil {
		w = os.Stdout
	}
	return &ConsoleSink{w: w}
}

func (s *ConsoleSink) Emit(p Progress) {
	s.mu.Lock()
	defer s.mu.Unlock()

	header := "Progress Monitor"
	if p.Final {
		header = "Final Summary"
	}
	fmt.Fprintf(s.w, "\n%s\n%s\n", header, strings.Repeat("-", 55))
	fmt.Fprintf(s.w, "Messages Sent:              %d\n", p.Sent)
	fmt.Fprintf(s.w, "Messages Failed:            %d\n", p.Failed)
	fmt.Fprintf(s.w, "Messages Remaining:         %d\n", p.Remaining)
	fmt.Fprintf(s.w, "Average Message Send Time:  %s\n", p.AvgSendTime.Round(time.Millisecond))
	if p.Final {
		fmt.Fprintf(s.w, "Elapsed:                    %s\n", p.Elapsed.Round(time.Millisecond))
	}
}

// LogSink emits structured progress events.
type LogSink struct {
	log logx.Logger
}

func NewLogSink(log logx.Logger) LogSink { return LogSink{log: log} }

func (s LogSink) Emit(p Progress) {
	fields := []logx.Field{
		logx.Int64("sent", p.Sent),
		logx.Int64("failed", p.Failed),
		logx.Int64("remaining", p.Remaining),
		logx.Duration("avg_send_time", p.AvgSendTime),
		logx.Duration("elapsed", p.Elapsed),
	}
	if p.Final {
		s.log.Info("final summary", fields...)
		return
	}
	s.log.Info("progress", fields...)
}

// MemorySink captures emissions for tests and embedding callers.
type MemorySink struct {
	mu    sync.Mutex
	emits []Progress
}

func NewMemorySink() *MemorySink { return &MemorySink{} }

func (s *MemorySink) Emit(p Progress) {
	s.mu.Lock()
	s.emits = append(s.emits, p)
	s.mu.Unlock()
}

// Emissions returns a copy of everything emitted so far.
func (s *MemorySink) Emissions() []Progress {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Progress, len(s.emits))
	copy(out, s.emits)
	return out
}
