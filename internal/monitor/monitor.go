// Package monitor observes a run: on every refresh tick it reads the
// aggregate counters, emits a progress snapshot, and finishes with exactly
// one final summary once the sender pool reports completion.
package monitor

import (
	"context"
	"runtime/debug"
	"sync"
	"time"

	"sendsim/internal/journal"
	logx "sendsim/pkg/logx"
)

// StatsSource is the counter view the monitor reads. journal.Log satisfies it.
type StatsSource interface {
	Snapshot() journal.Snapshot
}

// Completion reports whether the run has finished. sender.Pool satisfies it.
type Completion interface {
	IsComplete() bool
}

// Monitor is a pure observer: it never blocks or influences sender progress.
//
// Lifecycle is tick-driven only. On each tick it emits a snapshot, then
// checks completion; when complete it emits the final summary and stops.
// Context cancellation aborts the loop without a final summary.
type Monitor struct {
	refresh time.Duration
	stats   StatsSource
	run     Completion
	sink    Sink
	log     logx.Logger

	startOnce sync.Once
	done      chan struct{}
}

func New(refresh time.Duration, stats StatsSource, run Completion, sink Sink, log logx.Logger) *Monitor {
	if refresh <= 0 {
		refresh = time.Second
	}
	if sink == nil {
		sink = MultiSink{}
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Monitor{
		refresh: refresh,
		stats:   stats,
		run:     run,
		sink:    sink,
		log:     log,
		done:    make(chan struct{}),
	}
}

// Start launches the observer loop. Calling it again is a no-op.
func (m *Monitor) Start(ctx context.Context) {
	m.startOnce.Do(func() {
		go func() {
			defer close(m.done)
			defer func() {
				if r := recover(); r != nil {
					m.log.Error("panic in monitor",
						logx.Any("panic", r),
						logx.Stack(string(debug.Stack())),
					)
				}
			}()
			m.loop(ctx)
		}()
	})
}

func (m *Monitor) loop(ctx context.Context) {
	m.log.Debug("monitor started", logx.Duration("refresh", m.refresh))
	start := time.Now()

	ticker := time.NewTicker(m.refresh)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.log.Debug("monitor canceled before completion")
			return
		case <-ticker.C:
			m.sink.Emit(progressOf(m.stats.Snapshot(), time.Since(start), false))
			if !m.run.IsComplete() {
				continue
			}
			// All senders have exited, so this read is exact.
			m.sink.Emit(progressOf(m.stats.Snapshot(), time.Since(start), true))
			m.log.Debug("monitor stopped")
			return
		}
	}
}

// Done is closed once the monitor has stopped (final summary emitted or
// canceled).
func (m *Monitor) Done() <-chan struct{} { return m.done }

// Wait blocks until the monitor has stopped or ctx ends.
func (m *Monitor) Wait(ctx context.Context) error {
	select {
	case <-m.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func progressOf(snap journal.Snapshot, elapsed time.Duration, final bool) Progress {
	return Progress{
		Sent:        snap.Sent,
		Failed:      snap.Failed,
		Remaining:   snap.Remaining,
		AvgSendTime: snap.AvgSendTime,
		Elapsed:     elapsed,
		Final:       final,
	}
}
