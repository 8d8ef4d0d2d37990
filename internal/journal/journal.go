package journal

import (
	"context"
	"time"

	logx "sendsim/pkg/logx"
)

// Log pairs the durable store with the aggregate counters: one Record call
// performs the append and the matching counter update together, so the
// accounting covers every processed message exactly once regardless of how
// sender calls interleave.
type Log struct {
	store    Store
	counters *Counters
	log      logx.Logger
}

func NewLog(store Store, counters *Counters, log logx.Logger) *Log {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Log{store: store, counters: counters, log: log}
}

// Record appends rec and updates the counters.
//
// An append failure does not stop the run and does not skip counting: the
// aggregate totals must account for every processed message even when the
// sink misbehaves, so the error is logged and the counter update proceeds.
func (l *Log) Record(ctx context.Context, rec Record) {
	if rec.At.IsZero() {
		rec.At = time.Now()
	}
	if err := l.store.Append(ctx, rec); err != nil {
		l.log.Warn("journal append failed",
			logx.Err(err),
			logx.Int64("message_id", rec.MessageID),
			logx.Int("sender_id", rec.SenderID),
			logx.String("outcome", string(rec.Outcome)),
		)
	}
	l.counters.apply(rec.Outcome, rec.Duration)
}

// Snapshot reads the aggregate counters.
func (l *Log) Snapshot() Snapshot { return l.counters.Snapshot() }

// Total returns the run size the counters were initialized with.
func (l *Log) Total() int64 { return l.counters.Total() }

// Close closes the underlying store.
func (l *Log) Close() error { return l.store.Close() }
