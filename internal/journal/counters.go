package journal

import (
	"sync/atomic"
	"time"
)

// Counters is the shared aggregate state of one run.
//
// Every update is an outcome increment followed by a remaining decrement,
// each individually atomic. Ordering the pair this way means remaining only
// reaches zero after the final outcome has been counted, so a zero remaining
// always comes with complete sent/failed totals.
type Counters struct {
	total     int64
	sent      atomic.Int64
	failed    atomic.Int64
	remaining atomic.Int64
	sendTime  atomic.Int64 // cumulative sampled delay of sent messages, ns
}

// NewCounters starts remaining at total.
func NewCounters(total int) *Counters {
	c := &Counters{total: int64(total)}
	c.remaining.Store(int64(total))
	return c
}

func (c *Counters) apply(outcome Outcome, d time.Duration) {
	if outcome == OutcomeFailed {
		c.failed.Add(1)
	} else {
		c.sent.Add(1)
		c.sendTime.Add(int64(d))
	}
	c.remaining.Add(-1)
}

// Snapshot is a point-in-time read of the aggregate counts.
type Snapshot struct {
	Sent      int64
	Failed    int64
	Remaining int64

	// AvgSendTime is the mean sampled delay across sent messages so far
	// (zero while nothing has been sent).
	AvgSendTime time.Duration
}

// Snapshot reads the counters. The loads are individually atomic; a read
// racing in-flight updates can be off by the number of concurrent writers,
// and settles to sent+failed+remaining == total once those updates complete.
func (c *Counters) Snapshot() Snapshot {
	s := Snapshot{
		Sent:      c.sent.Load(),
		Failed:    c.failed.Load(),
		Remaining: c.remaining.Load(),
	}
	if s.Sent > 0 {
		s.AvgSendTime = time.Duration(c.sendTime.Load() / s.Sent)
	}
	return s
}

// Total returns the run size the counters were initialized with.
func (c *Counters) Total() int64 { return c.total }
