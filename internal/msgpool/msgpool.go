// Package msgpool generates the fixed set of messages a run works through
// and hands them out through a bounded, concurrency-safe queue.
package msgpool

import "sync/atomic"

// nextID is process-wide so consecutive Generate calls never reuse an
// identifier, even across scheduled re-runs sharing one journal.
var nextID atomic.Int64

// Message is one unit of deliverable work. Its terminal status (sent or
// failed) is decided by whichever sender dequeues it and lives in the
// transaction record written for it, exactly once.
type Message struct {
	ID int64
}

// Pool is a drain-once queue of generated messages.
//
// The queue is filled completely at construction and then closed; there are
// no producers afterwards. Take is safe from any number of goroutines and
// never blocks once the pool is drained.
type Pool struct {
	total int
	queue chan Message
}

// Generate creates n messages with unique, strictly increasing identifiers.
// Generation cannot fail; n < 1 yields an already-drained pool.
func Generate(n int) *Pool {
	if n < 0 {
		n = 0
	}
	p := &Pool{total: n, queue: make(chan Message, n)}
	for i := 0; i < n; i++ {
		p.queue <- Message{ID: nextID.Add(1)}
	}
	close(p.queue)
	return p
}

// Take dequeues one message. ok is false once every message has been
// handed out; it never blocks in that state.
func (p *Pool) Take() (msg Message, ok bool) {
	msg, ok = <-p.queue
	return msg, ok
}

// Total returns the number of messages generated for this pool.
func (p *Pool) Total() int { return p.total }

// Queued returns how many messages are still waiting to be taken.
func (p *Pool) Queued() int { return len(p.queue) }
