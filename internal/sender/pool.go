// Package sender runs the worker fleet that drains the message pool,
// simulating per-message latency and failures and journaling every outcome.
package sender

import (
	"context"
	"math/rand"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"sendsim/internal/journal"
	"sendsim/internal/msgpool"
	logx "sendsim/pkg/logx"
)

// Config controls the sender fleet for one run.
type Config struct {
	Workers int

	// AvgSendTime and SendTimeJitter bound the simulated per-message delay:
	// each send suspends for a uniform duration drawn from the inclusive
	// range [AvgSendTime-SendTimeJitter, AvgSendTime+SendTimeJitter]. When
	// the jitter exceeds the average the lower bound clamps to zero (warned
	// once per run, never an error).
	AvgSendTime    time.Duration
	SendTimeJitter time.Duration

	// FailureRate is the probability in [0, 1] that a send is recorded as
	// failed. Failures are terminal outcomes, never retried.
	FailureRate float64

	// RatePerSec caps the fleet-wide send rate; 0 means uncapped, keeping
	// the sampled delay as the only blocking operation per message.
	RatePerSec int
}

// Pool owns the senders of one run.
//
// Completion protocol: a sender exits only after the queue hands it nothing
// more, and its last record is written before it exits; done closes only
// after every sender has exited. So IsComplete never reports true while a
// sender is still mid-delay on its final message.
type Pool struct {
	cfg     Config
	pool    *msgpool.Pool
	journal *journal.Log
	limiter *rate.Limiter
	runID   string
	log     logx.Logger

	startOnce sync.Once
	workerWG  sync.WaitGroup
	finished  atomic.Int64
	done      chan struct{}
}

func NewPool(cfg Config, mp *msgpool.Pool, jl *journal.Log, runID string, log logx.Logger) *Pool {
	if log.IsZero() {
		log = logx.Nop()
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}

	var lim *rate.Limiter
	if cfg.RatePerSec > 0 {
		// Burst of one pending send per worker.
		lim = rate.NewLimiter(rate.Limit(cfg.RatePerSec), cfg.Workers)
	}

	if cfg.SendTimeJitter > cfg.AvgSendTime {
		log.Warn("send time jitter exceeds average; delay floor clamped to zero",
			logx.Duration("avg_send_time", cfg.AvgSendTime),
			logx.Duration("send_time_jitter", cfg.SendTimeJitter),
		)
	}

	return &Pool{
		cfg:     cfg,
		pool:    mp,
		journal: jl,
		limiter: lim,
		runID:   runID,
		log:     log,
		done:    make(chan struct{}),
	}
}

// Start launches the senders. Calling it again is a no-op.
func (p *Pool) Start(ctx context.Context) {
	p.startOnce.Do(func() {
		workers := p.cfg.Workers
		seed := time.Now().UnixNano()

		p.workerWG.Add(workers)
		for i := 0; i < workers; i++ {
			s := &sender{
				id:  i + 1,
				rng: rand.New(rand.NewSource(seed + int64(i)*7919)), // distinct stream per worker
				log: p.log.With(logx.Int("sender", i+1)),
			}
			go func() {
				defer p.workerWG.Done()
				defer func() {
					if r := recover(); r != nil {
						p.log.Error("panic in sender",
							logx.Int("sender", s.id),
							logx.Any("panic", r),
							logx.Stack(string(debug.Stack())),
						)
					}
				}()
				s.log.Debug("sender started")
				p.runSender(ctx, s)
				p.finished.Add(1)
				s.log.Debug("sender stopped")
			}()
		}

		go func() {
			p.workerWG.Wait()
			close(p.done)
		}()

		p.log.Info("sender pool started",
			logx.Int("workers", workers),
			logx.Int("rate_per_sec", p.cfg.RatePerSec),
		)
	})
}

// IsComplete reports whether the queue is drained and every sender has
// finished. Both must hold: after a canceled run senders exit with work
// still queued, which is not completion.
func (p *Pool) IsComplete() bool {
	select {
	case <-p.done:
		return p.pool.Queued() == 0
	default:
		return false
	}
}

// Done is closed once every sender has exited.
func (p *Pool) Done() <-chan struct{} { return p.done }

// Wait blocks until every sender has exited or ctx ends.
func (p *Pool) Wait(ctx context.Context) error {
	select {
	case <-p.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Finished reports how many senders have exited so far.
func (p *Pool) Finished() int { return int(p.finished.Load()) }
