package sender

import (
	"context"
	"math/rand"
	"time"

	"sendsim/internal/journal"
	"sendsim/internal/msgpool"
	logx "sendsim/pkg/logx"
)

// sender is one worker of the pool. Each has a stable 1-based id stamped
// into every record it writes and a private RNG, so delay and outcome draws
// never contend across workers.
type sender struct {
	id  int
	rng *rand.Rand
	log logx.Logger
}

func (p *Pool) runSender(ctx context.Context, s *sender) {
	for {
		// fast-exit so cancellation wins over queued work
		select {
		case <-ctx.Done():
			return
		default:
		}

		msg, ok := p.pool.Take()
		if !ok {
			s.log.Debug("queue drained; sender finished")
			return
		}
		if !p.processOne(ctx, s, msg) {
			return
		}
	}
}

// processOne simulates one send: optional rate-limiter wait, the sampled
// delay, the weighted coin flip, then exactly one journal record. Returns
// false when ctx ended mid-send; the in-flight message stays unrecorded,
// which only happens on aborted runs.
func (p *Pool) processOne(ctx context.Context, s *sender, msg msgpool.Message) bool {
	if p.limiter != nil {
		if err := p.limiter.Wait(ctx); err != nil {
			return false
		}
	}

	delay := s.sampleDelay(p.cfg)
	if delay > 0 {
		tmr := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			if !tmr.Stop() {
				<-tmr.C
			}
			return false
		case <-tmr.C:
		}
	}

	outcome := journal.OutcomeSent
	if s.rng.Float64() < p.cfg.FailureRate {
		outcome = journal.OutcomeFailed
	}

	p.journal.Record(ctx, journal.Record{
		At:        time.Now(),
		RunID:     p.runID,
		MessageID: msg.ID,
		SenderID:  s.id,
		Outcome:   outcome,
		Duration:  delay,
	})

	s.log.Debug("message processed",
		logx.Int64("message_id", msg.ID),
		logx.String("outcome", string(outcome)),
		logx.Duration("delay", delay),
	)
	return true
}

// sampleDelay draws uniformly from the inclusive range
// [AvgSendTime-SendTimeJitter, AvgSendTime+SendTimeJitter], flooring the
// lower bound at zero.
func (s *sender) sampleDelay(cfg Config) time.Duration {
	lo := cfg.AvgSendTime - cfg.SendTimeJitter
	if lo < 0 {
		lo = 0
	}
	hi := cfg.AvgSendTime + cfg.SendTimeJitter
	if hi <= lo {
		return lo
	}
	return lo + time.Duration(s.rng.Int63n(int64(hi-lo)+1))
}
