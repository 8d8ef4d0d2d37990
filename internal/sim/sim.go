// Package sim wires one simulation run end to end: message pool, sender
// fleet, progress monitor, and transaction journal.
package sim

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"sendsim/internal/config"
	"sendsim/internal/journal"
	"sendsim/internal/monitor"
	"sendsim/internal/msgpool"
	"sendsim/internal/sender"
	logx "sendsim/pkg/logx"
)

// Result summarizes a completed run.
type Result struct {
	RunID       string
	Total       int
	Sent        int64
	Failed      int64
	AvgSendTime time.Duration
	Elapsed     time.Duration
}

// Option adjusts how a Simulation is wired.
type Option func(*Simulation)

// WithProgressSink routes progress snapshots somewhere other than stdout.
func WithProgressSink(s monitor.Sink) Option {
	return func(sim *Simulation) { sim.sink = s }
}

// WithStore injects the journal sink, bypassing journal.Open. The caller
// keeps ownership: injected stores are not closed by Run.
func WithStore(st journal.Store) Option {
	return func(sim *Simulation) { sim.store = st }
}

type Simulation struct {
	cfg   *config.Config
	log   logx.Logger
	sink  monitor.Sink
	store journal.Store

	senderCfg sender.Config
	refresh   time.Duration
}

// New validates cfg and prepares a run. A configuration error is fatal
// here, before anything starts.
func New(cfg *config.Config, log logx.Logger, opts ...Option) (*Simulation, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if log.IsZero() {
		log = logx.Nop()
	}

	s := &Simulation{cfg: cfg, log: log}
	for _, opt := range opts {
		opt(s)
	}
	if s.sink == nil {
		s.sink = monitor.NewConsoleSink(nil)
	}

	avg, err := config.ParseDurationField("sender.avg_send_time", cfg.Sender.AvgSendTime)
	if err != nil {
		return nil, err
	}
	jitter, err := config.ParseDurationField("sender.send_time_jitter", cfg.Sender.SendTimeJitter)
	if err != nil {
		return nil, err
	}
	refresh, err := config.ParseDurationField("monitor.refresh", cfg.Monitor.Refresh)
	if err != nil {
		return nil, err
	}

	s.senderCfg = sender.Config{
		Workers:        cfg.Sender.Workers,
		AvgSendTime:    avg,
		SendTimeJitter: jitter,
		FailureRate:    cfg.Sender.FailureRate,
		RatePerSec:     cfg.Sender.RatePerSec,
	}
	s.refresh = refresh
	return s, nil
}

// Run executes one complete simulation, blocking until both the sender pool
// and the monitor have terminated. Canceled runs return ctx's error and no
// Result.
func (s *Simulation) Run(ctx context.Context) (*Result, error) {
	runID := uuid.NewString()
	log := s.log.With(logx.String("run_id", runID))
	total := s.cfg.Producer.NumMessages

	store := s.store
	ownStore := false
	if store == nil {
		jcfg, err := s.journalConfig()
		if err != nil {
			return nil, err
		}
		st, err := journal.Open(jcfg, log)
		if err != nil {
			return nil, fmt.Errorf("open journal: %w", err)
		}
		store = st
		ownStore = true
	}

	counters := journal.NewCounters(total)
	jlog := journal.NewLog(store, counters, log)

	start := time.Now()
	log.Info("run started",
		logx.Int("messages", total),
		logx.Int("workers", s.senderCfg.Workers),
		logx.Float64("failure_rate", s.senderCfg.FailureRate),
		logx.Duration("avg_send_time", s.senderCfg.AvgSendTime),
		logx.Duration("send_time_jitter", s.senderCfg.SendTimeJitter),
		logx.Duration("refresh", s.refresh),
	)

	pool := sender.NewPool(s.senderCfg, msgpool.Generate(total), jlog, runID, log)
	mon := monitor.New(s.refresh, jlog, pool, s.sink, log)

	pool.Start(ctx)
	mon.Start(ctx)

	// Both terminate on their own: the pool when the queue drains (or ctx
	// ends), the monitor on the completing tick (or ctx). Wait for both
	// before finalizing.
	<-pool.Done()
	<-mon.Done()

	if ownStore {
		if err := store.Close(); err != nil {
			log.Warn("journal close failed", logx.Err(err))
		}
	}

	if err := ctx.Err(); err != nil {
		log.Warn("run aborted", logx.Err(err), logx.Int64("remaining", jlog.Snapshot().Remaining))
		return nil, err
	}

	// The result is read back entirely from the journal accounting, not from
	// the config that seeded it.
	snap := jlog.Snapshot()
	res := &Result{
		RunID:       runID,
		Total:       int(jlog.Total()),
		Sent:        snap.Sent,
		Failed:      snap.Failed,
		AvgSendTime: snap.AvgSendTime,
		Elapsed:     time.Since(start),
	}

	fields := []logx.Field{
		logx.Int("total", res.Total),
		logx.Int64("sent", res.Sent),
		logx.Int64("failed", res.Failed),
		logx.Duration("avg_send_time", res.AvgSendTime),
		logx.Duration("elapsed", res.Elapsed),
	}
	if res.Failed > 0 {
		log.Warn("run finished with failures", fields...)
	} else {
		log.Info("run finished", fields...)
	}
	return res, nil
}

// Only the sqlite driver reads the busy timeout; five seconds keeps a WAL
// database usable while an external reader holds the lock.
const defaultBusyTimeout = 5 * time.Second

func (s *Simulation) journalConfig() (journal.Config, error) {
	busy, err := config.ParseDurationOrDefault("journal.busy_timeout", s.cfg.Journal.BusyTimeout, defaultBusyTimeout)
	if err != nil {
		return journal.Config{}, err
	}
	return journal.Config{
		Driver:      s.cfg.Journal.Driver,
		Path:        s.cfg.Journal.Path,
		BusyTimeout: busy,
	}, nil
}
