package sender

import (
	"math/rand"
	"testing"
	"time"

	logx "sendsim/pkg/logx"
)

func discardLogger() logx.Logger { return logx.Nop() }

func TestSampleDelayBounds(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		avg    time.Duration
		jitter time.Duration
		lo     time.Duration
		hi     time.Duration
	}{
		{"symmetric range", 5 * time.Second, 3 * time.Second, 2 * time.Second, 8 * time.Second},
		{"jitter exceeds average", 5 * time.Second, 8 * time.Second, 0, 13 * time.Second},
		{"zero delay", 0, 0, 0, 0},
		{"no jitter", 100 * time.Millisecond, 0, 100 * time.Millisecond, 100 * time.Millisecond},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			s := &sender{id: 1, rng: rand.New(rand.NewSource(42)), log: discardLogger()}
			cfg := Config{AvgSendTime: tt.avg, SendTimeJitter: tt.jitter}

			minSeen := time.Duration(1<<63 - 1)
			maxSeen := time.Duration(-1)
			for i := 0; i < 2000; i++ {
				d := s.sampleDelay(cfg)
				if d < tt.lo || d > tt.hi {
					t.Fatalf("sample %d = %v, want within [%v, %v]", i, d, tt.lo, tt.hi)
				}
				if d < minSeen {
					minSeen = d
				}
				if d > maxSeen {
					maxSeen = d
				}
			}
			// A non-degenerate range must actually spread.
			if tt.hi > tt.lo && minSeen == maxSeen {
				t.Fatalf("2000 samples all equal to %v over range [%v, %v]", minSeen, tt.lo, tt.hi)
			}
		})
	}
}
