package journal

import (
	"errors"
	"time"
)

var ErrClosed = errors.New("journal store closed")

// Config selects and tunes the journal backend: "file" (append-only JSON
// Lines), "sqlite", or "memory" (in-process buffer for tests and embedders).
// A blank Driver means "file".
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite lock wait; 0 keeps the driver default
}

// Outcome is the terminal status of one processed message.
type Outcome string

const (
	OutcomeSent   Outcome = "sent"
	OutcomeFailed Outcome = "failed"
)

// Record is the transaction entry written exactly once per processed
// message. Field names are the wire schema for both drivers.
type Record struct {
	At        time.Time `json:"at"`
	RunID     string    `json:"run_id"`
	MessageID int64     `json:"message_id"`
	SenderID  int       `json:"sender_id"`
	Outcome   Outcome   `json:"outcome"`

	// Duration is the sampled send delay (nanoseconds on the wire).
	Duration time.Duration `json:"duration_ns"`
}
