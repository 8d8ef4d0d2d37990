package app

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
)

// Starter config written by `sendsim -init`. Values match config.Default().
const initConfig = `# sendsim configuration.
#
# Durations are Go duration strings ("500ms", "2s", "1m30s").

producer:
  num_messages: 1000

sender:
  workers: 10
  avg_send_time: "100ms"
  # Per-message delay is sampled uniformly from
  # [avg_send_time - send_time_jitter, avg_send_time + send_time_jitter];
  # a jitter above the average clamps the floor to zero.
  send_time_jitter: "50ms"
  failure_rate: 0.1
  # rate_per_sec: 0          # optional fleet-wide cap; 0 = uncapped

monitor:
  refresh: "1s"

journal:
  driver: "file"             # file | sqlite | memory
  path: "./sendsim.journal"

logging:
  level: "info"
  console: true
  file:
    enabled: false
    path: "./sendsim.log"

# Re-run on a timer ("soak" mode): a duration ("30m"), "@every 1h", or a
# 5-field cron expression. Empty runs once. Incompatible with -watch.
# schedule: "30m"
`

// WriteInitConfig writes the starter config to path. It refuses to overwrite
// an existing file.
func WriteInitConfig(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%s already exists", path)
	} else if !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return os.WriteFile(path, []byte(initConfig), 0o644)
}
