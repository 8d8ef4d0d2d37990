// Package journal persists one transaction record per processed message and
// keeps the aggregate counters the progress monitor reads.
//
// Three drivers share the Store interface: "file" (append-only JSON Lines),
// "sqlite" (WAL database), and "memory" (in-process buffer for tests and
// embedders).
package journal
