package journal

import (
	"context"
	"errors"
	"strings"

	logx "sendsim/pkg/logx"
)

// Store is the append-only sink behind the transaction log.
// Append must be safe under concurrent calls from every sender.
type Store interface {
	Append(ctx context.Context, rec Record) error
	Close() error
}

// Open builds the store selected by cfg.Driver; blank means the file
// driver, keeping bare configs durable.
func Open(cfg Config, log logx.Logger) (Store, error) {
	if log.IsZero() {
		log = logx.Nop()
	}

	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	switch driver {
	case "", "file":
		return openFile(cfg, log)
	case "sqlite", "sqlite3":
		return openSQLite(cfg, log)
	case "memory":
		return NewMemoryStore(), nil
	default:
		return nil, errors.New("unknown journal driver: " + driver)
	}
}
