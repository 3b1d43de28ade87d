package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// Open connects to the decision log named by dsn and runs migrations.
// postgres:// and postgresql:// DSNs use lib/pq; anything else is treated
// as a SQLite path, optionally prefixed with sqlite://.
func Open(ctx context.Context, dsn string, opts ...Option) (*SQLDecisionLog, error) {
	if dsn == "" {
		return nil, fmt.Errorf("%w: empty", ErrUnsupportedDSN)
	}

	var (
		db  *sql.DB
		log *SQLDecisionLog
		err error
	)
	switch {
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"):
		db, err = sql.Open("postgres", dsn)
		if err != nil {
			return nil, fmt.Errorf("store: open postgres: %w", err)
		}
		log = NewPostgresDecisionLog(db, opts...)
	default:
		db, err = sql.Open("sqlite", strings.TrimPrefix(dsn, "sqlite://"))
		if err != nil {
			return nil, fmt.Errorf("store: open sqlite: %w", err)
		}
		// One connection keeps :memory: databases and write transactions
		// consistent.
		db.SetMaxOpenConns(1)
		log = NewSQLiteDecisionLog(db, opts...)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store: ping: %w", err)
	}
	if err := log.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return log, nil
}
