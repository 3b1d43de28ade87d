package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	_ "modernc.org/sqlite"
)

// SQLDecisionLog implements DecisionLog over database/sql for SQLite and
// Postgres.
type SQLDecisionLog struct {
	db     *sql.DB
	d      dialect
	clock  func() time.Time
	logger *slog.Logger
}

// Option configures a SQLDecisionLog.
type Option func(*SQLDecisionLog)

// WithClock overrides the record timestamp source.
func WithClock(clock func() time.Time) Option {
	return func(l *SQLDecisionLog) { l.clock = clock }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(l *SQLDecisionLog) { l.logger = logger }
}

// NewSQLiteDecisionLog wraps an open modernc.org/sqlite handle. Call
// Migrate before first use.
func NewSQLiteDecisionLog(db *sql.DB, opts ...Option) *SQLDecisionLog {
	return newSQLDecisionLog(db, sqliteDialect, opts)
}

// NewPostgresDecisionLog wraps an open lib/pq handle. Call Migrate before
// first use.
func NewPostgresDecisionLog(db *sql.DB, opts ...Option) *SQLDecisionLog {
	return newSQLDecisionLog(db, postgresDialect, opts)
}

func newSQLDecisionLog(db *sql.DB, d dialect, opts []Option) *SQLDecisionLog {
	l := &SQLDecisionLog{
		db:     db,
		d:      d,
		clock:  time.Now,
		logger: slog.Default().With("component", "decision_log"),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Migrate creates the tables and triggers. It is idempotent.
func (l *SQLDecisionLog) Migrate(ctx context.Context) error {
	for _, stmt := range l.d.migrations {
		if _, err := l.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("store: %s migrate: %w", l.d.name, err)
		}
	}
	return nil
}

func (l *SQLDecisionLog) Append(ctx context.Context, rec DecisionRecord) (DecisionRecord, error) {
	if err := validateRecord(rec); err != nil {
		return DecisionRecord{}, err
	}

	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return DecisionRecord{}, fmt.Errorf("store: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if l.d.lockLog != "" {
		if _, err := tx.ExecContext(ctx, l.d.lockLog); err != nil {
			return DecisionRecord{}, fmt.Errorf("store: lock: %w", err)
		}
	}

	var frozen bool
	if err := tx.QueryRowContext(ctx, l.d.selectFreeze).Scan(&frozen); err != nil {
		return DecisionRecord{}, fmt.Errorf("store: read freeze: %w", err)
	}
	if frozen {
		return DecisionRecord{}, ErrFrozen
	}

	var lastSeq int64
	prev := GenesisHash
	err = tx.QueryRowContext(ctx, l.d.selectHead).Scan(&lastSeq, &prev)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return DecisionRecord{}, fmt.Errorf("store: read head: %w", err)
	}

	rec.Sequence = lastSeq + 1
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	rec.CreatedAt = l.clock().UTC().Truncate(time.Microsecond)
	rec.PrevHash = prev
	rec.RecordHash, err = ComputeRecordHash(rec)
	if err != nil {
		return DecisionRecord{}, err
	}

	_, err = tx.ExecContext(ctx, l.d.insert,
		rec.Sequence, rec.ID, rec.CreatedAt.Format(TimeLayout), rec.DecisionHash,
		rec.ManifestSeal, rec.BundleDigest, string(rec.Result), rec.PrevHash, rec.RecordHash,
	)
	if err != nil {
		return DecisionRecord{}, classify(err)
	}
	if err := tx.Commit(); err != nil {
		return DecisionRecord{}, fmt.Errorf("store: commit: %w", err)
	}

	l.logger.InfoContext(ctx, "decision appended",
		"sequence", rec.Sequence,
		"result", rec.Result,
		"record_hash", rec.RecordHash,
	)
	return rec, nil
}

func (l *SQLDecisionLog) List(ctx context.Context) ([]DecisionRecord, error) {
	rows, err := l.db.QueryContext(ctx, l.d.selectAll)
	if err != nil {
		return nil, fmt.Errorf("store: list: %w", err)
	}
	defer func() { _ = rows.Close() }()

	records := make([]DecisionRecord, 0)
	for rows.Next() {
		var (
			rec       DecisionRecord
			createdAt string
			result    string
		)
		if err := rows.Scan(&rec.Sequence, &rec.ID, &createdAt, &rec.DecisionHash,
			&rec.ManifestSeal, &rec.BundleDigest, &result, &rec.PrevHash, &rec.RecordHash); err != nil {
			return nil, fmt.Errorf("store: scan: %w", err)
		}
		rec.CreatedAt, err = time.Parse(TimeLayout, createdAt)
		if err != nil {
			return nil, fmt.Errorf("store: record %d created_at: %w", rec.Sequence, err)
		}
		rec.Result = Result(result)
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return records, nil
}

func (l *SQLDecisionLog) Immutable(ctx context.Context) (bool, error) {
	names, err := l.triggers(ctx)
	if err != nil {
		return false, err
	}
	return names[triggerNoUpdate] && names[triggerNoDelete], nil
}

func (l *SQLDecisionLog) FreezeEnforced(ctx context.Context) (bool, error) {
	names, err := l.triggers(ctx)
	if err != nil {
		return false, err
	}
	return names[triggerFreeze], nil
}

func (l *SQLDecisionLog) FreezeActive(ctx context.Context) (bool, error) {
	var active bool
	if err := l.db.QueryRowContext(ctx, l.d.selectFreeze).Scan(&active); err != nil {
		return false, fmt.Errorf("store: read freeze: %w", err)
	}
	return active, nil
}

func (l *SQLDecisionLog) SetFreeze(ctx context.Context, active bool) error {
	res, err := l.db.ExecContext(ctx, l.d.updateFreeze, active, l.clock().UTC().Format(TimeLayout))
	if err != nil {
		return fmt.Errorf("store: set freeze: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n != 1 {
		return fmt.Errorf("store: set freeze: freeze row missing, run migrations")
	}
	l.logger.InfoContext(ctx, "freeze updated", "active", active)
	return nil
}

func (l *SQLDecisionLog) Close() error {
	return l.db.Close()
}

func (l *SQLDecisionLog) triggers(ctx context.Context) (map[string]bool, error) {
	rows, err := l.db.QueryContext(ctx, l.d.listTriggers, DecisionTable)
	if err != nil {
		return nil, fmt.Errorf("store: list triggers: %w", err)
	}
	defer func() { _ = rows.Close() }()

	names := make(map[string]bool)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names[name] = true
	}
	return names, rows.Err()
}

// classify maps trigger rejections raised by either database to ErrFrozen.
func classify(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && strings.Contains(pqErr.Message, "is frozen") {
		return fmt.Errorf("%w: %s", ErrFrozen, pqErr.Message)
	}
	if strings.Contains(err.Error(), "is frozen") {
		return fmt.Errorf("%w: %v", ErrFrozen, err)
	}
	return fmt.Errorf("store: insert: %w", err)
}
