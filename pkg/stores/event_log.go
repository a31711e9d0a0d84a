package stores

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"path"
	"sync"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	// SQLite driver
	_ "modernc.org/sqlite"

	"github.com/veridag/veridag/pkg/engine"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// EventLog is a SQLite-backed append-only event store with per-stream
// optimistic concurrency and in-process subscriptions. Handlers may journal
// execution events here; the core engine never requires it.
type EventLog struct {
	db   *sql.DB
	path string

	mu      sync.RWMutex
	subs    map[int64]subscription
	nextSub int64
}

type subscription struct {
	pattern string
	handler SubscriptionHandler
}

// Config holds event log configuration.
type Config struct {
	// Path is the SQLite database file path.
	Path string

	// MaxOpenConns bounds the connection pool (default 25).
	MaxOpenConns int

	// MaxIdleConns bounds idle connections (default 5).
	MaxIdleConns int

	// ConnMaxLifetime bounds connection reuse (default 5m).
	ConnMaxLifetime time.Duration
}

// NewEventLog creates an event log instance. Call Init before use.
func NewEventLog(cfg Config) (*EventLog, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("database path is required")
	}
	return &EventLog{
		path: cfg.Path,
		subs: make(map[int64]subscription),
	}, nil
}

// Init opens the database connection and enables WAL mode.
func (l *EventLog) Init(ctx context.Context) error {
	dsn := fmt.Sprintf("%s?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL&_txlock=immediate", l.path)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}

	l.db = db
	return nil
}

// Close closes the database connection.
func (l *EventLog) Close() error {
	if l.db != nil {
		return l.db.Close()
	}
	return nil
}

// Migrate runs database migrations from the embedded migration files.
func (l *EventLog) Migrate(_ context.Context) error {
	if l.db == nil {
		return fmt.Errorf("database not initialized")
	}

	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to create migration source: %w", err)
	}

	driver, err := sqlite3.WithInstance(l.db, &sqlite3.Config{})
	if err != nil {
		return fmt.Errorf("failed to create database driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "sqlite3", driver)
	if err != nil {
		return fmt.Errorf("failed to create migration instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// Append appends events to a stream. expectedVersion is the stream version
// the caller last observed; a mismatch is rejected with a conflict error.
// Pass AnyVersion to skip the check.
func (l *EventLog) Append(ctx context.Context, streamID string, events []EventData, expectedVersion int64) (AppendResult, error) {
	if len(events) == 0 {
		return AppendResult{}, fmt.Errorf("no events to append")
	}

	tx, err := l.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return AppendResult{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var current int64
	err = tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(version), 0) FROM events WHERE stream_id = ?`, streamID).
		Scan(&current)
	if err != nil {
		return AppendResult{}, fmt.Errorf("failed to read stream version: %w", err)
	}

	if expectedVersion != AnyVersion && expectedVersion != current {
		return AppendResult{}, engine.NewConflictError(
			fmt.Sprintf("stream %s is at version %d, expected %d", streamID, current, expectedVersion),
			nil).WithCode(engine.ErrCodeVersionConflict)
	}

	now := time.Now().UTC()
	stored := make([]StoredEvent, 0, len(events))
	var position int64

	for i, ev := range events {
		version := current + int64(i) + 1
		res, err := tx.ExecContext(ctx,
			`INSERT INTO events (stream_id, version, type, data, recorded_at)
			 VALUES (?, ?, ?, ?, ?)`,
			streamID, version, ev.Type, string(ev.Data), now)
		if err != nil {
			return AppendResult{}, fmt.Errorf("failed to append event: %w", err)
		}
		position, err = res.LastInsertId()
		if err != nil {
			return AppendResult{}, fmt.Errorf("failed to read event position: %w", err)
		}
		stored = append(stored, StoredEvent{
			Position:   position,
			StreamID:   streamID,
			Version:    version,
			Type:       ev.Type,
			Data:       ev.Data,
			RecordedAt: now,
		})
	}

	if err := tx.Commit(); err != nil {
		return AppendResult{}, fmt.Errorf("failed to commit append: %w", err)
	}

	l.dispatch(stored)

	return AppendResult{
		NextExpectedVersion: current + int64(len(events)),
		Position:            position,
	}, nil
}

// Read returns up to count events from a stream starting at fromVersion
// (exclusive lower bound: fromVersion 0 reads from the beginning).
// count <= 0 reads to the end of the stream.
func (l *EventLog) Read(ctx context.Context, streamID string, fromVersion int64, count int) ([]StoredEvent, error) {
	query := `SELECT position, stream_id, version, type, data, recorded_at
	          FROM events WHERE stream_id = ? AND version > ?
	          ORDER BY version ASC`
	args := []any{streamID, fromVersion}
	if count > 0 {
		query += ` LIMIT ?`
		args = append(args, count)
	}

	rows, err := l.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to read stream: %w", err)
	}
	defer rows.Close()

	var events []StoredEvent
	for rows.Next() {
		var ev StoredEvent
		var data string
		if err := rows.Scan(&ev.Position, &ev.StreamID, &ev.Version, &ev.Type, &data, &ev.RecordedAt); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		ev.Data = []byte(data)
		events = append(events, ev)
	}
	return events, rows.Err()
}

// StreamVersion returns the current version of a stream (0 if empty).
func (l *EventLog) StreamVersion(ctx context.Context, streamID string) (int64, error) {
	var version int64
	err := l.db.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(version), 0) FROM events WHERE stream_id = ?`, streamID).
		Scan(&version)
	if err != nil {
		return 0, fmt.Errorf("failed to read stream version: %w", err)
	}
	return version, nil
}

// Subscribe registers a handler for events on streams matching the glob
// pattern (path.Match syntax, e.g. "run:*"). Dispatch is in-process and
// synchronous with Append. The returned function cancels the subscription.
func (l *EventLog) Subscribe(pattern string, handler SubscriptionHandler) func() {
	l.mu.Lock()
	defer l.mu.Unlock()

	id := l.nextSub
	l.nextSub++
	l.subs[id] = subscription{pattern: pattern, handler: handler}

	return func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		delete(l.subs, id)
	}
}

func (l *EventLog) dispatch(events []StoredEvent) {
	l.mu.RLock()
	subs := make([]subscription, 0, len(l.subs))
	for _, s := range l.subs {
		subs = append(subs, s)
	}
	l.mu.RUnlock()

	for _, ev := range events {
		for _, s := range subs {
			if ok, err := path.Match(s.pattern, ev.StreamID); err == nil && ok {
				s.handler(ev)
			}
		}
	}
}
