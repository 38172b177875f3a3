package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fadedpez/ebucks/internal/logging"
	"github.com/fadedpez/ebucks/pkg/db/migrations"
	"github.com/fadedpez/ebucks/pkg/scheduler"
	"github.com/fadedpez/ebucks/pkg/storage"
	_ "github.com/mattn/go-sqlite3"
)

// Storage implements storage.Store on a SQLite kv table. Writers in other
// processes are serialised by BEGIN IMMEDIATE and surfaced through Watch.
type Storage struct {
	db     *sql.DB
	origin string
	logger *logging.Logger
	broker storage.Broker

	mu        sync.Mutex
	lastSeen  int64
	scheduler *scheduler.Scheduler
	closed    bool
}

// New opens (creating if needed) the database at options.Path and applies the schema
func New(ctx context.Context, options *storage.Options, logger *logging.Logger) (*Storage, error) {
	if options == nil {
		options = storage.NewOptions()
	}
	if logger == nil {
		logger = logging.Nop()
	}

	// Ensure directory exists
	if dir := filepath.Dir(options.Path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("error creating database directory: %w", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_txlock=immediate&_busy_timeout=5000&_journal_mode=WAL&_foreign_keys=on", options.Path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("error opening database: %w", err)
	}

	if _, err := migrations.NewMigrator(db, migrations.Embedded(), logger).MigrateUp(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("error applying migrations: %w", err)
	}

	s := &Storage{
		db:     db,
		origin: options.OriginOrNew(),
		logger: logger.WithComponent("sqlite_store"),
	}

	rev, err := s.currentRevision(ctx, db)
	if err != nil {
		db.Close()
		return nil, err
	}
	s.lastSeen = rev

	return s, nil
}

// Get reads a committed value
func (s *Storage) Get(ctx context.Context, key string) ([]byte, error) {
	return s.read(ctx, s.db, key)
}

// Update runs fn inside one immediate transaction
func (s *Storage) Update(ctx context.Context, fn func(tx storage.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("error beginning transaction: %w", err)
	}
	defer tx.Rollback()

	var readErr error
	buf := storage.NewBuffer(func(key string) ([]byte, error) {
		v, err := s.read(ctx, tx, key)
		if err != nil && !errors.Is(err, storage.ErrNotFound) {
			readErr = err
		}
		return v, err
	})
	if err := fn(buf); err != nil {
		return err
	}
	if readErr != nil {
		return readErr
	}

	changes := buf.Changes()
	if len(changes) == 0 {
		return nil
	}

	rev, err := s.currentRevision(ctx, tx)
	if err != nil {
		return err
	}

	events := make([]storage.Event, 0, len(changes))
	for _, ch := range changes {
		rev++
		var value []byte
		if !ch.Deleted {
			value = ch.Value
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO kv (key, value, revision, deleted, origin, updated_at)
			VALUES (?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
			ON CONFLICT(key) DO UPDATE SET
				value = excluded.value,
				revision = excluded.revision,
				deleted = excluded.deleted,
				origin = excluded.origin,
				updated_at = excluded.updated_at`,
			ch.Key, value, rev, ch.Deleted, s.origin,
		)
		if err != nil {
			return fmt.Errorf("error writing %s: %w", ch.Key, err)
		}
		events = append(events, storage.Event{
			Key:      ch.Key,
			Deleted:  ch.Deleted,
			Origin:   s.origin,
			Revision: rev,
		})
	}

	if _, err := tx.ExecContext(ctx, "UPDATE kv_meta SET revision = ? WHERE id = 1", rev); err != nil {
		return fmt.Errorf("error updating revision: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("error committing transaction: %w", err)
	}

	s.broker.Publish(events...)
	return nil
}

// Subscribe registers fn for change events
func (s *Storage) Subscribe(fn func(storage.Event)) func() {
	return s.broker.Subscribe(fn)
}

// Watch polls for rows written by other processes every interval until ctx
// ends or the store is closed
func (s *Storage) Watch(ctx context.Context, interval time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.scheduler != nil {
		return
	}
	s.scheduler = scheduler.NewScheduler(s.logger)
	s.scheduler.AddTask("sqlite_watch", interval, s.Poll)
	s.scheduler.Start(ctx)
}

// Poll publishes one event per key changed by another origin since the last poll
func (s *Storage) Poll(ctx context.Context) error {
	s.mu.Lock()
	since := s.lastSeen
	s.mu.Unlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT key, deleted, revision, origin FROM kv WHERE revision > ? ORDER BY revision", since)
	if err != nil {
		return fmt.Errorf("error polling changes: %w", err)
	}
	defer rows.Close()

	var events []storage.Event
	last := since
	for rows.Next() {
		var ev storage.Event
		if err := rows.Scan(&ev.Key, &ev.Deleted, &ev.Revision, &ev.Origin); err != nil {
			return fmt.Errorf("error scanning change: %w", err)
		}
		last = ev.Revision
		if ev.Origin == s.origin {
			continue
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	if last > s.lastSeen {
		s.lastSeen = last
	}
	s.mu.Unlock()

	if len(events) > 0 {
		s.logger.Debug("Observed %d external changes", len(events))
	}
	s.broker.Publish(events...)
	return nil
}

// Close stops watching and closes the database
func (s *Storage) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	sched := s.scheduler
	s.mu.Unlock()

	if sched != nil {
		sched.Stop()
	}
	return s.db.Close()
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *Storage) read(ctx context.Context, q queryer, key string) ([]byte, error) {
	var value []byte
	err := q.QueryRowContext(ctx, "SELECT value FROM kv WHERE key = ? AND deleted = 0", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("error reading %s: %w", key, err)
	}
	return value, nil
}

func (s *Storage) currentRevision(ctx context.Context, q queryer) (int64, error) {
	var rev int64
	if err := q.QueryRowContext(ctx, "SELECT revision FROM kv_meta WHERE id = 1").Scan(&rev); err != nil {
		return 0, fmt.Errorf("error reading revision: %w", err)
	}
	return rev, nil
}
