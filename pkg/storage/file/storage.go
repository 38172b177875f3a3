package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fadedpez/ebucks/pkg/storage"
)

// document is the on-disk layout of the store
type document struct {
	Revision  int64                      `json:"revision"`
	UpdatedAt time.Time                  `json:"updated_at"`
	Entries   map[string]json.RawMessage `json:"entries"`
}

// Storage implements file-based storage of JSON values.
// Change events reach subscribers of this instance only.
type Storage struct {
	path   string
	origin string
	mu     sync.RWMutex
	doc    document
	closed bool
	broker storage.Broker
}

// New creates a new file storage instance
func New(options *storage.Options) (*Storage, error) {
	if options == nil {
		options = storage.NewOptions()
	}

	s := &Storage{
		path:   options.Path,
		origin: options.OriginOrNew(),
		doc:    document{Entries: make(map[string]json.RawMessage)},
	}

	// Load existing entries from file
	if err := s.load(); err != nil {
		return nil, fmt.Errorf("failed to load store: %w", err)
	}

	return s, nil
}

// Get reads a committed value
func (s *Storage) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, storage.ErrClosed
	}
	return s.read(key)
}

// Update applies fn and rewrites the file once
func (s *Storage) Update(ctx context.Context, fn func(tx storage.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return storage.ErrClosed
	}

	buf := storage.NewBuffer(s.read)
	if err := fn(buf); err != nil {
		s.mu.Unlock()
		return err
	}

	changes := buf.Changes()
	if len(changes) == 0 {
		s.mu.Unlock()
		return nil
	}

	next := document{
		Revision: s.doc.Revision,
		Entries:  make(map[string]json.RawMessage, len(s.doc.Entries)+len(changes)),
	}
	for k, v := range s.doc.Entries {
		next.Entries[k] = v
	}

	events := make([]storage.Event, 0, len(changes))
	for _, ch := range changes {
		if !ch.Deleted && !json.Valid(ch.Value) {
			s.mu.Unlock()
			return fmt.Errorf("value of %s is not JSON", ch.Key)
		}
		next.Revision++
		if ch.Deleted {
			delete(next.Entries, ch.Key)
		} else {
			next.Entries[ch.Key] = json.RawMessage(ch.Value)
		}
		events = append(events, storage.Event{
			Key:      ch.Key,
			Deleted:  ch.Deleted,
			Origin:   s.origin,
			Revision: next.Revision,
		})
	}
	next.UpdatedAt = time.Now()

	if err := s.save(next); err != nil {
		s.mu.Unlock()
		return err
	}
	s.doc = next
	s.mu.Unlock()

	s.broker.Publish(events...)
	return nil
}

// Subscribe registers fn for change events of this instance
func (s *Storage) Subscribe(fn func(storage.Event)) func() {
	return s.broker.Subscribe(fn)
}

// Close marks the store closed. The file stays on disk.
func (s *Storage) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// Path returns the backing file
func (s *Storage) Path() string {
	return s.path
}

// Helper functions

func (s *Storage) read(key string) ([]byte, error) {
	v, ok := s.doc.Entries[key]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return v, nil
}

func (s *Storage) load() error {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}

	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return err
	}
	if doc.Entries == nil {
		doc.Entries = make(map[string]json.RawMessage)
	}
	s.doc = doc
	return nil
}

func (s *Storage) save(doc document) error {
	// Create directory if it doesn't exist
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal store: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close file: %w", err)
	}

	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("failed to replace file: %w", err)
	}
	return nil
}
