package memory

import (
	"context"
	"sync"

	"github.com/fadedpez/ebucks/pkg/storage"
)

// Storage keeps every key in process memory
type Storage struct {
	mu       sync.RWMutex
	data     map[string][]byte
	revision int64
	origin   string
	closed   bool
	broker   storage.Broker
}

// New creates an empty memory store
func New() *Storage {
	return &Storage{
		data:   make(map[string][]byte),
		origin: storage.NewOrigin(),
	}
}

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
	events := make([]storage.Event, 0, len(changes))
	for _, ch := range changes {
		s.revision++
		if ch.Deleted {
			delete(s.data, ch.Key)
		} else {
			s.data[ch.Key] = ch.Value
		}
		events = append(events, storage.Event{
			Key:      ch.Key,
			Deleted:  ch.Deleted,
			Origin:   s.origin,
			Revision: s.revision,
		})
	}
	s.mu.Unlock()

	s.broker.Publish(events...)
	return nil
}

func (s *Storage) Subscribe(fn func(storage.Event)) func() {
	return s.broker.Subscribe(fn)
}

func (s *Storage) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// Keys returns the number of stored keys
func (s *Storage) Keys() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}

func (s *Storage) read(key string) ([]byte, error) {
	v, ok := s.data[key]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return v, nil
}
