package storage

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Common storage errors
var (
	ErrNotFound = errors.New("key not found")
	ErrClosed   = errors.New("store closed")
)

// Event announces that a key changed after a committed update
type Event struct {
	Key      string `json:"key"`
	Deleted  bool   `json:"deleted"`
	Origin   string `json:"origin"`
	Revision int64  `json:"revision"`
}

// Tx is the view of the store inside an Update. Reads see the transaction's own writes.
type Tx interface {
	Get(key string) ([]byte, error)
	Put(key string, value []byte) error
	Delete(key string) error
}

// Store defines durable key/value persistence shared by every execution context of a user
type Store interface {
	// Get reads a committed value, ErrNotFound when absent
	Get(ctx context.Context, key string) ([]byte, error)

	// Update runs fn atomically. If fn returns an error nothing is written.
	// fn must only touch the store through tx.
	Update(ctx context.Context, fn func(tx Tx) error) error

	// Subscribe registers fn for change events and returns its cancel func
	Subscribe(fn func(Event)) (cancel func())

	// Close releases the store
	Close() error
}

// Options represents storage configuration options
type Options struct {
	Path         string
	Origin       string
	PollInterval time.Duration
}

// NewOptions creates a new Options with default values
func NewOptions() *Options {
	return &Options{
		Path:         "ebucks.db",
		Origin:       NewOrigin(),
		PollInterval: 2 * time.Second,
	}
}

// OriginOrNew returns o's origin, generating one when unset
func (o *Options) OriginOrNew() string {
	if o != nil && o.Origin != "" {
		return o.Origin
	}
	return NewOrigin()
}

// NewOrigin returns a fresh id identifying one store instance in events
func NewOrigin() string {
	return uuid.New().String()
}
