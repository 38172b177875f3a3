package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fadedpez/ebucks/internal/logging"
	"github.com/fadedpez/ebucks/pkg/storage"
	"github.com/redis/go-redis/v9"
)

const revisionKey = "__revision"

// Options configures the Redis store
type Options struct {
	URL        string
	Channel    string
	Namespace  string
	Origin     string
	MaxRetries int
}

// Storage implements storage.Store on Redis. Updates are optimistic
// WATCH/MULTI transactions; commits are announced on a pub/sub channel.
type Storage struct {
	client     *redis.Client
	pubsub     *redis.PubSub
	channel    string
	namespace  string
	origin     string
	maxRetries int
	logger     *logging.Logger
	broker     storage.Broker
	done       chan struct{}
}

// New connects to Redis and starts listening for changes from other processes
func New(ctx context.Context, opts Options, logger *logging.Logger) (*Storage, error) {
	if logger == nil {
		logger = logging.Nop()
	}
	opt, err := redis.ParseURL(opts.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	if opts.Channel == "" {
		opts.Channel = "ebucks:changes"
	}
	if opts.Namespace == "" {
		opts.Namespace = "ebucks"
	}
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = 50
	}

	client := redis.NewClient(opt)

	// Test connection
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	pubsub := client.Subscribe(ctx, opts.Channel)
	if _, err := pubsub.Receive(pingCtx); err != nil {
		pubsub.Close()
		client.Close()
		return nil, fmt.Errorf("failed to subscribe to %s: %w", opts.Channel, err)
	}

	s := &Storage{
		client:     client,
		pubsub:     pubsub,
		channel:    opts.Channel,
		namespace:  opts.Namespace + storage.Separator,
		origin:     opts.Origin,
		maxRetries: opts.MaxRetries,
		logger:     logger.WithComponent("redis_store"),
		done:       make(chan struct{}),
	}
	if s.origin == "" {
		s.origin = storage.NewOrigin()
	}

	go s.listen()

	s.logger.Info("Connected to Redis, listening on %s", opts.Channel)
	return s, nil
}

// Get reads a committed value
func (s *Storage) Get(ctx context.Context, key string) ([]byte, error) {
	v, err := s.client.Get(ctx, s.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get %s: %w", key, err)
	}
	return v, nil
}

// Update runs fn optimistically, retrying when a watched key changed underneath it
func (s *Storage) Update(ctx context.Context, fn func(tx storage.Tx) error) error {
	for attempt := 0; attempt < s.maxRetries; attempt++ {
		events, err := s.attempt(ctx, fn)
		if errors.Is(err, redis.TxFailedErr) {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Duration(attempt+1) * time.Millisecond):
			}
			continue
		}
		if err != nil {
			return err
		}
		s.announce(ctx, events)
		return nil
	}
	return fmt.Errorf("update gave up after %d conflicting attempts", s.maxRetries)
}

func (s *Storage) attempt(ctx context.Context, fn func(tx storage.Tx) error) ([]storage.Event, error) {
	var events []storage.Event
	err := s.client.Watch(ctx, func(rtx *redis.Tx) error {
		buf := storage.NewBuffer(func(key string) ([]byte, error) {
			k := s.key(key)
			if err := rtx.Watch(ctx, k).Err(); err != nil {
				return nil, err
			}
			v, err := rtx.Get(ctx, k).Bytes()
			if errors.Is(err, redis.Nil) {
				return nil, storage.ErrNotFound
			}
			return v, err
		})
		if err := fn(buf); err != nil {
			return err
		}

		changes := buf.Changes()
		if len(changes) == 0 {
			return nil
		}

		var revCmd *redis.IntCmd
		_, err := rtx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			for _, ch := range changes {
				if ch.Deleted {
					pipe.Del(ctx, s.key(ch.Key))
				} else {
					pipe.Set(ctx, s.key(ch.Key), ch.Value, 0)
				}
			}
			revCmd = pipe.IncrBy(ctx, s.key(revisionKey), int64(len(changes)))
			return nil
		})
		if err != nil {
			return err
		}

		rev := revCmd.Val() - int64(len(changes))
		for _, ch := range changes {
			rev++
			events = append(events, storage.Event{
				Key:      ch.Key,
				Deleted:  ch.Deleted,
				Origin:   s.origin,
				Revision: rev,
			})
		}
		return nil
	})
	return events, err
}

// announce notifies local subscribers, then every other process
func (s *Storage) announce(ctx context.Context, events []storage.Event) {
	s.broker.Publish(events...)
	for _, ev := range events {
		ev.Key = s.key(ev.Key)
		payload, err := json.Marshal(ev)
		if err != nil {
			s.logger.Warn("Failed to encode event for %s: %v", ev.Key, err)
			continue
		}
		if err := s.client.Publish(ctx, s.channel, payload).Err(); err != nil {
			s.logger.Warn("Failed to publish event for %s: %v", ev.Key, err)
		}
	}
}

func (s *Storage) listen() {
	defer close(s.done)
	for msg := range s.pubsub.Channel() {
		var ev storage.Event
		if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
			s.logger.Warn("Ignoring malformed event: %v", err)
			continue
		}
		if ev.Origin == s.origin || !strings.HasPrefix(ev.Key, s.namespace) {
			continue
		}
		ev.Key = s.Key(ev.Key)
		s.broker.Publish(ev)
	}
}

// Subscribe registers fn for change events from this and every other process
func (s *Storage) Subscribe(fn func(storage.Event)) func() {
	return s.broker.Subscribe(fn)
}

// Close stops listening and closes the client
func (s *Storage) Close() error {
	err := s.pubsub.Close()
	<-s.done
	if cerr := s.client.Close(); err == nil {
		err = cerr
	}
	return err
}

func (s *Storage) key(k string) string {
	return s.namespace + k
}

// Key strips the namespace of a raw Redis key
func (s *Storage) Key(raw string) string {
	return strings.TrimPrefix(raw, s.namespace)
}
