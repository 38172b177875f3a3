// Package storagetest holds the behaviour every storage.Store backend must share.
package storagetest

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"time"

	"github.com/fadedpez/ebucks/pkg/storage"
	"github.com/stretchr/testify/suite"
)

// Suite runs the common store contract against the store returned by Open
type Suite struct {
	suite.Suite
	Open  func() storage.Store
	store storage.Store
}

func (s *Suite) SetupTest() {
	s.store = s.Open()
}

func (s *Suite) TearDownTest() {
	s.Require().NoError(s.store.Close())
}

// Store returns the store of the running test
func (s *Suite) Store() storage.Store {
	return s.store
}

func (s *Suite) TestGetMissing() {
	_, err := s.store.Get(context.Background(), "missing")
	s.ErrorIs(err, storage.ErrNotFound)
}

func (s *Suite) TestPutAndGet() {
	ctx := context.Background()
	err := s.store.Update(ctx, func(tx storage.Tx) error {
		if err := tx.Put("wallet", []byte(`{"balance":10}`)); err != nil {
			return err
		}
		got, err := tx.Get("wallet")
		s.Require().NoError(err)
		s.JSONEq(`{"balance":10}`, string(got), "reads inside a transaction see its own writes")
		return nil
	})
	s.Require().NoError(err)

	got, err := s.store.Get(ctx, "wallet")
	s.Require().NoError(err)
	s.JSONEq(`{"balance":10}`, string(got))
}

func (s *Suite) TestFailedUpdateWritesNothing() {
	ctx := context.Background()
	boom := errors.New("boom")

	err := s.store.Update(ctx, func(tx storage.Tx) error {
		s.Require().NoError(tx.Put("a", []byte(`1`)))
		s.Require().NoError(tx.Put("b", []byte(`2`)))
		return boom
	})
	s.ErrorIs(err, boom)

	_, err = s.store.Get(ctx, "a")
	s.ErrorIs(err, storage.ErrNotFound)
	_, err = s.store.Get(ctx, "b")
	s.ErrorIs(err, storage.ErrNotFound)
}

func (s *Suite) TestDelete() {
	ctx := context.Background()
	s.Require().NoError(s.store.Update(ctx, func(tx storage.Tx) error {
		return tx.Put("gate", []byte(`{}`))
	}))
	s.Require().NoError(s.store.Update(ctx, func(tx storage.Tx) error {
		if err := tx.Delete("gate"); err != nil {
			return err
		}
		_, err := tx.Get("gate")
		s.ErrorIs(err, storage.ErrNotFound)
		return nil
	}))

	_, err := s.store.Get(ctx, "gate")
	s.ErrorIs(err, storage.ErrNotFound)
}

func (s *Suite) TestEventsAfterCommit() {
	ctx := context.Background()
	var mu sync.Mutex
	var got []storage.Event
	cancel := s.store.Subscribe(func(ev storage.Event) {
		// subscribers may read back from the store
		_, err := s.store.Get(ctx, ev.Key)
		s.NoError(err)
		mu.Lock()
		got = append(got, ev)
		mu.Unlock()
	})

	s.Require().NoError(s.store.Update(ctx, func(tx storage.Tx) error {
		if err := tx.Put("wallet", []byte(`1`)); err != nil {
			return err
		}
		return tx.Put("streak", []byte(`2`))
	}))

	s.Eventually(func() bool {
		mu.Lock()
		defer mu.Unlock()
		return containsKeys(got, "wallet", "streak")
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	mu.Lock()
	seen := len(got)
	mu.Unlock()

	s.Require().NoError(s.store.Update(ctx, func(tx storage.Tx) error {
		return tx.Put("wallet", []byte(`3`))
	}))
	time.Sleep(50 * time.Millisecond)
	mu.Lock()
	s.Equal(seen, len(got), "cancelled subscriber must not receive events")
	mu.Unlock()
}

func (s *Suite) TestNoEventsForFailedUpdate() {
	var mu sync.Mutex
	count := 0
	cancel := s.store.Subscribe(func(storage.Event) {
		mu.Lock()
		count++
		mu.Unlock()
	})
	defer cancel()

	_ = s.store.Update(context.Background(), func(tx storage.Tx) error {
		_ = tx.Put("wallet", []byte(`1`))
		return errors.New("abort")
	})
	time.Sleep(50 * time.Millisecond)

	mu.Lock()
	s.Zero(count)
	mu.Unlock()
}

func (s *Suite) TestConcurrentUpdatesSerialize() {
	ctx := context.Background()
	const workers = 10
	const perWorker = 5

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perWorker; j++ {
				err := s.store.Update(ctx, func(tx storage.Tx) error {
					n := 0
					raw, err := tx.Get("counter")
					if err == nil {
						n, _ = strconv.Atoi(string(raw))
					} else if !errors.Is(err, storage.ErrNotFound) {
						return err
					}
					return tx.Put("counter", []byte(strconv.Itoa(n+1)))
				})
				s.NoError(err)
			}
		}()
	}
	wg.Wait()

	raw, err := s.store.Get(ctx, "counter")
	s.Require().NoError(err)
	s.Equal(strconv.Itoa(workers*perWorker), string(raw))
}

func containsKeys(events []storage.Event, keys ...string) bool {
	seen := make(map[string]bool)
	for _, ev := range events {
		seen[ev.Key] = true
	}
	for _, k := range keys {
		if !seen[k] {
			return false
		}
	}
	return true
}
