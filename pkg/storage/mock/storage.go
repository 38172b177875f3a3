package mock

import (
	"context"

	"github.com/fadedpez/ebucks/pkg/storage"
	"github.com/stretchr/testify/mock"
)

// Storage is a mock implementation of storage.Store
type Storage struct {
	mock.Mock
}

func New() *Storage {
	return &Storage{}
}

func (s *Storage) Get(ctx context.Context, key string) ([]byte, error) {
	args := s.Called(ctx, key)
	if v, ok := args.Get(0).([]byte); ok {
		return v, args.Error(1)
	}
	return nil, args.Error(1)
}

func (s *Storage) Update(ctx context.Context, fn func(tx storage.Tx) error) error {
	args := s.Called(ctx, fn)
	return args.Error(0)
}

func (s *Storage) Subscribe(fn func(storage.Event)) func() {
	args := s.Called(fn)
	if cancel, ok := args.Get(0).(func()); ok {
		return cancel
	}
	return func() {}
}

func (s *Storage) Close() error {
	args := s.Called()
	return args.Error(0)
}

// RunAgainst makes a mocked Update execute fn against tx before returning,
// so tests can exercise the body and then fail the commit.
func RunAgainst(tx storage.Tx) func(mock.Arguments) {
	return func(args mock.Arguments) {
		fn := args.Get(1).(func(storage.Tx) error)
		_ = fn(tx)
	}
}
