package wallet

import (
	"context"
	"fmt"
	"math"
	"sync"

	"github.com/fadedpez/ebucks/internal/logging"
	"github.com/fadedpez/ebucks/internal/types"
	"github.com/fadedpez/ebucks/pkg/clock"
	"github.com/fadedpez/ebucks/pkg/entities"
	"github.com/fadedpez/ebucks/pkg/repositories/state"
	"github.com/fadedpez/ebucks/pkg/storage"
	"github.com/google/uuid"
)

type options struct {
	category entities.Category
	metadata map[string]string
}

// Option adjusts a single award or spend
type Option func(*options)

// WithCategory files the transaction under c
func WithCategory(c entities.Category) Option {
	return func(o *options) {
		if c != "" {
			o.category = c
		}
	}
}

// WithMetadata attaches m to the transaction
func WithMetadata(m map[string]string) Option {
	return func(o *options) {
		if len(m) == 0 {
			return
		}
		o.metadata = make(map[string]string, len(m))
		for k, v := range m {
			o.metadata[k] = v
		}
	}
}

func buildOptions(opts []Option) options {
	o := options{category: entities.CategoryGeneral}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Service handles wallet business logic
type Service struct {
	store  storage.Store
	clock  clock.Clock
	logger *logging.Logger

	mu    sync.RWMutex
	hooks []Hook
}

// NewService creates a new wallet service
func NewService(store storage.Store, clk clock.Clock, logger *logging.Logger) *Service {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Service{
		store:  store,
		clock:  clk,
		logger: logger.WithComponent("wallet"),
	}
}

// AddHook registers h for committed transactions
func (s *Service) AddHook(h Hook) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hooks = append(s.hooks, h)
}

// Notify hands committed transactions to the hooks. Callers composing AwardTx
// or SpendTx into their own Update call it after commit.
func (s *Service) Notify(ctx context.Context, txs ...entities.Transaction) {
	s.mu.RLock()
	hooks := make([]Hook, len(s.hooks))
	copy(hooks, s.hooks)
	s.mu.RUnlock()

	for _, t := range txs {
		if t.ID == "" {
			continue
		}
		for _, h := range hooks {
			h.OnTransaction(ctx, t)
		}
	}
}

// Award adds amount to the balance and returns the transaction id
func (s *Service) Award(ctx context.Context, amount int64, reason string, opts ...Option) (string, error) {
	if err := validAmount(amount); err != nil {
		return "", err
	}

	var committed entities.Transaction
	err := s.store.Update(ctx, func(tx storage.Tx) error {
		t, err := s.AwardTx(tx, amount, reason, opts...)
		committed = t
		return err
	})
	if err != nil {
		return "", state.StorageError(err)
	}

	s.logger.Debug("Awarded %d (%s), balance now %d", amount, reason, committed.BalanceAfter)
	s.Notify(ctx, committed)
	return committed.ID, nil
}

// Spend removes amount when the balance covers it. An uncovered spend returns false and writes nothing.
func (s *Service) Spend(ctx context.Context, amount int64, reason string, opts ...Option) (bool, error) {
	if err := validAmount(amount); err != nil {
		return false, err
	}

	var committed entities.Transaction
	var ok bool
	err := s.store.Update(ctx, func(tx storage.Tx) error {
		t, spent, err := s.SpendTx(tx, amount, reason, opts...)
		committed, ok = t, spent
		return err
	})
	if err != nil {
		return false, state.StorageError(err)
	}
	if !ok {
		s.logger.Debug("Declined spend of %d (%s): not enough eBucks", amount, reason)
		return false, nil
	}

	s.logger.Debug("Spent %d (%s), balance now %d", amount, reason, committed.BalanceAfter)
	s.Notify(ctx, committed)
	return true, nil
}

// AwardTx stages an award inside an open transaction
func (s *Service) AwardTx(tx storage.Tx, amount int64, reason string, opts ...Option) (entities.Transaction, error) {
	if err := validAmount(amount); err != nil {
		return entities.Transaction{}, err
	}
	return s.apply(tx, amount, reason, buildOptions(opts))
}

// SpendTx stages a spend inside an open transaction. The balance is re-read from tx.
func (s *Service) SpendTx(tx storage.Tx, amount int64, reason string, opts ...Option) (entities.Transaction, bool, error) {
	if err := validAmount(amount); err != nil {
		return entities.Transaction{}, false, err
	}
	w, err := state.LoadWallet(tx)
	if err != nil {
		return entities.Transaction{}, false, err
	}
	if w.Balance < amount {
		return entities.Transaction{}, false, nil
	}
	t, err := s.apply(tx, -amount, reason, buildOptions(opts))
	return t, err == nil, err
}

// BalanceTx reads the balance inside an open transaction
func (s *Service) BalanceTx(tx storage.Tx) (int64, error) {
	w, err := state.LoadWallet(tx)
	if err != nil {
		return 0, err
	}
	return w.Balance, nil
}

func (s *Service) apply(tx storage.Tx, amount int64, reason string, o options) (entities.Transaction, error) {
	now, err := s.clock.Now()
	if err != nil {
		return entities.Transaction{}, err
	}

	w, err := state.LoadWallet(tx)
	if err != nil {
		return entities.Transaction{}, err
	}
	if amount > 0 && w.Balance > math.MaxInt64-amount {
		return entities.Transaction{}, types.NewEngineError(types.ErrInvalidAmount, "award would overflow the balance")
	}
	if w.Balance+amount < 0 {
		return entities.Transaction{}, types.NewEngineError(types.ErrInsufficientBalance, "not enough eBucks")
	}

	w.Balance += amount
	w.UpdatedAt = now
	t := entities.Transaction{
		ID:           uuid.New().String(),
		Timestamp:    now,
		Amount:       amount,
		Reason:       reason,
		Category:     o.category,
		Metadata:     o.metadata,
		BalanceAfter: w.Balance,
	}
	w.Transactions = append(w.Transactions, t)

	if err := state.SaveWallet(tx, w); err != nil {
		return entities.Transaction{}, err
	}
	return t, nil
}

// Balance returns the committed balance
func (s *Service) Balance(ctx context.Context) (int64, error) {
	w, err := state.ReadWallet(ctx, s.store)
	if err != nil {
		return 0, err
	}
	return w.Balance, nil
}

// Wallet returns the committed wallet
func (s *Service) Wallet(ctx context.Context) (*entities.Wallet, error) {
	return state.ReadWallet(ctx, s.store)
}

// History returns every transaction, oldest first
func (s *Service) History(ctx context.Context) ([]entities.Transaction, error) {
	w, err := state.ReadWallet(ctx, s.store)
	if err != nil {
		return nil, err
	}
	return w.Transactions, nil
}

// RecentHistory returns up to limit transactions, newest first. limit <= 0 returns all.
func (s *Service) RecentHistory(ctx context.Context, limit int) ([]entities.Transaction, error) {
	all, err := s.History(ctx)
	if err != nil {
		return nil, err
	}
	if limit <= 0 || limit > len(all) {
		limit = len(all)
	}
	out := make([]entities.Transaction, 0, limit)
	for i := len(all) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, all[i])
	}
	return out, nil
}

// Reset deletes the wallet and its history
func (s *Service) Reset(ctx context.Context) error {
	err := s.store.Update(ctx, func(tx storage.Tx) error {
		return tx.Delete(state.KeyWallet)
	})
	if err != nil {
		return state.StorageError(err)
	}
	s.logger.Info("Wallet reset")
	return nil
}

// Scale multiplies a reward by a streak multiplier, rejecting results that overflow
func Scale(base, multiplier int64) (int64, error) {
	if err := validAmount(base); err != nil {
		return 0, err
	}
	if multiplier < 1 || base > math.MaxInt64/multiplier {
		return 0, types.NewEngineError(types.ErrInvalidAmount, fmt.Sprintf("reward %d x%d is out of range", base, multiplier))
	}
	return base * multiplier, nil
}

func validAmount(amount int64) error {
	if amount <= 0 {
		return types.NewEngineError(types.ErrInvalidAmount, fmt.Sprintf("amount must be positive, got %d", amount))
	}
	return nil
}
