package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/fadedpez/ebucks/internal/types"
	"github.com/fadedpez/ebucks/pkg/entities"
	"github.com/fadedpez/ebucks/pkg/storage"
)

// Storage keys of a user's namespace
const (
	KeyWallet      = "wallet"
	KeyCompletions = "challenges.completed"
	KeyStreak      = "streak"
	KeyWheelGate   = "wheel.gate"
)

// Keys lists every key the engine persists
var Keys = []string{KeyWallet, KeyCompletions, KeyStreak, KeyWheelGate}

type getter func(key string) ([]byte, error)

func load[T any](get getter, key string, zero func() *T) (*T, error) {
	raw, err := get(key)
	if errors.Is(err, storage.ErrNotFound) {
		return zero(), nil
	}
	if err != nil {
		return nil, types.WrapError(types.ErrStorageError, "failed to read "+key, err)
	}
	v := zero()
	if err := json.Unmarshal(raw, v); err != nil {
		return nil, types.WrapError(types.ErrStorageError, "corrupt value at "+key, err)
	}
	return v, nil
}

func save[T any](tx storage.Tx, key string, v *T) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", key, err)
	}
	if err := tx.Put(key, raw); err != nil {
		return types.WrapError(types.ErrStorageError, "failed to write "+key, err)
	}
	return nil
}

func fromStore(ctx context.Context, s storage.Store) getter {
	return func(key string) ([]byte, error) { return s.Get(ctx, key) }
}

func newCompletions() *entities.Completions {
	return &entities.Completions{Records: make([]entities.CompletionRecord, 0)}
}

func newStreak() *entities.LoginStreak { return &entities.LoginStreak{} }

func newGate() *entities.SpinGate { return &entities.SpinGate{} }

// LoadWallet reads the wallet inside tx, a fresh wallet when absent
func LoadWallet(tx storage.Tx) (*entities.Wallet, error) {
	w, err := load(tx.Get, KeyWallet, entities.NewWallet)
	if err == nil && w.Transactions == nil {
		w.Transactions = make([]entities.Transaction, 0)
	}
	return w, err
}

// ReadWallet reads the committed wallet
func ReadWallet(ctx context.Context, s storage.Store) (*entities.Wallet, error) {
	w, err := load(fromStore(ctx, s), KeyWallet, entities.NewWallet)
	if err == nil && w.Transactions == nil {
		w.Transactions = make([]entities.Transaction, 0)
	}
	return w, err
}

// SaveWallet stages w in tx
func SaveWallet(tx storage.Tx, w *entities.Wallet) error {
	return save(tx, KeyWallet, w)
}

// LoadCompletions reads the completion records inside tx
func LoadCompletions(tx storage.Tx) (*entities.Completions, error) {
	return load(tx.Get, KeyCompletions, newCompletions)
}

// ReadCompletions reads the committed completion records
func ReadCompletions(ctx context.Context, s storage.Store) (*entities.Completions, error) {
	return load(fromStore(ctx, s), KeyCompletions, newCompletions)
}

// SaveCompletions stages c in tx
func SaveCompletions(tx storage.Tx, c *entities.Completions) error {
	return save(tx, KeyCompletions, c)
}

// LoadStreak reads the login streak inside tx
func LoadStreak(tx storage.Tx) (*entities.LoginStreak, error) {
	return load(tx.Get, KeyStreak, newStreak)
}

// ReadStreak reads the committed login streak
func ReadStreak(ctx context.Context, s storage.Store) (*entities.LoginStreak, error) {
	return load(fromStore(ctx, s), KeyStreak, newStreak)
}

// SaveStreak stages ls in tx
func SaveStreak(tx storage.Tx, ls *entities.LoginStreak) error {
	return save(tx, KeyStreak, ls)
}

// LoadGate reads the spin gate inside tx
func LoadGate(tx storage.Tx) (*entities.SpinGate, error) {
	return load(tx.Get, KeyWheelGate, newGate)
}

// ReadGate reads the committed spin gate
func ReadGate(ctx context.Context, s storage.Store) (*entities.SpinGate, error) {
	return load(fromStore(ctx, s), KeyWheelGate, newGate)
}

// SaveGate stages g in tx
func SaveGate(tx storage.Tx, g *entities.SpinGate) error {
	return save(tx, KeyWheelGate, g)
}

// StorageError wraps a failed Update unless it already carries an engine error code
func StorageError(err error) error {
	if err == nil {
		return nil
	}
	var engineErr *types.EngineError
	if types.As(err, &engineErr) {
		return err
	}
	return types.WrapError(types.ErrStorageError, "storage update failed", err)
}
