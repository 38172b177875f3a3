package wallet

import (
	"context"

	"github.com/fadedpez/ebucks/pkg/entities"
)

// Ledger is the wallet surface other packages depend on
type Ledger interface {
	Award(ctx context.Context, amount int64, reason string, opts ...Option) (string, error)
	Spend(ctx context.Context, amount int64, reason string, opts ...Option) (bool, error)
	Balance(ctx context.Context) (int64, error)
	History(ctx context.Context) ([]entities.Transaction, error)
}

// Hook receives every transaction after it has been committed
type Hook interface {
	OnTransaction(ctx context.Context, tx entities.Transaction)
}

// HookFunc adapts a func to Hook
type HookFunc func(ctx context.Context, tx entities.Transaction)

func (f HookFunc) OnTransaction(ctx context.Context, tx entities.Transaction) {
	f(ctx, tx)
}

var _ Ledger = (*Service)(nil)
