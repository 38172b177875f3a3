package entities

import (
	"time"
)

// Category classifies why eBucks moved
type Category string

const (
	CategoryGeneral   Category = "general"
	CategoryChallenge Category = "challenge"
	CategoryWheel     Category = "wheel"
	CategoryGamble    Category = "gamble"
	CategoryPurchase  Category = "purchase"
	CategoryBonus     Category = "bonus"
)

// Wallet holds a user's eBucks balance and its audit log
type Wallet struct {
	Balance      int64         `json:"balance"`
	Transactions []Transaction `json:"transactions"`
	UpdatedAt    time.Time     `json:"updated_at"`
}

// Transaction represents a single wallet transaction
type Transaction struct {
	ID           string            `json:"id"`
	Timestamp    time.Time         `json:"timestamp"`
	Amount       int64             `json:"amount"` // positive for awards, negative for spends
	Reason       string            `json:"reason"`
	Category     Category          `json:"category"`
	Metadata     map[string]string `json:"metadata,omitempty"`
	BalanceAfter int64             `json:"balance_after"`
}

// NewWallet returns the wallet a user starts with
func NewWallet() *Wallet {
	return &Wallet{
		Balance:      0,
		Transactions: make([]Transaction, 0),
	}
}

// LedgerSum returns the sum of all transaction amounts
func (w *Wallet) LedgerSum() int64 {
	var sum int64
	for _, tx := range w.Transactions {
		sum += tx.Amount
	}
	return sum
}

// Consistent reports whether the balance matches the ledger and is non-negative
func (w *Wallet) Consistent() bool {
	return w.Balance >= 0 && w.Balance == w.LedgerSum()
}
