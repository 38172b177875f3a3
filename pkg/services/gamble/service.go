package gamble

import (
	"context"

	"github.com/fadedpez/ebucks/internal/logging"
	"github.com/fadedpez/ebucks/pkg/entities"
	"github.com/fadedpez/ebucks/pkg/random"
	"github.com/fadedpez/ebucks/pkg/repositories/state"
	"github.com/fadedpez/ebucks/pkg/services/wallet"
	"github.com/fadedpez/ebucks/pkg/services/wheel"
	"github.com/fadedpez/ebucks/pkg/storage"
)

// Ledger reasons written by gambles
const (
	BetReason       = "Double or Nothing bet"
	WinReason       = "Won Double or Nothing"
	ExtraSpinReason = "Paid for extra spin"
)

// Policy holds the gamble odds and prices
type Policy struct {
	DoubleWinProbability float64
	ExtraSpinCost        int64
}

// DefaultPolicy wins double-or-nothing 40% of the time and charges 50 for an extra spin
func DefaultPolicy() Policy {
	return Policy{DoubleWinProbability: 0.4, ExtraSpinCost: 50}
}

// Service resolves post-spin gambles
type Service struct {
	store  storage.Store
	random random.Source
	wallet *wallet.Service
	wheel  *wheel.Service
	policy Policy
	logger *logging.Logger
}

// NewService creates a new gamble service
func NewService(store storage.Store, src random.Source, w *wallet.Service, wh *wheel.Service, policy Policy, logger *logging.Logger) *Service {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Service{
		store:  store,
		random: src,
		wallet: w,
		wheel:  wh,
		policy: policy,
		logger: logger.WithComponent("gamble"),
	}
}

// Policy returns the odds and prices in use
func (s *Service) Policy() Policy {
	return s.policy
}

// DoubleOrNothing stakes the slot value of last, before any streak
// multiplier. The bet and any payout commit together; a stake the balance
// no longer covers declines with no writes.
func (s *Service) DoubleOrNothing(ctx context.Context, last *wheel.Result) (entities.Settlement, error) {
	settlement := entities.Settlement{Action: entities.ActionDoubleOrNothing, Outcome: entities.OutcomeDeclined}
	if last == nil {
		settlement.Reason = "no spin to gamble"
		return settlement, nil
	}
	slot := last.Slot
	settlement.Slot = &slot
	settlement.Stake = slot.Value
	if settlement.Stake <= 0 {
		settlement.Reason = "nothing to gamble"
		return settlement, nil
	}

	balance, err := s.wallet.Balance(ctx)
	if err != nil {
		return settlement, err
	}
	if balance < settlement.Stake {
		settlement.Reason = "not enough eBucks"
		return settlement, nil
	}

	// one draw per invocation, even if the store retries the transaction
	won := s.random.Float64() < s.policy.DoubleWinProbability
	stake := settlement.Stake

	var committed []entities.Transaction
	outcome := entities.OutcomeDeclined
	payout := int64(0)
	err = s.store.Update(ctx, func(tx storage.Tx) error {
		committed, outcome, payout = nil, entities.OutcomeDeclined, 0

		bet, ok, err := s.wallet.SpendTx(tx, stake, BetReason, wallet.WithCategory(entities.CategoryGamble))
		if err != nil || !ok {
			return err
		}
		committed = append(committed, bet)

		if !won {
			outcome = entities.OutcomeLost
			return nil
		}
		prize, err := s.wallet.AwardTx(tx, stake*2, WinReason, wallet.WithCategory(entities.CategoryGamble))
		if err != nil {
			return err
		}
		committed = append(committed, prize)
		outcome, payout = entities.OutcomeWon, prize.Amount
		return nil
	})
	if err != nil {
		return settlement, state.StorageError(err)
	}

	settlement.Outcome, settlement.Payout = outcome, payout
	if outcome == entities.OutcomeDeclined {
		settlement.Reason = "not enough eBucks"
		return settlement, nil
	}

	s.wallet.Notify(ctx, committed...)
	s.logger.Info("Double or nothing on %d: %s", stake, outcome)
	return settlement, nil
}

// PaidExtraSpin buys one spin past the daily gate and spins it
func (s *Service) PaidExtraSpin(ctx context.Context) (entities.Settlement, *wheel.Result, error) {
	cost := s.policy.ExtraSpinCost
	settlement := entities.Settlement{Action: entities.ActionExtraSpin, Outcome: entities.OutcomeDeclined, Stake: cost}

	ok, err := s.wallet.Spend(ctx, cost, ExtraSpinReason, wallet.WithCategory(entities.CategoryPurchase))
	if err != nil {
		return settlement, nil, err
	}
	if !ok {
		settlement.Reason = "not enough eBucks"
		return settlement, nil, nil
	}

	s.wheel.GrantExtraSpin()
	result, err := s.wheel.Spin(ctx)
	if err != nil {
		// the grant is kept so the paid spin can be retried
		s.logger.LogError(err)
		return settlement, nil, err
	}

	slot := result.Slot
	settlement.Slot = &slot
	settlement.Payout = result.Awarded
	settlement.Outcome = entities.OutcomeLost
	if result.Awarded > 0 {
		settlement.Outcome = entities.OutcomeWon
	}
	s.logger.Info("Paid extra spin landed on %s for %d", slot.ID, result.Awarded)
	return settlement, result, nil
}
