package gamble

import (
	"context"
	"testing"
	"time"

	"github.com/fadedpez/ebucks/pkg/clock"
	"github.com/fadedpez/ebucks/pkg/entities"
	"github.com/fadedpez/ebucks/pkg/random"
	"github.com/fadedpez/ebucks/pkg/services/streak"
	"github.com/fadedpez/ebucks/pkg/services/wallet"
	"github.com/fadedpez/ebucks/pkg/services/wheel"
	"github.com/fadedpez/ebucks/pkg/storage/memory"
	"github.com/stretchr/testify/suite"
)

type GambleServiceTestSuite struct {
	suite.Suite
	ctx    context.Context
	store  *memory.Storage
	clock  *clock.Fixed
	wallet *wallet.Service
	wheel  *wheel.Service
}

func TestGambleService(t *testing.T) {
	suite.Run(t, new(GambleServiceTestSuite))
}

func (s *GambleServiceTestSuite) SetupTest() {
	s.ctx = context.Background()
	s.store = memory.New()
	s.clock = clock.NewFixed(time.Date(2024, 6, 3, 9, 0, 0, 0, time.UTC))
	s.wallet = wallet.NewService(s.store, s.clock, nil)

	slots := []entities.WheelSlot{
		{ID: "blank", Label: "Try again", Weight: 1, RewardType: entities.RewardBlank},
		{ID: "ten", Label: "10", Weight: 9, RewardType: entities.RewardWin, Value: 10},
	}
	st := streak.NewService(s.store, s.clock, streak.DefaultPolicy(), nil)
	wh, err := wheel.NewService(s.store, s.clock, random.NewSequence(0.5), slots, s.wallet, st, nil)
	s.Require().NoError(err)
	s.wheel = wh
}

func (s *GambleServiceTestSuite) service(draws ...float64) *Service {
	return NewService(s.store, random.NewSequence(draws...), s.wallet, s.wheel, DefaultPolicy(), nil)
}

func (s *GambleServiceTestSuite) seed(amount int64) {
	_, err := s.wallet.Award(s.ctx, amount, "seed")
	s.Require().NoError(err)
}

func (s *GambleServiceTestSuite) balance() int64 {
	b, err := s.wallet.Balance(s.ctx)
	s.Require().NoError(err)
	return b
}

func lastSpin(awarded int64) *wheel.Result {
	return &wheel.Result{
		Slot:       entities.WheelSlot{ID: "big", Label: "50", RewardType: entities.RewardWin, Value: awarded},
		Awarded:    awarded,
		Multiplier: 1,
	}
}

func (s *GambleServiceTestSuite) TestStakeAboveBalanceIsDeclined() {
	s.seed(30)

	settlement, err := s.service(0).DoubleOrNothing(s.ctx, lastSpin(50))
	s.Require().NoError(err)
	s.Equal(entities.OutcomeDeclined, settlement.Outcome)
	s.False(settlement.Resolved())
	s.Equal(int64(30), s.balance())

	history, err := s.wallet.History(s.ctx)
	s.Require().NoError(err)
	s.Len(history, 1, "only the seed")
}

func (s *GambleServiceTestSuite) TestNothingToGamble() {
	s.seed(100)
	gamble := s.service(0)

	settlement, err := gamble.DoubleOrNothing(s.ctx, nil)
	s.Require().NoError(err)
	s.Equal(entities.OutcomeDeclined, settlement.Outcome)

	settlement, err = gamble.DoubleOrNothing(s.ctx, lastSpin(0))
	s.Require().NoError(err)
	s.Equal(entities.OutcomeDeclined, settlement.Outcome)
	s.Equal(int64(100), s.balance())
}

func (s *GambleServiceTestSuite) TestDoubleOrNothingWin() {
	s.seed(100)

	settlement, err := s.service(0.1).DoubleOrNothing(s.ctx, lastSpin(50))
	s.Require().NoError(err)
	s.Equal(entities.OutcomeWon, settlement.Outcome)
	s.Equal(int64(50), settlement.Stake)
	s.Equal(int64(100), settlement.Payout)
	s.Equal(int64(150), s.balance())

	history, err := s.wallet.RecentHistory(s.ctx, 2)
	s.Require().NoError(err)
	s.Equal(WinReason, history[0].Reason)
	s.Equal(int64(100), history[0].Amount)
	s.Equal(BetReason, history[1].Reason)
	s.Equal(int64(-50), history[1].Amount)
	s.Equal(entities.CategoryGamble, history[1].Category)
}

func (s *GambleServiceTestSuite) TestStakeIgnoresStreakMultiplier() {
	s.seed(60)
	doubled := &wheel.Result{
		Slot:       entities.WheelSlot{ID: "big", Label: "50", RewardType: entities.RewardWin, Value: 50},
		Awarded:    100,
		Multiplier: 2,
	}

	settlement, err := s.service(0.1).DoubleOrNothing(s.ctx, doubled)
	s.Require().NoError(err)
	s.Equal(entities.OutcomeWon, settlement.Outcome)
	s.Equal(int64(50), settlement.Stake)
	s.Equal(int64(100), settlement.Payout)
	s.Equal(int64(110), s.balance())
}

func (s *GambleServiceTestSuite) TestDoubleOrNothingLoss() {
	s.seed(100)

	settlement, err := s.service(0.4).DoubleOrNothing(s.ctx, lastSpin(50))
	s.Require().NoError(err)
	s.Equal(entities.OutcomeLost, settlement.Outcome)
	s.Zero(settlement.Payout)
	s.Equal(int64(50), s.balance())
}

func (s *GambleServiceTestSuite) TestPaidExtraSpinDeclinedWithoutFunds() {
	s.seed(49)

	settlement, result, err := s.service().PaidExtraSpin(s.ctx)
	s.Require().NoError(err)
	s.Nil(result)
	s.Equal(entities.OutcomeDeclined, settlement.Outcome)
	s.False(s.wheel.HasExtraSpin())
	s.Equal(int64(49), s.balance())
}

func (s *GambleServiceTestSuite) TestPaidExtraSpinAfterFreeSpin() {
	s.seed(60)
	_, err := s.wheel.Spin(s.ctx)
	s.Require().NoError(err)
	s.Equal(int64(70), s.balance())

	settlement, result, err := s.service().PaidExtraSpin(s.ctx)
	s.Require().NoError(err)
	s.Require().NotNil(result)
	s.True(result.Paid)
	s.Equal(entities.OutcomeWon, settlement.Outcome)
	s.Equal(int64(50), settlement.Stake)
	s.Equal(int64(10), settlement.Payout)
	s.Equal(int64(30), s.balance())

	can, err := s.wheel.CanSpin(s.ctx)
	s.Require().NoError(err)
	s.False(can, "the paid spin leaves the gate closed")
	s.False(s.wheel.HasExtraSpin())
}

// Any mix of awards, spends and gambles keeps the ledger consistent and the balance non-negative
func (s *GambleServiceTestSuite) TestRandomSequencesKeepLedgerConsistent() {
	for _, seed := range []uint64{1, 7, 42, 2024} {
		s.SetupTest()
		pick := random.NewSeeded(seed)
		gamble := NewService(s.store, random.NewSeeded(seed+1), s.wallet, s.wheel, DefaultPolicy(), nil)
		amount := func(max int64) int64 { return 1 + int64(pick.Float64()*float64(max)) }

		for step := 0; step < 200; step++ {
			var err error
			switch int(pick.Float64() * 4) {
			case 0:
				_, err = s.wallet.Award(s.ctx, amount(100), "award", wallet.WithCategory(entities.CategoryBonus))
			case 1:
				_, err = s.wallet.Spend(s.ctx, amount(150), "spend")
			case 2:
				_, err = gamble.DoubleOrNothing(s.ctx, lastSpin(amount(80)))
			default:
				_, _, err = gamble.PaidExtraSpin(s.ctx)
			}
			s.Require().NoError(err, "seed %d step %d", seed, step)

			w, err := s.wallet.Wallet(s.ctx)
			s.Require().NoError(err)
			s.Require().True(w.Consistent(), "seed %d step %d", seed, step)
			s.Require().GreaterOrEqual(w.Balance, int64(0), "seed %d step %d", seed, step)
		}
	}
}
