package ebucks

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/fadedpez/ebucks/internal/types"
	"github.com/fadedpez/ebucks/pkg/clock"
	"github.com/fadedpez/ebucks/pkg/entities"
	"github.com/fadedpez/ebucks/pkg/random"
	"github.com/fadedpez/ebucks/pkg/repositories/state"
	"github.com/fadedpez/ebucks/pkg/services/wallet"
	"github.com/fadedpez/ebucks/pkg/services/wheel"
	"github.com/fadedpez/ebucks/pkg/storage"
	"github.com/fadedpez/ebucks/pkg/storage/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

func testSlots() []entities.WheelSlot {
	return []entities.WheelSlot{
		{ID: "blank", Label: "Try again", Weight: 1, RewardType: entities.RewardBlank},
		{ID: "fifty", Label: "50", Weight: 9, RewardType: entities.RewardWin, Value: 50},
	}
}

type EngineTestSuite struct {
	suite.Suite
	ctx    context.Context
	store  *memory.Storage
	clock  *clock.Fixed
	engine *Engine
}

func TestEngine(t *testing.T) {
	suite.Run(t, new(EngineTestSuite))
}

func (s *EngineTestSuite) SetupTest() {
	s.ctx = context.Background()
	s.store = memory.New()
	s.clock = clock.NewFixed(time.Date(2024, 7, 1, 9, 30, 0, 0, time.UTC))
	s.engine = s.newEngine(true, random.NewSequence(0.5))
}

func (s *EngineTestSuite) TearDownTest() {
	s.engine.Close()
}

func (s *EngineTestSuite) newEngine(debug bool, src random.Source) *Engine {
	e, err := New(s.store, Options{
		Clock:             s.clock,
		Random:            src,
		Slots:             testSlots(),
		EnableDebugResets: debug,
	})
	s.Require().NoError(err)
	s.Require().NoError(e.Start(s.ctx))
	return e
}

func (s *EngineTestSuite) TestAwardSpendScenario() {
	balance, err := s.engine.GetBalance(s.ctx)
	s.Require().NoError(err)
	s.Zero(balance)

	_, err = s.engine.AwardBucks(s.ctx, 100, "seed", nil, "")
	s.Require().NoError(err)
	balance, _ = s.engine.GetBalance(s.ctx)
	s.Equal(int64(100), balance)

	ok, err := s.engine.SpendBucks(s.ctx, 50, "extra spin")
	s.Require().NoError(err)
	s.True(ok)
	balance, _ = s.engine.GetBalance(s.ctx)
	s.Equal(int64(50), balance)

	ok, err = s.engine.SpendBucks(s.ctx, 1000, "overspend")
	s.Require().NoError(err)
	s.False(ok)
	balance, _ = s.engine.GetBalance(s.ctx)
	s.Equal(int64(50), balance)

	w, err := state.ReadWallet(s.ctx, s.store)
	s.Require().NoError(err)
	s.True(w.Consistent())

	recent, err := s.engine.GetRecentHistory(s.ctx, 1)
	s.Require().NoError(err)
	s.Equal("extra spin", recent[0].Reason)
	s.Equal(int64(50), s.engine.Snapshot().Balance)
}

func (s *EngineTestSuite) TestInvalidAmountFailsLoudly() {
	_, err := s.engine.AwardBucks(s.ctx, 0, "nothing", nil, "")
	s.True(types.IsEngineError(err, types.ErrInvalidAmount))
	_, err = s.engine.SpendBucks(s.ctx, -5, "negative")
	s.True(types.IsEngineError(err, types.ErrInvalidAmount))
}

func (s *EngineTestSuite) TestStartRecordsLogin() {
	st, err := s.engine.LoginStreak(s.ctx)
	s.Require().NoError(err)
	s.Equal(1, st.ConsecutiveDays)
	s.Equal(1, s.engine.Snapshot().LoginStreak)
}

func (s *EngineTestSuite) TestChallengesResetAtMidnight() {
	ok, err := s.engine.CompleteDailyChallenge(s.ctx, "quiz-master", nil, "")
	s.Require().NoError(err)
	s.True(ok)
	s.Equal([]string{"quiz-master"}, s.engine.Snapshot().CompletedToday)

	ok, err = s.engine.CompleteDailyChallenge(s.ctx, "quiz-master", nil, "")
	s.Require().NoError(err)
	s.False(ok)

	s.clock.AdvanceDays(1)
	snap, err := s.engine.Refresh(s.ctx)
	s.Require().NoError(err)
	s.Empty(snap.CompletedToday)
	s.True(snap.CanSpin)

	ok, err = s.engine.CompleteDailyChallenge(s.ctx, "quiz-master", nil, "")
	s.Require().NoError(err)
	s.True(ok)
}

func (s *EngineTestSuite) TestWheelGateAndGamble() {
	s.True(s.engine.Snapshot().CanSpin)

	result, err := s.engine.SpinWheel(s.ctx)
	s.Require().NoError(err)
	s.Equal(int64(50), result.Awarded)
	s.False(s.engine.Snapshot().CanSpin)
	s.Require().NotNil(s.engine.LastSpin())

	_, err = s.engine.SpinWheel(s.ctx)
	s.True(types.IsEngineError(err, types.ErrAlreadySpunToday))

	// 0.5 loses against p = 0.4
	settlement, err := s.engine.DoubleOrNothing(s.ctx)
	s.Require().NoError(err)
	s.Equal(entities.OutcomeLost, settlement.Outcome)
	s.Nil(s.engine.LastSpin(), "a stake is gambled once")

	settlement, err = s.engine.DoubleOrNothing(s.ctx)
	s.Require().NoError(err)
	s.Equal(entities.OutcomeDeclined, settlement.Outcome)

	balance, _ := s.engine.GetBalance(s.ctx)
	s.Zero(balance)
}

func (s *EngineTestSuite) TestDoubleOrNothingDeclinedKeepsStake() {
	_, err := s.engine.SpinWheel(s.ctx)
	s.Require().NoError(err)
	ok, err := s.engine.SpendBucks(s.ctx, 20, "shop")
	s.Require().NoError(err)
	s.True(ok)

	settlement, err := s.engine.DoubleOrNothing(s.ctx)
	s.Require().NoError(err)
	s.Equal(entities.OutcomeDeclined, settlement.Outcome)
	s.NotNil(s.engine.LastSpin())

	balance, _ := s.engine.GetBalance(s.ctx)
	s.Equal(int64(30), balance)
}

func (s *EngineTestSuite) TestPaidExtraSpinBecomesLastSpin() {
	_, err := s.engine.AwardBucks(s.ctx, 50, "seed", nil, entities.CategoryBonus)
	s.Require().NoError(err)
	_, err = s.engine.SpinWheel(s.ctx)
	s.Require().NoError(err)

	settlement, result, err := s.engine.PaidExtraSpin(s.ctx)
	s.Require().NoError(err)
	s.Equal(entities.OutcomeWon, settlement.Outcome)
	s.True(result.Paid)
	s.True(s.engine.LastSpin().Paid)

	can, err := s.engine.CanSpinWheelToday(s.ctx)
	s.Require().NoError(err)
	s.False(can)
}

func (s *EngineTestSuite) TestDebugResetsRequireOptIn() {
	locked := s.newEngine(false, random.NewSequence(0.5))
	defer locked.Close()

	_, err := locked.ResetChallengeCompletion(s.ctx)
	s.True(types.IsEngineError(err, types.ErrDebugDisabled))
	s.True(types.IsEngineError(locked.ResetWheelForToday(s.ctx), types.ErrDebugDisabled))
	s.True(types.IsEngineError(locked.ResetWallet(s.ctx), types.ErrDebugDisabled))

	_, err = s.engine.SpinWheel(s.ctx)
	s.Require().NoError(err)
	s.Require().NoError(s.engine.ResetWheelForToday(s.ctx))
	s.True(s.engine.Snapshot().CanSpin)

	s.Require().NoError(s.engine.ResetWallet(s.ctx))
	balance, _ := s.engine.GetBalance(s.ctx)
	s.Zero(balance)
}

func (s *EngineTestSuite) TestOtherEnginesSeeChanges() {
	other := s.newEngine(true, random.NewSequence(0.5))
	defer other.Close()

	var mu sync.Mutex
	var seen []Snapshot
	cancel := other.Subscribe(func(snap Snapshot) {
		mu.Lock()
		seen = append(seen, snap)
		mu.Unlock()
	})
	defer cancel()

	_, err := s.engine.AwardBucks(s.ctx, 75, "from another tab", nil, "")
	s.Require().NoError(err)

	s.Equal(int64(75), other.Snapshot().Balance)
	mu.Lock()
	s.Require().NotEmpty(seen)
	s.Equal(int64(75), seen[len(seen)-1].Balance)
	count := len(seen)
	mu.Unlock()

	cancel()
	_, err = s.engine.AwardBucks(s.ctx, 5, "after cancel", nil, "")
	s.Require().NoError(err)
	mu.Lock()
	s.Equal(count, len(seen))
	mu.Unlock()
}

func (s *EngineTestSuite) TestStartRecoversPendingSpin() {
	pending := entities.PendingSpin{SlotID: "fifty", Value: 50, Multiplier: 1, Day: "2024-07-01", StartedAt: time.Date(2024, 7, 1, 9, 0, 0, 0, time.UTC)}
	err := s.store.Update(s.ctx, func(tx storage.Tx) error {
		return state.SaveGate(tx, &entities.SpinGate{LastSpinDay: "2024-07-01", Pending: &pending})
	})
	s.Require().NoError(err)

	reloaded := s.newEngine(true, random.NewSequence(0.5))
	defer reloaded.Close()

	s.Equal(int64(50), reloaded.Snapshot().Balance)
	s.Require().NotNil(reloaded.LastSpin())
	s.Equal("fifty", reloaded.LastSpin().Slot.ID)

	st, err := reloaded.WheelState(s.ctx)
	s.Require().NoError(err)
	s.Equal(wheel.StateIdleGated, st)
}

func (s *EngineTestSuite) TestDayRolloverRepublishes() {
	_, err := s.engine.SpinWheel(s.ctx)
	s.Require().NoError(err)
	s.False(s.engine.Snapshot().CanSpin)

	ctx, cancel := context.WithCancel(s.ctx)
	defer cancel()
	s.engine.WatchDayRollover(ctx, 5*time.Millisecond)

	s.clock.AdvanceDays(1)
	s.Eventually(func() bool { return s.engine.Snapshot().CanSpin }, time.Second, 5*time.Millisecond)
	s.Equal(entities.Day("2024-07-02"), s.engine.Snapshot().Day)
}

func TestHooksSeeCommittedTransactions(t *testing.T) {
	var mu sync.Mutex
	var got []entities.Transaction
	hook := wallet.HookFunc(func(_ context.Context, tx entities.Transaction) {
		mu.Lock()
		got = append(got, tx)
		mu.Unlock()
	})

	clk := clock.NewFixed(time.Date(2024, 7, 1, 9, 0, 0, 0, time.UTC))
	e, err := New(memory.New(), Options{Clock: clk, Random: random.NewSequence(0.5), Slots: testSlots(), Hooks: []wallet.Hook{hook}})
	require.NoError(t, err)
	require.NoError(t, e.Start(context.Background()))
	defer e.Close()

	_, err = e.CompleteDailyChallenge(context.Background(), "quiz-master", nil, "")
	require.NoError(t, err)
	_, err = e.SpinWheel(context.Background())
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, got, 2)
	assert.Equal(t, entities.CategoryChallenge, got[0].Category)
	assert.Equal(t, entities.CategoryWheel, got[1].Category)
}

func TestNewRejectsInvalidCatalogs(t *testing.T) {
	_, err := New(memory.New(), Options{Challenges: []entities.Challenge{{ID: "x"}}})
	assert.True(t, types.IsEngineError(err, types.ErrInvalidCatalog))

	_, err = New(memory.New(), Options{Slots: []entities.WheelSlot{}})
	assert.True(t, types.IsEngineError(err, types.ErrInvalidCatalog))
}
