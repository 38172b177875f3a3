package ebucks

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/fadedpez/ebucks/internal/logging"
	"github.com/fadedpez/ebucks/internal/types"
	"github.com/fadedpez/ebucks/pkg/catalog"
	"github.com/fadedpez/ebucks/pkg/clock"
	"github.com/fadedpez/ebucks/pkg/entities"
	"github.com/fadedpez/ebucks/pkg/random"
	"github.com/fadedpez/ebucks/pkg/repositories/state"
	"github.com/fadedpez/ebucks/pkg/scheduler"
	"github.com/fadedpez/ebucks/pkg/services/challenges"
	"github.com/fadedpez/ebucks/pkg/services/gamble"
	"github.com/fadedpez/ebucks/pkg/services/statistics"
	"github.com/fadedpez/ebucks/pkg/services/streak"
	"github.com/fadedpez/ebucks/pkg/services/wallet"
	"github.com/fadedpez/ebucks/pkg/services/wheel"
	"github.com/fadedpez/ebucks/pkg/storage"
)

// Options configures an Engine. Zero fields take the defaults.
type Options struct {
	Clock             clock.Clock
	Random            random.Source
	Challenges        []entities.Challenge
	Rotation          challenges.Rotation
	Slots             []entities.WheelSlot
	StreakPolicy      *streak.Policy
	GamblePolicy      *gamble.Policy
	EnableDebugResets bool
	Logger            *logging.Logger
	Hooks             []wallet.Hook

	// UserID names the engine's user in statistics. Registry sets it.
	UserID string

	// UserHooks adds per-user wallet hooks to engines built by a Registry
	UserHooks func(userID string) []wallet.Hook
}

// Snapshot is the derived state shown to a user. It is recomputed from the
// store and is never the basis of a mutation.
type Snapshot struct {
	Day            entities.Day `json:"day"`
	Balance        int64        `json:"balance"`
	LoginStreak    int          `json:"login_streak"`
	LongestStreak  int          `json:"longest_streak"`
	Multiplier     int64        `json:"multiplier"`
	CompletedToday []string     `json:"completed_today"`
	CanSpin        bool         `json:"can_spin"`
}

func (s Snapshot) equal(o Snapshot) bool {
	return s.Day == o.Day &&
		s.Balance == o.Balance &&
		s.LoginStreak == o.LoginStreak &&
		s.LongestStreak == o.LongestStreak &&
		s.Multiplier == o.Multiplier &&
		s.CanSpin == o.CanSpin &&
		slices.Equal(s.CompletedToday, o.CompletedToday)
}

// Engine is one user's eBucks session over a shared store
type Engine struct {
	store  storage.Store
	clock  clock.Clock
	logger *logging.Logger
	debug  bool
	userID string

	wallet     *wallet.Service
	challenges *challenges.Service
	streak     *streak.Service
	wheel      *wheel.Service
	gamble     *gamble.Service

	// session guards the gamble session
	session sync.Mutex
	last    *wheel.Result

	mu          sync.Mutex
	snapshot    Snapshot
	subscribers map[int]func(Snapshot)
	nextSub     int
	unsubscribe func()
	scheduler   *scheduler.Scheduler
	started     bool
	loginDay    entities.Day
}

// New wires the trackers over store
func New(store storage.Store, opts Options) (*Engine, error) {
	if opts.Clock == nil {
		opts.Clock = clock.NewSystem()
	}
	if opts.Random == nil {
		opts.Random = random.New()
	}
	if opts.Challenges == nil {
		opts.Challenges = catalog.DefaultChallenges()
	}
	if opts.Slots == nil {
		opts.Slots = catalog.DefaultWheelSlots()
	}
	streakPolicy := streak.DefaultPolicy()
	if opts.StreakPolicy != nil {
		streakPolicy = *opts.StreakPolicy
	}
	gamblePolicy := gamble.DefaultPolicy()
	if opts.GamblePolicy != nil {
		gamblePolicy = *opts.GamblePolicy
	}
	if opts.Logger == nil {
		opts.Logger = logging.Nop()
	}

	cat, err := challenges.NewCatalog(opts.Challenges)
	if err != nil {
		return nil, err
	}

	w := wallet.NewService(store, opts.Clock, opts.Logger)
	for _, h := range opts.Hooks {
		w.AddHook(h)
	}
	st := streak.NewService(store, opts.Clock, streakPolicy, opts.Logger)
	ch := challenges.NewService(store, opts.Clock, cat, opts.Rotation, w, st, opts.Logger)
	wh, err := wheel.NewService(store, opts.Clock, opts.Random, opts.Slots, w, st, opts.Logger)
	if err != nil {
		return nil, err
	}
	g := gamble.NewService(store, opts.Random, w, wh, gamblePolicy, opts.Logger)

	return &Engine{
		store:       store,
		clock:       opts.Clock,
		logger:      opts.Logger.WithComponent("engine"),
		debug:       opts.EnableDebugResets,
		userID:      opts.UserID,
		wallet:      w,
		challenges:  ch,
		streak:      st,
		wheel:       wh,
		gamble:      g,
		subscribers: make(map[int]func(Snapshot)),
	}, nil
}

// Start records today's login, settles an interrupted spin and begins
// following store changes. Calling Start again is a no-op.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	if e.started {
		e.mu.Unlock()
		return nil
	}
	e.started = true
	e.mu.Unlock()

	if err := e.RecordLogin(ctx); err != nil {
		return err
	}
	recovered, err := e.wheel.Recover(ctx)
	if err != nil {
		return err
	}
	if recovered != nil {
		e.session.Lock()
		e.last = recovered
		e.session.Unlock()
	}

	cancel := e.store.Subscribe(e.onEvent)
	e.mu.Lock()
	e.unsubscribe = cancel
	e.mu.Unlock()

	_, err = e.Refresh(ctx)
	return err
}

// RecordLogin counts today's session toward the login streak. Only the
// first call of each calendar day writes.
func (e *Engine) RecordLogin(ctx context.Context) error {
	today, err := clock.Today(e.clock)
	if err != nil {
		return err
	}
	e.mu.Lock()
	seen := e.loginDay == today
	e.mu.Unlock()
	if seen {
		return nil
	}

	if _, err := e.streak.Touch(ctx); err != nil {
		return err
	}
	e.mu.Lock()
	e.loginDay = today
	e.mu.Unlock()
	return nil
}

// Close stops following the store. The store itself stays open.
func (e *Engine) Close() error {
	e.mu.Lock()
	cancel, sched := e.unsubscribe, e.scheduler
	e.unsubscribe, e.scheduler = nil, nil
	e.subscribers = make(map[int]func(Snapshot))
	e.started = false
	e.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if sched != nil {
		sched.Stop()
	}
	return nil
}

func (e *Engine) onEvent(ev storage.Event) {
	if !slices.Contains(state.Keys, ev.Key) {
		return
	}
	if _, err := e.Refresh(context.Background()); err != nil {
		e.logger.Warn("Failed to refresh after change to %s: %v", ev.Key, err)
	}
}

// Subscribe calls fn with every new snapshot until the returned cancel runs
func (e *Engine) Subscribe(fn func(Snapshot)) func() {
	e.mu.Lock()
	id := e.nextSub
	e.nextSub++
	e.subscribers[id] = fn
	e.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			e.mu.Lock()
			delete(e.subscribers, id)
			e.mu.Unlock()
		})
	}
}

func (e *Engine) watched() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.subscribers) > 0
}

// Snapshot returns the last computed snapshot
func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshot
}

// Refresh recomputes the snapshot from the store and publishes it when it changed
func (e *Engine) Refresh(ctx context.Context) (Snapshot, error) {
	next, err := e.compute(ctx)
	if err != nil {
		return Snapshot{}, err
	}

	e.mu.Lock()
	changed := !next.equal(e.snapshot)
	e.snapshot = next
	subs := make([]func(Snapshot), 0, len(e.subscribers))
	for _, fn := range e.subscribers {
		subs = append(subs, fn)
	}
	e.mu.Unlock()

	if changed {
		for _, fn := range subs {
			fn(next)
		}
	}
	return next, nil
}

func (e *Engine) compute(ctx context.Context) (Snapshot, error) {
	today, err := clock.Today(e.clock)
	if err != nil {
		return Snapshot{}, err
	}
	balance, err := e.wallet.Balance(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	st, err := e.streak.Status(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	completed, err := e.GetTodaysChallengesCompleted(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	canSpin, err := e.wheel.CanSpin(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	return Snapshot{
		Day:            today,
		Balance:        balance,
		LoginStreak:    st.ConsecutiveDays,
		LongestStreak:  st.LongestStreak,
		Multiplier:     st.Multiplier,
		CompletedToday: completed,
		CanSpin:        canSpin,
	}, nil
}

// WatchDayRollover republishes the snapshot when the calendar day changes
func (e *Engine) WatchDayRollover(ctx context.Context, interval time.Duration) {
	sched := scheduler.NewScheduler(e.logger)
	sched.AddTask("day_rollover", interval, func(ctx context.Context) error {
		today, err := clock.Today(e.clock)
		if err != nil {
			return err
		}
		if today == e.Snapshot().Day {
			return nil
		}
		e.logger.Debug("Day rolled over to %s", today)
		_, err = e.Refresh(ctx)
		return err
	})

	e.mu.Lock()
	previous := e.scheduler
	e.scheduler = sched
	e.mu.Unlock()
	if previous != nil {
		previous.Stop()
	}
	sched.Start(ctx)
}

func (e *Engine) requireDebug() error {
	if !e.debug {
		return types.NewEngineError(types.ErrDebugDisabled, "debug resets are disabled")
	}
	return nil
}

// GetBalance returns the committed balance
func (e *Engine) GetBalance(ctx context.Context) (int64, error) {
	return e.wallet.Balance(ctx)
}

// GetHistory returns every transaction, oldest first
func (e *Engine) GetHistory(ctx context.Context) ([]entities.Transaction, error) {
	return e.wallet.History(ctx)
}

// Statistics aggregates the user's ledger
func (e *Engine) Statistics(ctx context.Context) (*entities.LedgerStatistics, error) {
	w, err := e.wallet.Wallet(ctx)
	if err != nil {
		return nil, err
	}
	return statistics.Compute(e.userID, w.Balance, w.Transactions), nil
}

// GetRecentHistory returns up to limit transactions, newest first
func (e *Engine) GetRecentHistory(ctx context.Context, limit int) ([]entities.Transaction, error) {
	return e.wallet.RecentHistory(ctx, limit)
}

// AwardBucks adds eBucks to the wallet
func (e *Engine) AwardBucks(ctx context.Context, amount int64, reason string, metadata map[string]string, category entities.Category) (string, error) {
	return e.wallet.Award(ctx, amount, reason, wallet.WithCategory(category), wallet.WithMetadata(metadata))
}

// SpendBucks removes eBucks when the balance covers them
func (e *Engine) SpendBucks(ctx context.Context, amount int64, reason string) (bool, error) {
	return e.wallet.Spend(ctx, amount, reason, wallet.WithCategory(entities.CategoryPurchase))
}

// ResetWallet deletes the wallet and its history
func (e *Engine) ResetWallet(ctx context.Context) error {
	if err := e.requireDebug(); err != nil {
		return err
	}
	return e.wallet.Reset(ctx)
}

// GetDailyChallenges returns today's challenges
func (e *Engine) GetDailyChallenges(ctx context.Context) ([]entities.Challenge, error) {
	return e.challenges.ListToday(ctx)
}

// GetTodaysChallengesCompleted returns the ids completed today in completion order
func (e *Engine) GetTodaysChallengesCompleted(ctx context.Context) ([]string, error) {
	records, err := e.challenges.CompletedToday(ctx)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(records))
	for _, r := range records {
		ids = append(ids, r.ChallengeID)
	}
	return ids, nil
}

// CompleteDailyChallenge awards a challenge once per day
func (e *Engine) CompleteDailyChallenge(ctx context.Context, id string, reward *int64, note string) (bool, error) {
	return e.challenges.Complete(ctx, id, reward, note)
}

// ResetChallengeCompletion forgets today's completions
func (e *Engine) ResetChallengeCompletion(ctx context.Context) (int, error) {
	if err := e.requireDebug(); err != nil {
		return 0, err
	}
	return e.challenges.ResetToday(ctx)
}

// GetWheelSlots returns the wheel in rim order
func (e *Engine) GetWheelSlots() []entities.WheelSlot {
	return e.wheel.Slots()
}

// CanSpinWheelToday reports whether today's free spin is unused
func (e *Engine) CanSpinWheelToday(ctx context.Context) (bool, error) {
	return e.wheel.CanSpin(ctx)
}

// WheelState reports the wheel lifecycle state
func (e *Engine) WheelState(ctx context.Context) (wheel.State, error) {
	return e.wheel.State(ctx)
}

// SpinWheel spins and keeps the result for a later gamble
func (e *Engine) SpinWheel(ctx context.Context) (*wheel.Result, error) {
	result, err := e.wheel.Spin(ctx)
	if err != nil {
		return nil, err
	}
	e.session.Lock()
	e.last = result
	e.session.Unlock()
	return result, nil
}

// ResetWheelForToday reopens today's free spin
func (e *Engine) ResetWheelForToday(ctx context.Context) error {
	if err := e.requireDebug(); err != nil {
		return err
	}
	return e.wheel.ResetForToday(ctx)
}

// LastSpin returns the spin available for double-or-nothing, if any
func (e *Engine) LastSpin() *wheel.Result {
	e.session.Lock()
	defer e.session.Unlock()
	if e.last == nil {
		return nil
	}
	r := *e.last
	return &r
}

// DoubleOrNothing gambles the last spin. A resolved gamble clears it.
func (e *Engine) DoubleOrNothing(ctx context.Context) (entities.Settlement, error) {
	e.session.Lock()
	defer e.session.Unlock()

	settlement, err := e.gamble.DoubleOrNothing(ctx, e.last)
	if err != nil {
		return settlement, err
	}
	if settlement.Resolved() {
		e.last = nil
	}
	return settlement, nil
}

// PaidExtraSpin buys and spins one more time today
func (e *Engine) PaidExtraSpin(ctx context.Context) (entities.Settlement, *wheel.Result, error) {
	e.session.Lock()
	defer e.session.Unlock()

	settlement, result, err := e.gamble.PaidExtraSpin(ctx)
	if err != nil {
		return settlement, nil, err
	}
	if result != nil {
		e.last = result
	}
	return settlement, result, nil
}

// LoginStreak returns today's streak status
func (e *Engine) LoginStreak(ctx context.Context) (streak.Status, error) {
	return e.streak.Status(ctx)
}

// Multiplier returns the reward multiplier in effect today
func (e *Engine) Multiplier(ctx context.Context) (int64, error) {
	return e.streak.Multiplier(ctx)
}

// GamblePolicy returns the gamble odds and prices
func (e *Engine) GamblePolicy() gamble.Policy {
	return e.gamble.Policy()
}

// DebugResetsEnabled reports whether debug resets are allowed
func (e *Engine) DebugResetsEnabled() bool {
	return e.debug
}
