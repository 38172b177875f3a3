package wheel

import (
	"context"
	"strconv"
	"sync"

	"github.com/fadedpez/ebucks/internal/logging"
	"github.com/fadedpez/ebucks/internal/types"
	"github.com/fadedpez/ebucks/pkg/catalog"
	"github.com/fadedpez/ebucks/pkg/clock"
	"github.com/fadedpez/ebucks/pkg/entities"
	"github.com/fadedpez/ebucks/pkg/random"
	"github.com/fadedpez/ebucks/pkg/repositories/state"
	"github.com/fadedpez/ebucks/pkg/services/streak"
	"github.com/fadedpez/ebucks/pkg/services/wallet"
	"github.com/fadedpez/ebucks/pkg/storage"
)

// WinReason is the ledger reason of a wheel payout
const WinReason = "Fortune wheel win"

// State is the wheel's position in its spin lifecycle
type State string

const (
	StateIdleGated     State = "idle_gated"
	StateIdleAvailable State = "idle_available"
	StateSpinning      State = "spinning"
	StateResultPending State = "result_pending"
	StateSettled       State = "settled"
)

// Result is a settled spin
type Result struct {
	Slot          entities.WheelSlot `json:"slot"`
	Awarded       int64              `json:"awarded"`
	Multiplier    int64              `json:"multiplier"`
	TransactionID string             `json:"transaction_id,omitempty"`
	Paid          bool               `json:"paid"`
}

// Service runs the fortune wheel
type Service struct {
	store  storage.Store
	clock  clock.Clock
	random random.Source
	slots  []entities.WheelSlot
	byID   map[string]int
	wallet *wallet.Service
	streak *streak.Service
	logger *logging.Logger

	mu         sync.Mutex
	extra      bool
	spinning   bool
	settledDay entities.Day
}

// NewService validates slots and creates a wheel service
func NewService(store storage.Store, clk clock.Clock, src random.Source, slots []entities.WheelSlot, w *wallet.Service, st *streak.Service, logger *logging.Logger) (*Service, error) {
	if err := catalog.ValidateWheelSlots(slots); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = logging.Nop()
	}

	s := &Service{
		store:  store,
		clock:  clk,
		random: src,
		slots:  make([]entities.WheelSlot, len(slots)),
		byID:   make(map[string]int, len(slots)),
		wallet: w,
		streak: st,
		logger: logger.WithComponent("wheel"),
	}
	copy(s.slots, slots)
	for i, slot := range slots {
		s.byID[slot.ID] = i
	}
	return s, nil
}

// Slots returns the slot table in wheel order
func (s *Service) Slots() []entities.WheelSlot {
	out := make([]entities.WheelSlot, len(s.slots))
	copy(out, s.slots)
	return out
}

// CanSpin reports whether today's free spin is still available
func (s *Service) CanSpin(ctx context.Context) (bool, error) {
	today, err := clock.Today(s.clock)
	if err != nil {
		return false, err
	}
	gate, err := state.ReadGate(ctx, s.store)
	if err != nil {
		return false, err
	}
	return gate.CanSpin(today), nil
}

// State reports where the wheel is in its lifecycle
func (s *Service) State(ctx context.Context) (State, error) {
	s.mu.Lock()
	spinning, extra, settledDay := s.spinning, s.extra, s.settledDay
	s.mu.Unlock()

	if spinning {
		return StateSpinning, nil
	}

	today, err := clock.Today(s.clock)
	if err != nil {
		return "", err
	}
	gate, err := state.ReadGate(ctx, s.store)
	if err != nil {
		return "", err
	}

	switch {
	case gate.Pending != nil:
		return StateResultPending, nil
	case extra || gate.CanSpin(today):
		return StateIdleAvailable, nil
	case settledDay == today:
		return StateSettled, nil
	default:
		return StateIdleGated, nil
	}
}

// GrantExtraSpin lets the next Spin bypass the daily gate once. The grant
// lives in memory only and never moves the stored gate.
func (s *Service) GrantExtraSpin() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.extra = true
}

// HasExtraSpin reports whether an unused extra spin is held
func (s *Service) HasExtraSpin() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.extra
}

// Spin draws a slot and settles it. The gate and the drawn slot commit first,
// the payout second, so an interrupted spin leaves a pending result for
// Recover rather than a second chance.
func (s *Service) Spin(ctx context.Context) (*Result, error) {
	now, err := s.clock.Now()
	if err != nil {
		return nil, err
	}
	today := entities.DayOf(now)

	s.mu.Lock()
	if s.spinning {
		s.mu.Unlock()
		return nil, types.NewEngineError(types.ErrInvalidArgument, "a spin is already in progress")
	}
	paid := s.extra
	s.spinning = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.spinning = false
		s.mu.Unlock()
	}()

	slot := Select(s.slots, s.random)

	var pending entities.PendingSpin
	var leftover entities.Transaction
	err = s.store.Update(ctx, func(tx storage.Tx) error {
		gate, err := state.LoadGate(tx)
		if err != nil {
			return err
		}
		if !paid && !gate.CanSpin(today) {
			return types.NewEngineError(types.ErrAlreadySpunToday, "already spun today, come back tomorrow")
		}
		if gate.Pending != nil {
			// an earlier spin never settled; pay it before drawing over it
			if _, leftover, err = s.settleTx(tx, gate); err != nil {
				return err
			}
		}

		multiplier, err := s.streak.MultiplierTx(tx)
		if err != nil {
			return err
		}
		pending = entities.PendingSpin{
			SlotID:     slot.ID,
			Value:      slot.Value,
			Multiplier: multiplier,
			Day:        today,
			Paid:       paid,
			StartedAt:  now,
		}
		if !paid {
			gate.LastSpinDay = today
		}
		gate.Pending = &pending
		return state.SaveGate(tx, gate)
	})
	if err != nil {
		return nil, state.StorageError(err)
	}
	s.wallet.Notify(ctx, leftover)

	if paid {
		s.mu.Lock()
		s.extra = false
		s.mu.Unlock()
	}
	s.logger.Debug("Wheel landed on %s (paid=%t)", slot.ID, paid)

	result, err := s.settle(ctx, &pending)
	if err != nil {
		return nil, err
	}
	if result == nil {
		// another engine settled this spin first
		result = s.resultOf(pending, "")
	}

	s.mu.Lock()
	s.settledDay = today
	s.mu.Unlock()
	return result, nil
}

// Recover settles a pending result left by an interrupted spin. It returns
// nil when nothing was pending.
func (s *Service) Recover(ctx context.Context) (*Result, error) {
	result, err := s.settle(ctx, nil)
	if err != nil {
		return nil, err
	}
	if result != nil {
		s.logger.Info("Recovered pending spin on %s, awarded %d", result.Slot.ID, result.Awarded)
	}
	return result, nil
}

// ResetForToday reopens today's free spin
func (s *Service) ResetForToday(ctx context.Context) error {
	today, err := clock.Today(s.clock)
	if err != nil {
		return err
	}
	err = s.store.Update(ctx, func(tx storage.Tx) error {
		gate, err := state.LoadGate(tx)
		if err != nil {
			return err
		}
		if gate.LastSpinDay != today {
			return nil
		}
		gate.LastSpinDay = ""
		return state.SaveGate(tx, gate)
	})
	if err != nil {
		return state.StorageError(err)
	}

	s.mu.Lock()
	s.settledDay = ""
	s.mu.Unlock()
	s.logger.Info("Wheel gate reset for %s", today)
	return nil
}

// settle pays the stored pending spin. When expect is set only that spin is settled.
func (s *Service) settle(ctx context.Context, expect *entities.PendingSpin) (*Result, error) {
	var result *Result
	var committed entities.Transaction
	err := s.store.Update(ctx, func(tx storage.Tx) error {
		gate, err := state.LoadGate(tx)
		if err != nil {
			return err
		}
		if gate.Pending == nil {
			return nil
		}
		if expect != nil && !samePending(*gate.Pending, *expect) {
			return nil
		}
		result, committed, err = s.settleTx(tx, gate)
		if err != nil {
			return err
		}
		return state.SaveGate(tx, gate)
	})
	if err != nil {
		return nil, state.StorageError(err)
	}
	s.wallet.Notify(ctx, committed)
	return result, nil
}

// settleTx awards gate.Pending and clears it. The caller saves gate.
func (s *Service) settleTx(tx storage.Tx, gate *entities.SpinGate) (*Result, entities.Transaction, error) {
	p := *gate.Pending
	gate.Pending = nil
	if p.Multiplier < 1 {
		p.Multiplier = 1
	}

	amount := p.Value * p.Multiplier
	if amount <= 0 {
		return s.resultOf(p, ""), entities.Transaction{}, nil
	}

	t, err := s.wallet.AwardTx(tx, amount, WinReason,
		wallet.WithCategory(entities.CategoryWheel),
		wallet.WithMetadata(map[string]string{
			"slot_id":    p.SlotID,
			"multiplier": strconv.FormatInt(p.Multiplier, 10),
			"paid":       strconv.FormatBool(p.Paid),
		}),
	)
	if err != nil {
		return nil, entities.Transaction{}, err
	}
	return s.resultOf(p, t.ID), t, nil
}

func (s *Service) resultOf(p entities.PendingSpin, txID string) *Result {
	slot := entities.WheelSlot{ID: p.SlotID, Label: p.SlotID, Value: p.Value, RewardType: entities.RewardBlank}
	if i, ok := s.byID[p.SlotID]; ok {
		slot = s.slots[i]
	} else if p.Value > 0 {
		slot.RewardType = entities.RewardWin
	}

	if p.Multiplier < 1 {
		p.Multiplier = 1
	}
	return &Result{
		Slot:          slot,
		Awarded:       p.Value * p.Multiplier,
		Multiplier:    p.Multiplier,
		TransactionID: txID,
		Paid:          p.Paid,
	}
}

func samePending(a, b entities.PendingSpin) bool {
	return a.SlotID == b.SlotID && a.StartedAt.Equal(b.StartedAt) && a.Day == b.Day
}
