package streak

import (
	"context"

	"github.com/fadedpez/ebucks/internal/logging"
	"github.com/fadedpez/ebucks/pkg/clock"
	"github.com/fadedpez/ebucks/pkg/entities"
	"github.com/fadedpez/ebucks/pkg/repositories/state"
	"github.com/fadedpez/ebucks/pkg/storage"
)

// Policy holds the streak lengths that unlock reward multipliers
type Policy struct {
	DoubleAt int
	TripleAt int
}

// DefaultPolicy doubles rewards from day 7 and triples them from day 14
func DefaultPolicy() Policy {
	return Policy{DoubleAt: 7, TripleAt: 14}
}

// Multiplier returns the reward multiplier for a streak of days
func (p Policy) Multiplier(days int) int64 {
	switch {
	case p.TripleAt > 0 && days >= p.TripleAt:
		return 3
	case p.DoubleAt > 0 && days >= p.DoubleAt:
		return 2
	default:
		return 1
	}
}

// Status is the streak as shown to the user
type Status struct {
	ConsecutiveDays int          `json:"consecutive_days"`
	LongestStreak   int          `json:"longest_streak"`
	Multiplier      int64        `json:"multiplier"`
	LastLoginDay    entities.Day `json:"last_login_day"`
}

// Advance applies a login on today to ls
func Advance(ls entities.LoginStreak, today entities.Day) entities.LoginStreak {
	switch {
	case ls.LastLoginDay == today:
		return ls
	case !ls.LastLoginDay.IsZero() && ls.LastLoginDay.Next() == today:
		ls.ConsecutiveDays++
	default:
		ls.ConsecutiveDays = 1
	}
	ls.LastLoginDay = today
	if ls.ConsecutiveDays > ls.LongestStreak {
		ls.LongestStreak = ls.ConsecutiveDays
	}
	return ls
}

// Effective returns the streak length still alive on today. A streak whose
// last login is older than yesterday is broken even before the next touch.
func Effective(ls entities.LoginStreak, today entities.Day) int {
	if ls.LastLoginDay == today || (!ls.LastLoginDay.IsZero() && ls.LastLoginDay.Next() == today) {
		return ls.ConsecutiveDays
	}
	return 0
}

// Service tracks consecutive login days
type Service struct {
	store  storage.Store
	clock  clock.Clock
	policy Policy
	logger *logging.Logger
}

// NewService creates a new streak service
func NewService(store storage.Store, clk clock.Clock, policy Policy, logger *logging.Logger) *Service {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Service{
		store:  store,
		clock:  clk,
		policy: policy,
		logger: logger.WithComponent("streak"),
	}
}

// Policy returns the multiplier thresholds in use
func (s *Service) Policy() Policy {
	return s.policy
}

// Touch records a session today and returns the resulting status
func (s *Service) Touch(ctx context.Context) (Status, error) {
	today, err := clock.Today(s.clock)
	if err != nil {
		return Status{}, err
	}

	var next entities.LoginStreak
	err = s.store.Update(ctx, func(tx storage.Tx) error {
		current, err := state.LoadStreak(tx)
		if err != nil {
			return err
		}
		next = Advance(*current, today)
		if next == *current {
			return nil
		}
		return state.SaveStreak(tx, &next)
	})
	if err != nil {
		return Status{}, state.StorageError(err)
	}

	s.logger.Debug("Login streak at %d days", next.ConsecutiveDays)
	return s.status(next, today), nil
}

// Current returns the stored streak
func (s *Service) Current(ctx context.Context) (entities.LoginStreak, error) {
	ls, err := state.ReadStreak(ctx, s.store)
	if err != nil {
		return entities.LoginStreak{}, err
	}
	return *ls, nil
}

// Status returns the streak as of today without recording a login
func (s *Service) Status(ctx context.Context) (Status, error) {
	today, err := clock.Today(s.clock)
	if err != nil {
		return Status{}, err
	}
	ls, err := s.Current(ctx)
	if err != nil {
		return Status{}, err
	}
	return s.status(ls, today), nil
}

// Multiplier returns the reward multiplier in effect today
func (s *Service) Multiplier(ctx context.Context) (int64, error) {
	st, err := s.Status(ctx)
	if err != nil {
		return 0, err
	}
	return st.Multiplier, nil
}

// MultiplierTx reads the multiplier inside an open transaction
func (s *Service) MultiplierTx(tx storage.Tx) (int64, error) {
	today, err := clock.Today(s.clock)
	if err != nil {
		return 0, err
	}
	ls, err := state.LoadStreak(tx)
	if err != nil {
		return 0, err
	}
	return s.policy.Multiplier(Effective(*ls, today)), nil
}

func (s *Service) status(ls entities.LoginStreak, today entities.Day) Status {
	days := Effective(ls, today)
	return Status{
		ConsecutiveDays: days,
		LongestStreak:   ls.LongestStreak,
		Multiplier:      s.policy.Multiplier(days),
		LastLoginDay:    ls.LastLoginDay,
	}
}
