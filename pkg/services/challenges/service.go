package challenges

import (
	"context"
	"fmt"

	"github.com/fadedpez/ebucks/internal/logging"
	"github.com/fadedpez/ebucks/internal/types"
	"github.com/fadedpez/ebucks/pkg/catalog"
	"github.com/fadedpez/ebucks/pkg/clock"
	"github.com/fadedpez/ebucks/pkg/entities"
	"github.com/fadedpez/ebucks/pkg/repositories/state"
	"github.com/fadedpez/ebucks/pkg/services/streak"
	"github.com/fadedpez/ebucks/pkg/services/wallet"
	"github.com/fadedpez/ebucks/pkg/storage"
)

// Catalog is an ordered, validated set of challenges keyed by id
type Catalog struct {
	entries []entities.Challenge
	byID    map[string]int
}

// NewCatalog validates entries and indexes them
func NewCatalog(entries []entities.Challenge) (*Catalog, error) {
	if err := catalog.ValidateChallenges(entries); err != nil {
		return nil, err
	}
	c := &Catalog{
		entries: make([]entities.Challenge, len(entries)),
		byID:    make(map[string]int, len(entries)),
	}
	copy(c.entries, entries)
	for i, e := range entries {
		c.byID[e.ID] = i
	}
	return c, nil
}

// Get looks a challenge up by id
func (c *Catalog) Get(id string) (entities.Challenge, bool) {
	i, ok := c.byID[id]
	if !ok {
		return entities.Challenge{}, false
	}
	return c.entries[i], true
}

// All returns every challenge in catalog order
func (c *Catalog) All() []entities.Challenge {
	out := make([]entities.Challenge, len(c.entries))
	copy(out, c.entries)
	return out
}

// Service tracks daily challenge completions
type Service struct {
	store    storage.Store
	clock    clock.Clock
	catalog  *Catalog
	rotation Rotation
	wallet   *wallet.Service
	streak   *streak.Service
	logger   *logging.Logger
}

// NewService creates a new challenge service
func NewService(store storage.Store, clk clock.Clock, cat *Catalog, rotation Rotation, w *wallet.Service, st *streak.Service, logger *logging.Logger) *Service {
	if rotation == nil {
		rotation = FullCatalog{}
	}
	if logger == nil {
		logger = logging.Nop()
	}
	return &Service{
		store:    store,
		clock:    clk,
		catalog:  cat,
		rotation: rotation,
		wallet:   w,
		streak:   st,
		logger:   logger.WithComponent("challenges"),
	}
}

// ListToday returns the challenges offered today
func (s *Service) ListToday(ctx context.Context) ([]entities.Challenge, error) {
	today, err := clock.Today(s.clock)
	if err != nil {
		return nil, err
	}
	return s.rotation.Today(s.catalog.All(), today), nil
}

// IsCompletedToday reports whether id has been completed today
func (s *Service) IsCompletedToday(ctx context.Context, id string) (bool, error) {
	today, err := clock.Today(s.clock)
	if err != nil {
		return false, err
	}
	c, err := state.ReadCompletions(ctx, s.store)
	if err != nil {
		return false, err
	}
	return c.Has(id, today), nil
}

// CompletedToday returns today's completion records in completion order
func (s *Service) CompletedToday(ctx context.Context) ([]entities.CompletionRecord, error) {
	today, err := clock.Today(s.clock)
	if err != nil {
		return nil, err
	}
	c, err := state.ReadCompletions(ctx, s.store)
	if err != nil {
		return nil, err
	}
	return c.On(today), nil
}

// Complete awards a challenge at most once per day. The award and the
// completion record commit in the same transaction. A repeat on the same
// day returns false and writes nothing.
func (s *Service) Complete(ctx context.Context, id string, rewardOverride *int64, note string) (bool, error) {
	now, err := s.clock.Now()
	if err != nil {
		return false, err
	}
	today := entities.DayOf(now)

	challenge, err := s.offered(id, today)
	if err != nil {
		return false, err
	}

	base := challenge.Reward
	if rewardOverride != nil {
		if *rewardOverride <= 0 {
			return false, types.NewEngineError(types.ErrInvalidAmount, fmt.Sprintf("reward must be positive, got %d", *rewardOverride))
		}
		base = *rewardOverride
	}
	reason := note
	if reason == "" {
		reason = challenge.Title
	}

	var committed entities.Transaction
	completed := false
	err = s.store.Update(ctx, func(tx storage.Tx) error {
		records, err := state.LoadCompletions(tx)
		if err != nil {
			return err
		}
		if records.Has(id, today) {
			return nil
		}

		multiplier, err := s.streak.MultiplierTx(tx)
		if err != nil {
			return err
		}

		reward, err := wallet.Scale(base, multiplier)
		if err != nil {
			return err
		}
		t, err := s.wallet.AwardTx(tx, reward, reason,
			wallet.WithCategory(entities.CategoryChallenge),
			wallet.WithMetadata(map[string]string{
				"challenge_id": id,
				"multiplier":   fmt.Sprintf("%d", multiplier),
			}),
		)
		if err != nil {
			return err
		}

		records.Records = append(records.Records, entities.CompletionRecord{
			ChallengeID:   id,
			Day:           today,
			CompletedAt:   now,
			Reward:        t.Amount,
			TransactionID: t.ID,
		})
		if err := state.SaveCompletions(tx, records); err != nil {
			return err
		}
		committed = t
		completed = true
		return nil
	})
	if err != nil {
		return false, state.StorageError(err)
	}
	if !completed {
		s.logger.Debug("Challenge %s already done today", id)
		return false, nil
	}

	s.logger.Info("Challenge %s completed for %d eBucks", id, committed.Amount)
	s.wallet.Notify(ctx, committed)
	return true, nil
}

// ResetToday forgets today's completions without reversing their awards
func (s *Service) ResetToday(ctx context.Context) (int, error) {
	today, err := clock.Today(s.clock)
	if err != nil {
		return 0, err
	}

	removed := 0
	err = s.store.Update(ctx, func(tx storage.Tx) error {
		records, err := state.LoadCompletions(tx)
		if err != nil {
			return err
		}
		removed = records.RemoveDay(today)
		if removed == 0 {
			return nil
		}
		return state.SaveCompletions(tx, records)
	})
	if err != nil {
		return 0, state.StorageError(err)
	}
	s.logger.Info("Reset %d challenge completions for %s", removed, today)
	return removed, nil
}

func (s *Service) offered(id string, today entities.Day) (entities.Challenge, error) {
	challenge, ok := s.catalog.Get(id)
	if !ok {
		return entities.Challenge{}, types.NewEngineError(types.ErrUnknownChallenge, fmt.Sprintf("unknown challenge %q", id))
	}
	for _, c := range s.rotation.Today(s.catalog.All(), today) {
		if c.ID == id {
			return challenge, nil
		}
	}
	return entities.Challenge{}, types.NewEngineError(types.ErrUnknownChallenge, fmt.Sprintf("challenge %q is not offered today", id))
}
