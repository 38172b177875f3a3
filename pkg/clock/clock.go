package clock

import (
	"fmt"
	"sync"
	"time"

	"github.com/fadedpez/ebucks/internal/types"
	"github.com/fadedpez/ebucks/pkg/entities"
)

// Years outside this range are treated as a broken host clock
const (
	MinYear = 2000
	MaxYear = 9999
)

//go:generate mockgen -source=$GOFILE -destination=mock/mock.go -package=mock_clock
type Clock interface {
	// Now returns the current local time or a CLOCK_FAULT error
	Now() (time.Time, error)
}

// Today returns the calendar day of c
func Today(c Clock) (entities.Day, error) {
	now, err := c.Now()
	if err != nil {
		return "", err
	}
	return entities.DayOf(now), nil
}

// Check rejects instants no trustworthy clock would report
func Check(t time.Time) error {
	if y := t.Year(); y < MinYear || y > MaxYear {
		return types.NewEngineError(types.ErrClockFault, fmt.Sprintf("clock reports year %d", y))
	}
	return nil
}

// System reads the host clock in a fixed location
type System struct {
	Location *time.Location
}

// NewSystem returns a clock in the host's local zone
func NewSystem() *System {
	return &System{Location: time.Local}
}

func (s *System) Now() (time.Time, error) {
	loc := s.Location
	if loc == nil {
		loc = time.Local
	}
	now := time.Now().In(loc)
	if err := Check(now); err != nil {
		return time.Time{}, err
	}
	return now, nil
}

// Fixed is a manually advanced clock for tests and tooling
type Fixed struct {
	mu  sync.Mutex
	now time.Time
}

// NewFixed returns a clock frozen at t
func NewFixed(t time.Time) *Fixed {
	return &Fixed{now: t}
}

func (f *Fixed) Now() (time.Time, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := Check(f.now); err != nil {
		return time.Time{}, err
	}
	return f.now, nil
}

// Set moves the clock to t
func (f *Fixed) Set(t time.Time) {
	f.mu.Lock()
	f.now = t
	f.mu.Unlock()
}

// Advance moves the clock forward by d
func (f *Fixed) Advance(d time.Duration) {
	f.mu.Lock()
	f.now = f.now.Add(d)
	f.mu.Unlock()
}

// AdvanceDays moves the clock forward by n calendar days
func (f *Fixed) AdvanceDays(n int) {
	f.mu.Lock()
	f.now = f.now.AddDate(0, 0, n)
	f.mu.Unlock()
}
