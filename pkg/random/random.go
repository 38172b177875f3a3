package random

import (
	"math/rand/v2"
	"sync"
)

// Source yields uniform floats in [0, 1)
type Source interface {
	Float64() float64
}

// Locked wraps a rand.Rand so one source can be shared between engines
type Locked struct {
	mu sync.Mutex
	r  *rand.Rand
}

// NewSeeded returns a deterministic source
func NewSeeded(seed uint64) *Locked {
	return &Locked{r: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

// New returns a source seeded from the runtime
func New() *Locked {
	return NewSeeded(rand.Uint64())
}

func (l *Locked) Float64() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.r.Float64()
}

// Sequence replays fixed values, cycling when exhausted
type Sequence struct {
	mu     sync.Mutex
	values []float64
	next   int
}

// NewSequence returns a source that yields values in order
func NewSequence(values ...float64) *Sequence {
	return &Sequence{values: values}
}

func (s *Sequence) Float64() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.values) == 0 {
		return 0
	}
	v := s.values[s.next%len(s.values)]
	s.next++
	return v
}
