package wheel

import (
	"github.com/fadedpez/ebucks/pkg/entities"
	"github.com/fadedpez/ebucks/pkg/random"
)

// TotalWeight sums the weights of slots
func TotalWeight(slots []entities.WheelSlot) float64 {
	total := 0.0
	for _, s := range slots {
		total += s.Weight
	}
	return total
}

// Select draws r in [0, total) and returns the first slot whose cumulative
// weight exceeds it. slots must be non-empty with positive weights.
func Select(slots []entities.WheelSlot, src random.Source) entities.WheelSlot {
	r := src.Float64() * TotalWeight(slots)
	cumulative := 0.0
	for _, s := range slots {
		cumulative += s.Weight
		if r < cumulative {
			return s
		}
	}
	// float rounding can leave r at the very top of the range
	return slots[len(slots)-1]
}
