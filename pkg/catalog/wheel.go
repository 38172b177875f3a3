package catalog

import (
	"fmt"

	"github.com/fadedpez/ebucks/internal/types"
	"github.com/fadedpez/ebucks/pkg/entities"
)

func win(id, label, color string, weight float64, value int64, tier entities.Tier) entities.WheelSlot {
	return entities.WheelSlot{ID: id, Label: label, Color: color, Weight: weight, RewardType: entities.RewardWin, Value: value, Tier: tier}
}

func blank(id, label, color string, weight float64) entities.WheelSlot {
	return entities.WheelSlot{ID: id, Label: label, Color: color, Weight: weight, RewardType: entities.RewardBlank, Tier: entities.TierBlank}
}

// DefaultWheelSlots returns the 20-slot fortune wheel, alternating tiers around the rim
func DefaultWheelSlots() []entities.WheelSlot {
	return []entities.WheelSlot{
		win("jackpot", "JACKPOT 500", "#FFD700", 1, 500, entities.TierJackpot),
		win("small-10-a", "10", "#4CAF50", 8, 10, entities.TierSmall),
		blank("blank-a", "Try again", "#9E9E9E", 6),
		win("small-15-a", "15", "#8BC34A", 7, 15, entities.TierSmall),
		win("big-100-a", "100", "#2196F3", 2, 100, entities.TierBig),
		win("small-20-a", "20", "#4CAF50", 6, 20, entities.TierSmall),
		blank("blank-b", "So close", "#9E9E9E", 6),
		win("small-25", "25", "#8BC34A", 5, 25, entities.TierSmall),
		win("big-75", "75", "#3F51B5", 3, 75, entities.TierBig),
		win("small-10-b", "10", "#4CAF50", 8, 10, entities.TierSmall),
		win("mega-250", "250", "#FF9800", 1, 250, entities.TierJackpot),
		win("small-15-b", "15", "#8BC34A", 7, 15, entities.TierSmall),
		blank("blank-c", "Next time", "#9E9E9E", 6),
		win("small-20-b", "20", "#4CAF50", 6, 20, entities.TierSmall),
		win("big-100-b", "100", "#2196F3", 2, 100, entities.TierBig),
		win("small-30", "30", "#8BC34A", 5, 30, entities.TierSmall),
		blank("blank-d", "Almost", "#9E9E9E", 6),
		win("small-10-c", "10", "#4CAF50", 8, 10, entities.TierSmall),
		win("big-50", "50", "#3F51B5", 4, 50, entities.TierBig),
		win("small-5", "5", "#CDDC39", 9, 5, entities.TierSmall),
	}
}

// ValidateWheelSlots checks weights, reward consistency and id uniqueness
func ValidateWheelSlots(slots []entities.WheelSlot) error {
	if len(slots) == 0 {
		return types.NewEngineError(types.ErrInvalidCatalog, "wheel has no slots")
	}
	seen := make(map[string]bool, len(slots))
	for i, s := range slots {
		if err := validate.Struct(s); err != nil {
			return types.WrapError(types.ErrInvalidCatalog, fmt.Sprintf("slot %d (%q) is invalid", i, s.ID), err)
		}
		if s.RewardType == entities.RewardBlank && s.Value != 0 {
			return types.NewEngineError(types.ErrInvalidCatalog, fmt.Sprintf("blank slot %q carries value %d", s.ID, s.Value))
		}
		if s.RewardType == entities.RewardWin && s.Value <= 0 {
			return types.NewEngineError(types.ErrInvalidCatalog, fmt.Sprintf("win slot %q has no value", s.ID))
		}
		if seen[s.ID] {
			return types.NewEngineError(types.ErrInvalidCatalog, fmt.Sprintf("duplicate slot id %q", s.ID))
		}
		seen[s.ID] = true
	}
	return nil
}

// TierWeights sums slot weights per tier
func TierWeights(slots []entities.WheelSlot) map[entities.Tier]float64 {
	out := make(map[entities.Tier]float64)
	for _, s := range slots {
		out[s.Tier] += s.Weight
	}
	return out
}
