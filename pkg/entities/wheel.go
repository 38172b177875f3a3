package entities

import "time"

// RewardType tells whether a wheel slot pays out
type RewardType string

const (
	RewardWin   RewardType = "win"
	RewardBlank RewardType = "blank"
)

// Tier groups wheel slots for probability shaping
type Tier string

const (
	TierJackpot Tier = "jackpot"
	TierBig     Tier = "big"
	TierSmall   Tier = "small"
	TierBlank   Tier = "blank"
)

// WheelSlot is one weighted outcome of the fortune wheel
type WheelSlot struct {
	ID         string     `json:"id" validate:"required"`
	Label      string     `json:"label" validate:"required"`
	Color      string     `json:"color"`
	Weight     float64    `json:"weight" validate:"gt=0"`
	RewardType RewardType `json:"reward_type" validate:"oneof=win blank"`
	Value      int64      `json:"value" validate:"gte=0"`
	Tier       Tier       `json:"tier" validate:"omitempty,oneof=jackpot big small blank"`
}

// IsWin reports whether landing on the slot awards eBucks
func (s WheelSlot) IsWin() bool {
	return s.RewardType == RewardWin && s.Value > 0
}

// PendingSpin is a drawn slot whose reward has not been settled yet
type PendingSpin struct {
	SlotID     string    `json:"slot_id"`
	Value      int64     `json:"value"`
	Multiplier int64     `json:"multiplier"`
	Day        Day       `json:"day"`
	Paid       bool      `json:"paid"`
	StartedAt  time.Time `json:"started_at"`
}

// SpinGate is the per-day free spin marker
type SpinGate struct {
	LastSpinDay Day          `json:"last_spin_day"`
	Pending     *PendingSpin `json:"pending,omitempty"`
}

// CanSpin reports whether the free spin of today is still available
func (g SpinGate) CanSpin(today Day) bool {
	return g.LastSpinDay != today
}
