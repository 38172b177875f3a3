package entities

// GambleAction names a post-spin gamble
type GambleAction string

const (
	ActionDoubleOrNothing GambleAction = "double_or_nothing"
	ActionExtraSpin       GambleAction = "extra_spin"
)

// Outcome is how a gamble resolved
type Outcome string

const (
	OutcomeWon      Outcome = "won"
	OutcomeLost     Outcome = "lost"
	OutcomeDeclined Outcome = "declined"
)

// Settlement reports a resolved gamble
type Settlement struct {
	Action  GambleAction `json:"action"`
	Outcome Outcome      `json:"outcome"`
	Stake   int64        `json:"stake"`
	Payout  int64        `json:"payout"`
	Reason  string       `json:"reason,omitempty"`
	Slot    *WheelSlot   `json:"slot,omitempty"`
}

// Resolved reports whether the gamble moved eBucks
func (s Settlement) Resolved() bool {
	return s.Outcome != OutcomeDeclined
}
