package entities

import "time"

// Difficulty of a challenge, used for display only
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// Challenge is an entry of the externally supplied challenge catalog
type Challenge struct {
	ID          string     `json:"id" validate:"required"`
	Title       string     `json:"title" validate:"required"`
	Description string     `json:"description"`
	Category    string     `json:"category"`
	Difficulty  Difficulty `json:"difficulty" validate:"omitempty,oneof=easy medium hard"`
	Reward      int64      `json:"reward" validate:"gt=0"`
}

// CompletionRecord marks a challenge as completed on a calendar day
type CompletionRecord struct {
	ChallengeID   string    `json:"challenge_id"`
	Day           Day       `json:"day"`
	CompletedAt   time.Time `json:"completed_at"`
	Reward        int64     `json:"reward"`
	TransactionID string    `json:"transaction_id"`
}

// Completions is the persisted set of completion records, oldest first
type Completions struct {
	Records []CompletionRecord `json:"records"`
}

// Has reports whether challengeID was completed on day
func (c *Completions) Has(challengeID string, day Day) bool {
	for _, r := range c.Records {
		if r.ChallengeID == challengeID && r.Day == day {
			return true
		}
	}
	return false
}

// On returns the records of a given day in completion order
func (c *Completions) On(day Day) []CompletionRecord {
	out := make([]CompletionRecord, 0)
	for _, r := range c.Records {
		if r.Day == day {
			out = append(out, r)
		}
	}
	return out
}

// RemoveDay drops every record of day and returns how many were removed
func (c *Completions) RemoveDay(day Day) int {
	kept := c.Records[:0]
	removed := 0
	for _, r := range c.Records {
		if r.Day == day {
			removed++
			continue
		}
		kept = append(kept, r)
	}
	c.Records = kept
	return removed
}
