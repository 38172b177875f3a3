package catalog

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/fadedpez/ebucks/internal/types"
	"github.com/fadedpez/ebucks/pkg/entities"
	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// DefaultChallenges returns the built-in merchant training challenges
func DefaultChallenges() []entities.Challenge {
	return []entities.Challenge{
		{ID: "quiz-master", Title: "Quiz Master", Description: "Score 100% on any lesson quiz", Category: "learning", Difficulty: entities.DifficultyMedium, Reward: 50},
		{ID: "first-lesson", Title: "Lesson Learner", Description: "Finish one lesson from start to end", Category: "learning", Difficulty: entities.DifficultyEasy, Reward: 20},
		{ID: "faq-explorer", Title: "FAQ Explorer", Description: "Read three FAQ answers", Category: "learning", Difficulty: entities.DifficultyEasy, Reward: 10},
		{ID: "pos-practice", Title: "Register Rehearsal", Description: "Run a practice sale on the point-of-sale simulator", Category: "practice", Difficulty: entities.DifficultyMedium, Reward: 30},
		{ID: "refund-drill", Title: "Refund Drill", Description: "Process a practice refund without errors", Category: "practice", Difficulty: entities.DifficultyMedium, Reward: 30},
		{ID: "chargeback-pro", Title: "Chargeback Pro", Description: "Resolve a simulated chargeback dispute", Category: "practice", Difficulty: entities.DifficultyHard, Reward: 75},
		{ID: "fraud-spotter", Title: "Fraud Spotter", Description: "Flag every suspicious order in the fraud exercise", Category: "security", Difficulty: entities.DifficultyHard, Reward: 80},
		{ID: "daily-checkin", Title: "Daily Check-in", Description: "Open the portal today", Category: "engagement", Difficulty: entities.DifficultyEasy, Reward: 5},
	}
}

// ValidateChallenges checks every entry and rejects duplicate ids
func ValidateChallenges(challenges []entities.Challenge) error {
	if len(challenges) == 0 {
		return types.NewEngineError(types.ErrInvalidCatalog, "challenge catalog is empty")
	}
	seen := make(map[string]bool, len(challenges))
	for i, c := range challenges {
		if err := validate.Struct(c); err != nil {
			return types.WrapError(types.ErrInvalidCatalog, fmt.Sprintf("challenge %d (%q) is invalid", i, c.ID), err)
		}
		if seen[c.ID] {
			return types.NewEngineError(types.ErrInvalidCatalog, fmt.Sprintf("duplicate challenge id %q", c.ID))
		}
		seen[c.ID] = true
	}
	return nil
}

// LoadChallenges reads and validates a JSON array of challenges from path
func LoadChallenges(path string) ([]entities.Challenge, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, types.WrapError(types.ErrInvalidCatalog, "failed to read challenge catalog", err)
	}

	var challenges []entities.Challenge
	if err := json.Unmarshal(data, &challenges); err != nil {
		return nil, types.WrapError(types.ErrInvalidCatalog, "failed to parse challenge catalog", err)
	}
	if err := ValidateChallenges(challenges); err != nil {
		return nil, err
	}
	return challenges, nil
}
