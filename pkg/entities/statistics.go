package entities

import "time"

// LedgerStatistics aggregates a user's transaction log
type LedgerStatistics struct {
	UserID         string             `json:"user_id"`
	Balance        int64              `json:"balance"`
	Transactions   int                `json:"transactions"`
	TotalEarned    int64              `json:"total_earned"`
	TotalSpent     int64              `json:"total_spent"`
	EarnedBy       map[Category]int64 `json:"earned_by"`
	SpentBy        map[Category]int64 `json:"spent_by"`
	GamblesWon     int                `json:"gambles_won"`
	GamblesLost    int                `json:"gambles_lost"`
	GambleStaked   int64              `json:"gamble_staked"`
	GambleReturned int64              `json:"gamble_returned"`
	LastActivity   time.Time          `json:"last_activity"`
}

// GamblesPlayed is the number of resolved double-or-nothing bets
func (s *LedgerStatistics) GamblesPlayed() int {
	return s.GamblesWon + s.GamblesLost
}

// NetProfit calculates the user's net gambling profit
func (s *LedgerStatistics) NetProfit() int64 {
	return s.GambleReturned - s.GambleStaked
}

// WinRate calculates the gamble win rate as a percentage
func (s *LedgerStatistics) WinRate() float64 {
	if s.GamblesPlayed() == 0 {
		return 0.0
	}
	return float64(s.GamblesWon) / float64(s.GamblesPlayed()) * 100.0
}
