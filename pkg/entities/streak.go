package entities

// LoginStreak tracks consecutive days with at least one session
type LoginStreak struct {
	LastLoginDay    Day `json:"last_login_day"`
	ConsecutiveDays int `json:"consecutive_days"`
	LongestStreak   int `json:"longest_streak"`
}
