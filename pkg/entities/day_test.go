package entities

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDayOfUsesLocation(t *testing.T) {
	tokyo := time.FixedZone("JST", 9*60*60)
	instant := time.Date(2024, 12, 31, 20, 0, 0, 0, time.UTC)

	assert.Equal(t, Day("2024-12-31"), DayOf(instant))
	assert.Equal(t, Day("2025-01-01"), DayOf(instant.In(tokyo)))
}

func TestParseDay(t *testing.T) {
	d, err := ParseDay("2024-02-29")
	require.NoError(t, err)
	assert.Equal(t, Day("2024-02-29"), d)

	_, err = ParseDay("2023-02-29")
	assert.Error(t, err)

	_, err = ParseDay("yesterday")
	assert.Error(t, err)
}

func TestDayArithmetic(t *testing.T) {
	d := Day("2024-02-28")

	assert.Equal(t, Day("2024-02-29"), d.Next())
	assert.Equal(t, Day("2024-03-01"), d.AddDays(2))
	assert.Equal(t, Day("2024-02-27"), d.AddDays(-1))
	assert.Equal(t, 2, d.DaysUntil("2024-03-01"))
	assert.Equal(t, -28, d.DaysUntil("2024-01-31"))
	assert.Equal(t, Day("2025-01-01"), Day("2024-12-31").Next())
}

func TestDayValidity(t *testing.T) {
	assert.True(t, Day("2024-01-01").Valid())
	assert.False(t, Day("").Valid())
	assert.True(t, Day("").IsZero())
	assert.False(t, Day("01/01/2024").Valid())
}

func TestWalletConsistency(t *testing.T) {
	w := NewWallet()
	assert.True(t, w.Consistent())

	w.Transactions = append(w.Transactions, Transaction{Amount: 100}, Transaction{Amount: -40})
	w.Balance = 60
	assert.True(t, w.Consistent())

	w.Balance = 70
	assert.False(t, w.Consistent())
}

func TestCompletions(t *testing.T) {
	c := &Completions{}
	c.Records = append(c.Records,
		CompletionRecord{ChallengeID: "a", Day: "2024-01-01"},
		CompletionRecord{ChallengeID: "b", Day: "2024-01-02"},
		CompletionRecord{ChallengeID: "a", Day: "2024-01-02"},
	)

	assert.True(t, c.Has("a", "2024-01-01"))
	assert.False(t, c.Has("b", "2024-01-01"))
	assert.Len(t, c.On("2024-01-02"), 2)

	assert.Equal(t, 2, c.RemoveDay("2024-01-02"))
	assert.Len(t, c.Records, 1)
	assert.True(t, c.Has("a", "2024-01-01"))
}

func TestSlotIsWin(t *testing.T) {
	assert.True(t, WheelSlot{RewardType: RewardWin, Value: 10}.IsWin())
	assert.False(t, WheelSlot{RewardType: RewardBlank}.IsWin())
	assert.False(t, WheelSlot{RewardType: RewardWin, Value: 0}.IsWin())
}
