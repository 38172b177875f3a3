package bot

import (
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"
	"github.com/fadedpez/ebucks/pkg/entities"
	"github.com/fadedpez/ebucks/pkg/services/gamble"
	"github.com/fadedpez/ebucks/pkg/services/statistics"
	"github.com/fadedpez/ebucks/pkg/services/streak"
	"github.com/fadedpez/ebucks/pkg/services/wheel"
)

// Button custom id prefixes, followed by ":" and the owning user id
const (
	ButtonDouble    = "ebucks_double"
	ButtonExtraSpin = "ebucks_extraspin"
)

const tsLayout = "Jan 02 15:04"

func buttonID(prefix, userID string) string {
	return prefix + ":" + userID
}

func parseButtonID(customID string) (prefix, userID string, ok bool) {
	prefix, userID, ok = strings.Cut(customID, ":")
	if !ok || userID == "" {
		return "", "", false
	}
	return prefix, userID, true
}

func formatBalance(balance, multiplier int64) string {
	if multiplier > 1 {
		return fmt.Sprintf("💰 You have **%d** eBucks (streak bonus x%d active)", balance, multiplier)
	}
	return fmt.Sprintf("💰 You have **%d** eBucks", balance)
}

func formatHistory(txs []entities.Transaction) string {
	if len(txs) == 0 {
		return "📜 No transactions yet"
	}
	var sb strings.Builder
	sb.WriteString("📜 **Recent transactions**\n")
	for _, t := range txs {
		sign := "+"
		if t.Amount < 0 {
			sign = ""
		}
		fmt.Fprintf(&sb, "`%s` %s%d %s (balance %d)\n", t.Timestamp.Format(tsLayout), sign, t.Amount, t.Reason, t.BalanceAfter)
	}
	return sb.String()
}

func formatChallenges(list []entities.Challenge, done []string) string {
	if len(list) == 0 {
		return "🗓️ No challenges today"
	}
	completed := make(map[string]bool, len(done))
	for _, id := range done {
		completed[id] = true
	}
	var sb strings.Builder
	sb.WriteString("🗓️ **Today's challenges**\n")
	for _, c := range list {
		mark := "⬜"
		if completed[c.ID] {
			mark = "✅"
		}
		fmt.Fprintf(&sb, "%s `%s` **%s** (%d eBucks)", mark, c.ID, c.Title, c.Reward)
		if c.Description != "" {
			fmt.Fprintf(&sb, ": %s", c.Description)
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

func formatStreak(st streak.Status) string {
	return fmt.Sprintf("🔥 Login streak: **%d** days (best %d), rewards x%d", st.ConsecutiveDays, st.LongestStreak, st.Multiplier)
}

func formatStatistics(s *entities.LedgerStatistics) string {
	var sb strings.Builder
	sb.WriteString("📊 **Your eBucks**\n")
	fmt.Fprintf(&sb, "Balance: **%d** over %d transactions\n", s.Balance, s.Transactions)
	fmt.Fprintf(&sb, "Earned: %d (challenges %d, wheel %d)\n", s.TotalEarned, s.EarnedBy[entities.CategoryChallenge], s.EarnedBy[entities.CategoryWheel])
	fmt.Fprintf(&sb, "Spent: %d\n", s.TotalSpent)
	if s.GamblesPlayed() > 0 {
		fmt.Fprintf(&sb, "Double or nothing: %d won, %d lost (%.0f%%), net %+d\n", s.GamblesWon, s.GamblesLost, s.WinRate(), s.NetProfit())
	}
	return sb.String()
}

func formatLeaderboard(board *statistics.Leaderboard) string {
	if len(board.Players) == 0 {
		return "🏅 Nobody has earned eBucks yet"
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "🏅 **eBucks leaderboard** (page %d/%d)\n", board.CurrentPage, board.TotalPages)
	for _, p := range board.Players {
		badge := ""
		if p.IsTopEarner {
			badge += " 💰"
		}
		if p.IsTopGamer {
			badge += " 🎲"
		}
		fmt.Fprintf(&sb, "%d. <@%s> **%d** eBucks%s\n", p.Rank, p.UserID, p.Balance, badge)
	}
	return sb.String()
}

func formatSpin(r *wheel.Result) string {
	if !r.Slot.IsWin() {
		return fmt.Sprintf("🎡 The wheel stopped on **%s**. No eBucks this time.", r.Slot.Label)
	}
	if r.Multiplier > 1 {
		return fmt.Sprintf("🎡 The wheel stopped on **%s**! You won **%d** eBucks (x%d streak bonus)", r.Slot.Label, r.Awarded, r.Multiplier)
	}
	return fmt.Sprintf("🎡 The wheel stopped on **%s**! You won **%d** eBucks", r.Slot.Label, r.Awarded)
}

func formatDouble(s entities.Settlement) string {
	switch s.Outcome {
	case entities.OutcomeWon:
		return fmt.Sprintf("🎲 Doubled! You gained **%d** eBucks", s.Payout-s.Stake)
	case entities.OutcomeLost:
		return fmt.Sprintf("🎲 Lost the double. **%d** eBucks gone", s.Stake)
	default:
		return fmt.Sprintf("🎲 Double or nothing not available: %s", s.Reason)
	}
}

func formatExtraSpin(s entities.Settlement, r *wheel.Result) string {
	if r == nil {
		return fmt.Sprintf("🎟️ Extra spin not available: %s", s.Reason)
	}
	return fmt.Sprintf("🎟️ Paid %d eBucks for an extra spin\n%s", s.Stake, formatSpin(r))
}

// spinButtons offers the follow-up gambles of a spin
func spinButtons(userID string, r *wheel.Result, policy gamble.Policy) []discordgo.MessageComponent {
	buttons := make([]discordgo.MessageComponent, 0, 2)
	if r != nil && r.Slot.Value > 0 {
		buttons = append(buttons, discordgo.Button{
			Label:    fmt.Sprintf("Double or nothing (%d)", r.Slot.Value),
			Style:    discordgo.DangerButton,
			CustomID: buttonID(ButtonDouble, userID),
		})
	}
	buttons = append(buttons, discordgo.Button{
		Label:    fmt.Sprintf("Extra spin (%d)", policy.ExtraSpinCost),
		Style:    discordgo.PrimaryButton,
		CustomID: buttonID(ButtonExtraSpin, userID),
	})
	return []discordgo.MessageComponent{
		discordgo.ActionsRow{Components: buttons},
	}
}
