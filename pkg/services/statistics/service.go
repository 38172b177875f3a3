package statistics

import (
	"context"
	"sort"
	"time"

	"github.com/fadedpez/ebucks/pkg/entities"
)

// Compute aggregates a transaction log, oldest first as the wallet keeps it
func Compute(userID string, balance int64, txs []entities.Transaction) *entities.LedgerStatistics {
	stats := &entities.LedgerStatistics{
		UserID:       userID,
		Balance:      balance,
		Transactions: len(txs),
		EarnedBy:     make(map[entities.Category]int64),
		SpentBy:      make(map[entities.Category]int64),
	}

	bets := 0
	for _, t := range txs {
		if t.Timestamp.After(stats.LastActivity) {
			stats.LastActivity = t.Timestamp
		}
		if t.Amount > 0 {
			stats.TotalEarned += t.Amount
			stats.EarnedBy[t.Category] += t.Amount
		} else {
			stats.TotalSpent += -t.Amount
			stats.SpentBy[t.Category] += -t.Amount
		}

		if t.Category != entities.CategoryGamble {
			continue
		}
		if t.Amount < 0 {
			bets++
			stats.GambleStaked += -t.Amount
		} else {
			stats.GamblesWon++
			stats.GambleReturned += t.Amount
		}
	}
	stats.GamblesLost = bets - stats.GamblesWon
	if stats.GamblesLost < 0 {
		stats.GamblesLost = 0
	}
	return stats
}

// Provider lists the statistics of every known user
type Provider interface {
	AllStatistics(ctx context.Context) ([]*entities.LedgerStatistics, error)
}

// Service ranks users by their ledgers
type Service struct {
	provider Provider
	now      func() time.Time
}

// NewService creates a new statistics service
func NewService(provider Provider) *Service {
	return &Service{
		provider: provider,
		now:      time.Now,
	}
}

// PlayerRank represents a user's statistics with ranking information
type PlayerRank struct {
	*entities.LedgerStatistics
	Rank        int     `json:"rank"`
	WinRate     float64 `json:"win_rate"`
	NetProfit   int64   `json:"net_profit"`
	IsTopEarner bool    `json:"is_top_earner"`
	IsTopGamer  bool    `json:"is_top_gamer"`
}

// Leaderboard represents a paginated ranking of users by balance
type Leaderboard struct {
	Players        []*PlayerRank `json:"players"`
	TotalPlayers   int           `json:"total_players"`
	CurrentPage    int           `json:"current_page"`
	TotalPages     int           `json:"total_pages"`
	PlayersPerPage int           `json:"players_per_page"`
	LastUpdated    time.Time     `json:"last_updated"`
}

// GetLeaderboard retrieves a page of users ranked by balance, then total earned
func (s *Service) GetLeaderboard(ctx context.Context, page, playersPerPage int) (*Leaderboard, error) {
	// Default values
	if page < 1 {
		page = 1
	}
	if playersPerPage < 1 {
		playersPerPage = 10
	}

	allStats, err := s.provider.AllStatistics(ctx)
	if err != nil {
		return nil, err
	}

	ranks := make([]*PlayerRank, 0, len(allStats))
	for _, stats := range allStats {
		// Skip users that never moved an eBuck
		if stats.Transactions == 0 {
			continue
		}
		ranks = append(ranks, &PlayerRank{
			LedgerStatistics: stats,
			WinRate:          stats.WinRate(),
			NetProfit:        stats.NetProfit(),
		})
	}

	sort.SliceStable(ranks, func(i, j int) bool {
		if ranks[i].Balance != ranks[j].Balance {
			return ranks[i].Balance > ranks[j].Balance
		}
		if ranks[i].TotalEarned != ranks[j].TotalEarned {
			return ranks[i].TotalEarned > ranks[j].TotalEarned
		}
		return ranks[i].UserID < ranks[j].UserID
	})

	if len(ranks) > 0 {
		// Top earner has the highest lifetime earnings
		topEarner := 0
		topGamer := 0
		for i := 1; i < len(ranks); i++ {
			if ranks[i].TotalEarned > ranks[topEarner].TotalEarned {
				topEarner = i
			}
			if ranks[i].GamblesPlayed() > ranks[topGamer].GamblesPlayed() {
				topGamer = i
			}
		}
		ranks[topEarner].IsTopEarner = true
		if ranks[topGamer].GamblesPlayed() > 0 {
			ranks[topGamer].IsTopGamer = true
		}
	}

	for i := range ranks {
		ranks[i].Rank = i + 1
	}

	// Calculate pagination
	total := len(ranks)
	totalPages := (total + playersPerPage - 1) / playersPerPage
	if page > totalPages && totalPages > 0 {
		page = totalPages
	}

	start := (page - 1) * playersPerPage
	end := start + playersPerPage
	if end > total {
		end = total
	}

	current := []*PlayerRank{}
	if start < total {
		current = ranks[start:end]
	}

	return &Leaderboard{
		Players:        current,
		TotalPlayers:   total,
		CurrentPage:    page,
		TotalPages:     totalPages,
		PlayersPerPage: playersPerPage,
		LastUpdated:    s.now(),
	}, nil
}
