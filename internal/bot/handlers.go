package bot

import (
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"
	"github.com/fadedpez/ebucks/internal/discord"
	"github.com/fadedpez/ebucks/pkg/ebucks"
)

const (
	defaultHistoryLimit = 10
	leaderboardPageSize = 10
)

// interactionUser returns the id of whoever triggered i, in a guild or a DM
func interactionUser(i *discordgo.InteractionCreate) string {
	if i.Member != nil && i.Member.User != nil {
		return i.Member.User.ID
	}
	if i.User != nil {
		return i.User.ID
	}
	return ""
}

// handleSlashCommand handles all slash commands
func (b *Bot) handleSlashCommand(i *discordgo.InteractionCreate) {
	data := i.ApplicationCommandData()
	if data.Name != CommandName {
		b.logger.Warn("Unknown command: %s", data.Name)
		return
	}
	if len(data.Options) == 0 {
		b.respond(i, discord.NewEphemeralResponse("❓ Pick a subcommand", nil), false)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), b.timeout)
	defer cancel()

	userID := interactionUser(i)
	engine, err := b.registry.Get(ctx, userID)
	if err != nil {
		b.respondError(i, err)
		return
	}

	sub := data.Options[0]
	resp, err := b.runSubcommand(ctx, engine, userID, sub)
	if err != nil {
		b.respondError(i, err)
		return
	}
	b.respond(i, resp, false)
}

func (b *Bot) runSubcommand(ctx context.Context, engine *ebucks.Engine, userID string, sub *discordgo.ApplicationCommandInteractionDataOption) (*discord.Response, error) {
	switch sub.Name {
	case SubBalance:
		balance, err := engine.GetBalance(ctx)
		if err != nil {
			return nil, err
		}
		multiplier, err := engine.Multiplier(ctx)
		if err != nil {
			return nil, err
		}
		return discord.NewEphemeralResponse(formatBalance(balance, multiplier), nil), nil

	case SubHistory:
		limit := defaultHistoryLimit
		if opt := findOption(sub, "limit"); opt != nil {
			limit = int(opt.IntValue())
		}
		txs, err := engine.GetRecentHistory(ctx, limit)
		if err != nil {
			return nil, err
		}
		return discord.NewEphemeralResponse(formatHistory(txs), nil), nil

	case SubChallenges:
		list, err := engine.GetDailyChallenges(ctx)
		if err != nil {
			return nil, err
		}
		done, err := engine.GetTodaysChallengesCompleted(ctx)
		if err != nil {
			return nil, err
		}
		return discord.NewEphemeralResponse(formatChallenges(list, done), nil), nil

	case SubComplete:
		opt := findOption(sub, "id")
		if opt == nil {
			return discord.NewEphemeralResponse("❓ Which challenge?", nil), nil
		}
		id := opt.StringValue()
		ok, err := engine.CompleteDailyChallenge(ctx, id, nil, "")
		if err != nil {
			return nil, err
		}
		if !ok {
			return discord.NewEphemeralResponse(fmt.Sprintf("✅ `%s` is already done for today", id), nil), nil
		}
		balance, err := engine.GetBalance(ctx)
		if err != nil {
			return nil, err
		}
		return discord.NewResponse(fmt.Sprintf("🏆 Challenge `%s` completed! Balance: **%d** eBucks", id, balance), nil), nil

	case SubSpin:
		result, err := engine.SpinWheel(ctx)
		if err != nil {
			return nil, err
		}
		return discord.NewResponse(formatSpin(result), spinButtons(userID, result, engine.GamblePolicy())), nil

	case SubDouble:
		settlement, err := engine.DoubleOrNothing(ctx)
		if err != nil {
			return nil, err
		}
		return discord.NewResponse(formatDouble(settlement), nil), nil

	case SubExtraSpin:
		settlement, result, err := engine.PaidExtraSpin(ctx)
		if err != nil {
			return nil, err
		}
		var components []discordgo.MessageComponent
		if result != nil {
			components = spinButtons(userID, result, engine.GamblePolicy())
		}
		return discord.NewResponse(formatExtraSpin(settlement, result), components), nil

	case SubStreak:
		st, err := engine.LoginStreak(ctx)
		if err != nil {
			return nil, err
		}
		return discord.NewEphemeralResponse(formatStreak(st), nil), nil

	case SubStats:
		stats, err := engine.Statistics(ctx)
		if err != nil {
			return nil, err
		}
		return discord.NewEphemeralResponse(formatStatistics(stats), nil), nil

	case SubLeaderboard:
		page := 1
		if opt := findOption(sub, "page"); opt != nil {
			page = int(opt.IntValue())
		}
		board, err := b.stats.GetLeaderboard(ctx, page, leaderboardPageSize)
		if err != nil {
			return nil, err
		}
		return discord.NewResponse(formatLeaderboard(board), nil), nil
	}

	b.logger.Warn("Unknown subcommand: %s", sub.Name)
	return discord.NewEphemeralResponse("❓ Unknown subcommand", nil), nil
}

// handleMessageComponent handles button clicks on spin results
func (b *Bot) handleMessageComponent(i *discordgo.InteractionCreate) {
	customID := i.MessageComponentData().CustomID
	prefix, owner, ok := parseButtonID(customID)
	if !ok {
		b.logger.Warn("Unknown component interaction: %s", customID)
		return
	}

	userID := interactionUser(i)
	if userID != owner {
		b.respond(i, discord.NewEphemeralResponse("🚫 That wheel belongs to someone else", nil), false)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), b.timeout)
	defer cancel()

	engine, err := b.registry.Get(ctx, userID)
	if err != nil {
		b.respondError(i, err)
		return
	}

	var resp *discord.Response
	switch prefix {
	case ButtonDouble:
		settlement, err := engine.DoubleOrNothing(ctx)
		if err != nil {
			b.respondError(i, err)
			return
		}
		resp = discord.NewResponse(formatDouble(settlement), nil)
	case ButtonExtraSpin:
		settlement, result, err := engine.PaidExtraSpin(ctx)
		if err != nil {
			b.respondError(i, err)
			return
		}
		var components []discordgo.MessageComponent
		if result != nil {
			components = spinButtons(userID, result, engine.GamblePolicy())
		}
		resp = discord.NewResponse(formatExtraSpin(settlement, result), components)
	default:
		b.logger.Warn("Unknown component interaction: %s", customID)
		return
	}
	b.respond(i, resp, true)
}

func findOption(sub *discordgo.ApplicationCommandInteractionDataOption, name string) *discordgo.ApplicationCommandInteractionDataOption {
	for _, opt := range sub.Options {
		if opt.Name == name {
			return opt
		}
	}
	return nil
}

func (b *Bot) respond(i *discordgo.InteractionCreate, r *discord.Response, update bool) {
	var err error
	if update {
		err = discord.UpdateResponse(b.session, i, r)
	} else {
		err = discord.SendResponse(b.session, i, r)
	}
	if err != nil {
		b.logger.Error("Failed to respond to interaction: %v", err)
	}
}

func (b *Bot) respondError(i *discordgo.InteractionCreate, err error) {
	b.logger.LogError(err)
	if sendErr := discord.SendErrorResponse(b.session, i, err); sendErr != nil {
		b.logger.Error("Failed to send error response: %v", sendErr)
	}
}
