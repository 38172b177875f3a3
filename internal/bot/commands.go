package bot

import (
	"github.com/bwmarrin/discordgo"
)

// CommandName is the single slash command the bot registers
const CommandName = "ebucks"

// Subcommand names under /ebucks
const (
	SubBalance     = "balance"
	SubHistory     = "history"
	SubChallenges  = "challenges"
	SubComplete    = "complete"
	SubSpin        = "spin"
	SubDouble      = "double"
	SubExtraSpin   = "extraspin"
	SubStreak      = "streak"
	SubStats       = "stats"
	SubLeaderboard = "leaderboard"
)

var minHistory = 1.0 // also the first leaderboard page

// Commands defines all slash commands for the bot
var Commands = []*discordgo.ApplicationCommand{
	{
		Name:        CommandName,
		Description: "Earn and spend eBucks",
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        SubBalance,
				Description: "Show your eBucks balance",
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        SubHistory,
				Description: "Show your latest transactions",
				Options: []*discordgo.ApplicationCommandOption{
					{
						Type:        discordgo.ApplicationCommandOptionInteger,
						Name:        "limit",
						Description: "How many transactions to show",
						MinValue:    &minHistory,
						MaxValue:    25,
					},
				},
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        SubChallenges,
				Description: "List today's challenges",
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        SubComplete,
				Description: "Complete one of today's challenges",
				Options: []*discordgo.ApplicationCommandOption{
					{
						Type:        discordgo.ApplicationCommandOptionString,
						Name:        "id",
						Description: "Challenge id",
						Required:    true,
					},
				},
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        SubSpin,
				Description: "Spin the fortune wheel (once a day)",
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        SubDouble,
				Description: "Double or nothing on your last spin",
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        SubExtraSpin,
				Description: "Buy an extra spin",
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        SubStreak,
				Description: "Show your login streak",
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        SubStats,
				Description: "Show what you earned and spent",
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        SubLeaderboard,
				Description: "Show the richest users",
				Options: []*discordgo.ApplicationCommandOption{
					{
						Type:        discordgo.ApplicationCommandOptionInteger,
						Name:        "page",
						Description: "Leaderboard page",
						MinValue:    &minHistory,
					},
				},
			},
		},
	},
}
