package bot

import (
	"fmt"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/fadedpez/ebucks/internal/config"
	"github.com/fadedpez/ebucks/internal/discord"
	"github.com/fadedpez/ebucks/internal/logging"
	"github.com/fadedpez/ebucks/pkg/ebucks"
	"github.com/fadedpez/ebucks/pkg/services/statistics"
)

// Bot represents the Discord bot and its dependencies
type Bot struct {
	config     *config.Config
	session    discord.SessionHandler
	registry   *ebucks.Registry
	stats      *statistics.Service
	commands   []*discordgo.ApplicationCommand
	logger     *logging.Logger
	timeout    time.Duration
	shutdownWg sync.WaitGroup
	removers   []func()
}

// New creates a new instance of Bot serving engines from registry
func New(cfg *config.Config, session discord.SessionHandler, registry *ebucks.Registry, logger *logging.Logger) *Bot {
	if logger == nil {
		logger = logging.Nop()
	}
	bot := &Bot{
		config:   cfg,
		session:  session,
		registry: registry,
		stats:    statistics.NewService(registry),
		commands: make([]*discordgo.ApplicationCommand, 0),
		logger:   logger.WithComponent("bot"),
		timeout:  10 * time.Second,
	}
	bot.registerHandlers()
	return bot
}

func (b *Bot) registerHandlers() {
	b.removers = append(b.removers, b.session.AddHandler(b.handleInteractionCreate))
}

// Start initializes the bot and connects to Discord
func (b *Bot) Start() error {
	if err := b.session.Open(); err != nil {
		return fmt.Errorf("failed to open Discord connection: %w", err)
	}

	if err := b.registerCommands(); err != nil {
		return fmt.Errorf("failed to register commands: %w", err)
	}

	b.logger.Info("Bot started with %d commands", len(b.commands))
	return nil
}

// Shutdown gracefully shuts down the bot
func (b *Bot) Shutdown() {
	// Cleanup commands if in development
	if b.config.IsDevelopment() {
		if err := b.cleanupCommands(); err != nil {
			b.logger.Warn("Error cleaning up commands: %v", err)
		}
	}

	for _, remove := range b.removers {
		remove()
	}

	// Wait for in-flight interactions before closing the session
	b.shutdownWg.Wait()

	if err := b.session.Close(); err != nil {
		b.logger.Warn("Error closing Discord session: %v", err)
	}
}

func (b *Bot) registerCommands() error {
	if b.config.IsDevelopment() {
		if err := b.cleanupCommands(); err != nil {
			return err
		}
	}

	for _, cmd := range Commands {
		created, err := b.session.ApplicationCommandCreate(b.config.AppID, b.config.GuildID, cmd)
		if err != nil {
			return fmt.Errorf("cannot create command %s: %w", cmd.Name, err)
		}
		b.commands = append(b.commands, created)
	}
	return nil
}

func (b *Bot) cleanupCommands() error {
	existing, err := b.session.ApplicationCommands(b.config.AppID, b.config.GuildID)
	if err != nil {
		return fmt.Errorf("cannot list commands: %w", err)
	}
	for _, cmd := range existing {
		if err := b.session.ApplicationCommandDelete(b.config.AppID, b.config.GuildID, cmd.ID); err != nil {
			return fmt.Errorf("cannot delete command %s: %w", cmd.Name, err)
		}
	}
	b.commands = b.commands[:0]
	return nil
}

// handleInteractionCreate handles Discord interaction events
func (b *Bot) handleInteractionCreate(_ *discordgo.Session, i *discordgo.InteractionCreate) {
	b.handleInteraction(i)
}

func (b *Bot) handleInteraction(i *discordgo.InteractionCreate) {
	b.shutdownWg.Add(1)
	defer b.shutdownWg.Done()

	switch i.Type {
	case discordgo.InteractionApplicationCommand:
		b.handleSlashCommand(i)
	case discordgo.InteractionMessageComponent:
		b.handleMessageComponent(i)
	}
}
