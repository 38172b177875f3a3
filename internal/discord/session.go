package discord

import (
	"github.com/bwmarrin/discordgo"
)

// SessionHandler is the slice of the Discord session the bot uses: answering
// interactions, syncing the /ebucks command and the gateway lifecycle
type SessionHandler interface {
	InteractionRespond(i *discordgo.Interaction, r *discordgo.InteractionResponse) error

	ApplicationCommandCreate(appID string, guildID string, cmd *discordgo.ApplicationCommand, options ...discordgo.RequestOption) (*discordgo.ApplicationCommand, error)
	ApplicationCommandDelete(appID string, guildID string, cmdID string) error
	ApplicationCommands(appID string, guildID string) ([]*discordgo.ApplicationCommand, error)

	Open() error
	Close() error
	AddHandler(handler interface{}) func()
}

// DiscordSession adapts discordgo.Session to SessionHandler. Open, Close,
// AddHandler and ApplicationCommandCreate are promoted unchanged; the rest
// drop discordgo's request options.
type DiscordSession struct {
	*discordgo.Session
}

var _ SessionHandler = (*DiscordSession)(nil)

// NewSession creates a bot session that only listens for guild events
func NewSession(token string) (*DiscordSession, error) {
	s, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, err
	}
	s.Identify.Intents = discordgo.IntentsGuilds
	return &DiscordSession{Session: s}, nil
}

func (s *DiscordSession) InteractionRespond(i *discordgo.Interaction, r *discordgo.InteractionResponse) error {
	return s.Session.InteractionRespond(i, r)
}

func (s *DiscordSession) ApplicationCommandDelete(appID string, guildID string, cmdID string) error {
	return s.Session.ApplicationCommandDelete(appID, guildID, cmdID)
}

func (s *DiscordSession) ApplicationCommands(appID string, guildID string) ([]*discordgo.ApplicationCommand, error) {
	return s.Session.ApplicationCommands(appID, guildID)
}
