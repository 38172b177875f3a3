package mock

import (
	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/mock"
)

// SessionHandler records the bot's calls against discord.SessionHandler
type SessionHandler struct {
	mock.Mock
}

func (s *SessionHandler) InteractionRespond(i *discordgo.Interaction, r *discordgo.InteractionResponse) error {
	return s.Called(i, r).Error(0)
}

// ApplicationCommandCreate echoes cmd back when the expectation returns nil
func (s *SessionHandler) ApplicationCommandCreate(appID string, guildID string, cmd *discordgo.ApplicationCommand, options ...discordgo.RequestOption) (*discordgo.ApplicationCommand, error) {
	args := s.Called(appID, guildID, cmd)
	created, _ := args.Get(0).(*discordgo.ApplicationCommand)
	if created == nil && args.Error(1) == nil {
		created = cmd
	}
	return created, args.Error(1)
}

func (s *SessionHandler) ApplicationCommandDelete(appID string, guildID string, cmdID string) error {
	return s.Called(appID, guildID, cmdID).Error(0)
}

func (s *SessionHandler) ApplicationCommands(appID string, guildID string) ([]*discordgo.ApplicationCommand, error) {
	args := s.Called(appID, guildID)
	existing, _ := args.Get(0).([]*discordgo.ApplicationCommand)
	return existing, args.Error(1)
}

func (s *SessionHandler) Open() error {
	return s.Called().Error(0)
}

func (s *SessionHandler) Close() error {
	return s.Called().Error(0)
}

// AddHandler hands back a no-op remover when the expectation returns nil
func (s *SessionHandler) AddHandler(handler interface{}) func() {
	remove, _ := s.Called(handler).Get(0).(func())
	if remove == nil {
		remove = func() {}
	}
	return remove
}
