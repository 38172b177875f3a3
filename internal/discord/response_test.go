package discord

import (
	"errors"
	"fmt"
	"testing"

	"github.com/bwmarrin/discordgo"
	discordmock "github.com/fadedpez/ebucks/internal/discord/mock"
	"github.com/fadedpez/ebucks/internal/types"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"
)

type ResponseTestSuite struct {
	suite.Suite
	session *discordmock.SessionHandler
}

func TestResponseSuite(t *testing.T) {
	suite.Run(t, new(ResponseTestSuite))
}

func (s *ResponseTestSuite) SetupTest() {
	s.session = &discordmock.SessionHandler{}
	s.session.Test(s.T())
}

func spinRow() []discordgo.MessageComponent {
	return []discordgo.MessageComponent{
		discordgo.ActionsRow{Components: []discordgo.MessageComponent{
			discordgo.Button{Label: "Double or nothing (20)", Style: discordgo.DangerButton, CustomID: "ebucks_double:alice"},
		}},
	}
}

func (s *ResponseTestSuite) TestConstructors() {
	public := NewResponse("🎡 You won **20** eBucks", spinRow())
	s.Equal("🎡 You won **20** eBucks", public.Content)
	s.Equal(spinRow(), public.Components)
	s.False(public.Ephemeral)

	private := NewEphemeralResponse("💰 You have **20** eBucks", nil)
	s.Equal("💰 You have **20** eBucks", private.Content)
	s.Nil(private.Components)
	s.True(private.Ephemeral)
}

func (s *ResponseTestSuite) TestNewErrorResponse() {
	testCases := []struct {
		name     string
		err      error
		expected string
	}{
		{
			name:     "nil error",
			err:      nil,
			expected: "❌ An error occurred: <nil>",
		},
		{
			name:     "simple error",
			err:      errors.New("test error"),
			expected: "❌ An error occurred: test error",
		},
		{
			name:     "engine error",
			err:      types.NewEngineError(types.ErrAlreadySpunToday, "already spun today, come back tomorrow"),
			expected: "🎡 already spun today, come back tomorrow",
		},
		{
			name:     "wrapped engine error",
			err:      fmt.Errorf("spin: %w", types.NewEngineError(types.ErrDebugDisabled, "debug resets are disabled")),
			expected: "🚫 debug resets are disabled",
		},
		{
			name:     "code without emoji",
			err:      types.NewEngineError(types.ErrorCode("SOMETHING_NEW"), "new"),
			expected: "❌ new",
		},
		{
			name:     "wrapped error",
			err:      errors.New("wrapped: test error"),
			expected: "❌ An error occurred: wrapped: test error",
		},
	}

	for _, tc := range testCases {
		s.Run(tc.name, func() {
			// Execute
			resp := NewErrorResponse(tc.err)

			// Assert
			s.NotNil(resp)
			s.Equal(tc.expected, resp.Content)
			s.True(resp.Ephemeral)
		})
	}
}

func (s *ResponseTestSuite) TestSendResponse() {
	resp := NewResponse("🎡 You won **20** eBucks", spinRow())
	interaction := &discordgo.InteractionCreate{
		Interaction: &discordgo.Interaction{
			ID:   "spin_interaction",
			Type: discordgo.InteractionApplicationCommand,
		},
	}

	s.session.On("InteractionRespond", interaction.Interaction, mock.MatchedBy(func(r *discordgo.InteractionResponse) bool {
		return r.Type == discordgo.InteractionResponseChannelMessageWithSource &&
			r.Data.Content == resp.Content &&
			len(r.Data.Components) == 1 &&
			r.Data.Flags == 0
	})).Return(nil)

	s.NoError(SendResponse(s.session, interaction, resp))
	s.session.AssertExpectations(s.T())
}

func (s *ResponseTestSuite) TestSendResponseError() {
	interaction := &discordgo.InteractionCreate{
		Interaction: &discordgo.Interaction{ID: "stale_interaction"},
	}
	s.session.On("InteractionRespond", interaction.Interaction, mock.Anything).Return(errors.New("unknown interaction"))

	err := SendResponse(s.session, interaction, NewEphemeralResponse("late", nil))
	s.ErrorContains(err, "unknown interaction")
}

func (s *ResponseTestSuite) TestUpdateResponse() {
	// Setup
	content := "🎲 Doubled! You gained **20** eBucks"
	resp := NewResponse(content, nil)

	interaction := &discordgo.InteractionCreate{
		Interaction: &discordgo.Interaction{
			ID:   "button_interaction",
			Type: discordgo.InteractionMessageComponent,
		},
	}

	s.session.On("InteractionRespond", interaction.Interaction, mock.MatchedBy(func(r *discordgo.InteractionResponse) bool {
		return r.Type == discordgo.InteractionResponseUpdateMessage && r.Data.Content == content
	})).Return(nil)

	// Execute
	err := UpdateResponse(s.session, interaction, resp)

	// Assert
	s.NoError(err)
	s.session.AssertExpectations(s.T())
}

func (s *ResponseTestSuite) TestSendErrorResponse() {
	// Setup
	testErr := types.NewEngineError(types.ErrAlreadySpunToday, "already spun today, come back tomorrow")
	interaction := &discordgo.InteractionCreate{
		Interaction: &discordgo.Interaction{
			ID:   "test_interaction",
			Type: discordgo.InteractionApplicationCommand,
		},
	}

	s.session.On("InteractionRespond", interaction.Interaction, mock.MatchedBy(func(r *discordgo.InteractionResponse) bool {
		return r.Data.Flags == discordgo.MessageFlagsEphemeral && r.Data.Content == "🎡 already spun today, come back tomorrow"
	})).Return(nil)

	// Execute
	err := SendErrorResponse(s.session, interaction, testErr)

	// Assert
	s.NoError(err)
	s.session.AssertExpectations(s.T())
}
