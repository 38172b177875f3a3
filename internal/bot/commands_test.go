package bot

import (
	"testing"

	"github.com/stretchr/testify/suite"
)

type CommandsTestSuite struct {
	suite.Suite
}

func TestCommandsSuite(t *testing.T) {
	suite.Run(t, new(CommandsTestSuite))
}

func (s *CommandsTestSuite) TestCommands() {
	s.Require().Len(Commands, 1)
	cmd := Commands[0]
	s.Equal(CommandName, cmd.Name)
	s.NotEmpty(cmd.Description)

	names := make(map[string]bool)
	for _, opt := range cmd.Options {
		s.NotEmpty(opt.Description, "subcommand %s needs a description", opt.Name)
		s.False(names[opt.Name], "subcommand names should be unique")
		names[opt.Name] = true
	}

	for _, required := range []string{SubBalance, SubHistory, SubChallenges, SubComplete, SubSpin, SubDouble, SubExtraSpin, SubStreak, SubStats, SubLeaderboard} {
		s.True(names[required], "subcommand %s should exist", required)
	}
}
