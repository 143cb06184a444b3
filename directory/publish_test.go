package directory

import (
	"context"
	"testing"

	"github.com/bwmarrin/discordgo"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/suite"
	"go.uber.org/zap/zaptest"

	"slippidex/dal"
	"slippidex/dal/daltest"
	"slippidex/discordutils/discordtest"
	"slippidex/metrics"
	"slippidex/pacing"
)

const (
	guildID = "guild-1"
	botID   = "bot-1"
)

type PublishSuite struct {
	suite.Suite
	ctx       context.Context
	session   *discordtest.Session
	metrics   *metrics.Metrics
	publisher *Publisher
}

func TestPublishSuite(t *testing.T) {
	suite.Run(t, new(PublishSuite))
}

func (s *PublishSuite) SetupTest() {
	s.ctx = context.Background()
	s.session = discordtest.New()
	s.metrics = metrics.New()
	s.publisher = NewPublisher(Config{
		Session:   s.session,
		DB:        daltest.Open(s.T()),
		Catalog:   testCatalog(),
		Pacer:     pacing.Unpaced(),
		Metrics:   s.metrics,
		Log:       zaptest.NewLogger(s.T()).Sugar(),
		BotUserID: botID,
	})
}

func (s *PublishSuite) directoryMessage() *discordgo.Message {
	guild, err := dal.GetGuild(s.ctx, guildID, s.publisher.DB)
	s.Require().NoError(err)
	s.Require().True(guild.HasDirectory())
	msg := s.session.Message(guild.PinnedChannelID, guild.PinnedMessageID)
	s.Require().NotNil(msg)
	return msg
}

func (s *PublishSuite) TestInitCreatesReadOnlyChannel() {
	s.Require().NoError(s.publisher.InitDirectoryChannel(s.ctx, guildID))

	channels := s.session.Channels(guildID)
	s.Require().Len(channels, 1)
	s.Equal(ChannelName, channels[0].Name)

	overwrites := channels[0].PermissionOverwrites
	s.Require().Len(overwrites, 2)
	s.Equal(guildID, overwrites[0].ID)
	s.Equal(int64(discordgo.PermissionSendMessages), overwrites[0].Deny)
	s.Equal(botID, overwrites[1].ID)
	s.Equal(int64(discordgo.PermissionSendMessages), overwrites[1].Allow)

	s.Equal(Header, s.directoryMessage().Content)
}

func (s *PublishSuite) TestInitHappensOnce() {
	s.Require().NoError(s.publisher.InitDirectoryChannel(s.ctx, guildID))
	s.session.ResetCalls()

	s.Require().NoError(s.publisher.InitDirectoryChannel(s.ctx, guildID))
	s.Empty(s.session.Calls())
	s.Len(s.session.Channels(guildID), 1)
}

func (s *PublishSuite) TestPublishWithoutDirectory() {
	_, err := dal.FindOrCreateGuild(s.ctx, guildID, s.publisher.DB)
	s.Require().NoError(err)
	s.ErrorIs(s.publisher.Publish(s.ctx, guildID), ErrNoDirectory)

	s.ErrorIs(s.publisher.Publish(s.ctx, "unknown"), dal.ErrNotFound)
}

func (s *PublishSuite) TestPublishEditsInPlace() {
	s.Require().NoError(s.publisher.InitDirectoryChannel(s.ctx, guildID))
	s.session.AddEmoji(guildID, "Mario")
	sheik := s.session.AddEmoji(guildID, "Sheik")

	s.Require().NoError(dal.UpdateMemberTag(s.ctx, guildID, "100", "abc#1", s.publisher.DB))
	s.Require().NoError(dal.UpdateMemberMains(s.ctx, guildID, "100", []string{"Sheik"}, s.publisher.DB))
	s.session.ResetCalls()

	s.Require().NoError(s.publisher.Publish(s.ctx, guildID))
	first := s.directoryMessage().Content
	s.Contains(first, "<@100>")
	s.Contains(first, "<:Sheik:"+sheik.ID+">(Sheik)")
	s.Contains(first, "[abc#1](https://slippi.gg/user/abc-1)")

	s.Require().NoError(s.publisher.Publish(s.ctx, guildID))
	s.Equal(first, s.directoryMessage().Content)

	s.Len(s.session.Calls("ChannelMessageEdit"), 2)
	s.Empty(s.session.Calls("ChannelMessageSend"))
	s.Len(s.session.Messages(s.directoryMessage().ChannelID), 1)
	s.Equal(2.0, testutil.ToFloat64(s.metrics.DirectoryPublish.WithLabelValues("ok")))
}

func (s *PublishSuite) TestPublishWithoutBadgeListing() {
	s.Require().NoError(s.publisher.InitDirectoryChannel(s.ctx, guildID))
	s.Require().NoError(dal.UpdateMemberMains(s.ctx, guildID, "100", []string{"Mario"}, s.publisher.DB))
	s.session.Fail("GuildEmojis", "", errors.New("unavailable"))

	s.Require().NoError(s.publisher.Publish(s.ctx, guildID))
	s.Contains(s.directoryMessage().Content, "`Mains`: (Mario)")
}

func (s *PublishSuite) TestPublishEditFailure() {
	s.Require().NoError(s.publisher.InitDirectoryChannel(s.ctx, guildID))
	s.session.Fail("ChannelMessageEdit", "", errors.New("missing access"))

	s.Error(s.publisher.Publish(s.ctx, guildID))
	s.Equal(1.0, testutil.ToFloat64(s.metrics.DirectoryPublish.WithLabelValues("error")))
}
