package reconcile

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
	"go.uber.org/zap/zaptest"

	"slippidex/dal"
	"slippidex/dal/daltest"
	"slippidex/discordutils/discordtest"
	"slippidex/lang"
	"slippidex/metrics"
	"slippidex/pacing"
	"slippidex/roster"
)

const (
	guildID = "guild-1"
	botID   = "bot-1"
)

type ReconcileSuite struct {
	suite.Suite
	ctx     context.Context
	session *discordtest.Session
	metrics *metrics.Metrics
	rec     *Reconciler
	info    string
}

func TestReconcileSuite(t *testing.T) {
	suite.Run(t, new(ReconcileSuite))
}

func (s *ReconcileSuite) SetupTest() {
	s.ctx = context.Background()
	s.session = discordtest.New()
	s.metrics = metrics.New()

	dir := s.T().TempDir()
	for _, name := range []string{"Mario", "Luigi", "Zelda", "Sheik"} {
		path := filepath.Join(dir, name+".png")
		s.Require().NoError(os.WriteFile(path, []byte("\x89PNG\r\n\x1a\n"+name), 0o644))
	}

	catalog := roster.MustNew([]roster.Entry{
		{Name: "Mario", Color: 0xE52521},
		{Name: "Luigi", Color: 0x2FA84F},
		{Name: "Zelda", Color: 0xE6A8D7, AliasGroup: "zs", AliasLead: true},
		{Name: "Sheik", Color: 0x4169E1, AliasGroup: "zs"},
	})

	db := daltest.Open(s.T())
	s.rec = New(Config{
		Session:   s.session,
		DB:        db,
		Catalog:   catalog,
		Assets:    Assets{Dir: dir},
		Pacer:     pacing.Unpaced(),
		Lang:      lang.MustNew(),
		Metrics:   s.metrics,
		Log:       zaptest.NewLogger(s.T()).Sugar(),
		BotUserID: botID,
	})

	botRole := s.session.AddRole(guildID, "slippidex", 50)
	s.session.AddMember(guildID, botID, botRole.ID)

	info, err := s.rec.EnsureInfoChannel(s.ctx, guildID)
	s.Require().NoError(err)
	s.info = info
	s.session.ResetCalls()
}

func (s *ReconcileSuite) emojiNames() []string {
	var names []string
	for _, e := range s.session.Emojis(guildID) {
		names = append(names, e.Name)
	}
	return names
}

func (s *ReconcileSuite) roleNames() []string {
	var names []string
	for _, r := range s.session.Roles(guildID) {
		names = append(names, r.Name)
	}
	return names
}

func (s *ReconcileSuite) TestRunCoversRoster() {
	s.session.AddEmoji(guildID, "Mario")
	s.session.AddEmoji(guildID, "pepega")
	s.session.AddRole(guildID, "Luigi", 3)

	result, err := s.rec.Run(s.ctx, guildID)
	s.Require().NoError(err)

	s.ElementsMatch([]string{"Mario", "Luigi", "Zelda", "Sheik"}, s.emojiNames())
	s.Subset(s.roleNames(), []string{"Mario", "Luigi", "Zelda", "Sheik"})
	s.Equal([]string{"pepega"}, result.BadgesDeleted)
	s.Equal([]string{"Luigi", "Zelda", "Sheik"}, result.BadgesCreated)
	s.Equal([]string{"Mario", "Zelda", "Sheik"}, result.RolesCreated)
	s.True(result.RolesValid)

	guild, err := dal.GetGuild(s.ctx, guildID, s.rec.DB)
	s.Require().NoError(err)
	s.True(guild.RolesValid)

	s.Equal(3.0, testutil.ToFloat64(s.metrics.BadgesCreated))
	s.Equal(1.0, testutil.ToFloat64(s.metrics.BadgesDeleted))

	// purge is announced to admins
	messages := s.session.Messages(s.info)
	s.Require().NotEmpty(messages)
	s.Contains(messages[len(messages)-1].Content, "pepega")
}

func (s *ReconcileSuite) TestCreatedRolesUseRosterColors() {
	_, err := s.rec.Run(s.ctx, guildID)
	s.Require().NoError(err)

	for _, role := range s.session.Roles(guildID) {
		if role.Name == "Mario" {
			s.Equal(0xE52521, role.Color)
			s.True(role.Mentionable)
			return
		}
	}
	s.Fail("Mario role not created")
}

func (s *ReconcileSuite) TestRunIsIdempotent() {
	_, err := s.rec.Run(s.ctx, guildID)
	s.Require().NoError(err)
	s.session.ResetCalls()

	result, err := s.rec.Run(s.ctx, guildID)
	s.Require().NoError(err)
	s.Empty(result.BadgesCreated)
	s.Empty(result.RolesCreated)
	s.Empty(s.session.Calls("GuildEmojiCreate", "GuildRoleCreate", "GuildEmojiDelete"))
}

func (s *ReconcileSuite) TestFailuresDoNotAbortRemainingItems() {
	s.session.Fail("GuildEmojiCreate", "Luigi", errors.New("rate limited"))
	s.session.Fail("GuildRoleCreate", "Mario", errors.New("missing permissions"))

	result, err := s.rec.Run(s.ctx, guildID)
	s.Require().NoError(err)

	s.ElementsMatch([]string{"Mario", "Zelda", "Sheik"}, s.emojiNames())
	s.Equal([]string{"Luigi", "Zelda", "Sheik"}, result.RolesCreated)
	s.Len(result.Failed, 2)
	s.Equal(1.0, testutil.ToFloat64(s.metrics.RemoteErrors.WithLabelValues("GuildEmojiCreate")))

	// admins hear about the failed calls
	messages := s.session.Messages(s.info)
	s.Require().NotEmpty(messages)
	last := messages[len(messages)-1].Content
	s.Contains(last, "GuildEmojiCreate")
	s.Contains(last, "GuildRoleCreate")
}

func (s *ReconcileSuite) TestCleanRunSendsNoAlerts() {
	before := len(s.session.Messages(s.info))

	_, err := s.rec.Run(s.ctx, guildID)
	s.Require().NoError(err)
	s.Len(s.session.Messages(s.info), before)
}

func (s *ReconcileSuite) TestHierarchyCheckFailureIsReported() {
	s.session.Fail("GuildMember", botID, errors.New("503 service unavailable"))

	result, err := s.rec.Run(s.ctx, guildID)
	s.Require().Error(err)
	s.NotErrorIs(err, ErrHierarchy)
	s.False(result.RolesValid)

	guild, err := dal.GetGuild(s.ctx, guildID, s.rec.DB)
	s.Require().NoError(err)
	s.False(guild.RolesValid)

	messages := s.session.Messages(s.info)
	s.Require().NotEmpty(messages)
	s.Contains(messages[len(messages)-1].Content, "503 service unavailable")
	s.Equal(1.0, testutil.ToFloat64(s.metrics.RemoteErrors.WithLabelValues("GuildMember")))
}

func (s *ReconcileSuite) TestMissingAssetsAreReported() {
	s.Require().NoError(os.Remove(filepath.Join(s.rec.Assets.Dir, "Sheik.png")))

	result, err := s.rec.Run(s.ctx, guildID)
	s.Require().NoError(err)
	s.Equal([]string{"Sheik"}, result.MissingAssets)
	s.NotContains(s.emojiNames(), "Sheik")

	messages := s.session.Messages(s.info)
	s.Require().NotEmpty(messages)
	s.Contains(messages[len(messages)-1].Content, "Sheik")
}

func (s *ReconcileSuite) TestHierarchyFailureIsReported() {
	s.session.AddRole(guildID, "Mario", 90)

	result, err := s.rec.Run(s.ctx, guildID)
	s.ErrorIs(err, ErrHierarchy)
	s.False(result.RolesValid)

	guild, err := dal.GetGuild(s.ctx, guildID, s.rec.DB)
	s.Require().NoError(err)
	s.False(guild.RolesValid)

	messages := s.session.Messages(s.info)
	s.Require().NotEmpty(messages)
	s.True(strings.HasPrefix(messages[len(messages)-1].Content, "@everyone"))
	s.Equal(1.0, testutil.ToFloat64(s.metrics.HierarchyFailures))
}

func (s *ReconcileSuite) TestHierarchyRecoversOnNextRun() {
	mario := s.session.AddRole(guildID, "Mario", 90)
	_, err := s.rec.Run(s.ctx, guildID)
	s.Require().ErrorIs(err, ErrHierarchy)

	// an admin drags the role below the bot
	s.Require().NoError(s.session.GuildRoleDelete(guildID, mario.ID))
	s.session.AddRole(guildID, "Mario", 10)

	result, err := s.rec.Run(s.ctx, guildID)
	s.Require().NoError(err)
	s.True(result.RolesValid)
}

func (s *ReconcileSuite) TestEnsureInfoChannelIsStable() {
	again, err := s.rec.EnsureInfoChannel(s.ctx, guildID)
	s.Require().NoError(err)
	s.Equal(s.info, again)
	s.Empty(s.session.Calls("GuildChannelCreateComplex", "GuildRoleCreate"))

	s.Contains(s.roleNames(), AdminRoleName)
	channels := s.session.Channels(guildID)
	s.Require().Len(channels, 1)
	s.Len(channels[0].PermissionOverwrites, 3)
}

func (s *ReconcileSuite) TestBadgeIndex() {
	s.session.AddEmoji(guildID, "Mario")
	s.session.AddEmoji(guildID, "random")

	index, err := FetchBadgeIndex(s.ctx, s.session, s.rec.Catalog, guildID)
	s.Require().NoError(err)
	s.Equal(1, index.Len())
	_, ok := index.Lookup("random")
	s.False(ok)
}

func TestSummary(t *testing.T) {
	r := Result{BadgesCreated: []string{"a"}, Failed: []string{"x"}, RolesValid: true}
	got := r.Summary()
	assert.Contains(t, got, "1 badges created")
	assert.Contains(t, got, "1 failed calls")
	assert.Contains(t, got, "role hierarchy ok")
}
