// Package attributes applies member tag and main-character changes to the
// guild's roles and the member's stored record.
package attributes

import (
	"context"

	"github.com/bwmarrin/discordgo"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"slippidex/dal"
	"slippidex/discordutils"
	"slippidex/metrics"
	"slippidex/pacing"
	"slippidex/roster"
)

// ErrNotFunctional is returned while the guild's role hierarchy is invalid.
var ErrNotFunctional = errors.New("bot cannot manage roles in this guild")

// Publisher refreshes a guild's directory after a mutation.
type Publisher interface {
	Publish(ctx context.Context, guildID string) error
}

// Config holds the mutator's collaborators.
type Config struct {
	Session   discordutils.Session
	DB        *gorm.DB
	Catalog   *roster.Catalog
	Pacer     *pacing.Pacer
	Publisher Publisher
	Metrics   *metrics.Metrics
	Log       *zap.SugaredLogger
}

// Mutator changes a member's tag and mains. Persisted state is the source of
// truth: remote role failures are logged and never roll back the record.
type Mutator struct {
	Config
}

// New creates a mutator.
func New(config Config) *Mutator {
	return &Mutator{Config: config}
}

func (m *Mutator) checkFunctional(ctx context.Context, guildID string) error {
	guild, err := dal.FindOrCreateGuild(ctx, guildID, m.DB)
	if err != nil {
		return err
	}
	if !guild.RolesValid {
		return ErrNotFunctional
	}
	return nil
}

func (m *Mutator) remoteFailed(op string, err error, fields ...interface{}) {
	m.Metrics.RemoteErrors.WithLabelValues(op).Inc()
	m.Log.Errorw(op+" failed", append(fields, "error", err)...)
}

// fetch lists the guild's roles and the member. Either may be nil if the
// listing failed; the failure is logged.
func (m *Mutator) fetch(
	ctx context.Context,
	guildID string,
	memberID string,
) ([]*discordgo.Role, *discordgo.Member) {
	roles, err := m.Session.GuildRoles(guildID, discordgo.WithContext(ctx))
	if err != nil {
		m.remoteFailed("GuildRoles", err, "guild", guildID)
		return nil, nil
	}
	member, err := m.Session.GuildMember(guildID, memberID, discordgo.WithContext(ctx))
	if err != nil {
		m.remoteFailed("GuildMember", err, "guild", guildID, "member", memberID)
		return roles, nil
	}
	return roles, member
}

func (m *Mutator) addRole(ctx context.Context, guildID, memberID, roleID string) bool {
	if err := m.Pacer.Wait(ctx); err != nil {
		return false
	}
	err := m.Session.GuildMemberRoleAdd(guildID, memberID, roleID, discordgo.WithContext(ctx))
	if err != nil {
		m.remoteFailed("GuildMemberRoleAdd", err, "guild", guildID, "member", memberID, "role", roleID)
		return false
	}
	return true
}

func (m *Mutator) removeRole(ctx context.Context, guildID, memberID, roleID string) bool {
	if err := m.Pacer.Wait(ctx); err != nil {
		return false
	}
	err := m.Session.GuildMemberRoleRemove(guildID, memberID, roleID, discordgo.WithContext(ctx))
	if err != nil {
		m.remoteFailed("GuildMemberRoleRemove", err, "guild", guildID, "member", memberID, "role", roleID)
		return false
	}
	return true
}

func (m *Mutator) publish(ctx context.Context, guildID string) {
	if m.Publisher == nil {
		return
	}
	if err := m.Publisher.Publish(ctx, guildID); err != nil {
		m.Log.Errorw("failed to publish directory", "guild", guildID, "error", err)
	}
}
