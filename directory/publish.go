// Package directory renders the guild's member directory and keeps its
// pinned message up to date.
package directory

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
	"slippidex/reconcile"
	"slippidex/roster"
)

// ErrNoDirectory is returned when a guild has no directory message yet.
var ErrNoDirectory = errors.New("guild has no directory message")

// Directory channel settings.
const (
	ChannelName  = "slippi-tag-directory"
	channelTopic = "Directory of users and Slippi info"
)

// Config holds the publisher's collaborators.
type Config struct {
	Session   discordutils.Session
	DB        *gorm.DB
	Catalog   *roster.Catalog
	Pacer     *pacing.Pacer
	Metrics   *metrics.Metrics
	Log       *zap.SugaredLogger
	BotUserID string
}

// Publisher writes the rendered directory to the guild's pinned message.
type Publisher struct {
	Config
}

// NewPublisher creates a publisher.
func NewPublisher(config Config) *Publisher {
	return &Publisher{Config: config}
}

// Publish re-renders the directory and overwrites the pinned message in
// place. Calling it again without record changes produces the same content.
func (p *Publisher) Publish(ctx context.Context, guildID string) error {
	guild, err := dal.GetGuild(ctx, guildID, p.DB)
	if err != nil {
		return err
	}
	if !guild.HasDirectory() {
		return ErrNoDirectory
	}

	records, err := dal.ListMembers(ctx, guildID, p.DB)
	if err != nil {
		return err
	}

	badges, err := reconcile.FetchBadgeIndex(ctx, p.Session, p.Catalog, guildID)
	if err != nil {
		p.Metrics.RemoteErrors.WithLabelValues("GuildEmojis").Inc()
		p.Log.Warnw("rendering directory without badges", "guild", guildID, "error", err)
	}

	content := Render(records, badges)

	if err := p.Pacer.Wait(ctx); err != nil {
		return err
	}
	_, err = p.Session.ChannelMessageEdit(
		guild.PinnedChannelID,
		guild.PinnedMessageID,
		content,
		discordgo.WithContext(ctx),
	)
	if err != nil {
		p.Metrics.DirectoryPublish.WithLabelValues("error").Inc()
		return errors.Wrapf(err, "edit directory message in %v", guildID)
	}

	p.Metrics.DirectoryPublish.WithLabelValues("ok").Inc()
	p.Log.Debugw("published directory", "guild", guildID, "members", len(records))
	return nil
}

// InitDirectoryChannel creates the read-only directory channel and its
// message, once per guild. It does nothing if the guild already has both.
func (p *Publisher) InitDirectoryChannel(ctx context.Context, guildID string) error {
	guild, err := dal.FindOrCreateGuild(ctx, guildID, p.DB)
	if err != nil {
		return err
	}
	if guild.HasDirectory() {
		return nil
	}

	if err := p.Pacer.Wait(ctx); err != nil {
		return err
	}
	channel, err := p.Session.GuildChannelCreateComplex(guildID, discordgo.GuildChannelCreateData{
		Name:  ChannelName,
		Type:  discordgo.ChannelTypeGuildText,
		Topic: channelTopic,
	}, discordgo.WithContext(ctx))
	if err != nil {
		p.Metrics.RemoteErrors.WithLabelValues("GuildChannelCreateComplex").Inc()
		return errors.Wrap(err, "create directory channel")
	}

	// @everyone shares the guild's id
	if err := p.Pacer.Wait(ctx); err != nil {
		return err
	}
	err = p.Session.ChannelPermissionSet(
		channel.ID,
		guildID,
		discordgo.PermissionOverwriteTypeRole,
		0,
		discordgo.PermissionSendMessages,
		discordgo.WithContext(ctx),
	)
	if err != nil {
		p.Log.Errorw("failed to make directory read-only", "guild", guildID, "error", err)
	}

	if err := p.Pacer.Wait(ctx); err != nil {
		return err
	}
	err = p.Session.ChannelPermissionSet(
		channel.ID,
		p.BotUserID,
		discordgo.PermissionOverwriteTypeMember,
		discordgo.PermissionSendMessages,
		0,
		discordgo.WithContext(ctx),
	)
	if err != nil {
		p.Log.Errorw("failed to grant bot write access", "guild", guildID, "error", err)
	}

	if err := p.Pacer.Wait(ctx); err != nil {
		return err
	}
	message, err := p.Session.ChannelMessageSendComplex(channel.ID, &discordgo.MessageSend{
		Content: Render(nil, roster.Index{}),
		Flags:   discordgo.MessageFlagsSuppressEmbeds,
	}, discordgo.WithContext(ctx))
	if err != nil {
		p.Metrics.RemoteErrors.WithLabelValues("ChannelMessageSend").Inc()
		return errors.Wrap(err, "post directory message")
	}

	wrote, err := dal.SetDirectoryMessage(ctx, guildID, channel.ID, message.ID, p.DB)
	if err != nil {
		return err
	}
	if !wrote {
		p.Log.Warnw("directory already initialised concurrently", "guild", guildID, "channel", channel.ID)
		return nil
	}

	p.Log.Infow("created directory channel", "guild", guildID, "channel", channel.ID)
	return nil
}
