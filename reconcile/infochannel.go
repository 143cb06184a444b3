package reconcile

import (
	"context"

	"github.com/bwmarrin/discordgo"
	"github.com/pkg/errors"

	"slippidex/dal"
	"slippidex/discordutils"
	"slippidex/lang"
)

// Names of the admin role and the private channel the bot reports to.
const (
	AdminRoleName    = "bot-manager"
	InfoChannelName  = "slippidex-info"
	infoChannelTopic = "This channel will broadcast information about bot issues that need to be resolved."
)

// EnsureInfoChannel makes sure the guild has the admin role and a private
// info channel only that role and the bot can see, and records the channel
// on the guild record.
func (r *Reconciler) EnsureInfoChannel(ctx context.Context, guildID string) (string, error) {
	guild, err := dal.FindOrCreateGuild(ctx, guildID, r.DB)
	if err != nil {
		return "", err
	}

	channels, err := r.Session.GuildChannels(guildID, discordgo.WithContext(ctx))
	if err != nil {
		return "", errors.Wrap(err, "list channels")
	}
	for _, channel := range channels {
		if guild.InfoChannelID != "" && channel.ID == guild.InfoChannelID {
			return channel.ID, nil
		}
	}
	if channel, ok := discordutils.FindChannelByName(channels, InfoChannelName); ok {
		return channel.ID, dal.SetInfoChannel(ctx, guildID, channel.ID, r.DB)
	}

	adminRole, err := r.ensureAdminRole(ctx, guildID)
	if err != nil {
		return "", err
	}

	if err := r.Pacer.Wait(ctx); err != nil {
		return "", err
	}
	channel, err := r.Session.GuildChannelCreateComplex(guildID, discordgo.GuildChannelCreateData{
		Name:  InfoChannelName,
		Type:  discordgo.ChannelTypeGuildText,
		Topic: infoChannelTopic,
		PermissionOverwrites: []*discordgo.PermissionOverwrite{
			{
				// @everyone shares the guild's id
				ID:   guildID,
				Type: discordgo.PermissionOverwriteTypeRole,
				Deny: discordgo.PermissionViewChannel,
			},
			{
				ID:    adminRole.ID,
				Type:  discordgo.PermissionOverwriteTypeRole,
				Allow: discordgo.PermissionViewChannel,
			},
			{
				ID:    r.BotUserID,
				Type:  discordgo.PermissionOverwriteTypeMember,
				Allow: discordgo.PermissionViewChannel | discordgo.PermissionSendMessages,
			},
		},
	}, discordgo.WithContext(ctx))
	if err != nil {
		r.Metrics.RemoteErrors.WithLabelValues("GuildChannelCreateComplex").Inc()
		return "", errors.Wrap(err, "create info channel")
	}

	if err := dal.SetInfoChannel(ctx, guildID, channel.ID, r.DB); err != nil {
		return "", err
	}

	if err := r.Pacer.Wait(ctx); err != nil {
		return channel.ID, err
	}
	_, err = r.Session.ChannelMessageSend(channel.ID, r.Lang.Get(lang.InfoChannelIntro, lang.Data{
		"Role": discordutils.RoleMention(adminRole.ID),
	}), discordgo.WithContext(ctx))
	if err != nil {
		r.Log.Errorw("failed to post info channel intro", "guild", guildID, "error", err)
	}

	r.Log.Infow("created info channel", "guild", guildID, "channel", channel.ID)
	return channel.ID, nil
}

func (r *Reconciler) ensureAdminRole(ctx context.Context, guildID string) (*discordgo.Role, error) {
	roles, err := r.Session.GuildRoles(guildID, discordgo.WithContext(ctx))
	if err != nil {
		return nil, errors.Wrap(err, "list roles")
	}
	if role, ok := discordutils.FindRoleByName(roles, AdminRoleName); ok {
		return role, nil
	}

	if err := r.Pacer.Wait(ctx); err != nil {
		return nil, err
	}
	permissions := int64(discordgo.PermissionManageServer |
		discordgo.PermissionManageRoles |
		discordgo.PermissionManageEmojis)
	role, err := r.Session.GuildRoleCreate(guildID, &discordgo.RoleParams{
		Name:        AdminRoleName,
		Permissions: &permissions,
	}, discordgo.WithContext(ctx))
	if err != nil {
		r.Metrics.RemoteErrors.WithLabelValues("GuildRoleCreate").Inc()
		return nil, errors.Wrap(err, "create admin role")
	}
	return role, nil
}
