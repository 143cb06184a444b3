package bot

import (
	"context"
	"strings"

	"github.com/bwmarrin/discordgo"
	"github.com/pkg/errors"

	"slippidex/attributes"
	"slippidex/dal"
	"slippidex/directory"
	"slippidex/discordutils"
	"slippidex/lang"
	"slippidex/reconcile"
	"slippidex/roster"
	"slippidex/selection"
)

const (
	cmdSetTag     = "settag"
	cmdSetMain    = "setmain"
	cmdReconcile  = "reconcile"
	cmdGetTagUser = "Get Slippi Tag"
)

var (
	adminPermission int64 = discordgo.PermissionAdministrator
	guildOnly             = false
)

var botCommands = []*discordgo.ApplicationCommand{
	{
		Name:         cmdSetTag,
		Description:  "Sets your Slippi tag.",
		DMPermission: &guildOnly,
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionString,
				Name:        "tag",
				Description: "Your Slippi tag, for example user#412.",
				Required:    true,
			},
		},
	}, {
		Name:         cmdSetMain,
		Description:  "Chooses your main characters.",
		DMPermission: &guildOnly,
	}, {
		Name:                     cmdReconcile,
		Description:              "Re-checks character emojis, roles and the bot's role position.",
		DMPermission:             &guildOnly,
		DefaultMemberPermissions: &adminPermission,
	}, {
		Name:         cmdGetTagUser,
		Type:         discordgo.UserApplicationCommand,
		DMPermission: &guildOnly,
	},
}

func (bot *Bot) onInteraction(_ *discordgo.Session, i *discordgo.InteractionCreate) {
	ctx, cancel := bot.eventContext()
	defer cancel()

	switch i.Type {
	case discordgo.InteractionApplicationCommand:
		if handler, ok := bot.commandHandlers[i.ApplicationCommandData().Name]; ok {
			handler(ctx, i)
		}
	case discordgo.InteractionMessageComponent:
		if strings.HasPrefix(i.MessageComponentData().CustomID, selection.CustomIDPrefix) {
			bot.SelectMains(ctx, i)
		}
	}
}

func (bot *Bot) followup(key string, data lang.Data, i *discordgo.InteractionCreate) {
	err := discordutils.SendFollowup(bot.Lang.Get(key, data), i.Interaction, bot.session)
	if err != nil {
		bot.Log.Warnw("failed to send followup", "interaction", i.ID, "error", err)
	}
}

// SetTag handles /settag.
func (bot *Bot) SetTag(ctx context.Context, i *discordgo.InteractionCreate) {
	if err := discordutils.AckInteraction(i.Interaction, bot.session); err != nil {
		bot.Log.Warnw("failed to ack interaction", "error", err)
		return
	}
	if i.GuildID == "" {
		bot.followup(lang.GuildOnly, nil, i)
		return
	}

	user := discordutils.InteractionUser(i.Interaction)
	options := i.ApplicationCommandData().Options
	if len(options) == 0 {
		bot.followup(lang.InvalidTag, nil, i)
		return
	}
	tag := options[0].StringValue()

	err := bot.mutator.SetTag(ctx, i.GuildID, user.ID, tag)
	if err != nil {
		key := tagReply(err)
		if key == lang.TagFailed {
			bot.Log.Errorw("failed to set tag", "guild", i.GuildID, "member", user.ID, "error", err)
		}
		bot.followup(key, nil, i)
		return
	}

	tag, _ = attributes.ValidateTag(tag)
	bot.followup(lang.TagSet, lang.Data{
		"User": discordutils.UserMention(user.ID),
		"Tag":  tag,
	}, i)
}

// SetMain handles /setmain by opening a selection menu.
func (bot *Bot) SetMain(ctx context.Context, i *discordgo.InteractionCreate) {
	reply := func(content string, components []discordgo.MessageComponent) {
		err := bot.session.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
			Type: discordgo.InteractionResponseChannelMessageWithSource,
			Data: &discordgo.InteractionResponseData{
				Content:    content,
				Components: components,
				Flags:      discordgo.MessageFlagsEphemeral,
			},
		})
		if err != nil {
			bot.Log.Warnw("failed to respond", "interaction", i.ID, "error", err)
		}
	}

	if i.GuildID == "" {
		reply(bot.Lang.Get(lang.GuildOnly, nil), nil)
		return
	}

	guild, err := dal.FindOrCreateGuild(ctx, i.GuildID, bot.DB)
	if err != nil {
		bot.Log.Errorw("failed to load guild", "guild", i.GuildID, "error", err)
		reply(bot.Lang.Get(lang.MainsFailed, nil), nil)
		return
	}
	if !guild.RolesValid {
		reply(bot.Lang.Get(lang.BotNotFunctional, nil), nil)
		return
	}

	user := discordutils.InteractionUser(i.Interaction)
	menu, err := bot.selections.Start(ctx, i.GuildID, user.ID)
	if err != nil {
		bot.Log.Errorw("failed to start selection", "guild", i.GuildID, "member", user.ID, "error", err)
		reply(bot.Lang.Get(lang.MainsFailed, nil), nil)
		return
	}

	badges, err := reconcile.FetchBadgeIndex(ctx, bot.rest, bot.Catalog, i.GuildID)
	if err != nil {
		bot.Log.Warnw("showing menu without badges", "guild", i.GuildID, "error", err)
	}
	reply(menu.Content, menu.Components(badges))
}

// SelectMains handles a member's answer to a selection menu. The answer is
// acknowledged first, since resolving it edits roles at a paced rate.
func (bot *Bot) SelectMains(ctx context.Context, i *discordgo.InteractionCreate) {
	err := bot.session.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredMessageUpdate,
	})
	if err != nil {
		bot.Log.Warnw("failed to ack selection", "interaction", i.ID, "error", err)
		return
	}

	data := i.MessageComponentData()
	user := discordutils.InteractionUser(i.Interaction)

	step, sessionID, err := selection.ParseCustomID(data.CustomID)
	if err != nil {
		bot.editSelection(i, bot.Lang.Get(lang.InvalidSelection, nil), nil)
		return
	}

	out, err := bot.selections.Submit(ctx, selection.Submission{
		SessionID: sessionID,
		Step:      step,
		MemberID:  user.ID,
		Values:    data.Values,
	})
	switch {
	case errors.Is(err, selection.ErrTooManyMains):
		// leave the menu up so the member can choose again
		content := bot.Lang.Get(lang.TooManyMains, lang.Data{"Max": selection.MaxMains})
		if err := discordutils.EditResponse(content, nil, i.Interaction, bot.session); err != nil {
			bot.Log.Warnw("failed to edit selection", "interaction", i.ID, "error", err)
		}
		return
	case err != nil:
		key := selectionReply(err)
		if key == lang.MainsFailed {
			bot.Log.Errorw("failed to set mains", "guild", i.GuildID, "member", user.ID, "error", err)
		}
		bot.editSelection(i, bot.Lang.Get(key, nil), nil)
		return
	}

	if out.Next != nil {
		badges, err := reconcile.FetchBadgeIndex(ctx, bot.rest, bot.Catalog, i.GuildID)
		if err != nil {
			bot.Log.Warnw("showing menu without badges", "guild", i.GuildID, "error", err)
		}
		bot.editSelection(i, out.Next.Content, out.Next.Components(badges))
		return
	}

	badges, err := reconcile.FetchBadgeIndex(ctx, bot.rest, bot.Catalog, i.GuildID)
	if err != nil {
		bot.Log.Warnw("confirming mains without badges", "guild", i.GuildID, "error", err)
	}
	bot.editSelection(i, bot.Lang.Get(lang.MainsUpdated, lang.Data{
		"Mains": mainsLabel(out.Mains, badges),
	}), nil)
}

func (bot *Bot) editSelection(
	i *discordgo.InteractionCreate,
	content string,
	components []discordgo.MessageComponent,
) {
	if components == nil {
		components = []discordgo.MessageComponent{}
	}
	if err := discordutils.EditResponse(content, components, i.Interaction, bot.session); err != nil {
		bot.Log.Warnw("failed to edit selection", "interaction", i.ID, "error", err)
	}
}

// Reconcile handles /reconcile, an admin-only manual re-check.
func (bot *Bot) Reconcile(ctx context.Context, i *discordgo.InteractionCreate) {
	if err := discordutils.AckInteraction(i.Interaction, bot.session); err != nil {
		bot.Log.Warnw("failed to ack interaction", "error", err)
		return
	}
	if i.GuildID == "" || i.Member == nil {
		bot.followup(lang.GuildOnly, nil, i)
		return
	}

	roles, err := bot.rest.GuildRoles(i.GuildID, discordgo.WithContext(ctx))
	if err != nil {
		bot.Log.Errorw("failed to list roles", "guild", i.GuildID, "error", err)
	}
	if !discordutils.MemberHasAdminPermissions(roles, i.Member) {
		bot.followup(lang.NotAdmin, nil, i)
		return
	}

	channelID, err := bot.reconciler.EnsureInfoChannel(ctx, i.GuildID)
	if err != nil {
		bot.Log.Errorw("failed to set up info channel", "guild", i.GuildID, "error", err)
	}

	result, err := bot.reconciler.Run(ctx, i.GuildID)
	if err != nil && !errors.Is(err, reconcile.ErrHierarchy) {
		bot.Log.Errorw("reconciliation failed", "guild", i.GuildID, "error", err)
	}
	bot.followup(reconcileReply(err), lang.Data{
		"Summary": result.Summary(),
		"Channel": "<#" + channelID + ">",
	}, i)

	if _, err := bot.ensureDirectory(ctx, i.GuildID); err != nil {
		bot.Log.Errorw("failed to set up directory", "guild", i.GuildID, "error", err)
		return
	}
	if err := bot.publisher.Publish(ctx, i.GuildID); err != nil {
		bot.Log.Warnw("failed to refresh directory", "guild", i.GuildID, "error", err)
	}
}

// GetTag handles the Get Slippi Tag user command.
func (bot *Bot) GetTag(ctx context.Context, i *discordgo.InteractionCreate) {
	if err := discordutils.AckInteraction(i.Interaction, bot.session); err != nil {
		bot.Log.Warnw("failed to ack interaction", "error", err)
		return
	}
	if i.GuildID == "" {
		bot.followup(lang.GuildOnly, nil, i)
		return
	}

	targetID := i.ApplicationCommandData().TargetID
	key, data, err := bot.describeMember(ctx, i.GuildID, targetID)
	if err != nil {
		bot.Log.Errorw("failed to look up member", "guild", i.GuildID, "member", targetID, "error", err)
	}
	bot.followup(key, data, i)
}

// describeMember picks the reply describing a member's stored tag and mains.
func (bot *Bot) describeMember(ctx context.Context, guildID, memberID string) (string, lang.Data, error) {
	mention := discordutils.UserMention(memberID)

	record, err := dal.GetMember(ctx, guildID, memberID, bot.DB)
	if errors.Is(err, dal.ErrNotFound) {
		return lang.TagNotFound, lang.Data{"User": mention}, nil
	}
	if err != nil {
		return lang.TagNotFound, lang.Data{"User": mention}, err
	}
	if record.Tag == "" {
		return lang.TagNotFound, lang.Data{"User": mention}, nil
	}
	if len(record.Mains) == 0 {
		return lang.TagLookup, lang.Data{"User": mention, "Tag": record.Tag}, nil
	}

	badges, err := reconcile.FetchBadgeIndex(ctx, bot.rest, bot.Catalog, guildID)
	if err != nil {
		bot.Log.Warnw("describing member without badges", "guild", guildID, "error", err)
	}
	return lang.TagLookupMains, lang.Data{
		"User":  mention,
		"Tag":   record.Tag,
		"Mains": mainsLabel(record.Mains, badges),
	}, nil
}

func mainsLabel(mains []string, badges roster.Index) string {
	labels := make([]string, 0, len(mains))
	for _, name := range mains {
		labels = append(labels, directory.MainLabel(name, badges))
	}
	return strings.Join(labels, " ")
}

// tagReply picks the reply for a failed /settag.
func tagReply(err error) string {
	switch {
	case errors.Is(err, attributes.ErrInvalidTag):
		return lang.InvalidTag
	case errors.Is(err, attributes.ErrNotFunctional):
		return lang.BotNotFunctional
	default:
		return lang.TagFailed
	}
}

// reconcileReply picks the reply for /reconcile.
func reconcileReply(err error) string {
	switch {
	case err == nil:
		return lang.ReconcileDone
	case errors.Is(err, reconcile.ErrHierarchy):
		return lang.ReconcileFailed
	default:
		return lang.ReconcileError
	}
}

// selectionReply picks the reply for a failed menu submission.
func selectionReply(err error) string {
	switch {
	case errors.Is(err, selection.ErrSessionNotFound):
		return lang.SelectionExpired
	case errors.Is(err, selection.ErrTooManyMains):
		return lang.TooManyMains
	case errors.Is(err, selection.ErrInvalidSelection),
		errors.Is(err, selection.ErrWrongStep),
		errors.Is(err, attributes.ErrInvalidMains):
		return lang.InvalidSelection
	case errors.Is(err, attributes.ErrNotFunctional):
		return lang.BotNotFunctional
	default:
		return lang.MainsFailed
	}
}
