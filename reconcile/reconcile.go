// Package reconcile keeps a guild's character badges and roles in line with
// the roster.
package reconcile

import (
	"context"
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"slippidex/dal"
	"slippidex/discordutils"
	"slippidex/lang"
	"slippidex/metrics"
	"slippidex/pacing"
	"slippidex/roster"
)

// ErrHierarchy is returned when the bot's highest role does not rank above
// every roster role. Role-changing flows must stay disabled for the guild
// until a later run succeeds.
var ErrHierarchy = errors.New("bot role ranks below a roster role")

// Config holds the reconciler's collaborators.
type Config struct {
	Session   discordutils.Session
	DB        *gorm.DB
	Catalog   *roster.Catalog
	Assets    Assets
	Pacer     *pacing.Pacer
	Lang      *lang.Lang
	Metrics   *metrics.Metrics
	Log       *zap.SugaredLogger
	BotUserID string
}

// Reconciler ensures a guild's badges and roles match the roster.
type Reconciler struct {
	Config
}

// New creates a reconciler.
func New(config Config) *Reconciler {
	return &Reconciler{Config: config}
}

// Result summarises one reconciliation run.
type Result struct {
	BadgesCreated []string
	BadgesDeleted []string
	RolesCreated  []string
	MissingAssets []string
	Failed        []string
	RolesValid    bool
}

// Summary is a one-line description for admins.
func (r Result) Summary() string {
	parts := []string{
		fmt.Sprintf("%d badges created", len(r.BadgesCreated)),
		fmt.Sprintf("%d badges purged", len(r.BadgesDeleted)),
		fmt.Sprintf("%d roles created", len(r.RolesCreated)),
	}
	if len(r.MissingAssets) > 0 {
		parts = append(parts, fmt.Sprintf("%d icons missing", len(r.MissingAssets)))
	}
	if len(r.Failed) > 0 {
		parts = append(parts, fmt.Sprintf("%d failed calls", len(r.Failed)))
	}
	if r.RolesValid {
		parts = append(parts, "role hierarchy ok")
	} else {
		parts = append(parts, "role hierarchy invalid")
	}
	return strings.Join(parts, ", ")
}

func (r *Reconciler) failed(result *Result, op string, err error, fields ...interface{}) {
	result.Failed = append(result.Failed, op)
	r.Metrics.RemoteErrors.WithLabelValues(op).Inc()
	r.Log.Errorw(op+" failed", append(fields, "error", err)...)
}

// Run reconciles the guild's badges and roles, then validates the role
// hierarchy and records the outcome on the guild record. Individual remote
// failures are logged and skipped. The returned error is ErrHierarchy when
// the bot cannot manage the roster roles.
func (r *Reconciler) Run(ctx context.Context, guildID string) (Result, error) {
	var result Result

	if _, err := dal.FindOrCreateGuild(ctx, guildID, r.DB); err != nil {
		return result, err
	}

	if err := r.reconcileBadges(ctx, guildID, &result); err != nil {
		return result, err
	}
	if err := r.reconcileRoles(ctx, guildID, &result); err != nil {
		return result, err
	}

	valid, err := r.ValidateHierarchy(ctx, guildID)
	result.RolesValid = valid
	if dbErr := dal.SetRolesValid(ctx, guildID, valid, r.DB); dbErr != nil {
		return result, dbErr
	}

	if len(result.Failed) > 0 {
		r.Alert(ctx, guildID, r.Lang.Get(lang.ReconcileErrors, lang.Data{
			"Calls": strings.Join(result.Failed, ", "),
		}))
	}

	r.Log.Infow("reconciled guild", "guild", guildID, "summary", result.Summary())
	return result, err
}

func (r *Reconciler) reconcileBadges(ctx context.Context, guildID string, result *Result) error {
	emojis, err := r.Session.GuildEmojis(guildID, discordgo.WithContext(ctx))
	if err != nil {
		r.failed(result, "GuildEmojis", err, "guild", guildID)
		return nil
	}

	existing := make([]string, 0, len(emojis))
	for _, emoji := range emojis {
		existing = append(existing, emoji.Name)
	}
	missing := roster.Difference(r.Catalog.Names(), existing)

	var unknown []*discordgo.Emoji
	for _, emoji := range emojis {
		if !r.Catalog.Contains(emoji.Name) {
			unknown = append(unknown, emoji)
		}
	}

	if len(unknown) > 0 {
		names := make([]string, len(unknown))
		for i, emoji := range unknown {
			names[i] = emoji.Name
		}
		r.Alert(ctx, guildID, r.Lang.Get(lang.UnknownBadges, lang.Data{
			"Names": strings.Join(names, ", "),
		}))

		for _, emoji := range unknown {
			if err := r.Pacer.Wait(ctx); err != nil {
				return err
			}
			err := r.Session.GuildEmojiDelete(guildID, emoji.ID, discordgo.WithContext(ctx))
			if err != nil {
				r.failed(result, "GuildEmojiDelete", err, "guild", guildID, "emoji", emoji.Name)
				continue
			}
			result.BadgesDeleted = append(result.BadgesDeleted, emoji.Name)
			r.Metrics.BadgesDeleted.Inc()
			r.Log.Infow("purged unknown badge", "guild", guildID, "emoji", emoji.Name)
		}
	}

	if len(missing) == 0 {
		return nil
	}

	files, err := r.Assets.Files()
	if err != nil {
		r.Log.Errorw("cannot read badge assets", "dir", r.Assets.Dir, "error", err)
		files = map[string]string{}
	}

	for _, name := range missing {
		path, ok := files[name]
		if !ok {
			result.MissingAssets = append(result.MissingAssets, name)
			continue
		}
		image, err := DataURI(path)
		if err != nil {
			r.Log.Errorw("cannot load badge icon", "entry", name, "error", err)
			result.MissingAssets = append(result.MissingAssets, name)
			continue
		}

		if err := r.Pacer.Wait(ctx); err != nil {
			return err
		}
		_, err = r.Session.GuildEmojiCreate(guildID, &discordgo.EmojiParams{
			Name:  name,
			Image: image,
		}, discordgo.WithContext(ctx))
		if err != nil {
			r.failed(result, "GuildEmojiCreate", err, "guild", guildID, "entry", name)
			continue
		}
		result.BadgesCreated = append(result.BadgesCreated, name)
		r.Metrics.BadgesCreated.Inc()
	}

	if len(result.MissingAssets) > 0 {
		r.Alert(ctx, guildID, r.Lang.Get(lang.MissingBadgeAssets, lang.Data{
			"Names": strings.Join(result.MissingAssets, ", "),
		}))
	}
	return nil
}

func (r *Reconciler) reconcileRoles(ctx context.Context, guildID string, result *Result) error {
	roles, err := r.Session.GuildRoles(guildID, discordgo.WithContext(ctx))
	if err != nil {
		r.failed(result, "GuildRoles", err, "guild", guildID)
		return nil
	}

	index := RoleIndex(r.Catalog, roles)
	mentionable := true
	for _, name := range index.Missing() {
		entry, _ := r.Catalog.Get(name)
		color := entry.Color

		if err := r.Pacer.Wait(ctx); err != nil {
			return err
		}
		_, err := r.Session.GuildRoleCreate(guildID, &discordgo.RoleParams{
			Name:        name,
			Color:       &color,
			Mentionable: &mentionable,
		}, discordgo.WithContext(ctx))
		if err != nil {
			r.failed(result, "GuildRoleCreate", err, "guild", guildID, "entry", name)
			continue
		}
		result.RolesCreated = append(result.RolesCreated, name)
		r.Metrics.RolesCreated.Inc()
	}
	return nil
}

// ValidateHierarchy checks that the bot's highest role ranks above every
// roster role. When it does not, a remediation message goes to the guild's
// info channel. The check is not retried.
func (r *Reconciler) ValidateHierarchy(ctx context.Context, guildID string) (bool, error) {
	roles, err := r.Session.GuildRoles(guildID, discordgo.WithContext(ctx))
	if err != nil {
		return false, r.hierarchyCheckFailed(ctx, guildID, "GuildRoles", errors.Wrap(err, "list roles"))
	}
	me, err := r.Session.GuildMember(guildID, r.BotUserID, discordgo.WithContext(ctx))
	if err != nil {
		return false, r.hierarchyCheckFailed(ctx, guildID, "GuildMember", errors.Wrap(err, "fetch bot member"))
	}

	botRole, ok := discordutils.HighestRole(me, roles)
	valid := ok
	if ok {
		for _, role := range roles {
			if r.Catalog.Contains(role.Name) && role.Position >= botRole.Position {
				valid = false
				break
			}
		}
	}
	if valid {
		return true, nil
	}

	r.Metrics.HierarchyFailures.Inc()
	mention := "bot"
	if botRole != nil {
		mention = discordutils.RoleMention(botRole.ID)
	}
	r.Log.Warnw("bot role ranks below roster roles", "guild", guildID)
	r.Alert(ctx, guildID, r.Lang.Get(lang.HierarchyInvalid, lang.Data{"Role": mention}))
	return false, ErrHierarchy
}

// hierarchyCheckFailed reports a hierarchy check that could not be made. The
// guild is treated as invalid until a later run gets an answer.
func (r *Reconciler) hierarchyCheckFailed(ctx context.Context, guildID, op string, err error) error {
	r.Metrics.RemoteErrors.WithLabelValues(op).Inc()
	r.Log.Errorw("cannot check role hierarchy", "guild", guildID, "error", err)
	r.Alert(ctx, guildID, r.Lang.Get(lang.HierarchyCheckFailed, lang.Data{"Error": err.Error()}))
	return err
}

// Alert posts a message to the guild's info channel. Failures are logged.
func (r *Reconciler) Alert(ctx context.Context, guildID, content string) {
	guild, err := dal.GetGuild(ctx, guildID, r.DB)
	if err != nil || guild.InfoChannelID == "" {
		r.Log.Errorw("no info channel for alert", "guild", guildID, "alert", content)
		return
	}

	if err := r.Pacer.Wait(ctx); err != nil {
		return
	}
	_, err = r.Session.ChannelMessageSend(guild.InfoChannelID, content, discordgo.WithContext(ctx))
	if err != nil {
		r.Metrics.RemoteErrors.WithLabelValues("ChannelMessageSend").Inc()
		r.Log.Errorw("failed to send alert", "guild", guildID, "channel", guild.InfoChannelID, "error", err)
	}
}
