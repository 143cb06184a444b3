package bot

import (
	"context"

	"github.com/pkg/errors"

	"slippidex/reconcile"
)

// ReconcileGuilds re-runs reconciliation for each guild in turn, so admins
// hear about drift (deleted roles, stray emojis, a demoted bot) without
// having to ask. A guild whose directory was never created gets one here.
// Guilds are handled one at a time to share the pacer.
func (bot *Bot) ReconcileGuilds(ctx context.Context, guildIDs []string) {
	for _, guildID := range guildIDs {
		if ctx.Err() != nil {
			return
		}

		result, err := bot.reconciler.Run(ctx, guildID)
		if err != nil && !errors.Is(err, reconcile.ErrHierarchy) {
			bot.Log.Errorw("scheduled reconciliation failed", "guild", guildID, "error", err)
		}

		created, err := bot.ensureDirectory(ctx, guildID)
		if err != nil {
			bot.Log.Errorw("failed to set up directory", "guild", guildID, "error", err)
			continue
		}
		if created || len(result.BadgesCreated) > 0 || len(result.BadgesDeleted) > 0 {
			if err := bot.publisher.Publish(ctx, guildID); err != nil {
				bot.Log.Warnw("failed to refresh directory", "guild", guildID, "error", err)
			}
		}
	}
}

// reconcileJoinedGuilds runs ReconcileGuilds over the guilds in the
// gateway's state.
func (bot *Bot) reconcileJoinedGuilds() {
	bot.session.State.RLock()
	guildIDs := make([]string, 0, len(bot.session.State.Guilds))
	for _, guild := range bot.session.State.Guilds {
		guildIDs = append(guildIDs, guild.ID)
	}
	bot.session.State.RUnlock()

	bot.Log.Infow("running scheduled reconciliation", "guilds", len(guildIDs))
	bot.ReconcileGuilds(bot.ctx, guildIDs)
}
