package reconcile

import (
	"context"

	"github.com/bwmarrin/discordgo"
	"github.com/pkg/errors"

	"slippidex/discordutils"
	"slippidex/roster"
)

// FetchBadgeIndex lists the guild's emojis and indexes the roster badges.
func FetchBadgeIndex(
	ctx context.Context,
	session discordutils.Session,
	catalog *roster.Catalog,
	guildID string,
) (roster.Index, error) {
	emojis, err := session.GuildEmojis(guildID, discordgo.WithContext(ctx))
	if err != nil {
		return roster.NewIndex(catalog, nil), errors.Wrap(err, "list emojis")
	}
	return BadgeIndex(catalog, emojis), nil
}

// BadgeIndex indexes the roster badges among the given emojis.
func BadgeIndex(catalog *roster.Catalog, emojis []*discordgo.Emoji) roster.Index {
	pairs := make([][2]string, 0, len(emojis))
	for _, emoji := range emojis {
		pairs = append(pairs, [2]string{emoji.Name, emoji.ID})
	}
	return roster.NewIndex(catalog, pairs)
}

// RoleIndex indexes the roster roles among the given roles.
func RoleIndex(catalog *roster.Catalog, roles []*discordgo.Role) roster.Index {
	pairs := make([][2]string, 0, len(roles))
	for _, role := range roles {
		pairs = append(pairs, [2]string{role.Name, role.ID})
	}
	return roster.NewIndex(catalog, pairs)
}
