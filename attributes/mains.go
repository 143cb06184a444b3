package attributes

import (
	"context"

	"github.com/bwmarrin/discordgo"
	"github.com/pkg/errors"

	"slippidex/dal"
	"slippidex/reconcile"
	"slippidex/roster"
)

// MaxMains is the most main characters a member can hold.
const MaxMains = 2

// ErrInvalidMains is returned for an empty, oversized, repeated or unknown
// set of mains.
var ErrInvalidMains = errors.New("invalid main characters")

// ValidateMains checks a resolved set of mains against the roster.
func ValidateMains(catalog *roster.Catalog, entries []string) error {
	if len(entries) == 0 || len(entries) > MaxMains {
		return errors.Wrapf(ErrInvalidMains, "%d entries", len(entries))
	}
	seen := make(map[string]bool, len(entries))
	for _, name := range entries {
		if !catalog.Contains(name) {
			return errors.Wrapf(ErrInvalidMains, "%q: %v", name, roster.ErrUnknownEntry)
		}
		if seen[name] {
			return errors.Wrapf(ErrInvalidMains, "%q chosen twice", name)
		}
		seen[name] = true
	}
	return nil
}

// SetMains stores the member's resolved mains and brings their roster roles
// in line: roles for dropped entries are removed, roles for new entries are
// added. Every new entry gets its role.
func (m *Mutator) SetMains(ctx context.Context, guildID, memberID string, entries []string) error {
	if err := ValidateMains(m.Catalog, entries); err != nil {
		return err
	}
	if err := m.checkFunctional(ctx, guildID); err != nil {
		return err
	}

	roles, member := m.fetch(ctx, guildID, memberID)
	if member != nil {
		m.syncMainRoles(ctx, guildID, memberID, entries, roles, member)
	}

	if err := dal.UpdateMemberMains(ctx, guildID, memberID, entries, m.DB); err != nil {
		return err
	}
	m.Log.Debugw("set mains", "guild", guildID, "member", memberID, "mains", entries)

	m.publish(ctx, guildID)
	return nil
}

func (m *Mutator) syncMainRoles(
	ctx context.Context,
	guildID string,
	memberID string,
	entries []string,
	roles []*discordgo.Role,
	member *discordgo.Member,
) {
	index := reconcile.RoleIndex(m.Catalog, roles)

	held := make(map[string]bool, len(member.Roles))
	for _, id := range member.Roles {
		held[id] = true
	}
	var current []string
	for _, name := range m.Catalog.Names() {
		if id, ok := index.Lookup(name); ok && held[id] {
			current = append(current, name)
		}
	}

	for _, name := range roster.Difference(current, entries) {
		id, _ := index.Lookup(name)
		m.removeRole(ctx, guildID, memberID, id)
	}

	for _, name := range roster.Difference(entries, current) {
		id, err := index.MustLookup(name)
		if err != nil {
			m.remoteFailed("GuildMemberRoleAdd", err, "guild", guildID, "member", memberID, "entry", name)
			continue
		}
		m.addRole(ctx, guildID, memberID, id)
	}
}
