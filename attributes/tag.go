package attributes

import (
	"context"
	"regexp"
	"strings"

	"github.com/bwmarrin/discordgo"
	"github.com/pkg/errors"

	"slippidex/dal"
	"slippidex/discordutils"
)

// ErrInvalidTag is returned for tags that are not letters, '#', digits.
var ErrInvalidTag = errors.New("invalid slippi tag")

var tagPattern = regexp.MustCompile(`^[a-zA-Z]+#[0-9]+$`)

// ValidateTag trims the tag and checks its shape.
func ValidateTag(tag string) (string, error) {
	tag = strings.TrimSpace(tag)
	if !tagPattern.MatchString(tag) {
		return "", ErrInvalidTag
	}
	return tag, nil
}

// TagRoleName is the name of the role carrying the given tag.
func TagRoleName(tag string) string {
	return strings.ToLower(tag)
}

// SetTag stores the member's tag and moves them from their old tag role to
// one named after the new tag. An old tag role nobody else uses is deleted.
func (m *Mutator) SetTag(ctx context.Context, guildID, memberID, tag string) error {
	tag, err := ValidateTag(tag)
	if err != nil {
		return err
	}
	if err := m.checkFunctional(ctx, guildID); err != nil {
		return err
	}

	record, err := dal.FindOrCreateMember(ctx, guildID, memberID, m.DB)
	if err != nil {
		return err
	}
	oldTag := record.Tag

	var staleRole *discordgo.Role
	roles, member := m.fetch(ctx, guildID, memberID)
	if member != nil {
		if oldTag != "" && !strings.EqualFold(oldTag, tag) {
			for _, role := range discordutils.MemberRoles(member, roles) {
				if strings.EqualFold(role.Name, oldTag) {
					if m.removeRole(ctx, guildID, memberID, role.ID) {
						staleRole = role
					}
					break
				}
			}
		}

		if role := m.tagRole(ctx, guildID, tag, roles); role != nil {
			if !discordutils.MemberHasRole(member, role.ID) {
				m.addRole(ctx, guildID, memberID, role.ID)
			}
		}
	}

	if err := dal.UpdateMemberTag(ctx, guildID, memberID, tag, m.DB); err != nil {
		return err
	}
	m.Log.Debugw("set tag", "guild", guildID, "member", memberID, "tag", tag)

	if staleRole != nil {
		m.deleteIfUnused(ctx, guildID, oldTag, staleRole)
	}

	m.publish(ctx, guildID)
	return nil
}

// tagRole returns the existing role for the tag or creates it.
func (m *Mutator) tagRole(
	ctx context.Context,
	guildID string,
	tag string,
	roles []*discordgo.Role,
) *discordgo.Role {
	name := TagRoleName(tag)
	if role, ok := discordutils.FindRoleByName(roles, name); ok {
		return role
	}

	if err := m.Pacer.Wait(ctx); err != nil {
		return nil
	}
	mentionable := false
	role, err := m.Session.GuildRoleCreate(guildID, &discordgo.RoleParams{
		Name:        name,
		Mentionable: &mentionable,
	}, discordgo.WithContext(ctx))
	if err != nil {
		m.remoteFailed("GuildRoleCreate", err, "guild", guildID, "role", name)
		return nil
	}
	return role
}

func (m *Mutator) deleteIfUnused(ctx context.Context, guildID, tag string, role *discordgo.Role) {
	count, err := dal.CountMembersWithTag(ctx, guildID, tag, m.DB)
	if err != nil {
		m.Log.Errorw("failed to count tag holders", "guild", guildID, "tag", tag, "error", err)
		return
	}
	if count > 0 {
		return
	}

	if err := m.Pacer.Wait(ctx); err != nil {
		return
	}
	if err := m.Session.GuildRoleDelete(guildID, role.ID, discordgo.WithContext(ctx)); err != nil {
		m.remoteFailed("GuildRoleDelete", err, "guild", guildID, "role", role.Name)
		return
	}
	m.Log.Infow("deleted unused tag role", "guild", guildID, "role", role.Name)
}
