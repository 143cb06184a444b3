package discordutils

import (
	"fmt"

	"github.com/bwmarrin/discordgo"
)

// MemberHasAdminPermissions returns true if the given member has admin
// permissions, either resolved on the interaction or through one of roles.
func MemberHasAdminPermissions(roles []*discordgo.Role, member *discordgo.Member) bool {
	if member.Permissions&discordgo.PermissionAdministrator != 0 {
		return true
	}

	guildRoles := RolesByID(roles)
	for _, roleID := range member.Roles {
		if role, ok := guildRoles[roleID]; ok {
			if RoleAllowsAdminPermissions(role) {
				return true
			}
		}
	}

	return false
}

// RoleAllowsAdminPermissions returns true if the given role allows admin permissions.
func RoleAllowsAdminPermissions(role *discordgo.Role) bool {
	return role.Permissions&discordgo.PermissionAdministrator > 0
}

// RolesByID indexes the given roles by id.
func RolesByID(roles []*discordgo.Role) map[string]*discordgo.Role {
	byID := make(map[string]*discordgo.Role, len(roles))
	for _, role := range roles {
		byID[role.ID] = role
	}
	return byID
}

// FindRoleByName returns the first role with the given name.
func FindRoleByName(roles []*discordgo.Role, name string) (*discordgo.Role, bool) {
	for _, role := range roles {
		if role.Name == name {
			return role, true
		}
	}
	return nil, false
}

// MemberRoles resolves the member's role ids against the given roles.
// Ids that are not in roles are skipped.
func MemberRoles(member *discordgo.Member, roles []*discordgo.Role) []*discordgo.Role {
	byID := RolesByID(roles)
	var out []*discordgo.Role
	for _, roleID := range member.Roles {
		if role, ok := byID[roleID]; ok {
			out = append(out, role)
		}
	}
	return out
}

// MemberHasRole returns true if the given member has the given role.
func MemberHasRole(member *discordgo.Member, roleID string) bool {
	for _, id := range member.Roles {
		if id == roleID {
			return true
		}
	}
	return false
}

// HighestRole returns the member's highest-positioned role, if any.
func HighestRole(member *discordgo.Member, roles []*discordgo.Role) (*discordgo.Role, bool) {
	var highest *discordgo.Role
	for _, role := range MemberRoles(member, roles) {
		if highest == nil || role.Position > highest.Position {
			highest = role
		}
	}
	return highest, highest != nil
}

// FindChannelByName returns the first channel with the given name.
func FindChannelByName(channels []*discordgo.Channel, name string) (*discordgo.Channel, bool) {
	for _, channel := range channels {
		if channel.Name == name {
			return channel, true
		}
	}
	return nil, false
}

// EmojiMention formats a custom emoji for use in message content.
func EmojiMention(name, id string) string {
	return fmt.Sprintf("<:%s:%s>", name, id)
}

// UserMention formats a user mention.
func UserMention(userID string) string {
	return fmt.Sprintf("<@%s>", userID)
}

// RoleMention formats a role mention.
func RoleMention(roleID string) string {
	return fmt.Sprintf("<@&%s>", roleID)
}

// AckInteraction sends a deferred, ephemeral response for the given interaction.
func AckInteraction(
	interaction *discordgo.Interaction,
	session *discordgo.Session,
) error {
	return session.InteractionRespond(interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Flags: discordgo.MessageFlagsEphemeral,
		},
	})
}

// SendFollowup creates an ephemeral followup message with the given content.
func SendFollowup(
	content string,
	interaction *discordgo.Interaction,
	session *discordgo.Session,
) error {
	_, err := session.FollowupMessageCreate(
		interaction,
		true,
		&discordgo.WebhookParams{
			Content: content,
			Flags:   discordgo.MessageFlagsEphemeral,
		},
	)
	return err
}

// ResponseEditor edits an interaction's original response.
type ResponseEditor interface {
	InteractionResponseEdit(
		interaction *discordgo.Interaction,
		newresp *discordgo.WebhookEdit,
		options ...discordgo.RequestOption,
	) (*discordgo.Message, error)
}

// EditResponse replaces the content and components of the original
// interaction response. Nil components leave the existing ones in place; an
// empty slice removes them.
func EditResponse(
	content string,
	components []discordgo.MessageComponent,
	interaction *discordgo.Interaction,
	session ResponseEditor,
) error {
	edit := &discordgo.WebhookEdit{Content: &content}
	if components != nil {
		edit.Components = &components
	}
	_, err := session.InteractionResponseEdit(interaction, edit)
	return err
}

// InteractionUser returns the user behind an interaction in a guild or a DM.
func InteractionUser(i *discordgo.Interaction) *discordgo.User {
	if i.Member != nil && i.Member.User != nil {
		return i.Member.User
	}
	return i.User
}
