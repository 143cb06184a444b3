package discordutils

import (
	"testing"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
)

func TestMemberHasAdminPermissions(t *testing.T) {
	roles := []*discordgo.Role{
		{ID: "admin", Permissions: discordgo.PermissionAdministrator},
		{ID: "pleb", Permissions: discordgo.PermissionSendMessages},
	}

	assert.True(t, MemberHasAdminPermissions(roles, &discordgo.Member{Roles: []string{"pleb", "admin"}}))
	assert.False(t, MemberHasAdminPermissions(roles, &discordgo.Member{Roles: []string{"pleb"}}))
	assert.True(t, MemberHasAdminPermissions(nil, &discordgo.Member{Permissions: discordgo.PermissionAdministrator}))
}

func TestHighestRole(t *testing.T) {
	roles := []*discordgo.Role{
		{ID: "a", Position: 3},
		{ID: "b", Position: 7},
		{ID: "c", Position: 9},
	}

	highest, ok := HighestRole(&discordgo.Member{Roles: []string{"a", "b", "gone"}}, roles)
	assert.True(t, ok)
	assert.Equal(t, "b", highest.ID)

	_, ok = HighestRole(&discordgo.Member{}, roles)
	assert.False(t, ok)
}

func TestMentions(t *testing.T) {
	assert.Equal(t, "<:Mario:123>", EmojiMention("Mario", "123"))
	assert.Equal(t, "<@42>", UserMention("42"))
	assert.Equal(t, "<@&7>", RoleMention("7"))
}

func TestInteractionUser(t *testing.T) {
	member := &discordgo.User{ID: "m"}
	dm := &discordgo.User{ID: "d"}

	assert.Equal(t, "m", InteractionUser(&discordgo.Interaction{Member: &discordgo.Member{User: member}}).ID)
	assert.Equal(t, "d", InteractionUser(&discordgo.Interaction{User: dm}).ID)
}

type recordingEditor struct {
	edits []*discordgo.WebhookEdit
}

func (r *recordingEditor) InteractionResponseEdit(
	_ *discordgo.Interaction,
	edit *discordgo.WebhookEdit,
	_ ...discordgo.RequestOption,
) (*discordgo.Message, error) {
	r.edits = append(r.edits, edit)
	return &discordgo.Message{Content: *edit.Content}, nil
}

func TestEditResponse(t *testing.T) {
	editor := &recordingEditor{}
	interaction := &discordgo.Interaction{ID: "i-1"}

	assert.NoError(t, EditResponse("pick again", nil, interaction, editor))
	assert.NoError(t, EditResponse("done", []discordgo.MessageComponent{}, interaction, editor))

	if assert.Len(t, editor.edits, 2) {
		// nil keeps the menu
		assert.Equal(t, "pick again", *editor.edits[0].Content)
		assert.Nil(t, editor.edits[0].Components)

		assert.Equal(t, "done", *editor.edits[1].Content)
		if assert.NotNil(t, editor.edits[1].Components) {
			assert.Empty(t, *editor.edits[1].Components)
		}
	}
}
