package directory

import (
	"fmt"
	"strings"

	"slippidex/discordutils"
	"slippidex/models"
	"slippidex/roster"
)

// Header opens every directory message.
const Header = "__**Directory**__"

const profileURL = "https://slippi.gg/user/"

// Render builds the directory message from the guild's member records, in
// the order given. It depends only on its inputs.
func Render(records []models.MemberRecord, badges roster.Index) string {
	if len(records) == 0 {
		return Header
	}

	blocks := make([]string, 0, len(records))
	for _, record := range records {
		blocks = append(blocks, renderMember(record, badges))
	}
	return Header + "\n\n" + strings.Join(blocks, "\n\n")
}

func renderMember(record models.MemberRecord, badges roster.Index) string {
	lines := []string{
		fmt.Sprintf("`Discord`: %s", discordutils.UserMention(record.MemberID)),
	}

	if len(record.Mains) > 0 {
		mains := make([]string, 0, len(record.Mains))
		for _, name := range record.Mains {
			mains = append(mains, MainLabel(name, badges))
		}
		lines = append(lines, "`Mains`: "+strings.Join(mains, " "))
	}

	if record.Tag != "" {
		lines = append(lines, fmt.Sprintf(
			"`Slippi Tag`: [%s](%s%s)",
			record.Tag,
			profileURL,
			strings.Replace(record.Tag, "#", "-", 1),
		))
	}

	return strings.Join(lines, "\n")
}

// MainLabel renders a main as its badge followed by its name, or just the
// name when the guild has no badge for it.
func MainLabel(name string, badges roster.Index) string {
	if id, ok := badges.Lookup(name); ok {
		return fmt.Sprintf("%s(%s)", discordutils.EmojiMention(name, id), name)
	}
	return fmt.Sprintf("(%s)", name)
}
