package selection

import (
	"github.com/bwmarrin/discordgo"

	"slippidex/roster"
)

// Components renders the menu as a single select menu. Options show the
// guild's badge for each entry when there is one.
func (m *Menu) Components(badges roster.Index) []discordgo.MessageComponent {
	options := make([]discordgo.SelectMenuOption, 0, len(m.Options))
	for _, entry := range m.Options {
		option := discordgo.SelectMenuOption{
			Label: entry.Name,
			Value: entry.Name,
		}
		if id, ok := badges.Lookup(entry.Name); ok {
			option.Emoji = &discordgo.ComponentEmoji{Name: entry.Name, ID: id}
		}
		options = append(options, option)
	}

	minValues := m.MinValues
	return []discordgo.MessageComponent{
		discordgo.ActionsRow{
			Components: []discordgo.MessageComponent{
				discordgo.SelectMenu{
					MenuType:    discordgo.StringSelectMenu,
					CustomID:    m.CustomID(),
					Placeholder: m.Placeholder,
					MinValues:   &minValues,
					MaxValues:   m.MaxValues,
					Options:     options,
				},
			},
		},
	}
}
