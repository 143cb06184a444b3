package models

import "gorm.io/gorm"

// GuildRecord holds per-guild bot state. The pinned channel and message are
// written once, when the directory channel is first created.
type GuildRecord struct {
	gorm.Model
	GuildID         string `gorm:"uniqueIndex;not null"`
	InfoChannelID   string
	PinnedChannelID string
	PinnedMessageID string
	// RolesValid is false while the bot's role ranks below a roster role.
	RolesValid bool
	Members    []MemberRecord `gorm:"constraint:OnDelete:CASCADE"`
}

// HasDirectory reports whether the directory channel and message exist.
func (g *GuildRecord) HasDirectory() bool {
	return g.PinnedChannelID != "" && g.PinnedMessageID != ""
}
