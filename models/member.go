package models

import (
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// MemberRecord represents a guild member's Slippi tag and main characters.
// Mains only ever holds resolved roster entry names, at most two.
type MemberRecord struct {
	gorm.Model
	MemberID      string `gorm:"uniqueIndex:idx_member_guild;not null"`
	GuildRecordID uint   `gorm:"uniqueIndex:idx_member_guild;not null"`
	Tag           string
	Mains         datatypes.JSONSlice[string]
}
