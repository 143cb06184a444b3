package dal

import (
	"context"
	"strings"

	"github.com/pkg/errors"
	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"slippidex/models"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("record not found")

// InitDB creates a database connection and migrates the schema.
func InitDB(dbPath string, log logger.Interface) (*gorm.DB, error) {
	db, err := gorm.Open(
		sqlite.Open(dbPath),
		&gorm.Config{Logger: log},
	)
	if err != nil {
		return nil, errors.Wrap(err, "failed to connect to DB")
	}

	err = db.AutoMigrate(&models.GuildRecord{}, &models.MemberRecord{})
	if err != nil {
		return nil, errors.Wrap(err, "failed to migrate DB")
	}

	return db, nil
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

// FindOrCreateGuild returns the record for the given guild, creating it if
// it does not exist yet.
func FindOrCreateGuild(
	ctx context.Context,
	guildID string,
	db *gorm.DB,
) (*models.GuildRecord, error) {
	var guild models.GuildRecord
	err := db.WithContext(ctx).
		Where(models.GuildRecord{GuildID: guildID}).
		FirstOrCreate(&guild).Error
	if err != nil {
		// lost a creation race with another handler; the row exists now
		if err := db.WithContext(ctx).Where(models.GuildRecord{GuildID: guildID}).Take(&guild).Error; err == nil {
			return &guild, nil
		}
		return nil, errors.Wrapf(err, "find or create guild %v", guildID)
	}
	return &guild, nil
}

// GetGuild returns the record for the given guild.
func GetGuild(
	ctx context.Context,
	guildID string,
	db *gorm.DB,
) (*models.GuildRecord, error) {
	var guild models.GuildRecord
	err := db.WithContext(ctx).
		Where(models.GuildRecord{GuildID: guildID}).
		Take(&guild).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &guild, nil
}

// SetInfoChannel records the admin info channel for the given guild.
func SetInfoChannel(
	ctx context.Context,
	guildID string,
	channelID string,
	db *gorm.DB,
) error {
	return errors.Wrap(
		db.WithContext(ctx).
			Model(&models.GuildRecord{}).
			Where("guild_id = ?", guildID).
			Update("info_channel_id", channelID).Error,
		"set info channel",
	)
}

// SetRolesValid records the outcome of the last role hierarchy check.
func SetRolesValid(
	ctx context.Context,
	guildID string,
	valid bool,
	db *gorm.DB,
) error {
	return errors.Wrap(
		db.WithContext(ctx).
			Model(&models.GuildRecord{}).
			Where("guild_id = ?", guildID).
			Update("roles_valid", valid).Error,
		"set roles valid",
	)
}

// SetDirectoryMessage records the directory channel and message for the
// given guild. The ids are only written if neither is set yet; the returned
// bool reports whether this call wrote them.
func SetDirectoryMessage(
	ctx context.Context,
	guildID string,
	channelID string,
	messageID string,
	db *gorm.DB,
) (bool, error) {
	res := db.WithContext(ctx).
		Model(&models.GuildRecord{}).
		Where("guild_id = ?", guildID).
		Where("(pinned_channel_id = '' OR pinned_channel_id IS NULL)").
		Where("(pinned_message_id = '' OR pinned_message_id IS NULL)").
		Updates(map[string]interface{}{
			"pinned_channel_id": channelID,
			"pinned_message_id": messageID,
		})
	if res.Error != nil {
		return false, errors.Wrap(res.Error, "set directory message")
	}
	return res.RowsAffected == 1, nil
}

// DeleteGuild removes the guild's record and all of its member records.
func DeleteGuild(ctx context.Context, guildID string, db *gorm.DB) error {
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var guild models.GuildRecord
		err := tx.Where(models.GuildRecord{GuildID: guildID}).Take(&guild).Error
		if err != nil {
			return notFound(err)
		}

		err = tx.Unscoped().
			Where(models.MemberRecord{GuildRecordID: guild.ID}).
			Delete(&models.MemberRecord{}).Error
		if err != nil {
			return errors.Wrap(err, "delete guild members")
		}

		return errors.Wrap(tx.Unscoped().Delete(&guild).Error, "delete guild")
	})
}

// FindOrCreateMember returns the record for the given member in the given
// guild, creating the guild and member records as needed.
func FindOrCreateMember(
	ctx context.Context,
	guildID string,
	memberID string,
	db *gorm.DB,
) (*models.MemberRecord, error) {
	guild, err := FindOrCreateGuild(ctx, guildID, db)
	if err != nil {
		return nil, err
	}

	where := models.MemberRecord{MemberID: memberID, GuildRecordID: guild.ID}

	var member models.MemberRecord
	err = db.WithContext(ctx).Where(where).FirstOrCreate(&member).Error
	if err != nil {
		if err := db.WithContext(ctx).Where(where).Take(&member).Error; err == nil {
			return &member, nil
		}
		return nil, errors.Wrapf(err, "find or create member %v in %v", memberID, guildID)
	}
	return &member, nil
}

// GetMember returns the record for the given member in the given guild.
func GetMember(
	ctx context.Context,
	guildID string,
	memberID string,
	db *gorm.DB,
) (*models.MemberRecord, error) {
	guild, err := GetGuild(ctx, guildID, db)
	if err != nil {
		return nil, err
	}

	var member models.MemberRecord
	err = db.WithContext(ctx).
		Where(models.MemberRecord{MemberID: memberID, GuildRecordID: guild.ID}).
		Take(&member).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &member, nil
}

// UpdateMemberTag stores the member's tag, creating the record if needed.
func UpdateMemberTag(
	ctx context.Context,
	guildID string,
	memberID string,
	tag string,
	db *gorm.DB,
) error {
	member, err := FindOrCreateMember(ctx, guildID, memberID, db)
	if err != nil {
		return err
	}
	return errors.Wrap(
		db.WithContext(ctx).Model(member).Update("tag", tag).Error,
		"update member tag",
	)
}

// UpdateMemberMains stores the member's mains, creating the record if needed.
func UpdateMemberMains(
	ctx context.Context,
	guildID string,
	memberID string,
	mains []string,
	db *gorm.DB,
) error {
	member, err := FindOrCreateMember(ctx, guildID, memberID, db)
	if err != nil {
		return err
	}
	return errors.Wrap(
		db.WithContext(ctx).
			Model(member).
			Update("mains", datatypes.JSONSlice[string](mains)).Error,
		"update member mains",
	)
}

// ListMembers returns every member record of the given guild in creation
// order. An unknown guild has no members.
func ListMembers(
	ctx context.Context,
	guildID string,
	db *gorm.DB,
) ([]models.MemberRecord, error) {
	guild, err := GetGuild(ctx, guildID, db)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var members []models.MemberRecord
	err = db.WithContext(ctx).
		Where(models.MemberRecord{GuildRecordID: guild.ID}).
		Order("id").
		Find(&members).Error
	if err != nil {
		return nil, errors.Wrapf(err, "list members of %v", guildID)
	}
	return members, nil
}

// CountMembersWithTag counts the guild's members storing the given tag,
// compared case-insensitively.
func CountMembersWithTag(
	ctx context.Context,
	guildID string,
	tag string,
	db *gorm.DB,
) (int64, error) {
	var count int64
	err := db.WithContext(ctx).
		Model(&models.MemberRecord{}).
		Joins("JOIN guild_records ON guild_records.id = member_records.guild_record_id").
		Where("guild_records.guild_id = ?", guildID).
		Where("LOWER(member_records.tag) = ?", strings.ToLower(tag)).
		Count(&count).Error
	if err != nil {
		return 0, errors.Wrap(err, "count members with tag")
	}
	return count, nil
}
