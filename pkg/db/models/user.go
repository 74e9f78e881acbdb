package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/minelance/minelance-backend/pkg/enums"
)

// User is the local projection of an identity-provider account. The API only
// reads the role and writes the ban columns.
type User struct {
	ID        uuid.UUID      `gorm:"type:uuid;primaryKey"`
	Username  string         `gorm:"column:username;not null"`
	DiscordID *string        `gorm:"column:discord_id;uniqueIndex"`
	Role      enums.UserRole `gorm:"column:role;not null;default:user"`
	IsBanned  bool           `gorm:"column:is_banned;not null;default:false"`
	BanReason *string        `gorm:"column:ban_reason"`
	CreatedAt time.Time      `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time      `gorm:"column:updated_at;autoUpdateTime"`
}

func (u *User) BeforeCreate(*gorm.DB) error {
	ensureID(&u.ID)
	return nil
}
