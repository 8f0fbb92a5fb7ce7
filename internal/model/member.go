package model

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// Member is a tracked member of the server, keyed by its platform ID.
// DisplayName is the last name seen on a recorded session.
// Bot is set once any session for the member came from a bot account.
type Member struct {
	ID          snowflake.ID `gorm:"primaryKey;autoIncrement:false"` // Platform ID
	DisplayName string       `gorm:"size:256;not null"`
	Bot         bool         `gorm:"not null;default:false"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
