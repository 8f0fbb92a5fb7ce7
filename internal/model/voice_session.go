package model

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// VoiceSession is one closed stay of a member in a voice channel. Rows are
// append-only.
type VoiceSession struct {
	ID          int64             `gorm:"primaryKey;autoIncrement"`
	MemberID    snowflake.ID      `gorm:"not null;index:idx_voice_sessions_member_started,priority:1"`
	MemberName  string            `gorm:"size:256;not null"`
	MemberBot   bool              `gorm:"-" json:"-"` // Copied onto the member row on insert
	ChannelID   snowflake.ID      `gorm:"not null"`
	ChannelName string            `gorm:"size:256;not null"`
	StartedAt   time.Time         `gorm:"not null;index:idx_voice_sessions_member_started,priority:2"`
	EndedAt     time.Time         `gorm:"not null"`
	Metadata    datatypes.JSONMap `json:"metadata,omitempty"`
	CreatedAt   time.Time
}

// Duration is the time between StartedAt and EndedAt.
func (s VoiceSession) Duration() time.Duration {
	return s.EndedAt.Sub(s.StartedAt)
}
