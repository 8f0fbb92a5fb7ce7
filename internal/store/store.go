package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/ghaaf-labs/Activity-tracker-discord-bot/internal/model"
)

// ErrMemberNotFound is returned when a member has never had a session recorded.
var ErrMemberNotFound = errors.New("member not found")

// Store defines the interface for all database operations.
type Store interface {
	AppendInterval(ctx context.Context, session *model.VoiceSession) error
	QueryIntervals(ctx context.Context, memberID snowflake.ID, from, to time.Time) ([]model.VoiceSession, error)
	FindMember(ctx context.Context, memberID snowflake.ID) (*model.Member, error)
	DB() *gorm.DB
}

// gormStore implements the Store interface using GORM.
type gormStore struct {
	db *gorm.DB
}

// NewGormStore creates a new GORM-backed store.
func NewGormStore(db *gorm.DB) Store {
	return &gormStore{db: db}
}

func (s *gormStore) DB() *gorm.DB {
	return s.db
}

// AppendInterval stores one closed session and refreshes the member's display
// name in the same transaction. A bot session marks the member as a bot for
// good. Timestamps are stored in UTC.
func (s *gormStore) AppendInterval(ctx context.Context, session *model.VoiceSession) error {
	if session.EndedAt.Before(session.StartedAt) {
		return fmt.Errorf("session for member %s ends before it starts", session.MemberID)
	}
	session.StartedAt = session.StartedAt.UTC()
	session.EndedAt = session.EndedAt.UTC()

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := upsertMember(tx, session.MemberID, session.MemberName, session.MemberBot); err != nil {
			return err
		}
		if err := tx.Create(session).Error; err != nil {
			return fmt.Errorf("failed to insert voice session for member %s: %w", session.MemberID, err)
		}
		return nil
	})
}

// QueryIntervals returns the member's sessions that overlap [from, to),
// ordered by start time.
func (s *gormStore) QueryIntervals(ctx context.Context, memberID snowflake.ID, from, to time.Time) ([]model.VoiceSession, error) {
	var sessions []model.VoiceSession
	err := s.db.WithContext(ctx).
		Where("member_id = ? AND ended_at > ? AND started_at < ?", memberID, from.UTC(), to.UTC()).
		Order("started_at ASC").
		Find(&sessions).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query voice sessions for member %s: %w", memberID, err)
	}
	return sessions, nil
}

// FindMember loads a member by ID.
func (s *gormStore) FindMember(ctx context.Context, memberID snowflake.ID) (*model.Member, error) {
	var member model.Member
	err := s.db.WithContext(ctx).First(&member, "id = ?", memberID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrMemberNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load member %s: %w", memberID, err)
	}
	return &member, nil
}

func upsertMember(tx *gorm.DB, id snowflake.ID, name string, bot bool) error {
	member := model.Member{ID: id, DisplayName: name, Bot: bot}
	updates := []string{"display_name", "updated_at"}
	if bot {
		updates = append(updates, "bot")
	}
	err := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns(updates),
	}).Create(&member).Error
	if err != nil {
		return fmt.Errorf("failed to upsert member %s: %w", id, err)
	}
	return nil
}
