// Package stats answers per-member daily voice time queries.
package stats

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"

	"github.com/ghaaf-labs/Activity-tracker-discord-bot/internal/calendar"
	"github.com/ghaaf-labs/Activity-tracker-discord-bot/internal/model"
)

// IntervalSource returns a member's stored sessions overlapping [from, to).
type IntervalSource interface {
	QueryIntervals(ctx context.Context, memberID snowflake.ID, from, to time.Time) ([]model.VoiceSession, error)
}

// Service builds daily series in a fixed reporting timezone.
type Service struct {
	source IntervalSource
	loc    *time.Location
}

func NewService(source IntervalSource, loc *time.Location) *Service {
	if loc == nil {
		loc = time.UTC
	}
	return &Service{source: source, loc: loc}
}

// Location is the zone whose midnights split days.
func (s *Service) Location() *time.Location {
	return s.loc
}

// Today is the calendar date of now in the reporting timezone.
func (s *Service) Today(now time.Time) calendar.Date {
	return calendar.Of(now, s.loc)
}

// LastDays returns the inclusive range [today-days, today].
func (s *Service) LastDays(days int, now time.Time) (from, to calendar.Date) {
	to = s.Today(now)
	return to.AddDays(-days), to
}

// Daily returns one entry per date in [from, to], zero-filled. An inverted
// range yields an empty series without touching the store.
func (s *Service) Daily(ctx context.Context, memberID snowflake.ID, from, to calendar.Date) ([]calendar.DailyDuration, error) {
	if to.Before(from) {
		return []calendar.DailyDuration{}, nil
	}

	sessions, err := s.source.QueryIntervals(ctx, memberID, from.Midnight(s.loc), to.AddDays(1).Midnight(s.loc))
	if err != nil {
		return nil, fmt.Errorf("load sessions: %w", err)
	}

	spans := make([]calendar.Span, 0, len(sessions))
	for _, vs := range sessions {
		spans = append(spans, calendar.Span{Start: vs.StartedAt, End: vs.EndedAt})
	}
	return calendar.Aggregate(s.loc, spans, calendar.Between(from, to)), nil
}

// FormatTotal renders d as whole hours and minutes, e.g. "3 hours & 5 minutes".
func FormatTotal(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	hours := int(d / time.Hour)
	minutes := int((d % time.Hour) / time.Minute)
	return fmt.Sprintf("%d hours & %d minutes", hours, minutes)
}
