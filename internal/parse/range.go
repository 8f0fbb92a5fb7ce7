package parse

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/bwmarrin/snowflake"

	"github.com/ghaaf-labs/Activity-tracker-discord-bot/internal/calendar"
)

const (
	// DefaultDays is the lookback used when neither days nor from/to is given.
	DefaultDays = 7
	// MaxDays bounds the lookback so a single request stays cheap.
	MaxDays = 366
)

// StatsRange resolves the days/from/to query parameters into an inclusive
// date range. from and to must be given together and win over days.
func StatsRange(days, from, to string, today calendar.Date) (calendar.Date, calendar.Date, error) {
	days = strings.TrimSpace(days)
	from = strings.TrimSpace(from)
	to = strings.TrimSpace(to)

	if from != "" || to != "" {
		if from == "" || to == "" {
			return calendar.Date{}, calendar.Date{}, fmt.Errorf("from and to must be given together")
		}
		start, err := calendar.ParseDate(from)
		if err != nil {
			return calendar.Date{}, calendar.Date{}, err
		}
		end, err := calendar.ParseDate(to)
		if err != nil {
			return calendar.Date{}, calendar.Date{}, err
		}
		if end.Before(start) {
			return calendar.Date{}, calendar.Date{}, fmt.Errorf("to %s is before from %s", end, start)
		}
		if start.DaysUntil(end) > MaxDays {
			return calendar.Date{}, calendar.Date{}, fmt.Errorf("range spans more than %d days", MaxDays)
		}
		return start, end, nil
	}

	n := DefaultDays
	if days != "" {
		v, err := strconv.Atoi(days)
		if err != nil {
			return calendar.Date{}, calendar.Date{}, fmt.Errorf("invalid days %q: %w", days, err)
		}
		n = v
	}
	if n < 0 || n > MaxDays {
		return calendar.Date{}, calendar.Date{}, fmt.Errorf("days must be between 0 and %d, got %d", MaxDays, n)
	}
	return today.AddDays(-n), today, nil
}

// MemberID parses a platform member ID. IDs are positive.
func MemberID(raw string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("invalid member id %q: %w", raw, err)
	}
	if id <= 0 {
		return 0, fmt.Errorf("invalid member id %q", raw)
	}
	return id, nil
}
