package occupancy

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// OpenSession is a member's in-progress stay in a channel.
type OpenSession struct {
	MemberID    snowflake.ID
	MemberName  string
	Bot         bool
	ChannelID   snowflake.ID
	ChannelName string
	Start       time.Time
	Metadata    map[string]any
}

// Interval is a closed stay, ready to be persisted. Start is never after End.
type Interval struct {
	MemberID    snowflake.ID
	MemberName  string
	Bot         bool
	ChannelID   snowflake.ID
	ChannelName string
	Start       time.Time
	End         time.Time
	Metadata    map[string]any
}

func (iv Interval) Duration() time.Duration {
	return iv.End.Sub(iv.Start)
}

func (s OpenSession) closeAt(end time.Time) Interval {
	return Interval{
		MemberID:    s.MemberID,
		MemberName:  s.MemberName,
		Bot:         s.Bot,
		ChannelID:   s.ChannelID,
		ChannelName: s.ChannelName,
		Start:       s.Start,
		End:         end,
		Metadata:    s.Metadata,
	}
}
