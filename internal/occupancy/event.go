package occupancy

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// Kind is the type of an occupancy event.
type Kind int

const (
	Enter Kind = iota + 1
	Exit
	Move
)

func (k Kind) String() string {
	switch k {
	case Enter:
		return "enter"
	case Exit:
		return "exit"
	case Move:
		return "move"
	default:
		return "unknown"
	}
}

// Event is a single occupancy notification. For Enter and Move the channel
// is the one being entered; for Exit it is the one being left.
type Event struct {
	MemberID    snowflake.ID
	MemberName  string
	Bot         bool
	ChannelID   snowflake.ID
	ChannelName string
	Kind        Kind
	At          time.Time
	Metadata    map[string]any
}

// Channel identifies a voice channel in a voice state update.
type Channel struct {
	ID   snowflake.ID
	Name string
}

// VoiceState is the platform's raw notification: the member's channel before
// and after the change. Nil means "not in a voice channel".
type VoiceState struct {
	MemberID   snowflake.ID
	MemberName string
	Bot        bool
	Before     *Channel
	After      *Channel
	At         time.Time
	Metadata   map[string]any
}

// Classify turns a voice state update into an occupancy event. Updates that
// keep the member in the same channel (mute, deafen, stream) yield no event.
func Classify(vs VoiceState) (Event, bool) {
	ev := Event{
		MemberID:   vs.MemberID,
		MemberName: vs.MemberName,
		Bot:        vs.Bot,
		At:         vs.At,
		Metadata:   vs.Metadata,
	}

	switch {
	case vs.After != nil && vs.Before == nil:
		ev.Kind = Enter
		ev.ChannelID, ev.ChannelName = vs.After.ID, vs.After.Name
	case vs.After != nil && vs.Before.ID != vs.After.ID:
		ev.Kind = Move
		ev.ChannelID, ev.ChannelName = vs.After.ID, vs.After.Name
	case vs.After == nil && vs.Before != nil:
		ev.Kind = Exit
		ev.ChannelID, ev.ChannelName = vs.Before.ID, vs.Before.Name
	default:
		return Event{}, false
	}
	return ev, true
}

// Coalesce folds an Exit immediately followed by an Enter for the same member
// at the same instant into a single Move.
func Coalesce(exit, enter Event) (Event, bool) {
	if exit.Kind != Exit || enter.Kind != Enter {
		return Event{}, false
	}
	if exit.MemberID != enter.MemberID || !exit.At.Equal(enter.At) {
		return Event{}, false
	}
	move := enter
	move.Kind = Move
	return move, true
}
