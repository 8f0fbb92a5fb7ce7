package occupancy

import "github.com/bwmarrin/snowflake"

// Gate decides which members are tracked at all. Events it rejects must never
// reach the Tracker.
type Gate struct {
	trackBots bool
	ignored   map[snowflake.ID]struct{}
}

// NewGate creates a Gate. Bots are rejected unless trackBots is set; members
// listed in ignored are always rejected.
func NewGate(trackBots bool, ignored []snowflake.ID) *Gate {
	g := &Gate{
		trackBots: trackBots,
		ignored:   make(map[snowflake.ID]struct{}, len(ignored)),
	}
	for _, id := range ignored {
		g.ignored[id] = struct{}{}
	}
	return g
}

// Allow reports whether ev belongs to a trackable member.
func (g *Gate) Allow(ev Event) bool {
	if ev.Bot && !g.trackBots {
		return false
	}
	return !g.Ignored(ev.MemberID)
}

// Ignored reports whether the member is on the ignore list.
func (g *Gate) Ignored(memberID snowflake.ID) bool {
	_, ok := g.ignored[memberID]
	return ok
}
