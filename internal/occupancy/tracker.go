// Package occupancy converts voice channel join, leave and move notifications
// into closed per-member intervals.
package occupancy

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/zap"
)

// Sink receives every interval the Tracker closes and keeps. Append is called
// synchronously while the Tracker holds its lock.
type Sink interface {
	Append(ctx context.Context, iv Interval) error
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(ctx context.Context, iv Interval) error

func (f SinkFunc) Append(ctx context.Context, iv Interval) error {
	return f(ctx, iv)
}

// Tracker owns the set of open sessions. It keeps at most one open session per
// member; Handle and FlushAll are serialized by a single lock so a move closes
// and reopens under one critical section.
type Tracker struct {
	mu   sync.Mutex
	open map[snowflake.ID]OpenSession
	// rev counts handled events; touched holds the rev of each member's last one.
	rev         uint64
	touched     map[snowflake.ID]uint64
	sink        Sink
	minDuration time.Duration
	logger      *zap.Logger
}

// NewTracker creates a Tracker. Intervals shorter than minDuration are dropped
// instead of being handed to sink.
func NewTracker(sink Sink, minDuration time.Duration, logger *zap.Logger) *Tracker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Tracker{
		open:        make(map[snowflake.ID]OpenSession),
		touched:     make(map[snowflake.ID]uint64),
		sink:        sink,
		minDuration: minDuration,
		logger:      logger.Named("tracker"),
	}
}

// Handle applies one event. Out-of-order and duplicate events are absorbed
// without error.
func (t *Tracker) Handle(ctx context.Context, ev Event) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.rev++
	t.touched[ev.MemberID] = t.rev

	switch ev.Kind {
	case Enter:
		t.enter(ctx, ev)
	case Exit:
		t.exit(ctx, ev)
	case Move:
		t.exit(ctx, ev)
		t.enter(ctx, ev)
	default:
		t.logger.Warn("ignoring event of unknown kind",
			zap.String("member_id", ev.MemberID.String()),
			zap.Int("kind", int(ev.Kind)))
	}
}

// FlushAll closes every open session at now and returns how many were closed.
// It is the graceful shutdown hook: callers must let it return before the
// process exits.
func (t *Tracker) FlushAll(ctx context.Context, now time.Time) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	closed := 0
	for _, s := range t.open {
		t.close(ctx, s, now)
		closed++
	}
	t.logger.Info("flushed open sessions", zap.Int("count", closed))
	return closed
}

// Mark returns the tracker's current revision. Take it before reading an
// external snapshot of who is in voice and hand it back to Sync.
func (t *Tracker) Mark() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.rev
}

// SyncResult counts what Sync changed.
type SyncResult struct {
	Entered int
	Exited  int
	Skipped int
}

// Sync makes the open sessions agree with present, a list of the members in
// voice as seen after mark was taken. Members are entered into their listed
// channel at at. Open sessions missing from present are closed at at, but only
// when exitMissing is set. Members with an event handled after mark are left
// alone: that event is newer than the snapshot.
func (t *Tracker) Sync(ctx context.Context, mark uint64, present []Event, at time.Time, exitMissing bool) SyncResult {
	t.mu.Lock()
	defer t.mu.Unlock()

	var res SyncResult
	listed := make(map[snowflake.ID]struct{}, len(present))
	for _, ev := range present {
		listed[ev.MemberID] = struct{}{}
		if t.touched[ev.MemberID] > mark {
			res.Skipped++
			continue
		}
		if cur, ok := t.open[ev.MemberID]; ok && cur.ChannelID == ev.ChannelID {
			continue
		}
		ev.Kind = Enter
		ev.At = at
		t.enter(ctx, ev)
		res.Entered++
	}

	if exitMissing {
		for id, s := range t.open {
			if _, ok := listed[id]; ok {
				continue
			}
			if t.touched[id] > mark {
				res.Skipped++
				continue
			}
			t.close(ctx, s, at)
			res.Exited++
		}
	}
	return res
}

// Open returns a snapshot of the open sessions ordered by member ID.
func (t *Tracker) Open() []OpenSession {
	t.mu.Lock()
	defer t.mu.Unlock()

	sessions := make([]OpenSession, 0, len(t.open))
	for _, s := range t.open {
		sessions = append(sessions, s)
	}
	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].MemberID < sessions[j].MemberID
	})
	return sessions
}

// Session returns the member's open session, if any.
func (t *Tracker) Session(memberID snowflake.ID) (OpenSession, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	s, ok := t.open[memberID]
	return s, ok
}

func (t *Tracker) enter(ctx context.Context, ev Event) {
	if current, ok := t.open[ev.MemberID]; ok {
		if current.ChannelID == ev.ChannelID {
			return
		}
		t.close(ctx, current, ev.At)
	}

	t.open[ev.MemberID] = OpenSession{
		MemberID:    ev.MemberID,
		MemberName:  ev.MemberName,
		Bot:         ev.Bot,
		ChannelID:   ev.ChannelID,
		ChannelName: ev.ChannelName,
		Start:       ev.At,
		Metadata:    ev.Metadata,
	}
	t.logger.Debug("session opened",
		zap.String("member_id", ev.MemberID.String()),
		zap.String("channel", ev.ChannelName))
}

func (t *Tracker) exit(ctx context.Context, ev Event) {
	current, ok := t.open[ev.MemberID]
	if !ok {
		return
	}
	t.close(ctx, current, ev.At)
}

// close ends s at end. The session leaves the map whatever happens next.
func (t *Tracker) close(ctx context.Context, s OpenSession, end time.Time) {
	delete(t.open, s.MemberID)

	iv := s.closeAt(end)
	d := iv.Duration()
	fields := []zap.Field{
		zap.String("member_id", s.MemberID.String()),
		zap.String("member", s.MemberName),
		zap.String("channel", s.ChannelName),
		zap.Duration("duration", d),
	}

	switch {
	case d < 0:
		t.logger.Warn("dropping session that ends before it starts",
			append(fields, zap.Time("start", iv.Start), zap.Time("end", iv.End))...)
		return
	case d < t.minDuration:
		t.logger.Debug("dropping short session", fields...)
		return
	}

	if err := t.sink.Append(ctx, iv); err != nil {
		t.logger.Warn("failed to persist session, interval lost", append(fields, zap.Error(err))...)
		return
	}
	t.logger.Info("session recorded", fields...)
}
