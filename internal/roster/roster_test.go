package roster

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ghaaf-labs/Activity-tracker-discord-bot/config"
	"github.com/ghaaf-labs/Activity-tracker-discord-bot/internal/occupancy"
)

var (
	alice   = snowflake.ID(1001)
	bob     = snowflake.ID(1002)
	robot   = snowflake.ID(1003)
	carol   = snowflake.ID(1004)
	general = snowflake.ID(9001)
	gaming  = snowflake.ID(9002)
	base    = time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
)

// collector keeps every interval the tracker closes.
type collector struct {
	mu        sync.Mutex
	intervals []occupancy.Interval
}

func (c *collector) Append(_ context.Context, iv occupancy.Interval) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.intervals = append(c.intervals, iv)
	return nil
}

// newUpstream serves occupants in pages of pageSize. Requests for a page in
// failPages get a 500.
func newUpstream(t *testing.T, occupants []Occupant, failPages ...int) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "token", r.Header.Get("Authorization"))
		assert.Equal(t, "guild-1", req["guild"])

		page := int(req["page"].(float64))
		pageSize := int(req["pageSize"].(float64))
		for _, p := range failPages {
			if p == page {
				w.WriteHeader(http.StatusInternalServerError)
				return
			}
		}

		start := (page - 1) * pageSize
		end := start + pageSize
		if start > len(occupants) {
			start = len(occupants)
		}
		if end > len(occupants) {
			end = len(occupants)
		}

		var resp ApiResponse
		resp.Data.Page = page
		resp.Data.PageSize = pageSize
		resp.Data.Total = len(occupants)
		resp.Data.Items = occupants[start:end]
		assert.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
}

func newTestService(url string, tracker Tracker) *Service {
	cfg := &config.RosterConfig{
		Request: config.RosterRequest{
			URL:      url,
			Headers:  map[string]string{"Authorization": "token"},
			PageSize: 2,
			Payload:  map[string]any{"guild": "guild-1"},
		},
	}
	return NewService(cfg, tracker, occupancy.NewGate(false, nil), zap.NewNop())
}

func clockAt(at time.Time) func() time.Time {
	return func() time.Time { return at }
}

func TestService_Snapshot_Pages(t *testing.T) {
	occupants := []Occupant{
		{MemberID: alice, MemberName: "alice", ChannelID: general, ChannelName: "General"},
		{MemberID: bob, MemberName: "bob", ChannelID: gaming, ChannelName: "Gaming"},
		{MemberID: robot, MemberName: "robot", Bot: true, ChannelID: general, ChannelName: "General"},
	}
	server := newUpstream(t, occupants)
	defer server.Close()

	s := newTestService(server.URL, nil)
	got, complete, err := s.Snapshot(context.Background())
	require.NoError(t, err)
	assert.True(t, complete)
	assert.Equal(t, occupants, got)
}

func TestService_Reconcile_Seed(t *testing.T) {
	server := newUpstream(t, []Occupant{
		{MemberID: alice, MemberName: "alice", ChannelID: general, ChannelName: "General"},
		{MemberID: robot, MemberName: "robot", Bot: true, ChannelID: general, ChannelName: "General"},
	})
	defer server.Close()

	sink := &collector{}
	tracker := occupancy.NewTracker(sink, 0, nil)
	s := newTestService(server.URL, tracker)
	s.SetClock(clockAt(base))

	res, err := s.Reconcile(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Result{Seen: 1, Entered: 1}, res)

	open := tracker.Open()
	require.Len(t, open, 1, "bots are filtered by the gate")
	assert.Equal(t, alice, open[0].MemberID)
	assert.Equal(t, base, open[0].Start)
	assert.Equal(t, "roster", open[0].Metadata["source"])

	// A second pass with the same roster changes nothing.
	s.SetClock(clockAt(base.Add(time.Minute)))
	res, err = s.Reconcile(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Result{Seen: 1}, res)
	assert.Equal(t, base, tracker.Open()[0].Start)
	assert.Empty(t, sink.intervals)
}

func TestService_Reconcile_Drift(t *testing.T) {
	server := newUpstream(t, []Occupant{
		{MemberID: alice, MemberName: "alice", ChannelID: gaming, ChannelName: "Gaming"},
	})
	defer server.Close()

	sink := &collector{}
	tracker := occupancy.NewTracker(sink, 0, nil)
	ctx := context.Background()
	tracker.Handle(ctx, occupancy.Event{MemberID: alice, ChannelID: general, Kind: occupancy.Enter, At: base})
	tracker.Handle(ctx, occupancy.Event{MemberID: bob, ChannelID: general, Kind: occupancy.Enter, At: base})

	s := newTestService(server.URL, tracker)
	s.SetClock(clockAt(base.Add(time.Hour)))
	res, err := s.Reconcile(ctx)
	require.NoError(t, err)
	assert.Equal(t, Result{Seen: 1, Entered: 1, Exited: 1}, res)

	open := tracker.Open()
	require.Len(t, open, 1)
	assert.Equal(t, alice, open[0].MemberID)
	assert.Equal(t, gaming, open[0].ChannelID)

	require.Len(t, sink.intervals, 2)
	for _, iv := range sink.intervals {
		assert.Equal(t, general, iv.ChannelID)
		assert.Equal(t, time.Hour, iv.Duration())
	}
}

func TestService_Reconcile_PartialSnapshotSkipsExits(t *testing.T) {
	server := newUpstream(t, []Occupant{
		{MemberID: alice, ChannelID: general},
		{MemberID: 1010, ChannelID: general},
		{MemberID: 1011, ChannelID: general},
	}, 2)
	defer server.Close()

	tracker := occupancy.NewTracker(&collector{}, 0, nil)
	tracker.Handle(context.Background(), occupancy.Event{MemberID: bob, ChannelID: general, Kind: occupancy.Enter, At: base})

	s := newTestService(server.URL, tracker)
	s.SetClock(clockAt(base.Add(time.Minute)))
	res, err := s.Reconcile(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Result{Seen: 2, Entered: 2}, res)

	_, stillOpen := tracker.Session(bob)
	assert.True(t, stillOpen, "bob may be on the page that failed")
}

func TestService_Reconcile_UpstreamDown(t *testing.T) {
	server := newUpstream(t, nil, 1)
	defer server.Close()

	tracker := occupancy.NewTracker(&collector{}, 0, nil)
	tracker.Handle(context.Background(), occupancy.Event{MemberID: bob, ChannelID: general, Kind: occupancy.Enter, At: base})

	s := newTestService(server.URL, tracker)
	_, err := s.Reconcile(context.Background())
	assert.ErrorContains(t, err, "non-200")
	assert.Len(t, tracker.Open(), 1)
}

func TestService_Reconcile_LeavesMembersChangedDuringFetch(t *testing.T) {
	sink := &collector{}
	tracker := occupancy.NewTracker(sink, 0, nil)
	ctx := context.Background()
	tracker.Handle(ctx, occupancy.Event{MemberID: carol, ChannelID: general, Kind: occupancy.Enter, At: base})

	changed := base.Add(30 * time.Second)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// The snapshot was read upstream before alice joined and carol left.
		tracker.Handle(ctx, occupancy.Event{MemberID: alice, ChannelID: general, Kind: occupancy.Enter, At: changed})
		tracker.Handle(ctx, occupancy.Event{MemberID: carol, ChannelID: general, Kind: occupancy.Exit, At: changed})

		var resp ApiResponse
		resp.Data.Page = 1
		resp.Data.PageSize = 2
		resp.Data.Total = 2
		resp.Data.Items = []Occupant{
			{MemberID: bob, MemberName: "bob", ChannelID: general, ChannelName: "General"},
			{MemberID: carol, MemberName: "carol", ChannelID: general, ChannelName: "General"},
		}
		assert.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
	defer server.Close()

	s := newTestService(server.URL, tracker)
	s.SetClock(clockAt(base.Add(time.Minute)))
	res, err := s.Reconcile(ctx)
	require.NoError(t, err)
	assert.Equal(t, Result{Seen: 2, Entered: 1, Skipped: 2}, res)

	session, ok := tracker.Session(alice)
	require.True(t, ok, "alice joined after the snapshot and must stay open")
	assert.Equal(t, changed, session.Start)

	_, ok = tracker.Session(carol)
	assert.False(t, ok, "carol left after the snapshot and must not be re-entered")

	session, ok = tracker.Session(bob)
	require.True(t, ok)
	assert.Equal(t, base.Add(time.Minute), session.Start)

	require.Len(t, sink.intervals, 1)
	assert.Equal(t, carol, sink.intervals[0].MemberID)
	assert.Equal(t, 30*time.Second, sink.intervals[0].Duration())
}

func TestService_Start_StopsTouchingTrackerAfterDone(t *testing.T) {
	fetching := make(chan struct{}, 1)
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case fetching <- struct{}{}:
		default:
		}
		<-release

		var resp ApiResponse
		resp.Data.Page = 1
		resp.Data.PageSize = 2
		resp.Data.Total = 1
		resp.Data.Items = []Occupant{{MemberID: alice, ChannelID: general}}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()
	defer close(release)

	sink := &collector{}
	tracker := occupancy.NewTracker(sink, 0, nil)
	s := newTestService(server.URL, tracker)
	s.cfg.ResyncInterval = 10 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := s.Start(ctx)

	select {
	case <-fetching:
	case <-time.After(time.Second):
		t.Fatal("resync never reached the upstream")
	}
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Start did not signal done after cancel")
	}

	// Nothing the stopped resync fetched may land after the flush.
	assert.Equal(t, 0, tracker.FlushAll(context.Background(), base))
	assert.Never(t, func() bool {
		_, ok := tracker.Session(alice)
		return ok
	}, 50*time.Millisecond, 5*time.Millisecond)
	assert.Empty(t, sink.intervals)
}

func TestService_Run_Disabled(t *testing.T) {
	s := NewService(&config.RosterConfig{}, nil, nil, nil)

	done := make(chan struct{})
	go func() {
		s.Run(context.Background())
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run should return immediately without a resync interval")
	}
}

func TestService_Run_Resyncs(t *testing.T) {
	server := newUpstream(t, []Occupant{{MemberID: alice, ChannelID: general}})
	defer server.Close()

	tracker := occupancy.NewTracker(&collector{}, 0, nil)
	s := newTestService(server.URL, tracker)
	s.cfg.ResyncInterval = 10 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx)

	assert.Eventually(t, func() bool {
		_, ok := tracker.Session(alice)
		return ok
	}, time.Second, 5*time.Millisecond)
}
