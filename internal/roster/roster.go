// Package roster reconciles the tracker with an upstream snapshot of who is
// connected to voice right now.
package roster

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/ghaaf-labs/Activity-tracker-discord-bot/config"
	"github.com/ghaaf-labs/Activity-tracker-discord-bot/internal/occupancy"
)

// Tracker is the part of occupancy.Tracker the roster drives.
type Tracker interface {
	Mark() uint64
	Sync(ctx context.Context, mark uint64, present []occupancy.Event, at time.Time, exitMissing bool) occupancy.SyncResult
}

// Result counts the events a reconciliation produced. Skipped members changed
// while the snapshot was being fetched and were left as they were.
type Result struct {
	Seen    int
	Entered int
	Exited  int
	Skipped int
}

// Service fetches roster snapshots and feeds the differences to the tracker.
type Service struct {
	cfg     *config.RosterConfig
	tracker Tracker
	gate    *occupancy.Gate
	client  *http.Client
	logger  *zap.Logger
	now     func() time.Time
}

// NewService creates a roster service. A nil gate admits everyone.
func NewService(cfg *config.RosterConfig, tracker Tracker, gate *occupancy.Gate, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("roster")

	var transport http.RoundTripper = &http.Transport{}
	if cfg.HTTPProxy != "" {
		proxyURL, err := url.Parse(cfg.HTTPProxy)
		if err != nil {
			logger.Warn("invalid proxy URL, roster will not use a proxy",
				zap.String("proxy", cfg.HTTPProxy), zap.Error(err))
		} else {
			transport = &http.Transport{Proxy: http.ProxyURL(proxyURL)}
		}
	}

	return &Service{
		cfg:     cfg,
		tracker: tracker,
		gate:    gate,
		client: &http.Client{
			Transport: transport,
			Timeout:   30 * time.Second,
		},
		logger: logger,
		now:    time.Now,
	}
}

// SetClock replaces the clock that stamps reconciled events.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

// Start runs Run on a new goroutine. The returned channel is closed once Run
// has returned; from then on the service no longer touches the tracker.
func (s *Service) Start(ctx context.Context) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		s.Run(ctx)
	}()
	return done
}

// Run resyncs on the configured interval until ctx is done. It does nothing
// when the interval is zero.
func (s *Service) Run(ctx context.Context) {
	if s.cfg.ResyncInterval <= 0 {
		s.logger.Info("periodic resync disabled")
		return
	}

	timer := time.NewTimer(s.cfg.ResyncInterval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("roster service shutting down")
			return
		case <-timer.C:
			if _, err := s.Reconcile(ctx); err != nil {
				s.logger.Warn("roster resync failed", zap.Error(err))
			}
			timer.Reset(s.cfg.ResyncInterval)
		}
	}
}

// Reconcile fetches a snapshot and makes the tracker agree with it. Members
// in voice but not tracked in that channel get an Enter; tracked members
// missing from the snapshot get an Exit. Both happen at the time the snapshot
// arrived. Exits are only issued when every page was fetched, and members with
// events handled during the fetch are left alone.
func (s *Service) Reconcile(ctx context.Context) (Result, error) {
	mark := s.tracker.Mark()
	occupants, complete, err := s.Snapshot(ctx)
	if err != nil && len(occupants) == 0 {
		return Result{}, fmt.Errorf("roster snapshot failed: %w", err)
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return Result{}, fmt.Errorf("roster reconcile canceled: %w", ctxErr)
	}
	at := s.now()

	present := make([]occupancy.Event, 0, len(occupants))
	for _, o := range occupants {
		ev := occupancy.Event{
			MemberID:    o.MemberID,
			MemberName:  o.MemberName,
			Bot:         o.Bot,
			ChannelID:   o.ChannelID,
			ChannelName: o.ChannelName,
			Kind:        occupancy.Enter,
			At:          at,
			Metadata:    map[string]any{"source": "roster"},
		}
		if s.gate != nil && !s.gate.Allow(ev) {
			continue
		}
		present = append(present, ev)
	}
	if !complete {
		s.logger.Warn("partial roster snapshot, skipping exits", zap.Error(err))
	}

	synced := s.tracker.Sync(ctx, mark, present, at, complete)
	res := Result{
		Seen:    len(present),
		Entered: synced.Entered,
		Exited:  synced.Exited,
		Skipped: synced.Skipped,
	}

	s.logger.Info("roster reconciled",
		zap.Int("seen", res.Seen),
		zap.Int("entered", res.Entered),
		zap.Int("exited", res.Exited),
		zap.Int("skipped", res.Skipped))
	return res, nil
}

// Snapshot pages through the upstream API. complete is false when a page
// failed after some items were already read; err carries that failure.
func (s *Service) Snapshot(ctx context.Context) (occupants []Occupant, complete bool, err error) {
	total := 1
	pageSize := s.cfg.Request.PageSize
	if pageSize <= 0 {
		pageSize = 100
	}

	for page := 1; (page-1)*pageSize < total; page++ {
		resp, err := s.fetchPage(ctx, page, pageSize)
		if err != nil {
			s.logger.Warn("failed to fetch roster page", zap.Int("page", page), zap.Error(err))
			return occupants, false, err
		}
		if resp.Data.Total == 0 || len(resp.Data.Items) == 0 {
			break
		}
		total = resp.Data.Total
		occupants = append(occupants, resp.Data.Items...)
		s.logger.Debug("fetched roster page",
			zap.Int("page", page),
			zap.Int("total", total),
			zap.Int("items", len(occupants)))
	}
	return occupants, true, nil
}

func (s *Service) fetchPage(ctx context.Context, page, pageSize int) (*ApiResponse, error) {
	payload := make(map[string]any)
	for k, v := range s.cfg.Request.Payload {
		payload[k] = v
	}
	payload["page"] = page
	payload["pageSize"] = pageSize

	jsonBody, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.Request.URL, bytes.NewBuffer(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	for key, value := range s.cfg.Request.Headers {
		req.Header.Set(key, value)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("received non-200 status code: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	var apiResp ApiResponse
	if err := json.Unmarshal(body, &apiResp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal api response: %w", err)
	}

	if apiResp.Code != 0 {
		return nil, fmt.Errorf("API returned non-zero application code: %d", apiResp.Code)
	}

	return &apiResp, nil
}
