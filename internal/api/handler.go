package api

import (
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"go.uber.org/zap"

	"github.com/ghaaf-labs/Activity-tracker-discord-bot/internal/occupancy"
	"github.com/ghaaf-labs/Activity-tracker-discord-bot/internal/stats"
	"github.com/ghaaf-labs/Activity-tracker-discord-bot/internal/store"
)

// Deps are the services the API handlers work against.
type Deps struct {
	Store       store.Store
	Tracker     *occupancy.Tracker
	Gate        *occupancy.Gate
	Stats       *stats.Service
	Webpush     *webpush.Options
	IngestToken string
	Logger      *zap.Logger
}

// Handler holds shared dependencies for API handlers.
type Handler struct {
	store       store.Store
	tracker     *occupancy.Tracker
	gate        *occupancy.Gate
	stats       *stats.Service
	webpush     *webpush.Options
	ingestToken string
	logger      *zap.Logger
	started     time.Time
	now         func() time.Time
}

// NewHandler creates a new API handler.
func NewHandler(d Deps) *Handler {
	logger := d.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	gate := d.Gate
	if gate == nil {
		gate = occupancy.NewGate(false, nil)
	}
	return &Handler{
		store:       d.Store,
		tracker:     d.Tracker,
		gate:        gate,
		stats:       d.Stats,
		webpush:     d.Webpush,
		ingestToken: d.IngestToken,
		logger:      logger.Named("api"),
		started:     time.Now(),
		now:         time.Now,
	}
}
