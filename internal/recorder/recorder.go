// Package recorder persists the intervals closed by the occupancy tracker.
package recorder

import (
	"context"

	"go.uber.org/zap"
	"gorm.io/datatypes"

	"github.com/ghaaf-labs/Activity-tracker-discord-bot/internal/model"
	"github.com/ghaaf-labs/Activity-tracker-discord-bot/internal/occupancy"
	"github.com/ghaaf-labs/Activity-tracker-discord-bot/internal/store"
)

// Dispatcher queues follow-up work for a stored session.
type Dispatcher interface {
	Dispatch(sessionID int64) bool
}

// Recorder writes every interval it receives to the store and, when a
// dispatcher is set, queues a notification for it.
type Recorder struct {
	store      store.Store
	dispatcher Dispatcher
	logger     *zap.Logger
}

var _ occupancy.Sink = (*Recorder)(nil)

// New creates a Recorder. dispatcher may be nil.
func New(s store.Store, dispatcher Dispatcher, logger *zap.Logger) *Recorder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Recorder{store: s, dispatcher: dispatcher, logger: logger.Named("recorder")}
}

// Append stores iv. Storage errors are returned to the tracker unchanged.
func (r *Recorder) Append(ctx context.Context, iv occupancy.Interval) error {
	vs := &model.VoiceSession{
		MemberID:    iv.MemberID,
		MemberName:  iv.MemberName,
		MemberBot:   iv.Bot,
		ChannelID:   iv.ChannelID,
		ChannelName: iv.ChannelName,
		StartedAt:   iv.Start,
		EndedAt:     iv.End,
	}
	if len(iv.Metadata) > 0 {
		vs.Metadata = datatypes.JSONMap(iv.Metadata)
	}

	if err := r.store.AppendInterval(ctx, vs); err != nil {
		return err
	}

	if r.dispatcher != nil && !r.dispatcher.Dispatch(vs.ID) {
		r.logger.Debug("notification not queued", zap.Int64("session_id", vs.ID))
	}
	return nil
}
