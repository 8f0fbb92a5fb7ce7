package notification

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/SherClockHolmes/webpush-go"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/ghaaf-labs/Activity-tracker-discord-bot/internal/model"
	"github.com/ghaaf-labs/Activity-tracker-discord-bot/internal/stats"
)

// NotificationSender defines the interface for sending a web push notification.
type NotificationSender interface {
	Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error)
}

// WebPushSender is a real implementation of NotificationSender using the webpush library.
type WebPushSender struct{}

// Send sends a notification using the webpush library.
func (s *WebPushSender) Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
	return webpush.SendNotification(payload, sub, options)
}

// WorkerPool pushes a summary of each recorded voice session to the
// subscribers of its member.
type WorkerPool struct {
	size    int
	jobs    chan int64
	pending sync.WaitGroup
	db      *gorm.DB
	webpush *webpush.Options
	sender  NotificationSender
	logger  *zap.Logger
}

// NewWorkerPool creates a new worker pool with a job queue of queueSize.
func NewWorkerPool(size, queueSize int, db *gorm.DB, webpushOptions *webpush.Options, logger *zap.Logger) *WorkerPool {
	if size <= 0 {
		size = 1
	}
	if queueSize <= 0 {
		queueSize = size
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WorkerPool{
		size:    size,
		jobs:    make(chan int64, queueSize),
		db:      db,
		webpush: webpushOptions,
		sender:  &WebPushSender{},
		logger:  logger.Named("notification"),
	}
}

// Start launches the worker goroutines. They exit when ctx is done.
func (wp *WorkerPool) Start(ctx context.Context) {
	for i := 0; i < wp.size; i++ {
		go wp.worker(ctx, i)
	}
}

func (wp *WorkerPool) worker(ctx context.Context, id int) {
	wp.logger.Debug("worker started", zap.Int("worker", id))
	for {
		select {
		case sessionID := <-wp.jobs:
			wp.notifySession(ctx, sessionID)
			wp.pending.Done()
		case <-ctx.Done():
			wp.logger.Debug("worker shutting down", zap.Int("worker", id))
			return
		}
	}
}

// Dispatch queues a stored session for notification. It never blocks; when
// the queue is full the job is dropped and false is returned.
func (wp *WorkerPool) Dispatch(sessionID int64) bool {
	wp.pending.Add(1)
	select {
	case wp.jobs <- sessionID:
		return true
	default:
		wp.pending.Done()
		wp.logger.Warn("notification queue full, dropping job", zap.Int64("session_id", sessionID))
		return false
	}
}

// Drain waits until every queued job has been handled or ctx is done. Call it
// after the last Dispatch and before cancelling the context passed to Start.
func (wp *WorkerPool) Drain(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		wp.pending.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (wp *WorkerPool) notifySession(ctx context.Context, sessionID int64) {
	var vs model.VoiceSession
	if err := wp.db.WithContext(ctx).First(&vs, sessionID).Error; err != nil {
		wp.logger.Warn("failed to load session", zap.Int64("session_id", sessionID), zap.Error(err))
		return
	}

	var subscriptions []model.PushSubscription
	err := wp.db.WithContext(ctx).
		Joins("JOIN subscription_member_mapping smm ON smm.push_subscription_endpoint = push_subscriptions.endpoint").
		Where("smm.member_id = ?", vs.MemberID).
		Find(&subscriptions).Error
	if err != nil {
		wp.logger.Warn("failed to fetch subscriptions",
			zap.String("member_id", vs.MemberID.String()), zap.Error(err))
		return
	}
	if len(subscriptions) == 0 {
		return
	}

	wp.logger.Info("sending notifications",
		zap.Int("count", len(subscriptions)),
		zap.String("member_id", vs.MemberID.String()))

	payload := []byte(Message(vs))
	for _, sub := range subscriptions {
		wp.sendNotification(ctx, sub, payload)
	}
}

// Message is the push body for a recorded session.
func Message(vs model.VoiceSession) string {
	name := vs.MemberName
	if name == "" {
		name = vs.MemberID.String()
	}
	return fmt.Sprintf("%s spent %s in %s", name, stats.FormatTotal(vs.Duration()), vs.ChannelName)
}

func (wp *WorkerPool) sendNotification(ctx context.Context, sub model.PushSubscription, payload []byte) {
	wpSub := &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.P256DH,
			Auth:   sub.Auth,
		},
	}

	resp, err := wp.sender.Send(payload, wpSub, wp.webpush)
	if err != nil {
		wp.logger.Warn("failed to send notification", zap.String("endpoint", sub.Endpoint), zap.Error(err))
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusGone {
		wp.logger.Info("subscription expired, deleting", zap.String("endpoint", sub.Endpoint))
		if err := wp.db.WithContext(ctx).Delete(&sub).Error; err != nil {
			wp.logger.Warn("failed to delete expired subscription",
				zap.String("endpoint", sub.Endpoint), zap.Error(err))
		}
	}
}
