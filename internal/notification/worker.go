package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/SherClockHolmes/webpush-go"
	charmlog "github.com/charmbracelet/log"

	"custody-schedule-backend/internal/metrics"
	"custody-schedule-backend/internal/model"
	"custody-schedule-backend/internal/store"
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

// Alert is the push payload for a newly detected conflict.
type Alert struct {
	ConflictID  int64              `json:"conflict_id"`
	ActivityAID int64              `json:"activity_a_id"`
	ActivityBID int64              `json:"activity_b_id"`
	Type        model.ConflictType `json:"type"`
	Severity    model.Severity     `json:"severity"`
	Title       string             `json:"title"`
}

// NewAlert builds the alert for a conflict record.
func NewAlert(c model.Conflict) Alert {
	return Alert{
		ConflictID:  c.ID,
		ActivityAID: c.ActivityAID,
		ActivityBID: c.ActivityBID,
		Type:        c.Type,
		Severity:    c.Severity,
		Title:       fmt.Sprintf("%s conflict: activities %d and %d", c.Severity, c.ActivityAID, c.ActivityBID),
	}
}

// Invalidator drops cached reads after the pool removed a subscription.
type Invalidator interface {
	Flush()
}

// WorkerPool manages a pool of workers for sending conflict alerts.
type WorkerPool struct {
	size    int
	jobs    chan Alert
	subs    store.SubscriptionStore
	webpush *webpush.Options
	sender  NotificationSender
	log     *charmlog.Logger
	metrics *metrics.Recorder
	cache   Invalidator
}

// NewWorkerPool creates a new worker pool. queueSize bounds the number of
// alerts waiting for a worker.
func NewWorkerPool(size, queueSize int, subs store.SubscriptionStore, webpushOptions *webpush.Options, logger *charmlog.Logger, rec *metrics.Recorder) *WorkerPool {
	if size < 1 {
		size = 1
	}
	if queueSize < size {
		queueSize = size
	}
	return &WorkerPool{
		size:    size,
		jobs:    make(chan Alert, queueSize),
		subs:    subs,
		webpush: webpushOptions,
		sender:  &WebPushSender{}, // Use the real sender by default
		log:     logger.WithPrefix("alerts"),
		metrics: rec,
	}
}

// SetInvalidator registers a cache to flush when an expired subscription is deleted.
func (wp *WorkerPool) SetInvalidator(inv Invalidator) {
	wp.cache = inv
}

// Start launches the worker goroutines.
func (wp *WorkerPool) Start(ctx context.Context) {
	for i := 0; i < wp.size; i++ {
		go wp.worker(ctx, i)
	}
}

// worker is the actual worker goroutine.
func (wp *WorkerPool) worker(ctx context.Context, id int) {
	wp.log.Debug("worker started", "worker", id)
	for {
		select {
		case alert := <-wp.jobs:
			wp.sendAlert(ctx, alert)
		case <-ctx.Done():
			wp.log.Debug("worker shutting down", "worker", id)
			return
		}
	}
}

// Dispatch queues alerts for newly created conflicts. It never blocks: when
// the queue is full the alert is dropped and logged.
func (wp *WorkerPool) Dispatch(conflicts ...model.Conflict) {
	for _, c := range conflicts {
		select {
		case wp.jobs <- NewAlert(c):
		default:
			wp.log.Warn("alert queue full, dropping", "conflict", c.ID, "severity", c.Severity)
			wp.metrics.AlertSent(false)
		}
	}
}

// sendAlert delivers one alert to every subscription that wants its severity.
func (wp *WorkerPool) sendAlert(ctx context.Context, alert Alert) {
	subscriptions, err := wp.subs.ListSubscriptions(ctx)
	if err != nil {
		wp.log.Error("failed to fetch subscriptions", "conflict", alert.ConflictID, "err", err)
		return
	}

	payload, err := json.Marshal(alert)
	if err != nil {
		wp.log.Error("failed to encode alert", "conflict", alert.ConflictID, "err", err)
		return
	}

	sent := 0
	for _, sub := range subscriptions {
		if !sub.Wants(alert.Severity) {
			continue
		}
		wp.sendNotification(ctx, sub, payload)
		sent++
	}
	if sent > 0 {
		wp.log.Info("conflict alert sent", "conflict", alert.ConflictID, "severity", alert.Severity, "subscribers", sent)
	}
}

// sendNotification sends a single web push notification.
func (wp *WorkerPool) sendNotification(ctx context.Context, sub model.PushSubscription, payload []byte) {
	// Manually construct the webpush.Subscription object
	wpSub := &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.P256DH,
			Auth:   sub.Auth,
		},
	}

	resp, err := wp.sender.Send(payload, wpSub, wp.webpush)
	if err != nil {
		wp.log.Error("failed to send alert", "endpoint", sub.Endpoint, "err", err)
		wp.metrics.AlertSent(false)
		return
	}
	defer resp.Body.Close()
	wp.metrics.AlertSent(resp.StatusCode < 300)

	// Handle expired subscriptions
	if resp.StatusCode == http.StatusGone {
		wp.log.Info("subscription expired, deleting", "endpoint", sub.Endpoint)
		if err := wp.subs.DeleteSubscription(ctx, sub.Endpoint); err != nil {
			wp.log.Error("failed to delete expired subscription", "endpoint", sub.Endpoint, "err", err)
			return
		}
		if wp.cache != nil {
			wp.cache.Flush()
		}
	}
}
