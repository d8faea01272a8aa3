package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk/internal/config"
	"github.com/spec-kit/helpdesk/internal/events"
	"github.com/spec-kit/helpdesk/internal/notify"
)

// enqueueTimeout caps how long a publishing request waits on the queue backend.
const enqueueTimeout = 250 * time.Millisecond

// NotificationService turns domain events into queued webhook deliveries.
type NotificationService struct {
	dispatcher     events.Dispatcher
	queue          notify.Queue
	logger         *zap.Logger
	cfg            config.NotificationConfig
	enqueueTimeout time.Duration
}

// NewNotificationService creates the service.
func NewNotificationService(dispatcher events.Dispatcher, queue notify.Queue, logger *zap.Logger, cfg config.NotificationConfig) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{
		dispatcher:     dispatcher,
		queue:          queue,
		logger:         logger,
		cfg:            cfg,
		enqueueTimeout: enqueueTimeout,
	}
}

// RegisterHandlers subscribes to every event that is forwarded to the webhook.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	n.dispatcher.Subscribe(events.EventTicketCreated, n.emit)
	n.dispatcher.Subscribe(events.EventTicketUpdated, n.emit)
	n.dispatcher.Subscribe(events.EventCommentCreated, n.emit)
}

// Enabled reports whether outbound delivery is configured.
func (n *NotificationService) Enabled() bool {
	return n.cfg.Enabled() && n.queue != nil
}

// emit queues {event, payload}. It never blocks the publishing request.
func (n *NotificationService) emit(ctx context.Context, event events.Event) error {
	if !n.Enabled() {
		return nil
	}
	payload, err := json.Marshal(event.Payload)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", event.Type, err)
	}
	msg := notify.Message{Event: string(event.Type), Payload: payload}

	enqueueCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), n.enqueueTimeout)
	defer cancel()
	if err := n.queue.Enqueue(enqueueCtx, msg); err != nil {
		n.logger.Warn("webhook dropped",
			zap.String("event", msg.Event),
			zap.String("event_id", event.ID),
			zap.Error(err))
		return nil
	}
	n.logger.Debug("webhook queued", zap.String("event", msg.Event), zap.String("event_id", event.ID))
	return nil
}

// ReceiveIncoming records a payload posted to the inbound webhook endpoint.
func (n *NotificationService) ReceiveIncoming(_ context.Context, body []byte) {
	n.logger.Info("incoming webhook", zap.ByteString("body", body))
}
