package worker

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk/internal/notify"
	"github.com/spec-kit/helpdesk/internal/service"
)

// Sender delivers a single message.
type Sender interface {
	Send(ctx context.Context, msg notify.Message) error
}

// NotificationWorker drains the queue and POSTs each message once.
type NotificationWorker struct {
	queue  notify.Queue
	sender Sender
	logger *zap.Logger

	retryDelay time.Duration
}

// NewNotificationWorker builds a worker.
func NewNotificationWorker(queue notify.Queue, sender Sender, logger *zap.Logger) *NotificationWorker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationWorker{queue: queue, sender: sender, logger: logger, retryDelay: time.Second}
}

// Run blocks until ctx is cancelled. Delivery failures are logged and dropped.
func (w *NotificationWorker) Run(ctx context.Context) {
	for {
		msg, err := w.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			w.logger.Error("dequeue webhook", zap.Error(err))
			select {
			case <-ctx.Done():
				return
			case <-time.After(w.retryDelay):
			}
			continue
		}
		if err := w.sender.Send(ctx, msg); err != nil {
			if errors.Is(err, context.Canceled) && ctx.Err() != nil {
				return
			}
			w.logger.Warn("webhook delivery failed", zap.String("event", msg.Event), zap.Error(err))
			continue
		}
		w.logger.Debug("webhook delivered", zap.String("event", msg.Event))
	}
}

// StartNotificationWorker registers notification handlers and, when delivery
// is enabled, starts the worker. The returned channel closes when it stops.
func StartNotificationWorker(ctx context.Context, notificationService *service.NotificationService, worker *NotificationWorker) <-chan struct{} {
	done := make(chan struct{})
	if notificationService == nil {
		close(done)
		return done
	}
	notificationService.RegisterHandlers()
	if worker == nil || !notificationService.Enabled() {
		close(done)
		return done
	}
	go func() {
		defer close(done)
		worker.Run(ctx)
	}()
	return done
}
