package service

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/helpdesk/internal/config"
	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/events"
	"github.com/spec-kit/helpdesk/internal/notify"
)

func TestNotificationService_QueuesEnvelope(t *testing.T) {
	dispatcher := events.NewInMemoryDispatcher(nil)
	queue := notify.NewMemoryQueue(4)
	svc := NewNotificationService(dispatcher, queue, nil, config.NotificationConfig{WebhookURL: "http://hooks.local"})
	svc.RegisterHandlers()

	comment := &domain.Comment{ID: 5, TicketID: 2, UserID: 1, Body: "hi"}
	dispatcher.Publish(context.Background(), events.Event{Type: events.EventCommentCreated, Payload: events.NewCommentPayload(comment)})

	msg, err := queue.Dequeue(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "comment.created", msg.Event)
	assert.JSONEq(t, `{"comment":{"id":5,"ticket_id":2,"user_id":1,"body":"hi","created_at":"0001-01-01T00:00:00Z"},"attachments":[]}`, string(msg.Payload))
}

func TestNotificationService_NoopWithoutURL(t *testing.T) {
	dispatcher := events.NewInMemoryDispatcher(nil)
	queue := notify.NewMemoryQueue(1)
	svc := NewNotificationService(dispatcher, queue, nil, config.NotificationConfig{})
	svc.RegisterHandlers()
	assert.False(t, svc.Enabled())

	dispatcher.Publish(context.Background(), events.Event{Type: events.EventTicketCreated, Payload: map[string]int{"id": 1}})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := queue.Dequeue(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNotificationService_FullQueueIsSwallowed(t *testing.T) {
	queue := notify.NewMemoryQueue(1)
	svc := NewNotificationService(nil, queue, nil, config.NotificationConfig{WebhookURL: "http://hooks.local"})

	ev := events.Event{Type: events.EventTicketUpdated, Payload: map[string]int{"id": 1}}
	require.NoError(t, svc.emit(context.Background(), ev))
	assert.NoError(t, svc.emit(context.Background(), ev))
}

// blockingQueue never accepts a message; Enqueue waits for its ctx to end.
type blockingQueue struct{ deadlineSet bool }

func (q *blockingQueue) Enqueue(ctx context.Context, _ notify.Message) error {
	_, q.deadlineSet = ctx.Deadline()
	<-ctx.Done()
	return ctx.Err()
}

func (q *blockingQueue) Dequeue(ctx context.Context) (notify.Message, error) {
	<-ctx.Done()
	return notify.Message{}, ctx.Err()
}

func TestNotificationService_StalledQueueDoesNotHoldRequest(t *testing.T) {
	queue := &blockingQueue{}
	svc := NewNotificationService(nil, queue, nil, config.NotificationConfig{WebhookURL: "http://hooks.local"})
	svc.enqueueTimeout = 50 * time.Millisecond

	start := time.Now()
	err := svc.emit(context.Background(), events.Event{Type: events.EventTicketCreated, Payload: map[string]int{"id": 1}})
	require.NoError(t, err)
	assert.True(t, queue.deadlineSet)
	assert.Less(t, time.Since(start), time.Second)
}

func TestNotificationService_RedisDownDoesNotHoldRequest(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	mr.Close()

	svc := NewNotificationService(nil, notify.NewRedisQueue(client, "helpdesk:webhooks"), nil,
		config.NotificationConfig{WebhookURL: "http://hooks.local"})

	start := time.Now()
	err := svc.emit(context.Background(), events.Event{Type: events.EventTicketUpdated, Payload: map[string]int{"id": 1}})
	require.NoError(t, err)
	assert.Less(t, time.Since(start), time.Second)
}

func TestNotificationService_EnqueuesAfterRequestCancel(t *testing.T) {
	queue := notify.NewMemoryQueue(1)
	svc := NewNotificationService(nil, queue, nil, config.NotificationConfig{WebhookURL: "http://hooks.local"})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, svc.emit(ctx, events.Event{Type: events.EventTicketCreated, Payload: map[string]int{"id": 1}}))

	msg, err := queue.Dequeue(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "ticket.created", msg.Event)
}
