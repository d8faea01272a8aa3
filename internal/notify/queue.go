package notify

import (
	"context"
	"encoding/json"
	"errors"
)

// ErrQueueFull is returned when the in-memory queue cannot take another message.
var ErrQueueFull = errors.New("notification queue full")

// Message is the JSON body POSTed to the webhook endpoint.
type Message struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
}

// Queue decouples webhook delivery from the request that produced it.
type Queue interface {
	Enqueue(ctx context.Context, msg Message) error
	// Dequeue blocks until a message is available or ctx is done.
	Dequeue(ctx context.Context) (Message, error)
}

// MemoryQueue is a bounded in-process queue. Messages are lost on restart.
type MemoryQueue struct {
	ch chan Message
}

// NewMemoryQueue creates a queue holding at most size messages.
func NewMemoryQueue(size int) *MemoryQueue {
	if size <= 0 {
		size = 1
	}
	return &MemoryQueue{ch: make(chan Message, size)}
}

// Enqueue never blocks; a full queue rejects the message.
func (q *MemoryQueue) Enqueue(_ context.Context, msg Message) error {
	select {
	case q.ch <- msg:
		return nil
	default:
		return ErrQueueFull
	}
}

// Dequeue returns a pending message before it honours a cancelled ctx.
func (q *MemoryQueue) Dequeue(ctx context.Context) (Message, error) {
	select {
	case msg := <-q.ch:
		return msg, nil
	default:
	}
	select {
	case msg := <-q.ch:
		return msg, nil
	case <-ctx.Done():
		return Message{}, ctx.Err()
	}
}
