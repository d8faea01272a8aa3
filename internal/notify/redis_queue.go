package notify

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisPollTimeout = time.Second

// RedisQueue stores pending messages in a Redis list so they survive a restart
// of the process that produced them.
type RedisQueue struct {
	client *redis.Client
	key    string
}

// NewRedisQueue builds a queue on the given list key.
func NewRedisQueue(client *redis.Client, key string) *RedisQueue {
	return &RedisQueue{client: client, key: key}
}

func (q *RedisQueue) Enqueue(ctx context.Context, msg Message) error {
	raw, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return q.client.LPush(ctx, q.key, raw).Err()
}

func (q *RedisQueue) Dequeue(ctx context.Context) (Message, error) {
	for {
		if err := ctx.Err(); err != nil {
			return Message{}, err
		}
		res, err := q.client.BRPop(ctx, redisPollTimeout, q.key).Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return Message{}, ctxErr
			}
			return Message{}, err
		}

		var msg Message
		if err := json.Unmarshal([]byte(res[1]), &msg); err != nil {
			return Message{}, err
		}
		return msg, nil
	}
}
