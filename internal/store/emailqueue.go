package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	queueItemKeyPrefix = "emailqueue:item:"
	queuePendingKey    = "emailqueue:pending"
	queueSentKey       = "emailqueue:sent"
	queueFailedKey     = "emailqueue:failed"
)

// EmailQueue is the durable store of outbound emails awaiting a retry.
// Enqueue is append-only; Archive is the only operation that moves an item
// out of the pending set. Archived items are kept in their outcome partition
// as an audit trail, never deleted.
type EmailQueue struct {
	rdb *redis.Client
}

func NewEmailQueue(rdb *redis.Client) *EmailQueue {
	return &EmailQueue{rdb: rdb}
}

// Enqueue persists the message as pending and returns its queue id. Every
// call creates a new record; existing pending items are never overwritten.
func (q *EmailQueue) Enqueue(ctx context.Context, msg QueuedEmail) (string, error) {
	msg.ID = uuid.New().String()
	if msg.EnqueuedAt.IsZero() {
		msg.EnqueuedAt = time.Now().UTC()
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return "", fmt.Errorf("encode queued email: %w", err)
	}

	pipe := q.rdb.TxPipeline()
	pipe.Set(ctx, queueItemKeyPrefix+msg.ID, data, 0)
	pipe.RPush(ctx, queuePendingKey, msg.ID)
	if _, err := pipe.Exec(ctx); err != nil {
		return "", fmt.Errorf("enqueue email: %w", err)
	}

	return msg.ID, nil
}

// ListPending returns all pending emails in enqueue order.
func (q *EmailQueue) ListPending(ctx context.Context) ([]QueuedEmail, error) {
	ids, err := q.rdb.LRange(ctx, queuePendingKey, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("list pending emails: %w", err)
	}

	items := make([]QueuedEmail, 0, len(ids))
	for _, id := range ids {
		data, err := q.rdb.Get(ctx, queueItemKeyPrefix+id).Result()
		if err == redis.Nil {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("read queued email %s: %w", id, err)
		}

		var msg QueuedEmail
		if err := json.Unmarshal([]byte(data), &msg); err != nil {
			return nil, fmt.Errorf("decode queued email %s: %w", id, err)
		}
		items = append(items, msg)
	}

	return items, nil
}

// Archive moves the item out of the pending partition into the given outcome
// partition. Archiving an id that is not pending is an error.
func (q *EmailQueue) Archive(ctx context.Context, id, outcome string) error {
	var destKey string
	switch outcome {
	case OutcomeSent:
		destKey = queueSentKey
	case OutcomeFailed:
		destKey = queueFailedKey
	default:
		return fmt.Errorf("invalid archive outcome: %s", outcome)
	}

	removed, err := q.rdb.LRem(ctx, queuePendingKey, 1, id).Result()
	if err != nil {
		return fmt.Errorf("archive queued email %s: %w", id, err)
	}
	if removed == 0 {
		return fmt.Errorf("queued email %s is not pending", id)
	}

	if err := q.rdb.RPush(ctx, destKey, id).Err(); err != nil {
		return fmt.Errorf("archive queued email %s as %s: %w", id, outcome, err)
	}
	return nil
}

// CountPending returns the number of items awaiting a retry.
func (q *EmailQueue) CountPending(ctx context.Context) (int64, error) {
	n, err := q.rdb.LLen(ctx, queuePendingKey).Result()
	if err != nil {
		return 0, fmt.Errorf("count pending emails: %w", err)
	}
	return n, nil
}
