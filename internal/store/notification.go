package store

import (
	"context"
	"encoding/json"
	"fmt"

	stderrors "pizzahost-workers/internal/common/errors"

	"github.com/redis/go-redis/v9"
)

const (
	notificationKeyPrefix = "notification:"
	notificationIndexKey  = "notifications:index"
)

// NotificationStore persists one notification record per order. Record is the
// orchestrator's must-succeed leg: the write completes before the call
// returns.
type NotificationStore struct {
	rdb *redis.Client
}

func NewNotificationStore(rdb *redis.Client) *NotificationStore {
	return &NotificationStore{rdb: rdb}
}

// Record persists the given notification. The record id must be the order id
// and non-empty. Re-recording an id that already exists is a no-op, so a
// retried order-creation call cannot produce duplicates.
func (s *NotificationStore) Record(ctx context.Context, record NotificationRecord) error {
	if record.ID == "" {
		return stderrors.NewValidationFailedError("notification id must not be empty")
	}

	data, err := json.Marshal(record)
	if err != nil {
		return stderrors.NewNotificationStoreFailedError(err)
	}

	key := notificationKeyPrefix + record.ID

	created, err := s.rdb.SetNX(ctx, key, data, 0).Result()
	if err != nil {
		return stderrors.NewNotificationStoreFailedError(err)
	}
	if !created {
		return nil
	}

	err = s.rdb.ZAdd(ctx, notificationIndexKey, redis.Z{
		Score:  float64(record.Timestamp.UnixNano()),
		Member: record.ID,
	}).Err()
	if err != nil {
		return stderrors.NewNotificationStoreFailedError(err)
	}

	return nil
}

// List returns all notification records, newest first.
func (s *NotificationStore) List(ctx context.Context) ([]NotificationRecord, error) {
	ids, err := s.rdb.ZRevRange(ctx, notificationIndexKey, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("list notification index: %w", err)
	}

	records := make([]NotificationRecord, 0, len(ids))
	for _, id := range ids {
		data, err := s.rdb.Get(ctx, notificationKeyPrefix+id).Result()
		if err == redis.Nil {
			// Index entry without a record; skip rather than fail the listing.
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("read notification %s: %w", id, err)
		}

		var record NotificationRecord
		if err := json.Unmarshal([]byte(data), &record); err != nil {
			return nil, fmt.Errorf("decode notification %s: %w", id, err)
		}
		records = append(records, record)
	}

	return records, nil
}

// MarkRead flips the record's read flag and returns the updated record.
// Marking an already-read record is idempotent.
func (s *NotificationStore) MarkRead(ctx context.Context, id string) (NotificationRecord, error) {
	key := notificationKeyPrefix + id

	data, err := s.rdb.Get(ctx, key).Result()
	if err == redis.Nil {
		return NotificationRecord{}, stderrors.NewNotificationNotFoundError(id)
	}
	if err != nil {
		return NotificationRecord{}, fmt.Errorf("read notification %s: %w", id, err)
	}

	var record NotificationRecord
	if err := json.Unmarshal([]byte(data), &record); err != nil {
		return NotificationRecord{}, fmt.Errorf("decode notification %s: %w", id, err)
	}

	if record.Read {
		return record, nil
	}

	record.Read = true
	updated, err := json.Marshal(record)
	if err != nil {
		return NotificationRecord{}, fmt.Errorf("encode notification %s: %w", id, err)
	}

	if err := s.rdb.Set(ctx, key, updated, 0).Err(); err != nil {
		return NotificationRecord{}, fmt.Errorf("update notification %s: %w", id, err)
	}

	return record, nil
}
