package store

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const subscriptionsKey = "subscriptions"

// SubscriptionRegistry stores push subscriptions in a single Redis hash. The
// hash field is derived from the endpoint content, never taken from a
// client-supplied identifier, so re-adding the same endpoint overwrites
// instead of duplicating.
type SubscriptionRegistry struct {
	rdb *redis.Client
}

func NewSubscriptionRegistry(rdb *redis.Client) *SubscriptionRegistry {
	return &SubscriptionRegistry{rdb: rdb}
}

// EndpointKey returns the stable registry key for a push endpoint.
func EndpointKey(endpoint string) string {
	sum := sha256.Sum256([]byte(endpoint))
	return hex.EncodeToString(sum[:])
}

// Add stores the subscription, overwriting any previous registration for the
// same endpoint.
func (r *SubscriptionRegistry) Add(ctx context.Context, sub PushSubscription) error {
	data, err := json.Marshal(sub)
	if err != nil {
		return fmt.Errorf("encode subscription: %w", err)
	}

	if err := r.rdb.HSet(ctx, subscriptionsKey, EndpointKey(sub.Endpoint), data).Err(); err != nil {
		return fmt.Errorf("store subscription: %w", err)
	}
	return nil
}

// Remove deletes the registration for the endpoint. Removing an unknown
// endpoint is a no-op.
func (r *SubscriptionRegistry) Remove(ctx context.Context, endpoint string) error {
	if err := r.rdb.HDel(ctx, subscriptionsKey, EndpointKey(endpoint)).Err(); err != nil {
		return fmt.Errorf("remove subscription: %w", err)
	}
	return nil
}

// List returns every stored subscription. Iteration order is unspecified.
func (r *SubscriptionRegistry) List(ctx context.Context) ([]PushSubscription, error) {
	entries, err := r.rdb.HGetAll(ctx, subscriptionsKey).Result()
	if err != nil {
		return nil, fmt.Errorf("list subscriptions: %w", err)
	}

	subs := make([]PushSubscription, 0, len(entries))
	for field, data := range entries {
		var sub PushSubscription
		if err := json.Unmarshal([]byte(data), &sub); err != nil {
			return nil, fmt.Errorf("decode subscription %s: %w", field, err)
		}
		subs = append(subs, sub)
	}

	return subs, nil
}
