package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleSubscription(endpoint string) PushSubscription {
	return PushSubscription{
		Endpoint: endpoint,
		Keys: SubscriptionKeys{
			P256dh: "BNcRdreALRFXTkOOUHK1EtK2wtaz5Ry4YfYCA_0QTpQtUbVlUls0VJXg7A8u-Ts1XbjhazAkj7I99e8QcYP7DkM",
			Auth:   "tBHItJI5svbpez7KI4CCXg",
		},
	}
}

// ==========================
// SubscriptionRegistry Tests
// ==========================

func TestSubscriptionRegistry_AddAndList(t *testing.T) {
	ctx := context.Background()
	r := NewSubscriptionRegistry(newTestClient(t))

	require.NoError(t, r.Add(ctx, sampleSubscription("https://push.example.com/sub/a")))
	require.NoError(t, r.Add(ctx, sampleSubscription("https://push.example.com/sub/b")))

	subs, err := r.List(ctx)
	require.NoError(t, err)
	require.Len(t, subs, 2)

	endpoints := []string{subs[0].Endpoint, subs[1].Endpoint}
	assert.Contains(t, endpoints, "https://push.example.com/sub/a")
	assert.Contains(t, endpoints, "https://push.example.com/sub/b")
}

func TestSubscriptionRegistry_ReAddOverwrites(t *testing.T) {
	ctx := context.Background()
	r := NewSubscriptionRegistry(newTestClient(t))

	endpoint := "https://push.example.com/sub/a"
	require.NoError(t, r.Add(ctx, sampleSubscription(endpoint)))

	// Same endpoint with rotated key material replaces the registration.
	rotated := sampleSubscription(endpoint)
	rotated.Keys.Auth = "rotated-auth-secret"
	require.NoError(t, r.Add(ctx, rotated))

	subs, err := r.List(ctx)
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.Equal(t, "rotated-auth-secret", subs[0].Keys.Auth)
}

func TestSubscriptionRegistry_Remove(t *testing.T) {
	ctx := context.Background()
	r := NewSubscriptionRegistry(newTestClient(t))

	require.NoError(t, r.Add(ctx, sampleSubscription("https://push.example.com/sub/a")))
	require.NoError(t, r.Remove(ctx, "https://push.example.com/sub/a"))

	subs, err := r.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, subs)
}

func TestSubscriptionRegistry_RemoveUnknownIsNoOp(t *testing.T) {
	ctx := context.Background()
	r := NewSubscriptionRegistry(newTestClient(t))

	require.NoError(t, r.Add(ctx, sampleSubscription("https://push.example.com/sub/a")))
	require.NoError(t, r.Remove(ctx, "https://push.example.com/sub/never-registered"))

	subs, err := r.List(ctx)
	require.NoError(t, err)
	assert.Len(t, subs, 1)
}

func TestEndpointKey_Stable(t *testing.T) {
	a := EndpointKey("https://push.example.com/sub/a")
	b := EndpointKey("https://push.example.com/sub/b")

	assert.Equal(t, a, EndpointKey("https://push.example.com/sub/a"))
	assert.NotEqual(t, a, b)
	assert.Len(t, a, 64)
}
