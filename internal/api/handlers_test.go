package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pizzahost-workers/internal/common/logger"
	"pizzahost-workers/internal/dispatch"
	"pizzahost-workers/internal/store"
)

// ==========================
// Test Doubles
// ==========================

type stubRelay struct {
	mu   sync.Mutex
	sent int
}

func (r *stubRelay) SendOnce(to, subject, html string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent++
	return "<msg@test>", nil
}

type stubPushSender struct{}

func (stubPushSender) Send(ctx context.Context, sub store.PushSubscription, payload []byte) (int, error) {
	return 201, nil
}

type okPinger struct{}

func (okPinger) Ping(ctx context.Context) error { return nil }

type failingPinger struct{}

func (failingPinger) Ping(ctx context.Context) error { return fmt.Errorf("connection refused") }

// ==========================
// Test Fixture
// ==========================

type apiFixture struct {
	server        *httptest.Server
	notifications *store.NotificationStore
	registry      *store.SubscriptionRegistry
	orchestrator  *dispatch.Orchestrator
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	log := logger.NewTestLogger(t)

	notifications := store.NewNotificationStore(rdb)
	registry := store.NewSubscriptionRegistry(rdb)
	queue := store.NewEmailQueue(rdb)

	email := dispatch.NewEmailDispatcher(&stubRelay{}, queue, "noreply@pizzahost.example", 5*time.Second, log)
	push := dispatch.NewPushDispatcher(registry, stubPushSender{}, log)
	orchestrator := dispatch.NewOrchestrator(notifications, push, email, "staff@pizzahost.example", log)

	srv := NewServer(orchestrator, notifications, registry, "test-public-key", okPinger{}, log)
	ts := httptest.NewServer(srv.Routes())
	t.Cleanup(ts.Close)

	return &apiFixture{
		server:        ts,
		notifications: notifications,
		registry:      registry,
		orchestrator:  orchestrator,
	}
}

func (f *apiFixture) postJSON(t *testing.T, path string, body interface{}) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)

	resp, err := http.Post(f.server.URL+path, "application/json", bytes.NewReader(data))
	require.NoError(t, err)
	return resp
}

func decodeBody(t *testing.T, resp *http.Response) map[string]interface{} {
	t.Helper()
	defer resp.Body.Close()
	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return body
}

func validOrderBody() map[string]interface{} {
	return map[string]interface{}{
		"orderId": "order-42",
		"customer": map[string]interface{}{
			"name":  "Asha Rao",
			"email": "asha@example.com",
			"phone": "9876543210",
		},
		"deliveryAddress": map[string]interface{}{
			"street":  "12 MG Road",
			"city":    "Bengaluru",
			"state":   "KA",
			"zipCode": "560001",
		},
		"items": []interface{}{
			map[string]interface{}{"name": "Margherita", "size": "large", "quantity": 2, "price": 349},
		},
		"totalPrice":    698,
		"paymentMethod": "cod",
	}
}

func validSubscriptionBody() map[string]interface{} {
	return map[string]interface{}{
		"endpoint": "https://push.example.com/sub/a",
		"keys": map[string]interface{}{
			"p256dh": "p256dh-key",
			"auth":   "auth-secret",
		},
	}
}

// ==========================
// Order Notify Tests
// ==========================

func TestHandleOrderNotify(t *testing.T) {
	f := newAPIFixture(t)

	resp := f.postJSON(t, "/api/orders/notify", validOrderBody())
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	body := decodeBody(t, resp)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "order-42", body["notificationId"])

	f.orchestrator.Wait()

	records, err := f.notifications.List(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "order-42", records[0].ID)
}

func TestHandleOrderNotify_ValidationErrors(t *testing.T) {
	f := newAPIFixture(t)

	tests := []struct {
		name   string
		mutate func(body map[string]interface{})
	}{
		{"missing order id", func(b map[string]interface{}) { delete(b, "orderId") }},
		{"missing customer", func(b map[string]interface{}) { delete(b, "customer") }},
		{"missing items", func(b map[string]interface{}) { delete(b, "items") }},
		{"total price wrong type", func(b map[string]interface{}) { b["totalPrice"] = "698" }},
		{"negative total", func(b map[string]interface{}) { b["totalPrice"] = -1 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body := validOrderBody()
			tt.mutate(body)

			resp := f.postJSON(t, "/api/orders/notify", body)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
			resp.Body.Close()
		})
	}
}

func TestHandleOrderNotify_NotJSON(t *testing.T) {
	f := newAPIFixture(t)

	resp, err := http.Post(f.server.URL+"/api/orders/notify", "application/json", bytes.NewReader([]byte("not json")))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

// ==========================
// Subscription Tests
// ==========================

func TestHandleSubscribe(t *testing.T) {
	f := newAPIFixture(t)

	resp := f.postJSON(t, "/api/subscribe", validSubscriptionBody())
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	subs, err := f.registry.List(context.Background())
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.Equal(t, "https://push.example.com/sub/a", subs[0].Endpoint)
	assert.Equal(t, "p256dh-key", subs[0].Keys.P256dh)
}

func TestHandleSubscribe_ValidationErrors(t *testing.T) {
	f := newAPIFixture(t)

	tests := []struct {
		name   string
		mutate func(body map[string]interface{})
	}{
		{"missing endpoint", func(b map[string]interface{}) { delete(b, "endpoint") }},
		{"missing keys", func(b map[string]interface{}) { delete(b, "keys") }},
		{"non https endpoint", func(b map[string]interface{}) { b["endpoint"] = "http://push.example.com/sub" }},
		{"missing auth key", func(b map[string]interface{}) {
			b["keys"] = map[string]interface{}{"p256dh": "p256dh-key"}
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body := validSubscriptionBody()
			tt.mutate(body)

			resp := f.postJSON(t, "/api/subscribe", body)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
			resp.Body.Close()
		})
	}
}

func TestHandleUnsubscribe(t *testing.T) {
	f := newAPIFixture(t)

	resp := f.postJSON(t, "/api/subscribe", validSubscriptionBody())
	resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = f.postJSON(t, "/api/unsubscribe", map[string]interface{}{
		"endpoint": "https://push.example.com/sub/a",
	})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	subs, err := f.registry.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, subs)
}

func TestHandleUnsubscribe_UnknownEndpointStillOK(t *testing.T) {
	f := newAPIFixture(t)

	resp := f.postJSON(t, "/api/unsubscribe", map[string]interface{}{
		"endpoint": "https://push.example.com/sub/never-registered",
	})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()
}

// ==========================
// Notification Viewer Tests
// ==========================

func TestHandleListNotifications(t *testing.T) {
	f := newAPIFixture(t)

	resp := f.postJSON(t, "/api/orders/notify", validOrderBody())
	resp.Body.Close()
	f.orchestrator.Wait()

	resp, err := http.Get(f.server.URL + "/api/notifications")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body := decodeBody(t, resp)
	assert.Equal(t, float64(1), body["count"])

	notifications, ok := body["notifications"].([]interface{})
	require.True(t, ok)
	require.Len(t, notifications, 1)
	first := notifications[0].(map[string]interface{})
	assert.Equal(t, "order-42", first["id"])
	assert.Equal(t, false, first["read"])
}

func TestHandleMarkRead(t *testing.T) {
	f := newAPIFixture(t)

	resp := f.postJSON(t, "/api/orders/notify", validOrderBody())
	resp.Body.Close()
	f.orchestrator.Wait()

	req, err := http.NewRequest(http.MethodPut, f.server.URL+"/api/notifications/order-42/read", nil)
	require.NoError(t, err)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body := decodeBody(t, resp)
	notification := body["notification"].(map[string]interface{})
	assert.Equal(t, true, notification["read"])
}

func TestHandleMarkRead_UnknownID(t *testing.T) {
	f := newAPIFixture(t)

	req, err := http.NewRequest(http.MethodPut, f.server.URL+"/api/notifications/no-such-order/read", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

// ==========================
// Misc Endpoint Tests
// ==========================

func TestHandlePushPublicKey(t *testing.T) {
	f := newAPIFixture(t)

	resp, err := http.Get(f.server.URL + "/api/push/public-key")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body := decodeBody(t, resp)
	assert.Equal(t, "test-public-key", body["publicKey"])
}

func TestHandleHealth(t *testing.T) {
	f := newAPIFixture(t)

	resp, err := http.Get(f.server.URL + "/health")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body := decodeBody(t, resp)
	assert.Equal(t, "healthy", body["status"])
}

func TestHandleHealth_Unhealthy(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	log := logger.NewTestLogger(t)

	notifications := store.NewNotificationStore(rdb)
	registry := store.NewSubscriptionRegistry(rdb)
	queue := store.NewEmailQueue(rdb)
	email := dispatch.NewEmailDispatcher(&stubRelay{}, queue, "noreply@pizzahost.example", 5*time.Second, log)
	push := dispatch.NewPushDispatcher(registry, stubPushSender{}, log)
	orchestrator := dispatch.NewOrchestrator(notifications, push, email, "staff@pizzahost.example", log)

	srv := NewServer(orchestrator, notifications, registry, "test-public-key", failingPinger{}, log)
	ts := httptest.NewServer(srv.Routes())
	t.Cleanup(ts.Close)

	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestHandleMetrics(t *testing.T) {
	f := newAPIFixture(t)

	resp, err := http.Get(f.server.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
