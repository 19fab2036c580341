// internal/dispatch/push.go
package dispatch

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	webpush "github.com/SherClockHolmes/webpush-go"

	"pizzahost-workers/internal/common/config"
	"pizzahost-workers/internal/common/logger"
	"pizzahost-workers/internal/common/metrics"
	"pizzahost-workers/internal/store"
)

// WebPushSender delivers one payload to one subscription and reports the
// relay's HTTP status. Defined as an interface for mocking.
type WebPushSender interface {
	Send(ctx context.Context, sub store.PushSubscription, payload []byte) (int, error)
}

// vapidSender is the production sender backed by the Web Push protocol.
type vapidSender struct {
	opts webpush.Options
}

// NewVAPIDSender builds a Web Push sender from the configured VAPID key pair.
func NewVAPIDSender(cfg config.PushConfig) WebPushSender {
	return &vapidSender{
		opts: webpush.Options{
			Subscriber:      cfg.Subscriber,
			VAPIDPublicKey:  cfg.VAPIDPublicKey,
			VAPIDPrivateKey: cfg.VAPIDPrivateKey,
			TTL:             cfg.TTL,
		},
	}
}

func (s *vapidSender) Send(ctx context.Context, sub store.PushSubscription, payload []byte) (int, error) {
	resp, err := webpush.SendNotificationWithContext(ctx, payload, &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.Keys.P256dh,
			Auth:   sub.Keys.Auth,
		},
	}, &s.opts)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	return resp.StatusCode, nil
}

// PushPayload mirrors the JSON the notification viewer page expects.
type PushPayload struct {
	Title string   `json:"title"`
	Body  string   `json:"body"`
	Icon  string   `json:"icon"`
	Badge string   `json:"badge"`
	Data  PushData `json:"data"`
}

type PushData struct {
	URL       string    `json:"url"`
	OrderID   string    `json:"orderId"`
	Timestamp time.Time `json:"timestamp"`
}

// DispatchReport summarizes one broadcast.
type DispatchReport struct {
	Sent   int
	Pruned int
	Failed int
}

// PushDispatcher fans a payload out to every registered subscription.
// Best-effort: a broadcast never fails the caller, and no individual send is
// retried within a broadcast.
type PushDispatcher struct {
	registry *store.SubscriptionRegistry
	sender   WebPushSender
	logger   logger.Logger
}

func NewPushDispatcher(registry *store.SubscriptionRegistry, sender WebPushSender, log logger.Logger) *PushDispatcher {
	return &PushDispatcher{
		registry: registry,
		sender:   sender,
		logger:   log.WithFields(map[string]interface{}{"component": "push-dispatcher"}),
	}
}

// Broadcast sends the payload to every subscription. Endpoints the relay
// reports as permanently gone are pruned from the registry; transient errors
// leave the registration in place.
func (d *PushDispatcher) Broadcast(ctx context.Context, payload PushPayload) DispatchReport {
	var report DispatchReport

	subs, err := d.registry.List(ctx)
	if err != nil {
		d.logger.Error("failed to list push subscriptions", map[string]interface{}{
			"error": err.Error(),
		})
		return report
	}
	if len(subs) == 0 {
		return report
	}

	body, err := json.Marshal(payload)
	if err != nil {
		d.logger.Error("failed to encode push payload", map[string]interface{}{
			"error": err.Error(),
		})
		return report
	}

	for _, sub := range subs {
		statusCode, err := d.sender.Send(ctx, sub, body)
		switch {
		case err == nil && statusCode < http.StatusMultipleChoices:
			metrics.PushesSent.Inc()
			report.Sent++

		case err == nil && (statusCode == http.StatusNotFound || statusCode == http.StatusGone):
			// Endpoint permanently invalid; self-heal the registry.
			if removeErr := d.registry.Remove(ctx, sub.Endpoint); removeErr != nil {
				d.logger.Error("failed to prune gone subscription", map[string]interface{}{
					"endpoint": sub.Endpoint,
					"error":    removeErr.Error(),
				})
			} else {
				d.logger.Info("pruned gone push subscription", map[string]interface{}{
					"endpoint": sub.Endpoint,
					"status":   statusCode,
				})
			}
			metrics.PushesPruned.Inc()
			report.Pruned++

		default:
			metrics.PushesFailed.Inc()
			report.Failed++
			fields := map[string]interface{}{"endpoint": sub.Endpoint}
			if err != nil {
				fields["error"] = err.Error()
			} else {
				fields["status"] = statusCode
			}
			d.logger.Warn("push delivery failed", fields)
		}
	}

	d.logger.Info("push broadcast finished", map[string]interface{}{
		"sent":   report.Sent,
		"pruned": report.Pruned,
		"failed": report.Failed,
	})

	return report
}
