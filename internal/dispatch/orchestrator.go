// internal/dispatch/orchestrator.go
package dispatch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"pizzahost-workers/internal/common/logger"
	"pizzahost-workers/internal/common/metrics"
	"pizzahost-workers/internal/store"
)

// backgroundBudget bounds the detached fan-out work so a stuck relay cannot
// leak goroutines forever. It never races an individual send.
const backgroundBudget = 2 * time.Minute

// PlacedOrder is the inbound trigger payload, one per successfully created
// order.
type PlacedOrder struct {
	OrderID         string
	Customer        store.Customer
	DeliveryAddress store.DeliveryAddress
	Items           []store.OrderItem
	TotalPrice      float64
	PaymentMethod   string
	Instructions    string
}

// Orchestrator fans one order-creation event out to every notification
// channel. The notification record write is synchronous and its outcome is
// returned; push and the two email sends are fire-and-forget and can neither
// slow down nor fail order creation.
type Orchestrator struct {
	notifications *store.NotificationStore
	push          *PushDispatcher
	email         *EmailDispatcher
	staffEmail    string
	logger        logger.Logger

	// wg tracks detached tasks so tests (and shutdown) can wait for them.
	wg sync.WaitGroup
}

func NewOrchestrator(notifications *store.NotificationStore, push *PushDispatcher, email *EmailDispatcher, staffEmail string, log logger.Logger) *Orchestrator {
	return &Orchestrator{
		notifications: notifications,
		push:          push,
		email:         email,
		staffEmail:    staffEmail,
		logger:        log.WithFields(map[string]interface{}{"component": "orchestrator"}),
	}
}

// NotifyOrderPlaced writes the notification record and schedules the
// best-effort channels. The returned error reflects only the record write;
// the caller logs it and still answers the customer with success.
func (o *Orchestrator) NotifyOrderPlaced(ctx context.Context, order PlacedOrder) error {
	record := store.NotificationRecord{
		ID:              order.OrderID,
		Timestamp:       time.Now().UTC(),
		Customer:        order.Customer,
		DeliveryAddress: order.DeliveryAddress,
		Items:           order.Items,
		TotalPrice:      order.TotalPrice,
		PaymentMethod:   order.PaymentMethod,
		Instructions:    order.Instructions,
		Read:            false,
	}

	recordErr := o.notifications.Record(ctx, record)
	if recordErr != nil {
		metrics.NotificationStoreFailures.Inc()
		// Alert-level: this is silent data loss for the pipeline's core
		// guarantee. The order flow itself must still succeed upstream.
		o.logger.Error("failed to persist order notification record", map[string]interface{}{
			"orderId": order.OrderID,
			"error":   recordErr.Error(),
		})
	} else {
		metrics.NotificationsStored.Inc()
	}

	o.detach(func(bgCtx context.Context) {
		o.push.Broadcast(bgCtx, buildPushPayload(order))
	})
	o.detach(func(bgCtx context.Context) {
		o.sendOrderEmails(bgCtx, order)
	})

	return recordErr
}

// Wait blocks until all detached fan-out tasks have finished.
func (o *Orchestrator) Wait() {
	o.wg.Wait()
}

// detach runs fn in its own goroutine with its own context and panic/logging
// boundary, decoupled from the caller's request lifetime.
func (o *Orchestrator) detach(fn func(ctx context.Context)) {
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				o.logger.Error("notification task panicked", map[string]interface{}{
					"panic": fmt.Sprintf("%v", r),
				})
			}
		}()

		bgCtx, cancel := context.WithTimeout(context.Background(), backgroundBudget)
		defer cancel()
		fn(bgCtx)
	}()
}

// sendOrderEmails issues the staff copy and the customer copy. The copies
// share the same HTML body; only the subject differs.
func (o *Orchestrator) sendOrderEmails(ctx context.Context, order PlacedOrder) {
	html, err := renderOrderEmail(order)
	if err != nil {
		o.logger.Error("failed to render order email", map[string]interface{}{
			"orderId": order.OrderID,
			"error":   err.Error(),
		})
		return
	}

	info := &store.OrderInfo{ID: order.OrderID, TotalPrice: order.TotalPrice}

	o.email.Send(ctx, o.staffEmail, staffSubject(order.OrderID), html, info)

	if order.Customer.Email != "" {
		o.email.Send(ctx, order.Customer.Email, customerSubject(order.OrderID), html, info)
	} else {
		o.logger.Warn("skipping customer confirmation email, address unknown", map[string]interface{}{
			"orderId": order.OrderID,
		})
	}
}

func buildPushPayload(order PlacedOrder) PushPayload {
	name := order.Customer.Name
	if name == "" {
		name = "Someone"
	}

	return PushPayload{
		Title: "🍕 New Pizza Order!",
		Body:  fmt.Sprintf("%s placed a new order for ₹%.2f", name, order.TotalPrice),
		Icon:  "/pizza-icon.png",
		Badge: "/badge-icon.png",
		Data: PushData{
			URL:       "/notifications",
			OrderID:   order.OrderID,
			Timestamp: time.Now().UTC(),
		},
	}
}
