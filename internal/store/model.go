// Package store holds the pipeline's durable side-channel records: order
// notifications, push subscriptions and queued emails. All three collections
// are backed by Redis; every record is written as one self-describing JSON
// document under its own key so a concurrent reader never observes a partial
// write.
package store

import "time"

// Customer identifies the person who placed the order.
type Customer struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

// DeliveryAddress is the order's destination.
type DeliveryAddress struct {
	Street  string `json:"street"`
	City    string `json:"city"`
	State   string `json:"state"`
	ZipCode string `json:"zipCode"`
}

// OrderItem is one line of the order.
type OrderItem struct {
	Name     string  `json:"name"`
	Size     string  `json:"size"`
	Quantity int     `json:"quantity"`
	Price    float64 `json:"price"`
}

// NotificationRecord is the durable, human-readable summary of one placed
// order. It is created exactly once per order and never deleted; Read is the
// only mutable field.
type NotificationRecord struct {
	ID              string          `json:"id"`
	Timestamp       time.Time       `json:"timestamp"`
	Customer        Customer        `json:"customer"`
	DeliveryAddress DeliveryAddress `json:"deliveryAddress"`
	Items           []OrderItem     `json:"items"`
	TotalPrice      float64         `json:"totalPrice"`
	PaymentMethod   string          `json:"paymentMethod"`
	Instructions    string          `json:"instructions,omitempty"`
	Read            bool            `json:"read"`
}

// SubscriptionKeys is the opaque key material a browser hands out on opt-in.
type SubscriptionKeys struct {
	P256dh string `json:"p256dh"`
	Auth   string `json:"auth"`
}

// PushSubscription is one registered browser/device endpoint.
type PushSubscription struct {
	Endpoint string           `json:"endpoint"`
	Keys     SubscriptionKeys `json:"keys"`
}

// OrderInfo carries order diagnostics alongside a queued email.
type OrderInfo struct {
	ID         string  `json:"id"`
	TotalPrice float64 `json:"totalPrice"`
}

// QueuedEmail is one outbound message persisted after a failed or timed-out
// send attempt.
type QueuedEmail struct {
	ID          string     `json:"id"`
	From        string     `json:"from"`
	To          string     `json:"to"`
	Subject     string     `json:"subject"`
	HTML        string     `json:"html"`
	OrderInfo   *OrderInfo `json:"orderInfo,omitempty"`
	ErrorDetail string     `json:"errorDetail"`
	EnqueuedAt  time.Time  `json:"enqueuedAt"`
}

// Queue archive outcomes.
const (
	OutcomeSent   = "sent"
	OutcomeFailed = "failed"
)
