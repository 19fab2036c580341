// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	NotificationsStored = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "notifications_stored_total",
			Help: "Total number of order notification records persisted",
		},
	)

	NotificationStoreFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "notification_store_failures_total",
			Help: "Total number of failed notification record writes (alert-level)",
		},
	)

	EmailsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "emails_sent_total",
			Help: "Total number of emails accepted by the relay",
		},
		[]string{"path"}, // "dispatch" or "queue"
	)

	EmailsQueued = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "emails_queued_total",
			Help: "Total number of emails written to the retry queue",
		},
		[]string{"reason"}, // "timeout", "error" or "cancelled"
	)

	EmailSendDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name: "email_send_duration_seconds",
			Help: "Duration of relay send attempts in seconds",
		},
	)

	PushesSent = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pushes_sent_total",
			Help: "Total number of push notifications delivered",
		},
	)

	PushesPruned = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pushes_pruned_total",
			Help: "Total number of subscriptions removed after a gone endpoint",
		},
	)

	PushesFailed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pushes_failed_total",
			Help: "Total number of transient push delivery failures",
		},
	)

	QueueRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "email_queue_runs_total",
			Help: "Total number of queue processor runs",
		},
		[]string{"outcome"}, // "completed" or "aborted"
	)

	QueueItemsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "email_queue_items_total",
			Help: "Total number of queued emails processed per terminal state",
		},
		[]string{"state"}, // "sent" or "failed"
	)
)
