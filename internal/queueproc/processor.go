// Package queueproc drains the email retry queue. It runs out-of-band,
// triggered by cron or an operator, never by the order path.
package queueproc

import (
	"context"

	stderrors "pizzahost-workers/internal/common/errors"
	"pizzahost-workers/internal/common/logger"
	"pizzahost-workers/internal/common/metrics"
	"pizzahost-workers/internal/dispatch"
	"pizzahost-workers/internal/store"
)

// Summary reports one processor run for operational monitoring.
type Summary struct {
	Processed  int `json:"processed"`
	Successful int `json:"successful"`
	Failed     int `json:"failed"`
}

// Processor re-attempts every queued email over a single shared relay
// connection.
type Processor struct {
	queue  *store.EmailQueue
	relay  dispatch.BatchMailRelay
	logger logger.Logger
}

func NewProcessor(queue *store.EmailQueue, relay dispatch.BatchMailRelay, log logger.Logger) *Processor {
	return &Processor{
		queue:  queue,
		relay:  relay,
		logger: log.WithFields(map[string]interface{}{"component": "queue-processor"}),
	}
}

// RunOnce snapshots the pending queue and gives each item exactly one send
// attempt: success archives it as sent, failure archives it as failed. Items
// enqueued during the run are left for the next run. If the relay connection
// cannot be established at all the run aborts with Processed 0 and every
// item stays pending.
func (p *Processor) RunOnce(ctx context.Context) (Summary, error) {
	var summary Summary

	pending, err := p.queue.ListPending(ctx)
	if err != nil {
		return summary, err
	}
	if len(pending) == 0 {
		p.logger.Info("email queue is empty", nil)
		return summary, nil
	}

	p.logger.Info("processing email queue", map[string]interface{}{
		"pending": len(pending),
	})

	// One relay session for the whole batch.
	conn, err := p.relay.Dial()
	if err != nil {
		metrics.QueueRuns.WithLabelValues("aborted").Inc()
		p.logger.Error("could not connect to mail relay, aborting run", map[string]interface{}{
			"error": err.Error(),
		})
		return summary, stderrors.NewQueueConnectionFailedError(err)
	}
	defer conn.Close()

	for _, item := range pending {
		summary.Processed++

		messageID, sendErr := conn.Send(item.To, item.Subject, item.HTML)
		if sendErr != nil {
			summary.Failed++
			metrics.QueueItemsProcessed.WithLabelValues(store.OutcomeFailed).Inc()
			p.logger.Warn("queued email failed again", map[string]interface{}{
				"id":    item.ID,
				"to":    item.To,
				"error": sendErr.Error(),
			})
			if err := p.queue.Archive(ctx, item.ID, store.OutcomeFailed); err != nil {
				p.logger.Error("failed to archive email as failed", map[string]interface{}{
					"id":    item.ID,
					"error": err.Error(),
				})
			}
			continue
		}

		summary.Successful++
		metrics.QueueItemsProcessed.WithLabelValues(store.OutcomeSent).Inc()
		metrics.EmailsSent.WithLabelValues("queue").Inc()
		p.logger.Info("queued email sent", map[string]interface{}{
			"id":        item.ID,
			"to":        item.To,
			"messageId": messageID,
		})
		if err := p.queue.Archive(ctx, item.ID, store.OutcomeSent); err != nil {
			p.logger.Error("failed to archive email as sent", map[string]interface{}{
				"id":    item.ID,
				"error": err.Error(),
			})
		}
	}

	metrics.QueueRuns.WithLabelValues("completed").Inc()
	p.logger.Info("queue run finished", map[string]interface{}{
		"processed":  summary.Processed,
		"successful": summary.Successful,
		"failed":     summary.Failed,
	})

	return summary, nil
}
