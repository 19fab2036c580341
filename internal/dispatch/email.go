// internal/dispatch/email.go
package dispatch

import (
	"context"
	"time"

	stderrors "pizzahost-workers/internal/common/errors"
	"pizzahost-workers/internal/common/logger"
	"pizzahost-workers/internal/common/metrics"
	"pizzahost-workers/internal/store"
)

// SendResult is the bounded-time outcome of one email dispatch.
type SendResult struct {
	Success   bool
	MessageID string
	Err       error
}

// EmailDispatcher races a relay send against a fixed timeout. Whatever the
// failure mode, the message is persisted to the email queue before Send
// returns; it is never dropped.
type EmailDispatcher struct {
	relay   MailRelay
	queue   *store.EmailQueue
	from    string
	timeout time.Duration
	logger  logger.Logger
}

func NewEmailDispatcher(relay MailRelay, queue *store.EmailQueue, from string, timeout time.Duration, log logger.Logger) *EmailDispatcher {
	return &EmailDispatcher{
		relay:   relay,
		queue:   queue,
		from:    from,
		timeout: timeout,
		logger:  log.WithFields(map[string]interface{}{"component": "email-dispatcher"}),
	}
}

type sendOutcome struct {
	messageID string
	err       error
}

// Send attempts the relay send and resolves with whichever finishes first:
// the relay or the timer. A timed-out send is abandoned, not cancelled; the
// buffered channel lets the loser's result be discarded without leaking the
// goroutine.
func (d *EmailDispatcher) Send(ctx context.Context, to, subject, html string, info *store.OrderInfo) SendResult {
	start := time.Now()

	resultCh := make(chan sendOutcome, 1)
	go func() {
		messageID, err := d.relay.SendOnce(to, subject, html)
		resultCh <- sendOutcome{messageID: messageID, err: err}
	}()

	timer := time.NewTimer(d.timeout)
	defer timer.Stop()

	var sendErr *stderrors.StandardError
	var reason string

	select {
	case out := <-resultCh:
		metrics.EmailSendDuration.Observe(time.Since(start).Seconds())
		if out.err == nil {
			metrics.EmailsSent.WithLabelValues("dispatch").Inc()
			d.logger.Info("email sent", map[string]interface{}{
				"to":        to,
				"messageId": out.messageID,
			})
			return SendResult{Success: true, MessageID: out.messageID}
		}
		sendErr = stderrors.NewEmailSendFailedError(to, out.err)
		reason = "error"

	case <-timer.C:
		sendErr = stderrors.NewEmailSendTimeoutError(to, d.timeout)
		reason = "timeout"

	case <-ctx.Done():
		sendErr = stderrors.NewEmailSendFailedError(to, ctx.Err())
		reason = "cancelled"
	}

	metrics.EmailsQueued.WithLabelValues(reason).Inc()
	d.logger.Warn("email send failed, queueing for retry", map[string]interface{}{
		"to":     to,
		"reason": reason,
		"error":  sendErr.Details,
	})

	d.enqueueFallback(ctx, to, subject, html, info, sendErr)

	return SendResult{Success: false, Err: sendErr}
}

// enqueueFallback persists the failed message. The queue write survives a
// cancelled caller context: losing the fallback record would lose the email.
func (d *EmailDispatcher) enqueueFallback(ctx context.Context, to, subject, html string, info *store.OrderInfo, sendErr *stderrors.StandardError) {
	queueCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	_, err := d.queue.Enqueue(queueCtx, store.QueuedEmail{
		From:        d.from,
		To:          to,
		Subject:     subject,
		HTML:        html,
		OrderInfo:   info,
		ErrorDetail: sendErr.Error() + ": " + sendErr.Details,
	})
	if err != nil {
		// The one place a message can be lost; make it loud.
		d.logger.Error("failed to queue email after send failure", map[string]interface{}{
			"to":    to,
			"error": err.Error(),
		})
	}
}
