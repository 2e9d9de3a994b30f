// Package batch runs SQS batches with per-message independence.
//
// Every message is attempted no matter what happened to its siblings, and the
// result names only the messages that must be redelivered.
package batch

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-lambda-go/events"

	"github.com/kylejryan/appointment-lifecycle/internal/metrics"
)

// ItemFunc handles a single message. A non-nil error marks the message for redelivery.
type ItemFunc func(ctx context.Context, msg events.SQSMessage, log *slog.Logger) error

// Process runs fn over every record of ev sequentially and aggregates the failures.
func Process(ctx context.Context, consumer string, ev events.SQSEvent, log *slog.Logger, fn ItemFunc) events.SQSEventResponse {
	start := time.Now()
	defer func() {
		metrics.BatchDuration.WithLabelValues(consumer).Observe(time.Since(start).Seconds())
	}()

	resp := events.SQSEventResponse{BatchItemFailures: []events.SQSBatchItemFailure{}}
	for _, msg := range ev.Records {
		l := log.With("message_id", msg.MessageId)
		if err := runItem(ctx, msg, l, fn); err != nil {
			l.Error("message failed", "error", err)
			metrics.BatchMessages.WithLabelValues(consumer, metrics.OutcomeFailure).Inc()
			resp.BatchItemFailures = append(resp.BatchItemFailures, events.SQSBatchItemFailure{ItemIdentifier: msg.MessageId})
			continue
		}
		metrics.BatchMessages.WithLabelValues(consumer, metrics.OutcomeSuccess).Inc()
	}

	log.Info("batch processed", "size", len(ev.Records), "failed", len(resp.BatchItemFailures))
	return resp
}

// runItem isolates a panicking item so the rest of the batch still runs.
func runItem(ctx context.Context, msg events.SQSMessage, log *slog.Logger, fn ItemFunc) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return fn(ctx, msg, log)
}
