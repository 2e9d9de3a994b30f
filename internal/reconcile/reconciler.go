// Package reconcile completes pending appointments when their country reports them processed.
package reconcile

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/aws/aws-lambda-go/events"

	"github.com/kylejryan/appointment-lifecycle/internal/apperr"
	"github.com/kylejryan/appointment-lifecycle/internal/batch"
	"github.com/kylejryan/appointment-lifecycle/internal/metrics"
	"github.com/kylejryan/appointment-lifecycle/internal/models"
	"github.com/kylejryan/appointment-lifecycle/internal/validate"
)

// Completer performs the conditional pending -> completed transition.
type Completer interface {
	CompleteIfPending(ctx context.Context, insuredID string, scheduleID int, country models.CountryISO) (models.AppointmentRecord, bool, error)
}

// Reconciler consumes AppointmentProcessed events delivered through SQS.
type Reconciler struct {
	store Completer
	log   *slog.Logger
}

// New returns a reconciler writing through store.
func New(store Completer, log *slog.Logger) *Reconciler {
	return &Reconciler{store: store, log: log.With("component", "status_reconciler")}
}

// Handle processes an SQS batch and reports the messages to redeliver.
func (r *Reconciler) Handle(ctx context.Context, ev events.SQSEvent) (events.SQSEventResponse, error) {
	return batch.Process(ctx, "status", ev, r.log, r.process), nil
}

func (r *Reconciler) process(ctx context.Context, msg events.SQSMessage, log *slog.Logger) error {
	ev, err := parse(msg.Body)
	if err != nil {
		return err
	}

	rec, found, err := r.store.CompleteIfPending(ctx, ev.InsuredID, ev.ScheduleID, ev.CountryISO)
	if err != nil {
		metrics.Transitions.WithLabelValues(metrics.OutcomeFailure).Inc()
		return fmt.Errorf("complete: %w", err)
	}
	if !found {
		// Redelivered, already completed, or unknown: nothing to do.
		metrics.Transitions.WithLabelValues(metrics.OutcomeNoMatch).Inc()
		log.Info("no pending appointment to complete", "insured_id", ev.InsuredID, "schedule_id", ev.ScheduleID, "country", ev.CountryISO)
		return nil
	}
	metrics.Transitions.WithLabelValues(metrics.OutcomeSuccess).Inc()
	log.Info("appointment completed", "id", rec.ID)
	return nil
}

// parse extracts the processed event from the EventBridge envelope in body.
func parse(body string) (models.ProcessedEvent, error) {
	var envelope events.CloudWatchEvent
	if err := json.Unmarshal([]byte(body), &envelope); err != nil {
		return models.ProcessedEvent{}, &apperr.ValidationError{Message: "malformed event envelope", Violations: []string{err.Error()}}
	}
	if len(envelope.Detail) == 0 || string(envelope.Detail) == "null" {
		return models.ProcessedEvent{}, &apperr.ValidationError{Message: "event detail field is missing"}
	}

	req, err := validate.Request(envelope.Detail)
	if err != nil {
		return models.ProcessedEvent{}, fmt.Errorf("invalid event detail: %w", err)
	}
	return models.ProcessedEvent{InsuredID: req.InsuredID, ScheduleID: req.ScheduleID, CountryISO: req.CountryISO}, nil
}
