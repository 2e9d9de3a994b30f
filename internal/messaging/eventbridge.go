package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
	ebtypes "github.com/aws/aws-sdk-go-v2/service/eventbridge/types"

	"github.com/kylejryan/appointment-lifecycle/internal/apperr"
	"github.com/kylejryan/appointment-lifecycle/internal/metrics"
	"github.com/kylejryan/appointment-lifecycle/internal/models"
)

// Processed-event coordinates on the bus.
const (
	EventSource         = "appointment"
	EventDetailTypeDone = "AppointmentProcessed"
)

// EventBridgeAPI is the subset of the EventBridge client the emitter needs.
type EventBridgeAPI interface {
	PutEvents(ctx context.Context, params *eventbridge.PutEventsInput, optFns ...func(*eventbridge.Options)) (*eventbridge.PutEventsOutput, error)
}

// EventBridgeEmitter signals that a country persisted an appointment.
type EventBridgeEmitter struct {
	client  EventBridgeAPI
	busName string
	log     *slog.Logger
}

// NewEventBridgeEmitter returns an emitter on busName.
func NewEventBridgeEmitter(client EventBridgeAPI, busName string, log *slog.Logger) *EventBridgeEmitter {
	return &EventBridgeEmitter{client: client, busName: busName, log: log.With("component", "processed_emitter")}
}

// EmitProcessed puts one AppointmentProcessed event. PutEvents reports
// per-entry failures in the response, so those count as errors too.
func (e *EventBridgeEmitter) EmitProcessed(ctx context.Context, ev models.ProcessedEvent) error {
	detail, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("%w: encode processed event: %v", apperr.ErrPublish, err)
	}

	out, err := e.client.PutEvents(ctx, &eventbridge.PutEventsInput{
		Entries: []ebtypes.PutEventsRequestEntry{{
			EventBusName: aws.String(e.busName),
			Source:       aws.String(EventSource),
			DetailType:   aws.String(EventDetailTypeDone),
			Detail:       aws.String(string(detail)),
		}},
	})
	if err == nil && out.FailedEntryCount > 0 {
		err = fmt.Errorf("%d entries rejected: %s", out.FailedEntryCount, entryError(out.Entries))
	}
	if err != nil {
		metrics.Published.WithLabelValues("processed", string(ev.CountryISO), metrics.OutcomeFailure).Inc()
		return fmt.Errorf("%w: eventbridge put events: %v", apperr.ErrPublish, err)
	}

	metrics.Published.WithLabelValues("processed", string(ev.CountryISO), metrics.OutcomeSuccess).Inc()
	e.log.Info("processed event emitted", "country", ev.CountryISO, "insured_id", ev.InsuredID)
	return nil
}

func entryError(entries []ebtypes.PutEventsResultEntry) string {
	for _, en := range entries {
		if en.ErrorCode != nil {
			return aws.ToString(en.ErrorCode) + ": " + aws.ToString(en.ErrorMessage)
		}
	}
	return "unknown"
}
