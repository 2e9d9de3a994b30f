// Package country persists routed appointments into one country's store.
package country

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/aws/aws-lambda-go/events"

	"github.com/kylejryan/appointment-lifecycle/internal/apperr"
	"github.com/kylejryan/appointment-lifecycle/internal/batch"
	"github.com/kylejryan/appointment-lifecycle/internal/models"
	"github.com/kylejryan/appointment-lifecycle/internal/validate"
)

// Appender writes a row into a country partition.
type Appender interface {
	Append(ctx context.Context, country models.CountryISO, req models.AppointmentRequest) error
}

// Emitter publishes the processed signal.
type Emitter interface {
	EmitProcessed(ctx context.Context, ev models.ProcessedEvent) error
}

// Processor consumes the queue subscribed to a single country.
type Processor struct {
	country models.CountryISO
	store   Appender
	emitter Emitter
	log     *slog.Logger
}

// NewProcessor returns the processor bound to country's partition.
func NewProcessor(country models.CountryISO, store Appender, emitter Emitter, log *slog.Logger) *Processor {
	return &Processor{
		country: country,
		store:   store,
		emitter: emitter,
		log:     log.With("component", "country_processor", "country", country),
	}
}

// Handle processes an SQS batch and reports the messages to redeliver.
func (p *Processor) Handle(ctx context.Context, ev events.SQSEvent) (events.SQSEventResponse, error) {
	return batch.Process(ctx, "country_"+string(p.country), ev, p.log, p.process), nil
}

func (p *Processor) process(ctx context.Context, msg events.SQSMessage, log *slog.Logger) error {
	req, err := validate.Request(unwrapSNS(msg.Body))
	if err != nil {
		return fmt.Errorf("invalid message: %w", err)
	}
	if req.CountryISO != p.country {
		return &apperr.ValidationError{
			Message:    "message routed to the wrong country",
			Violations: []string{fmt.Sprintf("countryISO %s delivered to %s", req.CountryISO, p.country)},
		}
	}

	if err := p.store.Append(ctx, p.country, req); err != nil {
		return fmt.Errorf("append: %w", err)
	}

	// The row is stored at this point; a failed emit gets the message
	// redelivered, which appends again and emits again. Completion is idempotent.
	if err := p.emitter.EmitProcessed(ctx, models.ProcessedEvent{
		InsuredID:  req.InsuredID,
		ScheduleID: req.ScheduleID,
		CountryISO: req.CountryISO,
	}); err != nil {
		return fmt.Errorf("emit processed: %w", err)
	}

	log.Info("appointment stored", "insured_id", req.InsuredID, "schedule_id", req.ScheduleID)
	return nil
}

// unwrapSNS returns the inner message when the subscription does not use raw delivery.
func unwrapSNS(body string) []byte {
	var entity events.SNSEntity
	if err := json.Unmarshal([]byte(body), &entity); err == nil && entity.Type == "Notification" && entity.Message != "" {
		return []byte(entity.Message)
	}
	return []byte(body)
}
