// Package intake accepts appointment requests and announces them to the country processors.
package intake

import (
	"context"
	"log/slog"

	"github.com/kylejryan/appointment-lifecycle/internal/api"
	"github.com/kylejryan/appointment-lifecycle/internal/models"
	"github.com/kylejryan/appointment-lifecycle/internal/validate"
)

// Store is the appointment store as seen by intake.
type Store interface {
	Create(ctx context.Context, req models.AppointmentRequest) (models.AppointmentRecord, error)
	FindByInsuredID(ctx context.Context, insuredID string) ([]models.AppointmentRecord, error)
}

// Publisher fans an accepted request out to its country.
type Publisher interface {
	PublishAppointment(ctx context.Context, req models.AppointmentRequest) error
}

// Orchestrator validates, records and announces appointment requests.
type Orchestrator struct {
	store     Store
	publisher Publisher
	log       *slog.Logger
}

// NewOrchestrator wires an orchestrator.
func NewOrchestrator(store Store, publisher Publisher, log *slog.Logger) *Orchestrator {
	return &Orchestrator{store: store, publisher: publisher, log: log.With("component", "intake")}
}

// Submit validates body, creates the pending record and publishes the request.
//
// Nothing is published unless the record was stored. When publishing fails
// the acknowledgement is returned next to the error so the caller can name
// the stuck appointment.
func (o *Orchestrator) Submit(ctx context.Context, body []byte) (api.AppointmentAccepted, error) {
	req, err := validate.Request(body)
	if err != nil {
		return api.AppointmentAccepted{}, err
	}

	rec, err := o.store.Create(ctx, req)
	if err != nil {
		return api.AppointmentAccepted{}, err
	}
	ack := api.AppointmentAccepted{ID: rec.ID, Status: rec.Status, Request: req}

	if err := o.publisher.PublishAppointment(ctx, req); err != nil {
		o.log.Error("appointment saved but not published", "id", rec.ID, "country", req.CountryISO, "error", err)
		return ack, err
	}
	o.log.Info("appointment accepted", "id", rec.ID, "country", req.CountryISO)
	return ack, nil
}

// List returns every appointment of insuredID after checking its format.
func (o *Orchestrator) List(ctx context.Context, insuredID string) ([]models.AppointmentRecord, error) {
	if err := validate.InsuredIDPath(insuredID); err != nil {
		return nil, err
	}
	return o.store.FindByInsuredID(ctx, insuredID)
}
