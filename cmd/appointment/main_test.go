package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/aws/aws-lambda-go/events"

	"github.com/kylejryan/appointment-lifecycle/internal/intake"
	"github.com/kylejryan/appointment-lifecycle/internal/logging"
	"github.com/kylejryan/appointment-lifecycle/internal/memstore"
	"github.com/kylejryan/appointment-lifecycle/internal/models"
	"github.com/kylejryan/appointment-lifecycle/internal/reconcile"
)

type nopPublisher struct{}

func (nopPublisher) PublishAppointment(context.Context, models.AppointmentRequest) error { return nil }

func newApp() (*App, *memstore.Appointments) {
	store := memstore.NewAppointments(logging.Discard())
	return &App{
		http:       intake.NewHandler(intake.NewOrchestrator(store, nopPublisher{}, logging.Discard()), logging.Discard()),
		reconciler: reconcile.New(store, logging.Discard()),
		log:        logging.Discard(),
	}, store
}

func TestHandler_Dispatch(t *testing.T) {
	ctx := context.Background()
	app, store := newApp()

	out, err := app.handler(ctx, json.RawMessage(`{
		"version":"2.0",
		"rawPath":"/appointments",
		"body":"{\"insuredId\":\"01234\",\"scheduleId\":5,\"countryISO\":\"CL\"}",
		"requestContext":{"http":{"method":"POST","path":"/appointments"}}
	}`))
	if err != nil {
		t.Fatalf("http dispatch: %v", err)
	}
	resp, ok := out.(events.APIGatewayV2HTTPResponse)
	if !ok || resp.StatusCode != http.StatusAccepted {
		t.Fatalf("unexpected http result: %#v", out)
	}

	out, err = app.handler(ctx, json.RawMessage(`{"Records":[{
		"messageId":"m0",
		"eventSource":"aws:sqs",
		"body":"{\"detail\":{\"insuredId\":\"01234\",\"scheduleId\":5,\"countryISO\":\"CL\"}}"
	}]}`))
	if err != nil {
		t.Fatalf("sqs dispatch: %v", err)
	}
	if batch, ok := out.(events.SQSEventResponse); !ok || len(batch.BatchItemFailures) != 0 {
		t.Fatalf("unexpected sqs result: %#v", out)
	}

	items, _ := store.FindByInsuredID(ctx, "01234")
	if len(items) != 1 || items[0].Status != models.StatusCompleted {
		t.Fatalf("unexpected records: %+v", items)
	}
}

func TestHandler_Unsupported(t *testing.T) {
	app, _ := newApp()
	if _, err := app.handler(context.Background(), json.RawMessage(`{"Records":[{"eventSource":"aws:s3"}]}`)); !errors.Is(err, errUnsupportedEvent) {
		t.Fatalf("expected unsupported event, got %v", err)
	}
	if _, err := app.handler(context.Background(), json.RawMessage(`[1,2`)); err == nil {
		t.Fatal("expected decode error")
	}
}
