package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
	ebtypes "github.com/aws/aws-sdk-go-v2/service/eventbridge/types"
	"github.com/aws/aws-sdk-go-v2/service/sns"

	"github.com/kylejryan/appointment-lifecycle/internal/apperr"
	"github.com/kylejryan/appointment-lifecycle/internal/logging"
	"github.com/kylejryan/appointment-lifecycle/internal/models"
)

var peRequest = models.AppointmentRequest{InsuredID: "01234", ScheduleID: 123, CountryISO: models.CountryPE}

type fakeSNS struct {
	in  *sns.PublishInput
	err error
}

func (f *fakeSNS) Publish(_ context.Context, in *sns.PublishInput, _ ...func(*sns.Options)) (*sns.PublishOutput, error) {
	f.in = in
	if f.err != nil {
		return nil, f.err
	}
	return &sns.PublishOutput{MessageId: aws.String("sns-1")}, nil
}

func TestSNSPublisher_TagsCountry(t *testing.T) {
	client := &fakeSNS{}
	p := NewSNSPublisher(client, "arn:aws:sns:us-east-1:000000000000:appointments", logging.Discard())

	if err := p.PublishAppointment(context.Background(), peRequest); err != nil {
		t.Fatalf("publish: %v", err)
	}
	attr, ok := client.in.MessageAttributes[CountryAttribute]
	if !ok || aws.ToString(attr.StringValue) != "PE" || aws.ToString(attr.DataType) != "String" {
		t.Fatalf("unexpected attributes: %+v", client.in.MessageAttributes)
	}
	var got models.AppointmentRequest
	if err := json.Unmarshal([]byte(aws.ToString(client.in.Message)), &got); err != nil || got != peRequest {
		t.Fatalf("unexpected body %q: %v", aws.ToString(client.in.Message), err)
	}
}

func TestSNSPublisher_Error(t *testing.T) {
	p := NewSNSPublisher(&fakeSNS{err: errors.New("throttled")}, "arn", logging.Discard())
	if err := p.PublishAppointment(context.Background(), peRequest); !errors.Is(err, apperr.ErrPublish) {
		t.Fatalf("expected publish error, got %v", err)
	}
}

type fakeEventBridge struct {
	in  *eventbridge.PutEventsInput
	out *eventbridge.PutEventsOutput
	err error
}

func (f *fakeEventBridge) PutEvents(_ context.Context, in *eventbridge.PutEventsInput, _ ...func(*eventbridge.Options)) (*eventbridge.PutEventsOutput, error) {
	f.in = in
	if f.err != nil {
		return nil, f.err
	}
	if f.out != nil {
		return f.out, nil
	}
	return &eventbridge.PutEventsOutput{}, nil
}

func TestEventBridgeEmitter(t *testing.T) {
	client := &fakeEventBridge{}
	e := NewEventBridgeEmitter(client, "appointments-bus", logging.Discard())
	ev := models.ProcessedEvent{InsuredID: "01234", ScheduleID: 1, CountryISO: models.CountryCL}

	if err := e.EmitProcessed(context.Background(), ev); err != nil {
		t.Fatalf("emit: %v", err)
	}
	entry := client.in.Entries[0]
	if aws.ToString(entry.Source) != EventSource || aws.ToString(entry.DetailType) != EventDetailTypeDone ||
		aws.ToString(entry.EventBusName) != "appointments-bus" {
		t.Fatalf("unexpected entry: %+v", entry)
	}
	var got models.ProcessedEvent
	if err := json.Unmarshal([]byte(aws.ToString(entry.Detail)), &got); err != nil || got != ev {
		t.Fatalf("unexpected detail %q", aws.ToString(entry.Detail))
	}
}

func TestEventBridgeEmitter_RejectedEntry(t *testing.T) {
	client := &fakeEventBridge{out: &eventbridge.PutEventsOutput{
		FailedEntryCount: 1,
		Entries:          []ebtypes.PutEventsResultEntry{{ErrorCode: aws.String("InternalFailure"), ErrorMessage: aws.String("try again")}},
	}}
	e := NewEventBridgeEmitter(client, "default", logging.Discard())
	err := e.EmitProcessed(context.Background(), models.ProcessedEvent{InsuredID: "01234", ScheduleID: 1, CountryISO: models.CountryPE})
	if !errors.Is(err, apperr.ErrPublish) {
		t.Fatalf("expected publish error, got %v", err)
	}
}

func TestBus_RoutesByCountry(t *testing.T) {
	ctx := context.Background()
	bus := NewBus(3, logging.Discard())
	pe, cl := bus.Queue("pe"), bus.Queue("cl")
	bus.SubscribeCountry(models.CountryPE, pe)
	bus.SubscribeCountry(models.CountryCL, cl)

	_ = bus.PublishAppointment(ctx, peRequest)

	if pe.Len() != 1 || cl.Len() != 0 {
		t.Fatalf("expected only PE queue to receive, pe=%d cl=%d", pe.Len(), cl.Len())
	}
	msg := pe.receive()[0]
	if aws.ToString(msg.MessageAttributes[CountryAttribute].StringValue) != "PE" {
		t.Fatalf("missing routing attribute: %+v", msg.MessageAttributes)
	}
}

func TestBus_RedeliversFailedItemsThenDeadLetters(t *testing.T) {
	ctx := context.Background()
	bus := NewBus(2, logging.Discard())
	q := bus.Queue("pe")
	bus.SubscribeCountry(models.CountryPE, q)

	good := peRequest
	bad := peRequest
	bad.ScheduleID = 999
	_ = bus.PublishAppointment(ctx, good)
	_ = bus.PublishAppointment(ctx, bad)

	deliveries := map[int]int{}
	bus.Consume(q, func(_ context.Context, ev events.SQSEvent) (events.SQSEventResponse, error) {
		resp := events.SQSEventResponse{}
		for _, m := range ev.Records {
			var r models.AppointmentRequest
			_ = json.Unmarshal([]byte(m.Body), &r)
			deliveries[r.ScheduleID]++
			if r.ScheduleID == 999 {
				resp.BatchItemFailures = append(resp.BatchItemFailures, events.SQSBatchItemFailure{ItemIdentifier: m.MessageId})
			}
		}
		return resp, nil
	})
	bus.Flush(ctx)

	if deliveries[123] != 1 || deliveries[999] != 2 {
		t.Fatalf("unexpected deliveries: %v", deliveries)
	}
	if q.Len() != 0 || len(q.DeadLetters()) != 1 {
		t.Fatalf("expected the failing message dead-lettered, pending=%d dead=%d", q.Len(), len(q.DeadLetters()))
	}
}

func TestBus_EmitProcessedEnvelope(t *testing.T) {
	ctx := context.Background()
	bus := NewBus(3, logging.Discard())
	if err := bus.EmitProcessed(ctx, models.ProcessedEvent{}); !errors.Is(err, apperr.ErrPublish) {
		t.Fatalf("expected error without a rule target, got %v", err)
	}

	status := bus.Queue("status")
	bus.RouteProcessed(status)
	ev := models.ProcessedEvent{InsuredID: "01234", ScheduleID: 5, CountryISO: models.CountryPE}
	if err := bus.EmitProcessed(ctx, ev); err != nil {
		t.Fatalf("emit: %v", err)
	}

	var envelope events.CloudWatchEvent
	if err := json.Unmarshal([]byte(status.receive()[0].Body), &envelope); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	var got models.ProcessedEvent
	if err := json.Unmarshal(envelope.Detail, &got); err != nil || got != ev {
		t.Fatalf("unexpected detail %s", envelope.Detail)
	}
	if envelope.DetailType != EventDetailTypeDone {
		t.Fatalf("detail-type = %q", envelope.DetailType)
	}
}
