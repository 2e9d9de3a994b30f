package batch

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/aws/aws-lambda-go/events"

	"github.com/kylejryan/appointment-lifecycle/internal/logging"
)

func sqsEvent(ids ...string) events.SQSEvent {
	ev := events.SQSEvent{}
	for _, id := range ids {
		ev.Records = append(ev.Records, events.SQSMessage{MessageId: id, Body: id})
	}
	return ev
}

func TestProcess_AttemptsEveryMessage(t *testing.T) {
	var seen []string
	resp := Process(context.Background(), "test", sqsEvent("m0", "m1", "m2", "m3"), logging.Discard(),
		func(_ context.Context, msg events.SQSMessage, _ *slog.Logger) error {
			seen = append(seen, msg.MessageId)
			switch msg.Body {
			case "m1":
				return errors.New("boom")
			case "m2":
				panic("unexpected")
			}
			return nil
		})

	if len(seen) != 4 {
		t.Fatalf("expected every message attempted, saw %v", seen)
	}
	if len(resp.BatchItemFailures) != 2 {
		t.Fatalf("expected 2 failures, got %+v", resp.BatchItemFailures)
	}
	if resp.BatchItemFailures[0].ItemIdentifier != "m1" || resp.BatchItemFailures[1].ItemIdentifier != "m2" {
		t.Fatalf("unexpected failures: %+v", resp.BatchItemFailures)
	}
}

func TestProcess_EmptyFailuresIsNotNil(t *testing.T) {
	resp := Process(context.Background(), "test", sqsEvent("m0"), logging.Discard(),
		func(context.Context, events.SQSMessage, *slog.Logger) error { return nil })
	if resp.BatchItemFailures == nil || len(resp.BatchItemFailures) != 0 {
		t.Fatalf("expected empty, non-nil failures, got %#v", resp.BatchItemFailures)
	}
}
