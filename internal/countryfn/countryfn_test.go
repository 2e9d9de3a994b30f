package countryfn

import (
	"context"
	"testing"

	"github.com/aws/aws-lambda-go/events"

	"github.com/kylejryan/appointment-lifecycle/internal/config"
	"github.com/kylejryan/appointment-lifecycle/internal/logging"
	"github.com/kylejryan/appointment-lifecycle/internal/models"
)

type countingEmitter int

func (c *countingEmitter) EmitProcessed(context.Context, models.ProcessedEvent) error {
	*c++
	return nil
}

func TestBuild_Memory(t *testing.T) {
	var emitted countingEmitter
	p, closer, err := Build(config.Env{CountryStoreDriver: config.DriverMemory}, models.CountryPE, &emitted, logging.Discard())
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	defer closer.Close()

	resp, _ := p.Handle(context.Background(), events.SQSEvent{Records: []events.SQSMessage{
		{MessageId: "m0", Body: `{"insuredId":"01234","scheduleId":1,"countryISO":"PE"}`},
	}})
	if len(resp.BatchItemFailures) != 0 || emitted != 1 {
		t.Fatalf("failures=%v emitted=%d", resp.BatchItemFailures, emitted)
	}
}

func TestBuild_UnknownDriver(t *testing.T) {
	if _, _, err := Build(config.Env{CountryStoreDriver: "oracle"}, models.CountryCL, new(countingEmitter), logging.Discard()); err == nil {
		t.Fatal("expected error for unknown driver")
	}
}
