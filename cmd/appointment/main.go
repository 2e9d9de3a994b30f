// Package main serves the appointment API and reconciles processed events.
//
// One function takes two triggers: API Gateway HTTP requests and the SQS
// queue fed by the AppointmentProcessed rule.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/sns"

	"github.com/kylejryan/appointment-lifecycle/internal/awsutil"
	"github.com/kylejryan/appointment-lifecycle/internal/config"
	"github.com/kylejryan/appointment-lifecycle/internal/ddb"
	"github.com/kylejryan/appointment-lifecycle/internal/intake"
	"github.com/kylejryan/appointment-lifecycle/internal/logging"
	"github.com/kylejryan/appointment-lifecycle/internal/messaging"
	"github.com/kylejryan/appointment-lifecycle/internal/reconcile"
)

var errUnsupportedEvent = errors.New("unsupported event shape")

// App holds the two handlers this function dispatches to.
type App struct {
	http       *intake.Handler
	reconciler *reconcile.Reconciler
	log        *slog.Logger
}

// probe holds just enough of an event to tell the triggers apart.
type probe struct {
	Records []struct {
		EventSource string `json:"eventSource"`
	} `json:"Records"`
	RequestContext json.RawMessage `json:"requestContext"`
}

// handler decodes raw as the event type its shape indicates.
func (a *App) handler(ctx context.Context, raw json.RawMessage) (any, error) {
	var p probe
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, err
	}

	switch {
	case len(p.Records) > 0 && p.Records[0].EventSource == "aws:sqs":
		var ev events.SQSEvent
		if err := json.Unmarshal(raw, &ev); err != nil {
			return nil, err
		}
		return a.reconciler.Handle(ctx, ev)
	case len(p.RequestContext) > 0:
		var req events.APIGatewayV2HTTPRequest
		if err := json.Unmarshal(raw, &req); err != nil {
			return nil, err
		}
		return a.http.HandleHTTP(ctx, req)
	default:
		a.log.Error("unsupported event", "bytes", len(raw))
		return nil, errUnsupportedEvent
	}
}

func main() {
	env := config.MustLoadAppointment()
	log := logging.New(env.LogLevel, env.LogFormat).With("function", "appointment")
	slog.SetDefault(log)

	cfg, _, err := awsutil.Load(context.Background(), env.Region)
	if err != nil {
		log.Error("load aws config", "error", err)
		os.Exit(1)
	}

	repo := ddb.NewRepo(dynamodb.NewFromConfig(cfg), env.Table, log)
	publisher := messaging.NewSNSPublisher(sns.NewFromConfig(cfg), env.TopicARN, log)

	app := &App{
		http:       intake.NewHandler(intake.NewOrchestrator(repo, publisher, log), log),
		reconciler: reconcile.New(repo, log),
		log:        log,
	}
	lambda.Start(app.handler)
}
