// Package countryfn builds the Lambda entrypoint of a per-country processor.
package countryfn

import (
	"context"
	"io"
	"log/slog"
	"os"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge"

	"github.com/kylejryan/appointment-lifecycle/internal/awsutil"
	"github.com/kylejryan/appointment-lifecycle/internal/config"
	"github.com/kylejryan/appointment-lifecycle/internal/country"
	"github.com/kylejryan/appointment-lifecycle/internal/countrydb"
	"github.com/kylejryan/appointment-lifecycle/internal/logging"
	"github.com/kylejryan/appointment-lifecycle/internal/messaging"
	"github.com/kylejryan/appointment-lifecycle/internal/models"
)

// Build returns the processor for c backed by env's country store and emitter.
// The returned closer releases any database pools.
func Build(env config.Env, c models.CountryISO, emitter country.Emitter, log *slog.Logger) (*country.Processor, io.Closer, error) {
	store, err := countrydb.Open(env.CountryStoreDriver, log)
	if err != nil {
		return nil, nil, err
	}
	var closer io.Closer = nopCloser{}
	if pg, ok := store.(*countrydb.Postgres); ok {
		closer = closeFunc(pg.Close)
	}
	return country.NewProcessor(c, store, emitter, log), closer, nil
}

// Run starts the Lambda runtime for country c.
func Run(c models.CountryISO) {
	env := config.MustLoadCountry()
	log := logging.New(env.LogLevel, env.LogFormat).With("function", "appointment-"+string(c))
	slog.SetDefault(log)

	cfg, _, err := awsutil.Load(context.Background(), env.Region)
	if err != nil {
		log.Error("load aws config", "error", err)
		os.Exit(1)
	}
	emitter := messaging.NewEventBridgeEmitter(eventbridge.NewFromConfig(cfg), env.EventBusName, log)

	p, closer, err := Build(env, c, emitter, log)
	if err != nil {
		log.Error("build processor", "error", err)
		os.Exit(1)
	}
	defer closer.Close()

	lambda.Start(p.Handle)
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

type closeFunc func()

func (f closeFunc) Close() error {
	f()
	return nil
}
