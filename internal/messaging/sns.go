// Package messaging hands pipeline messages to the transport.
package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	snstypes "github.com/aws/aws-sdk-go-v2/service/sns/types"

	"github.com/kylejryan/appointment-lifecycle/internal/apperr"
	"github.com/kylejryan/appointment-lifecycle/internal/metrics"
	"github.com/kylejryan/appointment-lifecycle/internal/models"
)

// CountryAttribute is the message attribute country subscriptions filter on.
const CountryAttribute = "countryISO"

// SNSAPI is the subset of the SNS client the publisher needs.
type SNSAPI interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// SNSPublisher fans accepted requests out to the country queues.
type SNSPublisher struct {
	client   SNSAPI
	topicARN string
	log      *slog.Logger
}

// NewSNSPublisher returns a publisher on topicARN.
func NewSNSPublisher(client SNSAPI, topicARN string, log *slog.Logger) *SNSPublisher {
	return &SNSPublisher{client: client, topicARN: topicARN, log: log.With("component", "fanout")}
}

// PublishAppointment publishes req tagged with its country.
func (p *SNSPublisher) PublishAppointment(ctx context.Context, req models.AppointmentRequest) error {
	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("%w: encode appointment: %v", apperr.ErrPublish, err)
	}

	out, err := p.client.Publish(ctx, &sns.PublishInput{
		TopicArn: aws.String(p.topicARN),
		Message:  aws.String(string(body)),
		MessageAttributes: map[string]snstypes.MessageAttributeValue{
			CountryAttribute: {DataType: aws.String("String"), StringValue: aws.String(string(req.CountryISO))},
		},
	})
	if err != nil {
		metrics.Published.WithLabelValues("appointment", string(req.CountryISO), metrics.OutcomeFailure).Inc()
		return fmt.Errorf("%w: sns publish: %v", apperr.ErrPublish, err)
	}

	metrics.Published.WithLabelValues("appointment", string(req.CountryISO), metrics.OutcomeSuccess).Inc()
	p.log.Info("appointment published", "country", req.CountryISO, "sns_message_id", aws.ToString(out.MessageId))
	return nil
}
