package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/oklog/ulid/v2"

	"github.com/kylejryan/appointment-lifecycle/internal/apperr"
	"github.com/kylejryan/appointment-lifecycle/internal/metrics"
	"github.com/kylejryan/appointment-lifecycle/internal/models"
)

const (
	receiveCountAttr = "ApproximateReceiveCount"
	maxBatchSize     = 10
)

// Handler consumes a batch the way an SQS-triggered Lambda does.
type Handler func(ctx context.Context, ev events.SQSEvent) (events.SQSEventResponse, error)

// Queue is an in-process stand-in for an SQS queue with a redrive policy.
type Queue struct {
	name        string
	maxReceives int

	mu      sync.Mutex
	pending []events.SQSMessage
	dead    []events.SQSMessage
}

func (q *Queue) send(body string, attrs map[string]events.SQSMessageAttribute) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.pending = append(q.pending, events.SQSMessage{
		MessageId:         ulid.Make().String(),
		Body:              body,
		Attributes:        map[string]string{receiveCountAttr: "0"},
		MessageAttributes: attrs,
		EventSource:       "aws:sqs",
		EventSourceARN:    "arn:aws:sqs:local:000000000000:" + q.name,
	})
}

// Len reports how many messages wait for delivery.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// DeadLetters returns the messages that exhausted their receives.
func (q *Queue) DeadLetters() []events.SQSMessage {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]events.SQSMessage(nil), q.dead...)
}

// receive takes up to maxBatchSize messages and bumps their receive count.
func (q *Queue) receive() []events.SQSMessage {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := min(len(q.pending), maxBatchSize)
	batch := append([]events.SQSMessage(nil), q.pending[:n]...)
	q.pending = q.pending[n:]
	for i := range batch {
		count, _ := strconv.Atoi(batch[i].Attributes[receiveCountAttr])
		attrs := map[string]string{receiveCountAttr: strconv.Itoa(count + 1)}
		batch[i].Attributes = attrs
	}
	return batch
}

// settle requeues failed messages, or dead-letters them after maxReceives.
func (q *Queue) settle(failed []events.SQSMessage) (dead int) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, m := range failed {
		count, _ := strconv.Atoi(m.Attributes[receiveCountAttr])
		if count >= q.maxReceives {
			q.dead = append(q.dead, m)
			dead++
			continue
		}
		q.pending = append(q.pending, m)
	}
	return dead
}

type subscription struct {
	country models.CountryISO
	queue   *Queue
}

type consumer struct {
	queue   *Queue
	handler Handler
}

// Bus emulates the SNS topic, the EventBridge rule and the SQS queues of the
// deployed pipeline inside one process.
type Bus struct {
	maxReceives int
	log         *slog.Logger

	mu          sync.Mutex
	queues      map[string]*Queue
	subs        []subscription
	statusQueue *Queue
	consumers   []consumer
}

// NewBus returns an empty bus whose queues allow maxReceives deliveries per message.
func NewBus(maxReceives int, log *slog.Logger) *Bus {
	if maxReceives <= 0 {
		maxReceives = 3
	}
	return &Bus{
		maxReceives: maxReceives,
		log:         log.With("component", "local_bus"),
		queues:      make(map[string]*Queue),
	}
}

// Queue returns the queue called name, creating it on first use.
func (b *Bus) Queue(name string) *Queue {
	b.mu.Lock()
	defer b.mu.Unlock()
	if q, ok := b.queues[name]; ok {
		return q
	}
	q := &Queue{name: name, maxReceives: b.maxReceives}
	b.queues[name] = q
	return q
}

// SubscribeCountry delivers fan-out messages whose countryISO attribute equals country to q.
func (b *Bus) SubscribeCountry(country models.CountryISO, q *Queue) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs = append(b.subs, subscription{country: country, queue: q})
}

// RouteProcessed targets AppointmentProcessed events at q.
func (b *Bus) RouteProcessed(q *Queue) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.statusQueue = q
}

// Consume registers handler as the consumer of q.
func (b *Bus) Consume(q *Queue, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.consumers = append(b.consumers, consumer{queue: q, handler: handler})
}

// PublishAppointment fans req out to the matching country subscriptions with raw delivery.
func (b *Bus) PublishAppointment(_ context.Context, req models.AppointmentRequest) error {
	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("%w: encode appointment: %v", apperr.ErrPublish, err)
	}
	country := string(req.CountryISO)
	attrs := map[string]events.SQSMessageAttribute{
		CountryAttribute: {DataType: "String", StringValue: &country},
	}

	b.mu.Lock()
	subs := append([]subscription(nil), b.subs...)
	b.mu.Unlock()

	delivered := 0
	for _, s := range subs {
		if s.country == req.CountryISO {
			s.queue.send(string(body), attrs)
			delivered++
		}
	}
	if delivered == 0 {
		b.log.Warn("no subscription matched appointment", "country", req.CountryISO)
	}
	metrics.Published.WithLabelValues("appointment", country, metrics.OutcomeSuccess).Inc()
	return nil
}

// EmitProcessed wraps ev in an EventBridge envelope and routes it to the status queue.
func (b *Bus) EmitProcessed(_ context.Context, ev models.ProcessedEvent) error {
	b.mu.Lock()
	q := b.statusQueue
	b.mu.Unlock()
	if q == nil {
		return fmt.Errorf("%w: no rule targets %s", apperr.ErrPublish, EventDetailTypeDone)
	}

	detail, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("%w: encode processed event: %v", apperr.ErrPublish, err)
	}
	envelope, err := json.Marshal(events.CloudWatchEvent{
		Version:    "0",
		ID:         ulid.Make().String(),
		DetailType: EventDetailTypeDone,
		Source:     EventSource,
		AccountID:  "000000000000",
		Time:       time.Now().UTC(),
		Region:     "local",
		Resources:  []string{},
		Detail:     detail,
	})
	if err != nil {
		return fmt.Errorf("%w: encode envelope: %v", apperr.ErrPublish, err)
	}
	q.send(string(envelope), nil)
	metrics.Published.WithLabelValues("processed", string(ev.CountryISO), metrics.OutcomeSuccess).Inc()
	return nil
}

// Drain delivers one batch of q to handler and settles the outcome. A handler
// error fails the whole batch, as it does for a Lambda invocation.
func (b *Bus) Drain(ctx context.Context, q *Queue, handler Handler) int {
	batch := q.receive()
	if len(batch) == 0 {
		return 0
	}

	resp, err := handler(ctx, events.SQSEvent{Records: batch})
	var failed []events.SQSMessage
	if err != nil {
		b.log.Error("batch invocation failed", "queue", q.name, "error", err)
		failed = batch
	} else {
		ids := make(map[string]bool, len(resp.BatchItemFailures))
		for _, f := range resp.BatchItemFailures {
			ids[f.ItemIdentifier] = true
		}
		for _, m := range batch {
			if ids[m.MessageId] {
				failed = append(failed, m)
			}
		}
	}
	if dead := q.settle(failed); dead > 0 {
		b.log.Warn("messages moved to dead letter list", "queue", q.name, "count", dead)
	}
	return len(batch)
}

// Flush drains every consumer until no queue has pending messages.
func (b *Bus) Flush(ctx context.Context) {
	for {
		b.mu.Lock()
		consumers := append([]consumer(nil), b.consumers...)
		b.mu.Unlock()

		delivered := 0
		for _, c := range consumers {
			delivered += b.Drain(ctx, c.queue, c.handler)
		}
		if delivered == 0 {
			return
		}
	}
}

// Run flushes the bus every interval until ctx is done.
func (b *Bus) Run(ctx context.Context, interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			b.Flush(ctx)
		}
	}
}
