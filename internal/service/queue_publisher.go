// Package queue_publisher publishes fetch requests to RabbitMQ.  It is the
// broker-backed ingest.Dispatcher used when FETCH_BACKEND=amqp.
package queue_publisher

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/iliyamo/deal-finder/internal/ingest"
	q "github.com/iliyamo/deal-finder/internal/queue"
)

// Publisher implements ingest.Dispatcher by publishing a FetchRequestedEvent.
type Publisher struct {
	URL   string
	Queue string
	Log   *slog.Logger
}

func New(url, queue string, log *slog.Logger) *Publisher {
	if queue == "" {
		queue = q.DefaultFetchQueue
	}
	if log == nil {
		log = slog.Default()
	}
	return &Publisher{URL: url, Queue: queue, Log: log}
}

var _ ingest.Dispatcher = (*Publisher)(nil)

// Submit publishes job as a persistent message.  Errors are logged and
// returned; the job is not run locally as a fallback.
func (p *Publisher) Submit(ctx context.Context, job ingest.Job) error {
	body, err := q.EncodeFetchRequested(job)
	if err != nil {
		return fmt.Errorf("marshal fetch event: %w", err)
	}

	conn, err := amqp.Dial(p.URL)
	if err != nil {
		p.Log.Error("rabbitmq dial failed", "error", err)
		return fmt.Errorf("dial broker: %w", err)
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		p.Log.Error("rabbitmq channel open failed", "error", err)
		return fmt.Errorf("open channel: %w", err)
	}
	defer func() { _ = ch.Close() }()

	// Ensure the queue exists (idempotent). Durable so messages survive broker restarts.
	if _, err := ch.QueueDeclare(
		p.Queue, // name
		true,    // durable
		false,   // autoDelete
		false,   // exclusive
		false,   // noWait
		nil,     // args
	); err != nil {
		p.Log.Error("rabbitmq queue declare failed", "queue", p.Queue, "error", err)
		return fmt.Errorf("declare queue: %w", err)
	}

	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent, // store on disk
		MessageId:    job.ID,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}
	if err := ch.PublishWithContext(ctx,
		"",      // default exchange
		p.Queue, // routing key = queue name
		false,   // mandatory
		false,   // immediate
		pub,
	); err != nil {
		p.Log.Error("rabbitmq publish failed", "job_id", job.ID, "error", err)
		return fmt.Errorf("publish: %w", err)
	}
	return nil
}
