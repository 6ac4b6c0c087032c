package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/iliyamo/deal-finder/internal/ingest"
)

// Consumer executes fetch requests read from a durable queue, one at a
// time.  Run keeps reconnecting until ctx is cancelled.
type Consumer struct {
	URL        string
	Queue      string
	Runner     ingest.JobRunner
	RunTimeout time.Duration
	Log        *slog.Logger
}

// Run connects to the broker and consumes until ctx is done.  Broker
// failures are logged and retried with a doubling backoff capped at 30s.
func (c *Consumer) Run(ctx context.Context) error {
	if c.Log == nil {
		c.Log = slog.Default()
	}
	if c.Queue == "" {
		c.Queue = DefaultFetchQueue
	}
	log := c.Log.With("component", "fetch-consumer", "queue", c.Queue)

	backoff := time.Second
	for {
		conn, err := amqp.Dial(c.URL)
		if err != nil {
			log.Warn("failed to dial broker", "error", err, "retry_in", backoff)
			if !sleep(ctx, backoff) {
				return ctx.Err()
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second // reset after successful connect
		log.Info("connected to broker")

		err = c.consumeLoop(ctx, conn)
		_ = conn.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		log.Warn("consume loop ended, reconnecting", "error", err)
		if !sleep(ctx, 2*time.Second) {
			return ctx.Err()
		}
	}
}

func (c *Consumer) consumeLoop(ctx context.Context, conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	// one unacknowledged run at a time
	if err := ch.Qos(1, 0, false); err != nil {
		c.Log.Warn("set QoS failed", "error", err)
	}
	if _, err := ch.QueueDeclare(c.Queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}
	msgs, err := ch.Consume(c.Queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-msgs:
			if !ok {
				return errors.New("deliveries channel closed")
			}
			if err := c.handle(ctx, d.Body); err != nil {
				c.Log.Error("fetch request failed", "error", err)
				_ = d.Nack(false, false) // reject, do not requeue to avoid tight loops
				continue
			}
			_ = d.Ack(false)
		}
	}
}

// handle decodes and runs one fetch request.
func (c *Consumer) handle(ctx context.Context, body []byte) error {
	ev, err := DecodeFetchRequested(body)
	if err != nil {
		return err
	}
	job := ev.Job
	if job.Source == "" {
		job.Source = ingest.SourceQueue
	}
	runCtx := ctx
	if c.RunTimeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, c.RunTimeout)
		defer cancel()
	}
	if _, err := c.Runner.Run(runCtx, job); err != nil {
		return fmt.Errorf("job %s: %w", job.ID, err)
	}
	return nil
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
