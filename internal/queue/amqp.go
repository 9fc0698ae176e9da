package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/streadway/amqp"
)

const retryHeader = "x-retry-count"

// AMQPQueue maps topics onto durable RabbitMQ queues. Failed jobs are
// republished with an incremented retry header until MaxRetries.
type AMQPQueue struct {
	conn       *amqp.Connection
	pub        *amqp.Channel
	pubMu      sync.Mutex
	log        *slog.Logger
	wg         sync.WaitGroup
	MaxRetries int
}

func DialAMQP(url string, log *slog.Logger) (*AMQPQueue, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("connect to rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	return &AMQPQueue{conn: conn, pub: ch, log: log, MaxRetries: 3}, nil
}

func declare(ch *amqp.Channel, name string) error {
	_, err := ch.QueueDeclare(
		name,  // name
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		return fmt.Errorf("declare queue %s: %w", name, err)
	}
	return nil
}

func (q *AMQPQueue) Publish(ctx context.Context, topic string, job Job) error {
	if job.EnqueuedAt.IsZero() {
		job.EnqueuedAt = time.Now().UTC()
	}
	return q.publish(ctx, topic, job, 0)
}

func (q *AMQPQueue) publish(_ context.Context, topic string, job Job, retries int) error {
	body, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}

	q.pubMu.Lock()
	defer q.pubMu.Unlock()
	if err := declare(q.pub, topic); err != nil {
		return err
	}
	return q.pub.Publish("", topic, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    job.RequestID,
		Timestamp:    job.EnqueuedAt,
		Headers:      amqp.Table{retryHeader: int32(retries)},
		Body:         body,
	})
}

// Subscribe consumes topic on its own channel with manual acks.
func (q *AMQPQueue) Subscribe(ctx context.Context, topic string, handler Handler) error {
	ch, err := q.conn.Channel()
	if err != nil {
		return fmt.Errorf("open channel: %w", err)
	}
	if err := declare(ch, topic); err != nil {
		ch.Close()
		return err
	}
	if err := ch.Qos(1, 0, false); err != nil {
		ch.Close()
		return fmt.Errorf("set qos: %w", err)
	}
	msgs, err := ch.Consume(
		topic,
		"",
		false, // autoAck = false for reliability
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		ch.Close()
		return fmt.Errorf("register consumer: %w", err)
	}

	q.wg.Add(1)
	go func() {
		defer q.wg.Done()
		defer ch.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case d, ok := <-msgs:
				if !ok {
					return
				}
				q.deliver(ctx, topic, d, handler)
			}
		}
	}()
	return nil
}

func (q *AMQPQueue) deliver(ctx context.Context, topic string, d amqp.Delivery, handler Handler) {
	var job Job
	if err := json.Unmarshal(d.Body, &job); err != nil {
		q.log.Error("dropping malformed job", slog.String("topic", topic), slog.Any("error", err))
		_ = d.Ack(false)
		return
	}

	log := q.log.With(slog.String("job_type", job.Type), slog.String("request_id", job.RequestID))
	err := handler(ctx, job)
	if err == nil {
		_ = d.Ack(false)
		return
	}

	retries := retryCount(d.Headers)
	if retries >= q.MaxRetries {
		log.Error("job permanently failed", slog.Int("attempts", retries+1), slog.Any("error", err))
		_ = d.Ack(false)
		return
	}
	log.Warn("job failed, requeueing", slog.Int("attempt", retries+1), slog.Any("error", err))
	if perr := q.publish(ctx, topic, job, retries+1); perr != nil {
		log.Error("requeue failed", slog.Any("error", perr))
		_ = d.Nack(false, true)
		return
	}
	_ = d.Ack(false)
}

// retryCount reads the retry header whatever integer type the broker
// handed back.
func retryCount(h amqp.Table) int {
	switch v := h[retryHeader].(type) {
	case int:
		return v
	case int16:
		return int(v)
	case int32:
		return int(v)
	case int64:
		return int(v)
	}
	return 0
}

func (q *AMQPQueue) Close() error {
	q.pubMu.Lock()
	_ = q.pub.Close()
	q.pubMu.Unlock()
	err := q.conn.Close()
	q.wg.Wait()
	return err
}
