// Package events publishes coupon status transitions for downstream consumers.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/IBM/sarama"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

// StatusChange is emitted after a coupon status transition is committed.
type StatusChange struct {
	CouponIssueID int64     `json:"coupon_issue_id"`
	CampaignID    int64     `json:"campaign_id"`
	RecipientID   int64     `json:"recipient_id"`
	From          string    `json:"from,omitempty"`
	To            string    `json:"to"`
	Source        string    `json:"source"`
	At            time.Time `json:"at"`
}

type Publisher interface {
	Publish(ctx context.Context, change StatusChange) error
	Close(ctx context.Context)
}

// Noop is used when no broker is configured.
type Noop struct{}

func (Noop) Publish(context.Context, StatusChange) error { return nil }
func (Noop) Close(context.Context)                      {}

type kafkaPublisher struct {
	producer  sarama.AsyncProducer
	topic     string
	log       *slog.Logger
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// NewKafkaPublisher takes ownership of producer and starts draining its
// success and error channels.
func NewKafkaPublisher(producer sarama.AsyncProducer, topic string, log *slog.Logger) Publisher {
	if producer == nil || log == nil {
		panic("NewKafkaPublisher: nil dependencies provided")
	}
	if topic == "" {
		panic("NewKafkaPublisher: topic must not be empty")
	}
	p := &kafkaPublisher{producer: producer, topic: topic, log: log}
	p.wg.Add(2)
	go p.drainSuccesses()
	go p.drainErrors()
	return p
}

// NewSaramaProducer builds an async producer with acks from the leader.
func NewSaramaProducer(brokers []string) (sarama.AsyncProducer, error) {
	cfg := sarama.NewConfig()
	cfg.Producer.Return.Successes = true
	cfg.Producer.Return.Errors = true
	cfg.Producer.RequiredAcks = sarama.WaitForLocal
	cfg.Producer.Retry.Max = 3
	return sarama.NewAsyncProducer(brokers, cfg)
}

func (p *kafkaPublisher) drainSuccesses() {
	defer p.wg.Done()
	for msg := range p.producer.Successes() {
		p.log.Debug("status event delivered",
			slog.String("topic", msg.Topic),
			slog.Int64("offset", msg.Offset))
	}
}

func (p *kafkaPublisher) drainErrors() {
	defer p.wg.Done()
	for err := range p.producer.Errors() {
		p.log.Error("status event delivery failed",
			slog.String("topic", err.Msg.Topic),
			slog.Any("error", err.Err))
	}
}

func (p *kafkaPublisher) Publish(ctx context.Context, change StatusChange) error {
	ctx, span := otel.Tracer("events").Start(ctx, "events.Publish")
	defer span.End()

	data, err := json.Marshal(change)
	if err != nil {
		return fmt.Errorf("marshal status change: %w", err)
	}

	msg := &sarama.ProducerMessage{
		Topic:     p.topic,
		Key:       sarama.StringEncoder(strconv.FormatInt(change.CouponIssueID, 10)),
		Value:     sarama.ByteEncoder(data),
		Timestamp: change.At,
	}

	select {
	case p.producer.Input() <- msg:
		span.SetAttributes(
			attribute.String("kafka.topic", p.topic),
			attribute.String("coupon.status", change.To),
		)
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *kafkaPublisher) Close(_ context.Context) {
	p.closeOnce.Do(func() {
		p.producer.AsyncClose()
		p.wg.Wait()
		p.log.Info("status event publisher closed")
	})
}
