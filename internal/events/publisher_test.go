package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unclebandit/coupon-dispatch/internal/logger"
)

func TestKafkaPublisher_PublishesKeyedByIssue(t *testing.T) {
	cfg := mocks.NewTestConfig()
	cfg.Producer.Return.Successes = true
	producer := mocks.NewAsyncProducer(t, cfg)

	var captured []byte
	producer.ExpectInputWithMessageCheckerFunctionAndSucceed(func(msg *sarama.ProducerMessage) error {
		key, err := msg.Key.Encode()
		require.NoError(t, err)
		assert.Equal(t, "42", string(key))
		captured, err = msg.Value.Encode()
		return err
	})

	pub := NewKafkaPublisher(producer, "coupon.status", logger.Discard())
	err := pub.Publish(context.Background(), StatusChange{
		CouponIssueID: 42,
		CampaignID:    7,
		From:          "SENT",
		To:            "DELIVERED",
		Source:        "SNAP",
		At:            time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	pub.Close(context.Background())

	var got StatusChange
	require.NoError(t, json.Unmarshal(captured, &got))
	assert.Equal(t, "DELIVERED", got.To)
	assert.Equal(t, "SNAP", got.Source)
}

func TestNoop(t *testing.T) {
	var p Publisher = Noop{}
	assert.NoError(t, p.Publish(context.Background(), StatusChange{}))
	p.Close(context.Background())
}
