package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/IBM/sarama"
	"github.com/sirupsen/logrus"

	"github.com/arpitbanna/url-shortener/internal/models"
)

// EventHandler receives decoded click events from the consumer group.
type EventHandler interface {
	HandleEvent(ctx context.Context, ev *models.ClickEvent)
}

type Consumer struct {
	handler       EventHandler
	consumerGroup sarama.ConsumerGroup
	topics        []string
	ready         chan bool
}

type ConsumerConfig struct {
	Brokers []string
	GroupID string
	Topics  []string
}

func NewConsumer(config ConsumerConfig, handler EventHandler) (*Consumer, error) {
	saramaConfig := sarama.NewConfig()
	saramaConfig.Version = sarama.V2_6_0_0
	saramaConfig.Consumer.Group.Rebalance.Strategy = sarama.NewBalanceStrategyRoundRobin()
	saramaConfig.Consumer.Offsets.Initial = sarama.OffsetNewest
	saramaConfig.Consumer.Return.Errors = true

	consumerGroup, err := sarama.NewConsumerGroup(config.Brokers, config.GroupID, saramaConfig)
	if err != nil {
		return nil, fmt.Errorf("create consumer group: %w", err)
	}

	return &Consumer{
		handler:       handler,
		consumerGroup: consumerGroup,
		topics:        config.Topics,
		ready:         make(chan bool),
	}, nil
}

func (c *Consumer) Start(ctx context.Context) error {
	handler := &consumerGroupHandler{consumer: c, ready: c.ready}

	go func() {
		for {
			if err := c.consumerGroup.Consume(ctx, c.topics, handler); err != nil {
				logrus.WithError(err).Error("consumer error")
			}
			if ctx.Err() != nil {
				return
			}
		}
	}()

	<-c.ready
	logrus.Info("kafka consumer started")
	return nil
}

func (c *Consumer) Close() error {
	return c.consumerGroup.Close()
}

type consumerGroupHandler struct {
	consumer  *Consumer
	ready     chan bool
	readyOnce sync.Once
}

// Setup signals readiness once; later rebalances reuse the same handler.
func (h *consumerGroupHandler) Setup(sarama.ConsumerGroupSession) error {
	h.readyOnce.Do(func() { close(h.ready) })
	return nil
}

func (h *consumerGroupHandler) Cleanup(sarama.ConsumerGroupSession) error {
	return nil
}

func (h *consumerGroupHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claims sarama.ConsumerGroupClaim) error {
	for {
		select {
		case message := <-claims.Messages():
			if message == nil {
				return nil
			}

			var event models.ClickEvent
			if err := json.Unmarshal(message.Value, &event); err != nil {
				logrus.WithError(err).Warn("drop malformed click event")
				session.MarkMessage(message, "")
				continue
			}

			h.consumer.handler.HandleEvent(session.Context(), &event)
			session.MarkMessage(message, "")
		case <-session.Context().Done():
			return nil
		}
	}
}
