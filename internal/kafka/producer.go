package kafka

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"github.com/sirupsen/logrus"

	"github.com/arpitbanna/url-shortener/internal/models"
)

type Producer struct {
	producer sarama.SyncProducer
	topic    string
}

type ProducerConfig struct {
	Brokers []string
	Topic   string
}

func NewProducer(config ProducerConfig) (*Producer, error) {
	saramaConfig := sarama.NewConfig()
	saramaConfig.Version = sarama.V2_6_0_0
	saramaConfig.Producer.RequiredAcks = sarama.WaitForAll
	saramaConfig.Producer.Retry.Max = 5
	saramaConfig.Producer.Return.Successes = true
	saramaConfig.Producer.Compression = sarama.CompressionSnappy
	saramaConfig.Producer.Partitioner = sarama.NewHashPartitioner

	producer, err := sarama.NewSyncProducer(config.Brokers, saramaConfig)
	if err != nil {
		return nil, fmt.Errorf("create producer: %w", err)
	}

	logrus.Info("kafka producer initialized")
	return &Producer{
		producer: producer,
		topic:    config.Topic,
	}, nil
}

// SendClickEvent publishes one click event, keyed by short code so that
// events for the same URL land on the same partition.
func (p *Producer) SendClickEvent(event *models.ClickEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal click event: %w", err)
	}

	message := &sarama.ProducerMessage{
		Topic:     p.topic,
		Key:       sarama.StringEncoder(event.Code),
		Value:     sarama.ByteEncoder(payload),
		Timestamp: time.Now(),
	}

	if _, _, err := p.producer.SendMessage(message); err != nil {
		return fmt.Errorf("send click event: %w", err)
	}
	return nil
}

func (p *Producer) Close() error {
	if err := p.producer.Close(); err != nil {
		return fmt.Errorf("close producer: %w", err)
	}
	return nil
}
