package events

import (
	"strings"
	"time"

	"github.com/IBM/sarama"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

type SaramaProducer struct {
	producer sarama.SyncProducer
	log      logrus.FieldLogger
}

func NewSaramaProducer(brokers string, log logrus.FieldLogger) (*SaramaProducer, error) {
	saramaConfig := sarama.NewConfig()
	saramaConfig.Producer.RequiredAcks = sarama.WaitForAll
	saramaConfig.Producer.Retry.Max = 5
	saramaConfig.Producer.Retry.Backoff = 100 * time.Millisecond
	saramaConfig.Producer.Return.Successes = true // Must be true for SyncProducer
	saramaConfig.Producer.Idempotent = true
	saramaConfig.Net.MaxOpenRequests = 1
	saramaConfig.Net.DialTimeout = 30 * time.Second
	saramaConfig.Net.ReadTimeout = 30 * time.Second
	saramaConfig.Net.WriteTimeout = 30 * time.Second
	saramaConfig.Version = sarama.V2_8_0_0

	brokerList := strings.Split(brokers, ",")

	producer, err := sarama.NewSyncProducer(brokerList, saramaConfig)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create Sarama producer")
	}

	log.WithField("brokers", brokerList).Info("Sarama producer created")
	return NewSaramaProducerFrom(producer, log), nil
}

// NewSaramaProducerFrom wraps an existing producer, such as a sarama mock.
func NewSaramaProducerFrom(producer sarama.SyncProducer, log logrus.FieldLogger) *SaramaProducer {
	return &SaramaProducer{producer: producer, log: log}
}

func (s *SaramaProducer) WriteMessage(topic string, msg []byte) error {
	return s.WriteKeyed(topic, "", msg)
}

// WriteKeyed sends msg with a partition key so messages of one order stay in
// order.
func (s *SaramaProducer) WriteKeyed(topic, key string, msg []byte) error {
	if s.producer == nil {
		return errors.New("Sarama producer is not initialized")
	}

	message := &sarama.ProducerMessage{
		Topic: topic,
		Value: sarama.ByteEncoder(msg),
	}
	if key != "" {
		message.Key = sarama.StringEncoder(key)
	}
	partition, offset, err := s.producer.SendMessage(message)
	if err != nil {
		s.log.WithError(err).WithField("topic", topic).Error("failed to send message")
		return err
	}
	s.log.WithFields(logrus.Fields{"topic": topic, "partition": partition, "offset": offset}).Debug("message sent")
	return nil
}

func (s *SaramaProducer) Close() error {
	if s.producer != nil {
		return s.producer.Close()
	}
	return nil
}
