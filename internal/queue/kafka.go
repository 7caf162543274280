package queue

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/confluentinc/confluent-kafka-go/kafka"
	"github.com/emrgen/linkstore/internal/index"
	"github.com/sirupsen/logrus"
)

const (
	flushTimeoutMs = 5000
	pollTimeoutMs  = 500
	consumerGroup  = "linkstore"
)

// KafkaIndexQueue publishes index changes as json messages keyed by record.
type KafkaIndexQueue struct {
	brokers  string
	topic    string
	producer *kafka.Producer

	mu        sync.Mutex
	consumers []*kafka.Consumer
}

func NewKafkaIndexQueue(brokers, topic string) (*KafkaIndexQueue, error) {
	producer, err := kafka.NewProducer(&kafka.ConfigMap{
		"bootstrap.servers": brokers,
		"acks":              "all",
	})
	if err != nil {
		return nil, err
	}

	// delivery reports are only logged
	go func() {
		for e := range producer.Events() {
			if m, ok := e.(*kafka.Message); ok && m.TopicPartition.Error != nil {
				logrus.Errorf("failed to deliver index change: %v", m.TopicPartition.Error)
			}
		}
	}()

	return &KafkaIndexQueue{brokers: brokers, topic: topic, producer: producer}, nil
}

func (q *KafkaIndexQueue) Publish(ctx context.Context, changes []index.Change) error {
	for _, change := range changes {
		value, err := json.Marshal(change)
		if err != nil {
			return err
		}

		err = q.producer.Produce(&kafka.Message{
			TopicPartition: kafka.TopicPartition{Topic: &q.topic, Partition: kafka.PartitionAny},
			Key:            []byte(change.Record.String()),
			Value:          value,
		}, nil)
		if err != nil {
			return err
		}
	}

	if left := q.producer.Flush(flushTimeoutMs); left > 0 {
		logrus.Warnf("%d index changes still queued after flush", left)
	}

	return ctx.Err()
}

func (q *KafkaIndexQueue) Subscribe(ctx context.Context) (<-chan index.Change, error) {
	consumer, err := kafka.NewConsumer(&kafka.ConfigMap{
		"bootstrap.servers": q.brokers,
		"group.id":          consumerGroup,
		"auto.offset.reset": "earliest",
	})
	if err != nil {
		return nil, err
	}
	if err := consumer.SubscribeTopics([]string{q.topic}, nil); err != nil {
		_ = consumer.Close()
		return nil, err
	}

	q.mu.Lock()
	q.consumers = append(q.consumers, consumer)
	q.mu.Unlock()

	out := make(chan index.Change)
	go func() {
		defer close(out)
		for ctx.Err() == nil {
			msg, err := consumer.ReadMessage(pollTimeoutMs)
			if err != nil {
				var kerr kafka.Error
				if errors.As(err, &kerr) && kerr.Code() == kafka.ErrTimedOut {
					continue
				}
				logrus.Errorf("failed to read index change: %v", err)
				return
			}

			var change index.Change
			if err := json.Unmarshal(msg.Value, &change); err != nil {
				logrus.Warnf("skipping malformed index change at %v: %v", msg.TopicPartition, err)
				continue
			}

			select {
			case out <- change:
			case <-ctx.Done():
				return
			}
		}
	}()

	return out, nil
}

func (q *KafkaIndexQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	var errs []error
	for _, c := range q.consumers {
		errs = append(errs, c.Close())
	}
	q.consumers = nil
	q.producer.Close()

	return errors.Join(errs...)
}
