package event

import (
	"context"
	"encoding/json"

	"github.com/IBM/sarama"
	"github.com/pkg/errors"
)

// KafkaPublisher 用任务名字作为消息的 key，这样同一个任务的事件都在同一个分区里面，是有序的
type KafkaPublisher struct {
	producer sarama.SyncProducer
	topic    string
}

func NewKafkaPublisher(producer sarama.SyncProducer, topic string) *KafkaPublisher {
	return &KafkaPublisher{
		producer: producer,
		topic:    topic,
	}
}

func (p *KafkaPublisher) Publish(ctx context.Context, evt LockEvent) error {
	val, err := json.Marshal(evt)
	if err != nil {
		return errors.Wrap(err, "序列化锁事件")
	}
	_, _, err = p.producer.SendMessage(&sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(evt.Name),
		Value: sarama.ByteEncoder(val),
	})
	if err != nil {
		return errors.Wrap(err, "发送锁事件")
	}
	return nil
}
