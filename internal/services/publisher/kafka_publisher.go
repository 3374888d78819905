package publisher

import (
	"context"

	"NFTAppraiser/internal/domain/models"
	pkgkafka "NFTAppraiser/pkg/kafka"
)

// KafkaTriggerPublisher writes retraining triggers to the dispatch topic,
// keyed by model id so triggers for one model stay ordered.
type KafkaTriggerPublisher struct {
	producer *pkgkafka.Producer
	topic    string
}

func NewKafkaTriggerPublisher(producer *pkgkafka.Producer, topic string) *KafkaTriggerPublisher {
	return &KafkaTriggerPublisher{producer: producer, topic: topic}
}

func (p *KafkaTriggerPublisher) PublishTriggers(ctx context.Context, triggers []models.RetrainingTrigger) error {
	if len(triggers) == 0 {
		return nil
	}
	msgs := make([]pkgkafka.Message, 0, len(triggers))
	for _, t := range triggers {
		msgs = append(msgs, pkgkafka.Message{
			Key:   []byte(t.ModelID),
			Value: t,
		})
	}
	return p.producer.PublishBatch(ctx, p.topic, msgs)
}
