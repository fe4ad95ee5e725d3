package events

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/adjust/rmq/v5"
	"github.com/mmathieum/montransit/pkg/redis_client"
	"github.com/rs/zerolog/log"
)

const queueName = "analytics-events"

const numConsumers = 2
const batchSize = 50

// StartConsumers drains the analytics event queue in the background.
func StartConsumers() error {
	log.Info().Msg("Starting analytics event consumers")

	queue, err := redis_client.QueueConnection.OpenQueue(queueName)
	if err != nil {
		return err
	}

	if err := queue.StartConsuming(numConsumers*batchSize, 1*time.Second); err != nil {
		return err
	}

	for i := 0; i < numConsumers; i++ {
		if _, err := queue.AddBatchConsumer(fmt.Sprintf("analytics-events-%d", i), batchSize, 2*time.Second, NewBatchConsumer(i)); err != nil {
			return err
		}
	}

	return nil
}

type BatchConsumer struct {
	id int

	mutex  sync.Mutex
	counts map[string]int
}

func NewBatchConsumer(id int) *BatchConsumer {
	return &BatchConsumer{
		id:     id,
		counts: map[string]int{},
	}
}

func (consumer *BatchConsumer) Consume(batch rmq.Deliveries) {
	payloads := batch.Payloads()

	for _, payload := range payloads {
		var event Event
		if err := json.Unmarshal([]byte(payload), &event); err != nil {
			log.Error().Err(err).Str("payload", payload).Msg("Failed to decode analytics event")
			continue
		}

		consumer.record(event)
	}

	log.Info().Int("consumer", consumer.id).Int("events", len(payloads)).Msg("Consumed analytics events batch")

	if ackErrors := batch.Ack(); len(ackErrors) > 0 {
		log.Error().Int("failed", len(ackErrors)).Msg("Failed to acknowledge analytics events")
	}
}

func (consumer *BatchConsumer) record(event Event) {
	consumer.mutex.Lock()
	consumer.counts[event.Category+"/"+event.Action] += 1
	total := consumer.counts[event.Category+"/"+event.Action]
	consumer.mutex.Unlock()

	log.Debug().
		Str("category", event.Category).
		Str("action", event.Action).
		Str("label", event.Label).
		Int("total", total).
		Msg("Analytics event")
}
