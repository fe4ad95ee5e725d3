// Package events delivers fire-and-forget analytics events raised when an
// upstream source reports a logical error or an unexpected HTTP status.
package events

import (
	"encoding/json"

	"github.com/adjust/rmq/v5"
	"github.com/mmathieum/montransit/pkg/util"
	"github.com/rs/zerolog/log"
)

// Sink receives analytics events. Implementations must never block the
// caller on delivery failure.
type Sink interface {
	TrackEvent(category string, action string, label string, value int)
}

type Event struct {
	Category string `json:"category"`
	Action   string `json:"action"`
	Label    string `json:"label"`
	Value    int    `json:"value"`
}

// LogSink writes events to the application log. Used when no queue
// connection is configured.
type LogSink struct{}

func (LogSink) TrackEvent(category string, action string, label string, value int) {
	log.Info().
		Str("category", category).
		Str("action", action).
		Str("label", label).
		Int("value", value).
		Msg("Analytics event")
}

// QueueSink publishes events onto a Redis-backed queue for the analytics
// consumer to drain.
type QueueSink struct {
	Queue rmq.Queue
}

func NewQueueSink(connection rmq.Connection) (*QueueSink, error) {
	queue, err := connection.OpenQueue("analytics-events")
	if err != nil {
		return nil, err
	}

	return &QueueSink{Queue: queue}, nil
}

func (s *QueueSink) TrackEvent(category string, action string, label string, value int) {
	event := Event{
		Category: category,
		Action:   action,
		Label:    util.TrimString(label, 128),
		Value:    value,
	}

	payload, err := json.Marshal(event)
	if err != nil {
		log.Error().Err(err).Msg("Failed to marshal analytics event")
		return
	}

	if err := s.Queue.Publish(string(payload)); err != nil {
		log.Error().Err(err).Msg("Failed to publish analytics event")
	}
}
