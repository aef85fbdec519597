package events

import (
	"context"
	"time"

	"github.com/Kilat-Pet-Delivery/service-fare/internal/domain/comparison"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	// TopicFareEvents is the default topic for comparison outcomes.
	TopicFareEvents = "fare.events"

	FareComparisonCompleted = "fare.comparison.completed"
	FareComparisonFailed    = "fare.comparison.failed"

	eventSource = "service-fare"
)

// EventWriter is the subset of Producer the publisher needs.
type EventWriter interface {
	PublishEvent(ctx context.Context, topic, key string, event CloudEvent) error
}

// OfferSummary is one priced provider inside a comparison event.
type OfferSummary struct {
	Service   string  `json:"service"`
	TotalFare float64 `json:"total_fare"`
	Cheapest  bool    `json:"cheapest"`
}

// FareComparisonEvent is the payload of fare.comparison.* events.
type FareComparisonEvent struct {
	SessionID  uuid.UUID      `json:"session_id"`
	RunID      uint64         `json:"run_id"`
	Stage      string         `json:"stage"`
	Pickup     string         `json:"pickup"`
	Drop       string         `json:"drop"`
	DistanceKm *float64       `json:"distance_km,omitempty"`
	Offers     []OfferSummary `json:"offers,omitempty"`
	Cheapest   string         `json:"cheapest,omitempty"`
	Failure    string         `json:"failure,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
}

// ComparisonPublisher emits the final view of each comparison run to Kafka.
type ComparisonPublisher struct {
	writer EventWriter
	topic  string
	logger *zap.Logger
}

// NewComparisonPublisher creates a new ComparisonPublisher.
func NewComparisonPublisher(writer EventWriter, topic string, logger *zap.Logger) *ComparisonPublisher {
	if topic == "" {
		topic = TopicFareEvents
	}
	return &ComparisonPublisher{
		writer: writer,
		topic:  topic,
		logger: logger,
	}
}

// Publish writes a completed or failed event for the view.
func (p *ComparisonPublisher) Publish(ctx context.Context, sessionID uuid.UUID, view comparison.View) error {
	evt := FareComparisonEvent{
		SessionID:  sessionID,
		RunID:      view.RunID,
		Stage:      view.Stage.String(),
		Pickup:     view.Pickup,
		Drop:       view.Drop,
		DistanceKm: view.DistanceKm,
		OccurredAt: time.Now().UTC(),
	}
	for _, o := range view.Offers {
		evt.Offers = append(evt.Offers, OfferSummary{
			Service:   o.Service,
			TotalFare: o.TotalFare,
			Cheapest:  o.Cheapest,
		})
	}
	if view.Cheapest != nil {
		evt.Cheapest = view.Cheapest.Service
	}

	eventType := FareComparisonCompleted
	if view.Failure != nil {
		eventType = FareComparisonFailed
		evt.Failure = view.Failure.String()
	}

	ce, err := NewCloudEvent(eventSource, eventType, evt)
	if err != nil {
		return err
	}
	ce.Subject = sessionID.String()

	if err := p.writer.PublishEvent(ctx, p.topic, sessionID.String(), ce); err != nil {
		p.logger.Error("failed to publish comparison event",
			zap.String("topic", p.topic),
			zap.String("event_type", eventType),
			zap.String("session_id", sessionID.String()),
			zap.Error(err),
		)
		return err
	}
	return nil
}

// NopPublisher discards every view. Used when no brokers are configured.
type NopPublisher struct{}

// Publish does nothing.
func (NopPublisher) Publish(context.Context, uuid.UUID, comparison.View) error {
	return nil
}
