package broker

import (
	"context"
	"encoding/json"
	"fmt"

	"greenledger/internal/models"
	"greenledger/internal/util"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// EventPublisher handles publishing domain events
type EventPublisher struct {
	producer Publisher
}

// NewEventPublisher creates a new event publisher
func NewEventPublisher(producer Publisher) *EventPublisher {
	return &EventPublisher{producer: producer}
}

func (ep *EventPublisher) publish(ctx context.Context, key, eventType string, event interface{}) error {
	if err := ep.producer.PublishEvent(ctx, key, event); err != nil {
		return err
	}
	util.EventsPublishedTotal.WithLabelValues(eventType).Inc()
	return nil
}

// PublishQRGenerated publishes QRGenerated event
func (ep *EventPublisher) PublishQRGenerated(ctx context.Context, event *models.QRGeneratedEvent) error {
	return ep.publish(ctx, "qr-"+event.QRCodeID, event.EventType, event)
}

// PublishQRScanned publishes QRScanned event
func (ep *EventPublisher) PublishQRScanned(ctx context.Context, event *models.QRScannedEvent) error {
	return ep.publish(ctx, "qr-"+event.QRCodeID, event.EventType, event)
}

// PublishQRHistoryCleared publishes QRHistoryCleared event
func (ep *EventPublisher) PublishQRHistoryCleared(ctx context.Context, event *models.QRHistoryClearedEvent) error {
	return ep.publish(ctx, "qr-history", event.EventType, event)
}

// PublishFarmerQRGenerated publishes FarmerQRGenerated event
func (ep *EventPublisher) PublishFarmerQRGenerated(ctx context.Context, event *models.FarmerQRGeneratedEvent) error {
	return ep.publish(ctx, "farmer-"+event.FarmerID, event.EventType, event)
}

// PublishUserEvent publishes UserSignedUp and UserSignedIn events
func (ep *EventPublisher) PublishUserEvent(ctx context.Context, event *models.UserEvent) error {
	return ep.publish(ctx, "user-"+event.UserID, event.EventType, event)
}

// EventHandler routes incoming events. Every event goes to the audit
// callback; scans additionally go to the scan callback.
type EventHandler struct {
	onAny       func(context.Context, *models.BaseEvent, []byte) error
	onQRScanned func(context.Context, *models.QRScannedEvent) error
	logger      *zap.Logger
}

// NewEventHandler creates a new event handler
func NewEventHandler() *EventHandler {
	return &EventHandler{logger: util.Named("event-handler")}
}

// OnAny registers a handler that sees every event with its raw payload
func (eh *EventHandler) OnAny(handler func(context.Context, *models.BaseEvent, []byte) error) {
	eh.onAny = handler
}

// OnQRScanned registers a handler for QRScanned events
func (eh *EventHandler) OnQRScanned(handler func(context.Context, *models.QRScannedEvent) error) {
	eh.onQRScanned = handler
}

// HandleMessage routes messages to appropriate handlers
func (eh *EventHandler) HandleMessage(ctx context.Context, msg kafka.Message) error {
	var baseEvent models.BaseEvent
	if err := json.Unmarshal(msg.Value, &baseEvent); err != nil {
		return fmt.Errorf("failed to unmarshal base event: %w", err)
	}

	eh.logger.Debug("Handling event",
		zap.String("type", baseEvent.EventType),
		zap.String("id", baseEvent.EventID))

	switch baseEvent.EventType {
	case models.EventTypeQRScanned:
		if eh.onQRScanned != nil {
			var event models.QRScannedEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal QRScanned event: %w", err)
			}
			if err := eh.onQRScanned(ctx, &event); err != nil {
				return err
			}
		}

	case models.EventTypeQRGenerated, models.EventTypeQRHistoryCleared,
		models.EventTypeFarmerQRGenerated, models.EventTypeUserSignedUp, models.EventTypeUserSignedIn:

	default:
		eh.logger.Warn("Unhandled event type", zap.String("type", baseEvent.EventType))
		return nil
	}

	if eh.onAny != nil {
		if err := eh.onAny(ctx, &baseEvent, msg.Value); err != nil {
			return err
		}
	}
	util.EventsProcessedTotal.WithLabelValues(baseEvent.EventType).Inc()
	return nil
}
