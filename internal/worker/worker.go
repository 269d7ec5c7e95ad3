package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"greenledger/internal/broker"
	"greenledger/internal/models"
	"greenledger/internal/util"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// AuditLog persists processed events exactly once
type AuditLog interface {
	IsEventProcessed(ctx context.Context, eventID string) (bool, error)
	RecordEvent(ctx context.Context, rec *models.AuditRecord) error
}

// ScanCounter keeps running scan totals
type ScanCounter interface {
	IncrScanCounts(ctx context.Context, farmerID, district string) error
}

// AuditWorker consumes domain events, writes them to the audit log and
// keeps the scan counters current. Either sink may be nil.
type AuditWorker struct {
	consumer     *broker.Consumer
	eventHandler *broker.EventHandler
	audit        AuditLog
	counters     ScanCounter
	logger       *zap.Logger
}

// NewAuditWorker creates a new audit worker
func NewAuditWorker(consumer *broker.Consumer, audit AuditLog, counters ScanCounter) *AuditWorker {
	w := &AuditWorker{
		consumer: consumer,
		audit:    audit,
		counters: counters,
		logger:   util.Named("audit-worker"),
	}

	eventHandler := broker.NewEventHandler()
	eventHandler.OnQRScanned(w.handleScan)
	eventHandler.OnAny(w.record)
	w.eventHandler = eventHandler
	return w
}

func (w *AuditWorker) handleScan(ctx context.Context, event *models.QRScannedEvent) error {
	if w.counters == nil {
		return nil
	}
	if err := w.counters.IncrScanCounts(ctx, event.FarmerID, event.District); err != nil {
		return fmt.Errorf("failed to update scan counters: %w", err)
	}
	return nil
}

func (w *AuditWorker) record(ctx context.Context, event *models.BaseEvent, payload []byte) error {
	if w.audit == nil {
		w.logger.Info("Event processed", zap.String("type", event.EventType), zap.String("id", event.EventID))
		return nil
	}
	rec := &models.AuditRecord{
		EventID:     event.EventID,
		EventType:   event.EventType,
		Payload:     payload,
		ProcessedAt: time.Now(),
	}
	if err := w.audit.RecordEvent(ctx, rec); err != nil {
		return fmt.Errorf("failed to record event: %w", err)
	}
	return nil
}

// HandleMessage skips events the audit log has already seen and routes
// the rest.
func (w *AuditWorker) HandleMessage(ctx context.Context, msg kafka.Message) error {
	if w.audit != nil {
		var base models.BaseEvent
		if err := json.Unmarshal(msg.Value, &base); err != nil {
			return fmt.Errorf("failed to unmarshal base event: %w", err)
		}
		processed, err := w.audit.IsEventProcessed(ctx, base.EventID)
		if err != nil {
			return fmt.Errorf("failed to check idempotency: %w", err)
		}
		if processed {
			w.logger.Debug("Event already processed", zap.String("id", base.EventID))
			return nil
		}
	}
	return w.eventHandler.HandleMessage(ctx, msg)
}

// Start consumes until ctx is cancelled
func (w *AuditWorker) Start(ctx context.Context) error {
	w.logger.Info("Starting audit worker")
	return w.consumer.StartConsuming(ctx, w.HandleMessage)
}

// Stop closes the consumer
func (w *AuditWorker) Stop() error {
	w.logger.Info("Stopping audit worker")
	return w.consumer.Close()
}
