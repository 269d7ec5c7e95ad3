package store

import (
	"context"

	"greenledger/internal/models"
)

// IsEventProcessed checks if an event has been processed
func (s *Store) IsEventProcessed(ctx context.Context, eventID string) (bool, error) {
	var exists bool
	err := s.db.GetContext(ctx, &exists,
		"SELECT EXISTS(SELECT 1 FROM processed_events WHERE event_id = $1)", eventID)
	return exists, err
}

// RecordEvent stores an event in the audit log. Recording the same event
// twice is a no-op.
func (s *Store) RecordEvent(ctx context.Context, rec *models.AuditRecord) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO processed_events (event_id, event_type, payload) VALUES ($1, $2, $3) ON CONFLICT (event_id) DO NOTHING",
		rec.EventID, rec.EventType, rec.Payload)
	return err
}

// ListEvents returns the most recent audit records, optionally of one type
func (s *Store) ListEvents(ctx context.Context, eventType string, limit int) ([]models.AuditRecord, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	var records []models.AuditRecord
	if eventType == "" {
		err := s.db.SelectContext(ctx, &records,
			"SELECT event_id, event_type, payload, processed_at FROM processed_events ORDER BY processed_at DESC LIMIT $1", limit)
		return records, err
	}
	err := s.db.SelectContext(ctx, &records,
		"SELECT event_id, event_type, payload, processed_at FROM processed_events WHERE event_type = $1 ORDER BY processed_at DESC LIMIT $2",
		eventType, limit)
	return records, err
}
