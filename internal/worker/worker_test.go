package worker

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"greenledger/internal/models"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryAudit struct {
	records map[string]*models.AuditRecord
}

func (a *memoryAudit) IsEventProcessed(ctx context.Context, eventID string) (bool, error) {
	_, ok := a.records[eventID]
	return ok, nil
}

func (a *memoryAudit) RecordEvent(ctx context.Context, rec *models.AuditRecord) error {
	a.records[rec.EventID] = rec
	return nil
}

type memoryCounters struct {
	byFarmer map[string]int
}

func (c *memoryCounters) IncrScanCounts(ctx context.Context, farmerID, district string) error {
	c.byFarmer[farmerID]++
	return nil
}

func scanMessage(t *testing.T, id string) kafka.Message {
	t.Helper()
	b, err := json.Marshal(&models.QRScannedEvent{
		BaseEvent: models.BaseEvent{EventID: id, EventType: models.EventTypeQRScanned, Timestamp: time.Now()},
		QRCodeID:  "CONS-a-b",
		FarmerID:  "FRM005",
		District:  "Balasore",
	})
	require.NoError(t, err)
	return kafka.Message{Value: b}
}

func TestAuditWorkerIsIdempotent(t *testing.T) {
	audit := &memoryAudit{records: map[string]*models.AuditRecord{}}
	counters := &memoryCounters{byFarmer: map[string]int{}}
	w := NewAuditWorker(nil, audit, counters)
	ctx := context.Background()

	msg := scanMessage(t, "evt-1")
	require.NoError(t, w.HandleMessage(ctx, msg))
	require.NoError(t, w.HandleMessage(ctx, msg))
	require.NoError(t, w.HandleMessage(ctx, scanMessage(t, "evt-2")))

	assert.Len(t, audit.records, 2)
	assert.Equal(t, models.EventTypeQRScanned, audit.records["evt-1"].EventType)
	assert.Equal(t, 2, counters.byFarmer["FRM005"])
}

func TestAuditWorkerWithoutSinks(t *testing.T) {
	w := NewAuditWorker(nil, nil, nil)
	assert.NoError(t, w.HandleMessage(context.Background(), scanMessage(t, "evt-3")))
}

type fakeLocker struct {
	held     bool
	released int
}

func (l *fakeLocker) AcquireLock(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	if l.held {
		return false, nil
	}
	return true, nil
}

func (l *fakeLocker) ReleaseLock(ctx context.Context, key string) error {
	l.released++
	return nil
}

func TestHousekeepingRunOnce(t *testing.T) {
	calls := 0
	tasks := []PurgeTask{
		{Kind: "otp", Purge: func(ctx context.Context) (int, error) { calls++; return 3, nil }},
		{Kind: "session", Purge: func(ctx context.Context) (int, error) { calls++; return 0, errors.New("boom") }},
		{Kind: "login_flow", Purge: func(ctx context.Context) (int, error) { calls++; return 1, nil }},
	}

	locker := &fakeLocker{}
	h := NewHousekeeping(time.Minute, locker, tasks...)

	purged := h.RunOnce(context.Background())
	assert.Equal(t, map[string]int{"otp": 3, "session": 0, "login_flow": 1}, purged)
	assert.Equal(t, 3, calls)
	assert.Equal(t, 1, locker.released)

	locker.held = true
	purged = h.RunOnce(context.Background())
	assert.Empty(t, purged)
	assert.Equal(t, 3, calls)
}

func TestHousekeepingStartStops(t *testing.T) {
	ran := make(chan struct{}, 1)
	h := NewHousekeeping(20*time.Millisecond, nil, PurgeTask{Kind: "otp", Purge: func(ctx context.Context) (int, error) {
		select {
		case ran <- struct{}{}:
		default:
		}
		return 0, nil
	}})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.Start(ctx) }()

	select {
	case <-ran:
	case <-time.After(2 * time.Second):
		t.Fatal("housekeeping never ran")
	}
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("housekeeping did not stop")
	}
}
