// Package history is the QR ledger: every generated product QR code as
// one JSON array, newest first, plus the farmer identity codes.
package history

import (
	"context"
	"errors"
	"fmt"
	"time"

	"greenledger/internal/kv"
	"greenledger/internal/models"
	"greenledger/internal/qrcode"
	"greenledger/internal/util"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// ErrNotFound is returned when no entry has the requested id
var ErrNotFound = errors.New("qr history entry not found")

// EntryPatch carries the editable fields of an entry; nil fields are left alone
type EntryPatch struct {
	ProductName      *string  `json:"productName"`
	Quantity         *float64 `json:"quantity" binding:"omitempty,gt=0"`
	Unit             *string  `json:"unit"`
	Price            *float64 `json:"price" binding:"omitempty,gte=0"`
	QualityGrade     *string  `json:"qualityGrade" binding:"omitempty,oneof=A B C"`
	OrganicCertified *bool    `json:"organicCertified"`
	WarehouseID      *string  `json:"warehouseId"`
	WarehouseName    *string  `json:"warehouseName"`
}

func (p EntryPatch) apply(e *models.QRHistoryEntry) {
	if p.ProductName != nil {
		e.ProductName = *p.ProductName
	}
	if p.Quantity != nil {
		e.Quantity = *p.Quantity
	}
	if p.Unit != nil {
		e.Unit = *p.Unit
	}
	if p.Price != nil {
		e.Price = *p.Price
	}
	if p.QualityGrade != nil {
		e.QualityGrade = *p.QualityGrade
	}
	if p.OrganicCertified != nil {
		e.OrganicCertified = *p.OrganicCertified
	}
	if p.WarehouseID != nil {
		e.WarehouseID = *p.WarehouseID
	}
	if p.WarehouseName != nil {
		e.WarehouseName = *p.WarehouseName
	}
}

// Manager reads and writes the product QR ledger
type Manager struct {
	store     kv.Store
	gen       *qrcode.Generator
	seedCount int
	logger    *zap.Logger
}

// NewManager creates a history manager. seedCount <= 0 disables seeding.
func NewManager(store kv.Store, gen *qrcode.Generator, seedCount int) *Manager {
	if gen == nil {
		gen = qrcode.Default()
	}
	return &Manager{
		store:     store,
		gen:       gen,
		seedCount: seedCount,
		logger:    util.Named("qr-history"),
	}
}

func (m *Manager) seed() []models.QRHistoryEntry {
	if m.seedCount <= 0 {
		return []models.QRHistoryEntry{}
	}
	util.QRHistorySeededTotal.Inc()
	m.logger.Info("Seeding empty QR history", zap.Int("count", m.seedCount))
	return SeedEntries(m.gen, m.seedCount)
}

// GetHistory returns every entry, newest first. The first read of a
// never-written ledger seeds it.
func (m *Manager) GetHistory(ctx context.Context) ([]models.QRHistoryEntry, error) {
	ctx, span := util.StartSpan(ctx, "HistoryManager.GetHistory")
	defer span.End()

	var entries []models.QRHistoryEntry
	_, err := kv.GetJSON(ctx, m.store, kv.KeyQRHistory, &entries)
	if err == nil {
		return entries, nil
	}
	if !errors.Is(err, kv.ErrNotFound) {
		m.logger.Error("Failed to read QR history", zap.Error(err))
		return nil, util.RecordError(span, err)
	}

	err = kv.UpdateJSON(ctx, m.store, kv.KeyQRHistory, func(v *[]models.QRHistoryEntry, exists bool) error {
		if !exists {
			*v = m.seed()
		}
		entries = *v
		return nil
	})
	if err != nil {
		m.logger.Error("Failed to seed QR history", zap.Error(err))
		return nil, util.RecordError(span, err)
	}
	return entries, nil
}

func (m *Manager) update(ctx context.Context, fn func(entries *[]models.QRHistoryEntry) error) error {
	err := kv.UpdateJSON(ctx, m.store, kv.KeyQRHistory, func(v *[]models.QRHistoryEntry, exists bool) error {
		if !exists {
			*v = m.seed()
		}
		return fn(v)
	})
	if err != nil && !errors.Is(err, ErrNotFound) {
		m.logger.Error("Failed to write QR history", zap.Error(err))
	}
	return err
}

// AddEntry puts entry at the head of the history
func (m *Manager) AddEntry(ctx context.Context, entry models.QRHistoryEntry) error {
	ctx, span := util.StartSpan(ctx, "HistoryManager.AddEntry", attribute.String("qr_code_id", entry.QRCodeID))
	defer span.End()

	if entry.DateGenerated.IsZero() {
		entry.DateGenerated = time.Now()
	}

	return util.RecordError(span, m.update(ctx, func(entries *[]models.QRHistoryEntry) error {
		*entries = append([]models.QRHistoryEntry{entry}, *entries...)
		return nil
	}))
}

// UpdateEntry applies patch to the entry with qrCodeID. An unknown id
// leaves the history untouched and returns (nil, nil).
func (m *Manager) UpdateEntry(ctx context.Context, qrCodeID string, patch EntryPatch) (*models.QRHistoryEntry, error) {
	ctx, span := util.StartSpan(ctx, "HistoryManager.UpdateEntry", attribute.String("qr_code_id", qrCodeID))
	defer span.End()

	updated, err := m.mutate(ctx, qrCodeID, func(e *models.QRHistoryEntry) {
		patch.apply(e)
	})
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	return updated, util.RecordError(span, err)
}

// MarkScanned stamps the scan time and bumps the scan counter
func (m *Manager) MarkScanned(ctx context.Context, qrCodeID string, at time.Time) (*models.QRHistoryEntry, error) {
	ctx, span := util.StartSpan(ctx, "HistoryManager.MarkScanned", attribute.String("qr_code_id", qrCodeID))
	defer span.End()

	updated, err := m.mutate(ctx, qrCodeID, func(e *models.QRHistoryEntry) {
		scanned := at
		e.DateScanned = &scanned
		e.ScanCount++
	})
	return updated, util.RecordError(span, err)
}

// mutate applies fn to the entry in place. It returns ErrNotFound
// without writing when the id is unknown.
func (m *Manager) mutate(ctx context.Context, qrCodeID string, fn func(e *models.QRHistoryEntry)) (*models.QRHistoryEntry, error) {
	var updated *models.QRHistoryEntry
	err := m.update(ctx, func(entries *[]models.QRHistoryEntry) error {
		for i := range *entries {
			if (*entries)[i].QRCodeID == qrCodeID {
				fn(&(*entries)[i])
				e := (*entries)[i]
				updated = &e
				return nil
			}
		}
		return kv.ErrSkip
	})
	if err != nil {
		return nil, err
	}
	if updated == nil {
		return nil, ErrNotFound
	}
	return updated, nil
}

// FindByQRCodeID returns the entry with the given QR code id
func (m *Manager) FindByQRCodeID(ctx context.Context, qrCodeID string) (*models.QRHistoryEntry, error) {
	return m.find(ctx, func(e *models.QRHistoryEntry) bool { return e.QRCodeID == qrCodeID })
}

// FindByProductID returns the newest entry for a product id
func (m *Manager) FindByProductID(ctx context.Context, productID string) (*models.QRHistoryEntry, error) {
	return m.find(ctx, func(e *models.QRHistoryEntry) bool { return e.ProductID == productID })
}

func (m *Manager) find(ctx context.Context, match func(e *models.QRHistoryEntry) bool) (*models.QRHistoryEntry, error) {
	entries, err := m.GetHistory(ctx)
	if err != nil {
		return nil, err
	}
	for i := range entries {
		if match(&entries[i]) {
			return &entries[i], nil
		}
	}
	return nil, ErrNotFound
}

// FilterByModule returns entries generated from one view
func (m *Manager) FilterByModule(ctx context.Context, module string) ([]models.QRHistoryEntry, error) {
	return m.Query(ctx, Query{Module: module})
}

// FilterByFarmer returns a farmer's entries
func (m *Manager) FilterByFarmer(ctx context.Context, farmerID string) ([]models.QRHistoryEntry, error) {
	return m.Query(ctx, Query{FarmerID: farmerID})
}

// Query filters, searches and sorts the history
func (m *Manager) Query(ctx context.Context, q Query) ([]models.QRHistoryEntry, error) {
	entries, err := m.GetHistory(ctx)
	if err != nil {
		return nil, err
	}
	return q.Apply(entries), nil
}

// Clear empties the history and returns how many entries were removed.
// A cleared history stays empty; it is not seeded again.
func (m *Manager) Clear(ctx context.Context) (int, error) {
	ctx, span := util.StartSpan(ctx, "HistoryManager.Clear")
	defer span.End()

	var removed int
	err := kv.UpdateJSON(ctx, m.store, kv.KeyQRHistory, func(v *[]models.QRHistoryEntry, exists bool) error {
		removed = len(*v)
		*v = []models.QRHistoryEntry{}
		return nil
	})
	if err != nil {
		m.logger.Error("Failed to clear QR history", zap.Error(err))
		return 0, util.RecordError(span, fmt.Errorf("failed to clear history: %w", err))
	}
	m.logger.Info("QR history cleared", zap.Int("removed", removed))
	return removed, nil
}

// Stats summarizes the whole history
func (m *Manager) Stats(ctx context.Context) (Stats, error) {
	entries, err := m.GetHistory(ctx)
	if err != nil {
		return Stats{}, err
	}
	return ComputeStats(entries), nil
}

// Watch streams a notification after every write to the history until ctx
// is done.
func (m *Manager) Watch(ctx context.Context) (<-chan kv.Change, error) {
	return m.store.Subscribe(ctx, kv.KeyQRHistory)
}
