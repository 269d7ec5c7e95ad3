package service

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"greenledger/internal/history"
	"greenledger/internal/models"
	"greenledger/internal/refdata"
	"greenledger/internal/tracking"
	"greenledger/internal/util"

	"go.uber.org/zap"
)

// Stock level bands for the warehouse view
const (
	StockLow    = "low"
	StockMedium = "medium"
	StockHigh   = "high"
)

// DashboardService assembles the per-role views
type DashboardService struct {
	history     *history.Manager
	farmerCodes *history.FarmerLedger
	tracking    *tracking.Service
	logger      *zap.Logger
}

// NewDashboardService creates a new dashboard service
func NewDashboardService(history *history.Manager, farmerCodes *history.FarmerLedger, tracking *tracking.Service) *DashboardService {
	return &DashboardService{
		history:     history,
		farmerCodes: farmerCodes,
		tracking:    tracking,
		logger:      util.GetLogger(),
	}
}

// FarmerDashboard is the farmer's own view
type FarmerDashboard struct {
	Farmer      models.Farmer           `json:"farmer"`
	Entries     []models.QRHistoryEntry `json:"entries"`
	Stats       history.Stats           `json:"stats"`
	ScanRate    float64                 `json:"scanRate"`
	IdentityQRs []models.FarmerQR       `json:"identityQrs"`
	Shipments   []tracking.RouteView    `json:"shipments"`
}

// Farmer builds the dashboard of one farmer
func (s *DashboardService) Farmer(ctx context.Context, farmerID string) (*FarmerDashboard, error) {
	ctx, span := util.StartSpan(ctx, "DashboardService.Farmer")
	defer span.End()

	farmer, ok := refdata.FarmerByID(farmerID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownFarmer, farmerID)
	}

	entries, err := s.history.Query(ctx, history.Query{FarmerID: farmer.ID, SortBy: history.SortByDateGenerated, Desc: true})
	if err != nil {
		return nil, util.RecordError(span, err)
	}
	codes, err := s.farmerCodes.FindByFarmer(ctx, farmer.ID)
	if err != nil {
		return nil, util.RecordError(span, err)
	}
	routes, err := s.tracking.List(ctx, "")
	if err != nil {
		return nil, util.RecordError(span, err)
	}

	shipments := []tracking.RouteView{}
	for _, r := range routes {
		if r.FarmerID == farmer.ID {
			shipments = append(shipments, r)
		}
	}

	stats := history.ComputeStats(entries)
	return &FarmerDashboard{
		Farmer:      farmer,
		Entries:     entries,
		Stats:       stats,
		ScanRate:    stats.ScanRate(),
		IdentityQRs: codes,
		Shipments:   shipments,
	}, nil
}

// WarehouseSummary is the stock held by one warehouse
type WarehouseSummary struct {
	Warehouse models.Warehouse `json:"warehouse"`
	Entries   int              `json:"entries"`
	Quantity  float64          `json:"quantity"`
	Value     float64          `json:"value"`
}

// WarehouseDashboard is the warehouse operator's view
type WarehouseDashboard struct {
	Warehouses  []WarehouseSummary      `json:"warehouses"`
	StockLevels map[string]int          `json:"stockLevels"`
	HighRisk    []models.QRHistoryEntry `json:"highRisk"`
	Stats       history.Stats           `json:"stats"`
}

// StockBand buckets a stock level percentage
func StockBand(level int) string {
	switch {
	case level < 30:
		return StockLow
	case level < 70:
		return StockMedium
	default:
		return StockHigh
	}
}

// Warehouse builds the warehouse view, for one warehouse or all of them
func (s *DashboardService) Warehouse(ctx context.Context, warehouseID string) (*WarehouseDashboard, error) {
	ctx, span := util.StartSpan(ctx, "DashboardService.Warehouse")
	defer span.End()

	if warehouseID != "" {
		if _, ok := refdata.WarehouseByID(warehouseID); !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownWarehouse, warehouseID)
		}
	}

	entries, err := s.history.Query(ctx, history.Query{WarehouseID: warehouseID})
	if err != nil {
		return nil, util.RecordError(span, err)
	}

	byID := map[string]*WarehouseSummary{}
	for _, w := range refdata.Warehouses() {
		if warehouseID == "" || w.ID == warehouseID {
			byID[w.ID] = &WarehouseSummary{Warehouse: w}
		}
	}

	dash := &WarehouseDashboard{
		StockLevels: map[string]int{StockLow: 0, StockMedium: 0, StockHigh: 0},
		HighRisk:    []models.QRHistoryEntry{},
		Stats:       history.ComputeStats(entries),
	}
	for _, e := range entries {
		if sum, ok := byID[e.WarehouseID]; ok {
			sum.Entries++
			sum.Quantity += e.Quantity
			sum.Value += e.TotalValue()
		}
		dash.StockLevels[StockBand(e.Analytics.StockLevel)]++
		if e.Analytics.LossRisk >= history.HighLossRisk {
			dash.HighRisk = append(dash.HighRisk, e)
		}
	}

	for _, sum := range byID {
		dash.Warehouses = append(dash.Warehouses, *sum)
	}
	sort.Slice(dash.Warehouses, func(i, j int) bool {
		return dash.Warehouses[i].Warehouse.ID < dash.Warehouses[j].Warehouse.ID
	})
	sort.SliceStable(dash.HighRisk, func(i, j int) bool {
		return dash.HighRisk[i].Analytics.LossRisk > dash.HighRisk[j].Analytics.LossRisk
	})
	return dash, nil
}

// ConsumerView lists the products consumers have scanned
type ConsumerView struct {
	Scanned []models.QRHistoryEntry `json:"scanned"`
	Organic int                     `json:"organic"`
	Stats   history.Stats           `json:"stats"`
}

// Consumer builds the consumer view, most recently scanned first
func (s *DashboardService) Consumer(ctx context.Context) (*ConsumerView, error) {
	scanned := true
	entries, err := s.history.Query(ctx, history.Query{Scanned: &scanned, SortBy: history.SortByDateScanned, Desc: true})
	if err != nil {
		return nil, err
	}
	view := &ConsumerView{Scanned: entries, Stats: history.ComputeStats(entries)}
	view.Organic = view.Stats.Organic
	return view, nil
}

// Verification is the consumer-facing provenance check. The hash is
// cosmetic; Verified only means the code is in the history.
type Verification struct {
	QRCodeID       string                 `json:"qrCodeId"`
	Verified       bool                   `json:"verified"`
	Entry          *models.QRHistoryEntry `json:"entry,omitempty"`
	Farmer         *models.Farmer         `json:"farmer,omitempty"`
	BlockchainHash string                 `json:"blockchainHash,omitempty"`
	Shipment       *tracking.RouteView    `json:"shipment,omitempty"`
}

// Verify looks a product code up for a consumer
func (s *DashboardService) Verify(ctx context.Context, qrCodeID string) (*Verification, error) {
	ctx, span := util.StartSpan(ctx, "DashboardService.Verify")
	defer span.End()

	entry, err := s.history.FindByQRCodeID(ctx, qrCodeID)
	if errors.Is(err, history.ErrNotFound) {
		return &Verification{QRCodeID: qrCodeID, Verified: false}, nil
	}
	if err != nil {
		return nil, util.RecordError(span, err)
	}

	v := &Verification{
		QRCodeID:       qrCodeID,
		Verified:       true,
		Entry:          entry,
		BlockchainHash: entry.BlockchainHash,
	}
	if farmer, ok := refdata.FarmerByID(entry.FarmerID); ok {
		v.Farmer = &farmer
	}

	routes, err := s.tracking.List(ctx, "")
	if err != nil {
		return nil, util.RecordError(span, err)
	}
	for i := range routes {
		if routes[i].FarmerID == entry.FarmerID {
			v.Shipment = &routes[i]
			break
		}
	}
	return v, nil
}
