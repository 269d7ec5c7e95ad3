package models

import "time"

// Modules that generate QR codes
const (
	ModuleFarmer    = "farmer"
	ModuleWarehouse = "warehouse"
	ModuleConsumer  = "consumer"
)

// Quality grades
const (
	GradeA = "A"
	GradeB = "B"
	GradeC = "C"
)

// Demand forecast levels
const (
	DemandHigh   = "High"
	DemandMedium = "Medium"
	DemandLow    = "Low"
)

// PredictiveAnalytics is decorative: the values are generated at random
// when the entry is created, not computed from market data.
type PredictiveAnalytics struct {
	ExpectedSale   float64 `json:"expectedSale"`
	ProfitMargin   float64 `json:"profitMargin"`
	DemandForecast string  `json:"demandForecast"`
	StockLevel     int     `json:"stockLevel"`
	LossRisk       float64 `json:"lossRisk"`
}

// QRHistoryEntry is one generated product QR code
type QRHistoryEntry struct {
	QRCodeID         string              `json:"qrCodeId"`
	ProductID        string              `json:"productId"`
	Module           string              `json:"module"`
	ProductName      string              `json:"productName"`
	CropType         string              `json:"cropType"`
	FarmerName       string              `json:"farmerName"`
	FarmerID         string              `json:"farmerId"`
	Taluk            string              `json:"taluk"`
	District         string              `json:"district"`
	WarehouseID      string              `json:"warehouseId"`
	WarehouseName    string              `json:"warehouseName"`
	Quantity         float64             `json:"quantity"`
	Unit             string              `json:"unit"`
	Price            float64             `json:"price"`
	QualityGrade     string              `json:"qualityGrade"`
	OrganicCertified bool                `json:"organicCertified"`
	BlockchainHash   string              `json:"blockchainHash"`
	QRImageURL       string              `json:"qrImageUrl,omitempty"`
	DateGenerated    time.Time           `json:"dateGenerated"`
	DateScanned      *time.Time          `json:"dateScanned,omitempty"`
	ScanCount        int                 `json:"scanCount"`
	Analytics        PredictiveAnalytics `json:"predictiveAnalytics"`
}

// Scanned reports whether the code has been scanned at least once
func (e *QRHistoryEntry) Scanned() bool {
	return e.DateScanned != nil
}

// TotalValue is quantity times unit price
func (e *QRHistoryEntry) TotalValue() float64 {
	return e.Quantity * e.Price
}

// FarmerQR is a farmer identity QR code
type FarmerQR struct {
	QRCodeID      string    `json:"qrCodeId"`
	FarmerID      string    `json:"farmerId"`
	FarmerName    string    `json:"farmerName"`
	Phone         string    `json:"phone,omitempty"`
	District      string    `json:"district"`
	Taluk         string    `json:"taluk"`
	Crops         []string  `json:"crops,omitempty"`
	QRImageURL    string    `json:"qrImageUrl,omitempty"`
	DateGenerated time.Time `json:"dateGenerated"`
}
