package history

import (
	"math"
	"sort"
	"time"

	"greenledger/internal/models"
	"greenledger/internal/qrcode"
	"greenledger/internal/refdata"
)

// DefaultSeedCount is the number of dummy entries written on first access
const DefaultSeedCount = 55

var seedModules = []string{models.ModuleFarmer, models.ModuleWarehouse, models.ModuleConsumer}

var grades = []string{models.GradeA, models.GradeA, models.GradeB, models.GradeB, models.GradeC}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// RandomAnalytics produces the decorative analytics block for an entry
func RandomAnalytics(gen *qrcode.Generator, quantity, price float64) models.PredictiveAnalytics {
	demand := models.DemandMedium
	switch r := gen.Intn(10); {
	case r < 3:
		demand = models.DemandHigh
	case r > 7:
		demand = models.DemandLow
	}
	return models.PredictiveAnalytics{
		ExpectedSale:   round2(quantity * price * gen.Float(0.85, 1.2)),
		ProfitMargin:   round2(gen.Float(8, 35)),
		DemandForecast: demand,
		StockLevel:     10 + gen.Intn(91),
		LossRisk:       round2(gen.Float(1, 25)),
	}
}

// SeedEntries builds n plausible entries from the reference tables,
// newest first.
func SeedEntries(gen *qrcode.Generator, n int) []models.QRHistoryEntry {
	farmers := refdata.Farmers()
	products := refdata.Products()
	now := gen.Now()

	entries := make([]models.QRHistoryEntry, 0, n)
	for i := 0; i < n; i++ {
		farmer := farmers[gen.Intn(len(farmers))]
		product := products[gen.Intn(len(products))]
		warehouse := refdata.NearestWarehouse(farmer.District)
		module := seedModules[i%len(seedModules)]

		quantity := float64(5 + gen.Intn(196))
		price := round2(gen.Float(product.MinPrice, product.MaxPrice))
		generated := now.Add(-time.Duration(gen.Intn(90*24)) * time.Hour).Add(-time.Duration(gen.Intn(60)) * time.Minute)

		entry := models.QRHistoryEntry{
			QRCodeID:         gen.QRId(module, farmer.ID),
			ProductID:        gen.ProductID(product.CropType),
			Module:           module,
			ProductName:      product.Name,
			CropType:         product.CropType,
			FarmerName:       farmer.Name,
			FarmerID:         farmer.ID,
			Taluk:            farmer.Taluk,
			District:         farmer.District,
			WarehouseID:      warehouse.ID,
			WarehouseName:    warehouse.Name,
			Quantity:         quantity,
			Unit:             product.Unit,
			Price:            price,
			QualityGrade:     grades[gen.Intn(len(grades))],
			OrganicCertified: farmer.Organic && gen.Intn(4) != 0,
			BlockchainHash:   gen.BlockchainHash(),
			DateGenerated:    generated,
			Analytics:        RandomAnalytics(gen, quantity, price),
		}

		if gen.Intn(10) < 4 {
			scanned := generated.Add(time.Duration(1+gen.Intn(72)) * time.Hour)
			if scanned.After(now) {
				scanned = now
			}
			entry.DateScanned = &scanned
			entry.ScanCount = 1 + gen.Intn(5)
		}

		entries = append(entries, entry)
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].DateGenerated.After(entries[j].DateGenerated)
	})
	return entries
}
