package history

import (
	"math"

	"greenledger/internal/models"
)

// HighLossRisk is the loss-risk percentage from which an entry is flagged
const HighLossRisk = 20.0

// Stats aggregates a set of history entries
type Stats struct {
	Total           int            `json:"total"`
	Scanned         int            `json:"scanned"`
	Organic         int            `json:"organic"`
	TotalValue      float64        `json:"totalValue"`
	ExpectedSale    float64        `json:"expectedSale"`
	AvgProfitMargin float64        `json:"avgProfitMargin"`
	HighLossRisk    int            `json:"highLossRisk"`
	ByModule        map[string]int `json:"byModule"`
	ByDistrict      map[string]int `json:"byDistrict"`
	ByCropType      map[string]int `json:"byCropType"`
	ByGrade         map[string]int `json:"byGrade"`
}

// ComputeStats aggregates entries
func ComputeStats(entries []models.QRHistoryEntry) Stats {
	s := Stats{
		Total:      len(entries),
		ByModule:   map[string]int{},
		ByDistrict: map[string]int{},
		ByCropType: map[string]int{},
		ByGrade:    map[string]int{},
	}

	var margin float64
	for i := range entries {
		e := &entries[i]
		if e.Scanned() {
			s.Scanned++
		}
		if e.OrganicCertified {
			s.Organic++
		}
		if e.Analytics.LossRisk >= HighLossRisk {
			s.HighLossRisk++
		}
		s.TotalValue += e.TotalValue()
		s.ExpectedSale += e.Analytics.ExpectedSale
		margin += e.Analytics.ProfitMargin

		s.ByModule[e.Module]++
		s.ByDistrict[e.District]++
		s.ByCropType[e.CropType]++
		s.ByGrade[e.QualityGrade]++
	}

	if s.Total > 0 {
		s.AvgProfitMargin = round2(margin / float64(s.Total))
	}
	s.TotalValue = round2(s.TotalValue)
	s.ExpectedSale = round2(s.ExpectedSale)
	return s
}

// ScanRate is the scanned share of the total, 0 when empty
func (s Stats) ScanRate() float64 {
	if s.Total == 0 {
		return 0
	}
	return math.Round(float64(s.Scanned)/float64(s.Total)*1000) / 10
}
