package history

import (
	"sort"
	"strings"

	"greenledger/internal/models"
)

// Sort keys
const (
	SortByDateGenerated = "dateGenerated"
	SortByPrice         = "price"
	SortByQuantity      = "quantity"
	SortByProductName   = "productName"
	SortByExpectedSale  = "expectedSale"
	SortByDateScanned   = "dateScanned"
)

// Query selects and orders history entries. Empty fields match everything.
type Query struct {
	Module      string
	FarmerID    string
	District    string
	CropType    string
	WarehouseID string
	Scanned     *bool
	Search      string
	SortBy      string
	Desc        bool
}

// Apply runs the query over entries without modifying them
func (q Query) Apply(entries []models.QRHistoryEntry) []models.QRHistoryEntry {
	search := strings.ToLower(strings.TrimSpace(q.Search))

	out := make([]models.QRHistoryEntry, 0, len(entries))
	for _, e := range entries {
		if q.Module != "" && !strings.EqualFold(e.Module, q.Module) {
			continue
		}
		if q.FarmerID != "" && !strings.EqualFold(e.FarmerID, q.FarmerID) {
			continue
		}
		if q.District != "" && !strings.EqualFold(e.District, q.District) {
			continue
		}
		if q.CropType != "" && !strings.EqualFold(e.CropType, q.CropType) {
			continue
		}
		if q.WarehouseID != "" && !strings.EqualFold(e.WarehouseID, q.WarehouseID) {
			continue
		}
		if q.Scanned != nil && e.Scanned() != *q.Scanned {
			continue
		}
		if search != "" && !matches(e, search) {
			continue
		}
		out = append(out, e)
	}

	if q.SortBy != "" {
		sortEntries(out, q.SortBy, q.Desc)
	}
	return out
}

func matches(e models.QRHistoryEntry, needle string) bool {
	for _, field := range []string{e.QRCodeID, e.ProductID, e.ProductName, e.CropType, e.FarmerName, e.FarmerID, e.District, e.Taluk, e.WarehouseName} {
		if strings.Contains(strings.ToLower(field), needle) {
			return true
		}
	}
	return false
}

func sortEntries(entries []models.QRHistoryEntry, by string, desc bool) {
	less := func(a, b *models.QRHistoryEntry) bool {
		switch by {
		case SortByPrice:
			return a.Price < b.Price
		case SortByQuantity:
			return a.Quantity < b.Quantity
		case SortByProductName:
			return strings.ToLower(a.ProductName) < strings.ToLower(b.ProductName)
		case SortByExpectedSale:
			return a.Analytics.ExpectedSale < b.Analytics.ExpectedSale
		case SortByDateScanned:
			// unscanned entries sort before scanned ones
			if a.DateScanned == nil || b.DateScanned == nil {
				return a.DateScanned == nil && b.DateScanned != nil
			}
			return a.DateScanned.Before(*b.DateScanned)
		default:
			return a.DateGenerated.Before(b.DateGenerated)
		}
	}

	sort.SliceStable(entries, func(i, j int) bool {
		if desc {
			return less(&entries[j], &entries[i])
		}
		return less(&entries[i], &entries[j])
	})
}

// ValidSortKey reports whether by is a known sort key
func ValidSortKey(by string) bool {
	switch by {
	case SortByDateGenerated, SortByPrice, SortByQuantity, SortByProductName, SortByExpectedSale, SortByDateScanned:
		return true
	}
	return false
}
