package refdata

import (
	"strings"

	"greenledger/internal/models"
)

var farmers = []models.Farmer{
	{ID: "FRM001", Name: "Ramesh Behera", Phone: "9437012345", District: "Cuttack", Taluk: "Salepur", Crops: []string{"Rice", "Green Gram"}, Organic: true, LandSize: 3.5},
	{ID: "FRM002", Name: "Sunita Pradhan", Phone: "9861123456", District: "Khordha", Taluk: "Balipatna", Crops: []string{"Vegetables", "Tomato"}, LandSize: 2.0},
	{ID: "FRM003", Name: "Prakash Sahu", Phone: "9938234567", District: "Bargarh", Taluk: "Attabira", Crops: []string{"Rice", "Sugarcane"}, LandSize: 6.2},
	{ID: "FRM004", Name: "Geeta Nayak", Phone: "9776345678", District: "Ganjam", Taluk: "Aska", Crops: []string{"Groundnut", "Turmeric"}, Organic: true, LandSize: 1.8},
	{ID: "FRM005", Name: "Bijay Mohanty", Phone: "9437456789", District: "Puri", Taluk: "Nimapara", Crops: []string{"Coconut", "Rice"}, LandSize: 4.0},
	{ID: "FRM006", Name: "Lakshmi Das", Phone: "9861567890", District: "Koraput", Taluk: "Jeypore", Crops: []string{"Millet", "Ginger"}, Organic: true, LandSize: 2.7},
	{ID: "FRM007", Name: "Santosh Patra", Phone: "9938678901", District: "Sambalpur", Taluk: "Kuchinda", Crops: []string{"Maize", "Potato"}, LandSize: 5.1},
	{ID: "FRM008", Name: "Manorama Swain", Phone: "9776789012", District: "Kendrapara", Taluk: "Pattamundai", Crops: []string{"Rice", "Jute"}, LandSize: 3.0},
	{ID: "FRM009", Name: "Ashok Rout", Phone: "9437890123", District: "Balasore", Taluk: "Soro", Crops: []string{"Potato", "Onion"}, LandSize: 2.4},
	{ID: "FRM010", Name: "Pramila Jena", Phone: "9861901234", District: "Kalahandi", Taluk: "Dharamgarh", Crops: []string{"Cotton", "Rice"}, LandSize: 7.3},
	{ID: "FRM011", Name: "Debasis Mishra", Phone: "9938012345", District: "Mayurbhanj", Taluk: "Karanjia", Crops: []string{"Millet", "Turmeric"}, Organic: true, LandSize: 1.5},
	{ID: "FRM012", Name: "Kabita Barik", Phone: "9776123450", District: "Nayagarh", Taluk: "Daspalla", Crops: []string{"Mango", "Vegetables"}, LandSize: 2.9},
}

var products = []models.Product{
	{ID: "PRD-RICE", Name: "Basmati Rice", CropType: "Rice", Unit: "quintal", MinPrice: 2800, MaxPrice: 4200},
	{ID: "PRD-GGRM", Name: "Green Gram", CropType: "Pulses", Unit: "quintal", MinPrice: 6500, MaxPrice: 8200},
	{ID: "PRD-TOMA", Name: "Fresh Tomato", CropType: "Vegetables", Unit: "kg", MinPrice: 18, MaxPrice: 45},
	{ID: "PRD-SUGR", Name: "Sugarcane", CropType: "Sugarcane", Unit: "tonne", MinPrice: 2900, MaxPrice: 3400},
	{ID: "PRD-GNUT", Name: "Groundnut", CropType: "Oilseeds", Unit: "quintal", MinPrice: 5200, MaxPrice: 6800},
	{ID: "PRD-TURM", Name: "Kandhamal Turmeric", CropType: "Spices", Unit: "kg", MinPrice: 90, MaxPrice: 160},
	{ID: "PRD-COCO", Name: "Coconut", CropType: "Fruits", Unit: "dozen", MinPrice: 180, MaxPrice: 320},
	{ID: "PRD-MILL", Name: "Finger Millet (Ragi)", CropType: "Millets", Unit: "quintal", MinPrice: 3500, MaxPrice: 4600},
	{ID: "PRD-GING", Name: "Ginger", CropType: "Spices", Unit: "kg", MinPrice: 40, MaxPrice: 110},
	{ID: "PRD-MAIZ", Name: "Maize", CropType: "Cereals", Unit: "quintal", MinPrice: 1900, MaxPrice: 2400},
	{ID: "PRD-POTA", Name: "Potato", CropType: "Vegetables", Unit: "kg", MinPrice: 12, MaxPrice: 30},
	{ID: "PRD-ONIO", Name: "Onion", CropType: "Vegetables", Unit: "kg", MinPrice: 15, MaxPrice: 55},
	{ID: "PRD-JUTE", Name: "Raw Jute", CropType: "Fibre", Unit: "quintal", MinPrice: 4800, MaxPrice: 5600},
	{ID: "PRD-COTN", Name: "Cotton", CropType: "Fibre", Unit: "quintal", MinPrice: 6200, MaxPrice: 7400},
	{ID: "PRD-MANG", Name: "Mango", CropType: "Fruits", Unit: "kg", MinPrice: 35, MaxPrice: 90},
}

var warehouses = []models.Warehouse{
	{ID: "WH001", Name: "Cuttack Central Warehouse", District: "Cuttack", CapacityMT: 12000},
	{ID: "WH002", Name: "Bhubaneswar Cold Storage", District: "Khordha", CapacityMT: 5000},
	{ID: "WH003", Name: "Bargarh Grain Depot", District: "Bargarh", CapacityMT: 18000},
	{ID: "WH004", Name: "Berhampur Agri Hub", District: "Ganjam", CapacityMT: 8000},
	{ID: "WH005", Name: "Sambalpur Storage Yard", District: "Sambalpur", CapacityMT: 9500},
	{ID: "WH006", Name: "Jeypore Hill Produce Centre", District: "Koraput", CapacityMT: 4000},
}

// Farmers returns the farmer roster
func Farmers() []models.Farmer {
	out := make([]models.Farmer, len(farmers))
	copy(out, farmers)
	return out
}

// FarmerByID looks a farmer up by id
func FarmerByID(id string) (models.Farmer, bool) {
	for _, f := range farmers {
		if strings.EqualFold(f.ID, id) {
			return f, true
		}
	}
	return models.Farmer{}, false
}

// FarmersInDistrict returns farmers registered in a district
func FarmersInDistrict(district string) []models.Farmer {
	var out []models.Farmer
	for _, f := range farmers {
		if strings.EqualFold(f.District, district) {
			out = append(out, f)
		}
	}
	return out
}

// Products returns the crop catalogue
func Products() []models.Product {
	out := make([]models.Product, len(products))
	copy(out, products)
	return out
}

// ProductByID looks a catalogue product up by id
func ProductByID(id string) (models.Product, bool) {
	for _, p := range products {
		if strings.EqualFold(p.ID, id) {
			return p, true
		}
	}
	return models.Product{}, false
}

// ProductByName looks a catalogue product up by name or crop type
func ProductByName(name string) (models.Product, bool) {
	for _, p := range products {
		if strings.EqualFold(p.Name, name) {
			return p, true
		}
	}
	for _, p := range products {
		if strings.EqualFold(p.CropType, name) {
			return p, true
		}
	}
	return models.Product{}, false
}

// Warehouses returns every warehouse
func Warehouses() []models.Warehouse {
	out := make([]models.Warehouse, len(warehouses))
	copy(out, warehouses)
	return out
}

// WarehouseByID looks a warehouse up by id
func WarehouseByID(id string) (models.Warehouse, bool) {
	for _, w := range warehouses {
		if strings.EqualFold(w.ID, id) {
			return w, true
		}
	}
	return models.Warehouse{}, false
}

// NearestWarehouse returns the warehouse in the same district, or the first one
func NearestWarehouse(district string) models.Warehouse {
	for _, w := range warehouses {
		if strings.EqualFold(w.District, district) {
			return w
		}
	}
	return warehouses[0]
}
