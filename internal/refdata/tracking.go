package refdata

import (
	"time"

	"greenledger/internal/models"
)

func at(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	return t
}

func reached(s string) *time.Time {
	t := at(s)
	return &t
}

var routes = []models.TrackingRoute{
	{
		ID:             "TRK001",
		TrackingNumber: "GL-OD-240311-001",
		ProductName:    "Basmati Rice",
		FarmerID:       "FRM001",
		Origin:         "Salepur, Cuttack",
		Destination:    "Cuttack Central Warehouse",
		Carrier:        "Odisha Agro Logistics",
		Status:         models.TrackingStatusActive,
		DispatchedAt:   at("2024-03-11T06:30:00+05:30"),
		ETA:            at("2024-03-11T15:00:00+05:30"),
		Checkpoints: []models.TrackingCheckpoint{
			{ID: "CP1", Name: "Farm pickup", Location: "Salepur", Latitude: 20.4833, Longitude: 86.1167, Status: models.TrackingStatusCompleted, ReachedAt: reached("2024-03-11T06:30:00+05:30")},
			{ID: "CP2", Name: "Quality check", Location: "Salepur Mandi", Latitude: 20.4901, Longitude: 86.1102, Status: models.TrackingStatusCompleted, ReachedAt: reached("2024-03-11T08:10:00+05:30")},
			{ID: "CP3", Name: "In transit", Location: "NH-16 Jagatpur", Latitude: 20.4972, Longitude: 85.9360, Status: models.TrackingStatusActive},
			{ID: "CP4", Name: "Warehouse intake", Location: "Cuttack", Latitude: 20.4625, Longitude: 85.8830, Status: models.TrackingStatusPending},
		},
	},
	{
		ID:             "TRK002",
		TrackingNumber: "GL-OD-240309-014",
		ProductName:    "Fresh Tomato",
		FarmerID:       "FRM002",
		Origin:         "Balipatna, Khordha",
		Destination:    "Bhubaneswar Cold Storage",
		Carrier:        "Kalinga Cold Chain",
		Status:         models.TrackingStatusCompleted,
		DispatchedAt:   at("2024-03-09T05:00:00+05:30"),
		ETA:            at("2024-03-09T09:00:00+05:30"),
		Checkpoints: []models.TrackingCheckpoint{
			{ID: "CP1", Name: "Farm pickup", Location: "Balipatna", Latitude: 20.2000, Longitude: 85.9667, Status: models.TrackingStatusCompleted, ReachedAt: reached("2024-03-09T05:00:00+05:30")},
			{ID: "CP2", Name: "Sorting centre", Location: "Pipili", Latitude: 20.1130, Longitude: 85.8310, Status: models.TrackingStatusCompleted, ReachedAt: reached("2024-03-09T06:45:00+05:30")},
			{ID: "CP3", Name: "Cold storage intake", Location: "Bhubaneswar", Latitude: 20.2961, Longitude: 85.8245, Status: models.TrackingStatusCompleted, ReachedAt: reached("2024-03-09T08:40:00+05:30")},
		},
	},
	{
		ID:             "TRK003",
		TrackingNumber: "GL-OD-240310-027",
		ProductName:    "Groundnut",
		FarmerID:       "FRM004",
		Origin:         "Aska, Ganjam",
		Destination:    "Berhampur Agri Hub",
		Carrier:        "Ganjam Freight Co-op",
		Status:         models.TrackingStatusDelayed,
		DispatchedAt:   at("2024-03-10T07:00:00+05:30"),
		ETA:            at("2024-03-10T12:00:00+05:30"),
		Checkpoints: []models.TrackingCheckpoint{
			{ID: "CP1", Name: "Farm pickup", Location: "Aska", Latitude: 19.6000, Longitude: 84.6500, Status: models.TrackingStatusCompleted, ReachedAt: reached("2024-03-10T07:00:00+05:30")},
			{ID: "CP2", Name: "Weighbridge", Location: "Hinjili", Latitude: 19.4800, Longitude: 84.7400, Status: models.TrackingStatusDelayed, Note: "Vehicle breakdown, replacement truck dispatched"},
			{ID: "CP3", Name: "Hub intake", Location: "Berhampur", Latitude: 19.3149, Longitude: 84.7941, Status: models.TrackingStatusPending},
		},
	},
	{
		ID:             "TRK004",
		TrackingNumber: "GL-OD-240312-033",
		ProductName:    "Finger Millet (Ragi)",
		FarmerID:       "FRM006",
		Origin:         "Jeypore, Koraput",
		Destination:    "Bhubaneswar Cold Storage",
		Carrier:        "Eastern Ghats Transport",
		Status:         models.TrackingStatusPending,
		DispatchedAt:   at("2024-03-12T09:00:00+05:30"),
		ETA:            at("2024-03-13T18:00:00+05:30"),
		Checkpoints: []models.TrackingCheckpoint{
			{ID: "CP1", Name: "Farm pickup", Location: "Jeypore", Latitude: 18.8563, Longitude: 82.5716, Status: models.TrackingStatusPending},
			{ID: "CP2", Name: "Hill produce centre", Location: "Koraput", Latitude: 18.8110, Longitude: 82.7105, Status: models.TrackingStatusPending},
			{ID: "CP3", Name: "Highway relay", Location: "Rayagada", Latitude: 19.1712, Longitude: 83.4163, Status: models.TrackingStatusPending},
			{ID: "CP4", Name: "Relay", Location: "Berhampur", Latitude: 19.3149, Longitude: 84.7941, Status: models.TrackingStatusPending},
			{ID: "CP5", Name: "Cold storage intake", Location: "Bhubaneswar", Latitude: 20.2961, Longitude: 85.8245, Status: models.TrackingStatusPending},
		},
	},
	{
		ID:             "TRK005",
		TrackingNumber: "GL-OD-240308-041",
		ProductName:    "Potato",
		FarmerID:       "FRM007",
		Origin:         "Kuchinda, Sambalpur",
		Destination:    "Sambalpur Storage Yard",
		Carrier:        "Western Odisha Carriers",
		Status:         models.TrackingStatusActive,
		DispatchedAt:   at("2024-03-08T10:00:00+05:30"),
		ETA:            at("2024-03-08T16:30:00+05:30"),
		Checkpoints: []models.TrackingCheckpoint{
			{ID: "CP1", Name: "Farm pickup", Location: "Kuchinda", Latitude: 21.7440, Longitude: 84.3480, Status: models.TrackingStatusCompleted, ReachedAt: reached("2024-03-08T10:00:00+05:30")},
			{ID: "CP2", Name: "Block aggregation point", Location: "Jamankira", Latitude: 21.6500, Longitude: 84.2500, Status: models.TrackingStatusCompleted, ReachedAt: reached("2024-03-08T11:30:00+05:30")},
			{ID: "CP3", Name: "In transit", Location: "Burla", Latitude: 21.5000, Longitude: 83.8700, Status: models.TrackingStatusActive},
			{ID: "CP4", Name: "Yard intake", Location: "Sambalpur", Latitude: 21.4669, Longitude: 83.9812, Status: models.TrackingStatusPending},
		},
	},
}

// Routes returns deep copies of the mock shipment routes
func Routes() []models.TrackingRoute {
	out := make([]models.TrackingRoute, len(routes))
	for i, r := range routes {
		out[i] = r
		out[i].Checkpoints = append([]models.TrackingCheckpoint(nil), r.Checkpoints...)
	}
	return out
}
