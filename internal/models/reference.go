package models

// District is an Odisha district with its taluks
type District struct {
	Name   string   `json:"name"`
	Taluks []string `json:"taluks"`
}

// Farmer is a row of the static farmer table
type Farmer struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Phone    string   `json:"phone"`
	District string   `json:"district"`
	Taluk    string   `json:"taluk"`
	Crops    []string `json:"crops"`
	Organic  bool     `json:"organic"`
	LandSize float64  `json:"landSizeAcres"`
}

// Product is a crop in the catalogue. Prices are per unit in rupees.
type Product struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	CropType string  `json:"cropType"`
	Unit     string  `json:"unit"`
	MinPrice float64 `json:"minPrice"`
	MaxPrice float64 `json:"maxPrice"`
}

// Warehouse is a storage facility
type Warehouse struct {
	ID         string  `json:"id"`
	Name       string  `json:"name"`
	District   string  `json:"district"`
	CapacityMT float64 `json:"capacityMt"`
}
