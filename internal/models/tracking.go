package models

import "time"

// Tracking statuses, shared by routes and checkpoints
const (
	TrackingStatusPending   = "pending"
	TrackingStatusActive    = "active"
	TrackingStatusCompleted = "completed"
	TrackingStatusDelayed   = "delayed"
)

// TrackingCheckpoint is one stop on a route. Status is authored, not derived.
type TrackingCheckpoint struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Location  string     `json:"location"`
	Latitude  float64    `json:"latitude"`
	Longitude float64    `json:"longitude"`
	Status    string     `json:"status"`
	ReachedAt *time.Time `json:"reachedAt,omitempty"`
	Note      string     `json:"note,omitempty"`
}

// TrackingRoute is a mock shipment
type TrackingRoute struct {
	ID             string               `json:"id"`
	TrackingNumber string               `json:"trackingNumber"`
	ProductName    string               `json:"productName"`
	FarmerID       string               `json:"farmerId"`
	Origin         string               `json:"origin"`
	Destination    string               `json:"destination"`
	Carrier        string               `json:"carrier"`
	Status         string               `json:"status"`
	DispatchedAt   time.Time            `json:"dispatchedAt"`
	ETA            time.Time            `json:"eta"`
	Checkpoints    []TrackingCheckpoint `json:"checkpoints"`
}

// IsTrackingStatus reports whether s is a known tracking status
func IsTrackingStatus(s string) bool {
	switch s {
	case TrackingStatusPending, TrackingStatusActive, TrackingStatusCompleted, TrackingStatusDelayed:
		return true
	}
	return false
}
