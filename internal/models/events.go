package models

import "time"

// Event types
const (
	EventTypeQRGenerated       = "QR_GENERATED"
	EventTypeQRScanned         = "QR_SCANNED"
	EventTypeQRHistoryCleared  = "QR_HISTORY_CLEARED"
	EventTypeFarmerQRGenerated = "FARMER_QR_GENERATED"
	EventTypeUserSignedUp      = "USER_SIGNED_UP"
	EventTypeUserSignedIn      = "USER_SIGNED_IN"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// QRGeneratedEvent published when a product QR code is generated
type QRGeneratedEvent struct {
	BaseEvent
	QRCodeID  string  `json:"qr_code_id"`
	ProductID string  `json:"product_id"`
	Module    string  `json:"module"`
	FarmerID  string  `json:"farmer_id"`
	District  string  `json:"district"`
	CropType  string  `json:"crop_type"`
	Quantity  float64 `json:"quantity"`
	Price     float64 `json:"price"`
}

// QRScannedEvent published when a QR code is scanned
type QRScannedEvent struct {
	BaseEvent
	QRCodeID  string    `json:"qr_code_id"`
	FarmerID  string    `json:"farmer_id"`
	District  string    `json:"district"`
	ScanCount int       `json:"scan_count"`
	ScannedAt time.Time `json:"scanned_at"`
}

// QRHistoryClearedEvent published when the history is wiped
type QRHistoryClearedEvent struct {
	BaseEvent
	Removed int `json:"removed"`
}

// FarmerQRGeneratedEvent published when a farmer identity code is generated
type FarmerQRGeneratedEvent struct {
	BaseEvent
	QRCodeID string `json:"qr_code_id"`
	FarmerID string `json:"farmer_id"`
}

// UserEvent published on sign-up and sign-in
type UserEvent struct {
	BaseEvent
	UserID string `json:"user_id"`
	Role   string `json:"role"`
	Source string `json:"source"`
}

// AuditRecord is the persisted form of any processed event
type AuditRecord struct {
	EventID     string    `db:"event_id" json:"event_id"`
	EventType   string    `db:"event_type" json:"event_type"`
	Payload     []byte    `db:"payload" json:"payload"`
	ProcessedAt time.Time `db:"processed_at" json:"processed_at"`
}
