package history

import (
	"context"
	"errors"
	"strings"
	"time"

	"greenledger/internal/kv"
	"greenledger/internal/models"
	"greenledger/internal/util"

	"go.uber.org/zap"
)

// FarmerLedger keeps the farmer identity QR codes, newest first
type FarmerLedger struct {
	store  kv.Store
	logger *zap.Logger
}

// NewFarmerLedger creates a farmer identity ledger
func NewFarmerLedger(store kv.Store) *FarmerLedger {
	return &FarmerLedger{store: store, logger: util.Named("farmer-qr-history")}
}

// List returns every farmer identity code
func (l *FarmerLedger) List(ctx context.Context) ([]models.FarmerQR, error) {
	var codes []models.FarmerQR
	_, err := kv.GetJSON(ctx, l.store, kv.KeyFarmerQRHistory, &codes)
	if errors.Is(err, kv.ErrNotFound) {
		return []models.FarmerQR{}, nil
	}
	if err != nil {
		l.logger.Error("Failed to read farmer QR history", zap.Error(err))
		return nil, err
	}
	return codes, nil
}

// Add prepends a farmer identity code
func (l *FarmerLedger) Add(ctx context.Context, code models.FarmerQR) error {
	if code.DateGenerated.IsZero() {
		code.DateGenerated = time.Now()
	}
	err := kv.UpdateJSON(ctx, l.store, kv.KeyFarmerQRHistory, func(v *[]models.FarmerQR, exists bool) error {
		*v = append([]models.FarmerQR{code}, *v...)
		return nil
	})
	if err != nil {
		l.logger.Error("Failed to write farmer QR history", zap.Error(err))
	}
	return err
}

// FindByFarmer returns a farmer's identity codes, newest first
func (l *FarmerLedger) FindByFarmer(ctx context.Context, farmerID string) ([]models.FarmerQR, error) {
	codes, err := l.List(ctx)
	if err != nil {
		return nil, err
	}
	out := []models.FarmerQR{}
	for _, c := range codes {
		if strings.EqualFold(c.FarmerID, farmerID) {
			out = append(out, c)
		}
	}
	return out, nil
}

// Find returns the identity code with qrCodeID
func (l *FarmerLedger) Find(ctx context.Context, qrCodeID string) (*models.FarmerQR, error) {
	codes, err := l.List(ctx)
	if err != nil {
		return nil, err
	}
	for i := range codes {
		if codes[i].QRCodeID == qrCodeID {
			return &codes[i], nil
		}
	}
	return nil, ErrNotFound
}
