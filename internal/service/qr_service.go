package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"greenledger/internal/broker"
	"greenledger/internal/history"
	"greenledger/internal/kv"
	"greenledger/internal/models"
	"greenledger/internal/qrcode"
	"greenledger/internal/refdata"
	"greenledger/internal/util"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var (
	// ErrUnknownFarmer is returned when a farmer id is not in the roster
	ErrUnknownFarmer = errors.New("unknown farmer")
	// ErrUnknownWarehouse is returned when a warehouse id is not known
	ErrUnknownWarehouse = errors.New("unknown warehouse")
	// ErrQRNotFound is returned when no product or farmer code has the id
	ErrQRNotFound = errors.New("qr code not found")
)

// Image formats
const (
	FormatSVG = "svg"
	FormatPNG = "png"
)

// QRService generates, scans and renders QR codes
type QRService struct {
	store          kv.Store
	history        *history.Manager
	farmerCodes    *history.FarmerLedger
	gen            *qrcode.Generator
	renderer       *qrcode.Renderer
	eventPublisher *broker.EventPublisher
	logger         *zap.Logger
}

// NewQRService creates a new QR service
func NewQRService(
	store kv.Store,
	history *history.Manager,
	farmerCodes *history.FarmerLedger,
	gen *qrcode.Generator,
	renderer *qrcode.Renderer,
	eventPublisher *broker.EventPublisher,
) *QRService {
	if gen == nil {
		gen = qrcode.Default()
	}
	return &QRService{
		store:          store,
		history:        history,
		farmerCodes:    farmerCodes,
		gen:            gen,
		renderer:       renderer,
		eventPublisher: eventPublisher,
		logger:         util.GetLogger(),
	}
}

// GenerateQRRequest represents a request to generate a product QR code
type GenerateQRRequest struct {
	Module           string  `json:"module" binding:"required,oneof=farmer warehouse consumer"`
	FarmerID         string  `json:"farmerId" binding:"required"`
	ProductName      string  `json:"productName" binding:"required"`
	CropType         string  `json:"cropType"`
	Quantity         float64 `json:"quantity" binding:"required,gt=0"`
	Unit             string  `json:"unit"`
	Price            float64 `json:"price" binding:"gte=0"`
	QualityGrade     string  `json:"qualityGrade" binding:"omitempty,oneof=A B C"`
	OrganicCertified bool    `json:"organicCertified"`
	WarehouseID      string  `json:"warehouseId"`
	IdempotencyKey   string  `json:"idempotencyKey,omitempty"`
}

// GenerateProductQR creates a product QR code and records it in the history.
// Repeating a request with the same idempotency key returns the first code.
func (s *QRService) GenerateProductQR(ctx context.Context, req *GenerateQRRequest) (*models.QRHistoryEntry, error) {
	ctx, span := util.StartSpan(ctx, "QRService.GenerateProductQR", attribute.String("module", req.Module))
	defer span.End()

	var keyVersion int64
	if req.IdempotencyKey != "" {
		existing, version, err := s.byIdempotencyKey(ctx, req.IdempotencyKey)
		if err != nil {
			return nil, util.RecordError(span, fmt.Errorf("failed to check idempotency: %w", err))
		}
		if existing != nil {
			s.logger.Info("Duplicate QR request detected",
				zap.String("idempotency_key", req.IdempotencyKey),
				zap.String("qr_code_id", existing.QRCodeID))
			return existing, nil
		}
		keyVersion = version
	}

	entry, err := s.buildEntry(req)
	if err != nil {
		return nil, err
	}

	if req.IdempotencyKey != "" {
		// a stale key pointing at a cleared entry is taken over at its version
		_, err := s.store.Put(ctx, kv.QRIdempotencyKey(req.IdempotencyKey), []byte(entry.QRCodeID), keyVersion)
		if errors.Is(err, kv.ErrConflict) {
			// a concurrent request with the same key won
			existing, _, lookupErr := s.byIdempotencyKey(ctx, req.IdempotencyKey)
			if lookupErr == nil && existing != nil {
				return existing, nil
			}
			return nil, util.RecordError(span, err)
		}
		if err != nil {
			return nil, util.RecordError(span, fmt.Errorf("failed to store idempotency key: %w", err))
		}
	}

	if err := s.history.AddEntry(ctx, *entry); err != nil {
		if req.IdempotencyKey != "" {
			if delErr := s.store.Delete(ctx, kv.QRIdempotencyKey(req.IdempotencyKey)); delErr != nil && !errors.Is(delErr, kv.ErrNotFound) {
				s.logger.Error("Failed to release idempotency key",
					zap.String("idempotency_key", req.IdempotencyKey), zap.Error(delErr))
			}
		}
		return nil, util.RecordError(span, fmt.Errorf("failed to record qr code: %w", err))
	}

	util.QRGeneratedTotal.WithLabelValues(entry.Module).Inc()
	s.logger.Info("QR code generated",
		zap.String("qr_code_id", entry.QRCodeID),
		zap.String("farmer_id", entry.FarmerID),
		zap.String("module", entry.Module))

	event := &models.QRGeneratedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypeQRGenerated,
			Timestamp: time.Now(),
		},
		QRCodeID:  entry.QRCodeID,
		ProductID: entry.ProductID,
		Module:    entry.Module,
		FarmerID:  entry.FarmerID,
		District:  entry.District,
		CropType:  entry.CropType,
		Quantity:  entry.Quantity,
		Price:     entry.Price,
	}
	if err := s.eventPublisher.PublishQRGenerated(ctx, event); err != nil {
		s.logger.Error("Failed to publish QRGenerated event", zap.Error(err))
	}

	return entry, nil
}

// byIdempotencyKey returns the entry a key points at. When there is no
// live entry it returns the key's version instead, 0 if the key is unused.
func (s *QRService) byIdempotencyKey(ctx context.Context, key string) (*models.QRHistoryEntry, int64, error) {
	stored, err := s.store.Get(ctx, kv.QRIdempotencyKey(key))
	if errors.Is(err, kv.ErrNotFound) {
		return nil, 0, nil
	}
	if err != nil {
		return nil, 0, err
	}
	entry, err := s.history.FindByQRCodeID(ctx, string(stored.Value))
	if errors.Is(err, history.ErrNotFound) {
		return nil, stored.Version, nil
	}
	if err != nil {
		return nil, 0, err
	}
	return entry, 0, nil
}

func (s *QRService) buildEntry(req *GenerateQRRequest) (*models.QRHistoryEntry, error) {
	farmer, ok := refdata.FarmerByID(req.FarmerID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownFarmer, req.FarmerID)
	}

	warehouse := refdata.NearestWarehouse(farmer.District)
	if req.WarehouseID != "" {
		if warehouse, ok = refdata.WarehouseByID(req.WarehouseID); !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownWarehouse, req.WarehouseID)
		}
	}

	cropType, unit := req.CropType, req.Unit
	if product, ok := refdata.ProductByName(req.ProductName); ok {
		if cropType == "" {
			cropType = product.CropType
		}
		if unit == "" {
			unit = product.Unit
		}
	}
	if unit == "" {
		unit = "kg"
	}
	grade := req.QualityGrade
	if grade == "" {
		grade = models.GradeA
	}

	entry := &models.QRHistoryEntry{
		QRCodeID:         s.gen.QRId(req.Module, farmer.ID),
		ProductID:        s.gen.ProductID(cropType),
		Module:           req.Module,
		ProductName:      strings.TrimSpace(req.ProductName),
		CropType:         cropType,
		FarmerName:       farmer.Name,
		FarmerID:         farmer.ID,
		Taluk:            farmer.Taluk,
		District:         farmer.District,
		WarehouseID:      warehouse.ID,
		WarehouseName:    warehouse.Name,
		Quantity:         req.Quantity,
		Unit:             unit,
		Price:            req.Price,
		QualityGrade:     grade,
		OrganicCertified: req.OrganicCertified,
		BlockchainHash:   s.gen.BlockchainHash(),
		DateGenerated:    s.gen.Now(),
		Analytics:        history.RandomAnalytics(s.gen, req.Quantity, req.Price),
	}

	data, err := qrcode.EncodePayload(productPayload(entry))
	if err != nil {
		return nil, err
	}
	entry.QRImageURL = s.renderer.ImageURL(data, 0)
	return entry, nil
}

func productPayload(e *models.QRHistoryEntry) qrcode.Payload {
	return qrcode.Payload{
		Type:        "product",
		QRCodeID:    e.QRCodeID,
		ProductID:   e.ProductID,
		ProductName: e.ProductName,
		FarmerID:    e.FarmerID,
		FarmerName:  e.FarmerName,
		District:    e.District,
		Hash:        e.BlockchainHash,
		GeneratedAt: e.DateGenerated,
	}
}

func farmerPayload(c *models.FarmerQR) qrcode.Payload {
	return qrcode.Payload{
		Type:        "farmer",
		QRCodeID:    c.QRCodeID,
		FarmerID:    c.FarmerID,
		FarmerName:  c.FarmerName,
		District:    c.District,
		GeneratedAt: c.DateGenerated,
	}
}

// GenerateFarmerQR creates a farmer identity code
func (s *QRService) GenerateFarmerQR(ctx context.Context, farmerID string) (*models.FarmerQR, error) {
	ctx, span := util.StartSpan(ctx, "QRService.GenerateFarmerQR", attribute.String("farmer_id", farmerID))
	defer span.End()

	farmer, ok := refdata.FarmerByID(farmerID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownFarmer, farmerID)
	}

	code := &models.FarmerQR{
		QRCodeID:      s.gen.QRId(models.ModuleFarmer, farmer.ID),
		FarmerID:      farmer.ID,
		FarmerName:    farmer.Name,
		Phone:         farmer.Phone,
		District:      farmer.District,
		Taluk:         farmer.Taluk,
		Crops:         farmer.Crops,
		DateGenerated: s.gen.Now(),
	}
	data, err := qrcode.EncodePayload(farmerPayload(code))
	if err != nil {
		return nil, err
	}
	code.QRImageURL = s.renderer.ImageURL(data, 0)

	if err := s.farmerCodes.Add(ctx, *code); err != nil {
		return nil, util.RecordError(span, fmt.Errorf("failed to record farmer qr code: %w", err))
	}

	util.QRGeneratedTotal.WithLabelValues("farmer_identity").Inc()
	event := &models.FarmerQRGeneratedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypeFarmerQRGenerated,
			Timestamp: time.Now(),
		},
		QRCodeID: code.QRCodeID,
		FarmerID: code.FarmerID,
	}
	if err := s.eventPublisher.PublishFarmerQRGenerated(ctx, event); err != nil {
		s.logger.Error("Failed to publish FarmerQRGenerated event", zap.Error(err))
	}
	return code, nil
}

// FarmerQRs returns a farmer's identity codes, newest first
func (s *QRService) FarmerQRs(ctx context.Context, farmerID string) ([]models.FarmerQR, error) {
	if _, ok := refdata.FarmerByID(farmerID); !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownFarmer, farmerID)
	}
	return s.farmerCodes.FindByFarmer(ctx, farmerID)
}

// Scan records a scan of a product code
func (s *QRService) Scan(ctx context.Context, qrCodeID string) (*models.QRHistoryEntry, error) {
	ctx, span := util.StartSpan(ctx, "QRService.Scan", attribute.String("qr_code_id", qrCodeID))
	defer span.End()

	now := s.gen.Now()
	entry, err := s.history.MarkScanned(ctx, qrCodeID, now)
	if errors.Is(err, history.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrQRNotFound, qrCodeID)
	}
	if err != nil {
		return nil, util.RecordError(span, err)
	}

	util.QRScannedTotal.Inc()
	event := &models.QRScannedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypeQRScanned,
			Timestamp: time.Now(),
		},
		QRCodeID:  entry.QRCodeID,
		FarmerID:  entry.FarmerID,
		District:  entry.District,
		ScanCount: entry.ScanCount,
		ScannedAt: now,
	}
	if err := s.eventPublisher.PublishQRScanned(ctx, event); err != nil {
		s.logger.Error("Failed to publish QRScanned event", zap.Error(err))
	}
	return entry, nil
}

// ClearHistory empties the product history
func (s *QRService) ClearHistory(ctx context.Context) (int, error) {
	removed, err := s.history.Clear(ctx)
	if err != nil {
		return 0, err
	}
	event := &models.QRHistoryClearedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypeQRHistoryCleared,
			Timestamp: time.Now(),
		},
		Removed: removed,
	}
	if err := s.eventPublisher.PublishQRHistoryCleared(ctx, event); err != nil {
		s.logger.Error("Failed to publish QRHistoryCleared event", zap.Error(err))
	}
	return removed, nil
}

// Image is a rendered QR code
type Image struct {
	Data        []byte
	ContentType string
	Renderer    string
}

// Image renders the code with the given id, product or farmer, as SVG or PNG
func (s *QRService) Image(ctx context.Context, qrCodeID, format string, size int) (*Image, error) {
	ctx, span := util.StartSpan(ctx, "QRService.Image", attribute.String("qr_code_id", qrCodeID))
	defer span.End()

	payload, err := s.payloadFor(ctx, qrCodeID)
	if err != nil {
		return nil, util.RecordError(span, err)
	}
	data, err := qrcode.EncodePayload(payload)
	if err != nil {
		return nil, err
	}
	if size <= 0 {
		size = s.renderer.DefaultSize()
	}

	switch strings.ToLower(format) {
	case "", FormatSVG:
		return &Image{
			Data:        []byte(qrcode.RenderSVG(data, size)),
			ContentType: "image/svg+xml",
			Renderer:    qrcode.RendererSVG,
		}, nil
	case FormatPNG:
		img, renderer, err := s.renderer.PNG(ctx, data, size)
		if err != nil {
			return nil, util.RecordError(span, err)
		}
		return &Image{Data: img, ContentType: "image/png", Renderer: renderer}, nil
	default:
		return nil, fmt.Errorf("unsupported image format %q", format)
	}
}

func (s *QRService) payloadFor(ctx context.Context, qrCodeID string) (qrcode.Payload, error) {
	entry, err := s.history.FindByQRCodeID(ctx, qrCodeID)
	if err == nil {
		return productPayload(entry), nil
	}
	if !errors.Is(err, history.ErrNotFound) {
		return qrcode.Payload{}, err
	}

	code, err := s.farmerCodes.Find(ctx, qrCodeID)
	if err == nil {
		return farmerPayload(code), nil
	}
	if errors.Is(err, history.ErrNotFound) {
		return qrcode.Payload{}, fmt.Errorf("%w: %s", ErrQRNotFound, qrCodeID)
	}
	return qrcode.Payload{}, err
}
