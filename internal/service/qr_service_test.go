package service

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"testing"
	"time"

	"greenledger/internal/broker"
	"greenledger/internal/history"
	"greenledger/internal/kv"
	"greenledger/internal/models"
	"greenledger/internal/qrcode"
	"greenledger/internal/tracking"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type capturingProducer struct {
	events []interface{}
}

func (p *capturingProducer) PublishEvent(ctx context.Context, key string, event interface{}) error {
	p.events = append(p.events, event)
	return nil
}

func (p *capturingProducer) Close() error { return nil }

type fixture struct {
	store    kv.Store
	history  *history.Manager
	qr       *QRService
	dash     *DashboardService
	producer *capturingProducer
}

func newFixture(t *testing.T, renderEndpoint string) *fixture {
	t.Helper()
	store := kv.NewMemoryStore()
	gen := qrcode.NewGenerator(7, func() time.Time { return time.Date(2024, 3, 11, 10, 0, 0, 0, time.UTC) })
	mgr := history.NewManager(store, gen, 0)
	ledger := history.NewFarmerLedger(store)
	producer := &capturingProducer{}
	publisher := broker.NewEventPublisher(producer)
	renderer := qrcode.NewRenderer(renderEndpoint, 200, time.Second)

	return &fixture{
		store:    store,
		history:  mgr,
		qr:       NewQRService(store, mgr, ledger, gen, renderer, publisher),
		dash:     NewDashboardService(mgr, ledger, tracking.NewService(nil)),
		producer: producer,
	}
}

func riceRequest() *GenerateQRRequest {
	return &GenerateQRRequest{
		Module:      models.ModuleFarmer,
		FarmerID:    "FRM001",
		ProductName: "Basmati Rice",
		Quantity:    120,
		Price:       45.5,
	}
}

func TestGenerateProductQR(t *testing.T) {
	f := newFixture(t, "https://api.qrserver.com/v1/create-qr-code/")
	ctx := context.Background()

	entry, err := f.qr.GenerateProductQR(ctx, riceRequest())
	require.NoError(t, err)

	assert.Regexp(t, regexp.MustCompile(`^FARM-[0-9a-z]+-[0-9a-z]+-FRM001$`), entry.QRCodeID)
	assert.Regexp(t, regexp.MustCompile(`^0x[0-9a-f]{40}$`), entry.BlockchainHash)
	assert.Equal(t, "FRM001", entry.FarmerID)
	assert.NotEmpty(t, entry.FarmerName)
	assert.NotEmpty(t, entry.WarehouseID)
	assert.Equal(t, models.GradeA, entry.QualityGrade)
	assert.True(t, strings.HasPrefix(entry.QRImageURL, "https://api.qrserver.com/v1/create-qr-code/?"))
	assert.Contains(t, entry.QRImageURL, "size=200x200")

	entries, err := f.history.GetHistory(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, entry.QRCodeID, entries[0].QRCodeID)

	require.Len(t, f.producer.events, 1)
	event, ok := f.producer.events[0].(*models.QRGeneratedEvent)
	require.True(t, ok)
	assert.Equal(t, models.EventTypeQRGenerated, event.EventType)
	assert.Equal(t, entry.QRCodeID, event.QRCodeID)
}

func TestGenerateProductQRIdempotency(t *testing.T) {
	f := newFixture(t, "https://api.qrserver.com/v1/create-qr-code/")
	ctx := context.Background()

	req := riceRequest()
	req.IdempotencyKey = "form-submit-1"
	first, err := f.qr.GenerateProductQR(ctx, req)
	require.NoError(t, err)
	second, err := f.qr.GenerateProductQR(ctx, req)
	require.NoError(t, err)

	assert.Equal(t, first.QRCodeID, second.QRCodeID)
	entries, err := f.history.GetHistory(ctx)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestIdempotencyKeyReusableAfterClear(t *testing.T) {
	f := newFixture(t, "")
	ctx := context.Background()

	req := riceRequest()
	req.IdempotencyKey = "k1"
	first, err := f.qr.GenerateProductQR(ctx, req)
	require.NoError(t, err)

	_, err = f.qr.ClearHistory(ctx)
	require.NoError(t, err)

	second, err := f.qr.GenerateProductQR(ctx, req)
	require.NoError(t, err)
	assert.NotEqual(t, first.QRCodeID, second.QRCodeID)

	third, err := f.qr.GenerateProductQR(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, second.QRCodeID, third.QRCodeID)

	entries, err := f.history.GetHistory(ctx)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

// historyWriteFailure fails writes to the QR history while failing is set
type historyWriteFailure struct {
	kv.Store
	failing bool
}

func (s *historyWriteFailure) Put(ctx context.Context, key string, value []byte, expectedVersion int64) (int64, error) {
	if s.failing && key == kv.KeyQRHistory {
		return 0, errors.New("disk full")
	}
	return s.Store.Put(ctx, key, value, expectedVersion)
}

func TestIdempotencyKeyReleasedWhenHistoryWriteFails(t *testing.T) {
	store := &historyWriteFailure{Store: kv.NewMemoryStore()}
	gen := qrcode.NewGenerator(7, nil)
	mgr := history.NewManager(store, gen, 0)
	svc := NewQRService(store, mgr, history.NewFarmerLedger(store), gen,
		qrcode.NewRenderer("", 200, time.Second), broker.NewEventPublisher(&capturingProducer{}))
	ctx := context.Background()

	req := riceRequest()
	req.IdempotencyKey = "k2"

	store.failing = true
	_, err := svc.GenerateProductQR(ctx, req)
	require.Error(t, err)

	_, err = store.Get(ctx, kv.QRIdempotencyKey("k2"))
	assert.ErrorIs(t, err, kv.ErrNotFound)

	store.failing = false
	entry, err := svc.GenerateProductQR(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, "FRM001", entry.FarmerID)
}

func TestGenerateProductQRUnknownFarmer(t *testing.T) {
	f := newFixture(t, "")
	req := riceRequest()
	req.FarmerID = "FRM999"

	_, err := f.qr.GenerateProductQR(context.Background(), req)
	assert.ErrorIs(t, err, ErrUnknownFarmer)

	req = riceRequest()
	req.WarehouseID = "WH999"
	_, err = f.qr.GenerateProductQR(context.Background(), req)
	assert.ErrorIs(t, err, ErrUnknownWarehouse)
}

func TestScan(t *testing.T) {
	f := newFixture(t, "")
	ctx := context.Background()

	entry, err := f.qr.GenerateProductQR(ctx, riceRequest())
	require.NoError(t, err)
	assert.False(t, entry.Scanned())

	scanned, err := f.qr.Scan(ctx, entry.QRCodeID)
	require.NoError(t, err)
	assert.True(t, scanned.Scanned())
	assert.Equal(t, 1, scanned.ScanCount)

	scanned, err = f.qr.Scan(ctx, entry.QRCodeID)
	require.NoError(t, err)
	assert.Equal(t, 2, scanned.ScanCount)

	_, err = f.qr.Scan(ctx, "FARM-nope")
	assert.ErrorIs(t, err, ErrQRNotFound)
}

func TestFarmerQR(t *testing.T) {
	f := newFixture(t, "")
	ctx := context.Background()

	code, err := f.qr.GenerateFarmerQR(ctx, "FRM002")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(code.QRCodeID, "FARM-"))

	codes, err := f.qr.FarmerQRs(ctx, "FRM002")
	require.NoError(t, err)
	require.Len(t, codes, 1)
	assert.Equal(t, code.QRCodeID, codes[0].QRCodeID)

	_, err = f.qr.GenerateFarmerQR(ctx, "nobody")
	assert.ErrorIs(t, err, ErrUnknownFarmer)
}

func TestImage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	f := newFixture(t, srv.URL)
	ctx := context.Background()

	entry, err := f.qr.GenerateProductQR(ctx, riceRequest())
	require.NoError(t, err)

	svg, err := f.qr.Image(ctx, entry.QRCodeID, FormatSVG, 0)
	require.NoError(t, err)
	assert.Equal(t, "image/svg+xml", svg.ContentType)
	assert.True(t, strings.HasPrefix(string(svg.Data), "<svg"))

	png, err := f.qr.Image(ctx, entry.QRCodeID, FormatPNG, 128)
	require.NoError(t, err)
	assert.Equal(t, qrcode.RendererLocal, png.Renderer)
	assert.Equal(t, []byte("\x89PNG"), png.Data[:4])

	_, err = f.qr.Image(ctx, entry.QRCodeID, "gif", 0)
	assert.Error(t, err)

	_, err = f.qr.Image(ctx, "missing", FormatSVG, 0)
	assert.ErrorIs(t, err, ErrQRNotFound)
}

func TestClearHistory(t *testing.T) {
	f := newFixture(t, "")
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := f.qr.GenerateProductQR(ctx, riceRequest())
		require.NoError(t, err)
	}

	removed, err := f.qr.ClearHistory(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, removed)

	entries, err := f.history.GetHistory(ctx)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestDashboards(t *testing.T) {
	f := newFixture(t, "")
	ctx := context.Background()

	entry, err := f.qr.GenerateProductQR(ctx, riceRequest())
	require.NoError(t, err)
	other := riceRequest()
	other.FarmerID = "FRM002"
	_, err = f.qr.GenerateProductQR(ctx, other)
	require.NoError(t, err)
	_, err = f.qr.Scan(ctx, entry.QRCodeID)
	require.NoError(t, err)

	farmer, err := f.dash.Farmer(ctx, "FRM001")
	require.NoError(t, err)
	assert.Len(t, farmer.Entries, 1)
	assert.Equal(t, 1, farmer.Stats.Scanned)
	assert.Equal(t, 100.0, farmer.ScanRate)
	require.Len(t, farmer.Shipments, 1)
	assert.Equal(t, "TRK001", farmer.Shipments[0].ID)

	_, err = f.dash.Farmer(ctx, "FRM999")
	assert.ErrorIs(t, err, ErrUnknownFarmer)

	wh, err := f.dash.Warehouse(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, 2, wh.Stats.Total)
	total := 0
	for _, n := range wh.StockLevels {
		total += n
	}
	assert.Equal(t, 2, total)

	consumer, err := f.dash.Consumer(ctx)
	require.NoError(t, err)
	require.Len(t, consumer.Scanned, 1)
	assert.Equal(t, entry.QRCodeID, consumer.Scanned[0].QRCodeID)

	v, err := f.dash.Verify(ctx, entry.QRCodeID)
	require.NoError(t, err)
	assert.True(t, v.Verified)
	assert.Equal(t, entry.BlockchainHash, v.BlockchainHash)
	require.NotNil(t, v.Farmer)
	assert.Equal(t, "FRM001", v.Farmer.ID)

	v, err = f.dash.Verify(ctx, "FAKE-1-2")
	require.NoError(t, err)
	assert.False(t, v.Verified)
}

func TestStockBand(t *testing.T) {
	assert.Equal(t, StockLow, StockBand(10))
	assert.Equal(t, StockMedium, StockBand(30))
	assert.Equal(t, StockHigh, StockBand(70))
}
