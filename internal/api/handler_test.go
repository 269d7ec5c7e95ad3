package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"greenledger/internal/auth"
	"greenledger/internal/broker"
	"greenledger/internal/history"
	"greenledger/internal/kv"
	"greenledger/internal/models"
	"greenledger/internal/qrcode"
	"greenledger/internal/service"
	"greenledger/internal/tracking"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func newTestRouter(t *testing.T, seed int) (*gin.Engine, *Handler) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := kv.NewMemoryStore()
	gen := qrcode.NewGenerator(42, nil)
	mgr := history.NewManager(store, gen, seed)
	ledger := history.NewFarmerLedger(store)
	publisher := broker.NewEventPublisher(broker.NewLogProducer())
	renderer := qrcode.NewRenderer("https://api.qrserver.com/v1/create-qr-code/", 200, time.Second)
	trk := tracking.NewService(nil)

	local := auth.NewLocalProvider(store, auth.LocalOptions{AllowDemoOTP: true, BcryptCost: bcrypt.MinCost})
	sessions := auth.NewSessionStore(store, time.Hour, nil)
	authService := auth.NewService(auth.NewRemoteProvider("", "", time.Second), local, sessions, publisher)

	h := NewHandler(
		service.NewQRService(store, mgr, ledger, gen, renderer, publisher),
		service.NewDashboardService(mgr, ledger, trk),
		mgr,
		trk,
		authService,
		auth.NewFarmerLogin(store, authService, 0, nil),
	)
	router := gin.New()
	h.SetupRoutes(router)
	return router, h
}

func do(t *testing.T, router http.Handler, method, path string, body interface{}, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), v))
}

func TestHealth(t *testing.T) {
	router, h := newTestRouter(t, 0)

	w := do(t, router, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = do(t, router, http.MethodGet, "/ready", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	h.WithReadinessCheck("postgres", func(ctx context.Context) error { return errors.New("down") })
	w = do(t, router, http.MethodGet, "/ready", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestSeededHistory(t *testing.T) {
	router, _ := newTestRouter(t, history.DefaultSeedCount)

	w := do(t, router, http.MethodGet, "/api/v1/qr?limit=500", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var page struct {
		Entries []models.QRHistoryEntry `json:"entries"`
		Total   int                     `json:"total"`
		Limit   int                     `json:"limit"`
	}
	decode(t, w, &page)
	assert.Equal(t, 55, page.Total)
	assert.Equal(t, maxPageSize, page.Limit)
	assert.Len(t, page.Entries, 55)

	w = do(t, router, http.MethodGet, "/api/v1/qr?sort=color", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = do(t, router, http.MethodGet, "/api/v1/qr?scanned=maybe", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestQRLifecycle(t *testing.T) {
	router, _ := newTestRouter(t, 0)

	w := do(t, router, http.MethodPost, "/api/v1/qr", map[string]interface{}{
		"module": "warehouse", "farmerId": "FRM003", "productName": "Turmeric", "quantity": 40, "price": 120,
	}, "Idempotency-Key", "abc")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var entry models.QRHistoryEntry
	decode(t, w, &entry)
	assert.Regexp(t, `^WARE-[0-9a-z]+-[0-9a-z]+-FRM003$`, entry.QRCodeID)

	w = do(t, router, http.MethodPost, "/api/v1/qr", map[string]interface{}{
		"module": "warehouse", "farmerId": "FRM003", "productName": "Turmeric", "quantity": 40, "price": 120,
	}, "Idempotency-Key", "abc")
	require.Equal(t, http.StatusCreated, w.Code)
	var again models.QRHistoryEntry
	decode(t, w, &again)
	assert.Equal(t, entry.QRCodeID, again.QRCodeID)

	w = do(t, router, http.MethodPost, "/api/v1/qr", map[string]interface{}{
		"module": "market", "farmerId": "FRM003", "productName": "Turmeric", "quantity": 40,
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, router, http.MethodPost, "/api/v1/qr", map[string]interface{}{
		"module": "farmer", "farmerId": "FRM404", "productName": "Turmeric", "quantity": 40,
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, router, http.MethodGet, "/api/v1/qr/"+entry.QRCodeID, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = do(t, router, http.MethodPatch, "/api/v1/qr/"+entry.QRCodeID, map[string]interface{}{"price": 135.5})
	require.Equal(t, http.StatusOK, w.Code)
	var patched models.QRHistoryEntry
	decode(t, w, &patched)
	assert.Equal(t, 135.5, patched.Price)

	w = do(t, router, http.MethodPatch, "/api/v1/qr/NOPE-1-2", map[string]interface{}{"price": 1})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(t, router, http.MethodPost, "/api/v1/qr/"+entry.QRCodeID+"/scan", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = do(t, router, http.MethodGet, "/api/v1/qr/"+entry.QRCodeID+"/image?format=svg&size=100", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "image/svg+xml", w.Header().Get("Content-Type"))
	assert.Equal(t, qrcode.RendererSVG, w.Header().Get("X-QR-Renderer"))

	w = do(t, router, http.MethodGet, "/api/v1/qr/"+entry.QRCodeID+"/image?size=5", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, router, http.MethodGet, "/api/v1/verify/"+entry.QRCodeID, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	w = do(t, router, http.MethodGet, "/api/v1/verify/NOPE-1-2", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(t, router, http.MethodGet, "/api/v1/qr/stats", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var stats struct {
		Stats    history.Stats `json:"stats"`
		ScanRate float64       `json:"scanRate"`
	}
	decode(t, w, &stats)
	assert.Equal(t, 1, stats.Stats.Total)
	assert.Equal(t, 100.0, stats.ScanRate)

	w = do(t, router, http.MethodDelete, "/api/v1/qr", nil)
	require.Equal(t, http.StatusOK, w.Code)
	w = do(t, router, http.MethodGet, "/api/v1/qr/"+entry.QRCodeID, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAuthEndpoints(t *testing.T) {
	router, _ := newTestRouter(t, 0)

	w := do(t, router, http.MethodPost, "/api/v1/auth/signup", map[string]string{
		"email": "meena@example.com", "password": "paddy123",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = do(t, router, http.MethodPost, "/api/v1/auth/signup", map[string]string{
		"email": "meena@example.com", "password": "paddy123",
	})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = do(t, router, http.MethodPost, "/api/v1/auth/signin", map[string]string{
		"email": "meena@example.com", "password": "paddy123",
	})
	require.Equal(t, http.StatusOK, w.Code)
	var res auth.Result
	decode(t, w, &res)
	assert.Equal(t, models.SourceFallback, res.Source)
	assert.Equal(t, models.RoleFarmer, res.User.Role)

	w = do(t, router, http.MethodGet, "/api/v1/auth/session", nil, "Authorization", "Bearer "+res.Session.Token)
	assert.Equal(t, http.StatusOK, w.Code)

	w = do(t, router, http.MethodPost, "/api/v1/auth/signout", nil, "Authorization", "Bearer "+res.Session.Token)
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = do(t, router, http.MethodGet, "/api/v1/auth/session", nil, "Authorization", "Bearer "+res.Session.Token)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = do(t, router, http.MethodPost, "/api/v1/auth/signin", map[string]string{
		"email": "meena@example.com", "password": "wrong-one",
	})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = do(t, router, http.MethodPost, "/api/v1/auth/otp/send", map[string]string{"phone": "12345"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, router, http.MethodPost, "/api/v1/auth/otp/send", map[string]string{"phone": "9437000000"})
	require.Equal(t, http.StatusAccepted, w.Code)

	w = do(t, router, http.MethodPost, "/api/v1/auth/otp/verify", map[string]string{"phone": "9437000000", "otp": "12-34-56"})
	assert.Equal(t, http.StatusOK, w.Code)

	w = do(t, router, http.MethodPost, "/api/v1/auth/aadhaar/verify", map[string]string{"aadhaar": "12345678901a"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, router, http.MethodGet, "/api/v1/auth/oauth/google", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestFarmerLoginEndpoints(t *testing.T) {
	router, _ := newTestRouter(t, 0)

	w := do(t, router, http.MethodPost, "/api/v1/auth/farmer-login", map[string]string{"aadhaar": "987654321098"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var flow auth.LoginFlow
	decode(t, w, &flow)
	assert.Equal(t, auth.StepPIN, flow.Step)
	assert.Empty(t, flow.Aadhaar)

	base := "/api/v1/auth/farmer-login/" + flow.ID
	w = do(t, router, http.MethodPost, base+"/otp", map[string]string{"otp": "123456"})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = do(t, router, http.MethodPost, base+"/pin", map[string]string{"pin": "12"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, router, http.MethodPost, base+"/pin", map[string]string{"pin": "2580"})
	require.Equal(t, http.StatusOK, w.Code)
	w = do(t, router, http.MethodPost, base+"/phone", map[string]string{"phone": "9861000000"})
	require.Equal(t, http.StatusOK, w.Code)
	w = do(t, router, http.MethodPost, base+"/otp", map[string]string{"otp": "123456"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = do(t, router, http.MethodGet, base, nil)
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &flow)
	assert.Equal(t, auth.StepSuccess, flow.Step)

	w = do(t, router, http.MethodGet, "/api/v1/auth/farmer-login/unknown", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestReferenceAndTrackingEndpoints(t *testing.T) {
	router, _ := newTestRouter(t, 0)

	w := do(t, router, http.MethodGet, "/api/v1/locations/districts", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var districts []models.District
	decode(t, w, &districts)
	assert.Len(t, districts, 30)

	w = do(t, router, http.MethodGet, "/api/v1/locations/districts/Atlantis/taluks", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(t, router, http.MethodGet, "/api/v1/farmers/FRM001", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	w = do(t, router, http.MethodGet, "/api/v1/farmers/FRM999", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(t, router, http.MethodPost, "/api/v1/farmers/FRM001/qr", nil)
	assert.Equal(t, http.StatusCreated, w.Code)
	w = do(t, router, http.MethodGet, "/api/v1/farmers/FRM001/qr", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var codes []models.FarmerQR
	decode(t, w, &codes)
	assert.Len(t, codes, 1)

	w = do(t, router, http.MethodGet, "/api/v1/tracking/routes?status=delayed", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var routes []tracking.RouteView
	decode(t, w, &routes)
	require.Len(t, routes, 1)
	assert.Equal(t, "TRK003", routes[0].ID)

	w = do(t, router, http.MethodGet, "/api/v1/tracking/routes?status=lost", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = do(t, router, http.MethodGet, "/api/v1/tracking/routes/TRK404", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	w = do(t, router, http.MethodGet, "/api/v1/tracking/lookup/GL-OD-240311-001", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	w = do(t, router, http.MethodGet, "/api/v1/tracking/summary", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = do(t, router, http.MethodGet, "/api/v1/dashboard/farmer/FRM001", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	w = do(t, router, http.MethodGet, "/api/v1/dashboard/warehouse?warehouseId=WH999", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = do(t, router, http.MethodGet, "/api/v1/dashboard/consumer", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = do(t, router, http.MethodGet, "/api/v1/stats/scans", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}
