package qrcode

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var pngMagic = []byte("\x89PNG\r\n\x1a\n")

func fixedGenerator() *Generator {
	at := time.Date(2024, 3, 11, 9, 30, 0, 0, time.UTC)
	return NewGenerator(7, func() time.Time { return at })
}

func TestQRIdFormat(t *testing.T) {
	gen := fixedGenerator()

	assert.Regexp(t, `^FARM-[0-9a-z]+-[0-9a-z]+-ABC123$`, gen.QRId("farmer", "ABC123"))
	assert.Regexp(t, `^WARE-[0-9a-z]+-[0-9a-z]+$`, gen.QRId("warehouse", ""))
	assert.Regexp(t, `^FARM-[0-9a-z]+-[0-9a-z]+-ABC123$`, GenerateQRId("farmer", "ABC123"))
}

func TestPrefix(t *testing.T) {
	tests := map[string]string{
		"farmer":    "FARM",
		"Warehouse": "WARE",
		"consumer":  "CONS",
		"product":   "PROD",
		"logistics": "LOGI",
		"qa":        "QA",
		"":          "QR",
	}
	for module, want := range tests {
		assert.Equal(t, want, Prefix(module), module)
	}
}

func TestQRIdsDifferWithinOneMillisecond(t *testing.T) {
	gen := fixedGenerator()
	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		id := gen.QRId("farmer", "FRM001")
		assert.False(t, seen[id], "duplicate id %s", id)
		seen[id] = true
	}
}

func TestProductID(t *testing.T) {
	gen := fixedGenerator()

	assert.Regexp(t, `^RIC-[0-9A-Z]+$`, gen.ProductID("Rice"))
	assert.Regexp(t, `^PUL-[0-9A-Z]+$`, gen.ProductID("pulses"))
	assert.Regexp(t, `^PRD-[0-9A-Z]+$`, gen.ProductID("  "))
}

func TestBlockchainHashFormat(t *testing.T) {
	gen := fixedGenerator()

	h := gen.BlockchainHash()
	assert.Regexp(t, `^0x[0-9a-f]{40}$`, h)
	assert.NotEqual(t, h, gen.BlockchainHash())
	assert.Regexp(t, `^0x[0-9a-f]{40}$`, GenerateBlockchainHash())
}

func TestStringHash(t *testing.T) {
	assert.Equal(t, uint32(0), StringHash(""))
	assert.Equal(t, uint32(97), StringHash("a"))
	assert.Equal(t, uint32(3105), StringHash("ab"))
}

func TestRenderSVGIsDeterministic(t *testing.T) {
	a := RenderSVG("FARM-abc-def-FRM001", 120)
	b := RenderSVG("FARM-abc-def-FRM001", 120)
	c := RenderSVG("FARM-abc-def-FRM002", 120)

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.True(t, strings.HasPrefix(a, `<svg xmlns="http://www.w3.org/2000/svg" width="120" height="120"`))
	assert.True(t, strings.HasSuffix(a, `</svg>`))
}

func TestImageURL(t *testing.T) {
	r := NewRenderer("https://api.qrserver.com/v1/create-qr-code/", 200, time.Second)

	u, err := url.Parse(r.ImageURL(`{"qrCodeId":"X"}`, 0))
	require.NoError(t, err)
	assert.Equal(t, "api.qrserver.com", u.Host)
	assert.Equal(t, "200x200", u.Query().Get("size"))
	assert.Equal(t, `{"qrCodeId":"X"}`, u.Query().Get("data"))

	u, err = url.Parse(r.ImageURL("X", 300))
	require.NoError(t, err)
	assert.Equal(t, "300x300", u.Query().Get("size"))
}

func TestPNGUsesRemoteEndpoint(t *testing.T) {
	var gotData string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotData = r.URL.Query().Get("data")
		w.Header().Set("Content-Type", "image/png")
		w.Write(append(pngMagic, []byte("remote")...))
	}))
	defer srv.Close()

	r := NewRenderer(srv.URL, 150, time.Second)
	img, renderer, err := r.PNG(context.Background(), "hello", 0)
	require.NoError(t, err)
	assert.Equal(t, RendererRemote, renderer)
	assert.Equal(t, "hello", gotData)
	assert.True(t, bytes.HasSuffix(img, []byte("remote")))
}

func TestPNGFallsBackToLocalEncoder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	r := NewRenderer(srv.URL, 128, time.Second)

	_, err := r.Fetch(context.Background(), "hello", 0)
	assert.Error(t, err)

	img, renderer, err := r.PNG(context.Background(), "hello", 0)
	require.NoError(t, err)
	assert.Equal(t, RendererLocal, renderer)
	assert.True(t, bytes.HasPrefix(img, pngMagic))
}

func TestEncodePayload(t *testing.T) {
	s, err := EncodePayload(Payload{Type: "farmer", QRCodeID: "FARM-1-2-FRM001", FarmerID: "FRM001"})
	require.NoError(t, err)
	assert.Contains(t, s, `"type":"farmer"`)
	assert.Contains(t, s, `"qrCodeId":"FARM-1-2-FRM001"`)
	assert.NotContains(t, s, "productId")
}
