package qrcode

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"greenledger/internal/util"

	goqrcode "github.com/skip2/go-qrcode"
	"go.uber.org/zap"
)

// Renderer names reported alongside rendered images
const (
	RendererRemote = "remote"
	RendererLocal  = "local"
	RendererSVG    = "svg"
)

const maxImageBytes = 2 << 20

// Renderer produces QR images through the public render endpoint, with a
// local encoder as the fallback when the endpoint is unavailable.
type Renderer struct {
	endpoint string
	size     int
	client   *http.Client
	logger   *zap.Logger
}

// NewRenderer creates a renderer for the given endpoint
func NewRenderer(endpoint string, size int, timeout time.Duration) *Renderer {
	if size <= 0 {
		size = 200
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Renderer{
		endpoint: endpoint,
		size:     size,
		client:   &http.Client{Timeout: timeout},
		logger:   util.Named("qr-renderer"),
	}
}

// DefaultSize is the configured image edge in pixels
func (r *Renderer) DefaultSize() int {
	return r.size
}

// ImageURL builds the render endpoint URL for data
func (r *Renderer) ImageURL(data string, size int) string {
	if size <= 0 {
		size = r.size
	}
	q := url.Values{}
	q.Set("size", fmt.Sprintf("%dx%d", size, size))
	q.Set("data", data)
	return r.endpoint + "?" + q.Encode()
}

// Fetch downloads the PNG for data from the render endpoint
func (r *Renderer) Fetch(ctx context.Context, data string, size int) ([]byte, error) {
	ctx, span := util.StartSpan(ctx, "Renderer.Fetch")
	defer span.End()

	start := time.Now()
	defer func() {
		util.QRRenderLatency.WithLabelValues(RendererRemote).Observe(time.Since(start).Seconds())
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.ImageURL(data, size), nil)
	if err != nil {
		return nil, util.RecordError(span, fmt.Errorf("failed to build render request: %w", err))
	}

	resp, err := r.client.Do(req)
	if err != nil {
		util.QRRenderFailedTotal.Inc()
		return nil, util.RecordError(span, fmt.Errorf("render endpoint unreachable: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		util.QRRenderFailedTotal.Inc()
		return nil, util.RecordError(span, fmt.Errorf("render endpoint returned status %d", resp.StatusCode))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes))
	if err != nil {
		util.QRRenderFailedTotal.Inc()
		return nil, util.RecordError(span, fmt.Errorf("failed to read render response: %w", err))
	}
	return body, nil
}

// Local encodes data as a PNG in-process
func (r *Renderer) Local(data string, size int) ([]byte, error) {
	if size <= 0 {
		size = r.size
	}
	start := time.Now()
	defer func() {
		util.QRRenderLatency.WithLabelValues(RendererLocal).Observe(time.Since(start).Seconds())
	}()
	return goqrcode.Encode(data, goqrcode.Medium, size)
}

// PNG returns a PNG for data and the renderer that produced it. The remote
// endpoint is tried first.
func (r *Renderer) PNG(ctx context.Context, data string, size int) ([]byte, string, error) {
	img, err := r.Fetch(ctx, data, size)
	if err == nil {
		return img, RendererRemote, nil
	}

	r.logger.Warn("Remote QR render failed, encoding locally",
		zap.Int("size", size),
		zap.Error(err))

	img, err = r.Local(data, size)
	if err != nil {
		return nil, "", fmt.Errorf("local QR encode failed: %w", err)
	}
	return img, RendererLocal, nil
}
