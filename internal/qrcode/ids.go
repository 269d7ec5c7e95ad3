// Package qrcode produces the identifiers, payloads and images behind
// product and farmer QR codes. The ids only need to look plausible and
// avoid incidental collisions; none of them are cryptographic.
package qrcode

import (
	"encoding/hex"
	"encoding/json"
	"math/rand"
	"strconv"
	"strings"
	"sync"
	"time"
)

var modulePrefixes = map[string]string{
	"farmer":    "FARM",
	"warehouse": "WARE",
	"consumer":  "CONS",
	"product":   "PROD",
}

// Generator produces ids from an injectable clock and random source.
// It is safe for concurrent use.
type Generator struct {
	mu  sync.Mutex
	rnd *rand.Rand
	now func() time.Time
}

// NewGenerator creates a generator with a fixed seed and clock. A nil
// clock means time.Now.
func NewGenerator(seed int64, now func() time.Time) *Generator {
	if now == nil {
		now = time.Now
	}
	return &Generator{
		rnd: rand.New(rand.NewSource(seed)),
		now: now,
	}
}

var defaultGenerator = NewGenerator(time.Now().UnixNano(), nil)

// Default returns the process-wide generator
func Default() *Generator {
	return defaultGenerator
}

// Prefix returns the id prefix for a module
func Prefix(module string) string {
	module = strings.ToLower(strings.TrimSpace(module))
	if p, ok := modulePrefixes[module]; ok {
		return p
	}
	if module == "" {
		return "QR"
	}
	if len(module) > 4 {
		module = module[:4]
	}
	return strings.ToUpper(module)
}

// QRId returns {PREFIX}-{base36 unix ms}-{random base36}[-{suffix}]
func (g *Generator) QRId(module, suffix string) string {
	g.mu.Lock()
	ts := strconv.FormatInt(g.now().UnixMilli(), 36)
	random := strconv.FormatInt(g.rnd.Int63n(2176782336), 36)
	g.mu.Unlock()

	id := Prefix(module) + "-" + ts + "-" + random
	if suffix = strings.TrimSpace(suffix); suffix != "" {
		id += "-" + suffix
	}
	return id
}

// ProductID returns {CROP}-{base36 unix ms}{random}, the crop part being
// the first three letters of the crop type.
func (g *Generator) ProductID(cropType string) string {
	crop := strings.ToUpper(strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') {
			return r
		}
		return -1
	}, cropType))
	if len(crop) > 3 {
		crop = crop[:3]
	}
	if crop == "" {
		crop = "PRD"
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	return crop + "-" + strings.ToUpper(strconv.FormatInt(g.now().UnixMilli(), 36)+strconv.FormatInt(g.rnd.Int63n(1296), 36))
}

// BlockchainHash returns "0x" followed by 40 random hex characters. It is
// display dressing and does not reference any ledger.
func (g *Generator) BlockchainHash() string {
	buf := make([]byte, 20)
	g.mu.Lock()
	g.rnd.Read(buf)
	g.mu.Unlock()
	return "0x" + hex.EncodeToString(buf)
}

// Float returns a random value in [min, max)
func (g *Generator) Float(min, max float64) float64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return min + g.rnd.Float64()*(max-min)
}

// Intn returns a random value in [0, n)
func (g *Generator) Intn(n int) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.rnd.Intn(n)
}

// Now returns the generator clock
func (g *Generator) Now() time.Time {
	return g.now()
}

// GenerateQRId uses the default generator
func GenerateQRId(module, suffix string) string {
	return defaultGenerator.QRId(module, suffix)
}

// GenerateBlockchainHash uses the default generator
func GenerateBlockchainHash() string {
	return defaultGenerator.BlockchainHash()
}

// Payload is the JSON document encoded into a QR image
type Payload struct {
	Type        string    `json:"type"`
	QRCodeID    string    `json:"qrCodeId"`
	ProductID   string    `json:"productId,omitempty"`
	ProductName string    `json:"productName,omitempty"`
	FarmerID    string    `json:"farmerId"`
	FarmerName  string    `json:"farmerName,omitempty"`
	District    string    `json:"district,omitempty"`
	Hash        string    `json:"hash,omitempty"`
	GeneratedAt time.Time `json:"generatedAt"`
}

// EncodePayload renders the payload as the string stored in the QR image
func EncodePayload(p Payload) (string, error) {
	b, err := json.Marshal(p)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
