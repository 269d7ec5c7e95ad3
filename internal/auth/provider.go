// Package auth signs users in against an optional external identity
// service and falls back to a locally stored account store whenever that
// service is missing or failing.
package auth

import (
	"context"

	"greenledger/internal/models"
)

// DemoOTP is the universal code the local fallback accepts when the demo
// bypass is enabled. It is an authentication bypass: anyone who knows a
// phone number can sign in as its owner.
const DemoOTP = "123456"

// AadhaarResult is the outcome of an Aadhaar check. Verified only means
// the number is well-formed unless the remote service vouched for it.
type AadhaarResult struct {
	Masked   string `json:"masked"`
	Verified bool   `json:"verified"`
	Name     string `json:"name,omitempty"`
	Source   string `json:"source"`
}

// Provider is one identity backend
type Provider interface {
	SignUp(ctx context.Context, email, password string, meta models.UserMetadata) (*models.User, error)
	SignIn(ctx context.Context, email, password string) (*models.User, error)
	SendOTP(ctx context.Context, phone string) error
	VerifyOTP(ctx context.Context, phone, code string) (*models.User, error)
	VerifyAadhaar(ctx context.Context, aadhaar string) (*AadhaarResult, error)
	OAuthURL(ctx context.Context, provider, redirectTo string) (string, error)
}

// MaskAadhaar keeps the last four digits
func MaskAadhaar(aadhaar string) string {
	if len(aadhaar) < 4 {
		return "XXXX-XXXX-XXXX"
	}
	return "XXXX-XXXX-" + aadhaar[len(aadhaar)-4:]
}
