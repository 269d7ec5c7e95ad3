package auth

import (
	"errors"
	"fmt"
)

var (
	// ErrNotConfigured is returned by the remote provider when no identity service is set up.
	ErrNotConfigured = errors.New("identity service not configured")
	// ErrInvalidCredentials is returned when the provided credentials are invalid.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrUserExists is returned when signing up an email that is taken.
	ErrUserExists = errors.New("user already exists")
	// ErrInvalidInput is returned for malformed emails, passwords, phones or Aadhaar numbers.
	ErrInvalidInput = errors.New("invalid input")
	// ErrInvalidOTP is returned when an OTP does not match.
	ErrInvalidOTP = errors.New("invalid otp")
	// ErrOTPExpired is returned when an OTP is past its TTL or has no pending code.
	ErrOTPExpired = errors.New("otp expired")
	// ErrOTPCooldown is returned when an OTP is requested again too soon.
	ErrOTPCooldown = errors.New("otp requested too recently")
	// ErrTooManyAttempts is returned after repeated wrong OTPs.
	ErrTooManyAttempts = errors.New("too many attempts")
	// ErrInvalidPIN is returned when a farmer PIN does not match.
	ErrInvalidPIN = errors.New("invalid pin")
	// ErrSessionNotFound is returned when a session token is unknown.
	ErrSessionNotFound = errors.New("session not found")
	// ErrSessionExpired is returned when a session has expired.
	ErrSessionExpired = errors.New("session expired")
	// ErrFlowNotFound is returned for an unknown farmer login flow.
	ErrFlowNotFound = errors.New("login flow not found")
	// ErrWrongStep is returned when a wizard step is submitted out of order.
	ErrWrongStep = errors.New("wrong login step")
	// ErrOAuthUnavailable is returned when OAuth is requested without an identity service.
	ErrOAuthUnavailable = errors.New("oauth requires the identity service")
)

// RemoteError is a non-2xx answer from the identity service
type RemoteError struct {
	Status  int
	Message string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("identity service returned %d: %s", e.Status, e.Message)
}

// Failure classes of a remote call
const (
	ReasonNotConfigured = "not_configured"
	ReasonNetwork       = "network"
	ReasonRejected      = "rejected"
)

// Classify sorts a remote error into a failure class. Server-side
// failures count as network errors: the service was not usable.
func Classify(err error) string {
	if errors.Is(err, ErrNotConfigured) {
		return ReasonNotConfigured
	}
	var re *RemoteError
	if errors.As(err, &re) && re.Status < 500 && re.Status != 429 {
		return ReasonRejected
	}
	return ReasonNetwork
}
