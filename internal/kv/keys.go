package kv

import "strings"

// Well-known keys. Per-record keys append ":{id}".
const (
	KeyUser            = "greenledger-user"
	KeySession         = "greenledger-session"
	KeyUsers           = "greenledger-users"
	KeyFarmerLogin     = "greenledger-farmer-login"
	KeyFarmerQRHistory = "farmer-qr-history"
	KeyQRHistory       = "greenledger_qr_history"
	KeyOTPPrefix       = "greenledger-otp-"
	KeyQRIdempotency   = "greenledger-qr-idempotency"
)

// UserKey is the profile record of one user
func UserKey(id string) string { return KeyUser + ":" + id }

// SessionKey is the record of one session token
func SessionKey(token string) string { return KeySession + ":" + token }

// FarmerLoginKey is the state of one farmer login flow
func FarmerLoginKey(flowID string) string { return KeyFarmerLogin + ":" + flowID }

// QRIdempotencyKey maps a client idempotency key to the QR code it created
func QRIdempotencyKey(key string) string { return KeyQRIdempotency + ":" + key }

// OTPKey is the pending OTP for a phone number
func OTPKey(phone string) string { return KeyOTPPrefix + phone }

// Keyspace strips the record id from a key, for metric labels
func Keyspace(key string) string {
	if strings.HasPrefix(key, KeyOTPPrefix) {
		return strings.TrimSuffix(KeyOTPPrefix, "-")
	}
	if i := strings.IndexByte(key, ':'); i >= 0 {
		return key[:i]
	}
	return key
}
