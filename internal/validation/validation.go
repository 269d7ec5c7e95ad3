// Package validation holds the format rules used by the login flows. They
// are format checks only: an Aadhaar number that passes has not been
// checksummed or verified against anything.
package validation

import (
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

var (
	aadhaarPattern = regexp.MustCompile(`^[0-9]{12}$`)
	phonePattern   = regexp.MustCompile(`^[0-9]{10}$`)
	otpPattern     = regexp.MustCompile(`^[0-9]{6}$`)
	pinPattern     = regexp.MustCompile(`^[0-9]{4}$`)
)

// OTPLength is the number of digits in an OTP
const OTPLength = 6

// IsAadhaar accepts exactly 12 ASCII digits
func IsAadhaar(s string) bool {
	return aadhaarPattern.MatchString(s)
}

// IsPhone accepts exactly 10 ASCII digits
func IsPhone(s string) bool {
	return phonePattern.MatchString(s)
}

// IsOTP accepts exactly 6 ASCII digits
func IsOTP(s string) bool {
	return otpPattern.MatchString(s)
}

// IsPIN accepts exactly 4 ASCII digits
func IsPIN(s string) bool {
	return pinPattern.MatchString(s)
}

// SanitizeOTP strips every non-digit and truncates to six characters
func SanitizeOTP(s string) string {
	return truncateDigits(s, OTPLength)
}

// SanitizeDigits strips every non-digit and truncates to max characters
func SanitizeDigits(s string, max int) string {
	return truncateDigits(s, max)
}

func truncateDigits(s string, max int) string {
	var b strings.Builder
	for _, r := range s {
		if b.Len() >= max {
			break
		}
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Register adds the aadhaar, phone, otp and pin tags to v
func Register(v *validator.Validate) error {
	rules := map[string]func(string) bool{
		"aadhaar": IsAadhaar,
		"phone":   IsPhone,
		"otp":     IsOTP,
		"pin":     IsPIN,
	}
	for tag, fn := range rules {
		fn := fn
		if err := v.RegisterValidation(tag, func(fl validator.FieldLevel) bool {
			return fn(fl.Field().String())
		}); err != nil {
			return err
		}
	}
	return nil
}

// New returns a validator with the custom tags registered
func New() *validator.Validate {
	v := validator.New()
	if err := Register(v); err != nil {
		panic(err)
	}
	return v
}
