package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsAadhaar(t *testing.T) {
	assert.True(t, IsAadhaar("123456789012"))
	assert.False(t, IsAadhaar("12345678901"))
	assert.False(t, IsAadhaar("1234567890123"))
	assert.False(t, IsAadhaar("12345678901a"))
	assert.False(t, IsAadhaar("1234 5678 9012"))
	assert.False(t, IsAadhaar("１２３４５６７８９０１２"))
}

func TestIsPhone(t *testing.T) {
	assert.True(t, IsPhone("9437012345"))
	assert.False(t, IsPhone("943701234"))
	assert.False(t, IsPhone("+919437012345"))
}

func TestOTPAndPIN(t *testing.T) {
	assert.True(t, IsOTP("123456"))
	assert.False(t, IsOTP("12345"))
	assert.True(t, IsPIN("0000"))
	assert.False(t, IsPIN("00000"))
}

func TestSanitizeOTP(t *testing.T) {
	assert.Equal(t, "123456", SanitizeOTP("12-34-56-78"))
	assert.Equal(t, "123", SanitizeOTP("a1b2c3"))
	assert.Equal(t, "", SanitizeOTP("abc"))
	assert.Equal(t, "9876", SanitizeDigits("98 76 54", 4))
}

type loginForm struct {
	Aadhaar string `validate:"required,aadhaar"`
	Phone   string `validate:"required,phone"`
	OTP     string `validate:"omitempty,otp"`
	PIN     string `validate:"omitempty,pin"`
}

func TestRegisteredTags(t *testing.T) {
	v := New()

	assert.NoError(t, v.Struct(loginForm{Aadhaar: "123456789012", Phone: "9437012345", OTP: "123456", PIN: "1234"}))
	assert.Error(t, v.Struct(loginForm{Aadhaar: "1234", Phone: "9437012345"}))
	assert.Error(t, v.Struct(loginForm{Aadhaar: "123456789012", Phone: "9437012345", PIN: "12"}))
}
