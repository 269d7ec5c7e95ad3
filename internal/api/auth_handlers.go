package api

import (
	"net/http"
	"strings"

	"greenledger/internal/models"
	"greenledger/internal/validation"

	"github.com/gin-gonic/gin"
)

// SignUpRequest represents an email/password registration
type SignUpRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6"`
	Name     string `json:"name"`
	Role     string `json:"role" binding:"omitempty,oneof=farmer warehouse consumer"`
	Phone    string `json:"phone" binding:"omitempty,phone"`
	Aadhaar  string `json:"aadhaar" binding:"omitempty,aadhaar"`
	District string `json:"district"`
}

// SignInRequest represents an email/password sign-in
type SignInRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// PhoneRequest carries a phone number
type PhoneRequest struct {
	Phone string `json:"phone" binding:"required,phone"`
}

// OTPRequest carries a phone number and the code sent to it. The code is
// sanitized before it is checked.
type OTPRequest struct {
	Phone string `json:"phone" binding:"required,phone"`
	OTP   string `json:"otp" binding:"required"`
}

// AadhaarRequest carries an Aadhaar number
type AadhaarRequest struct {
	Aadhaar string `json:"aadhaar" binding:"required,aadhaar"`
}

// PINRequest carries a farmer PIN
type PINRequest struct {
	PIN string `json:"pin" binding:"required,pin"`
}

// CodeRequest carries an OTP for the farmer wizard
type CodeRequest struct {
	OTP string `json:"otp" binding:"required"`
}

func (h *Handler) signUp(c *gin.Context) {
	var req SignUpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body", err)
		return
	}

	res, err := h.auth.SignUp(c.Request.Context(), req.Email, req.Password, models.UserMetadata{
		Name:     req.Name,
		Role:     req.Role,
		Phone:    req.Phone,
		Aadhaar:  req.Aadhaar,
		District: req.District,
	})
	if err != nil {
		h.respondError(c, "Failed to sign up", err)
		return
	}
	c.JSON(http.StatusCreated, res)
}

func (h *Handler) signIn(c *gin.Context) {
	var req SignInRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body", err)
		return
	}

	res, err := h.auth.SignIn(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		h.respondError(c, "Failed to sign in", err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) sendOTP(c *gin.Context) {
	var req PhoneRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body", err)
		return
	}

	res, err := h.auth.SendOTP(c.Request.Context(), req.Phone)
	if err != nil {
		h.respondError(c, "Failed to send OTP", err)
		return
	}
	c.JSON(http.StatusAccepted, res)
}

func (h *Handler) verifyOTP(c *gin.Context) {
	var req OTPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body", err)
		return
	}

	res, err := h.auth.VerifyOTP(c.Request.Context(), req.Phone, validation.SanitizeOTP(req.OTP))
	if err != nil {
		h.respondError(c, "Failed to verify OTP", err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) verifyAadhaar(c *gin.Context) {
	var req AadhaarRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body", err)
		return
	}

	res, err := h.auth.VerifyAadhaar(c.Request.Context(), req.Aadhaar)
	if err != nil {
		h.respondError(c, "Failed to verify Aadhaar", err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) oauthURL(c *gin.Context) {
	url, err := h.auth.OAuthURL(c.Request.Context(), c.Param("provider"), c.Query("redirect_to"))
	if err != nil {
		h.respondError(c, "OAuth sign-in unavailable", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"url": url})
}

// sessionToken reads the token from the Authorization or X-Session-Token header
func sessionToken(c *gin.Context) string {
	if header := c.GetHeader("Authorization"); strings.HasPrefix(header, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	}
	return strings.TrimSpace(c.GetHeader("X-Session-Token"))
}

func (h *Handler) session(c *gin.Context) {
	token := sessionToken(c)
	if token == "" {
		c.JSON(http.StatusUnauthorized, gin.H{
			"error": "Missing session token",
		})
		return
	}

	session, user, err := h.auth.Session(c.Request.Context(), token)
	if err != nil {
		h.respondError(c, "Invalid session", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"session": session,
		"user":    user,
	})
}

func (h *Handler) signOut(c *gin.Context) {
	token := sessionToken(c)
	if token == "" {
		c.JSON(http.StatusUnauthorized, gin.H{
			"error": "Missing session token",
		})
		return
	}

	if err := h.auth.SignOut(c.Request.Context(), token); err != nil {
		h.respondError(c, "Failed to sign out", err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) startFarmerLogin(c *gin.Context) {
	var req AadhaarRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body", err)
		return
	}

	flow, err := h.farmerLogin.Start(c.Request.Context(), req.Aadhaar)
	if err != nil {
		h.respondError(c, "Aadhaar verification failed", err)
		return
	}
	c.JSON(http.StatusCreated, flow.View())
}

func (h *Handler) getFarmerLogin(c *gin.Context) {
	flow, err := h.farmerLogin.Get(c.Request.Context(), c.Param("flow"))
	if err != nil {
		h.respondError(c, "Login flow not found", err)
		return
	}
	c.JSON(http.StatusOK, flow.View())
}

func (h *Handler) farmerLoginPIN(c *gin.Context) {
	var req PINRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body", err)
		return
	}

	flow, err := h.farmerLogin.SubmitPIN(c.Request.Context(), c.Param("flow"), req.PIN)
	if err != nil {
		h.respondError(c, "PIN rejected", err)
		return
	}
	c.JSON(http.StatusOK, flow.View())
}

func (h *Handler) farmerLoginPhone(c *gin.Context) {
	var req PhoneRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body", err)
		return
	}

	flow, err := h.farmerLogin.SubmitPhone(c.Request.Context(), c.Param("flow"), req.Phone)
	if err != nil {
		h.respondError(c, "Failed to send OTP", err)
		return
	}
	c.JSON(http.StatusOK, flow.View())
}

func (h *Handler) farmerLoginOTP(c *gin.Context) {
	var req CodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body", err)
		return
	}

	flow, res, err := h.farmerLogin.SubmitOTP(c.Request.Context(), c.Param("flow"), validation.SanitizeOTP(req.OTP))
	if err != nil {
		h.respondError(c, "OTP rejected", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"flow":   flow.View(),
		"result": res,
	})
}
