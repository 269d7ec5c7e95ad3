package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"greenledger/internal/auth"
	"greenledger/internal/history"
	"greenledger/internal/kv"
	"greenledger/internal/models"
	"greenledger/internal/service"
	"greenledger/internal/tracking"
	"greenledger/internal/util"
	"greenledger/internal/validation"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// ScanStats reads the running scan totals
type ScanStats interface {
	ScanCounts(ctx context.Context) (byFarmer, byDistrict map[string]int64, err error)
}

// AuditReader lists processed domain events
type AuditReader interface {
	ListEvents(ctx context.Context, eventType string, limit int) ([]models.AuditRecord, error)
}

// ReadinessCheck reports whether one dependency is usable
type ReadinessCheck func(ctx context.Context) error

// Handler contains HTTP handlers
type Handler struct {
	qrService   *service.QRService
	dashboard   *service.DashboardService
	history     *history.Manager
	tracking    *tracking.Service
	auth        *auth.Service
	farmerLogin *auth.FarmerLogin
	scanStats   ScanStats
	audit       AuditReader
	checks      map[string]ReadinessCheck
	logger      *zap.Logger
}

// NewHandler creates a new HTTP handler
func NewHandler(
	qrService *service.QRService,
	dashboard *service.DashboardService,
	history *history.Manager,
	tracking *tracking.Service,
	authService *auth.Service,
	farmerLogin *auth.FarmerLogin,
) *Handler {
	return &Handler{
		qrService:   qrService,
		dashboard:   dashboard,
		history:     history,
		tracking:    tracking,
		auth:        authService,
		farmerLogin: farmerLogin,
		checks:      map[string]ReadinessCheck{},
		logger:      util.Named("api"),
	}
}

// WithScanStats enables GET /api/v1/stats/scans
func (h *Handler) WithScanStats(stats ScanStats) *Handler {
	h.scanStats = stats
	return h
}

// WithAuditLog enables GET /api/v1/audit/events
func (h *Handler) WithAuditLog(audit AuditReader) *Handler {
	h.audit = audit
	return h
}

// WithReadinessCheck adds a dependency to /ready
func (h *Handler) WithReadinessCheck(name string, check ReadinessCheck) *Handler {
	h.checks[name] = check
	return h
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		if err := validation.Register(v); err != nil {
			h.logger.Error("Failed to register validators", zap.Error(err))
		}
	}

	router.Use(gin.Recovery())
	router.Use(prometheusMiddleware())
	router.Use(gin.Logger())

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	{
		v1.POST("/qr", h.generateQR)
		v1.GET("/qr", h.listQR)
		v1.DELETE("/qr", h.clearQR)
		v1.GET("/qr/stats", h.qrStats)
		v1.GET("/qr/watch", h.watchQR)
		v1.GET("/qr/:id", h.getQR)
		v1.PATCH("/qr/:id", h.updateQR)
		v1.POST("/qr/:id/scan", h.scanQR)
		v1.GET("/qr/:id/image", h.qrImage)

		v1.GET("/farmers", h.listFarmers)
		v1.GET("/farmers/:id", h.getFarmer)
		v1.POST("/farmers/:id/qr", h.generateFarmerQR)
		v1.GET("/farmers/:id/qr", h.listFarmerQR)

		v1.GET("/locations/districts", h.listDistricts)
		v1.GET("/locations/districts/:name/taluks", h.listTaluks)
		v1.GET("/products", h.listProducts)
		v1.GET("/warehouses", h.listWarehouses)

		v1.GET("/tracking/routes", h.listRoutes)
		v1.GET("/tracking/routes/:id", h.getRoute)
		v1.GET("/tracking/summary", h.trackingSummary)
		v1.GET("/tracking/lookup/:number", h.lookupRoute)

		v1.GET("/dashboard/farmer/:id", h.farmerDashboard)
		v1.GET("/dashboard/warehouse", h.warehouseDashboard)
		v1.GET("/dashboard/consumer", h.consumerView)
		v1.GET("/verify/:qrId", h.verify)
		v1.GET("/stats/scans", h.scanCounts)
		v1.GET("/audit/events", h.auditEvents)

		a := v1.Group("/auth")
		a.POST("/signup", h.signUp)
		a.POST("/signin", h.signIn)
		a.POST("/otp/send", h.sendOTP)
		a.POST("/otp/verify", h.verifyOTP)
		a.POST("/aadhaar/verify", h.verifyAadhaar)
		a.GET("/oauth/:provider", h.oauthURL)
		a.GET("/session", h.session)
		a.POST("/signout", h.signOut)

		a.POST("/farmer-login", h.startFarmerLogin)
		a.GET("/farmer-login/:flow", h.getFarmerLogin)
		a.POST("/farmer-login/:flow/pin", h.farmerLoginPIN)
		a.POST("/farmer-login/:flow/phone", h.farmerLoginPhone)
		a.POST("/farmer-login/:flow/otp", h.farmerLoginOTP)
	}
}

// healthCheck handles health check requests
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

// readinessCheck pings every registered dependency
func (h *Handler) readinessCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	failed := gin.H{}
	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			failed[name] = err.Error()
		}
	}
	if len(failed) > 0 {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":  "not ready",
			"details": failed,
			"time":    time.Now().Unix(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
		"time":   time.Now().Unix(),
	})
}

// statusFor maps service errors to HTTP status codes
func statusFor(err error) int {
	var verrs validator.ValidationErrors
	switch {
	case errors.As(err, &verrs),
		errors.Is(err, auth.ErrInvalidInput),
		errors.Is(err, service.ErrUnknownWarehouse):
		return http.StatusBadRequest
	case errors.Is(err, auth.ErrInvalidCredentials),
		errors.Is(err, auth.ErrInvalidOTP),
		errors.Is(err, auth.ErrOTPExpired),
		errors.Is(err, auth.ErrInvalidPIN),
		errors.Is(err, auth.ErrSessionNotFound),
		errors.Is(err, auth.ErrSessionExpired):
		return http.StatusUnauthorized
	case errors.Is(err, history.ErrNotFound),
		errors.Is(err, service.ErrQRNotFound),
		errors.Is(err, service.ErrUnknownFarmer),
		errors.Is(err, tracking.ErrRouteNotFound),
		errors.Is(err, auth.ErrFlowNotFound):
		return http.StatusNotFound
	case errors.Is(err, auth.ErrUserExists),
		errors.Is(err, auth.ErrWrongStep),
		errors.Is(err, kv.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, auth.ErrOTPCooldown),
		errors.Is(err, auth.ErrTooManyAttempts):
		return http.StatusTooManyRequests
	case errors.Is(err, auth.ErrOAuthUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes the {"error","details"} body for err
func (h *Handler) respondError(c *gin.Context, msg string, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error(msg, zap.String("path", c.FullPath()), zap.Error(err))
	}
	c.JSON(status, gin.H{
		"error":   msg,
		"details": err.Error(),
	})
}

func badRequest(c *gin.Context, msg string, err error) {
	c.JSON(http.StatusBadRequest, gin.H{
		"error":   msg,
		"details": err.Error(),
	})
}

// prometheusMiddleware collects HTTP metrics
func prometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())

		util.HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Observe(duration)

		util.HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Inc()
	}
}
