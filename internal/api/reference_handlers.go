package api

import (
	"net/http"
	"strconv"

	"greenledger/internal/refdata"

	"github.com/gin-gonic/gin"
)

func (h *Handler) listFarmers(c *gin.Context) {
	if district := c.Query("district"); district != "" {
		c.JSON(http.StatusOK, refdata.FarmersInDistrict(district))
		return
	}
	c.JSON(http.StatusOK, refdata.Farmers())
}

func (h *Handler) getFarmer(c *gin.Context) {
	farmer, ok := refdata.FarmerByID(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{
			"error": "Farmer not found",
		})
		return
	}
	c.JSON(http.StatusOK, farmer)
}

func (h *Handler) generateFarmerQR(c *gin.Context) {
	code, err := h.qrService.GenerateFarmerQR(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, "Failed to generate farmer QR code", err)
		return
	}
	c.JSON(http.StatusCreated, code)
}

func (h *Handler) listFarmerQR(c *gin.Context) {
	codes, err := h.qrService.FarmerQRs(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, "Failed to read farmer QR codes", err)
		return
	}
	c.JSON(http.StatusOK, codes)
}

func (h *Handler) listDistricts(c *gin.Context) {
	c.JSON(http.StatusOK, refdata.Districts())
}

func (h *Handler) listTaluks(c *gin.Context) {
	if _, ok := refdata.DistrictByName(c.Param("name")); !ok {
		c.JSON(http.StatusNotFound, gin.H{
			"error": "District not found",
		})
		return
	}
	c.JSON(http.StatusOK, refdata.TaluksOf(c.Param("name")))
}

func (h *Handler) listProducts(c *gin.Context) {
	c.JSON(http.StatusOK, refdata.Products())
}

func (h *Handler) listWarehouses(c *gin.Context) {
	c.JSON(http.StatusOK, refdata.Warehouses())
}

func (h *Handler) listRoutes(c *gin.Context) {
	routes, err := h.tracking.List(c.Request.Context(), c.Query("status"))
	if err != nil {
		badRequest(c, "Invalid status", err)
		return
	}
	c.JSON(http.StatusOK, routes)
}

func (h *Handler) getRoute(c *gin.Context) {
	route, err := h.tracking.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, "Route not found", err)
		return
	}
	c.JSON(http.StatusOK, route)
}

func (h *Handler) lookupRoute(c *gin.Context) {
	route, err := h.tracking.FindByTrackingNumber(c.Request.Context(), c.Param("number"))
	if err != nil {
		h.respondError(c, "Route not found", err)
		return
	}
	c.JSON(http.StatusOK, route)
}

func (h *Handler) trackingSummary(c *gin.Context) {
	c.JSON(http.StatusOK, h.tracking.Summary(c.Request.Context()))
}

func (h *Handler) farmerDashboard(c *gin.Context) {
	dash, err := h.dashboard.Farmer(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, "Failed to build farmer dashboard", err)
		return
	}
	c.JSON(http.StatusOK, dash)
}

func (h *Handler) warehouseDashboard(c *gin.Context) {
	dash, err := h.dashboard.Warehouse(c.Request.Context(), c.Query("warehouseId"))
	if err != nil {
		h.respondError(c, "Failed to build warehouse dashboard", err)
		return
	}
	c.JSON(http.StatusOK, dash)
}

func (h *Handler) consumerView(c *gin.Context) {
	view, err := h.dashboard.Consumer(c.Request.Context())
	if err != nil {
		h.respondError(c, "Failed to build consumer view", err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *Handler) verify(c *gin.Context) {
	v, err := h.dashboard.Verify(c.Request.Context(), c.Param("qrId"))
	if err != nil {
		h.respondError(c, "Failed to verify product", err)
		return
	}
	status := http.StatusOK
	if !v.Verified {
		status = http.StatusNotFound
	}
	c.JSON(status, v)
}

func (h *Handler) scanCounts(c *gin.Context) {
	if h.scanStats == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error": "Scan counters need the redis backend",
		})
		return
	}
	byFarmer, byDistrict, err := h.scanStats.ScanCounts(c.Request.Context())
	if err != nil {
		h.respondError(c, "Failed to read scan counters", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"byFarmer":   byFarmer,
		"byDistrict": byDistrict,
	})
}

func (h *Handler) auditEvents(c *gin.Context) {
	if h.audit == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error": "Audit log needs the postgres database",
		})
		return
	}
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "100"))
	if err != nil {
		badRequest(c, "Invalid query", err)
		return
	}
	records, err := h.audit.ListEvents(c.Request.Context(), c.Query("type"), limit)
	if err != nil {
		h.respondError(c, "Failed to read audit log", err)
		return
	}
	c.JSON(http.StatusOK, records)
}
