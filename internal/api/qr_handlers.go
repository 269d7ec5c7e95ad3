package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"greenledger/internal/history"
	"greenledger/internal/service"

	"github.com/gin-gonic/gin"
)

const maxPageSize = 200

// generateQR handles product QR generation
func (h *Handler) generateQR(c *gin.Context) {
	var req service.GenerateQRRequest

	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body", err)
		return
	}

	if req.IdempotencyKey == "" {
		req.IdempotencyKey = c.GetHeader("Idempotency-Key")
	}

	entry, err := h.qrService.GenerateProductQR(c.Request.Context(), &req)
	if errors.Is(err, service.ErrUnknownFarmer) {
		badRequest(c, "Unknown farmer", err)
		return
	}
	if err != nil {
		h.respondError(c, "Failed to generate QR code", err)
		return
	}

	c.JSON(http.StatusCreated, entry)
}

// parseQuery turns query parameters into a history query
func parseQuery(c *gin.Context) (history.Query, error) {
	q := history.Query{
		Module:      c.Query("module"),
		FarmerID:    c.Query("farmerId"),
		District:    c.Query("district"),
		CropType:    c.Query("cropType"),
		WarehouseID: c.Query("warehouseId"),
		Search:      c.Query("q"),
		SortBy:      c.Query("sort"),
	}

	if raw := c.Query("scanned"); raw != "" {
		scanned, err := strconv.ParseBool(raw)
		if err != nil {
			return q, fmt.Errorf("scanned must be true or false")
		}
		q.Scanned = &scanned
	}
	if q.SortBy != "" && !history.ValidSortKey(q.SortBy) {
		return q, fmt.Errorf("unknown sort key %q", q.SortBy)
	}
	switch strings.ToLower(c.DefaultQuery("order", "desc")) {
	case "desc":
		q.Desc = true
	case "asc":
	default:
		return q, fmt.Errorf("order must be asc or desc")
	}
	return q, nil
}

func parsePage(c *gin.Context) (limit, offset int, err error) {
	limit, err = strconv.Atoi(c.DefaultQuery("limit", "50"))
	if err != nil || limit <= 0 {
		return 0, 0, fmt.Errorf("limit must be a positive integer")
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	offset, err = strconv.Atoi(c.DefaultQuery("offset", "0"))
	if err != nil || offset < 0 {
		return 0, 0, fmt.Errorf("offset must be a non-negative integer")
	}
	return limit, offset, nil
}

// listQR handles history queries
func (h *Handler) listQR(c *gin.Context) {
	q, err := parseQuery(c)
	if err != nil {
		badRequest(c, "Invalid query", err)
		return
	}
	limit, offset, err := parsePage(c)
	if err != nil {
		badRequest(c, "Invalid query", err)
		return
	}

	entries, err := h.history.Query(c.Request.Context(), q)
	if err != nil {
		h.respondError(c, "Failed to read QR history", err)
		return
	}

	total := len(entries)
	if offset > total {
		offset = total
	}
	end := offset + limit
	if end > total {
		end = total
	}

	c.JSON(http.StatusOK, gin.H{
		"entries": entries[offset:end],
		"total":   total,
		"limit":   limit,
		"offset":  offset,
	})
}

// getQR handles get QR entry by id
func (h *Handler) getQR(c *gin.Context) {
	entry, err := h.history.FindByQRCodeID(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, "QR code not found", err)
		return
	}
	c.JSON(http.StatusOK, entry)
}

// updateQR applies a partial update. An unknown id changes nothing.
func (h *Handler) updateQR(c *gin.Context) {
	var patch history.EntryPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		badRequest(c, "Invalid request body", err)
		return
	}

	entry, err := h.history.UpdateEntry(c.Request.Context(), c.Param("id"), patch)
	if err != nil {
		h.respondError(c, "Failed to update QR code", err)
		return
	}
	if entry == nil {
		c.JSON(http.StatusNotFound, gin.H{
			"error": "QR code not found",
		})
		return
	}
	c.JSON(http.StatusOK, entry)
}

// scanQR records a scan
func (h *Handler) scanQR(c *gin.Context) {
	entry, err := h.qrService.Scan(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, "Failed to record scan", err)
		return
	}
	c.JSON(http.StatusOK, entry)
}

// qrImage renders a product or farmer code
func (h *Handler) qrImage(c *gin.Context) {
	size := 0
	if raw := c.Query("size"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 50 || n > 1000 {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "size must be between 50 and 1000",
			})
			return
		}
		size = n
	}

	format := strings.ToLower(c.DefaultQuery("format", service.FormatSVG))
	if format != service.FormatSVG && format != service.FormatPNG {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "format must be svg or png",
		})
		return
	}

	img, err := h.qrService.Image(c.Request.Context(), c.Param("id"), format, size)
	if err != nil {
		h.respondError(c, "Failed to render QR code", err)
		return
	}

	c.Header("X-QR-Renderer", img.Renderer)
	c.Data(http.StatusOK, img.ContentType, img.Data)
}

// clearQR empties the history
func (h *Handler) clearQR(c *gin.Context) {
	removed, err := h.qrService.ClearHistory(c.Request.Context())
	if err != nil {
		h.respondError(c, "Failed to clear QR history", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"removed": removed})
}

// qrStats summarizes the history
func (h *Handler) qrStats(c *gin.Context) {
	stats, err := h.history.Stats(c.Request.Context())
	if err != nil {
		h.respondError(c, "Failed to compute stats", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"stats":    stats,
		"scanRate": stats.ScanRate(),
	})
}

// watchQR streams history changes as server-sent events
func (h *Handler) watchQR(c *gin.Context) {
	changes, err := h.history.Watch(c.Request.Context())
	if err != nil {
		h.respondError(c, "Failed to watch QR history", err)
		return
	}

	c.Stream(func(w io.Writer) bool {
		change, ok := <-changes
		if !ok {
			return false
		}
		c.SSEvent("change", gin.H{
			"version": change.Version,
			"deleted": change.Deleted,
		})
		return true
	})
}
