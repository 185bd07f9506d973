package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/reyurquiza/retail-order-cancellation-tracker/internal/services"
)

// ScanHandler triggers inbox scans over the API
type ScanHandler struct {
	scanService *services.ScanService
	scheduler   *services.ScanScheduler
	logService  *services.LogService
}

// NewScanHandler creates a new ScanHandler instance
func NewScanHandler(scanService *services.ScanService, scheduler *services.ScanScheduler, logService *services.LogService) *ScanHandler {
	return &ScanHandler{
		scanService: scanService,
		scheduler:   scheduler,
		logService:  logService,
	}
}

// ScanRequest controls the scan window. Days semantics: -1 whole
// mailbox, 0 incremental since the last scan, >0 that many days back.
type ScanRequest struct {
	Days int `json:"days"`
}

// ScanAccount runs a manual scan of one account
// POST /api/accounts/:id/scan
func (h *ScanHandler) ScanAccount(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}

	var req ScanRequest
	_ = c.ShouldBindJSON(&req) // body optional, defaults to incremental

	// A manual scan must not collide with a scheduled one for the same
	// account.
	if !h.scheduler.TryLockAccount(id) {
		c.JSON(http.StatusConflict, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "SCAN_IN_PROGRESS",
				"message": "A scan is already running for this account",
			},
		})
		return
	}
	defer h.scheduler.UnlockAccount(id)

	summary, err := h.scanService.ScanAccount(id, req.Days)
	if err != nil {
		if errors.Is(err, services.ErrAccountNotFound) {
			respondNotFound(c, "Account not found")
			return
		}
		if errors.Is(err, services.ErrAccountDisabled) {
			c.JSON(http.StatusConflict, gin.H{
				"success": false,
				"error": gin.H{
					"code":    "ACCOUNT_DISABLED",
					"message": "Account is disabled",
				},
			})
			return
		}
		respondInternalError(c, "Scan failed: "+err.Error())
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    summary,
	})
}

// ScanAll runs a manual scan of every enabled account
// POST /api/scan
func (h *ScanHandler) ScanAll(c *gin.Context) {
	var req ScanRequest
	_ = c.ShouldBindJSON(&req)

	summary, err := h.scanService.ScanAllAccounts(req.Days)
	if err != nil {
		respondInternalError(c, "Scan failed: "+err.Error())
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    summary,
	})
}
