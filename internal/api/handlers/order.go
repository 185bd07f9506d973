package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/reyurquiza/retail-order-cancellation-tracker/internal/database/models"
	"github.com/reyurquiza/retail-order-cancellation-tracker/internal/ingest"
	"github.com/reyurquiza/retail-order-cancellation-tracker/internal/services"
	"gorm.io/gorm"
)

// OrderHandler exposes ledger snapshots and the hidden flag
type OrderHandler struct {
	pipeline      *ingest.Pipeline
	reportService *services.ReportService
	logService    *services.LogService
}

// NewOrderHandler creates a new OrderHandler instance
func NewOrderHandler(pipeline *ingest.Pipeline, reportService *services.ReportService, logService *services.LogService) *OrderHandler {
	return &OrderHandler{
		pipeline:      pipeline,
		reportService: reportService,
		logService:    logService,
	}
}

// OrderView is the API shape of a ledger entry; tracking numbers are
// decoded from storage into a list.
type OrderView struct {
	ID              uint     `json:"id"`
	AccountID       uint     `json:"account_id"`
	Retailer        string   `json:"retailer"`
	OrderNumber     string   `json:"order_number"`
	Status          string   `json:"status"`
	TrackingNumbers []string `json:"tracking_numbers"`
	ShipTo          string   `json:"ship_to"`
	SentTo          string   `json:"sent_to"`
	CancelReason    string   `json:"cancel_reason,omitempty"`
	Hidden          bool     `json:"hidden"`
	FirstSeenAt     int64    `json:"first_seen_at"`
	LastUpdatedAt   int64    `json:"last_updated_at"`
}

func toOrderView(o models.Order) OrderView {
	return OrderView{
		ID:              o.ID,
		AccountID:       o.AccountID,
		Retailer:        o.Retailer,
		OrderNumber:     o.OrderNumber,
		Status:          o.Status,
		TrackingNumbers: o.TrackingList(),
		ShipTo:          o.ShipTo,
		SentTo:          o.SentTo,
		CancelReason:    o.CancelReason,
		Hidden:          o.Hidden,
		FirstSeenAt:     o.FirstSeenAt.Unix(),
		LastUpdatedAt:   o.LastUpdatedAt.Unix(),
	}
}

// ListOrders returns the ledger snapshot. Query params: account_id
// (0 or absent = all accounts merged), status, include_hidden.
// GET /api/orders
func (h *OrderHandler) ListOrders(c *gin.Context) {
	var accountID uint
	if v := c.Query("account_id"); v != "" {
		parsed, err := strconv.ParseUint(v, 10, 32)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"success": false,
				"error": gin.H{
					"code":    "VALIDATION_ERROR",
					"message": "Invalid account_id parameter",
				},
			})
			return
		}
		accountID = uint(parsed)
	}

	orders, err := h.pipeline.Snapshot(accountID)
	if err != nil {
		respondInternalError(c, "Failed to load orders")
		return
	}

	statusFilter := c.Query("status")
	includeHidden := c.Query("include_hidden") == "true"

	views := make([]OrderView, 0, len(orders))
	for _, o := range orders {
		if o.Hidden && !includeHidden {
			continue
		}
		if statusFilter != "" && o.Status != statusFilter {
			continue
		}
		views = append(views, toOrderView(o))
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    views,
		"total":   len(views),
	})
}

// HideOrder hides an order from reports
// PUT /api/orders/:id/hide
func (h *OrderHandler) HideOrder(c *gin.Context) {
	h.setHidden(c, true)
}

// UnhideOrder restores an order to reports
// PUT /api/orders/:id/unhide
func (h *OrderHandler) UnhideOrder(c *gin.Context) {
	h.setHidden(c, false)
}

func (h *OrderHandler) setHidden(c *gin.Context, hidden bool) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}
	if err := h.pipeline.Ledger().SetHidden(id, hidden); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			respondNotFound(c, "Order not found")
			return
		}
		respondInternalError(c, "Failed to update order")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// ExportOrders writes the CSV reports and returns the file paths
// POST /api/orders/export
func (h *OrderHandler) ExportOrders(c *gin.Context) {
	var req struct {
		AccountID uint   `json:"account_id"`
		Prefix    string `json:"prefix"`
	}
	// Body is optional; defaults export everything.
	_ = c.ShouldBindJSON(&req)

	result, err := h.reportService.Export(req.AccountID, req.Prefix)
	if err != nil {
		if errors.Is(err, services.ErrNoOrders) {
			respondNotFound(c, "No orders to export")
			return
		}
		respondInternalError(c, "Export failed")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    result,
	})
}
