package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/reyurquiza/retail-order-cancellation-tracker/internal/services"
)

// LogHandler exposes the operational log
type LogHandler struct {
	logService *services.LogService
}

// NewLogHandler creates a new LogHandler instance
func NewLogHandler(logService *services.LogService) *LogHandler {
	return &LogHandler{logService: logService}
}

// ListLogs returns log entries, newest first. Query params: level,
// module, limit, offset.
// GET /api/logs
func (h *LogHandler) ListLogs(c *gin.Context) {
	opts := services.ListLogsOptions{
		Level:  c.Query("level"),
		Module: c.Query("module"),
	}
	if v := c.Query("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			opts.Limit = n
		}
	}
	if v := c.Query("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			opts.Offset = n
		}
	}

	logs, total, err := h.logService.ListLogs(opts)
	if err != nil {
		respondInternalError(c, "Failed to list logs")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    logs,
		"total":   total,
	})
}
