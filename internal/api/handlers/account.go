package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/reyurquiza/retail-order-cancellation-tracker/internal/services"
)

// AccountHandler handles mailbox account requests
type AccountHandler struct {
	accountService *services.AccountService
	logService     *services.LogService
}

// NewAccountHandler creates a new AccountHandler instance
func NewAccountHandler(accountService *services.AccountService, logService *services.LogService) *AccountHandler {
	return &AccountHandler{
		accountService: accountService,
		logService:     logService,
	}
}

// CreateAccountRequest represents the request to register a mailbox
type CreateAccountRequest struct {
	Email       string `json:"email" binding:"required,email"`
	DisplayName string `json:"display_name"`
	IMAPHost    string `json:"imap_host" binding:"required"`
	IMAPPort    int    `json:"imap_port"`
	Username    string `json:"username" binding:"required"`
	Password    string `json:"password" binding:"required"`
	UseSSL      *bool  `json:"use_ssl"`
	ScanDays    int    `json:"scan_days"`
}

// CreateAccount registers a mailbox to scan
// POST /api/accounts
func (h *AccountHandler) CreateAccount(c *gin.Context) {
	var req CreateAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidationError(c, err)
		return
	}

	useSSL := true
	if req.UseSSL != nil {
		useSSL = *req.UseSSL
	}

	account, err := h.accountService.CreateAccount(services.CreateAccountInput{
		Email:       req.Email,
		DisplayName: req.DisplayName,
		IMAPHost:    req.IMAPHost,
		IMAPPort:    req.IMAPPort,
		Username:    req.Username,
		Password:    req.Password,
		UseSSL:      useSSL,
		ScanDays:    req.ScanDays,
	})
	if err != nil {
		if errors.Is(err, services.ErrAccountAlreadyExists) {
			c.JSON(http.StatusConflict, gin.H{
				"success": false,
				"error": gin.H{
					"code":    "ALREADY_EXISTS",
					"message": "An account with this email already exists",
				},
			})
			return
		}
		respondInternalError(c, "Failed to create account")
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"data":    account,
	})
}

// ListAccounts lists every configured mailbox
// GET /api/accounts
func (h *AccountHandler) ListAccounts(c *gin.Context) {
	accounts, err := h.accountService.ListAccounts()
	if err != nil {
		respondInternalError(c, "Failed to list accounts")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    accounts,
	})
}

// GetAccount retrieves one mailbox account
// GET /api/accounts/:id
func (h *AccountHandler) GetAccount(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}
	account, err := h.accountService.GetAccountByID(id)
	if err != nil {
		respondNotFound(c, "Account not found")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    account,
	})
}

// UpdateAccountRequest represents a mailbox update
type UpdateAccountRequest struct {
	DisplayName string `json:"display_name"`
	IMAPHost    string `json:"imap_host"`
	IMAPPort    int    `json:"imap_port"`
	Username    string `json:"username"`
	Password    string `json:"password"`
	UseSSL      *bool  `json:"use_ssl"`
	ScanDays    *int   `json:"scan_days"`
}

// UpdateAccount updates a mailbox account
// PUT /api/accounts/:id
func (h *AccountHandler) UpdateAccount(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}
	var req UpdateAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidationError(c, err)
		return
	}

	account, err := h.accountService.UpdateAccount(id, services.UpdateAccountInput{
		DisplayName: req.DisplayName,
		IMAPHost:    req.IMAPHost,
		IMAPPort:    req.IMAPPort,
		Username:    req.Username,
		Password:    req.Password,
		UseSSL:      req.UseSSL,
		ScanDays:    req.ScanDays,
	})
	if err != nil {
		if errors.Is(err, services.ErrAccountNotFound) {
			respondNotFound(c, "Account not found")
			return
		}
		respondInternalError(c, "Failed to update account")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    account,
	})
}

// DeleteAccount removes a mailbox account
// DELETE /api/accounts/:id
func (h *AccountHandler) DeleteAccount(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}
	if err := h.accountService.DeleteAccount(id); err != nil {
		if errors.Is(err, services.ErrAccountNotFound) {
			respondNotFound(c, "Account not found")
			return
		}
		respondInternalError(c, "Failed to delete account")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// EnableAccount includes the account in scans
// PUT /api/accounts/:id/enable
func (h *AccountHandler) EnableAccount(c *gin.Context) {
	h.setEnabled(c, true)
}

// DisableAccount excludes the account from scans
// PUT /api/accounts/:id/disable
func (h *AccountHandler) DisableAccount(c *gin.Context) {
	h.setEnabled(c, false)
}

func (h *AccountHandler) setEnabled(c *gin.Context, enabled bool) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}
	if err := h.accountService.SetEnabled(id, enabled); err != nil {
		if errors.Is(err, services.ErrAccountNotFound) {
			respondNotFound(c, "Account not found")
			return
		}
		respondInternalError(c, "Failed to update account")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// parseIDParam parses the :id path parameter, writing a 400 on failure
func parseIDParam(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "VALIDATION_ERROR",
				"message": "Invalid id parameter",
			},
		})
		return 0, false
	}
	return uint(id), true
}
