// Package api wires the REST surface: CORS, API-key and JWT auth
// layers, and the handlers over the ledger, accounts and scans.
package api

import (
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/reyurquiza/retail-order-cancellation-tracker/internal/api/handlers"
	"github.com/reyurquiza/retail-order-cancellation-tracker/internal/api/middleware"
	"github.com/reyurquiza/retail-order-cancellation-tracker/internal/config"
	"github.com/reyurquiza/retail-order-cancellation-tracker/internal/ingest"
	"github.com/reyurquiza/retail-order-cancellation-tracker/internal/rules"
	"github.com/reyurquiza/retail-order-cancellation-tracker/internal/services"
	"github.com/reyurquiza/retail-order-cancellation-tracker/internal/storage"
	"gorm.io/gorm"
)

// SetupRouter initializes the Gin router with all routes configured and
// starts the background scan scheduler. A rule registry error is a
// configuration failure and aborts startup.
func SetupRouter(db *gorm.DB, cfg *config.Config) (*gin.Engine, *middleware.AuthManager, error) {
	router := gin.Default()

	router.Use(cors.New(cors.Config{
		AllowOrigins:     strings.Split(cfg.CORSOrigins, ","),
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "X-API-Key"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	authManager, err := middleware.NewAuthManager(cfg.DataDir, cfg.JWTSecret, middleware.DefaultTokenExpiry)
	if err != nil {
		return nil, nil, err
	}

	registry, err := rules.DefaultRegistry()
	if err != nil {
		return nil, nil, err
	}

	logService := services.NewLogServiceWithLevel(db, cfg.LogLevel)
	userService := services.NewUserService(db)
	accountService := services.NewAccountService(db, cfg.GetEncryptionKey(), logService)
	store := storage.NewManager(cfg.DataDir)
	pipeline := ingest.NewPipeline(db, registry)
	scanService := services.NewScanService(db, accountService, pipeline, logService, store, services.OAuthClientConfig{
		GoogleClientID:     cfg.GoogleClientID,
		GoogleClientSecret: cfg.GoogleClientSecret,
		GoogleRedirectURL:  cfg.GoogleRedirectURL,
	}, cfg.DaysBack)
	reportService := services.NewReportService(pipeline, logService, cfg.OutputDir)

	scheduler := services.NewScanScheduler(db, scanService, logService, time.Duration(cfg.ScanInterval)*time.Minute)
	scheduler.Start()

	authHandler := handlers.NewAuthHandler(userService, authManager.JWTManager, logService)
	accountHandler := handlers.NewAccountHandler(accountService, logService)
	orderHandler := handlers.NewOrderHandler(pipeline, reportService, logService)
	scanHandler := handlers.NewScanHandler(scanService, scheduler, logService)
	logHandler := handlers.NewLogHandler(logService)

	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	api := router.Group("/api")
	{
		api.Use(middleware.APIKeyMiddleware(authManager.APIKeyManager))

		// Login needs the API key but no session yet.
		api.POST("/auth/login", authHandler.Login)

		protected := api.Group("")
		protected.Use(middleware.JWTMiddleware(authManager.JWTManager))
		{
			protected.POST("/auth/refresh", authHandler.RefreshToken)
			protected.GET("/auth/me", authHandler.GetCurrentUser)

			accounts := protected.Group("/accounts")
			{
				accounts.GET("", accountHandler.ListAccounts)
				accounts.POST("", accountHandler.CreateAccount)
				accounts.GET("/:id", accountHandler.GetAccount)
				accounts.PUT("/:id", accountHandler.UpdateAccount)
				accounts.DELETE("/:id", accountHandler.DeleteAccount)
				accounts.PUT("/:id/enable", accountHandler.EnableAccount)
				accounts.PUT("/:id/disable", accountHandler.DisableAccount)
				accounts.POST("/:id/scan", scanHandler.ScanAccount)
			}

			orders := protected.Group("/orders")
			{
				orders.GET("", orderHandler.ListOrders)
				orders.PUT("/:id/hide", orderHandler.HideOrder)
				orders.PUT("/:id/unhide", orderHandler.UnhideOrder)
				orders.POST("/export", orderHandler.ExportOrders)
			}

			protected.POST("/scan", scanHandler.ScanAll)
			protected.GET("/logs", logHandler.ListLogs)
		}
	}

	return router, authManager, nil
}
