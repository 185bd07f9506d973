// Package cli provides the operator command line: user and API key
// management, manual scans, and CSV export.
package cli

import (
	"fmt"
	"os"

	"github.com/reyurquiza/retail-order-cancellation-tracker/internal/api/middleware"
	"github.com/reyurquiza/retail-order-cancellation-tracker/internal/config"
	"github.com/reyurquiza/retail-order-cancellation-tracker/internal/ingest"
	"github.com/reyurquiza/retail-order-cancellation-tracker/internal/rules"
	"github.com/reyurquiza/retail-order-cancellation-tracker/internal/services"
	"github.com/reyurquiza/retail-order-cancellation-tracker/internal/storage"
	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

var (
	db             *gorm.DB
	cfg            *config.Config
	apiKeyManager  *middleware.APIKeyManager
	userService    *services.UserService
	accountService *services.AccountService
	scanService    *services.ScanService
	reportService  *services.ReportService
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "order-tracker",
	Short: "Retail order email tracker",
	Long: `order-tracker scans mailbox accounts for retailer order
notification emails, extracts order facts, and maintains a persistent
order ledger with cancellation tracking.

Commands:
  order-tracker key show            Show the current API key
  order-tracker key reset           Reset the API key
  order-tracker user create         Create an operator user
  order-tracker user list           List operator users
  order-tracker user reset-pwd      Reset an operator's password
  order-tracker scan [--days N]     Scan accounts now
  order-tracker export [--out DIR]  Export the ledger to CSV`,
}

// Execute runs the CLI with the provided database and config
func Execute(database *gorm.DB, config *config.Config) {
	db = database
	cfg = config

	var err error
	apiKeyManager, err = middleware.NewAPIKeyManager(cfg.DataDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to initialize API key manager: %v\n", err)
		os.Exit(1)
	}

	registry, err := rules.DefaultRegistry()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: invalid retailer rules: %v\n", err)
		os.Exit(1)
	}

	logService := services.NewLogServiceWithLevel(db, cfg.LogLevel)
	userService = services.NewUserService(db)
	accountService = services.NewAccountService(db, cfg.GetEncryptionKey(), logService)
	pipeline := ingest.NewPipeline(db, registry)
	scanService = services.NewScanService(db, accountService, pipeline, logService,
		storage.NewManager(cfg.DataDir), services.OAuthClientConfig{
			GoogleClientID:     cfg.GoogleClientID,
			GoogleClientSecret: cfg.GoogleClientSecret,
			GoogleRedirectURL:  cfg.GoogleRedirectURL,
		}, cfg.DaysBack)
	reportService = services.NewReportService(pipeline, logService, cfg.OutputDir)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(keyCmd)
	rootCmd.AddCommand(userCmd)
	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(exportCmd)
}
