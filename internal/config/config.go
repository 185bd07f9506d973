package config

import (
	"crypto/sha256"
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
)

// Config holds the application configuration
type Config struct {
	DatabasePath  string `json:"database_path"`
	APIPort       string `json:"api_port"`
	LogLevel      string `json:"log_level"`
	DataDir       string `json:"data_dir"`
	OutputDir     string `json:"output_dir"` // CSV report output directory
	DaysBack      int    `json:"days_back"`  // default scan window in days
	ScanInterval  int    `json:"scan_interval_minutes"`
	JWTSecret     string `json:"jwt_secret"`
	EncryptionKey string `json:"encryption_key"` // used to encrypt stored mailbox credentials
	CORSOrigins   string `json:"cors_origins"`

	// Google OAuth client for XOAUTH2 mailbox access
	GoogleClientID     string `json:"google_client_id"`
	GoogleClientSecret string `json:"google_client_secret"`
	GoogleRedirectURL  string `json:"google_redirect_url"`
}

// Default configuration values
const (
	DefaultDatabasePath = "data/tracker.db"
	DefaultAPIPort      = "8080"
	DefaultLogLevel     = "INFO"
	DefaultDataDir      = "data"
	DefaultOutputDir    = "output"
	DefaultDaysBack     = 7
	DefaultScanInterval = 10
	DefaultJWTSecret    = "order-tracker-default-secret-change-in-production"
	DefaultCORSOrigins  = "*"
)

// Load loads configuration from environment variables and config file
// Priority: Environment variables > Config file > Default values
func Load() (*Config, error) {
	cfg := &Config{
		DatabasePath: DefaultDatabasePath,
		APIPort:      DefaultAPIPort,
		LogLevel:     DefaultLogLevel,
		DataDir:      DefaultDataDir,
		OutputDir:    DefaultOutputDir,
		DaysBack:     DefaultDaysBack,
		ScanInterval: DefaultScanInterval,
		JWTSecret:    DefaultJWTSecret,
		CORSOrigins:  DefaultCORSOrigins,
	}

	// Config file is optional
	if err := cfg.loadFromFile(); err != nil {
		return nil, err
	}

	cfg.loadFromEnv()

	return cfg, nil
}

// loadFromFile loads configuration from config.json file
func (c *Config) loadFromFile() error {
	configPaths := []string{
		"config.json",
		filepath.Join(c.DataDir, "config.json"),
	}

	for _, path := range configPaths {
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		return json.Unmarshal(data, c)
	}

	return nil
}

// loadFromEnv loads configuration from environment variables
func (c *Config) loadFromEnv() {
	if val := os.Getenv("ROCT_DATABASE_PATH"); val != "" {
		c.DatabasePath = val
	}
	if val := os.Getenv("ROCT_API_PORT"); val != "" {
		c.APIPort = val
	}
	if val := os.Getenv("ROCT_LOG_LEVEL"); val != "" {
		c.LogLevel = val
	}
	if val := os.Getenv("ROCT_DATA_DIR"); val != "" {
		c.DataDir = val
	}
	if val := os.Getenv("ROCT_OUTPUT_DIR"); val != "" {
		c.OutputDir = val
	}
	if val := os.Getenv("ROCT_DAYS_BACK"); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			c.DaysBack = n
		}
	}
	if val := os.Getenv("ROCT_SCAN_INTERVAL"); val != "" {
		if n, err := strconv.Atoi(val); err == nil && n > 0 {
			c.ScanInterval = n
		}
	}
	if val := os.Getenv("ROCT_JWT_SECRET"); val != "" {
		c.JWTSecret = val
	}
	if val := os.Getenv("ROCT_ENCRYPTION_KEY"); val != "" {
		c.EncryptionKey = val
	}
	if val := os.Getenv("ROCT_CORS_ORIGINS"); val != "" {
		c.CORSOrigins = val
	}
	if val := os.Getenv("ROCT_GOOGLE_CLIENT_ID"); val != "" {
		c.GoogleClientID = val
	}
	if val := os.Getenv("ROCT_GOOGLE_CLIENT_SECRET"); val != "" {
		c.GoogleClientSecret = val
	}
	if val := os.Getenv("ROCT_GOOGLE_REDIRECT_URL"); val != "" {
		c.GoogleRedirectURL = val
	}
}

// GetEncryptionKey returns the 32-byte key used for credential encryption.
// If EncryptionKey is unset it is derived from JWTSecret.
func (c *Config) GetEncryptionKey() []byte {
	if c.EncryptionKey != "" {
		hash := sha256.Sum256([]byte(c.EncryptionKey))
		return hash[:]
	}
	hash := sha256.Sum256([]byte(c.JWTSecret + "-encryption"))
	return hash[:]
}

// Save saves the current configuration to a file
func (c *Config) Save(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
