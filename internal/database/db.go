package database

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/reyurquiza/retail-order-cancellation-tracker/internal/database/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Initialize creates and returns a database connection
func Initialize(dbPath string) (*gorm.DB, error) {
	// Ensure the directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	gormConfig := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	}

	db, err := gorm.Open(sqlite.Open(dbPath), gormConfig)
	if err != nil {
		return nil, err
	}

	if err := runMigrations(db); err != nil {
		return nil, err
	}

	return db, nil
}

// runMigrations runs all database migrations
func runMigrations(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&models.User{},
		&models.EmailAccount{},
		&models.Order{},
		&models.SeenMessage{},
		&models.Log{},
	); err != nil {
		return err
	}

	// Early CSV imports carried lowercase statuses; normalize them once.
	for _, s := range []models.OrderStatus{
		models.StatusOrdered, models.StatusShipped,
		models.StatusDelivered, models.StatusCancelled,
	} {
		lower := strings.ToLower(string(s))
		db.Model(&models.Order{}).Where("status = ?", lower).Update("status", string(s))
	}

	// Accounts created before OAuth support have no auth_type set.
	db.Model(&models.EmailAccount{}).
		Where("auth_type IS NULL OR auth_type = ''").
		Update("auth_type", string(models.AuthTypePassword))

	return nil
}
