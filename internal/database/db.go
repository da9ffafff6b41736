package database

import (
	"fmt"

	"fulfillment-backend/internal/config"
	"fulfillment-backend/internal/models"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var DB *gorm.DB

func Init(cfg *config.Config, log *zap.Logger) {
	var err error

	DB, err = gorm.Open(postgres.Open(cfg.DatabaseDSN), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		log.Fatal("could not connect to database", zap.Error(err))
	}

	if err := Migrate(DB); err != nil {
		log.Fatal("migration failed", zap.Error(err))
	}

	log.Info("database connected, migrations applied")
}

// Migrate creates or updates every table the service owns. Used by Init and
// by the in-memory test store.
func Migrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&models.User{},
		&models.AuditLog{},
		&models.Blank{},
		&models.BlankVariant{},
		&models.Product{},
		&models.ProductVariant{},
		&models.Print{},
		&models.Order{},
		&models.OrderHold{},
		&models.LineItem{},
		&models.PrintLog{},
		&models.Batch{},
		&models.InventoryTransaction{},
	)
	if err != nil {
		return fmt.Errorf("automigrate: %w", err)
	}

	// Only one row may carry active = true.
	if err := db.Exec("CREATE UNIQUE INDEX IF NOT EXISTS idx_batches_single_active ON batches (active) WHERE active").Error; err != nil {
		return fmt.Errorf("single active batch index: %w", err)
	}
	return nil
}
