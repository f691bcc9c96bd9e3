package database

import (
	"go.uber.org/zap"
	"gorm.io/gorm"

	"CheckinKiosk/internal/model"
	"CheckinKiosk/pkg/logger"
)

// Migrate creates the students and checkins tables.
func Migrate() error {
	db := DB()
	if db == nil {
		return gorm.ErrInvalidDB
	}

	logger.Logger.Info("Starting database migration...")

	err := db.AutoMigrate(
		&model.Student{},
		&model.CheckinEvent{},
	)
	if err != nil {
		logger.Logger.Error("Database migration failed", zap.Error(err))
		return err
	}

	logger.Logger.Info("Database migration completed successfully")
	return nil
}
