package storage

import (
	"context"
	"time"

	"go.uber.org/zap"

	"CheckinKiosk/pkg/logger"
	"CheckinKiosk/storage/database"
)

// Close shuts down storage connections, bounded so a dead database
// cannot hang process exit.
func Close() {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	logger.Logger.Info("Closing storage connections...")

	if err := database.Close(ctx); err != nil {
		logger.Logger.Error("Failed to close database connection", zap.Error(err))
	} else {
		logger.Logger.Info("Database connection closed successfully")
	}
}
