package storage

import (
	"CheckinKiosk/config"
	"CheckinKiosk/storage/database"
)

// Init brings up the storage layer. A database that is unreachable at
// startup is a configuration problem, so the kiosk refuses to start;
// outages after startup are absorbed by the mirror sinks instead.
func Init(cfg *config.Config) error {
	return database.Init(cfg)
}
