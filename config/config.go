package config

import (
	"log"
	"path/filepath"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"
)

type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"` // development, staging, production
	ServiceName string `env:"SERVICE_NAME" envDefault:"checkin-kiosk"`
	DeviceName  string `env:"MACHINE_NAME" envDefault:""` // Rececao / Piso 0
	DataDir     string `env:"DATA_DIR" envDefault:"./data"`

	// MariaDB
	MySQLHost     string `env:"MYSQL_HOST" envDefault:"127.0.0.1"`
	MySQLPort     string `env:"MYSQL_PORT" envDefault:"3306"`
	MySQLUser     string `env:"MYSQL_USER" envDefault:"checkin_user"`
	MySQLPassword string `env:"MYSQL_PASSWORD" envDefault:"checkin_pass"`
	MySQLDatabase string `env:"MYSQL_DATABASE" envDefault:"checkin_db"`
	MySQLMaxIdle  int    `env:"MYSQL_MAX_IDLE" envDefault:"5"`
	MySQLMaxOpen  int    `env:"MYSQL_MAX_OPEN" envDefault:"20"`

	// Barcode scanner
	ScannerPort string `env:"SCANNER_PORT" envDefault:"COM3"`
	ScannerBaud int    `env:"SCANNER_BAUD" envDefault:"9600"`

	// Check-in pipeline
	CooldownSeconds int  `env:"MIN_SECONDS_BETWEEN_READS" envDefault:"10"`
	LocalCSV        bool `env:"LOCAL_CSV" envDefault:"true"`

	// SMTP
	SMTPServer     string `env:"SMTP_SERVER"`
	SMTPPort       int    `env:"SMTP_PORT" envDefault:"465"`
	SMTPUser       string `env:"SMTP_USER"`
	SMTPPass       string `env:"SMTP_PASS"`
	SMTPTimeoutSec int    `env:"SMTP_TIMEOUT" envDefault:"30"`
	SMTPFromName   string `env:"SMTP_FROM_NAME" envDefault:"ASFormação"`
	AdminEmail     string `env:"ADMIN_EMAIL"`

	// Notification queue
	NotifyQueueSize   int `env:"NOTIFY_QUEUE_SIZE" envDefault:"64"`
	NotifyMaxAttempts int `env:"NOTIFY_MAX_ATTEMPTS" envDefault:"3"`

	// Snowflake ID generator
	SnowflakeMachineID  int64 `env:"SNOWFLAKE_MACHINE_ID" envDefault:"1"`
	SnowflakeDataCenter int64 `env:"SNOWFLAKE_DATACENTER_ID" envDefault:"1"`

	// Logging
	LoggerLevel      string `env:"LOGGER_LEVEL" envDefault:"INFO"`
	LoggerFormat     string `env:"LOGGER_FORMAT" envDefault:"text"` // json, text
	LoggerOutputPath string `env:"LOGGER_OUTPUT_PATH" envDefault:"stdout"`
}

// Load reads the .env file when present and parses the environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Printf("WARN: Cannot load .env file: %v, using environment variables", err)
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}

	cfg.validate()
	return cfg, nil
}

func (c *Config) validate() {
	if c.SMTPServer == "" {
		log.Printf("WARN: SMTP_SERVER is not set, guardian notifications will be disabled")
	}
	if c.AdminEmail == "" {
		log.Printf("WARN: ADMIN_EMAIL is not set, operator notices will be disabled")
	}
	if c.DeviceName == "" {
		log.Printf("WARN: MACHINE_NAME is not set, events will carry no device label")
	}
}

func (c *Config) GetDSN() string {
	return c.MySQLUser + ":" + c.MySQLPassword +
		"@tcp(" + c.MySQLHost + ":" + c.MySQLPort + ")/" + c.MySQLDatabase +
		"?charset=utf8mb4&parseTime=True&loc=Local"
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// CachePath is the scan cooldown cache file.
func (c *Config) CachePath() string {
	return filepath.Join(c.DataDir, "scan_cache.json")
}

// RecordsDir holds the per-day CSV mirror files.
func (c *Config) RecordsDir() string {
	return filepath.Join(c.DataDir, "registos")
}

// WorkbookPath is the spreadsheet mirror workbook.
func (c *Config) WorkbookPath() string {
	return filepath.Join(c.DataDir, "registo_entradas.xlsx")
}

// PendingPath is the pending-queue file for the named mirror sink.
func (c *Config) PendingPath(sink string) string {
	return filepath.Join(c.DataDir, "pending_"+sink+".json")
}
