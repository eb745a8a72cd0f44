package database

import (
	"fmt"
	"time"

	"sprynt-api/internal/domain/accounts"
	"sprynt-api/internal/domain/credits"
	"sprynt-api/internal/domain/marketplace"
	"sprynt-api/internal/domain/payments"
	"sprynt-api/internal/domain/projects"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Open connects to Postgres and sizes the pool.
func Open(dsn string) (*gorm.DB, error) {
	if dsn == "" {
		return nil, fmt.Errorf("DB_URL not set")
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("get sql.DB: %w", err)
	}
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)

	return db, nil
}

// Migrate creates or updates every table this service owns. projects is
// migrated as well so a standalone deployment has the columns it reads.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&accounts.Account{},
		&credits.Transaction{},
		&payments.ProcessedEvent{},
		&projects.Project{},
		&marketplace.Listing{},
		&marketplace.Purchase{},
	); err != nil {
		return fmt.Errorf("auto-migrate: %w", err)
	}
	return nil
}
