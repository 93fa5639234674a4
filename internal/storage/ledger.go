package storage

import (
	"context"
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/petermazzocco/photostockage/models"
)

// Ledger records every stored upload in Postgres.
type Ledger struct {
	db *gorm.DB
}

// OpenLedger connects and migrates the upload table.
func OpenLedger(dsn string) (*Ledger, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("storage: connect ledger: %w", err)
	}
	if err := db.AutoMigrate(&models.UploadRecord{}); err != nil {
		return nil, fmt.Errorf("storage: migrate ledger: %w", err)
	}
	return NewLedger(db), nil
}

func NewLedger(db *gorm.DB) *Ledger { return &Ledger{db: db} }

func (l *Ledger) Record(ctx context.Context, rec *models.UploadRecord) error {
	if err := l.db.WithContext(ctx).Create(rec).Error; err != nil {
		return fmt.Errorf("storage: record %s: %w", rec.FileName, err)
	}
	return nil
}

// Forget removes the entry for fileName. Missing entries are ignored.
func (l *Ledger) Forget(ctx context.Context, fileName string) error {
	err := l.db.WithContext(ctx).Where("file_name = ?", fileName).Delete(&models.UploadRecord{}).Error
	if err != nil {
		return fmt.Errorf("storage: forget %s: %w", fileName, err)
	}
	return nil
}

// Ping checks the connection for the health endpoint.
func (l *Ledger) Ping(ctx context.Context) error {
	sqlDB, err := l.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}
