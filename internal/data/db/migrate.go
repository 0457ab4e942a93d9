package db

import (
	"fmt"

	"gorm.io/gorm"

	types "github.com/yungbote/conceptlab-backend/internal/domain"
)

func AutoMigrateAll(db *gorm.DB) error {
	return db.AutoMigrate(types.AllModels()...)
}

func EnsureDatasetIndexes(db *gorm.DB) error {
	// The negative-sampling selector filters on JSON path existence.
	if err := db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_dataset_row_data
		ON dataset_row
		USING GIN (data jsonb_path_ops);
	`).Error; err != nil {
		return fmt.Errorf("create idx_dataset_row_data: %w", err)
	}
	return nil
}

func (s *PostgresService) AutoMigrateAll() error {
	s.log.Info("Auto migrating postgres tables...")
	if err := AutoMigrateAll(s.db); err != nil {
		s.log.Error("Auto migration failed", "error", err)
		return err
	}
	if err := EnsureDatasetIndexes(s.db); err != nil {
		s.log.Error("Dataset index migration failed", "error", err)
		return err
	}
	return nil
}
