package db

import (
	"fmt"

	"wecom_ops/internal/model"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Models lists every table owned or read by this service
func Models() []interface{} {
	return []interface{}{
		&model.User{},
		&model.OperationLog{},
		&model.MassTask{},
		&model.MassTargetSnapshot{},
		&model.MassTaskLog{},
		&model.MobileUpload{},
		&model.MobileUploadItem{},
		&model.ExtContact{},
		&model.ExtContactTag{},
		&model.ThirdPartyUserImport{},
	}
}

// Migrate runs database migrations for all models
func Migrate(db *gorm.DB, logger *logrus.Entry) error {
	logger.Info("Starting database migration...")

	models := Models()
	if err := db.AutoMigrate(models...); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}

	logger.WithField("tables", len(models)).Info("Database migration completed")
	return nil
}
