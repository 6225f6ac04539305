package datastore

import (
	"fmt"
	"time"

	"github.com/surfwatch/surfwatch-go/internal/errors"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// DefaultSlowQueryThreshold defines the duration after which a query is
// considered slow and logged at warn level.
const DefaultSlowQueryThreshold = 1 * time.Second

// createGormLogger configures and returns a new GORM logger instance that
// routes through the package's slog file logger.
func createGormLogger() gormlogger.Interface {
	return gormlogger.New(
		slogWriter{},
		gormlogger.Config{
			SlowThreshold:             DefaultSlowQueryThreshold,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
		},
	)
}

// slogWriter adapts the datastore slog logger to GORM's printf-style logger.
type slogWriter struct{}

func (slogWriter) Printf(format string, args ...any) {
	storeLogger.Info("gorm", "msg", fmt.Sprintf(format, args...))
}

// performAutoMigration runs GORM auto-migration for the full schema.
func performAutoMigration(db *gorm.DB, debug bool, dbType, connectionInfo string) error {
	if err := db.AutoMigrate(&Spot{}, &Cam{}, &ForecastRecord{}, &SwellComponent{}, &VideoClip{}); err != nil {
		return errors.New(err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("operation", "auto_migration").
			Context("db_type", dbType).
			Build()
	}

	if debug {
		storeLogger.Debug("Database schema migrated", "db_type", dbType, "connection", connectionInfo)
	}
	return nil
}

// constraintViolation builds the referential-integrity error reported when a
// write references a parent row that does not resolve.
func constraintViolation(operation, childKind, childKey, parentKind, parentKey string) error {
	return errors.Newf("%s %q references missing %s %q", childKind, childKey, parentKind, parentKey).
		Component("datastore").
		Category(errors.CategoryDatabase).
		Context("operation", operation).
		Context("constraint", parentKind+"_reference").
		Build()
}

// DeleteVideosForCam removes every clip row of a cam and returns the number of
// rows removed. Safe to re-run, deleting an empty set is a no-op.
func (ds *DataStore) DeleteVideosForCam(camID string) (int64, error) {
	result := ds.DB.Where("cam_id = ?", camID).Delete(&VideoClip{})
	if result.Error != nil {
		return 0, errors.New(result.Error).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("operation", "delete_videos_for_cam").
			Context("cam_id", camID).
			Build()
	}

	storeLogger.Info("Deleted video clips for cam",
		"cam_id", camID,
		"rows_removed", result.RowsAffected,
	)
	return result.RowsAffected, nil
}

// DeleteSpot retires a spot: it removes the spot row and cascades through its
// cams, their video clips, and the spot's forecasts and swells, leaving no
// orphaned foreign keys. The operation is idempotent, re-running it against an
// already-deleted spot succeeds without touching any rows. Everything removed
// is logged for audit.
func (ds *DataStore) DeleteSpot(id string) error {
	exists, err := ds.SpotExists(id)
	if err != nil {
		return err
	}
	if !exists {
		storeLogger.Info("Spot already deleted, nothing to do", "spot_id", id)
		return nil
	}

	var clipCount, camCount, swellCount, forecastCount int64

	err = ds.DB.Transaction(func(tx *gorm.DB) error {
		// Children first, deepest level first. The FK constraints would
		// cascade on their own, counting row by row keeps the audit log exact.
		result := tx.Where("cam_id IN (?)",
			tx.Model(&Cam{}).Select("id").Where("spot_id = ?", id),
		).Delete(&VideoClip{})
		if result.Error != nil {
			return result.Error
		}
		clipCount = result.RowsAffected

		result = tx.Where("spot_id = ?", id).Delete(&Cam{})
		if result.Error != nil {
			return result.Error
		}
		camCount = result.RowsAffected

		result = tx.Where("spot_id = ?", id).Delete(&SwellComponent{})
		if result.Error != nil {
			return result.Error
		}
		swellCount = result.RowsAffected

		result = tx.Where("spot_id = ?", id).Delete(&ForecastRecord{})
		if result.Error != nil {
			return result.Error
		}
		forecastCount = result.RowsAffected

		return tx.Where("id = ?", id).Delete(&Spot{}).Error
	})
	if err != nil {
		return errors.New(err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("operation", "delete_spot").
			Context("spot_id", id).
			Build()
	}

	storeLogger.Info("Retired spot",
		"spot_id", id,
		"clips_removed", clipCount,
		"cams_removed", camCount,
		"swells_removed", swellCount,
		"forecasts_removed", forecastCount,
	)
	return nil
}
