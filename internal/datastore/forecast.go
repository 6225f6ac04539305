package datastore

import (
	"time"

	"github.com/surfwatch/surfwatch-go/internal/errors"
	"gorm.io/gorm/clause"
)

// forecastUpdateColumns are the columns replaced when a forecast row for
// (spot_id, timestamp) already exists.
var forecastUpdateColumns = []string{
	"utc_offset",
	"surf_min", "surf_max", "surf_optimal_score", "surf_human_relation",
	"surf_raw_min", "surf_raw_max",
	"wind_speed", "wind_direction", "wind_direction_type", "wind_gust",
	"wind_optimal_score",
	"probability",
	"tide_type", "tide_height",
	"weather_temperature", "weather_condition", "weather_pressure",
	"is_light",
}

// SaveForecastBatch stores one fetched forecast window for a spot as a single
// transaction: either every row commits or none does. Rows upsert on the
// (spot_id, timestamp) composite key, swell children are replaced wholesale.
func (ds *DataStore) SaveForecastBatch(records []ForecastRecord) error {
	if len(records) == 0 {
		return nil
	}

	// Every record in a batch belongs to one spot, verify the reference once.
	spotID := records[0].SpotID
	exists, err := ds.SpotExists(spotID)
	if err != nil {
		return err
	}
	if !exists {
		return constraintViolation("save_forecast_batch", "forecast", records[0].Timestamp.String(), "spot", spotID)
	}

	tx := ds.DB.Begin()
	if tx.Error != nil {
		return errors.New(tx.Error).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("operation", "begin_forecast_transaction").
			Build()
	}
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
		}
	}()

	for i := range records {
		record := &records[i]
		if record.SpotID != spotID {
			tx.Rollback()
			return errors.Newf("forecast batch mixes spots %q and %q", spotID, record.SpotID).
				Component("datastore").
				Category(errors.CategoryValidation).
				Build()
		}

		err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "spot_id"}, {Name: "timestamp"}},
			DoUpdates: clause.AssignmentColumns(forecastUpdateColumns),
		}).Omit("Swells").Create(record).Error
		if err != nil {
			tx.Rollback()
			return errors.New(err).
				Component("datastore").
				Category(errors.CategoryDatabase).
				Context("operation", "upsert_forecast").
				Context("spot_id", record.SpotID).
				Context("timestamp", record.Timestamp.Format(time.RFC3339)).
				Build()
		}

		// Replace the swell children of this timestamp with the fetched set.
		if err := tx.Where("spot_id = ? AND timestamp = ?", record.SpotID, record.Timestamp).
			Delete(&SwellComponent{}).Error; err != nil {
			tx.Rollback()
			return errors.New(err).
				Component("datastore").
				Category(errors.CategoryDatabase).
				Context("operation", "replace_swells").
				Context("spot_id", record.SpotID).
				Build()
		}
		for j := range record.Swells {
			swell := record.Swells[j]
			swell.SpotID = record.SpotID
			swell.Timestamp = record.Timestamp
			if err := tx.Create(&swell).Error; err != nil {
				tx.Rollback()
				return errors.New(err).
					Component("datastore").
					Category(errors.CategoryDatabase).
					Context("operation", "insert_swell").
					Context("spot_id", record.SpotID).
					Context("rank", swell.Rank).
					Build()
			}
		}
	}

	if err := tx.Commit().Error; err != nil {
		return errors.New(err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("operation", "commit_forecast_transaction").
			Context("spot_id", spotID).
			Build()
	}

	storeLogger.Debug("Committed forecast batch",
		"spot_id", spotID,
		"rows", len(records),
	)
	return nil
}

// GetForecasts returns the stored forecast rows of one spot inside [start, end],
// swells preloaded, ordered by timestamp.
func (ds *DataStore) GetForecasts(spotID string, start, end time.Time) ([]ForecastRecord, error) {
	var records []ForecastRecord
	err := ds.DB.Preload("Swells").
		Where("spot_id = ? AND timestamp >= ? AND timestamp <= ?", spotID, start, end).
		Order("timestamp").
		Find(&records).Error
	if err != nil {
		return nil, errors.New(err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("operation", "get_forecasts").
			Context("spot_id", spotID).
			Build()
	}
	return records, nil
}
