// interfaces.go: this code defines the interface for the database operations
package datastore

import (
	"io"
	"log/slog"
	"time"

	"github.com/surfwatch/surfwatch-go/internal/conf"
	"github.com/surfwatch/surfwatch-go/internal/errors"
	"github.com/surfwatch/surfwatch-go/internal/logging"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Package-level logger for datastore operations
var (
	storeLogger   *slog.Logger
	storeLevelVar = new(slog.LevelVar)
)

func init() {
	var err error
	storeLevelVar.Set(slog.LevelInfo)

	storeLogger, _, err = logging.NewFileLogger("logs/datastore.log", "datastore", storeLevelVar)
	if err != nil {
		// Fall back to a disabled logger, the store must work without a log file
		fbHandler := slog.NewJSONHandler(io.Discard, &slog.HandlerOptions{Level: storeLevelVar})
		storeLogger = slog.New(fbHandler).With("service", "datastore")
	}
}

// Interface abstracts the underlying database implementation and defines the
// operations the pipeline performs against storage.
type Interface interface {
	Open() error
	Close() error

	// catalog seed
	SaveSpot(spot *Spot) error
	SaveCam(cam *Cam) error
	GetAllSpots() ([]Spot, error)
	SpotExists(id string) (bool, error)
	CamsForSpot(spotID string) ([]Cam, error)

	// forecasts
	SaveForecastBatch(records []ForecastRecord) error
	GetForecasts(spotID string, start, end time.Time) ([]ForecastRecord, error)

	// video clips
	UpsertVideoClip(clip *VideoClip) error
	HasVideoClip(camID string, timestamp time.Time) (bool, error)
	GetVideoClip(camID string, timestamp time.Time) (VideoClip, error)
	GetVideoClipsForCam(camID string) ([]VideoClip, error)

	// maintenance
	DeleteVideosForCam(camID string) (int64, error)
	DeleteSpot(id string) error
}

// DataStore implements Interface using a GORM database.
type DataStore struct {
	DB *gorm.DB // GORM database instance
}

// New creates a new store instance based on the provided configuration.
func New(settings *conf.Settings) Interface {
	switch {
	case settings.Database.SQLite.Enabled:
		return &SQLiteStore{
			Settings: settings,
		}
	case settings.Database.MySQL.Enabled:
		return &MySQLStore{
			Settings: settings,
		}
	default:
		// Load() validation rejects this configuration before we get here
		return nil
	}
}

// SaveSpot upserts a spot row, keyed on its identifier.
func (ds *DataStore) SaveSpot(spot *Spot) error {
	err := ds.DB.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "provider_spot_id", "latitude", "longitude"}),
	}).Omit("Cams", "Forecasts").Create(spot).Error
	if err != nil {
		return errors.New(err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("operation", "save_spot").
			Context("spot_id", spot.ID).
			Build()
	}
	return nil
}

// SaveCam upserts a cam row. The owning spot must exist.
func (ds *DataStore) SaveCam(cam *Cam) error {
	exists, err := ds.SpotExists(cam.SpotID)
	if err != nil {
		return err
	}
	if !exists {
		return constraintViolation("save_cam", "cam", cam.ID, "spot", cam.SpotID)
	}

	err = ds.DB.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"spot_id", "provider_cam_id", "label", "page_slug"}),
	}).Omit("Clips").Create(cam).Error
	if err != nil {
		return errors.New(err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("operation", "save_cam").
			Context("cam_id", cam.ID).
			Build()
	}
	return nil
}

// GetAllSpots returns every spot row.
func (ds *DataStore) GetAllSpots() ([]Spot, error) {
	var spots []Spot
	if err := ds.DB.Find(&spots).Error; err != nil {
		return nil, errors.New(err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("operation", "get_all_spots").
			Build()
	}
	return spots, nil
}

// SpotExists reports whether a spot row with the given id exists.
func (ds *DataStore) SpotExists(id string) (bool, error) {
	var count int64
	if err := ds.DB.Model(&Spot{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return false, errors.New(err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("operation", "spot_exists").
			Context("spot_id", id).
			Build()
	}
	return count > 0, nil
}

// CamsForSpot returns the cams of one spot, which may be empty.
func (ds *DataStore) CamsForSpot(spotID string) ([]Cam, error) {
	var cams []Cam
	if err := ds.DB.Where("spot_id = ?", spotID).Find(&cams).Error; err != nil {
		return nil, errors.New(err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("operation", "cams_for_spot").
			Context("spot_id", spotID).
			Build()
	}
	return cams, nil
}
