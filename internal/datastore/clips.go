package datastore

import (
	"time"

	"github.com/surfwatch/surfwatch-go/internal/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// UpsertVideoClip stores a clip row keyed on (cam_id, timestamp). Re-acquiring
// the same cam/timestamp replaces the existing row, it never duplicates.
// The referenced cam must exist.
func (ds *DataStore) UpsertVideoClip(clip *VideoClip) error {
	var count int64
	if err := ds.DB.Model(&Cam{}).Where("id = ?", clip.CamID).Count(&count).Error; err != nil {
		return errors.New(err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("operation", "upsert_video_clip").
			Context("cam_id", clip.CamID).
			Build()
	}
	if count == 0 {
		return constraintViolation("upsert_video_clip", "clip", clip.Timestamp.String(), "cam", clip.CamID)
	}

	err := ds.DB.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "cam_id"}, {Name: "timestamp"}},
		DoUpdates: clause.AssignmentColumns([]string{"path", "duration", "source_url", "status"}),
	}).Create(clip).Error
	if err != nil {
		return errors.New(err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("operation", "upsert_video_clip").
			Context("cam_id", clip.CamID).
			Context("timestamp", clip.Timestamp.Format(time.RFC3339)).
			Build()
	}

	storeLogger.Debug("Upserted video clip",
		"cam_id", clip.CamID,
		"timestamp", clip.Timestamp,
		"status", clip.Status,
	)
	return nil
}

// HasVideoClip reports whether a clip row exists for the cam and capture time.
func (ds *DataStore) HasVideoClip(camID string, timestamp time.Time) (bool, error) {
	var count int64
	err := ds.DB.Model(&VideoClip{}).
		Where("cam_id = ? AND timestamp = ?", camID, timestamp).
		Count(&count).Error
	if err != nil {
		return false, errors.New(err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("operation", "has_video_clip").
			Context("cam_id", camID).
			Build()
	}
	return count > 0, nil
}

// GetVideoClip retrieves one clip row by its composite key.
func (ds *DataStore) GetVideoClip(camID string, timestamp time.Time) (VideoClip, error) {
	var clip VideoClip
	err := ds.DB.Where("cam_id = ? AND timestamp = ?", camID, timestamp).First(&clip).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return VideoClip{}, errors.Newf("video clip not found: %s @ %s", camID, timestamp.Format(time.RFC3339)).
				Component("datastore").
				Category(errors.CategoryNotFound).
				Build()
		}
		return VideoClip{}, errors.New(err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("operation", "get_video_clip").
			Context("cam_id", camID).
			Build()
	}
	return clip, nil
}

// GetVideoClipsForCam returns all clip rows of a cam ordered by capture time.
func (ds *DataStore) GetVideoClipsForCam(camID string) ([]VideoClip, error) {
	var clips []VideoClip
	err := ds.DB.Where("cam_id = ?", camID).Order("timestamp").Find(&clips).Error
	if err != nil {
		return nil, errors.New(err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("operation", "get_video_clips_for_cam").
			Context("cam_id", camID).
			Build()
	}
	return clips, nil
}
