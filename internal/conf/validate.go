// validate.go settings validation
package conf

import (
	"fmt"
)

// ValidateSettings checks a loaded Settings struct for configuration errors
// that would only surface later as confusing runtime failures.
func ValidateSettings(settings *Settings) error {
	if err := validateDatabaseSettings(&settings.Database); err != nil {
		return err
	}
	if err := validateForecastSettings(&settings.Forecast); err != nil {
		return err
	}
	if err := validateVideoSettings(&settings.Video); err != nil {
		return err
	}
	return validateSpots(settings.Spots)
}

func validateDatabaseSettings(db *DatabaseSettings) error {
	if db.SQLite.Enabled && db.MySQL.Enabled {
		return fmt.Errorf("both SQLite and MySQL database outputs enabled, enable only one")
	}
	if !db.SQLite.Enabled && !db.MySQL.Enabled {
		return fmt.Errorf("no database output enabled")
	}
	if db.SQLite.Enabled && db.SQLite.Path == "" {
		return fmt.Errorf("SQLite database path is empty")
	}
	return nil
}

func validateForecastSettings(fc *ForecastSettings) error {
	if fc.Days < 1 || fc.Days > 16 {
		return fmt.Errorf("forecast window must be between 1 and 16 days, got %d", fc.Days)
	}
	if fc.IntervalHours < 1 {
		return fmt.Errorf("forecast interval must be at least 1 hour, got %d", fc.IntervalHours)
	}
	if fc.MaxRetries < 1 {
		return fmt.Errorf("forecast max retries must be at least 1, got %d", fc.MaxRetries)
	}
	return nil
}

func validateVideoSettings(v *VideoSettings) error {
	if v.TargetDuration <= 0 {
		return fmt.Errorf("video target duration must be positive, got %d", v.TargetDuration)
	}
	if v.TargetFramerate <= 0 {
		return fmt.Errorf("video target framerate must be positive, got %d", v.TargetFramerate)
	}
	if v.Workers < 1 {
		return fmt.Errorf("video worker count must be at least 1, got %d", v.Workers)
	}
	if v.Download.MaxRetries < 1 {
		return fmt.Errorf("download max retries must be at least 1, got %d", v.Download.MaxRetries)
	}
	return nil
}

// validateSpots checks the static catalog for duplicate identifiers.
// Deeper invariants (cams referencing known spots) live in the catalog package.
func validateSpots(spots []SpotConfig) error {
	seenSpots := make(map[string]bool, len(spots))
	seenCams := make(map[string]bool)
	for i := range spots {
		spot := &spots[i]
		if spot.ID == "" {
			return fmt.Errorf("spot at index %d has an empty id", i)
		}
		if seenSpots[spot.ID] {
			return fmt.Errorf("duplicate spot id %q in catalog", spot.ID)
		}
		seenSpots[spot.ID] = true

		for j := range spot.Cams {
			cam := &spot.Cams[j]
			if cam.ID == "" {
				return fmt.Errorf("cam at index %d of spot %q has an empty id", j, spot.ID)
			}
			if seenCams[cam.ID] {
				return fmt.Errorf("duplicate cam id %q in catalog", cam.ID)
			}
			seenCams[cam.ID] = true
		}
	}
	return nil
}
