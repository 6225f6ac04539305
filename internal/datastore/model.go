// model.go this code defines the data model for the application
package datastore

import "time"

// Clip processing status values stored on VideoClip.Status.
const (
	ClipStatusPending = "pending"
	ClipStatusReady   = "ready"
)

// Spot represents a surf location. Spots are created by seed loading and are
// immutable afterwards, short of retirement through DeleteSpot.
type Spot struct {
	ID             string `gorm:"primaryKey"`
	Name           string
	ProviderSpotID string `gorm:"uniqueIndex;not null"`
	Latitude       float64
	Longitude      float64
	Cams           []Cam            `gorm:"foreignKey:SpotID;constraint:OnDelete:CASCADE"`
	Forecasts      []ForecastRecord `gorm:"foreignKey:SpotID;constraint:OnDelete:CASCADE"`
}

// Cam represents one camera at a spot. A spot may have zero or more cams.
type Cam struct {
	ID            string `gorm:"primaryKey"`
	SpotID        string `gorm:"index;not null"`
	ProviderCamID string
	Label         string
	PageSlug      string
	Clips         []VideoClip `gorm:"foreignKey:CamID;constraint:OnDelete:CASCADE"`
}

// ForecastRecord is one flattened forecast row per spot per timestamp.
// Re-fetching the same timestamp replaces the row, never duplicates it.
type ForecastRecord struct {
	SpotID    string    `gorm:"primaryKey"`
	Timestamp time.Time `gorm:"primaryKey"`

	UTCOffset int

	SurfMin           float64
	SurfMax           float64
	SurfOptimalScore  int
	SurfHumanRelation string
	SurfRawMin        float64
	SurfRawMax        float64

	WindSpeed         float64
	WindDirection     float64
	WindDirectionType string
	WindGust          float64
	WindOptimalScore  int

	Probability float64

	TideType   string
	TideHeight float64

	WeatherTemperature float64
	WeatherCondition   string
	WeatherPressure    float64

	IsLight bool

	Swells []SwellComponent `gorm:"foreignKey:SpotID,Timestamp;references:SpotID,Timestamp;constraint:OnDelete:CASCADE"`
}

// SwellComponent is one ranked swell train of a forecast timestamp.
// Providers report up to six.
type SwellComponent struct {
	SpotID    string    `gorm:"primaryKey"`
	Timestamp time.Time `gorm:"primaryKey"`
	Rank      int       `gorm:"primaryKey"`

	Height       float64
	Period       float64
	Impact       float64
	Power        float64
	Direction    float64
	DirectionMin float64
	OptimalScore int
}

// VideoClip is one stored rewind clip for a cam at its recorded timestamp.
// The composite key guarantees a clip never has two rows for the same
// cam and capture time.
type VideoClip struct {
	CamID     string    `gorm:"primaryKey"`
	Timestamp time.Time `gorm:"primaryKey"`

	Path      string
	Duration  float64 // seconds
	SourceURL string
	Status    string `gorm:"type:varchar(20);index"`
	CreatedAt time.Time
}
