// config.go: This file contains the configuration for the surfwatch application.
// It defines the settings struct and functions to load and save the settings.
package conf

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

//go:embed config.yaml
var configFiles embed.FS

// SQLiteSettings contains settings for the SQLite database output.
type SQLiteSettings struct {
	Enabled bool   // true to use SQLite
	Path    string // path to the database file
}

// MySQLSettings contains settings for the MySQL database output.
type MySQLSettings struct {
	Enabled  bool   // true to use MySQL
	Username string // MySQL database username
	Password string // MySQL database user password
	Database string // MySQL database name
	Host     string // MySQL database host
	Port     string // MySQL database port
}

// DatabaseSettings selects and configures the persistence backend.
type DatabaseSettings struct {
	SQLite SQLiteSettings
	MySQL  MySQLSettings
}

// ForecastSettings contains settings for the forecast fetch stage.
type ForecastSettings struct {
	Provider      string // forecast data provider, only "surfline" today
	BaseURL       string // override for the provider API base URL, used in tests
	Days          int    // forecast window length in days
	IntervalHours int    // forecast granularity in hours
	MaxRetries    int    // HTTP fetch attempts before giving up
	RetryDelay    int    // seconds between fetch attempts
}

// RewindSettings contains settings for the rewind link scraping stage.
type RewindSettings struct {
	Provider string // cam rewind provider, only "surfline" today
	BaseURL  string // override for the provider web base URL, used in tests
	Days     int    // how many days of rewinds to walk back, provider caps at 5
	Email    string // provider account identifier, resolved from environment only
	Password string // provider account passphrase, resolved from environment only
}

// DownloadSettings bounds clip download retries.
type DownloadSettings struct {
	MaxRetries   int // attempts per clip before AcquisitionFailed
	BackoffBase  int // seconds before the first retry
	BackoffLimit int // cap in seconds for the exponential backoff
}

// VideoSettings contains settings for clip acquisition and transcoding.
type VideoSettings struct {
	FfmpegPath      string // path to ffmpeg binary
	FfprobePath     string // path to ffprobe binary
	ScratchPath     string // directory for raw downloads, cleaned per clip
	ExportPath      string // directory for finished clips
	TargetDuration  int    // maximum clip length in seconds
	TargetFramerate int    // output framerate
	CRF             int    // x264 constant rate factor, higher is smaller
	Workers         int    // bounded worker pool size for per-cam processing
	Download        DownloadSettings
}

// CamConfig describes one camera of a spot in the static catalog.
type CamConfig struct {
	ID            string // cam identifier, unique across the catalog
	ProviderCamID string // provider's cam identifier
	Label         string // human label, e.g. "front", "overview"
	PageSlug      string // rewind page slug, e.g. "supertubos/5842041f..."
}

// SpotConfig describes one surf spot in the static catalog.
type SpotConfig struct {
	ID             string  // spot identifier
	Name           string  // display name
	ProviderSpotID string  // provider's spot identifier
	Latitude       float64 // spot latitude for sun event calculation
	Longitude      float64 // spot longitude for sun event calculation
	Cams           []CamConfig
}

// Settings is the top level configuration struct.
type Settings struct {
	Debug bool // true to enable debug level logging

	Database DatabaseSettings
	Forecast ForecastSettings
	Rewind   RewindSettings
	Video    VideoSettings

	Spots []SpotConfig // static spot/cam catalog, loaded once
}

// ForecastWindow returns the configured forecast window as a duration.
func (s *Settings) ForecastWindow() time.Duration {
	return time.Duration(s.Forecast.Days) * 24 * time.Hour
}

// settingsMutex guards viper state during Load and the settings copy taken
// by SaveSettings.
var settingsMutex sync.RWMutex

// Load reads the configuration file and environment variables into Settings.
// An empty configPath searches the default config locations.
func Load(configPath string) (*Settings, error) {
	settingsMutex.Lock()
	defer settingsMutex.Unlock()

	settings := &Settings{}

	// Initialize viper and read config
	if err := initViper(configPath); err != nil {
		return nil, fmt.Errorf("error initializing viper: %w", err)
	}

	// Unmarshal the config into settings
	if err := viper.Unmarshal(settings); err != nil {
		return nil, fmt.Errorf("error unmarshaling config into struct: %w", err)
	}

	// Validate settings
	if err := ValidateSettings(settings); err != nil {
		return nil, fmt.Errorf("error validating settings: %w", err)
	}

	return settings, nil
}

// initViper initializes viper with default values and reads the configuration file.
func initViper(configPath string) error {
	viper.SetConfigType("yaml")

	if configPath != "" {
		viper.SetConfigFile(configPath)
	} else {
		viper.SetConfigName("config")
		configPaths, err := GetDefaultConfigPaths()
		if err != nil {
			return fmt.Errorf("error getting default config paths: %w", err)
		}
		for _, path := range configPaths {
			viper.AddConfigPath(path)
		}
	}

	// Set default values for each configuration parameter
	// function defined in defaults.go
	setDefaultConfig()

	// Provider credentials come from the environment only and are never
	// written back to the config file.
	if err := viper.BindEnv("rewind.email", "SURFWATCH_PROVIDER_EMAIL"); err != nil {
		return fmt.Errorf("error binding credential env var: %w", err)
	}
	if err := viper.BindEnv("rewind.password", "SURFWATCH_PROVIDER_PASSWORD"); err != nil {
		return fmt.Errorf("error binding credential env var: %w", err)
	}

	// Read configuration file
	if err := viper.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if errors.As(err, &configFileNotFoundError) && configPath == "" {
			// Config file not found, create config with defaults
			return createDefaultConfig()
		}
		return fmt.Errorf("fatal error reading config file: %w", err)
	}

	return nil
}

// createDefaultConfig creates a default config file and writes it to the default config path
func createDefaultConfig() error {
	configPaths, err := GetDefaultConfigPaths()
	if err != nil {
		return fmt.Errorf("error getting default config paths: %w", err)
	}
	configPath := filepath.Join(configPaths[0], "config.yaml")
	defaultConfig := getDefaultConfig()

	// Create directories for config file
	if err := os.MkdirAll(filepath.Dir(configPath), 0o755); err != nil {
		return fmt.Errorf("error creating directories for config file: %w", err)
	}

	// Write default config file
	if err := os.WriteFile(configPath, []byte(defaultConfig), 0o644); err != nil {
		return fmt.Errorf("error writing default config file: %w", err)
	}

	fmt.Println("Created default config file at:", configPath)
	return viper.ReadInConfig()
}

// getDefaultConfig reads the default configuration from the embedded config.yaml file.
func getDefaultConfig() string {
	data, err := fs.ReadFile(configFiles, "config.yaml")
	if err != nil {
		log.Fatalf("Error reading config file: %v", err)
	}
	return string(data)
}

// SaveSettings writes the current settings to a YAML file as an atomic
// operation. Provider credentials are blanked first, they live in the
// environment only.
func SaveSettings(settings *Settings, configPath string) error {
	settingsMutex.RLock()
	saved := *settings
	settingsMutex.RUnlock()
	saved.Rewind.Email = ""
	saved.Rewind.Password = ""

	data, err := yaml.Marshal(&saved)
	if err != nil {
		return fmt.Errorf("error marshaling settings to YAML: %w", err)
	}

	tempFile, err := os.CreateTemp(filepath.Dir(configPath), "config-*.yaml")
	if err != nil {
		return fmt.Errorf("error creating temporary config file: %w", err)
	}
	tempName := tempFile.Name()

	if _, err := tempFile.Write(data); err != nil {
		_ = tempFile.Close()
		_ = os.Remove(tempName)
		return fmt.Errorf("error writing temporary config file: %w", err)
	}
	if err := tempFile.Close(); err != nil {
		_ = os.Remove(tempName)
		return fmt.Errorf("error closing temporary config file: %w", err)
	}

	if err := os.Rename(tempName, configPath); err != nil {
		_ = os.Remove(tempName)
		return fmt.Errorf("error replacing config file: %w", err)
	}
	return nil
}

// GetDefaultConfigPaths returns the list of directories searched for config.yaml,
// in priority order: current directory, then the user config directory.
func GetDefaultConfigPaths() ([]string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return nil, fmt.Errorf("error fetching user config directory: %w", err)
	}
	return []string{".", filepath.Join(configDir, "surfwatch")}, nil
}
