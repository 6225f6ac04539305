// Package forecast fetches structured surf forecast data for a spot and time
// window, flattens the provider's nested response into one row per timestamp,
// and stores the result through the datastore.
package forecast

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/surfwatch/surfwatch-go/internal/catalog"
	"github.com/surfwatch/surfwatch-go/internal/conf"
	"github.com/surfwatch/surfwatch-go/internal/datastore"
	"github.com/surfwatch/surfwatch-go/internal/errors"
	"github.com/surfwatch/surfwatch-go/internal/logging"
)

// Package-level logger for the forecast service
var (
	forecastLogger   *slog.Logger
	forecastLevelVar = new(slog.LevelVar)
)

func init() {
	var err error
	forecastLevelVar.Set(slog.LevelInfo)

	forecastLogger, _, err = logging.NewFileLogger("logs/forecast.log", "forecast", forecastLevelVar)
	if err != nil {
		logging.Error("Failed to initialize forecast file logger", "error", err)
		fbHandler := slog.NewJSONHandler(io.Discard, &slog.HandlerOptions{Level: forecastLevelVar})
		forecastLogger = slog.New(fbHandler).With("service", "forecast")
	}
}

// Sentinel errors for forecast operations
var (
	// ErrUpstreamUnavailable reports a network or HTTP failure talking to the
	// forecast API. Retryable through a later scheduled run.
	ErrUpstreamUnavailable = errors.Newf("forecast upstream unavailable").Component("forecast").Category(errors.CategoryNetwork).Build()

	// ErrMalformedResponse reports a response whose shape does not match the
	// provider schema. Not retryable, logged and skipped.
	ErrMalformedResponse = errors.Newf("malformed forecast response").Component("forecast").Category(errors.CategoryValidation).Build()
)

// Window is the time range a forecast fetch covers, expressed the way the
// provider API takes it.
type Window struct {
	Days          int
	IntervalHours int
}

// Provider fetches and flattens forecast data for one spot. Implementations
// isolate all provider-specific parsing so upstream schema changes touch a
// single adapter.
type Provider interface {
	FetchForecast(ctx context.Context, spot *catalog.Spot, window Window) ([]datastore.ForecastRecord, error)
}

// Service composes a Provider with the datastore, refreshing one spot's
// forecast window as a single transactional batch.
type Service struct {
	provider Provider
	db       datastore.Interface
	settings *conf.Settings
}

// NewService creates a forecast service with the configured provider.
func NewService(settings *conf.Settings, db datastore.Interface) (*Service, error) {
	var provider Provider

	switch settings.Forecast.Provider {
	case "surfline":
		provider = NewSurflineProvider(settings)
	default:
		return nil, errors.New(fmt.Errorf("invalid forecast provider: %s", settings.Forecast.Provider)).
			Component("forecast").
			Category(errors.CategoryConfiguration).
			Context("provider", settings.Forecast.Provider).
			Build()
	}

	return &Service{
		provider: provider,
		db:       db,
		settings: settings,
	}, nil
}

// NewServiceWithProvider creates a forecast service around an explicit
// provider. Used by tests to substitute a provider double.
func NewServiceWithProvider(settings *conf.Settings, db datastore.Interface, provider Provider) *Service {
	return &Service{
		provider: provider,
		db:       db,
		settings: settings,
	}
}

// RefreshSpot fetches the configured window for one spot and upserts the
// result as one batch. Either the whole window commits or none of it does.
func (s *Service) RefreshSpot(ctx context.Context, spot *catalog.Spot) error {
	window := Window{
		Days:          s.settings.Forecast.Days,
		IntervalHours: s.settings.Forecast.IntervalHours,
	}

	fetchStart := time.Now()
	records, err := s.provider.FetchForecast(ctx, spot, window)
	if err != nil {
		forecastLogger.Error("Failed to fetch forecast",
			"spot_id", spot.ID,
			"provider", s.settings.Forecast.Provider,
			"error", err,
		)
		return err
	}

	forecastLogger.Info("Fetched forecast window",
		"spot_id", spot.ID,
		"rows", len(records),
		"window_days", window.Days,
		"duration_ms", time.Since(fetchStart).Milliseconds(),
	)

	// Provider rows carry the provider's spot id, storage joins on ours.
	for i := range records {
		records[i].SpotID = spot.ID
	}

	if err := s.db.SaveForecastBatch(records); err != nil {
		forecastLogger.Error("Failed to save forecast batch", "spot_id", spot.ID, "error", err)
		return err
	}

	return nil
}
