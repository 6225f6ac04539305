package forecast

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/surfwatch/surfwatch-go/internal/catalog"
	"github.com/surfwatch/surfwatch-go/internal/conf"
	"github.com/surfwatch/surfwatch-go/internal/datastore"
	"github.com/surfwatch/surfwatch-go/internal/errors"
	"github.com/surfwatch/surfwatch-go/internal/suncalc"
)

const (
	// SurflineBaseURL is the kbyg forecast API root. Each forecast attribute
	// is a suffix of this URL: "", "wave", "wind", "tides", "weather".
	SurflineBaseURL = "https://services.surfline.com/kbyg/spots/forecasts/"

	surflineProviderName = "surfline"

	// RequestTimeout bounds a single forecast API request
	RequestTimeout = 30 * time.Second

	// UserAgent identifies the client to the forecast API
	UserAgent = "surfwatch-go (surf forecast archiver)"

	// metaCacheTTL is how long a spot's meta response (utcOffset) is reused.
	// Spot metadata effectively never changes inside a run.
	metaCacheTTL = 12 * time.Hour

	maxSwellRanks = 6
)

// SurflineProvider implements Provider against the Surfline kbyg API.
type SurflineProvider struct {
	settings  *conf.Settings
	client    *http.Client
	metaCache *gocache.Cache
}

// NewSurflineProvider creates a new Surfline forecast provider.
func NewSurflineProvider(settings *conf.Settings) *SurflineProvider {
	return &SurflineProvider{
		settings:  settings,
		client:    &http.Client{Timeout: RequestTimeout},
		metaCache: gocache.New(metaCacheTTL, metaCacheTTL),
	}
}

// surflineMeta is the response of the bare forecasts endpoint.
type surflineMeta struct {
	UTCOffset int `json:"utcOffset"`
}

type surflineSwell struct {
	Height       float64 `json:"height"`
	Period       float64 `json:"period"`
	Impact       float64 `json:"impact"`
	Power        float64 `json:"power"`
	Direction    float64 `json:"direction"`
	DirectionMin float64 `json:"directionMin"`
	OptimalScore int     `json:"optimalScore"`
}

type surflineWave struct {
	Data struct {
		Wave []struct {
			Timestamp   int64   `json:"timestamp"`
			Probability float64 `json:"probability"`
			Surf        struct {
				Min           float64 `json:"min"`
				Max           float64 `json:"max"`
				OptimalScore  int     `json:"optimalScore"`
				HumanRelation string  `json:"humanRelation"`
				Raw           struct {
					Min float64 `json:"min"`
					Max float64 `json:"max"`
				} `json:"raw"`
			} `json:"surf"`
			Swells []surflineSwell `json:"swells"`
		} `json:"wave"`
	} `json:"data"`
}

type surflineWind struct {
	Data struct {
		Wind []struct {
			Timestamp     int64   `json:"timestamp"`
			Speed         float64 `json:"speed"`
			Direction     float64 `json:"direction"`
			DirectionType string  `json:"directionType"`
			Gust          float64 `json:"gust"`
			OptimalScore  int     `json:"optimalScore"`
		} `json:"wind"`
	} `json:"data"`
}

type surflineTides struct {
	Data struct {
		Tides []struct {
			Timestamp int64   `json:"timestamp"`
			Type      string  `json:"type"`
			Height    float64 `json:"height"`
		} `json:"tides"`
	} `json:"data"`
}

type surflineWeather struct {
	Data struct {
		Weather []struct {
			Timestamp   int64   `json:"timestamp"`
			Temperature float64 `json:"temperature"`
			Condition   string  `json:"condition"`
			Pressure    float64 `json:"pressure"`
		} `json:"weather"`
		SunlightTimes []struct {
			Midnight int64 `json:"midnight"`
			Dawn     int64 `json:"dawn"`
			Sunrise  int64 `json:"sunrise"`
			Sunset   int64 `json:"sunset"`
			Dusk     int64 `json:"dusk"`
		} `json:"sunlightTimes"`
	} `json:"data"`
}

// FetchForecast implements the Provider interface for SurflineProvider.
// It fetches the meta, wave, wind, tides and weather attributes for the spot
// and merges them into one flattened record per forecast timestamp.
func (p *SurflineProvider) FetchForecast(ctx context.Context, spot *catalog.Spot, window Window) ([]datastore.ForecastRecord, error) {
	logger := forecastLogger.With("provider", surflineProviderName, "spot_id", spot.ID)

	params := url.Values{}
	params.Set("spotId", spot.ProviderSpotID)
	params.Set("days", strconv.Itoa(window.Days))
	params.Set("intervalHours", strconv.Itoa(window.IntervalHours))

	meta, err := p.fetchMeta(ctx, spot, params, logger)
	if err != nil {
		return nil, err
	}

	var wave surflineWave
	if err := p.fetchAttr(ctx, "wave", params, &wave, logger); err != nil {
		return nil, err
	}
	var wind surflineWind
	if err := p.fetchAttr(ctx, "wind", params, &wind, logger); err != nil {
		return nil, err
	}
	var tides surflineTides
	if err := p.fetchAttr(ctx, "tides", params, &tides, logger); err != nil {
		return nil, err
	}
	var weather surflineWeather
	if err := p.fetchAttr(ctx, "weather", params, &weather, logger); err != nil {
		return nil, err
	}

	if len(wave.Data.Wave) == 0 {
		return nil, errors.New(fmt.Errorf("%w: no wave data in response", ErrMalformedResponse)).
			Component("forecast").
			Category(errors.CategoryValidation).
			Context("provider", surflineProviderName).
			Context("spot_id", spot.ID).
			Build()
	}

	records := flattenSurflineResponse(meta, &wave, &wind, &tides, &weather,
		suncalc.NewSunCalc(spot.Latitude, spot.Longitude))
	logger.Debug("Flattened forecast response", "rows", len(records))
	return records, nil
}

// fetchMeta returns the spot's meta response, using the short-lived cache to
// avoid refetching per-spot constants on every poll.
func (p *SurflineProvider) fetchMeta(ctx context.Context, spot *catalog.Spot, params url.Values, logger *slog.Logger) (*surflineMeta, error) {
	if cached, found := p.metaCache.Get(spot.ProviderSpotID); found {
		meta := cached.(surflineMeta)
		return &meta, nil
	}

	var meta surflineMeta
	if err := p.fetchAttr(ctx, "", params, &meta, logger); err != nil {
		return nil, err
	}
	p.metaCache.Set(spot.ProviderSpotID, meta, gocache.DefaultExpiration)
	return &meta, nil
}

// fetchAttr executes one attribute request with bounded retries and decodes
// the body into out.
func (p *SurflineProvider) fetchAttr(ctx context.Context, attr string, params url.Values, out any, logger *slog.Logger) error {
	apiURL := p.baseURL() + attr + "?" + params.Encode()
	maxRetries := p.settings.Forecast.MaxRetries
	retryDelay := time.Duration(p.settings.Forecast.RetryDelay) * time.Second

	var body []byte
	var lastErr error

	for i := 0; i < maxRetries; i++ {
		attemptLogger := logger.With("attr", attr, "attempt", i+1, "max_attempts", maxRetries)

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, http.NoBody)
		if err != nil {
			return errors.New(fmt.Errorf("%w: create request: %w", ErrUpstreamUnavailable, err)).
				Component("forecast").
				Category(errors.CategoryNetwork).
				Context("provider", surflineProviderName).
				Build()
		}
		req.Header.Set("User-Agent", UserAgent)

		body, lastErr = p.doRequest(req, attemptLogger)
		if lastErr == nil {
			break
		}
		if ctx.Err() != nil {
			break
		}
		if i < maxRetries-1 {
			time.Sleep(retryDelay)
		}
	}

	if lastErr != nil {
		return errors.New(fmt.Errorf("%w: %s after %d attempts: %w", ErrUpstreamUnavailable, attrLabel(attr), maxRetries, lastErr)).
			Component("forecast").
			Category(errors.CategoryNetwork).
			Context("provider", surflineProviderName).
			Context("attr", attrLabel(attr)).
			Context("max_retries", maxRetries).
			Build()
	}

	if err := json.Unmarshal(body, out); err != nil {
		return errors.New(fmt.Errorf("%w: decode %s response: %w", ErrMalformedResponse, attrLabel(attr), err)).
			Component("forecast").
			Category(errors.CategoryValidation).
			Context("provider", surflineProviderName).
			Context("attr", attrLabel(attr)).
			Build()
	}
	return nil
}

// doRequest executes a single HTTP attempt and returns the body on success.
func (p *SurflineProvider) doRequest(req *http.Request, logger *slog.Logger) ([]byte, error) {
	resp, err := p.client.Do(req)
	if err != nil {
		logger.Warn("HTTP request failed", "error", err)
		return nil, err
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			logger.Debug("Failed to close response body", "error", closeErr)
		}
	}()

	if resp.StatusCode != http.StatusOK {
		logger.Warn("Received non-OK status code", "status_code", resp.StatusCode)
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		logger.Warn("Failed to read response body", "error", err)
		return nil, err
	}
	return body, nil
}

func (p *SurflineProvider) baseURL() string {
	if p.settings.Forecast.BaseURL != "" {
		return p.settings.Forecast.BaseURL
	}
	return SurflineBaseURL
}

func attrLabel(attr string) string {
	if attr == "" {
		return "meta"
	}
	return attr
}

// flattenSurflineResponse merges the attribute responses into one record per
// wave timestamp. Wind, tide and weather observations join on timestamp;
// missing joins leave zero values, matching an outer join.
func flattenSurflineResponse(meta *surflineMeta, wave *surflineWave, wind *surflineWind, tides *surflineTides, weather *surflineWeather, sun *suncalc.SunCalc) []datastore.ForecastRecord {
	type windObs struct {
		speed, direction, gust float64
		directionType          string
		optimalScore           int
	}
	windByTS := make(map[int64]windObs, len(wind.Data.Wind))
	for _, w := range wind.Data.Wind {
		windByTS[w.Timestamp] = windObs{w.Speed, w.Direction, w.Gust, w.DirectionType, w.OptimalScore}
	}

	type tideObs struct {
		tideType string
		height   float64
	}
	tideByTS := make(map[int64]tideObs, len(tides.Data.Tides))
	for _, t := range tides.Data.Tides {
		tideByTS[t.Timestamp] = tideObs{t.Type, t.Height}
	}

	type weatherObs struct {
		temperature, pressure float64
		condition             string
	}
	weatherByTS := make(map[int64]weatherObs, len(weather.Data.Weather))
	for _, w := range weather.Data.Weather {
		weatherByTS[w.Timestamp] = weatherObs{w.Temperature, w.Pressure, w.Condition}
	}

	records := make([]datastore.ForecastRecord, 0, len(wave.Data.Wave))
	for _, obs := range wave.Data.Wave {
		record := datastore.ForecastRecord{
			Timestamp: time.Unix(obs.Timestamp, 0).UTC(),
			UTCOffset: meta.UTCOffset,

			SurfMin:           obs.Surf.Min,
			SurfMax:           obs.Surf.Max,
			SurfOptimalScore:  obs.Surf.OptimalScore,
			SurfHumanRelation: obs.Surf.HumanRelation,
			SurfRawMin:        obs.Surf.Raw.Min,
			SurfRawMax:        obs.Surf.Raw.Max,

			Probability: obs.Probability,

			IsLight: isLight(weather, obs.Timestamp, sun),
		}

		if w, ok := windByTS[obs.Timestamp]; ok {
			record.WindSpeed = w.speed
			record.WindDirection = w.direction
			record.WindDirectionType = w.directionType
			record.WindGust = w.gust
			record.WindOptimalScore = w.optimalScore
		}
		if t, ok := tideByTS[obs.Timestamp]; ok {
			record.TideType = t.tideType
			record.TideHeight = t.height
		}
		if w, ok := weatherByTS[obs.Timestamp]; ok {
			record.WeatherTemperature = w.temperature
			record.WeatherCondition = w.condition
			record.WeatherPressure = w.pressure
		}

		for rank, swell := range obs.Swells {
			if rank >= maxSwellRanks {
				break
			}
			record.Swells = append(record.Swells, datastore.SwellComponent{
				Rank:         rank + 1,
				Height:       swell.Height,
				Period:       swell.Period,
				Impact:       swell.Impact,
				Power:        swell.Power,
				Direction:    swell.Direction,
				DirectionMin: swell.DirectionMin,
				OptimalScore: swell.OptimalScore,
			})
		}

		records = append(records, record)
	}

	return records
}

// isLight reports whether a forecast timestamp falls between sunrise and
// sunset of its day, per the provider's own sunlight times. Timestamps not
// covered by a sunlight entry fall back to a computed daylight check at the
// spot's coordinates.
func isLight(weather *surflineWeather, ts int64, sun *suncalc.SunCalc) bool {
	for _, day := range weather.Data.SunlightTimes {
		if ts >= day.Midnight && ts < day.Midnight+24*60*60 {
			return ts >= day.Sunrise && ts <= day.Sunset
		}
	}

	light, err := sun.IsDaylight(time.Unix(ts, 0).UTC())
	if err != nil {
		return false
	}
	return light
}
