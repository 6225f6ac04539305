// Package pipeline orchestrates a full acquisition run: forecast refresh for
// every spot, then rewind clip resolution, download, transcode and storage
// for every cam. Each cam/timestamp unit fails independently so one bad clip
// never poisons a run.
package pipeline

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/surfwatch/surfwatch-go/internal/catalog"
	"github.com/surfwatch/surfwatch-go/internal/clip"
	"github.com/surfwatch/surfwatch-go/internal/conf"
	"github.com/surfwatch/surfwatch-go/internal/datastore"
	"github.com/surfwatch/surfwatch-go/internal/errors"
	"github.com/surfwatch/surfwatch-go/internal/forecast"
	"github.com/surfwatch/surfwatch-go/internal/logging"
	"github.com/surfwatch/surfwatch-go/internal/rewind"
	"github.com/surfwatch/surfwatch-go/internal/suncalc"
)

// Package-level logger for pipeline orchestration
var (
	pipelineLogger   *slog.Logger
	pipelineLevelVar = new(slog.LevelVar)
)

func init() {
	var err error
	pipelineLevelVar.Set(slog.LevelInfo)

	pipelineLogger, _, err = logging.NewFileLogger("logs/pipeline.log", "pipeline", pipelineLevelVar)
	if err != nil {
		logging.Error("Failed to initialize pipeline file logger", "error", err)
		fbHandler := slog.NewJSONHandler(io.Discard, &slog.HandlerOptions{Level: pipelineLevelVar})
		pipelineLogger = slog.New(fbHandler).With("service", "pipeline")
	}
}

// clipMinuteCutoff filters resolved links to the clip recorded at the top of
// each hour: capture minutes 0 through 9 qualify.
const clipMinuteCutoff = 10

// Acquirer downloads one raw clip file.
type Acquirer interface {
	Download(ctx context.Context, url, destPath string) (int64, error)
}

// Transformer turns a raw clip into an archived one.
type Transformer interface {
	Process(ctx context.Context, camID, rawPath string, recordedAt time.Time) (datastore.VideoClip, error)
}

// Pipeline composes the catalog, forecast service, link resolver, acquirer,
// transformer and datastore into runnable stages.
type Pipeline struct {
	settings    *conf.Settings
	catalog     *catalog.Catalog
	forecasts   *forecast.Service
	resolver    rewind.LinkResolver
	acquirer    Acquirer
	transformer Transformer
	db          datastore.Interface
}

// New assembles a pipeline from configuration with the concrete provider
// implementations.
func New(settings *conf.Settings, db datastore.Interface) (*Pipeline, error) {
	cat, err := catalog.New(settings.Spots)
	if err != nil {
		return nil, err
	}

	forecasts, err := forecast.NewService(settings, db)
	if err != nil {
		return nil, err
	}

	resolver, err := rewind.NewSurflineScraper(settings)
	if err != nil {
		return nil, err
	}

	return &Pipeline{
		settings:    settings,
		catalog:     cat,
		forecasts:   forecasts,
		resolver:    resolver,
		acquirer:    clip.NewAcquirer(settings),
		transformer: clip.NewTransformer(settings),
		db:          db,
	}, nil
}

// NewWithComponents assembles a pipeline from explicit components. Used by
// tests to substitute doubles for the network-facing stages.
func NewWithComponents(settings *conf.Settings, cat *catalog.Catalog, forecasts *forecast.Service,
	resolver rewind.LinkResolver, acquirer Acquirer, transformer Transformer, db datastore.Interface) *Pipeline {
	return &Pipeline{
		settings:    settings,
		catalog:     cat,
		forecasts:   forecasts,
		resolver:    resolver,
		acquirer:    acquirer,
		transformer: transformer,
		db:          db,
	}
}

// SeedCatalog upserts the configured spots and cams into the datastore.
// Runs before any stage so foreign keys always have their parents.
func (p *Pipeline) SeedCatalog() error {
	for _, spot := range p.catalog.Spots() {
		record := datastore.Spot{
			ID:             spot.ID,
			Name:           spot.Name,
			ProviderSpotID: spot.ProviderSpotID,
			Latitude:       spot.Latitude,
			Longitude:      spot.Longitude,
		}
		if err := p.db.SaveSpot(&record); err != nil {
			return err
		}
		for _, cam := range p.catalog.CamsForSpot(spot.ID) {
			camRecord := datastore.Cam{
				ID:            cam.ID,
				SpotID:        cam.SpotID,
				ProviderCamID: cam.ProviderCamID,
				Label:         cam.Label,
				PageSlug:      cam.PageSlug,
			}
			if err := p.db.SaveCam(&camRecord); err != nil {
				return err
			}
		}
	}
	pipelineLogger.Info("Seeded catalog",
		"spots", len(p.catalog.Spots()),
		"cams", len(p.catalog.Cams()),
	)
	return nil
}

// RunForecasts refreshes the forecast window of every spot. A failing spot is
// logged and skipped, its siblings still refresh.
func (p *Pipeline) RunForecasts(ctx context.Context) error {
	runID := uuid.New().String()
	logger := pipelineLogger.With("run_id", runID)
	logger.Info("Starting forecast run", "spots", len(p.catalog.Spots()))

	var failed int
	for _, spot := range p.catalog.Spots() {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := p.forecasts.RefreshSpot(ctx, &spot); err != nil {
			logger.Error("Forecast refresh failed", "spot_id", spot.ID, "error", err)
			failed++
		}
	}

	logger.Info("Forecast run finished",
		"spots", len(p.catalog.Spots()),
		"failed", failed,
	)
	if failed == len(p.catalog.Spots()) && failed > 0 {
		return errors.Newf("forecast refresh failed for all %d spots", failed).
			Component("pipeline").
			Category(errors.CategoryNetwork).
			Context("run_id", runID).
			Build()
	}
	return nil
}

// RunFull runs the forecast pass and then archives the daylight rewind clips
// of every cam through a bounded worker pool. Authentication failure aborts
// the video half only; any other per-cam failure is isolated.
func (p *Pipeline) RunFull(ctx context.Context) error {
	runID := uuid.New().String()
	logger := pipelineLogger.With("run_id", runID)

	if err := p.RunForecasts(ctx); err != nil {
		logger.Error("Forecast stage failed", "error", err)
	}

	defer func() {
		if err := p.resolver.Close(); err != nil {
			logger.Warn("Failed to close link resolver", "error", err)
		}
	}()

	cams := p.catalog.Cams()
	logger.Info("Starting video stage", "cams", len(cams))

	workers := p.settings.Video.Workers
	if workers < 1 {
		workers = 1
	}

	var (
		wg                sync.WaitGroup
		authOnce          sync.Once
		authErr           error
		camCh             = make(chan catalog.Cam)
		cancelCtx, cancel = context.WithCancel(ctx)
	)
	defer cancel()

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for cam := range camCh {
				if err := p.processCam(cancelCtx, logger, &cam); err != nil {
					if errors.Is(err, rewind.ErrAuthenticationFailed) {
						authOnce.Do(func() {
							authErr = err
							cancel()
						})
						return
					}
					logger.Error("Cam processing failed", "cam_id", cam.ID, "error", err)
				}
			}
		}()
	}

feed:
	for _, cam := range cams {
		select {
		case camCh <- cam:
		case <-cancelCtx.Done():
			break feed
		}
	}
	close(camCh)
	wg.Wait()

	if authErr != nil {
		logger.Error("Video stage aborted", "error", authErr)
		return authErr
	}

	logger.Info("Run finished")
	return nil
}

// processCam archives the qualifying clips of one cam. Each clip is an
// independent unit of work.
func (p *Pipeline) processCam(ctx context.Context, logger *slog.Logger, cam *catalog.Cam) error {
	spot, ok := p.catalog.SpotForCam(cam)
	if !ok {
		return errors.Newf("cam %s has no spot in the catalog", cam.ID).
			Component("pipeline").
			Category(errors.CategoryValidation).
			Build()
	}

	now := time.Now().UTC()
	window := rewind.Window{
		Start: now.Add(-time.Duration(p.settings.Rewind.Days) * 24 * time.Hour),
		End:   now,
	}

	links, err := p.resolver.ResolveClipLinks(ctx, cam, window)
	if err != nil {
		if errors.Is(err, rewind.ErrNoLinksFound) {
			logger.Info("No rewind clips for cam", "cam_id", cam.ID)
			return nil
		}
		return err
	}

	sun := suncalc.NewSunCalc(spot.Latitude, spot.Longitude)

	var archived, skipped int
	for _, link := range links {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		ok, err := p.wantClip(sun, link.Timestamp)
		if err != nil {
			logger.Warn("Daylight check failed", "cam_id", cam.ID, "timestamp", link.Timestamp, "error", err)
			continue
		}
		if !ok {
			continue
		}

		exists, err := p.db.HasVideoClip(cam.ID, link.Timestamp.UTC())
		if err != nil {
			return err
		}
		if exists {
			skipped++
			continue
		}

		if err := p.archiveClip(ctx, cam, link); err != nil {
			logger.Error("Clip archival failed",
				"cam_id", cam.ID,
				"timestamp", link.Timestamp,
				"url", link.URL,
				"error", err,
			)
			continue
		}
		archived++
	}

	logger.Info("Cam processed",
		"cam_id", cam.ID,
		"links", len(links),
		"archived", archived,
		"already_stored", skipped,
	)
	return nil
}

// wantClip reports whether a capture time qualifies for archival: daylight at
// the spot and recorded in the first minutes of its hour.
func (p *Pipeline) wantClip(sun *suncalc.SunCalc, ts time.Time) (bool, error) {
	if ts.Minute() >= clipMinuteCutoff {
		return false, nil
	}
	return sun.IsDaylight(ts)
}

// archiveClip downloads, transcodes and stores one clip.
func (p *Pipeline) archiveClip(ctx context.Context, cam *catalog.Cam, link rewind.ClipLink) error {
	rawPath := filepath.Join(p.settings.Video.ScratchPath,
		fmt.Sprintf("%s_%s.mp4", cam.ID, link.Timestamp.UTC().Format("20060102T150405")))

	if _, err := p.acquirer.Download(ctx, link.URL, rawPath); err != nil {
		return err
	}

	record, err := p.transformer.Process(ctx, cam.ID, rawPath, link.Timestamp)
	if err != nil {
		return err
	}
	record.SourceURL = link.URL

	return p.db.UpsertVideoClip(&record)
}

// RetireSpot removes a spot and everything hanging off it: clips, cams,
// swells and forecasts. Idempotent, a second call is a no-op.
func (p *Pipeline) RetireSpot(ctx context.Context, spotID string) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return p.db.DeleteSpot(spotID)
}
